// Package gputest provides a gpu.Device that records the commands it is
// given, so pass ordering can be asserted without a GPU context.
package gputest

import (
	"fmt"
	"regexp"
	"strings"

	"fluidsim/gpu"
)

// Kind classifies a recorded command.
type Kind string

const (
	KindDispatch Kind = "dispatch"
	KindDraw     Kind = "draw"
	KindClear    Kind = "clear"
)

// Command is one recorded device call with parameters resolved to names.
type Command struct {
	Kind    Kind
	Kernel  string
	Params  map[string]any
	Images  []gpu.ImageBinding
	GroupsX uint32
	GroupsY uint32
	Texture gpu.TextureID
	Width   int
	Height  int
}

// Image returns the texture bound at unit, zero if none.
func (c Command) Image(unit uint32) gpu.TextureID {
	for _, img := range c.Images {
		if img.Unit == unit {
			return img.Texture
		}
	}
	return 0
}

type recordedProgram struct {
	name   string
	params map[int32]string
}

// Recorder implements gpu.Device. With an inner device every call is
// forwarded and its results returned; without one, handles are synthetic
// and parameter locations come from the uniform declarations in the source.
type Recorder struct {
	Commands []Command

	inner       gpu.Device
	compute     bool
	failKernels map[string]bool
	nextID      uint32
	programs    map[gpu.ProgramID]*recordedProgram
	textures    map[gpu.TextureID][2]int
}

// Option configures a Recorder.
type Option func(*Recorder)

// Wrap forwards every call to dev.
func Wrap(dev gpu.Device) Option {
	return func(r *Recorder) { r.inner = dev }
}

// DisableCompute makes the recorder report no compute support.
func DisableCompute() Option {
	return func(r *Recorder) { r.compute = false }
}

// FailKernels makes compilation of the named kernels fail.
func FailKernels(names ...string) Option {
	return func(r *Recorder) {
		for _, n := range names {
			r.failKernels[n] = true
		}
	}
}

// NewRecorder returns an empty recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		compute:     true,
		failKernels: make(map[string]bool),
		programs:    make(map[gpu.ProgramID]*recordedProgram),
		textures:    make(map[gpu.TextureID][2]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) SupportsCompute() bool {
	if !r.compute {
		return false
	}
	return r.inner == nil || r.inner.SupportsCompute()
}

var uniformDecl = regexp.MustCompile(`(?m)^\s*(?:layout\s*\([^)]*\)\s*)?uniform\s+([^;]+);`)

// uniformNames lists the names of the uniforms declared in source, in order.
func uniformNames(sources ...string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			fields := strings.Fields(m[1])
			if len(fields) == 0 {
				continue
			}
			name := fields[len(fields)-1]
			if i := strings.IndexByte(name, '['); i >= 0 {
				name = name[:i]
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func (r *Recorder) CompileCompute(name, source string) (gpu.ProgramID, error) {
	if !r.SupportsCompute() {
		return 0, gpu.ErrComputeUnsupported
	}
	if r.failKernels[name] {
		return 0, &gpu.CompileError{Kernel: name, Stage: "compute", Log: "0:1(1): error: forced failure"}
	}
	if r.inner == nil {
		return r.register(0, name, uniformNames(source)), nil
	}
	id, err := r.inner.CompileCompute(name, source)
	if err != nil {
		return 0, err
	}
	return r.register(id, name, uniformNames(source)), nil
}

func (r *Recorder) CompileRender(name, vertex, fragment string) (gpu.ProgramID, error) {
	if r.failKernels[name] {
		return 0, &gpu.CompileError{Kernel: name, Stage: "link", Log: "forced failure"}
	}
	if r.inner == nil {
		return r.register(0, name, uniformNames(vertex, fragment)), nil
	}
	id, err := r.inner.CompileRender(name, vertex, fragment)
	if err != nil {
		return 0, err
	}
	return r.register(id, name, uniformNames(vertex, fragment)), nil
}

func (r *Recorder) register(id gpu.ProgramID, name string, names []string) gpu.ProgramID {
	if id == 0 {
		r.nextID++
		id = gpu.ProgramID(r.nextID)
	}
	p := &recordedProgram{name: name, params: make(map[int32]string)}
	for i, n := range names {
		loc := int32(i)
		if r.inner != nil {
			loc = r.inner.UniformLocation(id, n)
		}
		if loc != gpu.InvalidLocation {
			p.params[loc] = n
		}
	}
	r.programs[id] = p
	return id
}

func (r *Recorder) UniformLocation(id gpu.ProgramID, name string) int32 {
	if r.inner != nil {
		return r.inner.UniformLocation(id, name)
	}
	p, ok := r.programs[id]
	if !ok {
		return gpu.InvalidLocation
	}
	for loc, n := range p.params {
		if n == name {
			return loc
		}
	}
	return gpu.InvalidLocation
}

func (r *Recorder) DeleteProgram(id gpu.ProgramID) {
	delete(r.programs, id)
	if r.inner != nil {
		r.inner.DeleteProgram(id)
	}
}

func (r *Recorder) CreateTexture(width, height int) (gpu.TextureID, error) {
	var id gpu.TextureID
	if r.inner != nil {
		var err error
		if id, err = r.inner.CreateTexture(width, height); err != nil {
			return 0, err
		}
	} else {
		if width <= 0 || height <= 0 {
			return 0, fmt.Errorf("%w: invalid size %dx%d", gpu.ErrTextureAllocation, width, height)
		}
		r.nextID++
		id = gpu.TextureID(r.nextID)
	}
	r.textures[id] = [2]int{width, height}
	return id, nil
}

func (r *Recorder) ClearTexture(id gpu.TextureID) {
	r.Commands = append(r.Commands, Command{Kind: KindClear, Texture: id})
	if r.inner != nil {
		r.inner.ClearTexture(id)
	}
}

func (r *Recorder) DeleteTexture(id gpu.TextureID) {
	delete(r.textures, id)
	if r.inner != nil {
		r.inner.DeleteTexture(id)
	}
}

func (r *Recorder) Dispatch(cmd gpu.DispatchCmd) {
	r.Commands = append(r.Commands, Command{
		Kind:    KindDispatch,
		Kernel:  r.kernelName(cmd.Program),
		Params:  r.params(cmd.Program, cmd.Uniforms),
		Images:  append([]gpu.ImageBinding(nil), cmd.Images...),
		GroupsX: cmd.GroupsX,
		GroupsY: cmd.GroupsY,
	})
	if r.inner != nil {
		r.inner.Dispatch(cmd)
	}
}

func (r *Recorder) Draw(cmd gpu.DrawCmd) {
	r.Commands = append(r.Commands, Command{
		Kind:    KindDraw,
		Kernel:  r.kernelName(cmd.Program),
		Params:  r.params(cmd.Program, cmd.Uniforms),
		Texture: cmd.Texture,
		Width:   cmd.Width,
		Height:  cmd.Height,
	})
	if r.inner != nil {
		r.inner.Draw(cmd)
	}
}

func (r *Recorder) kernelName(id gpu.ProgramID) string {
	if p, ok := r.programs[id]; ok {
		return p.name
	}
	return fmt.Sprintf("program#%d", id)
}

func (r *Recorder) params(id gpu.ProgramID, uniforms []gpu.Uniform) map[string]any {
	out := make(map[string]any, len(uniforms))
	p := r.programs[id]
	for _, u := range uniforms {
		if u.Location == gpu.InvalidLocation || p == nil {
			continue
		}
		if name, ok := p.params[u.Location]; ok {
			out[name] = u.Value
		}
	}
	return out
}

// Live returns the number of live programs and textures.
func (r *Recorder) Live() (programs, textures int) {
	return len(r.programs), len(r.textures)
}

// TextureSize returns the size a live texture was created with.
func (r *Recorder) TextureSize(id gpu.TextureID) (int, int, bool) {
	s, ok := r.textures[id]
	return s[0], s[1], ok
}

// Filter returns the recorded commands of the given kind.
func (r *Recorder) Filter(kind Kind) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Kernels returns the kernel names of all dispatches, in order.
func (r *Recorder) Kernels() []string {
	var out []string
	for _, c := range r.Commands {
		if c.Kind == KindDispatch {
			out = append(out, c.Kernel)
		}
	}
	return out
}

// Reset forgets recorded commands but keeps program and texture state.
func (r *Recorder) Reset() {
	r.Commands = nil
}
