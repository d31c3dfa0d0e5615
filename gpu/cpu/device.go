// Package cpu is a reference gpu.Device that executes the fluid kernels in
// Go. It backs tests and headless rendering on machines without OpenGL 4.3.
package cpu

import (
	"fmt"
	"image"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"fluidsim/gpu"
)

type programKind uint8

const (
	computeProgram programKind = iota
	renderProgram
)

type program struct {
	name   string
	kind   programKind
	kernel kernelFunc
	params []string // location -> parameter name
}

// Device implements gpu.Device on the CPU.
type Device struct {
	// FailTextureAfter makes texture creation fail once this many textures
	// have been created. Zero disables the failure.
	FailTextureAfter int

	compute  bool
	workers  int
	nextID   uint32
	created  int
	programs map[gpu.ProgramID]*program
	textures map[gpu.TextureID]*Texture
	frame    *image.RGBA

	dispatches int
	draws      int
}

// Option configures a Device.
type Option func(*Device)

// WithoutCompute makes SupportsCompute report false.
func WithoutCompute() Option {
	return func(d *Device) { d.compute = false }
}

// WithWorkers sets the number of goroutines a dispatch is split across.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDevice returns a CPU device with compute support.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		compute:  true,
		workers:  runtime.NumCPU(),
		programs: make(map[gpu.ProgramID]*program),
		textures: make(map[gpu.TextureID]*Texture),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) SupportsCompute() bool { return d.compute }

var errorDirective = regexp.MustCompile(`(?m)^\s*#error\s*(.*)$`)

// CompileCompute binds name to its Go kernel. The source must be non-empty;
// a #error directive fails compilation with the directive text as the log,
// matching what a GLSL compiler reports.
func (d *Device) CompileCompute(name, source string) (gpu.ProgramID, error) {
	if !d.compute {
		return 0, gpu.ErrComputeUnsupported
	}
	if err := checkSource(name, "compute", source); err != nil {
		return 0, err
	}
	ks, ok := computeKernels[name]
	if !ok {
		return 0, &gpu.CompileError{Kernel: name, Stage: "compute", Log: fmt.Sprintf("no reference implementation for kernel %q", name)}
	}
	return d.addProgram(&program{name: name, kind: computeProgram, kernel: ks.run, params: ks.params}), nil
}

// CompileRender accepts the composite program.
func (d *Device) CompileRender(name, vertex, fragment string) (gpu.ProgramID, error) {
	if err := checkSource(name, "vertex", vertex); err != nil {
		return 0, err
	}
	if err := checkSource(name, "fragment", fragment); err != nil {
		return 0, err
	}
	return d.addProgram(&program{name: name, kind: renderProgram, params: compositeParams}), nil
}

func checkSource(name, stage, source string) error {
	if strings.TrimSpace(source) == "" {
		return &gpu.CompileError{Kernel: name, Stage: stage, Log: "empty shader source"}
	}
	if m := errorDirective.FindStringSubmatch(source); m != nil {
		return &gpu.CompileError{Kernel: name, Stage: stage, Log: "#error " + m[1]}
	}
	return nil
}

func (d *Device) addProgram(p *program) gpu.ProgramID {
	d.nextID++
	id := gpu.ProgramID(d.nextID)
	d.programs[id] = p
	return id
}

// UniformLocation returns the index of name in the kernel parameter list.
func (d *Device) UniformLocation(id gpu.ProgramID, name string) int32 {
	p, ok := d.programs[id]
	if !ok {
		return gpu.InvalidLocation
	}
	for i, n := range p.params {
		if n == name {
			return int32(i)
		}
	}
	return gpu.InvalidLocation
}

func (d *Device) DeleteProgram(id gpu.ProgramID) {
	delete(d.programs, id)
}

// CreateTexture allocates a zeroed RGBA float texture.
func (d *Device) CreateTexture(width, height int) (gpu.TextureID, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: invalid size %dx%d", gpu.ErrTextureAllocation, width, height)
	}
	if d.FailTextureAfter > 0 && d.created >= d.FailTextureAfter {
		return 0, fmt.Errorf("%w: simulated out of memory", gpu.ErrTextureAllocation)
	}
	d.created++
	d.nextID++
	id := gpu.TextureID(d.nextID)
	d.textures[id] = NewTexture(width, height)
	return id, nil
}

func (d *Device) ClearTexture(id gpu.TextureID) {
	if t, ok := d.textures[id]; ok {
		clear(t.Pix)
	}
}

func (d *Device) DeleteTexture(id gpu.TextureID) {
	delete(d.textures, id)
}

// Texture returns the storage behind id, nil if it does not exist.
func (d *Device) Texture(id gpu.TextureID) *Texture {
	return d.textures[id]
}

// TextureCount returns the number of live textures.
func (d *Device) TextureCount() int { return len(d.textures) }

// ProgramCount returns the number of live programs.
func (d *Device) ProgramCount() int { return len(d.programs) }

// DispatchCount returns the number of compute dispatches executed.
func (d *Device) DispatchCount() int { return d.dispatches }

// DrawCount returns the number of draws executed.
func (d *Device) DrawCount() int { return d.draws }

// Frame returns the image produced by the last draw.
func (d *Device) Frame() *image.RGBA { return d.frame }

// Dispatch runs a compute kernel synchronously; returning is the barrier.
func (d *Device) Dispatch(cmd gpu.DispatchCmd) {
	p, ok := d.programs[cmd.Program]
	if !ok || p.kind != computeProgram {
		panic(fmt.Sprintf("cpu: dispatch of unknown compute program %d", cmd.Program))
	}

	b := d.bindings(p, cmd.Uniforms)
	written := make(map[gpu.TextureID]bool)
	for _, img := range cmd.Images {
		if img.Access != gpu.ReadOnly {
			written[img.Texture] = true
		}
	}
	for _, img := range cmd.Images {
		t, ok := d.textures[img.Texture]
		if !ok {
			panic(fmt.Sprintf("cpu: %s binds missing texture %d at unit %d", p.name, img.Texture, img.Unit))
		}
		if img.Access == gpu.ReadOnly && written[img.Texture] {
			panic(fmt.Sprintf("cpu: %s binds texture %d for read and write", p.name, img.Texture))
		}
		if int(img.Unit) >= len(b.images) {
			panic(fmt.Sprintf("cpu: %s binds image unit %d", p.name, img.Unit))
		}
		b.images[img.Unit] = t
	}

	dst := b.images[0]
	if dst == nil {
		panic(fmt.Sprintf("cpu: %s dispatched without an output image", p.name))
	}
	width := min(int(cmd.GroupsX)*gpu.WorkGroupSize, dst.Width)
	height := min(int(cmd.GroupsY)*gpu.WorkGroupSize, dst.Height)

	cell := p.kernel(b)
	d.parallelRows(height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < width; x++ {
				cell(x, y)
			}
		}
	})
	d.dispatches++
}

// Draw composites into an RGBA image of the requested size.
func (d *Device) Draw(cmd gpu.DrawCmd) {
	p, ok := d.programs[cmd.Program]
	if !ok || p.kind != renderProgram {
		panic(fmt.Sprintf("cpu: draw of unknown render program %d", cmd.Program))
	}
	width, height := max(cmd.Width, 1), max(cmd.Height, 1)
	if d.frame == nil || d.frame.Rect.Dx() != width || d.frame.Rect.Dy() != height {
		d.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	}

	b := d.bindings(p, cmd.Uniforms)
	var density *Texture
	if cmd.Texture != 0 {
		density = d.textures[cmd.Texture]
	}
	d.parallelRows(height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < width; x++ {
				composite(b, density, d.frame, x, y, width, height)
			}
		}
	})
	d.draws++
}

func (d *Device) bindings(p *program, uniforms []gpu.Uniform) *binding {
	b := &binding{values: make(map[string]any, len(uniforms))}
	for _, u := range uniforms {
		if u.Location < 0 || int(u.Location) >= len(p.params) {
			continue
		}
		b.values[p.params[u.Location]] = u.Value
	}
	return b
}

// parallelRows splits [0,rows) into contiguous bands, one per worker. Every
// cell is computed independently, so results do not depend on scheduling.
func (d *Device) parallelRows(rows int, fn func(y0, y1 int)) {
	workers := min(d.workers, rows)
	if workers <= 1 {
		fn(0, rows)
		return
	}
	band := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < rows; y0 += band {
		y1 := min(y0+band, rows)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}
