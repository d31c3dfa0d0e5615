// Package simulation runs the stable fluids solver on a gpu.Device: splat,
// advect, divergence, Jacobi pressure solve and projection, once per step.
package simulation

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"fluidsim/core"
	"fluidsim/gpu"
	"fluidsim/shaders"
)

// Solver constants
const (
	VelocityDissipation = 0.995
	DyeDissipation      = 0.999
	MaxTimestep         = 1.0 / 30.0 // seconds
	SplatRadius         = 0.02       // normalized field units
	SplatForce          = 6.0
	JacobiAlpha         = -1.0
	JacobiRBeta         = 0.25

	DefaultGridSize           = 1024
	DefaultPressureIterations = 24
)

// ErrInvalidGridSize is returned by SetQuality for non-positive grid sizes.
var ErrInvalidGridSize = errors.New("grid size must be positive")

// Engine owns every GPU object of the simulation. All methods except
// EnqueueInteraction and SurfaceSize must be called from the goroutine that
// owns the device.
type Engine struct {
	dev     gpu.Device
	sources shaders.Sources
	logger  *log.Logger

	composite *gpu.KernelProgram
	kernels   map[string]*gpu.KernelProgram

	velocity   *gpu.DoubleBufferedField
	dye        *gpu.DoubleBufferedField
	pressure   *gpu.DoubleBufferedField
	divergence *gpu.Field

	queue   *InteractionQueue
	state   core.SimulationState
	surface atomic.Uint64 // width<<32 | height

	armed          bool // false until the warm-up step recorded a timestamp
	degraded       bool
	degradedReason error
	destroyed      bool
	lastTimestep   float32

	inference        InferenceService
	request          InferenceRequest
	lastInference    int64
	inferenceStarted bool

	status statusReporter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for warnings and errors.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithQuality sets the initial grid size and pressure iterations.
func WithQuality(gridSize, iterations int) Option {
	return func(e *Engine) {
		if gridSize > 0 {
			e.state.GridSize = gridSize
		}
		e.state.PressureIterations = max(iterations, 1)
	}
}

// WithPalette sets the initial palette.
func WithPalette(id int) Option {
	return func(e *Engine) { e.state.Palette = id }
}

// WithStatusObserver registers the single status listener.
func WithStatusObserver(o StatusObserver) Option {
	return func(e *Engine) { e.status.observer = o }
}

// New creates an engine. No GPU work happens until OnContextCreated.
func New(dev gpu.Device, sources shaders.Sources, opts ...Option) *Engine {
	e := &Engine{
		dev:        dev,
		sources:    sources,
		logger:     log.Default(),
		kernels:    make(map[string]*gpu.KernelProgram),
		velocity:   gpu.NewDoubleBufferedField(dev),
		dye:        gpu.NewDoubleBufferedField(dev),
		pressure:   gpu.NewDoubleBufferedField(dev),
		divergence: gpu.NewField(dev),
		queue:      NewInteractionQueue(),
		state: core.SimulationState{
			GridSize:           DefaultGridSize,
			PressureIterations: DefaultPressureIterations,
			Palette:            core.PaletteWarm,
		},
	}
	e.surface.Store(1<<32 | 1)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnContextCreated builds every GPU object for a fresh context. Objects
// from a previous context are assumed lost with it and are forgotten, not
// deleted; call Destroy first to release them while that context is still
// alive. Without compute support, or when a compute kernel fails to
// compile, the engine enters degraded mode for the rest of the session and
// only draws the palette gradient. An error is returned only when the
// composite program itself cannot be built.
func (e *Engine) OnContextCreated() error {
	e.abandonGPU()
	e.destroyed = false
	e.degraded, e.degradedReason = false, nil
	e.armed = false

	composite, err := gpu.CompileRenderKernel(e.dev, shaders.KernelComposite, e.sources.CompositeVertex, e.sources.CompositeFragment)
	if err != nil {
		return fmt.Errorf("composite program: %w", err)
	}
	e.composite = composite

	if !e.dev.SupportsCompute() {
		e.degrade(gpu.ErrComputeUnsupported)
		return nil
	}
	if err := e.compileKernels(); err != nil {
		e.degrade(err)
		return nil
	}
	if err := e.allocateFields(e.state.GridSize); err != nil {
		e.logger.Printf("Error: %v", err)
	}
	return nil
}

func (e *Engine) compileKernels() error {
	for _, k := range e.sources.Compute() {
		program, err := gpu.CompileKernel(e.dev, k.Name, k.Source)
		if err != nil {
			e.releaseKernels()
			return err
		}
		e.kernels[k.Name] = program
	}
	return nil
}

func (e *Engine) degrade(reason error) {
	e.releaseKernels()
	e.destroyFields()
	e.degraded = true
	e.degradedReason = reason

	var ce *gpu.CompileError
	if errors.As(reason, &ce) {
		e.logger.Printf("Error: %v", reason)
	}
	e.logger.Printf("Warning: fluid compute path disabled, drawing palette gradient: %v", reason)
}

// allocateFields reallocates every field at size×size and clears them.
// On failure no field stays allocated.
func (e *Engine) allocateFields(size int) error {
	e.destroyFields()

	for _, f := range []*gpu.DoubleBufferedField{e.velocity, e.dye, e.pressure} {
		if err := f.Allocate(size, size); err != nil {
			e.destroyFields()
			return fmt.Errorf("allocate fields at %d: %w", size, err)
		}
	}
	if err := e.divergence.Allocate(size, size); err != nil {
		e.destroyFields()
		return fmt.Errorf("allocate fields at %d: %w", size, err)
	}

	e.clearFields()
	return nil
}

func (e *Engine) clearFields() {
	e.velocity.Clear()
	e.dye.Clear()
	e.pressure.Clear()
	e.divergence.Clear()
}

func (e *Engine) destroyFields() {
	e.velocity.Destroy()
	e.dye.Destroy()
	e.pressure.Destroy()
	e.divergence.Destroy()
}

func (e *Engine) releaseKernels() {
	for name, k := range e.kernels {
		k.Release()
		delete(e.kernels, name)
	}
}

// abandonGPU drops every handle without touching the device.
func (e *Engine) abandonGPU() {
	for name, k := range e.kernels {
		k.Abandon()
		delete(e.kernels, name)
	}
	e.velocity.Abandon()
	e.dye.Abandon()
	e.pressure.Abandon()
	e.divergence.Abandon()
	e.composite.Abandon()
	e.composite = nil
}

func (e *Engine) releaseGPU() {
	e.releaseKernels()
	e.destroyFields()
	e.composite.Release()
	e.composite = nil
}

// OnSurfaceResized records the presentation surface size in pixels.
func (e *Engine) OnSurfaceResized(width, height int) {
	w, h := uint64(max(width, 1)), uint64(max(height, 1))
	e.surface.Store(w<<32 | h)
}

// SurfaceSize returns the surface size. Safe for concurrent use.
func (e *Engine) SurfaceSize() (int, int) {
	v := e.surface.Load()
	return int(v >> 32), int(v & 0xffffffff)
}

// EnqueueInteraction queues a pointer sample in surface pixels. Safe for
// concurrent use.
func (e *Engine) EnqueueInteraction(x, y, dx, dy float32, colorID int) {
	e.queue.Push(core.InteractionSample{X: x, Y: y, DX: dx, DY: dy, ColorID: colorID})
}

// Step advances the simulation to nowNanos, a monotonic timestamp.
func (e *Engine) Step(nowNanos int64) {
	if e.destroyed {
		return
	}
	e.status.tick(nowNanos, e.state)

	if e.degraded {
		e.queue.Discard()
		return
	}
	if !e.IsValid() {
		if e.composite != nil {
			e.queue.Discard()
		}
		return
	}

	if !e.armed {
		e.armed = true
		e.state.LastStepNanos = nowNanos
		e.lastTimestep = 0
		return
	}

	dt := mgl32.Clamp(float32(float64(nowNanos-e.state.LastStepNanos)/1e9), 0, MaxTimestep)
	e.state.LastStepNanos = nowNanos
	e.lastTimestep = dt

	for _, s := range e.queue.Drain() {
		if !s.IsFinite() {
			e.logger.Printf("Warning: dropping non-finite interaction %+v", s)
			continue
		}
		e.applySplat(s)
	}
	e.advect(dt)
	e.computeDivergence()
	e.solvePressure()
	e.project()

	e.maybeRunInference(nowNanos)
}

func (e *Engine) texelSize() mgl32.Vec2 {
	t := 1 / float32(e.state.GridSize)
	return mgl32.Vec2{t, t}
}

func (e *Engine) applySplat(s core.InteractionSample) {
	w, h := e.SurfaceSize()
	p := core.ToFieldSpace(s, w, h, e.state.GridSize, SplatForce)

	e.splatInto(e.velocity, p, mgl32.Vec3{}, 1)
	e.splatInto(e.dye, p, core.SplatColor(e.state.Palette, s.ColorID), 0)
}

func (e *Engine) splatInto(f *gpu.DoubleBufferedField, p core.SplatParams, color mgl32.Vec3, affectsVelocity int32) {
	k := e.kernels[shaders.KernelSplat]
	g := e.state.GridSize
	k.Dispatch(g, g,
		[]gpu.ImageBinding{gpu.WriteImage(0, f.Write()), gpu.ReadImage(1, f.Read())},
		k.Param("point", p.Point),
		k.Param("delta", p.Impulse),
		k.Param("color", color),
		k.Param("radius", float32(SplatRadius)),
		k.Param("aspect", p.Aspect),
		k.Param("affectsVelocity", affectsVelocity),
	)
	f.Swap()
}

// advect transports velocity by itself, then dye by the updated velocity.
func (e *Engine) advect(dt float32) {
	k := e.kernels[shaders.KernelAdvect]
	g := e.state.GridSize

	k.Dispatch(g, g,
		[]gpu.ImageBinding{
			gpu.WriteImage(0, e.velocity.Write()),
			gpu.ReadImage(1, e.velocity.Read()),
			gpu.ReadImage(2, e.velocity.Read()),
		},
		k.Param("timestep", dt),
		k.Param("dissipation", float32(VelocityDissipation)),
	)
	e.velocity.Swap()

	k.Dispatch(g, g,
		[]gpu.ImageBinding{
			gpu.WriteImage(0, e.dye.Write()),
			gpu.ReadImage(1, e.dye.Read()),
			gpu.ReadImage(2, e.velocity.Read()),
		},
		k.Param("timestep", dt),
		k.Param("dissipation", float32(DyeDissipation)),
	)
	e.dye.Swap()
}

func (e *Engine) computeDivergence() {
	k := e.kernels[shaders.KernelDivergence]
	g := e.state.GridSize
	k.Dispatch(g, g,
		[]gpu.ImageBinding{gpu.WriteImage(0, e.divergence.Texture()), gpu.ReadImage(1, e.velocity.Read())},
		k.Param("texelSize", e.texelSize()),
	)
}

// solvePressure runs exactly PressureIterations Jacobi passes from zero.
func (e *Engine) solvePressure() {
	k := e.kernels[shaders.KernelJacobi]
	g := e.state.GridSize
	alpha := k.Param("alpha", float32(JacobiAlpha))
	rBeta := k.Param("rBeta", float32(JacobiRBeta))

	e.pressure.Clear()
	for i := 0; i < e.state.PressureIterations; i++ {
		k.Dispatch(g, g,
			[]gpu.ImageBinding{
				gpu.WriteImage(0, e.pressure.Write()),
				gpu.ReadImage(1, e.pressure.Read()),
				gpu.ReadImage(2, e.divergence.Texture()),
			},
			alpha, rBeta,
		)
		e.pressure.Swap()
	}
}

func (e *Engine) project() {
	k := e.kernels[shaders.KernelProject]
	g := e.state.GridSize
	k.Dispatch(g, g,
		[]gpu.ImageBinding{
			gpu.WriteImage(0, e.velocity.Write()),
			gpu.ReadImage(1, e.velocity.Read()),
			gpu.ReadImage(2, e.pressure.Read()),
		},
		k.Param("texelSize", e.texelSize()),
	)
	e.velocity.Swap()
}

// Render draws the dye field, or the palette gradient when the fields are
// not valid.
func (e *Engine) Render() {
	if e.destroyed || e.composite == nil {
		return
	}
	w, h := e.SurfaceSize()
	k := e.composite
	params := []gpu.Uniform{
		k.Param("palette", int32(e.state.Palette)),
		k.Param("aspect", float32(w)/float32(h)),
	}

	if e.IsValid() {
		params = append(params, k.Param("hasDensity", int32(1)), k.Param("density", int32(0)))
		k.Draw(w, h, e.dye.Read(), params...)
		return
	}
	params = append(params, k.Param("hasDensity", int32(0)))
	k.Draw(w, h, 0, params...)
}

// SetQuality changes the grid resolution and pressure iterations. Fields are
// reallocated and cleared at the new size; state is discarded, not
// resampled, and the next step is a warm-up step.
func (e *Engine) SetQuality(gridSize, iterations int) error {
	if gridSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidGridSize, gridSize)
	}
	e.state.GridSize = gridSize
	e.state.PressureIterations = max(iterations, 1)

	if e.degraded || e.destroyed || len(e.kernels) == 0 {
		return nil
	}
	if err := e.allocateFields(gridSize); err != nil {
		return err
	}
	e.armed = false
	return nil
}

// SetPalette selects the splat and gradient palette.
func (e *Engine) SetPalette(id int) {
	e.state.Palette = id
}

// Reset clears every field without reallocating. The step timer keeps
// running.
func (e *Engine) Reset() {
	if !e.IsValid() {
		return
	}
	e.clearFields()
}

// State returns a copy of the simulation state.
func (e *Engine) State() core.SimulationState {
	return e.state
}

// IsValid reports whether every field is allocated on a working compute path.
func (e *Engine) IsValid() bool {
	return !e.degraded && !e.destroyed &&
		e.velocity.IsValid() && e.dye.IsValid() && e.pressure.IsValid() && e.divergence.IsValid()
}

// Degraded reports whether the session fell back to the gradient render.
func (e *Engine) Degraded() bool {
	return e.degraded
}

// DegradedReason returns why the engine degraded, nil otherwise.
func (e *Engine) DegradedReason() error {
	return e.degradedReason
}

// LastTimestep returns the integration timestep of the last step in seconds.
func (e *Engine) LastTimestep() float32 {
	return e.lastTimestep
}

// PendingInteractions returns the number of queued samples.
func (e *Engine) PendingInteractions() int {
	return e.queue.Len()
}

// Destroy releases every GPU object. Later steps and renders do nothing
// until OnContextCreated is called again.
func (e *Engine) Destroy() {
	e.releaseGPU()
	e.queue.Discard()
	e.destroyed = true
}
