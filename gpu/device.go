package gpu

import (
	"errors"
)

// WorkGroupSize is the local size in x and y every full-grid kernel declares.
const WorkGroupSize = 8

// InvalidLocation is the parameter location of a name the kernel does not declare.
const InvalidLocation int32 = -1

var (
	// ErrComputeUnsupported reports a device without compute shader support.
	ErrComputeUnsupported = errors.New("compute shaders are not supported by this device")
	// ErrTextureAllocation reports a failed texture creation.
	ErrTextureAllocation = errors.New("texture allocation failed")
)

// ProgramID identifies a compiled program on a device. Zero is never valid.
type ProgramID uint32

// TextureID identifies a 2D RGBA float texture on a device. Zero is never valid.
type TextureID uint32

// Access is the access mode of an image binding.
type Access uint8

const (
	ReadOnly Access = iota
	WriteOnly
	ReadWrite
)

// Uniform binds a value to a parameter location. Supported values are
// float32, int32, mgl32.Vec2 and mgl32.Vec3. Values bound to
// InvalidLocation are ignored by every device.
type Uniform struct {
	Location int32
	Value    any
}

// ImageBinding attaches a texture to an image unit of a compute kernel.
type ImageBinding struct {
	Unit    uint32
	Texture TextureID
	Access  Access
}

// ReadImage binds tex for reading at unit.
func ReadImage(unit uint32, tex TextureID) ImageBinding {
	return ImageBinding{Unit: unit, Texture: tex, Access: ReadOnly}
}

// WriteImage binds tex for writing at unit.
func WriteImage(unit uint32, tex TextureID) ImageBinding {
	return ImageBinding{Unit: unit, Texture: tex, Access: WriteOnly}
}

// DispatchCmd is a complete compute dispatch: the program, every parameter
// value and every image binding travel with the command instead of living
// in implicit device state.
type DispatchCmd struct {
	Program  ProgramID
	Uniforms []Uniform
	Images   []ImageBinding
	GroupsX  uint32
	GroupsY  uint32
}

// DrawCmd is a full-screen draw of a render program into the default target.
type DrawCmd struct {
	Program     ProgramID
	Uniforms    []Uniform
	Texture     TextureID // sampled at SamplerUnit, zero for none
	SamplerUnit uint32
	Width       int
	Height      int
}

// Device is the GPU the fluid engine runs on. Every call happens on the
// goroutine that owns the device context.
//
// Dispatch must make all writes of the dispatch visible to later
// dispatches and draws before it returns (a full barrier).
type Device interface {
	SupportsCompute() bool

	CompileCompute(name, source string) (ProgramID, error)
	CompileRender(name, vertex, fragment string) (ProgramID, error)
	UniformLocation(program ProgramID, name string) int32
	DeleteProgram(program ProgramID)

	CreateTexture(width, height int) (TextureID, error)
	ClearTexture(texture TextureID)
	DeleteTexture(texture TextureID)

	Dispatch(cmd DispatchCmd)
	Draw(cmd DrawCmd)
}

// Groups returns the number of work groups covering dim cells.
func Groups(dim int) uint32 {
	if dim <= 0 {
		return 0
	}
	return uint32((dim + WorkGroupSize - 1) / WorkGroupSize)
}
