//go:build nogl
// +build nogl

package opengl

import (
	"errors"

	"fluidsim/gpu"
)

// ErrUnavailable is returned by NewDevice in builds without OpenGL.
var ErrUnavailable = errors.New("built with nogl: OpenGL device unavailable")

// Device stub for builds without OpenGL
type Device struct{}

func NewDevice() (*Device, error) {
	return nil, ErrUnavailable
}

func (d *Device) SupportsCompute() bool { return false }

func (d *Device) CompileCompute(name, source string) (gpu.ProgramID, error) {
	return 0, gpu.ErrComputeUnsupported
}

func (d *Device) CompileRender(name, vertex, fragment string) (gpu.ProgramID, error) {
	return 0, ErrUnavailable
}

func (d *Device) UniformLocation(program gpu.ProgramID, name string) int32 {
	return gpu.InvalidLocation
}

func (d *Device) DeleteProgram(program gpu.ProgramID) {}

func (d *Device) CreateTexture(width, height int) (gpu.TextureID, error) {
	return 0, gpu.ErrTextureAllocation
}

func (d *Device) ClearTexture(texture gpu.TextureID) {}

func (d *Device) DeleteTexture(texture gpu.TextureID) {}

func (d *Device) Dispatch(cmd gpu.DispatchCmd) {}

func (d *Device) Draw(cmd gpu.DrawCmd) {}

func (d *Device) Release() {}
