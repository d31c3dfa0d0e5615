//go:build !nogl
// +build !nogl

// Package opengl implements gpu.Device on an OpenGL 4.3 core context.
package opengl

import (
	"fmt"
	"log"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"fluidsim/gpu"
)

// Device issues compute dispatches and the composite draw on the GL context
// current on the calling thread.
type Device struct {
	quadVAO uint32
	clearFB uint32
}

// NewDevice creates the device on the current context. gl.Init must have
// been called.
func NewDevice() (*Device, error) {
	d := &Device{}
	// No VBO needed - the composite vertex shader generates the triangle
	gl.GenVertexArrays(1, &d.quadVAO)
	gl.GenFramebuffers(1, &d.clearFB)
	if errCode := gl.GetError(); errCode != gl.NO_ERROR {
		d.Release()
		return nil, fmt.Errorf("failed to create GL objects: 0x%x", errCode)
	}
	return d, nil
}

// SupportsCompute checks the context version for compute shaders
func (d *Device) SupportsCompute() bool {
	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	return major > 4 || (major == 4 && minor >= 3)
}

func (d *Device) CompileCompute(name, source string) (gpu.ProgramID, error) {
	if !d.SupportsCompute() {
		return 0, gpu.ErrComputeUnsupported
	}
	shader, err := compileShader(name, "compute", source, gl.COMPUTE_SHADER)
	if err != nil {
		return 0, err
	}
	program, err := linkProgram(name, shader)
	if err != nil {
		return 0, err
	}
	return gpu.ProgramID(program), nil
}

func (d *Device) CompileRender(name, vertex, fragment string) (gpu.ProgramID, error) {
	vs, err := compileShader(name, "vertex", vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fs, err := compileShader(name, "fragment", fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, err
	}
	program, err := linkProgram(name, vs, fs)
	if err != nil {
		return 0, err
	}
	return gpu.ProgramID(program), nil
}

func (d *Device) UniformLocation(program gpu.ProgramID, name string) int32 {
	return gl.GetUniformLocation(uint32(program), gl.Str(name+"\x00"))
}

func (d *Device) DeleteProgram(program gpu.ProgramID) {
	gl.DeleteProgram(uint32(program))
}

// CreateTexture allocates immutable RGBA32F storage with linear filtering
// and clamp-to-edge wrapping.
func (d *Device) CreateTexture(width, height int) (gpu.TextureID, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: invalid size %dx%d", gpu.ErrTextureAllocation, width, height)
	}
	gl.GetError()

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexStorage2D(gl.TEXTURE_2D, 1, gl.RGBA32F, int32(width), int32(height))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if errCode := gl.GetError(); errCode != gl.NO_ERROR {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("%w: %dx%d RGBA32F (GL error 0x%x)", gpu.ErrTextureAllocation, width, height, errCode)
	}
	d.ClearTexture(gpu.TextureID(tex))
	return gpu.TextureID(tex), nil
}

// ClearTexture zeroes a texture through a framebuffer attachment
func (d *Device) ClearTexture(texture gpu.TextureID) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.clearFB)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(texture), 0)
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, 0, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (d *Device) DeleteTexture(texture gpu.TextureID) {
	tex := uint32(texture)
	gl.DeleteTextures(1, &tex)
}

// Dispatch runs a compute kernel and waits on a full memory barrier
func (d *Device) Dispatch(cmd gpu.DispatchCmd) {
	gl.UseProgram(uint32(cmd.Program))
	setUniforms(cmd.Uniforms)

	for _, img := range cmd.Images {
		gl.BindImageTexture(img.Unit, uint32(img.Texture), 0, false, 0, imageAccess(img.Access), gl.RGBA32F)
	}

	gl.DispatchCompute(cmd.GroupsX, cmd.GroupsY, 1)

	// Make writes visible to the next dispatch and to texture sampling
	gl.MemoryBarrier(gl.ALL_BARRIER_BITS)
}

// Draw clears the default framebuffer and draws the fullscreen triangle
func (d *Device) Draw(cmd gpu.DrawCmd) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(cmd.Width), int32(cmd.Height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.UseProgram(uint32(cmd.Program))
	if cmd.Texture != 0 {
		gl.ActiveTexture(gl.TEXTURE0 + cmd.SamplerUnit)
		gl.BindTexture(gl.TEXTURE_2D, uint32(cmd.Texture))
	}
	setUniforms(cmd.Uniforms)

	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)

	if cmd.Texture != 0 {
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
}

// Release deletes the device's own GL objects
func (d *Device) Release() {
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		d.quadVAO = 0
	}
	if d.clearFB != 0 {
		gl.DeleteFramebuffers(1, &d.clearFB)
		d.clearFB = 0
	}
}

func setUniforms(uniforms []gpu.Uniform) {
	for _, u := range uniforms {
		if u.Location == gpu.InvalidLocation {
			continue
		}
		switch v := u.Value.(type) {
		case float32:
			gl.Uniform1f(u.Location, v)
		case int32:
			gl.Uniform1i(u.Location, v)
		case mgl32.Vec2:
			gl.Uniform2f(u.Location, v[0], v[1])
		case mgl32.Vec3:
			gl.Uniform3f(u.Location, v[0], v[1], v[2])
		default:
			log.Printf("Warning: unsupported uniform type %T at location %d", u.Value, u.Location)
		}
	}
}

func imageAccess(a gpu.Access) uint32 {
	switch a {
	case gpu.ReadOnly:
		return gl.READ_ONLY
	case gpu.WriteOnly:
		return gl.WRITE_ONLY
	default:
		return gl.READ_WRITE
	}
}
