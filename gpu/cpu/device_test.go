package cpu

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluidsim/gpu"
)

const stubSource = "#version 430 core\nvoid main() {}\n"

func mustKernel(t *testing.T, dev *Device, name string) *gpu.KernelProgram {
	t.Helper()
	k, err := gpu.CompileKernel(dev, name, stubSource)
	require.NoError(t, err)
	return k
}

func mustTexture(t *testing.T, dev *Device, w, h int) gpu.TextureID {
	t.Helper()
	id, err := dev.CreateTexture(w, h)
	require.NoError(t, err)
	return id
}

func TestCompileCompute(t *testing.T) {
	dev := NewDevice()

	_, err := dev.CompileCompute("advect", "")
	var ce *gpu.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "compute", ce.Stage)

	_, err = dev.CompileCompute("advect", "#version 430 core\n#error broken kernel\n")
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Log, "broken kernel")

	_, err = dev.CompileCompute("vorticity", stubSource)
	require.True(t, errors.As(err, &ce))

	id, err := dev.CompileCompute("jacobi", stubSource)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, int32(1), dev.UniformLocation(id, "rBeta"))
	assert.Equal(t, gpu.InvalidLocation, dev.UniformLocation(id, "missing"))
}

func TestWithoutCompute(t *testing.T) {
	dev := NewDevice(WithoutCompute())
	assert.False(t, dev.SupportsCompute())

	_, err := dev.CompileCompute("advect", stubSource)
	assert.True(t, errors.Is(err, gpu.ErrComputeUnsupported))

	_, err = dev.CompileRender("composite", stubSource, stubSource)
	assert.NoError(t, err)
}

func TestCreateTextureFailure(t *testing.T) {
	dev := NewDevice()
	dev.FailTextureAfter = 1

	_, err := dev.CreateTexture(4, 4)
	require.NoError(t, err)
	_, err = dev.CreateTexture(4, 4)
	assert.True(t, errors.Is(err, gpu.ErrTextureAllocation))

	_, err = NewDevice().CreateTexture(0, 4)
	assert.True(t, errors.Is(err, gpu.ErrTextureAllocation))
}

func TestAdvectUniformFlow(t *testing.T) {
	dev := NewDevice()
	k := mustKernel(t, dev, "advect")
	src := mustTexture(t, dev, 16, 16)
	vel := mustTexture(t, dev, 16, 16)
	dst := mustTexture(t, dev, 16, 16)

	dev.Texture(src).Set(5, 5, [4]float32{1, 0, 0, 1})
	dev.Texture(vel).Fill([4]float32{1, 0, 0, 0})

	k.Dispatch(16, 16,
		[]gpu.ImageBinding{gpu.WriteImage(0, dst), gpu.ReadImage(1, src), gpu.ReadImage(2, vel)},
		k.Param("timestep", float32(1)),
		k.Param("dissipation", float32(0.5)),
	)

	out := dev.Texture(dst)
	assert.InDelta(t, 0.5, out.At(6, 5)[0], 1e-6)
	assert.InDelta(t, 0.5, out.At(6, 5)[3], 1e-6)
	assert.InDelta(t, 0, out.At(5, 5)[0], 1e-6)
	assert.Equal(t, 1, dev.DispatchCount())
}

func TestSplatGaussian(t *testing.T) {
	dev := NewDevice()
	k := mustKernel(t, dev, "splat")
	src := mustTexture(t, dev, 16, 16)
	dst := mustTexture(t, dev, 16, 16)

	k.Dispatch(16, 16,
		[]gpu.ImageBinding{gpu.WriteImage(0, dst), gpu.ReadImage(1, src)},
		k.Param("point", mgl32.Vec2{0.5, 0.5}),
		k.Param("color", mgl32.Vec3{1, 0, 0}),
		k.Param("radius", float32(0.1)),
		k.Param("aspect", float32(1)),
		k.Param("affectsVelocity", int32(0)),
	)

	out := dev.Texture(dst)
	centre := out.At(8, 8)
	assert.Greater(t, centre[3], float32(0.8))
	assert.InDelta(t, centre[3], centre[0], 1e-6)
	assert.Zero(t, centre[1])
	assert.Less(t, out.At(0, 0)[3], float32(1e-6))
}

func TestDivergenceOfLinearField(t *testing.T) {
	dev := NewDevice()
	k := mustKernel(t, dev, "divergence")
	vel := mustTexture(t, dev, 8, 8)
	div := mustTexture(t, dev, 8, 8)

	v := dev.Texture(vel)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v.Set(x, y, [4]float32{float32(x), 0, 0, 0})
		}
	}

	k.Dispatch(8, 8,
		[]gpu.ImageBinding{gpu.WriteImage(0, div), gpu.ReadImage(1, vel)},
		k.Param("texelSize", mgl32.Vec2{1.0 / 8, 1.0 / 8}),
	)

	out := dev.Texture(div)
	assert.InDelta(t, 1, out.At(4, 4)[0], 1e-5)
	assert.InDelta(t, 0.5, out.At(0, 4)[0], 1e-5)
}

func TestJacobiDeterministic(t *testing.T) {
	run := func() []float32 {
		dev := NewDevice(WithWorkers(3))
		k := mustKernel(t, dev, "jacobi")
		div := mustTexture(t, dev, 32, 32)
		field := gpu.NewDoubleBufferedField(dev)
		require.NoError(t, field.Allocate(32, 32))

		d := dev.Texture(div)
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				d.Set(x, y, [4]float32{float32((x*7+y*13)%5) - 2, 0, 0, 0})
			}
		}
		for i := 0; i < 20; i++ {
			k.Dispatch(32, 32,
				[]gpu.ImageBinding{gpu.WriteImage(0, field.Write()), gpu.ReadImage(1, field.Read()), gpu.ReadImage(2, div)},
				k.Param("alpha", float32(-1)),
				k.Param("rBeta", float32(0.25)),
			)
			field.Swap()
		}
		return append([]float32(nil), dev.Texture(field.Read()).Pix...)
	}

	assert.Equal(t, run(), run())
}

func TestDispatchRejectsAliasedImages(t *testing.T) {
	dev := NewDevice()
	k := mustKernel(t, dev, "jacobi")
	tex := mustTexture(t, dev, 8, 8)
	div := mustTexture(t, dev, 8, 8)

	assert.Panics(t, func() {
		k.Dispatch(8, 8, []gpu.ImageBinding{gpu.WriteImage(0, tex), gpu.ReadImage(1, tex), gpu.ReadImage(2, div)})
	})
}

func TestDrawGradientAndDensity(t *testing.T) {
	dev := NewDevice()
	k, err := gpu.CompileRenderKernel(dev, "composite", stubSource, stubSource)
	require.NoError(t, err)

	k.Draw(4, 2, 0, k.Param("palette", int32(0)), k.Param("aspect", float32(2)), k.Param("hasDensity", int32(0)))
	frame := dev.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, 4, frame.Rect.Dx())
	assert.Equal(t, 2, frame.Rect.Dy())
	assert.Equal(t, uint8(255), frame.RGBAAt(0, 0).A)
	assert.NotZero(t, frame.RGBAAt(0, 0).R)

	dye := mustTexture(t, dev, 4, 4)
	dev.Texture(dye).Fill([4]float32{0, 0, 0, 0})
	k.Draw(4, 2, dye, k.Param("hasDensity", int32(1)))
	px := dev.Frame().RGBAAt(1, 1)
	assert.Zero(t, px.R)
	assert.Zero(t, px.G)
	assert.Equal(t, 2, dev.DrawCount())
}

func TestDeleteReleasesResources(t *testing.T) {
	dev := NewDevice()
	k := mustKernel(t, dev, "project")
	tex := mustTexture(t, dev, 4, 4)
	assert.Equal(t, 1, dev.ProgramCount())
	assert.Equal(t, 1, dev.TextureCount())

	k.Release()
	k.Release()
	dev.DeleteTexture(tex)
	assert.Zero(t, dev.ProgramCount())
	assert.Zero(t, dev.TextureCount())
}
