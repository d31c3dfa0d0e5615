package simulation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluidsim/gpu"
	"fluidsim/gpu/cpu"
	"fluidsim/shaders"
)

func newCPUEngine(t *testing.T, gridSize, iterations int, opts ...cpu.Option) (*Engine, *cpu.Device) {
	t.Helper()
	dev := cpu.NewDevice(opts...)
	e := New(dev, shaders.Default(), WithLogger(quiet), WithQuality(gridSize, iterations))
	e.OnSurfaceResized(gridSize, gridSize)
	require.NoError(t, e.OnContextCreated())
	require.True(t, e.IsValid())
	return e, dev
}

func allZero(pix []float32) bool {
	for _, v := range pix {
		if v != 0 {
			return false
		}
	}
	return true
}

func sumSquares(pix []float32) float64 {
	var s float64
	for i := 0; i < len(pix); i += 4 {
		s += float64(pix[i]) * float64(pix[i])
	}
	return s
}

// projectedDivergence recomputes the divergence of the current velocity.
func projectedDivergence(t *testing.T, e *Engine, dev *cpu.Device) float64 {
	t.Helper()
	g := e.State().GridSize
	scratch, err := dev.CreateTexture(g, g)
	require.NoError(t, err)
	defer dev.DeleteTexture(scratch)

	k := e.kernels[shaders.KernelDivergence]
	k.Dispatch(g, g,
		[]gpu.ImageBinding{gpu.WriteImage(0, scratch), gpu.ReadImage(1, e.velocity.Read())},
		k.Param("texelSize", mgl32.Vec2{1 / float32(g), 1 / float32(g)}),
	)
	return sumSquares(dev.Texture(scratch).Pix)
}

func TestSplatIsProjected(t *testing.T) {
	if testing.Short() {
		t.Skip("full-resolution CPU solve")
	}

	run := func(iterations int) (centreX float32, before, after float64) {
		e, dev := newCPUEngine(t, 512, iterations)
		e.Step(0)
		e.EnqueueInteraction(256, 256, 4, 0, 0)
		e.Step(frame)

		centreX = dev.Texture(e.velocity.Read()).At(256, 256)[0]
		before = sumSquares(dev.Texture(e.divergence.Texture()).Pix)
		after = projectedDivergence(t, e, dev)
		return centreX, before, after
	}

	centre24, before24, after24 := run(24)
	assert.Greater(t, centre24, float32(0))
	assert.Greater(t, before24, 0.0)
	assert.Less(t, after24, before24)

	_, before96, after96 := run(96)
	assert.InDelta(t, before24, before96, before24*1e-6, "pre-projection divergence does not depend on iterations")
	assert.Less(t, after96, after24)
}

func TestResetThenStepIsIdentity(t *testing.T) {
	e, dev := newCPUEngine(t, 64, 10)
	e.Step(0)
	e.EnqueueInteraction(32, 32, 3, -2, 1)
	e.Step(frame)
	require.False(t, allZero(dev.Texture(e.dye.Read()).Pix))

	e.Reset()
	e.Step(2 * frame)

	assert.True(t, allZero(dev.Texture(e.velocity.Read()).Pix))
	assert.True(t, allZero(dev.Texture(e.dye.Read()).Pix))
	assert.True(t, allZero(dev.Texture(e.pressure.Read()).Pix))
}

func TestPressureSolveDeterministic(t *testing.T) {
	run := func(workers int) []float32 {
		e, dev := newCPUEngine(t, 64, 30, cpu.WithWorkers(workers))
		e.Step(0)
		e.EnqueueInteraction(20, 40, 5, 3, 0)
		e.EnqueueInteraction(44, 12, -2, 6, 1)
		e.Step(frame)
		return append([]float32(nil), dev.Texture(e.pressure.Read()).Pix...)
	}

	first := run(1)
	assert.False(t, allZero(first))
	assert.Equal(t, first, run(1))
	assert.Equal(t, first, run(4))
}

func TestExtremeInteractionsKeepFieldsFinite(t *testing.T) {
	e, dev := newCPUEngine(t, 64, 24)
	e.Step(0)
	e.EnqueueInteraction(32, 32, 1e38, 0, 0)
	e.EnqueueInteraction(16, 16, 0, -1e38, 1)
	e.EnqueueInteraction(float32(math.NaN()), 8, 1, 1, 0)
	e.EnqueueInteraction(8, 8, float32(math.Inf(1)), 0, 0)
	for i := int64(1); i <= 5; i++ {
		e.Step(i * frame)
	}

	for _, f := range []*gpu.DoubleBufferedField{e.velocity, e.dye, e.pressure} {
		pix := dev.Texture(f.Read()).Pix
		bad := 0
		for _, v := range pix {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				bad++
			}
		}
		assert.Zero(t, bad, "non-finite components")
	}
	assert.False(t, allZero(dev.Texture(e.velocity.Read()).Pix))
}

func TestSetQualityYieldsClearedFields(t *testing.T) {
	tests := []struct{ from, to int }{
		{64, 32},
		{32, 128},
		{64, 64},
	}

	for _, tt := range tests {
		e, dev := newCPUEngine(t, tt.from, 8)
		e.Step(0)
		e.EnqueueInteraction(10, 10, 4, 4, 0)
		e.Step(frame)

		require.NoError(t, e.SetQuality(tt.to, 12))
		assert.True(t, e.IsValid())

		for _, f := range []*gpu.DoubleBufferedField{e.velocity, e.dye, e.pressure} {
			w, h := f.Size()
			assert.Equal(t, tt.to, w)
			assert.Equal(t, tt.to, h)
			assert.True(t, allZero(dev.Texture(f.Read()).Pix))
			assert.True(t, allZero(dev.Texture(f.Write()).Pix))
		}
		assert.True(t, allZero(dev.Texture(e.divergence.Texture()).Pix))
		assert.Equal(t, 7, dev.TextureCount())
	}
}

func TestFieldAllocationIsAllOrNothing(t *testing.T) {
	dev := cpu.NewDevice()
	dev.FailTextureAfter = 3
	e := New(dev, shaders.Default(), WithLogger(quiet), WithQuality(32, 4))
	require.NoError(t, e.OnContextCreated())

	assert.False(t, e.IsValid())
	assert.False(t, e.Degraded())
	assert.Zero(t, dev.TextureCount())

	e.EnqueueInteraction(1, 1, 1, 1, 0)
	e.Step(0)
	e.Step(frame)
	assert.Zero(t, dev.DispatchCount())

	e.Render()
	assert.Equal(t, 1, dev.DrawCount())
}

func TestRenderCompositesDye(t *testing.T) {
	e, dev := newCPUEngine(t, 64, 8)
	e.OnSurfaceResized(64, 64)
	e.Step(0)
	e.EnqueueInteraction(32, 32, 0, 0, 0)
	e.Step(frame)
	e.Render()

	img := dev.Frame()
	require.NotNil(t, img)
	centre := img.RGBAAt(32, 32)
	corner := img.RGBAAt(0, 0)
	assert.Greater(t, centre.R, corner.R)
	assert.Greater(t, centre.R, centre.B, "warm palette, even colour id")
}
