package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// TestToFieldSpace checks the surface-to-field conversion, including the y flip
func TestToFieldSpace(t *testing.T) {
	tests := []struct {
		name        string
		sample      InteractionSample
		width       int
		height      int
		gridSize    int
		wantPoint   mgl32.Vec2
		wantImpulse mgl32.Vec2
		wantAspect  float32
	}{
		{
			name:        "Center no motion",
			sample:      InteractionSample{X: 256, Y: 256},
			width:       512,
			height:      512,
			gridSize:    512,
			wantPoint:   mgl32.Vec2{0.5, 0.5},
			wantImpulse: mgl32.Vec2{0, 0},
			wantAspect:  1,
		},
		{
			name:        "Top-left corner maps to bottom-left origin flip",
			sample:      InteractionSample{X: 0, Y: 0},
			width:       800,
			height:      400,
			gridSize:    256,
			wantPoint:   mgl32.Vec2{0, 1},
			wantImpulse: mgl32.Vec2{0, 0},
			wantAspect:  2,
		},
		{
			name:        "Rightward drag",
			sample:      InteractionSample{X: 100, Y: 50, DX: 10},
			width:       200,
			height:      100,
			gridSize:    512,
			wantPoint:   mgl32.Vec2{0.5, 0.5},
			wantImpulse: mgl32.Vec2{10.0 / 200 * 512 * 6, 0},
			wantAspect:  2,
		},
		{
			name:        "Downward drag becomes negative y impulse",
			sample:      InteractionSample{X: 50, Y: 50, DY: 5},
			width:       100,
			height:      100,
			gridSize:    128,
			wantPoint:   mgl32.Vec2{0.5, 0.5},
			wantImpulse: mgl32.Vec2{0, -5.0 / 100 * 128 * 6},
			wantAspect:  1,
		},
		{
			name:        "Zero sized surface is treated as one pixel",
			sample:      InteractionSample{X: 0, Y: 0, DX: 1},
			width:       0,
			height:      0,
			gridSize:    64,
			wantPoint:   mgl32.Vec2{0, 1},
			wantImpulse: mgl32.Vec2{64 * 6, 0},
			wantAspect:  1,
		},
		{
			name:        "Huge drag is clamped to one surface extent",
			sample:      InteractionSample{X: 50, Y: 25, DX: 1e38, DY: -1e30},
			width:       100,
			height:      50,
			gridSize:    64,
			wantPoint:   mgl32.Vec2{0.5, 0.5},
			wantImpulse: mgl32.Vec2{64 * 6, 64 * 6},
			wantAspect:  2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToFieldSpace(tc.sample, tc.width, tc.height, tc.gridSize, 6)
			assert.InDelta(t, tc.wantPoint.X(), got.Point.X(), 1e-6)
			assert.InDelta(t, tc.wantPoint.Y(), got.Point.Y(), 1e-6)
			assert.InDelta(t, tc.wantImpulse.X(), got.Impulse.X(), 1e-3)
			assert.InDelta(t, tc.wantImpulse.Y(), got.Impulse.Y(), 1e-3)
			assert.InDelta(t, tc.wantAspect, got.Aspect, 1e-6)
		})
	}
}

func TestSampleIsFinite(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())

	assert.True(t, InteractionSample{X: 1, Y: 2, DX: 1e38, DY: -1e38}.IsFinite())
	assert.False(t, InteractionSample{X: nan}.IsFinite())
	assert.False(t, InteractionSample{Y: -inf}.IsFinite())
	assert.False(t, InteractionSample{DX: inf}.IsFinite())
	assert.False(t, InteractionSample{DY: nan}.IsFinite())
}

func TestRescaleToSurface(t *testing.T) {
	x, y := RescaleToSurface(50, 25, 100, 100, 640, 480)
	assert.InDelta(t, 320, x, 1e-4)
	assert.InDelta(t, 120, y, 1e-4)

	// Unknown client size leaves coordinates untouched
	x, y = RescaleToSurface(7, 9, 0, 0, 640, 480)
	assert.Equal(t, float32(7), x)
	assert.Equal(t, float32(9), y)
}

func TestSplatColorParity(t *testing.T) {
	tests := []struct {
		palette int
		colorID int
		want    mgl32.Vec3
	}{
		{PaletteWarm, 0, mgl32.Vec3{1.2, 0.5, 0.2}},
		{PaletteWarm, 2, mgl32.Vec3{1.2, 0.5, 0.2}},
		{PaletteWarm, 1, mgl32.Vec3{0.1, 0.3, 0.9}},
		{PaletteWarm, 7, mgl32.Vec3{0.1, 0.3, 0.9}},
		{PaletteWarm, -3, mgl32.Vec3{0.1, 0.3, 0.9}},
		{PaletteCool, 0, mgl32.Vec3{0.2, 0.6, 1.0}},
		{PaletteCool, 4, mgl32.Vec3{0.2, 0.6, 1.0}},
		{PaletteCool, 1, mgl32.Vec3{1.0, 0.4, 0.7}},
		{9, 0, mgl32.Vec3{1.2, 0.5, 0.2}},
		{9, 1, mgl32.Vec3{0.1, 0.3, 0.9}},
	}

	for _, tc := range tests {
		got := SplatColor(tc.palette, tc.colorID)
		assert.Equal(t, tc.want, got, "palette %d colour %d", tc.palette, tc.colorID)
	}

	// Deterministic across calls
	for i := 0; i < 10; i++ {
		assert.Equal(t, SplatColor(PaletteCool, 3), SplatColor(PaletteCool, 3))
	}
}

func TestNextQualityPreset(t *testing.T) {
	assert.Equal(t, 512, NextQualityPreset(256).GridSize)
	assert.Equal(t, 1024, NextQualityPreset(512).GridSize)
	assert.Equal(t, 256, NextQualityPreset(1024).GridSize)
	assert.Equal(t, 256, NextQualityPreset(333).GridSize)
}
