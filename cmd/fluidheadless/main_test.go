package main

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluidsim/gpu/cpu"
)

func TestSwirlFollowsCircle(t *testing.T) {
	for _, frame := range []int{1, 10, 40} {
		s := swirl(frame, 200, 100)
		r := math.Hypot(float64(s.X-100), float64(s.Y-50))
		assert.InDelta(t, 30, r, 1e-3)
		assert.NotZero(t, s.DX*s.DX+s.DY*s.DY)
	}
	assert.Equal(t, 0, swirl(1, 200, 100).ColorID)
	assert.Equal(t, 1, swirl(14, 200, 100).ColorID)
}

func TestRunWritesDye(t *testing.T) {
	dev := cpu.NewDevice(cpu.WithWorkers(2))
	img, err := run(dev, 64, 8, 0, 12, 48, 32)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 48, img.Rect.Dx())
	assert.Equal(t, 32, img.Rect.Dy())

	lit := false
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 || img.Pix[i+1] > 0 || img.Pix[i+2] > 0 {
			lit = true
			break
		}
	}
	assert.True(t, lit, "swirl left no dye")
	assert.Zero(t, dev.TextureCount(), "engine destroyed its fields")

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, writePNG(path, img))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Rect, decoded.Bounds())
}
