package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SplatParams is an interaction sample expressed in field space.
type SplatParams struct {
	Point   mgl32.Vec2 // normalized [0,1], origin bottom-left
	Impulse mgl32.Vec2 // velocity impulse in cells per second
	Aspect  float32    // surface width / height
}

// IsFinite reports whether every coordinate of the sample is a finite number.
func (s InteractionSample) IsFinite() bool {
	for _, v := range [...]float32{s.X, s.Y, s.DX, s.DY} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// ToFieldSpace converts a sample in surface pixels (origin top-left) into
// normalized field coordinates with y flipped, and scales the pointer delta
// by gridSize*force to obtain the velocity impulse. The delta is clamped to
// one surface extent per axis so the impulse stays bounded.
func ToFieldSpace(s InteractionSample, surfaceWidth, surfaceHeight, gridSize int, force float32) SplatParams {
	w := float32(max(surfaceWidth, 1))
	h := float32(max(surfaceHeight, 1))
	scale := float32(gridSize) * force
	dx := mgl32.Clamp(s.DX, -w, w)
	dy := mgl32.Clamp(s.DY, -h, h)

	return SplatParams{
		Point:   mgl32.Vec2{s.X / w, 1 - s.Y/h},
		Impulse: mgl32.Vec2{dx / w * scale, -dy / h * scale},
		Aspect:  w / h,
	}
}

// RescaleToSurface maps a point measured on a client canvas of size
// fromW×fromH onto a surface of size toW×toH.
func RescaleToSurface(x, y, fromW, fromH float32, toW, toH int) (float32, float32) {
	if fromW <= 0 || fromH <= 0 {
		return x, y
	}
	return x / fromW * float32(toW), y / fromH * float32(toH)
}
