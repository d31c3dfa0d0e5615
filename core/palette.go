package core

import "github.com/go-gl/mathgl/mgl32"

// Palette ids understood by the splat and composite kernels.
const (
	PaletteWarm = 0
	PaletteCool = 1

	PaletteCount = 2
)

var palettes = [PaletteCount][2]mgl32.Vec3{
	PaletteWarm: {{1.2, 0.5, 0.2}, {0.1, 0.3, 0.9}},
	PaletteCool: {{0.2, 0.6, 1.0}, {1.0, 0.4, 0.7}},
}

// SplatColor maps a colour selector to one of the two triples of the palette.
// Even ids pick the first triple, odd ids the second. Unknown palettes use
// the warm palette.
func SplatColor(palette, colorID int) mgl32.Vec3 {
	pair := palettes[PaletteWarm]
	if palette == PaletteCool {
		pair = palettes[PaletteCool]
	}
	if colorID%2 == 0 {
		return pair[0]
	}
	return pair[1]
}

// PaletteName returns a display name for a palette id.
func PaletteName(palette int) string {
	if palette == PaletteCool {
		return "cool"
	}
	return "warm"
}
