package gpu

import (
	"fmt"
)

// Field is a single square-or-rectangular texture used as scratch storage.
type Field struct {
	dev    Device
	tex    TextureID
	width  int
	height int
}

// NewField returns an unallocated field on dev.
func NewField(dev Device) *Field {
	return &Field{dev: dev}
}

// Allocate releases any existing storage and creates a new texture.
func (f *Field) Allocate(width, height int) error {
	f.Destroy()
	tex, err := f.dev.CreateTexture(width, height)
	if err != nil {
		return fmt.Errorf("allocate %dx%d field: %w", width, height, err)
	}
	f.tex, f.width, f.height = tex, width, height
	return nil
}

// Texture returns the backing texture, zero when unallocated.
func (f *Field) Texture() TextureID { return f.tex }

// Size returns the allocated dimensions.
func (f *Field) Size() (int, int) { return f.width, f.height }

// IsValid reports whether the backing texture exists.
func (f *Field) IsValid() bool { return f.tex != 0 }

// Clear zeroes the texture contents.
func (f *Field) Clear() {
	if f.tex != 0 {
		f.dev.ClearTexture(f.tex)
	}
}

// Destroy releases the texture. Idempotent.
func (f *Field) Destroy() {
	if f.tex != 0 {
		f.dev.DeleteTexture(f.tex)
	}
	f.tex, f.width, f.height = 0, 0, 0
}

// Abandon forgets the texture without deleting it, for storage that died
// with its context.
func (f *Field) Abandon() {
	f.tex, f.width, f.height = 0, 0, 0
}

// DoubleBufferedField is a ping-pong pair of equally sized textures. A pass
// reads Read(), writes Write() and then calls Swap(); no pass ever binds the
// same texture for both roles.
type DoubleBufferedField struct {
	dev       Device
	a, b      TextureID
	activeIsA bool
	width     int
	height    int
}

// NewDoubleBufferedField returns an unallocated pair on dev.
func NewDoubleBufferedField(dev Device) *DoubleBufferedField {
	return &DoubleBufferedField{dev: dev, activeIsA: true}
}

// Allocate destroys any existing storage and creates two fresh textures.
// On failure nothing stays allocated and IsValid reports false.
func (f *DoubleBufferedField) Allocate(width, height int) error {
	f.Destroy()

	a, err := f.dev.CreateTexture(width, height)
	if err != nil {
		return fmt.Errorf("allocate %dx%d buffer A: %w", width, height, err)
	}
	b, err := f.dev.CreateTexture(width, height)
	if err != nil {
		f.dev.DeleteTexture(a)
		return fmt.Errorf("allocate %dx%d buffer B: %w", width, height, err)
	}

	f.a, f.b = a, b
	f.activeIsA = true
	f.width, f.height = width, height
	return nil
}

// IsValid reports whether both buffers exist.
func (f *DoubleBufferedField) IsValid() bool {
	return f.a != 0 && f.b != 0
}

// Size returns the allocated dimensions.
func (f *DoubleBufferedField) Size() (int, int) { return f.width, f.height }

// Read returns the active buffer.
func (f *DoubleBufferedField) Read() TextureID {
	if f.activeIsA {
		return f.a
	}
	return f.b
}

// Write returns the inactive buffer.
func (f *DoubleBufferedField) Write() TextureID {
	if f.activeIsA {
		return f.b
	}
	return f.a
}

// Swap flips the read and write roles.
func (f *DoubleBufferedField) Swap() {
	f.activeIsA = !f.activeIsA
}

// Clear resets both buffers to zero so a later swap never reveals stale data.
func (f *DoubleBufferedField) Clear() {
	if f.a != 0 {
		f.dev.ClearTexture(f.a)
	}
	if f.b != 0 {
		f.dev.ClearTexture(f.b)
	}
	f.activeIsA = true
}

// Destroy releases both textures. Idempotent.
func (f *DoubleBufferedField) Destroy() {
	if f.a != 0 {
		f.dev.DeleteTexture(f.a)
	}
	if f.b != 0 {
		f.dev.DeleteTexture(f.b)
	}
	f.a, f.b = 0, 0
	f.activeIsA = true
	f.width, f.height = 0, 0
}

// Abandon forgets both textures without deleting them.
func (f *DoubleBufferedField) Abandon() {
	f.a, f.b = 0, 0
	f.activeIsA = true
	f.width, f.height = 0, 0
}
