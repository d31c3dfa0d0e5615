package cpu

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"fluidsim/core"
)

// Texture is RGBA float storage, row-major with row 0 at the bottom as in GL.
type Texture struct {
	Width, Height int
	Pix           []float32
}

// NewTexture returns a zeroed texture.
func NewTexture(width, height int) *Texture {
	return &Texture{Width: width, Height: height, Pix: make([]float32, width*height*4)}
}

// At returns the texel at (x, y) with coordinates clamped to the edge.
func (t *Texture) At(x, y int) [4]float32 {
	x = min(max(x, 0), t.Width-1)
	y = min(max(y, 0), t.Height-1)
	i := (y*t.Width + x) * 4
	return [4]float32{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// Set stores v at (x, y).
func (t *Texture) Set(x, y int, v [4]float32) {
	i := (y*t.Width + x) * 4
	copy(t.Pix[i:i+4], v[:])
}

// Fill stores v in every texel.
func (t *Texture) Fill(v [4]float32) {
	for i := 0; i < len(t.Pix); i += 4 {
		copy(t.Pix[i:i+4], v[:])
	}
}

// Bilinear samples at a position in texel index space (texel centres at
// integers), clamping to the edge.
func (t *Texture) Bilinear(px, py float32) [4]float32 {
	bx := float32(math.Floor(float64(px)))
	by := float32(math.Floor(float64(py)))
	fx, fy := px-bx, py-by
	ix, iy := int(bx), int(by)

	a := t.At(ix, iy)
	b := t.At(ix+1, iy)
	c := t.At(ix, iy+1)
	d := t.At(ix+1, iy+1)

	var out [4]float32
	for k := range out {
		bottom := a[k] + (b[k]-a[k])*fx
		top := c[k] + (d[k]-c[k])*fx
		out[k] = bottom + (top-bottom)*fy
	}
	return out
}

// binding is the resolved parameter and image state of one dispatch.
type binding struct {
	values map[string]any
	images [4]*Texture
}

func (b *binding) float(name string) float32 {
	v, _ := b.values[name].(float32)
	return v
}

func (b *binding) int(name string) int32 {
	v, _ := b.values[name].(int32)
	return v
}

func (b *binding) vec2(name string) mgl32.Vec2 {
	v, _ := b.values[name].(mgl32.Vec2)
	return v
}

func (b *binding) vec3(name string) mgl32.Vec3 {
	v, _ := b.values[name].(mgl32.Vec3)
	return v
}

// texelSize falls back to 1/size when the parameter is unbound.
func (b *binding) texelSize(size *Texture) mgl32.Vec2 {
	t := b.vec2("texelSize")
	if t.X() <= 0 || t.Y() <= 0 {
		return mgl32.Vec2{1 / float32(size.Width), 1 / float32(size.Height)}
	}
	return t
}

// kernelFunc resolves a dispatch's bindings once and returns the per-cell body.
type kernelFunc func(b *binding) func(x, y int)

type kernelSpec struct {
	params []string
	run    kernelFunc
}

var computeKernels = map[string]kernelSpec{
	"advect":     {params: []string{"timestep", "dissipation"}, run: advect},
	"splat":      {params: []string{"point", "delta", "color", "radius", "aspect", "affectsVelocity"}, run: splat},
	"divergence": {params: []string{"texelSize"}, run: divergence},
	"jacobi":     {params: []string{"alpha", "rBeta"}, run: jacobi},
	"project":    {params: []string{"texelSize"}, run: project},
}

var compositeParams = []string{"palette", "aspect", "hasDensity", "density"}

// advect: dst = dissipation * src(x - dt*velocity(x)), bilinear backtrace.
func advect(b *binding) func(x, y int) {
	dst, src, vel := b.images[0], b.images[1], b.images[2]
	dt, dissipation := b.float("timestep"), b.float("dissipation")
	maxX, maxY := float32(dst.Width), float32(dst.Height)

	return func(x, y int) {
		v := vel.At(x, y)
		px := mgl32.Clamp(float32(x)-dt*v[0], -1, maxX)
		py := mgl32.Clamp(float32(y)-dt*v[1], -1, maxY)
		s := src.Bilinear(px, py)
		for k := range s {
			s[k] *= dissipation
		}
		dst.Set(x, y, s)
	}
}

// splat adds a Gaussian of the given radius centred on point, either to the
// velocity (delta) or to the dye (colour plus coverage in alpha).
func splat(b *binding) func(x, y int) {
	dst, src := b.images[0], b.images[1]
	point, delta, col := b.vec2("point"), b.vec2("delta"), b.vec3("color")
	radius, aspect := b.float("radius"), b.float("aspect")
	affectsVelocity := b.int("affectsVelocity") != 0
	r2 := max(radius*radius, 1e-12)
	w, h := float32(dst.Width), float32(dst.Height)

	return func(x, y int) {
		dx := ((float32(x)+0.5)/w - point.X()) * aspect
		dy := (float32(y)+0.5)/h - point.Y()
		weight := float32(math.Exp(float64(-(dx*dx + dy*dy) / r2)))

		c := src.At(x, y)
		if affectsVelocity {
			c[0] += delta.X() * weight
			c[1] += delta.Y() * weight
		} else {
			c[0] += col.X() * weight
			c[1] += col.Y() * weight
			c[2] += col.Z() * weight
			c[3] += weight
		}
		dst.Set(x, y, c)
	}
}

// neighbourCell converts a normalized coordinate back to a cell index.
func neighbourCell(u, texel float32) int {
	return int(math.Floor(float64(u / texel)))
}

// divergence: 0.5 * ((R.x - L.x) + (T.y - B.y)) with clamped neighbours.
func divergence(b *binding) func(x, y int) {
	dst, vel := b.images[0], b.images[1]
	texel := b.texelSize(dst)
	tx, ty := texel.X(), texel.Y()

	return func(x, y int) {
		u := (float32(x) + 0.5) * tx
		v := (float32(y) + 0.5) * ty
		cx, cy := neighbourCell(u, tx), neighbourCell(v, ty)
		l := vel.At(neighbourCell(u-tx, tx), cy)
		r := vel.At(neighbourCell(u+tx, tx), cy)
		bt := vel.At(cx, neighbourCell(v-ty, ty))
		t := vel.At(cx, neighbourCell(v+ty, ty))
		div := 0.5 * ((r[0] - l[0]) + (t[1] - bt[1]))
		dst.Set(x, y, [4]float32{div, 0, 0, 0})
	}
}

// jacobi: one relaxation of lap(p) = div, p' = (L + R + B + T + alpha*div) * rBeta.
func jacobi(b *binding) func(x, y int) {
	dst, p, div := b.images[0], b.images[1], b.images[2]
	alpha, rBeta := b.float("alpha"), b.float("rBeta")

	return func(x, y int) {
		l := p.At(x-1, y)[0]
		r := p.At(x+1, y)[0]
		bt := p.At(x, y-1)[0]
		t := p.At(x, y+1)[0]
		rhs := div.At(x, y)[0]
		dst.Set(x, y, [4]float32{(l + r + bt + t + alpha*rhs) * rBeta, 0, 0, 0})
	}
}

// project subtracts the central-difference pressure gradient from velocity.
func project(b *binding) func(x, y int) {
	dst, vel, p := b.images[0], b.images[1], b.images[2]
	texel := b.texelSize(dst)
	tx, ty := texel.X(), texel.Y()

	return func(x, y int) {
		u := (float32(x) + 0.5) * tx
		v := (float32(y) + 0.5) * ty
		cx, cy := neighbourCell(u, tx), neighbourCell(v, ty)
		l := p.At(neighbourCell(u-tx, tx), cy)[0]
		r := p.At(neighbourCell(u+tx, tx), cy)[0]
		bt := p.At(cx, neighbourCell(v-ty, ty))[0]
		t := p.At(cx, neighbourCell(v+ty, ty))[0]

		c := vel.At(x, y)
		c[0] -= 0.5 * (r - l)
		c[1] -= 0.5 * (t - bt)
		dst.Set(x, y, c)
	}
}

// composite shades one output pixel: the tone-mapped dye when a density
// texture is bound, else the palette gradient.
func composite(b *binding, density *Texture, img *image.RGBA, x, y, width, height int) {
	palette := int(b.int("palette"))
	aspect := b.float("aspect")
	hasDensity := b.int("hasDensity") == 1 && density != nil

	u := (float32(x) + 0.5) / float32(width)
	v := 1 - (float32(y)+0.5)/float32(height)

	var rgb mgl32.Vec3
	if hasDensity {
		d := density.Bilinear(u*float32(density.Width)-0.5, v*float32(density.Height)-0.5)
		for k := 0; k < 3; k++ {
			rgb[k] = 1 - float32(math.Exp(float64(-max(d[k], 0))))
		}
	} else {
		warm := core.SplatColor(palette, 0)
		cool := core.SplatColor(palette, 1)
		t := mgl32.Clamp(0.5+0.5*((u-0.5)*aspect+(v-0.5)), 0, 1)
		rgb = warm.Mul(1 - t).Add(cool.Mul(t)).Mul(0.25)
	}

	img.SetRGBA(x, y, color.RGBA{R: to8(rgb[0]), G: to8(rgb[1]), B: to8(rgb[2]), A: 255})
}

func to8(c float32) uint8 {
	return uint8(mgl32.Clamp(c, 0, 1)*255 + 0.5)
}
