package mandelzoom

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Palette maps escape-time values to colors. Colors is a dense lookup table
// built from a handful of gradient stops; Inside colors points that never
// escape within the iteration budget.
type Palette struct {
	Colors []color.RGBA
	Inside color.RGBA
}

// At returns the table color for t in [0, 1], blending linearly between
// adjacent entries. Out-of-range t is clamped to the table ends.
func (p Palette) At(t float64) color.RGBA {
	n := len(p.Colors)
	if n == 0 {
		return p.Inside
	}
	if n == 1 || t <= 0 {
		return p.Colors[0]
	}
	if t >= 1 {
		return p.Colors[n-1]
	}
	f := t * float64(n-1)
	i := int(f)
	frac := f - float64(i)
	a, b := p.Colors[i], p.Colors[i+1]
	return color.RGBA{
		R: lerp8(a.R, b.R, frac),
		G: lerp8(a.G, b.G, frac),
		B: lerp8(a.B, b.B, frac),
		A: 255,
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// GradientStop anchors a color at a position in [0, 1]. Stops must be
// strictly increasing in Pos.
type GradientStop struct {
	Pos   float64
	Color color.RGBA
}

// NewGradient interpolates stops into a size-entry Palette table, one
// piecewise-linear fit per channel.
func NewGradient(inside color.RGBA, size int, stops ...GradientStop) (Palette, error) {
	if size < 2 {
		return Palette{}, fmt.Errorf("palette size %d too small", size)
	}
	xs := make([]float64, len(stops))
	rs := make([]float64, len(stops))
	gs := make([]float64, len(stops))
	bs := make([]float64, len(stops))
	for i, s := range stops {
		xs[i] = s.Pos
		rs[i] = float64(s.Color.R)
		gs[i] = float64(s.Color.G)
		bs[i] = float64(s.Color.B)
	}

	var r, g, b interp.PiecewiseLinear
	if err := r.Fit(xs, rs); err != nil {
		return Palette{}, fmt.Errorf("fit gradient stops: %w", err)
	}
	if err := g.Fit(xs, gs); err != nil {
		return Palette{}, fmt.Errorf("fit gradient stops: %w", err)
	}
	if err := b.Fit(xs, bs); err != nil {
		return Palette{}, fmt.Errorf("fit gradient stops: %w", err)
	}

	colors := make([]color.RGBA, size)
	for i := range colors {
		t := float64(i) / float64(size-1)
		colors[i] = color.RGBA{
			R: uint8(r.Predict(t) + 0.5),
			G: uint8(g.Predict(t) + 0.5),
			B: uint8(b.Predict(t) + 0.5),
			A: 255,
		}
	}
	return Palette{Colors: colors, Inside: inside}, nil
}

func mustGradient(inside color.RGBA, size int, stops ...GradientStop) Palette {
	p, err := NewGradient(inside, size, stops...)
	if err != nil {
		panic(err)
	}
	return p
}

// PaletteClassic is the familiar blue-gold ramp seen in most Mandelbrot
// renderings, 16 anchor colors spread evenly and expanded to 256 entries.
var PaletteClassic = mustGradient(color.RGBA{A: 255}, 256, classicStops()...)

func classicStops() []GradientStop {
	anchors := []color.RGBA{
		{66, 30, 15, 255},
		{25, 7, 26, 255},
		{9, 1, 47, 255},
		{4, 4, 73, 255},
		{0, 7, 100, 255},
		{12, 44, 138, 255},
		{24, 82, 177, 255},
		{57, 125, 209, 255},
		{134, 181, 229, 255},
		{211, 236, 248, 255},
		{241, 233, 191, 255},
		{248, 201, 95, 255},
		{255, 170, 0, 255},
		{204, 128, 0, 255},
		{153, 87, 0, 255},
		{106, 52, 3, 255},
	}
	stops := make([]GradientStop, len(anchors))
	for i, c := range anchors {
		stops[i] = GradientStop{Pos: float64(i) / float64(len(anchors)-1), Color: c}
	}
	return stops
}

var PaletteFire = mustGradient(color.RGBA{A: 255}, 256,
	GradientStop{0, color.RGBA{0, 0, 0, 255}},
	GradientStop{0.3, color.RGBA{180, 30, 0, 255}},
	GradientStop{0.6, color.RGBA{255, 140, 0, 255}},
	GradientStop{0.85, color.RGBA{255, 220, 60, 255}},
	GradientStop{1, color.RGBA{255, 255, 255, 255}},
)

var PaletteIce = mustGradient(color.RGBA{A: 255}, 256,
	GradientStop{0, color.RGBA{0, 0, 0, 255}},
	GradientStop{0.35, color.RGBA{0, 40, 120, 255}},
	GradientStop{0.7, color.RGBA{60, 160, 220, 255}},
	GradientStop{1, color.RGBA{255, 255, 255, 255}},
)

var PaletteGray = mustGradient(color.RGBA{A: 255}, 256,
	GradientStop{0, color.RGBA{0, 0, 0, 255}},
	GradientStop{1, color.RGBA{255, 255, 255, 255}},
)

// Palettes indexes the presets for config files and CLI flags.
var Palettes = map[string]Palette{
	"classic": PaletteClassic,
	"fire":    PaletteFire,
	"ice":     PaletteIce,
	"gray":    PaletteGray,
}

// PaletteNames returns the preset keys in stable order.
func PaletteNames() []string {
	names := make([]string, 0, len(Palettes))
	for name := range Palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
