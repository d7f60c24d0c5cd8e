// termview renders a fractal straight into the terminal, two pixels per
// character cell using the upper half block. Handy for a quick look at a
// landmark or palette without leaving the shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/render"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func run() error {
	cols := flag.Int("cols", 100, "character columns")
	rows := flag.Int("rows", 40, "character rows")
	regionName := flag.String("region", "", "landmark to render: "+strings.Join(mandel.LandmarkNames(), ", "))
	iters := flag.Int("iter", mandel.DefaultIterations, "iteration budget")
	paletteName := flag.String("palette", "", "color palette: "+strings.Join(mandel.PaletteNames(), ", "))
	julia := flag.String("julia", "", `render the Julia set for point "re,im"`)
	flag.Parse()

	w, h := *cols, *rows*2
	if w <= 0 || h <= 0 {
		return fmt.Errorf("bad terminal size %dx%d", *cols, *rows)
	}

	mode := mandel.ModeMandelbrot
	var point complex128
	if *julia != "" {
		p, err := parsePoint(*julia)
		if err != nil {
			return fmt.Errorf("parse -julia: %w", err)
		}
		mode, point = mandel.ModeJulia, p
	}

	eng := render.New()
	if *paletteName != "" {
		p, ok := mandel.Palettes[*paletteName]
		if !ok {
			return fmt.Errorf("unknown palette %q (have %s)", *paletteName, strings.Join(mandel.PaletteNames(), ", "))
		}
		eng.SetPalette(p)
	}

	vp := mandel.DefaultViewport(mode)
	if *regionName != "" {
		r, ok := mandel.Landmarks[*regionName]
		if !ok {
			return fmt.Errorf("unknown region %q (have %s)", *regionName, strings.Join(mandel.LandmarkNames(), ", "))
		}
		vp.SetRegion(r)
	}
	vp.RecomputeBounds(w, h)

	buf := image.NewRGBA(image.Rect(0, 0, w, h))
	eng.BindBuffer(buf)
	eng.SetParameters(mandel.Params{
		Iterations: mandel.ClampIterations(*iters),
		Region:     vp.Region,
		Mode:       mode,
		JuliaPoint: point,
		Width:      w,
		Height:     h,
	})
	if err := eng.Compute(context.Background(), buf.Bounds(), 1, true); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	printImage(buf, vp.Region)
	return nil
}

// printImage writes the raster as half-block cells: foreground paints the
// top pixel of each pair, background the bottom one.
func printImage(buf *image.RGBA, r mandel.Region) {
	out := termenv.NewOutput(os.Stdout)
	profile := out.ColorProfile()

	b := buf.Bounds()
	var line strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		line.Reset()
		for x := b.Min.X; x < b.Max.X; x++ {
			cell := out.String("▀").
				Foreground(profile.Color(hexColor(buf.RGBAAt(x, y)))).
				Background(profile.Color(hexColor(buf.RGBAAt(x, y+1))))
			line.WriteString(cell.String())
		}
		fmt.Fprintln(out, line.String())
	}
	fmt.Fprintln(out, out.String(r.String()).Faint())
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func parsePoint(s string) (complex128, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, fmt.Errorf(`want "re,im", got %q`, s)
	}
	re, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, err
	}
	im, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, err
	}
	return complex(re, im), nil
}
