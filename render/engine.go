// Package render provides the built-in escape-time compute engine filling
// rasters for mandelzoom views, locally or on the worker side of a
// distributed render.
package render

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/cmplx"
	"sync"
	"sync/atomic"

	mandel "github.com/marben/mandelzoom"
)

// Engine computes Mandelbrot and Julia pixels with smooth coloring. It
// satisfies the mandel.Engine contract: parameters, palette and buffer are
// installed between cycles, Compute calls then run concurrently on disjoint
// rectangles.
type Engine struct {
	mu      sync.Mutex
	params  mandel.Params
	palette mandel.Palette
	buf     *image.RGBA

	// abort is the out-of-band cancel hint; cleared by SetParameters so the
	// next cycle starts clean.
	abort atomic.Bool
}

var _ mandel.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{palette: mandel.PaletteClassic}
}

func (e *Engine) SetParameters(p mandel.Params) {
	e.mu.Lock()
	e.params = p
	e.mu.Unlock()
	e.abort.Store(false)
}

func (e *Engine) BindBuffer(buf *image.RGBA) {
	e.mu.Lock()
	e.buf = buf
	e.mu.Unlock()
}

func (e *Engine) SetPalette(p mandel.Palette) {
	e.mu.Lock()
	e.palette = p
	e.mu.Unlock()
}

func (e *Engine) Cancel() {
	e.abort.Store(true)
}

// Compute fills rect of the bound buffer at the given block size. One
// sample is taken per level×level block at the block's top-left pixel and
// painted across it; level 1 is a full-resolution pass. When fresh is
// false, blocks whose sample was already produced by the previous 2×level
// pass keep their pixels. Cancellation is polled once per block row.
func (e *Engine) Compute(ctx context.Context, rect image.Rectangle, level int, fresh bool) error {
	if level < 1 {
		level = 1
	}
	e.mu.Lock()
	p, pal, buf := e.params, e.palette, e.buf
	e.mu.Unlock()
	if buf == nil || rect.Empty() {
		return nil
	}

	for by := rect.Min.Y; by < rect.Max.Y; by += level {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.abort.Load() {
			return context.Canceled
		}
		for bx := rect.Min.X; bx < rect.Max.X; bx += level {
			// The parent pass anchored its grid at rect.Min too, so its
			// samples sit where both offsets are multiples of 2×level.
			if !fresh && (bx-rect.Min.X)%(2*level) == 0 && (by-rect.Min.Y)%(2*level) == 0 {
				continue
			}
			fillBlock(buf, rect, bx, by, level, shade(p, pal, bx, by))
		}
	}
	return nil
}

// fillBlock paints a level×level block clipped to rect.
func fillBlock(buf *image.RGBA, rect image.Rectangle, x, y, level int, col color.RGBA) {
	maxY := min(y+level, rect.Max.Y)
	maxX := min(x+level, rect.Max.X)
	for yy := y; yy < maxY; yy++ {
		for xx := x; xx < maxX; xx++ {
			buf.SetRGBA(xx, yy, col)
		}
	}
}

// shade maps one pixel to the plane, iterates it and colors the result.
func shade(p mandel.Params, pal mandel.Palette, px, py int) color.RGBA {
	x, y := p.Region.PixelToPlane(float64(px), float64(py), p.Width, p.Height)

	var z, c complex128
	if p.Mode == mandel.ModeJulia {
		z, c = complex(x, y), p.JuliaPoint
	} else {
		z, c = 0, complex(x, y)
	}

	mu := escapeTime(z, c, p.Iterations)
	if mu >= float64(p.Iterations) {
		return pal.Inside
	}
	return pal.At(math.Mod(mu*0.02, 1))
}

// escapeTime iterates z = z²+c up to maxIter times and returns the smooth
// iteration count at escape, or maxIter when the orbit stays bounded.
func escapeTime(z, c complex128, maxIter int) float64 {
	for i := 0; i < maxIter; i++ {
		z = z*z + c
		if real(z)*real(z)+imag(z)*imag(z) > 4 {
			return float64(i) + 1 - math.Log(math.Log(cmplx.Abs(z)))/math.Log(2)
		}
	}
	return float64(maxIter)
}
