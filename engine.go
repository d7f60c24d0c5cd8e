package mandelzoom

import (
	"context"
	"image"
)

// Engine computes fractal pixels into a bound raster. A View drives exactly
// one Engine instance; two views rendering concurrently (a main view and a
// Julia preview, say) hold two instances and never interfere.
//
// SetParameters, BindBuffer and SetPalette are called only between render
// cycles, never while Compute is in flight. SetParameters also clears any
// pending Cancel so the next cycle starts clean.
type Engine interface {
	// SetParameters installs the snapshot for the coming cycle.
	SetParameters(p Params)

	// BindBuffer attaches the raster Compute writes into. Concurrent
	// Compute calls receive disjoint rectangles, so the engine may write
	// without locking.
	BindBuffer(buf *image.RGBA)

	// SetPalette installs the color table.
	SetPalette(p Palette)

	// Compute fills rect of the bound buffer at the given coarseness
	// level: one sample per level×level block. A fresh pass repaints every
	// block; otherwise blocks whose sample was already produced by the
	// 2×level pass may be skipped. Compute polls ctx and Cancel
	// cooperatively and returns context.Canceled when interrupted.
	Compute(ctx context.Context, rect image.Rectangle, level int, fresh bool) error

	// Cancel hints the engine to abandon in-flight Compute calls promptly.
	// It may be called from any goroutine, any number of times.
	Cancel()
}

// Presenter composites the shared raster to a display surface. Refresh is
// called after every coarseness pass with the rectangle that was just
// repainted; it must tolerate concurrent calls from the band workers and
// may show partially finished bands.
type Presenter interface {
	Refresh(buf *image.RGBA, rect image.Rectangle)
}
