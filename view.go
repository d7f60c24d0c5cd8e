package mandelzoom

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"
)

// joinTimeout bounds how long Terminate waits for each band worker.
// Package-level so the stuck-worker tests can shrink it.
var joinTimeout = time.Second

// View owns one fractal raster: the viewport showing it, the engine
// computing it, and the render cycle currently refining it. A cycle splits
// the raster into two horizontal bands and runs one worker goroutine per
// band through descending coarseness levels; every gesture cancels the
// in-flight cycle and starts a new one.
//
// View is not safe for concurrent use. Render, Terminate, the gesture
// handlers and all setters belong to a single control goroutine; only the
// observers and the engine are ever reached from worker goroutines, reading
// an immutable per-cycle snapshot.
type View struct {
	engine    Engine
	presenter Presenter

	vp         Viewport
	mode       Mode
	juliaPoint complex128
	iterations int

	width, height int
	buf           *image.RGBA

	// visible gates new cycles; endLevel is the coarseness workers refine
	// down to. Both are read by in-flight workers while gestures mutate
	// them, hence atomic.
	visible  atomic.Bool
	endLevel atomic.Int32

	cancel  context.CancelFunc
	workers []bandWorker

	dragX, dragY float64
	zooming      bool

	// OnPointSelected fires on every pointer move and on gesture release
	// with the plane coordinate under the pointer. OnRegionChanged fires at
	// the start of every render cycle with the new bounds. Both run on the
	// control goroutine; assign them before the first gesture arrives.
	OnPointSelected func(x, y float64)
	OnRegionChanged func(r Region)
}

type bandWorker struct {
	band image.Rectangle
	done chan struct{}
}

// NewView creates a Mandelbrot view over a width×height raster. The engine
// and presenter must be non-nil; the raster is bound to the engine
// immediately.
func NewView(engine Engine, presenter Presenter, width, height int) *View {
	return newView(engine, presenter, width, height, ModeMandelbrot, 0)
}

// NewJuliaView creates a view of the Julia set for the given fixed point.
func NewJuliaView(engine Engine, presenter Presenter, width, height int, point complex128) *View {
	return newView(engine, presenter, width, height, ModeJulia, point)
}

func newView(engine Engine, presenter Presenter, w, h int, mode Mode, point complex128) *View {
	v := &View{
		engine:     engine,
		presenter:  presenter,
		mode:       mode,
		juliaPoint: point,
		iterations: DefaultIterations,
		vp:         DefaultViewport(mode),
	}
	v.visible.Store(true)
	v.endLevel.Store(1)
	v.setSize(w, h)
	return v
}

// Render starts a new render cycle: the previous cycle is cancelled and
// joined, a fresh parameter snapshot goes to the engine, and one worker per
// horizontal band starts at the coarsest level. Render returns immediately;
// the cycle proceeds on its own goroutines. Hidden views and views without
// a raster start no workers.
func (v *View) Render() {
	v.Terminate()

	if !v.visible.Load() {
		return
	}
	if v.buf == nil {
		return
	}

	if v.OnRegionChanged != nil {
		v.OnRegionChanged(v.vp.Region)
	}

	// Mirror pan/zoom mutations back into center/extent so the next resize
	// derives bounds from what is actually on screen.
	v.vp.DeriveCenterExtent()

	v.engine.SetParameters(Params{
		Iterations: v.iterations,
		Region:     v.vp.Region,
		Mode:       v.mode,
		JuliaPoint: v.juliaPoint,
		Width:      v.width,
		Height:     v.height,
	})

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	for _, band := range splitBands(v.buf.Bounds()) {
		if band.Empty() {
			continue
		}
		w := bandWorker{band: band, done: make(chan struct{})}
		v.workers = append(v.workers, w)
		go v.runBand(ctx, v.buf, w)
	}
}

// runBand drives one band through the coarseness ladder. Levels are
// strictly descending and never overlap within a band; the sibling band
// proceeds independently.
func (v *View) runBand(ctx context.Context, buf *image.RGBA, w bandWorker) {
	defer close(w.done)

	level := startLevel
	for {
		fresh := level == startLevel
		if err := v.engine.Compute(ctx, w.band, level, fresh); err != nil {
			if !errors.Is(err, context.Canceled) {
				Logger().Warn("compute pass failed",
					"band", w.band.Min.Y, "level", level, "err", err)
			}
			return
		}
		v.presenter.Refresh(buf, w.band)

		if ctx.Err() != nil {
			return
		}
		if level <= int(v.endLevel.Load()) {
			return
		}
		level /= 2
	}
}

// Terminate cancels the in-flight cycle and joins its workers, waiting up
// to joinTimeout for each. A worker that ignores cancellation that long is
// logged and abandoned; it may keep running until it observes the engine's
// cancel hint, which is why a new cycle only reuses the raster after this
// join pass. Terminate is idempotent and cheap with no workers.
func (v *View) Terminate() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.engine.Cancel()

	for _, w := range v.workers {
		select {
		case <-w.done:
		case <-time.After(joinTimeout):
			Logger().Warn("render worker still alive after join timeout",
				"band", w.band.Min.Y)
		}
	}
	v.workers = v.workers[:0]
}

// Wait blocks until the current cycle's workers have finished, or ctx is
// done. It does not cancel anything; pair it with Render when a caller
// needs the finished raster (PNG export, tests).
func (v *View) Wait(ctx context.Context) error {
	for _, w := range v.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// splitBands cuts r into its top and bottom halves. The bottom band takes
// the odd row so the two bands always cover r exactly.
func splitBands(r image.Rectangle) [2]image.Rectangle {
	mid := r.Min.Y + r.Dy()/2
	return [2]image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, mid),
		image.Rect(r.Min.X, mid, r.Max.X, r.Max.Y),
	}
}

// SetSize reallocates the raster for new pixel dimensions, rebinds it to
// the engine, re-derives bounds for the new aspect ratio and re-renders.
// Zero or negative dimensions are ignored.
func (v *View) SetSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	v.Terminate()
	v.setSize(w, h)
	v.Render()
}

func (v *View) setSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	v.width, v.height = w, h
	v.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	v.engine.BindBuffer(v.buf)
	v.vp.RecomputeBounds(w, h)
}

// SetVisible gates rendering. Making a hidden view visible triggers a
// render; hiding leaves any in-flight cycle to finish on its own.
func (v *View) SetVisible(visible bool) {
	was := v.visible.Swap(visible)
	if visible && !was {
		v.Render()
	}
}

// SetIterations clamps and installs a new iteration budget, then
// re-renders.
func (v *View) SetIterations(n int) {
	v.iterations = ClampIterations(n)
	v.Render()
}

// SetRegion jumps the viewport to r, keeping r's center and width and
// re-deriving the height for the raster aspect, then re-renders.
func (v *View) SetRegion(r Region) {
	v.vp.SetRegion(r)
	v.vp.RecomputeBounds(v.width, v.height)
	v.Render()
}

// SetPalette installs a new color table and re-renders.
func (v *View) SetPalette(p Palette) {
	v.Terminate()
	v.engine.SetPalette(p)
	v.Render()
}

// SetJuliaPoint re-parameterizes a Julia view and re-renders. Mandelbrot
// views ignore it.
func (v *View) SetJuliaPoint(point complex128) {
	if v.mode != ModeJulia {
		return
	}
	v.juliaPoint = point
	v.Render()
}

// Reset restores the mode's home viewport and re-renders.
func (v *View) Reset() {
	v.vp = DefaultViewport(v.mode)
	v.vp.RecomputeBounds(v.width, v.height)
	v.Render()
}

// RequestRegion re-fires OnRegionChanged with the current bounds, for HUDs
// that attach after the first render.
func (v *View) RequestRegion() {
	if v.OnRegionChanged != nil {
		v.OnRegionChanged(v.vp.Region)
	}
}

// Region returns the current plane bounds.
func (v *View) Region() Region { return v.vp.Region }

// Iterations returns the current (clamped) iteration budget.
func (v *View) Iterations() int { return v.iterations }

// Size returns the raster dimensions.
func (v *View) Size() (w, h int) { return v.width, v.height }

// Mode returns the fractal family this view displays.
func (v *View) Mode() Mode { return v.mode }
