package mandelzoom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGestureView returns a 100×100 Mandelbrot view: ratio 1, so the default
// framing is x in [-2, 1] and y in [-1.5, 1.5].
func newGestureView() (*View, *fakeEngine) {
	e := &fakeEngine{}
	return NewView(e, &fakePresenter{}, 100, 100), e
}

func TestPointerMoveFiresPointSelected(t *testing.T) {
	v, e := newGestureView()
	var pts [][2]float64
	v.OnPointSelected = func(x, y float64) { pts = append(pts, [2]float64{x, y}) }

	v.PointerDown(50, 50)
	v.PointerMove(50, 50)

	// Zero displacement still reports the point but renders nothing.
	require.Len(t, pts, 1)
	assert.InDelta(t, -0.5, pts[0][0], 1e-12)
	assert.InDelta(t, 0, pts[0][1], 1e-12)
	assert.Empty(t, e.paramsList())

	v.PointerMove(60, 50)
	assert.Len(t, pts, 2)
	assert.NotEmpty(t, e.paramsList())
	waitView(t, v)
}

func TestDragTranslatesViewport(t *testing.T) {
	v, e := newGestureView()

	v.PointerDown(50, 50)
	v.PointerMove(60, 45) // 10 px right, 5 px up
	waitView(t, v)

	// 10 px is 0.3 plane units at extent 3 over 100 px; dragging the
	// content right moves the window left.
	r := v.Region()
	assert.InDelta(t, -2.3, r.Xmin, 1e-12)
	assert.InDelta(t, 0.7, r.Xmax, 1e-12)
	assert.InDelta(t, -1.35, r.Ymin, 1e-12)
	assert.InDelta(t, 1.65, r.Ymax, 1e-12)

	assert.Equal(t, int32(startLevel), v.endLevel.Load(), "drag renders coarse-only")
	params := e.paramsList()
	require.Len(t, params, 1)
	assert.Equal(t, r, params[0].Region)

	// Origin advanced to the current point: repeating it is a no-op.
	v.PointerMove(60, 45)
	assert.Len(t, e.paramsList(), 1)
}

func TestPointerUpRunsFullResolutionPass(t *testing.T) {
	v, e := newGestureView()
	var pts [][2]float64
	v.OnPointSelected = func(x, y float64) { pts = append(pts, [2]float64{x, y}) }

	v.PointerDown(50, 50)
	v.PointerMove(60, 45)
	v.PointerUp(60, 45)
	waitView(t, v)

	assert.Equal(t, int32(1), v.endLevel.Load())
	require.Len(t, e.paramsList(), 2)

	// The release cycle descends to full resolution.
	var levels []int
	lastGen := len(e.paramsList()) - 1
	for _, c := range e.callList() {
		if c.gen == lastGen && c.rect.Min.Y == 0 {
			levels = append(levels, c.level)
		}
	}
	assert.Equal(t, []int{16, 8, 4, 2, 1}, levels)

	// Release reported the pointer's plane coordinate.
	require.Len(t, pts, 2)
	wantX, wantY := v.Region().PixelToPlane(60, 45, 100, 100)
	assert.InDelta(t, wantX, pts[1][0], 1e-12)
	assert.InDelta(t, wantY, pts[1][1], 1e-12)
}

func TestPinchZoomsAroundFocus(t *testing.T) {
	v, e := newGestureView()

	v.PointerDown(10, 10)
	v.PinchScale(50, 50, 2) // pixel (50,50) is the plane center (-0.5, 0)
	waitView(t, v)

	assert.True(t, v.zooming)
	assert.Equal(t, int32(startLevel), v.endLevel.Load())

	r := v.Region()
	assert.InDelta(t, -1.25, r.Xmin, 1e-12)
	assert.InDelta(t, 0.25, r.Xmax, 1e-12)
	assert.InDelta(t, -0.75, r.Ymin, 1e-12)
	assert.InDelta(t, 0.75, r.Ymax, 1e-12)

	// While pinching, moves select points but do not pan.
	v.PointerMove(60, 60)
	assert.Len(t, e.paramsList(), 1)
	assert.Equal(t, r, v.Region())

	// Release drops back to full resolution.
	v.PointerUp(60, 60)
	waitView(t, v)
	assert.False(t, v.zooming)
	assert.Equal(t, int32(1), v.endLevel.Load())
	assert.Len(t, e.paramsList(), 2)
}

func TestPinchKeepsFocusPixelFixed(t *testing.T) {
	for _, factor := range []float64{0.5, 2, 10} {
		v, _ := newGestureView()
		const fx, fy = 23.0, 71.0

		beforeX, beforeY := v.Region().PixelToPlane(fx, fy, 100, 100)
		v.PinchScale(fx, fy, factor)
		waitView(t, v)
		afterX, afterY := v.Region().PixelToPlane(fx, fy, 100, 100)

		assert.InDelta(t, beforeX, afterX, 1e-12, "factor %g", factor)
		assert.InDelta(t, beforeY, afterY, 1e-12, "factor %g", factor)
	}
}

func TestPinchIgnoresDegenerateFactors(t *testing.T) {
	v, e := newGestureView()
	before := v.Region()

	for _, factor := range []float64{1, 0, -3, math.NaN(), math.Inf(1)} {
		v.PinchScale(50, 50, factor)
	}

	assert.Equal(t, before, v.Region())
	assert.Empty(t, e.paramsList())
	assert.False(t, v.zooming)
}

func TestPointerDownLeavesZoomMode(t *testing.T) {
	v, e := newGestureView()

	v.PinchScale(50, 50, 2)
	waitView(t, v)
	require.True(t, v.zooming)

	// The next gesture starts with a fresh origin and drags normally.
	v.PointerDown(30, 30)
	assert.False(t, v.zooming)

	v.PointerMove(40, 30)
	waitView(t, v)
	assert.Len(t, e.paramsList(), 2)
}
