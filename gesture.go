package mandelzoom

import "math"

// Gesture handlers. The input layer (touch decoding, browser pointer
// events) is external; it feeds pixel-space gestures here and the handlers
// update the viewport and drive render cycles. During continuous motion the
// end coarseness is held at the start coarseness so each input frame costs
// at most one coarse pass per band; the full-resolution descent runs once,
// on release.
//
// Like every other View mutation these run on the control goroutine.

// PointerDown starts a drag: records the origin and leaves zoom mode.
func (v *View) PointerDown(px, py float64) {
	v.dragX, v.dragY = px, py
	v.zooming = false
}

// PointerMove reports the pointer's plane coordinate and, when dragging
// (not pinching) with non-zero displacement, pans the viewport by the
// corresponding plane delta and re-renders coarsely.
func (v *View) PointerMove(px, py float64) {
	if v.width <= 0 || v.height <= 0 {
		return
	}
	if v.OnPointSelected != nil {
		x, y := v.vp.Region.PixelToPlane(px, py, v.width, v.height)
		v.OnPointSelected(x, y)
	}
	if v.zooming {
		return
	}

	dx, dy := px-v.dragX, py-v.dragY
	if dx == 0 && dy == 0 {
		return
	}
	v.endLevel.Store(startLevel)
	pdx := dx * v.vp.Region.Dx() / float64(v.width)
	pdy := dy * v.vp.Region.Dy() / float64(v.height)
	v.vp.Region = v.vp.Region.Translate(pdx, pdy)
	v.Render()
	v.dragX, v.dragY = px, py
}

// PointerUp ends the gesture: the coarseness floor drops back to full
// resolution, the release point is reported, and the final descent renders.
func (v *View) PointerUp(px, py float64) {
	v.zooming = false
	v.endLevel.Store(1)
	if v.OnPointSelected != nil && v.width > 0 && v.height > 0 {
		x, y := v.vp.Region.PixelToPlane(px, py, v.width, v.height)
		v.OnPointSelected(x, y)
	}
	v.Render()
}

// PinchScale applies one zoom step around the focal pixel while a pinch
// (or wheel) gesture is in motion. Non-positive, unit and non-finite
// factors are degenerate readings (two touch points can coincide) and are
// dropped.
func (v *View) PinchScale(fx, fy, factor float64) {
	if factor <= 0 || factor == 1 || math.IsInf(factor, 0) || math.IsNaN(factor) {
		return
	}
	if v.width <= 0 || v.height <= 0 {
		return
	}
	v.zooming = true
	v.endLevel.Store(startLevel)
	x, y := v.vp.Region.PixelToPlane(fx, fy, v.width, v.height)
	v.vp.Region = v.vp.Region.ScaleAround(x, y, factor)
	v.Render()
}
