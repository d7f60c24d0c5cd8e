package mandelzoom

import "fmt"

// Region is a rectangle in the complex plane.
// Xmin/Ymin is the top-left corner of the rendered image, so Y grows downward
// on screen while the imaginary axis grows upward; callers that care about
// mathematical orientation flip the sign themselves.
type Region struct {
	Xmin, Xmax float64
	Ymin, Ymax float64
}

func (r Region) Dx() float64 { return r.Xmax - r.Xmin }
func (r Region) Dy() float64 { return r.Ymax - r.Ymin }

// Center returns the midpoint of the region.
func (r Region) Center() (x, y float64) {
	return (r.Xmin + r.Xmax) / 2, (r.Ymin + r.Ymax) / 2
}

// PixelToPlane maps a pixel coordinate of a w×h raster showing r to the
// plane. The map is always computed from the current bounds, never chained
// incrementally, so repeated calls cannot accumulate drift.
func (r Region) PixelToPlane(px, py float64, w, h int) (x, y float64) {
	x = r.Xmin + px*(r.Xmax-r.Xmin)/float64(w)
	y = r.Ymin + py*(r.Ymax-r.Ymin)/float64(h)
	return x, y
}

// Translate returns the region shifted so that the content appears to move
// by (dx, dy) in plane units: the bounds move the opposite way.
func (r Region) Translate(dx, dy float64) Region {
	r.Xmin -= dx
	r.Xmax -= dx
	r.Ymin -= dy
	r.Ymax -= dy
	return r
}

// ScaleAround returns the region zoomed by factor around the plane point
// (fx, fy). The focus point keeps its pixel position across the zoom.
// A factor of exactly 1 or any non-positive factor is a degenerate gesture
// reading and returns r unchanged.
func (r Region) ScaleAround(fx, fy, factor float64) Region {
	if factor <= 0 || factor == 1 {
		return r
	}
	r.Xmin = fx + (r.Xmin-fx)/factor
	r.Xmax = fx + (r.Xmax-fx)/factor
	r.Ymin = fy + (r.Ymin-fy)/factor
	r.Ymax = fy + (r.Ymax-fy)/factor
	return r
}

func (r Region) String() string {
	return fmt.Sprintf("x[%g, %g] y[%g, %g]", r.Xmin, r.Xmax, r.Ymin, r.Ymax)
}
