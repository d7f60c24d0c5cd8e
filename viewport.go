package mandelzoom

// Viewport couples a center/extent description of the visible plane window
// with the concrete Region bounds derived for a pixel raster. Center and
// extent survive raster resizes; bounds are recomputed from them whenever
// the pixel dimensions change.
type Viewport struct {
	XCenter float64
	YCenter float64
	XExtent float64 // plane width; plane height follows the raster aspect

	Region Region
}

// RecomputeBounds derives the Region for a w×h raster from center and
// extent: x spans XExtent around XCenter and y spans XExtent scaled by the
// raster aspect ratio around YCenter. A zero width counts as 1 so a not yet
// laid out raster cannot divide by zero.
func (v *Viewport) RecomputeBounds(w, h int) {
	d := w
	if d == 0 {
		d = 1
	}
	ratio := float64(h) / float64(d)

	v.Region = Region{
		Xmin: v.XCenter - v.XExtent/2,
		Xmax: v.XCenter + v.XExtent/2,
		Ymin: v.YCenter - ratio*v.XExtent/2,
		Ymax: v.YCenter + ratio*v.XExtent/2,
	}
}

// DeriveCenterExtent updates center and extent from the current Region so
// that external state mirrors bounds mutated by pan or zoom.
func (v *Viewport) DeriveCenterExtent() {
	v.XExtent = v.Region.Dx()
	v.XCenter, v.YCenter = v.Region.Center()
}

// SetRegion adopts r's center and width as the new center/extent. The
// caller follows up with RecomputeBounds so the visible window honors the
// raster aspect; r's own height is advisory only.
func (v *Viewport) SetRegion(r Region) {
	v.XCenter, v.YCenter = r.Center()
	v.XExtent = r.Dx()
}
