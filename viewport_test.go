package mandelzoom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecomputeBoundsDefaultViewport(t *testing.T) {
	// The stock Mandelbrot framing on an 800×600 raster.
	vp := DefaultViewport(ModeMandelbrot)
	vp.RecomputeBounds(800, 600)

	assert.Equal(t, Region{Xmin: -2, Xmax: 1, Ymin: -1.125, Ymax: 1.125}, vp.Region)
}

func TestRecomputeBoundsConsistency(t *testing.T) {
	sizes := []struct{ w, h int }{
		{800, 600},
		{600, 800},
		{1, 1},
		{1920, 1080},
		{333, 777},
	}
	vp := Viewport{XCenter: -0.7435, YCenter: 0.1317, XExtent: 0.0015}

	for _, size := range sizes {
		vp.RecomputeBounds(size.w, size.h)

		cx, cy := vp.Region.Center()
		assert.InDelta(t, vp.XCenter, cx, 1e-15, "%dx%d", size.w, size.h)
		assert.InDelta(t, vp.YCenter, cy, 1e-15, "%dx%d", size.w, size.h)
		assert.InDelta(t, vp.XExtent, vp.Region.Dx(), 1e-15, "%dx%d", size.w, size.h)
		assert.Greater(t, vp.Region.Xmax, vp.Region.Xmin)
		assert.Greater(t, vp.Region.Ymax, vp.Region.Ymin)
	}
}

func TestRecomputeBoundsZeroWidth(t *testing.T) {
	vp := DefaultViewport(ModeMandelbrot)
	vp.RecomputeBounds(0, 600)

	// Width 0 counts as 1, so the ratio stays finite and the x span is
	// still the extent.
	assert.Equal(t, 3.0, vp.Region.Dx())
	assert.Equal(t, 600.0*3.0/2, vp.Region.Ymax-vp.YCenter)
}

func TestDeriveCenterExtent(t *testing.T) {
	vp := Viewport{Region: Region{Xmin: -2, Xmax: 1, Ymin: -1.125, Ymax: 1.125}}
	vp.DeriveCenterExtent()

	assert.Equal(t, -0.5, vp.XCenter)
	assert.Equal(t, 0.0, vp.YCenter)
	assert.Equal(t, 3.0, vp.XExtent)
}

func TestViewportSetRegion(t *testing.T) {
	vp := DefaultViewport(ModeMandelbrot)
	vp.SetRegion(SeahorseValley)
	vp.RecomputeBounds(800, 600)

	// Center and width follow the landmark; height follows the raster.
	cx, cy := vp.Region.Center()
	wantX, wantY := SeahorseValley.Center()
	assert.InDelta(t, wantX, cx, 1e-15)
	assert.InDelta(t, wantY, cy, 1e-15)
	assert.InDelta(t, SeahorseValley.Dx(), vp.Region.Dx(), 1e-15)
	assert.InDelta(t, 0.75*SeahorseValley.Dx(), vp.Region.Dy(), 1e-15)
}
