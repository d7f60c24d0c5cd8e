package mandelzoom

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferRefreshComposites(t *testing.T) {
	fb := NewFrameBuffer()
	buf := image.NewRGBA(image.Rect(0, 0, 8, 8))
	red := color.RGBA{255, 0, 0, 255}
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			buf.SetRGBA(x, y, red)
		}
	}

	fb.Refresh(buf, image.Rect(0, 0, 8, 4))

	img := fb.Image()
	require.NotNil(t, img)
	assert.Equal(t, buf.Bounds(), img.Bounds())
	assert.Equal(t, red, img.RGBAAt(3, 2))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(3, 6), "untouched band stays zero")
}

func TestFrameBufferImageIsACopy(t *testing.T) {
	fb := NewFrameBuffer()
	buf := image.NewRGBA(image.Rect(0, 0, 4, 4))
	buf.SetRGBA(1, 1, color.RGBA{9, 9, 9, 255})
	fb.Refresh(buf, buf.Bounds())

	img := fb.Image()
	img.SetRGBA(1, 1, color.RGBA{1, 2, 3, 255})

	assert.Equal(t, color.RGBA{9, 9, 9, 255}, fb.Image().RGBAAt(1, 1))
}

func TestFrameBufferResize(t *testing.T) {
	fb := NewFrameBuffer()
	fb.Refresh(image.NewRGBA(image.Rect(0, 0, 4, 4)), image.Rect(0, 0, 4, 4))
	require.Equal(t, image.Rect(0, 0, 4, 4), fb.Image().Bounds())

	bigger := image.NewRGBA(image.Rect(0, 0, 6, 6))
	fb.Refresh(bigger, image.Rect(0, 0, 6, 3))
	assert.Equal(t, image.Rect(0, 0, 6, 6), fb.Image().Bounds())
}

func TestFrameBufferImageBeforeRefresh(t *testing.T) {
	fb := NewFrameBuffer()
	assert.Nil(t, fb.Image())
	assert.Error(t, fb.SavePNG(filepath.Join(t.TempDir(), "empty.png")))
}

func TestFrameBufferSavePNG(t *testing.T) {
	fb := NewFrameBuffer()
	buf := image.NewRGBA(image.Rect(0, 0, 5, 3))
	buf.SetRGBA(2, 1, color.RGBA{0, 128, 255, 255})
	fb.Refresh(buf, buf.Bounds())

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, fb.SavePNG(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), decoded.Bounds())
	r, g, b, _ := decoded.At(2, 1).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	assert.Equal(t, uint32(128), g>>8)
	assert.Equal(t, uint32(255), b>>8)
}

func TestFrameBufferSavePNGBadPath(t *testing.T) {
	fb := NewFrameBuffer()
	buf := image.NewRGBA(image.Rect(0, 0, 2, 2))
	fb.Refresh(buf, buf.Bounds())

	err := fb.SavePNG(filepath.Join(t.TempDir(), "no", "such", "dir", "x.png"))
	assert.Error(t, err)
}
