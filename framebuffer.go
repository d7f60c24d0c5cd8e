package mandelzoom

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"sync"
)

// FrameBuffer is a Presenter keeping an off-screen composite of everything
// the render workers have produced so far. It decouples readers (PNG export,
// terminal preview) from the raster the workers are still writing into: the
// composite is only touched under its lock, one refreshed rectangle at a
// time.
type FrameBuffer struct {
	mu  sync.Mutex
	img *image.RGBA
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Refresh copies rect from buf into the composite. The composite is
// reallocated when the source raster changes size.
func (fb *FrameBuffer) Refresh(buf *image.RGBA, rect image.Rectangle) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.img == nil || fb.img.Bounds() != buf.Bounds() {
		fb.img = image.NewRGBA(buf.Bounds())
	}
	draw.Draw(fb.img, rect, buf, rect.Min, draw.Src)
}

// Image returns a copy of the composite, or nil before the first Refresh.
func (fb *FrameBuffer) Image() *image.RGBA {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.img == nil {
		return nil
	}
	out := image.NewRGBA(fb.img.Bounds())
	copy(out.Pix, fb.img.Pix)
	return out
}

// SavePNG writes the current composite to path. Call it off the render
// goroutines; a failure leaves render state untouched.
func (fb *FrameBuffer) SavePNG(path string) error {
	img := fb.Image()
	if img == nil {
		return fmt.Errorf("save %q: nothing rendered yet", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}
