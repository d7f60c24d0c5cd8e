package remote

import (
	"image"

	mandel "github.com/marben/mandelzoom"
)

// Wire protocol between hub and worker, gob-encoded directly on the
// connection. The hub sends envelopes; the worker answers every Job with
// one resultMsg. Setup rides along when the hub's parameters changed since
// the connection last saw them.
type envelope struct {
	Setup *setupMsg
	Job   *jobMsg
}

type setupMsg struct {
	Params  mandel.Params
	Palette mandel.Palette
}

type jobMsg struct {
	Rect  image.Rectangle
	Level int
}

// resultMsg carries the rendered tile in global coordinates, or the render
// error as text.
type resultMsg struct {
	Img image.RGBA
	Err string
}
