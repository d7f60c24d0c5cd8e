package remote

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"image"
	"io"
	"net"

	"github.com/coder/websocket"

	mandel "github.com/marben/mandelzoom"
)

// ServeWorker answers render jobs from a hub over conn using eng, until the
// connection or ctx ends. A clean hub shutdown returns nil.
func ServeWorker(ctx context.Context, conn net.Conn, eng mandel.Engine) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	enc, dec := gob.NewEncoder(conn), gob.NewDecoder(conn)
	for {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read job: %w", err)
		}
		if env.Setup != nil {
			eng.SetParameters(env.Setup.Params)
			eng.SetPalette(env.Setup.Palette)
		}
		if env.Job == nil {
			continue
		}
		mandel.Logger().Debug("rendering tile", "rect", env.Job.Rect, "level", env.Job.Level)
		img := image.NewRGBA(env.Job.Rect)
		eng.BindBuffer(img)
		var res resultMsg
		if err := eng.Compute(ctx, env.Job.Rect, env.Job.Level, true); err != nil {
			res.Err = err.Error()
		} else {
			res.Img = *img
		}
		if err := enc.Encode(res); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("send result: %w", err)
		}
	}
}

// DialWebsocket connects to a hub's websocket worker endpoint, for example
// ws://host:8080/workers. The connection lives until ctx ends.
func DialWebsocket(ctx context.Context, url string) (net.Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return websocket.NetConn(ctx, c, websocket.MessageBinary), nil
}
