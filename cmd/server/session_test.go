package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	srv := &server{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), cfg: DefaultConfig()}
	handler, err := srv.routes()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	c.SetReadLimit(1 << 23)
	return c
}

func TestSessionStreamsFramesAndRegion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	c := dialSession(t, ctx)

	require.NoError(t, wsjson.Write(ctx, c, map[string]any{"type": "size", "w": 64, "h": 48}))

	var sawFrame, sawRegion bool
	for !sawFrame || !sawRegion {
		typ, data, err := c.Read(ctx)
		require.NoError(t, err)
		if typ == websocket.MessageBinary {
			require.GreaterOrEqual(t, len(data), frameHeaderLen)
			if data[0] != frameMain {
				continue
			}
			w := binary.BigEndian.Uint32(data[9:13])
			h := binary.BigEndian.Uint32(data[13:17])
			assert.Equal(t, int(w*h)*4, len(data)-frameHeaderLen)
			sawFrame = true
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == "region" {
			sawRegion = true
		}
	}
}

func TestSessionGestureRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	c := dialSession(t, ctx)

	require.NoError(t, wsjson.Write(ctx, c, map[string]any{"type": "size", "w": 64, "h": 48}))
	require.NoError(t, wsjson.Write(ctx, c, map[string]any{"type": "down", "x": 10, "y": 10}))
	require.NoError(t, wsjson.Write(ctx, c, map[string]any{"type": "move", "x": 20, "y": 15}))

	// The drag reports the plane point under the cursor: the 64×48 raster
	// spans x in [-2,1], y in [-1.125,1.125] before the pan applies.
	for {
		m := readJSON(t, ctx, c)
		if m["type"] != "point" {
			continue
		}
		assert.InDelta(t, -1.0625, m["x"].(float64), 1e-12)
		assert.InDelta(t, -0.421875, m["y"].(float64), 1e-12)
		break
	}

	require.NoError(t, wsjson.Write(ctx, c, map[string]any{"type": "region", "name": "seahorse"}))
	for {
		m := readJSON(t, ctx, c)
		if m["type"] != "region" {
			continue
		}
		xmin := m["xmin"].(float64)
		if xmin > -1 {
			assert.InDelta(t, -0.8, xmin, 1e-12)
			assert.InDelta(t, -0.7, m["xmax"].(float64), 1e-12)
			break
		}
	}
}

// readJSON skips binary frames and returns the next HUD message.
func readJSON(t *testing.T, ctx context.Context, c *websocket.Conn) map[string]any {
	t.Helper()
	for {
		typ, data, err := c.Read(ctx)
		require.NoError(t, err)
		if typ == websocket.MessageBinary {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}
}
