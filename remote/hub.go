// Package remote distributes render work to engine processes over plain TCP
// or websocket connections. The hub side hands out fixed-size tiles of each
// requested rectangle and composites results as they arrive; the worker side
// wraps an ordinary engine and serves tiles until its connection ends.
package remote

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"net"
	"sync"

	mandel "github.com/marben/mandelzoom"
)

// Tiles handed to workers. Edge tiles shrink when the rectangle is not
// divisible.
const tileSize = 64

// ErrHubClosed is returned by Compute after Close.
var ErrHubClosed = errors.New("render hub closed")

// Hub implements mandel.Engine by farming tiles out to connected workers.
// Tiles lost to a dying connection are re-served, so a pass completes as
// long as one worker remains. With no workers connected, Compute renders on
// the fallback engine when one was given, otherwise it waits for a worker
// to join.
type Hub struct {
	fallback mandel.Engine

	mu      sync.Mutex
	params  mandel.Params
	palette mandel.Palette
	buf     *image.RGBA
	version uint64
	abort   bool
	closed  bool
	conns   map[*workerConn]struct{}
	passes  []*pass
	wake    chan struct{}
}

var _ mandel.Engine = (*Hub)(nil)

// NewHub returns a hub with no workers yet. fallback may be nil; Compute
// then blocks until a worker connects.
func NewHub(fallback mandel.Engine) *Hub {
	return &Hub{
		fallback: fallback,
		palette:  mandel.PaletteClassic,
		version:  1,
		conns:    make(map[*workerConn]struct{}),
		wake:     make(chan struct{}),
	}
}

func (h *Hub) SetParameters(p mandel.Params) {
	h.mu.Lock()
	h.params = p
	h.version++
	h.abort = false
	h.mu.Unlock()
	if h.fallback != nil {
		h.fallback.SetParameters(p)
	}
}

func (h *Hub) SetPalette(p mandel.Palette) {
	h.mu.Lock()
	h.palette = p
	h.version++
	h.mu.Unlock()
	if h.fallback != nil {
		h.fallback.SetPalette(p)
	}
}

func (h *Hub) BindBuffer(buf *image.RGBA) {
	h.mu.Lock()
	h.buf = buf
	h.mu.Unlock()
	if h.fallback != nil {
		h.fallback.BindBuffer(buf)
	}
}

func (h *Hub) Cancel() {
	h.mu.Lock()
	h.abort = true
	for _, p := range h.passes {
		p.abandonLocked()
	}
	h.mu.Unlock()
	if h.fallback != nil {
		h.fallback.Cancel()
	}
}

// Compute renders rect at the given block size through the connected
// workers. Workers render their tiles from scratch, so the refinement skip
// of a local pass applies on the fallback path only. Returns
// context.Canceled when interrupted by Cancel.
func (h *Hub) Compute(ctx context.Context, rect image.Rectangle, level int, fresh bool) error {
	if level < 1 {
		level = 1
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if h.abort {
		h.mu.Unlock()
		return context.Canceled
	}
	if h.buf == nil || rect.Empty() {
		h.mu.Unlock()
		return nil
	}
	if len(h.conns) == 0 && h.fallback != nil {
		h.mu.Unlock()
		return h.fallback.Compute(ctx, rect, level, fresh)
	}
	p := newPass(h.buf, rect, level, setupMsg{Params: h.params, Palette: h.palette}, h.version)
	h.passes = append(h.passes, p)
	h.broadcastLocked()
	h.mu.Unlock()
	defer h.dropPass(p)

	select {
	case <-p.done:
		return nil
	case <-p.abandon:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve accepts worker connections from l until Accept fails. Works with a
// plain TCP listener or a WebsocketListener.
func (h *Hub) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return fmt.Errorf("accept render worker: %w", err)
		}
		h.AddWorker(conn)
	}
}

// AddWorker registers conn and starts serving tiles to it.
func (h *Hub) AddWorker(conn net.Conn) {
	w := &workerConn{conn: conn, enc: gob.NewEncoder(conn), dec: gob.NewDecoder(conn)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conns[w] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	mandel.Logger().Info("render worker connected", "remote", conn.RemoteAddr(), "workers", n)
	go h.serveConn(w)
}

// Workers reports the number of connected render workers.
func (h *Hub) Workers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Progress reports the finished pixel fraction of the active passes, 1 when
// idle.
func (h *Hub) Progress() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total, finished int
	for _, p := range h.passes {
		total += p.totalPixels
		finished += p.finishedPixels
	}
	if total == 0 {
		return 1
	}
	return float64(finished) / float64(total)
}

// Close abandons active passes and drops every worker connection.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, p := range h.passes {
		p.abandonLocked()
	}
	conns := make([]*workerConn, 0, len(h.conns))
	for w := range h.conns {
		conns = append(conns, w)
	}
	h.broadcastLocked()
	h.mu.Unlock()
	for _, w := range conns {
		w.conn.Close()
	}
	return nil
}

// serveConn feeds tiles to one worker until the hub closes or the
// connection fails. A failed connection leaves its tile in its pass, where
// nextTile re-serves it.
func (h *Hub) serveConn(w *workerConn) {
	defer h.removeWorker(w)
	for {
		p, tile, ok := h.nextTile()
		if !ok {
			return
		}
		var setup *setupMsg
		if w.sentVersion != p.version {
			setup = &p.setup
			w.sentVersion = p.version
		}
		img, err := w.renderTile(setup, tile, p.level)
		if err != nil {
			mandel.Logger().Warn("render worker failed", "remote", w.conn.RemoteAddr(), "tile", tile, "err", err)
			return
		}
		if img.Rect != tile {
			mandel.Logger().Warn("render worker returned wrong tile", "remote", w.conn.RemoteAddr(), "want", tile, "got", img.Rect)
			return
		}
		h.tileFinished(p, img)
	}
}

// nextTile blocks until a tile is available or the hub closes. Unstarted
// tiles across all passes go first; only then are in-flight stragglers
// double-served so a dead connection cannot stall a pass.
func (h *Hub) nextTile() (*pass, image.Rectangle, bool) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, image.Rectangle{}, false
		}
		for _, p := range h.passes {
			if tile, ok := p.popUnstartedLocked(); ok {
				h.mu.Unlock()
				return p, tile, true
			}
		}
		for _, p := range h.passes {
			if tile, ok := p.stragglerLocked(); ok {
				h.mu.Unlock()
				return p, tile, true
			}
		}
		wake := h.wake
		h.mu.Unlock()
		<-wake
	}
}

func (h *Hub) tileFinished(p *pass, img image.RGBA) {
	h.mu.Lock()
	if p.dropped {
		h.mu.Unlock()
		return
	}
	draw.Draw(p.buf, img.Rect, &img, img.Rect.Min, draw.Src)
	if _, held := p.inProcess[img.Rect]; held {
		p.finishedPixels += img.Rect.Dx() * img.Rect.Dy()
		delete(p.inProcess, img.Rect)
	}
	if len(p.unstarted) == 0 && len(p.inProcess) == 0 && !p.completed {
		p.completed = true
		close(p.done)
	}
	progress := float64(p.finishedPixels) / float64(p.totalPixels)
	h.mu.Unlock()
	mandel.Logger().Debug("tile finished", "rect", img.Rect, "progress", progress)
}

func (h *Hub) removeWorker(w *workerConn) {
	h.mu.Lock()
	delete(h.conns, w)
	n := len(h.conns)
	h.broadcastLocked()
	h.mu.Unlock()
	w.conn.Close()
	mandel.Logger().Info("render worker disconnected", "remote", w.conn.RemoteAddr(), "workers", n)
}

func (h *Hub) dropPass(p *pass) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p.dropped = true
	for i, q := range h.passes {
		if q == p {
			h.passes = append(h.passes[:i], h.passes[i+1:]...)
			break
		}
	}
}

// broadcastLocked wakes every connection waiting for work.
func (h *Hub) broadcastLocked() {
	close(h.wake)
	h.wake = make(chan struct{})
}

// workerConn is the hub side of one connection. sentVersion is touched only
// by the conn's own serveConn goroutine.
type workerConn struct {
	conn        net.Conn
	enc         *gob.Encoder
	dec         *gob.Decoder
	sentVersion uint64
}

func (w *workerConn) renderTile(setup *setupMsg, tile image.Rectangle, level int) (image.RGBA, error) {
	if err := w.enc.Encode(envelope{Setup: setup, Job: &jobMsg{Rect: tile, Level: level}}); err != nil {
		return image.RGBA{}, fmt.Errorf("send job: %w", err)
	}
	var res resultMsg
	if err := w.dec.Decode(&res); err != nil {
		return image.RGBA{}, fmt.Errorf("read result: %w", err)
	}
	if res.Err != "" {
		return image.RGBA{}, fmt.Errorf("remote render: %s", res.Err)
	}
	return res.Img, nil
}

// pass tracks one Compute call's tiles. All fields are guarded by the hub
// mutex except the immutable buf, level, setup and version.
type pass struct {
	buf     *image.RGBA
	level   int
	setup   setupMsg
	version uint64

	unstarted map[image.Rectangle]struct{}
	inProcess map[image.Rectangle]struct{}

	totalPixels    int
	finishedPixels int

	done      chan struct{}
	abandon   chan struct{}
	completed bool
	abandoned bool
	dropped   bool
}

func newPass(buf *image.RGBA, rect image.Rectangle, level int, setup setupMsg, version uint64) *pass {
	tiles := splitTiles(rect, tileSize)
	unstarted := make(map[image.Rectangle]struct{}, len(tiles))
	for _, t := range tiles {
		unstarted[t] = struct{}{}
	}
	return &pass{
		buf:         buf,
		level:       level,
		setup:       setup,
		version:     version,
		unstarted:   unstarted,
		inProcess:   make(map[image.Rectangle]struct{}),
		totalPixels: rect.Dx() * rect.Dy(),
		done:        make(chan struct{}),
		abandon:     make(chan struct{}),
	}
}

func (p *pass) popUnstartedLocked() (image.Rectangle, bool) {
	for tile := range p.unstarted {
		delete(p.unstarted, tile)
		p.inProcess[tile] = struct{}{}
		return tile, true
	}
	return image.Rectangle{}, false
}

// stragglerLocked re-serves a tile some connection already took. The
// duplicate result is harmless; tileFinished counts each tile once.
func (p *pass) stragglerLocked() (image.Rectangle, bool) {
	for tile := range p.inProcess {
		return tile, true
	}
	return image.Rectangle{}, false
}

func (p *pass) abandonLocked() {
	if !p.abandoned {
		p.abandoned = true
		close(p.abandon)
	}
}

// splitTiles cuts r into size×size tiles in global coordinates. Right and
// bottom edge tiles shrink to fit.
func splitTiles(r image.Rectangle, size int) []image.Rectangle {
	var tiles []image.Rectangle
	for oy := 0; oy < r.Dy(); oy += size {
		th := min(size, r.Dy()-oy)
		for ox := 0; ox < r.Dx(); ox += size {
			tw := min(size, r.Dx()-ox)
			tiles = append(tiles, image.Rect(r.Min.X+ox, r.Min.Y+oy, r.Min.X+ox+tw, r.Min.Y+oy+th))
		}
	}
	return tiles
}
