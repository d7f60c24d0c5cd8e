package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/render"
)

// Binary frames to the browser: one byte kind, then the refreshed
// rectangle as four big-endian uint32 (x, y, w, h), then raw RGBA rows.
const (
	frameMain    = 1
	framePreview = 2

	frameHeaderLen = 17
)

// sendWriteTimeout bounds every conn write so a stalled browser cannot
// wedge the render workers calling Refresh.
const sendWriteTimeout = 10 * time.Second

// clientMsg is every message the browser sends; Type selects which fields
// matter.
type clientMsg struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor"`
	W      int     `json:"w"`
	H      int     `json:"h"`
	N      int     `json:"n"`
	Name   string  `json:"name"`
}

type regionMsg struct {
	Type string  `json:"type"`
	Xmin float64 `json:"xmin"`
	Xmax float64 `json:"xmax"`
	Ymin float64 `json:"ymin"`
	Ymax float64 `json:"ymax"`
}

type pointMsg struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type statusMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type session struct {
	logger *slog.Logger
	conn   *websocket.Conn
	cfg    Config

	main    *mandel.View
	mainFB  *mandel.FrameBuffer
	preview *mandel.View

	// sendMu serializes all conn writes: band workers refresh
	// concurrently, and HUD messages interleave with pixel frames.
	sendMu sync.Mutex
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "err", err)
		return
	}
	n := s.sessions.Add(1)
	s.logger.Info("session opened", "remote", r.RemoteAddr, "sessions", n)

	sess := newSession(s.logger, c, s.config())
	sess.run(r.Context())

	s.logger.Info("session closed", "remote", r.RemoteAddr, "sessions", s.sessions.Add(-1))
}

func newSession(logger *slog.Logger, conn *websocket.Conn, cfg Config) *session {
	s := &session{logger: logger, conn: conn, cfg: cfg}

	mainP := &wsPresenter{kind: frameMain, s: s, fb: mandel.NewFrameBuffer()}
	s.mainFB = mainP.fb
	s.main = mandel.NewView(render.New(), mainP, 800, 600)
	s.main.SetVisible(false)
	s.main.OnRegionChanged = func(r mandel.Region) {
		s.sendJSON(regionMsg{Type: "region", Xmin: r.Xmin, Xmax: r.Xmax, Ymin: r.Ymin, Ymax: r.Ymax})
	}
	s.main.OnPointSelected = func(x, y float64) {
		if s.preview != nil {
			s.preview.SetJuliaPoint(complex(x, y))
		}
		s.sendJSON(pointMsg{Type: "point", X: x, Y: y})
	}
	s.main.SetIterations(cfg.Iterations)
	if p, ok := mandel.Palettes[cfg.Palette]; ok {
		s.main.SetPalette(p)
	}
	if r, ok := mandel.Landmarks[cfg.Region]; ok {
		s.main.SetRegion(r)
	}

	if cfg.JuliaPreview {
		previewP := &wsPresenter{kind: framePreview, s: s, fb: mandel.NewFrameBuffer()}
		s.preview = mandel.NewJuliaView(render.New(), previewP, cfg.PreviewSize, cfg.PreviewSize, 0)
		if p, ok := mandel.Palettes[cfg.Palette]; ok {
			s.preview.SetPalette(p)
		}
	}
	return s
}

// run is the session's control loop. Every view mutation happens on this
// goroutine, so gestures, setters and render cycle management never race.
func (s *session) run(ctx context.Context) {
	defer func() {
		s.main.Terminate()
		if s.preview != nil {
			s.preview.Terminate()
		}
	}()

	s.main.SetVisible(true)
	for {
		var m clientMsg
		if err := wsjson.Read(ctx, s.conn, &m); err != nil {
			s.conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		s.handle(m)
	}
}

func (s *session) handle(m clientMsg) {
	switch m.Type {
	case "size":
		s.main.SetSize(m.W, m.H)
	case "down":
		s.main.PointerDown(m.X, m.Y)
	case "move":
		s.main.PointerMove(m.X, m.Y)
	case "up":
		s.main.PointerUp(m.X, m.Y)
	case "pinch":
		s.main.PinchScale(m.X, m.Y, m.Factor)
	case "reset":
		s.main.Reset()
	case "iters":
		s.main.SetIterations(m.N)
	case "palette":
		p, ok := mandel.Palettes[m.Name]
		if !ok {
			s.sendJSON(statusMsg{Type: "status", Text: "unknown palette " + m.Name})
			return
		}
		s.main.SetPalette(p)
		if s.preview != nil {
			s.preview.SetPalette(p)
		}
	case "region":
		r, ok := mandel.Landmarks[m.Name]
		if !ok {
			s.sendJSON(statusMsg{Type: "status", Text: "unknown region " + m.Name})
			return
		}
		s.main.SetRegion(r)
	case "save":
		go s.save()
	default:
		s.logger.Debug("unknown message", "type", m.Type)
	}
}

// save runs off the control goroutine; it only reads the composite.
func (s *session) save() {
	name := fmt.Sprintf("mandel-%s.png", time.Now().Format("20060102-150405"))
	path := filepath.Join(s.cfg.SaveDir, name)
	if err := s.mainFB.SavePNG(path); err != nil {
		s.logger.Warn("save failed", "err", err)
		s.sendJSON(statusMsg{Type: "status", Text: "save failed: " + err.Error()})
		return
	}
	s.logger.Info("image saved", "path", path)
	s.sendJSON(statusMsg{Type: "status", Text: "saved " + name})
}

func (s *session) sendFrame(kind byte, buf *image.RGBA, rect image.Rectangle) {
	msg := make([]byte, frameHeaderLen+4*rect.Dx()*rect.Dy())
	msg[0] = kind
	binary.BigEndian.PutUint32(msg[1:5], uint32(rect.Min.X))
	binary.BigEndian.PutUint32(msg[5:9], uint32(rect.Min.Y))
	binary.BigEndian.PutUint32(msg[9:13], uint32(rect.Dx()))
	binary.BigEndian.PutUint32(msg[13:17], uint32(rect.Dy()))
	i := frameHeaderLen
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		i += copy(msg[i:], buf.Pix[buf.PixOffset(rect.Min.X, y):buf.PixOffset(rect.Max.X, y)])
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), sendWriteTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageBinary, msg); err != nil {
		s.logger.Debug("frame write failed", "err", err)
	}
}

func (s *session) sendJSON(v any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), sendWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, s.conn, v); err != nil {
		s.logger.Debug("hud write failed", "err", err)
	}
}

// wsPresenter streams refreshed rectangles to the browser and keeps a
// composite for PNG export.
type wsPresenter struct {
	kind byte
	s    *session
	fb   *mandel.FrameBuffer
}

func (p *wsPresenter) Refresh(buf *image.RGBA, rect image.Rectangle) {
	p.fb.Refresh(buf, rect)
	p.s.sendFrame(p.kind, buf, rect)
}
