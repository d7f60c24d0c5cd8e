// snapshot renders a single frame to PNG. By default it renders locally;
// with -listen or -listen-ws it waits for remote render workers and
// composites their tiles instead, writing the file once the frame is
// complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/image/draw"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/remote"
	"github.com/marben/mandelzoom/render"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

type config struct {
	out           string
	width, height int
	scale         int
	iters         int
	mode          mandel.Mode
	point         complex128
	viewport      mandel.Viewport
	palette       mandel.Palette
	paletteSet    bool
	listen        string
	listenWS      string
}

func run() error {
	out := flag.String("o", "mandel.png", "output file")
	width := flag.Int("width", 1920, "output width in pixels")
	height := flag.Int("height", 1080, "output height in pixels")
	regionName := flag.String("region", "", "landmark to render: "+strings.Join(mandel.LandmarkNames(), ", "))
	center := flag.String("center", "", `plane center as "x,y"`)
	extent := flag.Float64("extent", 0, "plane width covered by the image")
	iters := flag.Int("iter", mandel.DefaultIterations, "iteration budget")
	paletteName := flag.String("palette", "", "color palette: "+strings.Join(mandel.PaletteNames(), ", "))
	julia := flag.String("julia", "", `render the Julia set for point "re,im"`)
	super := flag.Int("supersample", 1, "render at n× size and downscale")
	listen := flag.String("listen", "", "wait for render workers on this tcp address instead of rendering locally")
	listenWS := flag.String("listen-ws", "", "also serve a websocket worker endpoint on this http address")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	mandel.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := config{
		out:    *out,
		width:  *width,
		height: *height,
		scale:  max(*super, 1),
		iters:  *iters,
		listen: *listen, listenWS: *listenWS,
	}
	if c.width <= 0 || c.height <= 0 {
		return fmt.Errorf("bad output size %dx%d", c.width, c.height)
	}

	if *julia != "" {
		re, im, err := parsePair(*julia)
		if err != nil {
			return fmt.Errorf("parse -julia: %w", err)
		}
		c.mode = mandel.ModeJulia
		c.point = complex(re, im)
	}

	if *paletteName != "" {
		p, ok := mandel.Palettes[*paletteName]
		if !ok {
			return fmt.Errorf("unknown palette %q (have %s)", *paletteName, strings.Join(mandel.PaletteNames(), ", "))
		}
		c.palette = p
		c.paletteSet = true
	}

	c.viewport = mandel.DefaultViewport(c.mode)
	if *regionName != "" {
		r, ok := mandel.Landmarks[*regionName]
		if !ok {
			return fmt.Errorf("unknown region %q (have %s)", *regionName, strings.Join(mandel.LandmarkNames(), ", "))
		}
		c.viewport.SetRegion(r)
	}
	if *center != "" {
		x, y, err := parsePair(*center)
		if err != nil {
			return fmt.Errorf("parse -center: %w", err)
		}
		c.viewport.XCenter, c.viewport.YCenter = x, y
	}
	if *extent > 0 {
		c.viewport.XExtent = *extent
	}

	if c.listen != "" || c.listenWS != "" {
		return renderRemote(ctx, logger, c)
	}
	return renderLocal(ctx, logger, c)
}

// renderLocal drives an ordinary progressive view to full resolution and
// saves the composite.
func renderLocal(ctx context.Context, logger *slog.Logger, c config) error {
	rw, rh := c.width*c.scale, c.height*c.scale
	c.viewport.RecomputeBounds(rw, rh)

	fb := mandel.NewFrameBuffer()
	eng := render.New()
	var v *mandel.View
	if c.mode == mandel.ModeJulia {
		v = mandel.NewJuliaView(eng, fb, rw, rh, c.point)
	} else {
		v = mandel.NewView(eng, fb, rw, rh)
	}

	// Configure hidden; showing the view starts the one cycle we wait for.
	v.SetVisible(false)
	v.SetIterations(c.iters)
	if c.paletteSet {
		v.SetPalette(c.palette)
	}
	v.SetRegion(c.viewport.Region)
	logger.Info("rendering", "mode", c.mode, "region", v.Region(), "size", fmt.Sprintf("%dx%d", rw, rh), "iterations", v.Iterations())
	v.SetVisible(true)

	if err := v.Wait(ctx); err != nil {
		v.Terminate()
		return fmt.Errorf("render: %w", err)
	}
	return save(logger, fb.Image(), c)
}

// renderRemote binds the frame to a hub and lets connected workers fill it
// with one full-resolution pass.
func renderRemote(ctx context.Context, logger *slog.Logger, c config) error {
	rw, rh := c.width*c.scale, c.height*c.scale
	c.viewport.RecomputeBounds(rw, rh)

	hub := remote.NewHub(nil)
	defer hub.Close()
	buf := image.NewRGBA(image.Rect(0, 0, rw, rh))
	hub.BindBuffer(buf)
	if c.paletteSet {
		hub.SetPalette(c.palette)
	}
	hub.SetParameters(mandel.Params{
		Iterations: mandel.ClampIterations(c.iters),
		Region:     c.viewport.Region,
		Mode:       c.mode,
		JuliaPoint: c.point,
		Width:      rw,
		Height:     rh,
	})

	if c.listen != "" {
		l, err := net.Listen("tcp", c.listen)
		if err != nil {
			return fmt.Errorf("listen %s: %w", c.listen, err)
		}
		defer l.Close()
		go hub.Serve(l)
		logger.Info("waiting for render workers", "tcp", l.Addr().String())
	}
	if c.listenWS != "" {
		wsl := remote.NewWebsocketListener(ctx, "/workers")
		defer wsl.Close()
		mux := http.NewServeMux()
		mux.HandleFunc("/workers", wsl.Handler())
		srv := &http.Server{Addr: c.listenWS, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		defer srv.Close()
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker endpoint failed", "err", err)
			}
		}()
		go hub.Serve(wsl)
		logger.Info("waiting for render workers", "ws", "ws://"+c.listenWS+"/workers")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(2 * time.Second)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				logger.Info("rendering", "workers", hub.Workers(), "done", fmt.Sprintf("%.0f%%", 100*hub.Progress()))
			}
		}
	}()

	if err := hub.Compute(ctx, buf.Bounds(), 1, true); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return save(logger, buf, c)
}

func save(logger *slog.Logger, img *image.RGBA, c config) error {
	if img == nil {
		return errors.New("nothing rendered")
	}
	if c.scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = dst
	}

	f, err := os.Create(c.out)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	logger.Info("image saved", "path", c.out)
	return nil
}

func parsePair(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want two comma separated numbers, got %q", s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
