// server hosts the interactive browser viewer. Each websocket session gets
// its own pair of progressive views, a Mandelbrot canvas driven by pointer
// gestures and an optional Julia preview following the selected point; all
// rendering happens server side and refreshed rectangles stream to the
// browser as raw pixels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	mandel "github.com/marben/mandelzoom"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func run() error {
	addr := flag.String("addr", "", "listen address; overrides the config file")
	configPath := flag.String("config", "", "TOML config file, hot reloaded on change")
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

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *addr != "" {
		cfg.Listen = *addr
	}

	srv := &server{logger: logger, cfg: cfg}
	if *configPath != "" {
		if err := watchConfig(ctx, *configPath, logger, srv.setConfig); err != nil {
			return err
		}
	}

	handler, err := srv.routes()
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", "addr", cfg.Listen, "url", "http://localhost"+cfg.Listen)
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// Open websocket sessions do not drain; the timeout bounds the wait.
	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	return nil
}

type server struct {
	logger   *slog.Logger
	sessions atomic.Int32

	mu  sync.Mutex
	cfg Config
}

func (s *server) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// setConfig swaps the config used by new sessions. Open sessions keep the
// settings they started with, and the listen address cannot change at
// runtime.
func (s *server) setConfig(c Config) {
	s.mu.Lock()
	c.Listen = s.cfg.Listen
	s.cfg = c
	s.mu.Unlock()
	s.logger.Info("config reloaded")
}
