// worker connects to a render hub and computes tiles for it until the hub
// goes away or the process is interrupted. Run several instances, or one
// with -j, to throw more cores at a render.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/remote"
	"github.com/marben/mandelzoom/render"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func run() error {
	connect := flag.String("connect", "localhost:8081", "hub tcp address")
	wsURL := flag.String("ws", "", "hub websocket url, e.g. ws://host:8090/workers; overrides -connect")
	jobs := flag.Int("j", 1, "parallel connections to the hub")
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

	n := *jobs
	if n < 1 {
		n = 1
	}
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errCh <- serve(ctx, *connect, *wsURL) }()
	}

	// One failed connection brings the process down; a supervisor restart
	// is the reconnect strategy.
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func serve(ctx context.Context, tcpAddr, wsURL string) error {
	var (
		conn net.Conn
		err  error
	)
	if wsURL != "" {
		conn, err = remote.DialWebsocket(ctx, wsURL)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", tcpAddr)
	}
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return remote.ServeWorker(ctx, conn, render.New())
}
