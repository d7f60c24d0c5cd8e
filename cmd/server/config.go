package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	mandel "github.com/marben/mandelzoom"
)

// Config controls the server. The zero value is not useful; start from
// DefaultConfig. Iterations outside the supported range are clamped by the
// views rather than rejected here.
type Config struct {
	Listen       string `toml:"listen"`
	Region       string `toml:"region"`
	Iterations   int    `toml:"iterations"`
	Palette      string `toml:"palette"`
	JuliaPreview bool   `toml:"julia_preview"`
	PreviewSize  int    `toml:"preview_size"`
	SaveDir      string `toml:"save_dir"`
}

func DefaultConfig() Config {
	return Config{
		Listen:       ":8080",
		Iterations:   mandel.DefaultIterations,
		Palette:      "classic",
		JuliaPreview: true,
		PreviewSize:  256,
		SaveDir:      ".",
	}
}

// LoadConfig reads path over the defaults, so a partial file only overrides
// what it names.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Palette != "" {
		if _, ok := mandel.Palettes[c.Palette]; !ok {
			return fmt.Errorf("unknown palette %q (have %s)", c.Palette, strings.Join(mandel.PaletteNames(), ", "))
		}
	}
	if c.Region != "" {
		if _, ok := mandel.Landmarks[c.Region]; !ok {
			return fmt.Errorf("unknown region %q (have %s)", c.Region, strings.Join(mandel.LandmarkNames(), ", "))
		}
	}
	if c.PreviewSize < 16 || c.PreviewSize > 1024 {
		return fmt.Errorf("preview_size %d out of range 16..1024", c.PreviewSize)
	}
	return nil
}

// watchConfig re-reads path whenever it changes and hands valid configs to
// apply. The parent directory is watched because editors typically replace
// the file instead of writing it in place.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, apply func(Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					logger.Warn("config reload failed", "err", err)
					continue
				}
				apply(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "err", err)
			}
		}
	}()
	return nil
}
