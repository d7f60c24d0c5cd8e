package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen = \":9000\"\npalette = \"fire\"\njulia_preview = false\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "fire", cfg.Palette)
	assert.False(t, cfg.JuliaPreview)

	// Keys the file does not name keep their defaults.
	assert.Equal(t, DefaultConfig().Iterations, cfg.Iterations)
	assert.Equal(t, ".", cfg.SaveDir)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown palette", `palette = "neon"`, "unknown palette"},
		{"unknown region", `region = "atlantis"`, "unknown region"},
		{"preview too small", `preview_size = 4`, "out of range"},
		{"bad toml", `listen = [`, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "server.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestWatchConfigAppliesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("iterations = 200\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied := make(chan Config, 16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, watchConfig(ctx, path, logger, func(c Config) { applied <- c }))

	require.NoError(t, os.WriteFile(path, []byte("iterations = 300\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-applied:
			if cfg.Iterations == 300 {
				return
			}
		case <-deadline:
			t.Fatal("config change never applied")
		}
	}
}
