package mandelzoom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampIterations(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{5000, 2048},
		{2049, 2048},
		{2048, 2048},
		{128, 128},
		{2, 2},
		{1, 2},
		{0, 2},
		{-7, 2},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, ClampIterations(test.in), "clamp(%d)", test.in)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("mandelbrot")
	require.NoError(t, err)
	assert.Equal(t, ModeMandelbrot, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeMandelbrot, m)

	m, err = ParseMode("julia")
	require.NoError(t, err)
	assert.Equal(t, ModeJulia, m)

	_, err = ParseMode("sierpinski")
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "mandelbrot", ModeMandelbrot.String())
	assert.Equal(t, "julia", ModeJulia.String())
}

func TestDefaultViewport(t *testing.T) {
	std := DefaultViewport(ModeMandelbrot)
	assert.Equal(t, -0.5, std.XCenter)
	assert.Equal(t, 0.0, std.YCenter)
	assert.Equal(t, 3.0, std.XExtent)

	jul := DefaultViewport(ModeJulia)
	assert.Equal(t, 0.0, jul.XCenter)
	assert.Equal(t, 0.0, jul.YCenter)
	assert.Equal(t, 3.0, jul.XExtent)
}
