package mandelzoom

import "fmt"

// Iteration budget limits. Budgets outside the range are clamped, never
// rejected, so a wild slider or config value degrades instead of failing.
const (
	DefaultIterations = 128
	MinIterations     = 2
	MaxIterations     = 2048
)

// startLevel is the coarseness every fresh render cycle begins at: one
// computed sample paints a startLevel×startLevel pixel block. Workers halve
// the level down to 1 (full resolution) unless a gesture holds it up.
const startLevel = 16

// Mode selects the fractal family a view displays.
type Mode int

const (
	// ModeMandelbrot iterates z²+c with c taken from the pixel.
	ModeMandelbrot Mode = iota
	// ModeJulia iterates z²+c with a fixed c and z taken from the pixel.
	ModeJulia
)

func (m Mode) String() string {
	switch m {
	case ModeMandelbrot:
		return "mandelbrot"
	case ModeJulia:
		return "julia"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode resolves the config/CLI spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "mandelbrot", "":
		return ModeMandelbrot, nil
	case "julia":
		return ModeJulia, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Params is the snapshot handed to a compute engine at the start of a render
// cycle. It is immutable for the duration of that cycle; a new cycle takes a
// fresh snapshot and never mutates a running one.
type Params struct {
	Iterations int
	Region     Region
	Mode       Mode
	JuliaPoint complex128 // fixed c, meaningful in ModeJulia only

	// Full raster dimensions. Compute calls receive sub-rectangles but map
	// pixels to the plane against the full raster.
	Width, Height int
}

// ClampIterations bounds an iteration budget to [MinIterations, MaxIterations].
func ClampIterations(n int) int {
	if n < MinIterations {
		return MinIterations
	}
	if n > MaxIterations {
		return MaxIterations
	}
	return n
}

// DefaultViewport returns the home viewport for a mode: the full Mandelbrot
// set framed left of center, or the Julia plane centered on the origin.
func DefaultViewport(m Mode) Viewport {
	if m == ModeJulia {
		return Viewport{XCenter: 0, YCenter: 0, XExtent: 3.0}
	}
	return Viewport{XCenter: -0.5, YCenter: 0, XExtent: 3.0}
}
