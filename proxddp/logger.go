package proxddp

import (
	"fmt"
	"io"
	"os"
)

// IterationStats is what Solve reports to a Recorder at the end of every
// outer iteration (spec.md §6, "Callbacks").
type IterationStats struct {
	Iteration     int
	MeritValue    float64
	PrimalInfeas  float64
	DualInfeas    float64
	MuDyn, MuEq   float64
	RhoPenal      float64
	StepSize      float64
	Accepted      bool
}

// Recorder observes the outer solve, mirroring the teacher's
// legacy opt.Recorder interface (Init once, Record every iteration) rather
// than a single monolithic callback.
type Recorder interface {
	Init() error
	Record(s IterationStats) error
}

// TextRecorder writes one line per iteration in a fixed-width table,
// grounded on the same per-iteration summary line convention the teacher's
// command-line tools use for optimizer progress. Writer defaults to
// os.Stdout (via NewTextRecorder, or lazily on first Record for a
// zero-value TextRecorder) but can be pointed anywhere an io.Writer is
// accepted — a log file, a buffer in a test, etc.
type TextRecorder struct {
	Writer io.Writer

	header bool
}

// NewTextRecorder returns a TextRecorder writing to w. A nil w defaults to
// os.Stdout.
func NewTextRecorder(w io.Writer) *TextRecorder {
	if w == nil {
		w = os.Stdout
	}
	return &TextRecorder{Writer: w}
}

func (r *TextRecorder) Init() error {
	if r.Writer == nil {
		r.Writer = os.Stdout
	}
	r.header = false
	return nil
}

func (r *TextRecorder) Record(s IterationStats) error {
	if r.Writer == nil {
		r.Writer = os.Stdout
	}
	if !r.header {
		fmt.Fprintf(r.Writer, "%4s %14s %12s %12s %10s %10s %8s %8s\n",
			"iter", "merit", "prim_infeas", "dual_infeas", "mu_dyn", "mu_eq", "rho", "accept")
		r.header = true
	}
	fmt.Fprintf(r.Writer, "%4d %14.6e %12.6e %12.6e %10.3e %10.3e %8.2e %8t\n",
		s.Iteration, s.MeritValue, s.PrimalInfeas, s.DualInfeas, s.MuDyn, s.MuEq, s.RhoPenal, s.Accepted)
	return nil
}
