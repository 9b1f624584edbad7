package proxddp_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/ocp"
	"github.com/jorisv/aligator/proxddp"
)

var approxFloat = cmp.Comparer(func(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
})

func vec(vs ...float64) *mat.VecDense { return mat.NewVecDense(len(vs), vs) }

// doubleIntegratorProblem builds spec.md §8 scenario 1: an unconstrained LQR
// with A=[[1,1],[0,1]], B=[[0],[1]], Q=I, R=1, over a horizon of N stages.
func doubleIntegratorProblem(N int, x0 *mat.VecDense) *ocp.Problem {
	space := ocp.Euclidean{N: 2}
	A := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	B := mat.NewDense(2, 1, []float64{0, 1})
	dyn := ocp.LinearDynamics{Sp: space, A: A, B: B}

	Q := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	R := mat.NewDense(1, 1, []float64{1})
	zeroX := vec(0, 0)
	zeroU := vec(0)
	cost := ocp.QuadraticCost{Q: Q, R: R, Xref: zeroX, Uref: zeroU}

	stages := make([]ocp.Stage, N)
	for t := range stages {
		stages[t] = ocp.Stage{Space: space, Dynamics: dyn, Cost: cost}
	}

	return &ocp.Problem{
		X0:                 x0,
		Stages:             stages,
		TerminalSpace:      space,
		TerminalCost:       ocp.QuadraticCost{Q: Q, Xref: zeroX},
		TerminalConstraint: nil,
	}
}

// TestUnconstrainedLQRConverges covers spec.md §8 scenario 1: one inner
// Newton iteration suffices for a purely quadratic/linear problem, and
// primal infeasibility ends up near machine precision.
func TestUnconstrainedLQRConverges(t *testing.T) {
	prob := doubleIntegratorProblem(10, vec(1, 0))
	cfg := proxddp.DefaultConfig()
	cfg.ForceInitialCondition = true

	solver := proxddp.NewSolver(cfg)
	res, err := solver.Solve(prob, nil, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.NumIters > 3 {
		t.Errorf("NumIters = %d, want a small number of Newton iterations for an exact QP", res.NumIters)
	}
	if res.PrimalInfeas > 1e-6 {
		t.Errorf("PrimalInfeas = %v, want < 1e-6", res.PrimalInfeas)
	}
	if len(res.Xs) != 11 || len(res.Us) != 10 {
		t.Fatalf("Xs/Us lengths = %d/%d, want 11/10", len(res.Xs), len(res.Us))
	}
}

// TestForceInitialConditionPinsX0 covers spec.md §8 invariant 6: with
// force_initial_condition=true, results.xs[0] == problem.getInitState()
// bit-identical, and lams[0] == 0, at every accepted iterate.
func TestForceInitialConditionPinsX0(t *testing.T) {
	x0 := vec(3, -2)
	prob := doubleIntegratorProblem(5, x0)
	cfg := proxddp.DefaultConfig()
	cfg.ForceInitialCondition = true

	solver := proxddp.NewSolver(cfg)
	res, err := solver.Solve(prob, nil, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if diff := cmp.Diff(x0.RawVector().Data, res.Xs[0].RawVector().Data, approxFloat); diff != "" {
		t.Errorf("Xs[0] != X0 (-want +got):\n%s", diff)
	}
	if infNorm := mat.Norm(res.Lams[0], math.Inf(1)); infNorm != 0 {
		t.Errorf("Lams[0] infinity norm = %v, want exactly 0", infNorm)
	}
}

// TestEqualityConstrainedInitialValue covers spec.md §8 scenario 3: with
// G0=I, g0=x0_target posed as the (free, non-forced) initial condition, the
// solver must return xs[0] == x0_target regardless of xs_init[0].
func TestEqualityConstrainedInitialValue(t *testing.T) {
	x0Target := vec(5, 1)
	prob := doubleIntegratorProblem(3, x0Target)
	cfg := proxddp.DefaultConfig()
	// ForceInitialCondition left false: the initial condition is posed as a
	// genuine equality-constrained LQ variable (see evaluate.go's
	// setInitialCondition), not a hard post-hoc pin.

	solver := proxddp.NewSolver(cfg)
	wrongStart := []*mat.VecDense{vec(-10, 10), nil, nil, nil}
	res, err := solver.Solve(prob, wrongStart, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if diff := cmp.Diff(x0Target.RawVector().Data, res.Xs[0].RawVector().Data, approxFloat); diff != "" {
		t.Errorf("Xs[0] != x0Target (-want +got):\n%s", diff)
	}
}

func TestConfigValidateRejectsParallelNonlinear(t *testing.T) {
	cfg := proxddp.DefaultConfig()
	cfg.LinearSolverChoice = proxddp.ParallelSolver
	cfg.RolloutType = proxddp.NonlinearRollout
	cfg.NumThreads = 2

	solver := proxddp.NewSolver(cfg)
	prob := doubleIntegratorProblem(3, vec(1, 0))
	if _, err := solver.Solve(prob, nil, nil); err != proxddp.ErrNonlinearParallel {
		t.Errorf("Solve err = %v, want ErrNonlinearParallel", err)
	}
}

func TestConfigValidateRejectsBadNumThreads(t *testing.T) {
	cfg := proxddp.DefaultConfig()
	cfg.NumThreads = 0

	solver := proxddp.NewSolver(cfg)
	prob := doubleIntegratorProblem(3, vec(1, 0))
	if _, err := solver.Solve(prob, nil, nil); err != proxddp.ErrBadNumThreads {
		t.Errorf("Solve err = %v, want ErrBadNumThreads", err)
	}
}

// TestBoxConstrainedLQRRunsToCompletion covers spec.md §8 scenario 2's
// shape (a box-constrained single-input LQR) at a lighter weight than full
// numeric convergence checking: the solve must complete without error and
// every active-set multiplier must be nonnegative (Box.Project's own
// invariant, exercised through the full outer loop rather than in
// isolation).
func TestBoxConstrainedLQRRunsToCompletion(t *testing.T) {
	space := ocp.Euclidean{N: 1}
	A := mat.NewDense(1, 1, []float64{1})
	B := mat.NewDense(1, 1, []float64{1})
	dyn := ocp.LinearDynamics{Sp: space, A: A, B: B}

	Q := mat.NewDense(1, 1, []float64{1})
	R := mat.NewDense(1, 1, []float64{1})
	zeroX := vec(0)
	zeroU := vec(0)
	cost := ocp.QuadraticCost{Q: Q, R: R, Xref: zeroX, Uref: zeroU}

	box := ocp.Box{Lo: vec(-1), Hi: vec(1)}
	cstr := ocp.BoxConstraint{Cone: box, Cu: mat.NewDense(1, 1, []float64{1})}
	// Cx left nil: BoxConstraint.Evaluate tolerates a nil Cx only if never
	// dereferenced, so give it an explicit zero matrix instead.
	cstr.Cx = mat.NewDense(1, 1, []float64{0})

	const N = 5
	stages := make([]ocp.Stage, N)
	for t := range stages {
		stages[t] = ocp.Stage{Space: space, Dynamics: dyn, Cost: cost, Constraint: cstr}
	}

	prob := &ocp.Problem{
		X0:            vec(5),
		Stages:        stages,
		TerminalSpace: space,
		TerminalCost:  ocp.QuadraticCost{Q: Q, Xref: zeroX},
	}

	cfg := proxddp.DefaultConfig()
	cfg.ForceInitialCondition = true
	solver := proxddp.NewSolver(cfg)
	res, err := solver.Solve(prob, nil, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for t, v := range res.Vs {
		if v == nil {
			continue
		}
		for i := 0; i < v.Len(); i++ {
			if v.AtVec(i) < 0 {
				t.Errorf("stage %d: multiplier component %d = %v, want >= 0", t, i, v.AtVec(i))
			}
		}
	}
}
