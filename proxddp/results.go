package proxddp

import "gonum.org/v1/gonum/mat"

// Results is Solve's final report (spec.md §3, "Results"): the converged
// (or best found) trajectory and multipliers, plus the convergence
// diagnostics an outer caller typically inspects.
type Results struct {
	Xs, Us []*mat.VecDense
	Vs     []*mat.VecDense // inequality multipliers, length N+1
	Lams   []*mat.VecDense // dynamics costate, length N+1 (Lams[0] == 0)

	NumIters  int
	AlIter    int
	Converged bool

	MeritValue   float64
	PrimalInfeas float64
	DualInfeas   float64

	// InfeasHistory is the per-outer-iteration (primal, dual) infeasibility
	// pair (spec.md §3, "Results... per-iteration infeasibilities").
	InfeasHistory []InfeasPair
}

// InfeasPair is one outer iteration's (primal, dual) infeasibility reading.
type InfeasPair struct {
	Primal, Dual float64
}
