package gar

import "gonum.org/v1/gonum/mat"

// Knot holds one stage's worth of LQ data (spec.md §3: "Knot (LQ stage,
// index t)"). All matrices are dense and owned by the knot; the LQ builder
// (package proxddp) overwrites them in place every outer iteration rather
// than reallocating.
type Knot struct {
	Nx, Nu, Nc, Nth int

	// Cost blocks.
	Q *mat.Dense    // nx x nx, symmetric
	S *mat.Dense    // nx x nu
	R *mat.Dense    // nu x nu, symmetric
	q *mat.VecDense // nx
	r *mat.VecDense // nu

	// Dynamics blocks (generalized, residual form: x_{t+1} is implicitly
	// defined by E x_{t+1} + A x_t + B u_t + f = 0, E invertible; the kernel
	// relaxes the right-hand side to mudyn*lambda_{t+1}).
	A *mat.Dense    // nx' x nx
	B *mat.Dense    // nx' x nu
	E *mat.Dense    // nx' x nx'
	F *mat.VecDense // nx' (residual)

	// Constraint blocks.
	C *mat.Dense    // nc x nx
	D *mat.Dense    // nc x nu
	Dv *mat.VecDense // nc (offset "d")

	// Parameter blocks, valid only if Nth > 0.
	Gx    *mat.Dense    // nx x nth
	Gu    *mat.Dense    // nu x nth
	Gth   *mat.Dense    // nth x nth
	Gamma *mat.VecDense // nth
}

// NxNext returns the dimension of the next stage's state, i.e. the row
// dimension of A, B, E and F. For the terminal knot this is meaningless and
// is left at 0.
func (k *Knot) NxNext() int {
	if k.A == nil {
		return 0
	}
	r, _ := k.A.Dims()
	return r
}

// NewKnot allocates a zero-filled interior knot with the given dimensions.
// nxNext is the dimension of x_{t+1} (generally equal to Nx, but kept
// independent since manifold tangent spaces need not agree in size across
// stages).
func NewKnot(nx, nu, nc, nth, nxNext int) *Knot {
	k := &Knot{Nx: nx, Nu: nu, Nc: nc, Nth: nth}
	k.Q = mat.NewDense(nx, nx, nil)
	k.S = mat.NewDense(nx, max1(nu), nil)
	k.R = mat.NewDense(max1(nu), max1(nu), nil)
	k.q = mat.NewVecDense(nx, nil)
	k.r = mat.NewVecDense(max1(nu), nil)

	k.A = mat.NewDense(nxNext, nx, nil)
	k.B = mat.NewDense(nxNext, max1(nu), nil)
	k.E = mat.NewDense(nxNext, nxNext, nil)
	k.F = mat.NewVecDense(nxNext, nil)

	k.C = mat.NewDense(max1(nc), nx, nil)
	k.D = mat.NewDense(max1(nc), max1(nu), nil)
	k.Dv = mat.NewVecDense(max1(nc), nil)

	if nth > 0 {
		k.Gx = mat.NewDense(nx, nth, nil)
		k.Gu = mat.NewDense(max1(nu), nth, nil)
		k.Gth = mat.NewDense(nth, nth, nil)
		k.Gamma = mat.NewVecDense(nth, nil)
	}
	return k
}

// NewTerminalKnot allocates a zero-filled terminal knot. nu is usually 0
// (no terminal control), but spec.md §4.1's terminal recursion has a
// genuine nu > 0 branch (a terminal-stage control/slack variable coupled
// through R, S, D, r), so it is accepted here rather than hardcoded: a
// terminal knot has no dynamics blocks (A, B, E, F) regardless of nu, but
// does carry the same cost/constraint coupling blocks an interior knot
// does whenever nu > 0.
func NewTerminalKnot(nx, nu, nc, nth int) *Knot {
	k := &Knot{Nx: nx, Nu: nu, Nc: nc, Nth: nth}
	k.Q = mat.NewDense(nx, nx, nil)
	k.S = mat.NewDense(nx, max1(nu), nil)
	k.R = mat.NewDense(max1(nu), max1(nu), nil)
	k.q = mat.NewVecDense(nx, nil)
	k.r = mat.NewVecDense(max1(nu), nil)
	k.C = mat.NewDense(max1(nc), nx, nil)
	k.D = mat.NewDense(max1(nc), max1(nu), nil)
	k.Dv = mat.NewVecDense(max1(nc), nil)
	if nth > 0 {
		k.Gx = mat.NewDense(nx, nth, nil)
		k.Gu = mat.NewDense(max1(nu), nth, nil)
		k.Gth = mat.NewDense(nth, nth, nil)
		k.Gamma = mat.NewVecDense(nth, nil)
	}
	return k
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// InitialCondition is the (G0, g0) block of spec.md §3: the Jacobian and
// residual of the linearized initial-state equality constraint
// G0*dx0 + g0 = 0 (g0 is the constraint value at the current x0).
type InitialCondition struct {
	G0 *mat.Dense
	G0v *mat.VecDense // residual, named g0 to mirror spec.md but exported field must avoid a clash with G0
}

// LQProblem is an ordered sequence of knots of length N+1 plus the initial
// constraint block (spec.md §3).
type LQProblem struct {
	Stages []*Knot
	Init   InitialCondition
}

// Horizon returns N, the number of transitions (so len(Stages) == N+1).
func (p *LQProblem) Horizon() int { return len(p.Stages) - 1 }

// Nth is assumed constant across every stage of a problem: it names the
// dimension of a single global parameter vector theta, not a per-stage
// quantity, so the parametric backward recursion never has to reconcile
// differing Nth between a knot and its successor.

// NewLQProblem allocates an LQProblem for the given per-stage dimensions.
// nx, nu, nc, nth are length-(N+1) slices; nu[N] is honored (a terminal
// knot may have nu > 0, spec.md §4.1's terminal "else" branch) rather than
// forced to 0.
func NewLQProblem(nx, nu, nc, nth []int) *LQProblem {
	n := len(nx)
	stages := make([]*Knot, n)
	for t := 0; t < n-1; t++ {
		stages[t] = NewKnot(nx[t], nu[t], nc[t], nth[t], nx[t+1])
	}
	stages[n-1] = NewTerminalKnot(nx[n-1], nu[n-1], nc[n-1], nth[n-1])

	p := &LQProblem{Stages: stages}
	p.Init.G0 = mat.NewDense(nx[0], nx[0], nil)
	p.Init.G0v = mat.NewVecDense(nx[0], nil)
	return p
}
