package proxddp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/gar"
	"github.com/jorisv/aligator/ocp"
)

// Workspace is the outer solver's per-problem scratch (spec.md §3,
// "Workspace", C5): the current trial trajectory, every stage's cached
// dynamics/cost/constraint linearization, the multiplier estimates, the
// projected-Jacobian correction vectors (Lxs, Lus), the PDAL dynamics
// residual (Lds), and the LQ sub-problem (package gar) built fresh from
// these every outer iteration.
//
// This port does not carry parameter-sensitivity (theta) support at the
// outer-solver level: every knot's Nth is 0. gar's kernel already documents
// the parametric branch as an incomplete, best-effort extension (see
// gar/kernel.go), and no end-to-end scenario in spec.md §8 exercises
// parametric sensitivities, so threading theta through the builder and
// multiplier engine as well would only add unverified surface.
type Workspace struct {
	Prob *ocp.Problem

	Xs, Us []*mat.VecDense // length N+1, N

	// Vs is the per-stage inequality-multiplier estimate (spec.md's "vs"),
	// length N+1, sized by each stage's constraint dimension.
	Vs []*mat.VecDense
	// DynLams is the per-stage dynamics costate (spec.md's "lams"), length
	// N+1; DynLams[0] is always zero (there is no costate before the first
	// transition) and DynLams[t+1] is produced by the LQ forward pass.
	DynLams []*mat.VecDense

	DynData        []*ocp.DynamicsData    // length N
	CostData       []*ocp.CostData        // length N+1
	ConstraintData []*ocp.ConstraintData  // length N+1, nil where unconstrained

	// Lxs, Lus hold the projected-Jacobian correction term (spec.md §4.3):
	// Lxs[t] is Jx^T*zbar before projection minus Jx^T*proj after
	// projection, folded into the state-cost gradient q[t]; Lus is the same
	// correction pulled back through Ju instead, folded into the
	// control-cost gradient r[t]. (Named Lus, not the spec's Lds: spec.md's
	// Lds names the PDAL dynamics-multiplier residual below, a distinct
	// quantity this port previously conflated with this one — see
	// DESIGN.md.)
	Lxs, Lus []*mat.VecDense

	// Lds is the PDAL dynamics-multiplier residual of spec.md §4.3,
	// Lds[t+1] = mu_dyn*(lams_plus[t+1]-lams[t+1]), recomputed every inner
	// iteration by updateLQSubproblem and fed into k.F (spec.md §4.4, line
	// 108) in place of the raw dynamics gap. Lds[0] is always zero: the
	// initial condition is posed as a plain identity constraint with no
	// preceding costate (see evaluate.go's setInitialCondition), so it has
	// no PDAL multiplier residual of its own.
	Lds []*mat.VecDense

	// LamsPlus, LamsPdal are the dynamics-costate "plus"/PDAL-extrapolated
	// estimates of spec.md §4.3 and §9, recomputed alongside Lds every
	// inner iteration from the current dynamics gap and the outer loop's
	// lams_prev (threaded in as a parameter, mirroring prevVs — see
	// solver.go).
	LamsPlus, LamsPdal []*mat.VecDense

	// Scalers holds each stage's CstrProximalScaler (spec.md §3 "Scaler"),
	// rebuilt from the current constraint Jacobian at the top of every
	// computeMultipliers call. ShiftedConstraints is the "shifted_constraints"
	// buffer of spec.md §4.3 (shifted = value/mueq + scaler.Apply(vs_prev)),
	// reused across calls rather than allocated fresh.
	Scalers            []*CstrProximalScaler
	ShiftedConstraints []*mat.VecDense

	LQ  *gar.LQProblem
	Gar *gar.Workspace

	MuDyn, MuEq float64

	TrialXs, TrialUs []*mat.VecDense // forward-pass / linesearch candidate trajectory
}

// NewWorkspace allocates a Workspace matching prob's shape.
func NewWorkspace(prob *ocp.Problem) (*Workspace, error) {
	N := prob.Horizon()
	if N == 0 {
		return nil, ErrEmptyProblem
	}

	nx := make([]int, N+1)
	nu := make([]int, N+1)
	nc := make([]int, N+1)
	nth := make([]int, N+1)

	for t := 0; t < N; t++ {
		nx[t] = prob.Stages[t].Space.TangentDim()
		nu[t] = prob.Stages[t].Dynamics.NumInputs()
		if prob.Stages[t].Constraint != nil {
			nc[t] = prob.Stages[t].Constraint.Set().Dim()
		}
	}
	nx[N] = prob.TerminalSpace.TangentDim()
	if prob.TerminalConstraint != nil {
		nc[N] = prob.TerminalConstraint.Set().Dim()
	}

	lq := gar.NewLQProblem(nx, nu, nc, nth)
	garWs, err := gar.NewWorkspace(lq)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		Prob:               prob,
		Xs:                 make([]*mat.VecDense, N+1),
		Us:                 make([]*mat.VecDense, N),
		Vs:                 make([]*mat.VecDense, N+1),
		DynLams:            make([]*mat.VecDense, N+1),
		DynData:            make([]*ocp.DynamicsData, N),
		CostData:           make([]*ocp.CostData, N+1),
		ConstraintData:     make([]*ocp.ConstraintData, N+1),
		Lxs:                make([]*mat.VecDense, N+1),
		Lus:                make([]*mat.VecDense, N+1),
		Lds:                make([]*mat.VecDense, N+1),
		LamsPlus:           make([]*mat.VecDense, N+1),
		LamsPdal:           make([]*mat.VecDense, N+1),
		Scalers:            make([]*CstrProximalScaler, N+1),
		ShiftedConstraints: make([]*mat.VecDense, N+1),
		LQ:                 lq,
		Gar:                garWs,
		TrialXs:            make([]*mat.VecDense, N+1),
		TrialUs:            make([]*mat.VecDense, N),
	}

	for t := 0; t <= N; t++ {
		ws.Vs[t] = mat.NewVecDense(max1(nc[t]), nil)
		ws.DynLams[t] = mat.NewVecDense(nx[t], nil)
		ws.Lxs[t] = mat.NewVecDense(nx[t], nil)
		ws.Lus[t] = mat.NewVecDense(max1(nu[t]), nil)
		ws.Lds[t] = mat.NewVecDense(nx[t], nil)
		ws.LamsPlus[t] = mat.NewVecDense(nx[t], nil)
		ws.LamsPdal[t] = mat.NewVecDense(nx[t], nil)
		ws.ShiftedConstraints[t] = mat.NewVecDense(max1(nc[t]), nil)
	}
	return ws, nil
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Init seeds the trajectory with the initial state rolled out under the
// given controls (or zero controls, if us is nil).
func (ws *Workspace) Init(us []*mat.VecDense) {
	N := ws.Prob.Horizon()
	ws.Xs[0] = ws.Prob.X0
	for t := 0; t < N; t++ {
		if us != nil {
			ws.Us[t] = us[t]
		} else {
			ws.Us[t] = mat.NewVecDense(ws.Prob.Stages[t].Dynamics.NumInputs(), nil)
		}
		data := ws.Prob.Stages[t].Dynamics.Evaluate(ws.Xs[t], ws.Us[t])
		ws.Xs[t+1] = data.Xnext
	}
}
