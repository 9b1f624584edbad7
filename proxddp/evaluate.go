package proxddp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// evaluateProblem calls the user's dynamics/cost/constraint callbacks at the
// current trial trajectory (ws.Xs, ws.Us) and caches the resulting
// linearizations in ws.DynData/CostData/ConstraintData. This is spec.md
// §2's "nonlinear evaluation -> derivatives" step; every ocp.*Data type
// already bundles a callback's value together with its gradient/Jacobian
// (see ocp/interfaces.go), so a single Evaluate call per stage plays both
// roles spec.md §6 splits into "evaluate" and "computeDerivatives".
func evaluateProblem(ws *Workspace) {
	N := ws.Prob.Horizon()
	for t := 0; t < N; t++ {
		st := ws.Prob.Stages[t]
		ws.DynData[t] = st.Dynamics.Evaluate(ws.Xs[t], ws.Us[t])
		ws.CostData[t] = st.Cost.Evaluate(ws.Xs[t], ws.Us[t])
		if st.Constraint != nil {
			ws.ConstraintData[t] = st.Constraint.Evaluate(ws.Xs[t], ws.Us[t])
		} else {
			ws.ConstraintData[t] = nil
		}
	}
	ws.CostData[N] = ws.Prob.TerminalCost.Evaluate(ws.Xs[N], nil)
	if ws.Prob.TerminalConstraint != nil {
		ws.ConstraintData[N] = ws.Prob.TerminalConstraint.Evaluate(ws.Xs[N], nil)
	} else {
		ws.ConstraintData[N] = nil
	}
}

// setInitialCondition fills ws.LQ.Init (spec.md §3's "(G0, g0)" block) from
// the problem's fixed initial state. package ocp has no generic
// initial-constraint model (no Stage carries one — see DESIGN.md): the
// solver always poses the initial condition as the identity constraint
// x0 == prob.X0, which is exactly spec.md §8 scenario 3's
// "equality-constrained initial value" case and, via force_initial_condition's
// post-hoc dx0 pin (see innerLoop), also covers scenario 6's pinned-x0 mode.
func setInitialCondition(ws *Workspace) {
	space := stageSpaceAt(ws.Prob, 0)
	nx0 := space.TangentDim()
	G0 := ws.LQ.Init.G0
	for i := 0; i < nx0; i++ {
		for j := 0; j < nx0; j++ {
			v := 0.0
			if i == j {
				v = 1
			}
			G0.Set(i, j, v)
		}
	}
	g0 := space.Difference(ws.Prob.X0, ws.Xs[0])
	ws.LQ.Init.G0v.CopyVec(g0)
}

// infNorm is the infinity-norm reduction spec.md §8 uses throughout
// infeasibility/criterion measurement, delegated to the teacher's own
// floats package (the same way optimize/local.go reduces gradient norms)
// rather than a hand-rolled loop.
func infNorm(v *mat.VecDense) float64 {
	if v == nil || v.Len() == 0 {
		return 0
	}
	return floats.Norm(v.RawVector().Data, math.Inf(1))
}
