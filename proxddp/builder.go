package proxddp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/ocp"
)

// updateLQSubproblem fills ws.LQ from the current trial trajectory's cached
// dynamics/cost/constraint linearizations (spec.md §4.4, C7): every knot's
// Q/S/R/q/r from the cost expansion, A/B/E/F from the dynamics
// linearization, and the cost gradient corrected by the projected-Jacobian
// terms computed by computeMultipliers. C/D/Dv are left untouched here —
// they are written directly by computeMultipliers, since that is where the
// active-set mask naturally lives.
//
// prevLams is the outer loop's dynamics-costate proximal center
// (spec.md's "lams_prev", one entry per stage, mirroring prevVs — see
// solver.go), used below to derive the PDAL dynamics-multiplier residual
// fed into k.F.
//
// ASSUMPTION (carried from solver-proxddp.hxx's innerLoop): every cost,
// dynamics and constraint cache passed in here was evaluated at ws.Xs/Us,
// the same point the last accepted step (or linesearch trial) left the
// trajectory at — updateLQSubproblem never re-evaluates user callbacks
// itself.
func updateLQSubproblem(ws *Workspace, xreg, ureg float64, prevLams []*mat.VecDense) {
	N := ws.Prob.Horizon()
	muInvDyn := 1 / ws.MuDyn
	for t := 0; t < N; t++ {
		k := ws.LQ.Stages[t]
		cost := ws.CostData[t]
		dyn := ws.DynData[t]

		k.Q.Copy(cost.Lxx)
		addDiag(k.Q, xreg)
		k.q.CopyVec(cost.Lx)
		k.q.AddVec(k.q, ws.Lxs[t])

		if cost.Luu != nil {
			k.R.Copy(cost.Luu)
			addDiag(k.R, ureg)
		}
		if cost.Lxu != nil {
			k.S.Copy(cost.Lxu)
		}
		if cost.Lu != nil {
			k.r.CopyVec(cost.Lu)
			k.r.AddVec(k.r, ws.Lus[t])
		}

		k.A.Copy(dyn.A)
		k.B.Copy(dyn.B)
		// gar.Knot is in residual form E x' + A x + B u + f = 0, while
		// DynamicsData describes E x' = A x + B u + ...; negating E makes
		// the two agree with f set to the gap below.
		k.E.Scale(-1, dyn.E)

		// The dynamics gap: the tangent-space defect between the trial
		// trajectory's next state and what the dynamics model actually
		// predicts from (Xs[t], Us[t]). Zero whenever the trajectory is
		// dynamically feasible (the common case right after a nonlinear
		// rollout); nonzero when a linear rollout reused stale feedback
		// without re-integrating the true dynamics.
		space := stageSpaceAt(ws.Prob, t+1)
		gap := space.Difference(ws.Xs[t+1], dyn.Xnext)

		// PDAL dynamics-multiplier update (spec.md §4.3, §4.4 line 108):
		// lams_plus[t+1] = lams_prev[t+1] + mu_inv*gap, extrapolated to
		// lams_pdal[t+1] = 2*lams_plus[t+1] - lams[t+1], and folded into
		// the LQ dynamics residual as Lds[t+1] = mu_dyn*(lams_plus-lams)
		// rather than feeding the raw gap into k.F directly.
		lamsPlus := ws.LamsPlus[t+1]
		lamsPlus.ScaleVec(muInvDyn, gap)
		lamsPlus.AddVec(lamsPlus, prevLams[t+1])

		lamsPdal := ws.LamsPdal[t+1]
		lamsPdal.ScaleVec(2, lamsPlus)
		lamsPdal.SubVec(lamsPdal, ws.DynLams[t+1])

		lds := ws.Lds[t+1]
		lds.SubVec(lamsPlus, ws.DynLams[t+1])
		lds.ScaleVec(ws.MuDyn, lds)

		k.F.CopyVec(lds)
	}

	term := ws.LQ.Stages[N]
	tcost := ws.CostData[N]
	term.Q.Copy(tcost.Lxx)
	addDiag(term.Q, xreg)
	term.q.CopyVec(tcost.Lx)
	term.q.AddVec(term.q, ws.Lxs[N])

	// Initial-condition Hessian contraction (SPEC_FULL.md §D.5): the
	// identity initial-constraint model (see evaluate.go's
	// setInitialCondition) is linear, so its Hessian contribution is
	// exactly zero and there is nothing additive to fold into Q[0] here;
	// the hook exists so a future non-identity initial-constraint model
	// has a place to add it without touching the recursion itself.
}

// addDiag adds val to every diagonal entry of the (square) matrix m.
func addDiag(m *mat.Dense, val float64) {
	if val == 0 {
		return
	}
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+val)
	}
}

// stageSpaceAt resolves the manifold the trajectory lives on at index idx
// (terminal index N uses prob.TerminalSpace).
func stageSpaceAt(prob *ocp.Problem, idx int) ocp.Manifold {
	if idx == prob.Horizon() {
		return prob.TerminalSpace
	}
	return prob.Stages[idx].Space
}
