package proxddp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/gar"
	"github.com/jorisv/aligator/ocp"
)

// computeMultipliers runs the multiplier & projection engine of spec.md
// §4.3 (C6) at every stage: it forms the trial dual estimate in
// row-scaled space, shifted = c(x,u)/mueq + scaler.Apply(vs_prev)
// (ws.ShiftedConstraints, spec's "shifted_constraints"), projects it onto
// the constraint's cone, and records both the unscaled projected value
// (scaler.ApplyInverse(proj), fed into the LQ builder as the multiplier
// used to linearize the constraint and carried forward as next iteration's
// vs_prev) and the projected-Jacobian correction (Lxs, Lus) that accounts
// for the non-smoothness of the projection at an active-set boundary.
//
// The per-row scaler (CstrProximalScaler, scaler.go) equalizes a stage's
// constraint rows before projection — e.g. a stacked Box constraint's
// upper and lower halves — rather than assuming they already share one
// scale, per the constraint-scaler round-trip invariant of spec.md §8.
//
// The projected-Jacobian correction is computed as a before/after-projection
// difference in the same scaled space (solver-proxddp.hxx's
// computeProjectedJacobians): the Jacobian-transpose pullback of shifted is
// evaluated once before projection and once after, and the difference is
// folded into the cost gradient, rather than trying to differentiate the
// (possibly non-smooth) projection operator directly.
//
// This does not touch the dynamics-multiplier residual (ws.Lds, computed
// in builder.go's updateLQSubproblem): that one has no projection step
// (dynamics are an equality, not a cone constraint) and needs the trial
// dynamics gap, which isn't available here.
//
// forceInitialCondition additionally zeroes Lxs[0]/Lus[0] (solver-proxddp
// quirk: the pinned initial condition must not receive a projection
// gradient correction, since its own dx is already pinned to zero).
func computeMultipliers(ws *Workspace, forceInitialCondition bool) {
	N := ws.Prob.Horizon()
	for t := 0; t <= N; t++ {
		cd := ws.ConstraintData[t]
		k := ws.LQ.Stages[t]
		if cd == nil {
			ws.Lxs[t].Zero()
			ws.Lus[t].Zero()
			k.C.Zero()
			k.Dv.Zero()
			if k.D != nil {
				k.D.Zero()
			}
			continue
		}
		cone := stageConstraintSet(ws.Prob, t)
		scaler := newCstrProximalScaler(cd.Jx, cd.Ju)
		ws.Scalers[t] = scaler

		scaledPrev := mat.NewVecDense(ws.Vs[t].Len(), nil)
		scaler.Apply(scaledPrev, ws.Vs[t])

		shifted := ws.ShiftedConstraints[t]
		shifted.ScaleVec(1/ws.MuEq, cd.Value)
		shifted.AddVec(shifted, scaledPrev)

		proj := cone.Project(shifted)
		jac := cone.ProjectionJacobianDiag(shifted)

		vsPlus := mat.NewVecDense(proj.Len(), nil)
		scaler.ApplyInverse(vsPlus, proj)
		ws.Vs[t] = vsPlus

		var beforeX, afterX mat.VecDense
		beforeX.MulVec(cd.Jx.T(), shifted)
		afterX.MulVec(cd.Jx.T(), proj)
		ws.Lxs[t].SubVec(&beforeX, &afterX)

		if cd.Ju != nil {
			var beforeU, afterU mat.VecDense
			beforeU.MulVec(cd.Ju.T(), shifted)
			afterU.MulVec(cd.Ju.T(), proj)
			ws.Lus[t].SubVec(&beforeU, &afterU)
		} else {
			ws.Lus[t].Zero()
		}

		maskConstraintRows(k, jac, cd)
		k.Dv.ScaleVec(ws.MuEq, proj)
	}

	if forceInitialCondition {
		ws.Lxs[0].Zero()
		ws.Lus[0].Zero()
	}
}

// maskConstraintRows copies cd's Jacobian blocks into the knot's C/D,
// zeroing any row whose projection Jacobian entry is 0 (an inactive
// constraint contributes no linearization this iteration).
func maskConstraintRows(k *gar.Knot, jac *mat.VecDense, cd *ocp.ConstraintData) {
	nc, nx := k.C.Dims()
	for i := 0; i < nc; i++ {
		active := jac.AtVec(i) != 0
		for j := 0; j < nx; j++ {
			v := 0.0
			if active {
				v = cd.Jx.At(i, j)
			}
			k.C.Set(i, j, v)
		}
	}
	if k.D == nil || cd.Ju == nil {
		return
	}
	_, nu := k.D.Dims()
	for i := 0; i < nc; i++ {
		active := jac.AtVec(i) != 0
		for j := 0; j < nu; j++ {
			v := 0.0
			if active {
				v = cd.Ju.At(i, j)
			}
			k.D.Set(i, j, v)
		}
	}
}

// stageConstraintSet resolves the ConstraintSet governing stage t (terminal
// knot uses prob.TerminalConstraint).
func stageConstraintSet(prob *ocp.Problem, t int) ocp.ConstraintSet {
	N := prob.Horizon()
	if t == N {
		return prob.TerminalConstraint.Set()
	}
	return prob.Stages[t].Constraint.Set()
}
