package gar

import "gonum.org/v1/gonum/mat"

// Results is the forward-substitution output of spec.md §3: the state,
// control, constraint-multiplier and costate trajectories produced by
// Forward, plus the initial-condition multiplier solved by computeInitial.
type Results struct {
	Dxs    []*mat.VecDense // length N+1
	Dus    []*mat.VecDense // length N
	Dzs    []*mat.VecDense // length N+1, constraint-multiplier step
	Dlams  []*mat.VecDense // length N, costate step
	Lambda0 *mat.VecDense  // initial-condition multiplier
}

// computeInitial solves the initial-condition KKT system
//
//	[[Vxx0, G0^T], [G0, 0]] [dx0; lambda0] = [-vx0; -g0]
//
// where Vxx0 and vx0 are stage 0's Vm.Pmat and Vm.Pvec (not Vm.Vxx/Vm.Vx),
// by Schur elimination on Vxx0 (the stage-0 value-function Hessian, SPD by
// construction of the backward sweep), giving the free initial-state
// displacement and its associated multiplier. This mirrors the original
// recursion's separate handling of the initial condition as a general
// linear equality rather than treating x0 as externally fixed.
//
// The result is written into ws.Res.Dxs[0] and ws.Res.Lambda0; every
// temporary (the two Cholesky factorizations and their scratch) lives in ws
// and is reused across calls rather than allocated here (C5,
// "allocation-free hot path"), mirroring how StageFactor's backward-sweep
// scratch is preallocated once in NewWorkspace.
func computeInitial(prob *LQProblem, ws *Workspace) FactorizationStatus {
	vm0 := ws.Factors[0].Vm

	symView(ws.initSym, vm0.Pmat)
	if ok := ws.initChol.Factorize(ws.initSym); !ok {
		return StatusSchurFailed
	}

	G0 := prob.Init.G0
	g0 := prob.Init.G0v

	if err := ws.initChol.SolveTo(ws.initVinvGt, G0.T()); err != nil {
		return StatusSchurFailed
	}
	ws.initSchur.Mul(G0, ws.initVinvGt)
	symView(ws.initSchurSym, ws.initSchur)
	if ok := ws.initSchurChol.Factorize(ws.initSchurSym); !ok {
		return StatusSchurFailed
	}

	if err := ws.initChol.SolveVecTo(ws.initVinvV, vm0.Pvec); err != nil {
		return StatusSchurFailed
	}
	ws.initRhs.MulVec(G0, ws.initVinvV)
	ws.initRhs.SubVec(g0, ws.initRhs)

	lambda0 := ws.Res.Lambda0
	if err := ws.initSchurChol.SolveVecTo(lambda0, ws.initRhs); err != nil {
		return StatusSchurFailed
	}

	ws.initGtL.MulVec(G0.T(), lambda0)
	ws.initRhsX.AddVec(vm0.Pvec, ws.initGtL)
	ws.initRhsX.ScaleVec(-1, ws.initRhsX)
	dx0 := ws.Res.Dxs[0]
	if err := ws.initChol.SolveVecTo(dx0, ws.initRhsX); err != nil {
		return StatusSchurFailed
	}
	return StatusSuccess
}

// Forward runs the forward substitution of spec.md §4.1 given the gains
// computed by Backward, producing the full primal-dual step. The returned
// *Results is ws.Res, overwritten in place on every call; a caller that
// needs a step's values to survive a later Forward call must copy them out
// first (see proxddp/solver.go's cloneVecs, used for the same reason on its
// own per-iteration buffers).
func (ProximalRiccatiKernel) Forward(prob *LQProblem, ws *Workspace) (*Results, FactorizationStatus) {
	if status := computeInitial(prob, ws); !status.Ok() {
		return nil, status
	}

	res := ws.Res
	N := prob.Horizon()

	for t := 0; t < N; t++ {
		d := ws.Factors[t]
		dx := res.Dxs[t]

		du := res.Dus[t]
		du.MulVec(d.FB.Block(0, 0), dx)
		du.AddVec(du, d.FF.Segment(0))

		dz := res.Dzs[t]
		dz.MulVec(d.FB.Block(1, 0), dx)
		dz.AddVec(dz, d.FF.Segment(1))

		dlam := res.Dlams[t]
		dlam.MulVec(d.FB.Block(2, 0), dx)
		dlam.AddVec(dlam, d.FF.Segment(2))

		dxNext := res.Dxs[t+1]
		dxNext.MulVec(d.FB.Block(3, 0), dx)
		dxNext.AddVec(dxNext, d.FF.Segment(3))
	}

	term := ws.Factors[N]
	dz := res.Dzs[N]
	dz.MulVec(term.FB.Block(1, 0), res.Dxs[N])
	dz.AddVec(dz, term.FF.Segment(1))

	return res, StatusSuccess
}
