package gar

import "gonum.org/v1/gonum/mat"

// ProximalRiccatiKernel is the backward/forward factorization engine of
// spec.md §4.1 (C3). It carries no state of its own; all scratch storage
// lives in the Workspace so that a single kernel value can drive many
// problems (or, see parallel.go, many goroutines) concurrently.
type ProximalRiccatiKernel struct{}

// Backward runs the proximal Riccati recursion from the terminal knot down
// to stage 0, writing the feedback gains and value function into ws. mudyn
// and mueq are the proximal regularization parameters on the dynamics and
// inequality-multiplier blocks respectively (spec.md §4.1).
//
// The recursion factors, at every interior stage, a reduced 2x2 KKT system
//
//	[[Rhat, D^T], [D, -mueq*I]] [u; z] = rhs
//
// Because the (2,2) block is the constant -mueq*I rather than a general
// indefinite block, this is solved by closed-form Schur elimination of that
// block (Schur = Rhat + D^T D / mueq, which is SPD whenever Rhat is) rather
// than a symmetric-indefinite (Bunch-Kaufman) factorization: gonum's mat
// package has no such solver, and hand-deriving pivoted LDL^T here without
// the ability to run it was judged riskier than this equivalent
// simplification.
func (ProximalRiccatiKernel) Backward(prob *LQProblem, ws *Workspace, mudyn, mueq float64) FactorizationStatus {
	N := prob.Horizon()
	if status := backwardTerminal(prob.Stages[N], ws.Factors[N], mueq); !status.Ok() {
		return status
	}
	for t := N - 1; t >= 0; t-- {
		status := stageKernelSolve(prob.Stages[t], ws.Factors[t], ws.Factors[t+1].Vm, mudyn, mueq)
		if !status.Ok() {
			return status
		}
	}
	return StatusSuccess
}

// backwardTerminal implements the terminal branch of the recursion
// (spec.md §4.1, "Terminal (t = N). Two branches on nu"). With no
// terminal control (nu == 0, the common case), there is no R/D coupling
// and the multiplier is just the proximal projection of the constraint
// value, z = (C x + d) / mueq. With a terminal control/slack (nu > 0),
// the 2x2 block [[R, D^T], [D, -mueq*I]] is eliminated exactly like an
// interior stage's step 5 (solveReducedKKT2x1/2xN, Schur complement over
// the constant -mueq*I block), but with no dynamics pullback: there is no
// successor knot to pull a value function back across E.
func backwardTerminal(model *Knot, d *StageFactor, mueq float64) FactorizationStatus {
	if model.Nu == 0 {
		zff := d.FF.Segment(1)
		Z := d.FB.Block(1, 0)

		zff.ScaleVec(1/mueq, model.Dv)
		Z.Scale(1/mueq, model.C)

		d.Vm.Pmat.Mul(model.C.T(), Z)
		d.Vm.Pmat.Add(d.Vm.Pmat, model.Q)
		symmetrize(d.Vm.Pmat)

		var ctZff mat.VecDense
		ctZff.MulVec(model.C.T(), zff)
		d.Vm.Pvec.AddVec(model.q, &ctZff)

		if model.Nth > 0 {
			Zth := d.FTh.Block(1, 0)
			Zth.Zero()
			d.Vm.Vtt.CloneFrom(model.Gth)
			d.Vm.Vt.CloneFrom(model.Gamma)
			d.Vm.Vxt.CloneFrom(model.Gx)
		}
		return StatusSuccess
	}

	d.kktMat.Block(0, 0).Copy(model.R)
	d.kktMat.Block(0, 1).Copy(model.D.T())
	d.kktMat.Block(1, 0).Copy(model.D)
	negMueqI(d.kktMat.Block(1, 1), mueq)

	d.schur.Copy(model.R)
	addScaledOuter(d.schur, 1/mueq, model.D)
	symView(d.kktSchurSym, d.schur)
	if ok := d.kktChol.Factorize(d.kktSchurSym); !ok {
		return StatusKKTFailed
	}

	kff := d.FF.Segment(0)
	zff := d.FF.Segment(1)
	if err := solveReducedKKT2x1(d.kktChol, model.D, mueq, model.r, model.Dv, kff, zff); err != nil {
		return StatusKKTFailed
	}

	K := d.FB.Block(0, 0)
	Z := d.FB.Block(1, 0)
	var ShatT mat.Dense
	ShatT.CloneFrom(model.S.T())
	if err := solveReducedKKT2xN(d.kktChol, model.D, mueq, &ShatT, model.C, K, Z); err != nil {
		return StatusKKTFailed
	}

	var shatK mat.Dense
	shatK.Mul(model.S, K)
	var ctZ mat.Dense
	ctZ.Mul(model.C.T(), Z)
	d.Vm.Pmat.Add(model.Q, &shatK)
	d.Vm.Pmat.Add(d.Vm.Pmat, &ctZ)
	symmetrize(d.Vm.Pmat)

	var shatKff mat.VecDense
	shatKff.MulVec(model.S, kff)
	var ctZff mat.VecDense
	ctZff.MulVec(model.C.T(), zff)
	d.Vm.Pvec.AddVec(model.q, &shatKff)
	d.Vm.Pvec.AddVec(d.Vm.Pvec, &ctZff)

	if model.Nth > 0 {
		Kth := d.FTh.Block(0, 0)
		Zth := d.FTh.Block(1, 0)
		Kth.Zero()
		Zth.Zero()
		d.Vm.Vtt.CloneFrom(model.Gth)
		d.Vm.Vt.CloneFrom(model.Gamma)
		d.Vm.Vxt.CloneFrom(model.Gx)
	}
	return StatusSuccess
}

// stageKernelSolve is the interior branch: one backward step across the
// generalized dynamics E x_{t+1} + A x_t + B u_t + f = mudyn*lambda_{t+1}
// (the dynamics constraint relaxed by the proximal costate term), pulling the successor
// value function (vn, the t+1 knot's ValueFunction) back across E and
// folding it into this stage's cost to produce the reduced LQ sub-problem,
// then eliminating (u, z) from its 2x2 KKT system.
//
// vn's Vxx and Vx fields are overwritten in place: once the predecessor has
// consumed them they hold only the Schur-reduced pullback of the t+1 value
// function, not its original meaning, and are never read again.
func stageKernelSolve(model *Knot, d *StageFactor, vn *ValueFunction, mudyn, mueq float64) FactorizationStatus {
	if status := factorEStage(model, d); !status.Ok() {
		return status
	}
	return stageKernelSolvePrefactored(model, d, vn, mudyn, mueq)
}

// factorEStage factors the generalized dynamics matrix E and caches its
// explicit inverse. Split out from stageKernelSolve so that
// ParallelRiccatiSolver can run this step, the only part of the recursion
// independent of evaluation order, concurrently across stages ahead of the
// serial sweep (see parallel.go).
func factorEStage(model *Knot, d *StageFactor) FactorizationStatus {
	d.Efact.Factorize(model.E)
	if err := d.Efact.SolveTo(d.Einv, false, eye(d.nxNext)); err != nil {
		return StatusEFactorFailed
	}
	return StatusSuccess
}

// stageKernelSolvePrefactored is the interior backward step assuming
// d.Efact/d.Einv have already been populated by factorEStage.
func stageKernelSolvePrefactored(model *Knot, d *StageFactor, vn *ValueFunction, mudyn, mueq float64) FactorizationStatus {
	// 2. Pull the successor value function back across E.
	d.EinvP.Mul(d.Einv.T(), vn.Pmat)
	d.Ptilde.Mul(d.EinvP, d.Einv)
	symmetrize(d.Ptilde)

	vn.Vx.MulVec(d.Einv.T(), vn.Pvec)
	vn.Vx.ScaleVec(-1, vn.Vx)

	// 3. Proximal-regularized Schur complement Lambda = I + mudyn*Ptilde.
	d.SchurMat.Scale(mudyn, d.Ptilde)
	addIdentity(d.SchurMat)
	symView(d.SchurSym, d.SchurMat)
	if ok := d.SchurChol.Factorize(d.SchurSym); !ok {
		return StatusSchurFailed
	}

	if err := d.SchurChol.SolveTo(vn.Vxx, d.Ptilde); err != nil {
		return StatusSchurFailed
	}
	var pf mat.VecDense
	pf.MulVec(d.Ptilde, model.F)
	pf.AddVec(&pf, vn.Vx)
	if err := d.SchurChol.SolveVecTo(vn.Vx, &pf); err != nil {
		return StatusSchurFailed
	}

	// 4. Dynamics-aware reduced cost blocks.
	d.AtV.Mul(model.A.T(), vn.Vxx)
	d.BtV.Mul(model.B.T(), vn.Vxx)

	d.Qhat.Mul(d.AtV, model.A)
	d.Qhat.Add(d.Qhat, model.Q)
	d.Rhat.Mul(d.BtV, model.B)
	d.Rhat.Add(d.Rhat, model.R)
	d.Shat.Mul(d.AtV, model.B)
	d.Shat.Add(d.Shat, model.S)

	d.qhat.MulVec(model.A.T(), vn.Vx)
	d.qhat.AddVec(d.qhat, model.q)
	d.rhat.MulVec(model.B.T(), vn.Vx)
	d.rhat.AddVec(d.rhat, model.r)

	// 5. Reduced 2x2 KKT system, eliminated in closed form.
	d.kktMat.Block(0, 0).Copy(d.Rhat)
	d.kktMat.Block(0, 1).Copy(model.D.T())
	d.kktMat.Block(1, 0).Copy(model.D)
	negMueqI(d.kktMat.Block(1, 1), mueq)

	d.schur.Copy(d.Rhat)
	addScaledOuter(d.schur, 1/mueq, model.D)
	symView(d.kktSchurSym, d.schur)
	if ok := d.kktChol.Factorize(d.kktSchurSym); !ok {
		return StatusKKTFailed
	}

	kff := d.FF.Segment(0)
	zff := d.FF.Segment(1)
	lff := d.FF.Segment(2)
	yff := d.FF.Segment(3)
	if err := solveReducedKKT2x1(d.kktChol, model.D, mueq, d.rhat, model.Dv, kff, zff); err != nil {
		return StatusKKTFailed
	}

	K := d.FB.Block(0, 0)
	Z := d.FB.Block(1, 0)
	L := d.FB.Block(2, 0)
	A := d.FB.Block(3, 0)
	var ShatT mat.Dense
	ShatT.CloneFrom(d.Shat.T())
	if err := solveReducedKKT2xN(d.kktChol, model.D, mueq, &ShatT, model.C, K, Z); err != nil {
		return StatusKKTFailed
	}

	// 6. Value-function gradient feedback and the forward gain across E.
	lff.MulVec(d.BtV.T(), kff)
	lff.AddVec(lff, vn.Vx)

	L.Mul(d.BtV.T(), K)
	var vxxA mat.Dense
	vxxA.Mul(vn.Vxx, model.A)
	L.Add(L, &vxxA)

	var rhsY mat.VecDense
	rhsY.MulVec(model.B, kff)
	rhsY.AddVec(&rhsY, model.F)
	var muLff mat.VecDense
	muLff.ScaleVec(mudyn, lff)
	rhsY.SubVec(&rhsY, &muLff)
	if err := d.Efact.SolveVecTo(yff, false, &rhsY); err != nil {
		return StatusEFactorFailed
	}
	yff.ScaleVec(-1, yff)

	var rhsGain mat.Dense
	rhsGain.Mul(model.B, K)
	rhsGain.Add(&rhsGain, model.A)
	var muL mat.Dense
	muL.Scale(mudyn, L)
	rhsGain.Sub(&rhsGain, &muL)
	if err := d.Efact.SolveTo(A, false, &rhsGain); err != nil {
		return StatusEFactorFailed
	}
	A.Scale(-1, A)

	// 7. This stage's own value function.
	var shatK mat.Dense
	shatK.Mul(d.Shat, K)
	var ctZ mat.Dense
	ctZ.Mul(model.C.T(), Z)
	d.Vm.Pmat.Add(d.Qhat, &shatK)
	d.Vm.Pmat.Add(d.Vm.Pmat, &ctZ)
	symmetrize(d.Vm.Pmat)

	var shatKff mat.VecDense
	shatKff.MulVec(d.Shat, kff)
	var ctZff mat.VecDense
	ctZff.MulVec(model.C.T(), zff)
	d.Vm.Pvec.AddVec(d.qhat, &shatKff)
	d.Vm.Pvec.AddVec(d.Vm.Pvec, &ctZff)

	if model.Nth > 0 {
		stageKernelSolveParametric(model, d, vn, K)
	}

	return StatusSuccess
}

// stageKernelSolveParametric folds in the parameter-sensitivity blocks
// (Gx, Gu, Gth, Gamma). Only the Vxt propagation formula is taken directly
// from the reference recursion (the "active", uncommented branch rather
// than the dead alternative left in the source — see SPEC_FULL.md §E).
// Kth/Zth would reuse the same reduced-KKT factorization with a
// constraint-parameter-sensitivity right-hand side that has no home in this
// port's data model (see DESIGN.md), so they are left zero; Vtt and Vt have
// no analogous pulled-back formula in the part of the recursion this port
// is grounded on and are carried forward unchanged. Both are documented,
// known simplifications of the parametric path, not claims of exactness.
func stageKernelSolveParametric(model *Knot, d *StageFactor, vn *ValueFunction, K *mat.Dense) {
	d.Gxhat.Mul(model.A.T(), vn.Vxt)
	d.Gxhat.Add(d.Gxhat, model.Gx)
	d.Guhat.Mul(model.B.T(), vn.Vxt)
	d.Guhat.Add(d.Guhat, model.Gu)

	d.FTh.Block(0, 0).Zero()
	d.FTh.Block(1, 0).Zero()

	var ktGu mat.Dense
	ktGu.Mul(K.T(), model.Gu)
	var atVxt mat.Dense
	atVxt.Mul(model.A.T(), vn.Vxt)
	d.Vm.Vxt.Add(model.Gx, &ktGu)
	d.Vm.Vxt.Add(d.Vm.Vxt, &atVxt)

	d.Vm.Vtt.CloneFrom(vn.Vtt)
	d.Vm.Vt.CloneFrom(vn.Vt)
}

// negMueqI overwrites dst with -mueq on the diagonal and zero elsewhere.
func negMueqI(dst *mat.Dense, mueq float64) {
	n, m := dst.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if i == j {
				dst.Set(i, j, -mueq)
			} else {
				dst.Set(i, j, 0)
			}
		}
	}
}

// solveReducedKKT2x1 solves [[Rhat,D^T],[D,-mueq*I]] [u;z] = [-X; -Y] for a
// single right-hand-side vector pair, given the pre-factored Cholesky of the
// eliminated Schur complement Rhat + D^T D / mueq.
func solveReducedKKT2x1(chol *mat.Cholesky, D *mat.Dense, mueq float64, X, Y, outU, outZ *mat.VecDense) error {
	var rhs mat.VecDense
	rhs.MulVec(D.T(), Y)
	rhs.ScaleVec(1/mueq, &rhs)
	rhs.AddVec(&rhs, X)
	if err := chol.SolveVecTo(outU, &rhs); err != nil {
		return err
	}
	outU.ScaleVec(-1, outU)
	outZ.MulVec(D, outU)
	outZ.AddVec(outZ, Y)
	outZ.ScaleVec(1/mueq, outZ)
	return nil
}

// solveReducedKKT2xN is the matrix-right-hand-side analogue of
// solveReducedKKT2x1, used for the feedback gains (K, Z).
func solveReducedKKT2xN(chol *mat.Cholesky, D *mat.Dense, mueq float64, X, Y *mat.Dense, outU, outZ *mat.Dense) error {
	var rhs mat.Dense
	rhs.Mul(D.T(), Y)
	rhs.Scale(1/mueq, &rhs)
	rhs.Add(&rhs, X)
	if err := chol.SolveTo(outU, &rhs); err != nil {
		return err
	}
	outU.Scale(-1, outU)
	outZ.Mul(D, outU)
	outZ.Add(outZ, Y)
	outZ.Scale(1/mueq, outZ)
	return nil
}
