package gar

import "gonum.org/v1/gonum/mat"

// ValueFunction is the per-knot value-function record "vm" of spec.md §3:
// Pmat, pvec (the raw quadratic/linear value-function coefficients) and
// Vxx, vx, Vxt, Vtt, vt (the Schur-reduced coefficients propagated across
// the generalized-dynamics E matrix, see stageKernelSolve).
type ValueFunction struct {
	Pmat *mat.Dense    // nx x nx
	Pvec *mat.VecDense // nx

	Vxx *mat.Dense    // nx x nx
	Vx  *mat.VecDense // nx

	Vxt *mat.Dense    // nx x nth, only if nth > 0
	Vtt *mat.Dense    // nth x nth
	Vt  *mat.VecDense // nth
}

func newValueFunction(nx, nth int) *ValueFunction {
	vm := &ValueFunction{
		Pmat: mat.NewDense(nx, nx, nil),
		Pvec: mat.NewVecDense(nx, nil),
		Vxx:  mat.NewDense(nx, nx, nil),
		Vx:   mat.NewVecDense(nx, nil),
	}
	if nth > 0 {
		vm.Vxt = mat.NewDense(nx, nth, nil)
		vm.Vtt = mat.NewDense(nth, nth, nil)
		vm.Vt = mat.NewVecDense(nth, nil)
	}
	return vm
}

// StageFactor is the per-knot factorization scratch of spec.md §3. Its
// buffers are allocated once per Setup and overwritten in place by every
// backward sweep. The backward sweep is not allocation-free: kernel.go
// still allocates small per-stage temporaries (intermediate products and
// right-hand sides, and the identity passed to the E solve).
type StageFactor struct {
	nx, nu, nc, nth, nxNext int

	// Reduced 2x2 KKT system [[Rhat, Dt],[D, -mueq*I]] (row/col blocks
	// sized [nu, nc]) and its factorization. See kernel.go for why this is
	// solved via closed-form Schur elimination with mat.Cholesky rather
	// than a hand-rolled symmetric-indefinite (Bunch-Kaufman) solve.
	kktMat      *BlockMatrix
	kktChol     *mat.Cholesky
	kktSchurSym *mat.SymDense // nu x nu, symmetric view of schur reused across Factorize calls
	schur       *mat.Dense    // nu x nu Schur-complement matrix, reused as scratch

	// Factorization of the generalized dynamics matrix E.
	Efact *mat.LU
	Einv  *mat.Dense // nx' x nx', cached explicit inverse of E

	Ptilde *mat.Dense // nx' x nx'
	EinvP  *mat.Dense // nx' x nx', scratch: Einv^T * Pmat_{t+1}

	// Schur inversion of (I + mudyn*Ptilde).
	SchurMat  *mat.Dense // nx' x nx'
	SchurSym  *mat.SymDense
	SchurChol *mat.Cholesky

	AtV, BtV       *mat.Dense
	Qhat, Rhat, Shat *mat.Dense
	qhat, rhat     *mat.VecDense

	// Parameter pass scratch, only allocated if nth > 0.
	Gxhat, Guhat *mat.Dense

	// Feedforward block-vector [kff, zff, lff, yff].
	FF *BlockVector
	// Feedback block-matrix [K; Z; L; A], each block-row nx-wide.
	FB *BlockMatrix
	// Parameter feedback [Kth; Zth; Lth; Yth], each block-row nth-wide.
	FTh *BlockMatrix

	// Value function computed at this knot by the backward sweep.
	Vm *ValueFunction
}

// NewStageFactor allocates zero-filled scratch for an interior knot.
func NewStageFactor(nx, nu, nc, nth, nxNext int) *StageFactor {
	d := &StageFactor{nx: nx, nu: nu, nc: nc, nth: nth, nxNext: nxNext}

	d.kktMat = NewBlockMatrix([]int{max1(nu), max1(nc)}, []int{max1(nu), max1(nc)})
	d.kktChol = &mat.Cholesky{}
	d.kktSchurSym = mat.NewSymDense(max1(nu), nil)
	d.schur = mat.NewDense(max1(nu), max1(nu), nil)

	d.Efact = &mat.LU{}
	d.Einv = mat.NewDense(nxNext, nxNext, nil)
	d.Ptilde = mat.NewDense(nxNext, nxNext, nil)
	d.EinvP = mat.NewDense(nxNext, nxNext, nil)
	d.SchurMat = mat.NewDense(nxNext, nxNext, nil)
	d.SchurSym = mat.NewSymDense(nxNext, nil)
	d.SchurChol = &mat.Cholesky{}

	d.AtV = mat.NewDense(nx, nxNext, nil)
	d.BtV = mat.NewDense(max1(nu), nxNext, nil)
	d.Qhat = mat.NewDense(nx, nx, nil)
	d.Rhat = mat.NewDense(max1(nu), max1(nu), nil)
	d.Shat = mat.NewDense(nx, max1(nu), nil)
	d.qhat = mat.NewVecDense(nx, nil)
	d.rhat = mat.NewVecDense(max1(nu), nil)

	if nth > 0 {
		d.Gxhat = mat.NewDense(nx, nth, nil)
		d.Guhat = mat.NewDense(max1(nu), nth, nil)
	}

	d.FF = NewBlockVector([]int{max1(nu), max1(nc), nxNext, nxNext})
	d.FB = NewBlockMatrix([]int{max1(nu), max1(nc), nxNext, nxNext}, []int{nx})
	if nth > 0 {
		d.FTh = NewBlockMatrix([]int{max1(nu), max1(nc), nxNext, nxNext}, []int{nth})
	}

	d.Vm = newValueFunction(nx, nth)
	return d
}

// NewTerminalStageFactor allocates zero-filled scratch for the terminal
// knot, which has no dynamics blocks and a 2-segment feedforward/feedback
// (kff/zff, K/Z) rather than the interior knot's 4. nu is usually 0 (the
// kktMat/schur blocks degenerate to their nu==0 row/column), but sized on
// the caller's nu so spec.md §4.1's nu > 0 terminal branch has scratch to
// run in: the reduced 2x2 system [[R,D^T],[D,-mueq*I]] with no dynamics
// pullback (no Efact/Ptilde/Schur-over-E scratch is needed, since the
// terminal knot has no successor to pull back across E).
func NewTerminalStageFactor(nx, nu, nc, nth int) *StageFactor {
	d := &StageFactor{nx: nx, nu: nu, nc: nc, nth: nth}

	d.kktMat = NewBlockMatrix([]int{max1(nu), max1(nc)}, []int{max1(nu), max1(nc)})
	d.kktChol = &mat.Cholesky{}
	d.kktSchurSym = mat.NewSymDense(max1(nu), nil)
	d.schur = mat.NewDense(max1(nu), max1(nu), nil)

	d.FF = NewBlockVector([]int{max1(nu), max1(nc)})
	d.FB = NewBlockMatrix([]int{max1(nu), max1(nc)}, []int{nx})
	if nth > 0 {
		d.FTh = NewBlockMatrix([]int{max1(nu), max1(nc)}, []int{nth})
	}

	d.Vm = newValueFunction(nx, nth)
	return d
}

// Reset zeroes all scratch buffers (used when re-allocating a Workspace for
// a problem with different dimensions).
func (d *StageFactor) Reset() {
	d.FF.Reset()
	d.FB.Reset()
	if d.FTh != nil {
		d.FTh.Reset()
	}
}
