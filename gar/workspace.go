package gar

import "gonum.org/v1/gonum/mat"

// Workspace holds the per-stage factorization scratch (spec.md §3,
// "Workspace") for one LQProblem shape. It is allocated once via
// NewWorkspace and reused across every outer-solver iteration; Backward and
// Forward overwrite it in place. Forward and computeInitial write only into
// these preallocated buffers; Backward also allocates per-stage temporaries
// (see StageFactor).
type Workspace struct {
	Factors []*StageFactor

	// Res is Forward's output buffer, reused across every call rather than
	// allocated fresh (see results.go).
	Res *Results

	// computeInitial's factorization scratch (results.go), sized once for
	// prob.Stages[0].Nx and reused across every Forward call.
	initChol      *mat.Cholesky
	initSym       *mat.SymDense
	initVinvGt    *mat.Dense
	initSchur     *mat.Dense
	initSchurSym  *mat.SymDense
	initSchurChol *mat.Cholesky
	initVinvV     *mat.VecDense
	initRhs       *mat.VecDense
	initGtL       *mat.VecDense
	initRhsX      *mat.VecDense
}

// NewWorkspace allocates scratch matching the shape of prob.
func NewWorkspace(prob *LQProblem) (*Workspace, error) {
	if len(prob.Stages) == 0 {
		return nil, ErrEmptyProblem
	}
	N := prob.Horizon()
	factors := make([]*StageFactor, N+1)
	for t := 0; t < N; t++ {
		k := prob.Stages[t]
		factors[t] = NewStageFactor(k.Nx, k.Nu, k.Nc, k.Nth, k.NxNext())
	}
	term := prob.Stages[N]
	factors[N] = NewTerminalStageFactor(term.Nx, term.Nu, term.Nc, term.Nth)

	nx0 := prob.Stages[0].Nx
	res := &Results{
		Dxs:     make([]*mat.VecDense, N+1),
		Dus:     make([]*mat.VecDense, N),
		Dzs:     make([]*mat.VecDense, N+1),
		Dlams:   make([]*mat.VecDense, N),
		Lambda0: mat.NewVecDense(nx0, nil),
	}
	res.Dxs[0] = mat.NewVecDense(nx0, nil)
	for t := 0; t < N; t++ {
		k := prob.Stages[t]
		res.Dus[t] = mat.NewVecDense(k.Nu, nil)
		res.Dzs[t] = mat.NewVecDense(max1(k.Nc), nil)
		res.Dlams[t] = mat.NewVecDense(k.NxNext(), nil)
		res.Dxs[t+1] = mat.NewVecDense(k.NxNext(), nil)
	}
	res.Dzs[N] = mat.NewVecDense(max1(term.Nc), nil)

	return &Workspace{
		Factors:       factors,
		Res:           res,
		initChol:      &mat.Cholesky{},
		initSym:       mat.NewSymDense(nx0, nil),
		initVinvGt:    mat.NewDense(nx0, nx0, nil),
		initSchur:     mat.NewDense(nx0, nx0, nil),
		initSchurSym:  mat.NewSymDense(nx0, nil),
		initSchurChol: &mat.Cholesky{},
		initVinvV:     mat.NewVecDense(nx0, nil),
		initRhs:       mat.NewVecDense(nx0, nil),
		initGtL:       mat.NewVecDense(nx0, nil),
		initRhsX:      mat.NewVecDense(nx0, nil),
	}, nil
}

// Reset zeroes every stage's scratch buffers in place.
func (ws *Workspace) Reset() {
	for _, d := range ws.Factors {
		d.Reset()
	}
}
