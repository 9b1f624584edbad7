package gar

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

var approxFloat = cmp.Comparer(func(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
})

// buildTestProblem constructs a two-knot (N=1) LQ problem with a nontrivial
// inequality constraint at stage 0, used by several invariants below.
func buildTestProblem() *LQProblem {
	lq := NewLQProblem([]int{2, 2}, []int{1, 0}, []int{1, 0}, []int{0, 0})

	s0 := lq.Stages[0]
	s0.Q.Set(0, 0, 2)
	s0.Q.Set(0, 1, 0)
	s0.Q.Set(1, 0, 0)
	s0.Q.Set(1, 1, 3)
	s0.S.Set(0, 0, 0)
	s0.S.Set(1, 0, 0)
	s0.R.Set(0, 0, 1)
	s0.q.SetVec(0, 0.5)
	s0.q.SetVec(1, -0.5)
	s0.r.SetVec(0, 0.2)

	s0.A.Set(0, 0, 1)
	s0.A.Set(0, 1, 0.1)
	s0.A.Set(1, 0, 0)
	s0.A.Set(1, 1, 1)
	s0.B.Set(0, 0, 0)
	s0.B.Set(1, 0, 1)
	s0.E.Set(0, 0, 1)
	s0.E.Set(1, 1, 1)
	s0.F.SetVec(0, 0.01)
	s0.F.SetVec(1, -0.02)

	s0.C.Set(0, 0, 1)
	s0.C.Set(0, 1, 0)
	s0.D.Set(0, 0, 0.5)
	s0.Dv.SetVec(0, 0.3)

	term := lq.Stages[1]
	term.Q.Set(0, 0, 1)
	term.Q.Set(1, 1, 1)
	term.q.SetVec(0, 0.1)
	term.q.SetVec(1, -0.1)

	lq.Init.G0.Set(0, 0, 1)
	lq.Init.G0.Set(1, 1, 1)
	lq.Init.G0v.SetVec(0, 0.4)
	lq.Init.G0v.SetVec(1, -0.2)

	return lq
}

func stacked(a, b *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(a.Len()+b.Len(), nil)
	for i := 0; i < a.Len(); i++ {
		out.SetVec(i, a.AtVec(i))
	}
	for i := 0; i < b.Len(); i++ {
		out.SetVec(a.Len()+i, b.AtVec(i))
	}
	return out
}

// TestBackwardKKTResidual covers spec.md §8 invariant 1: the reconstructed
// KKT matrix, multiplied by the stacked [kff; zff], yields [-rhat; -Dv].
func TestBackwardKKTResidual(t *testing.T) {
	lq := buildTestProblem()
	ws, err := NewWorkspace(lq)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	k := ProximalRiccatiKernel{}
	if status := k.Backward(lq, ws, 0.1, 1.0); !status.Ok() {
		t.Fatalf("Backward failed: %s", status)
	}

	d := ws.Factors[0]
	kff := d.FF.Segment(0)
	zff := d.FF.Segment(1)
	stack := stacked(kff, zff)

	var lhs mat.VecDense
	lhs.MulVec(d.kktMat.Dense(), stack)

	model := lq.Stages[0]
	want := stacked(negVec(d.rhat), negVec(model.Dv))

	if diff := cmp.Diff(want.RawVector().Data, lhs.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("kktMat*[kff;zff] != [-rhat;-Dv] (-want +got):\n%s", diff)
	}
}

func negVec(v *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.ScaleVec(-1, v)
	return out
}

// TestComputeInitialKKTResidual checks that computeInitial's (dx0, lambda0)
// exactly solves the 2x2 initial-condition KKT system it is documented to
// solve: [[Vxx0, G0^T], [G0, 0]] [dx0; lambda0] = [-vx0; -g0].
func TestComputeInitialKKTResidual(t *testing.T) {
	lq := buildTestProblem()
	ws, err := NewWorkspace(lq)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	k := ProximalRiccatiKernel{}
	if status := k.Backward(lq, ws, 0.1, 1.0); !status.Ok() {
		t.Fatalf("Backward failed: %s", status)
	}

	if status := computeInitial(lq, ws); !status.Ok() {
		t.Fatalf("computeInitial failed: %s", status)
	}
	dx0, lambda0 := ws.Res.Dxs[0], ws.Res.Lambda0

	vm0 := ws.Factors[0].Vm
	var row1 mat.VecDense // Vxx0*dx0 + G0^T*lambda0
	row1.MulVec(vm0.Pmat, dx0)
	var g0tl mat.VecDense
	g0tl.MulVec(lq.Init.G0.T(), lambda0)
	row1.AddVec(&row1, &g0tl)

	var row2 mat.VecDense // G0*dx0
	row2.MulVec(lq.Init.G0, dx0)

	wantRow1 := negVec(vm0.Pvec)
	wantRow2 := negVec(lq.Init.G0v)

	if diff := cmp.Diff(wantRow1.RawVector().Data, row1.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("row1 residual (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantRow2.RawVector().Data, row2.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("row2 residual (-want +got):\n%s", diff)
	}
}

// TestForwardProducesFullTrajectory exercises Backward+Forward end to end
// and checks the proximally relaxed dynamics identity
// E*dx_{t+1} = -(A*dx_t + B*du_t + F) + mudyn*dlam_t holds for the returned
// step (spec.md §8 invariant 3's round-trip, restricted to
// the primal feasibility half of KKT since this problem has an active
// inequality and deriving the full dual optimum by hand is out of scope
// here).
func TestForwardProducesFullTrajectory(t *testing.T) {
	lq := buildTestProblem()
	ws, err := NewWorkspace(lq)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	k := ProximalRiccatiKernel{}
	if status := k.Backward(lq, ws, 0.1, 1.0); !status.Ok() {
		t.Fatalf("Backward failed: %s", status)
	}
	res, status := k.Forward(lq, ws)
	if !status.Ok() {
		t.Fatalf("Forward failed: %s", status)
	}
	if len(res.Dxs) != 2 || len(res.Dus) != 1 {
		t.Fatalf("Dxs/Dus lengths = %d/%d, want 2/1", len(res.Dxs), len(res.Dus))
	}

	model := lq.Stages[0]
	var lhs mat.VecDense
	lhs.MulVec(model.E, res.Dxs[1])

	var rhs mat.VecDense
	rhs.MulVec(model.A, res.Dxs[0])
	var bu mat.VecDense
	bu.MulVec(model.B, res.Dus[0])
	rhs.AddVec(&rhs, &bu)
	rhs.AddVec(&rhs, model.F)
	rhs.ScaleVec(-1, &rhs)
	rhs.AddScaledVec(&rhs, 0.1, res.Dlams[0]) // mudyn = 0.1, as passed to Backward

	if diff := cmp.Diff(rhs.RawVector().Data, lhs.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("dynamics residual E*dx1 != -(A*dx0+B*du0+F)+mudyn*dlam0 (-want +got):\n%s", diff)
	}
}

// TestZeroHorizonProblem covers the N=0 boundary: backward handles the
// terminal knot alone, forward returns an empty control sequence.
func TestZeroHorizonProblem(t *testing.T) {
	lq := NewLQProblem([]int{2}, []int{0}, []int{0}, []int{0})
	lq.Stages[0].Q.Set(0, 0, 1)
	lq.Stages[0].Q.Set(1, 1, 1)
	lq.Init.G0.Set(0, 0, 1)
	lq.Init.G0.Set(1, 1, 1)

	ws, err := NewWorkspace(lq)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	k := ProximalRiccatiKernel{}
	if status := k.Backward(lq, ws, 0.1, 1.0); !status.Ok() {
		t.Fatalf("Backward failed: %s", status)
	}
	res, status := k.Forward(lq, ws)
	if !status.Ok() {
		t.Fatalf("Forward failed: %s", status)
	}
	if len(res.Dus) != 0 {
		t.Errorf("Dus length = %d, want 0", len(res.Dus))
	}
	if len(res.Dxs) != 1 {
		t.Errorf("Dxs length = %d, want 1", len(res.Dxs))
	}
}

// TestBackwardTerminalNuPositiveKKTResidual covers spec.md §4.1's terminal
// "else" branch (nu > 0 at the terminal knot): the reconstructed 2x2 KKT
// matrix, multiplied by the stacked [kff;zff], yields [-r;-Dv] (spec.md
// §8 invariant 1, "resp. [-r;-d] at terminal").
func TestBackwardTerminalNuPositiveKKTResidual(t *testing.T) {
	lq := NewLQProblem([]int{2}, []int{1}, []int{1}, []int{0})
	term := lq.Stages[0]
	term.Q.Set(0, 0, 2)
	term.Q.Set(1, 1, 2)
	term.R.Set(0, 0, 1)
	term.S.Set(0, 0, 0.1)
	term.q.SetVec(0, 0.3)
	term.q.SetVec(1, -0.1)
	term.r.SetVec(0, 0.2)
	term.C.Set(0, 0, 1)
	term.C.Set(0, 1, 0.5)
	term.D.Set(0, 0, 0.4)
	term.Dv.SetVec(0, 0.25)
	lq.Init.G0.Set(0, 0, 1)
	lq.Init.G0.Set(1, 1, 1)

	ws, err := NewWorkspace(lq)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	k := ProximalRiccatiKernel{}
	if status := k.Backward(lq, ws, 0.1, 1.0); !status.Ok() {
		t.Fatalf("Backward failed: %s", status)
	}

	d := ws.Factors[0]
	kff := d.FF.Segment(0)
	zff := d.FF.Segment(1)
	stack := stacked(kff, zff)

	var lhs mat.VecDense
	lhs.MulVec(d.kktMat.Dense(), stack)

	want := stacked(negVec(term.r), negVec(term.Dv))
	if diff := cmp.Diff(want.RawVector().Data, lhs.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("kktMat*[kff;zff] != [-r;-Dv] (-want +got):\n%s", diff)
	}
}

func TestFactorizationStatusOk(t *testing.T) {
	if !StatusSuccess.Ok() {
		t.Error("StatusSuccess.Ok() = false, want true")
	}
	for _, s := range []FactorizationStatus{StatusEFactorFailed, StatusSchurFailed, StatusKKTFailed} {
		if s.Ok() {
			t.Errorf("%v.Ok() = true, want false", s)
		}
		if s.String() == "" {
			t.Errorf("%v.String() is empty", s)
		}
	}
}
