package ocp_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/ocp"
)

// TestBoxConstraintEvaluateStacksBothSides checks the 2*N-stacked
// [c-hi; lo-c] encoding ocp.Box's ConstraintSet.Dim() expects
// (spec.md §8 scenario 2, box-constrained LQR).
func TestBoxConstraintEvaluateStacksBothSides(t *testing.T) {
	cu := mat.NewDense(1, 1, []float64{1})
	bc := ocp.BoxConstraint{
		Cone: ocp.Box{Lo: vec(-1), Hi: vec(1)},
		Cx:   mat.NewDense(1, 1, []float64{0}),
		Cu:   cu,
	}
	data := bc.Evaluate(vec(0), vec(1.5))

	want := vec(0.5, -2.5) // c=1.5: c-hi=0.5, lo-c=-2.5
	if diff := cmp.Diff(want.RawVector().Data, data.Value.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("Value mismatch (-want +got):\n%s", diff)
	}

	r, c := data.Jx.Dims()
	if r != 2 || c != 1 {
		t.Fatalf("Jx dims = %dx%d, want 2x1", r, c)
	}
	if got := data.Jx.At(0, 0); got != 0 {
		t.Errorf("Jx[0,0] = %v, want 0", got)
	}

	ur, uc := data.Ju.Dims()
	if ur != 2 || uc != 1 {
		t.Fatalf("Ju dims = %dx%d, want 2x1", ur, uc)
	}
	if got, want := data.Ju.At(0, 0), 1.0; got != want {
		t.Errorf("Ju[0,0] = %v, want %v", got, want)
	}
	if got, want := data.Ju.At(1, 0), -1.0; got != want {
		t.Errorf("Ju[1,0] = %v, want %v", got, want)
	}
}

func TestBoxConstraintSetIsUnderlyingCone(t *testing.T) {
	cone := ocp.Box{Lo: vec(-1), Hi: vec(1)}
	bc := ocp.BoxConstraint{Cone: cone, Cx: mat.NewDense(1, 1, []float64{1})}
	if bc.Set().Dim() != 2 {
		t.Errorf("Set().Dim() = %d, want 2", bc.Set().Dim())
	}
}

func TestLinearConstraintEvaluate(t *testing.T) {
	lc := ocp.LinearConstraint{
		Cone: ocp.EqualitySet{N: 1},
		Cx:   mat.NewDense(1, 2, []float64{1, -1}),
		D:    vec(0.5),
	}
	data := lc.Evaluate(vec(3, 1), nil)
	if diff := cmp.Diff([]float64{2.5}, data.Value.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("Value mismatch (-want +got):\n%s", diff)
	}
	if data.Ju != nil {
		t.Errorf("Ju should be nil when u is nil, got %v", data.Ju)
	}
}
