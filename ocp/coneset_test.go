package ocp_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/ocp"
)

// approxFloat is the tolerance comparer every numeric test in this module
// uses (SPEC_FULL.md §B: go-cmp with a custom float64 Comparer).
var approxFloat = cmp.Comparer(func(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
})

func vec(vs ...float64) *mat.VecDense { return mat.NewVecDense(len(vs), vs) }

// TestConeProjectionIdempotent covers spec.md §8 invariant 5:
// normalConeProjection is idempotent for every supported cone factor.
func TestConeProjectionIdempotent(t *testing.T) {
	cases := []struct {
		name string
		cone ocp.ConstraintSet
		z    *mat.VecDense
	}{
		{"equality", ocp.EqualitySet{N: 3}, vec(1, -2, 3)},
		{"negative-orthant-mixed", ocp.NegativeOrthant{N: 3}, vec(1, -2, 0)},
		{"negative-orthant-all-negative", ocp.NegativeOrthant{N: 2}, vec(-1, -5)},
		{"box", ocp.Box{Lo: vec(-1), Hi: vec(1)}, vec(2, -0.5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			once := c.cone.Project(c.z)
			twice := c.cone.Project(once)
			if diff := cmp.Diff(once.RawVector().Data, twice.RawVector().Data, approxFloat); diff != "" {
				t.Errorf("projection not idempotent (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestNegativeOrthantViolation(t *testing.T) {
	cone := ocp.NegativeOrthant{N: 3}
	v := cone.Violation(vec(-1, 0, 2))
	want := vec(0, 0, 2)
	if diff := cmp.Diff(want.RawVector().Data, v.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("Violation mismatch (-want +got):\n%s", diff)
	}
}

func TestBoxProjectionJacobianDiagMatchesActiveSet(t *testing.T) {
	cone := ocp.Box{Lo: vec(-1), Hi: vec(1)}
	// z stacked as [c-hi, lo-c]; c=2 violates the upper bound only.
	z := vec(1, -3)
	jac := cone.ProjectionJacobianDiag(z)
	want := vec(1, 0)
	if diff := cmp.Diff(want.RawVector().Data, jac.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("ProjectionJacobianDiag mismatch (-want +got):\n%s", diff)
	}
}

func TestBoxDim(t *testing.T) {
	cone := ocp.Box{Lo: vec(-1, -2), Hi: vec(1, 2)}
	if got, want := cone.Dim(), 4; got != want {
		t.Errorf("Dim() = %d, want %d", got, want)
	}
}
