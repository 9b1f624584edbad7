package ocp_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jorisv/aligator/ocp"
)

// TestEuclideanRoundTrip covers spec.md §8's round-trip boundary property:
// integrate(x, difference(x, y)) == y up to manifold tolerance.
func TestEuclideanRoundTrip(t *testing.T) {
	e := ocp.Euclidean{N: 3}
	x := vec(1, 2, 3)
	y := vec(4, -1, 0.5)

	dx := e.Difference(x, y)
	got := e.Integrate(x, dx)

	if diff := cmp.Diff(y.RawVector().Data, got.RawVector().Data, approxFloat); diff != "" {
		t.Errorf("integrate(x, difference(x, y)) != y (-want +got):\n%s", diff)
	}
}

func TestEuclideanDims(t *testing.T) {
	e := ocp.Euclidean{N: 5}
	if e.Dim() != 5 || e.TangentDim() != 5 {
		t.Errorf("Dim()/TangentDim() = %d/%d, want 5/5", e.Dim(), e.TangentDim())
	}
}
