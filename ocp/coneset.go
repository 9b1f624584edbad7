package ocp

import "gonum.org/v1/gonum/mat"

// EqualitySet is the cone {0}. Its normal cone is the whole space, so
// Project is the identity and every row is active (ProjectionJacobianDiag
// is all ones): any nonzero residual is driven to zero by the multiplier
// update rather than relaxed.
type EqualitySet struct{ N int }

func (s EqualitySet) Dim() int { return s.N }

func (s EqualitySet) Project(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(s.N, nil)
	out.CopyVec(z)
	return out
}

func (s EqualitySet) ProjectionJacobianDiag(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(s.N, nil)
	for i := 0; i < s.N; i++ {
		out.SetVec(i, 1)
	}
	return out
}

// Violation for an equality constraint is the residual itself: {0} admits
// no slack, so any nonzero z is, by its full magnitude, a violation.
func (s EqualitySet) Violation(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(s.N, nil)
	out.CopyVec(z)
	return out
}

// NegativeOrthant is the cone {z : z <= 0}, the standard representation of
// an inequality constraint c(x,u) <= 0 written as a membership test.
// Projection onto its normal cone is componentwise max(z, 0).
type NegativeOrthant struct{ N int }

func (s NegativeOrthant) Dim() int { return s.N }

func (s NegativeOrthant) Project(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(s.N, nil)
	for i := 0; i < s.N; i++ {
		if v := z.AtVec(i); v > 0 {
			out.SetVec(i, v)
		}
	}
	return out
}

func (s NegativeOrthant) ProjectionJacobianDiag(z *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(s.N, nil)
	for i := 0; i < s.N; i++ {
		if z.AtVec(i) > 0 {
			out.SetVec(i, 1)
		}
	}
	return out
}

// Violation is the positive part of z: zero wherever z already satisfies
// z <= 0, and the overshoot amount otherwise.
func (s NegativeOrthant) Violation(z *mat.VecDense) *mat.VecDense {
	return positivePart(z)
}

// Box is the cone describing a box constraint lo <= c(x,u) <= hi, expressed
// as a product of two one-sided orthant constraints stacked into a single
// 2*N-dimensional cone: the first N entries test c - hi <= 0, the second N
// entries test lo - c <= 0.
type Box struct {
	Lo, Hi *mat.VecDense
}

func (s Box) Dim() int { return 2 * s.Lo.Len() }

func (s Box) Project(z *mat.VecDense) *mat.VecDense {
	n := s.Lo.Len()
	out := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		if v := z.AtVec(i); v > 0 {
			out.SetVec(i, v)
		}
		if v := z.AtVec(n + i); v > 0 {
			out.SetVec(n+i, v)
		}
	}
	return out
}

func (s Box) ProjectionJacobianDiag(z *mat.VecDense) *mat.VecDense {
	n := s.Lo.Len()
	out := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		if z.AtVec(i) > 0 {
			out.SetVec(i, 1)
		}
		if z.AtVec(n+i) > 0 {
			out.SetVec(n+i, 1)
		}
	}
	return out
}

// Violation, like NegativeOrthant's, is the positive part of z: both halves
// of the stacked encoding are themselves one-sided (c-hi <= 0, lo-c <= 0).
func (s Box) Violation(z *mat.VecDense) *mat.VecDense {
	return positivePart(z)
}

// positivePart returns max(z, 0) componentwise, the shared Violation
// definition for every one-sided (negative-orthant-based) cone factor.
func positivePart(z *mat.VecDense) *mat.VecDense {
	n := z.Len()
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if v := z.AtVec(i); v > 0 {
			out.SetVec(i, v)
		}
	}
	return out
}
