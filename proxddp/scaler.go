package proxddp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CstrProximalScaler is the positive-diagonal constraint scaler of spec.md
// §3 ("Scaler") / §8: a per-constraint-row scale applied to the proximal
// multiplier center before cone projection, and undone (applyInverse) on
// the projected result, so that the stored multiplier estimate stays in
// the constraint's own units while the projection itself runs in a
// row-equalized space. diag entries are always > 0, so ApplyInverse is an
// exact inverse of Apply.
type CstrProximalScaler struct {
	diag *mat.VecDense // one positive entry per constraint row
}

// newCstrProximalScaler derives diag_i = 1/max(1, ||[Jx_i, Ju_i]||) from a
// stage's constraint Jacobian, a standard row-norm diagonal preconditioner
// (the same row-by-row reduction floats.Norm performs for the infinity-norm
// measurements in evaluate.go's infNorm, applied here per row instead of
// once over the whole vector). A row with a large Jacobian norm gets
// shrunk before projection so its multiplier doesn't dominate a stage's
// other, better-conditioned rows — the concern raised against a trivial
// identity scaler for a stacked constraint like Box, whose upper and lower
// halves can carry differently scaled Jacobian rows in general (this
// port's BoxConstraint happens to mirror one half's rows into the other
// with a sign flip, so their norms coincide here — see DESIGN.md).
func newCstrProximalScaler(jx, ju *mat.Dense) *CstrProximalScaler {
	nc, nx := jx.Dims()
	nu := 0
	if ju != nil {
		_, nu = ju.Dims()
	}
	diag := mat.NewVecDense(nc, nil)
	for i := 0; i < nc; i++ {
		ss := 0.0
		for j := 0; j < nx; j++ {
			v := jx.At(i, j)
			ss += v * v
		}
		for j := 0; j < nu; j++ {
			v := ju.At(i, j)
			ss += v * v
		}
		norm := math.Sqrt(ss)
		if norm < 1 {
			norm = 1
		}
		diag.SetVec(i, 1/norm)
	}
	return &CstrProximalScaler{diag: diag}
}

// Apply writes dst = diag .* src (componentwise). dst must already be
// sized to the scaler's dimension (the caller's responsibility, matching
// C5's allocation-free-hot-path convention elsewhere in this package).
func (s *CstrProximalScaler) Apply(dst, src *mat.VecDense) {
	n := s.diag.Len()
	for i := 0; i < n; i++ {
		dst.SetVec(i, s.diag.AtVec(i)*src.AtVec(i))
	}
}

// ApplyInverse writes dst = diag.^-1 .* src, the exact inverse of Apply
// since every diag entry is strictly positive.
func (s *CstrProximalScaler) ApplyInverse(dst, src *mat.VecDense) {
	n := s.diag.Len()
	for i := 0; i < n; i++ {
		dst.SetVec(i, src.AtVec(i)/s.diag.AtVec(i))
	}
}
