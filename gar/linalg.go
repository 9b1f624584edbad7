package gar

import "gonum.org/v1/gonum/mat"

// eye returns a fresh n x n identity matrix.
func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// addIdentity adds the n x n identity to m in place.
func addIdentity(m *mat.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
}

// symmetrize overwrites m with 0.5*(m + m^T), guarding against the small
// asymmetries that accumulate from chained dense products (spec.md §3
// invariant: "the stored vm.Vxx is symmetric ... up to numerical
// tolerance").
func symmetrize(m *mat.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// symView copies the lower+upper-averaged entries of a square Dense into a
// preallocated SymDense scratch buffer, so that repeated Cholesky
// factorizations reuse the same backing storage instead of allocating a new
// mat.Symmetric every backward sweep.
func symView(dst *mat.SymDense, src *mat.Dense) {
	n, _ := src.Dims()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, 0.5*(src.At(i, j)+src.At(j, i)))
		}
	}
}

// addScaledOuter adds alpha * a^T * a into dst (dst += alpha * a^T a),
// using a plain Dense accumulation since the result only needs to be
// consumed as a Symmetric via symView immediately after.
func addScaledOuter(dst *mat.Dense, alpha float64, a *mat.Dense) {
	n, _ := dst.Dims()
	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dst.Set(i, j, dst.At(i, j)+alpha*ata.At(i, j))
		}
	}
}
