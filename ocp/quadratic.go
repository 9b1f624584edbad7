package ocp

import "gonum.org/v1/gonum/mat"

// QuadraticCost is the stage cost 1/2 (x-xref)^T Q (x-xref) +
// 1/2 (u-uref)^T R (u-uref), the workhorse cost of every LQR-flavored
// scenario in spec.md §8. A terminal QuadraticCost simply omits uref/R
// (u is always nil when a terminal cost is evaluated).
type QuadraticCost struct {
	Q, R       *mat.Dense
	Xref, Uref *mat.VecDense
}

func (c QuadraticCost) Evaluate(x, u *mat.VecDense) *CostData {
	var dx mat.VecDense
	dx.SubVec(x, c.Xref)

	var qdx mat.VecDense
	qdx.MulVec(c.Q, &dx)

	data := &CostData{
		Lx:  mat.NewVecDense(dx.Len(), nil),
		Lxx: mat.NewDense(dx.Len(), dx.Len(), nil),
	}
	data.Lx.CopyVec(&qdx)
	data.Lxx.Copy(c.Q)
	data.Value = 0.5 * mat.Dot(&dx, &qdx)

	if u == nil || c.R == nil {
		return data
	}

	var du mat.VecDense
	du.SubVec(u, c.Uref)
	var rdu mat.VecDense
	rdu.MulVec(c.R, &du)

	data.Lu = mat.NewVecDense(du.Len(), nil)
	data.Lu.CopyVec(&rdu)
	data.Luu = mat.NewDense(du.Len(), du.Len(), nil)
	data.Luu.Copy(c.R)
	data.Lxu = mat.NewDense(dx.Len(), du.Len(), nil) // no cross term
	data.Value += 0.5 * mat.Dot(&du, &rdu)

	return data
}
