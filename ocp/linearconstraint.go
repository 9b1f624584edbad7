package ocp

import "gonum.org/v1/gonum/mat"

// LinearConstraint is c(x,u) = Cx*x + Cu*u + d, measured against a fixed
// ConstraintSet. It is the constraint model behind the box- and
// equality-constrained end-to-end scenarios of spec.md §8.2/§8.3; Cu may be
// nil for a state-only (e.g. terminal or initial-condition) constraint.
type LinearConstraint struct {
	Cone   ConstraintSet
	Cx, Cu *mat.Dense
	D      *mat.VecDense
}

func (c LinearConstraint) Set() ConstraintSet { return c.Cone }

func (c LinearConstraint) Evaluate(x, u *mat.VecDense) *ConstraintData {
	n, _ := c.Cx.Dims()
	val := mat.NewVecDense(n, nil)
	val.MulVec(c.Cx, x)
	if u != nil && c.Cu != nil {
		var cu mat.VecDense
		cu.MulVec(c.Cu, u)
		val.AddVec(val, &cu)
	}
	if c.D != nil {
		val.AddVec(val, c.D)
	}
	data := &ConstraintData{Value: val, Jx: c.Cx}
	if u != nil {
		data.Ju = c.Cu
	}
	return data
}

// BoxConstraint is the box-constrained variant of LinearConstraint:
// c(x,u) = Cx*x + Cu*u is measured against a Box cone, which expects its
// input stacked as [c - Hi; Lo - c] (spec.md §8 scenario 2, "box-constrained
// LQR"). Cu may be nil for a state-only box.
type BoxConstraint struct {
	Cone   Box
	Cx, Cu *mat.Dense
}

func (c BoxConstraint) Set() ConstraintSet { return c.Cone }

func (c BoxConstraint) Evaluate(x, u *mat.VecDense) *ConstraintData {
	n, _ := c.Cx.Dims()
	cval := mat.NewVecDense(n, nil)
	cval.MulVec(c.Cx, x)
	if u != nil && c.Cu != nil {
		var cu mat.VecDense
		cu.MulVec(c.Cu, u)
		cval.AddVec(cval, &cu)
	}

	val := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		v := cval.AtVec(i)
		val.SetVec(i, v-c.Cone.Hi.AtVec(i))
		val.SetVec(n+i, c.Cone.Lo.AtVec(i)-v)
	}

	rows, cols := c.Cx.Dims()
	jx := mat.NewDense(2*rows, cols, nil)
	jx.Slice(0, rows, 0, cols).(*mat.Dense).Copy(c.Cx)
	negCx := mat.NewDense(rows, cols, nil)
	negCx.Scale(-1, c.Cx)
	jx.Slice(rows, 2*rows, 0, cols).(*mat.Dense).Copy(negCx)

	data := &ConstraintData{Value: val, Jx: jx}
	if u != nil && c.Cu != nil {
		urows, ucols := c.Cu.Dims()
		ju := mat.NewDense(2*urows, ucols, nil)
		ju.Slice(0, urows, 0, ucols).(*mat.Dense).Copy(c.Cu)
		negCu := mat.NewDense(urows, ucols, nil)
		negCu.Scale(-1, c.Cu)
		ju.Slice(urows, 2*urows, 0, ucols).(*mat.Dense).Copy(negCu)
		data.Ju = ju
	}
	return data
}
