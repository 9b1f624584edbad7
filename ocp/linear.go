package ocp

import "gonum.org/v1/gonum/mat"

// LinearDynamics is the time-invariant (or time-varying, via a fresh value
// per stage) explicit dynamics x_{t+1} = A x_t + B u_t + c, with an
// optional generalized mass matrix E (defaults to identity). It is the
// dynamics model behind the LQR-style end-to-end scenarios of spec.md §8.1
// and §8.2, and the linearization point every nonlinear dynamics model in a
// DDP-style solver ultimately reduces to at each outer iteration.
type LinearDynamics struct {
	Sp      Manifold
	A, B, E *mat.Dense
	C       *mat.VecDense // affine offset, may be nil (treated as zero)
}

func (d LinearDynamics) NumInputs() int { _, m := d.B.Dims(); return m }
func (d LinearDynamics) Space() Manifold { return d.Sp }

func (d LinearDynamics) Evaluate(x, u *mat.VecDense) *DynamicsData {
	n, _ := d.A.Dims()

	xnext := mat.NewVecDense(n, nil)
	xnext.MulVec(d.A, x)
	var bu mat.VecDense
	bu.MulVec(d.B, u)
	xnext.AddVec(xnext, &bu)
	if d.C != nil {
		xnext.AddVec(xnext, d.C)
	}

	E := d.E
	if E == nil {
		E = eyeDense(n)
	}

	return &DynamicsData{
		Xnext: xnext,
		A:     d.A,
		B:     d.B,
		E:     E,
	}
}

func eyeDense(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
