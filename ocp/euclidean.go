package ocp

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Euclidean is the flat R^n manifold: Integrate/Difference are plain vector
// addition/subtraction. This is the Manifold every example scenario in
// spec.md §8 uses; a non-flat manifold is left to the user, per spec.md §1
// ("Non-goals: no concrete manifold operation library").
type Euclidean struct {
	N int
}

func (e Euclidean) Dim() int        { return e.N }
func (e Euclidean) TangentDim() int { return e.N }

func (e Euclidean) Integrate(x, dx *mat.VecDense) *mat.VecDense {
	y := mat.NewVecDense(e.N, nil)
	y.AddVec(x, dx)
	return y
}

func (e Euclidean) Difference(x, y *mat.VecDense) *mat.VecDense {
	dx := mat.NewVecDense(e.N, nil)
	dx.SubVec(y, x)
	return dx
}

// Jdifference is the Jacobian of Difference(x0, x1) = x1 - x0: -I with
// respect to x0 (arg == 0), +I with respect to x1 (arg == 1).
func (e Euclidean) Jdifference(x0, x1 *mat.VecDense, arg int) *mat.Dense {
	sign := 1.0
	if arg == 0 {
		sign = -1.0
	}
	J := mat.NewDense(e.N, e.N, nil)
	for i := 0; i < e.N; i++ {
		J.Set(i, i, sign)
	}
	return J
}

// Rand returns a point with components drawn uniformly from [-1, 1].
func (e Euclidean) Rand() *mat.VecDense {
	x := mat.NewVecDense(e.N, nil)
	for i := 0; i < e.N; i++ {
		x.SetVec(i, 2*rand.Float64()-1)
	}
	return x
}
