// Package ocp defines the external interfaces a user implements to pose an
// optimal-control problem to package proxddp (spec.md §6): state manifolds,
// dynamics, running/terminal costs, and constraint sets, plus small
// reference implementations of each exercised by the end-to-end tests.
package ocp

import "gonum.org/v1/gonum/mat"

// Manifold abstracts the state space a trajectory lives on. Dim is the
// ambient dimension, TangentDim the dimension of the tangent space at any
// point (equal to Dim for a vector space, smaller for e.g. a Lie group
// quotient); proxddp always works with tangent-space displacements, never
// raw manifold coordinates, so every Jacobian produced anywhere in the
// solver is TangentDim-sized.
type Manifold interface {
	Dim() int
	TangentDim() int

	// Integrate computes y = Exp_x(dx), moving x by the tangent vector dx.
	Integrate(x, dx *mat.VecDense) *mat.VecDense
	// Difference computes the tangent vector dx such that Integrate(x, dx)
	// recovers y from x, i.e. dx = Log_x(y).
	Difference(x, y *mat.VecDense) *mat.VecDense
	// Jdifference returns the Jacobian of Difference(x0, x1) with respect
	// to argument arg (0 for x0, 1 for x1): the operation a non-Euclidean
	// ExplicitDynamics.Evaluate would compose with its own raw Jacobian to
	// produce a tangent-space-correct A/B pair, rather than hand-supplying
	// an already-composed Jacobian itself. Every Manifold this package
	// exercises is ocp.Euclidean, where Difference is exact linear
	// subtraction and this composition is the identity, so no reference
	// dynamics model calls it today (see DESIGN.md).
	Jdifference(x0, x1 *mat.VecDense, arg int) *mat.Dense
	// Rand returns a point sampled from the manifold, used by tests and
	// callers that want a random initial trajectory without hand-rolling
	// one themselves.
	Rand() *mat.VecDense
}

// DynamicsData is the linearization of a one-step dynamics model at a given
// (x, u), evaluated by ExplicitDynamics.Evaluate: the rolled-out next state
// and the generalized-dynamics Jacobian blocks (A, B, E) of
// E x_{t+1} = A x_t + B u_t + c, copied into a gar.Knot by proxddp's
// updateLQSubproblem (which negates E to match the knot's residual form).
// The dynamics gap fed into the knot's residual "f" is
// derived by the caller from Xnext (see proxddp's updateLQSubproblem),
// since it depends on the trial trajectory, not just this one evaluation.
type DynamicsData struct {
	Xnext   *mat.VecDense
	A, B, E *mat.Dense
}

// ExplicitDynamics is a one-step transition model x_{t+1} = f(x_t, u_t),
// linearized (with respect to tangent displacements) at each call to
// Evaluate. Implementations that have no natural generalized mass matrix
// should set E to the identity.
type ExplicitDynamics interface {
	NumInputs() int
	Space() Manifold

	Evaluate(x, u *mat.VecDense) *DynamicsData
}

// ImplicitDynamics is a generalized one-step model 0 = f(x_t, u_t, x_{t+1})
// (spec.md §6): unlike ExplicitDynamics, the next state is not computed by
// the model itself but solved for implicitly, so EvaluateImplicit takes the
// candidate x_{t+1} and returns only the Jacobian blocks (A, B, E) a
// gar.Knot needs, not an Xnext. No scenario in spec.md §8 supplies an
// implicit dynamics model (every reference scenario is explicit), so no
// rollout or builder code in this package exercises this interface yet; it
// is declared for configuration/API completeness per spec.md §6 rather than
// wired to a concrete implementation.
type ImplicitDynamics interface {
	NumInputs() int
	Space() Manifold

	EvaluateImplicit(x, u, xnext *mat.VecDense) (A, B, E *mat.Dense)
}

// CostData is the quadratic expansion of a running or terminal cost around
// (x, u): the gradient (Lx, Lu) and Hessian (Lxx, Lxu, Luu) blocks consumed
// directly by a gar.Knot's Q/S/R/q/r.
type CostData struct {
	Value            float64
	Lx, Lu           *mat.VecDense
	Lxx, Lxu, Luu    *mat.Dense
}

// CostFunction is a running or terminal cost term. Terminal costs are
// queried with u == nil and must not read it.
type CostFunction interface {
	Evaluate(x, u *mat.VecDense) *CostData
}

// ConstraintSet is a product cone K (spec.md §4.3/§6): the object against
// which a constraint residual c(x,u) is measured, c(x,u) in K (equality
// sets are represented as {0}, inequality as a half-space or box).
// Projection and its Jacobian are the two operations the multiplier and
// projected-Jacobian engine (proxddp package, C6) needs.
type ConstraintSet interface {
	// Dim is the dimension of the cone (equal to the constraint's own
	// output dimension).
	Dim() int

	// Project computes the projection of z onto the normal cone of K at
	// the evaluation point implied by z itself (e.g., for the negative
	// orthant, componentwise max(z, 0); for an equality set, z itself,
	// since the normal cone of {0} is the whole space).
	Project(z *mat.VecDense) *mat.VecDense

	// Violation returns the distance from the raw constraint value z to
	// the feasible set K itself (not its normal cone): zero componentwise
	// wherever z already satisfies the constraint, nonzero by the amount
	// of the violation otherwise. This is what primal-infeasibility
	// measurement (spec.md §8) uses; Project above answers a different
	// question (where does a trial dual variable land) and is not in
	// general the same operator.
	Violation(z *mat.VecDense) *mat.VecDense

	// ProjectionJacobianDiag returns the diagonal of the (generalized)
	// Jacobian of Project at z — the product cones this solver targets
	// (box, orthant, equality, free) all admit a diagonal projection
	// Jacobian, so this is represented directly as a vector of 0/1 entries
	// rather than a dense matrix (spec.md §4.3, "projected-Jacobian
	// correction").
	ProjectionJacobianDiag(z *mat.VecDense) *mat.VecDense
}

// ConstraintData is the linearization of a constraint residual c(x,u) at a
// point: the value (fed through the constraint's ConstraintSet to compute
// multiplier updates) and its Jacobian blocks (fed into a gar.Knot's C/D).
type ConstraintData struct {
	Value  *mat.VecDense
	Jx, Ju *mat.Dense
}

// ConstraintFunction pairs a residual evaluator with the ConstraintSet it is
// measured against. Terminal constraints are evaluated with u == nil and
// must leave ConstraintData.Ju nil.
type ConstraintFunction interface {
	Set() ConstraintSet
	Evaluate(x, u *mat.VecDense) *ConstraintData
}

// Stage bundles one time-step's dynamics, running cost and constraint.
// A Problem is a sequence of Stages plus a terminal cost/constraint pair.
type Stage struct {
	Space      Manifold
	Dynamics   ExplicitDynamics
	Cost       CostFunction
	Constraint ConstraintFunction // may be nil (unconstrained stage)
}

// Problem is the full horizon the user poses to proxddp (spec.md §6):
// an initial state, a sequence of stages, and a terminal cost/constraint.
type Problem struct {
	X0 *mat.VecDense

	Stages []Stage

	TerminalSpace      Manifold
	TerminalCost       CostFunction
	TerminalConstraint ConstraintFunction // may be nil
}

// Horizon returns N, the number of stages (transitions).
func (p *Problem) Horizon() int { return len(p.Stages) }
