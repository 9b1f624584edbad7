package proxddp

import (
	"errors"
	"strconv"
)

// Domain errors, raised from Setup and never from the inner loop (spec.md
// §7, "domain errors").
var (
	ErrEmptyProblem   = errors.New("proxddp: problem has no stages")
	ErrDimMismatch    = errors.New("proxddp: initial state dimension does not match the first stage's manifold")
	ErrBadNumThreads  = errors.New("proxddp: num_threads must be >= 1")
	ErrNonlinearParallel = errors.New("proxddp: parallel rollout_type is only legal for rollout_type == LINEAR")
)

// InnerFailure reports that the inner (Riccati) loop could not produce a
// step at the current regularization (spec.md §7, "inner-failure"). Solve
// stops the outer loop on it and returns it together with the best iterate
// found so far.
type InnerFailure struct {
	Iteration int
	Status    string
}

func (e *InnerFailure) Error() string {
	return "proxddp: inner loop failed to factor at iteration " + strconv.Itoa(e.Iteration) + ": " + e.Status
}

// MaxItersReached reports that Solve exhausted its iteration budget without
// meeting the convergence tolerances (spec.md §7, "max-iters-reached"). Solve
// returns it together with the best iterate found, which the caller may
// still choose to use.
type MaxItersReached struct {
	Iterations int
}

func (e *MaxItersReached) Error() string {
	return "proxddp: reached the maximum of " + strconv.Itoa(e.Iterations) + " iterations without converging"
}
