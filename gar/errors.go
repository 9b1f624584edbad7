package gar

import "errors"

// Domain errors: returned eagerly (and only) from constructors as error
// values, never from the hot path. They cover the programmer errors that the
// teacher signals with panic(matrix.ErrShape) in mat64/cholesky.go and
// mat64/lu.go, but here they are returned, not panicked.
var (
	ErrEmptyProblem  = errors.New("gar: LQProblem has no knots")
	ErrSizeMismatch  = errors.New("gar: vector/matrix size does not match knot dimensions")
	ErrBadNumThreads = errors.New("gar: num_threads must be >= 1")
)

// FactorizationStatus reports the outcome of a single stage's
// factorization (spec.md §4.7, "per-stage factorization state machine").
// Unlike a domain error, a non-Success status is an expected, recoverable
// runtime outcome: the outer solver (package proxddp) turns it into an
// inner-loop failure and raises regularization rather than panicking.
type FactorizationStatus int

const (
	// StatusSuccess means every stage factored successfully.
	StatusSuccess FactorizationStatus = iota
	// StatusEFactorFailed means the generalized dynamics matrix E was
	// singular (LU factorization failed) at some stage.
	StatusEFactorFailed
	// StatusSchurFailed means I + mudyn*Ptilde was not positive definite
	// at some stage.
	StatusSchurFailed
	// StatusKKTFailed means the reduced 2x2 KKT Schur complement was not
	// positive definite at some stage (i.e. R + D^T D / mueq was not PD).
	StatusKKTFailed
)

func (s FactorizationStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEFactorFailed:
		return "E factorization failed"
	case StatusSchurFailed:
		return "Schur complement factorization failed"
	case StatusKKTFailed:
		return "KKT Schur complement factorization failed"
	default:
		return "unknown status"
	}
}

// Ok reports whether the status represents success.
func (s FactorizationStatus) Ok() bool { return s == StatusSuccess }
