package proxddp

// filterEntry is one accepted (merit, primal-infeasibility) pair.
type filterEntry struct {
	merit, infeas float64
}

// Filter is the bi-criteria step-acceptance filter of spec.md §4.5 (C8):
// a trial point is accepted if it is not dominated by any previously
// accepted point, i.e. it improves the merit value or the primal
// infeasibility (with a small margin to avoid cycling), rather than
// requiring monotone decrease of a single merit function the way the
// Linesearch alone does. There is no direct analogue of this in the
// teacher repo (gonum's optimize package only ever line-searches a scalar
// objective); it is built directly from spec.md's bi-criteria description
// and is driven by Solver.acceptStep's step-halving loop through Acceptable
// and Accept, not through Linesearch.Search's interface.
type Filter struct {
	entries []filterEntry
	gamma   float64 // margin factor, e.g. 1e-5
}

// NewFilter returns an empty filter with the given margin factor.
func NewFilter(gamma float64) *Filter {
	return &Filter{gamma: gamma}
}

// Acceptable reports whether (merit, infeas) is not dominated by any
// previously accepted entry.
func (f *Filter) Acceptable(merit, infeas float64) bool {
	for _, e := range f.entries {
		if merit >= e.merit*(1-f.gamma) && infeas >= e.infeas*(1-f.gamma) {
			return false
		}
	}
	return true
}

// Accept records (merit, infeas) as an accepted point, pruning any existing
// entry it now dominates.
func (f *Filter) Accept(merit, infeas float64) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if !(merit <= e.merit && infeas <= e.infeas) {
			kept = append(kept, e)
		}
	}
	f.entries = append(kept, filterEntry{merit, infeas})
}

// Reset clears the filter, used at the start of every outer BCL iteration
// (spec.md §4.6): the filter's acceptability is only meaningful relative to
// the current penalty parameters, which the BCL schedule may just have
// changed.
func (f *Filter) Reset() {
	f.entries = f.entries[:0]
}
