package proxddp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/gar"
)

// tryLinearStep applies the gar Results directly as the trial trajectory:
// dx, du are added in tangent space without re-evaluating the dynamics
// model. Cheap, and exact to first order; used when Config.RolloutType is
// LinearRollout.
func tryLinearStep(ws *Workspace, res *gar.Results, alpha float64) {
	N := ws.Prob.Horizon()
	sp0 := stageSpaceAt(ws.Prob, 0)
	ws.TrialXs[0] = sp0.Integrate(ws.Xs[0], scaledVec(alpha, res.Dxs[0]))
	for t := 0; t < N; t++ {
		ws.TrialUs[t] = addScaled(ws.Us[t], alpha, res.Dus[t])
		sp := stageSpaceAt(ws.Prob, t+1)
		ws.TrialXs[t+1] = sp.Integrate(ws.Xs[t+1], scaledVec(alpha, res.Dxs[t+1]))
	}
}

// tryNonlinearRollout re-integrates the true dynamics under the closed-loop
// policy u = u_bar + alpha*kff + K*(x - x_bar), the "closed-loop forward
// simulation" of spec.md §4.7's NonlinearRollout, correcting for the gap
// between where the Riccati recursion assumed the trajectory would land and
// where it actually lands once the nonlinearity is respected.
func tryNonlinearRollout(ws *Workspace, res *gar.Results, alpha float64) {
	N := ws.Prob.Horizon()
	sp0 := stageSpaceAt(ws.Prob, 0)
	ws.TrialXs[0] = sp0.Integrate(ws.Xs[0], scaledVec(alpha, res.Dxs[0]))

	for t := 0; t < N; t++ {
		d := ws.Gar.Factors[t]
		sp := stageSpaceAt(ws.Prob, t)
		dx := sp.Difference(ws.Xs[t], ws.TrialXs[t])

		var du mat.VecDense
		du.MulVec(d.FB.Block(0, 0), dx)
		var kff mat.VecDense
		kff.ScaleVec(alpha, d.FF.Segment(0))
		du.AddVec(&du, &kff)

		ws.TrialUs[t] = addScaled(ws.Us[t], 1, &du)

		data := ws.Prob.Stages[t].Dynamics.Evaluate(ws.TrialXs[t], ws.TrialUs[t])
		ws.TrialXs[t+1] = data.Xnext
	}
}

func scaledVec(alpha float64, v *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.ScaleVec(alpha, v)
	return out
}

func addScaled(base *mat.VecDense, alpha float64, delta *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(base.Len(), nil)
	var scaled mat.VecDense
	scaled.ScaleVec(alpha, delta)
	out.AddVec(base, &scaled)
	return out
}
