package proxddp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jorisv/aligator/gar"
	"github.com/jorisv/aligator/ocp"
)

// Solver is the outer primal-dual augmented-Lagrangian DDP driver of
// spec.md §4.6 (C9): it repeatedly linearizes prob, invokes the gar
// package's proximal Riccati kernel, accepts a step via linesearch or
// filter, updates multipliers, and drives mu_penal/rho_penal on the BCL
// schedule. Grounded on solver-proxddp.hxx's run()/innerLoop() (see
// DESIGN.md, SPEC_FULL.md §D).
type Solver struct {
	Cfg Config
}

// NewSolver returns a Solver with the given configuration.
func NewSolver(cfg Config) *Solver {
	return &Solver{Cfg: cfg}
}

// riccatiSolver is the common interface of ProximalRiccatiKernel and
// ParallelRiccatiSolver (spec.md §4.2's "identical feedforward/feedback").
type riccatiSolver interface {
	Backward(prob *gar.LQProblem, ws *gar.Workspace, mudyn, mueq float64) gar.FactorizationStatus
}

// Solve runs the outer BCL/AL loop of spec.md §4.6 to convergence or
// exhaustion of the iteration budget, starting from the given initial
// trajectory (usInit may be nil, meaning "zero controls"; xsInit may be nil,
// meaning "roll the initial controls forward").
func (s *Solver) Solve(prob *ocp.Problem, xsInit, usInit []*mat.VecDense) (*Results, error) {
	if err := s.Cfg.validate(); err != nil {
		return nil, err
	}
	ws, err := NewWorkspace(prob)
	if err != nil {
		return nil, err
	}
	N := prob.Horizon()

	ws.Init(usInit)
	if xsInit != nil {
		for t := 0; t <= N; t++ {
			if xsInit[t] != nil {
				ws.Xs[t] = xsInit[t]
			}
		}
	}
	if s.Cfg.ForceInitialCondition {
		ws.Xs[0] = prob.X0
	}

	prevVs := make([]*mat.VecDense, N+1)
	prevLams := make([]*mat.VecDense, N+1)
	for t := 0; t <= N; t++ {
		prevVs[t] = mat.NewVecDense(ws.Vs[t].Len(), nil)
		prevLams[t] = mat.NewVecDense(ws.DynLams[t].Len(), nil)
	}

	var kernelSolver riccatiSolver
	if s.Cfg.LinearSolverChoice == ParallelSolver {
		kernelSolver = gar.ParallelRiccatiSolver{NumThreads: s.Cfg.NumThreads}
	} else {
		kernelSolver = gar.ProximalRiccatiKernel{}
	}
	kernel := gar.ProximalRiccatiKernel{}

	cfg := s.Cfg
	muPenal := cfg.MuInit
	rhoPenal := cfg.RhoInit
	primTol := cfg.PrimalInfeasTolerance
	innerTol := cfg.InnerTolInit
	xreg := cfg.RegInit

	filter := NewFilter(cfg.FilterGamma)

	results := &Results{}
	numIters := 0
	alIter := 0

	if cfg.Recorder != nil {
		if err := cfg.Recorder.Init(); err != nil {
			return nil, err
		}
	}

	var lastPrim, lastDual, lastMerit float64
	var solveErr error
	for alIter < cfg.MaxAlIters && numIters < cfg.MaxIters {
		filter.Reset()
		ws.MuEq = muPenal
		ws.MuDyn = cfg.MuDynInit

		inner, inErr := s.innerLoop(ws, kernel, kernelSolver, prevVs, prevLams, innerTol, &xreg, &numIters, filter)
		if inErr != nil {
			// Both InnerFailure (factorization/linesearch stalled at max
			// regularization) and MaxItersReached are reported to the
			// caller alongside the best trajectory found so far, rather
			// than discarding it (spec.md §7).
			solveErr = inErr
			alIter++
			break
		}
		lastPrim, lastDual, lastMerit = inner.primInfeas, inner.dualInfeas, inner.merit
		results.InfeasHistory = append(results.InfeasHistory, InfeasPair{Primal: inner.primInfeas, Dual: inner.dualInfeas})

		if cfg.Recorder != nil {
			_ = cfg.Recorder.Record(IterationStats{
				Iteration:    alIter,
				MeritValue:   inner.merit,
				PrimalInfeas: inner.primInfeas,
				DualInfeas:   inner.dualInfeas,
				MuDyn:        ws.MuDyn,
				MuEq:         ws.MuEq,
				RhoPenal:     rhoPenal,
				StepSize:     inner.lastAlpha,
				Accepted:     true,
			})
		}

		if inner.primInfeas <= primTol {
			primTol = math.Max(cfg.TargetTolerance, primTol*math.Pow(muPenal, cfg.BCL.PrimBeta))
			innerTol = math.Max(cfg.TargetTolerance, innerTol*math.Pow(muPenal, cfg.BCL.DualBeta))
			updateProximalCenters(prevVs, inner.vsBeforeCall, ws.Vs, cfg.MultiplierUpdateMode)
			updateLamsProximalCenters(prevLams, ws, cfg.MultiplierUpdateMode)

			if math.Max(inner.dualInfeas, inner.primInfeas) <= cfg.TargetTolerance {
				results.Converged = true
				alIter++
				break
			}
		} else {
			oldMu := muPenal
			muPenal *= cfg.BCL.MuUpdateFactor
			if muPenal < cfg.MuMin {
				muPenal = cfg.MuMin
			}
			if muPenal == oldMu {
				muPenal = cfg.MuInit
			}
			primTol = cfg.PrimalInfeasTolerance * math.Pow(muPenal, cfg.BCL.PrimAlpha)
			innerTol = cfg.InnerTolInit * math.Pow(muPenal, cfg.BCL.DualAlpha)
		}
		rhoPenal *= cfg.BCL.RhoUpdateFactor
		alIter++
	}

	results.Xs = ws.Xs
	results.Us = ws.Us
	results.Vs = ws.Vs
	results.Lams = ws.DynLams
	results.NumIters = numIters
	results.AlIter = alIter
	results.PrimalInfeas = lastPrim
	results.DualInfeas = lastDual
	results.MeritValue = lastMerit
	return results, solveErr
}

// updateProximalCenters refreshes prevVs in place per
// Config.MultiplierUpdateMode (spec.md §4.6): NewtonUpdate and PrimalUpdate
// both take the just-computed projected estimate directly (this port has no
// separate raw-Newton-dual buffer at the outer-solver level — see
// DESIGN.md); PrimalDualUpdate extrapolates vs_pdal = 2*vs_plus - vs_prev
// per spec.md §9's PDAL estimator, generalized from the dynamics-multiplier
// case to inequalities per SPEC_FULL.md §E.
func updateProximalCenters(prevVs, vsBeforeCall, vsPlus []*mat.VecDense, mode MultiplierUpdateMode) {
	for t := range prevVs {
		switch mode {
		case PrimalDualUpdate:
			var pdal mat.VecDense
			pdal.ScaleVec(2, vsPlus[t])
			pdal.SubVec(&pdal, vsBeforeCall[t])
			prevVs[t].CopyVec(&pdal)
		default: // NewtonUpdate, PrimalUpdate
			prevVs[t].CopyVec(vsPlus[t])
		}
	}
}

// updateLamsProximalCenters refreshes prevLams in place per
// Config.MultiplierUpdateMode, the dynamics-costate counterpart of
// updateProximalCenters. Unlike Vs (which has no separately maintained
// "current" estimate beyond its proximal center), DynLams is a genuinely
// distinct, incrementally-committed costate (see commitTrial), so the PDAL
// extrapolation ws.LamsPdal = 2*lams_plus-lams (computed per spec.md §4.3 in
// builder.go's updateLQSubproblem, from the true ws.DynLams rather than a
// vsBeforeCall-style stand-in) can be used directly rather than
// reconstructed here.
func updateLamsProximalCenters(prevLams []*mat.VecDense, ws *Workspace, mode MultiplierUpdateMode) {
	src := ws.LamsPlus
	if mode == PrimalDualUpdate {
		src = ws.LamsPdal
	}
	for t := range prevLams {
		prevLams[t].CopyVec(src[t])
	}
}

// innerLoopOutcome is what one call to innerLoop reports back to the outer
// BCL driver.
type innerLoopOutcome struct {
	primInfeas, dualInfeas float64
	merit                  float64
	lastAlpha              float64
	vsBeforeCall           []*mat.VecDense // prevVs as it stood entering the accepted iteration's multiplier computation
}

// innerLoop runs Newton iterations of spec.md §4.6's "Inner loop" against a
// fixed (mu, rho) penalty pair until the stationarity criterion is met, the
// outer target tolerance is met early, or regularization saturates.
func (s *Solver) innerLoop(ws *Workspace, kernel gar.ProximalRiccatiKernel, solver riccatiSolver, prevVs, prevLams []*mat.VecDense, innerTol float64, xreg *float64, numIters *int, filter *Filter) (innerLoopOutcome, error) {
	cfg := s.Cfg
	N := ws.Prob.Horizon()

	var out innerLoopOutcome
	iter := 0
	for {
		if *numIters >= cfg.MaxIters {
			return out, &MaxItersReached{Iterations: *numIters}
		}
		*numIters++

		evaluateProblem(ws)
		setInitialCondition(ws)

		for t := 0; t <= N; t++ {
			ws.Vs[t].CopyVec(prevVs[t])
		}
		vsBeforeCall := cloneVecs(prevVs)
		computeMultipliers(ws, cfg.ForceInitialCondition)

		updateLQSubproblem(ws, cfg.Xreg, cfg.Ureg, prevLams)

		if cfg.ForceInitialCondition {
			ws.Lxs[0].Zero()
			ws.Lus[0].Zero()
		}

		primInfeas, dualInfeas := measureInfeasibilities(ws)
		out.primInfeas, out.dualInfeas = primInfeas, dualInfeas
		out.merit = meritValue(ws)
		out.vsBeforeCall = vsBeforeCall

		if dualInfeas <= innerTol {
			return out, nil
		}
		if math.Max(primInfeas, dualInfeas) <= cfg.TargetTolerance {
			return out, nil
		}

		status := solver.Backward(ws.LQ, ws.Gar, ws.MuDyn, ws.MuEq)
		if status.Ok() {
			var res *gar.Results
			res, status = kernel.Forward(ws.LQ, ws.Gar)
			if status.Ok() {
				if cfg.ForceInitialCondition {
					res.Dxs[0].Zero()
				}

				dphi0 := directionalDerivative(ws, res)
				if math.Abs(dphi0) <= cfg.DphiThresh {
					s.forwardPass(ws, res, 1.0)
					commitTrial(ws, res, 1.0)
					out.lastAlpha = 1.0
					iter++
					continue
				}

				alpha, accepted := s.acceptStep(ws, res, dphi0, out.merit, primInfeas, filter)
				if accepted {
					commitTrial(ws, res, alpha)
					out.lastAlpha = alpha
					iter++
					continue
				}
			}
		}

		*xreg *= 2
		if *xreg >= cfg.RegMax {
			return out, &InnerFailure{Iteration: iter, Status: status.String()}
		}
	}
}

// acceptStep runs the configured step-acceptance strategy (spec.md §4.5,
// C8) and returns the accepted step size, or false if no admissible step
// was found.
func (s *Solver) acceptStep(ws *Workspace, res *gar.Results, dphi0, phi0, primInfeas float64, filter *Filter) (float64, bool) {
	cfg := s.Cfg
	eval := func(alpha float64) float64 {
		s.forwardPass(ws, res, alpha)
		return trialMerit(ws)
	}

	if cfg.SAStrategy == FilterStrategy {
		alpha := 1.0
		for i := 0; i < cfg.LinesearchMaxIters; i++ {
			merit := eval(alpha)
			trialInfeas := trialPrimalInfeas(ws)
			if filter.Acceptable(merit, trialInfeas) {
				filter.Accept(merit, trialInfeas)
				return alpha, true
			}
			alpha *= 0.5
			if alpha < cfg.LinesearchMinStepSize {
				return 0, false
			}
		}
		return 0, false
	}

	ls := Linesearch{C1: cfg.LinesearchArmijoC1, MinStep: cfg.LinesearchMinStepSize, MaxIters: cfg.LinesearchMaxIters}
	lsres := ls.Search(phi0, dphi0, eval)
	return lsres.Alpha, lsres.Accepted
}

// forwardPass dispatches to the linear or nonlinear rollout per
// Config.RolloutType (spec.md §4.5).
func (s *Solver) forwardPass(ws *Workspace, res *gar.Results, alpha float64) {
	if s.Cfg.RolloutType == NonlinearRollout {
		tryNonlinearRollout(ws, res, alpha)
	} else {
		tryLinearStep(ws, res, alpha)
	}
}

// commitTrial accepts the trial trajectory produced by the last forwardPass
// call as the new iterate.
func commitTrial(ws *Workspace, res *gar.Results, alpha float64) {
	N := ws.Prob.Horizon()
	ws.Xs[0] = ws.TrialXs[0]
	for t := 0; t < N; t++ {
		ws.Us[t] = ws.TrialUs[t]
		ws.Xs[t+1] = ws.TrialXs[t+1]
		ws.DynLams[t+1] = addScaled(ws.DynLams[t+1], alpha, res.Dlams[t])
	}
}

// directionalDerivative approximates dphi(0) by the inner product of the
// (projected-Jacobian-corrected) cost gradient with the computed step
// direction, the standard Newton-method Armijo quantity grad^T * step.
func directionalDerivative(ws *Workspace, res *gar.Results) float64 {
	N := ws.Prob.Horizon()
	d := 0.0
	for t := 0; t <= N; t++ {
		d += mat.Dot(ws.LQ.Stages[t].q, res.Dxs[t])
		if t < N && ws.LQ.Stages[t].Nu > 0 {
			d += mat.Dot(ws.LQ.Stages[t].r, res.Dus[t])
		}
	}
	return d
}

// meritValue evaluates the PDAL-flavored merit function (spec.md §4.5 /
// GLOSSARY "Merit function") at the current iterate: cost plus a
// 1/(2*mu)-weighted quadratic penalty on dynamics and constraint violation.
// This port approximates the exact PDAL merit (which tracks the multiplier
// estimates themselves) with this simpler augmented-Lagrangian-style
// quadratic penalty merit — see DESIGN.md.
func meritValue(ws *Workspace) float64 {
	N := ws.Prob.Horizon()
	val := 0.0
	for t := 0; t < N; t++ {
		val += ws.CostData[t].Value
		val += violationPenalty(ws, t, ws.ConstraintData[t])
		gap := stageSpaceAt(ws.Prob, t+1).Difference(ws.Xs[t+1], ws.DynData[t].Xnext)
		val += 0.5 / ws.MuDyn * mat.Dot(gap, gap)
	}
	val += ws.CostData[N].Value
	val += violationPenalty(ws, N, ws.ConstraintData[N])
	return val
}

func violationPenalty(ws *Workspace, t int, cd *ocp.ConstraintData) float64 {
	if cd == nil {
		return 0
	}
	v := stageConstraintSet(ws.Prob, t).Violation(cd.Value)
	return 0.5 / ws.MuEq * mat.Dot(v, v)
}

// trialMerit re-evaluates cost/dynamics/constraints at the trial trajectory
// left by the last forwardPass call, without disturbing ws's cached
// linearization (spec.md §4.5's forwardPass step (c), "evaluate the
// merit").
func trialMerit(ws *Workspace) float64 {
	N := ws.Prob.Horizon()
	val := 0.0
	for t := 0; t < N; t++ {
		st := ws.Prob.Stages[t]
		cost := st.Cost.Evaluate(ws.TrialXs[t], ws.TrialUs[t])
		val += cost.Value
		if st.Constraint != nil {
			cd := st.Constraint.Evaluate(ws.TrialXs[t], ws.TrialUs[t])
			v := st.Constraint.Set().Violation(cd.Value)
			val += 0.5 / ws.MuEq * mat.Dot(v, v)
		}
		dyn := st.Dynamics.Evaluate(ws.TrialXs[t], ws.TrialUs[t])
		space := stageSpaceAt(ws.Prob, t+1)
		gap := space.Difference(ws.TrialXs[t+1], dyn.Xnext)
		val += 0.5 / ws.MuDyn * mat.Dot(gap, gap)
	}
	tcost := ws.Prob.TerminalCost.Evaluate(ws.TrialXs[N], nil)
	val += tcost.Value
	if ws.Prob.TerminalConstraint != nil {
		cd := ws.Prob.TerminalConstraint.Evaluate(ws.TrialXs[N], nil)
		v := ws.Prob.TerminalConstraint.Set().Violation(cd.Value)
		val += 0.5 / ws.MuEq * mat.Dot(v, v)
	}
	return val
}

// trialPrimalInfeas is the infinity-norm companion to trialMerit, used by
// the filter step-acceptance strategy's bi-criteria test.
func trialPrimalInfeas(ws *Workspace) float64 {
	N := ws.Prob.Horizon()
	worst := 0.0
	for t := 0; t < N; t++ {
		st := ws.Prob.Stages[t]
		if st.Constraint != nil {
			cd := st.Constraint.Evaluate(ws.TrialXs[t], ws.TrialUs[t])
			v := st.Constraint.Set().Violation(cd.Value)
			worst = math.Max(worst, infNorm(v))
		}
		dyn := st.Dynamics.Evaluate(ws.TrialXs[t], ws.TrialUs[t])
		space := stageSpaceAt(ws.Prob, t+1)
		gap := space.Difference(ws.TrialXs[t+1], dyn.Xnext)
		worst = math.Max(worst, infNorm(gap))
	}
	if ws.Prob.TerminalConstraint != nil {
		cd := ws.Prob.TerminalConstraint.Evaluate(ws.TrialXs[N], nil)
		v := ws.Prob.TerminalConstraint.Set().Violation(cd.Value)
		worst = math.Max(worst, infNorm(v))
	}
	return worst
}

// measureInfeasibilities computes the primal (dynamics + constraint
// violation) and dual (stationarity, via the corrected cost gradients q/r)
// infeasibility measures spec.md §8 tests against, each as an infinity norm
// over all stages (spec.md §9's "computeCriterion" role for floats).
func measureInfeasibilities(ws *Workspace) (primInfeas, dualInfeas float64) {
	N := ws.Prob.Horizon()
	for t := 0; t < N; t++ {
		gap := stageSpaceAt(ws.Prob, t+1).Difference(ws.Xs[t+1], ws.DynData[t].Xnext)
		primInfeas = math.Max(primInfeas, infNorm(gap))
		if ws.ConstraintData[t] != nil {
			v := stageConstraintSet(ws.Prob, t).Violation(ws.ConstraintData[t].Value)
			primInfeas = math.Max(primInfeas, infNorm(v))
		}
		dualInfeas = math.Max(dualInfeas, infNorm(ws.LQ.Stages[t].q))
		if ws.LQ.Stages[t].Nu > 0 {
			dualInfeas = math.Max(dualInfeas, infNorm(ws.LQ.Stages[t].r))
		}
	}
	if ws.ConstraintData[N] != nil {
		v := stageConstraintSet(ws.Prob, N).Violation(ws.ConstraintData[N].Value)
		primInfeas = math.Max(primInfeas, infNorm(v))
	}
	dualInfeas = math.Max(dualInfeas, infNorm(ws.LQ.Stages[N].q))
	primInfeas = math.Max(primInfeas, infNorm(ws.LQ.Init.G0v))
	return primInfeas, dualInfeas
}

func cloneVecs(vs []*mat.VecDense) []*mat.VecDense {
	out := make([]*mat.VecDense, len(vs))
	for i, v := range vs {
		c := mat.NewVecDense(v.Len(), nil)
		c.CopyVec(v)
		out[i] = c
	}
	return out
}
