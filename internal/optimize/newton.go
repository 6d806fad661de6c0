package optimize

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Problem describes a maximization target for Newton. Grad may be nil when
// Objective is given (finite differences are substituted); Hess may be nil
// when Grad is available. Project, if set, maps each iterate back into the
// feasible region (e.g. clamping tau2 at zero).
type Problem struct {
	Objective func(theta []float64) float64
	Grad      func(theta []float64) []float64
	Hess      func(theta []float64) []float64 // row-major d x d
	Project   func(theta []float64) []float64
}

// Settings carries the optimizer knobs; see config.FitConfig for defaults.
type Settings struct {
	Tol           float64
	MaxIterations int
	RidgeDamping  float64
}

// State is a single Newton iterate. Each step returns a fresh State rather
// than mutating shared fields, so iteration steps are testable in isolation.
type State struct {
	Theta       []float64
	Gradient    []float64
	GradNorm    float64
	Objective   float64
	Iterations  int
	Converged   bool
	DampedIters int // iterations that needed ridge damping of the Hessian
}

// Newton maximizes the problem from theta0 via damped Newton-Raphson steps.
// Non-convergence is reported on the returned state, never as a fault, so
// estimator code decides whether it is fatal for that variant.
func Newton(p Problem, theta0 []float64, s Settings) State {
	st := newState(p, theta0)
	for st.Iterations < s.MaxIterations && !st.Converged {
		st = step(p, st, s)
	}
	return st
}

func newState(p Problem, theta0 []float64) State {
	theta := append([]float64(nil), theta0...)
	if p.Project != nil {
		theta = p.Project(theta)
	}
	g := gradient(p, theta)
	st := State{
		Theta:    theta,
		Gradient: g,
		GradNorm: normInf(g),
	}
	if p.Objective != nil {
		st.Objective = p.Objective(theta)
	}
	return st
}

// step performs one Newton update and returns the successor state.
func step(p Problem, st State, s Settings) State {
	d := len(st.Theta)
	h := hessian(p, st.Theta)

	delta, damped := solveStep(h, st.Gradient, d, s.RidgeDamping)

	next := make([]float64, d)
	for i := range next {
		next[i] = st.Theta[i] - delta[i]
	}
	if p.Project != nil {
		next = p.Project(next)
	}

	g := gradient(p, next)
	out := State{
		Theta:       next,
		Gradient:    g,
		GradNorm:    normInf(g),
		Iterations:  st.Iterations + 1,
		DampedIters: st.DampedIters,
	}
	if damped {
		out.DampedIters++
	}
	if p.Objective != nil {
		out.Objective = p.Objective(next)
	}
	out.Converged = out.GradNorm < s.Tol
	return out
}

// solveStep solves H d = g, falling back to a ridge-regularized system for
// this iteration only when H is singular. The ridge starts at
// damping * max|diag(H)| and doubles until the factorization succeeds.
func solveStep(h, g []float64, d int, damping float64) ([]float64, bool) {
	rhs := mat.NewVecDense(d, append([]float64(nil), g...))
	var sol mat.VecDense

	hm := mat.NewDense(d, d, append([]float64(nil), h...))
	if err := sol.SolveVec(hm, rhs); err == nil && allFinite(sol.RawVector().Data) {
		return sol.RawVector().Data, false
	}

	scale := 0.0
	for i := 0; i < d; i++ {
		scale = math.Max(scale, math.Abs(h[i*d+i]))
	}
	if scale == 0 {
		scale = 1
	}

	lambda := damping * scale
	for tries := 0; tries < 30; tries++ {
		ridge := append([]float64(nil), h...)
		for i := 0; i < d; i++ {
			ridge[i*d+i] -= lambda // H is negative definite near a maximum
		}
		rm := mat.NewDense(d, d, ridge)
		if err := sol.SolveVec(rm, rhs); err == nil && allFinite(sol.RawVector().Data) {
			return sol.RawVector().Data, true
		}
		lambda *= 2
	}

	// Hopeless Hessian: take a small gradient-ascent step instead.
	out := make([]float64, d)
	for i := range out {
		out[i] = -g[i] / scale
	}
	return out, true
}

func gradient(p Problem, theta []float64) []float64 {
	if p.Grad != nil {
		return p.Grad(theta)
	}
	d := len(theta)
	g := make([]float64, d)
	t := append([]float64(nil), theta...)
	for i := 0; i < d; i++ {
		h := stepSize(theta[i])
		t[i] = theta[i] + h
		fp := p.Objective(t)
		t[i] = theta[i] - h
		fm := p.Objective(t)
		t[i] = theta[i]
		g[i] = (fp - fm) / (2 * h)
	}
	return g
}

func hessian(p Problem, theta []float64) []float64 {
	if p.Hess != nil {
		return p.Hess(theta)
	}
	d := len(theta)
	h := make([]float64, d*d)
	t := append([]float64(nil), theta...)
	for j := 0; j < d; j++ {
		hj := stepSize(theta[j])
		t[j] = theta[j] + hj
		gp := gradient(p, t)
		t[j] = theta[j] - hj
		gm := gradient(p, t)
		t[j] = theta[j]
		for i := 0; i < d; i++ {
			h[i*d+j] = (gp[i] - gm[i]) / (2 * hj)
		}
	}
	// Symmetrize the finite-difference estimate.
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			avg := 0.5 * (h[i*d+j] + h[j*d+i])
			h[i*d+j], h[j*d+i] = avg, avg
		}
	}
	return h
}

func stepSize(x float64) float64 {
	return 1e-6 * math.Max(1, math.Abs(x))
}

func normInf(v []float64) float64 {
	max := 0.0
	for _, x := range v {
		max = math.Max(max, math.Abs(x))
	}
	return max
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
