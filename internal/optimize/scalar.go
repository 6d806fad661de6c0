// Package optimize provides the scalar and vector optimization primitives
// shared by the likelihood-based estimators and the heterogeneity
// confidence-interval search.
package optimize

import "math"

// ScalarResult is the outcome of a bounded scalar search.
type ScalarResult struct {
	X          float64
	Converged  bool
	Iterations int
}

// BracketRoot widens hi geometrically until f changes sign on [lo, hi] or hi
// reaches upper. Returns the bracket and whether a sign change was found.
func BracketRoot(f func(float64) float64, lo, hi, upper float64) (float64, float64, bool) {
	flo := f(lo)
	if flo == 0 {
		return lo, lo, true
	}
	if hi <= lo {
		hi = lo + 1
	}
	for {
		if flo*f(hi) <= 0 {
			return lo, hi, true
		}
		if hi >= upper {
			return lo, hi, false
		}
		hi = math.Min(hi*2, upper)
	}
}

// Bisect finds a root of f on [lo, hi] by bisection. If f has the same sign
// at both bounds there is no root to bracket: the boundary with the smaller
// |f| is returned with Converged=false, so callers report heterogeneity as
// zero or at cap instead of failing outright.
func Bisect(f func(float64) float64, lo, hi, tol float64, maxIter int) ScalarResult {
	flo := f(lo)
	fhi := f(hi)
	if flo == 0 {
		return ScalarResult{X: lo, Converged: true}
	}
	if fhi == 0 {
		return ScalarResult{X: hi, Converged: true}
	}
	if flo*fhi > 0 {
		if math.Abs(flo) <= math.Abs(fhi) {
			return ScalarResult{X: lo}
		}
		return ScalarResult{X: hi}
	}

	var mid float64
	for i := 1; i <= maxIter; i++ {
		mid = 0.5 * (lo + hi)
		fm := f(mid)
		if fm == 0 || hi-lo < tol {
			return ScalarResult{X: mid, Converged: true, Iterations: i}
		}
		if flo*fm < 0 {
			hi = mid
		} else {
			lo = mid
			flo = fm
		}
	}
	return ScalarResult{X: 0.5 * (lo + hi), Converged: hi-lo < tol, Iterations: maxIter}
}

const invPhi = 0.6180339887498949 // (sqrt(5)-1)/2

// MaximizeScalar locates the maximizer of a unimodal f on [lo, hi] by
// golden-section search.
func MaximizeScalar(f func(float64) float64, lo, hi, tol float64, maxIter int) ScalarResult {
	a, b := lo, hi
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)

	i := 0
	for ; i < maxIter && b-a > tol; i++ {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	return ScalarResult{X: 0.5 * (a + b), Converged: b-a <= tol, Iterations: i}
}
