package optimize

import (
	"math"
	"testing"
)

func TestBracketRoot_FindsSignChange(t *testing.T) {
	f := func(x float64) float64 { return x - 5 }
	lo, hi, ok := BracketRoot(f, 0, 1, 1e6)
	if !ok {
		t.Fatal("expected a bracket")
	}
	if f(lo)*f(hi) > 0 {
		t.Errorf("no sign change on [%g, %g]", lo, hi)
	}
}

func TestBracketRoot_RespectsUpper(t *testing.T) {
	f := func(x float64) float64 { return x + 1 } // positive everywhere on [0, upper]
	_, hi, ok := BracketRoot(f, 0, 1, 100)
	if ok {
		t.Error("expected no bracket for a sign-constant function")
	}
	if hi > 100 {
		t.Errorf("hi = %g exceeded upper bound", hi)
	}
}

func TestBisect_SimpleRoot(t *testing.T) {
	f := func(x float64) float64 { return x*x - 2 }
	res := Bisect(f, 0, 2, 1e-10, 200)
	if !res.Converged {
		t.Fatal("bisection did not converge")
	}
	if math.Abs(res.X-math.Sqrt2) > 1e-8 {
		t.Errorf("root = %g, want sqrt(2)", res.X)
	}
}

func TestBisect_ExactRootAtBound(t *testing.T) {
	f := func(x float64) float64 { return x - 3 }
	res := Bisect(f, 3, 10, 1e-10, 100)
	if !res.Converged || res.X != 3 {
		t.Errorf("got X=%g converged=%v, want exact root at lower bound", res.X, res.Converged)
	}
}

func TestBisect_NoSignChangeReturnsBoundary(t *testing.T) {
	// f positive on the whole interval, smaller at the left end.
	f := func(x float64) float64 { return x + 1 }
	res := Bisect(f, 0, 10, 1e-10, 100)
	if res.Converged {
		t.Error("expected Converged=false when no root is bracketed")
	}
	if res.X != 0 {
		t.Errorf("X = %g, want boundary with smaller |f|", res.X)
	}

	// f negative everywhere, smaller |f| at the right end.
	g := func(x float64) float64 { return -20 + x }
	res = Bisect(g, 0, 10, 1e-10, 100)
	if res.Converged {
		t.Error("expected Converged=false")
	}
	if res.X != 10 {
		t.Errorf("X = %g, want 10", res.X)
	}
}

func TestMaximizeScalar_Quadratic(t *testing.T) {
	f := func(x float64) float64 { return -(x - 3.7) * (x - 3.7) }
	res := MaximizeScalar(f, 0, 10, 1e-9, 200)
	if !res.Converged {
		t.Fatal("golden-section search did not converge")
	}
	if math.Abs(res.X-3.7) > 1e-7 {
		t.Errorf("maximizer = %g, want 3.7", res.X)
	}
}

func TestMaximizeScalar_MaximumAtBoundary(t *testing.T) {
	f := func(x float64) float64 { return -x }
	res := MaximizeScalar(f, 0, 5, 1e-9, 200)
	if math.Abs(res.X) > 1e-6 {
		t.Errorf("maximizer = %g, want 0 (boundary)", res.X)
	}
}
