package quadrature

import (
	"fmt"

	"github.com/formcomp/formc/algebra"
)

// DegreeError reports that degree estimation cannot proceed for a term.
// Callers without an explicit degree recover by falling back to a
// conservative default.
type DegreeError struct {
	Expr   string
	Reason string
}

func (e *DegreeError) Error() string {
	return fmt.Sprintf("cannot estimate quadrature degree for %q: %s", e.Expr, e.Reason)
}

// DegreeEstimator infers a sufficient polynomial integration degree for an
// integrand. The policy is pluggable; SumDegrees is the default.
type DegreeEstimator interface {
	Estimate(e algebra.Expr) (int, error)
}

// SumDegrees is the default estimation policy: arguments and coefficients
// contribute their element degree, products add, sums take the maximum, and
// each differentiation lowers a factor's degree by one (never below zero).
// The Jacobian factor of the supported affine cells contributes degree zero.
// Division by anything but a constant is not polynomial and raises a
// DegreeError.
type SumDegrees struct{}

func (SumDegrees) Estimate(e algebra.Expr) (int, error) {
	return estimate(e)
}

func estimate(e algebra.Expr) (int, error) {
	switch n := e.(type) {
	case *algebra.Argument:
		return n.Element.Degree(), nil
	case *algebra.Coefficient:
		return n.Element.Degree(), nil
	case *algebra.Constant, *algebra.CellVolume:
		return 0, nil
	case *algebra.FacetNormal:
		return 0, nil
	case *algebra.Grad:
		return lowered(n.Operand)
	case *algebra.Div:
		return lowered(n.Operand)
	case *algebra.Curl:
		return lowered(n.Operand)
	case *algebra.Restrict:
		return estimate(n.Operand)
	case *algebra.Sum:
		return maxOf(n.A, n.B)
	case *algebra.Product:
		return sumOf(n.A, n.B)
	case *algebra.Inner:
		return sumOf(n.A, n.B)
	case *algebra.Dot:
		return sumOf(n.A, n.B)
	case *algebra.Outer:
		return sumOf(n.A, n.B)
	case *algebra.Division:
		if _, ok := n.B.(*algebra.Constant); !ok {
			return 0, &DegreeError{Expr: e.String(), Reason: "division by a non-constant expression"}
		}
		return estimate(n.A)
	}
	return 0, &DegreeError{Expr: e.String(), Reason: "unknown expression node"}
}

func lowered(operand algebra.Expr) (int, error) {
	d, err := estimate(operand)
	if err != nil {
		return 0, err
	}
	if d > 0 {
		d--
	}
	return d, nil
}

func maxOf(a, b algebra.Expr) (int, error) {
	da, err := estimate(a)
	if err != nil {
		return 0, err
	}
	db, err := estimate(b)
	if err != nil {
		return 0, err
	}
	if db > da {
		return db, nil
	}
	return da, nil
}

func sumOf(a, b algebra.Expr) (int, error) {
	da, err := estimate(a)
	if err != nil {
		return 0, err
	}
	db, err := estimate(b)
	if err != nil {
		return 0, err
	}
	return da + db, nil
}

// FallbackDegree is the conservative default used when estimation fails and
// no explicit degree was requested: twice the highest element degree in the
// term, plus one.
func FallbackDegree(e algebra.Expr) int {
	return 2*maxElementDegree(e) + 1
}

func maxElementDegree(e algebra.Expr) int {
	m := 0
	visit := func(d int) {
		if d > m {
			m = d
		}
	}
	var walk func(algebra.Expr)
	walk = func(e algebra.Expr) {
		switch n := e.(type) {
		case *algebra.Argument:
			visit(n.Element.Degree())
		case *algebra.Coefficient:
			visit(n.Element.Degree())
		case *algebra.Grad:
			walk(n.Operand)
		case *algebra.Div:
			walk(n.Operand)
		case *algebra.Curl:
			walk(n.Operand)
		case *algebra.Restrict:
			walk(n.Operand)
		case *algebra.Sum:
			walk(n.A)
			walk(n.B)
		case *algebra.Product:
			walk(n.A)
			walk(n.B)
		case *algebra.Division:
			walk(n.A)
			walk(n.B)
		case *algebra.Inner:
			walk(n.A)
			walk(n.B)
		case *algebra.Dot:
			walk(n.A)
			walk(n.B)
		case *algebra.Outer:
			walk(n.A)
			walk(n.B)
		}
	}
	walk(e)
	if m == 0 {
		m = 1
	}
	return m
}

// ResolveDegree applies the three-way degree policy for one integral term:
// an explicit measure degree wins unconditionally, otherwise the estimator
// runs, and on a DegreeError the conservative fallback is used. fellBack
// tells the caller to log a warning.
func ResolveDegree(e algebra.Expr, m algebra.Measure, est DegreeEstimator) (degree int, fellBack bool, err error) {
	if m.Degree != algebra.AutoDegree {
		return m.Degree, false, nil
	}
	if est == nil {
		est = SumDegrees{}
	}
	d, err := est.Estimate(e)
	if err != nil {
		if _, ok := err.(*DegreeError); ok {
			return FallbackDegree(e), true, nil
		}
		return 0, false, err
	}
	return d, false, nil
}
