// Package representation selects and builds the computational representation
// of each integral term: either a precomputed reference tensor contracted
// with a small per-cell geometry tensor, or a per-cell quadrature loop.
package representation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
)

// FuncKind tags what a scalar factor refers to.
type FuncKind uint8

const (
	FuncTest FuncKind = iota
	FuncTrial
	FuncCoefficient
	FuncNormal     // component of the facet normal
	FuncCellVolume // measure of the physical cell
)

// Factor is one scalar-valued terminal of a lowered integrand: a fixed value
// component of a function (or of the facet normal), with zero or more
// physical derivative directions applied, optionally restricted to one side
// of an interior facet.
type Factor struct {
	Kind        FuncKind
	Coefficient int // coefficient index when Kind == FuncCoefficient
	Element     *element.Element
	Component   int
	Derivs      []int // physical directions, kept sorted
	Restriction algebra.RestrictSide
}

func (f Factor) isFunction() bool {
	return f.Kind == FuncTest || f.Kind == FuncTrial || f.Kind == FuncCoefficient
}

// key is a canonical ordering key used for deterministic factor order.
func (f Factor) key() string {
	ds := make([]string, len(f.Derivs))
	for i, d := range f.Derivs {
		ds[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%d:%d:%d:%s:%d", f.Kind, f.Coefficient, f.Component,
		strings.Join(ds, ""), f.Restriction)
}

func (f Factor) withDeriv(m int) Factor {
	g := f
	g.Derivs = append(append([]int(nil), f.Derivs...), m)
	sort.Ints(g.Derivs)
	return g
}

// ScalarExpr is a scalar-valued lowered expression: all tensor structure and
// differential operators of the form language have been expanded away, and
// only +, *, / over factors and literals remain. Both representations are
// derived from this form.
type ScalarExpr interface{ isScalar() }

// Num is a literal.
type Num struct{ Value float64 }

// Term is a single factor.
type Term struct{ Factor Factor }

// Add is a + b.
type Add struct{ A, B ScalarExpr }

// Mul is a * b.
type Mul struct{ A, B ScalarExpr }

// Div is a / b.
type Div struct{ A, B ScalarExpr }

func (Num) isScalar()  {}
func (Term) isScalar() {}
func (Add) isScalar()  {}
func (Mul) isScalar()  {}
func (Div) isScalar()  {}

// add and mul build nodes with constant folding, so that differentiation
// does not balloon the tree with zero branches.
func add(a, b ScalarExpr) ScalarExpr {
	if n, ok := a.(Num); ok && n.Value == 0 {
		return b
	}
	if n, ok := b.(Num); ok && n.Value == 0 {
		return a
	}
	na, aok := a.(Num)
	nb, bok := b.(Num)
	if aok && bok {
		return Num{na.Value + nb.Value}
	}
	return Add{a, b}
}

func mul(a, b ScalarExpr) ScalarExpr {
	if n, ok := a.(Num); ok {
		if n.Value == 0 {
			return Num{0}
		}
		if n.Value == 1 {
			return b
		}
	}
	if n, ok := b.(Num); ok {
		if n.Value == 0 {
			return Num{0}
		}
		if n.Value == 1 {
			return a
		}
	}
	na, aok := a.(Num)
	nb, bok := b.(Num)
	if aok && bok {
		return Num{na.Value * nb.Value}
	}
	return Mul{a, b}
}

func neg(a ScalarExpr) ScalarExpr { return mul(Num{-1}, a) }

// diff differentiates a lowered scalar expression in physical direction m.
// Facet normals and the cell volume are constant on each (affine) cell, so
// they differentiate to zero.
func diff(t ScalarExpr, m int) ScalarExpr {
	switch n := t.(type) {
	case Num:
		return Num{0}
	case Term:
		if n.Factor.isFunction() {
			return Term{n.Factor.withDeriv(m)}
		}
		return Num{0}
	case Add:
		return add(diff(n.A, m), diff(n.B, m))
	case Mul:
		return add(mul(diff(n.A, m), n.B), mul(n.A, diff(n.B, m)))
	case Div:
		// (a/b)' = (a'b - ab') / b^2
		num := add(mul(diff(n.A, m), n.B), neg(mul(n.A, diff(n.B, m))))
		return Div{num, mul(n.B, n.B)}
	}
	panic("representation: unknown scalar node")
}
