package algebra

import (
	"fmt"
	"strings"

	"github.com/formcomp/formc/element"
)

// Expr is a node of the immutable form expression tree. Concrete node types
// are the terminals (Argument, Coefficient, Constant, FacetNormal,
// CellVolume), the differential and restriction operators (Grad, Div, Curl,
// Restrict) and the algebraic operators (Sum, Product, Division, Inner, Dot,
// Outer). Trees are only built through the New* constructors, which check
// value-shape compatibility eagerly.
type Expr interface {
	Shape() Shape
	String() string
}

// ArgKind distinguishes the test from the trial placeholder.
type ArgKind uint8

const (
	Test ArgKind = iota
	Trial
)

func (k ArgKind) String() string {
	if k == Test {
		return "test"
	}
	return "trial"
}

// RestrictSide selects the cell an interior-facet trace is taken from.
type RestrictSide uint8

const (
	NoRestriction RestrictSide = iota
	PositiveSide               // the cell whose outward normal is the facet normal
	NegativeSide
)

// Argument is a test or trial function placeholder bound to an element.
type Argument struct {
	Kind    ArgKind
	Element *element.Element
}

// Coefficient is a known function bound to an element. Index is the position
// of the coefficient in the form's coefficient list and selects the dof
// vector handed to the generated procedure.
type Coefficient struct {
	Name    string
	Index   int
	Element *element.Element
}

// Constant is a literal scalar.
type Constant struct {
	Value float64
}

// FacetNormal is the outward unit normal of the current facet. Only
// meaningful inside facet integrals.
type FacetNormal struct {
	Dim int
}

// CellVolume is the measure of the current physical cell.
type CellVolume struct{}

// Grad is the spatial gradient, appending one axis of length Dim.
type Grad struct {
	Operand Expr
	Dim     int
}

// Div contracts the last axis of its operand against the spatial dimension.
type Div struct {
	Operand Expr
	Dim     int
}

// Curl is the rotation operator: vector-valued in 3D, scalar-valued in 2D.
type Curl struct {
	Operand Expr
	Dim     int
}

// Restrict tags a subexpression with an interior-facet side.
type Restrict struct {
	Operand Expr
	Side    RestrictSide
}

// Sum is a + b (or a - b with Negate set on construction via NewSub).
type Sum struct{ A, B Expr }

// Product is scalar multiplication: at least one operand is scalar.
type Product struct{ A, B Expr }

// Division divides by a scalar.
type Division struct{ A, B Expr }

// Inner is the full contraction of two equal-shaped operands.
type Inner struct{ A, B Expr }

// Dot contracts the last axis of A with the first axis of B.
type Dot struct{ A, B Expr }

// Outer is the tensor product of its operands.
type Outer struct{ A, B Expr }

func (a *Argument) Shape() Shape    { return Shape(a.Element.ValueShape()) }
func (c *Coefficient) Shape() Shape { return Shape(c.Element.ValueShape()) }
func (c *Constant) Shape() Shape    { return nil }
func (n *FacetNormal) Shape() Shape { return Shape{n.Dim} }
func (c *CellVolume) Shape() Shape  { return nil }

func (g *Grad) Shape() Shape {
	return append(append(Shape{}, g.Operand.Shape()...), g.Dim)
}

func (d *Div) Shape() Shape {
	s := d.Operand.Shape()
	return append(Shape{}, s[:len(s)-1]...)
}

func (c *Curl) Shape() Shape {
	if c.Dim == 3 {
		return Shape{3}
	}
	return nil
}

func (r *Restrict) Shape() Shape { return r.Operand.Shape() }
func (s *Sum) Shape() Shape      { return s.A.Shape() }

func (p *Product) Shape() Shape {
	if p.A.Shape().Rank() == 0 {
		return p.B.Shape()
	}
	return p.A.Shape()
}

func (d *Division) Shape() Shape { return d.A.Shape() }
func (i *Inner) Shape() Shape    { return nil }

func (d *Dot) Shape() Shape {
	sa, sb := d.A.Shape(), d.B.Shape()
	out := append(Shape{}, sa[:len(sa)-1]...)
	return append(out, sb[1:]...)
}

func (o *Outer) Shape() Shape {
	return append(append(Shape{}, o.A.Shape()...), o.B.Shape()...)
}

func (a *Argument) String() string {
	if a.Kind == Test {
		return "v"
	}
	return "u"
}

func (c *Coefficient) String() string { return c.Name }

func (c *Constant) String() string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%g", c.Value), "0"), ".")
}

func (n *FacetNormal) String() string { return "n" }
func (c *CellVolume) String() string  { return "volume" }
func (g *Grad) String() string        { return "grad(" + g.Operand.String() + ")" }
func (d *Div) String() string         { return "div(" + d.Operand.String() + ")" }
func (c *Curl) String() string        { return "curl(" + c.Operand.String() + ")" }

func (r *Restrict) String() string {
	side := "'+'"
	if r.Side == NegativeSide {
		side = "'-'"
	}
	return r.Operand.String() + "(" + side + ")"
}

func (s *Sum) String() string {
	return s.A.String() + " + " + s.B.String()
}

func (p *Product) String() string {
	return maybeParen(p.A) + "*" + maybeParen(p.B)
}

func (d *Division) String() string {
	return maybeParen(d.A) + "/" + maybeParen(d.B)
}

func (i *Inner) String() string {
	return "inner(" + i.A.String() + ", " + i.B.String() + ")"
}

func (d *Dot) String() string {
	return "dot(" + d.A.String() + ", " + d.B.String() + ")"
}

func (o *Outer) String() string {
	return "outer(" + o.A.String() + ", " + o.B.String() + ")"
}

func maybeParen(e Expr) string {
	switch e.(type) {
	case *Sum:
		return "(" + e.String() + ")"
	}
	return e.String()
}

// SpatialDim walks the expression for a terminal that fixes the spatial
// dimension. Returns 0 when the expression contains none (pure constants).
func SpatialDim(e Expr) int {
	switch n := e.(type) {
	case *Argument:
		return n.Element.Cell().Dim()
	case *Coefficient:
		return n.Element.Cell().Dim()
	case *FacetNormal:
		return n.Dim
	case *Grad:
		return n.Dim
	case *Div:
		return n.Dim
	case *Curl:
		return n.Dim
	case *Restrict:
		return SpatialDim(n.Operand)
	case *Sum:
		if d := SpatialDim(n.A); d > 0 {
			return d
		}
		return SpatialDim(n.B)
	case *Product:
		if d := SpatialDim(n.A); d > 0 {
			return d
		}
		return SpatialDim(n.B)
	case *Division:
		if d := SpatialDim(n.A); d > 0 {
			return d
		}
		return SpatialDim(n.B)
	case *Inner:
		if d := SpatialDim(n.A); d > 0 {
			return d
		}
		return SpatialDim(n.B)
	case *Dot:
		if d := SpatialDim(n.A); d > 0 {
			return d
		}
		return SpatialDim(n.B)
	case *Outer:
		if d := SpatialDim(n.A); d > 0 {
			return d
		}
		return SpatialDim(n.B)
	}
	return 0
}
