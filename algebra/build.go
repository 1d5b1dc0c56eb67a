package algebra

import (
	"github.com/formcomp/formc/element"
)

// NewArgument builds a test or trial placeholder over el.
func NewArgument(kind ArgKind, el *element.Element) *Argument {
	return &Argument{Kind: kind, Element: el}
}

// NewCoefficient builds a named coefficient over el. Index is assigned by the
// caller in declaration order and selects the dof vector at run time.
func NewCoefficient(name string, index int, el *element.Element) *Coefficient {
	return &Coefficient{Name: name, Index: index, Element: el}
}

// NewConstant builds a literal scalar.
func NewConstant(v float64) *Constant { return &Constant{Value: v} }

// NewFacetNormal builds the outward facet normal for a dim-dimensional cell.
func NewFacetNormal(dim int) *FacetNormal { return &FacetNormal{Dim: dim} }

// NewGrad builds the spatial gradient of e.
func NewGrad(e Expr) (Expr, error) {
	dim := SpatialDim(e)
	if dim == 0 {
		return nil, shapeErr("grad", e.Shape(), nil,
			"grad("+e.String()+"): operand has no spatial dimension")
	}
	return &Grad{Operand: e, Dim: dim}, nil
}

// NewDiv builds the divergence of e. The last axis of e must match the
// spatial dimension.
func NewDiv(e Expr) (Expr, error) {
	s := e.Shape()
	dim := SpatialDim(e)
	if s.Rank() == 0 || dim == 0 || s[len(s)-1] != dim {
		return nil, shapeErr("div", s, Shape{dim}, "div("+e.String()+")")
	}
	return &Div{Operand: e, Dim: dim}, nil
}

// NewCurl builds the curl of e: a 3-vector in 3D, a scalar in 2D.
func NewCurl(e Expr) (Expr, error) {
	s := e.Shape()
	dim := SpatialDim(e)
	if dim < 2 || s.Rank() != 1 || s[0] != dim {
		return nil, shapeErr("curl", s, Shape{dim}, "curl("+e.String()+")")
	}
	return &Curl{Operand: e, Dim: dim}, nil
}

// NewRestrict tags e with an interior-facet side.
func NewRestrict(e Expr, side RestrictSide) Expr {
	return &Restrict{Operand: e, Side: side}
}

// NewSum builds a + b; both operands must share a shape.
func NewSum(a, b Expr) (Expr, error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, shapeErr("+", a.Shape(), b.Shape(), a.String()+" + "+b.String())
	}
	return &Sum{A: a, B: b}, nil
}

// NewSub builds a - b as a + (-1)*b.
func NewSub(a, b Expr) (Expr, error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, shapeErr("-", a.Shape(), b.Shape(), a.String()+" - "+b.String())
	}
	neg := &Product{A: NewConstant(-1), B: b}
	return &Sum{A: a, B: neg}, nil
}

// NewProduct builds a * b. At least one operand must be scalar.
func NewProduct(a, b Expr) (Expr, error) {
	if a.Shape().Rank() != 0 && b.Shape().Rank() != 0 {
		return nil, shapeErr("*", a.Shape(), b.Shape(), a.String()+"*"+b.String())
	}
	return &Product{A: a, B: b}, nil
}

// NewDivision builds a / b; the denominator must be scalar.
func NewDivision(a, b Expr) (Expr, error) {
	if b.Shape().Rank() != 0 {
		return nil, shapeErr("/", a.Shape(), b.Shape(), a.String()+"/"+b.String())
	}
	return &Division{A: a, B: b}, nil
}

// NewInner builds the full contraction of a and b; shapes must be equal.
func NewInner(a, b Expr) (Expr, error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, shapeErr("inner", a.Shape(), b.Shape(),
			"inner("+a.String()+", "+b.String()+")")
	}
	return &Inner{A: a, B: b}, nil
}

// NewDot contracts the last axis of a with the first axis of b.
func NewDot(a, b Expr) (Expr, error) {
	sa, sb := a.Shape(), b.Shape()
	if sa.Rank() == 0 || sb.Rank() == 0 || sa[len(sa)-1] != sb[0] {
		return nil, shapeErr("dot", sa, sb, "dot("+a.String()+", "+b.String()+")")
	}
	return &Dot{A: a, B: b}, nil
}

// NewOuter builds the tensor product of a and b.
func NewOuter(a, b Expr) (Expr, error) {
	if a.Shape().Rank() == 0 || b.Shape().Rank() == 0 {
		return nil, shapeErr("outer", a.Shape(), b.Shape(),
			"outer("+a.String()+", "+b.String()+")")
	}
	return &Outer{A: a, B: b}, nil
}
