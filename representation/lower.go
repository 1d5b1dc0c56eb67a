package representation

import (
	"fmt"

	"github.com/formcomp/formc/algebra"
)

// lowered is a value of the form language flattened to scalar components in
// row-major order over its shape.
type lowered struct {
	shape algebra.Shape
	comps []ScalarExpr
}

func scalarOf(e ScalarExpr) lowered {
	return lowered{comps: []ScalarExpr{e}}
}

// Lower flattens an integrand to a single scalar expression: differential
// operators are pushed onto the terminals by the product rule and all tensor
// contractions are expanded componentwise. The integrand must be scalar,
// which the form constructor guarantees.
func Lower(e algebra.Expr) (ScalarExpr, error) {
	lo, err := lower(e)
	if err != nil {
		return nil, err
	}
	if len(lo.comps) != 1 {
		return nil, fmt.Errorf("integrand %q is not scalar", e.String())
	}
	return lo.comps[0], nil
}

func lower(e algebra.Expr) (lowered, error) {
	switch n := e.(type) {
	case *algebra.Constant:
		return scalarOf(Num{n.Value}), nil

	case *algebra.CellVolume:
		return scalarOf(Term{Factor{Kind: FuncCellVolume}}), nil

	case *algebra.FacetNormal:
		comps := make([]ScalarExpr, n.Dim)
		for c := range comps {
			comps[c] = Term{Factor{Kind: FuncNormal, Component: c}}
		}
		return lowered{shape: algebra.Shape{n.Dim}, comps: comps}, nil

	case *algebra.Argument:
		kind := FuncTest
		if n.Kind == algebra.Trial {
			kind = FuncTrial
		}
		size := n.Element.ValueSize()
		comps := make([]ScalarExpr, size)
		for c := range comps {
			comps[c] = Term{Factor{Kind: kind, Element: n.Element, Component: c}}
		}
		return lowered{shape: n.Shape(), comps: comps}, nil

	case *algebra.Coefficient:
		size := n.Element.ValueSize()
		comps := make([]ScalarExpr, size)
		for c := range comps {
			comps[c] = Term{Factor{
				Kind:        FuncCoefficient,
				Coefficient: n.Index,
				Element:     n.Element,
				Component:   c,
			}}
		}
		return lowered{shape: n.Shape(), comps: comps}, nil

	case *algebra.Grad:
		op, err := lower(n.Operand)
		if err != nil {
			return lowered{}, err
		}
		out := lowered{shape: append(append(algebra.Shape{}, op.shape...), n.Dim)}
		for _, c := range op.comps {
			for m := 0; m < n.Dim; m++ {
				out.comps = append(out.comps, diff(c, m))
			}
		}
		return out, nil

	case *algebra.Div:
		op, err := lower(n.Operand)
		if err != nil {
			return lowered{}, err
		}
		d := n.Dim
		rest := len(op.comps) / d
		out := lowered{shape: op.shape[:len(op.shape)-1]}
		for i := 0; i < rest; i++ {
			var s ScalarExpr = Num{0}
			for m := 0; m < d; m++ {
				s = add(s, diff(op.comps[i*d+m], m))
			}
			out.comps = append(out.comps, s)
		}
		return out, nil

	case *algebra.Curl:
		op, err := lower(n.Operand)
		if err != nil {
			return lowered{}, err
		}
		if n.Dim == 2 {
			return scalarOf(add(diff(op.comps[1], 0), neg(diff(op.comps[0], 1)))), nil
		}
		comps := []ScalarExpr{
			add(diff(op.comps[2], 1), neg(diff(op.comps[1], 2))),
			add(diff(op.comps[0], 2), neg(diff(op.comps[2], 0))),
			add(diff(op.comps[1], 0), neg(diff(op.comps[0], 1))),
		}
		return lowered{shape: algebra.Shape{3}, comps: comps}, nil

	case *algebra.Restrict:
		op, err := lower(n.Operand)
		if err != nil {
			return lowered{}, err
		}
		out := lowered{shape: op.shape}
		for _, c := range op.comps {
			rc, err := restrict(c, n.Side)
			if err != nil {
				return lowered{}, err
			}
			out.comps = append(out.comps, rc)
		}
		return out, nil

	case *algebra.Sum:
		a, err := lower(n.A)
		if err != nil {
			return lowered{}, err
		}
		b, err := lower(n.B)
		if err != nil {
			return lowered{}, err
		}
		out := lowered{shape: a.shape}
		for i := range a.comps {
			out.comps = append(out.comps, add(a.comps[i], b.comps[i]))
		}
		return out, nil

	case *algebra.Product:
		a, err := lower(n.A)
		if err != nil {
			return lowered{}, err
		}
		b, err := lower(n.B)
		if err != nil {
			return lowered{}, err
		}
		// One side is scalar.
		if len(a.comps) == 1 {
			out := lowered{shape: b.shape}
			for _, c := range b.comps {
				out.comps = append(out.comps, mul(a.comps[0], c))
			}
			return out, nil
		}
		out := lowered{shape: a.shape}
		for _, c := range a.comps {
			out.comps = append(out.comps, mul(c, b.comps[0]))
		}
		return out, nil

	case *algebra.Division:
		a, err := lower(n.A)
		if err != nil {
			return lowered{}, err
		}
		b, err := lower(n.B)
		if err != nil {
			return lowered{}, err
		}
		out := lowered{shape: a.shape}
		for _, c := range a.comps {
			if nb, ok := b.comps[0].(Num); ok {
				out.comps = append(out.comps, mul(c, Num{1 / nb.Value}))
			} else {
				out.comps = append(out.comps, Div{c, b.comps[0]})
			}
		}
		return out, nil

	case *algebra.Inner:
		a, err := lower(n.A)
		if err != nil {
			return lowered{}, err
		}
		b, err := lower(n.B)
		if err != nil {
			return lowered{}, err
		}
		var s ScalarExpr = Num{0}
		for i := range a.comps {
			s = add(s, mul(a.comps[i], b.comps[i]))
		}
		return scalarOf(s), nil

	case *algebra.Dot:
		a, err := lower(n.A)
		if err != nil {
			return lowered{}, err
		}
		b, err := lower(n.B)
		if err != nil {
			return lowered{}, err
		}
		sa := n.A.Shape()
		k := sa[len(sa)-1]
		na := len(a.comps) / k
		nb := len(b.comps) / k
		out := lowered{shape: n.Shape()}
		for i := 0; i < na; i++ {
			for j := 0; j < nb; j++ {
				var s ScalarExpr = Num{0}
				for c := 0; c < k; c++ {
					s = add(s, mul(a.comps[i*k+c], b.comps[c*nb+j]))
				}
				out.comps = append(out.comps, s)
			}
		}
		return out, nil

	case *algebra.Outer:
		a, err := lower(n.A)
		if err != nil {
			return lowered{}, err
		}
		b, err := lower(n.B)
		if err != nil {
			return lowered{}, err
		}
		out := lowered{shape: n.Shape()}
		for _, ca := range a.comps {
			for _, cb := range b.comps {
				out.comps = append(out.comps, mul(ca, cb))
			}
		}
		return out, nil
	}
	return lowered{}, fmt.Errorf("cannot lower expression %q", e.String())
}

// restrict tags every function factor in t with an interior-facet side. A
// negative-side facet normal flips sign instead: the negative cell's outward
// normal is the opposite of the positive one.
func restrict(t ScalarExpr, side algebra.RestrictSide) (ScalarExpr, error) {
	switch n := t.(type) {
	case Num:
		return n, nil
	case Term:
		f := n.Factor
		switch f.Kind {
		case FuncNormal:
			if side == algebra.NegativeSide {
				return neg(Term{f}), nil
			}
			return n, nil
		case FuncCellVolume:
			return nil, fmt.Errorf("cell volume cannot be restricted to a facet side")
		}
		if f.Restriction != algebra.NoRestriction && f.Restriction != side {
			return nil, fmt.Errorf("conflicting restrictions on %v", f.Kind)
		}
		f.Restriction = side
		return Term{f}, nil
	case Add:
		a, err := restrict(n.A, side)
		if err != nil {
			return nil, err
		}
		b, err := restrict(n.B, side)
		if err != nil {
			return nil, err
		}
		return add(a, b), nil
	case Mul:
		a, err := restrict(n.A, side)
		if err != nil {
			return nil, err
		}
		b, err := restrict(n.B, side)
		if err != nil {
			return nil, err
		}
		return mul(a, b), nil
	case Div:
		a, err := restrict(n.A, side)
		if err != nil {
			return nil, err
		}
		b, err := restrict(n.B, side)
		if err != nil {
			return nil, err
		}
		return Div{a, b}, nil
	}
	panic("representation: unknown scalar node")
}
