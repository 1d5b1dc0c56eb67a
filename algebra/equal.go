package algebra

// Equal reports structural equality of two expression trees. Arguments
// compare by kind and element identity, coefficients by index and element.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case *Argument:
		y, ok := b.(*Argument)
		return ok && x.Kind == y.Kind && x.Element == y.Element
	case *Coefficient:
		y, ok := b.(*Coefficient)
		return ok && x.Index == y.Index && x.Element == y.Element
	case *Constant:
		y, ok := b.(*Constant)
		return ok && x.Value == y.Value
	case *FacetNormal:
		y, ok := b.(*FacetNormal)
		return ok && x.Dim == y.Dim
	case *CellVolume:
		_, ok := b.(*CellVolume)
		return ok
	case *Grad:
		y, ok := b.(*Grad)
		return ok && Equal(x.Operand, y.Operand)
	case *Div:
		y, ok := b.(*Div)
		return ok && Equal(x.Operand, y.Operand)
	case *Curl:
		y, ok := b.(*Curl)
		return ok && Equal(x.Operand, y.Operand)
	case *Restrict:
		y, ok := b.(*Restrict)
		return ok && x.Side == y.Side && Equal(x.Operand, y.Operand)
	case *Sum:
		y, ok := b.(*Sum)
		return ok && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Product:
		y, ok := b.(*Product)
		return ok && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Division:
		y, ok := b.(*Division)
		return ok && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Inner:
		y, ok := b.(*Inner)
		return ok && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Dot:
		y, ok := b.(*Dot)
		return ok && Equal(x.A, y.A) && Equal(x.B, y.B)
	case *Outer:
		y, ok := b.(*Outer)
		return ok && Equal(x.A, y.A) && Equal(x.B, y.B)
	}
	return false
}

// Terms flattens nested sums into the ordered list of additive terms.
func Terms(e Expr) []Expr {
	if s, ok := e.(*Sum); ok {
		return append(Terms(s.A), Terms(s.B)...)
	}
	return []Expr{e}
}

// Canonicalize rebuilds e with its additive terms in a deterministic order
// (sorted by rendering, stable). Generated code accumulates terms in this
// order, so two structurally equal forms compile to identical output.
func Canonicalize(e Expr) Expr {
	terms := Terms(e)
	if len(terms) == 1 {
		return e
	}
	// Insertion sort keyed on the rendered term; stable and allocation-free
	// for the tiny term counts that occur in practice.
	keys := make([]string, len(terms))
	for i, t := range terms {
		keys[i] = t.String()
	}
	for i := 1; i < len(terms); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
			terms[j-1], terms[j] = terms[j], terms[j-1]
		}
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out = &Sum{A: out, B: t}
	}
	return out
}
