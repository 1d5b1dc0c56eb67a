package representation

import (
	"sort"
)

// Monomial is one product term of a fully expanded integrand: a constant
// coefficient times a product of scalar factors.
type Monomial struct {
	Coef    float64
	Factors []Factor
}

func (m Monomial) key() string {
	s := ""
	for _, f := range m.Factors {
		s += f.key() + "|"
	}
	return s
}

// sortFactors puts factors in canonical order so that structurally equal
// monomials compare equal and generated output is deterministic.
func (m *Monomial) sortFactors() {
	sort.SliceStable(m.Factors, func(i, j int) bool {
		return m.Factors[i].key() < m.Factors[j].key()
	})
}

// ExpandMonomials distributes a lowered integrand into a sum of monomials.
// ok is false when the expression is not a polynomial in its factors, i.e.
// contains a division by a non-constant subexpression; such terms can only
// take the quadrature representation.
func ExpandMonomials(t ScalarExpr) (monos []Monomial, ok bool) {
	switch n := t.(type) {
	case Num:
		if n.Value == 0 {
			return nil, true
		}
		return []Monomial{{Coef: n.Value}}, true
	case Term:
		return []Monomial{{Coef: 1, Factors: []Factor{n.Factor}}}, true
	case Add:
		a, ok := ExpandMonomials(n.A)
		if !ok {
			return nil, false
		}
		b, ok := ExpandMonomials(n.B)
		if !ok {
			return nil, false
		}
		return append(a, b...), true
	case Mul:
		a, ok := ExpandMonomials(n.A)
		if !ok {
			return nil, false
		}
		b, ok := ExpandMonomials(n.B)
		if !ok {
			return nil, false
		}
		var out []Monomial
		for _, ma := range a {
			for _, mb := range b {
				m := Monomial{Coef: ma.Coef * mb.Coef}
				m.Factors = append(append([]Factor(nil), ma.Factors...), mb.Factors...)
				out = append(out, m)
			}
		}
		return out, true
	case Div:
		a, ok := ExpandMonomials(n.A)
		if !ok {
			return nil, false
		}
		b, ok := ExpandMonomials(n.B)
		if !ok || len(b) != 1 || len(b[0].Factors) != 0 {
			return nil, false
		}
		inv := 1 / b[0].Coef
		for i := range a {
			a[i].Coef *= inv
		}
		return a, true
	}
	return nil, false
}

// Normalize sorts each monomial's factors canonically and drops zero terms.
// With merge set, monomials with identical factor structure are combined by
// summing coefficients (the pre-factorization simplification enabled by the
// optimize option).
func Normalize(monos []Monomial, merge bool) []Monomial {
	out := monos[:0:0]
	for _, m := range monos {
		if m.Coef == 0 {
			continue
		}
		m.sortFactors()
		out = append(out, m)
	}
	if !merge {
		return out
	}
	merged := out[:0:0]
	index := map[string]int{}
	for _, m := range out {
		k := m.key()
		if i, ok := index[k]; ok {
			merged[i].Coef += m.Coef
		} else {
			index[k] = len(merged)
			merged = append(merged, m)
		}
	}
	final := merged[:0:0]
	for _, m := range merged {
		if m.Coef != 0 {
			final = append(final, m)
		}
	}
	return final
}
