package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
	"github.com/formcomp/formc/representation"
)

// fnKey identifies a function of the form: test, trial or one coefficient.
type fnKey struct {
	kind representation.FuncKind
	coef int
}

func (k fnKey) name() string {
	switch k.kind {
	case representation.FuncTest:
		return "v"
	case representation.FuncTrial:
		return "u"
	default:
		return fmt.Sprintf("w%d", k.coef)
	}
}

// tableKey identifies one static basis table: a function component tabulated
// with one reference-derivative tuple, on one side for interior facets.
type tableKey struct {
	fn     fnKey
	comp   int
	derivs string // sorted reference directions, e.g. "", "0", "01"
	side   algebra.RestrictSide
}

func (k tableKey) name(prefix string) string {
	n := prefix + "FE_" + k.fn.name() + fmt.Sprintf("_c%d", k.comp)
	if k.derivs != "" {
		n += "_D" + k.derivs
	}
	switch k.side {
	case algebra.PositiveSide:
		n += "_p"
	case algebra.NegativeSide:
		n += "_m"
	}
	return n
}

// refTuples lists the sorted reference-direction tuples of length n in
// dimension dim ("" for n == 0), in lexicographic order.
func refTuples(dim, n int) []string {
	if n == 0 {
		return []string{""}
	}
	var out []string
	shorter := refTuples(dim, n-1)
	seen := map[string]bool{}
	for _, s := range shorter {
		for d := 0; d < dim; d++ {
			t := sortedTuple(s + fmt.Sprintf("%d", d))
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sortedTuple(s string) string {
	b := []byte(s)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

func tupleDerivs(s string) []int {
	out := make([]int, len(s))
	for i := range s {
		out[i] = int(s[i] - '0')
	}
	return out
}

// collectTables walks a lowered integrand and returns the set of basis
// tables its factors need, in deterministic order.
func collectTables(t representation.ScalarExpr, dim int) []tableKey {
	seen := map[tableKey]bool{}
	var walk func(t representation.ScalarExpr)
	walk = func(t representation.ScalarExpr) {
		switch n := t.(type) {
		case representation.Term:
			f := n.Factor
			if f.Kind == representation.FuncNormal || f.Kind == representation.FuncCellVolume {
				return
			}
			for _, tup := range refTuples(dim, len(f.Derivs)) {
				seen[tableKey{
					fn:     fnKey{f.Kind, f.Coefficient},
					comp:   f.Component,
					derivs: tup,
					side:   f.Restriction,
				}] = true
			}
		case representation.Add:
			walk(n.A)
			walk(n.B)
		case representation.Mul:
			walk(n.A)
			walk(n.B)
		case representation.Div:
			walk(n.A)
			walk(n.B)
		}
	}
	walk(t)

	keys := make([]tableKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.fn != b.fn {
			if a.fn.kind != b.fn.kind {
				return a.fn.kind < b.fn.kind
			}
			return a.fn.coef < b.fn.coef
		}
		if a.comp != b.comp {
			return a.comp < b.comp
		}
		if a.derivs != b.derivs {
			return a.derivs < b.derivs
		}
		return a.side < b.side
	})
	return keys
}

// tabulate builds the content of one table at the given reference points:
// rows are quadrature points, columns local dofs. Vector elements are
// zero-padded outside the table's component block; interior-facet tables are
// double-width with the off-side half zeroed ('+' dofs first).
func tabulate(el *element.Element, key tableKey, points [][]float64) [][]float64 {
	ld := el.LocalDim()
	sd := el.ScalarDim()
	width := ld
	offset := 0
	if key.side != algebra.NoRestriction {
		width = 2 * ld
		if key.side == algebra.NegativeSide {
			offset = ld
		}
	}
	derivs := tupleDerivs(key.derivs)

	rows := make([][]float64, len(points))
	for q, pt := range points {
		row := make([]float64, width)
		for r := 0; r < ld; r++ {
			k := r
			if el.ValueSize() > 1 {
				if r/sd != key.comp {
					continue
				}
				k = r % sd
			}
			row[offset+r] = el.EvalDeriv(k, pt, derivs)
		}
		rows[q] = row
	}
	return rows
}

// coefLocal names the per-point scalar holding one coefficient's tabulated
// reference-derivative sum.
func coefLocal(k tableKey) string {
	return strings.ReplaceAll(k.name(""), "FE_", "c_")
}
