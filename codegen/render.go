package codegen

import (
	"fmt"
	"strings"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/representation"
)

// renderCtx carries the naming conventions of the emitted scope: index
// variables for the argument loops and the geometry variable suffixes of the
// two interior-facet sides.
type renderCtx struct {
	dim       int
	testVar   string
	trialVar  string
	normalVar string
	volVar    string
	// kPlus/kMinus name the inverse-Jacobian arrays for the '+' and '-'
	// cells; unrestricted factors use kPlus.
	kPlus, kMinus string
}

func (ctx renderCtx) kFor(side algebra.RestrictSide) string {
	if side == algebra.NegativeSide {
		return ctx.kMinus
	}
	return ctx.kPlus
}

// renderScalar renders a lowered integrand as one C expression evaluated at
// quadrature point q with the current argument indices.
func renderScalar(t representation.ScalarExpr, ctx renderCtx) string {
	switch n := t.(type) {
	case representation.Num:
		return formatFloat(n.Value)
	case representation.Term:
		return renderFactor(n.Factor, ctx)
	case representation.Add:
		return "(" + renderScalar(n.A, ctx) + " + " + renderScalar(n.B, ctx) + ")"
	case representation.Mul:
		return renderScalar(n.A, ctx) + "*" + renderScalar(n.B, ctx)
	case representation.Div:
		return "(" + renderScalar(n.A, ctx) + " / " + renderScalar(n.B, ctx) + ")"
	}
	panic("codegen: unknown scalar node")
}

// renderFactor renders one factor. Physical derivatives are mapped through
// the inverse Jacobian: d/dx_m = sum_a K[a*d+m] d/dxi_a, expanded over all
// assignments of reference directions.
func renderFactor(f representation.Factor, ctx renderCtx) string {
	switch f.Kind {
	case representation.FuncNormal:
		return fmt.Sprintf("%s[%d]", ctx.normalVar, f.Component)
	case representation.FuncCellVolume:
		return ctx.volVar
	}

	terminal := func(tuple string) string {
		key := tableKey{
			fn:     fnKey{f.Kind, f.Coefficient},
			comp:   f.Component,
			derivs: tuple,
			side:   f.Restriction,
		}
		switch f.Kind {
		case representation.FuncCoefficient:
			return coefLocal(key)
		case representation.FuncTest:
			return fmt.Sprintf("%s[q][%s]", key.name(""), ctx.testVar)
		default:
			return fmt.Sprintf("%s[q][%s]", key.name(""), ctx.trialVar)
		}
	}

	n := len(f.Derivs)
	if n == 0 {
		return terminal("")
	}

	kv := ctx.kFor(f.Restriction)
	var sum []string
	assign := make([]int, n)
	var rec func(i int)
	rec = func(i int) {
		if i == n {
			digits := ""
			parts := make([]string, 0, n+1)
			for k, a := range assign {
				parts = append(parts, fmt.Sprintf("%s[%d]", kv, a*ctx.dim+f.Derivs[k]))
				digits += fmt.Sprintf("%d", a)
			}
			parts = append(parts, terminal(sortedTuple(digits)))
			sum = append(sum, strings.Join(parts, "*"))
			return
		}
		for a := 0; a < ctx.dim; a++ {
			assign[i] = a
			rec(i + 1)
		}
	}
	rec(0)
	if len(sum) == 1 {
		return sum[0]
	}
	return "(" + strings.Join(sum, " + ") + ")"
}

// emitCoefLocals emits, inside the quadrature loop, one accumulator per
// coefficient table: the dot product of the coefficient's dof vector with
// the tabulated basis row at point q.
func emitCoefLocals(keys []tableKey, widths map[tableKey]int) string {
	var sb strings.Builder
	for _, k := range keys {
		if k.fn.kind != representation.FuncCoefficient {
			continue
		}
		local := coefLocal(k)
		sb.WriteString(fmt.Sprintf("double %s = 0.0;\n", local))
		sb.WriteString(fmt.Sprintf("for (int r = 0; r < %d; r++) %s += w[%d][r]*%s[q][r];\n",
			widths[k], local, k.fn.coef, k.name("")))
	}
	return sb.String()
}
