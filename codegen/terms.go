package codegen

import (
	"fmt"
	"strings"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
	"github.com/formcomp/formc/quadrature"
	"github.com/formcomp/formc/representation"
)

// elementFor resolves the element a table key tabulates.
func elementFor(c *representation.Compiled, k tableKey) *element.Element {
	switch k.fn.kind {
	case representation.FuncTest:
		return c.Test
	case representation.FuncTrial:
		return c.Trial
	default:
		return c.Coefficients[k.fn.coef].Element
	}
}

// emitTensorTerms emits the accumulation blocks of a tensor-represented
// term: per monomial, the precomputed reference tensor as a static array,
// the per-cell geometry tensor, and the contraction loop.
func emitTensorTerms(c *representation.Compiled, tp *representation.TermPlan) string {
	dim := c.Cell.Dim()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("/* tensor representation, degree %d */\n", tp.Degree))
	for _, tt := range tp.TensorTerms {
		sb.WriteString("{\n")
		var body strings.Builder
		body.WriteString(formatStaticArray("A0", tt.Ref))

		// Geometry tensor: G[g] = coef * det * prod_k K[a_k*dim + m_k].
		body.WriteString(fmt.Sprintf("double G[%d];\n", tt.NG))
		digits := make([]int, len(tt.GeoDerivs))
		for g := 0; g < tt.NG; g++ {
			rest := g
			for k := len(digits) - 1; k >= 0; k-- {
				digits[k] = rest % dim
				rest /= dim
			}
			parts := []string{formatFloat(tt.Coef), "det"}
			for k, m := range tt.GeoDerivs {
				parts = append(parts, fmt.Sprintf("K[%d]", digits[k]*dim+m))
			}
			body.WriteString(fmt.Sprintf("G[%d] = %s;\n", g, strings.Join(parts, "*")))
		}

		// Contraction, accumulated in fixed order.
		body.WriteString(fmt.Sprintf("for (int a = 0; a < %d; a++) {\n", tt.NA))
		inner := "double s = 0.0;\n"
		wIdx := "0"
		wProd := ""
		var opens int
		for si, slot := range tt.CoefSlots {
			inner += fmt.Sprintf("for (int c%d = 0; c%d < %d; c%d++) {\n", si, si, slot.Dim, si)
			opens++
			if si == 0 {
				wIdx = fmt.Sprintf("c%d", si)
			} else {
				wIdx = fmt.Sprintf("(%s)*%d + c%d", wIdx, slot.Dim, si)
			}
			wProd += fmt.Sprintf("*w[%d][c%d]", slot.Coefficient, si)
		}
		inner += fmt.Sprintf("for (int g = 0; g < %d; g++) {\n", tt.NG)
		inner += fmt.Sprintf("    s += A0[(a*%d + %s)*%d + g]%s*G[g];\n", tt.NW, wIdx, tt.NG, wProd)
		inner += "}\n"
		for i := 0; i < opens; i++ {
			inner += "}\n"
		}
		inner += "A[a] += s;\n"
		body.WriteString(indent(inner, "    "))
		body.WriteString("\n}\n")
		sb.WriteString(indent(body.String(), "    "))
		sb.WriteString("\n}\n")
	}
	return sb.String()
}

// quadLoopHeader builds the argument loops and flat buffer index for the
// current form rank. doubled widens both argument ranges for interior-facet
// tensors.
func quadLoopHeader(c *representation.Compiled, doubled bool) (open, closing, index string) {
	mult := 1
	if doubled {
		mult = 2
	}
	switch {
	case c.Test != nil && c.Trial != nil:
		nj, nk := mult*c.Test.LocalDim(), mult*c.Trial.LocalDim()
		open = fmt.Sprintf("for (int j = 0; j < %d; j++) {\nfor (int k = 0; k < %d; k++) {\n", nj, nk)
		closing = "}\n}\n"
		index = fmt.Sprintf("j*%d + k", nk)
	case c.Test != nil:
		open = fmt.Sprintf("for (int j = 0; j < %d; j++) {\n", mult*c.Test.LocalDim())
		closing = "}\n"
		index = "j"
	case c.Trial != nil:
		open = fmt.Sprintf("for (int k = 0; k < %d; k++) {\n", mult*c.Trial.LocalDim())
		closing = "}\n"
		index = "k"
	default:
		index = "0"
	}
	return
}

// quadTermStatics renders the weight and basis tables of one quadrature
// term at the given points.
func quadTermStatics(c *representation.Compiled, keys []tableKey, rule *quadrature.Rule) string {
	var sb strings.Builder
	sb.WriteString(formatStaticArray("W", rule.Weights))
	for _, k := range keys {
		sb.WriteString(formatStaticMatrix(k.name(""), tabulate(elementFor(c, k), k, rule.Points)))
	}
	return sb.String()
}

func tableWidths(c *representation.Compiled, keys []tableKey) map[tableKey]int {
	widths := map[tableKey]int{}
	for _, k := range keys {
		w := elementFor(c, k).LocalDim()
		if k.side != algebra.NoRestriction {
			w *= 2
		}
		widths[k] = w
	}
	return widths
}

// emitQuadCellTerm emits the quadrature loop of one cell-interior term.
func emitQuadCellTerm(c *representation.Compiled, tp *representation.TermPlan) string {
	dim := c.Cell.Dim()
	keys := collectTables(tp.Scalar, dim)
	rule := tp.Rule
	affine := c.Cell.Simplex()

	ctx := renderCtx{
		dim: dim, testVar: "j", trialVar: "k",
		volVar: "vol", kPlus: "K", kMinus: "K",
	}

	var body strings.Builder
	body.WriteString(quadTermStatics(c, keys, rule))
	if !affine {
		geo := geometryElement(c.Cell)
		for a := 0; a < dim; a++ {
			body.WriteString(formatStaticMatrix(fmt.Sprintf("GEO_D%d", a),
				geo.TabulateRow(rule.Points, []int{a})))
		}
	}

	body.WriteString(fmt.Sprintf("for (int q = 0; q < %d; q++) {\n", rule.Npoints()))
	var loop strings.Builder
	if !affine {
		loop.WriteString(pointJacobian(c.Cell, "coords", "GEO", ""))
	}
	loop.WriteString(emitCoefLocals(keys, tableWidths(c, keys)))
	open, closeLoops, index := quadLoopHeader(c, false)
	loop.WriteString(open)
	stmt := fmt.Sprintf("A[%s] += (%s)*W[q]*det;\n", index, renderScalar(tp.Scalar, ctx))
	loop.WriteString(indentDepth(stmt, strings.Count(open, "{")))
	loop.WriteString(closeLoops)
	body.WriteString(indent(loop.String(), "    "))
	body.WriteString("\n}\n")

	return fmt.Sprintf("/* quadrature representation, degree %d */\n{\n%s\n}\n",
		tp.Degree, indent(body.String(), "    "))
}

// emitQuadExteriorFacetTerm emits the quadrature loop of one exterior-facet
// term for a fixed facet index.
func emitQuadExteriorFacetTerm(c *representation.Compiled, tp *representation.TermPlan, facet int) string {
	dim := c.Cell.Dim()
	keys := collectTables(tp.Scalar, dim)
	rule := tp.FacetRules[facet]
	affine := c.Cell.Simplex()

	ctx := renderCtx{
		dim: dim, testVar: "j", trialVar: "k",
		normalVar: "n", volVar: "vol", kPlus: "K", kMinus: "K",
	}

	var body strings.Builder
	body.WriteString(quadTermStatics(c, keys, rule))
	if !affine && needsJacobian(keys) {
		geo := geometryElement(c.Cell)
		for a := 0; a < dim; a++ {
			body.WriteString(formatStaticMatrix(fmt.Sprintf("GEO_D%d", a),
				geo.TabulateRow(rule.Points, []int{a})))
		}
	}
	body.WriteString(facetGeometry(c.Cell, facet, "coords", "", usesNormal(tp.Scalar)))

	body.WriteString(fmt.Sprintf("for (int q = 0; q < %d; q++) {\n", rule.Npoints()))
	var loop strings.Builder
	if !affine && needsJacobian(keys) {
		loop.WriteString(pointJacobian(c.Cell, "coords", "GEO", ""))
	}
	loop.WriteString(emitCoefLocals(keys, tableWidths(c, keys)))
	open, closeLoops, index := quadLoopHeader(c, false)
	loop.WriteString(open)
	stmt := fmt.Sprintf("A[%s] += (%s)*W[q]*fdet;\n", index, renderScalar(tp.Scalar, ctx))
	loop.WriteString(indentDepth(stmt, strings.Count(open, "{")))
	loop.WriteString(closeLoops)
	body.WriteString(indent(loop.String(), "    "))
	body.WriteString("\n}\n")

	return fmt.Sprintf("{\n%s\n}\n", indent(body.String(), "    "))
}

// emitQuadInteriorFacetTerm emits one interior-facet term for a fixed
// (facet0, facet1) pair. The '+' side tabulates on cell 0's facet0, the '-'
// side on cell 1's facet1; the caller guarantees matching point order.
func emitQuadInteriorFacetTerm(c *representation.Compiled, tp *representation.TermPlan, facet0, facet1 int) string {
	dim := c.Cell.Dim()
	keys := collectTables(tp.Scalar, dim)
	rule0 := tp.FacetRules[facet0]
	rule1 := tp.FacetRules[facet1]

	ctx := renderCtx{
		dim: dim, testVar: "j", trialVar: "k",
		normalVar: "n", volVar: "vol", kPlus: "K0", kMinus: "K1",
	}

	var body strings.Builder
	body.WriteString(formatStaticArray("W", rule0.Weights))
	for _, k := range keys {
		pts := rule0.Points
		if k.side == algebra.NegativeSide {
			pts = rule1.Points
		}
		body.WriteString(formatStaticMatrix(k.name(""), tabulate(elementFor(c, k), k, pts)))
	}
	body.WriteString(facetGeometry(c.Cell, facet0, "coords0", "", usesNormal(tp.Scalar)))

	body.WriteString(fmt.Sprintf("for (int q = 0; q < %d; q++) {\n", rule0.Npoints()))
	var loop strings.Builder
	loop.WriteString(emitCoefLocals(keys, tableWidths(c, keys)))
	open, closeLoops, index := quadLoopHeader(c, true)
	loop.WriteString(open)
	stmt := fmt.Sprintf("A[%s] += (%s)*W[q]*fdet;\n", index, renderScalar(tp.Scalar, ctx))
	loop.WriteString(indentDepth(stmt, strings.Count(open, "{")))
	loop.WriteString(closeLoops)
	body.WriteString(indent(loop.String(), "    "))
	body.WriteString("\n}\n")

	return fmt.Sprintf("{\n%s\n}\n", indent(body.String(), "    "))
}

// geometryElement is the isoparametric degree-1 element of the cell map.
func geometryElement(cell element.Cell) *element.Element {
	el, err := element.NewElement(element.Lagrange, cell, 1)
	if err != nil {
		panic(err)
	}
	return el
}

func needsJacobian(keys []tableKey) bool {
	for _, k := range keys {
		if k.derivs != "" {
			return true
		}
	}
	return false
}

func usesNormal(t representation.ScalarExpr) bool {
	switch n := t.(type) {
	case representation.Term:
		return n.Factor.Kind == representation.FuncNormal
	case representation.Add:
		return usesNormal(n.A) || usesNormal(n.B)
	case representation.Mul:
		return usesNormal(n.A) || usesNormal(n.B)
	case representation.Div:
		return usesNormal(n.A) || usesNormal(n.B)
	}
	return false
}

func usesVolume(t representation.ScalarExpr) bool {
	switch n := t.(type) {
	case representation.Term:
		return n.Factor.Kind == representation.FuncCellVolume
	case representation.Add:
		return usesVolume(n.A) || usesVolume(n.B)
	case representation.Mul:
		return usesVolume(n.A) || usesVolume(n.B)
	case representation.Div:
		return usesVolume(n.A) || usesVolume(n.B)
	}
	return false
}

func indentDepth(s string, depth int) string {
	for i := 0; i < depth; i++ {
		s = indent(s, "    ")
	}
	return s
}
