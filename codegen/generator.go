package codegen

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/representation"
)

// GenerateModule renders one self-contained C header for the compiled forms
// of a source file. The output is a pure function of its inputs; repeated
// runs produce byte-identical text.
func GenerateModule(stem string, forms []*representation.Compiled) (string, []Metadata, error) {
	ident := sanitizeIdent(stem)
	seen := map[string]bool{}
	var metas []Metadata

	var sb strings.Builder
	sb.WriteString("/* Generated by formc. Do not edit. */\n")
	guard := "FORMC_" + strings.ToUpper(ident) + "_H"
	sb.WriteString(fmt.Sprintf("#ifndef %s\n#define %s\n\n", guard, guard))
	sb.WriteString("#include <math.h>\n\n")
	sb.WriteString(metaTypedef)
	sb.WriteString("\n")

	for _, c := range forms {
		if seen[c.Form.Name] {
			return "", nil, errors.Errorf("duplicate form name %q", c.Form.Name)
		}
		seen[c.Form.Name] = true

		sym := ident + "_" + sanitizeIdent(c.Form.Name)
		meta := FormMetadata(c)
		metas = append(metas, meta)

		sb.WriteString(fmt.Sprintf("/* form %s: rank %d on %s */\n", c.Form.Name, meta.Rank, meta.Cell))
		sb.WriteString(emitMetaConstant(sym, meta))
		sb.WriteString("\n")
		if meta.HasCellIntegral {
			sb.WriteString(emitCellFunction(sym, c))
			sb.WriteString("\n")
		}
		if meta.HasExteriorFacet {
			sb.WriteString(emitExteriorFacetFunction(sym, c))
			sb.WriteString("\n")
		}
		if meta.HasInteriorFacet {
			sb.WriteString(emitInteriorFacetFunction(sym, c))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(fmt.Sprintf("#endif /* %s */\n", guard))
	return sb.String(), metas, nil
}

// sanitizeIdent maps a file stem or form name onto a C identifier.
func sanitizeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "form"
	}
	return b.String()
}

// emitCellFunction renders the cell-interior tabulation procedure. The
// local tensor is zeroed, geometry computed once for affine cells, and each
// subdomain's terms accumulated inside its dispatch case.
func emitCellFunction(sym string, c *representation.Compiled) string {
	plans := c.PlansFor(algebra.CellDomain)

	var body strings.Builder
	body.WriteString(fmt.Sprintf("for (int i = 0; i < %d; i++) A[i] = 0.0;\n", c.BufferLen()))
	if c.Cell.Simplex() {
		body.WriteString(affineJacobian(c.Cell, "coords", ""))
		if plansUseVolume(plans) {
			body.WriteString(fmt.Sprintf("const double vol = det*%s;\n", formatFloat(c.Cell.Volume())))
		}
	}
	body.WriteString("switch (subdomain) {\n")
	for _, p := range plans {
		body.WriteString(fmt.Sprintf("case %d: {\n", p.Subdomain))
		var cs strings.Builder
		for _, tp := range p.Terms {
			if tp.Repr == algebra.ReprTensor {
				cs.WriteString(emitTensorTerms(c, tp))
			} else {
				cs.WriteString(emitQuadCellTerm(c, tp))
			}
		}
		cs.WriteString("break;\n")
		body.WriteString(indent(cs.String(), "    "))
		body.WriteString("\n}\n")
	}
	body.WriteString("default:\n    return 1;\n}\nreturn 0;\n")

	return fmt.Sprintf(
		"static int %s_tabulate_cell(double* A, const double* const* w, const double* coords, int subdomain)\n{\n%s\n}\n",
		sym, indent(body.String(), "    "))
}

// emitExteriorFacetFunction renders the exterior-facet procedure: subdomain
// dispatch wrapping a compile-time facet dispatch, with per-facet tables.
func emitExteriorFacetFunction(sym string, c *representation.Compiled) string {
	plans := c.PlansFor(algebra.ExteriorFacetDomain)

	var body strings.Builder
	body.WriteString(fmt.Sprintf("for (int i = 0; i < %d; i++) A[i] = 0.0;\n", c.BufferLen()))
	if c.Cell.Simplex() && (plansNeedJacobian(plans, c.Cell.Dim()) || plansUseVolume(plans)) {
		body.WriteString(affineJacobian(c.Cell, "coords", ""))
		if plansUseVolume(plans) {
			body.WriteString(fmt.Sprintf("const double vol = det*%s;\n", formatFloat(c.Cell.Volume())))
		}
	}
	body.WriteString("switch (subdomain) {\n")
	for _, p := range plans {
		body.WriteString(fmt.Sprintf("case %d:\n", p.Subdomain))
		var cs strings.Builder
		cs.WriteString("switch (facet) {\n")
		for facet := 0; facet < c.Cell.NumFacets(); facet++ {
			cs.WriteString(fmt.Sprintf("case %d: {\n", facet))
			var fs strings.Builder
			for _, tp := range p.Terms {
				fs.WriteString(emitQuadExteriorFacetTerm(c, tp, facet))
			}
			fs.WriteString("break;\n")
			cs.WriteString(indent(fs.String(), "    "))
			cs.WriteString("\n}\n")
		}
		cs.WriteString("default:\n    return 1;\n}\nbreak;\n")
		body.WriteString(indent(cs.String(), "    "))
		body.WriteString("\n")
	}
	body.WriteString("default:\n    return 1;\n}\nreturn 0;\n")

	return fmt.Sprintf(
		"static int %s_tabulate_exterior_facet(double* A, const double* const* w, const double* coords, int facet, int subdomain)\n{\n%s\n}\n",
		sym, indent(body.String(), "    "))
}

// emitInteriorFacetFunction renders the interior-facet procedure over the
// doubled macro-element tensor. Geometry comes from both cells; the shared
// facet's measure and normal from cell 0's side.
func emitInteriorFacetFunction(sym string, c *representation.Compiled) string {
	plans := c.PlansFor(algebra.InteriorFacetDomain)

	n := 1
	for _, d := range c.ArgDims() {
		n *= 2 * d
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("for (int i = 0; i < %d; i++) A[i] = 0.0;\n", n))
	if plansNeedJacobian(plans, c.Cell.Dim()) {
		body.WriteString(affineJacobian(c.Cell, "coords0", "0"))
		body.WriteString(affineJacobian(c.Cell, "coords1", "1"))
	}
	body.WriteString("switch (subdomain) {\n")
	for _, p := range plans {
		body.WriteString(fmt.Sprintf("case %d:\n", p.Subdomain))
		var cs strings.Builder
		cs.WriteString("switch (facet0) {\n")
		for f0 := 0; f0 < c.Cell.NumFacets(); f0++ {
			cs.WriteString(fmt.Sprintf("case %d:\n", f0))
			var f0s strings.Builder
			f0s.WriteString("switch (facet1) {\n")
			for f1 := 0; f1 < c.Cell.NumFacets(); f1++ {
				f0s.WriteString(fmt.Sprintf("case %d: {\n", f1))
				var fs strings.Builder
				for _, tp := range p.Terms {
					fs.WriteString(emitQuadInteriorFacetTerm(c, tp, f0, f1))
				}
				fs.WriteString("break;\n")
				f0s.WriteString(indent(fs.String(), "    "))
				f0s.WriteString("\n}\n")
			}
			f0s.WriteString("default:\n    return 1;\n}\nbreak;\n")
			cs.WriteString(indent(f0s.String(), "    "))
			cs.WriteString("\n")
		}
		cs.WriteString("default:\n    return 1;\n}\nbreak;\n")
		body.WriteString(indent(cs.String(), "    "))
		body.WriteString("\n")
	}
	body.WriteString("default:\n    return 1;\n}\nreturn 0;\n")

	return fmt.Sprintf(
		"static int %s_tabulate_interior_facet(double* A, const double* const* w, const double* coords0, const double* coords1, int facet0, int facet1, int subdomain)\n{\n%s\n}\n",
		sym, indent(body.String(), "    "))
}

func plansUseVolume(plans []*representation.Plan) bool {
	for _, p := range plans {
		for _, tp := range p.Terms {
			if tp.Scalar != nil && usesVolume(tp.Scalar) {
				return true
			}
		}
	}
	return false
}

func plansNeedJacobian(plans []*representation.Plan, dim int) bool {
	for _, p := range plans {
		for _, tp := range p.Terms {
			if tp.Scalar != nil && needsJacobian(collectTables(tp.Scalar, dim)) {
				return true
			}
		}
	}
	return false
}
