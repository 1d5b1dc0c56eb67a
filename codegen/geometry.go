package codegen

import (
	"fmt"
	"strings"

	"github.com/formcomp/formc/element"
)

// Geometry variable conventions in emitted code, for a cell of dimension d:
//
//	J<s>[i*d+a]  = dx_i / dxi_a       (Jacobian, column per reference axis)
//	K<s>[a*d+i]  = dxi_a / dx_i       (inverse Jacobian)
//	detJ<s>      = det J (signed)
//	det<s>       = fabs(detJ)         (integration scaling)
//
// <s> is a suffix distinguishing the two cells of an interior facet.

// affineJacobian emits the per-cell geometry computation for an affine
// simplex from the flat vertex-coordinate array.
func affineJacobian(cell element.Cell, coords, sfx string) string {
	d := cell.Dim()
	var sb strings.Builder
	at := func(v, i int) string { return fmt.Sprintf("%s[%d]", coords, v*d+i) }

	sb.WriteString(fmt.Sprintf("double J%s[%d];\n", sfx, d*d))
	for i := 0; i < d; i++ {
		for a := 0; a < d; a++ {
			sb.WriteString(fmt.Sprintf("J%s[%d] = %s - %s;\n", sfx, i*d+a, at(a+1, i), at(0, i)))
		}
	}
	switch d {
	case 1:
		sb.WriteString(fmt.Sprintf("const double detJ%s = J%s[0];\n", sfx, sfx))
		sb.WriteString(fmt.Sprintf("double K%s[1];\nK%s[0] = 1.0 / detJ%s;\n", sfx, sfx, sfx))
	case 2:
		sb.WriteString(fmt.Sprintf("const double detJ%s = J%s[0]*J%s[3] - J%s[1]*J%s[2];\n",
			sfx, sfx, sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("double K%s[4];\n", sfx))
		sb.WriteString(fmt.Sprintf("K%s[0] =  J%s[3] / detJ%s;\n", sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("K%s[1] = -J%s[1] / detJ%s;\n", sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("K%s[2] = -J%s[2] / detJ%s;\n", sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("K%s[3] =  J%s[0] / detJ%s;\n", sfx, sfx, sfx))
	case 3:
		j := func(i, a int) string { return fmt.Sprintf("J%s[%d]", sfx, i*3+a) }
		cof := func(i0, a0, i1, a1 string) string { return i0 + "*" + a0 + " - " + i1 + "*" + a1 }
		// Explicit adjugate of the 3x3 Jacobian.
		adj := []string{
			cof(j(1, 1), j(2, 2), j(1, 2), j(2, 1)), // K[0] = dxi0/dx0
			cof(j(0, 2), j(2, 1), j(0, 1), j(2, 2)), // K[1] = dxi0/dx1
			cof(j(0, 1), j(1, 2), j(0, 2), j(1, 1)), // K[2] = dxi0/dx2
			cof(j(1, 2), j(2, 0), j(1, 0), j(2, 2)), // K[3]
			cof(j(0, 0), j(2, 2), j(0, 2), j(2, 0)), // K[4]
			cof(j(0, 2), j(1, 0), j(0, 0), j(1, 2)), // K[5]
			cof(j(1, 0), j(2, 1), j(1, 1), j(2, 0)), // K[6]
			cof(j(0, 1), j(2, 0), j(0, 0), j(2, 1)), // K[7]
			cof(j(0, 0), j(1, 1), j(0, 1), j(1, 0)), // K[8]
		}
		sb.WriteString(fmt.Sprintf("const double detJ%s = J%s[0]*(%s) + J%s[1]*(%s) + J%s[2]*(%s);\n",
			sfx, sfx, adj[0], sfx, adj[3], sfx, adj[6]))
		sb.WriteString(fmt.Sprintf("double K%s[9];\n", sfx))
		for a, e := range adj {
			sb.WriteString(fmt.Sprintf("K%s[%d] = (%s) / detJ%s;\n", sfx, a, e, sfx))
		}
	}
	sb.WriteString(fmt.Sprintf("const double det%s = fabs(detJ%s);\n", sfx, sfx))
	return sb.String()
}

// pointJacobian emits the per-quadrature-point geometry computation for a
// bilinear/trilinear cube cell. tables names the static geometry derivative
// arrays GD<a>[nq][nverts] emitted by the caller; the snippet must run
// inside the q loop.
func pointJacobian(cell element.Cell, coords, tablePrefix, sfx string) string {
	d := cell.Dim()
	nv := cell.NumVertices()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("double J%s[%d];\n", sfx, d*d))
	for i := 0; i < d; i++ {
		for a := 0; a < d; a++ {
			var terms []string
			for v := 0; v < nv; v++ {
				terms = append(terms, fmt.Sprintf("%s[%d]*%s_D%d[q][%d]",
					coords, v*d+i, tablePrefix, a, v))
			}
			sb.WriteString(fmt.Sprintf("J%s[%d] = %s;\n", sfx, i*d+a, strings.Join(terms, " + ")))
		}
	}
	switch d {
	case 2:
		sb.WriteString(fmt.Sprintf("const double detJ%s = J%s[0]*J%s[3] - J%s[1]*J%s[2];\n",
			sfx, sfx, sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("double K%s[4];\n", sfx))
		sb.WriteString(fmt.Sprintf("K%s[0] =  J%s[3] / detJ%s;\n", sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("K%s[1] = -J%s[1] / detJ%s;\n", sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("K%s[2] = -J%s[2] / detJ%s;\n", sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("K%s[3] =  J%s[0] / detJ%s;\n", sfx, sfx, sfx))
	case 3:
		j := func(i, a int) string { return fmt.Sprintf("J%s[%d]", sfx, i*3+a) }
		cof := func(i0, a0, i1, a1 string) string { return i0 + "*" + a0 + " - " + i1 + "*" + a1 }
		adj := []string{
			cof(j(1, 1), j(2, 2), j(1, 2), j(2, 1)), // K[0] = dxi0/dx0
			cof(j(0, 2), j(2, 1), j(0, 1), j(2, 2)), // K[1] = dxi0/dx1
			cof(j(0, 1), j(1, 2), j(0, 2), j(1, 1)), // K[2] = dxi0/dx2
			cof(j(1, 2), j(2, 0), j(1, 0), j(2, 2)), // K[3]
			cof(j(0, 0), j(2, 2), j(0, 2), j(2, 0)), // K[4]
			cof(j(0, 2), j(1, 0), j(0, 0), j(1, 2)), // K[5]
			cof(j(1, 0), j(2, 1), j(1, 1), j(2, 0)), // K[6]
			cof(j(0, 1), j(2, 0), j(0, 0), j(2, 1)), // K[7]
			cof(j(0, 0), j(1, 1), j(0, 1), j(1, 0)), // K[8]
		}
		sb.WriteString(fmt.Sprintf("const double detJ%s = J%s[0]*(%s) + J%s[1]*(%s) + J%s[2]*(%s);\n",
			sfx, sfx, adj[0], sfx, adj[3], sfx, adj[6]))
		sb.WriteString(fmt.Sprintf("double K%s[9];\n", sfx))
		for a, e := range adj {
			sb.WriteString(fmt.Sprintf("K%s[%d] = (%s) / detJ%s;\n", sfx, a, e, sfx))
		}
	}
	sb.WriteString(fmt.Sprintf("const double det%s = fabs(detJ%s);\n", sfx, sfx))
	return sb.String()
}

// facetGeometry emits, for a compile-time facet index, the facet measure
// scaling fdet<s> and (when withNormal) the outward unit normal n<s>[].
// Facets of the supported cells are straight, so both are constant per facet.
func facetGeometry(cell element.Cell, facet int, coords, sfx string, withNormal bool) string {
	d := cell.Dim()
	fv := cell.FacetVertices()[facet]
	at := func(v, i int) string { return fmt.Sprintf("%s[%d]", coords, v*d+i) }
	var sb strings.Builder

	switch cell {
	case element.Interval:
		other := 1 - fv[0]
		sb.WriteString(fmt.Sprintf("const double fdet%s = 1.0;\n", sfx))
		if withNormal {
			sb.WriteString(fmt.Sprintf("double n%s[1];\n", sfx))
			sb.WriteString(fmt.Sprintf("n%s[0] = (%s > %s) ? 1.0 : -1.0;\n",
				sfx, at(fv[0], 0), at(other, 0)))
		}

	case element.Triangle, element.Quadrilateral:
		a, b := fv[0], fv[1]
		sb.WriteString(fmt.Sprintf("const double tx%s = %s - %s;\n", sfx, at(b, 0), at(a, 0)))
		sb.WriteString(fmt.Sprintf("const double ty%s = %s - %s;\n", sfx, at(b, 1), at(a, 1)))
		sb.WriteString(fmt.Sprintf("const double fdet%s = sqrt(tx%s*tx%s + ty%s*ty%s);\n",
			sfx, sfx, sfx, sfx, sfx))
		if withNormal {
			sb.WriteString(fmt.Sprintf("double n%s[2];\n", sfx))
			sb.WriteString(fmt.Sprintf("n%s[0] = ty%s / fdet%s;\n", sfx, sfx, sfx))
			sb.WriteString(fmt.Sprintf("n%s[1] = -tx%s / fdet%s;\n", sfx, sfx, sfx))
			var refX, refY string
			if cell == element.Triangle {
				// Facet i of a simplex is opposite vertex i.
				refX, refY = at(facet, 0), at(facet, 1)
			} else {
				refX = fmt.Sprintf("0.25*(%s + %s + %s + %s)", at(0, 0), at(1, 0), at(2, 0), at(3, 0))
				refY = fmt.Sprintf("0.25*(%s + %s + %s + %s)", at(0, 1), at(1, 1), at(2, 1), at(3, 1))
			}
			sb.WriteString(fmt.Sprintf("if (n%s[0]*((%s) - %s) + n%s[1]*((%s) - %s) > 0.0) {\n",
				sfx, refX, at(a, 0), sfx, refY, at(a, 1)))
			sb.WriteString(fmt.Sprintf("    n%s[0] = -n%s[0];\n    n%s[1] = -n%s[1];\n}\n",
				sfx, sfx, sfx, sfx))
		}

	case element.Tetrahedron:
		a, b, c := fv[0], fv[1], fv[2]
		for i := 0; i < 3; i++ {
			sb.WriteString(fmt.Sprintf("const double e1%s_%d = %s - %s;\n", sfx, i, at(b, i), at(a, i)))
			sb.WriteString(fmt.Sprintf("const double e2%s_%d = %s - %s;\n", sfx, i, at(c, i), at(a, i)))
		}
		sb.WriteString(fmt.Sprintf("const double cx%s = e1%s_1*e2%s_2 - e1%s_2*e2%s_1;\n", sfx, sfx, sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("const double cy%s = e1%s_2*e2%s_0 - e1%s_0*e2%s_2;\n", sfx, sfx, sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("const double cz%s = e1%s_0*e2%s_1 - e1%s_1*e2%s_0;\n", sfx, sfx, sfx, sfx, sfx))
		sb.WriteString(fmt.Sprintf("const double fdet%s = sqrt(cx%s*cx%s + cy%s*cy%s + cz%s*cz%s);\n",
			sfx, sfx, sfx, sfx, sfx, sfx, sfx))
		if withNormal {
			sb.WriteString(fmt.Sprintf("double n%s[3];\n", sfx))
			sb.WriteString(fmt.Sprintf("n%s[0] = cx%s / fdet%s;\n", sfx, sfx, sfx))
			sb.WriteString(fmt.Sprintf("n%s[1] = cy%s / fdet%s;\n", sfx, sfx, sfx))
			sb.WriteString(fmt.Sprintf("n%s[2] = cz%s / fdet%s;\n", sfx, sfx, sfx))
			dots := make([]string, 3)
			for i := 0; i < 3; i++ {
				dots[i] = fmt.Sprintf("n%s[%d]*(%s - %s)", sfx, i, at(facet, i), at(a, i))
			}
			sb.WriteString(fmt.Sprintf("if (%s > 0.0) {\n", strings.Join(dots, " + ")))
			sb.WriteString(fmt.Sprintf("    n%s[0] = -n%s[0];\n    n%s[1] = -n%s[1];\n    n%s[2] = -n%s[2];\n}\n",
				sfx, sfx, sfx, sfx, sfx, sfx))
		}
	}
	return sb.String()
}
