// Package codegen emits the per-cell tensor procedures and the metadata
// block of a compiled form as C text.
package codegen

import (
	"fmt"
	"strings"
)

// formatFloat renders a value with full double precision. All embedded
// constants go through here so repeated compilations are byte-identical.
func formatFloat(v float64) string {
	if v == 0 {
		// Normalize -0 so term merging cannot flip the rendering.
		return "0.000000000000000e+00"
	}
	return fmt.Sprintf("%.15e", v)
}

// formatStaticArray renders a flat slice as a one-dimensional static const
// double array declaration.
func formatStaticArray(name string, vals []float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("static const double %s[%d] = {", name, len(vals)))
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		if i%4 == 0 {
			sb.WriteString("\n    ")
		}
		sb.WriteString(formatFloat(v))
	}
	sb.WriteString("};\n")
	return sb.String()
}

// formatStaticMatrix renders rows as a two-dimensional static const double
// array declaration, one row per line.
func formatStaticMatrix(name string, rows [][]float64) string {
	var sb strings.Builder
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	sb.WriteString(fmt.Sprintf("static const double %s[%d][%d] = {\n", name, len(rows), cols))
	for i, row := range rows {
		sb.WriteString("    {")
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(formatFloat(v))
		}
		sb.WriteString("}")
		if i < len(rows)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("};\n")
	return sb.String()
}

// indent prefixes every non-empty line of body.
func indent(body, prefix string) string {
	lines := strings.Split(body, "\n")
	var sb strings.Builder
	for i, line := range lines {
		if line != "" {
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
