package codegen

import (
	"fmt"
	"strings"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/representation"
)

// Metadata describes one compiled form for the host assembler: enough to
// size buffers and dispatch without parsing the generated C.
type Metadata struct {
	Name                 string
	Rank                 int
	Cell                 string
	GeometricDimension   int
	TopologicalDimension int
	ArgDims              []int
	NumCoefficients      int
	CoefficientDims      []int
	TensorSize           int
	HasCellIntegral      bool
	HasExteriorFacet     bool
	HasInteriorFacet     bool
}

// FormMetadata extracts the metadata block of a compiled form.
func FormMetadata(c *representation.Compiled) Metadata {
	m := Metadata{
		Name:                 c.Form.Name,
		Rank:                 c.Rank(),
		Cell:                 strings.ToLower(c.Cell.String()),
		GeometricDimension:   c.Cell.Dim(),
		TopologicalDimension: c.Cell.Dim(),
		ArgDims:              c.ArgDims(),
		NumCoefficients:      len(c.Coefficients),
		TensorSize:           c.BufferLen(),
		HasCellIntegral:      len(c.PlansFor(algebra.CellDomain)) > 0,
		HasExteriorFacet:     len(c.PlansFor(algebra.ExteriorFacetDomain)) > 0,
		HasInteriorFacet:     len(c.PlansFor(algebra.InteriorFacetDomain)) > 0,
	}
	for _, co := range c.Coefficients {
		m.CoefficientDims = append(m.CoefficientDims, co.Element.LocalDim())
	}
	return m
}

const metaTypedef = `#ifndef FORMC_FORM_META_DEFINED
#define FORMC_FORM_META_DEFINED
typedef struct formc_form_meta {
    const char* name;
    int rank;
    const char* cell;
    int geometric_dimension;
    int topological_dimension;
    int arg_dims[2];
    int num_coefficients;
    int tensor_size;
    int has_cell_integral;
    int has_exterior_facet_integral;
    int has_interior_facet_integral;
} formc_form_meta;
#endif
`

// emitMetaConstant renders the static metadata initializer of one form.
func emitMetaConstant(sym string, m Metadata) string {
	dims := [2]int{0, 0}
	copy(dims[:], m.ArgDims)
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return fmt.Sprintf(
		"static const formc_form_meta %s_meta = {\n"+
			"    \"%s\", %d, \"%s\", %d, %d, {%d, %d}, %d, %d, %d, %d, %d\n"+
			"};\n",
		sym, m.Name, m.Rank, m.Cell,
		m.GeometricDimension, m.TopologicalDimension,
		dims[0], dims[1], m.NumCoefficients, m.TensorSize,
		b2i(m.HasCellIntegral), b2i(m.HasExteriorFacet), b2i(m.HasInteriorFacet))
}
