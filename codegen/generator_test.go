package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
	"github.com/formcomp/formc/representation"
)

func compileForm(t *testing.T, name string, integrals []algebra.Integral) *representation.Compiled {
	t.Helper()
	form, err := algebra.NewForm(name, integrals)
	require.NoError(t, err)
	c, err := representation.Build(form, representation.Options{})
	require.NoError(t, err)
	return c
}

func poissonCompiled(t *testing.T) *representation.Compiled {
	t.Helper()
	el, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	gv, err := algebra.NewGrad(v)
	require.NoError(t, err)
	gu, err := algebra.NewGrad(u)
	require.NoError(t, err)
	s, err := algebra.NewInner(gv, gu)
	require.NoError(t, err)
	return compileForm(t, "a", []algebra.Integral{{Integrand: s, Measure: algebra.DX()}})
}

func TestGenerateModuleStructure(t *testing.T) {
	c := poissonCompiled(t)
	src, metas, err := GenerateModule("poisson", []*representation.Compiled{c})
	require.NoError(t, err)
	require.Len(t, metas, 1)

	assert.Contains(t, src, "#ifndef FORMC_POISSON_H")
	assert.Contains(t, src, "#include <math.h>")
	assert.Contains(t, src, "typedef struct formc_form_meta")
	assert.Contains(t, src, "static const formc_form_meta poisson_a_meta")
	assert.Contains(t, src, "static int poisson_a_tabulate_cell(double* A, const double* const* w, const double* coords, int subdomain)")
	assert.Contains(t, src, "switch (subdomain)")
	assert.Contains(t, src, "return 1;")
	assert.Contains(t, src, "#endif /* FORMC_POISSON_H */")
	assert.NotContains(t, src, "tabulate_exterior_facet")
	assert.NotContains(t, src, "tabulate_interior_facet")
}

func TestGenerateModuleDeterminism(t *testing.T) {
	a, _, err := GenerateModule("poisson", []*representation.Compiled{poissonCompiled(t)})
	require.NoError(t, err)
	b, _, err := GenerateModule("poisson", []*representation.Compiled{poissonCompiled(t)})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateRejectsDuplicateFormNames(t *testing.T) {
	c := poissonCompiled(t)
	_, _, err := GenerateModule("poisson", []*representation.Compiled{c, c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestFormMetadata(t *testing.T) {
	m := FormMetadata(poissonCompiled(t))
	assert.Equal(t, "a", m.Name)
	assert.Equal(t, 2, m.Rank)
	assert.Equal(t, "triangle", m.Cell)
	assert.Equal(t, 2, m.GeometricDimension)
	assert.Equal(t, []int{3, 3}, m.ArgDims)
	assert.Equal(t, 9, m.TensorSize)
	assert.Equal(t, 0, m.NumCoefficients)
	assert.True(t, m.HasCellIntegral)
	assert.False(t, m.HasExteriorFacet)
}

func TestExteriorFacetFunction(t *testing.T) {
	el, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vu, err := algebra.NewProduct(v, u)
	require.NoError(t, err)
	c := compileForm(t, "a", []algebra.Integral{{Integrand: vu, Measure: algebra.DS()}})

	src, metas, err := GenerateModule("robin", []*representation.Compiled{c})
	require.NoError(t, err)
	assert.True(t, metas[0].HasExteriorFacet)
	assert.Contains(t, src, "static int robin_a_tabulate_exterior_facet(double* A, const double* const* w, const double* coords, int facet, int subdomain)")
	assert.Contains(t, src, "switch (facet)")
	// One dispatch case per triangle facet.
	assert.Contains(t, src, "case 2: {")
	assert.NotContains(t, src, "tabulate_cell")
}

func TestInteriorFacetFunction(t *testing.T) {
	el, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vp := algebra.NewRestrict(v, algebra.PositiveSide)
	um := algebra.NewRestrict(u, algebra.NegativeSide)
	prod, err := algebra.NewProduct(vp, um)
	require.NoError(t, err)
	c := compileForm(t, "a", []algebra.Integral{{Integrand: prod, Measure: algebra.DSInterior()}})

	src, _, err := GenerateModule("dg", []*representation.Compiled{c})
	require.NoError(t, err)
	assert.Contains(t, src, "tabulate_interior_facet")
	assert.Contains(t, src, "switch (facet0)")
	assert.Contains(t, src, "switch (facet1)")
	// Doubled macro-element tensor: (2*3)*(2*3) entries.
	assert.Contains(t, src, "for (int i = 0; i < 36; i++) A[i] = 0.0;")
}

func TestSubdomainDispatch(t *testing.T) {
	el, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vu, err := algebra.NewProduct(v, u)
	require.NoError(t, err)

	m5 := algebra.DX()
	m5.Subdomain = 5
	c := compileForm(t, "a", []algebra.Integral{
		{Integrand: vu, Measure: algebra.DX()},
		{Integrand: vu, Measure: m5},
	})
	src, _, err := GenerateModule("multi", []*representation.Compiled{c})
	require.NoError(t, err)
	assert.Contains(t, src, "case 0: {")
	assert.Contains(t, src, "case 5: {")
	assert.Contains(t, src, "default:")
}

func TestTrialOnlyQuadratureLoop(t *testing.T) {
	el, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	u := algebra.NewArgument(algebra.Trial, el)
	form, err := algebra.NewForm("L", []algebra.Integral{{Integrand: u, Measure: algebra.DX()}})
	require.NoError(t, err)
	c, err := representation.Build(form, representation.Options{Default: algebra.ReprQuadrature})
	require.NoError(t, err)

	src, metas, err := GenerateModule("flux", []*representation.Compiled{c})
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 3, metas[0].TensorSize)

	// The trial index must get its own loop; every buffer entry is written.
	assert.Contains(t, src, "for (int k = 0; k < 3; k++) {")
	assert.Contains(t, src, "FE_u_c0[q][k]")
	assert.Contains(t, src, "A[k] +=")
	assert.NotContains(t, src, "A[0] += (FE_u_c0")
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.000000000000000e+00", formatFloat(0))
	neg := 0.0
	neg = -neg
	assert.Equal(t, "0.000000000000000e+00", formatFloat(neg))
	assert.Equal(t, "5.000000000000000e-01", formatFloat(0.5))
	assert.Equal(t, "-2.500000000000000e-01", formatFloat(-0.25))
}

func TestFormatStaticArray(t *testing.T) {
	out := formatStaticArray("A0", []float64{1, 2, 3, 4, 5})
	assert.Contains(t, out, "static const double A0[5]")
	assert.Contains(t, out, "1.000000000000000e+00")
	assert.Contains(t, out, "5.000000000000000e+00")
	assert.True(t, strings.HasSuffix(out, "};\n"))
}

func TestSanitizeIdent(t *testing.T) {
	assert.Equal(t, "poisson", sanitizeIdent("poisson"))
	assert.Equal(t, "my_form", sanitizeIdent("my-form"))
	assert.Equal(t, "_2d_mesh", sanitizeIdent("2d-mesh"))
	assert.Equal(t, "form", sanitizeIdent(""))
}

func TestTableKeyNames(t *testing.T) {
	k := tableKey{fn: fnKey{representation.FuncTest, 0}}
	assert.Equal(t, "FE_v_c0", k.name(""))
	k.derivs = "01"
	assert.Equal(t, "FE_v_c0_D01", k.name(""))
	k = tableKey{fn: fnKey{representation.FuncCoefficient, 2}, comp: 1, side: algebra.NegativeSide}
	assert.Equal(t, "FE_w2_c1_m", k.name(""))
	assert.Equal(t, "c_w2_c1_m", coefLocal(k))
}

func TestRefTuples(t *testing.T) {
	assert.Equal(t, []string{""}, refTuples(2, 0))
	assert.Equal(t, []string{"0", "1"}, refTuples(2, 1))
	assert.Equal(t, []string{"00", "01", "11"}, refTuples(2, 2))
	assert.Equal(t, []string{"0", "1", "2"}, refTuples(3, 1))
}

func TestTabulateVectorPadding(t *testing.T) {
	el, err := element.NewVectorElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	key := tableKey{fn: fnKey{representation.FuncTest, 0}, comp: 1}
	rows := tabulate(el, key, [][]float64{{0.25, 0.25}})
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 6)
	// Component 1 occupies the second dof block; the first block is zero.
	for r := 0; r < 3; r++ {
		assert.Zero(t, rows[0][r])
	}
	sum := 0.0
	for r := 3; r < 6; r++ {
		sum += rows[0][r]
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestTabulateInteriorFacetSides(t *testing.T) {
	el, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	pt := [][]float64{{0.5, 0.5}}

	plus := tabulate(el, tableKey{fn: fnKey{representation.FuncTest, 0}, side: algebra.PositiveSide}, pt)
	require.Len(t, plus[0], 6)
	for r := 3; r < 6; r++ {
		assert.Zero(t, plus[0][r])
	}

	minus := tabulate(el, tableKey{fn: fnKey{representation.FuncTest, 0}, side: algebra.NegativeSide}, pt)
	for r := 0; r < 3; r++ {
		assert.Zero(t, minus[0][r])
	}
	assert.Equal(t, plus[0][:3], minus[0][3:])
}
