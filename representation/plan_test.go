package representation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
)

func scalarElement(t *testing.T, cell element.Cell, degree int) *element.Element {
	t.Helper()
	el, err := element.NewElement(element.Lagrange, cell, degree)
	require.NoError(t, err)
	return el
}

func massForm(t *testing.T, el *element.Element, m algebra.Measure) *algebra.Form {
	t.Helper()
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vu, err := algebra.NewProduct(v, u)
	require.NoError(t, err)
	form, err := algebra.NewForm("a", []algebra.Integral{{Integrand: vu, Measure: m}})
	require.NoError(t, err)
	return form
}

func stiffnessForm(t *testing.T, el *element.Element) *algebra.Form {
	t.Helper()
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	gv, err := algebra.NewGrad(v)
	require.NoError(t, err)
	gu, err := algebra.NewGrad(u)
	require.NoError(t, err)
	s, err := algebra.NewInner(gv, gu)
	require.NoError(t, err)
	form, err := algebra.NewForm("a", []algebra.Integral{{Integrand: s, Measure: algebra.DX()}})
	require.NoError(t, err)
	return form
}

func TestAutoPolicyPicksTensorOnSimplex(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	c, err := Build(massForm(t, el, algebra.DX()), Options{})
	require.NoError(t, err)

	require.Len(t, c.Plans, 1)
	require.Len(t, c.Plans[0].Terms, 1)
	tp := c.Plans[0].Terms[0]
	assert.Equal(t, algebra.ReprTensor, tp.Repr)
	assert.NotEmpty(t, tp.TensorTerms)
	assert.Equal(t, 9, c.BufferLen())
	assert.Equal(t, []int{3, 3}, c.ArgDims())
}

func TestAutoPolicyPicksQuadratureOnQuadrilateral(t *testing.T) {
	el := scalarElement(t, element.Quadrilateral, 1)
	c, err := Build(massForm(t, el, algebra.DX()), Options{})
	require.NoError(t, err)

	tp := c.Plans[0].Terms[0]
	assert.Equal(t, algebra.ReprQuadrature, tp.Repr)
	require.NotNil(t, tp.Rule)
	assert.Empty(t, tp.TensorTerms)
}

func TestExplicitTensorOnQuadrilateralFails(t *testing.T) {
	el := scalarElement(t, element.Quadrilateral, 1)
	m := algebra.DX()
	m.Representation = algebra.ReprTensor
	m.Subdomain = 3
	_, err := Build(massForm(t, el, m), Options{})
	require.Error(t, err)
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
	assert.Equal(t, 3, termErr.Subdomain)
	assert.Equal(t, algebra.CellDomain, termErr.Kind)
}

func TestExplicitTensorOnFacetFails(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	m := algebra.DS()
	m.Representation = algebra.ReprTensor
	_, err := Build(massForm(t, el, m), Options{})
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
	assert.Equal(t, algebra.ExteriorFacetDomain, termErr.Kind)
}

func TestGlobalTensorDefaultFailsLikeExplicit(t *testing.T) {
	el := scalarElement(t, element.Quadrilateral, 1)
	_, err := Build(massForm(t, el, algebra.DX()), Options{Default: algebra.ReprTensor})
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
}

func TestPerMeasureOverrideBeatsDefault(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	m := algebra.DX()
	m.Representation = algebra.ReprQuadrature
	c, err := Build(massForm(t, el, m), Options{Default: algebra.ReprTensor})
	require.NoError(t, err)
	assert.Equal(t, algebra.ReprQuadrature, c.Plans[0].Terms[0].Repr)
}

func TestNonPolynomialTermTakesQuadrature(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	w := algebra.NewCoefficient("w", 0, el)
	vu, err := algebra.NewProduct(v, u)
	require.NoError(t, err)
	q, err := algebra.NewDivision(vu, w)
	require.NoError(t, err)
	form, err := algebra.NewForm("a", []algebra.Integral{{Integrand: q, Measure: algebra.DX()}})
	require.NoError(t, err)

	warned := 0
	c, err := Build(form, Options{Warn: func(string) { warned++ }})
	require.NoError(t, err)
	tp := c.Plans[0].Terms[0]
	assert.Equal(t, algebra.ReprQuadrature, tp.Repr)
	assert.Equal(t, 1, warned) // degree estimation fell back
	assert.Equal(t, 3, tp.Degree)
}

func TestFacetIntegralAlwaysQuadrature(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	c, err := Build(massForm(t, el, algebra.DS()), Options{})
	require.NoError(t, err)
	tp := c.Plans[0].Terms[0]
	assert.Equal(t, algebra.ReprQuadrature, tp.Repr)
	require.Len(t, tp.FacetRules, 3)
}

func TestNonlinearArgumentUseFails(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v1 := algebra.NewArgument(algebra.Test, el)
	vv, err := algebra.NewProduct(v1, v1)
	require.NoError(t, err)
	form, err := algebra.NewForm("M", []algebra.Integral{{Integrand: vv, Measure: algebra.DX()}})
	require.NoError(t, err)
	_, err = Build(form, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linear")
}

func TestNonlinearTermBehindDivisionFails(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	w := algebra.NewCoefficient("w", 0, el)
	vv, err := algebra.NewProduct(v, v)
	require.NoError(t, err)
	q, err := algebra.NewDivision(vv, w)
	require.NoError(t, err)
	form, err := algebra.NewForm("M", []algebra.Integral{{Integrand: q, Measure: algebra.DX()}})
	require.NoError(t, err)

	// The divisor makes the integrand non-polynomial, which must not mask
	// the quadratic test-function use.
	_, err = Build(form, Options{})
	require.Error(t, err)
	var terr *TermError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), "linear")
}

func TestArgumentInDivisorFails(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	w := algebra.NewCoefficient("w", 0, el)
	q, err := algebra.NewDivision(w, v)
	require.NoError(t, err)
	form, err := algebra.NewForm("M", []algebra.Integral{{Integrand: q, Measure: algebra.DX()}})
	require.NoError(t, err)

	_, err = Build(form, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "divisor")
}

func TestNormalInCellIntegralFails(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	n := algebra.NewFacetNormal(2)
	nn, err := algebra.NewInner(n, n)
	require.NoError(t, err)
	vnn, err := algebra.NewProduct(v, nn)
	require.NoError(t, err)
	form, err := algebra.NewForm("L", []algebra.Integral{{Integrand: vnn, Measure: algebra.DX()}})
	require.NoError(t, err)
	_, err = Build(form, Options{})
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
	assert.Contains(t, termErr.Reason, "normal")
}

func TestInteriorFacetRequiresRestrictions(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	_, err := Build(massForm(t, el, algebra.DSInterior()), Options{})
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
	assert.Contains(t, termErr.Reason, "restrict")
}

func TestRestrictedInteriorFacetPlan(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vp := algebra.NewRestrict(v, algebra.PositiveSide)
	um := algebra.NewRestrict(u, algebra.NegativeSide)
	prod, err := algebra.NewProduct(vp, um)
	require.NoError(t, err)
	form, err := algebra.NewForm("a", []algebra.Integral{{Integrand: prod, Measure: algebra.DSInterior()}})
	require.NoError(t, err)

	c, err := Build(form, Options{})
	require.NoError(t, err)
	tp := c.Plans[0].Terms[0]
	assert.Equal(t, algebra.ReprQuadrature, tp.Repr)
	require.Len(t, tp.FacetRules, 3)
}

func TestRestrictionOutsideInteriorFacetFails(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vp := algebra.NewRestrict(v, algebra.PositiveSide)
	prod, err := algebra.NewProduct(vp, u)
	require.NoError(t, err)
	form, err := algebra.NewForm("a", []algebra.Integral{{Integrand: prod, Measure: algebra.DX()}})
	require.NoError(t, err)
	_, err = Build(form, Options{})
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
}

func TestHexahedronFacetIntegralRejected(t *testing.T) {
	el := scalarElement(t, element.Hexahedron, 1)
	_, err := Build(massForm(t, el, algebra.DS()), Options{})
	var termErr *TermError
	require.ErrorAs(t, err, &termErr)
	assert.Contains(t, termErr.Reason, "hexahedra")
}

func TestMixedCellsRejected(t *testing.T) {
	tri := scalarElement(t, element.Triangle, 1)
	quad := scalarElement(t, element.Quadrilateral, 1)
	v := algebra.NewArgument(algebra.Test, tri)
	u := algebra.NewArgument(algebra.Trial, quad)
	vu, err := algebra.NewProduct(v, u)
	require.NoError(t, err)
	form, err := algebra.NewForm("a", []algebra.Integral{{Integrand: vu, Measure: algebra.DX()}})
	require.NoError(t, err)
	_, err = Build(form, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixes cells")
}

func TestPlansGroupBySubdomain(t *testing.T) {
	el := scalarElement(t, element.Triangle, 1)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)
	vu, err := algebra.NewProduct(v, u)
	require.NoError(t, err)

	m2 := algebra.DX()
	m2.Subdomain = 2
	m0 := algebra.DX()
	form, err := algebra.NewForm("a", []algebra.Integral{
		{Integrand: vu, Measure: m2},
		{Integrand: vu, Measure: m0},
		{Integrand: vu, Measure: m2},
	})
	require.NoError(t, err)

	c, err := Build(form, Options{})
	require.NoError(t, err)
	require.Len(t, c.Plans, 2)
	assert.Equal(t, 0, c.Plans[0].Subdomain)
	assert.Equal(t, 2, c.Plans[1].Subdomain)
	assert.Len(t, c.Plans[1].Terms, 2)
}
