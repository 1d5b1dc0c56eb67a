package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/dsl"
)

const poissonSource = `
element = FiniteElement("Lagrange", "triangle", 1)
v = TestFunction(element)
u = TrialFunction(element)
f = Function(element)
a = inner(grad(v), grad(u))*dx
L = v*f*dx
`

func parseForms(t *testing.T, src string) []*algebra.Form {
	t.Helper()
	f, err := dsl.Parse("test.form", src)
	require.NoError(t, err)
	return f.Forms
}

func TestCompilePoisson(t *testing.T) {
	res, err := Compile(Job{Stem: "poisson", Forms: parseForms(t, poissonSource)}, Options{}, nil)
	require.NoError(t, err)

	assert.Contains(t, res.Source, "poisson_a_tabulate_cell")
	assert.Contains(t, res.Source, "poisson_L_tabulate_cell")
	require.Len(t, res.Metadata, 2)

	// Forms are emitted in name order: L before a.
	assert.Equal(t, "L", res.Metadata[0].Name)
	assert.Equal(t, 1, res.Metadata[0].Rank)
	assert.Equal(t, 1, res.Metadata[0].NumCoefficients)
	assert.Equal(t, "a", res.Metadata[1].Name)
	assert.Equal(t, 2, res.Metadata[1].Rank)
	assert.Equal(t, 9, res.Metadata[1].TensorSize)
}

func TestCompileDeterminism(t *testing.T) {
	job := Job{Stem: "poisson", Forms: parseForms(t, poissonSource)}
	a, err := Compile(job, Options{}, nil)
	require.NoError(t, err)
	b, err := Compile(Job{Stem: "poisson", Forms: parseForms(t, poissonSource)}, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Source, b.Source)
}

func TestCompileUnknownLanguage(t *testing.T) {
	_, err := Compile(Job{Stem: "x", Forms: parseForms(t, poissonSource)},
		Options{Language: "fortran"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fortran")
}

func TestCompileEmptyJob(t *testing.T) {
	_, err := Compile(Job{Stem: "x"}, Options{}, nil)
	require.Error(t, err)
}

func TestCompileQuadratureDefault(t *testing.T) {
	res, err := Compile(Job{Stem: "poisson", Forms: parseForms(t, poissonSource)},
		Options{Representation: algebra.ReprQuadrature}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Source, "quadrature representation")
	assert.NotContains(t, res.Source, "tensor representation")
}

func TestCompileWarnsOnDegreeFallback(t *testing.T) {
	src := `
element = FiniteElement("Lagrange", "triangle", 1)
v = TestFunction(element)
u = TrialFunction(element)
w = Function(element)
a = v*u/w*dx
`
	core, logs := observer.New(zap.WarnLevel)
	_, err := Compile(Job{Stem: "t", Forms: parseForms(t, src)}, Options{}, zap.New(core))
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "degree estimation failed")
}

func TestCompileTermErrorCarriesFormName(t *testing.T) {
	src := `
element = FiniteElement("Lagrange", "quadrilateral", 1)
v = TestFunction(element)
u = TrialFunction(element)
a = v*u*dx(representation="tensor")
`
	_, err := Compile(Job{Stem: "t", Forms: parseForms(t, src)}, Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `form "a"`)
	assert.Contains(t, err.Error(), "tensor representation requested")
}
