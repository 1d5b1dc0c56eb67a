package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/compiler"
)

func TestParseRepresentationFlag(t *testing.T) {
	for s, want := range map[string]algebra.ReprChoice{
		"":           algebra.ReprAuto,
		"auto":       algebra.ReprAuto,
		"tensor":     algebra.ReprTensor,
		"quadrature": algebra.ReprQuadrature,
	} {
		got, err := parseRepresentation(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := parseRepresentation("fast")
	require.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.h")

	require.NoError(t, writeFileAtomic(path, []byte("first")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	require.NoError(t, writeFileAtomic(path, []byte("second")))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCompileFileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := `
element = FiniteElement("Lagrange", "triangle", 1)
v = TestFunction(element)
u = TrialFunction(element)
a = inner(grad(v), grad(u))*dx + v*u*dx
`
	in := filepath.Join(dir, "helmholtz.form")
	require.NoError(t, os.WriteFile(in, []byte(src), 0o644))

	err := compileFile(in, dir, compiler.Options{}, zap.NewNop())
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "helmholtz.h"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "helmholtz_a_tabulate_cell")
	assert.Contains(t, string(out), "FORMC_HELMHOLTZ_H")
}

func TestCompileFileReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.form")
	require.NoError(t, os.WriteFile(in, []byte("a = undefined*dx"), 0o644))

	err := compileFile(in, dir, compiler.Options{}, zap.NewNop())
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "bad.h"))
	assert.True(t, os.IsNotExist(statErr), "no output on error")
}
