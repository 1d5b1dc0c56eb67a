// Package element describes finite elements on reference cells: family,
// degree, value shape, local dimension and the reference basis used for
// tabulation and exact reference-tensor integration.
package element

import (
	"fmt"
)

// Family is a supported element family.
type Family uint8

const (
	Lagrange Family = iota
	DiscontinuousLagrange
)

var familyNames = map[Family]string{
	Lagrange:              "Lagrange",
	DiscontinuousLagrange: "Discontinuous Lagrange",
}

func (f Family) String() string { return familyNames[f] }

// FamilyByName resolves the DSL spelling of a family, including the short
// forms used by the original form language.
func FamilyByName(name string) (Family, bool) {
	switch name {
	case "Lagrange", "CG", "P":
		return Lagrange, true
	case "Discontinuous Lagrange", "DG":
		return DiscontinuousLagrange, true
	}
	return 0, false
}

// ElementError reports an unsupported (family, cell, degree) combination.
type ElementError struct {
	Family Family
	Cell   Cell
	Degree int
	Reason string
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("unsupported element %s degree %d on %s: %s",
		e.Family, e.Degree, e.Cell, e.Reason)
}

// Element is an immutable finite element descriptor. Vector-valued elements
// hold their scalar base blocked by component: local dof c*ScalarDim()+k is
// scalar basis k acting on value component c.
type Element struct {
	family     Family
	cell       Cell
	degree     int
	valueShape []int

	basis *nodalBasis
}

// NewElement builds a scalar element.
func NewElement(family Family, cell Cell, degree int) (*Element, error) {
	return newElement(family, cell, degree, nil)
}

// NewVectorElement builds a vector element with one component per spatial
// dimension.
func NewVectorElement(family Family, cell Cell, degree int) (*Element, error) {
	return newElement(family, cell, degree, []int{cell.Dim()})
}

func newElement(family Family, cell Cell, degree int, shape []int) (*Element, error) {
	if _, ok := familyNames[family]; !ok {
		return nil, &ElementError{family, cell, degree, "unknown family"}
	}
	if cell == Point {
		return nil, &ElementError{family, cell, degree, "no elements on point cells"}
	}
	if degree < 0 {
		return nil, &ElementError{family, cell, degree, "negative degree"}
	}
	if family == Lagrange && degree == 0 {
		return nil, &ElementError{family, cell, degree,
			"continuous Lagrange requires degree >= 1 (use Discontinuous Lagrange)"}
	}
	basis, err := newNodalBasis(cell, degree)
	if err != nil {
		return nil, &ElementError{family, cell, degree, err.Error()}
	}
	return &Element{
		family:     family,
		cell:       cell,
		degree:     degree,
		valueShape: shape,
		basis:      basis,
	}, nil
}

func (e *Element) Family() Family    { return e.family }
func (e *Element) Cell() Cell        { return e.cell }
func (e *Element) Degree() int       { return e.degree }
func (e *Element) ValueShape() []int { return e.valueShape }

// ValueSize is the number of scalar value components.
func (e *Element) ValueSize() int {
	n := 1
	for _, d := range e.valueShape {
		n *= d
	}
	return n
}

// ScalarDim is the dimension of the underlying scalar basis.
func (e *Element) ScalarDim() int { return len(e.basis.nodes) }

// LocalDim is the number of local dofs: ScalarDim times the value size.
func (e *Element) LocalDim() int { return e.ScalarDim() * e.ValueSize() }

func (e *Element) String() string {
	if len(e.valueShape) > 0 {
		return fmt.Sprintf("<vector %s degree %d on %s>", e.family, e.degree, e.cell)
	}
	return fmt.Sprintf("<%s degree %d on %s>", e.family, e.degree, e.cell)
}

// Signature is a stable identity string used for deterministic output and
// for deduplicating tabulated tables in generated code.
func (e *Element) Signature() string {
	v := ""
	if len(e.valueShape) > 0 {
		v = fmt.Sprintf("_v%d", e.ValueSize())
	}
	return fmt.Sprintf("%s_%s_p%d%s", familyShort(e.family), e.cell, e.degree, v)
}

func familyShort(f Family) string {
	if f == DiscontinuousLagrange {
		return "dg"
	}
	return "cg"
}

// Nodes returns the reference coordinates of the scalar basis nodes.
func (e *Element) Nodes() [][]float64 { return e.basis.nodes }

// EvalDeriv evaluates the derivative of scalar basis function k at a
// reference point. derivs lists one spatial direction per differentiation;
// an empty list evaluates the basis value itself.
func (e *Element) EvalDeriv(k int, point []float64, derivs []int) float64 {
	return e.basis.evalDeriv(k, point, derivs)
}

// TabulateRow tabulates one derivative of all scalar basis functions at each
// point: result[q][k] = D^derivs phi_k(points[q]).
func (e *Element) TabulateRow(points [][]float64, derivs []int) [][]float64 {
	out := make([][]float64, len(points))
	for q, p := range points {
		row := make([]float64, e.ScalarDim())
		for k := range row {
			row[k] = e.basis.evalDeriv(k, p, derivs)
		}
		out[q] = row
	}
	return out
}
