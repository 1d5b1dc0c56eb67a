package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// nodalBasis is a scalar Lagrange basis represented in monomial form:
// phi_k(x) = sum_j coeff(j,k) * x^exps[j]. The coefficients come from
// inverting the interpolation Vandermonde matrix at the lattice nodes.
type nodalBasis struct {
	cell   Cell
	degree int
	exps   [][]int
	nodes  [][]float64
	coeff  *mat.Dense // [len(exps) x len(nodes)]
}

func newNodalBasis(cell Cell, degree int) (*nodalBasis, error) {
	exps := monomialExponents(cell, degree)
	nodes := latticeNodes(cell, degree)
	if len(exps) != len(nodes) {
		return nil, fmt.Errorf("basis construction mismatch: %d modes, %d nodes",
			len(exps), len(nodes))
	}
	n := len(nodes)

	V := mat.NewDense(n, n, nil)
	for i, p := range nodes {
		for j, a := range exps {
			V.Set(i, j, monomialValue(p, a, nil))
		}
	}
	coeff := mat.NewDense(n, n, nil)
	if err := coeff.Inverse(V); err != nil {
		return nil, fmt.Errorf("singular interpolation matrix: %v", err)
	}
	return &nodalBasis{cell: cell, degree: degree, exps: exps, nodes: nodes, coeff: coeff}, nil
}

func (b *nodalBasis) evalDeriv(k int, point []float64, derivs []int) float64 {
	v := 0.0
	for j, a := range b.exps {
		c := b.coeff.At(j, k)
		if c != 0 {
			v += c * monomialValue(point, a, derivs)
		}
	}
	return v
}

// monomialValue evaluates D^derivs x^a at a point, where derivs lists one
// spatial direction per differentiation.
func monomialValue(point []float64, exps []int, derivs []int) float64 {
	a := make([]int, len(exps))
	copy(a, exps)
	factor := 1.0
	for _, d := range derivs {
		if a[d] == 0 {
			return 0
		}
		factor *= float64(a[d])
		a[d]--
	}
	v := factor
	for d, e := range a {
		for n := 0; n < e; n++ {
			v *= point[d]
		}
	}
	return v
}

// monomialExponents lists the monomial modes of the polynomial space:
// total degree <= p on simplices, per-coordinate degree <= p on cube cells.
// Ordering is lexicographic with the first coordinate varying fastest, which
// lines the p=1 modes up with the cell vertex ordering.
func monomialExponents(cell Cell, p int) [][]int {
	dim := cell.Dim()
	var out [][]int
	if cell.Simplex() {
		switch dim {
		case 1:
			for i := 0; i <= p; i++ {
				out = append(out, []int{i})
			}
		case 2:
			for j := 0; j <= p; j++ {
				for i := 0; i+j <= p; i++ {
					out = append(out, []int{i, j})
				}
			}
		case 3:
			for k := 0; k <= p; k++ {
				for j := 0; j+k <= p; j++ {
					for i := 0; i+j+k <= p; i++ {
						out = append(out, []int{i, j, k})
					}
				}
			}
		}
		return out
	}
	switch dim {
	case 2:
		for j := 0; j <= p; j++ {
			for i := 0; i <= p; i++ {
				out = append(out, []int{i, j})
			}
		}
	case 3:
		for k := 0; k <= p; k++ {
			for j := 0; j <= p; j++ {
				for i := 0; i <= p; i++ {
					out = append(out, []int{i, j, k})
				}
			}
		}
	}
	return out
}

// latticeNodes places equispaced interpolation nodes matching the modes of
// monomialExponents. Degree 0 gets a single node at the centroid.
func latticeNodes(cell Cell, p int) [][]float64 {
	dim := cell.Dim()
	if p == 0 {
		c := make([]float64, dim)
		switch cell {
		case Interval:
			c[0] = 0.5
		case Triangle:
			c[0], c[1] = 1.0/3.0, 1.0/3.0
		case Tetrahedron:
			c[0], c[1], c[2] = 0.25, 0.25, 0.25
		case Quadrilateral:
			c[0], c[1] = 0.5, 0.5
		case Hexahedron:
			c[0], c[1], c[2] = 0.5, 0.5, 0.5
		}
		return [][]float64{c}
	}
	h := 1.0 / float64(p)
	var out [][]float64
	for _, e := range monomialExponents(cell, p) {
		node := make([]float64, dim)
		for d, i := range e {
			node[d] = float64(i) * h
		}
		out = append(out, node)
	}
	return out
}
