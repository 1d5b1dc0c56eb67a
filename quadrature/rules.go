package quadrature

import (
	"fmt"
	"sync"

	"github.com/formcomp/formc/element"
)

// Rule is a fixed set of points and weights on a reference cell. For a rule
// obtained from CellRule(cell, d), every polynomial of total degree <= d is
// integrated exactly; the weights sum to the reference cell measure.
type Rule struct {
	Points  [][]float64
	Weights []float64

	// BasePoints holds, for facet rules only, the points in the facet
	// reference cell's own coordinates before embedding.
	BasePoints [][]float64
}

// Npoints returns the point count.
func (r *Rule) Npoints() int { return len(r.Weights) }

type ruleKey struct {
	cell   element.Cell
	degree int
}

var (
	ruleMu    sync.RWMutex
	ruleCache = map[ruleKey]*Rule{}
)

// CellRule returns the deterministic rule for (cell, degree). Rules are pure
// functions of their key and are memoized; the same pointer is returned for
// repeated calls, which keeps generated output reproducible.
func CellRule(cell element.Cell, degree int) (*Rule, error) {
	if degree < 0 {
		return nil, fmt.Errorf("quadrature degree must be non-negative, got %d", degree)
	}
	key := ruleKey{cell, degree}
	ruleMu.RLock()
	r, ok := ruleCache[key]
	ruleMu.RUnlock()
	if ok {
		return r, nil
	}
	r, err := buildRule(cell, degree)
	if err != nil {
		return nil, err
	}
	ruleMu.Lock()
	if prev, ok := ruleCache[key]; ok {
		r = prev
	} else {
		ruleCache[key] = r
	}
	ruleMu.Unlock()
	return r, nil
}

func buildRule(cell element.Cell, degree int) (*Rule, error) {
	// n Gauss points per direction are exact through degree 2n-1.
	n := degree/2 + 1
	switch cell {
	case element.Point:
		return &Rule{Points: [][]float64{{}}, Weights: []float64{1}}, nil

	case element.Interval:
		x, w := gaussUnit(0, n)
		r := &Rule{}
		for i := range x {
			r.Points = append(r.Points, []float64{x[i]})
			r.Weights = append(r.Weights, w[i])
		}
		return r, nil

	case element.Triangle:
		// Duffy transform: (x,y) = (u(1-v), v) maps the unit square to the
		// unit triangle with Jacobian (1-v); the v-direction uses a
		// Gauss-Jacobi rule absorbing that factor.
		xu, wu := gaussUnit(0, n)
		xv, wv := gaussUnit(1, n)
		r := &Rule{}
		for j := range xv {
			for i := range xu {
				r.Points = append(r.Points, []float64{xu[i] * (1 - xv[j]), xv[j]})
				r.Weights = append(r.Weights, wu[i]*wv[j])
			}
		}
		return r, nil

	case element.Tetrahedron:
		// Collapsed coordinates: (x,y,z) = (u(1-v)(1-w), v(1-w), w) with
		// Jacobian (1-v)(1-w)^2.
		xu, wu := gaussUnit(0, n)
		xv, wv := gaussUnit(1, n)
		xw, ww := gaussUnit(2, n)
		r := &Rule{}
		for k := range xw {
			for j := range xv {
				for i := range xu {
					r.Points = append(r.Points, []float64{
						xu[i] * (1 - xv[j]) * (1 - xw[k]),
						xv[j] * (1 - xw[k]),
						xw[k],
					})
					r.Weights = append(r.Weights, wu[i]*wv[j]*ww[k])
				}
			}
		}
		return r, nil

	case element.Quadrilateral:
		x, w := gaussUnit(0, n)
		r := &Rule{}
		for j := range x {
			for i := range x {
				r.Points = append(r.Points, []float64{x[i], x[j]})
				r.Weights = append(r.Weights, w[i]*w[j])
			}
		}
		return r, nil

	case element.Hexahedron:
		x, w := gaussUnit(0, n)
		r := &Rule{}
		for k := range x {
			for j := range x {
				for i := range x {
					r.Points = append(r.Points, []float64{x[i], x[j], x[k]})
					r.Weights = append(r.Weights, w[i]*w[j]*w[k])
				}
			}
		}
		return r, nil
	}
	return nil, fmt.Errorf("no quadrature rule for cell %s", cell)
}

// FacetRule returns the rule for one facet of a cell: points are embedded in
// the cell's reference coordinates so cell bases can be tabulated on them,
// weights are those of the facet reference cell. The physical facet scaling
// is applied by generated code.
func FacetRule(cell element.Cell, facet, degree int) (*Rule, error) {
	if facet < 0 || facet >= cell.NumFacets() {
		return nil, fmt.Errorf("cell %s has no facet %d", cell, facet)
	}
	base, err := CellRule(cell.FacetCell(), degree)
	if err != nil {
		return nil, err
	}
	verts := cell.Vertices()
	fverts := cell.FacetVertices()[facet]
	dim := cell.Dim()

	embed := func(xi []float64) []float64 {
		p := make([]float64, dim)
		switch len(fverts) {
		case 1: // vertex of an interval
			copy(p, verts[fverts[0]])
		case 2: // edge
			v0, v1 := verts[fverts[0]], verts[fverts[1]]
			for d := 0; d < dim; d++ {
				p[d] = v0[d] + xi[0]*(v1[d]-v0[d])
			}
		case 3: // triangular face
			v0, v1, v2 := verts[fverts[0]], verts[fverts[1]], verts[fverts[2]]
			for d := 0; d < dim; d++ {
				p[d] = v0[d] + xi[0]*(v1[d]-v0[d]) + xi[1]*(v2[d]-v0[d])
			}
		case 4: // quadrilateral face, vertices in lexicographic order
			v := [][]float64{verts[fverts[0]], verts[fverts[1]], verts[fverts[2]], verts[fverts[3]]}
			a, b := xi[0], xi[1]
			n := []float64{(1 - a) * (1 - b), a * (1 - b), (1 - a) * b, a * b}
			for d := 0; d < dim; d++ {
				for i := 0; i < 4; i++ {
					p[d] += n[i] * v[i][d]
				}
			}
		}
		return p
	}

	r := &Rule{
		Weights:    append([]float64(nil), base.Weights...),
		BasePoints: base.Points,
	}
	for _, xi := range base.Points {
		r.Points = append(r.Points, embed(xi))
	}
	return r, nil
}
