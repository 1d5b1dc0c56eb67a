package element

// Cell identifies a reference cell. Reference cells follow the unit-simplex /
// unit-cube convention: vertex coordinates are 0 or 1, the unit triangle has
// vertices (0,0), (1,0), (0,1).
type Cell uint8

const (
	Point Cell = iota // facet of an interval
	Interval
	Triangle
	Tetrahedron
	Quadrilateral
	Hexahedron
)

var cellNames = map[Cell]string{
	Point:         "point",
	Interval:      "interval",
	Triangle:      "triangle",
	Tetrahedron:   "tetrahedron",
	Quadrilateral: "quadrilateral",
	Hexahedron:    "hexahedron",
}

func (c Cell) String() string { return cellNames[c] }

// CellByName resolves the DSL spelling of a cell.
func CellByName(name string) (Cell, bool) {
	for c, n := range cellNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Dim is the topological (and here also geometric) dimension.
func (c Cell) Dim() int {
	switch c {
	case Point:
		return 0
	case Interval:
		return 1
	case Triangle, Quadrilateral:
		return 2
	default:
		return 3
	}
}

// Simplex reports whether the cell maps affinely from its reference cell.
func (c Cell) Simplex() bool {
	switch c {
	case Point, Interval, Triangle, Tetrahedron:
		return true
	}
	return false
}

// Vertices returns the reference coordinates of the cell vertices. Cube
// cells are ordered lexicographically (first coordinate fastest).
func (c Cell) Vertices() [][]float64 {
	switch c {
	case Point:
		return [][]float64{{}}
	case Interval:
		return [][]float64{{0}, {1}}
	case Triangle:
		return [][]float64{{0, 0}, {1, 0}, {0, 1}}
	case Tetrahedron:
		return [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	case Quadrilateral:
		return [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	case Hexahedron:
		return [][]float64{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
		}
	}
	return nil
}

// NumVertices returns the vertex count.
func (c Cell) NumVertices() int { return len(c.Vertices()) }

// Volume is the measure of the reference cell.
func (c Cell) Volume() float64 {
	switch c {
	case Interval, Quadrilateral, Hexahedron:
		return 1
	case Triangle:
		return 0.5
	case Tetrahedron:
		return 1.0 / 6.0
	}
	return 1
}

// FacetCell is the reference cell of this cell's facets.
func (c Cell) FacetCell() Cell {
	switch c {
	case Interval:
		return Point
	case Triangle:
		return Interval
	case Tetrahedron:
		return Triangle
	case Quadrilateral:
		return Interval
	case Hexahedron:
		return Quadrilateral
	}
	return Point
}

// NumFacets returns the facet count.
func (c Cell) NumFacets() int {
	switch c {
	case Interval:
		return 2
	case Triangle:
		return 3
	case Tetrahedron, Quadrilateral:
		return 4
	case Hexahedron:
		return 6
	}
	return 0
}

// FacetVertices lists, per facet, the cell-vertex indices spanning it. For
// simplices facet i is the facet opposite vertex i.
func (c Cell) FacetVertices() [][]int {
	switch c {
	case Interval:
		return [][]int{{0}, {1}}
	case Triangle:
		return [][]int{{1, 2}, {0, 2}, {0, 1}}
	case Tetrahedron:
		return [][]int{{1, 2, 3}, {0, 2, 3}, {0, 1, 3}, {0, 1, 2}}
	case Quadrilateral:
		return [][]int{{0, 2}, {1, 3}, {0, 1}, {2, 3}}
	case Hexahedron:
		return [][]int{
			{0, 2, 4, 6}, {1, 3, 5, 7},
			{0, 1, 4, 5}, {2, 3, 6, 7},
			{0, 1, 2, 3}, {4, 5, 6, 7},
		}
	}
	return nil
}
