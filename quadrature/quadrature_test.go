package quadrature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
)

func TestWeightsSumToCellMeasure(t *testing.T) {
	cells := []element.Cell{
		element.Interval, element.Triangle, element.Tetrahedron,
		element.Quadrilateral, element.Hexahedron,
	}
	for _, cell := range cells {
		for degree := 0; degree <= 6; degree++ {
			r, err := CellRule(cell, degree)
			require.NoError(t, err)
			sum := 0.0
			for _, w := range r.Weights {
				sum += w
			}
			assert.InDelta(t, cell.Volume(), sum, 1e-12, "%s degree %d", cell, degree)
		}
	}
}

func TestRuleMemoization(t *testing.T) {
	a, err := CellRule(element.Triangle, 3)
	require.NoError(t, err)
	b, err := CellRule(element.Triangle, 3)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestNegativeDegreeRejected(t *testing.T) {
	_, err := CellRule(element.Triangle, -1)
	require.Error(t, err)
}

func integrate(r *Rule, f func(p []float64) float64) float64 {
	sum := 0.0
	for q, p := range r.Points {
		sum += r.Weights[q] * f(p)
	}
	return sum
}

func factorial(n int) float64 {
	out := 1.0
	for i := 2; i <= n; i++ {
		out *= float64(i)
	}
	return out
}

func TestIntervalExactness(t *testing.T) {
	for degree := 0; degree <= 9; degree++ {
		r, err := CellRule(element.Interval, degree)
		require.NoError(t, err)
		for k := 0; k <= degree; k++ {
			got := integrate(r, func(p []float64) float64 { return math.Pow(p[0], float64(k)) })
			assert.InDelta(t, 1.0/float64(k+1), got, 1e-12, "degree %d monomial x^%d", degree, k)
		}
	}
}

func TestTriangleExactness(t *testing.T) {
	// On the unit triangle, integral of x^a y^b is a! b! / (a+b+2)!.
	for degree := 0; degree <= 6; degree++ {
		r, err := CellRule(element.Triangle, degree)
		require.NoError(t, err)
		for a := 0; a <= degree; a++ {
			for b := 0; a+b <= degree; b++ {
				want := factorial(a) * factorial(b) / factorial(a+b+2)
				got := integrate(r, func(p []float64) float64 {
					return math.Pow(p[0], float64(a)) * math.Pow(p[1], float64(b))
				})
				assert.InDelta(t, want, got, 1e-12, "degree %d monomial x^%d y^%d", degree, a, b)
			}
		}
	}
}

func TestTetrahedronExactness(t *testing.T) {
	// Integral of x^a y^b z^c over the unit tetrahedron is a! b! c! / (a+b+c+3)!.
	for degree := 0; degree <= 5; degree++ {
		r, err := CellRule(element.Tetrahedron, degree)
		require.NoError(t, err)
		for a := 0; a <= degree; a++ {
			for b := 0; a+b <= degree; b++ {
				for c := 0; a+b+c <= degree; c++ {
					want := factorial(a) * factorial(b) * factorial(c) / factorial(a+b+c+3)
					got := integrate(r, func(p []float64) float64 {
						return math.Pow(p[0], float64(a)) *
							math.Pow(p[1], float64(b)) *
							math.Pow(p[2], float64(c))
					})
					assert.InDelta(t, want, got, 1e-12,
						"degree %d monomial x^%d y^%d z^%d", degree, a, b, c)
				}
			}
		}
	}
}

func TestQuadrilateralExactness(t *testing.T) {
	for degree := 0; degree <= 5; degree++ {
		r, err := CellRule(element.Quadrilateral, degree)
		require.NoError(t, err)
		for a := 0; a <= degree; a++ {
			for b := 0; b <= degree; b++ {
				want := 1.0 / float64((a+1)*(b+1))
				got := integrate(r, func(p []float64) float64 {
					return math.Pow(p[0], float64(a)) * math.Pow(p[1], float64(b))
				})
				assert.InDelta(t, want, got, 1e-12, "degree %d monomial x^%d y^%d", degree, a, b)
			}
		}
	}
}

func TestTriangleFacetRule(t *testing.T) {
	// Facet 0 is the edge between vertices 1 and 2, i.e. the line x + y = 1.
	r, err := FacetRule(element.Triangle, 0, 3)
	require.NoError(t, err)
	require.NotEmpty(t, r.Points)
	require.Len(t, r.BasePoints, len(r.Points))
	sum := 0.0
	for q, p := range r.Points {
		assert.InDelta(t, 1.0, p[0]+p[1], 1e-12)
		sum += r.Weights[q]
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	// Facet 1 spans vertices 0 and 2: the edge x = 0.
	r, err = FacetRule(element.Triangle, 1, 3)
	require.NoError(t, err)
	for _, p := range r.Points {
		assert.InDelta(t, 0.0, p[0], 1e-12)
	}

	_, err = FacetRule(element.Triangle, 3, 1)
	require.Error(t, err)
}

func TestTetrahedronFacetRule(t *testing.T) {
	// Facet 3 spans vertices 0, 1, 2: the plane z = 0; facet weights carry
	// the reference triangle measure.
	r, err := FacetRule(element.Tetrahedron, 3, 2)
	require.NoError(t, err)
	sum := 0.0
	for q, p := range r.Points {
		assert.InDelta(t, 0.0, p[2], 1e-12)
		sum += r.Weights[q]
	}
	assert.InDelta(t, 0.5, sum, 1e-12)
}

func buildBilinearIntegrand(t *testing.T, degree int) (algebra.Expr, algebra.Expr) {
	t.Helper()
	el, err := element.NewElement(element.Lagrange, element.Triangle, degree)
	require.NoError(t, err)
	v := algebra.NewArgument(algebra.Test, el)
	u := algebra.NewArgument(algebra.Trial, el)

	mass, err := algebra.NewProduct(v, u)
	require.NoError(t, err)

	gv, err := algebra.NewGrad(v)
	require.NoError(t, err)
	gu, err := algebra.NewGrad(u)
	require.NoError(t, err)
	stiff, err := algebra.NewInner(gv, gu)
	require.NoError(t, err)
	return mass, stiff
}

func TestSumDegreesEstimation(t *testing.T) {
	mass, stiff := buildBilinearIntegrand(t, 2)

	d, err := SumDegrees{}.Estimate(mass)
	require.NoError(t, err)
	assert.Equal(t, 4, d)

	d, err = SumDegrees{}.Estimate(stiff)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	sum, err := algebra.NewSum(mass, stiff)
	require.NoError(t, err)
	d, err = SumDegrees{}.Estimate(sum)
	require.NoError(t, err)
	assert.Equal(t, 4, d)
}

func TestDerivativeDegreeFloor(t *testing.T) {
	_, stiff := buildBilinearIntegrand(t, 1)
	d, err := SumDegrees{}.Estimate(stiff)
	require.NoError(t, err)
	assert.Equal(t, 0, d)
}

func TestResolveDegree(t *testing.T) {
	mass, _ := buildBilinearIntegrand(t, 2)

	m := algebra.DX()
	d, fellBack, err := ResolveDegree(mass, m, nil)
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, 4, d)

	m.Degree = 7
	d, fellBack, err = ResolveDegree(mass, m, nil)
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, 7, d)
}

func TestDivisionFallsBack(t *testing.T) {
	el, err := element.NewElement(element.Lagrange, element.Triangle, 2)
	require.NoError(t, err)
	coefEl, err := element.NewElement(element.Lagrange, element.Triangle, 1)
	require.NoError(t, err)
	v := algebra.NewArgument(algebra.Test, el)
	w := algebra.NewCoefficient("w", 0, coefEl)

	q, err := algebra.NewDivision(v, w)
	require.NoError(t, err)

	_, err = SumDegrees{}.Estimate(q)
	require.Error(t, err)
	var degErr *DegreeError
	require.ErrorAs(t, err, &degErr)

	d, fellBack, err := ResolveDegree(q, algebra.DX(), nil)
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, 5, d) // 2*max element degree + 1

	d, fellBack, err = ResolveDegree(q, algebra.Measure{Kind: algebra.CellDomain, Degree: 3}, nil)
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, 3, d)
}
