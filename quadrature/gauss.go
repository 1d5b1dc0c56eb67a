// Package quadrature supplies deterministic quadrature rules on reference
// cells and the polynomial-degree estimation used to pick them.
package quadrature

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// gaussJacobi computes the n-point Gauss-Jacobi rule for the weight
// (1-x)^alpha (1+x)^beta on [-1,1] via the Golub-Welsch eigenvalue method:
// points are the eigenvalues of the symmetric tridiagonal Jacobi matrix,
// weights come from the first component of each eigenvector. Exact for
// polynomials of degree <= 2n-1 against the weight.
func gaussJacobi(alpha, beta float64, n int) (x, w []float64) {
	if n < 1 {
		return nil, nil
	}
	if n == 1 {
		x = []float64{-(alpha - beta) / (alpha + beta + 2)}
		w = []float64{weightMass(alpha, beta)}
		return x, w
	}

	// h1[i] = 2i + alpha + beta
	h1 := make([]float64, n)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// Main diagonal.
	d0 := make([]float64, n)
	fac := beta*beta - alpha*alpha
	for i := range d0 {
		d0[i] = fac / (h1[i] * (h1[i] + 2))
	}
	if alpha+beta < 10*2.2e-16 {
		d0[0] = 0
	}

	// First superdiagonal.
	d1 := make([]float64, n-1)
	for i := range d1 {
		ip1 := float64(i + 1)
		d1[i] = 2 / (h1[i] + 2) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h1[i]+1)/(h1[i]+3))
	}

	J := symTriDiagonal(d0, d1)
	var eig mat.EigenSym
	if ok := eig.Factorize(J, true); !ok {
		panic("quadrature: eigenvalue factorization failed")
	}
	x = eig.Values(nil)

	vec := mat.NewDense(n, n, nil)
	eig.VectorsTo(vec)
	w = make([]float64, n)
	mass := weightMass(alpha, beta)
	for i := range w {
		v0 := vec.At(0, i)
		w[i] = v0 * v0 * mass
	}
	return x, w
}

// weightMass is the total mass of the Jacobi weight on [-1,1].
func weightMass(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Gamma(alpha+1) * math.Gamma(beta+1) * math.Pow(2, ab1) /
		ab1 / math.Gamma(ab1)
}

func symTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	T := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		T.SetSym(i, i, d0[i])
		if i+1 < n {
			T.SetSym(i, i+1, d1[i])
		}
	}
	return T
}

// gaussUnit maps the n-point Gauss-Jacobi rule with weight (1-x)^alpha to
// the unit interval [0,1]: the returned weights absorb both the interval
// scaling and the weight factor (1-t)^alpha, so that
// int_0^1 f(t) (1-t)^alpha dt = sum_q w[q] f(x[q]).
func gaussUnit(alpha float64, n int) (x, w []float64) {
	xr, wr := gaussJacobi(alpha, 0, n)
	x = make([]float64, n)
	w = make([]float64, n)
	scale := math.Pow(2, -(alpha + 1))
	for i := range xr {
		x[i] = (1 + xr[i]) / 2
		w[i] = wr[i] * scale
	}
	return x, w
}
