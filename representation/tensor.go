package representation

import (
	"fmt"

	"github.com/formcomp/formc/quadrature"
)

// CoefSlot is one coefficient factor of a tensor term: the reference tensor
// carries an index of size Dim that generated code contracts against the
// coefficient's dof vector.
type CoefSlot struct {
	Coefficient int
	Dim         int
}

// TensorTerm is one monomial in tensor representation. The reference tensor
// Ref is flattened row-major over three index groups: the argument indices
// (test slowest), the coefficient indices and the internal (reference
// derivative direction) indices. The companion geometry tensor has one entry
// per internal multi-index:
//
//	G[a...] = Coef * detJ * prod_k Jinv[a_k][GeoDerivs[k]]
//
// and the local tensor contribution is A[i] += sum_{w,g} Ref[i,w,g] * c[w] * G[g]
// with c the flattened coefficient dof products.
type TensorTerm struct {
	Coef      float64
	Factors   []Factor
	GeoDerivs []int // physical direction of each internal index slot
	CoefSlots []CoefSlot

	Ref        []float64
	NA, NW, NG int
}

// buildTensorTerms integrates the reference tensor of every monomial exactly
// on the reference cell using the deterministic rule at the resolved degree.
func buildTensorTerms(c *Compiled, monos []Monomial, degree int) ([]TensorTerm, error) {
	rule, err := quadrature.CellRule(c.Cell, degree)
	if err != nil {
		return nil, err
	}
	dim := c.Cell.Dim()

	testLD, trialLD := 1, 1
	if c.Test != nil {
		testLD = c.Test.LocalDim()
	}
	if c.Trial != nil {
		trialLD = c.Trial.LocalDim()
	}

	var terms []TensorTerm
	for _, mono := range monos {
		tt := TensorTerm{Coef: mono.Coef, Factors: mono.Factors}

		// One internal index slot per derivative occurrence, in factor order.
		slotsOf := make([][]int, len(mono.Factors))
		for fi, f := range mono.Factors {
			for _, m := range f.Derivs {
				slotsOf[fi] = append(slotsOf[fi], len(tt.GeoDerivs))
				tt.GeoDerivs = append(tt.GeoDerivs, m)
			}
			if f.Kind == FuncCoefficient {
				tt.CoefSlots = append(tt.CoefSlots, CoefSlot{f.Coefficient, f.Element.LocalDim()})
			}
		}

		tt.NA = testLD * trialLD
		tt.NW = 1
		for _, s := range tt.CoefSlots {
			tt.NW *= s.Dim
		}
		tt.NG = 1
		for range tt.GeoDerivs {
			tt.NG *= dim
		}

		tt.Ref = make([]float64, tt.NA*tt.NW*tt.NG)
		gDigits := make([]int, len(tt.GeoDerivs))
		wDigits := make([]int, len(tt.CoefSlots))
		refDerivs := make([]int, 0, 4)

		for a := 0; a < tt.NA; a++ {
			iTest := a / trialLD
			iTrial := a % trialLD
			for w := 0; w < tt.NW; w++ {
				decode(w, wDigits, func(k int) int { return tt.CoefSlots[k].Dim })
				for g := 0; g < tt.NG; g++ {
					decode(g, gDigits, func(int) int { return dim })

					sum := 0.0
					for q, pt := range rule.Points {
						prod := rule.Weights[q]
						wSlot := 0
						for fi, f := range mono.Factors {
							var dof int
							switch f.Kind {
							case FuncTest:
								dof = iTest
							case FuncTrial:
								dof = iTrial
							case FuncCoefficient:
								dof = wDigits[wSlot]
								wSlot++
							default:
								return nil, fmt.Errorf("geometry factor in tensor term")
							}
							refDerivs = refDerivs[:0]
							for _, s := range slotsOf[fi] {
								refDerivs = append(refDerivs, gDigits[s])
							}
							prod *= factorValue(f, dof, pt, refDerivs)
							if prod == 0 {
								break
							}
						}
						sum += prod
					}
					tt.Ref[(a*tt.NW+w)*tt.NG+g] = sum
				}
			}
		}
		terms = append(terms, tt)
	}
	return terms, nil
}

// factorValue evaluates one factor's basis function dof at a reference point
// with the given reference derivative directions. Vector elements are
// component-blocked: dof b*ScalarDim+k is scalar basis k on component b.
func factorValue(f Factor, dof int, pt []float64, refDerivs []int) float64 {
	el := f.Element
	sd := el.ScalarDim()
	if el.ValueSize() > 1 {
		if dof/sd != f.Component {
			return 0
		}
		dof = dof % sd
	}
	return el.EvalDeriv(dof, pt, refDerivs)
}

// decode splits a flat row-major index into digits of the given radix per
// position (first digit slowest).
func decode(flat int, digits []int, radix func(int) int) {
	for k := len(digits) - 1; k >= 0; k-- {
		r := radix(k)
		digits[k] = flat % r
		flat /= r
	}
}
