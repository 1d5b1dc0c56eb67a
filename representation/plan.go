package representation

import (
	"fmt"
	"sort"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
	"github.com/formcomp/formc/quadrature"
)

// TermError reports a compile-time representation failure for one integral
// term, identified by its domain kind and subdomain id.
type TermError struct {
	Kind      algebra.DomainKind
	Subdomain int
	Reason    string
}

func (e *TermError) Error() string {
	return fmt.Sprintf("term on %s subdomain %d: %s", e.Kind, e.Subdomain, e.Reason)
}

// Options steers representation selection for a whole form.
type Options struct {
	// Default applies to terms without a per-measure override. ReprAuto
	// enables the automatic policy; an explicit default is treated like a
	// per-term request and fails when inapplicable.
	Default   algebra.ReprChoice
	Optimize  bool
	Estimator quadrature.DegreeEstimator
	// Warn receives one message per degree-estimation fallback.
	Warn func(msg string)
}

// TermPlan is the resolved representation of a single integral term.
type TermPlan struct {
	Integrand algebra.Expr
	Repr      algebra.ReprChoice // resolved: ReprTensor or ReprQuadrature
	Degree    int

	// Tensor representation.
	TensorTerms []TensorTerm

	// Quadrature representation.
	Scalar     ScalarExpr
	Rule       *quadrature.Rule   // cell-interior rule
	FacetRules []*quadrature.Rule // per-facet rules for facet domains
}

// Plan groups the term plans that accumulate into one dispatch branch.
type Plan struct {
	Kind      algebra.DomainKind
	Subdomain int
	Terms     []*TermPlan
}

// Compiled is a fully planned form, ready for code generation.
type Compiled struct {
	Form         *algebra.Form
	Cell         element.Cell
	Test, Trial  *element.Element
	Coefficients []*algebra.Coefficient
	Plans        []*Plan
}

// Rank is the form rank.
func (c *Compiled) Rank() int { return c.Form.Rank() }

// ArgDims returns the local dimensions of the arguments present, test first.
func (c *Compiled) ArgDims() []int {
	var dims []int
	if c.Test != nil {
		dims = append(dims, c.Test.LocalDim())
	}
	if c.Trial != nil {
		dims = append(dims, c.Trial.LocalDim())
	}
	return dims
}

// BufferLen is the flat local-tensor length for one cell: the product of the
// argument local dimensions (1 for a functional). Interior-facet procedures
// use twice each dimension.
func (c *Compiled) BufferLen() int {
	n := 1
	for _, d := range c.ArgDims() {
		n *= d
	}
	return n
}

// PlansFor returns the plans of one domain kind ordered by subdomain id.
func (c *Compiled) PlansFor(kind algebra.DomainKind) []*Plan {
	var out []*Plan
	for _, p := range c.Plans {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Build resolves a representation plan for every integral of the form. The
// per-term choice is the explicit measure option if present, else the global
// default, else the automatic policy (tensor for affine cell integrals with
// purely polynomial integrands, quadrature otherwise).
func Build(form *algebra.Form, opts Options) (*Compiled, error) {
	cell, err := formCell(form)
	if err != nil {
		return nil, err
	}
	test, trial := form.Arguments()
	c := &Compiled{
		Form:         form,
		Cell:         cell,
		Coefficients: form.Coefficients(),
	}
	if test != nil {
		c.Test = test.Element
	}
	if trial != nil {
		c.Trial = trial.Element
	}

	groups := map[[2]int]*Plan{}
	for _, it := range form.Integrals {
		tp, err := buildTerm(c, it, opts)
		if err != nil {
			return nil, err
		}
		key := [2]int{int(it.Measure.Kind), it.Measure.Subdomain}
		g, ok := groups[key]
		if !ok {
			g = &Plan{Kind: it.Measure.Kind, Subdomain: it.Measure.Subdomain}
			groups[key] = g
			c.Plans = append(c.Plans, g)
		}
		g.Terms = append(g.Terms, tp)
	}
	sort.SliceStable(c.Plans, func(i, j int) bool {
		if c.Plans[i].Kind != c.Plans[j].Kind {
			return c.Plans[i].Kind < c.Plans[j].Kind
		}
		return c.Plans[i].Subdomain < c.Plans[j].Subdomain
	})
	return c, nil
}

func buildTerm(c *Compiled, it algebra.Integral, opts Options) (*TermPlan, error) {
	m := it.Measure
	termErr := func(reason string) error {
		return &TermError{Kind: m.Kind, Subdomain: m.Subdomain, Reason: reason}
	}

	if m.Kind != algebra.CellDomain && c.Cell == element.Hexahedron {
		return nil, termErr("facet integrals on hexahedra are not supported (curved facet measure)")
	}
	if m.Kind == algebra.InteriorFacetDomain && !c.Cell.Simplex() {
		return nil, termErr(fmt.Sprintf("interior-facet integrals require an affine-mapped cell, not %s", c.Cell))
	}

	integrand := algebra.Canonicalize(it.Integrand)
	scalar, err := Lower(integrand)
	if err != nil {
		return nil, termErr(err.Error())
	}
	if err := checkDomainKind(scalar, m.Kind); err != nil {
		return nil, termErr(err.Error())
	}
	if err := checkLinearity(c, scalar); err != nil {
		return nil, termErr(err.Error())
	}
	if usesCellVolume(scalar) && !c.Cell.Simplex() {
		return nil, termErr(fmt.Sprintf("cell volume is only available on affine-mapped cells, not %s", c.Cell))
	}

	degree, fellBack, err := quadrature.ResolveDegree(integrand, m, opts.Estimator)
	if err != nil {
		return nil, termErr(err.Error())
	}
	if fellBack && opts.Warn != nil {
		opts.Warn(fmt.Sprintf("degree estimation failed for %q on %s, using conservative degree %d",
			integrand.String(), m, degree))
	}

	monos, polynomial := ExpandMonomials(scalar)
	if polynomial {
		monos = Normalize(monos, opts.Optimize)
	}

	tensorOK := polynomial &&
		m.Kind == algebra.CellDomain &&
		c.Cell.Simplex() &&
		!hasGeometryFactors(monos)

	repr := m.Representation
	if repr == algebra.ReprAuto {
		repr = opts.Default
	}
	switch repr {
	case algebra.ReprAuto:
		if tensorOK {
			repr = algebra.ReprTensor
		} else {
			repr = algebra.ReprQuadrature
		}
	case algebra.ReprTensor:
		if !tensorOK {
			return nil, termErr(tensorRefusal(c, m, polynomial, monos))
		}
	}

	tp := &TermPlan{Integrand: integrand, Repr: repr, Degree: degree}
	if repr == algebra.ReprTensor {
		terms, err := buildTensorTerms(c, monos, degree)
		if err != nil {
			return nil, termErr(err.Error())
		}
		tp.TensorTerms = terms
		return tp, nil
	}

	tp.Scalar = scalar
	switch m.Kind {
	case algebra.CellDomain:
		rule, err := quadrature.CellRule(c.Cell, degree)
		if err != nil {
			return nil, termErr(err.Error())
		}
		tp.Rule = rule
	default:
		for facet := 0; facet < c.Cell.NumFacets(); facet++ {
			rule, err := quadrature.FacetRule(c.Cell, facet, degree)
			if err != nil {
				return nil, termErr(err.Error())
			}
			tp.FacetRules = append(tp.FacetRules, rule)
		}
	}
	return tp, nil
}

// tensorRefusal explains why an explicitly requested tensor representation
// cannot be honored.
func tensorRefusal(c *Compiled, m algebra.Measure, polynomial bool, monos []Monomial) string {
	switch {
	case m.Kind != algebra.CellDomain:
		return "tensor representation requested but facet integrals use runtime quadrature"
	case !c.Cell.Simplex():
		return fmt.Sprintf("tensor representation requested but cell %s is not affine-mapped", c.Cell)
	case !polynomial:
		return "tensor representation requested but integrand is not polynomial in its factors"
	case hasGeometryFactors(monos):
		return "tensor representation requested but integrand depends on per-cell geometry values"
	}
	return "tensor representation inapplicable"
}

// formCell asserts all elements of the form share one reference cell.
func formCell(form *algebra.Form) (element.Cell, error) {
	var cell element.Cell
	found := false
	consider := func(el *element.Element) error {
		if !found {
			cell, found = el.Cell(), true
			return nil
		}
		if el.Cell() != cell {
			return fmt.Errorf("form %s mixes cells %s and %s", form.Name, cell, el.Cell())
		}
		return nil
	}
	test, trial := form.Arguments()
	if test != nil {
		if err := consider(test.Element); err != nil {
			return 0, err
		}
	}
	if trial != nil {
		if err := consider(trial.Element); err != nil {
			return 0, err
		}
	}
	for _, co := range form.Coefficients() {
		if err := consider(co.Element); err != nil {
			return 0, err
		}
	}
	if !found {
		return 0, fmt.Errorf("form %s references no elements", form.Name)
	}
	return cell, nil
}

// checkDomainKind validates facet-only factors and restrictions against the
// integration domain.
func checkDomainKind(t ScalarExpr, kind algebra.DomainKind) error {
	var walk func(t ScalarExpr) error
	walk = func(t ScalarExpr) error {
		switch n := t.(type) {
		case Num:
			return nil
		case Term:
			f := n.Factor
			if f.Kind == FuncNormal && kind == algebra.CellDomain {
				return fmt.Errorf("facet normal used in a cell-interior integral")
			}
			if f.Kind == FuncCellVolume && kind == algebra.InteriorFacetDomain {
				return fmt.Errorf("cell volume is ambiguous on interior facets")
			}
			if f.isFunction() {
				if kind == algebra.InteriorFacetDomain && f.Restriction == algebra.NoRestriction {
					return fmt.Errorf("interior-facet integrand must restrict every function to a side ('+' or '-')")
				}
				if kind != algebra.InteriorFacetDomain && f.Restriction != algebra.NoRestriction {
					return fmt.Errorf("restriction used outside an interior-facet integral")
				}
			}
			return nil
		case Add:
			if err := walk(n.A); err != nil {
				return err
			}
			return walk(n.B)
		case Mul:
			if err := walk(n.A); err != nil {
				return err
			}
			return walk(n.B)
		case Div:
			if err := walk(n.A); err != nil {
				return err
			}
			return walk(n.B)
		}
		return nil
	}
	return walk(t)
}

// argSpan bounds how many test and trial factors a multiplicative expansion
// of a scalar expression can produce.
type argSpan struct {
	minTest, maxTest   int
	minTrial, maxTrial int
}

func argUse(t ScalarExpr) (argSpan, error) {
	switch n := t.(type) {
	case Num:
		return argSpan{}, nil
	case Term:
		var s argSpan
		switch n.Factor.Kind {
		case FuncTest:
			s.minTest, s.maxTest = 1, 1
		case FuncTrial:
			s.minTrial, s.maxTrial = 1, 1
		}
		return s, nil
	case Add:
		a, err := argUse(n.A)
		if err != nil {
			return argSpan{}, err
		}
		b, err := argUse(n.B)
		if err != nil {
			return argSpan{}, err
		}
		return argSpan{
			min(a.minTest, b.minTest), max(a.maxTest, b.maxTest),
			min(a.minTrial, b.minTrial), max(a.maxTrial, b.maxTrial),
		}, nil
	case Mul:
		a, err := argUse(n.A)
		if err != nil {
			return argSpan{}, err
		}
		b, err := argUse(n.B)
		if err != nil {
			return argSpan{}, err
		}
		return argSpan{
			a.minTest + b.minTest, a.maxTest + b.maxTest,
			a.minTrial + b.minTrial, a.maxTrial + b.maxTrial,
		}, nil
	case Div:
		den, err := argUse(n.B)
		if err != nil {
			return argSpan{}, err
		}
		if den.maxTest > 0 || den.maxTrial > 0 {
			return argSpan{}, fmt.Errorf("form is not linear in its arguments: an argument appears in a divisor")
		}
		return argUse(n.A)
	}
	return argSpan{}, nil
}

// checkLinearity verifies every additive branch carries each form argument
// exactly once, i.e. the form really is multilinear. Counting runs on the
// lowered expression so nonlinearity hidden behind a non-polynomial factor
// (a coefficient divisor, say) is still rejected.
func checkLinearity(c *Compiled, scalar ScalarExpr) error {
	s, err := argUse(scalar)
	if err != nil {
		return err
	}
	wantTest, wantTrial := 0, 0
	if c.Test != nil {
		wantTest = 1
	}
	if c.Trial != nil {
		wantTrial = 1
	}
	if s.minTest != wantTest || s.maxTest != wantTest ||
		s.minTrial != wantTrial || s.maxTrial != wantTrial {
		return fmt.Errorf("form is not linear in its arguments: a term has %d test and %d trial factors",
			s.maxTest, s.maxTrial)
	}
	return nil
}

func usesCellVolume(t ScalarExpr) bool {
	switch n := t.(type) {
	case Term:
		return n.Factor.Kind == FuncCellVolume
	case Add:
		return usesCellVolume(n.A) || usesCellVolume(n.B)
	case Mul:
		return usesCellVolume(n.A) || usesCellVolume(n.B)
	case Div:
		return usesCellVolume(n.A) || usesCellVolume(n.B)
	}
	return false
}

// hasGeometryFactors reports whether any monomial references facet normals
// or the cell volume, which have no place in a constant reference tensor.
func hasGeometryFactors(monos []Monomial) bool {
	for _, m := range monos {
		for _, f := range m.Factors {
			if f.Kind == FuncNormal || f.Kind == FuncCellVolume {
				return true
			}
		}
	}
	return false
}
