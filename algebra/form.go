package algebra

import (
	"fmt"
	"sort"
)

// DomainKind is the kind of integration domain of a measure.
type DomainKind uint8

const (
	CellDomain          DomainKind = iota // dx
	ExteriorFacetDomain                   // ds
	InteriorFacetDomain                   // dS
)

func (k DomainKind) String() string {
	switch k {
	case CellDomain:
		return "cell"
	case ExteriorFacetDomain:
		return "exterior_facet"
	default:
		return "interior_facet"
	}
}

// ReprChoice is a representation option attached to a measure.
type ReprChoice uint8

const (
	ReprAuto ReprChoice = iota
	ReprTensor
	ReprQuadrature
)

func (r ReprChoice) String() string {
	switch r {
	case ReprTensor:
		return "tensor"
	case ReprQuadrature:
		return "quadrature"
	default:
		return "auto"
	}
}

// AutoDegree marks a measure whose quadrature degree is to be estimated.
const AutoDegree = -1

// Measure describes where and how one integral term is integrated.
// Construct measures through DX, DS or DSInterior: degree 0 is a valid
// explicit request, so a zero-valued Measure asks for a degree-0 rule
// rather than automatic estimation.
type Measure struct {
	Kind           DomainKind
	Subdomain      int
	Representation ReprChoice
	Degree         int // AutoDegree or an explicit non-negative degree
}

// DX returns the default cell-interior measure on subdomain 0.
func DX() Measure {
	return Measure{Kind: CellDomain, Subdomain: 0, Degree: AutoDegree}
}

// DS returns the default exterior-facet measure on subdomain 0.
func DS() Measure {
	return Measure{Kind: ExteriorFacetDomain, Subdomain: 0, Degree: AutoDegree}
}

// DSInterior returns the default interior-facet measure on subdomain 0.
func DSInterior() Measure {
	return Measure{Kind: InteriorFacetDomain, Subdomain: 0, Degree: AutoDegree}
}

func (m Measure) String() string {
	name := map[DomainKind]string{
		CellDomain:          "dx",
		ExteriorFacetDomain: "ds",
		InteriorFacetDomain: "dS",
	}[m.Kind]
	return fmt.Sprintf("%s(%d)", name, m.Subdomain)
}

// Integral is one (integrand, measure) pair of a form.
type Integral struct {
	Integrand Expr
	Measure   Measure
}

// Form is an ordered collection of integrals sharing an argument set. The
// insertion order fixes the accumulation order in generated code but not the
// mathematical value of the form.
type Form struct {
	Name      string
	Integrals []Integral

	test  *Argument
	trial *Argument
	coeff []*Coefficient
}

// NewForm validates and builds a form from its integrals: every integrand
// must be scalar, and the form may reference at most one test and one trial
// argument across all terms.
func NewForm(name string, integrals []Integral) (*Form, error) {
	f := &Form{Name: name, Integrals: integrals}
	seen := map[int]*Coefficient{}
	for _, it := range integrals {
		if it.Integrand.Shape().Rank() != 0 {
			return nil, shapeErr("integral", it.Integrand.Shape(), nil,
				it.Integrand.String()+"*"+it.Measure.String())
		}
		if err := f.collect(it.Integrand, seen); err != nil {
			return nil, err
		}
	}
	for _, c := range seen {
		f.coeff = append(f.coeff, c)
	}
	sort.Slice(f.coeff, func(i, j int) bool { return f.coeff[i].Index < f.coeff[j].Index })
	return f, nil
}

func (f *Form) collect(e Expr, seen map[int]*Coefficient) error {
	switch n := e.(type) {
	case *Argument:
		switch n.Kind {
		case Test:
			if f.test != nil && f.test != n {
				return fmt.Errorf("form %s: multiple distinct test functions", f.Name)
			}
			f.test = n
		case Trial:
			if f.trial != nil && f.trial != n {
				return fmt.Errorf("form %s: multiple distinct trial functions", f.Name)
			}
			f.trial = n
		}
	case *Coefficient:
		if prev, ok := seen[n.Index]; ok && prev != n {
			return fmt.Errorf("form %s: coefficient index %d bound twice", f.Name, n.Index)
		}
		seen[n.Index] = n
	case *Grad:
		return f.collect(n.Operand, seen)
	case *Div:
		return f.collect(n.Operand, seen)
	case *Curl:
		return f.collect(n.Operand, seen)
	case *Restrict:
		return f.collect(n.Operand, seen)
	case *Sum:
		if err := f.collect(n.A, seen); err != nil {
			return err
		}
		return f.collect(n.B, seen)
	case *Product:
		if err := f.collect(n.A, seen); err != nil {
			return err
		}
		return f.collect(n.B, seen)
	case *Division:
		if err := f.collect(n.A, seen); err != nil {
			return err
		}
		return f.collect(n.B, seen)
	case *Inner:
		if err := f.collect(n.A, seen); err != nil {
			return err
		}
		return f.collect(n.B, seen)
	case *Dot:
		if err := f.collect(n.A, seen); err != nil {
			return err
		}
		return f.collect(n.B, seen)
	case *Outer:
		if err := f.collect(n.A, seen); err != nil {
			return err
		}
		return f.collect(n.B, seen)
	}
	return nil
}

// Rank is 2 for bilinear forms, 1 for linear forms, 0 for functionals.
func (f *Form) Rank() int {
	r := 0
	if f.test != nil {
		r++
	}
	if f.trial != nil {
		r++
	}
	return r
}

// Arguments returns the test and trial placeholders; either may be nil.
func (f *Form) Arguments() (test, trial *Argument) { return f.test, f.trial }

// Coefficients returns the form's coefficients ordered by index.
func (f *Form) Coefficients() []*Coefficient { return f.coeff }

// HasDomain reports whether any integral targets the given domain kind.
func (f *Form) HasDomain(kind DomainKind) bool {
	for _, it := range f.Integrals {
		if it.Measure.Kind == kind {
			return true
		}
	}
	return false
}
