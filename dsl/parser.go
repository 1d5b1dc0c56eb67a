package dsl

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/element"
)

// File is the parsed content of one form source file.
type File struct {
	// Forms in declaration order, named a (bilinear), L (linear) or M
	// (functional).
	Forms []*algebra.Form
}

// ParseFile reads and parses one form file.
func ParseFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read form file")
	}
	return Parse(filepath.Base(path), string(src))
}

// Parse parses form source text. name is used in diagnostics only.
func Parse(name, src string) (*File, error) {
	p := &parser{
		lex: newLexer(name, src),
		env: map[string]value{},
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseFile()
}

// value is what an expression evaluates to during parsing: a scalar or
// tensor expression, an element, a measure, or a sum of integrals.
type value interface{}

type exprValue struct{ e algebra.Expr }
type elementValue struct{ el *element.Element }
type measureValue struct{ m algebra.Measure }
type integralsValue struct{ list []algebra.Integral }

type parser struct {
	lex   *lexer
	tok   token
	env   map[string]value
	ncoef int

	// stmtName is the identifier being assigned, so Function declarations
	// can carry their source name into diagnostics.
	stmtName string
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errf(t token, format string, args ...interface{}) error {
	return p.lex.errf(t.line, t.col, format, args...)
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.tok.kind != k {
		return token{}, p.errf(p.tok, "expected %s, found %s %q", k, p.tok.kind, p.tok.text)
	}
	t := p.tok
	return t, p.advance()
}

func (p *parser) parseFile() (*File, error) {
	f := &File{}
	for p.tok.kind != tokEOF {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokAssign); err != nil {
			return nil, err
		}
		p.stmtName = name.text
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		switch rhs := v.(type) {
		case integralsValue:
			var wantRank int
			switch name.text {
			case "a":
				wantRank = 2
			case "L":
				wantRank = 1
			case "M":
				wantRank = 0
			default:
				return nil, p.errf(name, "forms must be named a, L or M, not %q", name.text)
			}
			form, err := algebra.NewForm(name.text, rhs.list)
			if err != nil {
				return nil, p.errf(name, "%s", err)
			}
			if form.Rank() != wantRank {
				return nil, p.errf(name, "form %q must have rank %d (a bilinear, L linear, M a functional), got rank %d",
					name.text, wantRank, form.Rank())
			}
			f.Forms = append(f.Forms, form)
		case measureValue:
			return nil, p.errf(name, "a bare measure is not a form")
		default:
			if _, ok := p.env[name.text]; ok {
				return nil, p.errf(name, "%q is already defined", name.text)
			}
			p.env[name.text] = v
		}
	}
	if len(f.Forms) == 0 {
		return nil, &ParseError{File: p.lex.file, Line: 1, Col: 1, Msg: "no forms defined (expected a, L or M)"}
	}
	return f, nil
}

func (p *parser) parseExpr() (value, error) {
	v, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokPlus || p.tok.kind == tokMinus {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		v, err = p.combineAdd(op, v, rhs)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (p *parser) combineAdd(op token, a, b value) (value, error) {
	sub := op.kind == tokMinus
	switch av := a.(type) {
	case exprValue:
		bv, ok := b.(exprValue)
		if !ok {
			return nil, p.errf(op, "cannot add %s to an expression", describe(b))
		}
		if ca, cb, ok := constantPair(av.e, bv.e); ok {
			if sub {
				return exprValue{algebra.NewConstant(ca - cb)}, nil
			}
			return exprValue{algebra.NewConstant(ca + cb)}, nil
		}
		var e algebra.Expr
		var err error
		if sub {
			e, err = algebra.NewSub(av.e, bv.e)
		} else {
			e, err = algebra.NewSum(av.e, bv.e)
		}
		if err != nil {
			return nil, p.errf(op, "%s", err)
		}
		return exprValue{e}, nil
	case integralsValue:
		bv, ok := b.(integralsValue)
		if !ok {
			return nil, p.errf(op, "cannot add %s to an integral", describe(b))
		}
		list := append([]algebra.Integral(nil), av.list...)
		for _, it := range bv.list {
			if sub {
				neg, err := algebra.NewProduct(algebra.NewConstant(-1), it.Integrand)
				if err != nil {
					return nil, p.errf(op, "%s", err)
				}
				it.Integrand = neg
			}
			list = append(list, it)
		}
		return integralsValue{list}, nil
	}
	return nil, p.errf(op, "cannot add %s values", describe(a))
}

func (p *parser) parseTerm() (value, error) {
	v, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokStar || p.tok.kind == tokSlash {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		v, err = p.combineMul(op, v, rhs)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (p *parser) combineMul(op token, a, b value) (value, error) {
	av, ok := a.(exprValue)
	if !ok {
		return nil, p.errf(op, "cannot multiply %s values", describe(a))
	}
	switch bv := b.(type) {
	case exprValue:
		if ca, cb, ok := constantPair(av.e, bv.e); ok {
			if op.kind == tokSlash {
				if cb == 0 {
					return nil, p.errf(op, "division by zero")
				}
				return exprValue{algebra.NewConstant(ca / cb)}, nil
			}
			return exprValue{algebra.NewConstant(ca * cb)}, nil
		}
		var e algebra.Expr
		var err error
		if op.kind == tokSlash {
			e, err = algebra.NewDivision(av.e, bv.e)
		} else {
			e, err = algebra.NewProduct(av.e, bv.e)
		}
		if err != nil {
			return nil, p.errf(op, "%s", err)
		}
		return exprValue{e}, nil
	case measureValue:
		if op.kind == tokSlash {
			return nil, p.errf(op, "cannot divide by a measure")
		}
		return integralsValue{[]algebra.Integral{{Integrand: av.e, Measure: bv.m}}}, nil
	}
	return nil, p.errf(op, "cannot multiply an expression by %s", describe(b))
}

func (p *parser) parseFactor() (value, error) {
	switch p.tok.kind {
	case tokMinus:
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		ev, ok := v.(exprValue)
		if !ok {
			return nil, p.errf(op, "cannot negate %s", describe(v))
		}
		if c, ok := ev.e.(*algebra.Constant); ok {
			return exprValue{algebra.NewConstant(-c.Value)}, nil
		}
		e, err := algebra.NewProduct(algebra.NewConstant(-1), ev.e)
		if err != nil {
			return nil, p.errf(op, "%s", err)
		}
		return exprValue{e}, nil

	case tokNumber:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errf(t, "malformed number %q", t.text)
		}
		return exprValue{algebra.NewConstant(x)}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return v, nil

	case tokIdent:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokLParen {
			return p.parseCall(t)
		}
		return p.resolve(t)
	}
	return nil, p.errf(p.tok, "expected an expression, found %s %q", p.tok.kind, p.tok.text)
}

func (p *parser) resolve(t token) (value, error) {
	if m, ok := bareMeasure(t.text); ok {
		return measureValue{m}, nil
	}
	v, ok := p.env[t.text]
	if !ok {
		return nil, p.errf(t, "undefined name %q", t.text)
	}
	return v, nil
}

func bareMeasure(name string) (algebra.Measure, bool) {
	switch name {
	case "dx":
		return algebra.DX(), true
	case "ds":
		return algebra.DS(), true
	case "dS":
		return algebra.DSInterior(), true
	}
	return algebra.Measure{}, false
}

// arg is one parsed call argument, positional or key=value.
type arg struct {
	tok token
	key string
	val value
	// raw literal text for string arguments
	str   string
	isStr bool
}

func (p *parser) parseArgs() ([]arg, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []arg
	for p.tok.kind != tokRParen {
		if len(args) > 0 {
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}
		a := arg{tok: p.tok}
		if p.tok.kind == tokString {
			a.str, a.isStr = p.tok.text, true
			if err := p.advance(); err != nil {
				return nil, err
			}
			args = append(args, a)
			continue
		}
		// Lookahead for key=value: an identifier followed by '='.
		if p.tok.kind == tokIdent {
			id := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokAssign {
				if err := p.advance(); err != nil {
					return nil, err
				}
				a.key = id.text
				if p.tok.kind == tokString {
					a.str, a.isStr = p.tok.text, true
					if err := p.advance(); err != nil {
						return nil, err
					}
				} else {
					v, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					a.val = v
				}
				args = append(args, a)
				continue
			}
			// Not a keyword: re-parse from the identifier.
			v, err := p.callArgFromIdent(id)
			if err != nil {
				return nil, err
			}
			a.val = v
			args = append(args, a)
			continue
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		a.val = v
		args = append(args, a)
	}
	return args, p.advance()
}

// callArgFromIdent finishes parsing an expression argument whose first token
// (an identifier) was already consumed by keyword lookahead.
func (p *parser) callArgFromIdent(id token) (value, error) {
	var v value
	var err error
	if p.tok.kind == tokLParen {
		v, err = p.parseCall(id)
	} else {
		v, err = p.resolve(id)
	}
	if err != nil {
		return nil, err
	}
	return p.continueExpr(v)
}

// continueExpr extends an already-parsed primary with any trailing operators.
func (p *parser) continueExpr(v value) (value, error) {
	for p.tok.kind == tokStar || p.tok.kind == tokSlash {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		v, err = p.combineMul(op, v, rhs)
		if err != nil {
			return nil, err
		}
	}
	for p.tok.kind == tokPlus || p.tok.kind == tokMinus {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		v, err = p.combineAdd(op, v, rhs)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (p *parser) parseCall(name token) (value, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}

	if m, ok := bareMeasure(name.text); ok {
		return p.measureCall(name, m, args)
	}

	switch name.text {
	case "FiniteElement", "VectorElement":
		return p.elementCall(name, args)
	case "TestFunction", "TrialFunction":
		el, err := p.oneElement(name, args)
		if err != nil {
			return nil, err
		}
		kind := algebra.Test
		if name.text == "TrialFunction" {
			kind = algebra.Trial
		}
		return exprValue{algebra.NewArgument(kind, el)}, nil
	case "Function":
		el, err := p.oneElement(name, args)
		if err != nil {
			return nil, err
		}
		c := algebra.NewCoefficient(p.stmtName, p.ncoef, el)
		p.ncoef++
		return exprValue{c}, nil
	case "Constant":
		return p.constantCall(name, args)
	case "FacetNormal":
		return p.facetNormalCall(name, args)
	case "CellVolume":
		if len(args) != 0 {
			return nil, p.errf(name, "CellVolume takes no arguments")
		}
		return exprValue{&algebra.CellVolume{}}, nil
	case "grad", "div", "curl":
		e, err := p.oneExpr(name, args)
		if err != nil {
			return nil, err
		}
		var out algebra.Expr
		switch name.text {
		case "grad":
			out, err = algebra.NewGrad(e)
		case "div":
			out, err = algebra.NewDiv(e)
		default:
			out, err = algebra.NewCurl(e)
		}
		if err != nil {
			return nil, p.errf(name, "%s", err)
		}
		return exprValue{out}, nil
	case "inner", "dot", "outer":
		a, b, err := p.twoExprs(name, args)
		if err != nil {
			return nil, err
		}
		var out algebra.Expr
		switch name.text {
		case "inner":
			out, err = algebra.NewInner(a, b)
		case "dot":
			out, err = algebra.NewDot(a, b)
		default:
			out, err = algebra.NewOuter(a, b)
		}
		if err != nil {
			return nil, p.errf(name, "%s", err)
		}
		return exprValue{out}, nil
	}

	// f('+') / f('-'): restriction of a bound name.
	if v, ok := p.env[name.text]; ok {
		ev, isExpr := v.(exprValue)
		if isExpr && len(args) == 1 && args[0].isStr {
			switch args[0].str {
			case "+":
				return exprValue{algebra.NewRestrict(ev.e, algebra.PositiveSide)}, nil
			case "-":
				return exprValue{algebra.NewRestrict(ev.e, algebra.NegativeSide)}, nil
			}
			return nil, p.errf(args[0].tok, "restriction must be '+' or '-'")
		}
	}
	return nil, p.errf(name, "unknown function %q", name.text)
}

func (p *parser) measureCall(name token, m algebra.Measure, args []arg) (value, error) {
	positional := 0
	for _, a := range args {
		switch {
		case a.key == "":
			if positional > 0 {
				return nil, p.errf(a.tok, "%s takes one positional argument (the subdomain id)", name.text)
			}
			positional++
			id, err := p.intArg(a)
			if err != nil {
				return nil, err
			}
			if id < 0 {
				return nil, p.errf(a.tok, "subdomain id must be non-negative, got %d", id)
			}
			m.Subdomain = id
		case a.key == "degree":
			d, err := p.intArg(a)
			if err != nil {
				return nil, err
			}
			if d < 0 {
				return nil, p.errf(a.tok, "quadrature degree must be non-negative, got %d", d)
			}
			m.Degree = d
		case a.key == "representation":
			if !a.isStr {
				return nil, p.errf(a.tok, "representation takes a string value")
			}
			switch a.str {
			case "auto":
				m.Representation = algebra.ReprAuto
			case "tensor":
				m.Representation = algebra.ReprTensor
			case "quadrature":
				m.Representation = algebra.ReprQuadrature
			default:
				return nil, p.errf(a.tok, "unknown representation %q (auto, tensor, quadrature)", a.str)
			}
		default:
			return nil, p.errf(a.tok, "unknown measure option %q", a.key)
		}
	}
	return measureValue{m}, nil
}

func (p *parser) elementCall(name token, args []arg) (value, error) {
	if len(args) != 3 {
		return nil, p.errf(name, "%s takes (family, cell, degree)", name.text)
	}
	if !args[0].isStr || !args[1].isStr {
		return nil, p.errf(name, "%s family and cell are strings", name.text)
	}
	family, ok := element.FamilyByName(args[0].str)
	if !ok {
		return nil, p.errf(args[0].tok, "unknown element family %q", args[0].str)
	}
	cell, ok := element.CellByName(args[1].str)
	if !ok {
		return nil, p.errf(args[1].tok, "unknown cell %q", args[1].str)
	}
	degree, err := p.intArg(args[2])
	if err != nil {
		return nil, err
	}
	var el *element.Element
	if name.text == "VectorElement" {
		el, err = element.NewVectorElement(family, cell, degree)
	} else {
		el, err = element.NewElement(family, cell, degree)
	}
	if err != nil {
		return nil, p.errf(name, "%s", err)
	}
	return elementValue{el}, nil
}

func (p *parser) constantCall(name token, args []arg) (value, error) {
	if len(args) != 1 {
		return nil, p.errf(name, "Constant takes one argument")
	}
	// Constant(cell) declares a piecewise-constant coefficient; a numeric
	// argument is a plain literal.
	if args[0].isStr {
		cell, ok := element.CellByName(args[0].str)
		if !ok {
			return nil, p.errf(args[0].tok, "unknown cell %q", args[0].str)
		}
		el, err := element.NewElement(element.DiscontinuousLagrange, cell, 0)
		if err != nil {
			return nil, p.errf(name, "%s", err)
		}
		c := algebra.NewCoefficient(p.stmtName, p.ncoef, el)
		p.ncoef++
		return exprValue{c}, nil
	}
	e, err := p.oneExpr(name, args)
	if err != nil {
		return nil, err
	}
	c, ok := e.(*algebra.Constant)
	if !ok {
		return nil, p.errf(name, "Constant takes a number or a cell name")
	}
	return exprValue{c}, nil
}

func (p *parser) facetNormalCall(name token, args []arg) (value, error) {
	if len(args) != 1 || !args[0].isStr {
		return nil, p.errf(name, "FacetNormal takes a cell name")
	}
	cell, ok := element.CellByName(args[0].str)
	if !ok {
		return nil, p.errf(args[0].tok, "unknown cell %q", args[0].str)
	}
	return exprValue{algebra.NewFacetNormal(cell.Dim())}, nil
}

func (p *parser) oneElement(name token, args []arg) (*element.Element, error) {
	if len(args) != 1 {
		return nil, p.errf(name, "%s takes one element argument", name.text)
	}
	ev, ok := args[0].val.(elementValue)
	if !ok {
		return nil, p.errf(args[0].tok, "%s takes an element, not %s", name.text, describe(args[0].val))
	}
	return ev.el, nil
}

func (p *parser) oneExpr(name token, args []arg) (algebra.Expr, error) {
	if len(args) != 1 {
		return nil, p.errf(name, "%s takes one argument", name.text)
	}
	ev, ok := args[0].val.(exprValue)
	if !ok {
		return nil, p.errf(args[0].tok, "%s takes an expression, not %s", name.text, describe(args[0].val))
	}
	return ev.e, nil
}

func (p *parser) twoExprs(name token, args []arg) (algebra.Expr, algebra.Expr, error) {
	if len(args) != 2 {
		return nil, nil, p.errf(name, "%s takes two arguments", name.text)
	}
	a, ok := args[0].val.(exprValue)
	if !ok {
		return nil, nil, p.errf(args[0].tok, "%s takes expressions, not %s", name.text, describe(args[0].val))
	}
	b, ok := args[1].val.(exprValue)
	if !ok {
		return nil, nil, p.errf(args[1].tok, "%s takes expressions, not %s", name.text, describe(args[1].val))
	}
	return a.e, b.e, nil
}

func (p *parser) intArg(a arg) (int, error) {
	if a.isStr {
		return 0, p.errf(a.tok, "expected an integer, found a string")
	}
	ev, ok := a.val.(exprValue)
	if !ok {
		return 0, p.errf(a.tok, "expected an integer, found %s", describe(a.val))
	}
	c, ok := ev.e.(*algebra.Constant)
	if !ok {
		return 0, p.errf(a.tok, "expected an integer literal")
	}
	n := int(c.Value)
	if float64(n) != c.Value {
		return 0, p.errf(a.tok, "expected an integer, found %s", strconv.FormatFloat(c.Value, 'g', -1, 64))
	}
	return n, nil
}

func constantPair(a, b algebra.Expr) (float64, float64, bool) {
	ca, ok := a.(*algebra.Constant)
	if !ok {
		return 0, 0, false
	}
	cb, ok := b.(*algebra.Constant)
	if !ok {
		return 0, 0, false
	}
	return ca.Value, cb.Value, true
}

func describe(v value) string {
	switch v.(type) {
	case exprValue:
		return "an expression"
	case elementValue:
		return "an element"
	case measureValue:
		return "a measure"
	case integralsValue:
		return "an integral"
	case nil:
		return "nothing"
	}
	return "a value"
}
