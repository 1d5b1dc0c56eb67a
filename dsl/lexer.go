// Package dsl parses form source files into algebra forms. The accepted
// language is a small expression syntax: element and function declarations
// bound to names, and form definitions that multiply integrands by the
// measures dx, ds and dS.
package dsl

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokAssign
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokAssign:
		return "'='"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

// ParseError locates a front-end failure in the source file.
type ParseError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

type lexer struct {
	file string
	src  string
	pos  int
	line int
	col  int
}

func newLexer(file, src string) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func (l *lexer) errf(line, col int, format string, args ...interface{}) error {
	return &ParseError{File: l.file, Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekRune() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *lexer) advance(r rune, w int) {
	l.pos += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *lexer) skipSpaceAndComments() {
	for {
		r, w := l.peekRune()
		switch {
		case w == 0:
			return
		case r == '#':
			for {
				r, w = l.peekRune()
				if w == 0 || r == '\n' {
					break
				}
				l.advance(r, w)
			}
		case unicode.IsSpace(r):
			l.advance(r, w)
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	line, col := l.line, l.col
	r, w := l.peekRune()
	if w == 0 {
		return token{kind: tokEOF, line: line, col: col}, nil
	}

	single := map[rune]tokenKind{
		'=': tokAssign, '+': tokPlus, '-': tokMinus, '*': tokStar,
		'/': tokSlash, '(': tokLParen, ')': tokRParen, ',': tokComma,
	}
	if k, ok := single[r]; ok {
		l.advance(r, w)
		return token{kind: k, text: string(r), line: line, col: col}, nil
	}

	switch {
	case r == '\'' || r == '"':
		quote := r
		l.advance(r, w)
		start := l.pos
		for {
			r, w = l.peekRune()
			if w == 0 || r == '\n' {
				return token{}, l.errf(line, col, "unterminated string")
			}
			if r == quote {
				text := l.src[start:l.pos]
				l.advance(r, w)
				return token{kind: tokString, text: text, line: line, col: col}, nil
			}
			l.advance(r, w)
		}

	case unicode.IsDigit(r) || r == '.':
		start := l.pos
		seenDigit := false
		for {
			r, w = l.peekRune()
			if w == 0 {
				break
			}
			if unicode.IsDigit(r) {
				seenDigit = true
				l.advance(r, w)
				continue
			}
			if r == '.' {
				l.advance(r, w)
				continue
			}
			if (r == 'e' || r == 'E') && seenDigit {
				l.advance(r, w)
				if r2, w2 := l.peekRune(); r2 == '+' || r2 == '-' {
					l.advance(r2, w2)
				}
				continue
			}
			break
		}
		if !seenDigit {
			return token{}, l.errf(line, col, "malformed number")
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], line: line, col: col}, nil

	case unicode.IsLetter(r) || r == '_':
		start := l.pos
		for {
			r, w = l.peekRune()
			if w == 0 || (!unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_') {
				break
			}
			l.advance(r, w)
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: line, col: col}, nil
	}

	return token{}, l.errf(line, col, "unexpected character %q", r)
}
