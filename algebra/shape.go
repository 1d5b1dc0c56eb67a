package algebra

import (
	"fmt"
	"strings"
)

// Shape is the value shape of an expression: nil for scalars, one entry per
// tensor axis otherwise (e.g. [2] for a 2-vector, [3 3] for a 3x3 tensor).
type Shape []int

// Rank returns the number of tensor axes.
func (s Shape) Rank() int { return len(s) }

// Size returns the total number of scalar components.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes are identical axis by axis.
func (s Shape) Equal(t Shape) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	if len(s) == 0 {
		return "()"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// ShapeError reports a value-shape incompatibility detected while an
// expression was being constructed. It identifies the operator, the
// conflicting shapes and a rendering of the offending subexpression.
type ShapeError struct {
	Op    string
	Left  Shape
	Right Shape
	Expr  string
}

func (e *ShapeError) Error() string {
	if e.Right == nil && e.Left != nil {
		return fmt.Sprintf("shape error in %s: operand has shape %s in %q",
			e.Op, e.Left, e.Expr)
	}
	return fmt.Sprintf("shape error in %s: shapes %s and %s are incompatible in %q",
		e.Op, e.Left, e.Right, e.Expr)
}

func shapeErr(op string, left, right Shape, expr string) error {
	return &ShapeError{Op: op, Left: left, Right: right, Expr: expr}
}
