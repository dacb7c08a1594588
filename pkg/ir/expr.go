// Package ir defines the framework- and dialect-neutral model of a relational
// query. Values are built by the normalizer, validated once, and treated as
// immutable afterwards: emitters and the analyzer only read them, and nothing
// is retained between translate calls.
package ir

import (
	"fmt"
	"strings"
)

// Expr is the expression node of the query model. The variants form a closed
// tagged union; children are owned by their parent and never shared.
type Expr interface {
	exprNode()
}

// Column is a column reference, optionally qualified by a table name or
// alias. Name "*" denotes a star projection.
type Column struct {
	Table string
	Name  string
}

// Literal is a constant value: nil, bool, int64, float64, string, or []any
// for a value tuple (the right side of IN).
type Literal struct {
	Value any
}

// BindParam is a named placeholder carried through as a literal value when no
// binding resolves it.
type BindParam string

// BinaryOp applies an operator to two sub-expressions. Logical AND/OR,
// comparisons, arithmetic, LIKE, IN and IS all use this node; the operator is
// stored in its canonical upper-case SQL spelling.
type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

// FunctionCall is a function application. Star marks COUNT(*). NOT is also
// modeled as a one-argument call, keeping the union closed.
type FunctionCall struct {
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
}

// Subquery embeds a whole query as an expression.
type Subquery struct {
	Query *Query
}

// WindowCall applies a function over a window specification.
type WindowCall struct {
	Func        FunctionCall
	PartitionBy []Expr
	OrderBy     []OrderTerm
}

func (*Column) exprNode()       {}
func (*Literal) exprNode()      {}
func (*BinaryOp) exprNode()     {}
func (*FunctionCall) exprNode() {}
func (*Subquery) exprNode()     {}
func (*WindowCall) exprNode()   {}

var aggregateFuncs = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// IsAggregateFunc reports whether name is one of the supported aggregate
// functions, ignoring case.
func IsAggregateFunc(name string) bool {
	return aggregateFuncs[strings.ToUpper(name)]
}

// ContainsAggregate reports whether the expression contains an aggregate
// function call at any depth. Window calls count as aggregated for grouping
// purposes since they are evaluated after grouping.
func ContainsAggregate(e Expr) bool {
	switch v := e.(type) {
	case *FunctionCall:
		if IsAggregateFunc(v.Name) {
			return true
		}
		for _, a := range v.Args {
			if ContainsAggregate(a) {
				return true
			}
		}
	case *BinaryOp:
		return ContainsAggregate(v.Left) || ContainsAggregate(v.Right)
	case *WindowCall:
		return true
	}
	return false
}

// Columns collects every column reference in the expression, depth first.
// Subqueries are not descended into: their columns belong to an inner scope.
func Columns(e Expr) []*Column {
	var out []*Column
	walkColumns(e, &out)
	return out
}

func walkColumns(e Expr, out *[]*Column) {
	switch v := e.(type) {
	case *Column:
		*out = append(*out, v)
	case *BinaryOp:
		if v.Left != nil {
			walkColumns(v.Left, out)
		}
		if v.Right != nil {
			walkColumns(v.Right, out)
		}
	case *FunctionCall:
		for _, a := range v.Args {
			walkColumns(a, out)
		}
	case *WindowCall:
		for _, a := range v.Func.Args {
			walkColumns(a, out)
		}
		for _, p := range v.PartitionBy {
			walkColumns(p, out)
		}
		for _, o := range v.OrderBy {
			walkColumns(o.Expr, out)
		}
	}
}

// DisplayString renders an expression in a compact neutral form for error
// messages and diagnostics. It is not dialect-correct SQL.
func DisplayString(e Expr) string {
	switch v := e.(type) {
	case *Column:
		if v.Table != "" {
			return v.Table + "." + v.Name
		}
		return v.Name
	case *Literal:
		return literalString(v.Value)
	case *BinaryOp:
		return fmt.Sprintf("%s %s %s", DisplayString(v.Left), v.Op, DisplayString(v.Right))
	case *FunctionCall:
		if v.Star {
			return strings.ToUpper(v.Name) + "(*)"
		}
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = DisplayString(a)
		}
		prefix := ""
		if v.Distinct {
			prefix = "DISTINCT "
		}
		return strings.ToUpper(v.Name) + "(" + prefix + strings.Join(args, ", ") + ")"
	case *Subquery:
		return "(subquery)"
	case *WindowCall:
		return DisplayString(&v.Func) + " OVER (...)"
	default:
		return "?"
	}
}

func literalString(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + val + "'"
	case BindParam:
		return ":" + string(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = literalString(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Key returns a canonical, case-insensitive identity for an expression, used
// to decide whether two expressions denote the same thing (GROUP BY coverage,
// ORDER BY aliasing).
func Key(e Expr) string {
	return strings.ToLower(DisplayString(e))
}
