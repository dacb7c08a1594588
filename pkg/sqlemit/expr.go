package sqlemit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

// binaryPrec orders operators for parenthesization. Anything nested under a
// tighter-binding parent gets wrapped, so OR under AND always renders inside
// parentheses.
var binaryPrec = map[string]int{
	"OR":  1,
	"AND": 2,
	"=":   4, "<>": 4, "<": 4, "<=": 4, ">": 4, ">=": 4,
	"LIKE": 4, "NOT LIKE": 4, "IN": 4, "NOT IN": 4, "IS": 4, "IS NOT": 4,
	"+": 5, "-": 5, "||": 5,
	"*": 6, "/": 6, "%": 6,
}

var nonAssociative = map[string]bool{"-": true, "/": true, "%": true}

// Precedence reports the emission binding strength of a binary operator;
// higher binds tighter. Unknown operators bind loosest.
func Precedence(op string) int {
	return binaryPrec[op]
}

// NeedsParens reports whether a child expression must be parenthesized under
// a binary parent with the given operator. Fragment renderers outside this
// package share the emitter's precedence decisions through it.
func NeedsParens(child ir.Expr, parentOp string, right bool) bool {
	c, ok := child.(*ir.BinaryOp)
	if !ok {
		return false
	}
	childPrec, parentPrec := binaryPrec[c.Op], binaryPrec[parentOp]
	return childPrec < parentPrec || (childPrec == parentPrec && right && nonAssociative[c.Op])
}

func (e *emitter) expr(x ir.Expr) (string, error) {
	switch v := x.(type) {
	case *ir.Column:
		return e.column(v), nil
	case *ir.Literal:
		return e.literal(v.Value)
	case *ir.BinaryOp:
		return e.binary(v)
	case *ir.FunctionCall:
		return e.funcCall(v)
	case *ir.Subquery:
		inner, err := e.query(v.Query)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *ir.WindowCall:
		return e.window(v)
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("expression %T", x), Essential: true}
}

func (e *emitter) column(v *ir.Column) string {
	name := v.Name
	if name != "*" {
		name = e.d.MaybeQuote(name)
	}
	if v.Table != "" {
		return e.d.MaybeQuote(v.Table) + "." + name
	}
	return name
}

func (e *emitter) binary(v *ir.BinaryOp) (string, error) {
	if v.Op == "||" && e.d.ConcatStyle == catalog.ConcatFunction {
		args, err := e.concatArgs(v)
		if err != nil {
			return "", err
		}
		return "CONCAT(" + strings.Join(args, ", ") + ")", nil
	}
	op := v.Op
	if op == "||" {
		op = e.d.ConcatOp
	}
	prec := binaryPrec[v.Op]
	left, err := e.operand(v.Left, prec, false)
	if err != nil {
		return "", err
	}
	right, err := e.operand(v.Right, prec, true)
	if err != nil {
		return "", err
	}
	return left + " " + op + " " + right, nil
}

func (e *emitter) operand(x ir.Expr, parentPrec int, right bool) (string, error) {
	rendered, err := e.expr(x)
	if err != nil {
		return "", err
	}
	child, ok := x.(*ir.BinaryOp)
	if !ok {
		return rendered, nil
	}
	childPrec := binaryPrec[child.Op]
	if childPrec < parentPrec || (childPrec == parentPrec && right && nonAssociative[child.Op]) {
		return "(" + rendered + ")", nil
	}
	return rendered, nil
}

// concatArgs flattens a nested || chain into its operands.
func (e *emitter) concatArgs(v *ir.BinaryOp) ([]string, error) {
	var out []string
	var walk func(x ir.Expr) error
	walk = func(x ir.Expr) error {
		if b, ok := x.(*ir.BinaryOp); ok && b.Op == "||" {
			if err := walk(b.Left); err != nil {
				return err
			}
			return walk(b.Right)
		}
		rendered, err := e.expr(x)
		if err != nil {
			return err
		}
		out = append(out, rendered)
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *emitter) funcCall(v *ir.FunctionCall) (string, error) {
	switch {
	case v.Name == "NOT" && len(v.Args) == 1:
		inner, err := e.expr(v.Args[0])
		if err != nil {
			return "", err
		}
		if _, ok := v.Args[0].(*ir.BinaryOp); ok {
			inner = "(" + inner + ")"
		}
		return "NOT " + inner, nil
	case v.Name == "EXISTS" && len(v.Args) == 1:
		inner, err := e.expr(v.Args[0])
		if err != nil {
			return "", err
		}
		return "EXISTS " + inner, nil
	case v.Name == "CONCAT" && e.d.ConcatStyle == catalog.ConcatOperator:
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			rendered, err := e.operand(a, binaryPrec["||"], i > 0)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return strings.Join(parts, " "+e.d.ConcatOp+" "), nil
	}
	if v.Star {
		return v.Name + "(*)", nil
	}
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		rendered, err := e.expr(a)
		if err != nil {
			return "", err
		}
		args[i] = rendered
	}
	prefix := ""
	if v.Distinct {
		prefix = "DISTINCT "
	}
	return v.Name + "(" + prefix + strings.Join(args, ", ") + ")", nil
}

func (e *emitter) window(v *ir.WindowCall) (string, error) {
	fn, err := e.funcCall(&v.Func)
	if err != nil {
		return "", err
	}
	var parts []string
	if len(v.PartitionBy) > 0 {
		cols := make([]string, len(v.PartitionBy))
		for i, p := range v.PartitionBy {
			if cols[i], err = e.expr(p); err != nil {
				return "", err
			}
		}
		parts = append(parts, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(v.OrderBy) > 0 {
		ob, err := e.orderClause(v.OrderBy)
		if err != nil {
			return "", err
		}
		parts = append(parts, "ORDER BY "+ob)
	}
	return fn + " OVER (" + strings.Join(parts, " ") + ")", nil
}

func (e *emitter) literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		return e.d.BoolLiteral(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case ir.BindParam:
		return ":" + string(val), nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			rendered, err := e.literal(item)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("literal of type %T", v), Essential: true}
}
