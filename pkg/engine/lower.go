package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/sqlparser"
	"github.com/nsxbet/querybridge/pkg/types"
)

// funcCanon maps surface function spellings onto canonical SQL names. Names
// not listed pass through upper-cased.
var funcCanon = map[string]string{
	"count":      "COUNT",
	"sum":        "SUM",
	"avg":        "AVG",
	"average":    "AVG",
	"min":        "MIN",
	"max":        "MAX",
	"length":     "LENGTH",
	"len":        "LENGTH",
	"lower":      "LOWER",
	"upper":      "UPPER",
	"coalesce":   "COALESCE",
	"concat":     "CONCAT",
	"abs":        "ABS",
	"round":      "ROUND",
	"row_number": "ROW_NUMBER",
	"rank":       "RANK",
	"dense_rank": "DENSE_RANK",
}

func canonFuncName(name string) string {
	if canon, ok := funcCanon[strings.ToLower(name)]; ok {
		return canon
	}
	return strings.ToUpper(name)
}

// tableForModel maps a model or entity name onto its table name, preferring
// the schema snapshot's spelling when one is loaded.
func (b *Builder) tableForModel(model string) string {
	table := catalog.TableName(model)
	if b.Env.Schema != nil {
		if t := b.Env.Schema.Table(table); t != nil {
			return t.Name
		}
		if t := b.Env.Schema.Table(model); t != nil {
			return t.Name
		}
	}
	return table
}

// Lower converts a parse-level expression into the query model, resolving
// identifiers against the accumulated scope and substituting bindings.
func (b *Builder) Lower(e parsetree.Expr) (ir.Expr, error) {
	switch v := e.(type) {
	case *parsetree.Ident:
		return b.lowerIdent(v), nil
	case *parsetree.StringLit:
		return &ir.Literal{Value: v.Val}, nil
	case *parsetree.NumberLit:
		return lowerNumber(v)
	case *parsetree.BoolLit:
		return &ir.Literal{Value: v.Val}, nil
	case *parsetree.NullLit:
		return &ir.Literal{Value: nil}, nil
	case *parsetree.Param:
		if bound, ok := b.params[v.Name]; ok {
			return b.Lower(bound)
		}
		return &ir.Literal{Value: ir.BindParam(v.Name)}, nil
	case *parsetree.Unary:
		return b.lowerUnary(v)
	case *parsetree.Binary:
		return b.lowerBinary(v)
	case *parsetree.FuncExpr:
		return b.lowerFunc(v)
	case *parsetree.LabeledExpr:
		return b.Lower(v.Expr)
	case *parsetree.LambdaExpr:
		b.lambda = append(b.lambda, v.Param)
		defer func() { b.lambda = b.lambda[:len(b.lambda)-1] }()
		return b.Lower(v.Body)
	case *parsetree.SubqueryExpr:
		sub, err := b.normalizeTree(v.Tree)
		if err != nil {
			return nil, err
		}
		return &ir.Subquery{Query: sub}, nil
	case *parsetree.WindowExpr:
		return b.lowerWindow(v)
	case *parsetree.StarExpr:
		return &ir.Column{Table: b.resolveQualifier(v.Qualifier), Name: "*"}, nil
	case *parsetree.ArrayExpr:
		return nil, &types.UnsupportedConstructError{Construct: "list literal outside IN", Essential: true}
	case *parsetree.ObjectExpr:
		return nil, &types.UnsupportedConstructError{Construct: "object literal in expression position", Essential: true}
	case *parsetree.KwargExpr:
		return nil, &types.UnsupportedConstructError{Construct: fmt.Sprintf("keyword argument %q", v.Name), Essential: true}
	}
	return nil, &types.SyntaxError{Msg: "unparseable expression"}
}

func (b *Builder) lowerIdent(id *parsetree.Ident) *ir.Column {
	name := b.columnName(id.Name)
	qual := id.Qualifier
	if qual == "" {
		return &ir.Column{Name: name}
	}
	head, rest, _ := strings.Cut(qual, ".")
	if b.isLambdaParam(head) {
		if rest == "" {
			return &ir.Column{Name: name}
		}
		qual = rest
	}
	return &ir.Column{Table: b.resolveQualifier(qual), Name: name}
}

func (b *Builder) isLambdaParam(name string) bool {
	for _, p := range b.lambda {
		if p == name {
			return true
		}
	}
	return false
}

func (b *Builder) columnName(name string) string {
	if b.fw == nil {
		return name
	}
	return catalog.ColumnName(name)
}

// resolveQualifier maps a table, alias, or model qualifier onto its scope
// binding. Unknown qualifiers pass through verbatim; validation flags them.
func (b *Builder) resolveQualifier(qual string) string {
	if qual == "" {
		return ""
	}
	if binding, ok := b.scopes[strings.ToLower(qual)]; ok {
		return binding
	}
	if b.fw != nil {
		table := catalog.TableName(qual)
		if binding, ok := b.scopes[strings.ToLower(table)]; ok {
			return binding
		}
	}
	return qual
}

func lowerNumber(n *parsetree.NumberLit) (ir.Expr, error) {
	if strings.Contains(n.Val, ".") {
		f, err := strconv.ParseFloat(n.Val, 64)
		if err != nil {
			return nil, &types.SyntaxError{Token: n.Val, Msg: "invalid number"}
		}
		return &ir.Literal{Value: f}, nil
	}
	i, err := strconv.ParseInt(n.Val, 10, 64)
	if err != nil {
		return nil, &types.SyntaxError{Token: n.Val, Msg: "invalid number"}
	}
	return &ir.Literal{Value: i}, nil
}

func (b *Builder) lowerUnary(u *parsetree.Unary) (ir.Expr, error) {
	switch u.Op {
	case "-":
		operand, err := b.Lower(u.Operand)
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(*ir.Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &ir.Literal{Value: -v}, nil
			case float64:
				return &ir.Literal{Value: -v}, nil
			}
		}
		return &ir.BinaryOp{Op: "-", Left: &ir.Literal{Value: int64(0)}, Right: operand}, nil
	case "NOT":
		operand, err := b.Lower(u.Operand)
		if err != nil {
			return nil, err
		}
		return &ir.FunctionCall{Name: "NOT", Args: []ir.Expr{operand}}, nil
	case "EXISTS":
		sub, ok := u.Operand.(*parsetree.SubqueryExpr)
		if !ok {
			return nil, &types.SyntaxError{Msg: "EXISTS needs a subquery"}
		}
		inner, err := b.normalizeTree(sub.Tree)
		if err != nil {
			return nil, err
		}
		return &ir.FunctionCall{Name: "EXISTS", Args: []ir.Expr{&ir.Subquery{Query: inner}}}, nil
	}
	return nil, &types.SyntaxError{Msg: fmt.Sprintf("misplaced %s marker", strings.ToLower(u.Op))}
}

func (b *Builder) lowerBinary(v *parsetree.Binary) (ir.Expr, error) {
	left, err := b.Lower(v.Left)
	if err != nil {
		return nil, err
	}
	var right ir.Expr
	if v.Op == "IN" || v.Op == "NOT IN" {
		right, err = b.lowerInTarget(v.Right)
	} else {
		right, err = b.Lower(v.Right)
	}
	if err != nil {
		return nil, err
	}
	return &ir.BinaryOp{Op: v.Op, Left: left, Right: right}, nil
}

// lowerInTarget lowers the right side of IN: a value tuple or a subquery.
func (b *Builder) lowerInTarget(e parsetree.Expr) (ir.Expr, error) {
	switch v := e.(type) {
	case *parsetree.ArrayExpr:
		// IN (:statuses) carries the whole collection in the placeholder.
		if len(v.Items) == 1 {
			if p, ok := v.Items[0].(*parsetree.Param); ok {
				if bound, isBound := b.params[p.Name]; isBound {
					if _, isList := bound.(*parsetree.ArrayExpr); isList {
						return b.lowerInTarget(bound)
					}
				}
			}
		}
		items := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			lowered, err := b.Lower(item)
			if err != nil {
				return nil, err
			}
			lit, ok := lowered.(*ir.Literal)
			if !ok {
				return nil, &types.UnsupportedConstructError{Construct: "non-literal IN list element", Essential: true}
			}
			items = append(items, lit.Value)
		}
		return &ir.Literal{Value: items}, nil
	case *parsetree.SubqueryExpr:
		sub, err := b.normalizeTree(v.Tree)
		if err != nil {
			return nil, err
		}
		return &ir.Subquery{Query: sub}, nil
	case *parsetree.Param:
		if bound, ok := b.params[v.Name]; ok {
			return b.lowerInTarget(bound)
		}
	}
	return nil, &types.SyntaxError{Msg: "IN needs a value list or subquery"}
}

func (b *Builder) lowerFunc(f *parsetree.FuncExpr) (ir.Expr, error) {
	if strings.EqualFold(f.Name, "literal") {
		return b.lowerRawFragment(f)
	}
	fn := &ir.FunctionCall{Name: canonFuncName(f.Name), Star: f.Star, Distinct: f.Distinct}
	for _, a := range f.Args {
		if u, ok := a.(*parsetree.Unary); ok && u.Op == "DISTINCT" {
			fn.Distinct = true
			a = u.Operand
		}
		if kw, ok := a.(*parsetree.KwargExpr); ok {
			if kw.Name == "distinct" {
				if bl, ok := kw.Value.(*parsetree.BoolLit); ok && bl.Val {
					fn.Distinct = true
				}
				continue
			}
			return nil, &types.UnsupportedConstructError{
				Construct: fmt.Sprintf("keyword argument %q", kw.Name),
				Essential: true,
			}
		}
		lowered, err := b.Lower(a)
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, lowered)
	}
	if fn.Star && !ir.IsAggregateFunc(fn.Name) {
		fn.Star = false
	}
	return fn, nil
}

// lowerRawFragment lowers a literal('...') escape hatch by parsing its raw
// SQL payload.
func (b *Builder) lowerRawFragment(f *parsetree.FuncExpr) (ir.Expr, error) {
	if len(f.Args) != 1 {
		return nil, &types.SyntaxError{Msg: "literal takes exactly one string"}
	}
	s, ok := f.Args[0].(*parsetree.StringLit)
	if !ok {
		return nil, &types.SyntaxError{Msg: "literal takes exactly one string"}
	}
	parsed, err := sqlparser.ParseExpression(s.Val, b.Env.Limits)
	if err != nil {
		return nil, err
	}
	fw := b.fw
	b.fw = nil // raw fragments name columns verbatim
	defer func() { b.fw = fw }()
	return b.Lower(parsed)
}

func (b *Builder) lowerWindow(w *parsetree.WindowExpr) (ir.Expr, error) {
	fnExpr, err := b.lowerFunc(&w.Func)
	if err != nil {
		return nil, err
	}
	fn := fnExpr.(*ir.FunctionCall)
	win := &ir.WindowCall{Func: *fn}
	for _, pe := range w.PartitionBy {
		lowered, err := b.Lower(pe)
		if err != nil {
			return nil, err
		}
		win.PartitionBy = append(win.PartitionBy, lowered)
	}
	for _, o := range w.OrderBy {
		lowered, err := b.Lower(o.Expr)
		if err != nil {
			return nil, err
		}
		win.OrderBy = append(win.OrderBy, ir.OrderTerm{Expr: lowered, Desc: o.Desc})
	}
	return win, nil
}
