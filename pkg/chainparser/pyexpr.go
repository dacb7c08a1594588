package chainparser

import (
	"fmt"

	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// ParsePythonArgs parses a Python-style argument list: positional expressions
// and name=value keyword arguments.
func ParsePythonArgs(src string, limits types.Limits) ([]parsetree.Arg, error) {
	p, err := newPyParser(src, limits)
	if err != nil {
		return nil, err
	}
	if p.atEnd() {
		return nil, nil
	}
	var args []parsetree.Arg
	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.eatOp(",") {
			break
		}
		if p.atEnd() {
			break
		}
	}
	if !p.atEnd() {
		return nil, p.errAt(p.cur(), "unexpected input after arguments")
	}
	return args, nil
}

// ParsePythonExpr parses a single Python-style expression.
func ParsePythonExpr(src string, limits types.Limits) (parsetree.Expr, error) {
	p, err := newPyParser(src, limits)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.errAt(p.cur(), "unexpected input after expression")
	}
	return expr, nil
}

type pyParser struct {
	*tokenParser
}

func newPyParser(src string, limits types.Limits) (*pyParser, error) {
	tp, err := newTokenParser(src, pythonScan, limits)
	if err != nil {
		return nil, err
	}
	return &pyParser{tokenParser: tp}, nil
}

func (p *pyParser) parseArg() (parsetree.Arg, error) {
	start := p.cur().off
	if p.cur().kind == kindIdent && p.peek().kind == kindOp && p.peek().text == "=" {
		name := p.cur().text
		p.advance()
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return parsetree.Arg{}, err
		}
		return parsetree.Arg{Name: name, Raw: p.rawSince(start), Value: val}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return parsetree.Arg{}, err
	}
	return parsetree.Arg{Raw: p.rawSince(start), Value: val}, nil
}

func (p *pyParser) parseExpr() (parsetree.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *pyParser) parseOr() (parsetree.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atOp("|") || p.atIdent("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *pyParser) parseAnd() (parsetree.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atOp("&") || p.atIdent("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *pyParser) parseNot() (parsetree.Expr, error) {
	if p.atOp("~") || p.atIdent("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var pyCompareOps = map[string]string{
	"==": "=",
	"!=": "<>",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func (p *pyParser) parseComparison() (parsetree.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if t := p.cur(); t.kind == kindOp {
		if op, ok := pyCompareOps[t.text]; ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			// == None spells IS NULL in every surface.
			if _, isNull := right.(*parsetree.NullLit); isNull {
				if op == "=" {
					op = "IS"
				} else if op == "<>" {
					op = "IS NOT"
				}
			}
			return &parsetree.Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *pyParser) parseAdditive() (parsetree.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		op := p.cur().text
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *pyParser) parseTerm() (parsetree.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("%") {
		op := p.cur().text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *pyParser) parseUnary() (parsetree.Expr, error) {
	if p.atOp("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *pyParser) parsePostfix() (parsetree.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atOp(".") {
		if p.peek().kind != kindIdent {
			return nil, p.errAt(p.peek(), "expected attribute name after '.'")
		}
		p.advance()
		name := p.cur().text
		nameTok := p.cur()
		p.advance()
		if p.atOp("(") {
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr, err = p.applyMethod(expr, name, args, nameTok)
			if err != nil {
				return nil, err
			}
			continue
		}
		id, ok := expr.(*parsetree.Ident)
		if !ok {
			return nil, p.errAt(nameTok, "unexpected attribute access")
		}
		qual := id.Name
		if id.Qualifier != "" {
			qual = id.Qualifier + "." + id.Name
		}
		expr = &parsetree.Ident{Qualifier: qual, Name: name}
	}
	return expr, nil
}

func (p *pyParser) parsePrimary() (parsetree.Expr, error) {
	t := p.cur()
	switch t.kind {
	case kindNumber:
		p.advance()
		return &parsetree.NumberLit{Val: t.text}, nil
	case kindString:
		p.advance()
		return &parsetree.StringLit{Val: t.text}, nil
	case kindIdent:
		switch t.text {
		case "None":
			p.advance()
			return &parsetree.NullLit{}, nil
		case "True":
			p.advance()
			return &parsetree.BoolLit{Val: true}, nil
		case "False":
			p.advance()
			return &parsetree.BoolLit{Val: false}, nil
		}
		if p.peek().kind == kindOp && p.peek().text == "(" {
			if t.text == "select" {
				return p.parseInlineChain()
			}
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return p.applyCall(t.text, args, t)
		}
		p.advance()
		return &parsetree.Ident{Name: t.text}, nil
	}

	switch {
	case p.atOp("("):
		p.advance()
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.atOp(",") {
			items := []parsetree.Expr{first}
			for p.eatOp(",") {
				if p.atOp(")") {
					break
				}
				item, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return &parsetree.ArrayExpr{Items: items}, nil
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return first, nil
	case p.atOp("["):
		p.advance()
		list := &parsetree.ArrayExpr{}
		if p.eatOp("]") {
			return list, nil
		}
		for {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
			if !p.eatOp(",") {
				break
			}
			if p.atOp("]") {
				break
			}
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return list, nil
	}
	return nil, p.errAt(t, "expected expression")
}

func (p *pyParser) parseCallArgs() ([]parsetree.Arg, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	if p.eatOp(")") {
		return nil, nil
	}
	var args []parsetree.Arg
	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.eatOp(",") {
			break
		}
		if p.atOp(")") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return args, nil
}

// applyCall resolves module-level helper calls (and_, or_, func-less
// aggregates) into expression nodes.
func (p *pyParser) applyCall(name string, args []parsetree.Arg, tok scanToken) (parsetree.Expr, error) {
	switch name {
	case "and_", "or_":
		op := "AND"
		if name == "or_" {
			op = "OR"
		}
		if len(args) == 0 {
			return nil, p.errAt(tok, name+" needs at least one argument")
		}
		expr := args[0].Value
		for _, a := range args[1:] {
			expr = &parsetree.Binary{Op: op, Left: expr, Right: a.Value}
		}
		return expr, nil
	case "not_":
		if len(args) != 1 {
			return nil, p.errAt(tok, "not_ takes exactly one argument")
		}
		return &parsetree.Unary{Op: "NOT", Operand: args[0].Value}, nil
	case "distinct":
		if len(args) != 1 {
			return nil, p.errAt(tok, "distinct takes exactly one argument")
		}
		return &parsetree.Unary{Op: "DISTINCT", Operand: args[0].Value}, nil
	case "desc", "asc":
		if len(args) != 1 {
			return nil, p.errAt(tok, name+" takes exactly one argument")
		}
		return &parsetree.Unary{Op: upperDir(name), Operand: args[0].Value}, nil
	case "exists":
		if len(args) != 1 {
			return nil, p.errAt(tok, "exists takes exactly one argument")
		}
		return &parsetree.Unary{Op: "EXISTS", Operand: args[0].Value}, nil
	}
	return &parsetree.FuncExpr{Name: name, Args: argExprs(args)}, nil
}

// applyMethod resolves postfix calls: the SQL operator methods column
// expressions carry, plus the func.* aggregate namespace and over().
func (p *pyParser) applyMethod(recv parsetree.Expr, name string, args []parsetree.Arg, tok scanToken) (parsetree.Expr, error) {
	if id, ok := recv.(*parsetree.Ident); ok && id.Qualifier == "" && id.Name == "func" {
		fn := &parsetree.FuncExpr{Name: name, Args: argExprs(args)}
		if len(args) == 0 {
			fn.Star = true
		}
		return fn, nil
	}

	one := func() (parsetree.Expr, error) {
		if len(args) != 1 {
			return nil, p.errAt(tok, name+" takes exactly one argument")
		}
		return args[0].Value, nil
	}

	switch name {
	case "label", "alias":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		s, ok := arg.(*parsetree.StringLit)
		if !ok {
			return nil, p.errAt(tok, name+" takes a string")
		}
		return &parsetree.LabeledExpr{Expr: recv, Label: s.Val}, nil
	case "desc", "asc":
		if len(args) != 0 {
			return nil, p.errAt(tok, name+" takes no arguments")
		}
		return &parsetree.Unary{Op: upperDir(name), Operand: recv}, nil
	case "distinct":
		if len(args) != 0 {
			return nil, p.errAt(tok, "distinct takes no arguments")
		}
		return &parsetree.Unary{Op: "DISTINCT", Operand: recv}, nil
	case "like", "ilike":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "LIKE", Left: recv, Right: arg}, nil
	case "notlike", "not_like":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "NOT LIKE", Left: recv, Right: arg}, nil
	case "in_":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "IN", Left: recv, Right: arg}, nil
	case "notin_", "not_in":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "NOT IN", Left: recv, Right: arg}, nil
	case "is_":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "IS", Left: recv, Right: arg}, nil
	case "isnot", "is_not":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "IS NOT", Left: recv, Right: arg}, nil
	case "between":
		if len(args) != 2 {
			return nil, p.errAt(tok, "between takes exactly two arguments")
		}
		return &parsetree.Binary{
			Op:    "AND",
			Left:  &parsetree.Binary{Op: ">=", Left: recv, Right: args[0].Value},
			Right: &parsetree.Binary{Op: "<=", Left: recv, Right: args[1].Value},
		}, nil
	case "contains", "startswith", "endswith":
		arg, err := one()
		if err != nil {
			return nil, err
		}
		s, ok := arg.(*parsetree.StringLit)
		if !ok {
			return nil, &types.UnsupportedConstructError{
				Construct: name + " with a non-literal pattern",
				Position:  types.NewPosition(tok.line, tok.col),
				Essential: true,
			}
		}
		return &parsetree.Binary{Op: "LIKE", Left: recv, Right: &parsetree.StringLit{Val: likePattern(name, s.Val)}}, nil
	case "over":
		fn, ok := recv.(*parsetree.FuncExpr)
		if !ok {
			return nil, p.errAt(tok, "over applies to a function call")
		}
		return p.buildWindow(fn, args, tok)
	}
	return nil, &types.UnsupportedConstructError{
		Construct: fmt.Sprintf("method %q", name),
		Position:  types.NewPosition(tok.line, tok.col),
		Essential: true,
	}
}

func (p *pyParser) buildWindow(fn *parsetree.FuncExpr, args []parsetree.Arg, tok scanToken) (parsetree.Expr, error) {
	win := &parsetree.WindowExpr{Func: *fn}
	for _, a := range args {
		switch a.Name {
		case "partition_by":
			win.PartitionBy = append(win.PartitionBy, flattenList(a.Value)...)
		case "order_by":
			for _, item := range flattenList(a.Value) {
				win.OrderBy = append(win.OrderBy, UnwrapOrder(item))
			}
		default:
			return nil, p.errAt(tok, "over accepts partition_by and order_by only")
		}
	}
	return win, nil
}

// UnwrapOrder strips the ASC and DESC markers desc()/asc() calls leave on an
// expression and returns it as an order term.
func UnwrapOrder(e parsetree.Expr) parsetree.OrderArg {
	if u, ok := e.(*parsetree.Unary); ok {
		switch u.Op {
		case "DESC":
			return parsetree.OrderArg{Expr: u.Operand, Desc: true}
		case "ASC":
			return parsetree.OrderArg{Expr: u.Operand}
		}
	}
	return parsetree.OrderArg{Expr: e}
}

// parseInlineChain hands a nested select(...) builder chain back to the chain
// splitter and resumes after it, so subqueries inside argument expressions
// parse the same way top-level chains do.
func (p *pyParser) parseInlineChain() (parsetree.Expr, error) {
	start := p.cur().off
	c := newCursor(string(p.src[start:]))
	c.readIdent()
	c.skipSpace()
	if c.ch() != '(' {
		return nil, p.errAt(p.cur(), "expected call")
	}
	for {
		if _, err := c.captureBalanced('(', ')'); err != nil {
			return nil, err
		}
		c.skipSpace()
		save := *c
		if c.ch() != '.' {
			break
		}
		c.next()
		c.skipSpace()
		if _, _, ok := c.readIdent(); !ok {
			*c = save
			break
		}
		c.skipSpace()
		if c.ch() != '(' {
			*c = save
			break
		}
	}
	end := start + c.i
	sub, err := Parse(string(p.src[start:end]), p.limits)
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.cur().off < end {
		p.advance()
	}
	return &parsetree.SubqueryExpr{Tree: sub}, nil
}

func argExprs(args []parsetree.Arg) []parsetree.Expr {
	var out []parsetree.Expr
	for _, a := range args {
		if a.Name != "" {
			out = append(out, &parsetree.KwargExpr{Name: a.Name, Value: a.Value})
			continue
		}
		out = append(out, a.Value)
	}
	return out
}

func flattenList(e parsetree.Expr) []parsetree.Expr {
	if arr, ok := e.(*parsetree.ArrayExpr); ok {
		return arr.Items
	}
	return []parsetree.Expr{e}
}

func upperDir(name string) string {
	if name == "desc" {
		return "DESC"
	}
	return "ASC"
}

func likePattern(method, s string) string {
	switch method {
	case "startswith":
		return s + "%"
	case "endswith":
		return "%" + s
	default:
		return "%" + s + "%"
	}
}
