package chainparser

import (
	"fmt"

	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// ParseCSharpArg parses a LINQ method argument: a single-parameter lambda, an
// anonymous projection, or a plain literal expression.
func ParseCSharpArg(src string, limits types.Limits) (parsetree.Expr, error) {
	p, err := newCsParser(src, limits)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseTop()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.errAt(p.cur(), "unexpected input after expression")
	}
	return expr, nil
}

type csParser struct {
	*tokenParser
}

func newCsParser(src string, limits types.Limits) (*csParser, error) {
	tp, err := newTokenParser(src, csharpScan, limits)
	if err != nil {
		return nil, err
	}
	return &csParser{tokenParser: tp}, nil
}

func (p *csParser) parseTop() (parsetree.Expr, error) {
	if p.cur().kind == kindIdent && p.peek().kind == kindOp && p.peek().text == "=>" {
		param := p.cur().text
		p.advance()
		p.advance()
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &parsetree.LambdaExpr{Param: param, Body: body}, nil
	}
	return p.parseExpr()
}

func (p *csParser) parseExpr() (parsetree.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *csParser) parseOr() (parsetree.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.eatOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *csParser) parseAnd() (parsetree.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.eatOp("&&") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &parsetree.Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *csParser) parseNot() (parsetree.Expr, error) {
	if p.eatOp("!") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *csParser) parseComparison() (parsetree.Expr, error) {
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

func (p *csParser) parseAdditive() (parsetree.Expr, error) {
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

func (p *csParser) parseTerm() (parsetree.Expr, error) {
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

func (p *csParser) parseUnary() (parsetree.Expr, error) {
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

func (p *csParser) parsePostfix() (parsetree.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atOp(".") {
		if p.peek().kind != kindIdent {
			return nil, p.errAt(p.peek(), "expected member name after '.'")
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
			return nil, p.errAt(nameTok, "unexpected member access")
		}
		qual := id.Name
		if id.Qualifier != "" {
			qual = id.Qualifier + "." + id.Name
		}
		expr = &parsetree.Ident{Qualifier: qual, Name: name}
	}
	return expr, nil
}

func (p *csParser) parsePrimary() (parsetree.Expr, error) {
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
		case "true":
			p.advance()
			return &parsetree.BoolLit{Val: true}, nil
		case "false":
			p.advance()
			return &parsetree.BoolLit{Val: false}, nil
		case "null":
			p.advance()
			return &parsetree.NullLit{}, nil
		case "new":
			p.advance()
			return p.parseAnonymous()
		}
		p.advance()
		return &parsetree.Ident{Name: t.text}, nil
	}
	if p.eatOp("(") {
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, p.errAt(t, "expected expression")
}

// parseAnonymous reads a new { ... } projection; member names become the
// projection aliases.
func (p *csParser) parseAnonymous() (parsetree.Expr, error) {
	if err := p.expectOp("{"); err != nil {
		return nil, err
	}
	obj := &parsetree.ObjectExpr{}
	for !p.atOp("}") {
		var field parsetree.ObjectField
		if p.cur().kind == kindIdent && p.peek().kind == kindOp && p.peek().text == "=" {
			field.Key = p.cur().text
			p.advance()
			p.advance()
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if field.Key == "" {
			id, ok := val.(*parsetree.Ident)
			if !ok {
				return nil, p.errAt(p.cur(), "projection member needs a name")
			}
			field.Key = id.Name
		}
		field.Val = val
		obj.Fields = append(obj.Fields, field)
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *csParser) parseCallArgs() ([]parsetree.Expr, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	if p.eatOp(")") {
		return nil, nil
	}
	var args []parsetree.Expr
	for {
		arg, err := p.parseTop()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return args, nil
}

var csAggregates = map[string]bool{
	"Sum":     true,
	"Min":     true,
	"Max":     true,
	"Average": true,
}

func (p *csParser) applyMethod(recv parsetree.Expr, name string, args []parsetree.Expr, tok scanToken) (parsetree.Expr, error) {
	switch {
	case name == "Contains" || name == "StartsWith" || name == "EndsWith":
		if len(args) != 1 {
			return nil, p.errAt(tok, name+" takes exactly one argument")
		}
		s, ok := args[0].(*parsetree.StringLit)
		if !ok {
			return nil, &types.UnsupportedConstructError{
				Construct: name + " with a non-literal pattern",
				Position:  types.NewPosition(tok.line, tok.col),
				Essential: true,
			}
		}
		pattern := map[string]string{"Contains": "contains", "StartsWith": "startswith", "EndsWith": "endswith"}[name]
		return &parsetree.Binary{Op: "LIKE", Left: recv, Right: &parsetree.StringLit{Val: likePattern(pattern, s.Val)}}, nil
	case name == "Count":
		if len(args) != 0 {
			return nil, p.errAt(tok, "Count takes no arguments")
		}
		return &parsetree.FuncExpr{Name: "Count", Star: true}, nil
	case csAggregates[name]:
		if len(args) != 1 {
			return nil, p.errAt(tok, name+" takes exactly one argument")
		}
		return &parsetree.FuncExpr{Name: name, Args: args}, nil
	}
	return nil, &types.UnsupportedConstructError{
		Construct: fmt.Sprintf("method %q", name),
		Position:  types.NewPosition(tok.line, tok.col),
		Essential: true,
	}
}
