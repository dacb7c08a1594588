package chainparser

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// ParseJSArgs parses a comma-separated list of JavaScript (or Java literal)
// argument values.
func ParseJSArgs(src string, limits types.Limits) ([]parsetree.Arg, error) {
	p, err := newJSParser(src, limits)
	if err != nil {
		return nil, err
	}
	if p.atEnd() {
		return nil, nil
	}
	var args []parsetree.Arg
	for {
		start := p.cur().off
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, parsetree.Arg{Raw: p.rawSince(start), Value: val})
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

// ParseJSValue parses a single JavaScript value: an object or array literal,
// a scalar, or a builder helper call.
func ParseJSValue(src string, limits types.Limits) (parsetree.Expr, error) {
	p, err := newJSParser(src, limits)
	if err != nil {
		return nil, err
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.errAt(p.cur(), "unexpected input after value")
	}
	return val, nil
}

type jsParser struct {
	*tokenParser
}

func newJSParser(src string, limits types.Limits) (*jsParser, error) {
	tp, err := newTokenParser(src, jsScan, limits)
	if err != nil {
		return nil, err
	}
	return &jsParser{tokenParser: tp}, nil
}

func (p *jsParser) parseValue() (parsetree.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	t := p.cur()
	switch t.kind {
	case kindString:
		p.advance()
		return &parsetree.StringLit{Val: t.text}, nil
	case kindNumber:
		p.advance()
		return &parsetree.NumberLit{Val: t.text}, nil
	case kindIdent:
		switch t.text {
		case "true":
			p.advance()
			return &parsetree.BoolLit{Val: true}, nil
		case "false":
			p.advance()
			return &parsetree.BoolLit{Val: false}, nil
		case "null", "undefined":
			p.advance()
			return &parsetree.NullLit{}, nil
		}
		return p.parsePath()
	}

	switch {
	case p.atOp("{"):
		return p.parseObject()
	case p.atOp("["):
		return p.parseArray()
	case p.atOp("-"):
		p.advance()
		operand, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "-", Operand: operand}, nil
	}
	return nil, p.errAt(t, "expected value")
}

// parsePath reads a dotted identifier, which may end in a builder helper call
// such as fn(), col() or literal().
func (p *jsParser) parsePath() (parsetree.Expr, error) {
	var segs []string
	tok := p.cur()
	for {
		id, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		segs = append(segs, id.text)
		if !p.eatOp(".") {
			break
		}
	}
	if p.atOp("(") {
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return p.applyCall(segs, args, tok)
	}
	if len(segs) == 1 {
		return &parsetree.Ident{Name: segs[0]}, nil
	}
	return &parsetree.Ident{
		Qualifier: strings.Join(segs[:len(segs)-1], "."),
		Name:      segs[len(segs)-1],
	}, nil
}

func (p *jsParser) parseCallArgs() ([]parsetree.Expr, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	if p.eatOp(")") {
		return nil, nil
	}
	var args []parsetree.Expr
	for {
		arg, err := p.parseValue()
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

// applyCall resolves the query-builder helpers that appear inside config
// objects.
func (p *jsParser) applyCall(segs []string, args []parsetree.Expr, tok scanToken) (parsetree.Expr, error) {
	name := segs[len(segs)-1]
	switch name {
	case "fn":
		if len(args) == 0 {
			return nil, p.errAt(tok, "fn needs a function name")
		}
		s, ok := args[0].(*parsetree.StringLit)
		if !ok {
			return nil, p.errAt(tok, "fn takes a string function name")
		}
		return &parsetree.FuncExpr{Name: s.Val, Args: args[1:]}, nil
	case "col":
		if len(args) != 1 {
			return nil, p.errAt(tok, "col takes exactly one argument")
		}
		s, ok := args[0].(*parsetree.StringLit)
		if !ok {
			return nil, p.errAt(tok, "col takes a string column name")
		}
		if qual, col, found := strings.Cut(s.Val, "."); found {
			return &parsetree.Ident{Qualifier: qual, Name: col}, nil
		}
		return &parsetree.Ident{Name: s.Val}, nil
	case "literal":
		if len(args) != 1 {
			return nil, p.errAt(tok, "literal takes exactly one argument")
		}
		if _, ok := args[0].(*parsetree.StringLit); !ok {
			return nil, p.errAt(tok, "literal takes a string")
		}
		return &parsetree.FuncExpr{Name: "literal", Args: args}, nil
	case "where":
		if len(args) != 3 {
			return nil, p.errAt(tok, "where takes column, operator and value")
		}
		op, ok := args[1].(*parsetree.StringLit)
		if !ok {
			return nil, p.errAt(tok, "where takes a string operator")
		}
		return &parsetree.Binary{Op: strings.ToUpper(op.Val), Left: args[0], Right: args[2]}, nil
	}
	return nil, &types.UnsupportedConstructError{
		Construct: fmt.Sprintf("call %q", strings.Join(segs, ".")),
		Position:  types.NewPosition(tok.line, tok.col),
		Essential: true,
	}
}

func (p *jsParser) parseObject() (parsetree.Expr, error) {
	if err := p.expectOp("{"); err != nil {
		return nil, err
	}
	obj := &parsetree.ObjectExpr{}
	for !p.atOp("}") {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		obj.Fields = append(obj.Fields, parsetree.ObjectField{Key: key, Val: val})
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return obj, nil
}

// parseKey reads an object key: bare, quoted, or computed ([Op.gt] keeps its
// dotted spelling).
func (p *jsParser) parseKey() (string, error) {
	t := p.cur()
	switch {
	case t.kind == kindIdent:
		p.advance()
		return t.text, nil
	case t.kind == kindString:
		p.advance()
		return t.text, nil
	case p.atOp("["):
		p.advance()
		var segs []string
		for {
			id, err := p.expectIdent()
			if err != nil {
				return "", err
			}
			segs = append(segs, id.text)
			if !p.eatOp(".") {
				break
			}
		}
		if err := p.expectOp("]"); err != nil {
			return "", err
		}
		return strings.Join(segs, "."), nil
	}
	return "", p.errAt(t, "expected object key")
}

func (p *jsParser) parseArray() (parsetree.Expr, error) {
	if err := p.expectOp("["); err != nil {
		return nil, err
	}
	arr := &parsetree.ArrayExpr{}
	for !p.atOp("]") {
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
		if !p.eatOp(",") {
			break
		}
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return arr, nil
}
