package sqlparser

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Operator precedence, loosest first.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare
	precAdditive
	precProduct
	precUnary
)

var precedences = map[TokenType]int{
	OR:       precOr,
	AND:      precAnd,
	EQ:       precCompare,
	NEQ:      precCompare,
	LT:       precCompare,
	GT:       precCompare,
	LTE:      precCompare,
	GTE:      precCompare,
	LIKE:     precCompare,
	IN:       precCompare,
	IS:       precCompare,
	BETWEEN:  precCompare,
	NOT:      precCompare,
	PLUS:     precAdditive,
	MINUS:    precAdditive,
	CONCAT:   precAdditive,
	ASTERISK: precProduct,
	SLASH:    precProduct,
	PERCENT:  precProduct,
}

type parser struct {
	toks       []Token
	i          int
	limits     types.Limits
	depth      int
	entityMode bool
}

// Parse parses one SELECT statement into the shared parse tree.
func Parse(sql string, limits types.Limits) (*parsetree.Tree, error) {
	return parseWithMode(sql, limits, false)
}

// ParseEntityQuery parses an HQL-style query: SELECT is optional (FROM alone
// means select everything) and sources are entity names rather than tables.
func ParseEntityQuery(sql string, limits types.Limits) (*parsetree.Tree, error) {
	return parseWithMode(sql, limits, true)
}

func parseWithMode(sql string, limits types.Limits, entity bool) (*parsetree.Tree, error) {
	limits = limits.Normalize()
	p, err := newParser(sql, limits)
	if err != nil {
		return nil, err
	}
	p.entityMode = entity
	tree, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == SEMICOLON {
		p.advance()
	}
	if p.cur().Type != EOF {
		return nil, p.syntaxError(p.cur(), "unexpected input after end of statement")
	}
	return tree, nil
}

// ParseExpression parses a standalone SQL expression fragment, as embedded in
// query-builder strings.
func ParseExpression(fragment string, limits types.Limits) (parsetree.Expr, error) {
	limits = limits.Normalize()
	p, err := newParser(fragment, limits)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if p.cur().Type != EOF {
		return nil, p.syntaxError(p.cur(), "unexpected input after expression")
	}
	return expr, nil
}

func newParser(input string, limits types.Limits) (*parser, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &types.SyntaxError{Msg: "empty input"}
	}
	lex := newLexer(input)
	var toks []Token
	for {
		t := lex.NextToken()
		if t.Type == ILLEGAL {
			return nil, &types.SyntaxError{
				Token:    t.Literal,
				Position: types.NewPosition(t.Pos.Line, t.Pos.Column),
				Msg:      "unexpected character",
			}
		}
		toks = append(toks, t)
		if len(toks) > limits.MaxTokens {
			return nil, &types.ResourceLimitError{Kind: "tokens", Limit: limits.MaxTokens}
		}
		if t.Type == EOF {
			break
		}
	}
	return &parser{toks: toks, limits: limits}, nil
}

func (p *parser) cur() Token {
	return p.toks[p.i]
}

func (p *parser) peek() Token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() {
	if p.i < len(p.toks)-1 {
		p.i++
	}
}

func (p *parser) expect(t TokenType) (Token, error) {
	tok := p.cur()
	if tok.Type != t {
		return tok, p.syntaxError(tok, fmt.Sprintf("expected %s", t))
	}
	p.advance()
	return tok, nil
}

func (p *parser) syntaxError(tok Token, msg string) error {
	return &types.SyntaxError{
		Token:    tok.Literal,
		Position: types.NewPosition(tok.Pos.Line, tok.Pos.Column),
		Msg:      msg,
	}
}

func callPos(tok Token) types.Position {
	return types.Position{Line: int32(tok.Pos.Line), Column: int32(tok.Pos.Column)}
}

func (p *parser) parseQuery() (*parsetree.Tree, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.limits.MaxDepth {
		return nil, &types.ResourceLimitError{Kind: "nesting depth", Limit: p.limits.MaxDepth}
	}

	tree := &parsetree.Tree{Surface: "sql"}

	if p.cur().Type == WITH {
		if err := p.parseWith(tree); err != nil {
			return nil, err
		}
	}

	switch {
	case p.cur().Type == SELECT:
		if err := p.parseSelect(tree); err != nil {
			return nil, err
		}
	case p.entityMode && p.cur().Type == FROM:
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "select",
			Args:   []parsetree.Arg{{Raw: "*", Value: &parsetree.StarExpr{}}},
			Pos:    callPos(p.cur()),
		})
	default:
		return nil, p.syntaxError(p.cur(), "expected SELECT")
	}

	if p.cur().Type == FROM {
		if err := p.parseFrom(tree); err != nil {
			return nil, err
		}
	}
	if err := p.parseJoins(tree); err != nil {
		return nil, err
	}
	if p.cur().Type == WHERE {
		tok := p.cur()
		p.advance()
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "where",
			Args:   []parsetree.Arg{{Value: expr}},
			Pos:    callPos(tok),
		})
	}
	if p.cur().Type == GROUP {
		if err := p.parseGroupBy(tree); err != nil {
			return nil, err
		}
	}
	if p.cur().Type == HAVING {
		tok := p.cur()
		p.advance()
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "having",
			Args:   []parsetree.Arg{{Value: expr}},
			Pos:    callPos(tok),
		})
	}
	if p.cur().Type == ORDER {
		if err := p.parseOrderBy(tree); err != nil {
			return nil, err
		}
	}
	if err := p.parseLimits(tree); err != nil {
		return nil, err
	}

	if p.cur().Type == UNION {
		return nil, &types.UnsupportedConstructError{
			Construct: "set operation (UNION)",
			Position:  types.NewPosition(p.cur().Pos.Line, p.cur().Pos.Column),
			Essential: true,
		}
	}

	if len(tree.Calls) > p.limits.MaxCalls {
		return nil, &types.ResourceLimitError{Kind: "clauses", Limit: p.limits.MaxCalls}
	}
	return tree, nil
}

func (p *parser) parseWith(tree *parsetree.Tree) error {
	tok := p.cur()
	p.advance()
	if p.cur().Type == RECURSIVE {
		return &types.UnsupportedConstructError{
			Construct: "recursive CTE",
			Position:  types.NewPosition(p.cur().Pos.Line, p.cur().Pos.Column),
			Essential: true,
		}
	}
	for {
		name, err := p.expect(IDENT)
		if err != nil {
			return err
		}
		var cols []string
		if p.cur().Type == LPAREN {
			p.advance()
			for {
				col, err := p.expect(IDENT)
				if err != nil {
					return err
				}
				cols = append(cols, col.Literal)
				if p.cur().Type != COMMA {
					break
				}
				p.advance()
			}
			if _, err := p.expect(RPAREN); err != nil {
				return err
			}
		}
		if _, err := p.expect(AS); err != nil {
			return err
		}
		if _, err := p.expect(LPAREN); err != nil {
			return err
		}
		sub, err := p.parseQuery()
		if err != nil {
			return err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return err
		}
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "with",
			Args:   []parsetree.Arg{{Name: name.Literal, Raw: strings.Join(cols, ","), Sub: sub}},
			Pos:    callPos(tok),
		})
		if p.cur().Type != COMMA {
			return nil
		}
		p.advance()
	}
}

func (p *parser) parseSelect(tree *parsetree.Tree) error {
	tok := p.cur()
	p.advance()
	if p.cur().Type == DISTINCT {
		tree.Calls = append(tree.Calls, parsetree.Call{Method: "distinct", Pos: callPos(p.cur())})
		p.advance()
	}
	if p.cur().Type == TOP {
		p.advance()
		n, err := p.expect(NUMBER)
		if err != nil {
			return err
		}
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "limit",
			Args:   []parsetree.Arg{{Raw: n.Literal, Value: &parsetree.NumberLit{Val: n.Literal}}},
			Pos:    callPos(n),
		})
	}

	var args []parsetree.Arg
	for {
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return err
		}
		arg := parsetree.Arg{Value: expr}
		if p.cur().Type == AS {
			p.advance()
			alias, err := p.expect(IDENT)
			if err != nil {
				return err
			}
			arg.Name = alias.Literal
		} else if p.cur().Type == IDENT {
			arg.Name = p.cur().Literal
			p.advance()
		}
		args = append(args, arg)
		if p.cur().Type != COMMA {
			break
		}
		p.advance()
	}
	tree.Calls = append(tree.Calls, parsetree.Call{Method: "select", Args: args, Pos: callPos(tok)})
	return nil
}

// parseTableItem parses a named table or a parenthesized subquery, with an
// optional alias.
func (p *parser) parseTableItem() (parsetree.Arg, error) {
	if p.cur().Type == LPAREN {
		p.advance()
		sub, err := p.parseQuery()
		if err != nil {
			return parsetree.Arg{}, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return parsetree.Arg{}, err
		}
		arg := parsetree.Arg{Sub: sub}
		if p.cur().Type == AS {
			p.advance()
		}
		if p.cur().Type == IDENT {
			arg.Name = p.cur().Literal
			p.advance()
		}
		return arg, nil
	}

	name, err := p.expect(IDENT)
	if err != nil {
		return parsetree.Arg{}, err
	}
	full := name.Literal
	// Entity queries join association paths: JOIN u.orders o.
	for p.entityMode && p.cur().Type == DOT {
		p.advance()
		part, err := p.expect(IDENT)
		if err != nil {
			return parsetree.Arg{}, err
		}
		full += "." + part.Literal
	}
	t := &parsetree.TableArg{Name: full}
	if p.cur().Type == AS {
		p.advance()
		alias, err := p.expect(IDENT)
		if err != nil {
			return parsetree.Arg{}, err
		}
		t.Alias = alias.Literal
	} else if p.cur().Type == IDENT {
		t.Alias = p.cur().Literal
		p.advance()
	}
	return parsetree.Arg{Table: t}, nil
}

func (p *parser) parseFrom(tree *parsetree.Tree) error {
	tok := p.cur()
	p.advance()
	arg, err := p.parseTableItem()
	if err != nil {
		return err
	}
	tree.Calls = append(tree.Calls, parsetree.Call{Method: "from", Args: []parsetree.Arg{arg}, Pos: callPos(tok)})
	return nil
}

func (p *parser) parseJoins(tree *parsetree.Tree) error {
	for {
		var method string
		tok := p.cur()
		switch p.cur().Type {
		case JOIN:
			method = "join_inner"
			p.advance()
		case INNER:
			method = "join_inner"
			p.advance()
			if _, err := p.expect(JOIN); err != nil {
				return err
			}
		case LEFT:
			method = "join_left"
			p.advance()
			if p.cur().Type == OUTER {
				p.advance()
			}
			if _, err := p.expect(JOIN); err != nil {
				return err
			}
		case RIGHT:
			method = "join_right"
			p.advance()
			if p.cur().Type == OUTER {
				p.advance()
			}
			if _, err := p.expect(JOIN); err != nil {
				return err
			}
		case FULL:
			method = "join_full"
			p.advance()
			if p.cur().Type == OUTER {
				p.advance()
			}
			if _, err := p.expect(JOIN); err != nil {
				return err
			}
		case CROSS:
			method = "join_cross"
			p.advance()
			if _, err := p.expect(JOIN); err != nil {
				return err
			}
		default:
			return nil
		}

		target, err := p.parseTableItem()
		if err != nil {
			return err
		}
		args := []parsetree.Arg{target}
		if method != "join_cross" && (!p.entityMode || p.cur().Type == ON) {
			if _, err := p.expect(ON); err != nil {
				return err
			}
			cond, err := p.parseExpr(precLowest)
			if err != nil {
				return err
			}
			args = append(args, parsetree.Arg{Value: cond})
		}
		tree.Calls = append(tree.Calls, parsetree.Call{Method: method, Args: args, Pos: callPos(tok)})
	}
}

func (p *parser) parseGroupBy(tree *parsetree.Tree) error {
	tok := p.cur()
	p.advance()
	if _, err := p.expect(BY); err != nil {
		return err
	}
	var args []parsetree.Arg
	for {
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return err
		}
		args = append(args, parsetree.Arg{Value: expr})
		if p.cur().Type != COMMA {
			break
		}
		p.advance()
	}
	tree.Calls = append(tree.Calls, parsetree.Call{Method: "group_by", Args: args, Pos: callPos(tok)})
	return nil
}

func (p *parser) parseOrderBy(tree *parsetree.Tree) error {
	tok := p.cur()
	p.advance()
	if _, err := p.expect(BY); err != nil {
		return err
	}
	args, err := p.parseOrderTerms()
	if err != nil {
		return err
	}
	tree.Calls = append(tree.Calls, parsetree.Call{Method: "order_by", Args: args, Pos: callPos(tok)})
	return nil
}

func (p *parser) parseOrderTerms() ([]parsetree.Arg, error) {
	var args []parsetree.Arg
	for {
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		arg := parsetree.Arg{Value: expr}
		switch p.cur().Type {
		case ASC:
			p.advance()
		case DESC:
			arg.Desc = true
			p.advance()
		}
		args = append(args, arg)
		if p.cur().Type != COMMA {
			return args, nil
		}
		p.advance()
	}
}

// parseLimits accepts both LIMIT/OFFSET and OFFSET ... FETCH spellings.
func (p *parser) parseLimits(tree *parsetree.Tree) error {
	if p.cur().Type == LIMIT {
		p.advance()
		n, err := p.expect(NUMBER)
		if err != nil {
			return err
		}
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "limit",
			Args:   []parsetree.Arg{{Raw: n.Literal, Value: &parsetree.NumberLit{Val: n.Literal}}},
			Pos:    callPos(n),
		})
	}
	if p.cur().Type == OFFSET {
		p.advance()
		n, err := p.expect(NUMBER)
		if err != nil {
			return err
		}
		tree.Calls = append(tree.Calls, parsetree.Call{
			Method: "offset",
			Args:   []parsetree.Arg{{Raw: n.Literal, Value: &parsetree.NumberLit{Val: n.Literal}}},
			Pos:    callPos(n),
		})
		if p.cur().Type == ROWS {
			p.advance()
		}
		if p.cur().Type == FETCH {
			p.advance()
			if p.cur().Type == NEXT || (p.cur().Type == IDENT && lower(p.cur().Literal) == "first") {
				p.advance()
			}
			m, err := p.expect(NUMBER)
			if err != nil {
				return err
			}
			if p.cur().Type == ROWS {
				p.advance()
			}
			if p.cur().Type == ONLY {
				p.advance()
			}
			tree.Calls = append(tree.Calls, parsetree.Call{
				Method: "limit",
				Args:   []parsetree.Arg{{Raw: m.Literal, Value: &parsetree.NumberLit{Val: m.Literal}}},
				Pos:    callPos(m),
			})
		}
	}
	return nil
}

func (p *parser) parseExpr(prec int) (parsetree.Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.limits.MaxDepth {
		return nil, &types.ResourceLimitError{Kind: "nesting depth", Limit: p.limits.MaxDepth}
	}

	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		next := precedences[p.cur().Type]
		if next == 0 || prec >= next {
			return left, nil
		}
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) parsePrefix() (parsetree.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case IDENT:
		return p.parseIdentExpr()
	case NUMBER:
		p.advance()
		return &parsetree.NumberLit{Val: tok.Literal}, nil
	case STRING:
		p.advance()
		return &parsetree.StringLit{Val: tok.Literal}, nil
	case PARAM:
		p.advance()
		return &parsetree.Param{Name: tok.Literal}, nil
	case TRUE:
		p.advance()
		return &parsetree.BoolLit{Val: true}, nil
	case FALSE:
		p.advance()
		return &parsetree.BoolLit{Val: false}, nil
	case NULL:
		p.advance()
		return &parsetree.NullLit{}, nil
	case ASTERISK:
		p.advance()
		return &parsetree.StarExpr{}, nil
	case ROWNUM:
		p.advance()
		return &parsetree.Ident{Name: "rownum"}, nil
	case MINUS:
		p.advance()
		operand, err := p.parseExpr(precUnary)
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "-", Operand: operand}, nil
	case NOT:
		p.advance()
		operand, err := p.parseExpr(precNot)
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "NOT", Operand: operand}, nil
	case EXISTS:
		p.advance()
		if _, err := p.expect(LPAREN); err != nil {
			return nil, err
		}
		sub, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "EXISTS", Operand: &parsetree.SubqueryExpr{Tree: sub}}, nil
	case LPAREN:
		p.advance()
		if p.cur().Type == SELECT || p.cur().Type == WITH {
			sub, err := p.parseQuery()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return &parsetree.SubqueryExpr{Tree: sub}, nil
		}
		inner, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case CASE:
		return nil, &types.UnsupportedConstructError{
			Construct: "CASE expression",
			Position:  types.NewPosition(tok.Pos.Line, tok.Pos.Column),
			Essential: true,
		}
	default:
		return nil, p.syntaxError(tok, "expected expression")
	}
}

func (p *parser) parseIdentExpr() (parsetree.Expr, error) {
	name := p.cur()
	p.advance()

	if p.cur().Type == LPAREN {
		return p.parseFuncCall(name.Literal)
	}

	if p.cur().Type == DOT {
		p.advance()
		switch p.cur().Type {
		case ASTERISK:
			p.advance()
			return &parsetree.StarExpr{Qualifier: name.Literal}, nil
		case IDENT:
			attr := p.cur()
			p.advance()
			if p.cur().Type == DOT {
				return nil, p.syntaxError(p.cur(), "qualified name is too deep")
			}
			if p.cur().Type == LPAREN {
				return nil, p.syntaxError(p.cur(), "qualified function names are not supported")
			}
			return &parsetree.Ident{Qualifier: name.Literal, Name: attr.Literal}, nil
		default:
			return nil, p.syntaxError(p.cur(), "expected column name after '.'")
		}
	}

	return &parsetree.Ident{Name: name.Literal}, nil
}

func (p *parser) parseFuncCall(name string) (parsetree.Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	fn := parsetree.FuncExpr{Name: name}
	if p.cur().Type == DISTINCT {
		fn.Distinct = true
		p.advance()
	}
	switch p.cur().Type {
	case ASTERISK:
		fn.Star = true
		p.advance()
	case RPAREN:
	default:
		for {
			arg, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			fn.Args = append(fn.Args, arg)
			if p.cur().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if p.cur().Type == OVER {
		return p.parseWindow(fn)
	}
	return &fn, nil
}

func (p *parser) parseWindow(fn parsetree.FuncExpr) (parsetree.Expr, error) {
	p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	win := &parsetree.WindowExpr{Func: fn}
	if p.cur().Type == PARTITION {
		p.advance()
		if _, err := p.expect(BY); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			win.PartitionBy = append(win.PartitionBy, expr)
			if p.cur().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if p.cur().Type == ORDER {
		p.advance()
		if _, err := p.expect(BY); err != nil {
			return nil, err
		}
		terms, err := p.parseOrderTerms()
		if err != nil {
			return nil, err
		}
		for _, t := range terms {
			win.OrderBy = append(win.OrderBy, parsetree.OrderArg{Expr: t.Value, Desc: t.Desc})
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return win, nil
}

func (p *parser) parseInfix(left parsetree.Expr) (parsetree.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case EQ, NEQ, LT, GT, LTE, GTE, PLUS, MINUS, ASTERISK, SLASH, PERCENT, CONCAT, AND, OR, LIKE:
		op := string(tok.Type)
		prec := precedences[tok.Type]
		p.advance()
		right, err := p.parseExpr(prec)
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: op, Left: left, Right: right}, nil
	case IS:
		p.advance()
		op := "IS"
		if p.cur().Type == NOT {
			op = "IS NOT"
			p.advance()
		}
		if _, err := p.expect(NULL); err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: op, Left: left, Right: &parsetree.NullLit{}}, nil
	case IN:
		p.advance()
		right, err := p.parseInTarget()
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: "IN", Left: left, Right: right}, nil
	case BETWEEN:
		return p.parseBetween(left, false)
	case NOT:
		p.advance()
		switch p.cur().Type {
		case IN:
			p.advance()
			right, err := p.parseInTarget()
			if err != nil {
				return nil, err
			}
			return &parsetree.Binary{Op: "NOT IN", Left: left, Right: right}, nil
		case LIKE:
			p.advance()
			right, err := p.parseExpr(precCompare)
			if err != nil {
				return nil, err
			}
			return &parsetree.Binary{Op: "NOT LIKE", Left: left, Right: right}, nil
		case BETWEEN:
			return p.parseBetween(left, true)
		default:
			return nil, p.syntaxError(p.cur(), "expected IN, LIKE or BETWEEN after NOT")
		}
	default:
		return nil, p.syntaxError(tok, "unexpected operator")
	}
}

func (p *parser) parseInTarget() (parsetree.Expr, error) {
	// JPQL writes collection parameters without parentheses: IN :statuses.
	if p.cur().Type == PARAM {
		tok := p.cur()
		p.advance()
		return &parsetree.Param{Name: tok.Literal}, nil
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if p.cur().Type == SELECT || p.cur().Type == WITH {
		sub, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &parsetree.SubqueryExpr{Tree: sub}, nil
	}
	list := &parsetree.ArrayExpr{}
	for {
		item, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
		if p.cur().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return list, nil
}

// parseBetween lowers x BETWEEN a AND b into a >= / <= conjunction so the
// query model stays small.
func (p *parser) parseBetween(left parsetree.Expr, negated bool) (parsetree.Expr, error) {
	p.advance()
	lo, err := p.parseExpr(precAdditive)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(AND); err != nil {
		return nil, err
	}
	hi, err := p.parseExpr(precAdditive)
	if err != nil {
		return nil, err
	}
	rng := &parsetree.Binary{
		Op:    "AND",
		Left:  &parsetree.Binary{Op: ">=", Left: left, Right: lo},
		Right: &parsetree.Binary{Op: "<=", Left: left, Right: hi},
	}
	if negated {
		return &parsetree.Unary{Op: "NOT", Operand: rng}, nil
	}
	return rng, nil
}
