package chainparser

import (
	"strings"

	"github.com/nsxbet/querybridge/pkg/types"
)

type scanKind int

const (
	kindEOF scanKind = iota
	kindIdent
	kindNumber
	kindString
	kindOp
)

type scanToken struct {
	kind scanKind
	text string
	line int
	col  int
	// off is the token's starting rune offset in the fragment.
	off int
}

// scanConfig adapts the scanner to one host-language argument grammar.
type scanConfig struct {
	// ops holds the punctuation and operator spellings, longest first.
	ops []string
	// quotes holds the accepted string delimiters.
	quotes string
}

var pythonScan = scanConfig{
	ops: []string{
		"==", "!=", "<=", ">=", "**",
		"(", ")", "[", "]", "{", "}", ".", ",", ":", "=",
		"<", ">", "+", "-", "*", "/", "%", "~", "&", "|",
	},
	quotes: `'"`,
}

var csharpScan = scanConfig{
	ops: []string{
		"=>", "==", "!=", "<=", ">=", "&&", "||",
		"(", ")", "{", "}", ".", ",", "=",
		"<", ">", "+", "-", "*", "/", "%", "!",
	},
	quotes: `"`,
}

var jsScan = scanConfig{
	ops: []string{
		"===", "!==", "=>", "==", "!=", "<=", ">=", "&&", "||",
		"(", ")", "[", "]", "{", "}", ".", ",", ":", "=",
		"<", ">", "+", "-", "*", "/", "%", "!", "?",
	},
	quotes: "'\"`",
}

// scanAll tokenizes a fragment under one grammar's config, enforcing the
// token budget up front.
func scanAll(src string, cfg scanConfig, limits types.Limits) ([]scanToken, error) {
	c := newCursor(src)
	var toks []scanToken
	for {
		c.skipSpace()
		line, col, off := c.line, c.col, c.i
		ch := c.ch()
		if ch == 0 {
			toks = append(toks, scanToken{kind: kindEOF, line: line, col: col, off: off})
			return toks, nil
		}

		var tok scanToken
		switch {
		case strings.ContainsRune(cfg.quotes, ch):
			text, err := c.readQuoted(ch)
			if err != nil {
				return nil, err
			}
			tok = scanToken{kind: kindString, text: text, line: line, col: col, off: off}
		case isChainIdentStart(ch):
			name, _, _ := c.readIdent()
			tok = scanToken{kind: kindIdent, text: name, line: line, col: col, off: off}
		case ch >= '0' && ch <= '9':
			tok = scanToken{kind: kindNumber, text: c.readNumber(), line: line, col: col, off: off}
		default:
			op, ok := c.readOp(cfg.ops)
			if !ok {
				return nil, c.errHere("unexpected character")
			}
			tok = scanToken{kind: kindOp, text: op, line: line, col: col, off: off}
		}
		toks = append(toks, tok)
		if len(toks) > limits.MaxTokens {
			return nil, &types.ResourceLimitError{Kind: "tokens", Limit: limits.MaxTokens}
		}
	}
}

// readQuoted consumes a string literal and returns the unescaped contents.
func (c *cursor) readQuoted(quote rune) (string, error) {
	c.next()
	var b strings.Builder
	for {
		switch ch := c.ch(); ch {
		case 0:
			return "", c.errHere("unterminated string")
		case '\\':
			c.next()
			switch e := c.ch(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 0:
				return "", c.errHere("unterminated string")
			default:
				b.WriteRune(e)
			}
			c.next()
		case quote:
			c.next()
			return b.String(), nil
		default:
			b.WriteRune(ch)
			c.next()
		}
	}
}

func (c *cursor) readNumber() string {
	var b strings.Builder
	for c.ch() >= '0' && c.ch() <= '9' {
		b.WriteRune(c.ch())
		c.next()
	}
	if c.ch() == '.' && c.i+1 < len(c.src) && c.src[c.i+1] >= '0' && c.src[c.i+1] <= '9' {
		b.WriteRune('.')
		c.next()
		for c.ch() >= '0' && c.ch() <= '9' {
			b.WriteRune(c.ch())
			c.next()
		}
	}
	return b.String()
}

func (c *cursor) readOp(ops []string) (string, bool) {
	rest := c.src[c.i:]
	for _, op := range ops {
		rs := []rune(op)
		if len(rs) > len(rest) {
			continue
		}
		match := true
		for j, r := range rs {
			if rest[j] != r {
				match = false
				break
			}
		}
		if match {
			for range rs {
				c.next()
			}
			return op, true
		}
	}
	return "", false
}

// tokenParser is the shared cursor the sub-grammar parsers walk.
type tokenParser struct {
	src    []rune
	toks   []scanToken
	i      int
	limits types.Limits
	depth  int
}

func newTokenParser(src string, cfg scanConfig, limits types.Limits) (*tokenParser, error) {
	limits = limits.Normalize()
	toks, err := scanAll(src, cfg, limits)
	if err != nil {
		return nil, err
	}
	return &tokenParser{src: []rune(src), toks: toks, limits: limits}, nil
}

func (p *tokenParser) cur() scanToken {
	return p.toks[p.i]
}

func (p *tokenParser) peek() scanToken {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *tokenParser) advance() {
	if p.i < len(p.toks)-1 {
		p.i++
	}
}

// rawSince recovers the verbatim fragment between a start offset and the
// current token.
func (p *tokenParser) rawSince(startOff int) string {
	end := p.cur().off
	if end < startOff {
		end = startOff
	}
	return strings.TrimSpace(string(p.src[startOff:end]))
}

func (p *tokenParser) atOp(text string) bool {
	t := p.cur()
	return t.kind == kindOp && t.text == text
}

func (p *tokenParser) eatOp(text string) bool {
	if p.atOp(text) {
		p.advance()
		return true
	}
	return false
}

func (p *tokenParser) expectOp(text string) error {
	if !p.eatOp(text) {
		return p.errAt(p.cur(), "expected "+text)
	}
	return nil
}

func (p *tokenParser) atIdent(text string) bool {
	t := p.cur()
	return t.kind == kindIdent && t.text == text
}

func (p *tokenParser) expectIdent() (scanToken, error) {
	t := p.cur()
	if t.kind != kindIdent {
		return t, p.errAt(t, "expected identifier")
	}
	p.advance()
	return t, nil
}

func (p *tokenParser) atEnd() bool {
	return p.cur().kind == kindEOF
}

// enter guards recursion depth; every call must be paired with leave.
func (p *tokenParser) enter() error {
	p.depth++
	if p.depth > p.limits.MaxDepth {
		return &types.ResourceLimitError{Kind: "nesting depth", Limit: p.limits.MaxDepth}
	}
	return nil
}

func (p *tokenParser) leave() {
	p.depth--
}

func (p *tokenParser) errAt(t scanToken, msg string) error {
	return &types.SyntaxError{
		Token:    t.text,
		Position: types.NewPosition(t.line, t.col),
		Msg:      msg,
	}
}
