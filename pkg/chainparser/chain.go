// Package chainparser parses fluent ORM chains. The chain splitter captures
// the receiver and each call with its argument text verbatim; targeted
// sub-grammars then parse individual arguments on demand, so each framework
// only pays for the argument shapes it actually uses.
package chainparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Parse splits a fluent chain into its receiver and ordered calls. Argument
// text is captured verbatim, balanced across brackets and string literals.
func Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	limits = limits.Normalize()
	src := strings.TrimSpace(source)
	src = strings.TrimSuffix(src, ";")
	for _, prefix := range []string{"await ", "return "} {
		src = strings.TrimSpace(strings.TrimPrefix(src, prefix))
	}
	if src == "" {
		return nil, &types.SyntaxError{Msg: "empty input"}
	}

	c := newCursor(src)
	tree := &parsetree.Tree{Surface: "chain"}

	// Receiver: dotted identifiers up to the first called segment.
	var recv []string
	for {
		c.skipSpace()
		name, pos, ok := c.readIdent()
		if !ok {
			return nil, c.errHere("expected identifier")
		}
		c.skipSpace()
		if c.ch() == '(' {
			if err := appendCall(tree, c, name, pos, limits); err != nil {
				return nil, err
			}
			break
		}
		recv = append(recv, name)
		if c.ch() != '.' {
			break
		}
		c.next()
	}
	tree.Receiver = strings.Join(recv, ".")

	for {
		c.skipSpace()
		switch c.ch() {
		case '.':
			c.next()
			c.skipSpace()
			name, pos, ok := c.readIdent()
			if !ok {
				return nil, c.errHere("expected method name after '.'")
			}
			c.skipSpace()
			if c.ch() == '(' {
				if err := appendCall(tree, c, name, pos, limits); err != nil {
					return nil, err
				}
			} else {
				tree.Calls = append(tree.Calls, parsetree.Call{Method: name, Bare: true, Pos: pos})
			}
		case '[':
			pos := c.pos()
			raw, err := c.captureBalanced('[', ']')
			if err != nil {
				return nil, err
			}
			tree.Calls = append(tree.Calls, parsetree.Call{
				Method:  "slice",
				RawArgs: strings.TrimSpace(raw),
				Pos:     pos,
			})
		case 0:
			return tree, nil
		default:
			return nil, c.errHere("unexpected character in chain")
		}
	}
}

func appendCall(tree *parsetree.Tree, c *cursor, name string, pos types.Position, limits types.Limits) error {
	raw, err := c.captureBalanced('(', ')')
	if err != nil {
		return err
	}
	if len(tree.Calls) >= limits.MaxCalls {
		return &types.ResourceLimitError{Kind: "calls", Limit: limits.MaxCalls}
	}
	tree.Calls = append(tree.Calls, parsetree.Call{
		Method:  name,
		RawArgs: strings.TrimSpace(raw),
		Pos:     pos,
	})
	return nil
}

// ParseSlice reads a Python slice body ("10:20", ":20", "10:") into offset
// and bound. The bound is the slice end, not a count.
func ParseSlice(raw string) (lo, hi *int, err error) {
	before, after, found := strings.Cut(raw, ":")
	if !found {
		return nil, nil, &types.SyntaxError{Token: raw, Msg: "expected a slice of the form start:stop"}
	}
	if s := strings.TrimSpace(before); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, nil, &types.SyntaxError{Token: s, Msg: "slice start must be a non-negative integer"}
		}
		lo = &n
	}
	if s := strings.TrimSpace(after); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, nil, &types.SyntaxError{Token: s, Msg: "slice stop must be a non-negative integer"}
		}
		hi = &n
	}
	return lo, hi, nil
}

type cursor struct {
	src  []rune
	i    int
	line int
	col  int
}

func newCursor(src string) *cursor {
	return &cursor{src: []rune(src), line: 1, col: 1}
}

func (c *cursor) ch() rune {
	if c.i >= len(c.src) {
		return 0
	}
	return c.src[c.i]
}

func (c *cursor) next() {
	if c.i >= len(c.src) {
		return
	}
	if c.src[c.i] == '\n' {
		c.line++
		c.col = 1
	} else {
		c.col++
	}
	c.i++
}

func (c *cursor) pos() types.Position {
	return types.Position{Line: int32(c.line), Column: int32(c.col)}
}

func (c *cursor) skipSpace() {
	for c.ch() == ' ' || c.ch() == '\t' || c.ch() == '\n' || c.ch() == '\r' {
		c.next()
	}
}

func (c *cursor) readIdent() (string, types.Position, bool) {
	pos := c.pos()
	if !isChainIdentStart(c.ch()) {
		return "", pos, false
	}
	var b strings.Builder
	for isChainIdentPart(c.ch()) {
		b.WriteRune(c.ch())
		c.next()
	}
	return b.String(), pos, true
}

// captureBalanced consumes an open bracket and returns everything up to its
// matching close, nesting all bracket kinds and skipping string literals.
func (c *cursor) captureBalanced(open, close rune) (string, error) {
	if c.ch() != open {
		return "", c.errHere(fmt.Sprintf("expected %q", open))
	}
	c.next()
	start := c.i
	depth := 0
	for {
		ch := c.ch()
		switch ch {
		case 0:
			return "", c.errHere("unterminated argument list")
		case '\'', '"', '`':
			if err := c.skipString(ch); err != nil {
				return "", err
			}
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				if ch != close {
					return "", c.errHere("mismatched bracket")
				}
				text := string(c.src[start:c.i])
				c.next()
				return text, nil
			}
			depth--
		}
		c.next()
	}
}

func (c *cursor) skipString(quote rune) error {
	c.next()
	for {
		switch c.ch() {
		case 0:
			return c.errHere("unterminated string")
		case '\\':
			c.next()
			c.next()
		case quote:
			c.next()
			return nil
		default:
			c.next()
		}
	}
}

func (c *cursor) errHere(msg string) error {
	return &types.SyntaxError{Position: types.NewPosition(c.line, c.col), Msg: msg}
}

func isChainIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isChainIdentPart(ch rune) bool {
	return isChainIdentStart(ch) || (ch >= '0' && ch <= '9')
}
