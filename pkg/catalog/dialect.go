// Package catalog holds the static capability tables for SQL dialects and
// ORM frameworks: pure, immutable data with no behavior beyond lookup and
// the identifier transforms the emitters share.
package catalog

import (
	"strings"

	"github.com/nsxbet/querybridge/pkg/types"
)

// LimitSyntax selects how a dialect renders row limiting.
type LimitSyntax string

const (
	// LimitOffset renders LIMIT m OFFSET n.
	LimitOffset LimitSyntax = "limit-offset"
	// Top renders TOP n inside SELECT when no offset is present, and falls
	// back to OFFSET/FETCH when one is.
	Top LimitSyntax = "top"
	// Rownum renders a ROWNUM predicate when no offset is present, and falls
	// back to OFFSET/FETCH when one is.
	Rownum LimitSyntax = "rownum"
	// OffsetFetch renders OFFSET n ROWS FETCH NEXT m ROWS ONLY.
	OffsetFetch LimitSyntax = "offset-fetch"
)

// ConcatStyle selects how a dialect concatenates strings.
type ConcatStyle string

const (
	// ConcatOperator joins with an infix operator (|| or +).
	ConcatOperator ConcatStyle = "operator"
	// ConcatFunction joins with CONCAT(...).
	ConcatFunction ConcatStyle = "function"
)

// Dialect describes the syntax rules of one SQL dialect.
type Dialect struct {
	ID           types.DialectID
	LimitSyntax  LimitSyntax
	TrueLiteral  string
	FalseLiteral string
	ConcatStyle  ConcatStyle
	ConcatOp     string
	QuoteOpen    string
	QuoteClose   string
}

// BoolLiteral renders a boolean constant.
func (d *Dialect) BoolLiteral(v bool) string {
	if v {
		return d.TrueLiteral
	}
	return d.FalseLiteral
}

// QuoteIdentifier always wraps name in the dialect's identifier quotes,
// escaping embedded closing quotes by doubling.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.QuoteClose, d.QuoteClose+d.QuoteClose)
	return d.QuoteOpen + escaped + d.QuoteClose
}

// MaybeQuote quotes name only when it needs quoting: reserved word, leading
// digit, or characters outside the plain identifier set.
func (d *Dialect) MaybeQuote(name string) string {
	if name == "*" || name == "" {
		return name
	}
	if needsQuoting(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"having": true, "join": true, "on": true, "as": true, "and": true,
	"or": true, "not": true, "in": true, "is": true, "null": true,
	"like": true, "limit": true, "offset": true, "by": true, "desc": true,
	"asc": true, "distinct": true, "with": true, "union": true, "all": true,
	"user": true, "table": true, "column": true, "index": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "between": true,
}

func needsQuoting(name string) bool {
	if reservedWords[strings.ToLower(name)] {
		return true
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

var dialects = map[types.DialectID]*Dialect{
	types.DialectPostgreSQL: {
		ID:           types.DialectPostgreSQL,
		LimitSyntax:  LimitOffset,
		TrueLiteral:  "TRUE",
		FalseLiteral: "FALSE",
		ConcatStyle:  ConcatOperator,
		ConcatOp:     "||",
		QuoteOpen:    `"`,
		QuoteClose:   `"`,
	},
	types.DialectMySQL: {
		ID:           types.DialectMySQL,
		LimitSyntax:  LimitOffset,
		TrueLiteral:  "TRUE",
		FalseLiteral: "FALSE",
		ConcatStyle:  ConcatFunction,
		ConcatOp:     "",
		QuoteOpen:    "`",
		QuoteClose:   "`",
	},
	types.DialectSQLite: {
		ID:           types.DialectSQLite,
		LimitSyntax:  LimitOffset,
		TrueLiteral:  "1",
		FalseLiteral: "0",
		ConcatStyle:  ConcatOperator,
		ConcatOp:     "||",
		QuoteOpen:    `"`,
		QuoteClose:   `"`,
	},
	types.DialectSQLServer: {
		ID:           types.DialectSQLServer,
		LimitSyntax:  Top,
		TrueLiteral:  "1",
		FalseLiteral: "0",
		ConcatStyle:  ConcatOperator,
		ConcatOp:     "+",
		QuoteOpen:    "[",
		QuoteClose:   "]",
	},
	types.DialectOracle: {
		ID:           types.DialectOracle,
		LimitSyntax:  Rownum,
		TrueLiteral:  "1",
		FalseLiteral: "0",
		ConcatStyle:  ConcatOperator,
		ConcatOp:     "||",
		QuoteOpen:    `"`,
		QuoteClose:   `"`,
	},
}

// ForDialect returns the catalog entry for id.
func ForDialect(id types.DialectID) (*Dialect, error) {
	d, ok := dialects[id]
	if !ok {
		return nil, &types.UnknownTargetError{Kind: "dialect", ID: string(id)}
	}
	return d, nil
}
