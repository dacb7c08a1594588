// Package parsetree defines the intermediate form every surface parser
// produces and the normalizer consumes: an ordered list of calls, each a
// method or clause name plus its argument payload in raw and parsed form.
// ORM chains map onto it one fluent call per entry; SQL statements map onto
// it one clause per entry.
package parsetree

import "github.com/nsxbet/querybridge/pkg/types"

// Tree is the parsed surface program.
type Tree struct {
	// Surface records which parser produced the tree, for diagnostics.
	Surface string
	// Receiver is the dotted prefix a fluent chain hangs off
	// (session, Customer.objects, prisma.customer). Empty for SQL.
	Receiver string
	Calls    []Call
}

// Call is one chain method or SQL clause in declaration order.
type Call struct {
	// Method is the canonical lower-case method or clause name.
	Method string
	// RawArgs preserves the argument text verbatim.
	RawArgs string
	// Bare marks attribute access without parentheses (prisma.user).
	Bare bool
	Args []Arg
	Pos  types.Position
}

// Arg is one parsed argument of a call. Exactly one payload field is set
// besides Name; Raw is always available as a fallback.
type Arg struct {
	// Name is the keyword-argument or object-key name when present.
	Name string
	// Raw is the verbatim text of the argument.
	Raw string
	// Value is the parsed expression payload.
	Value Expr
	// Sub is a nested chain or query payload (subqueries, CTE bodies).
	Sub *Tree
	// Table is a table or model reference payload.
	Table *TableArg
	// Desc is the sort direction payload for order terms.
	Desc bool
}

// TableArg is a table or model reference with optional alias.
type TableArg struct {
	Name  string
	Alias string
}

// Find returns the first call with the given method name, or nil.
func (t *Tree) Find(method string) *Call {
	for i := range t.Calls {
		if t.Calls[i].Method == method {
			return &t.Calls[i]
		}
	}
	return nil
}
