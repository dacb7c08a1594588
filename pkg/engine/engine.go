// Package engine drives translation: surface parsers produce call trees,
// registered framework strategies normalize them into the query model through
// per-method rule tables, and the same strategies render queries back out as
// fluent chains.
package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Framework is the strategy a registered ORM integration implements. Parse
// and the rule table cover the inbound direction, Emit the outbound one.
type Framework interface {
	// ID returns the framework this strategy handles.
	ID() types.FrameworkID
	// Parse reads framework source text into the shared call tree.
	Parse(source string, limits types.Limits) (*parsetree.Tree, error)
	// Bind seats the chain receiver on the builder before rules run.
	Bind(b *Builder, tree *parsetree.Tree) error
	// Rules returns the normalization table, keyed by surface method name.
	Rules() map[string]Rule
	// Emit renders a query as framework source text.
	Emit(q *ir.Query, env *Env) (string, error)
}

// Rule maps one surface method onto a query slot. A nil Apply marks
// execution-only methods that normalize to nothing.
type Rule struct {
	// Slot names the slot the method writes, for diagnostics.
	Slot catalog.Slot
	// Apply folds the parsed call into the builder.
	Apply func(b *Builder, call *parsetree.Call) error
}

var (
	frameworkMu sync.RWMutex
	frameworks  = make(map[types.FrameworkID]Framework)
)

// Register makes a framework strategy available by its id.
// If Register is called twice for the same id or if f is nil, it panics.
func Register(f Framework) {
	frameworkMu.Lock()
	defer frameworkMu.Unlock()
	if f == nil {
		panic("engine: Register framework is nil")
	}
	id := f.ID()
	if _, dup := frameworks[id]; dup {
		panic(fmt.Sprintf("engine: Register called twice for framework %v", id))
	}
	frameworks[id] = f
}

// Lookup returns the registered strategy for a framework.
func Lookup(id types.FrameworkID) (Framework, error) {
	frameworkMu.RLock()
	defer frameworkMu.RUnlock()
	f, ok := frameworks[id]
	if !ok {
		return nil, &types.UnknownTargetError{Kind: "framework", ID: string(id)}
	}
	return f, nil
}

// Normalize folds a framework call tree into a frozen query. Calls apply
// left to right; later calls override scalar slots and extend list slots.
func Normalize(f Framework, tree *parsetree.Tree, env *Env) (q *ir.Query, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panicErr, ok := panicErr.(error)
			if !ok {
				panicErr = errors.Errorf("%v", panicErr)
			}
			err = errors.Errorf("normalize PANIC RECOVER, framework: %v, err: %v", f.ID(), panicErr)
			slog.Error("normalize PANIC RECOVER", "error", panicErr)
		}
	}()

	b := newBuilder(f, env)
	if err := f.Bind(b, tree); err != nil {
		return nil, err
	}
	rules := f.Rules()
	for i := range tree.Calls {
		call := &tree.Calls[i]
		rule, known := rules[call.Method]
		if !known {
			env.Dropped(call.Pos, fmt.Sprintf("method %q", call.Method))
			continue
		}
		if rule.Apply == nil {
			continue
		}
		if err := rule.Apply(b, call); err != nil {
			return nil, err
		}
	}
	return b.Freeze()
}

// NormalizeSQL folds a SQL clause tree into a frozen query using the fixed
// clause rule table.
func NormalizeSQL(tree *parsetree.Tree, env *Env) (*ir.Query, error) {
	b := newBuilder(nil, env)
	if err := ApplyClauses(b, tree); err != nil {
		return nil, err
	}
	return b.Freeze()
}

// ApplyClauses folds a SQL-shaped clause tree into the builder. Entity-query
// surfaces reuse it for the statement inside a query string, on a builder
// whose framework then maps entity names onto tables.
func ApplyClauses(b *Builder, tree *parsetree.Tree) error {
	for i := range tree.Calls {
		call := &tree.Calls[i]
		rule, known := sqlRules[call.Method]
		if !known {
			b.Env.Dropped(call.Pos, fmt.Sprintf("clause %q", call.Method))
			continue
		}
		if err := rule(b, call); err != nil {
			return err
		}
	}
	return nil
}

// sqlRules maps the canonical clause names the SQL parser produces onto
// builder operations. Clause arguments arrive pre-parsed. Assigned in init to
// break the static initialization cycle through SetSourceSub -> NormalizeSQL
// -> ApplyClauses.
var sqlRules map[string]func(b *Builder, call *parsetree.Call) error

func init() {
	sqlRules = map[string]func(b *Builder, call *parsetree.Call) error{
		"with": func(b *Builder, call *parsetree.Call) error {
			a := call.Args[0]
			return b.AddCTE(a.Name, splitCols(a.Raw), a.Sub)
		},
		"distinct": func(b *Builder, _ *parsetree.Call) error {
			b.SetDistinct()
			return nil
		},
		"select": func(b *Builder, call *parsetree.Call) error {
			return b.Select(call.Args, true)
		},
		"from": func(b *Builder, call *parsetree.Call) error {
			a := call.Args[0]
			if a.Sub != nil {
				return b.SetSourceSub(a.Sub, a.Name)
			}
			if b.fw != nil {
				b.SetSourceModel(a.Table.Name, a.Table.Alias)
				return nil
			}
			b.SetSourceTable(a.Table.Name, a.Table.Alias)
			return nil
		},
		"join_inner": sqlJoin(ir.JoinInner),
		"join_left":  sqlJoin(ir.JoinLeft),
		"join_right": sqlJoin(ir.JoinRight),
		"join_full":  sqlJoin(ir.JoinFull),
		"join_cross": sqlJoin(ir.JoinInner),
		"where": func(b *Builder, call *parsetree.Call) error {
			return b.Where(call.Args[0].Value)
		},
		"group_by": func(b *Builder, call *parsetree.Call) error {
			return b.GroupBy(argValues(call.Args))
		},
		"having": func(b *Builder, call *parsetree.Call) error {
			return b.Having(call.Args[0].Value)
		},
		"order_by": func(b *Builder, call *parsetree.Call) error {
			return b.OrderBy(argOrders(call.Args), false)
		},
		"limit": func(b *Builder, call *parsetree.Call) error {
			n, err := IntArg(call)
			if err != nil {
				return err
			}
			b.SetLimit(n)
			return nil
		},
		"offset": func(b *Builder, call *parsetree.Call) error {
			n, err := IntArg(call)
			if err != nil {
				return err
			}
			b.SetOffset(n)
			return nil
		},
	}
}

func sqlJoin(kind ir.JoinKind) func(b *Builder, call *parsetree.Call) error {
	return func(b *Builder, call *parsetree.Call) error {
		target := call.Args[0]
		var cond parsetree.Expr
		if len(call.Args) > 1 {
			cond = call.Args[1].Value
		}
		if target.Sub != nil {
			return &types.UnsupportedConstructError{
				Construct: "join against a subquery",
				Position:  types.NewPosition(int(call.Pos.Line), int(call.Pos.Column)),
				Essential: true,
			}
		}
		if b.fw != nil {
			// Entity queries join association paths (c.orders o).
			if _, rel, ok := strings.Cut(target.Table.Name, "."); ok && cond == nil {
				return b.JoinRelation(kind, rel, target.Table.Alias, true)
			}
			return b.JoinModel(kind, target.Table.Name, target.Table.Alias, cond, true)
		}
		return b.Join(kind, target.Table.Name, target.Table.Alias, cond, true)
	}
}

// IntArg reads a call's single numeric argument.
func IntArg(call *parsetree.Call) (int, error) {
	if len(call.Args) != 1 {
		return 0, &types.SyntaxError{Msg: fmt.Sprintf("%s takes exactly one number", call.Method)}
	}
	return IntValue(call.Args[0].Value, call.Method)
}

// IntValue narrows a parsed expression to an integer literal.
func IntValue(e parsetree.Expr, what string) (int, error) {
	neg := false
	if u, ok := e.(*parsetree.Unary); ok && u.Op == "-" {
		neg = true
		e = u.Operand
	}
	num, ok := e.(*parsetree.NumberLit)
	if !ok {
		return 0, &types.SyntaxError{Msg: fmt.Sprintf("%s takes an integer literal", what)}
	}
	n, err := strconv.Atoi(num.Val)
	if err != nil {
		return 0, &types.SyntaxError{Token: num.Val, Msg: fmt.Sprintf("%s takes an integer literal", what)}
	}
	if neg {
		n = -n
	}
	return n, nil
}

func argValues(args []parsetree.Arg) []parsetree.Expr {
	out := make([]parsetree.Expr, 0, len(args))
	for _, a := range args {
		out = append(out, a.Value)
	}
	return out
}

func argOrders(args []parsetree.Arg) []parsetree.OrderArg {
	out := make([]parsetree.OrderArg, 0, len(args))
	for _, a := range args {
		out = append(out, parsetree.OrderArg{Expr: a.Value, Desc: a.Desc})
	}
	return out
}

func splitCols(csv string) []string {
	if csv == "" {
		return nil
	}
	var cols []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if col := csv[start:i]; col != "" {
				cols = append(cols, col)
			}
			start = i + 1
		}
	}
	return cols
}
