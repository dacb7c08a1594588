// Package analyzer inspects normalized queries for performance risks: N+1
// access patterns, joins without eager loads, cartesian products and missing
// indexes. Rules register themselves and run in code order. Findings are
// advisory; analysis never fails a translation.
package analyzer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Context carries the inputs a rule may consult. Schema and Usage are
// optional; rules that need them report nothing when they are absent.
type Context struct {
	Query  *ir.Query
	Schema *types.SchemaSnapshot
	Usage  *types.UsageContext
}

// Rule is one registered heuristic.
type Rule interface {
	// Name identifies the rule in logs.
	Name() string
	// Code is the diagnostic code the rule reports under. Rules run in
	// ascending code order.
	Code() types.Code
	// Check inspects the query and reports findings.
	Check(checkCtx Context) ([]types.Diagnostic, error)
}

var (
	ruleMu sync.RWMutex
	rules  []Rule
)

// Register makes a rule part of every analysis run.
// If Register is called twice with the same name or if r is nil, it panics.
func Register(r Rule) {
	ruleMu.Lock()
	defer ruleMu.Unlock()
	if r == nil {
		panic("analyzer: Register rule is nil")
	}
	for _, existing := range rules {
		if existing.Name() == r.Name() {
			panic(fmt.Sprintf("analyzer: Register called twice for rule %v", r.Name()))
		}
	}
	rules = append(rules, r)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Code() < rules[j].Code() })
}

// Rules returns the registered rules in execution order.
func Rules() []Rule {
	ruleMu.RLock()
	defer ruleMu.RUnlock()
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Analyze runs every registered rule against the query. A failing or
// panicking rule drops only its own findings; the others still report.
func Analyze(q *ir.Query, schema *types.SchemaSnapshot, usage *types.UsageContext) []types.Diagnostic {
	ruleMu.RLock()
	defer ruleMu.RUnlock()
	checkCtx := Context{Query: q, Schema: schema, Usage: usage}
	var out []types.Diagnostic
	for _, r := range rules {
		diags, err := runRule(r, checkCtx)
		if err != nil {
			slog.Error("analyzer rule failed", "rule", r.Name(), "error", err)
			continue
		}
		out = append(out, diags...)
	}
	return out
}

func runRule(r Rule, checkCtx Context) (diags []types.Diagnostic, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panicErr, ok := panicErr.(error)
			if !ok {
				panicErr = errors.Errorf("%v", panicErr)
			}
			err = errors.Errorf("analyze PANIC RECOVER, rule: %v, err: %v", r.Name(), panicErr)
			slog.Error("analyze PANIC RECOVER", "error", panicErr)
		}
	}()
	return r.Check(checkCtx)
}

// relationName derives the accessor a framework would use for a join target:
// the trimmed foreign-key column for a to-one relation, the collection name
// otherwise.
func relationName(q *ir.Query, j ir.Join) string {
	if cond, ok := j.Condition.(*ir.BinaryOp); ok && cond.Op == "=" {
		lc, lok := cond.Left.(*ir.Column)
		rc, rok := cond.Right.(*ir.Column)
		if lok && rok {
			srcCol := lc
			if strings.EqualFold(lc.Table, j.Target.Binding()) {
				srcCol = rc
			}
			if name, found := strings.CutSuffix(srcCol.Name, "_id"); found && strings.EqualFold(srcCol.Table, q.Source.Binding()) {
				return strings.ToLower(name)
			}
		}
	}
	return strings.ToLower(j.Target.Name)
}

// relationNames lists every spelling under which a join's target can be
// dereferenced, for matching against usage paths.
func relationNames(q *ir.Query, j ir.Join) []string {
	seen := map[string]bool{}
	var names []string
	for _, name := range []string{
		strings.ToLower(j.Target.Name),
		strings.ToLower(catalog.Singular(j.Target.Name)),
		relationName(q, j),
	} {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
