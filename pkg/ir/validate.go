package ir

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/types"
)

// ValidationError reports a query that breaks a structural invariant. It is
// distinct from the reference errors: the shape itself is wrong, not a name.
type ValidationError struct {
	Msg string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid query: " + e.Msg
}

// Validate enforces the structural invariants on a normalized query:
// non-negative limit and offset, HAVING only with GROUP BY, GROUP BY covering
// every non-aggregated projection, columns resolving against accumulated
// scope, no forward join references, and CTEs referencing only earlier CTEs.
func Validate(q *Query) error {
	return validateQuery(q, map[string]bool{})
}

func validateQuery(q *Query, outer map[string]bool) error {
	if q == nil {
		return &ValidationError{Msg: "empty query"}
	}
	if q.Limit != nil && *q.Limit < 0 {
		return &ValidationError{Msg: fmt.Sprintf("limit must be non-negative, got %d", *q.Limit)}
	}
	if q.Offset != nil && *q.Offset < 0 {
		return &ValidationError{Msg: fmt.Sprintf("offset must be non-negative, got %d", *q.Offset)}
	}
	if q.Having != nil && len(q.GroupBy) == 0 {
		return &ValidationError{Msg: "HAVING requires GROUP BY"}
	}

	scope := make(map[string]bool, len(outer)+len(q.CTEs)+len(q.Joins)+1)
	for k := range outer {
		scope[k] = true
	}

	for i := range q.CTEs {
		cte := &q.CTEs[i]
		if err := validateQuery(cte.Query, scope); err != nil {
			return err
		}
		if name, ok := referencesLaterCTE(cte.Query, q.CTEs, i); ok {
			return &ValidationError{
				Msg: fmt.Sprintf("CTE %q references %q, which is defined after it", cte.Name, name),
			}
		}
		scope[strings.ToLower(cte.Name)] = true
	}

	if q.Source.IsSubquery() {
		if err := validateQuery(q.Source.Sub, scope); err != nil {
			return err
		}
	}
	if b := q.Source.Binding(); b != "" {
		scope[strings.ToLower(b)] = true
		if q.Source.Alias != "" {
			scope[strings.ToLower(q.Source.Name)] = true
		}
	}

	for i := range q.Joins {
		j := &q.Joins[i]
		scope[strings.ToLower(j.Target.Binding())] = true
		if j.Target.Alias != "" {
			scope[strings.ToLower(j.Target.Name)] = true
		}
		if j.Condition != nil {
			if err := checkScope(j.Condition, scope); err != nil {
				return err
			}
		}
	}

	for i := range q.SelectList {
		if err := checkScope(q.SelectList[i].Expr, scope); err != nil {
			return err
		}
	}
	if q.Filter != nil {
		if err := checkScope(q.Filter, scope); err != nil {
			return err
		}
	}
	for _, g := range q.GroupBy {
		if err := checkScope(g, scope); err != nil {
			return err
		}
	}
	if q.Having != nil {
		if err := checkScope(q.Having, scope); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if err := checkScope(o.Expr, scope); err != nil {
			return err
		}
	}

	return checkGrouping(q)
}

// checkScope verifies that every qualified column names a table binding in
// scope. Unqualified columns are accepted: without a full schema there is
// nothing to resolve them against. Subqueries validate recursively with the
// enclosing scope visible, so correlated references work.
func checkScope(e Expr, scope map[string]bool) error {
	switch v := e.(type) {
	case *Column:
		if v.Table != "" && !scope[strings.ToLower(v.Table)] {
			return &types.UnresolvedReferenceError{Name: v.Table + "." + v.Name}
		}
	case *BinaryOp:
		if v.Left != nil {
			if err := checkScope(v.Left, scope); err != nil {
				return err
			}
		}
		if v.Right != nil {
			if err := checkScope(v.Right, scope); err != nil {
				return err
			}
		}
	case *FunctionCall:
		for _, a := range v.Args {
			if err := checkScope(a, scope); err != nil {
				return err
			}
		}
	case *Subquery:
		return validateQuery(v.Query, scope)
	case *WindowCall:
		for _, a := range v.Func.Args {
			if err := checkScope(a, scope); err != nil {
				return err
			}
		}
		for _, p := range v.PartitionBy {
			if err := checkScope(p, scope); err != nil {
				return err
			}
		}
		for _, o := range v.OrderBy {
			if err := checkScope(o.Expr, scope); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkGrouping(q *Query) error {
	if len(q.GroupBy) == 0 {
		return nil
	}
	grouped := make(map[string]bool, len(q.GroupBy))
	for _, g := range q.GroupBy {
		grouped[Key(g)] = true
	}
	for _, p := range q.SelectList {
		if ContainsAggregate(p.Expr) {
			continue
		}
		if col, ok := p.Expr.(*Column); ok && col.Name == "*" {
			return &ValidationError{Msg: "star projection cannot be combined with GROUP BY"}
		}
		if grouped[Key(p.Expr)] {
			continue
		}
		// An unqualified projection still matches a qualified group key of
		// the same column name, and vice versa.
		if col, ok := p.Expr.(*Column); ok && groupedByName(q.GroupBy, col.Name) {
			continue
		}
		return &ValidationError{
			Msg: fmt.Sprintf("projection %s must appear in GROUP BY or be aggregated", DisplayString(p.Expr)),
		}
	}
	return nil
}

func groupedByName(groupBy []Expr, name string) bool {
	for _, g := range groupBy {
		if col, ok := g.(*Column); ok && strings.EqualFold(col.Name, name) {
			return true
		}
	}
	return false
}

// referencesLaterCTE reports whether the query references any CTE defined at
// or after position idx in ctes.
func referencesLaterCTE(q *Query, ctes []CTE, idx int) (string, bool) {
	later := make(map[string]bool)
	for i := idx; i < len(ctes); i++ {
		later[strings.ToLower(ctes[i].Name)] = true
	}
	for _, name := range sourceNames(q) {
		if later[strings.ToLower(name)] {
			return name, true
		}
	}
	return "", false
}

func sourceNames(q *Query) []string {
	if q == nil {
		return nil
	}
	var out []string
	if q.Source.Name != "" {
		out = append(out, q.Source.Name)
	}
	if q.Source.IsSubquery() {
		out = append(out, sourceNames(q.Source.Sub)...)
	}
	for _, j := range q.Joins {
		out = append(out, j.Target.Name)
	}
	return out
}
