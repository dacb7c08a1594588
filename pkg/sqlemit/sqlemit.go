// Package sqlemit renders the neutral query model as SQL text for one of the
// cataloged dialects. Emission is deterministic: the same query value always
// yields byte-identical text. All dialect variance is read from the catalog
// entry; control flow branches only on the limit syntax and the quoting rules.
package sqlemit

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Emit renders q as a single SELECT statement, without a trailing semicolon.
func Emit(q *ir.Query, dialect types.DialectID) (string, error) {
	d, err := catalog.ForDialect(dialect)
	if err != nil {
		return "", err
	}
	e := &emitter{d: d}
	return e.query(q)
}

type emitter struct {
	d *catalog.Dialect
}

func (e *emitter) query(q *ir.Query) (string, error) {
	var sb strings.Builder

	if len(q.CTEs) > 0 {
		sb.WriteString("WITH ")
		for i, cte := range q.CTEs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.d.MaybeQuote(cte.Name))
			if len(cte.Columns) > 0 {
				quoted := make([]string, len(cte.Columns))
				for j, c := range cte.Columns {
					quoted[j] = e.d.MaybeQuote(c)
				}
				sb.WriteString(" (" + strings.Join(quoted, ", ") + ")")
			}
			inner, err := e.query(cte.Query)
			if err != nil {
				return "", err
			}
			sb.WriteString(" AS (" + inner + ")")
		}
		sb.WriteString(" ")
	}

	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if e.d.LimitSyntax == catalog.Top && q.Limit != nil && q.Offset == nil {
		fmt.Fprintf(&sb, "TOP %d ", *q.Limit)
	}
	items := make([]string, len(q.SelectList))
	for i, p := range q.SelectList {
		rendered, err := e.expr(p.Expr)
		if err != nil {
			return "", err
		}
		if p.Alias != "" {
			rendered += " AS " + e.d.MaybeQuote(p.Alias)
		}
		items[i] = rendered
	}
	sb.WriteString(strings.Join(items, ", "))

	from, err := e.source(q.Source)
	if err != nil {
		return "", err
	}
	if from != "" {
		sb.WriteString(" FROM " + from)
	}

	for _, j := range q.Joins {
		rendered, err := e.join(j)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + rendered)
	}

	where, err := e.whereClause(q)
	if err != nil {
		return "", err
	}
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}

	if len(q.GroupBy) > 0 {
		keys := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			if keys[i], err = e.expr(g); err != nil {
				return "", err
			}
		}
		sb.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}

	if q.Having != nil {
		rendered, err := e.expr(q.Having)
		if err != nil {
			return "", err
		}
		sb.WriteString(" HAVING " + rendered)
	}

	orderBy, err := e.orderClause(q.OrderBy)
	if err != nil {
		return "", err
	}
	if orderBy == "" && e.needsOrderForOffset(q) {
		// T-SQL refuses OFFSET/FETCH without an ORDER BY clause.
		orderBy = "(SELECT NULL)"
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY " + orderBy)
	}

	sb.WriteString(e.limitClause(q))
	return sb.String(), nil
}

func (e *emitter) source(s ir.Source) (string, error) {
	if s.IsSubquery() {
		inner, err := e.query(s.Sub)
		if err != nil {
			return "", err
		}
		out := "(" + inner + ")"
		if s.Alias != "" {
			out += " " + e.d.MaybeQuote(s.Alias)
		}
		return out, nil
	}
	if s.Name == "" {
		return "", nil
	}
	out := e.d.MaybeQuote(s.Name)
	if s.Alias != "" {
		out += " " + e.d.MaybeQuote(s.Alias)
	}
	return out, nil
}

func (e *emitter) join(j ir.Join) (string, error) {
	target := e.d.MaybeQuote(j.Target.Name)
	if j.Target.Alias != "" {
		target += " " + e.d.MaybeQuote(j.Target.Alias)
	}
	if j.Condition == nil {
		return "CROSS JOIN " + target, nil
	}
	cond, err := e.expr(j.Condition)
	if err != nil {
		return "", err
	}
	return string(j.Kind) + " JOIN " + target + " ON " + cond, nil
}

// whereClause renders the filter, folding in the ROWNUM bound for dialects
// that page that way when no offset is requested.
func (e *emitter) whereClause(q *ir.Query) (string, error) {
	var cond string
	if q.Filter != nil {
		rendered, err := e.expr(q.Filter)
		if err != nil {
			return "", err
		}
		cond = rendered
	}
	if e.d.LimitSyntax == catalog.Rownum && q.Limit != nil && q.Offset == nil {
		bound := fmt.Sprintf("ROWNUM <= %d", *q.Limit)
		if cond == "" {
			return bound, nil
		}
		if op, ok := q.Filter.(*ir.BinaryOp); ok && op.Op == "OR" {
			cond = "(" + cond + ")"
		}
		return cond + " AND " + bound, nil
	}
	return cond, nil
}

func (e *emitter) orderClause(terms []ir.OrderTerm) (string, error) {
	if len(terms) == 0 {
		return "", nil
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		rendered, err := e.expr(t.Expr)
		if err != nil {
			return "", err
		}
		if t.Desc {
			rendered += " DESC"
		}
		parts[i] = rendered
	}
	return strings.Join(parts, ", "), nil
}

func (e *emitter) needsOrderForOffset(q *ir.Query) bool {
	return e.d.LimitSyntax == catalog.Top && q.Offset != nil
}

// limitClause renders the paging tail. A limit of zero still renders: asking
// for zero rows is not the same as not limiting.
func (e *emitter) limitClause(q *ir.Query) string {
	if q.Limit == nil && q.Offset == nil {
		return ""
	}
	switch e.d.LimitSyntax {
	case catalog.Top:
		if q.Offset == nil {
			return "" // rendered as TOP inside SELECT
		}
		return offsetFetch(q.Limit, *q.Offset)
	case catalog.Rownum:
		if q.Offset == nil {
			return "" // rendered as a ROWNUM predicate in WHERE
		}
		return offsetFetch(q.Limit, *q.Offset)
	case catalog.OffsetFetch:
		if q.Offset == nil {
			return fmt.Sprintf(" FETCH FIRST %d ROWS ONLY", *q.Limit)
		}
		return offsetFetch(q.Limit, *q.Offset)
	default:
		var sb strings.Builder
		if q.Limit != nil {
			fmt.Fprintf(&sb, " LIMIT %d", *q.Limit)
		}
		if q.Offset != nil {
			fmt.Fprintf(&sb, " OFFSET %d", *q.Offset)
		}
		return sb.String()
	}
}

func offsetFetch(limit *int, offset int) string {
	out := fmt.Sprintf(" OFFSET %d ROWS", offset)
	if limit != nil {
		out += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", *limit)
	}
	return out
}
