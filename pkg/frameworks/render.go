// Package frameworks holds the built-in ORM strategy implementations. Each
// framework registers itself with the engine on import; callers blank-import
// the package and look strategies up by id.
package frameworks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/sqlemit"
	"github.com/nsxbet/querybridge/pkg/types"
)

// emitNames maps the scope bindings of a query onto the names an emitter
// uses for them: model names, lambda parameters or fragment aliases.
type emitNames map[string]string

func (n emitNames) of(binding string) string {
	if v, ok := n[strings.ToLower(binding)]; ok {
		return v
	}
	return binding
}

func (n emitNames) set(binding, name string) {
	if binding != "" {
		n[strings.ToLower(binding)] = name
	}
}

// relation describes how a join target hangs off the query source: a
// singular foreign-key field for to-one joins, the collection name for
// to-many ones.
type relation struct {
	Name  string
	ToOne bool
}

// relationFor derives the relation linking the source to a join target from
// the join's equi-join condition, falling back to the collection reading.
func relationFor(q *ir.Query, j ir.Join) relation {
	if cond, ok := j.Condition.(*ir.BinaryOp); ok && cond.Op == "=" {
		lc, lok := cond.Left.(*ir.Column)
		rc, rok := cond.Right.(*ir.Column)
		if lok && rok {
			srcCol := lc
			if strings.EqualFold(lc.Table, j.Target.Binding()) {
				srcCol = rc
			}
			if name, found := strings.CutSuffix(srcCol.Name, "_id"); found && strings.EqualFold(srcCol.Table, q.Source.Binding()) {
				return relation{Name: name, ToOne: true}
			}
		}
	}
	return relation{Name: j.Target.Name}
}

// inlineCTEs rewrites CTE references in the FROM position as derived tables,
// since fluent chains have no WITH equivalent. A CTE referenced anywhere else
// keeps the query un-emittable as a chain.
func inlineCTEs(q *ir.Query) (*ir.Query, error) {
	if len(q.CTEs) == 0 {
		return q, nil
	}
	resolved := make(map[string]*ir.Query, len(q.CTEs))
	for i := range q.CTEs {
		cte := &q.CTEs[i]
		sub, err := inlineSource(cte.Query, resolved)
		if err != nil {
			return nil, err
		}
		if len(cte.Columns) > 0 {
			sub = renameProjections(sub, cte.Columns)
		}
		resolved[strings.ToLower(cte.Name)] = sub
	}
	return inlineSource(q, resolved)
}

func inlineSource(q *ir.Query, resolved map[string]*ir.Query) (*ir.Query, error) {
	out := *q
	out.CTEs = nil
	if sub, ok := resolved[strings.ToLower(q.Source.Name)]; ok {
		out.Source = ir.Source{Alias: q.Source.Binding(), Sub: sub}
	}
	for _, j := range q.Joins {
		if _, ok := resolved[strings.ToLower(j.Target.Name)]; ok {
			return nil, &types.UnsupportedConstructError{Construct: "joined common table expression", Essential: true}
		}
	}
	for _, e := range cteSensitiveExprs(&out) {
		if referencesCTE(e, resolved) {
			return nil, &types.UnsupportedConstructError{Construct: "common table expression inside a subquery", Essential: true}
		}
	}
	return &out, nil
}

func cteSensitiveExprs(q *ir.Query) []ir.Expr {
	var out []ir.Expr
	for _, p := range q.SelectList {
		out = append(out, p.Expr)
	}
	if q.Filter != nil {
		out = append(out, q.Filter)
	}
	if q.Having != nil {
		out = append(out, q.Having)
	}
	return out
}

func referencesCTE(e ir.Expr, resolved map[string]*ir.Query) bool {
	switch v := e.(type) {
	case *ir.BinaryOp:
		return referencesCTE(v.Left, resolved) || referencesCTE(v.Right, resolved)
	case *ir.FunctionCall:
		for _, a := range v.Args {
			if referencesCTE(a, resolved) {
				return true
			}
		}
	case *ir.Subquery:
		if _, ok := resolved[strings.ToLower(v.Query.Source.Name)]; ok {
			return true
		}
		for _, inner := range cteSensitiveExprs(v.Query) {
			if referencesCTE(inner, resolved) {
				return true
			}
		}
	}
	return false
}

// condMatchesRelation reports whether a join's condition is exactly the
// conventional relation linkage, so a relation-path join can stand in for
// the explicit condition.
func condMatchesRelation(q *ir.Query, j ir.Join) bool {
	cond, ok := j.Condition.(*ir.BinaryOp)
	if !ok || cond.Op != "=" {
		return false
	}
	lc, lok := cond.Left.(*ir.Column)
	rc, rok := cond.Right.(*ir.Column)
	if !lok || !rok {
		return false
	}
	if relationFor(q, j).ToOne {
		return true
	}
	src, tgt := strings.ToLower(q.Source.Binding()), strings.ToLower(j.Target.Binding())
	fk := catalog.Singular(q.Source.Name) + "_id"
	match := func(a, b *ir.Column) bool {
		return strings.ToLower(a.Table) == tgt && strings.EqualFold(a.Name, fk) &&
			strings.ToLower(b.Table) == src && strings.EqualFold(b.Name, "id")
	}
	return match(lc, rc) || match(rc, lc)
}

// queryColumns collects every column the query shape references outside of
// join conditions: select list, filter, grouping, having and ordering.
func queryColumns(q *ir.Query) []*ir.Column {
	var out []*ir.Column
	for _, p := range q.SelectList {
		out = append(out, ir.Columns(p.Expr)...)
	}
	if q.Filter != nil {
		out = append(out, ir.Columns(q.Filter)...)
	}
	for _, g := range q.GroupBy {
		out = append(out, ir.Columns(g)...)
	}
	if q.Having != nil {
		out = append(out, ir.Columns(q.Having)...)
	}
	for _, t := range q.OrderBy {
		out = append(out, ir.Columns(t.Expr)...)
	}
	return out
}

func renameProjections(q *ir.Query, cols []string) *ir.Query {
	out := *q
	list := make([]ir.Projection, len(out.SelectList))
	copy(list, out.SelectList)
	for i, c := range cols {
		if i >= len(list) {
			break
		}
		list[i].Alias = c
	}
	out.SelectList = list
	return &out
}

// litStyle spells the literal forms of one host language.
type litStyle struct {
	null, trueLit, falseLit string
	quote                   byte
	listOpen, listClose     string
}

var (
	pyLit = litStyle{"None", "True", "False", '\'', "[", "]"}
	jsLit = litStyle{"null", "true", "false", '\'', "[", "]"}
	csLit = litStyle{"null", "true", "false", '"', "new[] { ", " }"}
)

func renderLiteral(v any, st litStyle) (string, error) {
	switch val := v.(type) {
	case nil:
		return st.null, nil
	case bool:
		if val {
			return st.trueLit, nil
		}
		return st.falseLit, nil
	case string:
		q := string(st.quote)
		escaped := strings.ReplaceAll(val, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, q, `\`+q)
		return q + escaped + q, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			rendered, err := renderLiteral(item, st)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return st.listOpen + strings.Join(parts, ", ") + st.listClose, nil
	case ir.BindParam:
		return "", &types.UnsupportedConstructError{
			Construct: fmt.Sprintf("unbound parameter :%s", string(val)),
			Essential: true,
			Hint:      "bind a value for the parameter before translating",
		}
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("literal of type %T", v), Essential: true}
}

// sqlish renders expressions as the SQL-like fragments string-based surfaces
// embed: framework property casing, alias qualifiers, no identifier quoting.
type sqlish struct {
	fw    *catalog.Framework
	names emitNames
	// bools carries the fragment spelling of booleans.
	bools [2]string
	// sub renders an embedded subquery; nil rejects subqueries.
	sub func(*ir.Query) (string, error)
}

func (s *sqlish) expr(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.Column:
		name := v.Name
		if name != "*" && s.fw != nil {
			name = s.fw.FieldName(name)
		}
		if v.Table != "" {
			return s.names.of(v.Table) + "." + name, nil
		}
		return name, nil
	case *ir.Literal:
		return s.literal(v.Value)
	case *ir.BinaryOp:
		left, err := s.operand(v.Left, v.Op, false)
		if err != nil {
			return "", err
		}
		right, err := s.operand(v.Right, v.Op, true)
		if err != nil {
			return "", err
		}
		return left + " " + v.Op + " " + right, nil
	case *ir.FunctionCall:
		return s.funcCall(v)
	case *ir.Subquery:
		if s.sub == nil {
			return "", &types.UnsupportedConstructError{Construct: "subquery in a fragment", Essential: true}
		}
		inner, err := s.sub(v.Query)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *ir.WindowCall:
		return s.window(v)
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("expression %T", e), Essential: true}
}

func (s *sqlish) operand(e ir.Expr, parentOp string, right bool) (string, error) {
	rendered, err := s.expr(e)
	if err != nil {
		return "", err
	}
	if sqlemit.NeedsParens(e, parentOp, right) {
		return "(" + rendered + ")", nil
	}
	return rendered, nil
}

func (s *sqlish) funcCall(v *ir.FunctionCall) (string, error) {
	switch {
	case v.Name == "NOT" && len(v.Args) == 1:
		inner, err := s.expr(v.Args[0])
		if err != nil {
			return "", err
		}
		if _, ok := v.Args[0].(*ir.BinaryOp); ok {
			inner = "(" + inner + ")"
		}
		return "NOT " + inner, nil
	case v.Name == "EXISTS" && len(v.Args) == 1:
		inner, err := s.expr(v.Args[0])
		if err != nil {
			return "", err
		}
		return "EXISTS " + inner, nil
	}
	if v.Star {
		return v.Name + "(*)", nil
	}
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		rendered, err := s.expr(a)
		if err != nil {
			return "", err
		}
		args[i] = rendered
	}
	prefix := ""
	if v.Distinct {
		prefix = "DISTINCT "
	}
	return v.Name + "(" + prefix + strings.Join(args, ", ") + ")", nil
}

func (s *sqlish) window(v *ir.WindowCall) (string, error) {
	fn, err := s.funcCall(&v.Func)
	if err != nil {
		return "", err
	}
	var parts []string
	if len(v.PartitionBy) > 0 {
		cols := make([]string, len(v.PartitionBy))
		for i, p := range v.PartitionBy {
			if cols[i], err = s.expr(p); err != nil {
				return "", err
			}
		}
		parts = append(parts, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(v.OrderBy) > 0 {
		terms := make([]string, len(v.OrderBy))
		for i, t := range v.OrderBy {
			rendered, err := s.expr(t.Expr)
			if err != nil {
				return "", err
			}
			if t.Desc {
				rendered += " DESC"
			}
			terms[i] = rendered
		}
		parts = append(parts, "ORDER BY "+strings.Join(terms, ", "))
	}
	return fn + " OVER (" + strings.Join(parts, " ") + ")", nil
}

func (s *sqlish) literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return s.bools[0], nil
		}
		return s.bools[1], nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case ir.BindParam:
		return ":" + string(val), nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			rendered, err := s.literal(item)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("literal of type %T", v), Essential: true}
}

// shortAlias picks a distinct short alias for a table name.
func shortAlias(table string, taken map[string]bool) string {
	base := strings.ToLower(table)
	if base == "" {
		base = "t"
	}
	for n := 1; n <= len(base); n++ {
		cand := base[:n]
		if !taken[cand] {
			taken[cand] = true
			return cand
		}
	}
	for i := 2; ; i++ {
		cand := base + strconv.Itoa(i)
		if !taken[cand] {
			taken[cand] = true
			return cand
		}
	}
}

// starOnly reports whether the select list is a single unqualified star.
func starOnly(q *ir.Query) bool {
	if len(q.SelectList) != 1 {
		return false
	}
	c, ok := q.SelectList[0].Expr.(*ir.Column)
	return ok && c.Name == "*" && c.Table == ""
}

// aliasOrSynth returns the projection alias, deriving one from the
// expression when the surface needs a name and none was given.
func aliasOrSynth(p ir.Projection) string {
	if p.Alias != "" {
		return p.Alias
	}
	switch v := p.Expr.(type) {
	case *ir.Column:
		return v.Name
	case *ir.FunctionCall:
		name := strings.ToLower(v.Name)
		if len(v.Args) > 0 {
			if c, ok := v.Args[0].(*ir.Column); ok {
				return name + "_" + c.Name
			}
		}
		return name
	case *ir.WindowCall:
		return strings.ToLower(v.Func.Name)
	}
	return "value"
}
