package engine

import (
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Builder accumulates one query during normalization. Scalar slots follow
// later-call-overrides, list slots append, and filters merge under AND.
type Builder struct {
	Env *Env

	// Stash carries framework-private state between rules of one
	// normalization, such as a pending grouping key.
	Stash map[string]any

	strategy Framework
	fw       *catalog.Framework

	q      ir.Query
	scopes map[string]string
	params map[string]parsetree.Expr
	lambda []string
}

func newBuilder(f Framework, env *Env) *Builder {
	b := &Builder{
		Env:      env,
		Stash:    make(map[string]any),
		strategy: f,
		scopes:   make(map[string]string),
		params:   make(map[string]parsetree.Expr),
	}
	if f != nil {
		if fw, err := catalog.ForFramework(f.ID()); err == nil {
			b.fw = fw
		}
	}
	return b
}

// Framework returns the catalog entry of the surface being normalized, nil
// for SQL input.
func (b *Builder) Framework() *catalog.Framework {
	return b.fw
}

// Query exposes the partially built query to rules that inspect prior state,
// such as whether a source is seated or a projection is aggregated.
func (b *Builder) Query() *ir.Query {
	return &b.q
}

func (b *Builder) register(name, binding string) {
	if name == "" {
		return
	}
	b.scopes[strings.ToLower(name)] = binding
}

// SetSourceTable seats the FROM table. A later call replaces an earlier one.
func (b *Builder) SetSourceTable(table, alias string) {
	b.q.Source = ir.Source{Name: table, Alias: alias}
	binding := table
	if alias != "" {
		binding = alias
	}
	b.register(table, binding)
	b.register(alias, binding)
}

// SetSourceModel seats the FROM table from a model or entity name, mapping
// through the naming convention and the schema snapshot when one is present.
func (b *Builder) SetSourceModel(model, alias string) {
	table := b.tableForModel(model)
	b.SetSourceTable(table, alias)
	b.register(model, b.q.Source.Binding())
}

// SetSourceSub seats a derived-table source.
func (b *Builder) SetSourceSub(tree *parsetree.Tree, alias string) error {
	sub, err := b.normalizeTree(tree)
	if err != nil {
		return err
	}
	b.q.Source = ir.Source{Alias: alias, Sub: sub}
	b.register(alias, alias)
	return nil
}

// Join appends a join against a named table. A nil condition renders as a
// cross join.
func (b *Builder) Join(kind ir.JoinKind, table, alias string, cond parsetree.Expr, declared bool) error {
	binding := table
	if alias != "" {
		binding = alias
	}
	b.register(table, binding)
	b.register(alias, binding)
	var c ir.Expr
	if cond != nil {
		var err error
		c, err = b.Lower(cond)
		if err != nil {
			return err
		}
	}
	b.q.Joins = append(b.q.Joins, ir.Join{
		Kind:      kind,
		Target:    ir.TableRef{Name: table, Alias: alias},
		Condition: c,
		Declared:  declared,
	})
	return nil
}

// JoinModel appends a join against a model or entity name.
func (b *Builder) JoinModel(kind ir.JoinKind, model, alias string, cond parsetree.Expr, declared bool) error {
	table := b.tableForModel(model)
	if err := b.Join(kind, table, alias, cond, declared); err != nil {
		return err
	}
	binding := table
	if alias != "" {
		binding = alias
	}
	b.register(model, binding)
	return nil
}

// JoinRelation appends a join derived from a relation field on the source
// model, the way eager-load primitives do. The join condition comes from the
// schema's foreign keys when a snapshot is present, and from the id and
// <relation>_id naming convention otherwise. Joining the same relation twice
// is a no-op.
func (b *Builder) JoinRelation(kind ir.JoinKind, relation, alias string, declared bool) error {
	if b.q.Source.Name == "" {
		return &types.UnresolvedReferenceError{Name: relation}
	}
	if existing, ok := b.scopes[strings.ToLower(relation)]; ok {
		for _, j := range b.q.Joins {
			if j.Target.Binding() == existing {
				return nil
			}
		}
	}
	src := b.q.Source.Name
	srcBinding := b.q.Source.Binding()
	target := catalog.TableName(relation)
	if b.Env.Schema != nil {
		if t := b.Env.Schema.Table(target); t != nil {
			target = t.Name
		}
	}
	binding := target
	if alias != "" {
		binding = alias
	}

	cond := b.relationCondition(src, srcBinding, target, binding, relation)
	b.register(target, binding)
	b.register(alias, binding)
	b.register(relation, binding)
	b.q.Joins = append(b.q.Joins, ir.Join{
		Kind:      kind,
		Target:    ir.TableRef{Name: target, Alias: alias},
		Condition: cond,
		Declared:  declared,
	})
	return nil
}

// relationCondition builds the equi-join predicate between a source table and
// a relation target.
func (b *Builder) relationCondition(src, srcBinding, target, targetBinding, relation string) ir.Expr {
	if b.Env.Schema != nil {
		if fk := findForeignKey(b.Env.Schema, src, target); fk != nil {
			return &ir.BinaryOp{
				Op:    "=",
				Left:  &ir.Column{Table: srcBinding, Name: fk.Columns[0]},
				Right: &ir.Column{Table: targetBinding, Name: fk.ReferencedColumns[0]},
			}
		}
		if fk := findForeignKey(b.Env.Schema, target, src); fk != nil {
			return &ir.BinaryOp{
				Op:    "=",
				Left:  &ir.Column{Table: targetBinding, Name: fk.Columns[0]},
				Right: &ir.Column{Table: srcBinding, Name: fk.ReferencedColumns[0]},
			}
		}
	}
	// Convention fallback: the many side carries <singular>_id, and a
	// singular relation name means the source is the many side.
	relSnake := catalog.ColumnName(relation)
	if singularName(relSnake) == relSnake {
		return &ir.BinaryOp{
			Op:    "=",
			Left:  &ir.Column{Table: srcBinding, Name: relSnake + "_id"},
			Right: &ir.Column{Table: targetBinding, Name: "id"},
		}
	}
	return &ir.BinaryOp{
		Op:    "=",
		Left:  &ir.Column{Table: targetBinding, Name: singularName(src) + "_id"},
		Right: &ir.Column{Table: srcBinding, Name: "id"},
	}
}

// singularName singularizes the last word of a snake_case name.
func singularName(name string) string {
	words := catalog.SplitWords(name)
	if len(words) == 0 {
		return name
	}
	words[len(words)-1] = catalog.Singular(words[len(words)-1])
	return strings.Join(words, "_")
}

func findForeignKey(schema *types.SchemaSnapshot, from, to string) *types.ForeignKeySchema {
	t := schema.Table(from)
	if t == nil {
		return nil
	}
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.ReferencedTable, to) && len(fk.Columns) > 0 && len(fk.ReferencedColumns) > 0 {
			return fk
		}
	}
	return nil
}

// Where AND-merges a condition into the filter.
func (b *Builder) Where(cond parsetree.Expr) error {
	e, err := b.Lower(cond)
	if err != nil {
		return err
	}
	b.WhereExpr(e)
	return nil
}

// WhereExpr AND-merges an already lowered condition into the filter.
func (b *Builder) WhereExpr(e ir.Expr) {
	b.q.Filter = mergeAnd(b.q.Filter, e)
}

// WhereNot AND-merges the negation of a condition, as exclusion methods do.
func (b *Builder) WhereNot(cond parsetree.Expr) error {
	e, err := b.Lower(cond)
	if err != nil {
		return err
	}
	b.q.Filter = mergeAnd(b.q.Filter, &ir.FunctionCall{Name: "NOT", Args: []ir.Expr{e}})
	return nil
}

// OrFilter OR-merges a condition into the filter.
func (b *Builder) OrFilter(cond parsetree.Expr) error {
	e, err := b.Lower(cond)
	if err != nil {
		return err
	}
	if b.q.Filter == nil {
		b.q.Filter = e
		return nil
	}
	b.q.Filter = &ir.BinaryOp{Op: "OR", Left: b.q.Filter, Right: e}
	return nil
}

func mergeAnd(a, e ir.Expr) ir.Expr {
	if a == nil {
		return e
	}
	return &ir.BinaryOp{Op: "AND", Left: a, Right: e}
}

// Select appends projections; replace resets the list first.
func (b *Builder) Select(args []parsetree.Arg, replace bool) error {
	if replace {
		b.q.SelectList = nil
	}
	for _, a := range args {
		if err := b.AddProjection(a.Value, a.Name); err != nil {
			return err
		}
	}
	return nil
}

// AddProjection appends one select-list entry, peeling label wrappers into
// the alias.
func (b *Builder) AddProjection(e parsetree.Expr, alias string) error {
	if l, ok := e.(*parsetree.LabeledExpr); ok {
		e = l.Expr
		if alias == "" {
			alias = l.Label
		}
	}
	lowered, err := b.Lower(e)
	if err != nil {
		return err
	}
	b.ProjectLowered(lowered, alias)
	return nil
}

// ProjectLowered appends an already lowered select-list entry.
func (b *Builder) ProjectLowered(e ir.Expr, alias string) {
	if w, ok := e.(*ir.WindowCall); ok && alias != "" {
		b.q.Windows = append(b.q.Windows, ir.WindowFn{Alias: alias, Call: w})
	}
	b.q.SelectList = append(b.q.SelectList, ir.Projection{Expr: e, Alias: alias})
}

// Aliased returns the projected expression carrying the given alias, or nil.
func (b *Builder) Aliased(name string) ir.Expr {
	for _, p := range b.q.SelectList {
		if p.Alias == name {
			return p.Expr
		}
	}
	return nil
}

// GroupBy appends grouping expressions.
func (b *Builder) GroupBy(exprs []parsetree.Expr) error {
	for _, e := range exprs {
		lowered, err := b.Lower(e)
		if err != nil {
			return err
		}
		b.q.GroupBy = append(b.q.GroupBy, lowered)
	}
	return nil
}

// GroupByCurrentColumns groups by every plain column already projected, the
// way aggregate annotations over a narrowed select list behave. It does
// nothing when grouping is already set.
func (b *Builder) GroupByCurrentColumns() {
	if len(b.q.GroupBy) > 0 {
		return
	}
	for _, p := range b.q.SelectList {
		if c, ok := p.Expr.(*ir.Column); ok && c.Name != "*" {
			b.q.GroupBy = append(b.q.GroupBy, c)
		}
	}
}

// Having AND-merges a post-grouping condition.
func (b *Builder) Having(cond parsetree.Expr) error {
	e, err := b.Lower(cond)
	if err != nil {
		return err
	}
	b.HavingExpr(e)
	return nil
}

// HavingExpr AND-merges an already lowered post-grouping condition.
func (b *Builder) HavingExpr(e ir.Expr) {
	b.q.Having = mergeAnd(b.q.Having, e)
}

// OrHaving OR-merges a post-grouping condition.
func (b *Builder) OrHaving(cond parsetree.Expr) error {
	e, err := b.Lower(cond)
	if err != nil {
		return err
	}
	if b.q.Having == nil {
		b.q.Having = e
		return nil
	}
	b.q.Having = &ir.BinaryOp{Op: "OR", Left: b.q.Having, Right: e}
	return nil
}

// OrderBy appends order terms; replace resets the list first, the way
// ordering methods that override earlier ordering behave.
func (b *Builder) OrderBy(terms []parsetree.OrderArg, replace bool) error {
	if replace {
		b.q.OrderBy = nil
	}
	for _, t := range terms {
		lowered, err := b.Lower(t.Expr)
		if err != nil {
			return err
		}
		b.q.OrderBy = append(b.q.OrderBy, ir.OrderTerm{Expr: lowered, Desc: t.Desc})
	}
	return nil
}

// SetLimit sets the row limit; later calls override.
func (b *Builder) SetLimit(n int) {
	b.q.Limit = &n
}

// SetOffset sets the row offset; later calls override.
func (b *Builder) SetOffset(n int) {
	b.q.Offset = &n
}

// SetDistinct marks the query DISTINCT.
func (b *Builder) SetDistinct() {
	b.q.Distinct = true
}

// AddCTE normalizes and appends a common table expression.
func (b *Builder) AddCTE(name string, cols []string, tree *parsetree.Tree) error {
	sub, err := b.normalizeTree(tree)
	if err != nil {
		return err
	}
	b.q.CTEs = append(b.q.CTEs, ir.CTE{Name: name, Columns: cols, Query: sub})
	b.register(name, name)
	return nil
}

// BindParam records a named binding; Lower substitutes it for matching
// placeholders.
func (b *Builder) BindParam(name string, value parsetree.Expr) {
	b.params[name] = value
}

func (b *Builder) normalizeTree(tree *parsetree.Tree) (*ir.Query, error) {
	switch tree.Surface {
	case "sql":
		if b.fw != nil {
			// Entity-query subqueries keep mapping model names onto tables.
			// Raw SQL fragments never reach here with a framework attached.
			sub := newBuilder(nil, b.Env)
			sub.fw = b.fw
			if err := ApplyClauses(sub, tree); err != nil {
				return nil, err
			}
			return sub.Freeze()
		}
		return NormalizeSQL(tree, b.Env)
	default:
		if b.strategy == nil {
			return nil, &types.SyntaxError{Msg: "nested builder chain inside SQL input"}
		}
		return Normalize(b.strategy, tree, b.Env)
	}
}

// Freeze finalizes and validates the accumulated query.
func (b *Builder) Freeze() (*ir.Query, error) {
	if len(b.q.SelectList) == 0 {
		if b.q.Source.Name == "" && !b.q.Source.IsSubquery() {
			return nil, &types.SyntaxError{Msg: "query has neither a select list nor a source"}
		}
		b.q.SelectList = []ir.Projection{{Expr: &ir.Column{Name: "*"}}}
	}
	if err := ir.Validate(&b.q); err != nil {
		return nil, err
	}
	return &b.q, nil
}
