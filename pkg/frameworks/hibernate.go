package frameworks

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/chainparser"
	"github.com/nsxbet/querybridge/pkg/engine"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/sqlparser"
	"github.com/nsxbet/querybridge/pkg/types"
)

func init() {
	engine.Register(&hibernate{})
}

// hibernate handles JPA EntityManager chains. The query itself travels as an
// HQL string inside createQuery; the surrounding chain binds parameters and
// paginates. Entity names and association paths map through the naming
// convention the same way the fluent surfaces do.
type hibernate struct{}

func (h *hibernate) ID() types.FrameworkID { return types.FrameworkHibernate }

func (h *hibernate) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

// Bind pre-binds setParameter values so the placeholders inside the query
// string resolve when createQuery normalizes it, whatever order the calls
// appear in.
func (h *hibernate) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	for i := range tree.Calls {
		call := &tree.Calls[i]
		if call.Method != "setParameter" && call.Method != "setParameterList" {
			continue
		}
		name, value, err := hbParameter(b, call)
		if err != nil {
			return err
		}
		b.BindParam(name, value)
	}
	return nil
}

func hbParameter(b *engine.Builder, call *parsetree.Call) (string, parsetree.Expr, error) {
	args, err := chainparser.ParseJSArgs(call.RawArgs, b.Env.Limits)
	if err != nil {
		return "", nil, err
	}
	if len(args) != 2 {
		return "", nil, &types.SyntaxError{Msg: call.Method + " takes a name and a value"}
	}
	name, ok := args[0].Value.(*parsetree.StringLit)
	if !ok {
		return "", nil, &types.UnsupportedConstructError{
			Construct: "positional query parameter",
			Essential: true,
			Hint:      "use named parameters like :minAge",
		}
	}
	return name.Val, args[1].Value, nil
}

func (h *hibernate) Rules() map[string]engine.Rule {
	return hbRules
}

var hbRules = map[string]engine.Rule{
	"createQuery":      {Slot: catalog.SlotSource, Apply: hbCreateQuery},
	"createNamedQuery": {Slot: catalog.SlotSource, Apply: hbNamedQuery},
	// parameters are consumed up front in Bind
	"setParameter":     {Slot: catalog.SlotFilter},
	"setParameterList": {Slot: catalog.SlotFilter},
	"setMaxResults":    {Slot: catalog.SlotLimit, Apply: hbMaxResults},
	"setFirstResult":   {Slot: catalog.SlotOffset, Apply: hbFirstResult},
	"getSingleResult":  {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"uniqueResult":     {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"getResultList":    {},
	"getResultStream":  {},
	"list":             {},
}

func hbCreateQuery(b *engine.Builder, call *parsetree.Call) error {
	args, err := chainparser.ParseJSArgs(call.RawArgs, b.Env.Limits)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return &types.SyntaxError{Msg: "createQuery takes a query string"}
	}
	lit, ok := args[0].Value.(*parsetree.StringLit)
	if !ok {
		return &types.UnsupportedConstructError{
			Construct: "criteria query",
			Essential: true,
			Hint:      "pass the query as an HQL string",
		}
	}
	tree, err := sqlparser.ParseEntityQuery(lit.Val, b.Env.Limits)
	if err != nil {
		return err
	}
	hbRootSelect(tree)
	return engine.ApplyClauses(b, tree)
}

// hbRootSelect rewrites SELECT u over FROM Entity u into a star projection.
// Selecting the root alias in HQL means the whole entity, not a column.
func hbRootSelect(tree *parsetree.Tree) {
	alias := ""
	for _, call := range tree.Calls {
		if call.Method == "from" && len(call.Args) == 1 && call.Args[0].Table != nil {
			alias = call.Args[0].Table.Alias
		}
	}
	if alias == "" {
		return
	}
	for i := range tree.Calls {
		call := &tree.Calls[i]
		if call.Method != "select" || len(call.Args) != 1 || call.Args[0].Name != "" {
			continue
		}
		if id, ok := call.Args[0].Value.(*parsetree.Ident); ok && id.Qualifier == "" && id.Name == alias {
			call.Args[0].Value = &parsetree.StarExpr{}
		}
	}
}

func hbNamedQuery(b *engine.Builder, call *parsetree.Call) error {
	return &types.UnsupportedConstructError{
		Construct: "named query",
		Position:  types.NewPosition(int(call.Pos.Line), int(call.Pos.Column)),
		Essential: true,
		Hint:      "inline the query string",
	}
}

func hbMaxResults(b *engine.Builder, call *parsetree.Call) error {
	n, err := hbIntArg(b, call)
	if err != nil {
		return err
	}
	b.SetLimit(n)
	return nil
}

func hbFirstResult(b *engine.Builder, call *parsetree.Call) error {
	n, err := hbIntArg(b, call)
	if err != nil {
		return err
	}
	b.SetOffset(n)
	return nil
}

func hbIntArg(b *engine.Builder, call *parsetree.Call) (int, error) {
	args, err := chainparser.ParseJSArgs(call.RawArgs, b.Env.Limits)
	if err != nil {
		return 0, err
	}
	if len(args) != 1 {
		return 0, &types.SyntaxError{Msg: call.Method + " takes one number"}
	}
	return engine.IntValue(args[0].Value, call.Method)
}

// Emit renders the query as an EntityManager chain around an HQL string.
// Residual placeholders come back as setParameter calls; limit and offset
// render as pagination calls since HQL has no LIMIT clause.
func (h *hibernate) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	q = inlined
	if q.Source.IsSubquery() {
		return "", &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	fw, err := catalog.ForFramework(types.FrameworkHibernate)
	if err != nil {
		return "", err
	}
	r := &hbRenderer{fw: fw, names: emitNames{}, taken: map[string]bool{}}
	hql, err := r.query(q)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(`em.createQuery("`)
	sb.WriteString(strings.ReplaceAll(hql, `"`, `\"`))
	sb.WriteString(`")`)
	for _, name := range hbParams(q) {
		sb.WriteString(`.setParameter("` + name + `", ` + name + `)`)
	}
	if q.Offset != nil {
		fmt.Fprintf(&sb, ".setFirstResult(%d)", *q.Offset)
	}
	if q.Limit != nil {
		fmt.Fprintf(&sb, ".setMaxResults(%d)", *q.Limit)
	}
	sb.WriteString(".getResultList()")
	return sb.String(), nil
}

type hbRenderer struct {
	fw    *catalog.Framework
	names emitNames
	taken map[string]bool
}

func (r *hbRenderer) query(q *ir.Query) (string, error) {
	if len(q.Windows) > 0 {
		return "", &types.UnsupportedConstructError{Construct: "window function", Essential: true}
	}

	model := r.fw.ModelName(q.Source.Name)
	rootAlias := r.alias(q.Source.Alias, model)
	r.names.set(q.Source.Binding(), rootAlias)

	// aliases seat before conditions render so ON clauses resolve
	var crossRoots []string
	var joins []string
	for _, j := range q.Joins {
		targetModel := r.fw.ModelName(j.Target.Name)
		alias := r.alias(j.Target.Alias, targetModel)
		r.names.set(j.Target.Binding(), alias)

		if j.Condition == nil {
			if j.Kind != ir.JoinInner {
				return "", &types.UnsupportedConstructError{Construct: "outer join without a condition", Essential: true}
			}
			crossRoots = append(crossRoots, targetModel+" "+alias)
			continue
		}
		kw, err := hbJoinKeyword(j.Kind)
		if err != nil {
			return "", err
		}
		if condMatchesRelation(q, j) {
			rel := relationFor(q, j)
			path := rootAlias + "." + r.fw.FieldName(rel.Name)
			joins = append(joins, kw+" "+path+" "+alias)
			continue
		}
		frag := r.fragment()
		cond, err := frag.expr(j.Condition)
		if err != nil {
			return "", err
		}
		joins = append(joins, kw+" "+targetModel+" "+alias+" ON "+cond)
	}

	frag := r.fragment()
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if starOnly(q) {
		sb.WriteString(rootAlias)
	} else {
		parts := make([]string, len(q.SelectList))
		for i, p := range q.SelectList {
			rendered, err := frag.expr(p.Expr)
			if err != nil {
				return "", err
			}
			if p.Alias != "" {
				rendered += " AS " + p.Alias
			}
			parts[i] = rendered
		}
		sb.WriteString(strings.Join(parts, ", "))
	}

	sb.WriteString(" FROM " + model + " " + rootAlias)
	for _, root := range crossRoots {
		sb.WriteString(", " + root)
	}
	for _, j := range joins {
		sb.WriteString(" " + j)
	}

	if q.Filter != nil {
		cond, err := frag.expr(q.Filter)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE " + cond)
	}
	if len(q.GroupBy) > 0 {
		keys := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			rendered, err := frag.expr(g)
			if err != nil {
				return "", err
			}
			keys[i] = rendered
		}
		sb.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}
	if q.Having != nil {
		cond, err := frag.expr(q.Having)
		if err != nil {
			return "", err
		}
		sb.WriteString(" HAVING " + cond)
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, t := range q.OrderBy {
			rendered, err := frag.expr(t.Expr)
			if err != nil {
				return "", err
			}
			if t.Desc {
				rendered += " DESC"
			}
			terms[i] = rendered
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	return sb.String(), nil
}

func (r *hbRenderer) alias(existing, model string) string {
	if existing != "" {
		r.taken[strings.ToLower(existing)] = true
		return existing
	}
	return shortAlias(model, r.taken)
}

func (r *hbRenderer) fragment() *sqlish {
	return &sqlish{fw: r.fw, names: r.names, bools: [2]string{"TRUE", "FALSE"}, sub: func(sub *ir.Query) (string, error) {
		nested := &hbRenderer{fw: r.fw, names: emitNames{}, taken: map[string]bool{}}
		return nested.query(sub)
	}}
}

func hbJoinKeyword(kind ir.JoinKind) (string, error) {
	switch kind {
	case ir.JoinInner:
		return "JOIN", nil
	case ir.JoinLeft:
		return "LEFT JOIN", nil
	case ir.JoinRight:
		return "RIGHT JOIN", nil
	}
	return "", &types.UnsupportedConstructError{Construct: "FULL JOIN between entities", Essential: true}
}

// hbParams collects residual placeholder names in appearance order.
func hbParams(q *ir.Query) []string {
	var names []string
	seen := map[string]bool{}
	var addValue func(v any)
	addValue = func(v any) {
		switch val := v.(type) {
		case ir.BindParam:
			if !seen[string(val)] {
				seen[string(val)] = true
				names = append(names, string(val))
			}
		case []any:
			for _, item := range val {
				addValue(item)
			}
		}
	}
	var visitExpr func(e ir.Expr)
	var visitQuery func(q *ir.Query)
	visitExpr = func(e ir.Expr) {
		switch v := e.(type) {
		case *ir.Literal:
			addValue(v.Value)
		case *ir.BinaryOp:
			visitExpr(v.Left)
			visitExpr(v.Right)
		case *ir.FunctionCall:
			for _, a := range v.Args {
				visitExpr(a)
			}
		case *ir.WindowCall:
			for _, a := range v.Func.Args {
				visitExpr(a)
			}
			for _, p := range v.PartitionBy {
				visitExpr(p)
			}
			for _, t := range v.OrderBy {
				visitExpr(t.Expr)
			}
		case *ir.Subquery:
			visitQuery(v.Query)
		}
	}
	visitQuery = func(q *ir.Query) {
		for _, p := range q.SelectList {
			visitExpr(p.Expr)
		}
		for _, j := range q.Joins {
			if j.Condition != nil {
				visitExpr(j.Condition)
			}
		}
		if q.Filter != nil {
			visitExpr(q.Filter)
		}
		for _, g := range q.GroupBy {
			visitExpr(g)
		}
		if q.Having != nil {
			visitExpr(q.Having)
		}
		for _, t := range q.OrderBy {
			visitExpr(t.Expr)
		}
	}
	visitQuery(q)
	return names
}
