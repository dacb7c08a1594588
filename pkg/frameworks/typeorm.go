package frameworks

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/chainparser"
	"github.com/nsxbet/querybridge/pkg/engine"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/sqlemit"
	"github.com/nsxbet/querybridge/pkg/sqlparser"
	"github.com/nsxbet/querybridge/pkg/types"
)

func init() {
	engine.Register(&typeorm{})
}

// typeorm handles TypeORM QueryBuilder chains. Clause arguments are SQL
// fragments over the declared aliases, so most rules parse their first
// argument with the expression grammar and hand the tree to the builder.
type typeorm struct{}

const typeormModel = "typeorm.model"

func (t *typeorm) ID() types.FrameworkID { return types.FrameworkTypeORM }

func (t *typeorm) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

func (t *typeorm) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	return nil // getRepository and createQueryBuilder seat the source
}

func (t *typeorm) Rules() map[string]engine.Rule {
	return toRules
}

var toRules = map[string]engine.Rule{
	"getRepository":      {Slot: catalog.SlotSource, Apply: toRepository},
	"createQueryBuilder": {Slot: catalog.SlotSource, Apply: toCreateQB},
	"select":             {Slot: catalog.SlotSelect, Apply: toSelect(true)},
	"addSelect":          {Slot: catalog.SlotSelect, Apply: toSelect(false)},
	"where":              {Slot: catalog.SlotFilter, Apply: toWhere},
	"andWhere":           {Slot: catalog.SlotFilter, Apply: toWhere},
	"orWhere":            {Slot: catalog.SlotFilter, Apply: toOrWhere},
	"innerJoin":          {Slot: catalog.SlotJoin, Apply: toJoin(ir.JoinInner, false)},
	"leftJoin":           {Slot: catalog.SlotJoin, Apply: toJoin(ir.JoinLeft, false)},
	"innerJoinAndSelect": {Slot: catalog.SlotJoin, Apply: toJoin(ir.JoinInner, true)},
	"leftJoinAndSelect":  {Slot: catalog.SlotJoin, Apply: toJoin(ir.JoinLeft, true)},
	"groupBy":            {Slot: catalog.SlotGroupBy, Apply: toGroupBy},
	"addGroupBy":         {Slot: catalog.SlotGroupBy, Apply: toGroupBy},
	"having":             {Slot: catalog.SlotHaving, Apply: toHaving},
	"andHaving":          {Slot: catalog.SlotHaving, Apply: toHaving},
	"orHaving":           {Slot: catalog.SlotHaving, Apply: toOrHaving},
	"orderBy":            {Slot: catalog.SlotOrderBy, Apply: toOrderBy(true)},
	"addOrderBy":         {Slot: catalog.SlotOrderBy, Apply: toOrderBy(false)},
	"skip":               {Slot: catalog.SlotOffset, Apply: toOffset},
	"offset":             {Slot: catalog.SlotOffset, Apply: toOffset},
	"take":               {Slot: catalog.SlotLimit, Apply: toLimit},
	"limit":              {Slot: catalog.SlotLimit, Apply: toLimit},
	"setParameter":       {Slot: catalog.SlotFilter, Apply: toSetParameter},
	"setParameters":      {Slot: catalog.SlotFilter, Apply: toSetParameters},
	"distinct":           {Slot: catalog.SlotSelect, Apply: toDistinct},
	"distinctOn":         {Slot: catalog.SlotSelect, Apply: toDistinctOn},
	"getOne":             {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"getRawOne":          {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"getCount":           {Slot: catalog.SlotSelect, Apply: applyCountStar},

	"getMany":         {},
	"getRawMany":      {},
	"getManyAndCount": {},
	"getQuery":        {},
	"printSql":        {},
	"stream":          {},
	"execute":         {},
}

func toArgs(b *engine.Builder, call *parsetree.Call) ([]parsetree.Arg, error) {
	return chainparser.ParseJSArgs(call.RawArgs, b.Env.Limits)
}

func toFragment(b *engine.Builder, raw string) (parsetree.Expr, error) {
	return sqlparser.ParseExpression(raw, b.Env.Limits)
}

func toRepository(b *engine.Builder, call *parsetree.Call) error {
	args, err := toArgs(b, call)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return &types.SyntaxError{Msg: "getRepository takes one entity"}
	}
	switch v := args[0].Value.(type) {
	case *parsetree.Ident:
		b.Stash[typeormModel] = v.Name
	case *parsetree.StringLit:
		b.Stash[typeormModel] = v.Val
	default:
		return &types.SyntaxError{Msg: "getRepository takes an entity name"}
	}
	return nil
}

// toCreateQB seats the source. The entity comes from getRepository when
// present; a lone alias argument also names the entity, the usual TypeORM
// convention.
func toCreateQB(b *engine.Builder, call *parsetree.Call) error {
	args, err := toArgs(b, call)
	if err != nil {
		return err
	}
	model, _ := b.Stash[typeormModel].(string)
	alias := ""
	for _, a := range args {
		switch v := a.Value.(type) {
		case *parsetree.Ident:
			model = v.Name
		case *parsetree.StringLit:
			alias = v.Val
		}
	}
	if model == "" {
		model = alias
	}
	if model == "" {
		return &types.SyntaxError{Msg: "createQueryBuilder needs an entity or alias"}
	}
	b.SetSourceModel(model, alias)
	return nil
}

func toSelect(replace bool) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		args, err := toArgs(b, call)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return &types.SyntaxError{Msg: call.Method + " takes a selection"}
		}
		if replace {
			if err := b.Select(nil, true); err != nil {
				return err
			}
		}
		// select("frag", "alias") aliases a single expression; the array form
		// lists several.
		if lit, ok := args[0].Value.(*parsetree.StringLit); ok && len(args) == 2 {
			if aliasLit, ok := args[1].Value.(*parsetree.StringLit); ok {
				expr, err := toFragment(b, lit.Val)
				if err != nil {
					return err
				}
				return b.AddProjection(expr, aliasLit.Val)
			}
		}
		for _, a := range args {
			switch v := a.Value.(type) {
			case *parsetree.StringLit:
				expr, err := toFragment(b, v.Val)
				if err != nil {
					return err
				}
				if err := b.AddProjection(expr, ""); err != nil {
					return err
				}
			case *parsetree.ArrayExpr:
				for _, item := range v.Items {
					lit, ok := item.(*parsetree.StringLit)
					if !ok {
						return &types.SyntaxError{Msg: "select array items must be strings"}
					}
					expr, err := toFragment(b, lit.Val)
					if err != nil {
						return err
					}
					if err := b.AddProjection(expr, ""); err != nil {
						return err
					}
				}
			default:
				return &types.SyntaxError{Msg: call.Method + " takes string selections"}
			}
		}
		return nil
	}
}

// toCondition parses a fragment argument pair: the condition string plus an
// optional parameter object bound before lowering.
func toCondition(b *engine.Builder, call *parsetree.Call) (parsetree.Expr, error) {
	args, err := toArgs(b, call)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, &types.SyntaxError{Msg: call.Method + " takes a condition"}
	}
	lit, ok := args[0].Value.(*parsetree.StringLit)
	if !ok {
		return nil, &types.SyntaxError{Msg: call.Method + " takes a condition string"}
	}
	if len(args) > 1 {
		obj, ok := args[1].Value.(*parsetree.ObjectExpr)
		if !ok {
			return nil, &types.SyntaxError{Msg: call.Method + " parameters must be an object"}
		}
		for _, f := range obj.Fields {
			b.BindParam(f.Key, f.Val)
		}
	}
	return toFragment(b, lit.Val)
}

func toWhere(b *engine.Builder, call *parsetree.Call) error {
	cond, err := toCondition(b, call)
	if err != nil {
		return err
	}
	return b.Where(cond)
}

func toOrWhere(b *engine.Builder, call *parsetree.Call) error {
	cond, err := toCondition(b, call)
	if err != nil {
		return err
	}
	return b.OrFilter(cond)
}

func toHaving(b *engine.Builder, call *parsetree.Call) error {
	cond, err := toCondition(b, call)
	if err != nil {
		return err
	}
	return b.Having(cond)
}

func toOrHaving(b *engine.Builder, call *parsetree.Call) error {
	cond, err := toCondition(b, call)
	if err != nil {
		return err
	}
	return b.OrHaving(cond)
}

func toJoin(kind ir.JoinKind, selects bool) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		args, err := toArgs(b, call)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return &types.SyntaxError{Msg: call.Method + " takes a target and an alias"}
		}
		aliasLit, ok := args[1].Value.(*parsetree.StringLit)
		if !ok {
			return &types.SyntaxError{Msg: call.Method + " alias must be a string"}
		}
		alias := aliasLit.Val

		switch v := args[0].Value.(type) {
		case *parsetree.StringLit:
			if _, rel, found := strings.Cut(v.Val, "."); found {
				if len(args) > 2 {
					return &types.UnsupportedConstructError{
						Construct: "extra condition on a relation join",
						Essential: true,
						Hint:      "move the condition into where",
					}
				}
				err = b.JoinRelation(kind, rel, alias, true)
			} else {
				var cond parsetree.Expr
				if cond, err = toJoinCondition(b, call, args); err == nil {
					err = b.JoinModel(kind, v.Val, alias, cond, true)
				}
			}
		case *parsetree.Ident:
			var cond parsetree.Expr
			if cond, err = toJoinCondition(b, call, args); err == nil {
				err = b.JoinModel(kind, v.Name, alias, cond, true)
			}
		default:
			return &types.SyntaxError{Msg: call.Method + " takes a relation path or entity"}
		}
		if err != nil {
			return err
		}
		if selects {
			if len(b.Query().SelectList) == 0 {
				b.ProjectLowered(&ir.Column{Table: b.Query().Source.Binding(), Name: "*"}, "")
			}
			b.ProjectLowered(&ir.Column{Table: alias, Name: "*"}, "")
		}
		return nil
	}
}

func toJoinCondition(b *engine.Builder, call *parsetree.Call, args []parsetree.Arg) (parsetree.Expr, error) {
	if len(args) < 3 {
		return nil, nil
	}
	lit, ok := args[2].Value.(*parsetree.StringLit)
	if !ok {
		return nil, &types.SyntaxError{Msg: call.Method + " condition must be a string"}
	}
	if len(args) > 3 {
		obj, ok := args[3].Value.(*parsetree.ObjectExpr)
		if !ok {
			return nil, &types.SyntaxError{Msg: call.Method + " parameters must be an object"}
		}
		for _, f := range obj.Fields {
			b.BindParam(f.Key, f.Val)
		}
	}
	return toFragment(b, lit.Val)
}

func toGroupBy(b *engine.Builder, call *parsetree.Call) error {
	args, err := toArgs(b, call)
	if err != nil {
		return err
	}
	var exprs []parsetree.Expr
	for _, a := range args {
		lit, ok := a.Value.(*parsetree.StringLit)
		if !ok {
			return &types.SyntaxError{Msg: call.Method + " takes column strings"}
		}
		expr, err := toFragment(b, lit.Val)
		if err != nil {
			return err
		}
		exprs = append(exprs, expr)
	}
	return b.GroupBy(exprs)
}

func toOrderBy(replace bool) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		args, err := toArgs(b, call)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return &types.SyntaxError{Msg: call.Method + " takes an expression"}
		}
		lit, ok := args[0].Value.(*parsetree.StringLit)
		if !ok {
			return &types.SyntaxError{Msg: call.Method + " takes an expression string"}
		}
		expr, err := toFragment(b, lit.Val)
		if err != nil {
			return err
		}
		desc := false
		if len(args) > 1 {
			dir, ok := args[1].Value.(*parsetree.StringLit)
			if !ok {
				return &types.SyntaxError{Msg: call.Method + " direction must be a string"}
			}
			switch strings.ToUpper(dir.Val) {
			case "ASC":
			case "DESC":
				desc = true
			default:
				return &types.SyntaxError{Msg: "order direction must be ASC or DESC"}
			}
		}
		return b.OrderBy([]parsetree.OrderArg{{Expr: expr, Desc: desc}}, replace)
	}
}

func toInt(b *engine.Builder, call *parsetree.Call) (int, error) {
	args, err := toArgs(b, call)
	if err != nil {
		return 0, err
	}
	if len(args) != 1 {
		return 0, &types.SyntaxError{Msg: call.Method + " takes one integer"}
	}
	return engine.IntValue(args[0].Value, call.Method)
}

func toOffset(b *engine.Builder, call *parsetree.Call) error {
	n, err := toInt(b, call)
	if err != nil {
		return err
	}
	b.SetOffset(n)
	return nil
}

func toLimit(b *engine.Builder, call *parsetree.Call) error {
	n, err := toInt(b, call)
	if err != nil {
		return err
	}
	b.SetLimit(n)
	return nil
}

func toSetParameter(b *engine.Builder, call *parsetree.Call) error {
	args, err := toArgs(b, call)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return &types.SyntaxError{Msg: "setParameter takes a name and a value"}
	}
	lit, ok := args[0].Value.(*parsetree.StringLit)
	if !ok {
		return &types.SyntaxError{Msg: "setParameter name must be a string"}
	}
	b.BindParam(lit.Val, args[1].Value)
	return nil
}

func toSetParameters(b *engine.Builder, call *parsetree.Call) error {
	args, err := toArgs(b, call)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return &types.SyntaxError{Msg: "setParameters takes an object"}
	}
	obj, ok := args[0].Value.(*parsetree.ObjectExpr)
	if !ok {
		return &types.SyntaxError{Msg: "setParameters takes an object"}
	}
	for _, f := range obj.Fields {
		b.BindParam(f.Key, f.Val)
	}
	return nil
}

func toDistinct(b *engine.Builder, call *parsetree.Call) error {
	args, err := toArgs(b, call)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if bl, ok := args[0].Value.(*parsetree.BoolLit); ok && !bl.Val {
			return nil
		}
	}
	b.SetDistinct()
	return nil
}

func toDistinctOn(b *engine.Builder, call *parsetree.Call) error {
	b.Env.Dropped(call.Pos, "DISTINCT ON expressions")
	b.SetDistinct()
	return nil
}

// Emit renders the query as a QueryBuilder chain with fragment arguments.
// Bound values are inlined into the fragments rather than re-parameterized.
func (t *typeorm) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	q = inlined
	if q.Source.IsSubquery() {
		return "", &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	fw, err := catalog.ForFramework(types.FrameworkTypeORM)
	if err != nil {
		return "", err
	}
	r := &toRenderer{fw: fw, q: q, names: emitNames{}}
	return r.render()
}

type toRenderer struct {
	fw    *catalog.Framework
	q     *ir.Query
	names emitNames
	frag  *sqlish
}

func (r *toRenderer) render() (string, error) {
	q := r.q
	model := r.fw.ModelName(q.Source.Name)
	root := lowerFirst(model)
	r.names.set(q.Source.Binding(), root)

	type joinPlan struct {
		method string
		target string
		alias  string
		cond   ir.Expr
	}
	plans := make([]joinPlan, 0, len(q.Joins))
	rawSelected := map[string]bool{}
	for _, p := range q.SelectList {
		if c, ok := p.Expr.(*ir.Column); ok && c.Name == "*" && c.Table != "" {
			rawSelected[strings.ToLower(c.Table)] = true
		}
	}
	for _, j := range q.Joins {
		if j.Condition == nil {
			return "", &types.UnsupportedConstructError{Construct: "cross join", Essential: true}
		}
		rel := relationFor(q, j)
		alias := lowerFirst(catalog.Recase(catalog.Singular(j.Target.Name), catalog.CamelCase))
		if alias == root {
			alias = shortAlias(j.Target.Name, map[string]bool{root: true})
		}
		r.names.set(j.Target.Binding(), alias)
		method := map[ir.JoinKind]string{ir.JoinInner: "innerJoin", ir.JoinLeft: "leftJoin"}[j.Kind]
		if method == "" {
			return "", &types.UnsupportedConstructError{Construct: string(j.Kind) + " join", Essential: true}
		}
		if rawSelected[strings.ToLower(j.Target.Binding())] {
			method += "AndSelect"
		}
		p := joinPlan{method: method, alias: alias}
		if condMatchesRelation(q, j) {
			relName := rel.Name
			if !rel.ToOne {
				relName = j.Target.Name
			}
			p.target = "\"" + root + "." + lowerFirst(catalog.Recase(relName, catalog.CamelCase)) + "\""
		} else {
			p.target = "\"" + j.Target.Name + "\""
			p.cond = j.Condition
		}
		plans = append(plans, p)
	}
	r.frag = &sqlish{fw: r.fw, names: r.names, bools: [2]string{"TRUE", "FALSE"}, sub: func(sub *ir.Query) (string, error) {
		return sqlemit.Emit(sub, types.DialectPostgreSQL)
	}}

	var sb strings.Builder
	sb.WriteString("dataSource.getRepository(" + model + ").createQueryBuilder(\"" + root + "\")")

	countOnly := r.countOnly()
	raw := false
	if !countOnly && !starOnly(q) {
		sel, isRaw, err := r.selection(rawSelected)
		if err != nil {
			return "", err
		}
		raw = isRaw
		sb.WriteString(sel)
	}

	for _, p := range plans {
		sb.WriteString("." + p.method + "(" + p.target + ", \"" + p.alias + "\"")
		if p.cond != nil {
			rendered, err := r.frag.expr(p.cond)
			if err != nil {
				return "", err
			}
			sb.WriteString(", \"" + rendered + "\"")
		}
		sb.WriteString(")")
	}

	if q.Filter != nil {
		rendered, err := r.frag.expr(q.Filter)
		if err != nil {
			return "", err
		}
		sb.WriteString(".where(\"" + rendered + "\")")
	}
	for i, g := range q.GroupBy {
		rendered, err := r.frag.expr(g)
		if err != nil {
			return "", err
		}
		method := ".groupBy("
		if i > 0 {
			method = ".addGroupBy("
		}
		sb.WriteString(method + "\"" + rendered + "\")")
	}
	if q.Having != nil {
		rendered, err := r.frag.expr(q.Having)
		if err != nil {
			return "", err
		}
		sb.WriteString(".having(\"" + rendered + "\")")
	}
	if q.Distinct {
		sb.WriteString(".distinct(true)")
	}
	for i, t := range q.OrderBy {
		rendered, err := r.frag.expr(t.Expr)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		method := ".orderBy("
		if i > 0 {
			method = ".addOrderBy("
		}
		sb.WriteString(method + "\"" + rendered + "\", \"" + dir + "\")")
	}
	if q.Offset != nil {
		fmt.Fprintf(&sb, ".skip(%d)", *q.Offset)
	}
	if q.Limit != nil {
		fmt.Fprintf(&sb, ".take(%d)", *q.Limit)
	}

	switch {
	case countOnly:
		sb.WriteString(".getCount()")
	case raw:
		sb.WriteString(".getRawMany()")
	default:
		sb.WriteString(".getMany()")
	}
	return sb.String(), nil
}

// countOnly reports whether the query is a bare COUNT(*) with no grouping,
// which getCount expresses directly.
func (r *toRenderer) countOnly() bool {
	q := r.q
	if len(q.SelectList) != 1 || len(q.GroupBy) > 0 {
		return false
	}
	fn, ok := q.SelectList[0].Expr.(*ir.FunctionCall)
	return ok && fn.Name == "COUNT" && fn.Star
}

// selection renders select/addSelect calls; raw reports whether the result
// rows leave entity shape.
func (r *toRenderer) selection(rawSelected map[string]bool) (string, bool, error) {
	var sb strings.Builder
	raw := false
	first := true
	for _, p := range r.q.SelectList {
		if c, ok := p.Expr.(*ir.Column); ok && c.Name == "*" {
			// entity stars ride on the AndSelect joins
			if c.Table == "" || strings.EqualFold(c.Table, r.q.Source.Binding()) {
				continue
			}
			if rawSelected[strings.ToLower(c.Table)] {
				continue
			}
		}
		rendered, err := r.frag.expr(p.Expr)
		if err != nil {
			return "", false, err
		}
		if _, isCol := p.Expr.(*ir.Column); !isCol || p.Alias != "" {
			raw = true
		}
		method := ".addSelect("
		if first {
			method = ".select("
			first = false
		}
		sb.WriteString(method + "\"" + rendered + "\"")
		if p.Alias != "" {
			sb.WriteString(", \"" + p.Alias + "\"")
		}
		sb.WriteString(")")
	}
	return sb.String(), raw, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
