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
	"github.com/nsxbet/querybridge/pkg/types"
)

func init() {
	engine.Register(&entityFramework{})
}

// entityFramework handles Entity Framework Core method-syntax LINQ chains.
// Grouped stages work over the IGrouping parameter, so Select and Where
// bodies substitute the stored grouping key for g.Key references.
type entityFramework struct{}

const efGroupKey = "ef.groupKey"

func (f *entityFramework) ID() types.FrameworkID { return types.FrameworkEntityFramework }

func (f *entityFramework) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

// Bind seats the model from the DbSet property of the receiver.
func (f *entityFramework) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	segs := strings.Split(tree.Receiver, ".")
	set := segs[len(segs)-1]
	if set == "" {
		return &types.SyntaxError{Msg: "Entity Framework chains start from a DbSet property"}
	}
	b.SetSourceModel(catalog.Singular(set), "")
	return nil
}

func (f *entityFramework) Rules() map[string]engine.Rule {
	return efRules
}

var efRules = map[string]engine.Rule{
	"Where":               {Slot: catalog.SlotFilter, Apply: efWhere},
	"Select":              {Slot: catalog.SlotSelect, Apply: efSelect},
	"Include":             {Slot: catalog.SlotJoin, Apply: efInclude},
	"ThenInclude":         {Slot: catalog.SlotJoin, Apply: efThenInclude},
	"GroupBy":             {Slot: catalog.SlotGroupBy, Apply: efGroupBy},
	"OrderBy":             {Slot: catalog.SlotOrderBy, Apply: efOrder(false, true)},
	"OrderByDescending":   {Slot: catalog.SlotOrderBy, Apply: efOrder(true, true)},
	"ThenBy":              {Slot: catalog.SlotOrderBy, Apply: efOrder(false, false)},
	"ThenByDescending":    {Slot: catalog.SlotOrderBy, Apply: efOrder(true, false)},
	"Skip":                {Slot: catalog.SlotOffset, Apply: efSkip},
	"Take":                {Slot: catalog.SlotLimit, Apply: efTake},
	"Distinct":            {Slot: catalog.SlotSelect, Apply: efDistinct},
	"First":               {Slot: catalog.SlotLimit, Apply: efFirst},
	"FirstOrDefault":      {Slot: catalog.SlotLimit, Apply: efFirst},
	"Single":              {Slot: catalog.SlotLimit, Apply: efFirst},
	"SingleOrDefault":     {Slot: catalog.SlotLimit, Apply: efFirst},
	"Count":               {Slot: catalog.SlotSelect, Apply: efCount},
	"LongCount":           {Slot: catalog.SlotSelect, Apply: efCount},
	"AsNoTracking":        {},
	"AsQueryable":         {},
	"AsEnumerable":        {},
	"ToList":              {},
	"ToListAsync":         {},
	"ToArray":             {},
	"ToArrayAsync":        {},
	"FirstAsync":          {Slot: catalog.SlotLimit, Apply: efFirst},
	"FirstOrDefaultAsync": {Slot: catalog.SlotLimit, Apply: efFirst},
	"CountAsync":          {Slot: catalog.SlotSelect, Apply: efCount},
}

func efArg(b *engine.Builder, call *parsetree.Call) (parsetree.Expr, error) {
	return chainparser.ParseCSharpArg(call.RawArgs, b.Env.Limits)
}

func efLambda(b *engine.Builder, call *parsetree.Call) (*parsetree.LambdaExpr, error) {
	arg, err := efArg(b, call)
	if err != nil {
		return nil, err
	}
	lam, ok := arg.(*parsetree.LambdaExpr)
	if !ok {
		return nil, &types.SyntaxError{Msg: call.Method + " takes a lambda"}
	}
	return lam, nil
}

// efPredicate routes a predicate lambda to WHERE, or to HAVING once the
// chain is grouped.
func efPredicate(b *engine.Builder, lam *parsetree.LambdaExpr) error {
	if len(b.Query().GroupBy) == 0 {
		return b.Where(lam)
	}
	body := efSubstituteKey(b, lam.Body, lam.Param)
	return b.Having(&parsetree.LambdaExpr{Param: lam.Param, Body: body})
}

func efWhere(b *engine.Builder, call *parsetree.Call) error {
	lam, err := efLambda(b, call)
	if err != nil {
		return err
	}
	return efPredicate(b, lam)
}

func efSelect(b *engine.Builder, call *parsetree.Call) error {
	lam, err := efLambda(b, call)
	if err != nil {
		return err
	}
	body := efSubstituteKey(b, lam.Body, lam.Param)
	if err := b.Select(nil, true); err != nil {
		return err
	}
	obj, ok := body.(*parsetree.ObjectExpr)
	if !ok {
		return b.AddProjection(&parsetree.LambdaExpr{Param: lam.Param, Body: body}, "")
	}
	for _, field := range obj.Fields {
		alias := field.Key
		if id, plain := field.Val.(*parsetree.Ident); plain && id.Name == alias {
			alias = ""
		}
		wrapped := &parsetree.LambdaExpr{Param: lam.Param, Body: field.Val}
		if err := b.AddProjection(wrapped, alias); err != nil {
			return err
		}
	}
	return nil
}

func efInclude(b *engine.Builder, call *parsetree.Call) error {
	arg, err := efArg(b, call)
	if err != nil {
		return err
	}
	rel := ""
	switch v := arg.(type) {
	case *parsetree.StringLit:
		rel = v.Val
	case *parsetree.LambdaExpr:
		if id, ok := v.Body.(*parsetree.Ident); ok {
			rel = id.Name
		}
	}
	if rel == "" {
		return &types.SyntaxError{Msg: "Include takes a navigation property"}
	}
	return b.JoinRelation(ir.JoinLeft, rel, "", true)
}

// efThenInclude drops nested include levels; they only shape loading, not
// the query.
func efThenInclude(b *engine.Builder, call *parsetree.Call) error {
	b.Env.Dropped(call.Pos, "nested include")
	return nil
}

func efGroupBy(b *engine.Builder, call *parsetree.Call) error {
	lam, err := efLambda(b, call)
	if err != nil {
		return err
	}
	var keys []parsetree.Expr
	if obj, ok := lam.Body.(*parsetree.ObjectExpr); ok {
		for _, field := range obj.Fields {
			keys = append(keys, field.Val)
		}
	} else {
		keys = []parsetree.Expr{lam.Body}
	}
	wrapped := make([]parsetree.Expr, len(keys))
	for i, k := range keys {
		wrapped[i] = &parsetree.LambdaExpr{Param: lam.Param, Body: k}
	}
	if err := b.GroupBy(wrapped); err != nil {
		return err
	}
	stripped := make([]parsetree.Expr, len(keys))
	for i, k := range keys {
		stripped[i] = efStripParam(k, lam.Param)
	}
	b.Stash[efGroupKey] = stripped
	return nil
}

func efOrder(desc, replace bool) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		lam, err := efLambda(b, call)
		if err != nil {
			return err
		}
		body := efSubstituteKey(b, lam.Body, lam.Param)
		term := parsetree.OrderArg{Expr: &parsetree.LambdaExpr{Param: lam.Param, Body: body}, Desc: desc}
		return b.OrderBy([]parsetree.OrderArg{term}, replace)
	}
}

func efInt(b *engine.Builder, call *parsetree.Call) (int, error) {
	arg, err := efArg(b, call)
	if err != nil {
		return 0, err
	}
	return engine.IntValue(arg, call.Method)
}

func efSkip(b *engine.Builder, call *parsetree.Call) error {
	n, err := efInt(b, call)
	if err != nil {
		return err
	}
	b.SetOffset(n)
	return nil
}

func efTake(b *engine.Builder, call *parsetree.Call) error {
	n, err := efInt(b, call)
	if err != nil {
		return err
	}
	b.SetLimit(n)
	return nil
}

func efDistinct(b *engine.Builder, call *parsetree.Call) error {
	b.SetDistinct()
	return nil
}

func efFirst(b *engine.Builder, call *parsetree.Call) error {
	if strings.TrimSpace(call.RawArgs) != "" {
		lam, err := efLambda(b, call)
		if err != nil {
			return err
		}
		if err := efPredicate(b, lam); err != nil {
			return err
		}
	}
	b.SetLimit(1)
	return nil
}

func efCount(b *engine.Builder, call *parsetree.Call) error {
	if strings.TrimSpace(call.RawArgs) != "" {
		lam, err := efLambda(b, call)
		if err != nil {
			return err
		}
		if err := efPredicate(b, lam); err != nil {
			return err
		}
	}
	return applyCountStar(b, call)
}

// efSubstituteKey replaces param.Key references with the stored grouping
// keys so grouped bodies lower against real columns.
func efSubstituteKey(b *engine.Builder, e parsetree.Expr, param string) parsetree.Expr {
	keys, _ := b.Stash[efGroupKey].([]parsetree.Expr)
	if len(keys) == 0 {
		return e
	}
	var sub func(x parsetree.Expr) parsetree.Expr
	sub = func(x parsetree.Expr) parsetree.Expr {
		switch v := x.(type) {
		case *parsetree.Ident:
			if v.Name == "Key" && strings.EqualFold(v.Qualifier, param) {
				return keys[0]
			}
			// g.Key.City parses with qualifier "g.Key".
			if qual, rest, ok := strings.Cut(v.Qualifier, "."); ok && rest == "Key" && strings.EqualFold(qual, param) {
				for _, k := range keys {
					if id, isID := k.(*parsetree.Ident); isID && strings.EqualFold(id.Name, v.Name) {
						return k
					}
				}
				return keys[0]
			}
		case *parsetree.Binary:
			return &parsetree.Binary{Op: v.Op, Left: sub(v.Left), Right: sub(v.Right)}
		case *parsetree.Unary:
			return &parsetree.Unary{Op: v.Op, Operand: sub(v.Operand)}
		case *parsetree.FuncExpr:
			out := &parsetree.FuncExpr{Name: v.Name, Distinct: v.Distinct, Star: v.Star}
			for _, a := range v.Args {
				out.Args = append(out.Args, sub(a))
			}
			return out
		case *parsetree.ObjectExpr:
			out := &parsetree.ObjectExpr{Fields: make([]parsetree.ObjectField, len(v.Fields))}
			for i, f := range v.Fields {
				out.Fields[i] = parsetree.ObjectField{Key: f.Key, Val: sub(f.Val)}
			}
			return out
		}
		return x
	}
	return sub(e)
}

// efStripParam removes the lambda parameter from qualifier heads so a stored
// key can lower inside a later lambda with a different parameter.
func efStripParam(e parsetree.Expr, param string) parsetree.Expr {
	switch v := e.(type) {
	case *parsetree.Ident:
		if strings.EqualFold(v.Qualifier, param) {
			return &parsetree.Ident{Name: v.Name}
		}
		if head, rest, ok := strings.Cut(v.Qualifier, "."); ok && strings.EqualFold(head, param) {
			return &parsetree.Ident{Qualifier: rest, Name: v.Name}
		}
	case *parsetree.Binary:
		return &parsetree.Binary{Op: v.Op, Left: efStripParam(v.Left, param), Right: efStripParam(v.Right, param)}
	case *parsetree.Unary:
		return &parsetree.Unary{Op: v.Op, Operand: efStripParam(v.Operand, param)}
	case *parsetree.FuncExpr:
		out := &parsetree.FuncExpr{Name: v.Name, Distinct: v.Distinct, Star: v.Star}
		for _, a := range v.Args {
			out.Args = append(out.Args, efStripParam(a, param))
		}
		return out
	}
	return e
}

// Emit renders the query as a context chain. Joined columns travel through
// navigation properties, so only to-one relations can appear outside
// aggregates.
func (f *entityFramework) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	q = inlined
	if q.Source.IsSubquery() {
		return "", &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	fw, err := catalog.ForFramework(types.FrameworkEntityFramework)
	if err != nil {
		return "", err
	}
	r := &efRenderer{fw: fw, q: q, nav: map[string]relation{}}
	return r.render()
}

type efRenderer struct {
	fw  *catalog.Framework
	q   *ir.Query
	v   string
	nav map[string]relation
}

func (r *efRenderer) render() (string, error) {
	q := r.q
	model := r.fw.ModelName(q.Source.Name)
	r.v = strings.ToLower(model[:1])

	var sb strings.Builder
	sb.WriteString("context." + catalog.Plural(model))

	for _, j := range q.Joins {
		rel := relationFor(q, j)
		r.nav[strings.ToLower(j.Target.Binding())] = rel
		if rel.ToOne {
			sb.WriteString(".Include(\"" + catalog.Recase(rel.Name, catalog.PascalCase) + "\")")
		} else {
			sb.WriteString(".Include(\"" + catalog.Recase(catalog.Plural(j.Target.Name), catalog.PascalCase) + "\")")
		}
	}

	if q.Filter != nil {
		rendered, err := r.csExpr(q.Filter, r.v)
		if err != nil {
			return "", err
		}
		sb.WriteString(".Where(" + r.v + " => " + rendered + ")")
	}

	grouped := len(q.GroupBy) > 0
	if grouped {
		key, err := r.groupKey()
		if err != nil {
			return "", err
		}
		sb.WriteString(".GroupBy(" + r.v + " => " + key + ")")
		if q.Having != nil {
			rendered, err := r.groupExpr(q.Having)
			if err != nil {
				return "", err
			}
			sb.WriteString(".Where(g => " + rendered + ")")
		}
	} else if q.Having != nil {
		return "", &types.UnsupportedConstructError{Construct: "HAVING without GROUP BY", Essential: true}
	}

	sel, err := r.selectStage(grouped)
	if err != nil {
		return "", err
	}
	sb.WriteString(sel)

	if q.Distinct {
		sb.WriteString(".Distinct()")
	}

	for i, t := range q.OrderBy {
		rendered := ""
		if grouped {
			rendered, err = r.groupExpr(t.Expr)
		} else {
			rendered, err = r.csExpr(t.Expr, r.v)
		}
		if err != nil {
			return "", err
		}
		v := r.v
		if grouped {
			v = "g"
		}
		method := orderMethod(i == 0, t.Desc)
		sb.WriteString("." + method + "(" + v + " => " + rendered + ")")
	}

	if q.Offset != nil {
		fmt.Fprintf(&sb, ".Skip(%d)", *q.Offset)
	}
	if q.Limit != nil {
		fmt.Fprintf(&sb, ".Take(%d)", *q.Limit)
	}
	sb.WriteString(".ToList()")
	return sb.String(), nil
}

func orderMethod(first, desc bool) string {
	switch {
	case first && desc:
		return "OrderByDescending"
	case first:
		return "OrderBy"
	case desc:
		return "ThenByDescending"
	}
	return "ThenBy"
}

func (r *efRenderer) groupKey() (string, error) {
	if len(r.q.GroupBy) == 1 {
		return r.csExpr(r.q.GroupBy[0], r.v)
	}
	parts := make([]string, len(r.q.GroupBy))
	for i, g := range r.q.GroupBy {
		rendered, err := r.csExpr(g, r.v)
		if err != nil {
			return "", err
		}
		parts[i] = rendered
	}
	return "new { " + strings.Join(parts, ", ") + " }", nil
}

// selectStage renders the projection. Ungrouped star selections keep the
// entity shape and need no Select at all.
func (r *efRenderer) selectStage(grouped bool) (string, error) {
	q := r.q
	if starOnly(q) {
		if grouped {
			return "", &types.UnsupportedConstructError{Construct: "grouped query without aggregates", Essential: true}
		}
		return "", nil
	}
	if len(q.SelectList) == 0 {
		return "", nil
	}
	v := r.v
	expr := r.csExpr
	if grouped {
		v = "g"
		expr = func(e ir.Expr, _ string) (string, error) { return r.groupExpr(e) }
	}
	if len(q.SelectList) == 1 && q.SelectList[0].Alias == "" {
		rendered, err := expr(q.SelectList[0].Expr, v)
		if err != nil {
			return "", err
		}
		return ".Select(" + v + " => " + rendered + ")", nil
	}
	fields := make([]string, len(q.SelectList))
	for i, p := range q.SelectList {
		rendered, err := expr(p.Expr, v)
		if err != nil {
			return "", err
		}
		name := p.Alias
		if name == "" {
			name = catalog.Recase(aliasOrSynth(p), catalog.PascalCase)
		}
		fields[i] = name + " = " + rendered
	}
	return ".Select(" + v + " => new { " + strings.Join(fields, ", ") + " })", nil
}

// groupExpr renders an expression in the grouped stage, over the IGrouping
// parameter g.
func (r *efRenderer) groupExpr(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.FunctionCall:
		if agg, ok := efAggregates[v.Name]; ok {
			if v.Star || len(v.Args) == 0 {
				return "g." + agg + "()", nil
			}
			if v.Name == "COUNT" {
				return "g.Count()", nil
			}
			arg, err := r.csExpr(v.Args[0], "x")
			if err != nil {
				return "", err
			}
			return "g." + agg + "(x => " + arg + ")", nil
		}
		return "", &types.UnsupportedConstructError{Construct: "function " + v.Name + " in a grouped stage", Essential: true}
	case *ir.BinaryOp:
		left, err := r.groupExpr(v.Left)
		if err != nil {
			return "", err
		}
		right, err := r.groupExpr(v.Right)
		if err != nil {
			return "", err
		}
		return left + " " + csOp(v.Op) + " " + right, nil
	case *ir.Column:
		return r.keyRef(v)
	case *ir.Literal:
		return renderLiteral(v.Value, csLit)
	}
	return "", &types.UnsupportedConstructError{Construct: "grouped expression " + ir.DisplayString(e), Essential: true}
}

// keyRef renders a plain column inside a grouped stage as a g.Key access;
// only grouping keys are reachable there.
func (r *efRenderer) keyRef(c *ir.Column) (string, error) {
	for _, g := range r.q.GroupBy {
		if ir.Key(g) == ir.Key(c) {
			if len(r.q.GroupBy) == 1 {
				return "g.Key", nil
			}
			return "g.Key." + r.fw.FieldName(c.Name), nil
		}
	}
	return "", &types.UnsupportedConstructError{Construct: "column " + ir.DisplayString(c) + " outside the grouping key", Essential: true}
}

var efAggregates = map[string]string{
	"COUNT": "Count",
	"SUM":   "Sum",
	"AVG":   "Average",
	"MIN":   "Min",
	"MAX":   "Max",
}

func csOp(op string) string {
	switch op {
	case "=":
		return "=="
	case "<>":
		return "!="
	case "AND":
		return "&&"
	case "OR":
		return "||"
	}
	return op
}

// csExpr renders an expression in the row stage, where v names the lambda
// parameter bound to the source entity.
func (r *efRenderer) csExpr(e ir.Expr, v string) (string, error) {
	switch x := e.(type) {
	case *ir.Column:
		return r.csColumn(x, v)
	case *ir.Literal:
		return renderLiteral(x.Value, csLit)
	case *ir.BinaryOp:
		return r.csBinary(x, v)
	case *ir.FunctionCall:
		return r.csFunc(x, v)
	}
	return "", &types.UnsupportedConstructError{Construct: "expression " + ir.DisplayString(e), Essential: true}
}

func (r *efRenderer) csColumn(c *ir.Column, v string) (string, error) {
	if c.Name == "*" {
		return v, nil
	}
	qual := c.Table
	src := r.q.Source.Binding()
	if qual == "" || strings.EqualFold(qual, src) {
		return v + "." + r.fw.FieldName(c.Name), nil
	}
	rel, ok := r.nav[strings.ToLower(qual)]
	if !ok {
		return "", &types.UnresolvedReferenceError{Name: qual}
	}
	if !rel.ToOne {
		return "", &types.UnsupportedConstructError{
			Construct: "column through the collection " + rel.Name,
			Essential: true,
			Hint:      "aggregate over the collection instead",
		}
	}
	nav := catalog.Recase(rel.Name, catalog.PascalCase)
	return v + "." + nav + "." + r.fw.FieldName(c.Name), nil
}

func (r *efRenderer) csBinary(b *ir.BinaryOp, v string) (string, error) {
	switch b.Op {
	case "LIKE", "NOT LIKE":
		rendered, err := r.csLike(b, v)
		if err != nil {
			return "", err
		}
		if b.Op == "NOT LIKE" {
			rendered = "!" + rendered
		}
		return rendered, nil
	case "IN", "NOT IN":
		rendered, err := r.csIn(b, v)
		if err != nil {
			return "", err
		}
		if b.Op == "NOT IN" {
			rendered = "!" + rendered
		}
		return rendered, nil
	case "IS", "IS NOT":
		left, err := r.csExpr(b.Left, v)
		if err != nil {
			return "", err
		}
		if b.Op == "IS" {
			return left + " == null", nil
		}
		return left + " != null", nil
	}
	left, err := r.csOperand(b.Left, b.Op, false, v)
	if err != nil {
		return "", err
	}
	right, err := r.csOperand(b.Right, b.Op, true, v)
	if err != nil {
		return "", err
	}
	return left + " " + csOp(b.Op) + " " + right, nil
}

func (r *efRenderer) csOperand(e ir.Expr, parentOp string, right bool, v string) (string, error) {
	rendered, err := r.csExpr(e, v)
	if err != nil {
		return "", err
	}
	if sqlemit.NeedsParens(e, parentOp, right) {
		return "(" + rendered + ")", nil
	}
	return rendered, nil
}

func (r *efRenderer) csLike(b *ir.BinaryOp, v string) (string, error) {
	left, err := r.csExpr(b.Left, v)
	if err != nil {
		return "", err
	}
	lit, ok := b.Right.(*ir.Literal)
	if !ok {
		return "", &types.UnsupportedConstructError{Construct: "computed LIKE pattern", Essential: true}
	}
	pat, ok := lit.Value.(string)
	if !ok {
		return "", &types.UnsupportedConstructError{Construct: "non-string LIKE pattern", Essential: true}
	}
	body, leading := strings.CutPrefix(pat, "%")
	body, trailing := strings.CutSuffix(body, "%")
	if strings.ContainsAny(body, "%_") {
		return "", &types.UnsupportedConstructError{Construct: "LIKE pattern with interior wildcards", Essential: true}
	}
	value, err := renderLiteral(body, csLit)
	if err != nil {
		return "", err
	}
	switch {
	case leading && trailing:
		return left + ".Contains(" + value + ")", nil
	case trailing:
		return left + ".StartsWith(" + value + ")", nil
	case leading:
		return left + ".EndsWith(" + value + ")", nil
	}
	return left + " == " + value, nil
}

func (r *efRenderer) csIn(b *ir.BinaryOp, v string) (string, error) {
	left, err := r.csExpr(b.Left, v)
	if err != nil {
		return "", err
	}
	lit, ok := b.Right.(*ir.Literal)
	if !ok {
		return "", &types.UnsupportedConstructError{Construct: "IN over a subquery", Essential: true}
	}
	rendered, err := renderLiteral(lit.Value, csLit)
	if err != nil {
		return "", err
	}
	return rendered + ".Contains(" + left + ")", nil
}

func (r *efRenderer) csFunc(fn *ir.FunctionCall, v string) (string, error) {
	switch fn.Name {
	case "NOT":
		inner, err := r.csExpr(fn.Args[0], v)
		if err != nil {
			return "", err
		}
		if _, ok := fn.Args[0].(*ir.BinaryOp); ok {
			return "!(" + inner + ")", nil
		}
		return "!" + inner, nil
	case "LOWER":
		return r.csStringCall(fn, "ToLower", v)
	case "UPPER":
		return r.csStringCall(fn, "ToUpper", v)
	case "LENGTH":
		inner, err := r.csExpr(fn.Args[0], v)
		if err != nil {
			return "", err
		}
		return inner + ".Length", nil
	}
	return "", &types.UnsupportedConstructError{Construct: "function " + fn.Name, Essential: true}
}

func (r *efRenderer) csStringCall(fn *ir.FunctionCall, method, v string) (string, error) {
	if len(fn.Args) != 1 {
		return "", &types.UnsupportedConstructError{Construct: "function " + fn.Name, Essential: true}
	}
	inner, err := r.csExpr(fn.Args[0], v)
	if err != nil {
		return "", err
	}
	return inner + "." + method + "()", nil
}
