package frameworks

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/chainparser"
	"github.com/nsxbet/querybridge/pkg/engine"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

func init() {
	engine.Register(&django{})
}

// django handles Django QuerySet chains. Field lookups travel as
// double-underscore paths, so most of the work here is splitting paths into
// relation hops and comparison operators.
type django struct{}

func (d *django) ID() types.FrameworkID { return types.FrameworkDjango }

func (d *django) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

// Bind seats the model from the Model.objects receiver.
func (d *django) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	model, rest, ok := strings.Cut(tree.Receiver, ".")
	if !ok || rest != "objects" && !strings.HasPrefix(rest, "objects.") {
		return &types.SyntaxError{Msg: "Django chains start from Model.objects"}
	}
	b.SetSourceModel(model, "")
	return nil
}

func (d *django) Rules() map[string]engine.Rule {
	return djRules
}

var djRules = map[string]engine.Rule{
	"filter":           {Slot: catalog.SlotFilter, Apply: djFilter(false)},
	"exclude":          {Slot: catalog.SlotFilter, Apply: djFilter(true)},
	"annotate":         {Slot: catalog.SlotSelect, Apply: djAnnotate},
	"aggregate":        {Slot: catalog.SlotSelect, Apply: djAggregate},
	"values":           {Slot: catalog.SlotSelect, Apply: djValues},
	"values_list":      {Slot: catalog.SlotSelect, Apply: djValues},
	"order_by":         {Slot: catalog.SlotOrderBy, Apply: djOrderBy},
	"select_related":   {Slot: catalog.SlotJoin, Apply: djEager},
	"prefetch_related": {Slot: catalog.SlotJoin, Apply: djEager},
	"distinct":         {Slot: catalog.SlotSelect, Apply: djDistinct},
	"count":            {Slot: catalog.SlotSelect, Apply: applyCountStar},
	"first":            {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"earliest":         {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"latest":           {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"slice":            {Slot: catalog.SlotLimit, Apply: applySlice},
	"union":            {Slot: catalog.SlotFilter, Apply: djForbid("union")},
	"raw":              {Slot: catalog.SlotFilter, Apply: djForbid("raw SQL")},
	"extra":            {Slot: catalog.SlotFilter, Apply: djForbid("extra SQL")},

	"all":      {},
	"exists":   {},
	"iterator": {},
	"get":      {Slot: catalog.SlotFilter, Apply: djGet},
}

func djArgs(b *engine.Builder, call *parsetree.Call) ([]parsetree.Arg, error) {
	return chainparser.ParsePythonArgs(call.RawArgs, b.Env.Limits)
}

func djForbid(what string) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		return &types.UnsupportedConstructError{
			Construct: what,
			Position:  types.NewPosition(int(call.Pos.Line), int(call.Pos.Column)),
			Essential: true,
		}
	}
}

// djOps maps the trailing lookup segment of a field path onto an operator.
var djOps = map[string]string{
	"exact":       "=",
	"iexact":      "=",
	"gt":          ">",
	"gte":         ">=",
	"lt":          "<",
	"lte":         "<=",
	"in":          "IN",
	"contains":    "LIKE",
	"icontains":   "LIKE",
	"startswith":  "LIKE",
	"istartswith": "LIKE",
	"endswith":    "LIKE",
	"iendswith":   "LIKE",
	"isnull":      "IS",
}

func djFilter(negate bool) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		args, err := djArgs(b, call)
		if err != nil {
			return err
		}
		for _, a := range args {
			if a.Name == "" {
				cond, err := djTransformQ(a.Value)
				if err != nil {
					return err
				}
				if err := djSeat(b, cond); err != nil {
					return err
				}
				if negate {
					err = b.WhereNot(cond)
				} else {
					err = b.Where(cond)
				}
				if err != nil {
					return err
				}
				continue
			}
			if err := djKwargFilter(b, a.Name, a.Value, negate); err != nil {
				return err
			}
		}
		return nil
	}
}

// djGet is filter plus a single-row fetch.
func djGet(b *engine.Builder, call *parsetree.Call) error {
	if strings.TrimSpace(call.RawArgs) != "" {
		if err := djFilter(false)(b, call); err != nil {
			return err
		}
	}
	b.SetLimit(1)
	return nil
}

// djKwargFilter turns one name__lookup=value pair into a condition. A path
// whose head names an aggregate annotation becomes a HAVING term instead.
func djKwargFilter(b *engine.Builder, name string, value parsetree.Expr, negate bool) error {
	segs := strings.Split(name, "__")
	op := "="
	if len(segs) > 1 {
		if mapped, ok := djOps[segs[len(segs)-1]]; ok {
			op = mapped
			segs = segs[:len(segs)-1]
		}
	}
	last := segs[len(segs)-1]
	if aliased := b.Aliased(segs[0]); len(segs) == 1 && aliased != nil && ir.ContainsAggregate(aliased) {
		return djHavingTerm(b, aliased, op, last, value, negate)
	}

	field, err := djFieldPath(b, segs, ir.JoinInner)
	if err != nil {
		return err
	}
	right, err := djLookupValue(op, last, value)
	if err != nil {
		return err
	}
	cond := parsetree.Expr(&parsetree.Binary{Op: op, Left: field, Right: right.value})
	if right.negated {
		cond = &parsetree.Binary{Op: flipIs(op), Left: field, Right: right.value}
	}
	if negate {
		return b.WhereNot(cond)
	}
	return b.Where(cond)
}

type djValue struct {
	value   parsetree.Expr
	negated bool
}

// djLookupValue adapts the raw value to the lookup: LIKE patterns get their
// wildcards, isnull folds its boolean into IS or IS NOT.
func djLookupValue(op, lookup string, value parsetree.Expr) (djValue, error) {
	switch op {
	case "LIKE":
		lit, ok := value.(*parsetree.StringLit)
		if !ok {
			return djValue{value: value}, nil
		}
		pat := lit.Val
		switch strings.TrimPrefix(lookup, "i") {
		case "contains":
			pat = "%" + pat + "%"
		case "startswith":
			pat = pat + "%"
		case "endswith":
			pat = "%" + pat
		}
		return djValue{value: &parsetree.StringLit{Val: pat}}, nil
	case "IS":
		bl, ok := value.(*parsetree.BoolLit)
		if !ok {
			return djValue{}, &types.SyntaxError{Msg: "isnull takes True or False"}
		}
		return djValue{value: &parsetree.NullLit{}, negated: !bl.Val}, nil
	}
	return djValue{value: djTransformF(value)}, nil
}

func flipIs(op string) string {
	if op == "IS" {
		return "IS NOT"
	}
	return op
}

// djHavingTerm puts a comparison against an aggregate alias into HAVING.
func djHavingTerm(b *engine.Builder, agg ir.Expr, op, lookup string, value parsetree.Expr, negate bool) error {
	if op == "LIKE" || op == "IN" {
		return &types.UnsupportedConstructError{Construct: lookup + " lookup on an aggregate alias", Essential: true}
	}
	var right ir.Expr
	if op == "IS" {
		bl, ok := value.(*parsetree.BoolLit)
		if !ok {
			return &types.SyntaxError{Msg: "isnull takes True or False"}
		}
		if !bl.Val {
			op = "IS NOT"
		}
		right = &ir.Literal{}
	} else {
		lowered, err := b.Lower(value)
		if err != nil {
			return err
		}
		right = lowered
	}
	var cond ir.Expr = &ir.BinaryOp{Op: op, Left: agg, Right: right}
	if negate {
		cond = &ir.FunctionCall{Name: "NOT", Args: []ir.Expr{cond}}
	}
	b.HavingExpr(cond)
	return nil
}

// djFieldPath resolves a lookup path to a column reference, joining one
// relation hop when the path crosses a relationship.
func djFieldPath(b *engine.Builder, segs []string, kind ir.JoinKind) (parsetree.Expr, error) {
	switch len(segs) {
	case 1:
		return &parsetree.Ident{Name: segs[0]}, nil
	case 2:
		if err := b.JoinRelation(kind, segs[0], "", false); err != nil {
			return nil, err
		}
		return &parsetree.Ident{Qualifier: segs[0], Name: segs[1]}, nil
	}
	return nil, &types.UnsupportedConstructError{
		Construct: "field path " + strings.Join(segs, "__") + " crossing two relations",
		Essential: true,
		Hint:      "split the query at the intermediate relation",
	}
}

// djTransformQ rewrites Q(...) combinators into plain boolean expressions.
func djTransformQ(e parsetree.Expr) (parsetree.Expr, error) {
	switch v := e.(type) {
	case *parsetree.Binary:
		left, err := djTransformQ(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := djTransformQ(v.Right)
		if err != nil {
			return nil, err
		}
		return &parsetree.Binary{Op: v.Op, Left: left, Right: right}, nil
	case *parsetree.Unary:
		inner, err := djTransformQ(v.Operand)
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: v.Op, Operand: inner}, nil
	case *parsetree.FuncExpr:
		if v.Name == "Q" {
			return djQBody(v)
		}
	}
	return djTransformF(e), nil
}

// djQBody conjoins the keyword conditions inside one Q(...).
func djQBody(q *parsetree.FuncExpr) (parsetree.Expr, error) {
	var out parsetree.Expr
	for _, a := range q.Args {
		kw, ok := a.(*parsetree.KwargExpr)
		if !ok {
			return nil, &types.SyntaxError{Msg: "Q takes keyword conditions"}
		}
		cond, err := djQCond(kw.Name, kw.Value)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = cond
		} else {
			out = &parsetree.Binary{Op: "AND", Left: out, Right: cond}
		}
	}
	if out == nil {
		return nil, &types.SyntaxError{Msg: "empty Q object"}
	}
	return out, nil
}

// djQCond builds the parse-level condition for one lookup inside a Q object.
// Relation hops are deferred to djSeat so negation wraps correctly.
func djQCond(name string, value parsetree.Expr) (parsetree.Expr, error) {
	segs := strings.Split(name, "__")
	op := "="
	if len(segs) > 1 {
		if mapped, ok := djOps[segs[len(segs)-1]]; ok {
			op = mapped
			segs = segs[:len(segs)-1]
		}
	}
	if len(segs) > 2 {
		return nil, &types.UnsupportedConstructError{
			Construct: "field path " + name + " crossing two relations",
			Essential: true,
		}
	}
	field := &parsetree.Ident{Name: segs[len(segs)-1]}
	if len(segs) == 2 {
		field.Qualifier = segs[0]
	}
	right, err := djLookupValue(op, segs[len(segs)-1], value)
	if err != nil {
		return nil, err
	}
	if right.negated {
		op = flipIs(op)
	}
	return &parsetree.Binary{Op: op, Left: field, Right: right.value}, nil
}

// djSeat joins the relations a transformed Q condition references.
func djSeat(b *engine.Builder, e parsetree.Expr) error {
	switch v := e.(type) {
	case *parsetree.Ident:
		if v.Qualifier != "" {
			return b.JoinRelation(ir.JoinInner, v.Qualifier, "", false)
		}
	case *parsetree.Binary:
		if err := djSeat(b, v.Left); err != nil {
			return err
		}
		return djSeat(b, v.Right)
	case *parsetree.Unary:
		return djSeat(b, v.Operand)
	case *parsetree.FuncExpr:
		for _, a := range v.Args {
			if err := djSeat(b, a); err != nil {
				return err
			}
		}
	}
	return nil
}

// djTransformF rewrites F('field') references into identifiers, in place of
// the call form.
func djTransformF(e parsetree.Expr) parsetree.Expr {
	fn, ok := e.(*parsetree.FuncExpr)
	if !ok {
		return e
	}
	if fn.Name == "F" && len(fn.Args) == 1 {
		if lit, ok := fn.Args[0].(*parsetree.StringLit); ok {
			qual, name, hop := strings.Cut(lit.Val, "__")
			if hop {
				return &parsetree.Ident{Qualifier: qual, Name: name}
			}
			return &parsetree.Ident{Name: lit.Val}
		}
	}
	return e
}

// djAnnotate adds aliased expressions to the select list. The first
// aggregate annotation freezes the current plain columns as grouping keys,
// the way aggregate annotations over a narrowed select list behave.
func djAnnotate(b *engine.Builder, call *parsetree.Call) error {
	return djProject(b, call, true)
}

// djAggregate is annotate without grouping: the whole result collapses to
// the aggregate row.
func djAggregate(b *engine.Builder, call *parsetree.Call) error {
	if err := b.Select(nil, true); err != nil {
		return err
	}
	return djProject(b, call, false)
}

func djProject(b *engine.Builder, call *parsetree.Call, group bool) error {
	args, err := djArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		if a.Name == "" {
			return &types.SyntaxError{Msg: call.Method + " takes keyword arguments"}
		}
		expr, err := djAggExpr(b, a.Value)
		if err != nil {
			return err
		}
		lowered, err := b.Lower(expr)
		if err != nil {
			return err
		}
		if group && ir.ContainsAggregate(lowered) {
			b.GroupByCurrentColumns()
		}
		b.ProjectLowered(lowered, a.Name)
	}
	return nil
}

// djAggExpr rewrites the string field paths inside aggregate calls, joining
// relation hops with LEFT so rows without related records still count.
func djAggExpr(b *engine.Builder, e parsetree.Expr) (parsetree.Expr, error) {
	fn, ok := e.(*parsetree.FuncExpr)
	if !ok {
		return djTransformF(e), nil
	}
	out := &parsetree.FuncExpr{Name: fn.Name, Args: make([]parsetree.Expr, len(fn.Args)), Distinct: fn.Distinct, Star: fn.Star}
	for i, a := range fn.Args {
		if kw, ok := a.(*parsetree.KwargExpr); ok && kw.Name == "distinct" {
			out.Args[i] = a
			continue
		}
		lit, ok := a.(*parsetree.StringLit)
		if !ok {
			inner, err := djAggExpr(b, a)
			if err != nil {
				return nil, err
			}
			out.Args[i] = inner
			continue
		}
		field, err := djFieldPath(b, strings.Split(lit.Val, "__"), ir.JoinLeft)
		if err != nil {
			return nil, err
		}
		out.Args[i] = field
	}
	return out, nil
}

// djValues narrows the select list to named fields.
func djValues(b *engine.Builder, call *parsetree.Call) error {
	args, err := djArgs(b, call)
	if err != nil {
		return err
	}
	if err := b.Select(nil, true); err != nil {
		return err
	}
	for _, a := range args {
		lit, ok := a.Value.(*parsetree.StringLit)
		if !ok {
			if kw, isFlat := a.Value.(*parsetree.BoolLit); isFlat && a.Name == "flat" && kw.Val {
				continue
			}
			return &types.SyntaxError{Msg: call.Method + " takes field names"}
		}
		field, err := djFieldPath(b, strings.Split(lit.Val, "__"), ir.JoinInner)
		if err != nil {
			return err
		}
		if err := b.AddProjection(field, ""); err != nil {
			return err
		}
	}
	return nil
}

// djOrderBy replaces the ordering; Django's order_by overrides earlier calls.
func djOrderBy(b *engine.Builder, call *parsetree.Call) error {
	args, err := djArgs(b, call)
	if err != nil {
		return err
	}
	terms := make([]parsetree.OrderArg, 0, len(args))
	for _, a := range args {
		lit, ok := a.Value.(*parsetree.StringLit)
		if !ok {
			b.Env.Dropped(call.Pos, "order_by expression")
			continue
		}
		path, desc := strings.CutPrefix(lit.Val, "-")
		field, err := djFieldPath(b, strings.Split(path, "__"), ir.JoinInner)
		if err != nil {
			return err
		}
		terms = append(terms, parsetree.OrderArg{Expr: field, Desc: desc})
	}
	return b.OrderBy(terms, true)
}

// djEager turns eager-load hints into declared LEFT joins. Hops past the
// first relation are loading detail with no shape effect, so they drop.
func djEager(b *engine.Builder, call *parsetree.Call) error {
	args, err := djArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		lit, ok := a.Value.(*parsetree.StringLit)
		if !ok {
			b.Env.Dropped(call.Pos, "eager-load expression")
			continue
		}
		rel, _, _ := strings.Cut(lit.Val, "__")
		if err := b.JoinRelation(ir.JoinLeft, rel, "", true); err != nil {
			return err
		}
	}
	return nil
}

func djDistinct(b *engine.Builder, call *parsetree.Call) error {
	if strings.TrimSpace(call.RawArgs) != "" {
		b.Env.Dropped(call.Pos, "DISTINCT ON fields")
	}
	b.SetDistinct()
	return nil
}

// Emit renders the query as a Model.objects chain, using values/annotate for
// grouped shapes and double-underscore paths for joined columns.
func (d *django) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	q = inlined
	if q.Source.IsSubquery() {
		return "", &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	fw, err := catalog.ForFramework(types.FrameworkDjango)
	if err != nil {
		return "", err
	}
	r := &djRenderer{fw: fw, q: q, paths: map[string]string{}, aliases: map[string]string{}}
	return r.render(env)
}

type djRenderer struct {
	fw *catalog.Framework
	q  *ir.Query
	// paths maps scope bindings to lookup-path prefixes ("" for the source,
	// "order__" for a joined relation).
	paths map[string]string
	// aliases maps select-list expression keys to their annotation aliases,
	// so HAVING terms can refer back to them.
	aliases map[string]string
}

func (r *djRenderer) render(env *engine.Env) (string, error) {
	q := r.q
	src := q.Source.Binding()
	r.paths[strings.ToLower(src)] = ""
	consumed := make([]bool, len(q.Joins))
	for i, j := range q.Joins {
		rel := relationFor(q, j)
		prefix := rel.Name
		if !rel.ToOne {
			prefix = catalog.Singular(j.Target.Name)
		}
		r.paths[strings.ToLower(j.Target.Binding())] = prefix + "__"
		consumed[i] = r.joinReferenced(j.Target.Binding())
	}

	var sb strings.Builder
	sb.WriteString(r.fw.ModelName(q.Source.Name) + ".objects")

	plain, aggs, err := r.splitProjections()
	if err != nil {
		return "", err
	}
	if len(plain) > 0 {
		sb.WriteString(".values(" + strings.Join(quoteAll(plain), ", ") + ")")
	}
	if len(aggs) > 0 {
		sb.WriteString(".annotate(" + strings.Join(aggs, ", ") + ")")
	}

	// Joins not consumed by any field path surface as eager loads; to-many
	// relations have no select_related form, which is advisory only.
	for i, j := range q.Joins {
		if consumed[i] {
			continue
		}
		rel := relationFor(q, j)
		if rel.ToOne {
			sb.WriteString(".select_related('" + rel.Name + "')")
		} else {
			sb.WriteString(".prefetch_related('" + catalog.Singular(j.Target.Name) + "')")
		}
	}

	if q.Filter != nil {
		rendered, err := r.condition(q.Filter)
		if err != nil {
			return "", err
		}
		sb.WriteString(".filter(" + rendered + ")")
	}
	if q.Having != nil {
		rendered, err := r.condition(q.Having)
		if err != nil {
			return "", err
		}
		sb.WriteString(".filter(" + rendered + ")")
	}
	if q.Distinct {
		sb.WriteString(".distinct()")
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, t := range q.OrderBy {
			path, err := r.orderPath(t)
			if err != nil {
				return "", err
			}
			terms[i] = "'" + path + "'"
		}
		sb.WriteString(".order_by(" + strings.Join(terms, ", ") + ")")
	}
	if lo, hi, ok := sliceBounds(q.Limit, q.Offset); ok {
		sb.WriteString("[" + lo + ":" + hi + "]")
	}
	return sb.String(), nil
}

// joinReferenced reports whether any column outside the join's own condition
// mentions the binding, which decides between path emission and an eager-load
// hint.
func (r *djRenderer) joinReferenced(binding string) bool {
	for _, c := range queryColumns(r.q) {
		if strings.EqualFold(c.Table, binding) {
			return true
		}
	}
	return false
}

// splitProjections separates plain grouped columns from aggregate
// annotations. Star projections mean the model itself is selected.
func (r *djRenderer) splitProjections() (plain []string, aggs []string, err error) {
	for _, p := range r.q.SelectList {
		if c, ok := p.Expr.(*ir.Column); ok {
			if c.Name == "*" {
				continue
			}
			path, err := r.fieldPath(c)
			if err != nil {
				return nil, nil, err
			}
			plain = append(plain, path)
			continue
		}
		alias := aliasOrSynth(p)
		rendered, err := r.annotation(p.Expr)
		if err != nil {
			return nil, nil, err
		}
		r.aliases[ir.Key(p.Expr)] = alias
		aggs = append(aggs, alias+"="+rendered)
	}
	return plain, aggs, nil
}

// annotation renders an aggregate expression in the Count('path') form.
func (r *djRenderer) annotation(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.FunctionCall:
		name, ok := djAggNames[v.Name]
		if !ok {
			return "", &types.UnsupportedConstructError{Construct: "function " + v.Name + " in an annotation", Essential: true}
		}
		var arg string
		switch {
		case v.Star:
			arg = "'id'"
		case len(v.Args) == 1:
			col, ok := v.Args[0].(*ir.Column)
			if !ok {
				return "", &types.UnsupportedConstructError{Construct: "computed aggregate argument", Essential: true}
			}
			path, err := r.fieldPath(col)
			if err != nil {
				return "", err
			}
			arg = "'" + path + "'"
		default:
			return "", &types.UnsupportedConstructError{Construct: "multi-argument aggregate", Essential: true}
		}
		if v.Distinct {
			arg += ", distinct=True"
		}
		return name + "(" + arg + ")", nil
	case *ir.BinaryOp:
		left, err := r.fExpr(v.Left)
		if err != nil {
			return "", err
		}
		right, err := r.fExpr(v.Right)
		if err != nil {
			return "", err
		}
		return left + " " + v.Op + " " + right, nil
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("annotation %T", e), Essential: true}
}

// fExpr renders the F-expression form used inside computed annotations.
func (r *djRenderer) fExpr(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.Column:
		path, err := r.fieldPath(v)
		if err != nil {
			return "", err
		}
		return "F('" + path + "')", nil
	case *ir.Literal:
		return renderLiteral(v.Value, pyLit)
	}
	return "", &types.UnsupportedConstructError{Construct: "computed annotation", Essential: true}
}

var djAggNames = map[string]string{
	"COUNT": "Count",
	"SUM":   "Sum",
	"AVG":   "Avg",
	"MIN":   "Min",
	"MAX":   "Max",
}

func (r *djRenderer) fieldPath(c *ir.Column) (string, error) {
	qual := c.Table
	if qual == "" {
		qual = r.q.Source.Binding()
	}
	prefix, ok := r.paths[strings.ToLower(qual)]
	if !ok {
		return "", &types.UnresolvedReferenceError{Name: qual}
	}
	return prefix + r.fw.FieldName(c.Name), nil
}

// negatedOps are the comparisons Django spells as an excluded positive form.
var negatedOps = map[string]string{
	"<>":       "=",
	"NOT IN":   "IN",
	"NOT LIKE": "LIKE",
}

// condition renders a boolean expression as filter keyword arguments,
// falling back to Q objects for OR and NOT shapes.
func (r *djRenderer) condition(e ir.Expr) (string, error) {
	if b, ok := e.(*ir.BinaryOp); ok && b.Op == "AND" {
		left, err := r.condition(b.Left)
		if err != nil {
			return "", err
		}
		right, err := r.condition(b.Right)
		if err != nil {
			return "", err
		}
		return left + ", " + right, nil
	}
	if fn, ok := e.(*ir.FunctionCall); ok && fn.Name == "NOT" && len(fn.Args) == 1 {
		inner, err := r.qObject(fn.Args[0])
		if err != nil {
			return "", err
		}
		return "~" + inner, nil
	}
	if b, ok := e.(*ir.BinaryOp); ok {
		if b.Op == "OR" {
			return r.qObject(e)
		}
		if pos, ok := negatedOps[b.Op]; ok {
			inner, err := r.lookup(&ir.BinaryOp{Op: pos, Left: b.Left, Right: b.Right})
			if err != nil {
				return "", err
			}
			return "~Q(" + inner + ")", nil
		}
	}
	return r.lookup(e)
}

// qObject renders a condition in Q(...) form for combinators kwargs cannot
// express.
func (r *djRenderer) qObject(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.BinaryOp:
		switch v.Op {
		case "AND", "OR":
			op := " & "
			if v.Op == "OR" {
				op = " | "
			}
			left, err := r.qObject(v.Left)
			if err != nil {
				return "", err
			}
			right, err := r.qObject(v.Right)
			if err != nil {
				return "", err
			}
			return "(" + left + op + right + ")", nil
		}
		if pos, ok := negatedOps[v.Op]; ok {
			inner, err := r.lookup(&ir.BinaryOp{Op: pos, Left: v.Left, Right: v.Right})
			if err != nil {
				return "", err
			}
			return "~Q(" + inner + ")", nil
		}
	case *ir.FunctionCall:
		if v.Name == "NOT" && len(v.Args) == 1 {
			inner, err := r.qObject(v.Args[0])
			if err != nil {
				return "", err
			}
			return "~" + inner, nil
		}
	}
	kw, err := r.lookup(e)
	if err != nil {
		return "", err
	}
	return "Q(" + kw + ")", nil
}

// lookup renders one comparison as a keyword argument pair.
func (r *djRenderer) lookup(e ir.Expr) (string, error) {
	b, ok := e.(*ir.BinaryOp)
	if !ok {
		return "", &types.UnsupportedConstructError{Construct: "filter shape " + ir.DisplayString(e), Essential: true}
	}
	base, err := r.lookupBase(b.Left)
	if err != nil {
		return "", err
	}
	switch b.Op {
	case "IS":
		return base + "__isnull=True", nil
	case "IS NOT":
		return base + "__isnull=False", nil
	case "LIKE":
		return r.likeLookup(base, b.Right)
	}
	suffix, ok := djLookups[b.Op]
	if !ok {
		return "", &types.UnsupportedConstructError{Construct: "operator " + b.Op + " in a filter", Essential: true}
	}
	value, err := r.lookupValue(b.Right)
	if err != nil {
		return "", err
	}
	return base + suffix + "=" + value, nil
}

var djLookups = map[string]string{
	"=":  "",
	">":  "__gt",
	">=": "__gte",
	"<":  "__lt",
	"<=": "__lte",
	"IN": "__in",
}

func (r *djRenderer) lookupBase(left ir.Expr) (string, error) {
	if col, ok := left.(*ir.Column); ok {
		return r.fieldPath(col)
	}
	if alias, ok := r.aliases[ir.Key(left)]; ok {
		return alias, nil
	}
	return "", &types.UnsupportedConstructError{Construct: "computed filter operand", Essential: true}
}

// likeLookup classifies the wildcard affixes of a LIKE pattern into the
// contains, startswith and endswith lookups.
func (r *djRenderer) likeLookup(base string, right ir.Expr) (string, error) {
	lit, ok := right.(*ir.Literal)
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
	value, err := renderLiteral(body, pyLit)
	if err != nil {
		return "", err
	}
	switch {
	case leading && trailing:
		return base + "__contains=" + value, nil
	case trailing:
		return base + "__startswith=" + value, nil
	case leading:
		return base + "__endswith=" + value, nil
	}
	return base + "=" + value, nil
}

func (r *djRenderer) lookupValue(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.Literal:
		return renderLiteral(v.Value, pyLit)
	case *ir.Column:
		path, err := r.fieldPath(v)
		if err != nil {
			return "", err
		}
		return "F('" + path + "')", nil
	case *ir.Subquery:
		return "", &types.UnsupportedConstructError{Construct: "subquery in a filter value", Essential: true}
	}
	return "", &types.UnsupportedConstructError{Construct: "filter value " + ir.DisplayString(e), Essential: true}
}

func (r *djRenderer) orderPath(t ir.OrderTerm) (string, error) {
	switch v := t.Expr.(type) {
	case *ir.Column:
		path, err := r.fieldPath(v)
		if err != nil {
			return "", err
		}
		if t.Desc {
			return "-" + path, nil
		}
		return path, nil
	default:
		alias, ok := r.aliases[ir.Key(t.Expr)]
		if !ok {
			return "", &types.UnsupportedConstructError{Construct: "ordering by a computed expression", Essential: true}
		}
		if t.Desc {
			return "-" + alias, nil
		}
		return alias, nil
	}
}

func quoteAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = "'" + v + "'"
	}
	return out
}

// sliceBounds renders limit and offset as python slice endpoints.
func sliceBounds(limit, offset *int) (string, string, bool) {
	if limit == nil && offset == nil {
		return "", "", false
	}
	lo, hi := "", ""
	start := 0
	if offset != nil {
		start = *offset
		lo = fmt.Sprintf("%d", start)
	}
	if limit != nil {
		hi = fmt.Sprintf("%d", start+*limit)
	}
	return lo, hi, true
}
