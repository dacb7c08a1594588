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
	engine.Register(&sqlalchemy{})
}

// sqlalchemy handles SQLAlchemy query chains, covering both the classic
// session.query(Model) style and the 2.0 select(Model) style.
type sqlalchemy struct{}

func (s *sqlalchemy) ID() types.FrameworkID { return types.FrameworkSQLAlchemy }

func (s *sqlalchemy) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

func (s *sqlalchemy) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	return nil // query and select entries seat the source
}

func (s *sqlalchemy) Rules() map[string]engine.Rule {
	return saRules
}

var saRules = map[string]engine.Rule{
	"query":       {Slot: catalog.SlotSource, Apply: saEntities},
	"select":      {Slot: catalog.SlotSource, Apply: saEntities},
	"add_columns": {Slot: catalog.SlotSelect, Apply: saAddColumns},
	"filter":      {Slot: catalog.SlotFilter, Apply: saFilter},
	"where":       {Slot: catalog.SlotFilter, Apply: saFilter},
	"filter_by":   {Slot: catalog.SlotFilter, Apply: saFilterBy},
	"join":        {Slot: catalog.SlotJoin, Apply: saJoin(ir.JoinInner)},
	"outerjoin":   {Slot: catalog.SlotJoin, Apply: saJoin(ir.JoinLeft)},
	"options":     {Slot: catalog.SlotJoin, Apply: saOptions},
	"group_by":    {Slot: catalog.SlotGroupBy, Apply: saGroupBy},
	"having":      {Slot: catalog.SlotHaving, Apply: saHaving},
	"order_by":    {Slot: catalog.SlotOrderBy, Apply: saOrderBy},
	"limit":       {Slot: catalog.SlotLimit, Apply: saLimit},
	"offset":      {Slot: catalog.SlotOffset, Apply: saOffset},
	"slice":       {Slot: catalog.SlotLimit, Apply: applySlice},
	"first":       {Slot: catalog.SlotLimit, Apply: applyLimitOne},
	"distinct":    {Slot: catalog.SlotSelect, Apply: saDistinct},
	"count":       {Slot: catalog.SlotSelect, Apply: applyCountStar},
	"params":      {Slot: catalog.SlotFilter, Apply: saParams},

	// Execution and session plumbing, no query shape.
	"all":             {},
	"one":             {},
	"one_or_none":     {},
	"scalar":          {},
	"scalars":         {},
	"subquery":        {},
	"scalar_subquery": {},
	"execute":         {},
}

func saArgs(b *engine.Builder, call *parsetree.Call) ([]parsetree.Arg, error) {
	return chainparser.ParsePythonArgs(call.RawArgs, b.Env.Limits)
}

// saEntities seats the source from the first bare model argument and projects
// the rest, the way query(Model) and select(Model.col, ...) behave.
func saEntities(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		if model, ok := bareModel(a.Value); ok {
			if b.Query().Source.Name == "" {
				b.SetSourceModel(model, "")
			} else {
				b.Env.Dropped(call.Pos, fmt.Sprintf("additional entity %s", model))
			}
			continue
		}
		if b.Query().Source.Name == "" {
			if model := qualifierModel(a.Value); model != "" {
				b.SetSourceModel(model, "")
			}
		}
		if err := b.AddProjection(a.Value, a.Name); err != nil {
			return err
		}
	}
	return nil
}

func saAddColumns(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	return b.Select(args, false)
}

func saFilter(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		if a.Name != "" {
			return &types.SyntaxError{Msg: "filter takes expressions; use filter_by for keyword filters"}
		}
		if err := b.Where(a.Value); err != nil {
			return err
		}
	}
	return nil
}

func saFilterBy(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		if a.Name == "" {
			return &types.SyntaxError{Msg: "filter_by takes keyword arguments"}
		}
		cond := &parsetree.Binary{Op: "=", Left: &parsetree.Ident{Name: a.Name}, Right: a.Value}
		if err := b.Where(cond); err != nil {
			return err
		}
	}
	return nil
}

func saJoin(kind ir.JoinKind) func(*engine.Builder, *parsetree.Call) error {
	return func(b *engine.Builder, call *parsetree.Call) error {
		args, err := saArgs(b, call)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return &types.SyntaxError{Msg: "join needs a target"}
		}
		k := kind
		var cond parsetree.Expr
		for _, extra := range args[1:] {
			switch extra.Name {
			case "isouter":
				if bl, ok := extra.Value.(*parsetree.BoolLit); ok && bl.Val {
					k = ir.JoinLeft
				}
			case "full":
				if bl, ok := extra.Value.(*parsetree.BoolLit); ok && bl.Val {
					k = ir.JoinFull
				}
			case "":
				if cond == nil {
					cond = extra.Value
				}
			default:
				b.Env.Dropped(call.Pos, fmt.Sprintf("join option %s", extra.Name))
			}
		}
		switch v := args[0].Value.(type) {
		case *parsetree.Ident:
			if v.Qualifier != "" {
				// relationship attribute, User.orders
				return b.JoinRelation(k, v.Name, "", true)
			}
			if cond != nil {
				return b.JoinModel(k, v.Name, "", cond, true)
			}
			return b.JoinRelation(k, v.Name, "", true)
		case *parsetree.SubqueryExpr:
			return &types.UnsupportedConstructError{
				Construct: "join against a subquery",
				Position:  types.NewPosition(int(call.Pos.Line), int(call.Pos.Column)),
				Essential: true,
			}
		}
		return &types.SyntaxError{Msg: "join target must be an entity or relationship"}
	}
}

// saOptions folds eager-load options into joins and drops pure loading hints.
func saOptions(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		fn, ok := a.Value.(*parsetree.FuncExpr)
		if !ok {
			b.Env.Dropped(call.Pos, "query option")
			continue
		}
		switch strings.ToLower(fn.Name) {
		case "joinedload", "selectinload", "subqueryload", "contains_eager":
			if len(fn.Args) == 1 {
				if id, ok := fn.Args[0].(*parsetree.Ident); ok {
					if err := b.JoinRelation(ir.JoinLeft, id.Name, "", true); err != nil {
						return err
					}
					continue
				}
			}
			b.Env.Dropped(call.Pos, fmt.Sprintf("%s option", fn.Name))
		default:
			b.Env.Dropped(call.Pos, fmt.Sprintf("query option %s", fn.Name))
		}
	}
	return nil
}

func saGroupBy(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	exprs := make([]parsetree.Expr, 0, len(args))
	for _, a := range args {
		exprs = append(exprs, a.Value)
	}
	return b.GroupBy(exprs)
}

func saHaving(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		if err := b.Having(a.Value); err != nil {
			return err
		}
	}
	return nil
}

func saOrderBy(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	terms := make([]parsetree.OrderArg, 0, len(args))
	for _, a := range args {
		terms = append(terms, chainparser.UnwrapOrder(a.Value))
	}
	return b.OrderBy(terms, false)
}

func saLimit(b *engine.Builder, call *parsetree.Call) error {
	n, err := saInt(b, call)
	if err != nil {
		return err
	}
	b.SetLimit(n)
	return nil
}

func saOffset(b *engine.Builder, call *parsetree.Call) error {
	n, err := saInt(b, call)
	if err != nil {
		return err
	}
	b.SetOffset(n)
	return nil
}

func saInt(b *engine.Builder, call *parsetree.Call) (int, error) {
	args, err := saArgs(b, call)
	if err != nil {
		return 0, err
	}
	if len(args) != 1 {
		return 0, &types.SyntaxError{Msg: call.Method + " takes one integer"}
	}
	return engine.IntValue(args[0].Value, call.Method)
}

func saDistinct(b *engine.Builder, call *parsetree.Call) error {
	if strings.TrimSpace(call.RawArgs) != "" {
		b.Env.Dropped(call.Pos, "DISTINCT ON expressions")
	}
	b.SetDistinct()
	return nil
}

func saParams(b *engine.Builder, call *parsetree.Call) error {
	args, err := saArgs(b, call)
	if err != nil {
		return err
	}
	for _, a := range args {
		if a.Name == "" {
			return &types.SyntaxError{Msg: "params takes keyword arguments"}
		}
		b.BindParam(a.Name, a.Value)
	}
	return nil
}

// applySlice maps python slicing onto offset and limit. The upper bound is an
// end index, not a count.
func applySlice(b *engine.Builder, call *parsetree.Call) error {
	lo, hi, err := chainparser.ParseSlice(call.RawArgs)
	if err != nil {
		return err
	}
	if lo != nil && *lo > 0 {
		b.SetOffset(*lo)
	}
	if hi != nil {
		limit := *hi
		if lo != nil {
			limit -= *lo
		}
		if limit < 0 {
			limit = 0
		}
		b.SetLimit(limit)
	}
	return nil
}

func applyLimitOne(b *engine.Builder, call *parsetree.Call) error {
	b.SetLimit(1)
	return nil
}

func applyCountStar(b *engine.Builder, call *parsetree.Call) error {
	if err := b.Select(nil, true); err != nil {
		return err
	}
	b.ProjectLowered(&ir.FunctionCall{Name: "COUNT", Star: true}, "")
	return nil
}

// bareModel reports whether e is an unqualified capitalized identifier, as
// model references are.
func bareModel(e parsetree.Expr) (string, bool) {
	id, ok := e.(*parsetree.Ident)
	if !ok || id.Qualifier != "" || id.Name == "" {
		return "", false
	}
	if id.Name[0] < 'A' || id.Name[0] > 'Z' {
		return "", false
	}
	return id.Name, true
}

// qualifierModel finds the first model qualifier inside an expression, used
// to seat the source when only column references are given.
func qualifierModel(e parsetree.Expr) string {
	switch v := e.(type) {
	case *parsetree.Ident:
		head, _, _ := strings.Cut(v.Qualifier, ".")
		if head != "" && head[0] >= 'A' && head[0] <= 'Z' {
			return head
		}
	case *parsetree.Unary:
		return qualifierModel(v.Operand)
	case *parsetree.Binary:
		if m := qualifierModel(v.Left); m != "" {
			return m
		}
		return qualifierModel(v.Right)
	case *parsetree.FuncExpr:
		for _, a := range v.Args {
			if m := qualifierModel(a); m != "" {
				return m
			}
		}
	case *parsetree.LabeledExpr:
		return qualifierModel(v.Expr)
	case *parsetree.WindowExpr:
		for _, a := range v.Func.Args {
			if m := qualifierModel(a); m != "" {
				return m
			}
		}
		for _, p := range v.PartitionBy {
			if m := qualifierModel(p); m != "" {
				return m
			}
		}
	}
	return ""
}

// Emit renders the query as a session.query chain; nested subqueries render
// in the select() form the parser reads back.
func (s *sqlalchemy) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	return saChain(inlined, true)
}

func saChain(q *ir.Query, top bool) (string, error) {
	fw, err := catalog.ForFramework(types.FrameworkSQLAlchemy)
	if err != nil {
		return "", err
	}
	r := &saRenderer{fw: fw, names: emitNames{}}
	if err := r.seatNames(q); err != nil {
		return "", err
	}

	entities, err := r.entities(q)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if top {
		sb.WriteString("session.query(" + entities + ")")
	} else {
		sb.WriteString("select(" + entities + ")")
	}
	if q.Distinct {
		sb.WriteString(".distinct()")
	}

	for _, slot := range fw.MethodOrder {
		switch slot {
		case catalog.SlotJoin:
			for _, j := range q.Joins {
				rendered, err := r.join(j)
				if err != nil {
					return "", err
				}
				sb.WriteString(rendered)
			}
		case catalog.SlotFilter:
			if q.Filter != nil {
				rendered, err := r.pyExpr(q.Filter)
				if err != nil {
					return "", err
				}
				sb.WriteString(".filter(" + rendered + ")")
			}
		case catalog.SlotGroupBy:
			if len(q.GroupBy) > 0 {
				keys := make([]string, len(q.GroupBy))
				for i, g := range q.GroupBy {
					if keys[i], err = r.pyExpr(g); err != nil {
						return "", err
					}
				}
				sb.WriteString(".group_by(" + strings.Join(keys, ", ") + ")")
			}
		case catalog.SlotHaving:
			if q.Having != nil {
				rendered, err := r.pyExpr(q.Having)
				if err != nil {
					return "", err
				}
				sb.WriteString(".having(" + rendered + ")")
			}
		case catalog.SlotOrderBy:
			if len(q.OrderBy) > 0 {
				terms := make([]string, len(q.OrderBy))
				for i, t := range q.OrderBy {
					if terms[i], err = r.orderTerm(t); err != nil {
						return "", err
					}
				}
				sb.WriteString(".order_by(" + strings.Join(terms, ", ") + ")")
			}
		case catalog.SlotLimit:
			if q.Limit != nil {
				fmt.Fprintf(&sb, ".limit(%d)", *q.Limit)
			}
		case catalog.SlotOffset:
			if q.Offset != nil {
				fmt.Fprintf(&sb, ".offset(%d)", *q.Offset)
			}
		}
	}
	return sb.String(), nil
}

type saRenderer struct {
	fw         *catalog.Framework
	names      emitNames
	srcBinding string
}

// seatNames maps each scope binding to its model name, rejecting queries
// where two bindings resolve to the same model.
func (r *saRenderer) seatNames(q *ir.Query) error {
	used := map[string]string{}
	for i, t := range q.Tables() {
		model := r.fw.ModelName(t.Name)
		if prior, clash := used[model]; clash && prior != t.Binding() {
			return &types.UnsupportedConstructError{Construct: "self-join of " + t.Name, Essential: true}
		}
		used[model] = t.Binding()
		r.names.set(t.Binding(), model)
		r.names.set(t.Name, model)
		if i == 0 {
			r.srcBinding = t.Binding()
		}
	}
	if q.Source.IsSubquery() {
		return &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	return nil
}

func (r *saRenderer) entities(q *ir.Query) (string, error) {
	if starOnly(q) {
		return r.names.of(r.srcBinding), nil
	}
	parts := make([]string, 0, len(q.SelectList))
	for _, p := range q.SelectList {
		rendered, err := r.pyExpr(p.Expr)
		if err != nil {
			return "", err
		}
		if p.Alias != "" {
			rendered += ".label('" + p.Alias + "')"
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, ", "), nil
}

func (r *saRenderer) join(j ir.Join) (string, error) {
	method := ".join("
	suffix := ""
	switch j.Kind {
	case ir.JoinInner:
	case ir.JoinLeft:
		method = ".outerjoin("
	case ir.JoinFull:
		suffix = ", full=True"
	default:
		return "", &types.UnsupportedConstructError{Construct: string(j.Kind) + " join", Essential: true}
	}
	target := r.names.of(j.Target.Binding())
	if j.Condition == nil {
		return method + target + suffix + ")", nil
	}
	cond, err := r.pyExpr(j.Condition)
	if err != nil {
		return "", err
	}
	return method + target + ", " + cond + suffix + ")", nil
}

func (r *saRenderer) orderTerm(t ir.OrderTerm) (string, error) {
	rendered, err := r.pyExpr(t.Expr)
	if err != nil {
		return "", err
	}
	if t.Desc {
		rendered += ".desc()"
	}
	return rendered, nil
}

func (r *saRenderer) pyExpr(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.Column:
		return r.pyColumn(v), nil
	case *ir.Literal:
		return renderLiteral(v.Value, pyLit)
	case *ir.BinaryOp:
		return r.pyBinary(v)
	case *ir.FunctionCall:
		return r.pyFunc(v)
	case *ir.Subquery:
		return saChain(v.Query, false)
	case *ir.WindowCall:
		return r.pyWindow(v)
	}
	return "", &types.UnsupportedConstructError{Construct: fmt.Sprintf("expression %T", e), Essential: true}
}

func (r *saRenderer) pyColumn(v *ir.Column) string {
	qual := r.srcBinding
	if v.Table != "" {
		qual = v.Table
	}
	entity := r.names.of(qual)
	if v.Name == "*" {
		return entity
	}
	return entity + "." + r.fw.FieldName(v.Name)
}

func (r *saRenderer) pyOperand(e ir.Expr, parentOp string, right bool) (string, error) {
	rendered, err := r.pyExpr(e)
	if err != nil {
		return "", err
	}
	if sqlemit.NeedsParens(e, parentOp, right) {
		return "(" + rendered + ")", nil
	}
	return rendered, nil
}

func (r *saRenderer) pyBinary(v *ir.BinaryOp) (string, error) {
	switch v.Op {
	case "AND", "OR":
		fn := "and_("
		if v.Op == "OR" {
			fn = "or_("
		}
		parts, err := r.boolOperands(v, v.Op)
		if err != nil {
			return "", err
		}
		return fn + strings.Join(parts, ", ") + ")", nil
	case "LIKE", "NOT LIKE", "IN", "NOT IN", "IS", "IS NOT":
		return r.pyPostfix(v)
	}
	op := v.Op
	switch op {
	case "=":
		op = "=="
	case "<>":
		op = "!="
	case "||":
		left, err := r.pyExpr(v.Left)
		if err != nil {
			return "", err
		}
		right, err := r.pyExpr(v.Right)
		if err != nil {
			return "", err
		}
		return "func.concat(" + left + ", " + right + ")", nil
	}
	left, err := r.pyOperand(v.Left, v.Op, false)
	if err != nil {
		return "", err
	}
	right, err := r.pyOperand(v.Right, v.Op, true)
	if err != nil {
		return "", err
	}
	return left + " " + op + " " + right, nil
}

// boolOperands flattens same-operator nesting so and_(a, b, c) comes out
// instead of and_(and_(a, b), c).
func (r *saRenderer) boolOperands(v *ir.BinaryOp, op string) ([]string, error) {
	var out []string
	var walk func(e ir.Expr) error
	walk = func(e ir.Expr) error {
		if b, ok := e.(*ir.BinaryOp); ok && b.Op == op {
			if err := walk(b.Left); err != nil {
				return err
			}
			return walk(b.Right)
		}
		rendered, err := r.pyExpr(e)
		if err != nil {
			return err
		}
		out = append(out, rendered)
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

// pyPostfix renders the operators SQLAlchemy spells as column methods.
func (r *saRenderer) pyPostfix(v *ir.BinaryOp) (string, error) {
	left, err := r.pyExpr(v.Left)
	if err != nil {
		return "", err
	}
	right, err := r.pyExpr(v.Right)
	if err != nil {
		return "", err
	}
	switch v.Op {
	case "LIKE":
		return left + ".like(" + right + ")", nil
	case "NOT LIKE":
		return left + ".notlike(" + right + ")", nil
	case "IN":
		return left + ".in_(" + right + ")", nil
	case "NOT IN":
		return left + ".notin_(" + right + ")", nil
	case "IS":
		return left + ".is_(" + right + ")", nil
	default:
		return left + ".isnot(" + right + ")", nil
	}
}

func (r *saRenderer) pyFunc(v *ir.FunctionCall) (string, error) {
	switch v.Name {
	case "NOT":
		inner, err := r.pyExpr(v.Args[0])
		if err != nil {
			return "", err
		}
		return "not_(" + inner + ")", nil
	case "EXISTS":
		inner, err := r.pyExpr(v.Args[0])
		if err != nil {
			return "", err
		}
		return "exists(" + inner + ")", nil
	}
	if v.Star {
		return "func." + strings.ToLower(v.Name) + "()", nil
	}
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		rendered, err := r.pyExpr(a)
		if err != nil {
			return "", err
		}
		if i == 0 && v.Distinct {
			rendered = "distinct(" + rendered + ")"
		}
		args[i] = rendered
	}
	return "func." + strings.ToLower(v.Name) + "(" + strings.Join(args, ", ") + ")", nil
}

func (r *saRenderer) pyWindow(v *ir.WindowCall) (string, error) {
	fn, err := r.pyFunc(&v.Func)
	if err != nil {
		return "", err
	}
	var parts []string
	if len(v.PartitionBy) > 0 {
		rendered, err := r.pyExprList(v.PartitionBy)
		if err != nil {
			return "", err
		}
		parts = append(parts, "partition_by="+rendered)
	}
	if len(v.OrderBy) > 0 {
		terms := make([]string, len(v.OrderBy))
		for i, t := range v.OrderBy {
			if terms[i], err = r.orderTerm(t); err != nil {
				return "", err
			}
		}
		rendered := terms[0]
		if len(terms) > 1 {
			rendered = "[" + strings.Join(terms, ", ") + "]"
		}
		parts = append(parts, "order_by="+rendered)
	}
	return fn + ".over(" + strings.Join(parts, ", ") + ")", nil
}

func (r *saRenderer) pyExprList(exprs []ir.Expr) (string, error) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		rendered, err := r.pyExpr(e)
		if err != nil {
			return "", err
		}
		parts[i] = rendered
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}
