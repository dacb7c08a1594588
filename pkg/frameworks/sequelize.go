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
	engine.Register(&sequelize{})
}

// sequelize handles Sequelize finder calls. The whole query rides in one
// options object, so the single rule explodes that object into builder calls
// key by key.
type sequelize struct{}

func (s *sequelize) ID() types.FrameworkID { return types.FrameworkSequelize }

func (s *sequelize) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

// Bind seats the model from the receiver, the usual Model.findAll shape.
func (s *sequelize) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	segs := strings.Split(tree.Receiver, ".")
	model := segs[len(segs)-1]
	if model == "" {
		return &types.SyntaxError{Msg: "Sequelize chains start from a model"}
	}
	b.SetSourceModel(model, "")
	return nil
}

func (s *sequelize) Rules() map[string]engine.Rule {
	return seRules
}

var seRules = map[string]engine.Rule{
	"findAll":         {Slot: catalog.SlotSource, Apply: seFind},
	"findAndCountAll": {Slot: catalog.SlotSource, Apply: seFind},
	"findOne":         {Slot: catalog.SlotSource, Apply: seFindOne},
	"findByPk":        {Slot: catalog.SlotSource, Apply: seFindByPk},
	"count":           {Slot: catalog.SlotSource, Apply: seCount},
}

func seFind(b *engine.Builder, call *parsetree.Call) error {
	if strings.TrimSpace(call.RawArgs) == "" {
		return nil
	}
	opts, err := chainparser.ParseJSValue(call.RawArgs, b.Env.Limits)
	if err != nil {
		return err
	}
	obj, ok := opts.(*parsetree.ObjectExpr)
	if !ok {
		return &types.SyntaxError{Msg: call.Method + " takes an options object"}
	}
	return seOptions(b, call, obj)
}

func seFindOne(b *engine.Builder, call *parsetree.Call) error {
	if err := seFind(b, call); err != nil {
		return err
	}
	b.SetLimit(1)
	return nil
}

func seFindByPk(b *engine.Builder, call *parsetree.Call) error {
	args, err := chainparser.ParseJSArgs(call.RawArgs, b.Env.Limits)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return &types.SyntaxError{Msg: "findByPk takes a key value"}
	}
	cond := &parsetree.Binary{Op: "=", Left: &parsetree.Ident{Name: "id"}, Right: args[0].Value}
	if err := b.Where(cond); err != nil {
		return err
	}
	if len(args) > 1 {
		if obj, ok := args[1].Value.(*parsetree.ObjectExpr); ok {
			if err := seOptions(b, call, obj); err != nil {
				return err
			}
		}
	}
	b.SetLimit(1)
	return nil
}

func seCount(b *engine.Builder, call *parsetree.Call) error {
	if err := seFind(b, call); err != nil {
		return err
	}
	return applyCountStar(b, call)
}

// seOptions walks the options object and routes each key to the builder.
func seOptions(b *engine.Builder, call *parsetree.Call, obj *parsetree.ObjectExpr) error {
	for _, f := range obj.Fields {
		var err error
		switch f.Key {
		case "attributes":
			err = seAttributes(b, f.Val)
		case "where":
			err = seWhere(b, f.Val, "")
		case "include":
			err = seInclude(b, call, f.Val)
		case "group":
			err = seGroup(b, f.Val)
		case "having":
			err = seHaving(b, f.Val)
		case "order":
			err = seOrder(b, f.Val)
		case "limit":
			err = seSetInt(b, f.Val, "limit", b.SetLimit)
		case "offset":
			err = seSetInt(b, f.Val, "offset", b.SetOffset)
		case "distinct":
			if bl, ok := f.Val.(*parsetree.BoolLit); ok && bl.Val {
				b.SetDistinct()
			}
		case "replacements", "bind":
			if params, ok := f.Val.(*parsetree.ObjectExpr); ok {
				for _, p := range params.Fields {
					b.BindParam(p.Key, p.Val)
				}
			}
		case "subQuery", "raw", "nest", "logging", "benchmark", "paranoid", "transaction", "lock":
			b.Env.Dropped(call.Pos, "option "+f.Key)
		default:
			b.Env.Dropped(call.Pos, fmt.Sprintf("option %q", f.Key))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func seSetInt(b *engine.Builder, v parsetree.Expr, what string, set func(int)) error {
	n, err := engine.IntValue(v, what)
	if err != nil {
		return err
	}
	set(n)
	return nil
}

// seAttributes narrows the select list. Entries are names, aliased pairs, or
// helper calls.
func seAttributes(b *engine.Builder, v parsetree.Expr) error {
	arr, ok := v.(*parsetree.ArrayExpr)
	if !ok {
		return &types.SyntaxError{Msg: "attributes takes an array"}
	}
	if err := b.Select(nil, true); err != nil {
		return err
	}
	for _, item := range arr.Items {
		switch e := item.(type) {
		case *parsetree.StringLit:
			if err := b.AddProjection(seNameExpr(e.Val), ""); err != nil {
				return err
			}
		case *parsetree.ArrayExpr:
			if len(e.Items) != 2 {
				return &types.SyntaxError{Msg: "aliased attribute takes [expression, alias]"}
			}
			alias, ok := e.Items[1].(*parsetree.StringLit)
			if !ok {
				return &types.SyntaxError{Msg: "attribute alias must be a string"}
			}
			expr := e.Items[0]
			if lit, isName := expr.(*parsetree.StringLit); isName {
				expr = seNameExpr(lit.Val)
			}
			if err := b.AddProjection(expr, alias.Val); err != nil {
				return err
			}
		default:
			if err := b.AddProjection(item, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func seNameExpr(name string) parsetree.Expr {
	if qual, col, ok := strings.Cut(name, "."); ok {
		return &parsetree.Ident{Qualifier: qual, Name: col}
	}
	return &parsetree.Ident{Name: name}
}

// seOps maps computed operator keys onto comparison operators.
var seOps = map[string]string{
	"Op.eq":      "=",
	"Op.ne":      "<>",
	"Op.gt":      ">",
	"Op.gte":     ">=",
	"Op.lt":      "<",
	"Op.lte":     "<=",
	"Op.in":      "IN",
	"Op.notIn":   "NOT IN",
	"Op.like":    "LIKE",
	"Op.notLike": "NOT LIKE",
	"Op.is":      "IS",
}

// seWhere merges a where object into the filter; qual prefixes field
// references, for conditions inside an include.
func seWhere(b *engine.Builder, v parsetree.Expr, qual string) error {
	cond, err := seCondition(v, qual)
	if err != nil {
		return err
	}
	return b.Where(cond)
}

// seCondition builds the boolean tree for one where value.
func seCondition(v parsetree.Expr, qual string) (parsetree.Expr, error) {
	switch e := v.(type) {
	case *parsetree.ObjectExpr:
		var out parsetree.Expr
		for _, f := range e.Fields {
			cond, err := seFieldCondition(f.Key, f.Val, qual)
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
			return nil, &types.SyntaxError{Msg: "empty where object"}
		}
		return out, nil
	case *parsetree.Binary:
		// sequelize.where(col, op, value) arrives pre-built
		return e, nil
	case *parsetree.FuncExpr:
		return e, nil
	}
	return nil, &types.SyntaxError{Msg: "where takes an object"}
}

// seFieldCondition handles one key of a where object: a combinator, or a
// field compared against a scalar, a list, or an operator object.
func seFieldCondition(key string, val parsetree.Expr, qual string) (parsetree.Expr, error) {
	switch key {
	case "Op.and", "Op.or":
		op := "AND"
		if key == "Op.or" {
			op = "OR"
		}
		return seCombine(op, val, qual)
	case "Op.not":
		inner, err := seCondition(val, qual)
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "NOT", Operand: inner}, nil
	}

	field := &parsetree.Ident{Qualifier: qual, Name: key}
	if q, col, ok := strings.Cut(key, "."); ok && qual == "" {
		field = &parsetree.Ident{Qualifier: q, Name: col}
	}
	switch e := val.(type) {
	case *parsetree.ObjectExpr:
		var out parsetree.Expr
		for _, f := range e.Fields {
			cond, err := seOpCondition(field, f.Key, f.Val)
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
			return nil, &types.SyntaxError{Msg: "empty operator object for " + key}
		}
		return out, nil
	case *parsetree.ArrayExpr:
		return &parsetree.Binary{Op: "IN", Left: field, Right: e}, nil
	case *parsetree.NullLit:
		return &parsetree.Binary{Op: "IS", Left: field, Right: e}, nil
	}
	return &parsetree.Binary{Op: "=", Left: field, Right: val}, nil
}

// seOpCondition builds field <op> value for one operator key.
func seOpCondition(field parsetree.Expr, key string, val parsetree.Expr) (parsetree.Expr, error) {
	if op, ok := seOps[key]; ok {
		if op == "IS" {
			_, isNull := val.(*parsetree.NullLit)
			_, isBool := val.(*parsetree.BoolLit)
			if !isNull && !isBool {
				return nil, &types.SyntaxError{Msg: "Op.is takes null or a boolean"}
			}
		}
		return &parsetree.Binary{Op: op, Left: field, Right: val}, nil
	}
	switch key {
	case "Op.not":
		if _, isNull := val.(*parsetree.NullLit); isNull {
			return &parsetree.Binary{Op: "IS NOT", Left: field, Right: val}, nil
		}
		return &parsetree.Binary{Op: "<>", Left: field, Right: val}, nil
	case "Op.between":
		arr, ok := val.(*parsetree.ArrayExpr)
		if !ok || len(arr.Items) != 2 {
			return nil, &types.SyntaxError{Msg: "Op.between takes a two-element array"}
		}
		lo := &parsetree.Binary{Op: ">=", Left: field, Right: arr.Items[0]}
		hi := &parsetree.Binary{Op: "<=", Left: field, Right: arr.Items[1]}
		return &parsetree.Binary{Op: "AND", Left: lo, Right: hi}, nil
	case "Op.startsWith", "Op.endsWith", "Op.substring":
		lit, ok := val.(*parsetree.StringLit)
		if !ok {
			return nil, &types.SyntaxError{Msg: key + " takes a string"}
		}
		method := map[string]string{"Op.startsWith": "startswith", "Op.endsWith": "endswith", "Op.substring": "contains"}[key]
		pattern := &parsetree.StringLit{Val: seLikePattern(method, lit.Val)}
		return &parsetree.Binary{Op: "LIKE", Left: field, Right: pattern}, nil
	}
	return nil, &types.UnsupportedConstructError{Construct: "operator " + key, Essential: true}
}

func seLikePattern(method, s string) string {
	switch method {
	case "startswith":
		return s + "%"
	case "endswith":
		return "%" + s
	}
	return "%" + s + "%"
}

// seCombine folds an array or object of conditions with one boolean
// operator.
func seCombine(op string, val parsetree.Expr, qual string) (parsetree.Expr, error) {
	var conds []parsetree.Expr
	switch e := val.(type) {
	case *parsetree.ArrayExpr:
		for _, item := range e.Items {
			cond, err := seCondition(item, qual)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
	case *parsetree.ObjectExpr:
		for _, f := range e.Fields {
			cond, err := seFieldCondition(f.Key, f.Val, qual)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
	default:
		return nil, &types.SyntaxError{Msg: "combinator takes an array or object"}
	}
	if len(conds) == 0 {
		return nil, &types.SyntaxError{Msg: "empty combinator"}
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = &parsetree.Binary{Op: op, Left: out, Right: c}
	}
	return out, nil
}

// seInclude joins associated models. Entries are model references or config
// objects with model, as, required and where.
func seInclude(b *engine.Builder, call *parsetree.Call, v parsetree.Expr) error {
	arr, ok := v.(*parsetree.ArrayExpr)
	if !ok {
		return &types.SyntaxError{Msg: "include takes an array"}
	}
	for _, item := range arr.Items {
		switch e := item.(type) {
		case *parsetree.Ident:
			if err := b.JoinRelation(ir.JoinLeft, e.Name, "", true); err != nil {
				return err
			}
		case *parsetree.ObjectExpr:
			if err := seIncludeObject(b, call, e); err != nil {
				return err
			}
		default:
			return &types.SyntaxError{Msg: "include entries are models or objects"}
		}
	}
	return nil
}

func seIncludeObject(b *engine.Builder, call *parsetree.Call, obj *parsetree.ObjectExpr) error {
	model := ""
	alias := ""
	kind := ir.JoinLeft
	var where parsetree.Expr
	for _, f := range obj.Fields {
		switch f.Key {
		case "model":
			id, ok := f.Val.(*parsetree.Ident)
			if !ok {
				return &types.SyntaxError{Msg: "include model must be a model reference"}
			}
			model = id.Name
		case "as":
			lit, ok := f.Val.(*parsetree.StringLit)
			if !ok {
				return &types.SyntaxError{Msg: "include as must be a string"}
			}
			alias = lit.Val
		case "required":
			if bl, ok := f.Val.(*parsetree.BoolLit); ok && bl.Val {
				kind = ir.JoinInner
			}
		case "where":
			where = f.Val
		case "include":
			return &types.UnsupportedConstructError{
				Construct: "nested include",
				Essential: true,
				Hint:      "flatten the includes to one level",
			}
		case "attributes":
			b.Env.Dropped(call.Pos, "include attributes")
		default:
			b.Env.Dropped(call.Pos, "include option "+f.Key)
		}
	}
	if model == "" {
		return &types.SyntaxError{Msg: "include needs a model"}
	}
	rel := model
	if alias != "" {
		rel = alias
	}
	if err := b.JoinRelation(kind, rel, "", true); err != nil {
		return err
	}
	if where != nil {
		return seWhere(b, where, rel)
	}
	return nil
}

func seGroup(b *engine.Builder, v parsetree.Expr) error {
	var exprs []parsetree.Expr
	switch e := v.(type) {
	case *parsetree.StringLit:
		exprs = append(exprs, seNameExpr(e.Val))
	case *parsetree.ArrayExpr:
		for _, item := range e.Items {
			lit, ok := item.(*parsetree.StringLit)
			if !ok {
				exprs = append(exprs, item)
				continue
			}
			exprs = append(exprs, seNameExpr(lit.Val))
		}
	default:
		return &types.SyntaxError{Msg: "group takes a string or array"}
	}
	return b.GroupBy(exprs)
}

func seHaving(b *engine.Builder, v parsetree.Expr) error {
	cond, err := seCondition(v, "")
	if err != nil {
		return err
	}
	return b.Having(cond)
}

// seOrder reads the order array: entries are names, [expression, direction]
// pairs, or helper calls.
func seOrder(b *engine.Builder, v parsetree.Expr) error {
	arr, ok := v.(*parsetree.ArrayExpr)
	if !ok {
		return &types.SyntaxError{Msg: "order takes an array"}
	}
	var terms []parsetree.OrderArg
	for _, item := range arr.Items {
		switch e := item.(type) {
		case *parsetree.StringLit:
			terms = append(terms, parsetree.OrderArg{Expr: seNameExpr(e.Val)})
		case *parsetree.ArrayExpr:
			if len(e.Items) == 0 {
				return &types.SyntaxError{Msg: "empty order entry"}
			}
			expr := e.Items[0]
			if lit, isName := expr.(*parsetree.StringLit); isName {
				expr = seNameExpr(lit.Val)
			}
			desc := false
			if len(e.Items) > 1 {
				dir, ok := e.Items[len(e.Items)-1].(*parsetree.StringLit)
				if !ok {
					return &types.SyntaxError{Msg: "order direction must be a string"}
				}
				switch strings.ToUpper(dir.Val) {
				case "ASC":
				case "DESC":
					desc = true
				default:
					return &types.SyntaxError{Msg: "order direction must be ASC or DESC"}
				}
			}
			terms = append(terms, parsetree.OrderArg{Expr: expr, Desc: desc})
		default:
			terms = append(terms, parsetree.OrderArg{Expr: item})
		}
	}
	return b.OrderBy(terms, false)
}

// Emit renders the query as a findAll options object. Joined fields travel
// through $binding.field$ paths and helper calls.
func (s *sequelize) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	q = inlined
	if q.Source.IsSubquery() {
		return "", &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	fw, err := catalog.ForFramework(types.FrameworkSequelize)
	if err != nil {
		return "", err
	}
	r := &seRenderer{fw: fw, q: q, names: emitNames{}}
	return r.render()
}

type seRenderer struct {
	fw    *catalog.Framework
	q     *ir.Query
	names emitNames
}

func (r *seRenderer) render() (string, error) {
	q := r.q
	model := r.fw.ModelName(q.Source.Name)
	r.names.set(q.Source.Binding(), q.Source.Name)

	var opts []string

	includes := make([]string, 0, len(q.Joins))
	for _, j := range q.Joins {
		if !condMatchesRelation(q, j) {
			return "", &types.UnsupportedConstructError{
				Construct: "join outside the model associations",
				Essential: true,
				Hint:      "declare the association and join through include",
			}
		}
		rel := relationFor(q, j)
		target := r.fw.ModelName(j.Target.Name)
		entry := "{ model: " + target
		if j.Target.Alias != "" {
			entry += ", as: '" + j.Target.Alias + "'"
			r.names.set(j.Target.Binding(), j.Target.Alias)
		} else {
			r.names.set(j.Target.Binding(), j.Target.Name)
		}
		if j.Kind == ir.JoinInner {
			entry += ", required: true"
		} else if !rel.ToOne {
			// grouped aggregates over collections double-count rows unless
			// the include stays bare
			entry += ", attributes: []"
		}
		entry += " }"
		includes = append(includes, entry)
	}

	if !starOnly(q) && len(q.SelectList) > 0 {
		attrs, err := r.attributes()
		if err != nil {
			return "", err
		}
		opts = append(opts, "attributes: "+attrs)
	}
	if len(includes) > 0 {
		opts = append(opts, "include: ["+strings.Join(includes, ", ")+"]")
	}
	if q.Filter != nil {
		rendered, err := r.whereObject(q.Filter)
		if err != nil {
			return "", err
		}
		opts = append(opts, "where: "+rendered)
	}
	if len(q.GroupBy) > 0 {
		keys := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			rendered, err := r.groupKey(g)
			if err != nil {
				return "", err
			}
			keys[i] = rendered
		}
		opts = append(opts, "group: ["+strings.Join(keys, ", ")+"]")
	}
	if q.Having != nil {
		rendered, err := r.havingValue(q.Having)
		if err != nil {
			return "", err
		}
		opts = append(opts, "having: "+rendered)
	}
	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, t := range q.OrderBy {
			rendered, err := r.orderEntry(t)
			if err != nil {
				return "", err
			}
			terms[i] = rendered
		}
		opts = append(opts, "order: ["+strings.Join(terms, ", ")+"]")
	}
	if q.Distinct {
		opts = append(opts, "distinct: true")
	}
	if q.Limit != nil {
		opts = append(opts, fmt.Sprintf("limit: %d", *q.Limit))
	}
	if q.Offset != nil {
		opts = append(opts, fmt.Sprintf("offset: %d", *q.Offset))
	}

	if len(opts) == 0 {
		return model + ".findAll()", nil
	}
	return model + ".findAll({ " + strings.Join(opts, ", ") + " })", nil
}

// colPath spells a column for sequelize.col: bare for source columns, the
// association path for joined ones.
func (r *seRenderer) colPath(c *ir.Column) string {
	field := r.fw.FieldName(c.Name)
	if c.Table == "" || strings.EqualFold(c.Table, r.q.Source.Binding()) {
		return field
	}
	return r.names.of(c.Table) + "." + field
}

func (r *seRenderer) attributes() (string, error) {
	entries := make([]string, 0, len(r.q.SelectList))
	for _, p := range r.q.SelectList {
		if c, ok := p.Expr.(*ir.Column); ok {
			if c.Name == "*" {
				continue
			}
			path := r.colPath(c)
			if p.Alias == "" {
				entries = append(entries, "'"+path+"'")
			} else {
				entries = append(entries, "['"+path+"', '"+p.Alias+"']")
			}
			continue
		}
		rendered, err := r.helperExpr(p.Expr)
		if err != nil {
			return "", err
		}
		alias := aliasOrSynth(p)
		entries = append(entries, "["+rendered+", '"+alias+"']")
	}
	return "[" + strings.Join(entries, ", ") + "]", nil
}

// helperExpr renders an expression with the sequelize.fn and sequelize.col
// helpers.
func (r *seRenderer) helperExpr(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.Column:
		return "sequelize.col('" + r.colPath(v) + "')", nil
	case *ir.Literal:
		return renderLiteral(v.Value, jsLit)
	case *ir.FunctionCall:
		if v.Name == "NOT" || v.Name == "EXISTS" {
			return r.literalFallback(e)
		}
		args := make([]string, 0, len(v.Args)+1)
		args = append(args, "'"+v.Name+"'")
		if v.Star {
			args = append(args, "sequelize.col('*')")
		}
		for _, a := range v.Args {
			rendered, err := r.helperExpr(a)
			if err != nil {
				return "", err
			}
			args = append(args, rendered)
		}
		if v.Distinct {
			return r.literalFallback(e)
		}
		return "sequelize.fn(" + strings.Join(args, ", ") + ")", nil
	case *ir.BinaryOp, *ir.WindowCall:
		return r.literalFallback(e)
	case *ir.Subquery:
		inner, err := sqlemit.Emit(v.Query, types.DialectPostgreSQL)
		if err != nil {
			return "", err
		}
		return "sequelize.literal(" + jsQuote("("+inner+")") + ")", nil
	}
	return "", &types.UnsupportedConstructError{Construct: "expression " + ir.DisplayString(e), Essential: true}
}

// literalFallback renders an expression sequelize helpers cannot spell as a
// raw SQL literal.
func (r *seRenderer) literalFallback(e ir.Expr) (string, error) {
	frag := &sqlish{fw: r.fw, names: r.names, bools: [2]string{"TRUE", "FALSE"}, sub: func(sub *ir.Query) (string, error) {
		return sqlemit.Emit(sub, types.DialectPostgreSQL)
	}}
	rendered, err := frag.expr(e)
	if err != nil {
		return "", err
	}
	return "sequelize.literal(" + jsQuote(rendered) + ")", nil
}

func jsQuote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

// whereKey spells the key for one field: joined fields use the $path$ form.
func (r *seRenderer) whereKey(c *ir.Column) string {
	if c.Table == "" || strings.EqualFold(c.Table, r.q.Source.Binding()) {
		return r.fw.FieldName(c.Name)
	}
	return "'$" + r.names.of(c.Table) + "." + r.fw.FieldName(c.Name) + "$'"
}

// whereObject renders a filter as a where object, nesting Op combinators.
func (r *seRenderer) whereObject(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.BinaryOp:
		switch v.Op {
		case "AND", "OR":
			op := "[Op.and]"
			if v.Op == "OR" {
				op = "[Op.or]"
			}
			parts, err := r.combineList(v, v.Op)
			if err != nil {
				return "", err
			}
			return "{ " + op + ": [" + strings.Join(parts, ", ") + "] }", nil
		}
		entry, err := r.whereEntry(v)
		if err != nil {
			return "", err
		}
		return "{ " + entry + " }", nil
	case *ir.FunctionCall:
		if v.Name == "NOT" && len(v.Args) == 1 {
			inner, err := r.whereObject(v.Args[0])
			if err != nil {
				return "", err
			}
			return "{ [Op.not]: " + inner + " }", nil
		}
	}
	return r.sequelizeWhere(e)
}

func (r *seRenderer) combineList(v *ir.BinaryOp, op string) ([]string, error) {
	var out []string
	var walk func(e ir.Expr) error
	walk = func(e ir.Expr) error {
		if b, ok := e.(*ir.BinaryOp); ok && b.Op == op {
			if err := walk(b.Left); err != nil {
				return err
			}
			return walk(b.Right)
		}
		rendered, err := r.whereObject(e)
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

// whereEntry renders one comparison as a key: value pair.
func (r *seRenderer) whereEntry(b *ir.BinaryOp) (string, error) {
	col, ok := b.Left.(*ir.Column)
	if !ok {
		rendered, err := r.sequelizeWhere(b)
		if err != nil {
			return "", err
		}
		return "[Op.and]: [" + rendered + "]", nil
	}
	key := r.whereKey(col)
	value, err := r.whereValue(b.Right)
	if err != nil {
		return "", err
	}
	switch b.Op {
	case "=":
		return key + ": " + value, nil
	case "IS":
		return key + ": { [Op.is]: " + value + " }", nil
	case "IS NOT":
		return key + ": { [Op.not]: " + value + " }", nil
	}
	opKey, ok := seOpNames[b.Op]
	if !ok {
		rendered, err := r.sequelizeWhere(b)
		if err != nil {
			return "", err
		}
		return "[Op.and]: [" + rendered + "]", nil
	}
	return key + ": { [" + opKey + "]: " + value + " }", nil
}

var seOpNames = map[string]string{
	"<>":       "Op.ne",
	">":        "Op.gt",
	">=":       "Op.gte",
	"<":        "Op.lt",
	"<=":       "Op.lte",
	"IN":       "Op.in",
	"NOT IN":   "Op.notIn",
	"LIKE":     "Op.like",
	"NOT LIKE": "Op.notLike",
}

func (r *seRenderer) whereValue(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.Literal:
		return renderLiteral(v.Value, jsLit)
	case *ir.Column:
		return "sequelize.col('" + r.colPath(v) + "')", nil
	case *ir.Subquery:
		inner, err := sqlemit.Emit(v.Query, types.DialectPostgreSQL)
		if err != nil {
			return "", err
		}
		return "sequelize.literal(" + jsQuote("("+inner+")") + ")", nil
	case *ir.FunctionCall:
		return r.helperExpr(v)
	}
	return "", &types.UnsupportedConstructError{Construct: "filter value " + ir.DisplayString(e), Essential: true}
}

// sequelizeWhere renders a comparison whose left side is not a plain column
// through the sequelize.where helper.
func (r *seRenderer) sequelizeWhere(e ir.Expr) (string, error) {
	b, ok := e.(*ir.BinaryOp)
	if !ok {
		return r.literalFallback(e)
	}
	left, err := r.helperExpr(b.Left)
	if err != nil {
		return "", err
	}
	right, err := r.whereValue(b.Right)
	if err != nil {
		return "", err
	}
	return "sequelize.where(" + left + ", '" + strings.ToLower(b.Op) + "', " + right + ")", nil
}

func (r *seRenderer) groupKey(g ir.Expr) (string, error) {
	if c, ok := g.(*ir.Column); ok {
		return "'" + r.colPath(c) + "'", nil
	}
	return r.helperExpr(g)
}

// havingValue renders HAVING through sequelize.where, since plain objects
// cannot hold aggregate comparisons.
func (r *seRenderer) havingValue(e ir.Expr) (string, error) {
	if b, ok := e.(*ir.BinaryOp); ok && b.Op == "AND" {
		parts, err := r.combineHaving(b)
		if err != nil {
			return "", err
		}
		return "{ [Op.and]: [" + strings.Join(parts, ", ") + "] }", nil
	}
	return r.sequelizeWhere(e)
}

func (r *seRenderer) combineHaving(v *ir.BinaryOp) ([]string, error) {
	var out []string
	var walk func(e ir.Expr) error
	walk = func(e ir.Expr) error {
		if b, ok := e.(*ir.BinaryOp); ok && b.Op == "AND" {
			if err := walk(b.Left); err != nil {
				return err
			}
			return walk(b.Right)
		}
		rendered, err := r.havingValue(e)
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

func (r *seRenderer) orderEntry(t ir.OrderTerm) (string, error) {
	dir := "'ASC'"
	if t.Desc {
		dir = "'DESC'"
	}
	if c, ok := t.Expr.(*ir.Column); ok {
		return "['" + r.colPath(c) + "', " + dir + "]", nil
	}
	rendered, err := r.helperExpr(t.Expr)
	if err != nil {
		return "", err
	}
	return "[" + rendered + ", " + dir + "]", nil
}
