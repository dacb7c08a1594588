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
	engine.Register(&prisma{})
}

// prisma handles Prisma Client calls. Like Sequelize the query is one nested
// options object, but relations are filtered and selected by traversal
// instead of joins, so the rules translate traversals into relation joins.
type prisma struct{}

func (p *prisma) ID() types.FrameworkID { return types.FrameworkPrisma }

func (p *prisma) Parse(source string, limits types.Limits) (*parsetree.Tree, error) {
	return chainparser.Parse(source, limits)
}

func (p *prisma) Bind(b *engine.Builder, tree *parsetree.Tree) error {
	segs := strings.Split(tree.Receiver, ".")
	model := segs[len(segs)-1]
	if model == "" || strings.EqualFold(model, "prisma") {
		return &types.SyntaxError{Msg: "Prisma chains start from a model delegate, like prisma.user"}
	}
	b.SetSourceModel(model, "")
	return nil
}

func (p *prisma) Rules() map[string]engine.Rule {
	return prRules
}

var prRules = map[string]engine.Rule{
	"findMany":          {Slot: catalog.SlotSource, Apply: prFind},
	"findFirst":         {Slot: catalog.SlotSource, Apply: prFindOne},
	"findFirstOrThrow":  {Slot: catalog.SlotSource, Apply: prFindOne},
	"findUnique":        {Slot: catalog.SlotSource, Apply: prFindOne},
	"findUniqueOrThrow": {Slot: catalog.SlotSource, Apply: prFindOne},
	"count":             {Slot: catalog.SlotSource, Apply: prCountVerb},
	"aggregate":         {Slot: catalog.SlotSource, Apply: prAggregate},
	"groupBy":           {Slot: catalog.SlotSource, Apply: prGroup},
}

func prParseOptions(b *engine.Builder, call *parsetree.Call) (*parsetree.ObjectExpr, error) {
	if strings.TrimSpace(call.RawArgs) == "" {
		return nil, nil
	}
	v, err := chainparser.ParseJSValue(call.RawArgs, b.Env.Limits)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*parsetree.ObjectExpr)
	if !ok {
		return nil, &types.SyntaxError{Msg: call.Method + " takes an options object"}
	}
	return obj, nil
}

func prFind(b *engine.Builder, call *parsetree.Call) error {
	obj, err := prParseOptions(b, call)
	if err != nil || obj == nil {
		return err
	}
	for _, f := range obj.Fields {
		var err error
		switch f.Key {
		case "where":
			err = prWhere(b, f.Val, "")
		case "select":
			err = prSelect(b, call, f.Val, "")
		case "include":
			err = prInclude(b, call, f.Val)
		case "orderBy":
			err = prOrderBy(b, f.Val)
		case "take":
			err = prTake(b, f.Val)
		case "skip":
			err = prSetInt(b, f.Val, "skip", b.SetOffset)
		case "distinct":
			err = prDistinct(b, call, f.Val)
		case "cursor":
			b.Env.Dropped(call.Pos, "cursor pagination")
		default:
			b.Env.Dropped(call.Pos, fmt.Sprintf("option %q", f.Key))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func prFindOne(b *engine.Builder, call *parsetree.Call) error {
	if err := prFind(b, call); err != nil {
		return err
	}
	b.SetLimit(1)
	return nil
}

func prCountVerb(b *engine.Builder, call *parsetree.Call) error {
	if err := prFind(b, call); err != nil {
		return err
	}
	return applyCountStar(b, call)
}

func prSetInt(b *engine.Builder, v parsetree.Expr, what string, set func(int)) error {
	n, err := engine.IntValue(v, what)
	if err != nil {
		return err
	}
	set(n)
	return nil
}

func prTake(b *engine.Builder, v parsetree.Expr) error {
	n, err := engine.IntValue(v, "take")
	if err != nil {
		return err
	}
	if n < 0 {
		return &types.UnsupportedConstructError{
			Construct: "negative take",
			Essential: true,
			Hint:      "reverse the ordering and take from the front",
		}
	}
	b.SetLimit(n)
	return nil
}

// prOps maps filter operator keys onto comparison operators. Keys outside
// this set mark a relation traversal.
var prOps = map[string]string{
	"equals": "=",
	"gt":     ">",
	"gte":    ">=",
	"lt":     "<",
	"lte":    "<=",
	"in":     "IN",
	"notIn":  "NOT IN",
}

var prLikeMethods = map[string]string{
	"contains":   "contains",
	"startsWith": "startswith",
	"endsWith":   "endswith",
}

// prWhere folds a where object into the filter. qual carries the relation
// name when the conditions live inside a traversal.
func prWhere(b *engine.Builder, v parsetree.Expr, qual string) error {
	cond, err := prCondition(b, v, qual)
	if err != nil {
		return err
	}
	return b.Where(cond)
}

func prCondition(b *engine.Builder, v parsetree.Expr, qual string) (parsetree.Expr, error) {
	obj, ok := v.(*parsetree.ObjectExpr)
	if !ok {
		return nil, &types.SyntaxError{Msg: "where takes an object"}
	}
	var out parsetree.Expr
	for _, f := range obj.Fields {
		cond, err := prFieldCondition(b, f.Key, f.Val, qual)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
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
}

func prFieldCondition(b *engine.Builder, key string, val parsetree.Expr, qual string) (parsetree.Expr, error) {
	switch key {
	case "AND", "OR":
		return prCombine(b, key, val, qual)
	case "NOT":
		inner, err := prCondition(b, val, qual)
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "NOT", Operand: inner}, nil
	}

	field := &parsetree.Ident{Qualifier: qual, Name: key}
	switch e := val.(type) {
	case *parsetree.ObjectExpr:
		if prIsOpObject(e) {
			return prOpConditions(b, field, e)
		}
		return prRelationCondition(b, key, e, qual)
	case *parsetree.NullLit:
		return &parsetree.Binary{Op: "IS", Left: field, Right: e}, nil
	case *parsetree.ArrayExpr:
		return &parsetree.Binary{Op: "IN", Left: field, Right: e}, nil
	}
	return &parsetree.Binary{Op: "=", Left: field, Right: val}, nil
}

// prIsOpObject reports whether every key is a filter operator, which
// separates {age: {gt: 18}} from a relation traversal like {orders: {...}}.
func prIsOpObject(obj *parsetree.ObjectExpr) bool {
	for _, f := range obj.Fields {
		if _, ok := prOps[f.Key]; ok {
			continue
		}
		if _, ok := prLikeMethods[f.Key]; ok {
			continue
		}
		if f.Key == "not" || f.Key == "mode" {
			continue
		}
		return false
	}
	return len(obj.Fields) > 0
}

func prOpConditions(b *engine.Builder, field *parsetree.Ident, obj *parsetree.ObjectExpr) (parsetree.Expr, error) {
	var out parsetree.Expr
	for _, f := range obj.Fields {
		cond, err := prOpCondition(b, field, f.Key, f.Val)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
		}
		if out == nil {
			out = cond
		} else {
			out = &parsetree.Binary{Op: "AND", Left: out, Right: cond}
		}
	}
	if out == nil {
		return nil, &types.SyntaxError{Msg: "empty operator object for " + field.Name}
	}
	return out, nil
}

func prOpCondition(b *engine.Builder, field *parsetree.Ident, key string, val parsetree.Expr) (parsetree.Expr, error) {
	if op, ok := prOps[key]; ok {
		return &parsetree.Binary{Op: op, Left: field, Right: val}, nil
	}
	if method, ok := prLikeMethods[key]; ok {
		lit, ok := val.(*parsetree.StringLit)
		if !ok {
			return nil, &types.SyntaxError{Msg: key + " takes a string"}
		}
		pattern := &parsetree.StringLit{Val: seLikePattern(method, lit.Val)}
		return &parsetree.Binary{Op: "LIKE", Left: field, Right: pattern}, nil
	}
	switch key {
	case "not":
		switch e := val.(type) {
		case *parsetree.NullLit:
			return &parsetree.Binary{Op: "IS NOT", Left: field, Right: e}, nil
		case *parsetree.ObjectExpr:
			inner, err := prOpConditions(b, field, e)
			if err != nil {
				return nil, err
			}
			return &parsetree.Unary{Op: "NOT", Operand: inner}, nil
		}
		return &parsetree.Binary{Op: "<>", Left: field, Right: val}, nil
	case "mode":
		// case-insensitive mode has no portable rendering
		b.Env.Dropped(types.Position{}, "case-insensitive match mode")
		return nil, nil
	}
	return nil, &types.UnsupportedConstructError{Construct: "filter operator " + key, Essential: true}
}

// prRelationCondition handles a traversal entry: the object either wraps the
// conditions in a quantifier or states them directly for a to-one relation.
func prRelationCondition(b *engine.Builder, relation string, obj *parsetree.ObjectExpr, qual string) (parsetree.Expr, error) {
	if qual != "" {
		return nil, &types.UnsupportedConstructError{
			Construct: "relation traversal below the first level",
			Essential: true,
			Hint:      "filter the nested relation in a separate query",
		}
	}
	inner := obj
	if len(obj.Fields) == 1 {
		switch obj.Fields[0].Key {
		case "some":
			nested, ok := obj.Fields[0].Val.(*parsetree.ObjectExpr)
			if !ok {
				return nil, &types.SyntaxError{Msg: "some takes an object"}
			}
			inner = nested
		case "every", "none":
			return nil, &types.UnsupportedConstructError{
				Construct: obj.Fields[0].Key + " relation quantifier",
				Essential: true,
				Hint:      "only some has a join rendering",
			}
		}
	}
	if err := b.JoinRelation(ir.JoinInner, relation, "", false); err != nil {
		return nil, err
	}
	return prCondition(b, inner, relation)
}

func prCombine(b *engine.Builder, op string, val parsetree.Expr, qual string) (parsetree.Expr, error) {
	arr, ok := val.(*parsetree.ArrayExpr)
	if !ok {
		// a bare object is the one-element form
		if obj, isObj := val.(*parsetree.ObjectExpr); isObj {
			return prCondition(b, obj, qual)
		}
		return nil, &types.SyntaxError{Msg: op + " takes an array of conditions"}
	}
	var out parsetree.Expr
	for _, item := range arr.Items {
		cond, err := prCondition(b, item, qual)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = cond
		} else {
			out = &parsetree.Binary{Op: op, Left: out, Right: cond}
		}
	}
	if out == nil {
		return nil, &types.SyntaxError{Msg: "empty " + op + " array"}
	}
	return out, nil
}

// prSelect narrows the select list. Relation keys join and project the
// nested fields.
func prSelect(b *engine.Builder, call *parsetree.Call, v parsetree.Expr, qual string) error {
	obj, ok := v.(*parsetree.ObjectExpr)
	if !ok {
		return &types.SyntaxError{Msg: "select takes an object"}
	}
	if qual == "" {
		if err := b.Select(nil, true); err != nil {
			return err
		}
	}
	for _, f := range obj.Fields {
		switch e := f.Val.(type) {
		case *parsetree.BoolLit:
			if !e.Val {
				continue
			}
			if f.Key == "_count" {
				b.Env.Dropped(call.Pos, "relation count selection")
				continue
			}
			if err := b.AddProjection(&parsetree.Ident{Qualifier: qual, Name: f.Key}, ""); err != nil {
				return err
			}
		case *parsetree.ObjectExpr:
			if qual != "" {
				return &types.UnsupportedConstructError{
					Construct: "relation selection below the first level",
					Essential: true,
					Hint:      "fetch the nested relation in a separate query",
				}
			}
			if err := prRelationScope(b, call, f.Key, e); err != nil {
				return err
			}
		default:
			return &types.SyntaxError{Msg: "select values are booleans or nested objects"}
		}
	}
	return nil
}

// prRelationScope joins a relation and applies its nested select and where.
func prRelationScope(b *engine.Builder, call *parsetree.Call, relation string, obj *parsetree.ObjectExpr) error {
	if err := b.JoinRelation(ir.JoinLeft, relation, "", true); err != nil {
		return err
	}
	for _, f := range obj.Fields {
		var err error
		switch f.Key {
		case "select":
			err = prSelect(b, call, f.Val, relation)
		case "where":
			err = prWhere(b, f.Val, relation)
		case "include", "orderBy", "take", "skip":
			return &types.UnsupportedConstructError{
				Construct: "nested relation " + f.Key,
				Essential: true,
				Hint:      "fetch the nested relation in a separate query",
			}
		default:
			b.Env.Dropped(call.Pos, "relation option "+f.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func prInclude(b *engine.Builder, call *parsetree.Call, v parsetree.Expr) error {
	obj, ok := v.(*parsetree.ObjectExpr)
	if !ok {
		return &types.SyntaxError{Msg: "include takes an object"}
	}
	for _, f := range obj.Fields {
		switch e := f.Val.(type) {
		case *parsetree.BoolLit:
			if !e.Val {
				continue
			}
			if err := b.JoinRelation(ir.JoinLeft, f.Key, "", true); err != nil {
				return err
			}
		case *parsetree.ObjectExpr:
			if err := prRelationScope(b, call, f.Key, e); err != nil {
				return err
			}
		default:
			return &types.SyntaxError{Msg: "include values are booleans or nested objects"}
		}
	}
	return nil
}

// prAggFuncs maps result-shape keys onto aggregate functions.
var prAggFuncs = map[string]string{
	"_count": "COUNT",
	"_sum":   "SUM",
	"_avg":   "AVG",
	"_min":   "MIN",
	"_max":   "MAX",
}

func prOrderBy(b *engine.Builder, v parsetree.Expr) error {
	var entries []*parsetree.ObjectExpr
	switch e := v.(type) {
	case *parsetree.ObjectExpr:
		entries = append(entries, e)
	case *parsetree.ArrayExpr:
		for _, item := range e.Items {
			obj, ok := item.(*parsetree.ObjectExpr)
			if !ok {
				return &types.SyntaxError{Msg: "orderBy entries are objects"}
			}
			entries = append(entries, obj)
		}
	default:
		return &types.SyntaxError{Msg: "orderBy takes an object or array"}
	}
	var terms []parsetree.OrderArg
	for _, obj := range entries {
		for _, f := range obj.Fields {
			term, err := prOrderTerm(f.Key, f.Val)
			if err != nil {
				return err
			}
			terms = append(terms, term)
		}
	}
	return b.OrderBy(terms, false)
}

func prOrderTerm(key string, val parsetree.Expr) (parsetree.OrderArg, error) {
	if fn, ok := prAggFuncs[key]; ok {
		nested, ok := val.(*parsetree.ObjectExpr)
		if !ok || len(nested.Fields) != 1 {
			return parsetree.OrderArg{}, &types.SyntaxError{Msg: key + " ordering takes one field"}
		}
		desc, err := prDirection(nested.Fields[0].Val)
		if err != nil {
			return parsetree.OrderArg{}, err
		}
		expr := &parsetree.FuncExpr{Name: fn, Args: []parsetree.Expr{&parsetree.Ident{Name: nested.Fields[0].Key}}}
		return parsetree.OrderArg{Expr: expr, Desc: desc}, nil
	}
	desc, err := prDirection(val)
	if err != nil {
		return parsetree.OrderArg{}, err
	}
	return parsetree.OrderArg{Expr: &parsetree.Ident{Name: key}, Desc: desc}, nil
}

func prDirection(v parsetree.Expr) (bool, error) {
	lit, ok := v.(*parsetree.StringLit)
	if !ok {
		return false, &types.SyntaxError{Msg: "order direction must be 'asc' or 'desc'"}
	}
	switch strings.ToLower(lit.Val) {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, &types.SyntaxError{Msg: "order direction must be 'asc' or 'desc'"}
}

// prDistinct keeps the DISTINCT flag. The per-column form narrows rows in a
// way plain SQL DISTINCT cannot express, so the column list is reported as
// dropped rather than silently widened.
func prDistinct(b *engine.Builder, call *parsetree.Call, v parsetree.Expr) error {
	if _, ok := v.(*parsetree.ArrayExpr); !ok {
		if _, isStr := v.(*parsetree.StringLit); !isStr {
			return &types.SyntaxError{Msg: "distinct takes field names"}
		}
	}
	b.SetDistinct()
	b.Env.Dropped(call.Pos, "distinct field list")
	return nil
}

func prAggregate(b *engine.Builder, call *parsetree.Call) error {
	obj, err := prParseOptions(b, call)
	if err != nil {
		return err
	}
	if obj == nil {
		return &types.SyntaxError{Msg: "aggregate takes an options object"}
	}
	if err := b.Select(nil, true); err != nil {
		return err
	}
	for _, f := range obj.Fields {
		var err error
		switch f.Key {
		case "where":
			err = prWhere(b, f.Val, "")
		case "orderBy":
			err = prOrderBy(b, f.Val)
		case "take":
			err = prTake(b, f.Val)
		case "skip":
			err = prSetInt(b, f.Val, "skip", b.SetOffset)
		default:
			fn, ok := prAggFuncs[f.Key]
			if !ok {
				b.Env.Dropped(call.Pos, fmt.Sprintf("option %q", f.Key))
				continue
			}
			err = prAggSelection(b, fn, f.Val)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// prAggSelection projects one aggregate shape, like _sum: {age: true}.
func prAggSelection(b *engine.Builder, fn string, v parsetree.Expr) error {
	switch e := v.(type) {
	case *parsetree.BoolLit:
		if !e.Val {
			return nil
		}
		if fn != "COUNT" {
			return &types.SyntaxError{Msg: fn + " needs a field object"}
		}
		return b.AddProjection(&parsetree.FuncExpr{Name: "COUNT", Star: true}, "")
	case *parsetree.ObjectExpr:
		for _, f := range e.Fields {
			if bl, ok := f.Val.(*parsetree.BoolLit); !ok || !bl.Val {
				continue
			}
			var arg *parsetree.FuncExpr
			if f.Key == "_all" {
				arg = &parsetree.FuncExpr{Name: fn, Star: true}
			} else {
				arg = &parsetree.FuncExpr{Name: fn, Args: []parsetree.Expr{&parsetree.Ident{Name: f.Key}}}
			}
			if err := b.AddProjection(arg, ""); err != nil {
				return err
			}
		}
		return nil
	}
	return &types.SyntaxError{Msg: "aggregate selections take true or a field object"}
}

func prGroup(b *engine.Builder, call *parsetree.Call) error {
	obj, err := prParseOptions(b, call)
	if err != nil {
		return err
	}
	if obj == nil {
		return &types.SyntaxError{Msg: "groupBy takes an options object"}
	}
	if err := b.Select(nil, true); err != nil {
		return err
	}
	var sawBy bool
	for _, f := range obj.Fields {
		var err error
		switch f.Key {
		case "by":
			sawBy = true
			err = prBy(b, f.Val)
		case "where":
			err = prWhere(b, f.Val, "")
		case "having":
			err = prHaving(b, f.Val)
		case "orderBy":
			err = prOrderBy(b, f.Val)
		case "take":
			err = prTake(b, f.Val)
		case "skip":
			err = prSetInt(b, f.Val, "skip", b.SetOffset)
		default:
			fn, ok := prAggFuncs[f.Key]
			if !ok {
				b.Env.Dropped(call.Pos, fmt.Sprintf("option %q", f.Key))
				continue
			}
			err = prAggSelection(b, fn, f.Val)
		}
		if err != nil {
			return err
		}
	}
	if !sawBy {
		return &types.SyntaxError{Msg: "groupBy needs a by list"}
	}
	return nil
}

func prBy(b *engine.Builder, v parsetree.Expr) error {
	var names []string
	switch e := v.(type) {
	case *parsetree.StringLit:
		names = append(names, e.Val)
	case *parsetree.ArrayExpr:
		for _, item := range e.Items {
			lit, ok := item.(*parsetree.StringLit)
			if !ok {
				return &types.SyntaxError{Msg: "by entries are field names"}
			}
			names = append(names, lit.Val)
		}
	default:
		return &types.SyntaxError{Msg: "by takes a field name or array"}
	}
	exprs := make([]parsetree.Expr, 0, len(names))
	for _, name := range names {
		ident := &parsetree.Ident{Name: name}
		exprs = append(exprs, ident)
		if err := b.AddProjection(ident, ""); err != nil {
			return err
		}
	}
	return b.GroupBy(exprs)
}

// prHaving reads the having object: aggregate keys compare a function of a
// field, plain keys compare a grouping key.
func prHaving(b *engine.Builder, v parsetree.Expr) error {
	cond, err := prHavingCondition(b, v)
	if err != nil {
		return err
	}
	return b.Having(cond)
}

func prHavingCondition(b *engine.Builder, v parsetree.Expr) (parsetree.Expr, error) {
	obj, ok := v.(*parsetree.ObjectExpr)
	if !ok {
		return nil, &types.SyntaxError{Msg: "having takes an object"}
	}
	var out parsetree.Expr
	for _, f := range obj.Fields {
		cond, err := prHavingField(b, f.Key, f.Val)
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
		return nil, &types.SyntaxError{Msg: "empty having object"}
	}
	return out, nil
}

func prHavingField(b *engine.Builder, key string, val parsetree.Expr) (parsetree.Expr, error) {
	switch key {
	case "AND", "OR":
		arr, ok := val.(*parsetree.ArrayExpr)
		if !ok {
			return nil, &types.SyntaxError{Msg: key + " takes an array"}
		}
		var out parsetree.Expr
		for _, item := range arr.Items {
			cond, err := prHavingCondition(b, item)
			if err != nil {
				return nil, err
			}
			if out == nil {
				out = cond
			} else {
				out = &parsetree.Binary{Op: key, Left: out, Right: cond}
			}
		}
		if out == nil {
			return nil, &types.SyntaxError{Msg: "empty " + key + " array"}
		}
		return out, nil
	case "NOT":
		inner, err := prHavingCondition(b, val)
		if err != nil {
			return nil, err
		}
		return &parsetree.Unary{Op: "NOT", Operand: inner}, nil
	}

	if fn, ok := prAggFuncs[key]; ok {
		nested, ok := val.(*parsetree.ObjectExpr)
		if !ok {
			return nil, &types.SyntaxError{Msg: key + " takes a field object"}
		}
		var out parsetree.Expr
		for _, f := range nested.Fields {
			ops, ok := f.Val.(*parsetree.ObjectExpr)
			if !ok {
				return nil, &types.SyntaxError{Msg: key + "." + f.Key + " takes an operator object"}
			}
			var agg *parsetree.FuncExpr
			if f.Key == "_all" {
				agg = &parsetree.FuncExpr{Name: fn, Star: true}
			} else {
				agg = &parsetree.FuncExpr{Name: fn, Args: []parsetree.Expr{&parsetree.Ident{Name: f.Key}}}
			}
			for _, op := range ops.Fields {
				cond, err := prHavingOp(agg, op.Key, op.Val)
				if err != nil {
					return nil, err
				}
				if out == nil {
					out = cond
				} else {
					out = &parsetree.Binary{Op: "AND", Left: out, Right: cond}
				}
			}
		}
		if out == nil {
			return nil, &types.SyntaxError{Msg: "empty aggregate condition"}
		}
		return out, nil
	}

	field := &parsetree.Ident{Name: key}
	if ops, ok := val.(*parsetree.ObjectExpr); ok && prIsOpObject(ops) {
		return prOpConditions(b, field, ops)
	}
	return &parsetree.Binary{Op: "=", Left: field, Right: val}, nil
}

func prHavingOp(agg parsetree.Expr, key string, val parsetree.Expr) (parsetree.Expr, error) {
	if op, ok := prOps[key]; ok {
		return &parsetree.Binary{Op: op, Left: agg, Right: val}, nil
	}
	if key == "not" {
		return &parsetree.Binary{Op: "<>", Left: agg, Right: val}, nil
	}
	return nil, &types.UnsupportedConstructError{Construct: "having operator " + key, Essential: true}
}

// Emit renders the query as a Prisma Client call: findMany for row shapes,
// count and aggregate for bare aggregates, groupBy for grouped queries.
func (p *prisma) Emit(q *ir.Query, env *engine.Env) (string, error) {
	inlined, err := inlineCTEs(q)
	if err != nil {
		return "", err
	}
	q = inlined
	if q.Source.IsSubquery() {
		return "", &types.UnsupportedConstructError{Construct: "derived table source", Essential: true}
	}
	if len(q.Windows) > 0 {
		return "", &types.UnsupportedConstructError{Construct: "window function", Essential: true}
	}
	fw, err := catalog.ForFramework(types.FrameworkPrisma)
	if err != nil {
		return "", err
	}
	r := &prRenderer{fw: fw, q: q, rels: map[string]relation{}}
	return r.render()
}

type prRenderer struct {
	fw   *catalog.Framework
	q    *ir.Query
	rels map[string]relation
}

func (r *prRenderer) render() (string, error) {
	q := r.q
	for _, j := range q.Joins {
		if !condMatchesRelation(q, j) {
			return "", &types.UnsupportedConstructError{
				Construct: "join outside the model relations",
				Essential: true,
				Hint:      "use a raw query for arbitrary joins",
			}
		}
		r.rels[strings.ToLower(j.Target.Binding())] = relationFor(q, j)
	}

	model := "prisma." + r.fw.ModelName(q.Source.Name)
	if len(q.GroupBy) > 0 {
		return r.renderGroupBy(model)
	}
	if agg := r.aggregateOnly(); agg != nil {
		return r.renderAggregate(model, agg)
	}
	return r.renderFindMany(model)
}

// aggregateOnly returns the aggregate projections when the ungrouped select
// list is nothing but aggregates.
func (r *prRenderer) aggregateOnly() []*ir.FunctionCall {
	if len(r.q.SelectList) == 0 {
		return nil
	}
	var out []*ir.FunctionCall
	for _, p := range r.q.SelectList {
		fn, ok := p.Expr.(*ir.FunctionCall)
		if !ok {
			return nil
		}
		if _, known := prAggNames[fn.Name]; !known {
			return nil
		}
		out = append(out, fn)
	}
	return out
}

var prAggNames = map[string]string{
	"COUNT": "_count",
	"SUM":   "_sum",
	"AVG":   "_avg",
	"MIN":   "_min",
	"MAX":   "_max",
}

func (r *prRenderer) renderFindMany(model string) (string, error) {
	q := r.q
	var opts []string

	selection, err := r.selection()
	if err != nil {
		return "", err
	}
	if selection != "" {
		opts = append(opts, selection)
	}
	if q.Filter != nil {
		where, err := r.whereObject(q.Filter)
		if err != nil {
			return "", err
		}
		opts = append(opts, "where: "+where)
	}
	if q.Having != nil {
		return "", &types.UnsupportedConstructError{Construct: "HAVING without GROUP BY", Essential: true}
	}
	if len(q.OrderBy) > 0 {
		order, err := r.orderBy()
		if err != nil {
			return "", err
		}
		opts = append(opts, "orderBy: "+order)
	}
	if q.Distinct {
		distinct, err := r.distinctFields()
		if err != nil {
			return "", err
		}
		opts = append(opts, "distinct: "+distinct)
	}
	if q.Offset != nil {
		opts = append(opts, fmt.Sprintf("skip: %d", *q.Offset))
	}
	if q.Limit != nil {
		opts = append(opts, fmt.Sprintf("take: %d", *q.Limit))
	}
	if len(opts) == 0 {
		return model + ".findMany()", nil
	}
	return model + ".findMany({ " + strings.Join(opts, ", ") + " })", nil
}

// selection renders the select or include key. Joined columns nest under
// their relation; declared joins with no projected columns become include.
func (r *prRenderer) selection() (string, error) {
	q := r.q
	if starOnly(q) || len(q.SelectList) == 0 {
		if len(q.Joins) == 0 {
			return "", nil
		}
		entries := make([]string, 0, len(q.Joins))
		for _, j := range q.Joins {
			rel := r.rels[strings.ToLower(j.Target.Binding())]
			entries = append(entries, r.relField(rel)+": true")
		}
		return "include: { " + strings.Join(entries, ", ") + " }", nil
	}

	var rootFields []string
	nested := map[string][]string{}
	var nestedOrder []string
	for _, p := range q.SelectList {
		c, ok := p.Expr.(*ir.Column)
		if !ok {
			return "", &types.UnsupportedConstructError{
				Construct: "computed projection " + ir.DisplayString(p.Expr),
				Essential: true,
				Hint:      "compute in application code or use a raw query",
			}
		}
		if c.Name == "*" {
			continue
		}
		field := r.fw.FieldName(c.Name)
		if r.isSourceBinding(c.Table) {
			rootFields = append(rootFields, field+": true")
			continue
		}
		rel, ok := r.rels[strings.ToLower(c.Table)]
		if !ok {
			return "", &types.UnresolvedReferenceError{Name: c.Table}
		}
		key := r.relField(rel)
		if _, seen := nested[key]; !seen {
			nestedOrder = append(nestedOrder, key)
		}
		nested[key] = append(nested[key], field+": true")
	}
	for _, key := range nestedOrder {
		entry := key + ": { select: { " + strings.Join(nested[key], ", ") + " } }"
		rootFields = append(rootFields, entry)
	}
	if len(rootFields) == 0 {
		return "", nil
	}
	return "select: { " + strings.Join(rootFields, ", ") + " }", nil
}

func (r *prRenderer) isSourceBinding(table string) bool {
	return table == "" || strings.EqualFold(table, r.q.Source.Binding())
}

// relField spells a relation's field name on the model: to-one keeps the
// singular name, to-many the collection name.
func (r *prRenderer) relField(rel relation) string {
	return r.fw.FieldName(rel.Name)
}

func (r *prRenderer) whereObject(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.BinaryOp:
		switch v.Op {
		case "AND", "OR":
			parts, err := r.boolList(v, v.Op)
			if err != nil {
				return "", err
			}
			return "{ " + v.Op + ": [" + strings.Join(parts, ", ") + "] }", nil
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
			return "{ NOT: " + inner + " }", nil
		}
	}
	return "", &types.UnsupportedConstructError{
		Construct: "filter " + ir.DisplayString(e),
		Essential: true,
		Hint:      "use a raw query for computed predicates",
	}
}

func (r *prRenderer) boolList(v *ir.BinaryOp, op string) ([]string, error) {
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

// whereEntry renders one comparison as key: condition, nesting joined fields
// under their relation.
func (r *prRenderer) whereEntry(b *ir.BinaryOp) (string, error) {
	col, ok := b.Left.(*ir.Column)
	if !ok {
		return "", &types.UnsupportedConstructError{
			Construct: "filter on " + ir.DisplayString(b.Left),
			Essential: true,
			Hint:      "use a raw query for computed predicates",
		}
	}
	field := r.fw.FieldName(col.Name)
	cond, err := r.opValue(b)
	if err != nil {
		return "", err
	}
	if r.isSourceBinding(col.Table) {
		return field + ": " + cond, nil
	}
	rel, known := r.rels[strings.ToLower(col.Table)]
	if !known {
		return "", &types.UnresolvedReferenceError{Name: col.Table}
	}
	inner := field + ": " + cond
	if rel.ToOne {
		return r.relField(rel) + ": { " + inner + " }", nil
	}
	return r.relField(rel) + ": { some: { " + inner + " } }", nil
}

// opValue renders the right-hand condition for one comparison.
func (r *prRenderer) opValue(b *ir.BinaryOp) (string, error) {
	value := func() (string, error) {
		lit, ok := b.Right.(*ir.Literal)
		if !ok {
			return "", &types.UnsupportedConstructError{
				Construct: "comparison against " + ir.DisplayString(b.Right),
				Essential: true,
				Hint:      "only literal comparisons translate",
			}
		}
		return renderLiteral(lit.Value, jsLit)
	}
	switch b.Op {
	case "=":
		v, err := value()
		if err != nil {
			return "", err
		}
		return v, nil
	case "<>":
		v, err := value()
		if err != nil {
			return "", err
		}
		return "{ not: " + v + " }", nil
	case ">", ">=", "<", "<=":
		ops := map[string]string{">": "gt", ">=": "gte", "<": "lt", "<=": "lte"}
		v, err := value()
		if err != nil {
			return "", err
		}
		return "{ " + ops[b.Op] + ": " + v + " }", nil
	case "IN", "NOT IN":
		v, err := value()
		if err != nil {
			return "", err
		}
		key := "in"
		if b.Op == "NOT IN" {
			key = "notIn"
		}
		return "{ " + key + ": " + v + " }", nil
	case "IS":
		return "null", nil
	case "IS NOT":
		return "{ not: null }", nil
	case "LIKE", "NOT LIKE":
		inner, err := r.likeValue(b.Right)
		if err != nil {
			return "", err
		}
		if b.Op == "NOT LIKE" {
			return "{ not: " + inner + " }", nil
		}
		return inner, nil
	}
	return "", &types.UnsupportedConstructError{Construct: "operator " + b.Op, Essential: true}
}

func (r *prRenderer) likeValue(right ir.Expr) (string, error) {
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
	value, err := renderLiteral(body, jsLit)
	if err != nil {
		return "", err
	}
	switch {
	case leading && trailing:
		return "{ contains: " + value + " }", nil
	case trailing:
		return "{ startsWith: " + value + " }", nil
	case leading:
		return "{ endsWith: " + value + " }", nil
	}
	return value, nil
}

func (r *prRenderer) orderBy() (string, error) {
	terms := make([]string, 0, len(r.q.OrderBy))
	for _, t := range r.q.OrderBy {
		dir := "'asc'"
		if t.Desc {
			dir = "'desc'"
		}
		switch e := t.Expr.(type) {
		case *ir.Column:
			field := r.fw.FieldName(e.Name)
			if r.isSourceBinding(e.Table) {
				terms = append(terms, "{ "+field+": "+dir+" }")
				continue
			}
			rel, known := r.rels[strings.ToLower(e.Table)]
			if !known {
				return "", &types.UnresolvedReferenceError{Name: e.Table}
			}
			terms = append(terms, "{ "+r.relField(rel)+": { "+field+": "+dir+" } }")
		case *ir.FunctionCall:
			key, ok := prAggNames[e.Name]
			if !ok {
				return "", &types.UnsupportedConstructError{Construct: "ordering by " + e.Name, Essential: true}
			}
			field, err := r.aggField(e)
			if err != nil {
				return "", err
			}
			terms = append(terms, "{ "+key+": { "+field+": "+dir+" } }")
		default:
			return "", &types.UnsupportedConstructError{Construct: "computed ordering", Essential: true}
		}
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return "[" + strings.Join(terms, ", ") + "]", nil
}

func (r *prRenderer) distinctFields() (string, error) {
	var fields []string
	for _, p := range r.q.SelectList {
		if c, ok := p.Expr.(*ir.Column); ok && c.Name != "*" && r.isSourceBinding(c.Table) {
			fields = append(fields, "'"+r.fw.FieldName(c.Name)+"'")
		}
	}
	if len(fields) == 0 {
		return "", &types.UnsupportedConstructError{
			Construct: "DISTINCT without a plain column list",
			Essential: true,
			Hint:      "list the distinct fields explicitly",
		}
	}
	return "[" + strings.Join(fields, ", ") + "]", nil
}

func (r *prRenderer) renderAggregate(model string, aggs []*ir.FunctionCall) (string, error) {
	q := r.q
	if len(q.Joins) > 0 {
		return "", &types.UnsupportedConstructError{
			Construct: "aggregate over joined relations",
			Essential: true,
			Hint:      "use a raw query or aggregate per relation",
		}
	}
	// a single COUNT(*) is the count verb
	if len(aggs) == 1 && aggs[0].Name == "COUNT" && aggs[0].Star {
		var opts []string
		if q.Filter != nil {
			where, err := r.whereObject(q.Filter)
			if err != nil {
				return "", err
			}
			opts = append(opts, "where: "+where)
		}
		if len(opts) == 0 {
			return model + ".count()", nil
		}
		return model + ".count({ " + strings.Join(opts, ", ") + " })", nil
	}

	grouped := map[string][]string{}
	var order []string
	for _, fn := range aggs {
		key := prAggNames[fn.Name]
		field, err := r.aggField(fn)
		if err != nil {
			return "", err
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], field+": true")
	}
	var opts []string
	for _, key := range order {
		opts = append(opts, key+": { "+strings.Join(grouped[key], ", ")+" }")
	}
	if q.Filter != nil {
		where, err := r.whereObject(q.Filter)
		if err != nil {
			return "", err
		}
		opts = append(opts, "where: "+where)
	}
	return model + ".aggregate({ " + strings.Join(opts, ", ") + " })", nil
}

// aggField names the field inside an aggregate shape; COUNT(*) counts all
// rows through _all.
func (r *prRenderer) aggField(fn *ir.FunctionCall) (string, error) {
	if fn.Star {
		return "_all", nil
	}
	if len(fn.Args) != 1 {
		return "", &types.UnsupportedConstructError{Construct: ir.DisplayString(fn), Essential: true}
	}
	c, ok := fn.Args[0].(*ir.Column)
	if !ok {
		return "", &types.UnsupportedConstructError{
			Construct: "aggregate over " + ir.DisplayString(fn.Args[0]),
			Essential: true,
		}
	}
	if !r.isSourceBinding(c.Table) {
		return "", &types.UnsupportedConstructError{
			Construct: "aggregate over a joined relation",
			Essential: true,
			Hint:      "use a raw query or aggregate per relation",
		}
	}
	return r.fw.FieldName(c.Name), nil
}

func (r *prRenderer) renderGroupBy(model string) (string, error) {
	q := r.q
	if len(q.Joins) > 0 {
		return "", &types.UnsupportedConstructError{
			Construct: "grouped query with joins",
			Essential: true,
			Hint:      "use a raw query for grouped joins",
		}
	}

	byFields := make([]string, 0, len(q.GroupBy))
	for _, g := range q.GroupBy {
		c, ok := g.(*ir.Column)
		if !ok || !r.isSourceBinding(c.Table) {
			return "", &types.UnsupportedConstructError{
				Construct: "grouping by " + ir.DisplayString(g),
				Essential: true,
			}
		}
		byFields = append(byFields, "'"+r.fw.FieldName(c.Name)+"'")
	}
	opts := []string{"by: [" + strings.Join(byFields, ", ") + "]"}

	grouped := map[string][]string{}
	var order []string
	for _, p := range q.SelectList {
		switch e := p.Expr.(type) {
		case *ir.Column:
			// by fields come back automatically
		case *ir.FunctionCall:
			key, ok := prAggNames[e.Name]
			if !ok {
				return "", &types.UnsupportedConstructError{Construct: "projection " + ir.DisplayString(e), Essential: true}
			}
			field, err := r.aggField(e)
			if err != nil {
				return "", err
			}
			if field == "_all" && e.Name == "COUNT" {
				if _, seen := grouped[key]; !seen {
					order = append(order, key)
				}
				grouped[key] = []string{"_all: true"}
				continue
			}
			if _, seen := grouped[key]; !seen {
				order = append(order, key)
			}
			grouped[key] = append(grouped[key], field+": true")
		default:
			return "", &types.UnsupportedConstructError{Construct: "projection " + ir.DisplayString(p.Expr), Essential: true}
		}
	}
	for _, key := range order {
		opts = append(opts, key+": { "+strings.Join(grouped[key], ", ")+" }")
	}

	if q.Filter != nil {
		where, err := r.whereObject(q.Filter)
		if err != nil {
			return "", err
		}
		opts = append(opts, "where: "+where)
	}
	if q.Having != nil {
		having, err := r.havingObject(q.Having)
		if err != nil {
			return "", err
		}
		opts = append(opts, "having: "+having)
	}
	if len(q.OrderBy) > 0 {
		orderBy, err := r.orderBy()
		if err != nil {
			return "", err
		}
		opts = append(opts, "orderBy: "+orderBy)
	}
	if q.Offset != nil {
		opts = append(opts, fmt.Sprintf("skip: %d", *q.Offset))
	}
	if q.Limit != nil {
		opts = append(opts, fmt.Sprintf("take: %d", *q.Limit))
	}
	return model + ".groupBy({ " + strings.Join(opts, ", ") + " })", nil
}

// havingObject renders HAVING: aggregate comparisons nest the operator under
// the aggregate key, grouping-key comparisons read like where entries.
func (r *prRenderer) havingObject(e ir.Expr) (string, error) {
	switch v := e.(type) {
	case *ir.BinaryOp:
		switch v.Op {
		case "AND", "OR":
			var parts []string
			var walk func(e ir.Expr) error
			walk = func(e ir.Expr) error {
				if b, ok := e.(*ir.BinaryOp); ok && b.Op == v.Op {
					if err := walk(b.Left); err != nil {
						return err
					}
					return walk(b.Right)
				}
				rendered, err := r.havingObject(e)
				if err != nil {
					return err
				}
				parts = append(parts, rendered)
				return nil
			}
			if err := walk(v); err != nil {
				return "", err
			}
			return "{ " + v.Op + ": [" + strings.Join(parts, ", ") + "] }", nil
		}
		if fn, ok := v.Left.(*ir.FunctionCall); ok {
			key, known := prAggNames[fn.Name]
			if !known {
				return "", &types.UnsupportedConstructError{Construct: "HAVING on " + fn.Name, Essential: true}
			}
			field, err := r.aggField(fn)
			if err != nil {
				return "", err
			}
			cond, err := r.opValue(v)
			if err != nil {
				return "", err
			}
			if !strings.HasPrefix(cond, "{") {
				cond = "{ equals: " + cond + " }"
			}
			return "{ " + key + ": { " + field + ": " + cond + " } }", nil
		}
		entry, err := r.whereEntry(v)
		if err != nil {
			return "", err
		}
		return "{ " + entry + " }", nil
	case *ir.FunctionCall:
		if v.Name == "NOT" && len(v.Args) == 1 {
			inner, err := r.havingObject(v.Args[0])
			if err != nil {
				return "", err
			}
			return "{ NOT: " + inner + " }", nil
		}
	}
	return "", &types.UnsupportedConstructError{Construct: "HAVING " + ir.DisplayString(e), Essential: true}
}
