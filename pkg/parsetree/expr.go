package parsetree

// Expr is the parse-level expression union. It is deliberately richer than
// the query model's union: object literals, lambdas and parameters exist only
// at the surface and are lowered away during normalization.
type Expr interface {
	parseExpr()
}

// Ident is a possibly qualified identifier: age, u.name, User.Age.
type Ident struct {
	Qualifier string
	Name      string
}

// StringLit is a quoted string literal with quotes removed.
type StringLit struct {
	Val string
}

// NumberLit keeps the source spelling of a numeric literal; the normalizer
// decides int versus float.
type NumberLit struct {
	Val string
}

// BoolLit is a boolean literal in any surface spelling.
type BoolLit struct {
	Val bool
}

// NullLit is NULL, None, null or nil.
type NullLit struct{}

// Param is a named bind parameter (:age).
type Param struct {
	Name string
}

// Unary applies a prefix operator (NOT, -).
type Unary struct {
	Op      string
	Operand Expr
}

// Binary applies an infix operator in canonical upper-case SQL spelling.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// FuncExpr is a function application. Star marks COUNT(*).
type FuncExpr struct {
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
}

// ArrayExpr is a list literal or IN value list.
type ArrayExpr struct {
	Items []Expr
}

// ObjectExpr is a JS-style object literal, as used by the config-object
// framework surfaces.
type ObjectExpr struct {
	Fields []ObjectField
}

// ObjectField is one key/value entry of an object literal.
type ObjectField struct {
	Key string
	Val Expr
}

// KwargExpr is a keyword argument inside a call (name=value).
type KwargExpr struct {
	Name  string
	Value Expr
}

// Field returns the value of the field with the given key, or nil.
func (o *ObjectExpr) Field(key string) Expr {
	for _, f := range o.Fields {
		if f.Key == key {
			return f.Val
		}
	}
	return nil
}

// LabeledExpr attaches a projection alias to an expression, as produced by
// label() and alias() style postfix calls.
type LabeledExpr struct {
	Expr  Expr
	Label string
}

// LambdaExpr is a single-parameter arrow function; only the body survives
// normalization, with the parameter bound to the enclosing source.
type LambdaExpr struct {
	Param string
	Body  Expr
}

// SubqueryExpr embeds a nested parsed query.
type SubqueryExpr struct {
	Tree *Tree
}

// WindowExpr applies a function over a window specification.
type WindowExpr struct {
	Func        FuncExpr
	PartitionBy []Expr
	OrderBy     []OrderArg
}

// OrderArg is one ORDER BY entry at parse level.
type OrderArg struct {
	Expr Expr
	Desc bool
}

// StarExpr is a bare or qualified star projection.
type StarExpr struct {
	Qualifier string
}

func (*Ident) parseExpr()        {}
func (*StringLit) parseExpr()    {}
func (*NumberLit) parseExpr()    {}
func (*BoolLit) parseExpr()      {}
func (*NullLit) parseExpr()      {}
func (*Param) parseExpr()        {}
func (*Unary) parseExpr()        {}
func (*Binary) parseExpr()       {}
func (*FuncExpr) parseExpr()     {}
func (*ArrayExpr) parseExpr()    {}
func (*ObjectExpr) parseExpr()   {}
func (*KwargExpr) parseExpr()    {}
func (*LabeledExpr) parseExpr()  {}
func (*LambdaExpr) parseExpr()   {}
func (*SubqueryExpr) parseExpr() {}
func (*WindowExpr) parseExpr()   {}
func (*StarExpr) parseExpr()     {}
