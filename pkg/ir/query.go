package ir

// JoinKind is the join flavor.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
)

// Projection is one output expression of the select list.
type Projection struct {
	Expr  Expr
	Alias string
}

// TableRef names a table, optionally aliased.
type TableRef struct {
	Name  string
	Alias string
}

// Binding returns the name a TableRef is known by in scope: the alias when
// present, the table name otherwise.
func (t TableRef) Binding() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Source is the FROM item: either a named table or a derived subquery.
type Source struct {
	Name  string
	Alias string
	Sub   *Query
}

// IsSubquery reports whether the source is a derived table.
func (s Source) IsSubquery() bool {
	return s.Sub != nil
}

// Binding returns the scope name of the source.
func (s Source) Binding() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// Join attaches one table to the query. Declared records whether the join
// came from an explicit join/eager-load primitive in the source surface, as
// opposed to being inferred during normalization; the analyzer treats
// inferred joins as missing eager loads.
type Join struct {
	Kind      JoinKind
	Target    TableRef
	Condition Expr
	Declared  bool
}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr Expr
	Desc bool
}

// CTE is a named common table expression. CTEs are ordered; each may
// reference only the CTEs before it.
type CTE struct {
	Name    string
	Columns []string
	Query   *Query
}

// WindowFn records a window call surfaced in the select list, under the alias
// it is projected as.
type WindowFn struct {
	Alias string
	Call  *WindowCall
}

// Query is the neutral model of one SELECT. A fresh value is built per
// translation and never mutated after validation.
type Query struct {
	Distinct   bool
	SelectList []Projection
	Source     Source
	Joins      []Join
	Filter     Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderTerm
	Limit      *int
	Offset     *int
	CTEs       []CTE
	Windows    []WindowFn
}

// CTE returns the common table expression with the given name, or nil.
func (q *Query) CTE(name string) *CTE {
	for i := range q.CTEs {
		if q.CTEs[i].Name == name {
			return &q.CTEs[i]
		}
	}
	return nil
}

// Tables returns the scope bindings of the query in introduction order:
// source first, then each join target.
func (q *Query) Tables() []TableRef {
	out := make([]TableRef, 0, 1+len(q.Joins))
	if q.Source.Name != "" || q.Source.Alias != "" {
		out = append(out, TableRef{Name: q.Source.Name, Alias: q.Source.Alias})
	}
	for _, j := range q.Joins {
		out = append(out, j.Target)
	}
	return out
}
