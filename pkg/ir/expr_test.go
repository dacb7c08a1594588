package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAggregateFunc(t *testing.T) {
	assert.True(t, IsAggregateFunc("COUNT"))
	assert.True(t, IsAggregateFunc("count"))
	assert.True(t, IsAggregateFunc("Avg"))
	assert.False(t, IsAggregateFunc("LOWER"))
	assert.False(t, IsAggregateFunc("ROW_NUMBER"))
}

func TestContainsAggregate(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{
			name: "plain column",
			expr: &Column{Name: "age"},
			want: false,
		},
		{
			name: "direct aggregate",
			expr: &FunctionCall{Name: "SUM", Args: []Expr{&Column{Name: "total"}}},
			want: true,
		},
		{
			name: "aggregate inside comparison",
			expr: &BinaryOp{
				Op:    ">",
				Left:  &FunctionCall{Name: "COUNT", Star: true},
				Right: &Literal{Value: int64(5)},
			},
			want: true,
		},
		{
			name: "aggregate nested in scalar function",
			expr: &FunctionCall{Name: "COALESCE", Args: []Expr{
				&FunctionCall{Name: "MAX", Args: []Expr{&Column{Name: "score"}}},
				&Literal{Value: int64(0)},
			}},
			want: true,
		},
		{
			name: "scalar function only",
			expr: &FunctionCall{Name: "LOWER", Args: []Expr{&Column{Name: "name"}}},
			want: false,
		},
		{
			name: "window call",
			expr: &WindowCall{Func: FunctionCall{Name: "ROW_NUMBER"}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsAggregate(tt.expr))
		})
	}
}

func TestColumns(t *testing.T) {
	t.Run("depth first over operators and calls", func(t *testing.T) {
		e := &BinaryOp{
			Op:    "AND",
			Left:  &BinaryOp{Op: "=", Left: &Column{Table: "u", Name: "id"}, Right: &Column{Table: "o", Name: "user_id"}},
			Right: &FunctionCall{Name: "LOWER", Args: []Expr{&Column{Name: "email"}}},
		}
		got := Columns(e)
		names := make([]string, len(got))
		for i, c := range got {
			names[i] = DisplayString(c)
		}
		assert.Equal(t, []string{"u.id", "o.user_id", "email"}, names)
	})

	t.Run("subquery columns stay inside", func(t *testing.T) {
		e := &BinaryOp{
			Op:   "IN",
			Left: &Column{Name: "id"},
			Right: &Subquery{Query: &Query{
				SelectList: []Projection{{Expr: &Column{Table: "o", Name: "user_id"}}},
				Source:     Source{Name: "orders", Alias: "o"},
			}},
		}
		got := Columns(e)
		assert.Len(t, got, 1)
		assert.Equal(t, "id", got[0].Name)
	})

	t.Run("window parts are walked", func(t *testing.T) {
		e := &WindowCall{
			Func:        FunctionCall{Name: "SUM", Args: []Expr{&Column{Name: "salary"}}},
			PartitionBy: []Expr{&Column{Name: "dept"}},
			OrderBy:     []OrderTerm{{Expr: &Column{Name: "hired_at"}, Desc: true}},
		}
		got := Columns(e)
		assert.Len(t, got, 3)
	})
}

func TestDisplayString(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"bare column", &Column{Name: "age"}, "age"},
		{"qualified column", &Column{Table: "u", Name: "age"}, "u.age"},
		{"string literal", &Literal{Value: "open"}, "'open'"},
		{"null literal", &Literal{Value: nil}, "NULL"},
		{"int literal", &Literal{Value: int64(42)}, "42"},
		{"bool literal", &Literal{Value: true}, "true"},
		{"bind param", &Literal{Value: BindParam("minAge")}, ":minAge"},
		{"tuple", &Literal{Value: []any{int64(1), "a"}}, "(1, 'a')"},
		{
			"binary",
			&BinaryOp{Op: ">", Left: &Column{Name: "age"}, Right: &Literal{Value: int64(21)}},
			"age > 21",
		},
		{"count star", &FunctionCall{Name: "count", Star: true}, "COUNT(*)"},
		{
			"distinct call",
			&FunctionCall{Name: "count", Distinct: true, Args: []Expr{&Column{Name: "city"}}},
			"COUNT(DISTINCT city)",
		},
		{
			"multi-arg call",
			&FunctionCall{Name: "concat", Args: []Expr{&Column{Name: "a"}, &Column{Name: "b"}}},
			"CONCAT(a, b)",
		},
		{"subquery", &Subquery{Query: &Query{}}, "(subquery)"},
		{
			"window call",
			&WindowCall{Func: FunctionCall{Name: "row_number"}, PartitionBy: []Expr{&Column{Name: "dept"}}},
			"ROW_NUMBER() OVER (...)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayString(tt.expr))
		})
	}
}

func TestKey(t *testing.T) {
	a := &Column{Table: "U", Name: "Name"}
	b := &Column{Table: "u", Name: "name"}
	assert.Equal(t, Key(a), Key(b))
	assert.NotEqual(t, Key(a), Key(&Column{Table: "u", Name: "email"}))
}

func TestBindings(t *testing.T) {
	assert.Equal(t, "u", TableRef{Name: "users", Alias: "u"}.Binding())
	assert.Equal(t, "users", TableRef{Name: "users"}.Binding())
	assert.Equal(t, "sub", Source{Alias: "sub", Sub: &Query{}}.Binding())
	assert.True(t, Source{Sub: &Query{}}.IsSubquery())
	assert.False(t, Source{Name: "users"}.IsSubquery())
}

func TestQueryTables(t *testing.T) {
	q := &Query{
		Source: Source{Name: "users", Alias: "u"},
		Joins: []Join{
			{Kind: JoinLeft, Target: TableRef{Name: "orders", Alias: "o"}},
			{Kind: JoinInner, Target: TableRef{Name: "items"}},
		},
	}
	got := q.Tables()
	assert.Equal(t, []TableRef{
		{Name: "users", Alias: "u"},
		{Name: "orders", Alias: "o"},
		{Name: "items"},
	}, got)
}

func TestQueryCTELookup(t *testing.T) {
	q := &Query{CTEs: []CTE{{Name: "recent"}, {Name: "totals"}}}
	assert.NotNil(t, q.CTE("totals"))
	assert.Nil(t, q.CTE("missing"))
}
