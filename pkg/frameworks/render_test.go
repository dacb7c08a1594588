package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

func col(table, name string) *ir.Column {
	return &ir.Column{Table: table, Name: name}
}

func eq(left, right ir.Expr) *ir.BinaryOp {
	return &ir.BinaryOp{Op: "=", Left: left, Right: right}
}

func TestRelationFor(t *testing.T) {
	tests := []struct {
		name   string
		source string
		join   ir.Join
		want   relation
	}{
		{
			name:   "foreign key on the source reads as to-one",
			source: "orders",
			join: ir.Join{
				Target:    ir.TableRef{Name: "customers"},
				Condition: eq(col("orders", "customer_id"), col("customers", "id")),
			},
			want: relation{Name: "customer", ToOne: true},
		},
		{
			name:   "flipped operands",
			source: "orders",
			join: ir.Join{
				Target:    ir.TableRef{Name: "customers"},
				Condition: eq(col("customers", "id"), col("orders", "customer_id")),
			},
			want: relation{Name: "customer", ToOne: true},
		},
		{
			name:   "aliased target",
			source: "orders",
			join: ir.Join{
				Target:    ir.TableRef{Name: "customers", Alias: "c"},
				Condition: eq(col("orders", "customer_id"), col("c", "id")),
			},
			want: relation{Name: "customer", ToOne: true},
		},
		{
			name:   "foreign key on the target reads as a collection",
			source: "customers",
			join: ir.Join{
				Target:    ir.TableRef{Name: "orders"},
				Condition: eq(col("orders", "customer_id"), col("customers", "id")),
			},
			want: relation{Name: "orders"},
		},
		{
			name:   "foreign key of an unrelated table",
			source: "invoices",
			join: ir.Join{
				Target:    ir.TableRef{Name: "customers"},
				Condition: eq(col("orders", "customer_id"), col("customers", "id")),
			},
			want: relation{Name: "customers"},
		},
		{
			name:   "non-equi condition",
			source: "orders",
			join: ir.Join{
				Target:    ir.TableRef{Name: "customers"},
				Condition: &ir.BinaryOp{Op: ">", Left: col("orders", "total"), Right: col("customers", "credit")},
			},
			want: relation{Name: "customers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &ir.Query{Source: ir.Source{Name: tt.source}}
			assert.Equal(t, tt.want, relationFor(q, tt.join))
		})
	}
}

func TestCondMatchesRelation(t *testing.T) {
	tests := []struct {
		name   string
		source string
		join   ir.Join
		want   bool
	}{
		{
			name:   "to-one linkage",
			source: "orders",
			join: ir.Join{
				Target:    ir.TableRef{Name: "customers"},
				Condition: eq(col("orders", "customer_id"), col("customers", "id")),
			},
			want: true,
		},
		{
			name:   "conventional collection linkage",
			source: "customers",
			join: ir.Join{
				Target:    ir.TableRef{Name: "orders"},
				Condition: eq(col("orders", "customer_id"), col("customers", "id")),
			},
			want: true,
		},
		{
			name:   "collection linkage with flipped operands",
			source: "customers",
			join: ir.Join{
				Target:    ir.TableRef{Name: "orders"},
				Condition: eq(col("customers", "id"), col("orders", "customer_id")),
			},
			want: true,
		},
		{
			name:   "unconventional foreign key",
			source: "customers",
			join: ir.Join{
				Target:    ir.TableRef{Name: "orders"},
				Condition: eq(col("orders", "buyer_id"), col("customers", "id")),
			},
			want: false,
		},
		{
			name:   "literal operand",
			source: "customers",
			join: ir.Join{
				Target:    ir.TableRef{Name: "orders"},
				Condition: eq(col("orders", "customer_id"), &ir.Literal{Value: int64(1)}),
			},
			want: false,
		},
		{
			name:   "missing condition",
			source: "customers",
			join:   ir.Join{Target: ir.TableRef{Name: "orders"}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &ir.Query{Source: ir.Source{Name: tt.source}}
			assert.Equal(t, tt.want, condMatchesRelation(q, tt.join))
		})
	}
}

func TestInlineCTEs(t *testing.T) {
	star := func() []ir.Projection {
		return []ir.Projection{{Expr: &ir.Column{Name: "*"}}}
	}

	t.Run("no CTEs returns the query unchanged", func(t *testing.T) {
		q := fromSQL(t, "SELECT * FROM users")
		out, err := inlineCTEs(q)
		require.NoError(t, err)
		assert.Same(t, q, out)
	})

	t.Run("from reference becomes a derived table", func(t *testing.T) {
		sub := fromSQL(t, "SELECT * FROM orders WHERE orders.total > 100")
		q := &ir.Query{
			SelectList: star(),
			Source:     ir.Source{Name: "recent"},
			CTEs:       []ir.CTE{{Name: "recent", Query: sub}},
		}
		out, err := inlineCTEs(q)
		require.NoError(t, err)
		require.True(t, out.Source.IsSubquery())
		assert.Equal(t, "recent", out.Source.Binding())
		assert.Same(t, sub, out.Source.Sub)
		assert.Empty(t, out.CTEs)
	})

	t.Run("column list renames the projections", func(t *testing.T) {
		sub := fromSQL(t, "SELECT users.name, users.age FROM users")
		q := &ir.Query{
			SelectList: star(),
			Source:     ir.Source{Name: "people"},
			CTEs:       []ir.CTE{{Name: "people", Columns: []string{"who", "years"}, Query: sub}},
		}
		out, err := inlineCTEs(q)
		require.NoError(t, err)
		require.True(t, out.Source.IsSubquery())
		require.Len(t, out.Source.Sub.SelectList, 2)
		assert.Equal(t, "who", out.Source.Sub.SelectList[0].Alias)
		assert.Equal(t, "years", out.Source.Sub.SelectList[1].Alias)
		assert.Empty(t, sub.SelectList[0].Alias)
	})

	t.Run("chained CTEs inline transitively", func(t *testing.T) {
		inner := fromSQL(t, "SELECT * FROM orders")
		q := &ir.Query{
			SelectList: star(),
			Source:     ir.Source{Name: "second"},
			CTEs: []ir.CTE{
				{Name: "first", Query: inner},
				{Name: "second", Query: &ir.Query{SelectList: star(), Source: ir.Source{Name: "first"}}},
			},
		}
		out, err := inlineCTEs(q)
		require.NoError(t, err)
		require.True(t, out.Source.IsSubquery())
		require.True(t, out.Source.Sub.Source.IsSubquery())
		assert.Same(t, inner, out.Source.Sub.Source.Sub)
	})

	t.Run("joined CTE", func(t *testing.T) {
		q := &ir.Query{
			SelectList: star(),
			Source:     ir.Source{Name: "users"},
			Joins: []ir.Join{{
				Kind:      ir.JoinInner,
				Target:    ir.TableRef{Name: "recent"},
				Condition: eq(col("recent", "user_id"), col("users", "id")),
			}},
			CTEs: []ir.CTE{{Name: "recent", Query: fromSQL(t, "SELECT * FROM orders")}},
		}
		_, err := inlineCTEs(q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "joined common table expression", uerr.Construct)
	})

	t.Run("CTE inside a subquery", func(t *testing.T) {
		q := &ir.Query{
			SelectList: star(),
			Source:     ir.Source{Name: "users"},
			Filter: &ir.BinaryOp{
				Op:   "IN",
				Left: col("users", "id"),
				Right: &ir.Subquery{Query: &ir.Query{
					SelectList: []ir.Projection{{Expr: col("recent", "user_id")}},
					Source:     ir.Source{Name: "recent"},
				}},
			},
			CTEs: []ir.CTE{{Name: "recent", Query: fromSQL(t, "SELECT * FROM orders")}},
		}
		_, err := inlineCTEs(q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "common table expression inside a subquery", uerr.Construct)
	})
}

func TestRenderLiteral(t *testing.T) {
	tests := []struct {
		name  string
		value any
		style litStyle
		want  string
	}{
		{name: "python none", value: nil, style: pyLit, want: "None"},
		{name: "python true", value: true, style: pyLit, want: "True"},
		{name: "js false", value: false, style: jsLit, want: "false"},
		{name: "cs null", value: nil, style: csLit, want: "null"},
		{name: "single quoted string", value: "ada", style: pyLit, want: "'ada'"},
		{name: "quote escaped", value: "o'clock", style: pyLit, want: `'o\'clock'`},
		{name: "backslash escaped", value: `a\b`, style: jsLit, want: `'a\\b'`},
		{name: "double quoted string", value: `say "hi"`, style: csLit, want: `"say \"hi\""`},
		{name: "int64", value: int64(42), style: pyLit, want: "42"},
		{name: "int", value: 7, style: jsLit, want: "7"},
		{name: "float", value: 1.5, style: pyLit, want: "1.5"},
		{name: "whole float", value: float64(10), style: jsLit, want: "10"},
		{name: "python list", value: []any{"a", "b"}, style: pyLit, want: "['a', 'b']"},
		{name: "js list", value: []any{int64(1), int64(2)}, style: jsLit, want: "[1, 2]"},
		{name: "cs array", value: []any{"a", "b"}, style: csLit, want: `new[] { "a", "b" }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderLiteral(tt.value, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unbound parameter", func(t *testing.T) {
		_, err := renderLiteral(ir.BindParam("min"), pyLit)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "unbound parameter :min", uerr.Construct)
		assert.Equal(t, "bind a value for the parameter before translating", uerr.Hint)
	})

	t.Run("unsupported value type", func(t *testing.T) {
		_, err := renderLiteral(uint8(3), csLit)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "literal of type uint8", uerr.Construct)
	})
}

func TestShortAlias(t *testing.T) {
	taken := map[string]bool{}
	assert.Equal(t, "i", shortAlias("Invoice", taken))
	assert.Equal(t, "in", shortAlias("Invoice", taken))
	assert.Equal(t, "inv", shortAlias("Invoice", taken))
	assert.Equal(t, "t", shortAlias("", taken))

	exhausted := map[string]bool{"a": true}
	assert.Equal(t, "a2", shortAlias("a", exhausted))
	assert.Equal(t, "a3", shortAlias("a", exhausted))
}

func TestStarOnly(t *testing.T) {
	assert.True(t, starOnly(&ir.Query{SelectList: []ir.Projection{{Expr: &ir.Column{Name: "*"}}}}))
	assert.False(t, starOnly(&ir.Query{SelectList: []ir.Projection{{Expr: col("users", "*")}}}))
	assert.False(t, starOnly(&ir.Query{SelectList: []ir.Projection{{Expr: col("", "name")}}}))
	assert.False(t, starOnly(&ir.Query{SelectList: []ir.Projection{
		{Expr: &ir.Column{Name: "*"}},
		{Expr: col("users", "age")},
	}}))
}

func TestAliasOrSynth(t *testing.T) {
	tests := []struct {
		name string
		p    ir.Projection
		want string
	}{
		{
			name: "explicit alias wins",
			p:    ir.Projection{Expr: col("users", "name"), Alias: "who"},
			want: "who",
		},
		{
			name: "column name",
			p:    ir.Projection{Expr: col("users", "age")},
			want: "age",
		},
		{
			name: "aggregate over a column",
			p:    ir.Projection{Expr: &ir.FunctionCall{Name: "SUM", Args: []ir.Expr{col("users", "age")}}},
			want: "sum_age",
		},
		{
			name: "bare count",
			p:    ir.Projection{Expr: &ir.FunctionCall{Name: "COUNT", Star: true}},
			want: "count",
		},
		{
			name: "function over a literal",
			p:    ir.Projection{Expr: &ir.FunctionCall{Name: "LENGTH", Args: []ir.Expr{&ir.Literal{Value: "x"}}}},
			want: "length",
		},
		{
			name: "window call",
			p:    ir.Projection{Expr: &ir.WindowCall{Func: ir.FunctionCall{Name: "ROW_NUMBER"}}},
			want: "row_number",
		},
		{
			name: "anything else",
			p:    ir.Projection{Expr: &ir.Literal{Value: int64(1)}},
			want: "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aliasOrSynth(tt.p))
		})
	}
}
