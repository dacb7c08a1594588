package sqlparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/parsetree"
	"github.com/nsxbet/querybridge/pkg/types"
)

func methods(t *parsetree.Tree) []string {
	out := make([]string, len(t.Calls))
	for i, c := range t.Calls {
		out[i] = c.Method
	}
	return out
}

func TestParseClauseSequence(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "minimal select",
			sql:  "SELECT * FROM users",
			want: []string{"select", "from"},
		},
		{
			name: "full clause set",
			sql: "SELECT u.city, COUNT(*) FROM users u " +
				"LEFT JOIN orders o ON o.user_id = u.id " +
				"WHERE u.active = true GROUP BY u.city HAVING COUNT(*) > 5 " +
				"ORDER BY u.city LIMIT 10 OFFSET 20",
			want: []string{"select", "from", "join_left", "where", "group_by", "having", "order_by", "limit", "offset"},
		},
		{
			name: "distinct before select",
			sql:  "SELECT DISTINCT city FROM users",
			want: []string{"distinct", "select", "from"},
		},
		{
			name: "top becomes limit",
			sql:  "SELECT TOP 5 name FROM users",
			want: []string{"limit", "select", "from"},
		},
		{
			name: "offset fetch spelling",
			sql:  "SELECT name FROM users ORDER BY name OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY",
			want: []string{"select", "from", "order_by", "offset", "limit"},
		},
		{
			name: "fetch first spelling",
			sql:  "SELECT name FROM users OFFSET 5 FETCH FIRST 10 ROWS ONLY",
			want: []string{"select", "from", "offset", "limit"},
		},
		{
			name: "cte then select",
			sql:  "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent",
			want: []string{"with", "select", "from"},
		},
		{
			name: "trailing semicolon",
			sql:  "SELECT * FROM users;",
			want: []string{"select", "from"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.sql, types.Limits{})
			require.NoError(t, err)
			assert.Equal(t, "sql", tree.Surface)
			assert.Equal(t, tt.want, methods(tree))
		})
	}
}

func TestParseSelectList(t *testing.T) {
	tree, err := Parse("SELECT u.name, COUNT(*) AS total, age + 1 years FROM users u", types.Limits{})
	require.NoError(t, err)

	sel := tree.Find("select")
	require.NotNil(t, sel)
	require.Len(t, sel.Args, 3)

	ident, ok := sel.Args[0].Value.(*parsetree.Ident)
	require.True(t, ok)
	assert.Equal(t, "u", ident.Qualifier)
	assert.Equal(t, "name", ident.Name)

	fn, ok := sel.Args[1].Value.(*parsetree.FuncExpr)
	require.True(t, ok)
	assert.Equal(t, "COUNT", fn.Name)
	assert.True(t, fn.Star)
	assert.Equal(t, "total", sel.Args[1].Name)

	// Bare identifier after an expression is an implicit alias.
	assert.Equal(t, "years", sel.Args[2].Name)
	bin, ok := sel.Args[2].Value.(*parsetree.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseFromItems(t *testing.T) {
	t.Run("aliased table", func(t *testing.T) {
		tree, err := Parse("SELECT * FROM users AS u", types.Limits{})
		require.NoError(t, err)
		from := tree.Find("from")
		require.NotNil(t, from)
		require.NotNil(t, from.Args[0].Table)
		assert.Equal(t, "users", from.Args[0].Table.Name)
		assert.Equal(t, "u", from.Args[0].Table.Alias)
	})

	t.Run("bare alias", func(t *testing.T) {
		tree, err := Parse("SELECT * FROM users u", types.Limits{})
		require.NoError(t, err)
		assert.Equal(t, "u", tree.Find("from").Args[0].Table.Alias)
	})

	t.Run("derived table", func(t *testing.T) {
		tree, err := Parse("SELECT * FROM (SELECT id FROM orders) recent", types.Limits{})
		require.NoError(t, err)
		from := tree.Find("from")
		require.NotNil(t, from.Args[0].Sub)
		assert.Equal(t, "recent", from.Args[0].Name)
		assert.Equal(t, []string{"select", "from"}, methods(from.Args[0].Sub))
	})
}

func TestParseJoinFlavors(t *testing.T) {
	tests := []struct {
		sql    string
		method string
	}{
		{"SELECT * FROM a JOIN b ON a.id = b.id", "join_inner"},
		{"SELECT * FROM a INNER JOIN b ON a.id = b.id", "join_inner"},
		{"SELECT * FROM a LEFT JOIN b ON a.id = b.id", "join_left"},
		{"SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.id", "join_left"},
		{"SELECT * FROM a RIGHT JOIN b ON a.id = b.id", "join_right"},
		{"SELECT * FROM a FULL OUTER JOIN b ON a.id = b.id", "join_full"},
		{"SELECT * FROM a CROSS JOIN b", "join_cross"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			tree, err := Parse(tt.sql, types.Limits{})
			require.NoError(t, err)
			call := tree.Find(tt.method)
			require.NotNil(t, call, tt.sql)
			require.NotNil(t, call.Args[0].Table)
			assert.Equal(t, "b", call.Args[0].Table.Name)
			if tt.method == "join_cross" {
				assert.Len(t, call.Args, 1)
			} else {
				require.Len(t, call.Args, 2)
				assert.IsType(t, &parsetree.Binary{}, call.Args[1].Value)
			}
		})
	}

	t.Run("join requires ON", func(t *testing.T) {
		_, err := Parse("SELECT * FROM a JOIN b WHERE a.id = 1", types.Limits{})
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Msg, "expected ON")
	})
}

func TestParseWithClause(t *testing.T) {
	tree, err := Parse("WITH recent (id, total) AS (SELECT id, amount FROM orders), top_ids AS (SELECT id FROM recent) SELECT * FROM top_ids", types.Limits{})
	require.NoError(t, err)

	var withs []*parsetree.Call
	for i := range tree.Calls {
		if tree.Calls[i].Method == "with" {
			withs = append(withs, &tree.Calls[i])
		}
	}
	require.Len(t, withs, 2)
	assert.Equal(t, "recent", withs[0].Args[0].Name)
	assert.Equal(t, "id,total", withs[0].Args[0].Raw)
	require.NotNil(t, withs[0].Args[0].Sub)
	assert.Equal(t, "top_ids", withs[1].Args[0].Name)
	assert.Empty(t, withs[1].Args[0].Raw)
}

func TestParseExpressionForms(t *testing.T) {
	limits := types.Limits{}

	t.Run("precedence", func(t *testing.T) {
		e, err := ParseExpression("a = 1 OR b = 2 AND c = 3", limits)
		require.NoError(t, err)
		or, ok := e.(*parsetree.Binary)
		require.True(t, ok)
		assert.Equal(t, "OR", or.Op)
		and, ok := or.Right.(*parsetree.Binary)
		require.True(t, ok)
		assert.Equal(t, "AND", and.Op)
	})

	t.Run("arithmetic binds tighter than comparison", func(t *testing.T) {
		e, err := ParseExpression("price * quantity > 100", limits)
		require.NoError(t, err)
		cmp, ok := e.(*parsetree.Binary)
		require.True(t, ok)
		assert.Equal(t, ">", cmp.Op)
		assert.IsType(t, &parsetree.Binary{}, cmp.Left)
	})

	t.Run("between lowers to range", func(t *testing.T) {
		e, err := ParseExpression("age BETWEEN 18 AND 30", limits)
		require.NoError(t, err)
		rng, ok := e.(*parsetree.Binary)
		require.True(t, ok)
		assert.Equal(t, "AND", rng.Op)
		lo := rng.Left.(*parsetree.Binary)
		hi := rng.Right.(*parsetree.Binary)
		assert.Equal(t, ">=", lo.Op)
		assert.Equal(t, "<=", hi.Op)
	})

	t.Run("not between wraps in NOT", func(t *testing.T) {
		e, err := ParseExpression("age NOT BETWEEN 18 AND 30", limits)
		require.NoError(t, err)
		un, ok := e.(*parsetree.Unary)
		require.True(t, ok)
		assert.Equal(t, "NOT", un.Op)
	})

	t.Run("in list", func(t *testing.T) {
		e, err := ParseExpression("status IN ('open', 'paid')", limits)
		require.NoError(t, err)
		in := e.(*parsetree.Binary)
		assert.Equal(t, "IN", in.Op)
		arr, ok := in.Right.(*parsetree.ArrayExpr)
		require.True(t, ok)
		assert.Len(t, arr.Items, 2)
	})

	t.Run("is not null", func(t *testing.T) {
		e, err := ParseExpression("deleted_at IS NOT NULL", limits)
		require.NoError(t, err)
		is := e.(*parsetree.Binary)
		assert.Equal(t, "IS NOT", is.Op)
		assert.IsType(t, &parsetree.NullLit{}, is.Right)
	})

	t.Run("named parameter", func(t *testing.T) {
		e, err := ParseExpression("age > :minAge", limits)
		require.NoError(t, err)
		cmp := e.(*parsetree.Binary)
		p, ok := cmp.Right.(*parsetree.Param)
		require.True(t, ok)
		assert.Equal(t, "minAge", p.Name)
	})

	t.Run("string concatenation", func(t *testing.T) {
		e, err := ParseExpression("first_name || last_name", limits)
		require.NoError(t, err)
		cat := e.(*parsetree.Binary)
		assert.Equal(t, "||", cat.Op)
	})

	t.Run("distinct aggregate", func(t *testing.T) {
		e, err := ParseExpression("COUNT(DISTINCT city)", limits)
		require.NoError(t, err)
		fn := e.(*parsetree.FuncExpr)
		assert.True(t, fn.Distinct)
		require.Len(t, fn.Args, 1)
	})

	t.Run("trailing input rejected", func(t *testing.T) {
		_, err := ParseExpression("a = 1 b", limits)
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Msg, "after expression")
	})
}

func TestParseSubqueries(t *testing.T) {
	t.Run("in subquery", func(t *testing.T) {
		tree, err := Parse("SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)", types.Limits{})
		require.NoError(t, err)
		where := tree.Find("where")
		in := where.Args[0].Value.(*parsetree.Binary)
		sub, ok := in.Right.(*parsetree.SubqueryExpr)
		require.True(t, ok)
		assert.Equal(t, []string{"select", "from"}, methods(sub.Tree))
	})

	t.Run("exists", func(t *testing.T) {
		tree, err := Parse("SELECT * FROM users u WHERE EXISTS (SELECT * FROM orders o WHERE o.user_id = u.id)", types.Limits{})
		require.NoError(t, err)
		where := tree.Find("where")
		un, ok := where.Args[0].Value.(*parsetree.Unary)
		require.True(t, ok)
		assert.Equal(t, "EXISTS", un.Op)
		assert.IsType(t, &parsetree.SubqueryExpr{}, un.Operand)
	})
}

func TestParseWindowFunction(t *testing.T) {
	tree, err := Parse("SELECT ROW_NUMBER() OVER (PARTITION BY dept ORDER BY salary DESC) AS pos FROM employees", types.Limits{})
	require.NoError(t, err)

	sel := tree.Find("select")
	require.NotNil(t, sel)
	win, ok := sel.Args[0].Value.(*parsetree.WindowExpr)
	require.True(t, ok)
	assert.Equal(t, "pos", sel.Args[0].Name)
	assert.Equal(t, "ROW_NUMBER", win.Func.Name)
	require.Len(t, win.PartitionBy, 1)
	require.Len(t, win.OrderBy, 1)
	assert.True(t, win.OrderBy[0].Desc)
}

func TestParseEntityMode(t *testing.T) {
	t.Run("bare from selects everything", func(t *testing.T) {
		tree, err := ParseEntityQuery("FROM Customer c WHERE c.age > :minAge", types.Limits{})
		require.NoError(t, err)
		assert.Equal(t, []string{"select", "from", "where"}, methods(tree))
		sel := tree.Find("select")
		assert.IsType(t, &parsetree.StarExpr{}, sel.Args[0].Value)
		assert.Equal(t, "Customer", tree.Find("from").Args[0].Table.Name)
	})

	t.Run("plain mode still requires SELECT", func(t *testing.T) {
		_, err := Parse("FROM Customer c", types.Limits{})
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Msg, "expected SELECT")
	})
}

func TestParseUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		construct string
	}{
		{"union", "SELECT id FROM a UNION SELECT id FROM b", "set operation (UNION)"},
		{"recursive cte", "WITH RECURSIVE r AS (SELECT 1) SELECT * FROM r", "recursive CTE"},
		{"case expression", "SELECT CASE WHEN a = 1 THEN 'x' ELSE 'y' END FROM t", "CASE expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql, types.Limits{})
			var uerr *types.UnsupportedConstructError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.construct, uerr.Construct)
			assert.True(t, uerr.Essential)
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		msg  string
	}{
		{"empty input", "   ", "empty input"},
		{"missing expression", "SELECT FROM users WHERE", "expected expression"},
		{"deep qualification", "SELECT a.b.c FROM t", "qualified name is too deep"},
		{"qualified function", "SELECT u.lower(name) FROM t", "qualified function names are not supported"},
		{"illegal character", "SELECT @ FROM t", "unexpected character"},
		{"trailing tokens", "SELECT * FROM t LIMIT 5 WHERE", "unexpected input after end of statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql, types.Limits{})
			var serr *types.SyntaxError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, serr.Msg, tt.msg)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("SELECT *\nFROM users\nWHERE ???", types.Limits{})
	var serr *types.SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.EqualValues(t, 3, serr.Position.Line)
	assert.EqualValues(t, 7, serr.Position.Column)
}

func TestParseResourceLimits(t *testing.T) {
	t.Run("token cap", func(t *testing.T) {
		_, err := Parse("SELECT a, b, c, d, e FROM t", types.Limits{MaxTokens: 4})
		var rerr *types.ResourceLimitError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "tokens", rerr.Kind)
		assert.Equal(t, 4, rerr.Limit)
	})

	t.Run("depth cap", func(t *testing.T) {
		_, err := Parse("SELECT * FROM t WHERE a = ((((((1))))))", types.Limits{MaxDepth: 3})
		var rerr *types.ResourceLimitError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "nesting depth", rerr.Kind)
	})

	t.Run("clause cap", func(t *testing.T) {
		_, err := Parse("SELECT a FROM t WHERE a = 1 ORDER BY a LIMIT 1", types.Limits{MaxCalls: 2})
		var rerr *types.ResourceLimitError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "clauses", rerr.Kind)
	})
}

func TestParseMixedCaseKeywords(t *testing.T) {
	tree, err := Parse("select Name from Users where Age >= 21 order by Name desc", types.Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"select", "from", "where", "order_by"}, methods(tree))
	order := tree.Find("order_by")
	assert.True(t, order.Args[0].Desc)
}

func TestParseQuotedIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"double quotes", `SELECT "first name" FROM "user"`},
		{"backticks", "SELECT `first name` FROM `user`"},
		{"brackets", "SELECT [first name] FROM [user]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.sql, types.Limits{})
			require.NoError(t, err)
			sel := tree.Find("select")
			ident, ok := sel.Args[0].Value.(*parsetree.Ident)
			require.True(t, ok)
			assert.Equal(t, "first name", ident.Name)
			assert.Equal(t, "user", tree.Find("from").Args[0].Table.Name)
		})
	}
}

func TestParseComments(t *testing.T) {
	tree, err := Parse("SELECT id -- trailing note\nFROM users /* block */ WHERE id = 1", types.Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"select", "from", "where"}, methods(tree))
}
