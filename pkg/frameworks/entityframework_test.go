package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestEntityFrameworkNormalize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "where with comparison",
			source: `context.Users.Where(u => u.Age > 21).ToList()`,
			want:   "SELECT * FROM users WHERE age > 21",
		},
		{
			name:   "combined predicates",
			source: `context.Users.Where(u => u.Age > 21 && u.Active == true).ToList()`,
			want:   "SELECT * FROM users WHERE age > 21 AND active = TRUE",
		},
		{
			name:   "null comparison becomes IS NULL",
			source: `context.Users.Where(u => u.DeletedAt == null).ToList()`,
			want:   "SELECT * FROM users WHERE deleted_at IS NULL",
		},
		{
			name:   "contains becomes LIKE",
			source: `context.Users.Where(u => u.Name.Contains("smith")).ToList()`,
			want:   "SELECT * FROM users WHERE name LIKE '%smith%'",
		},
		{
			name:   "negated prefix match",
			source: `context.Users.Where(u => !u.Email.EndsWith("@test.local")).ToList()`,
			want:   "SELECT * FROM users WHERE NOT (email LIKE '%@test.local')",
		},
		{
			name:   "anonymous projection",
			source: `context.Users.Select(u => new { u.Name, u.Age }).ToList()`,
			want:   "SELECT name, age FROM users",
		},
		{
			name:   "renamed projection member",
			source: `context.Users.Select(u => new { FullName = u.Name }).ToList()`,
			want:   `SELECT name AS "FullName" FROM users`,
		},
		{
			name:   "single member projection",
			source: `context.Users.Select(u => u.Email).ToList()`,
			want:   "SELECT email FROM users",
		},
		{
			name:   "include joins the navigation",
			source: `context.Customers.Include("Orders").ToList()`,
			want:   "SELECT * FROM customers LEFT JOIN orders ON orders.customer_id = customers.id",
		},
		{
			name:   "include lambda reaches a parent navigation",
			source: `context.Orders.Include(o => o.Customer).Where(o => o.Customer.Vip == true).ToList()`,
			want:   "SELECT * FROM orders LEFT JOIN customers ON orders.customer_id = customers.id WHERE customers.vip = TRUE",
		},
		{
			name:   "group with count",
			source: `context.Users.GroupBy(u => u.City).Select(g => new { City = g.Key, Total = g.Count() }).ToList()`,
			want:   `SELECT city, COUNT(*) AS "Total" FROM users GROUP BY city`,
		},
		{
			name:   "where after group becomes HAVING",
			source: `context.Users.GroupBy(u => u.City).Where(g => g.Count() > 5).Select(g => new { City = g.Key, Total = g.Count() }).ToList()`,
			want:   `SELECT city, COUNT(*) AS "Total" FROM users GROUP BY city HAVING COUNT(*) > 5`,
		},
		{
			name:   "grouped sum over a lambda",
			source: `context.Orders.GroupBy(o => o.CustomerId).Select(g => new { Customer = g.Key, Spend = g.Sum(x => x.Total) }).ToList()`,
			want:   `SELECT customer_id AS "Customer", SUM(total) AS "Spend" FROM orders GROUP BY customer_id`,
		},
		{
			name:   "composite grouping key",
			source: `context.Users.GroupBy(u => new { u.City, u.Active }).Select(g => new { g.Key.City, Total = g.Count() }).ToList()`,
			want:   `SELECT city, COUNT(*) AS "Total" FROM users GROUP BY city, active`,
		},
		{
			name:   "ordering chain with paging",
			source: `context.Users.OrderBy(u => u.Name).ThenByDescending(u => u.Age).Skip(5).Take(10).ToList()`,
			want:   "SELECT * FROM users ORDER BY name, age DESC LIMIT 10 OFFSET 5",
		},
		{
			name:   "first with predicate caps at one row",
			source: `context.Users.First(u => u.Email == "ada@example.com")`,
			want:   "SELECT * FROM users WHERE email = 'ada@example.com' LIMIT 1",
		},
		{
			name:   "count",
			source: `context.Users.Count()`,
			want:   "SELECT COUNT(*) FROM users",
		},
		{
			name:   "count with predicate",
			source: `context.Users.Count(u => u.Active == true)`,
			want:   "SELECT COUNT(*) FROM users WHERE active = TRUE",
		},
		{
			name:   "distinct projection",
			source: `context.Users.Select(u => u.City).Distinct().ToList()`,
			want:   "SELECT DISTINCT city FROM users",
		},
		{
			name:   "tracking hints fall away",
			source: `context.Users.AsNoTracking().Where(u => u.Active == true).ToListAsync()`,
			want:   "SELECT * FROM users WHERE active = TRUE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := normalize(t, types.FrameworkEntityFramework, tt.source)
			assert.Equal(t, tt.want, toSQL(t, q))
		})
	}
}

func TestEntityFrameworkEmit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "plain filter keeps the entity shape",
			sql:  "SELECT * FROM users WHERE users.age > 21",
			want: `context.Users.Where(u => u.Age > 21).ToList()`,
		},
		{
			name: "boolean operators",
			sql:  "SELECT * FROM users WHERE users.age > 21 AND (users.active = TRUE OR users.role = 'admin')",
			want: `context.Users.Where(u => u.Age > 21 && (u.Active == true || u.Role == "admin")).ToList()`,
		},
		{
			name: "parent join renders as include",
			sql:  "SELECT * FROM orders INNER JOIN customers ON orders.customer_id = customers.id WHERE customers.vip = TRUE",
			want: `context.Orders.Include("Customer").Where(o => o.Customer.Vip == true).ToList()`,
		},
		{
			name: "collection join renders as include",
			sql:  "SELECT * FROM customers LEFT JOIN orders ON orders.customer_id = customers.id",
			want: `context.Customers.Include("Orders").ToList()`,
		},
		{
			name: "projection builds an anonymous object",
			sql:  "SELECT users.name, users.age FROM users",
			want: `context.Users.Select(u => new { Name = u.Name, Age = u.Age }).ToList()`,
		},
		{
			name: "single column projection stays bare",
			sql:  "SELECT users.name FROM users",
			want: `context.Users.Select(u => u.Name).ToList()`,
		},
		{
			name: "like patterns map to string methods",
			sql:  "SELECT * FROM users WHERE users.name LIKE '%smith%'",
			want: `context.Users.Where(u => u.Name.Contains("smith")).ToList()`,
		},
		{
			name: "negated prefix pattern",
			sql:  "SELECT * FROM users WHERE users.name NOT LIKE 'smith%'",
			want: `context.Users.Where(u => !u.Name.StartsWith("smith")).ToList()`,
		},
		{
			name: "in list becomes Contains over an array",
			sql:  "SELECT * FROM users WHERE users.status IN ('new', 'active')",
			want: `context.Users.Where(u => new[] { "new", "active" }.Contains(u.Status)).ToList()`,
		},
		{
			name: "null checks",
			sql:  "SELECT * FROM users WHERE users.deleted_at IS NOT NULL",
			want: `context.Users.Where(u => u.DeletedAt != null).ToList()`,
		},
		{
			name: "string functions",
			sql:  "SELECT * FROM users WHERE LOWER(users.name) = 'ada'",
			want: `context.Users.Where(u => u.Name.ToLower() == "ada").ToList()`,
		},
		{
			name: "length",
			sql:  "SELECT * FROM users WHERE LENGTH(users.name) > 3",
			want: `context.Users.Where(u => u.Name.Length > 3).ToList()`,
		},
		{
			name: "group with count",
			sql:  "SELECT users.city, COUNT(*) FROM users GROUP BY users.city",
			want: `context.Users.GroupBy(u => u.City).Select(g => new { City = g.Key, Count = g.Count() }).ToList()`,
		},
		{
			name: "group with having and ordering",
			sql:  "SELECT users.city, COUNT(*) FROM users GROUP BY users.city HAVING COUNT(*) > 5 ORDER BY COUNT(*) DESC",
			want: `context.Users.GroupBy(u => u.City).Where(g => g.Count() > 5).Select(g => new { City = g.Key, Count = g.Count() }).OrderByDescending(g => g.Count()).ToList()`,
		},
		{
			name: "grouped sum",
			sql:  "SELECT users.city, SUM(users.age) FROM users GROUP BY users.city",
			want: `context.Users.GroupBy(u => u.City).Select(g => new { City = g.Key, SumAge = g.Sum(x => x.Age) }).ToList()`,
		},
		{
			name: "ordering and paging",
			sql:  "SELECT * FROM users ORDER BY users.created_at DESC, users.name LIMIT 10 OFFSET 5",
			want: `context.Users.OrderByDescending(u => u.CreatedAt).ThenBy(u => u.Name).Skip(5).Take(10).ToList()`,
		},
		{
			name: "distinct",
			sql:  "SELECT DISTINCT users.city FROM users",
			want: `context.Users.Select(u => u.City).Distinct().ToList()`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emit(t, types.FrameworkEntityFramework, fromSQL(t, tt.sql)))
		})
	}
}

func TestEntityFrameworkNormalizeErrors(t *testing.T) {
	t.Run("where needs a lambda", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkEntityFramework, `context.Users.Where("age > 21").ToList()`)
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "Where takes a lambda", serr.Msg)
	})

	t.Run("take needs an integer literal", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkEntityFramework, `context.Users.Take(pageSize).ToList()`)
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "Take takes an integer literal", serr.Msg)
	})

	t.Run("include needs a navigation property", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkEntityFramework, `context.Users.Include(42).ToList()`)
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "Include takes a navigation property", serr.Msg)
	})

	t.Run("unknown string method", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkEntityFramework, `context.Users.Where(u => u.Name.Trim() == "x").ToList()`)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, `method "Trim"`, uerr.Construct)
	})

	t.Run("contains needs a literal pattern", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkEntityFramework, `context.Users.Where(u => u.Name.Contains(term)).ToList()`)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "Contains with a non-literal pattern", uerr.Construct)
	})
}

func TestEntityFrameworkEmitErrors(t *testing.T) {
	t.Run("column through a collection", func(t *testing.T) {
		err := emitErr(t, types.FrameworkEntityFramework, fromSQL(t, "SELECT * FROM customers INNER JOIN orders ON orders.customer_id = customers.id WHERE orders.total > 100"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "column through the collection orders", uerr.Construct)
		assert.Equal(t, "aggregate over the collection instead", uerr.Hint)
	})

	t.Run("in over a subquery", func(t *testing.T) {
		err := emitErr(t, types.FrameworkEntityFramework, fromSQL(t, "SELECT * FROM users WHERE users.id IN (SELECT orders.user_id FROM orders)"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "IN over a subquery", uerr.Construct)
	})

	t.Run("window function", func(t *testing.T) {
		err := emitErr(t, types.FrameworkEntityFramework, fromSQL(t, "SELECT users.name, ROW_NUMBER() OVER (PARTITION BY users.city) AS rn FROM users"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "expression ROW_NUMBER() OVER (...)", uerr.Construct)
	})

	t.Run("derived table source", func(t *testing.T) {
		err := emitErr(t, types.FrameworkEntityFramework, fromSQL(t, "SELECT * FROM (SELECT * FROM users) u"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "derived table source", uerr.Construct)
	})

	t.Run("unsupported function", func(t *testing.T) {
		err := emitErr(t, types.FrameworkEntityFramework, fromSQL(t, "SELECT * FROM users WHERE COALESCE(users.nickname, users.name) = 'ada'"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "function COALESCE", uerr.Construct)
	})
}

func TestEntityFrameworkDropped(t *testing.T) {
	t.Run("nested include", func(t *testing.T) {
		q, env := normalize(t, types.FrameworkEntityFramework, `context.Customers.Include(c => c.Orders).ThenInclude(o => o.Items).ToList()`)
		assert.Equal(t, "SELECT * FROM customers LEFT JOIN orders ON orders.customer_id = customers.id", toSQL(t, q))
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, types.TranslateConstructDropped, diags[0].Code)
		assert.Equal(t, "nested include has no translation and was dropped", diags[0].Content)
	})

	t.Run("unknown chain method", func(t *testing.T) {
		_, env := normalize(t, types.FrameworkEntityFramework, `context.Users.AsSplitQuery().ToList()`)
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, `method "AsSplitQuery" has no translation and was dropped`, diags[0].Content)
	})
}
