package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestPrismaNormalize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "bare find many",
			source: "prisma.user.findMany()",
			want:   "SELECT * FROM users",
		},
		{
			name:   "where scalars and operators",
			source: "prisma.user.findMany({ where: { city: 'NY', age: { gt: 21 } } })",
			want:   "SELECT * FROM users WHERE city = 'NY' AND age > 21",
		},
		{
			name:   "in list and null",
			source: "prisma.user.findMany({ where: { status: { in: ['new', 'active'] }, deletedAt: null } })",
			want:   "SELECT * FROM users WHERE status IN ('new', 'active') AND deleted_at IS NULL",
		},
		{
			name:   "contains drops insensitive mode",
			source: "prisma.user.findMany({ where: { name: { contains: 'ada', mode: 'insensitive' } } })",
			want:   "SELECT * FROM users WHERE name LIKE '%ada%'",
		},
		{
			name:   "ends with",
			source: "prisma.user.findMany({ where: { email: { endsWith: '@test.com' } } })",
			want:   "SELECT * FROM users WHERE email LIKE '%@test.com'",
		},
		{
			name:   "not value",
			source: "prisma.user.findMany({ where: { status: { not: 'archived' } } })",
			want:   "SELECT * FROM users WHERE status <> 'archived'",
		},
		{
			name:   "or combinator",
			source: "prisma.user.findMany({ where: { OR: [{ city: 'NY' }, { city: 'LA' }] } })",
			want:   "SELECT * FROM users WHERE city = 'NY' OR city = 'LA'",
		},
		{
			name:   "not combinator",
			source: "prisma.user.findMany({ where: { NOT: { active: true } } })",
			want:   "SELECT * FROM users WHERE NOT (active = TRUE)",
		},
		{
			name:   "some traversal joins the relation",
			source: "prisma.user.findMany({ where: { orders: { some: { status: 'paid' } } } })",
			want:   "SELECT * FROM users INNER JOIN orders ON orders.user_id = users.id WHERE orders.status = 'paid'",
		},
		{
			name:   "to-one traversal",
			source: "prisma.order.findMany({ where: { customer: { vip: true } } })",
			want:   "SELECT * FROM orders INNER JOIN customers ON orders.customer_id = customers.id WHERE customers.vip = TRUE",
		},
		{
			name:   "include",
			source: "prisma.user.findMany({ include: { orders: true } })",
			want:   "SELECT * FROM users LEFT JOIN orders ON orders.user_id = users.id",
		},
		{
			name:   "select with nested relation select",
			source: "prisma.user.findMany({ select: { name: true, orders: { select: { total: true } } } })",
			want:   "SELECT name, orders.total FROM users LEFT JOIN orders ON orders.user_id = users.id",
		},
		{
			name:   "order take skip",
			source: "prisma.user.findMany({ orderBy: [{ city: 'asc' }, { age: 'desc' }], take: 10, skip: 5 })",
			want:   "SELECT * FROM users ORDER BY city, age DESC LIMIT 10 OFFSET 5",
		},
		{
			name:   "find first",
			source: "prisma.user.findFirst({ where: { active: true } })",
			want:   "SELECT * FROM users WHERE active = TRUE LIMIT 1",
		},
		{
			name:   "find unique",
			source: "prisma.user.findUnique({ where: { id: 1 } })",
			want:   "SELECT * FROM users WHERE id = 1 LIMIT 1",
		},
		{
			name:   "count verb",
			source: "prisma.user.count({ where: { active: true } })",
			want:   "SELECT COUNT(*) FROM users WHERE active = TRUE",
		},
		{
			name:   "aggregate shapes",
			source: "prisma.order.aggregate({ _sum: { total: true }, _avg: { total: true }, where: { status: 'paid' } })",
			want:   "SELECT SUM(total), AVG(total) FROM orders WHERE status = 'paid'",
		},
		{
			name:   "aggregate count true",
			source: "prisma.user.aggregate({ _count: true })",
			want:   "SELECT COUNT(*) FROM users",
		},
		{
			name:   "group by with having and ordering",
			source: "prisma.user.groupBy({ by: ['city'], _count: { id: true }, having: { _count: { id: { gt: 5 } } }, orderBy: { _count: { id: 'desc' } } })",
			want:   "SELECT city, COUNT(id) FROM users GROUP BY city HAVING COUNT(id) > 5 ORDER BY COUNT(id) DESC",
		},
		{
			name:   "group by count all",
			source: "prisma.order.groupBy({ by: ['status'], _count: { _all: true } })",
			want:   "SELECT status, COUNT(*) FROM orders GROUP BY status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := normalize(t, types.FrameworkPrisma, tt.source)
			assert.Equal(t, tt.want, toSQL(t, q))
		})
	}
}

func TestPrismaEmit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "bare select",
			sql:  "SELECT * FROM users",
			want: "prisma.user.findMany()",
		},
		{
			name: "equality",
			sql:  "SELECT * FROM users WHERE users.city = 'NY'",
			want: "prisma.user.findMany({ where: { city: 'NY' } })",
		},
		{
			name: "comparison order and take",
			sql:  "SELECT * FROM users u WHERE u.age > 21 ORDER BY u.name DESC LIMIT 5",
			want: "prisma.user.findMany({ where: { age: { gt: 21 } }, orderBy: { name: 'desc' }, take: 5 })",
		},
		{
			name: "and folds into a list",
			sql:  "SELECT * FROM users WHERE users.city = 'NY' AND users.age >= 18",
			want: "prisma.user.findMany({ where: { AND: [{ city: 'NY' }, { age: { gte: 18 } }] } })",
		},
		{
			name: "or folds into a list",
			sql:  "SELECT * FROM users WHERE users.city = 'NY' OR users.city = 'LA'",
			want: "prisma.user.findMany({ where: { OR: [{ city: 'NY' }, { city: 'LA' }] } })",
		},
		{
			name: "bare join becomes include",
			sql:  "SELECT * FROM users LEFT JOIN orders ON orders.user_id = users.id",
			want: "prisma.user.findMany({ include: { orders: true } })",
		},
		{
			name: "joined columns nest under select",
			sql:  "SELECT users.name, orders.total FROM users INNER JOIN orders ON orders.user_id = users.id",
			want: "prisma.user.findMany({ select: { name: true, orders: { select: { total: true } } } })",
		},
		{
			name: "to-many filter nests under some",
			sql:  "SELECT * FROM users INNER JOIN orders ON orders.user_id = users.id WHERE orders.status = 'paid'",
			want: "prisma.user.findMany({ include: { orders: true }, where: { orders: { some: { status: 'paid' } } } })",
		},
		{
			name: "to-one filter nests directly",
			sql:  "SELECT * FROM orders INNER JOIN customers ON orders.customer_id = customers.id WHERE customers.vip = TRUE",
			want: "prisma.order.findMany({ include: { customer: true }, where: { customer: { vip: true } } })",
		},
		{
			name: "in list and null",
			sql:  "SELECT * FROM users WHERE users.status IN ('new', 'active') AND users.deleted_at IS NULL",
			want: "prisma.user.findMany({ where: { AND: [{ status: { in: ['new', 'active'] } }, { deletedAt: null }] } })",
		},
		{
			name: "like becomes contains",
			sql:  "SELECT * FROM users WHERE users.name LIKE '%ada%'",
			want: "prisma.user.findMany({ where: { name: { contains: 'ada' } } })",
		},
		{
			name: "not like becomes negated ends with",
			sql:  "SELECT * FROM users WHERE users.email NOT LIKE '%@test.com'",
			want: "prisma.user.findMany({ where: { email: { not: { endsWith: '@test.com' } } } })",
		},
		{
			name: "inequality",
			sql:  "SELECT * FROM users WHERE users.status <> 'archived'",
			want: "prisma.user.findMany({ where: { status: { not: 'archived' } } })",
		},
		{
			name: "negation",
			sql:  "SELECT * FROM users WHERE NOT (users.active = TRUE)",
			want: "prisma.user.findMany({ where: { NOT: { active: true } } })",
		},
		{
			name: "count star",
			sql:  "SELECT COUNT(*) FROM users WHERE users.active = TRUE",
			want: "prisma.user.count({ where: { active: true } })",
		},
		{
			name: "aggregate",
			sql:  "SELECT SUM(orders.total), AVG(orders.total) FROM orders",
			want: "prisma.order.aggregate({ _sum: { total: true }, _avg: { total: true } })",
		},
		{
			name: "aggregate count field and max",
			sql:  "SELECT COUNT(users.id), MAX(users.age) FROM users",
			want: "prisma.user.aggregate({ _count: { id: true }, _max: { age: true } })",
		},
		{
			name: "group by",
			sql:  "SELECT users.city, COUNT(users.id) FROM users GROUP BY users.city HAVING COUNT(users.id) > 5 ORDER BY COUNT(users.id) DESC",
			want: "prisma.user.groupBy({ by: ['city'], _count: { id: true }, having: { _count: { id: { gt: 5 } } }, orderBy: { _count: { id: 'desc' } } })",
		},
		{
			name: "group by count star",
			sql:  "SELECT users.city, COUNT(*) FROM users GROUP BY users.city",
			want: "prisma.user.groupBy({ by: ['city'], _count: { _all: true } })",
		},
		{
			name: "distinct fields",
			sql:  "SELECT DISTINCT users.city FROM users",
			want: "prisma.user.findMany({ select: { city: true }, distinct: ['city'] })",
		},
		{
			name: "paging",
			sql:  "SELECT * FROM users LIMIT 10 OFFSET 5",
			want: "prisma.user.findMany({ skip: 5, take: 10 })",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emit(t, types.FrameworkPrisma, fromSQL(t, tt.sql)))
		})
	}
}

func TestPrismaNormalizeErrors(t *testing.T) {
	t.Run("missing model delegate", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.findMany()")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "Prisma chains start from a model delegate, like prisma.user", serr.Msg)
	})

	t.Run("options must be an object", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany(42)")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "findMany takes an options object", serr.Msg)
	})

	t.Run("negative take", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ take: -1 })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "negative take", uerr.Construct)
		assert.Equal(t, "reverse the ordering and take from the front", uerr.Hint)
	})

	t.Run("every quantifier", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ where: { orders: { every: { status: 'paid' } } } })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "every relation quantifier", uerr.Construct)
		assert.Equal(t, "only some has a join rendering", uerr.Hint)
	})

	t.Run("nested traversal", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ where: { orders: { some: { items: { some: { price: { gt: 10 } } } } } } })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "relation traversal below the first level", uerr.Construct)
		assert.Equal(t, "filter the nested relation in a separate query", uerr.Hint)
	})

	t.Run("unknown filter operator", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ where: { age: { not: { near: 5 } } } })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "filter operator near", uerr.Construct)
	})

	t.Run("contains needs a string", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ where: { name: { contains: 42 } } })")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "contains takes a string", serr.Msg)
	})

	t.Run("empty where object", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ where: {} })")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "empty where object", serr.Msg)
	})

	t.Run("group by needs a by list", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.groupBy({ _count: { id: true } })")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "groupBy needs a by list", serr.Msg)
	})

	t.Run("order direction", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ orderBy: { name: 'down' } })")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "order direction must be 'asc' or 'desc'", serr.Msg)
	})

	t.Run("nested relation paging", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ include: { orders: { take: 5 } } })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "nested relation take", uerr.Construct)
		assert.Equal(t, "fetch the nested relation in a separate query", uerr.Hint)
	})

	t.Run("selection below the first level", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkPrisma, "prisma.user.findMany({ select: { orders: { select: { items: { select: { price: true } } } } } })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "relation selection below the first level", uerr.Construct)
	})
}

func TestPrismaEmitErrors(t *testing.T) {
	t.Run("join outside the model relations", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT * FROM users u INNER JOIN audit_logs a ON a.actor_id = u.id"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "join outside the model relations", uerr.Construct)
		assert.Equal(t, "use a raw query for arbitrary joins", uerr.Hint)
	})

	t.Run("computed projection", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT UPPER(users.name) FROM users"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "computed projection UPPER(users.name)", uerr.Construct)
	})

	t.Run("window function", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT users.name, ROW_NUMBER() OVER (PARTITION BY users.city) AS rn FROM users"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "window function", uerr.Construct)
	})

	t.Run("derived table source", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT * FROM (SELECT * FROM users) u"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "derived table source", uerr.Construct)
	})

	t.Run("comparison against a column", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT * FROM users WHERE users.age > users.height"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "comparison against users.height", uerr.Construct)
		assert.Equal(t, "only literal comparisons translate", uerr.Hint)
	})

	t.Run("aggregate over joined relations", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT COUNT(*) FROM users INNER JOIN orders ON orders.user_id = users.id"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "aggregate over joined relations", uerr.Construct)
	})

	t.Run("grouped query with joins", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT users.city, COUNT(*) FROM users INNER JOIN orders ON orders.user_id = users.id GROUP BY users.city"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "grouped query with joins", uerr.Construct)
		assert.Equal(t, "use a raw query for grouped joins", uerr.Hint)
	})

	t.Run("distinct without a column list", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT DISTINCT * FROM users"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "DISTINCT without a plain column list", uerr.Construct)
		assert.Equal(t, "list the distinct fields explicitly", uerr.Hint)
	})

	t.Run("ordering by a plain function", func(t *testing.T) {
		err := emitErr(t, types.FrameworkPrisma, fromSQL(t, "SELECT * FROM users ORDER BY LOWER(users.name)"))
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "ordering by LOWER", uerr.Construct)
	})
}

func TestPrismaDropped(t *testing.T) {
	t.Run("distinct field list and cursor", func(t *testing.T) {
		q, env := normalize(t, types.FrameworkPrisma, "prisma.user.findMany({ distinct: ['city'], cursor: { id: 100 } })")
		assert.True(t, q.Distinct)
		assert.Equal(t, "SELECT DISTINCT * FROM users", toSQL(t, q))
		diags := env.Diagnostics()
		require.Len(t, diags, 2)
		assert.Equal(t, types.TranslateConstructDropped, diags[0].Code)
		assert.Equal(t, "distinct field list has no translation and was dropped", diags[0].Content)
		assert.Equal(t, "cursor pagination has no translation and was dropped", diags[1].Content)
	})

	t.Run("insensitive match mode", func(t *testing.T) {
		q, env := normalize(t, types.FrameworkPrisma, "prisma.user.findMany({ where: { name: { contains: 'ada', mode: 'insensitive' } } })")
		assert.Equal(t, "SELECT * FROM users WHERE name LIKE '%ada%'", toSQL(t, q))
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, "case-insensitive match mode has no translation and was dropped", diags[0].Content)
	})

	t.Run("relation count selection", func(t *testing.T) {
		q, env := normalize(t, types.FrameworkPrisma, "prisma.user.findMany({ select: { id: true, _count: true } })")
		assert.Equal(t, "SELECT id FROM users", toSQL(t, q))
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, "relation count selection has no translation and was dropped", diags[0].Content)
	})

	t.Run("relation option", func(t *testing.T) {
		q, env := normalize(t, types.FrameworkPrisma, "prisma.user.findMany({ include: { orders: { where: { status: 'paid' }, foo: true } } })")
		assert.Equal(t, "SELECT * FROM users LEFT JOIN orders ON orders.user_id = users.id WHERE orders.status = 'paid'", toSQL(t, q))
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, "relation option foo has no translation and was dropped", diags[0].Content)
	})

	t.Run("unknown option", func(t *testing.T) {
		_, env := normalize(t, types.FrameworkPrisma, "prisma.user.findMany({ magic: 1 })")
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, `option "magic" has no translation and was dropped`, diags[0].Content)
	})
}
