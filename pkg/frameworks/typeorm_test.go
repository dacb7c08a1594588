package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestTypeORMNormalize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "where with inline parameters",
			source: `dataSource.getRepository(User).createQueryBuilder("u").where("u.age > :age", { age: 21 }).getMany()`,
			want:   "SELECT * FROM users u WHERE u.age > 21",
		},
		{
			name:   "parameter set after where stays symbolic",
			source: `dataSource.getRepository(User).createQueryBuilder("u").where("u.age > :minAge").setParameter("minAge", 18).getMany()`,
			want:   "SELECT * FROM users u WHERE u.age > :minAge",
		},
		{
			name:   "relation join and select",
			source: `dataSource.getRepository(User).createQueryBuilder("u").leftJoinAndSelect("u.orders", "o").getMany()`,
			want:   "SELECT u.*, o.* FROM users u LEFT JOIN orders o ON o.user_id = u.id",
		},
		{
			name:   "entity join with condition",
			source: `dataSource.getRepository(User).createQueryBuilder("u").innerJoin(Order, "o", "o.user_id = u.id AND o.status = :status", { status: 'paid' }).getMany()`,
			want:   "SELECT * FROM users u INNER JOIN orders o ON o.user_id = u.id AND o.status = 'paid'",
		},
		{
			name:   "grouped selection",
			source: `dataSource.getRepository(Order).createQueryBuilder("o").select("o.customer_id").addSelect("SUM(o.total)", "spend").groupBy("o.customer_id").having("SUM(o.total) > :min", { min: 1000 }).orderBy("spend", "DESC").getRawMany()`,
			want:   "SELECT o.customer_id, SUM(o.total) AS spend FROM orders o GROUP BY o.customer_id HAVING SUM(o.total) > 1000 ORDER BY spend DESC",
		},
		{
			name:   "or where with paging",
			source: `dataSource.getRepository(User).createQueryBuilder("u").where("u.city = :c1", { c1: 'NY' }).orWhere("u.city = :c2", { c2: 'LA' }).skip(10).take(5).getMany()`,
			want:   "SELECT * FROM users u WHERE u.city = 'NY' OR u.city = 'LA' LIMIT 5 OFFSET 10",
		},
		{
			name:   "count",
			source: `dataSource.getRepository(User).createQueryBuilder("u").where("u.active = TRUE").getCount()`,
			want:   "SELECT COUNT(*) FROM users u WHERE u.active = TRUE",
		},
		{
			name:   "query builder with entity argument",
			source: `dataSource.createQueryBuilder(User, "u").where("u.id = 1").getOne()`,
			want:   "SELECT * FROM users u WHERE u.id = 1 LIMIT 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := normalize(t, types.FrameworkTypeORM, tt.source)
			assert.Equal(t, tt.want, toSQL(t, q))
		})
	}
}

func TestTypeORMEmit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "filter and order",
			sql:  "SELECT * FROM users u WHERE u.age > 18 ORDER BY u.name",
			want: `dataSource.getRepository(User).createQueryBuilder("user").where("user.age > 18").orderBy("user.name", "ASC").getMany()`,
		},
		{
			name: "conventional join folds to a relation path",
			sql:  "SELECT * FROM users u INNER JOIN orders o ON o.user_id = u.id WHERE o.status = 'paid'",
			want: `dataSource.getRepository(User).createQueryBuilder("user").innerJoin("user.orders", "order").where("order.status = 'paid'").getMany()`,
		},
		{
			name: "entity stars ride the join",
			sql:  "SELECT u.*, o.* FROM users u LEFT JOIN orders o ON o.user_id = u.id",
			want: `dataSource.getRepository(User).createQueryBuilder("user").leftJoinAndSelect("user.orders", "order").getMany()`,
		},
		{
			name: "unconventional join keeps its condition",
			sql:  "SELECT * FROM users u INNER JOIN audit_logs a ON a.actor_id = u.id",
			want: `dataSource.getRepository(User).createQueryBuilder("user").innerJoin("audit_logs", "auditLog", "auditLog.actorId = user.id").getMany()`,
		},
		{
			name: "grouping goes raw",
			sql:  "SELECT o.customer_id, SUM(o.total) AS spend FROM orders o GROUP BY o.customer_id HAVING SUM(o.total) > 1000 ORDER BY spend DESC",
			want: `dataSource.getRepository(Order).createQueryBuilder("order").select("order.customerId").addSelect("SUM(order.total)", "spend").groupBy("order.customerId").having("SUM(order.total) > 1000").orderBy("spend", "DESC").getRawMany()`,
		},
		{
			name: "bare count",
			sql:  "SELECT COUNT(*) FROM users WHERE active = TRUE",
			want: `dataSource.getRepository(User).createQueryBuilder("user").where("active = TRUE").getCount()`,
		},
		{
			name: "distinct with paging",
			sql:  "SELECT DISTINCT city FROM users LIMIT 10 OFFSET 20",
			want: `dataSource.getRepository(User).createQueryBuilder("user").select("city").distinct(true).skip(20).take(10).getMany()`,
		},
		{
			name: "self join picks a fresh alias",
			sql:  "SELECT * FROM employees e INNER JOIN employees m ON e.manager_id = m.id",
			want: `dataSource.getRepository(Employee).createQueryBuilder("employee").innerJoin("employee.manager", "e").getMany()`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emit(t, types.FrameworkTypeORM, fromSQL(t, tt.sql)))
		})
	}
}

func TestTypeORMNormalizeErrors(t *testing.T) {
	t.Run("condition on a relation join", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkTypeORM, `dataSource.getRepository(User).createQueryBuilder("u").leftJoin("u.orders", "o", "o.status = 'paid'").getMany()`)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "extra condition on a relation join", uerr.Construct)
		assert.Equal(t, "move the condition into where", uerr.Hint)
	})

	t.Run("builder without an entity", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkTypeORM, "dataSource.createQueryBuilder().getMany()")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "createQueryBuilder needs an entity or alias", serr.Msg)
	})

	t.Run("bad order direction", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkTypeORM, `dataSource.getRepository(User).createQueryBuilder("u").orderBy("u.name", "SIDEWAYS").getMany()`)
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "order direction must be ASC or DESC", serr.Msg)
	})

	t.Run("non-string condition", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkTypeORM, `dataSource.getRepository(User).createQueryBuilder("u").where(42).getMany()`)
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "where takes a condition string", serr.Msg)
	})
}

func TestTypeORMEmitErrors(t *testing.T) {
	t.Run("cross join", func(t *testing.T) {
		q := fromSQL(t, "SELECT * FROM users CROSS JOIN roles")
		err := emitErr(t, types.FrameworkTypeORM, q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "cross join", uerr.Construct)
	})

	t.Run("right join", func(t *testing.T) {
		q := fromSQL(t, "SELECT * FROM users RIGHT JOIN orders ON orders.user_id = users.id")
		err := emitErr(t, types.FrameworkTypeORM, q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "RIGHT join", uerr.Construct)
	})
}

func TestTypeORMDistinctOnDropped(t *testing.T) {
	q, env := normalize(t, types.FrameworkTypeORM, `dataSource.getRepository(User).createQueryBuilder("u").distinctOn(["u.city"]).getMany()`)
	assert.True(t, q.Distinct)
	diags := env.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "DISTINCT ON expressions has no translation and was dropped", diags[0].Content)
}
