package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestSequelizeNormalize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "operator object with order and limit",
			source: "User.findAll({ where: { age: { [Op.gt]: 21 } }, order: [['name', 'DESC']], limit: 5 })",
			want:   "SELECT * FROM users WHERE age > 21 ORDER BY name DESC LIMIT 5",
		},
		{
			name:   "include with where",
			source: "User.findAll({ include: [{ model: Order, as: 'orders', where: { status: 'paid' }, required: true }] })",
			want:   "SELECT * FROM users INNER JOIN orders ON orders.user_id = users.id WHERE orders.status = 'paid'",
		},
		{
			name:   "to-one include",
			source: "Order.findAll({ include: [{ model: Customer }] })",
			want:   "SELECT * FROM orders LEFT JOIN customers ON orders.customer_id = customers.id",
		},
		{
			name:   "bare model include",
			source: "User.findAll({ include: [Profile] })",
			want:   "SELECT * FROM users LEFT JOIN profiles ON users.profile_id = profiles.id",
		},
		{
			name:   "aggregation helpers",
			source: "Order.findAll({ attributes: ['customer_id', [sequelize.fn('SUM', sequelize.col('total')), 'spend']], group: ['customer_id'], having: sequelize.where(sequelize.fn('SUM', sequelize.col('total')), '>', 1000) })",
			want:   "SELECT customer_id, SUM(total) AS spend FROM orders GROUP BY customer_id HAVING SUM(total) > 1000",
		},
		{
			name:   "or combinator",
			source: "User.findAll({ where: { [Op.or]: [{ city: 'NY' }, { city: 'LA' }] } })",
			want:   "SELECT * FROM users WHERE city = 'NY' OR city = 'LA'",
		},
		{
			name:   "null between and not in",
			source: "User.findAll({ where: { deleted_at: null, age: { [Op.between]: [18, 65] }, status: { [Op.notIn]: ['banned', 'ghost'] } } })",
			want:   "SELECT * FROM users WHERE deleted_at IS NULL AND age >= 18 AND age <= 65 AND status NOT IN ('banned', 'ghost')",
		},
		{
			name:   "starts with",
			source: "User.findAll({ where: { name: { [Op.startsWith]: 'A' } } })",
			want:   "SELECT * FROM users WHERE name LIKE 'A%'",
		},
		{
			name:   "find one",
			source: "User.findOne({ where: { email: 'ada@example.com' } })",
			want:   "SELECT * FROM users WHERE email = 'ada@example.com' LIMIT 1",
		},
		{
			name:   "find by pk",
			source: "User.findByPk(42)",
			want:   "SELECT * FROM users WHERE id = 42 LIMIT 1",
		},
		{
			name:   "count",
			source: "User.count({ where: { active: true } })",
			want:   "SELECT COUNT(*) FROM users WHERE active = TRUE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := normalize(t, types.FrameworkSequelize, tt.source)
			assert.Equal(t, tt.want, toSQL(t, q))
		})
	}
}

func TestSequelizeEmit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "bare scan",
			sql:  "SELECT * FROM users",
			want: "User.findAll()",
		},
		{
			name: "equality shorthand",
			sql:  "SELECT * FROM users WHERE city = 'NY'",
			want: "User.findAll({ where: { city: 'NY' } })",
		},
		{
			name: "comparison with order and limit",
			sql:  "SELECT * FROM users WHERE age > 21 ORDER BY name DESC LIMIT 5",
			want: "User.findAll({ where: { age: { [Op.gt]: 21 } }, order: [['name', 'DESC']], limit: 5 })",
		},
		{
			name: "inner join with joined filter",
			sql:  "SELECT * FROM users INNER JOIN orders ON orders.user_id = users.id WHERE orders.status = 'paid'",
			want: "User.findAll({ include: [{ model: Order, required: true }], where: { '$orders.status$': 'paid' } })",
		},
		{
			name: "collection include stays bare",
			sql:  "SELECT * FROM users LEFT JOIN orders ON orders.user_id = users.id",
			want: "User.findAll({ include: [{ model: Order, attributes: [] }] })",
		},
		{
			name: "to-one include",
			sql:  "SELECT * FROM orders LEFT JOIN customers ON orders.customer_id = customers.id",
			want: "Order.findAll({ include: [{ model: Customer }] })",
		},
		{
			name: "aggregates through helpers",
			sql:  "SELECT customer_id, SUM(total) AS spend FROM orders GROUP BY customer_id HAVING SUM(total) > 1000",
			want: "Order.findAll({ attributes: ['customer_id', [sequelize.fn('SUM', sequelize.col('total')), 'spend']], group: ['customer_id'], having: sequelize.where(sequelize.fn('SUM', sequelize.col('total')), '>', 1000) })",
		},
		{
			name: "or combinator",
			sql:  "SELECT * FROM users WHERE city = 'NY' OR city = 'LA'",
			want: "User.findAll({ where: { [Op.or]: [{ city: 'NY' }, { city: 'LA' }] } })",
		},
		{
			name: "null check",
			sql:  "SELECT * FROM users WHERE deleted_at IS NULL",
			want: "User.findAll({ where: { deleted_at: { [Op.is]: null } } })",
		},
		{
			name: "negation",
			sql:  "SELECT * FROM users WHERE NOT (active = TRUE)",
			want: "User.findAll({ where: { [Op.not]: { active: true } } })",
		},
		{
			name: "computed comparison",
			sql:  "SELECT * FROM users WHERE LOWER(email) = 'ada@example.com'",
			want: "User.findAll({ where: { [Op.and]: [sequelize.where(sequelize.fn('LOWER', sequelize.col('email')), '=', 'ada@example.com')] } })",
		},
		{
			name: "distinct attributes",
			sql:  "SELECT DISTINCT city FROM users",
			want: "User.findAll({ attributes: ['city'], distinct: true })",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emit(t, types.FrameworkSequelize, fromSQL(t, tt.sql)))
		})
	}
}

func TestSequelizeNormalizeErrors(t *testing.T) {
	t.Run("nested include", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkSequelize, "User.findAll({ include: [{ model: Order, include: [{ model: Item }] }] })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "nested include", uerr.Construct)
		assert.Equal(t, "flatten the includes to one level", uerr.Hint)
	})

	t.Run("non-object options", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkSequelize, "User.findAll(42)")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "findAll takes an options object", serr.Msg)
	})

	t.Run("unknown operator", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkSequelize, "User.findAll({ where: { name: { [Op.regexp]: 'x' } } })")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "operator Op.regexp", uerr.Construct)
	})

	t.Run("bad order direction", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkSequelize, "User.findAll({ order: [['name', 'UP']] })")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "order direction must be ASC or DESC", serr.Msg)
	})
}

func TestSequelizeEmitErrors(t *testing.T) {
	q := fromSQL(t, "SELECT * FROM users INNER JOIN audit_logs a ON a.actor_id = users.id")
	err := emitErr(t, types.FrameworkSequelize, q)
	var uerr *types.UnsupportedConstructError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "join outside the model associations", uerr.Construct)
	assert.Equal(t, "declare the association and join through include", uerr.Hint)
}

func TestSequelizeDropped(t *testing.T) {
	t.Run("execution options", func(t *testing.T) {
		_, env := normalize(t, types.FrameworkSequelize, "User.findAll({ raw: true, logging: false })")
		diags := env.Diagnostics()
		require.Len(t, diags, 2)
		assert.Equal(t, "option raw has no translation and was dropped", diags[0].Content)
		assert.Equal(t, "option logging has no translation and was dropped", diags[1].Content)
	})

	t.Run("include attributes", func(t *testing.T) {
		_, env := normalize(t, types.FrameworkSequelize, "User.findAll({ include: [{ model: Order, as: 'orders', attributes: ['id'] }] })")
		diags := env.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, "include attributes has no translation and was dropped", diags[0].Content)
	})
}
