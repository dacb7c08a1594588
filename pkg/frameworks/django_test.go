package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestDjangoNormalize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "kwarg lookups",
			source: "User.objects.filter(age__gt=18, active=True).order_by('-created_at')",
			want:   "SELECT * FROM users WHERE age > 18 AND active = TRUE ORDER BY created_at DESC",
		},
		{
			name:   "relation path filter",
			source: "User.objects.filter(orders__status='paid')",
			want:   "SELECT * FROM users INNER JOIN orders ON orders.user_id = users.id WHERE orders.status = 'paid'",
		},
		{
			name:   "values with annotate",
			source: "User.objects.values('city').annotate(total=Count('id'))",
			want:   "SELECT city, COUNT(id) AS total FROM users GROUP BY city",
		},
		{
			name:   "aggregate alias filters as having",
			source: "User.objects.values('name').annotate(order_count=Count('orders__id')).filter(order_count__gt=5)",
			want:   "SELECT name, COUNT(orders.id) AS order_count FROM users LEFT JOIN orders ON orders.user_id = users.id GROUP BY name HAVING COUNT(orders.id) > 5",
		},
		{
			name:   "q objects",
			source: "User.objects.filter(Q(city='NY') | Q(city='LA'))",
			want:   "SELECT * FROM users WHERE city = 'NY' OR city = 'LA'",
		},
		{
			name:   "exclude",
			source: "User.objects.exclude(status='banned')",
			want:   "SELECT * FROM users WHERE NOT (status = 'banned')",
		},
		{
			name:   "contains lookup",
			source: "User.objects.filter(name__contains='smith')",
			want:   "SELECT * FROM users WHERE name LIKE '%smith%'",
		},
		{
			name:   "isnull lookup",
			source: "User.objects.filter(deleted_at__isnull=True)",
			want:   "SELECT * FROM users WHERE deleted_at IS NULL",
		},
		{
			name:   "isnull false",
			source: "User.objects.filter(deleted_at__isnull=False)",
			want:   "SELECT * FROM users WHERE deleted_at IS NOT NULL",
		},
		{
			name:   "slice",
			source: "User.objects.all()[:10]",
			want:   "SELECT * FROM users LIMIT 10",
		},
		{
			name:   "get",
			source: "User.objects.get(id=1)",
			want:   "SELECT * FROM users WHERE id = 1 LIMIT 1",
		},
		{
			name:   "select_related",
			source: "User.objects.select_related('profile')",
			want:   "SELECT * FROM users LEFT JOIN profiles ON users.profile_id = profiles.id",
		},
		{
			name:   "values_list flat",
			source: "User.objects.values_list('email', flat=True)",
			want:   "SELECT email FROM users",
		},
		{
			name:   "aggregate without grouping",
			source: "Order.objects.aggregate(total=Sum('amount'))",
			want:   "SELECT SUM(amount) AS total FROM orders",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := normalize(t, types.FrameworkDjango, tt.source)
			assert.Equal(t, tt.want, toSQL(t, q))
		})
	}
}

func TestDjangoEmit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "single lookup",
			sql:  "SELECT * FROM users WHERE age > 18",
			want: "User.objects.filter(age__gt=18)",
		},
		{
			name: "and folds into kwargs",
			sql:  "SELECT * FROM users WHERE age >= 21 AND city = 'NY'",
			want: "User.objects.filter(age__gte=21, city='NY')",
		},
		{
			name: "or needs q objects",
			sql:  "SELECT * FROM users WHERE city = 'NY' OR city = 'LA'",
			want: "User.objects.filter((Q(city='NY') | Q(city='LA')))",
		},
		{
			name: "joined column becomes a path",
			sql:  "SELECT users.name, orders.total FROM users INNER JOIN orders ON orders.user_id = users.id",
			want: "User.objects.values('name', 'order__total')",
		},
		{
			name: "to-one join becomes select_related",
			sql:  "SELECT * FROM orders INNER JOIN customers ON orders.customer_id = customers.id",
			want: "Order.objects.select_related('customer')",
		},
		{
			name: "to-many join becomes prefetch_related",
			sql:  "SELECT * FROM users LEFT JOIN orders ON orders.user_id = users.id",
			want: "User.objects.prefetch_related('order')",
		},
		{
			name: "grouping with having",
			sql:  "SELECT city, COUNT(id) AS total FROM users GROUP BY city HAVING COUNT(id) > 5",
			want: "User.objects.values('city').annotate(total=Count('id')).filter(total__gt=5)",
		},
		{
			name: "joined aggregate with having",
			sql:  "SELECT name, COUNT(orders.id) AS order_count FROM users LEFT JOIN orders ON orders.user_id = users.id GROUP BY name HAVING COUNT(orders.id) > 5",
			want: "User.objects.values('name').annotate(order_count=Count('order__id')).filter(order_count__gt=5)",
		},
		{
			name: "like classifies as contains",
			sql:  "SELECT * FROM users WHERE name LIKE '%smith%'",
			want: "User.objects.filter(name__contains='smith')",
		},
		{
			name: "not like excludes the positive form",
			sql:  "SELECT * FROM users WHERE name NOT LIKE 'test%'",
			want: "User.objects.filter(~Q(name__startswith='test'))",
		},
		{
			name: "null check with paging",
			sql:  "SELECT * FROM users WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT 10 OFFSET 20",
			want: "User.objects.filter(deleted_at__isnull=True).order_by('-created_at')[20:30]",
		},
		{
			name: "distinct projection",
			sql:  "SELECT DISTINCT city FROM users",
			want: "User.objects.values('city').distinct()",
		},
		{
			name: "column comparison uses f expressions",
			sql:  "SELECT * FROM employees WHERE salary > bonus",
			want: "Employee.objects.filter(salary__gt=F('bonus'))",
		},
		{
			name: "in list",
			sql:  "SELECT * FROM users WHERE status IN ('new', 'active')",
			want: "User.objects.filter(status__in=['new', 'active'])",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emit(t, types.FrameworkDjango, fromSQL(t, tt.sql)))
		})
	}
}

func TestDjangoNormalizeErrors(t *testing.T) {
	t.Run("wrong receiver", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkDjango, "session.query(User)")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "Django chains start from Model.objects", serr.Msg)
	})

	t.Run("raw sql", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkDjango, "User.objects.raw('SELECT 1')")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "raw SQL", uerr.Construct)
		assert.True(t, uerr.Essential)
	})

	t.Run("deep relation path", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkDjango, "User.objects.filter(orders__items__price__gt=5)")
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "field path orders__items__price crossing two relations", uerr.Construct)
		assert.Equal(t, "split the query at the intermediate relation", uerr.Hint)
	})

	t.Run("positional annotate", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkDjango, "User.objects.annotate(Count('id'))")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "annotate takes keyword arguments", serr.Msg)
	})

	t.Run("values takes field names", func(t *testing.T) {
		err := normalizeErr(t, types.FrameworkDjango, "User.objects.values(F('name'))")
		var serr *types.SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "values takes field names", serr.Msg)
	})
}

func TestDjangoEmitErrors(t *testing.T) {
	t.Run("interior wildcard", func(t *testing.T) {
		q := fromSQL(t, "SELECT * FROM users WHERE name LIKE 'a%b'")
		err := emitErr(t, types.FrameworkDjango, q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "LIKE pattern with interior wildcards", uerr.Construct)
	})

	t.Run("computed ordering", func(t *testing.T) {
		q := fromSQL(t, "SELECT * FROM users ORDER BY LOWER(name)")
		err := emitErr(t, types.FrameworkDjango, q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "ordering by a computed expression", uerr.Construct)
	})

	t.Run("computed filter operand", func(t *testing.T) {
		q := fromSQL(t, "SELECT * FROM users WHERE age + 1 > 5")
		err := emitErr(t, types.FrameworkDjango, q)
		var uerr *types.UnsupportedConstructError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "computed filter operand", uerr.Construct)
	})
}

func TestDjangoDropped(t *testing.T) {
	_, env := normalize(t, types.FrameworkDjango, "User.objects.order_by(Lower('name'))")
	diags := env.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, types.TranslateConstructDropped, diags[0].Code)
	assert.Equal(t, "order_by expression has no translation and was dropped", diags[0].Content)
}
