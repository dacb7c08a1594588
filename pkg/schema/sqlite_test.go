package schema

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func createDB(t *testing.T, ddl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(ddl)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func TestIntrospectSQLite(t *testing.T) {
	path := createDB(t, `
CREATE TABLE customers (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    city TEXT
);
CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER NOT NULL REFERENCES customers(id),
    total REAL,
    status TEXT
);
CREATE INDEX idx_orders_customer ON orders(customer_id, status);
CREATE TABLE tags (name TEXT PRIMARY KEY);
CREATE TABLE line_items (
    order_id INTEGER,
    line_no INTEGER,
    PRIMARY KEY (order_id, line_no)
);
`)

	snap, err := IntrospectSQLite(path)
	require.NoError(t, err)
	assert.Equal(t, path, snap.Name)

	names := make([]string, len(snap.Tables))
	for i, tab := range snap.Tables {
		names[i] = tab.Name
	}
	assert.Equal(t, []string{"customers", "line_items", "orders", "tags"}, names)

	t.Run("columns", func(t *testing.T) {
		customers := snap.Table("customers")
		require.NotNil(t, customers)
		require.Len(t, customers.Columns, 3)
		assert.Equal(t, "id", customers.Columns[0].Name)
		assert.Equal(t, "INTEGER", customers.Columns[0].Type)
		assert.Equal(t, "name", customers.Columns[1].Name)
		assert.False(t, customers.Columns[1].Nullable)
		assert.Equal(t, "city", customers.Columns[2].Name)
		assert.True(t, customers.Columns[2].Nullable)
	})

	t.Run("rowid primary key gets a synthesized index", func(t *testing.T) {
		customers := snap.Table("customers")
		require.Len(t, customers.Indexes, 1)
		idx := customers.Indexes[0]
		assert.Equal(t, []string{"id"}, idx.Expressions)
		assert.True(t, idx.Primary)
		assert.True(t, idx.Unique)
		assert.True(t, customers.HasIndexOn("id"))
	})

	t.Run("declared indexes keep their key order", func(t *testing.T) {
		orders := snap.Table("orders")
		require.NotNil(t, orders)
		var named *types.IndexSchema
		for _, idx := range orders.Indexes {
			if idx.Name == "idx_orders_customer" {
				named = idx
			}
		}
		require.NotNil(t, named)
		assert.Equal(t, []string{"customer_id", "status"}, named.Expressions)
		assert.False(t, named.Unique)

		assert.True(t, orders.HasIndexOn("customer_id"))
		assert.False(t, orders.HasIndexOn("status"))
		assert.True(t, orders.HasIndexOn("id"))
	})

	t.Run("text primary key uses the automatic index", func(t *testing.T) {
		tags := snap.Table("tags")
		require.NotNil(t, tags)
		require.Len(t, tags.Indexes, 1)
		assert.True(t, tags.Indexes[0].Primary)
		assert.True(t, tags.Indexes[0].Unique)
		assert.Equal(t, []string{"name"}, tags.Indexes[0].Expressions)
	})

	t.Run("composite primary key", func(t *testing.T) {
		items := snap.Table("line_items")
		require.NotNil(t, items)
		require.Len(t, items.Indexes, 1)
		assert.True(t, items.Indexes[0].Primary)
		assert.Equal(t, []string{"order_id", "line_no"}, items.Indexes[0].Expressions)
	})

	t.Run("foreign keys", func(t *testing.T) {
		orders := snap.Table("orders")
		require.Len(t, orders.ForeignKeys, 1)
		fk := orders.ForeignKeys[0]
		assert.Equal(t, []string{"customer_id"}, fk.Columns)
		assert.Equal(t, "customers", fk.ReferencedTable)
		assert.Equal(t, []string{"id"}, fk.ReferencedColumns)
		assert.NotEmpty(t, fk.Name)
	})
}

func TestIntrospectSQLiteBadPath(t *testing.T) {
	_, err := IntrospectSQLite(t.TempDir())
	require.Error(t, err)
}
