package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		ident string
		want  []string
	}{
		{"order_items", []string{"order", "items"}},
		{"OrderItem", []string{"order", "item"}},
		{"userId", []string{"user", "id"}},
		{"HTTPServer", []string{"http", "server"}},
		{"first-name", []string{"first", "name"}},
		{"simple", []string{"simple"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitWords(tt.ident))
		})
	}
}

func TestRecase(t *testing.T) {
	tests := []struct {
		ident string
		style CaseStyle
		want  string
	}{
		{"order_items", CamelCase, "orderItems"},
		{"order_items", PascalCase, "OrderItems"},
		{"orderItems", SnakeCase, "order_items"},
		{"OrderItems", SnakeCase, "order_items"},
		{"first_name", CamelCase, "firstName"},
	}
	for _, tt := range tests {
		t.Run(tt.ident+"/"+string(tt.style), func(t *testing.T) {
			assert.Equal(t, tt.want, Recase(tt.ident, tt.style))
		})
	}
}

func TestSingular(t *testing.T) {
	tests := []struct{ in, want string }{
		{"users", "user"},
		{"categories", "category"},
		{"boxes", "box"},
		{"classes", "class"},
		{"address", "address"},
		{"people", "person"},
		{"People", "Person"},
		{"statuses", "status"},
		{"order", "order"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Singular(tt.in))
		})
	}
}

func TestPlural(t *testing.T) {
	tests := []struct{ in, want string }{
		{"user", "users"},
		{"category", "categories"},
		{"day", "days"},
		{"box", "boxes"},
		{"person", "people"},
		{"status", "statuses"},
		{"index", "indexes"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Plural(tt.in))
		})
	}
}

func TestModelAndTableNames(t *testing.T) {
	sa, err := ForFramework(types.FrameworkSQLAlchemy)
	require.NoError(t, err)
	assert.Equal(t, "OrderItem", sa.ModelName("order_items"))
	assert.Equal(t, "User", sa.ModelName("users"))
	assert.Equal(t, "Person", sa.ModelName("people"))

	prisma, err := ForFramework(types.FrameworkPrisma)
	require.NoError(t, err)
	assert.Equal(t, "orderItem", prisma.ModelName("order_items"))
	assert.Equal(t, "user", prisma.ModelName("users"))

	assert.Equal(t, "order_items", TableName("OrderItem"))
	assert.Equal(t, "users", TableName("User"))
	assert.Equal(t, "people", TableName("Person"))
	assert.Equal(t, "categories", TableName("Category"))
}

func TestFieldAndColumnNames(t *testing.T) {
	to, err := ForFramework(types.FrameworkTypeORM)
	require.NoError(t, err)
	assert.Equal(t, "firstName", to.FieldName("first_name"))

	ef, err := ForFramework(types.FrameworkEntityFramework)
	require.NoError(t, err)
	assert.Equal(t, "FirstName", ef.FieldName("first_name"))

	dj, err := ForFramework(types.FrameworkDjango)
	require.NoError(t, err)
	assert.Equal(t, "first_name", dj.FieldName("first_name"))

	assert.Equal(t, "first_name", ColumnName("firstName"))
	assert.Equal(t, "created_at", ColumnName("CreatedAt"))
}
