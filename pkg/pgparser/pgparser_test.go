package pgparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostgreSQL(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{
			name:    "simple SELECT",
			sql:     "SELECT * FROM users WHERE id = 1;",
			wantErr: false,
		},
		{
			name:    "SELECT with join and ordering",
			sql:     `SELECT u.name, COUNT(o.id) FROM users u INNER JOIN orders o ON o.user_id = u.id GROUP BY u.name ORDER BY u.name;`,
			wantErr: false,
		},
		{
			name:    "SELECT with limit and offset",
			sql:     "SELECT name FROM users ORDER BY name LIMIT 5 OFFSET 10;",
			wantErr: false,
		},
		{
			name:    "missing semicolon is ok",
			sql:     "SELECT id FROM users",
			wantErr: false,
		},
		{
			name:    "invalid SQL",
			sql:     "SELECT FROM WHERE",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParsePostgreSQL(tt.sql)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				require.NotNil(t, result)
				assert.NotNil(t, result.Tree)
				assert.NotNil(t, result.Tokens)
			}
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := ParsePostgreSQL("SELECT name FROM users WHERE ;")
	require.Error(t, err)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.NotNil(t, syntaxErr.Position)
	assert.Equal(t, int32(1), syntaxErr.Position.Line)
}
