package frameworks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/engine"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/sqlemit"
	"github.com/nsxbet/querybridge/pkg/sqlparser"
	"github.com/nsxbet/querybridge/pkg/types"
)

// normalize parses framework source and folds it into a query.
func normalize(t *testing.T, id types.FrameworkID, source string) (*ir.Query, *engine.Env) {
	t.Helper()
	fw, err := engine.Lookup(id)
	require.NoError(t, err)
	env := engine.NewEnv(nil, types.Limits{}, nil)
	tree, err := fw.Parse(source, env.Limits)
	require.NoError(t, err)
	q, err := engine.Normalize(fw, tree, env)
	require.NoError(t, err)
	return q, env
}

// normalizeErr runs the inbound direction expecting it to fail, returning
// whichever stage errored first.
func normalizeErr(t *testing.T, id types.FrameworkID, source string) error {
	t.Helper()
	fw, err := engine.Lookup(id)
	require.NoError(t, err)
	env := engine.NewEnv(nil, types.Limits{}, nil)
	tree, err := fw.Parse(source, env.Limits)
	if err != nil {
		return err
	}
	_, err = engine.Normalize(fw, tree, env)
	require.Error(t, err)
	return err
}

// fromSQL lowers a SQL statement into the query model.
func fromSQL(t *testing.T, sql string) *ir.Query {
	t.Helper()
	env := engine.NewEnv(nil, types.Limits{}, nil)
	tree, err := sqlparser.Parse(sql, env.Limits)
	require.NoError(t, err)
	q, err := engine.NormalizeSQL(tree, env)
	require.NoError(t, err)
	return q
}

// toSQL renders a query as PostgreSQL text for round-trip assertions.
func toSQL(t *testing.T, q *ir.Query) string {
	t.Helper()
	sql, err := sqlemit.Emit(q, types.DialectPostgreSQL)
	require.NoError(t, err)
	return sql
}

func emit(t *testing.T, id types.FrameworkID, q *ir.Query) string {
	t.Helper()
	fw, err := engine.Lookup(id)
	require.NoError(t, err)
	out, err := fw.Emit(q, engine.NewEnv(nil, types.Limits{}, nil))
	require.NoError(t, err)
	return out
}

func emitErr(t *testing.T, id types.FrameworkID, q *ir.Query) error {
	t.Helper()
	fw, err := engine.Lookup(id)
	require.NoError(t, err)
	_, err = fw.Emit(q, engine.NewEnv(nil, types.Limits{}, nil))
	require.Error(t, err)
	return err
}
