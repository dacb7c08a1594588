package translator

import (
	"errors"

	"github.com/nsxbet/querybridge/pkg/mysqlparser"
	"github.com/nsxbet/querybridge/pkg/pgparser"
	"github.com/nsxbet/querybridge/pkg/types"
)

// verifyEmitted re-parses emitted SQL with the vendor grammar for the target
// dialect. Only mysql and postgresql carry one; other dialects are skipped.
// A rejection points at a gap in the emitter, so it surfaces as a warning on
// the result rather than a failure.
func verifyEmitted(code string, dialect types.DialectID) []types.Diagnostic {
	switch dialect {
	case types.DialectMySQL:
		if _, err := mysqlparser.ParseMySQL(code); err != nil {
			return []types.Diagnostic{verifyDiagnostic(err)}
		}
	case types.DialectPostgreSQL:
		if _, err := pgparser.ParsePostgreSQL(code + ";"); err != nil {
			return []types.Diagnostic{verifyDiagnostic(err)}
		}
	}
	return nil
}

func verifyDiagnostic(err error) types.Diagnostic {
	d := types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     types.TranslateVerifyFailed,
		Title:    "Emitted SQL failed verification",
		Content:  err.Error(),
	}
	var mysqlErr *mysqlparser.SyntaxError
	if errors.As(err, &mysqlErr) {
		d.Position = mysqlErr.Position
	}
	var pgErr *pgparser.SyntaxError
	if errors.As(err, &pgErr) {
		d.Position = pgErr.Position
	}
	return d
}
