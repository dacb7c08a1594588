package engine

import (
	"fmt"
	"log/slog"

	"github.com/nsxbet/querybridge/pkg/types"
)

// Env is the per-translation environment shared by normalization and
// emission: the schema snapshot when one was supplied, the effective limits,
// and the diagnostics accumulated along the way. An Env is built per request
// and discarded with it.
type Env struct {
	Schema *types.SchemaSnapshot
	Limits types.Limits
	Logger *slog.Logger

	diagnostics []types.Diagnostic
}

// NewEnv builds a translation environment. A nil logger falls back to the
// process default.
func NewEnv(schema *types.SchemaSnapshot, limits types.Limits, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{Schema: schema, Limits: limits.Normalize(), Logger: logger}
}

// Dropped records that a construct had no translation and was left out. The
// translation itself proceeds.
func (e *Env) Dropped(pos types.Position, construct string) {
	e.Logger.Debug("construct dropped", "construct", construct, "line", pos.Line, "column", pos.Column)
	d := types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     types.TranslateConstructDropped,
		Title:    "Construct dropped",
		Content:  fmt.Sprintf("%s has no translation and was dropped", construct),
	}
	if pos.Line > 0 {
		d.Position = &types.Position{Line: pos.Line, Column: pos.Column}
	}
	e.diagnostics = append(e.diagnostics, d)
}

// Warn appends a warning diagnostic.
func (e *Env) Warn(code types.Code, title, content string) {
	e.diagnostics = append(e.diagnostics, types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     code,
		Title:    title,
		Content:  content,
	})
}

// Diagnostics returns the diagnostics accumulated so far.
func (e *Env) Diagnostics() []types.Diagnostic {
	return e.diagnostics
}
