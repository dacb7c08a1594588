package translator

import (
	"log/slog"

	"github.com/nsxbet/querybridge/pkg/types"
)

// Option customizes a Translator at construction time.
type Option func(*Translator)

// WithSchema attaches a schema snapshot. The normalizer uses it to resolve
// table spellings, and the analyzer's index rule reads its index metadata.
//
// Example:
//
//	t, err := translator.New(translator.WithSchema(snapshot))
func WithSchema(schema *types.SchemaSnapshot) Option {
	return func(t *Translator) {
		t.schema = schema
	}
}

// WithUsage sets the default usage context for analysis. A usage supplied on
// an individual Request takes precedence.
func WithUsage(usage *types.UsageContext) Option {
	return func(t *Translator) {
		t.usage = usage
	}
}

// WithLimits overrides the resource limits applied to parsing and
// normalization. Zero fields fall back to the defaults.
func WithLimits(limits types.Limits) Option {
	return func(t *Translator) {
		t.limits = limits
	}
}

// WithVerification re-parses emitted SQL with the vendor grammar for the
// target dialect. A rejection becomes a warning diagnostic on the result; it
// never fails the translation. Dialects without a wired grammar are skipped.
func WithVerification() Option {
	return func(t *Translator) {
		t.verify = true
	}
}

// WithAnalysis runs the analyzer rules during Translate and appends their
// findings to the result diagnostics.
func WithAnalysis() Option {
	return func(t *Translator) {
		t.analyze = true
	}
}

// WithLogger routes the translator's structured log output through l instead
// of the process default.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		t.logger = l
	}
}
