// Package translator provides the high-level API for converting queries
// between ORM fluent chains and SQL dialects.
//
// This package wires the surface parsers, the normalizer, the emitters and
// the analyzer into one entry point, making it easy to embed query
// translation into Go applications.
//
// # Quick Start
//
//	// Create a translator
//	t, err := translator.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Translate a SQLAlchemy chain to PostgreSQL
//	result, err := t.Translate(translator.Request{
//	    Source: `session.query(User).filter(User.age > 18).order_by(User.name)`,
//	    From:   translator.ORM(types.FrameworkSQLAlchemy),
//	    To:     translator.SQL(types.DialectPostgreSQL),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(result.Code)
//	for _, d := range result.Diagnostics {
//	    fmt.Printf("[%s] %s\n", d.Severity, d.Content)
//	}
//
// # With Schema Context
//
//	schema := &types.SchemaSnapshot{
//	    Tables: []*types.TableSchema{...},
//	}
//	t, err := translator.New(
//	    translator.WithSchema(schema),
//	    translator.WithAnalysis(),
//	)
//
// Translation is synchronous and pure: no database connection, no I/O. A
// Translator holds only configuration and is safe for concurrent use; every
// call builds its working state fresh.
package translator

import (
	"log/slog"

	"github.com/nsxbet/querybridge/pkg/analyzer"
	"github.com/nsxbet/querybridge/pkg/catalog"
	"github.com/nsxbet/querybridge/pkg/engine"
	_ "github.com/nsxbet/querybridge/pkg/frameworks"
	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/sqlemit"
	"github.com/nsxbet/querybridge/pkg/sqlparser"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Kind names one side of a translation: either an ORM framework or a SQL
// dialect. Exactly one field is set; use the ORM and SQL constructors.
type Kind struct {
	ORM types.FrameworkID
	SQL types.DialectID
}

// ORM builds the Kind for a framework surface.
func ORM(id types.FrameworkID) Kind { return Kind{ORM: id} }

// SQL builds the Kind for a dialect surface.
func SQL(id types.DialectID) Kind { return Kind{SQL: id} }

// IsSQL reports whether the kind names a dialect surface.
func (k Kind) IsSQL() bool { return k.SQL != types.DialectUnspecified }

// String returns the surface in "orm/<id>" or "sql/<id>" form.
func (k Kind) String() string {
	switch {
	case k.ORM != types.FrameworkUnspecified && k.SQL != types.DialectUnspecified:
		return "orm/" + string(k.ORM) + "+sql/" + string(k.SQL)
	case k.ORM != types.FrameworkUnspecified:
		return "orm/" + string(k.ORM)
	case k.SQL != types.DialectUnspecified:
		return "sql/" + string(k.SQL)
	default:
		return "unspecified"
	}
}

func (k Kind) validate() error {
	if (k.ORM != types.FrameworkUnspecified) == (k.SQL != types.DialectUnspecified) {
		return &types.UnknownTargetError{Kind: "surface", ID: k.String()}
	}
	if k.IsSQL() {
		if _, err := catalog.ForDialect(k.SQL); err != nil {
			return err
		}
		return nil
	}
	_, err := engine.Lookup(k.ORM)
	return err
}

// Request describes one translation call.
type Request struct {
	// Source is the query text: a fluent chain for ORM surfaces, a SELECT
	// statement for SQL surfaces.
	Source string

	// From names the surface Source is written in.
	From Kind

	// To names the surface to emit.
	To Kind

	// Usage optionally describes how the caller consumes the result set.
	// The analyzer's N+1 heuristic reads it. When nil, the usage configured
	// with WithUsage applies.
	Usage *types.UsageContext
}

// Translator converts queries between ORM fluent chains and SQL dialects.
//
// Translator is safe for concurrent use by multiple goroutines.
type Translator struct {
	schema  *types.SchemaSnapshot
	usage   *types.UsageContext
	limits  types.Limits
	verify  bool
	analyze bool
	logger  *slog.Logger
}

// New creates a Translator with the given options.
//
// With no options the translator runs without schema context, applies the
// default resource limits, and skips verification and analysis.
//
// Example:
//
//	t, err := translator.New(
//	    translator.WithSchema(schema),
//	    translator.WithVerification(),
//	)
func New(opts ...Option) (*Translator, error) {
	t := &Translator{
		limits: types.DefaultLimits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.limits = t.limits.Normalize()
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// Translate converts req.Source from one surface to another.
//
// The result carries the emitted code plus every diagnostic collected along
// the way: constructs dropped during normalization, verification warnings
// when WithVerification is set, analyzer findings when WithAnalysis is set.
// Diagnostics never fail a translation.
//
// Translate returns an error when the source does not parse, when a construct
// essential to the query's meaning has no translation, or when a resource
// limit is hit. Use types.DiagnosticCode to map the error onto its code.
func (t *Translator) Translate(req Request) (*Result, error) {
	if err := req.From.validate(); err != nil {
		return nil, err
	}
	if err := req.To.validate(); err != nil {
		return nil, err
	}

	env := engine.NewEnv(t.schema, t.limits, t.logger)
	q, err := t.normalize(req, env)
	if err != nil {
		return nil, err
	}

	code, err := t.emit(q, req.To, env)
	if err != nil {
		return nil, err
	}

	diagnostics := env.Diagnostics()
	if t.verify && req.To.IsSQL() {
		diagnostics = append(diagnostics, verifyEmitted(code, req.To.SQL)...)
	}
	if t.analyze {
		usage := req.Usage
		if usage == nil {
			usage = t.usage
		}
		diagnostics = append(diagnostics, analyzer.Analyze(q, t.schema, usage)...)
	}

	return &Result{
		Code:        code,
		Query:       q,
		Diagnostics: diagnostics,
		Summary:     summarize(diagnostics),
	}, nil
}

// Normalize parses req.Source and folds it into the neutral query model
// without emitting anything. The returned query is frozen.
func (t *Translator) Normalize(source string, from Kind) (*ir.Query, []types.Diagnostic, error) {
	if err := from.validate(); err != nil {
		return nil, nil, err
	}
	env := engine.NewEnv(t.schema, t.limits, t.logger)
	q, err := t.normalize(Request{Source: source, From: from}, env)
	if err != nil {
		return nil, nil, err
	}
	return q, env.Diagnostics(), nil
}

// Analyze runs the analyzer rules against a normalized query and returns the
// findings. Findings are advisory; Analyze never fails.
//
// The usage parameter may be nil, in which case the usage configured with
// WithUsage applies.
func (t *Translator) Analyze(q *ir.Query, usage *types.UsageContext) []types.Diagnostic {
	if usage == nil {
		usage = t.usage
	}
	return analyzer.Analyze(q, t.schema, usage)
}

// AnalyzeSource parses and normalizes source, then analyzes it. The result
// combines normalization warnings with analyzer findings.
//
// Example:
//
//	diags, err := t.AnalyzeSource(chain, translator.ORM(types.FrameworkDjango), &types.UsageContext{
//	    Iterates:     true,
//	    Dereferences: []string{"customer.name"},
//	})
func (t *Translator) AnalyzeSource(source string, from Kind, usage *types.UsageContext) ([]types.Diagnostic, error) {
	q, diagnostics, err := t.Normalize(source, from)
	if err != nil {
		return nil, err
	}
	return append(diagnostics, t.Analyze(q, usage)...), nil
}

func (t *Translator) normalize(req Request, env *engine.Env) (*ir.Query, error) {
	if req.From.IsSQL() {
		tree, err := sqlparser.Parse(req.Source, env.Limits)
		if err != nil {
			return nil, err
		}
		return engine.NormalizeSQL(tree, env)
	}
	f, err := engine.Lookup(req.From.ORM)
	if err != nil {
		return nil, err
	}
	tree, err := f.Parse(req.Source, env.Limits)
	if err != nil {
		return nil, err
	}
	return engine.Normalize(f, tree, env)
}

func (t *Translator) emit(q *ir.Query, to Kind, env *engine.Env) (string, error) {
	if to.IsSQL() {
		return sqlemit.Emit(q, to.SQL)
	}
	f, err := engine.Lookup(to.ORM)
	if err != nil {
		return "", err
	}
	return f.Emit(q, env)
}
