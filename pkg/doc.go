// Package pkg provides query translation between ORM frameworks and SQL
// dialects for Go applications.
//
// QueryBridge parses a query written for one surface, normalizes it into a
// neutral query model, and emits the equivalent query for another surface.
// An optional analysis pass flags performance risks before the query ever
// runs.
//
// # Package Structure
//
// The pkg directory contains several specialized packages:
//
//   - translator: High-level API for translation and analysis (recommended starting point)
//   - engine: Normalization core: framework registry, builder, rule tables
//   - analyzer: Performance heuristics over normalized queries
//   - frameworks: Per-framework strategies (sqlalchemy, django, entity-framework, typeorm, sequelize, prisma, hibernate)
//   - sqlparser, chainparser: Surface parsers for SQL text and fluent chains
//   - sqlemit: Dialect-aware SQL rendering
//   - ir: The neutral query model
//   - catalog: Framework and dialect capability tables, naming conventions
//   - parsetree: The shared surface syntax tree
//   - types: Core type definitions, error taxonomy, diagnostics
//   - schema: Snapshot acquisition (files, SQLite introspection, DBML)
//   - mysqlparser, pgparser: ANTLR-based verification parsers
//   - config: Configuration loading and management
//   - logger: Logging abstraction layer
//
// # Getting Started
//
// For most use cases, start with the translator package:
//
//	import (
//	    "github.com/nsxbet/querybridge/pkg/translator"
//	    "github.com/nsxbet/querybridge/pkg/types"
//	)
//
//	func main() {
//	    t, err := translator.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    result, err := t.Translate(translator.Request{
//	        Source: source,
//	        From:   translator.ORM(types.FrameworkSQLAlchemy),
//	        To:     translator.SQL(types.DialectPostgreSQL),
//	    })
//	    // Process result.Code and result.Diagnostics...
//	}
//
// # Surfaces
//
// Seven ORM frameworks translate in both directions: SQLAlchemy and Django
// (Python), Entity Framework (C#), TypeORM, Sequelize and Prisma
// (JavaScript/TypeScript), and Hibernate (Java, HQL strings). Five SQL
// dialects render from the same query model: PostgreSQL, MySQL, SQLite,
// SQL Server and Oracle, each with its own quoting, parameter and limit
// syntax.
//
// # Analysis
//
// The analyzer inspects normalized queries for risks that surface only under
// load:
//
//   - N+1 access patterns: the result is iterated and a relation is
//     dereferenced per row without a join or eager load
//   - Joins inferred from filter paths but never declared as eager loads
//   - Cartesian products: joins whose conditions cannot constrain the row
//     count
//   - Filters and orderings with no index behind them (schema-aware)
//
// Findings are advisory. They attach to the translation result and never
// fail it.
//
// # Configuration
//
// Schema context and behavior come in through functional options:
//
//	t, err := translator.New(
//	    translator.WithSchema(snapshot),
//	    translator.WithVerification(),
//	    translator.WithAnalysis(),
//	)
//
// Snapshots load from YAML/JSON files, SQLite database files or DBML
// projects via the schema package.
//
// # Thread Safety
//
// All public APIs are safe for concurrent use by multiple goroutines.
// Translator instances hold only configuration and can be reused across
// translations.
//
// # Error Handling
//
// Translation distinguishes between:
//   - Diagnostics (dropped constructs, verification warnings, analyzer
//     findings) returned on the Result
//   - Hard errors (syntax errors, essential unsupported constructs, resource
//     limits) returned as typed errors from Translate
//
// The typed errors live in pkg/types and are errors.As-friendly; use
// types.DiagnosticCode to map one onto its stable numeric code.
//
// # Documentation
//
// Complete documentation and examples:
//   - Examples: examples/library-usage/
//   - Main README: README.md
package pkg
