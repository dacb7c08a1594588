package types

// Severity grades how strongly a diagnostic should be acted on.
type Severity string

const (
	SeverityHigh    Severity = "HIGH"
	SeverityMedium  Severity = "MEDIUM"
	SeverityLow     Severity = "LOW"
	SeverityWarning Severity = "WARNING"
)

// Code is a stable numeric identifier attached to every diagnostic.
type Code int

// Code ranges: 1-99 general, 101-199 translation, 201-299 analyzer.
const (
	Ok       Code = 0
	Internal Code = 1

	// 101 ~ 199 translation diagnostic code.

	TranslateSyntaxError         Code = 101
	TranslateUnsupported         Code = 102
	TranslateUnresolvedReference Code = 103
	TranslateResourceLimit       Code = 104
	TranslateUnknownTarget       Code = 105
	TranslateConstructDropped    Code = 110
	TranslateVerifyFailed        Code = 121

	// 201 ~ 299 analyzer diagnostic code.

	AnalyzerNPlusOne         Code = 201
	AnalyzerMissingEagerLoad Code = 202
	AnalyzerCartesianProduct Code = 203
	AnalyzerMissingIndex     Code = 204
)

// Int32 returns the int32 type of code.
func (c Code) Int32() int32 {
	return int32(c)
}

// Position represents a position in the source code
type Position struct {
	Line   int32 `json:"line"   yaml:"line"`
	Column int32 `json:"column" yaml:"column"`
}

// NewPosition converts 1-based int coordinates into a Position.
func NewPosition(line, column int) *Position {
	return &Position{Line: int32(line), Column: int32(column)}
}

// Diagnostic is an advisory finding attached to a translation or produced by
// the analyzer. Diagnostics never fail a translation on their own.
type Diagnostic struct {
	Severity Severity  `json:"severity"           yaml:"severity"`
	Code     Code      `json:"code"               yaml:"code"`
	Title    string    `json:"title"              yaml:"title"`
	Content  string    `json:"content"            yaml:"content"`
	Position *Position `json:"position,omitempty" yaml:"position,omitempty"`
	// Relation is set for relation-path findings such as N+1 risks.
	Relation string `json:"relation,omitempty" yaml:"relation,omitempty"`
}

// UsageContext describes how the caller consumes the query result. It is the
// analyzer's substitute for dataflow analysis: the caller states that the
// result is iterated and which relation paths are dereferenced per row.
type UsageContext struct {
	Iterates     bool     `json:"iterates"               yaml:"iterates"`
	Dereferences []string `json:"dereferences,omitempty" yaml:"dereferences,omitempty"`
}
