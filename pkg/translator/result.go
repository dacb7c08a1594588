package translator

import (
	"fmt"

	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Result contains the outcome of one translation.
type Result struct {
	// Code is the emitted query text in the requested target surface.
	Code string

	// Query is the normalized form the code was emitted from.
	Query *ir.Query

	// Diagnostics contains every finding collected during the translation:
	// dropped constructs, verification warnings and analyzer findings.
	// Empty when the translation was lossless and nothing was flagged.
	Diagnostics []types.Diagnostic

	// Summary provides aggregate statistics about the diagnostics.
	Summary Summary
}

// Summary categorizes diagnostics by severity for quick inspection.
type Summary struct {
	// Total number of diagnostics.
	Total int

	// High is the count of HIGH-severity analyzer findings.
	High int

	// Medium is the count of MEDIUM-severity analyzer findings.
	Medium int

	// Low is the count of LOW-severity analyzer findings.
	Low int

	// Warnings is the count of translation warnings: dropped constructs
	// and verification failures.
	Warnings int
}

func summarize(diagnostics []types.Diagnostic) Summary {
	s := Summary{}
	for _, d := range diagnostics {
		s.Total++
		switch d.Severity {
		case types.SeverityHigh:
			s.High++
		case types.SeverityMedium:
			s.Medium++
		case types.SeverityLow:
			s.Low++
		case types.SeverityWarning:
			s.Warnings++
		}
	}
	return s
}

// IsClean returns true if the translation produced no diagnostics at all.
func (r *Result) IsClean() bool {
	return r.Summary.Total == 0
}

// HasFindings returns true if the analyzer flagged anything.
func (r *Result) HasFindings() bool {
	return r.Summary.High > 0 || r.Summary.Medium > 0 || r.Summary.Low > 0
}

// HasWarnings returns true if any construct was dropped or verification
// rejected the emitted SQL.
func (r *Result) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// String returns a human-readable summary of the translation.
//
// Example output:
//
//	Translation: 3 diagnostics (1 high, 0 medium, 1 low, 1 warning)
func (r *Result) String() string {
	return fmt.Sprintf(
		"Translation: %d diagnostics (%d high, %d medium, %d low, %d warning)",
		r.Summary.Total,
		r.Summary.High,
		r.Summary.Medium,
		r.Summary.Low,
		r.Summary.Warnings,
	)
}

// FilterBySeverity returns only the diagnostics with the given severity.
//
// Example:
//
//	for _, d := range result.FilterBySeverity(types.SeverityHigh) {
//	    fmt.Printf("HIGH: %s\n", d.Content)
//	}
func (r *Result) FilterBySeverity(severity types.Severity) []types.Diagnostic {
	filtered := make([]types.Diagnostic, 0)
	for _, d := range r.Diagnostics {
		if d.Severity == severity {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
