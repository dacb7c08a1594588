package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nsxbet/querybridge/pkg/types"
)

func TestSummarize(t *testing.T) {
	diags := []types.Diagnostic{
		{Severity: types.SeverityHigh, Code: types.AnalyzerNPlusOne},
		{Severity: types.SeverityMedium, Code: types.AnalyzerMissingEagerLoad},
		{Severity: types.SeverityLow, Code: types.AnalyzerMissingIndex},
		{Severity: types.SeverityWarning, Code: types.TranslateConstructDropped},
		{Severity: types.SeverityWarning, Code: types.TranslateVerifyFailed},
	}

	s := summarize(diags)
	assert.Equal(t, Summary{Total: 5, High: 1, Medium: 1, Low: 1, Warnings: 2}, s)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, summarize(nil))
}

func TestResultPredicates(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		clean    bool
		findings bool
		warnings bool
	}{
		{
			name:    "clean",
			summary: Summary{},
			clean:   true,
		},
		{
			name:     "analyzer finding",
			summary:  Summary{Total: 1, High: 1},
			findings: true,
		},
		{
			name:     "low severity still counts as a finding",
			summary:  Summary{Total: 1, Low: 1},
			findings: true,
		},
		{
			name:     "dropped construct",
			summary:  Summary{Total: 1, Warnings: 1},
			warnings: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{Summary: tt.summary}
			assert.Equal(t, tt.clean, r.IsClean())
			assert.Equal(t, tt.findings, r.HasFindings())
			assert.Equal(t, tt.warnings, r.HasWarnings())
		})
	}
}

func TestResultString(t *testing.T) {
	r := &Result{Summary: Summary{Total: 3, High: 1, Low: 1, Warnings: 1}}
	assert.Equal(t, "Translation: 3 diagnostics (1 high, 0 medium, 1 low, 1 warning)", r.String())
}

func TestFilterBySeverity(t *testing.T) {
	r := &Result{Diagnostics: []types.Diagnostic{
		{Severity: types.SeverityHigh, Title: "first"},
		{Severity: types.SeverityLow, Title: "second"},
		{Severity: types.SeverityHigh, Title: "third"},
	}}

	high := r.FilterBySeverity(types.SeverityHigh)
	assert.Len(t, high, 2)
	assert.Equal(t, "first", high[0].Title)
	assert.Equal(t, "third", high[1].Title)

	assert.Empty(t, r.FilterBySeverity(types.SeverityWarning))
}
