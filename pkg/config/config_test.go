package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxbet/querybridge/pkg/types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFileYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
from: sqlalchemy
to: postgresql
verify: true
limits:
  max_depth: 16
rules:
  - name: MissingIndexRule
    disabled: true
  - name: NPlusOneRule
    severity: MEDIUM
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlalchemy", cfg.From)
	assert.Equal(t, "postgresql", cfg.To)
	assert.True(t, cfg.Verify)
	assert.False(t, cfg.Analyze)
	assert.Equal(t, 16, cfg.Limits.MaxDepth)
	require.Len(t, cfg.Rules, 2)
	assert.True(t, cfg.Rules[0].Disabled)
	assert.Equal(t, types.SeverityMedium, cfg.Rules[1].Severity)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"from": "django", "to": "mysql", "analyze": true}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "django", cfg.From)
	assert.Equal(t, "mysql", cfg.To)
	assert.True(t, cfg.Analyze)
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("unparseable content", func(t *testing.T) {
		path := writeConfig(t, "bad.yaml", "{{{not a document")
		_, err := LoadFromFile(path)
		require.Error(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.From)
	assert.Empty(t, cfg.To)
	assert.Equal(t, types.DefaultLimits(), cfg.Limits)
	assert.False(t, cfg.Verify)
	assert.False(t, cfg.Analyze)
}

func TestAdjustFindings(t *testing.T) {
	findings := func() []types.Diagnostic {
		return []types.Diagnostic{
			{Severity: types.SeverityHigh, Code: types.AnalyzerNPlusOne},
			{Severity: types.SeverityLow, Code: types.AnalyzerMissingIndex},
			{Severity: types.SeverityWarning, Code: types.TranslateConstructDropped},
		}
	}

	t.Run("no adjustments", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, findings(), cfg.AdjustFindings(findings()))
	})

	t.Run("disabled rule drops its findings", func(t *testing.T) {
		cfg := &Config{Rules: []*RuleConfig{{Name: "MissingIndexRule", Disabled: true}}}
		out := cfg.AdjustFindings(findings())
		require.Len(t, out, 2)
		assert.Equal(t, types.AnalyzerNPlusOne, out[0].Code)
		assert.Equal(t, types.TranslateConstructDropped, out[1].Code)
	})

	t.Run("severity override rewrites in place", func(t *testing.T) {
		cfg := &Config{Rules: []*RuleConfig{{Name: "NPlusOneRule", Severity: types.SeverityMedium}}}
		out := cfg.AdjustFindings(findings())
		require.Len(t, out, 3)
		assert.Equal(t, types.SeverityMedium, out[0].Severity)
		assert.Equal(t, types.SeverityLow, out[1].Severity)
	})

	t.Run("unknown rule names change nothing", func(t *testing.T) {
		cfg := &Config{Rules: []*RuleConfig{{Name: "NoSuchRule", Disabled: true}}}
		assert.Equal(t, findings(), cfg.AdjustFindings(findings()))
	})

	t.Run("translation warnings pass through", func(t *testing.T) {
		cfg := &Config{Rules: []*RuleConfig{
			{Name: "NPlusOneRule", Disabled: true},
			{Name: "MissingIndexRule", Disabled: true},
		}}
		out := cfg.AdjustFindings(findings())
		require.Len(t, out, 1)
		assert.Equal(t, types.TranslateConstructDropped, out[0].Code)
	})
}
