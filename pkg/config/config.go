// Package config loads translator configuration files. A config file sets
// the default surfaces, resource limits and analyzer rule adjustments so the
// CLI does not need every flag on every invocation.
package config

import (
	"encoding/json"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nsxbet/querybridge/pkg/analyzer"
	"github.com/nsxbet/querybridge/pkg/types"
)

// Config represents the configuration for the translator
type Config struct {
	// From and To are the default surfaces used when the flags are absent.
	// Values use the flag spelling: a framework id such as "sqlalchemy" or
	// a dialect id such as "postgresql".
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`

	// Limits bounds parsing and normalization. Zero fields fall back to the
	// defaults.
	Limits types.Limits `yaml:"limits" json:"limits"`

	// Schema optionally names a snapshot file (YAML or JSON) loaded before
	// translation.
	Schema string `yaml:"schema" json:"schema"`

	// Verify re-parses emitted SQL with the vendor grammar for the target
	// dialect.
	Verify bool `yaml:"verify" json:"verify"`

	// Analyze runs the analyzer rules during translation.
	Analyze bool `yaml:"analyze" json:"analyze"`

	// Rules adjusts individual analyzer rules.
	Rules []*RuleConfig `yaml:"rules" json:"rules"`
}

// RuleConfig disables or re-grades one analyzer rule, matched by its
// registered name.
type RuleConfig struct {
	Name     string         `yaml:"name" json:"name"`
	Disabled bool           `yaml:"disabled" json:"disabled"`
	Severity types.Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(filename string) (*Config, error) {
	slog.Debug("Loading config from file", "filename", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		slog.Debug("Failed to read file", "error", err)
		return nil, err
	}

	var config Config

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, &config); err != nil {
		slog.Debug("YAML unmarshal failed", "error", err)
		if err := json.Unmarshal(data, &config); err != nil {
			slog.Debug("JSON unmarshal failed", "error", err)
			return nil, err
		}
	}

	slog.Debug("Loaded config", "rules_count", len(config.Rules))
	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Limits: types.DefaultLimits(),
	}
}

// AdjustFindings applies the configured rule adjustments to analyzer
// findings: disabled rules drop out, severity overrides rewrite in place.
// Translation warnings pass through untouched.
func (c *Config) AdjustFindings(diags []types.Diagnostic) []types.Diagnostic {
	if len(c.Rules) == 0 {
		return diags
	}

	byCode := make(map[types.Code]*RuleConfig)
	for _, r := range analyzer.Rules() {
		for _, rc := range c.Rules {
			if rc.Name == r.Name() {
				byCode[r.Code()] = rc
			}
		}
	}

	out := make([]types.Diagnostic, 0, len(diags))
	for _, d := range diags {
		rc, adjusted := byCode[d.Code]
		if !adjusted {
			out = append(out, d)
			continue
		}
		if rc.Disabled {
			continue
		}
		if rc.Severity != "" {
			d.Severity = rc.Severity
		}
		out = append(out, d)
	}
	return out
}
