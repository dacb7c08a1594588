package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/querybridge/pkg/config"
	"github.com/nsxbet/querybridge/pkg/logger"
	"github.com/nsxbet/querybridge/pkg/schema"
	"github.com/nsxbet/querybridge/pkg/translator"
	"github.com/nsxbet/querybridge/pkg/types"
)

var translateCmd = &cobra.Command{
	Use:   "translate [flags] [source-file]",
	Short: "Translate a query between two surfaces",
	Long: `Translate a query from one surface to another.

The source is read from the given file, or from stdin when the argument is
"-" or absent. Surfaces are framework ids (sqlalchemy, django,
entity-framework, typeorm, sequelize, prisma, hibernate) or dialect ids
(postgresql, mysql, sqlite, sqlserver, oracle).

Examples:

  querybridge translate --from sqlalchemy --to postgresql query.py
  echo "SELECT id FROM users" | querybridge translate --from postgresql --to django
  querybridge translate --from prisma --to mysql --verify --analyze query.ts`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	// Flags for translate command
	translateCmd.Flags().StringP("from", "f", "", "source surface (framework or dialect id)")
	translateCmd.Flags().StringP("to", "t", "", "target surface (framework or dialect id)")
	translateCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	translateCmd.Flags().StringP("rules", "r", "", "path to translator configuration file")
	translateCmd.Flags().String("schema", "", "path to schema snapshot file (YAML or JSON)")
	translateCmd.Flags().String("schema-db", "", "path to a SQLite database file to introspect")
	translateCmd.Flags().Bool("verify", false, "re-parse emitted SQL with the vendor grammar")
	translateCmd.Flags().Bool("analyze", false, "run analyzer rules and report findings")
	translateCmd.Flags().String("usage", "", "comma-separated relation paths the caller dereferences per row")
	translateCmd.Flags().Bool("fail-on-warning", false, "exit with non-zero code if warnings are found")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	setupLogging()

	slog.Debug("Starting translate command", "args", args)

	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return err
	}

	from, to, err := resolveSurfaces(cmd, cfg)
	if err != nil {
		return err
	}

	source, err := readSource(args)
	if err != nil {
		return err
	}

	snapshot, err := loadSnapshot(cmd, cfg)
	if err != nil {
		return err
	}

	opts := []translator.Option{
		translator.WithLimits(cfg.Limits),
	}
	if snapshot != nil {
		opts = append(opts, translator.WithSchema(snapshot))
	}
	if flagOrConfig(cmd, "verify", cfg.Verify) {
		opts = append(opts, translator.WithVerification())
	}
	if flagOrConfig(cmd, "analyze", cfg.Analyze) {
		opts = append(opts, translator.WithAnalysis())
	}
	if usage := usageContext(cmd); usage != nil {
		opts = append(opts, translator.WithUsage(usage))
	}

	t, err := translator.New(opts...)
	if err != nil {
		return err
	}

	result, err := t.Translate(translator.Request{
		Source: source,
		From:   from,
		To:     to,
	})
	if err != nil {
		return err
	}

	diagnostics := cfg.AdjustFindings(result.Diagnostics)

	outputFormat, _ := cmd.Flags().GetString("output")
	if err := outputTranslation(result.Code, diagnostics, outputFormat); err != nil {
		return err
	}

	failOnWarning, _ := cmd.Flags().GetBool("fail-on-warning")
	if failOnWarning && hasWarnings(diagnostics) {
		os.Exit(1)
	}

	return nil
}

// setupLogging installs the process logger from the persistent flags.
func setupLogging() {
	logLevel := slog.LevelInfo
	if viper.GetBool("debug") {
		logLevel = slog.LevelDebug
	} else if viper.GetBool("verbose") {
		logLevel = slog.LevelInfo
	}

	l := logger.NewWithLevel(logLevel)
	if viper.GetString("log-format") == "pretty" {
		l = logger.NewPretty(logLevel)
	}
	slog.SetDefault(l.GetSlogLogger())
}

func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	rulesPath, _ := cmd.Flags().GetString("rules")
	if rulesPath != "" {
		cfg, err := config.LoadFromFile(rulesPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load configuration from %s", rulesPath)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// resolveSurfaces resolves --from and --to, falling back to the config file
// defaults.
func resolveSurfaces(cmd *cobra.Command, cfg *config.Config) (from, to translator.Kind, err error) {
	fromStr, _ := cmd.Flags().GetString("from")
	if fromStr == "" {
		fromStr = cfg.From
	}
	toStr, _ := cmd.Flags().GetString("to")
	if toStr == "" {
		toStr = cfg.To
	}
	if fromStr == "" || toStr == "" {
		return from, to, errors.New("both --from and --to are required (or set them in the configuration file)")
	}

	if from, err = parseSurface(fromStr); err != nil {
		return from, to, err
	}
	if to, err = parseSurface(toStr); err != nil {
		return from, to, err
	}
	return from, to, nil
}

// parseSurface resolves a surface name: framework ids take precedence, then
// dialect ids.
func parseSurface(s string) (translator.Kind, error) {
	if fw, err := types.ParseFrameworkID(s); err == nil {
		return translator.ORM(fw), nil
	}
	if d, err := types.ParseDialectID(s); err == nil {
		return translator.SQL(d), nil
	}
	return translator.Kind{}, errors.Errorf(
		"unknown surface %q: expected a framework id %v or a dialect id %v",
		s, types.Frameworks(), types.Dialects())
}

func readSource(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.Wrap(err, "failed to read source from stdin")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", errors.Wrapf(err, "failed to read source file: %s", args[0])
	}
	return string(data), nil
}

func loadSnapshot(cmd *cobra.Command, cfg *config.Config) (*types.SchemaSnapshot, error) {
	schemaPath, _ := cmd.Flags().GetString("schema")
	dbPath, _ := cmd.Flags().GetString("schema-db")
	if schemaPath != "" && dbPath != "" {
		return nil, errors.New("--schema and --schema-db are mutually exclusive")
	}
	if schemaPath == "" && dbPath == "" {
		schemaPath = cfg.Schema
	}

	if dbPath != "" {
		return schema.IntrospectSQLite(dbPath)
	}
	if schemaPath != "" {
		return schema.LoadFile(schemaPath)
	}
	return nil, nil
}

func flagOrConfig(cmd *cobra.Command, name string, configured bool) bool {
	set, _ := cmd.Flags().GetBool(name)
	return set || configured
}

// usageContext builds the analyzer usage hints from --usage. Naming any
// relation path implies the result set is iterated.
func usageContext(cmd *cobra.Command) *types.UsageContext {
	raw, _ := cmd.Flags().GetString("usage")
	if raw == "" {
		return nil
	}
	return &types.UsageContext{
		Iterates:     true,
		Dereferences: splitCommaList(raw),
	}
}

func splitCommaList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hasWarnings(diagnostics []types.Diagnostic) bool {
	for _, d := range diagnostics {
		if d.Severity == types.SeverityWarning {
			return true
		}
	}
	return false
}

// translationOutput is the document shape for structured output formats.
type translationOutput struct {
	Code        string             `json:"code"                  yaml:"code"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func outputTranslation(code string, diagnostics []types.Diagnostic, format string) error {
	switch format {
	case "json":
		return outputJSON(translationOutput{Code: code, Diagnostics: diagnostics})
	case "yaml":
		return outputYAML(translationOutput{Code: code, Diagnostics: diagnostics})
	case "text":
		fmt.Println(code)
		if len(diagnostics) > 0 {
			fmt.Println()
			printDiagnostics(diagnostics)
		}
		return nil
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}

func outputJSON(doc any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func outputYAML(doc any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(doc)
}

func printDiagnostics(diagnostics []types.Diagnostic) {
	warningCount := 0
	findingCount := 0

	for _, d := range diagnostics {
		position := ""
		if d.Position != nil {
			position = fmt.Sprintf(" at line %d, column %d", d.Position.Line, d.Position.Column)
		}

		fmt.Printf("[%s] %s%s\n", d.Severity, d.Title, position)
		if d.Content != "" {
			fmt.Printf("  %s\n", d.Content)
		}

		if d.Severity == types.SeverityWarning {
			warningCount++
		} else {
			findingCount++
		}
	}

	fmt.Printf("\nSummary: %d warning(s), %d finding(s)\n", warningCount, findingCount)
}
