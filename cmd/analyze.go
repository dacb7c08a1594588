package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nsxbet/querybridge/pkg/translator"
	"github.com/nsxbet/querybridge/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] [source-file]",
	Short: "Analyze a query for performance risks",
	Long: `Analyze a query for performance risks without translating it.

The query is parsed and normalized, then checked for N+1 access patterns,
joins without eager loads, cartesian products and missing indexes. Findings
are advisory: the command exits 0 unless --fail-on-finding is set.

Examples:

  querybridge analyze --from sqlalchemy --usage customer query.py
  querybridge analyze --from postgresql --schema-db app.db query.sql`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Flags for analyze command
	analyzeCmd.Flags().StringP("from", "f", "", "source surface (framework or dialect id)")
	analyzeCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	analyzeCmd.Flags().StringP("rules", "r", "", "path to translator configuration file")
	analyzeCmd.Flags().String("schema", "", "path to schema snapshot file (YAML or JSON)")
	analyzeCmd.Flags().String("schema-db", "", "path to a SQLite database file to introspect")
	analyzeCmd.Flags().String("usage", "", "comma-separated relation paths the caller dereferences per row")
	analyzeCmd.Flags().Bool("fail-on-finding", false, "exit with non-zero code if the analyzer flags anything")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	setupLogging()

	slog.Debug("Starting analyze command", "args", args)

	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return err
	}

	fromStr, _ := cmd.Flags().GetString("from")
	if fromStr == "" {
		fromStr = cfg.From
	}
	if fromStr == "" {
		return errors.New("--from is required (or set it in the configuration file)")
	}
	from, err := parseSurface(fromStr)
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

	t, err := translator.New(opts...)
	if err != nil {
		return err
	}

	diagnostics, err := t.AnalyzeSource(source, from, usageContext(cmd))
	if err != nil {
		return err
	}
	diagnostics = cfg.AdjustFindings(diagnostics)

	outputFormat, _ := cmd.Flags().GetString("output")
	if err := outputFindings(diagnostics, outputFormat); err != nil {
		return err
	}

	failOnFinding, _ := cmd.Flags().GetBool("fail-on-finding")
	if failOnFinding && hasFindings(diagnostics) {
		os.Exit(1)
	}

	return nil
}

func hasFindings(diagnostics []types.Diagnostic) bool {
	for _, d := range diagnostics {
		if d.Severity != types.SeverityWarning {
			return true
		}
	}
	return false
}

// findingsOutput is the document shape for structured output formats.
type findingsOutput struct {
	Diagnostics []types.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func outputFindings(diagnostics []types.Diagnostic, format string) error {
	switch format {
	case "json":
		return outputJSON(findingsOutput{Diagnostics: diagnostics})
	case "yaml":
		return outputYAML(findingsOutput{Diagnostics: diagnostics})
	case "text":
		if len(diagnostics) == 0 {
			fmt.Println("No findings.")
			return nil
		}
		printDiagnostics(diagnostics)
		return nil
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}
