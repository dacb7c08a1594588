package analyzer

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

var _ Rule = (*MissingIndexRule)(nil)

func init() {
	Register(&MissingIndexRule{})
}

// MissingIndexRule suggests indexes for the columns that drive row
// selection: filters, join conditions, grouping and ordering. Only leading
// index columns count as covered. Without a schema snapshot the rule reports
// nothing.
type MissingIndexRule struct{}

// Name returns the rule name.
func (*MissingIndexRule) Name() string {
	return "MissingIndexRule"
}

// Code returns the diagnostic code the rule reports under.
func (*MissingIndexRule) Code() types.Code {
	return types.AnalyzerMissingIndex
}

// Check reports one finding per distinct uncovered column.
func (*MissingIndexRule) Check(checkCtx Context) ([]types.Diagnostic, error) {
	schema := checkCtx.Schema
	if schema == nil {
		return nil, nil
	}
	q := checkCtx.Query

	tables := map[string]string{}
	for _, t := range q.Tables() {
		tables[strings.ToLower(t.Binding())] = t.Name
	}

	var cols []*ir.Column
	if q.Filter != nil {
		cols = append(cols, ir.Columns(q.Filter)...)
	}
	for _, j := range q.Joins {
		if j.Condition != nil {
			cols = append(cols, ir.Columns(j.Condition)...)
		}
	}
	for _, g := range q.GroupBy {
		cols = append(cols, ir.Columns(g)...)
	}
	for _, t := range q.OrderBy {
		cols = append(cols, ir.Columns(t.Expr)...)
	}

	var out []types.Diagnostic
	seen := map[string]bool{}
	for _, c := range cols {
		if c.Name == "*" {
			continue
		}
		table := tables[strings.ToLower(c.Table)]
		if c.Table == "" {
			table = q.Source.Name
		}
		if table == "" {
			continue
		}
		// CTE and unknown tables have no snapshot entry and are skipped
		t := schema.Table(table)
		if t == nil || t.Column(c.Name) == nil || t.HasIndexOn(c.Name) {
			continue
		}
		key := strings.ToLower(table + "." + c.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, types.Diagnostic{
			Severity: types.SeverityLow,
			Code:     types.AnalyzerMissingIndex,
			Title:    "Missing index",
			Content:  fmt.Sprintf("%s.%s drives row selection but no index has it as its leading column", table, c.Name),
		})
	}
	return out, nil
}
