package analyzer

import (
	"fmt"

	"github.com/nsxbet/querybridge/pkg/types"
)

var _ Rule = (*MissingEagerLoadRule)(nil)

func init() {
	Register(&MissingEagerLoadRule{})
}

// MissingEagerLoadRule flags joins the normalizer inferred from filter
// traversals. The framework joins for the predicate but does not populate
// the association, so reading it per row loads it again.
type MissingEagerLoadRule struct{}

// Name returns the rule name.
func (*MissingEagerLoadRule) Name() string {
	return "MissingEagerLoadRule"
}

// Code returns the diagnostic code the rule reports under.
func (*MissingEagerLoadRule) Code() types.Code {
	return types.AnalyzerMissingEagerLoad
}

// Check reports one finding per inferred join.
func (*MissingEagerLoadRule) Check(checkCtx Context) ([]types.Diagnostic, error) {
	q := checkCtx.Query
	var out []types.Diagnostic
	for _, j := range q.Joins {
		if j.Declared {
			continue
		}
		rel := relationName(q, j)
		out = append(out, types.Diagnostic{
			Severity: types.SeverityMedium,
			Code:     types.AnalyzerMissingEagerLoad,
			Title:    "Join without eager load",
			Content:  fmt.Sprintf("the join against %q was inferred from a filter path; declare it with the framework's eager-load primitive if the relation is read", j.Target.Name),
			Relation: rel,
		})
	}
	return out, nil
}
