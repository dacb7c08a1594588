package analyzer

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/types"
)

var _ Rule = (*NPlusOneRule)(nil)

func init() {
	Register(&NPlusOneRule{})
}

// NPlusOneRule flags result iteration that dereferences a relation no
// declared join or eager load covers. Each dereference then issues its own
// query per row. The rule is co-occurrence based, not dataflow analysis: the
// caller states how the result is consumed through the usage context.
type NPlusOneRule struct{}

// Name returns the rule name.
func (*NPlusOneRule) Name() string {
	return "NPlusOneRule"
}

// Code returns the diagnostic code the rule reports under.
func (*NPlusOneRule) Code() types.Code {
	return types.AnalyzerNPlusOne
}

// Check reports one finding per uncovered dereferenced relation.
func (*NPlusOneRule) Check(checkCtx Context) ([]types.Diagnostic, error) {
	usage := checkCtx.Usage
	if usage == nil || !usage.Iterates || len(usage.Dereferences) == 0 {
		return nil, nil
	}
	q := checkCtx.Query
	if q.Limit != nil && *q.Limit == 1 {
		// single-row fetch, nothing to amplify
		return nil, nil
	}

	covered := map[string]bool{}
	for _, j := range q.Joins {
		if !j.Declared {
			continue
		}
		for _, name := range relationNames(q, j) {
			covered[name] = true
		}
	}

	var out []types.Diagnostic
	seen := map[string]bool{}
	for _, path := range usage.Dereferences {
		rel := strings.ToLower(strings.TrimSpace(path))
		if head, _, found := strings.Cut(rel, "."); found {
			rel = head
		}
		if rel == "" || covered[rel] || seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, types.Diagnostic{
			Severity: types.SeverityHigh,
			Code:     types.AnalyzerNPlusOne,
			Title:    "Possible N+1 query",
			Content:  fmt.Sprintf("the result is iterated and %q is dereferenced per row without a declared join or eager load; each row will issue its own query", rel),
			Relation: rel,
		})
	}
	return out, nil
}
