package analyzer

import (
	"fmt"
	"strings"

	"github.com/nsxbet/querybridge/pkg/ir"
	"github.com/nsxbet/querybridge/pkg/types"
)

var _ Rule = (*CartesianProductRule)(nil)

func init() {
	Register(&CartesianProductRule{})
}

// CartesianProductRule flags joins whose condition fails to tie the joined
// table to the rows already in scope. Such a join multiplies rows instead of
// matching them: a condition that never mentions the join's own columns
// leaves the joined table unconstrained, and a later join that mentions none
// of the preceding tables floats free of them.
type CartesianProductRule struct{}

// Name returns the rule name.
func (*CartesianProductRule) Name() string {
	return "CartesianProductRule"
}

// Code returns the diagnostic code the rule reports under.
func (*CartesianProductRule) Code() types.Code {
	return types.AnalyzerCartesianProduct
}

// Check walks the joins in order, tracking the bindings in scope.
func (*CartesianProductRule) Check(checkCtx Context) ([]types.Diagnostic, error) {
	q := checkCtx.Query
	var out []types.Diagnostic
	preceding := map[string]bool{strings.ToLower(q.Source.Binding()): true}
	for i, j := range q.Joins {
		target := strings.ToLower(j.Target.Binding())
		if reason := cartesianReason(j, target, preceding, i); reason != "" {
			out = append(out, types.Diagnostic{
				Severity: types.SeverityHigh,
				Code:     types.AnalyzerCartesianProduct,
				Title:    "Cartesian product risk",
				Content:  fmt.Sprintf("joining %q multiplies rows: %s", j.Target.Name, reason),
			})
		}
		preceding[target] = true
	}
	return out, nil
}

func cartesianReason(j ir.Join, target string, preceding map[string]bool, position int) string {
	if j.Condition == nil {
		return "the join has no condition"
	}
	refsOwn := false
	refsPreceding := false
	for _, c := range ir.Columns(j.Condition) {
		t := strings.ToLower(c.Table)
		switch {
		case t == target:
			refsOwn = true
		case t == "" || preceding[t]:
			// unqualified columns resolve against the source
			refsPreceding = true
		}
	}
	if !refsOwn {
		return "the condition never references its own columns"
	}
	if position > 0 && !refsPreceding {
		return "the condition references none of the tables already in scope"
	}
	return ""
}
