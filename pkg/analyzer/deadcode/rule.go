package deadcode

import (
	"github.com/panbanda/ilscan/pkg/metadata"
	"github.com/panbanda/ilscan/pkg/rule"
)

// RuleName is the name AvoidUncalledPrivateCode registers under.
const RuleName = "AvoidUncalledPrivateCode"

// AvoidUncalledPrivateCode reports private and internal methods that
// nothing in the analyzed code calls.
type AvoidUncalledPrivateCode struct{}

// NewRule returns the rule.
func NewRule() *AvoidUncalledPrivateCode {
	return &AvoidUncalledPrivateCode{}
}

func (*AvoidUncalledPrivateCode) Name() string { return RuleName }

func (*AvoidUncalledPrivateCode) Description() string {
	return "Private and internal methods that are never called add size and maintenance cost."
}

// CheckMethod implements rule.MethodRule.
func (*AvoidUncalledPrivateCode) CheckMethod(c *rule.Context, m *metadata.Method) (rule.Outcome, error) {
	v := Classify(c.Usage(), m)
	switch v.Status {
	case StatusNotApplicable:
		return rule.NotApplicable, nil
	case StatusUnreachable:
		c.Report(m, rule.SeverityHigh, rule.ConfidenceNormal, v.Message())
		return rule.Failure, nil
	}
	return rule.Success, nil
}
