package digest

import (
	"context"
	"fmt"
	"strings"

	"makersclub-insights/services/insights"
)

// Section markers of the three-part report. Both strategies emit them so
// the presentation layer can split the text.
const (
	StateMarker          = "📊 **State:**"
	CriticalMarker       = "⚡ **Critical:**"
	RecommendationMarker = "💡 **Recommendation:**"
)

// Template is the deterministic fallback strategy. It always produces a
// non-empty three-section report, including for all-zero metrics.
type Template struct{}

func NewTemplate() *Template {
	return &Template{}
}

func (t *Template) Summarize(_ context.Context, m insights.Metrics, _ insights.ChartData) (string, error) {
	var lines []string

	lines = append(lines, fmt.Sprintf(
		"%s %d active subscribers, MRR %d. The club grew by +%d new members over the last week.",
		StateMarker, m.Active, m.MRR, m.NewThisWeek))

	switch {
	case m.FirstRenewalUpcoming > 0:
		lines = append(lines, fmt.Sprintf(
			"\n%s %d subscribers are approaching their first renewal. This is the first real retention test — don't lose them.",
			CriticalMarker, m.FirstRenewalUpcoming))
	case m.Churned > 0:
		lines = append(lines, fmt.Sprintf(
			"\n%s %d subscribers have already churned. Retention M1: %.1f%%.",
			CriticalMarker, m.Churned, m.RetentionM1))
	default:
		lines = append(lines, fmt.Sprintf(
			"\n%s All subscribers are still in their first month — churn hasn't started yet.",
			CriticalMarker))
	}

	lines = append(lines, fmt.Sprintf(
		"\n%s Prepare a value reminder for the first_renewal segment. A personal note from the curator lifts retention by 15-20%%.",
		RecommendationMarker))

	return strings.Join(lines, "\n"), nil
}
