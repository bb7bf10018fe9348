package learning

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"btc-predictor/internal/model"
)

// MinSupport is the smallest learning group that can back a meta-rule.
const MinSupport = 2

// Analyzer mines accumulated learnings for recurring patterns. Grouping is
// by the banded condition string, so the same learning set always produces
// the same groups in the same order.
type Analyzer struct{}

// NewAnalyzer constructs a meta-rule analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze groups learnings by condition and emits one candidate meta-rule per
// group with at least MinSupport members. The input is never mutated; callers
// deduplicate against previously stored rules via SupportKey.
func (a *Analyzer) Analyze(learnings []model.Learning, now time.Time) []model.MetaRule {
	groups := make(map[string][]model.Learning)
	for _, l := range learnings {
		groups[l.Condition] = append(groups[l.Condition], l)
	}

	conditions := make([]string, 0, len(groups))
	for condition, members := range groups {
		if len(members) >= MinSupport {
			conditions = append(conditions, condition)
		}
	}
	sort.Strings(conditions)

	rules := make([]model.MetaRule, 0, len(conditions))
	for _, condition := range conditions {
		members := groups[condition]
		ids := make([]string, 0, len(members))
		timeframe := members[0].Timeframe
		for _, l := range members {
			ids = append(ids, l.ID)
		}
		sort.Strings(ids)

		rules = append(rules, model.MetaRule{
			ID:         uuid.NewString(),
			Timeframe:  timeframe,
			SupportIDs: ids,
			Pattern:    pattern(condition, members),
			CreatedAt:  now.UTC(),
		})
	}
	return rules
}

func pattern(condition string, members []model.Learning) string {
	kind := members[0].Kind
	verb := "reliably repeats"
	if kind == model.LearningCaution {
		verb = "keeps failing"
	}
	return fmt.Sprintf("Pattern %s across %d learnings: the setup [%s]. %s",
		verb, len(members), condition, members[0].Guidance)
}
