// Package compliance aggregates row verdicts into file-level results.
package compliance

import "github.com/vorn/vorn/internal/models"

// ComputeFileScore returns the share of compliant rows as a 0-100 integer,
// rounded half up. An empty set scores 100.
func ComputeFileScore(rows []models.RowOutput) int {
	n := len(rows)
	if n == 0 {
		return 100
	}
	k := 0
	for _, r := range rows {
		if r.RowCompliant {
			k++
		}
	}
	return (200*k + n) / (2 * n)
}

// SummarizeRules counts affected rows per rule. The result has one entry
// per catalog rule, in catalog order, whether or not it fired.
func SummarizeRules(rows []models.RowOutput, rules []models.Rule) []models.RuleSummary {
	summaries := make([]models.RuleSummary, len(rules))
	index := make(map[string]int, len(rules))
	for i, r := range rules {
		summaries[i] = models.RuleSummary{RuleID: r.ID, Name: r.Name, Status: models.RuleStatusPassed}
		index[r.ID] = i
	}

	for _, row := range rows {
		for _, id := range row.FiredRules {
			if i, ok := index[id]; ok {
				summaries[i].AffectedRows++
			}
		}
	}

	total := len(rows)
	for i := range summaries {
		summaries[i].Status = status(summaries[i].AffectedRows, total)
	}
	return summaries
}

func status(affected, total int) models.RuleStatus {
	switch {
	case affected == 0:
		return models.RuleStatusPassed
	case affected == total:
		return models.RuleStatusFailed
	default:
		return models.RuleStatusPartial
	}
}
