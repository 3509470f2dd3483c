package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/policy"
)

// Gate outcomes
const (
	OutcomePass = "PASS"
	OutcomeWarn = "WARN"
	OutcomeFail = "FAIL"
)

// CheckResult output structure
type CheckResult struct {
	File             string                `json:"file"`
	TotalRows        int                   `json:"total_rows"`
	NonCompliantRows int                   `json:"non_compliant_rows"`
	ComplianceScore  int                   `json:"compliance_score"`
	Policy           PolicyDecision        `json:"policy"`
	Results          []models.PolicyResult `json:"results"`
	Outcome          string                `json:"outcome"`
}

// PolicyDecision names the gate that was applied.
type PolicyDecision struct {
	Name   string            `json:"name"`
	Preset string            `json:"preset"`
	Mode   models.PolicyMode `json:"mode"`
	Status string            `json:"status"`
}

// BuildCheckResult from components
func BuildCheckResult(res *models.FileResult, config *models.PolicyConfig, preset string, results []models.PolicyResult) *CheckResult {
	status := policy.Verdict(config, results)
	out := &CheckResult{
		File:             res.Filename,
		TotalRows:        res.TotalRows,
		NonCompliantRows: res.NonCompliantRows(),
		ComplianceScore:  res.ComplianceScore,
		Policy: PolicyDecision{
			Name:   config.Name,
			Preset: preset,
			Mode:   config.Mode,
			Status: status,
		},
		Results: results,
	}
	if out.Results == nil {
		out.Results = []models.PolicyResult{}
	}

	switch status {
	case policy.StatusFail:
		out.Outcome = OutcomeFail
	case policy.StatusWarn:
		out.Outcome = OutcomeWarn
	default:
		out.Outcome = OutcomePass
	}
	return out
}

// FormatCheckText human readable
func FormatCheckText(result *CheckResult) string {
	var sb strings.Builder

	color := colorGreen
	switch result.Outcome {
	case OutcomeFail:
		color = colorRed
	case OutcomeWarn:
		color = colorYellow
	}
	sb.WriteString(fmt.Sprintf("%svorn check: %s%s (policy=%s, mode=%s)\n",
		color, result.Outcome, colorReset, result.Policy.Preset, result.Policy.Mode))
	sb.WriteString(fmt.Sprintf("File: %s\n", result.File))
	sb.WriteString(fmt.Sprintf("Rows: %d (%d non-compliant)\n", result.TotalRows, result.NonCompliantRows))
	sb.WriteString(fmt.Sprintf("Score: %d\n\n", result.ComplianceScore))

	failed := 0
	for _, r := range result.Results {
		if !r.Passed {
			failed++
		}
	}
	if failed == 0 {
		sb.WriteString(fmt.Sprintf("%s✓ All %d policy rules passed%s\n", colorGreen, len(result.Results), colorReset))
		return sb.String()
	}

	for _, r := range result.Results {
		if r.Passed {
			continue
		}
		c := colorYellow
		if r.Severity == models.PolicySeverityError || result.Policy.Mode == models.PolicyModeStrict {
			c = colorRed
		}
		sb.WriteString(fmt.Sprintf("%s- [%s] %s: %s%s\n", c, r.Severity, r.RuleName, r.FailureMsg, colorReset))
		if len(r.ControlRefs) > 0 {
			sb.WriteString(fmt.Sprintf("    controls: %s\n", strings.Join(r.ControlRefs, ", ")))
		}
	}
	return sb.String()
}

// FormatScanText summarizes a processed file.
func FormatScanText(res *models.FileResult) string {
	var sb strings.Builder

	color := colorGreen
	if res.ComplianceScore < 100 {
		color = colorYellow
	}
	if res.NonCompliantRows() > 0 {
		color = colorRed
	}
	sb.WriteString(fmt.Sprintf("%s%s: score %d%s\n", color, res.Filename, res.ComplianceScore, colorReset))
	sb.WriteString(fmt.Sprintf("Rows: %d (%d non-compliant), %dms\n\n",
		res.TotalRows, res.NonCompliantRows(), res.ProcessingDurationMS))

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSTATUS\tROWS\tNAME")
	for _, s := range res.RulesSummary {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.RuleID, s.Status, s.AffectedRows, s.Name)
	}
	_ = tw.Flush()
	return sb.String()
}

// FormatRulesText lists catalog rules.
func FormatRulesText(version string, rules []models.Rule) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rule catalog %s (%d rules)\n\n", version, len(rules)))

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tCATEGORY\tNAME")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Severity, r.Category, r.Name)
	}
	_ = tw.Flush()
	return sb.String()
}

// FormatJSONOutput raw json
func FormatJSONOutput(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
