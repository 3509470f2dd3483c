package policy

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/vorn/vorn/internal/catalog"
	"github.com/vorn/vorn/internal/models"
)

// Gate outcomes
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Engine is the policy evaluation engine using CEL
type Engine struct {
	env *cel.Env
}

func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// LoadFile reads a policy document from disk.
func LoadFile(path string) (*models.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse(data)
}

// Evaluate runs every policy rule against res. Broken expressions produce
// failed results rather than errors.
func (e *Engine) Evaluate(config *models.PolicyConfig, res *models.FileResult, cat *catalog.Catalog) []models.PolicyResult {
	input := fileResultToMap(res, cat)
	results := make([]models.PolicyResult, 0, len(config.Rules))
	for _, rule := range config.Rules {
		results = append(results, e.evaluateRule(rule, input))
	}
	return results
}

func (e *Engine) evaluateRule(rule models.PolicyRule, input map[string]interface{}) models.PolicyResult {
	failed := func(format string, args ...any) models.PolicyResult {
		return models.PolicyResult{
			RuleName:    rule.Name,
			Passed:      false,
			FailureMsg:  fmt.Sprintf(format, args...),
			Severity:    severityOf(rule),
			ControlRefs: rule.ControlRefs,
		}
	}

	ast, issues := e.env.Compile(rule.Expr)
	if issues != nil && issues.Err() != nil {
		return failed("CEL compile error: %v", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return failed("CEL program error: %v", err)
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"input": input,
	})
	if err != nil {
		return failed("CEL evaluation error: %v", err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return failed("Rule expression must return boolean, got %T", out.Value())
	}

	result := models.PolicyResult{
		RuleName:    rule.Name,
		Passed:      passed,
		Severity:    severityOf(rule),
		ControlRefs: rule.ControlRefs,
	}
	if !passed {
		result.FailureMsg = rule.FailureMsg
	}
	return result
}

func severityOf(rule models.PolicyRule) models.PolicySeverity {
	if rule.Severity == "" {
		return models.PolicySeverityError
	}
	return rule.Severity
}

// Verdict folds results into pass, warn or fail. In strict mode a failed
// warn rule fails the gate.
func Verdict(config *models.PolicyConfig, results []models.PolicyResult) string {
	status := StatusPass
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Severity == models.PolicySeverityError || config.Mode == models.PolicyModeStrict {
			return StatusFail
		}
		status = StatusWarn
	}
	return status
}

// fileResultToMap converts for CEL
func fileResultToMap(res *models.FileResult, cat *catalog.Catalog) map[string]interface{} {
	rules := make([]interface{}, 0, len(res.RulesSummary))
	fired := make(map[string]interface{}, len(res.RulesSummary))
	for _, s := range res.RulesSummary {
		entry := map[string]interface{}{
			"rule_id":       s.RuleID,
			"name":          s.Name,
			"affected_rows": s.AffectedRows,
			"status":        string(s.Status),
			"severity":      "",
			"category":      "",
		}
		if cat != nil {
			if r, ok := cat.Lookup(s.RuleID); ok {
				entry["severity"] = string(r.Severity)
				entry["category"] = string(r.Category)
			}
		}
		rules = append(rules, entry)
		fired[s.RuleID] = s.AffectedRows
	}

	return map[string]interface{}{
		"filename":           res.Filename,
		"total_rows":         res.TotalRows,
		"compliance_score":   res.ComplianceScore,
		"rows_non_compliant": res.NonCompliantRows(),
		"rules":              rules,
		"fired":              fired,
	}
}

// CompileAndValidate
func (e *Engine) CompileAndValidate(config *models.PolicyConfig) error {
	var errors []string

	for _, rule := range config.Rules {
		_, issues := e.env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			errors = append(errors, fmt.Sprintf("rule %q: %v", rule.Name, issues.Err()))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("policy validation failed:\n  %s", strings.Join(errors, "\n  "))
	}

	return nil
}
