package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vorn/vorn/internal/catalog"
	"github.com/vorn/vorn/internal/compliance"
	"github.com/vorn/vorn/internal/models"
)

// fileResult builds a result whose rows fired the given rule ids.
func fileResult(t *testing.T, rows ...[]string) *models.FileResult {
	t.Helper()
	cat := catalog.MustDefault()
	out := make([]models.RowOutput, len(rows))
	for i, ids := range rows {
		out[i].FiredRules = ids
		out[i].RowCompliant = true
		for _, id := range ids {
			if r, _ := cat.Lookup(id); r.Severity == models.SeverityCritical {
				out[i].RowCompliant = false
			}
		}
	}
	return &models.FileResult{
		Filename:        "tx.csv",
		TotalRows:       len(out),
		Rows:            out,
		ComplianceScore: compliance.ComputeFileScore(out),
		RulesSummary:    compliance.SummarizeRules(out, cat.Rules()),
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func TestEvaluate_InputFields(t *testing.T) {
	e := newEngine(t)
	res := fileResult(t,
		[]string{catalog.NoFullPANStorage, catalog.SecureChannelRequired},
		[]string{catalog.RetentionPolicy},
	)

	config := &models.PolicyConfig{
		Name: "fields",
		Rules: []models.PolicyRule{
			{Name: "filename", Expr: `input.filename == "tx.csv"`},
			{Name: "total_rows", Expr: `input.total_rows == 2`},
			{Name: "score", Expr: `input.compliance_score == 50`},
			{Name: "non_compliant", Expr: `input.rows_non_compliant == 1`},
			{Name: "fired", Expr: `input.fired["RULE_PCI_004_SECURE_CHANNEL_REQUIRED"] == 1`},
			{Name: "rules_size", Expr: `size(input.rules) == 11`},
			{Name: "severity", Expr: `input.rules.exists(r, r.rule_id == "RULE_PCI_001_NO_FULL_PAN_STORAGE" && r.severity == "CRITICAL" && r.status == "PARTIAL")`},
			{Name: "category", Expr: `input.rules.filter(r, r.category == "ORG").size() == 3`},
		},
	}

	for _, r := range e.Evaluate(config, res, catalog.MustDefault()) {
		if !r.Passed {
			t.Errorf("rule %q failed: %s", r.RuleName, r.FailureMsg)
		}
	}
}

func TestEvaluate_BrokenExpressions(t *testing.T) {
	e := newEngine(t)
	config := &models.PolicyConfig{
		Rules: []models.PolicyRule{
			{Name: "compile", Expr: `input.total_rows >`},
			{Name: "eval", Expr: `input.missing_field == 1`},
			{Name: "type", Expr: `input.total_rows`},
		},
	}

	results := e.Evaluate(config, fileResult(t, nil), catalog.MustDefault())
	wantPrefix := map[string]string{
		"compile": "CEL compile error",
		"eval":    "CEL evaluation error",
		"type":    "Rule expression must return boolean",
	}
	for _, r := range results {
		if r.Passed {
			t.Errorf("rule %q passed", r.RuleName)
		}
		if !strings.HasPrefix(r.FailureMsg, wantPrefix[r.RuleName]) {
			t.Errorf("rule %q failure = %q, want prefix %q", r.RuleName, r.FailureMsg, wantPrefix[r.RuleName])
		}
		if r.Severity != models.PolicySeverityError {
			t.Errorf("rule %q severity = %q, want error", r.RuleName, r.Severity)
		}
	}
}

func TestPresets_AgainstResults(t *testing.T) {
	e := newEngine(t)
	cat := catalog.MustDefault()

	clean := fileResult(t, []string{catalog.AuditTrailRequired}, nil)
	cvv := fileResult(t, []string{catalog.NoCVVStorage, catalog.NoFullPANStorage}, nil)
	logs := fileResult(t, []string{catalog.NoPANInLogs}, nil)

	tests := []struct {
		preset string
		res    *models.FileResult
		want   string
	}{
		{"baseline", clean, StatusPass},
		{"baseline", cvv, StatusFail},
		{"baseline", logs, StatusWarn},
		{"strict", clean, StatusPass},
		{"strict", logs, StatusPass},
		{"strict", cvv, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			config := MustGetPreset(tt.preset)
			results := e.Evaluate(config, tt.res, cat)
			if got := Verdict(config, results); got != tt.want {
				t.Errorf("Verdict() = %q, want %q (results %+v)", got, tt.want, results)
			}
		})
	}
}

func TestVerdict(t *testing.T) {
	warnFail := []models.PolicyResult{
		{RuleName: "a", Passed: true, Severity: models.PolicySeverityError},
		{RuleName: "b", Passed: false, Severity: models.PolicySeverityWarn},
	}
	errFail := []models.PolicyResult{{RuleName: "c", Passed: false, Severity: models.PolicySeverityError}}

	tests := []struct {
		name    string
		mode    models.PolicyMode
		results []models.PolicyResult
		want    string
	}{
		{"warn mode warn failure", models.PolicyModeWarn, warnFail, StatusWarn},
		{"strict mode warn failure", models.PolicyModeStrict, warnFail, StatusFail},
		{"error failure", models.PolicyModeWarn, errFail, StatusFail},
		{"nothing failed", models.PolicyModeStrict, nil, StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verdict(&models.PolicyConfig{Mode: tt.mode}, tt.results); got != tt.want {
				t.Errorf("Verdict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompileAndValidate(t *testing.T) {
	e := newEngine(t)
	for _, name := range ListPresetNames() {
		if err := e.CompileAndValidate(MustGetPreset(name)); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}

	bad := &models.PolicyConfig{Rules: []models.PolicyRule{
		{Name: "one", Expr: "1 +"},
		{Name: "two", Expr: "(("},
	}}
	err := e.CompileAndValidate(bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), `"one"`) || !strings.Contains(err.Error(), `"two"`) {
		t.Errorf("error should list every broken rule: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "name: custom\nrules:\n  - name: r\n    expr: 'input.total_rows > 0'\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if config.Name != "custom" || len(config.Rules) != 1 {
		t.Errorf("config = %+v", config)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
