package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability/receipt"
)

const (
	csvWithCVV = "pan,cvv,cardholder_name,channel,log_message\n" +
		"4111111111111111,123,John Doe,http,charged 4111111111111111\n"
	csvNoCVV = "pan,channel,merchant_id\n" +
		"4111111111111111,https,m1\n"
)

// resetCommand restores flag defaults and drops contexts left by earlier runs.
func resetCommand(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	cmd.SetContext(context.Background())
	for _, c := range cmd.Commands() {
		resetCommand(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommand(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	runCleanups()
	return out.String(), err
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestScanCommand_JSON(t *testing.T) {
	path := writeCSV(t, csvWithCVV)

	out, err := execute(t, "scan", path)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if strings.Contains(out, "4111111111111111") {
		t.Fatalf("scan output leaks the PAN: %s", out)
	}
	if strings.Contains(out, `"123"`) {
		t.Fatalf("scan output leaks the CVV: %s", out)
	}

	var res models.FileResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a FileResult: %v\n%s", err, out)
	}
	if res.Filename != "cards.csv" || res.TotalRows != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := models.Deref(res.Rows[0].PanMasked); got != "XXXX-XXXX-XXXX-1111" {
		t.Errorf("pan_masked = %q", got)
	}
}

func TestScanCommand_Text(t *testing.T) {
	path := writeCSV(t, csvWithCVV)

	out, err := execute(t, "scan", path, "--format", "text")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "cards.csv: score 0") || !strings.Contains(out, "RULE_PCI_002_NO_CVV_STORAGE") {
		t.Errorf("text output = %s", out)
	}
}

func TestScanCommand_Errors(t *testing.T) {
	empty := writeCSV(t, "pan,cvv\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"scan", "/nonexistent/file.csv"}},
		{"empty dataset", []string{"scan", empty}},
		{"bad format", []string{"scan", empty, "--format", "xml"}},
		{"row limit", []string{"scan", writeCSV(t, csvNoCVV+"4012888888881881,https,m2\n"), "--max-rows", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

func TestCheckCommand(t *testing.T) {
	t.Run("baseline fails on cvv", func(t *testing.T) {
		out, err := execute(t, "check", writeCSV(t, csvWithCVV), "--format", "json")
		if !errors.Is(err, errGateFailed) {
			t.Fatalf("err = %v, want errGateFailed", err)
		}
		var res CheckResult
		if jsonErr := json.Unmarshal([]byte(out), &res); jsonErr != nil {
			t.Fatalf("output is not a CheckResult: %v\n%s", jsonErr, out)
		}
		if res.Outcome != OutcomeFail || res.Policy.Preset != "baseline" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("baseline passes without cvv", func(t *testing.T) {
		out, err := execute(t, "check", writeCSV(t, csvNoCVV))
		if err != nil {
			t.Fatalf("check: %v\n%s", err, out)
		}
		if strings.Contains(out, "vorn check: FAIL") {
			t.Errorf("unexpected failure: %s", out)
		}
	})

	t.Run("strict fails", func(t *testing.T) {
		_, err := execute(t, "check", writeCSV(t, csvNoCVV), "--preset", "strict")
		if !errors.Is(err, errGateFailed) {
			t.Errorf("err = %v, want errGateFailed", err)
		}
	})

	t.Run("custom policy file", func(t *testing.T) {
		policyPath := filepath.Join(t.TempDir(), "policy.yaml")
		policyYAML := "name: rows\nrules:\n  - name: has_rows\n    expr: 'input.total_rows > 0'\n    failure_msg: empty\n"
		if err := os.WriteFile(policyPath, []byte(policyYAML), 0o600); err != nil {
			t.Fatal(err)
		}
		out, err := execute(t, "check", writeCSV(t, csvWithCVV), "--policy", policyPath)
		if err != nil {
			t.Fatalf("check: %v\n%s", err, out)
		}
		if !strings.Contains(out, "vorn check: PASS") || !strings.Contains(out, "policy=custom") {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("broken policy", func(t *testing.T) {
		policyPath := filepath.Join(t.TempDir(), "policy.yaml")
		policyYAML := "name: broken\nrules:\n  - name: bad\n    expr: 'input.total_rows >'\n    failure_msg: x\n"
		if err := os.WriteFile(policyPath, []byte(policyYAML), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := execute(t, "check", writeCSV(t, csvWithCVV), "--policy", policyPath)
		if err == nil || errors.Is(err, errGateFailed) {
			t.Errorf("err = %v, want a compile error", err)
		}
	})
}

func TestScanCommand_WritesReceipt(t *testing.T) {
	path := writeCSV(t, csvWithCVV)
	receiptPath := filepath.Join(t.TempDir(), "receipt.json")

	if _, err := execute(t, "--receipt", receiptPath, "scan", path); err != nil {
		t.Fatalf("scan: %v", err)
	}

	data, err := os.ReadFile(receiptPath)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	if strings.Contains(string(data), "4111111111111111") {
		t.Fatalf("receipt leaks the PAN: %s", data)
	}
	var r receipt.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("receipt is not JSON: %v", err)
	}
	if r.Command != "vorn scan" || r.Result.Status != "success" || r.OpID == "" {
		t.Errorf("receipt = %+v", r)
	}
	if r.Compliance == nil || r.Compliance.TotalRows != 1 || r.Compliance.NonCompliantRows != 1 {
		t.Errorf("compliance = %+v", r.Compliance)
	}
	if r.Input == nil || r.Input.SHA256 == "" {
		t.Errorf("input = %+v", r.Input)
	}
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "rules", "--format", "json")
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	var body struct {
		Version string        `json:"version"`
		Rules   []models.Rule `json:"rules"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rules) != 11 {
		t.Errorf("got %d rules, want 11", len(body.Rules))
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "vorn ") {
		t.Errorf("output = %q", out)
	}
}
