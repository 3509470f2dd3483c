package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability"
)

func readReceipt(t *testing.T, path string) Receipt {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}
	var parsed Receipt
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\nContent: %s", err, data)
	}
	return parsed
}

func TestWriterOverwrite_WritesValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")

	w, err := NewWriter(path, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          "test-op-id-123",
		Command:       "vorn scan",
		Args:          []string{"transactions.csv"},
		Result:        Result{Status: "success"},
	}
	if err := w.Write(r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	parsed := readReceipt(t, path)
	if parsed.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q, want %q", parsed.SchemaVersion, "1.0")
	}
	if parsed.OpID != "test-op-id-123" {
		t.Errorf("op_id = %q, want %q", parsed.OpID, "test-op-id-123")
	}
}

func TestWriterAppend_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.jsonl")

	w, err := NewWriter(path, "append")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, id := range []string{"op-1", "op-2"} {
		if err := w.Write(Receipt{SchemaVersion: ReceiptSchemaVersion, OpID: id, Command: "vorn scan"}); err != nil {
			t.Fatalf("Write %s failed: %v", id, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, want := range []string{"op-1", "op-2"} {
		var parsed Receipt
		if err := json.Unmarshal([]byte(lines[i]), &parsed); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i+1, err)
		}
		if parsed.OpID != want {
			t.Errorf("line %d op_id = %q, want %q", i+1, parsed.OpID, want)
		}
	}
}

func TestSessionFinish_InputAndCompliance(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "upload.csv")
	content := []byte("pan\n4111111111111111\n")
	if err := os.WriteFile(input, content, 0644); err != nil {
		t.Fatal(err)
	}
	wantDigest, err := func() (string, error) { _, h, err := digestFile(input); return h, err }()
	if err != nil {
		t.Fatal(err)
	}

	receiptPath := filepath.Join(dir, "receipt.json")
	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatal(err)
	}
	ctx := WithWriter(observability.WithOpID(context.Background()), w)

	res := &models.FileResult{
		TotalRows:       2,
		ComplianceScore: 50,
		Rows:            []models.RowOutput{{RowCompliant: true}, {RowCompliant: false}},
		RulesSummary: []models.RuleSummary{
			{RuleID: "RULE_PCI_001_NO_FULL_PAN_STORAGE", AffectedRows: 1},
			{RuleID: "RULE_PCI_002_NO_CVV_STORAGE", AffectedRows: 0},
		},
	}
	sess := Start(ctx, "vorn scan", []string{input})
	if err := sess.Finish(nil, WithInput(input), WithCompliance(res, "2024.1")); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	_ = w.Close()

	parsed := readReceipt(t, receiptPath)
	if parsed.OpID == "" {
		t.Error("op_id is empty")
	}
	if parsed.Input == nil || parsed.Input.SHA256 != wantDigest || parsed.Input.Bytes != int64(len(content)) {
		t.Errorf("input = %+v, want sha256 %s", parsed.Input, wantDigest)
	}
	c := parsed.Compliance
	if c == nil {
		t.Fatal("compliance is nil")
	}
	if c.TotalRows != 2 || c.NonCompliantRows != 1 || c.ComplianceScore != 50 || c.CatalogVersion != "2024.1" {
		t.Errorf("compliance = %+v", c)
	}
	if len(c.RulesFired) != 1 || c.RulesFired[0].RuleID != "RULE_PCI_001_NO_FULL_PAN_STORAGE" {
		t.Errorf("rules_fired = %+v", c.RulesFired)
	}
}

func TestSessionFinish_RedactsErrorText(t *testing.T) {
	receiptPath := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatal(err)
	}
	ctx := WithWriter(context.Background(), w)

	sess := Start(ctx, "vorn scan", []string{"4111111111111111"})
	if err := sess.Finish(errors.New("row 3: bad value 4111111111111111")); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	data, _ := os.ReadFile(receiptPath)
	if strings.Contains(string(data), "4111111111111111") {
		t.Errorf("receipt leaks card number: %s", data)
	}
	parsed := readReceipt(t, receiptPath)
	if parsed.Result.Status != "fail" || !parsed.ArgsRedacted {
		t.Errorf("result = %+v, args_redacted = %v", parsed.Result, parsed.ArgsRedacted)
	}
}

func TestErrorTruncation(t *testing.T) {
	receiptPath := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(receiptPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ctx := WithWriter(observability.WithOpID(context.Background()), w)

	sess := Start(ctx, "vorn scan", nil)
	if err := sess.Finish(fmt.Errorf("error: %s", strings.Repeat("x", 5000))); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	_ = w.Close()

	parsed := readReceipt(t, receiptPath)
	if len(parsed.Result.Error) > MaxErrorLength {
		t.Errorf("error length = %d, want <= %d", len(parsed.Result.Error), MaxErrorLength)
	}
	if len(parsed.Result.Error) < MaxErrorLength-10 {
		t.Errorf("error should be truncated to near MaxErrorLength, got %d", len(parsed.Result.Error))
	}
}

func TestSessionFinish_NoWriter(t *testing.T) {
	if err := Start(context.Background(), "vorn rules", nil).Finish(nil); err != nil {
		t.Errorf("Finish without writer = %v, want nil", err)
	}
}

func TestContextWithWriter(t *testing.T) {
	ctx := context.Background()
	if w := From(ctx); w != nil {
		t.Error("From should return nil when no writer set")
	}

	writer, err := NewWriter(filepath.Join(t.TempDir(), "receipt.json"), "overwrite")
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	ctx = WithWriter(ctx, writer)

	if w := From(ctx); w != writer {
		t.Error("From should return the writer stored in context")
	}
}

func TestWriterCreatesDirectories(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "a", "b", "c", "receipt.json")

	w, err := NewWriter(nestedPath, "overwrite")
	if err != nil {
		t.Fatalf("NewWriter should create nested directories: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(filepath.Dir(nestedPath)); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
}
