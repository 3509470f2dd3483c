// Package explain produces human-readable accounts of what the rule engine
// did to a row. Inputs are redacted before they leave the process.
package explain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/vorn/vorn/internal/detector"
	"github.com/vorn/vorn/internal/models"
)

// Where an explanation came from.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// redactedFields are replaced wholesale before a row is shown to anyone.
var redactedFields = []string{
	models.FieldPAN,
	models.FieldLogMessage,
	models.FieldCVV,
	models.FieldCVV2,
}

// Request is the redacted before/after pair for one row.
type Request struct {
	Before     models.RowInput  `json:"before"`
	After      models.RowOutput `json:"after"`
	FiredRules []string         `json:"fired_rules"`
}

// Response is an explanation of one row.
type Response struct {
	Explanation     string         `json:"explanation"`
	RulesReferenced []string       `json:"rules_referenced"`
	Source          string         `json:"source"`
	Changes         jsondiff.Patch `json:"changes,omitempty"`
	ChangeSummary   []string       `json:"change_summary,omitempty"`
}

// NewRequest copies before with card data replaced by the redaction marker.
// Card numbers embedded in any other text column are redacted too.
func NewRequest(before models.RowInput, after models.RowOutput) Request {
	pan := detector.NewPANDetector()

	safe := make(models.RowInput, len(before))
	for k, v := range before {
		if s, ok := v.(string); ok {
			safe[k] = pan.RedactText(s)
			continue
		}
		safe[k] = v
	}
	for _, f := range redactedFields {
		if before.Has(f) {
			safe[f] = detector.RedactionMarker
		}
	}

	fired := make([]string, len(after.FiredRules))
	copy(fired, after.FiredRules)

	return Request{Before: safe, After: after, FiredRules: fired}
}

// BuildPrompt renders req as instructions for a language model.
func BuildPrompt(req Request) (string, error) {
	before, err := marshalIndent(req.Before)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}
	after, err := marshalIndent(req.After)
	if err != nil {
		return "", fmt.Errorf("marshal output: %w", err)
	}
	fired, err := json.Marshal(nonNil(req.FiredRules))
	if err != nil {
		return "", fmt.Errorf("marshal fired rules: %w", err)
	}

	parts := []string{
		"You are given an input row and the processed output.",
		"Do NOT include or echo raw PAN or other raw PII.",
		"Input:",
		before,
		"Output:",
		after,
		"Fired rules: " + string(fired),
		"Provide a concise explanation of what changed and why, referencing rule IDs.",
	}
	return strings.Join(parts, "\n\n"), nil
}

// Fallback is the deterministic explanation used when no model answers.
func Fallback(req Request) Response {
	lines := []string{"Processed the row and applied automated compliance fixes."}
	if len(req.FiredRules) > 0 {
		lines = append(lines,
			"Triggered rules: "+strings.Join(req.FiredRules, ", ")+".",
			"Fixes were applied where possible (masking, pseudonymization, defaults).",
		)
	} else {
		lines = append(lines, "No rules were triggered.")
	}
	return Response{
		Explanation:     strings.Join(lines, " "),
		RulesReferenced: nonNil(req.FiredRules),
		Source:          SourceFallback,
	}
}

// Changes is the JSON patch turning the redacted input into the output.
func Changes(req Request) (jsondiff.Patch, error) {
	patch, err := jsondiff.Compare(req.Before, req.After)
	if err != nil {
		return nil, fmt.Errorf("compare row: %w", err)
	}
	return patch, nil
}

func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
