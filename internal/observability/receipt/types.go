// Package receipt writes an audit record for each vorn command run.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt is one command run. It contains counts and identifiers only,
// never row values.
type Receipt struct {
	SchemaVersion string             `json:"schema_version"`
	OpID          string             `json:"op_id"`
	TsStart       string             `json:"ts_start"`
	TsEnd         string             `json:"ts_end"`
	Command       string             `json:"command"`
	Args          []string           `json:"args"`
	ArgsRedacted  bool               `json:"args_redacted,omitempty"`
	Result        Result             `json:"result"`
	Input         *InputRef          `json:"input,omitempty"`
	Compliance    *ComplianceSummary `json:"compliance,omitempty"`
	Policy        *PolicySummary     `json:"policy,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// InputRef identifies the evaluated file by digest.
type InputRef struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

// ComplianceSummary is the file-level outcome.
type ComplianceSummary struct {
	CatalogVersion   string      `json:"catalog_version,omitempty"`
	TotalRows        int         `json:"total_rows"`
	NonCompliantRows int         `json:"non_compliant_rows"`
	ComplianceScore  int         `json:"compliance_score"`
	RulesFired       []RuleCount `json:"rules_fired,omitempty"`
}

// RuleCount is a rule that fired on at least one row.
type RuleCount struct {
	RuleID       string `json:"rule_id"`
	AffectedRows int    `json:"affected_rows"`
}

// PolicySummary detail
type PolicySummary struct {
	Name     string    `json:"name,omitempty"`
	Preset   string    `json:"preset,omitempty"` // baseline|strict|custom
	Status   string    `json:"status"`           // pass|warn|fail
	RulesHit []RuleHit `json:"rules_hit,omitempty"`
}

// RuleHit detail
type RuleHit struct {
	Name        string   `json:"name"`
	Severity    string   `json:"severity"` // warn|error
	ControlRefs []string `json:"control_refs,omitempty"`
}
