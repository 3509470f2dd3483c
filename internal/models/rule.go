package models

// Severity tier of a catalog rule. Only CRITICAL decides row compliance.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Valid reports whether s is one of the four tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Category groups rules by origin.
type Category string

const (
	CategoryPCI Category = "PCI"
	CategoryORG Category = "ORG"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryPCI || c == CategoryORG
}

// Rule is an immutable catalog entry. Optional parameters are only set for
// the rules that use them.
type Rule struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Severity     Severity `yaml:"severity" json:"severity"`
	Category     Category `yaml:"category" json:"category"`
	DefaultValue *float64 `yaml:"default_value,omitempty" json:"default_value,omitempty"`
	EULocations  []string `yaml:"eu_locations,omitempty" json:"eu_locations,omitempty"`
	DefaultURL   string   `yaml:"default_url,omitempty" json:"default_url,omitempty"`
}

// RuleStatus is the file-level outcome of a single rule.
type RuleStatus string

const (
	RuleStatusPassed  RuleStatus = "PASSED"
	RuleStatusPartial RuleStatus = "PARTIAL"
	RuleStatusFailed  RuleStatus = "FAILED"
)

// RuleSummary counts how many rows fired a rule.
type RuleSummary struct {
	RuleID       string     `json:"rule_id"`
	Name         string     `json:"name"`
	AffectedRows int        `json:"affected_rows"`
	Status       RuleStatus `json:"status"`
}

// FileResult is the outcome of evaluating one uploaded file.
type FileResult struct {
	Filename             string        `json:"filename"`
	TotalRows            int           `json:"total_rows"`
	Rows                 []RowOutput   `json:"rows"`
	ComplianceScore      int           `json:"compliance_score"`
	RulesSummary         []RuleSummary `json:"rules_summary"`
	ProcessingDurationMS int64         `json:"processing_duration_ms"`
	Error                string        `json:"error,omitempty"`
}

// NonCompliantRows counts rows with a fired CRITICAL rule.
func (f *FileResult) NonCompliantRows() int {
	n := 0
	for _, r := range f.Rows {
		if !r.RowCompliant {
			n++
		}
	}
	return n
}
