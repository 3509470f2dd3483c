package models

// PolicyMode decides whether warn-severity failures fail the gate
type PolicyMode string

const (
	PolicyModeWarn   PolicyMode = "warn"
	PolicyModeStrict PolicyMode = "strict"
)

// PolicySeverity of a gate rule
type PolicySeverity string

const (
	PolicySeverityWarn  PolicySeverity = "warn"
	PolicySeverityError PolicySeverity = "error"
)

// PolicyConfig from yaml
type PolicyConfig struct {
	Name  string       `yaml:"name" json:"name"`
	Mode  PolicyMode   `yaml:"mode,omitempty" json:"mode,omitempty"`
	Rules []PolicyRule `yaml:"rules" json:"rules"`
}

// PolicyRule cel rule over a file result
type PolicyRule struct {
	Name        string         `yaml:"name" json:"name"`
	Expr        string         `yaml:"expr" json:"expr"`
	FailureMsg  string         `yaml:"failure_msg" json:"failure_msg"`
	Severity    PolicySeverity `yaml:"severity,omitempty" json:"severity,omitempty"`
	ControlRefs []string       `yaml:"control_refs,omitempty" json:"control_refs,omitempty"`
}

// PolicyResult eval result
type PolicyResult struct {
	RuleName    string         `json:"rule"`
	Passed      bool           `json:"passed"`
	FailureMsg  string         `json:"failure_msg,omitempty"`
	Severity    PolicySeverity `json:"severity"`
	ControlRefs []string       `json:"control_refs,omitempty"`
}
