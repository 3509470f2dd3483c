package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical column names recognised by the detectors and rules.
const (
	FieldPAN              = "pan"
	FieldCVV              = "cvv"
	FieldCVV2             = "cvv2"
	FieldCardholderName   = "cardholder_name"
	FieldMerchantID       = "merchant_id"
	FieldLogMessage       = "log_message"
	FieldChannel          = "channel"
	FieldRetentionDays    = "retention_days"
	FieldCustomerLocation = "customer_location"
	FieldConsentFlag      = "consent_flag"
	FieldPrivacyNoticeURL = "privacy_notice_url"
)

// RowInput is one parsed record keyed by canonical field name.
// Values are string, float64, bool or nil. Unknown columns are kept as-is.
type RowInput map[string]any

// Has reports whether key is present with a non-nil value.
func (r RowInput) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String renders the value for key as text; nil and missing keys yield "".
func (r RowInput) String(key string) string {
	return stringify(r[key])
}

// Truthy reports whether the value for key is set in the loose sense used by
// the rule predicates: non-empty strings, non-zero numbers and true.
func (r RowInput) Truthy(key string) bool {
	switch v := r[key].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

// Number returns the numeric value for key. Strings are parsed; anything
// else that is not a number reports false.
func (r RowInput) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		return ParseNumber(v)
	default:
		return 0, false
	}
}

// Flag interprets the value for key as a yes/no flag.
func (r RowInput) Flag(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		return ParseFlag(v)
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// ParseNumber parses trimmed text as a finite number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ParseFlag accepts the usual spellings of a true flag; everything else is false.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// RowOutput is the remediated view of a RowInput. It never carries a raw PAN or CVV.
type RowOutput struct {
	MerchantID       string `json:"merchant_id,omitempty"`
	Channel          string `json:"channel,omitempty"`
	CustomerLocation string `json:"customer_location,omitempty"`

	PanToken             *string `json:"pan_token"`
	PanLast4             *string `json:"pan_last4"`
	PanMasked            *string `json:"pan_masked"`
	LogMessageMasked     *string `json:"log_message_masked"`
	CardholderNameMasked *string `json:"cardholder_name_masked"`

	RetentionDays    float64 `json:"retention_days"`
	GDPRConsent      bool    `json:"gdpr_consent"`
	PrivacyNoticeURL string  `json:"privacy_notice_url"`

	FiredRules          []string `json:"fired_rules"`
	FixesApplied        []string `json:"fixes_applied"`
	RowCompliant        bool     `json:"row_compliant"`
	ComplianceWarnings  []string `json:"compliance_warnings"`
	ProcessingTimestamp string   `json:"processing_timestamp"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
