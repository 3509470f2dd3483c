package detector

import (
	"regexp"
	"strings"

	"github.com/vorn/vorn/internal/models"
)

var (
	fullNameRe = regexp.MustCompile(`\b[A-Za-z]+\s+[A-Za-z]+\b`)
	emailRe    = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	// A bare card number also matches this; the two detectors are independent.
	phoneRe = regexp.MustCompile(`(?:\+?\d[\d\-(). ]{5,}\d)`)
)

// PIIAnalysis is the once-per-row personal data context.
type PIIAnalysis struct {
	HasPII      bool `json:"has_pii"`
	HasFullName bool `json:"has_full_name"`
	HasEmail    bool `json:"has_email"`
	HasPhone    bool `json:"has_phone"`
}

// PIIDetector flags names, emails and phone numbers and pseudonymizes names.
type PIIDetector struct{}

func NewPIIDetector() *PIIDetector {
	return &PIIDetector{}
}

// Analyse checks cardholder_name for a two-word name and every field value
// for emails and phone numbers.
func (d *PIIDetector) Analyse(row models.RowInput) PIIAnalysis {
	var a PIIAnalysis
	a.HasFullName = fullNameRe.MatchString(row.String(models.FieldCardholderName))

	for key := range row {
		s := row.String(key)
		if s == "" {
			continue
		}
		if !a.HasEmail && emailRe.MatchString(s) {
			a.HasEmail = true
		}
		if !a.HasPhone && phoneRe.MatchString(s) {
			a.HasPhone = true
		}
		if a.HasEmail && a.HasPhone {
			break
		}
	}
	a.HasPII = a.HasFullName || a.HasEmail || a.HasPhone
	return a
}

// Pseudonymize reduces a name to an initial and surname. A single token
// keeps its first character with the remainder starred; tokens of one or
// two characters are returned as is. Blank input yields nil.
func (d *PIIDetector) Pseudonymize(name string) *string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return nil
	case 1:
		r := []rune(parts[0])
		if len(r) <= 2 {
			return models.StringPtr(parts[0])
		}
		return models.StringPtr(string(r[0]) + strings.Repeat("*", len(r)-1))
	default:
		first := []rune(parts[0])
		return models.StringPtr(string(first[0]) + ". " + parts[len(parts)-1])
	}
}
