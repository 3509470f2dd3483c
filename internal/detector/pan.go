// Package detector finds card data and personal data in row records.
package detector

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/vorn/vorn/internal/models"
)

// RedactionMarker replaces Luhn-valid card numbers found in free text.
const RedactionMarker = "[REDACTED]"

const (
	minPANLength = 13
	maxPANLength = 19
)

// Scheme of a pan-like value
type Scheme string

const (
	SchemeVisa    Scheme = "VISA"
	SchemeOther   Scheme = "OTHER"
	SchemeUnknown Scheme = "UNKNOWN"
)

// PANAnalysis is the once-per-row card data context shared by rule predicates.
type PANAnalysis struct {
	HasCardData      bool   `json:"has_card_data"`
	PANValid         bool   `json:"pan_valid"`
	Scheme           Scheme `json:"scheme"`
	PANPresentInLogs bool   `json:"pan_present_in_logs"`
}

// PANFields are the derived card fields written to a RowOutput. All nil
// when the input pan is not pan-like.
type PANFields struct {
	Token  *string
	Last4  *string
	Masked *string
}

var (
	digitRunRe      = regexp.MustCompile(`\d{13,19}`)
	canonicalMaskRe = regexp.MustCompile(`^(XXXX-)+\d{4}$`)
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PANDetector validates, classifies, masks and tokenizes card numbers.
// It holds no state and is safe for concurrent use.
type PANDetector struct {
	// random draws token filler; swappable in tests
	random func(n int) int
}

func NewPANDetector() *PANDetector {
	return &PANDetector{random: rand.Intn}
}

// Digits strips every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// IsPANLike reports whether the digit-only form has 13 to 19 digits.
func IsPANLike(value string) bool {
	n := len(Digits(value))
	return n >= minPANLength && n <= maxPANLength
}

// LuhnCheck validates the mod-10 checksum of the digits in s. Doubling
// starts at the second digit from the right.
func LuhnCheck(s string) bool {
	digits := Digits(s)
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// IsCanonicalMask reports whether masked is one or more "XXXX-" groups followed by four digits.
func IsCanonicalMask(masked string) bool {
	return canonicalMaskRe.MatchString(masked)
}

// MaskFromLast4 renders ceil((length-4)/4) groups of XXXX followed by last4.
func MaskFromLast4(last4 string, length int) string {
	groups := 0
	if length > 4 {
		groups = (length - 4 + 3) / 4
	}
	parts := make([]string, 0, groups+1)
	for i := 0; i < groups; i++ {
		parts = append(parts, "XXXX")
	}
	parts = append(parts, last4)
	return strings.Join(parts, "-")
}

// Analyse inspects the pan and log_message fields of row.
func (d *PANDetector) Analyse(row models.RowInput) PANAnalysis {
	digits := Digits(row.String(models.FieldPAN))
	a := PANAnalysis{Scheme: SchemeUnknown}

	if len(digits) >= minPANLength && len(digits) <= maxPANLength {
		a.HasCardData = true
		a.PANValid = LuhnCheck(digits)
		a.Scheme = SchemeOther
		if strings.HasPrefix(digits, "4") {
			a.Scheme = SchemeVisa
		}
	}

	for _, run := range digitRunRe.FindAllString(row.String(models.FieldLogMessage), -1) {
		if LuhnCheck(run) {
			a.PANPresentInLogs = true
			break
		}
	}
	return a
}

// Transform derives last4, mask and token without ever copying the raw pan.
// The token is a display artifact only: it is random, never reproducible,
// and is only issued for Luhn-valid Visa numbers.
func (d *PANDetector) Transform(row models.RowInput) PANFields {
	digits := Digits(row.String(models.FieldPAN))
	if len(digits) < minPANLength || len(digits) > maxPANLength {
		return PANFields{}
	}

	last4 := digits[len(digits)-4:]
	fields := PANFields{
		Last4:  models.StringPtr(last4),
		Masked: models.StringPtr(MaskFromLast4(last4, len(digits))),
	}
	if LuhnCheck(digits) && strings.HasPrefix(digits, "4") {
		fields.Token = models.StringPtr("V4" + d.randomAlnum(2) + "-" + d.randomAlnum(8) + "-" + last4)
	}
	return fields
}

// RedactText replaces every 13-19 digit run that passes Luhn with
// RedactionMarker. Runs failing Luhn are left as they are.
func (d *PANDetector) RedactText(text string) string {
	return digitRunRe.ReplaceAllStringFunc(text, func(run string) string {
		if LuhnCheck(run) {
			return RedactionMarker
		}
		return run
	})
}

func (d *PANDetector) randomAlnum(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[d.random(len(tokenAlphabet))]
	}
	return string(b)
}
