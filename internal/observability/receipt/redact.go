package receipt

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/vorn/vorn/internal/detector"
)

// sensitiveFlags are flag names whose values are always redacted.
var sensitiveFlags = map[string]bool{
	"token":           true,
	"password":        true,
	"secret":          true,
	"api-key":         true,
	"apikey":          true,
	"explain-api-key": true,
	"auth":            true,
	"bearer":          true,
	"database-url":    true,
	"dsn":             true,
	"cvv":             true,
	"pan":             true,
}

// sensitivePrefixes are value prefixes indicating secrets.
var sensitivePrefixes = []string{
	"sk-",    // OpenAI-compatible keys for the explainer
	"Bearer", // pasted auth headers
	"ghp_",
	"AKIA",
}

// jwtRegex matches JWT-like patterns (xxx.yyy.zzz where each part is base64-ish).
var jwtRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}$`)

var longSecretRegex = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{32,}$`)

const redactedValue = detector.RedactionMarker

var cardRedactor = detector.NewPANDetector()

// RedactText removes Luhn-valid card numbers from free text.
func RedactText(s string) string {
	return cardRedactor.RedactText(s)
}

// RedactArgs sanitizes CLI arguments by redacting sensitive values.
// Returns the redacted args and whether any redaction was applied.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}

	redacted := make([]string, len(args))
	wasRedacted := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// --flag=value
		if eqIdx := strings.Index(arg, "="); eqIdx > 0 && strings.HasPrefix(arg, "-") {
			flag := extractFlagName(arg[:eqIdx])
			value := arg[eqIdx+1:]

			if isSensitiveFlag(flag) || isSensitiveValue(value) {
				redacted[i] = arg[:eqIdx+1] + redactedValue
				wasRedacted = true
				continue
			}
			if clean, changed := redactEmbedded(value); changed {
				redacted[i] = arg[:eqIdx+1] + clean
				wasRedacted = true
				continue
			}
			redacted[i] = arg
			continue
		}

		// --flag value
		if strings.HasPrefix(arg, "-") {
			flag := extractFlagName(arg)
			if isSensitiveFlag(flag) && i+1 < len(args) {
				redacted[i] = arg
				i++
				redacted[i] = redactedValue
				wasRedacted = true
				continue
			}
		}

		if isSensitiveValue(arg) {
			redacted[i] = redactedValue
			wasRedacted = true
			continue
		}
		if clean, changed := redactEmbedded(arg); changed {
			redacted[i] = clean
			wasRedacted = true
			continue
		}

		redacted[i] = arg
	}

	return redacted, wasRedacted
}

// extractFlagName removes leading dashes and returns the flag name.
func extractFlagName(s string) string {
	s = strings.TrimPrefix(s, "--")
	s = strings.TrimPrefix(s, "-")
	return strings.ToLower(s)
}

func isSensitiveFlag(flag string) bool {
	return sensitiveFlags[flag]
}

// isSensitiveValue reports values that are secrets or card numbers as a whole.
func isSensitiveValue(value string) bool {
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}

	if jwtRegex.MatchString(value) {
		return true
	}

	// a bare card number, separators allowed
	if detector.IsPANLike(value) && detector.LuhnCheck(value) &&
		strings.Trim(value, "0123456789 -") == "" {
		return true
	}

	// Be conservative to avoid false positives on paths/URLs
	if len(value) >= 32 && !strings.Contains(value, "/") && !strings.Contains(value, ".") {
		if longSecretRegex.MatchString(value) {
			return true
		}
	}

	return false
}

// redactEmbedded strips URL passwords and card numbers inside a larger value.
func redactEmbedded(value string) (string, bool) {
	out := value
	if strings.Contains(out, "://") {
		if u, err := url.Parse(out); err == nil && u.User != nil {
			if _, hasPass := u.User.Password(); hasPass {
				u.User = url.UserPassword(u.User.Username(), "REDACTED")
				out = u.String()
			}
		}
	}
	out = RedactText(out)
	return out, out != value
}
