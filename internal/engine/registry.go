package engine

import (
	"strings"

	"github.com/vorn/vorn/internal/catalog"
	"github.com/vorn/vorn/internal/detector"
	"github.com/vorn/vorn/internal/models"
)

// Fix labels
const (
	FixMaskedPANAndTokenized = "MASKED_PAN_AND_TOKENIZED"
	FixRemovedCVV            = "REMOVED_CVV"
	FixRedactedLogPAN        = "REDACTED_LOG_PAN"
	FixNoAutomatedFix        = "NO_AUTOMATED_FIX"
	FixFlagInvalidPAN        = "FLAG_INVALID_PAN"
	FixAppliedMaskFormat     = "APPLIED_MASK_FORMAT"
	FixPseudonymizedName     = "PSEUDONYMIZED_NAME"
	FixAddedAuditPlaceholder = "ADDED_AUDIT_PLACEHOLDER"
	FixAppliedRetention      = "APPLIED_RETENTION_DEFAULT"
	FixConsentFlagged        = "CONSENT_FLAGGED"
	FixSetDefaultPrivacyURL  = "SET_DEFAULT_PRIVACY_URL"
)

// Warnings
const (
	WarnInsecureChannel = "Non-HTTPS channel for card data"
	WarnInvalidPAN      = "PAN failed Luhn validation"
)

// AuditPlaceholder stands in for a missing log message.
const AuditPlaceholder = "[NO_LOG]"

const defaultRetentionDays = 90

// evalContext is everything a predicate or fix may read. Out is a value
// copy of the output accumulated so far.
type evalContext struct {
	In   models.RowInput
	Out  models.RowOutput
	PAN  detector.PANAnalysis
	PII  detector.PIIAnalysis
	Rule models.Rule
}

// patch is the immutable result of a fix, folded into the output by the builder.
type patch struct {
	label   string
	warning string
	apply   func(*models.RowOutput)
}

type handler struct {
	predicate func(evalContext) bool
	fix       func(evalContext) patch
}

// never is bound to rule ids the registry does not know.
var never = handler{
	predicate: func(evalContext) bool { return false },
	fix:       func(evalContext) patch { return patch{} },
}

func labelOnly(label string) func(evalContext) patch {
	return func(evalContext) patch { return patch{label: label} }
}

// registry maps every known rule id to its handler.
func (e *Engine) registry() map[string]handler {
	return map[string]handler{
		catalog.NoFullPANStorage: {
			predicate: func(c evalContext) bool { return c.In.Truthy(models.FieldPAN) },
			// derived pan fields are written before any rule runs
			fix: labelOnly(FixMaskedPANAndTokenized),
		},
		catalog.NoCVVStorage: {
			predicate: func(c evalContext) bool {
				return c.In.Truthy(models.FieldCVV) || c.In.Truthy(models.FieldCVV2)
			},
			// cvv is never copied into the output
			fix: labelOnly(FixRemovedCVV),
		},
		catalog.NoPANInLogs: {
			predicate: func(c evalContext) bool { return c.PAN.PANPresentInLogs },
			fix: func(c evalContext) patch {
				redacted := e.pan.RedactText(c.In.String(models.FieldLogMessage))
				return patch{
					label: FixRedactedLogPAN,
					apply: func(o *models.RowOutput) { o.LogMessageMasked = models.StringPtr(redacted) },
				}
			},
		},
		catalog.SecureChannelRequired: {
			predicate: func(c evalContext) bool {
				channel := strings.ToLower(c.In.String(models.FieldChannel))
				return c.In.Truthy(models.FieldPAN) && !strings.HasPrefix(channel, "https")
			},
			fix: func(evalContext) patch {
				return patch{label: FixNoAutomatedFix, warning: WarnInsecureChannel}
			},
		},
		catalog.PANLuhnValid: {
			predicate: func(c evalContext) bool { return c.In.Truthy(models.FieldPAN) && !c.PAN.PANValid },
			fix: func(evalContext) patch {
				return patch{label: FixFlagInvalidPAN, warning: WarnInvalidPAN}
			},
		},
		catalog.PANMaskingFormat: {
			predicate: func(c evalContext) bool {
				masked := models.Deref(c.Out.PanMasked)
				return masked != "" && !detector.IsCanonicalMask(masked)
			},
			fix: func(c evalContext) patch {
				digits := detector.Digits(c.In.String(models.FieldPAN))
				last4 := models.Deref(c.Out.PanLast4)
				if last4 == "" && len(digits) >= 4 {
					last4 = digits[len(digits)-4:]
				}
				masked := detector.MaskFromLast4(last4, len(digits))
				return patch{
					label: FixAppliedMaskFormat,
					apply: func(o *models.RowOutput) { o.PanMasked = models.StringPtr(masked) },
				}
			},
		},
		catalog.NoCardholderFullName: {
			predicate: func(c evalContext) bool { return c.PII.HasFullName },
			fix: func(c evalContext) patch {
				name := e.pii.Pseudonymize(c.In.String(models.FieldCardholderName))
				return patch{
					label: FixPseudonymizedName,
					apply: func(o *models.RowOutput) { o.CardholderNameMasked = name },
				}
			},
		},
		catalog.AuditTrailRequired: {
			predicate: func(c evalContext) bool { return !c.In.Truthy(models.FieldLogMessage) },
			fix: func(evalContext) patch {
				return patch{
					label: FixAddedAuditPlaceholder,
					apply: func(o *models.RowOutput) { o.LogMessageMasked = models.StringPtr(AuditPlaceholder) },
				}
			},
		},
		catalog.RetentionPolicy: {
			predicate: func(c evalContext) bool {
				days, ok := c.In.Number(models.FieldRetentionDays)
				return !ok || days > retentionDefault(c.Rule)
			},
			fix: func(c evalContext) patch {
				days := retentionDefault(c.Rule)
				return patch{
					label: FixAppliedRetention,
					apply: func(o *models.RowOutput) { o.RetentionDays = days },
				}
			},
		},
		catalog.ConsentForPII: {
			predicate: func(c evalContext) bool {
				return c.PII.HasPII && !c.In.Flag(models.FieldConsentFlag)
			},
			fix: func(c evalContext) patch {
				given := c.In.Flag(models.FieldConsentFlag)
				return patch{
					label: FixConsentFlagged,
					apply: func(o *models.RowOutput) { o.GDPRConsent = given },
				}
			},
		},
		catalog.PrivacyNoticeRequired: {
			predicate: func(c evalContext) bool {
				loc := strings.ToUpper(strings.TrimSpace(c.In.String(models.FieldCustomerLocation)))
				return inList(c.Rule.EULocations, loc) && !c.In.Truthy(models.FieldPrivacyNoticeURL)
			},
			fix: func(c evalContext) patch {
				url := c.Rule.DefaultURL
				return patch{
					label: FixSetDefaultPrivacyURL,
					apply: func(o *models.RowOutput) { o.PrivacyNoticeURL = url },
				}
			},
		},
	}
}

func retentionDefault(r models.Rule) float64 {
	if r.DefaultValue != nil {
		return *r.DefaultValue
	}
	return defaultRetentionDays
}

func inList(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
