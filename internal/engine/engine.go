// Package engine evaluates the rule catalog against single rows.
package engine

import (
	"strings"
	"time"

	"github.com/vorn/vorn/internal/catalog"
	"github.com/vorn/vorn/internal/detector"
	"github.com/vorn/vorn/internal/models"
)

// PANDetector is the card data capability the engine needs.
type PANDetector interface {
	Analyse(models.RowInput) detector.PANAnalysis
	Transform(models.RowInput) detector.PANFields
	RedactText(string) string
}

// PIIDetector is the personal data capability the engine needs.
type PIIDetector interface {
	Analyse(models.RowInput) detector.PIIAnalysis
	Pseudonymize(string) *string
}

type boundRule struct {
	rule    models.Rule
	handler handler
}

// Engine holds the ordered rule bindings built at construction. It keeps no
// per-call state, so one Engine may serve many goroutines.
type Engine struct {
	catalog  *catalog.Catalog
	pan      PANDetector
	pii      PIIDetector
	bound    []boundRule
	severity map[string]models.Severity
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the source of processing timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New binds every catalog rule to its handler. Rule ids without a handler
// are kept in order but never fire.
func New(cat *catalog.Catalog, pan PANDetector, pii PIIDetector, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		pan:     pan,
		pii:     pii,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	handlers := e.registry()
	rules := cat.Rules()
	e.bound = make([]boundRule, 0, len(rules))
	e.severity = make(map[string]models.Severity, len(rules))
	for _, r := range rules {
		h, ok := handlers[r.ID]
		if !ok {
			h = never
		}
		e.bound = append(e.bound, boundRule{rule: r, handler: h})
		e.severity[r.ID] = r.Severity
	}
	return e
}

// NewDefault builds an engine over the embedded catalog and stock detectors.
func NewDefault(opts ...Option) (*Engine, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	return New(cat, detector.NewPANDetector(), detector.NewPIIDetector(), opts...), nil
}

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// ProcessRow evaluates every rule once, in catalog order, and returns the
// remediated row. The input is not modified.
func (e *Engine) ProcessRow(in models.RowInput) models.RowOutput {
	b := newBuilder(e.initialOutput(in))

	ctx := evalContext{
		In:  in,
		PAN: e.pan.Analyse(in),
		PII: e.pii.Analyse(in),
	}

	fields := e.pan.Transform(in)
	b.update(func(o *models.RowOutput) {
		o.PanToken = fields.Token
		o.PanLast4 = fields.Last4
		o.PanMasked = fields.Masked
	})

	for _, br := range e.bound {
		ctx.Rule = br.rule
		ctx.Out = b.view()
		if !br.handler.predicate(ctx) {
			continue
		}
		b.fire(br.rule.ID, br.handler.fix(ctx))
	}

	b.update(func(o *models.RowOutput) {
		o.RowCompliant = true
		for _, id := range o.FiredRules {
			if e.severity[id] == models.SeverityCritical {
				o.RowCompliant = false
				break
			}
		}

		if o.CardholderNameMasked == nil {
			o.CardholderNameMasked = e.pii.Pseudonymize(in.String(models.FieldCardholderName))
		}
		if o.LogMessageMasked == nil && in.Truthy(models.FieldLogMessage) {
			o.LogMessageMasked = models.StringPtr(e.pan.RedactText(in.String(models.FieldLogMessage)))
		}

		scrub(o, in)
	})

	return b.build()
}

func (e *Engine) initialOutput(in models.RowInput) models.RowOutput {
	out := models.RowOutput{
		MerchantID:          in.String(models.FieldMerchantID),
		Channel:             in.String(models.FieldChannel),
		CustomerLocation:    in.String(models.FieldCustomerLocation),
		GDPRConsent:         in.Flag(models.FieldConsentFlag),
		PrivacyNoticeURL:    in.String(models.FieldPrivacyNoticeURL),
		FiredRules:          []string{},
		FixesApplied:        []string{},
		ComplianceWarnings:  []string{},
		ProcessingTimestamp: e.now().UTC().Format(time.RFC3339Nano),
	}
	if days, ok := in.Number(models.FieldRetentionDays); ok {
		out.RetentionDays = days
	}
	return out
}

// scrub removes the row's own card number, Luhn-valid or not, from every
// text field, and its cvv from the fields copied from input text.
func scrub(o *models.RowOutput, in models.RowInput) {
	if digits := detector.Digits(in.String(models.FieldPAN)); detector.IsPANLike(digits) {
		replace := func(s string) string {
			return strings.ReplaceAll(s, digits, detector.RedactionMarker)
		}
		o.MerchantID = replace(o.MerchantID)
		o.Channel = replace(o.Channel)
		o.CustomerLocation = replace(o.CustomerLocation)
		o.PrivacyNoticeURL = replace(o.PrivacyNoticeURL)
		for _, p := range []**string{&o.PanToken, &o.PanLast4, &o.PanMasked, &o.LogMessageMasked, &o.CardholderNameMasked} {
			if *p != nil {
				*p = models.StringPtr(replace(**p))
			}
		}
	}

	for _, key := range []string{models.FieldCVV, models.FieldCVV2} {
		cvv := strings.TrimSpace(in.String(key))
		if cvv == "" {
			continue
		}
		o.MerchantID = replaceToken(o.MerchantID, cvv)
		o.PrivacyNoticeURL = replaceToken(o.PrivacyNoticeURL, cvv)
		if o.LogMessageMasked != nil {
			o.LogMessageMasked = models.StringPtr(replaceToken(*o.LogMessageMasked, cvv))
		}
		if o.CardholderNameMasked != nil {
			o.CardholderNameMasked = models.StringPtr(replaceToken(*o.CardholderNameMasked, cvv))
		}
	}
}

// replaceToken redacts occurrences of tok not embedded in a longer digit run.
func replaceToken(s, tok string) string {
	var b strings.Builder
	i := 0
	for {
		j := strings.Index(s[i:], tok)
		if j < 0 {
			b.WriteString(s[i:])
			return b.String()
		}
		j += i
		end := j + len(tok)
		if (j == 0 || !isDigit(s[j-1])) && (end == len(s) || !isDigit(s[end])) {
			b.WriteString(s[i:j])
			b.WriteString(detector.RedactionMarker)
			i = end
			continue
		}
		b.WriteString(s[i : j+1])
		i = j + 1
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
