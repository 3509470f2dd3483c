package engine

import "github.com/vorn/vorn/internal/models"

// builder accumulates a RowOutput by folding patches in rule order.
type builder struct {
	out models.RowOutput
}

func newBuilder(out models.RowOutput) *builder {
	return &builder{out: out}
}

// view returns a copy for predicates; they must not modify its slices.
func (b *builder) view() models.RowOutput {
	return b.out
}

func (b *builder) fire(ruleID string, p patch) {
	b.out.FiredRules = append(b.out.FiredRules, ruleID)
	if p.apply != nil {
		p.apply(&b.out)
	}
	if p.warning != "" {
		b.out.ComplianceWarnings = append(b.out.ComplianceWarnings, p.warning)
	}
	if p.label != "" {
		b.out.FixesApplied = append(b.out.FixesApplied, p.label)
	}
}

func (b *builder) update(fn func(*models.RowOutput)) {
	fn(&b.out)
}

func (b *builder) build() models.RowOutput {
	return b.out
}
