// Package catalog holds the closed, ordered set of compliance rules.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vorn/vorn/internal/models"
)

// Rule ids. Order here matches evaluation order.
const (
	NoFullPANStorage      = "RULE_PCI_001_NO_FULL_PAN_STORAGE"
	NoCVVStorage          = "RULE_PCI_002_NO_CVV_STORAGE"
	NoPANInLogs           = "RULE_PCI_003_NO_PAN_IN_LOGS"
	SecureChannelRequired = "RULE_PCI_004_SECURE_CHANNEL_REQUIRED"
	PANLuhnValid          = "RULE_PCI_005_PAN_LUHN_VALID"
	PANMaskingFormat      = "RULE_PCI_006_PAN_MASKING_FORMAT"
	NoCardholderFullName  = "RULE_PCI_007_NO_CARDHOLDER_FULL_NAME"
	AuditTrailRequired    = "RULE_PCI_008_AUDIT_TRAIL_REQUIRED"
	RetentionPolicy       = "RULE_ORG_001_RETENTION_POLICY"
	ConsentForPII         = "RULE_ORG_002_CONSENT_FOR_PII"
	PrivacyNoticeRequired = "RULE_ORG_003_PRIVACY_NOTICE_REQUIRED"
)

//go:embed rules.yaml
var rulesYAML []byte

type document struct {
	Version string        `yaml:"version"`
	Rules   []models.Rule `yaml:"rules"`
}

// Catalog is an immutable ordered rule list with an id index.
// Safe for concurrent use.
type Catalog struct {
	version string
	rules   []models.Rule
	index   map[string]int
}

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("catalog has no rules")
	}

	c := &Catalog{
		version: doc.Version,
		rules:   doc.Rules,
		index:   make(map[string]int, len(doc.Rules)),
	}
	seenORG := false
	for i, r := range doc.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: missing id", i)
		}
		if _, dup := c.index[r.ID]; dup {
			return nil, fmt.Errorf("rule %s: duplicate id", r.ID)
		}
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
		}
		if !r.Category.Valid() {
			return nil, fmt.Errorf("rule %s: unknown category %q", r.ID, r.Category)
		}
		// PCI rules are evaluated before ORG rules.
		if r.Category == models.CategoryORG {
			seenORG = true
		} else if seenORG {
			return nil, fmt.Errorf("rule %s: PCI rule listed after ORG rules", r.ID)
		}
		c.index[r.ID] = i
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, loading it on first use.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(rulesYAML)
	})
	return defaultCatalog, defaultErr
}

// MustDefault is Default for callers that cannot proceed without a catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Rules returns the rules in evaluation order. The slice is a copy.
func (c *Catalog) Rules() []models.Rule {
	out := make([]models.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Lookup returns the rule with the given id.
func (c *Catalog) Lookup(id string) (models.Rule, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.Rule{}, false
	}
	return c.rules[i], true
}

func (c *Catalog) Version() string { return c.version }

func (c *Catalog) Len() int { return len(c.rules) }
