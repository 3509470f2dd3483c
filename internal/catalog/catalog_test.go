package catalog

import (
	"strings"
	"testing"

	"github.com/vorn/vorn/internal/models"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if c.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", c.Len())
	}
	if c.Version() == "" {
		t.Error("Version() is empty")
	}

	wantOrder := []string{
		NoFullPANStorage, NoCVVStorage, NoPANInLogs, SecureChannelRequired,
		PANLuhnValid, PANMaskingFormat, NoCardholderFullName, AuditTrailRequired,
		RetentionPolicy, ConsentForPII, PrivacyNoticeRequired,
	}
	wantSeverity := []models.Severity{
		models.SeverityCritical, models.SeverityCritical, models.SeverityHigh, models.SeverityHigh,
		models.SeverityMedium, models.SeverityMedium, models.SeverityLow, models.SeverityLow,
		models.SeverityMedium, models.SeverityHigh, models.SeverityLow,
	}
	for i, r := range c.Rules() {
		if r.ID != wantOrder[i] {
			t.Errorf("rule %d = %s, want %s", i, r.ID, wantOrder[i])
		}
		if r.Severity != wantSeverity[i] {
			t.Errorf("%s severity = %s, want %s", r.ID, r.Severity, wantSeverity[i])
		}
		if r.Name == "" || r.Description == "" {
			t.Errorf("%s missing name or description", r.ID)
		}
	}
}

func TestDefault_Parameters(t *testing.T) {
	c := MustDefault()

	ret, ok := c.Lookup(RetentionPolicy)
	if !ok || ret.DefaultValue == nil || *ret.DefaultValue != 90 {
		t.Errorf("retention default = %v, want 90", ret.DefaultValue)
	}

	notice, ok := c.Lookup(PrivacyNoticeRequired)
	if !ok {
		t.Fatal("privacy notice rule missing")
	}
	if notice.DefaultURL != "https://example.com/privacy" {
		t.Errorf("DefaultURL = %q", notice.DefaultURL)
	}
	if len(notice.EULocations) != 29 {
		t.Errorf("len(EULocations) = %d, want 29", len(notice.EULocations))
	}
	for _, code := range []string{"DE", "GB", "UK", "FR"} {
		found := false
		for _, l := range notice.EULocations {
			if l == code {
				found = true
			}
		}
		if !found {
			t.Errorf("EULocations missing %s", code)
		}
	}
}

func TestRulesReturnsCopy(t *testing.T) {
	c := MustDefault()
	rules := c.Rules()
	rules[0].ID = "mutated"
	if r, _ := c.Lookup(NoFullPANStorage); r.ID != NoFullPANStorage {
		t.Error("mutating Rules() result changed the catalog")
	}
	if c.Rules()[0].ID != NoFullPANStorage {
		t.Error("catalog order changed after mutation of a copy")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := MustDefault().Lookup("RULE_XYZ"); ok {
		t.Error("Lookup(unknown) reported found")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "version: x\nrules: []\n", "no rules"},
		{"bad yaml", "rules: [", "parse catalog"},
		{"missing id", "rules:\n  - name: a\n    severity: LOW\n    category: PCI\n", "missing id"},
		{
			"duplicate",
			"rules:\n  - {id: A, severity: LOW, category: PCI}\n  - {id: A, severity: LOW, category: PCI}\n",
			"duplicate",
		},
		{"severity", "rules:\n  - {id: A, severity: URGENT, category: PCI}\n", "severity"},
		{"category", "rules:\n  - {id: A, severity: LOW, category: HIPAA}\n", "category"},
		{
			"order",
			"rules:\n  - {id: A, severity: LOW, category: ORG}\n  - {id: B, severity: LOW, category: PCI}\n",
			"after ORG",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
