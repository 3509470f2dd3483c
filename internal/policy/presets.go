// Package policy gates a processed file on CEL rules and ships built-in presets.
package policy

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vorn/vorn/internal/models"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"baseline": "presets/baseline.yaml",
	"strict":   "presets/strict.yaml",
}

var (
	presetMu    sync.Mutex
	presetCache = map[string]*models.PolicyConfig{}
)

// GetPreset returns a policy preset by name, or nil if not found
func GetPreset(name string) *models.PolicyConfig {
	presetMu.Lock()
	defer presetMu.Unlock()

	if cached, ok := presetCache[name]; ok {
		return cached
	}

	path, ok := presetFiles[name]
	if !ok {
		return nil
	}
	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}
	config, err := Parse(data)
	if err != nil {
		return nil
	}

	presetCache[name] = config
	return config
}

// ListPresetNames returns the names of all available presets, sorted.
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustGetPreset returns a preset or panics (for tests)
func MustGetPreset(name string) *models.PolicyConfig {
	p := GetPreset(name)
	if p == nil {
		panic(fmt.Sprintf("preset %q not found", name))
	}
	return p
}

// Parse decodes and checks a policy document. Empty severity means error
// and empty mode means warn.
func Parse(data []byte) (*models.PolicyConfig, error) {
	var config models.PolicyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	switch config.Mode {
	case "":
		config.Mode = models.PolicyModeWarn
	case models.PolicyModeWarn, models.PolicyModeStrict:
	default:
		return nil, fmt.Errorf("policy %q: unknown mode %q", config.Name, config.Mode)
	}

	if len(config.Rules) == 0 {
		return nil, fmt.Errorf("policy %q: no rules", config.Name)
	}
	for i := range config.Rules {
		r := &config.Rules[i]
		if r.Name == "" || r.Expr == "" {
			return nil, fmt.Errorf("policy %q: rule %d needs name and expr", config.Name, i)
		}
		switch r.Severity {
		case "":
			r.Severity = models.PolicySeverityError
		case models.PolicySeverityWarn, models.PolicySeverityError:
		default:
			return nil, fmt.Errorf("rule %q: unknown severity %q", r.Name, r.Severity)
		}
	}
	return &config, nil
}
