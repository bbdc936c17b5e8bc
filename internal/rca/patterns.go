package rca

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/avrca/internal/model"
)

//go:embed default_patterns.yaml
var defaultPatternsYAML []byte

var validate = validator.New()

// KnownPattern is a recurring failure signature: a set of message symptoms
// that, when enough of them show up, names a root cause.
type KnownPattern struct {
	ID                 string              `yaml:"id" json:"id" validate:"required"`
	Name               string              `yaml:"name" json:"name" validate:"required"`
	Description        string              `yaml:"description" json:"description"`
	Symptoms           []string            `yaml:"symptoms" json:"symptoms" validate:"required,min=1,dive,required"`
	TypicalRootCause   string              `yaml:"typical_root_cause" json:"typical_root_cause" validate:"required"`
	AffectedSystems    []string            `yaml:"affected_systems" json:"affected_systems"`
	Frequency          string              `yaml:"frequency" json:"frequency"`
	RecommendedActions []string            `yaml:"recommended_actions" json:"recommended_actions"`
	Category           model.CauseCategory `yaml:"category" json:"category,omitempty" validate:"omitempty,oneof=network hardware software configuration power"`
}

// UnmarshalYAML accepts pattern_id as an alias of id.
func (p *KnownPattern) UnmarshalYAML(node *yaml.Node) error {
	type plain KnownPattern
	if err := node.Decode((*plain)(p)); err != nil {
		return err
	}
	if p.ID == "" {
		var alias struct {
			PatternID string `yaml:"pattern_id"`
		}
		if err := node.Decode(&alias); err != nil {
			return err
		}
		p.ID = alias.PatternID
	}
	if p.Frequency == "" {
		p.Frequency = "unknown"
	}
	return nil
}

// Cause is the root-cause description a match of this pattern produces.
func (p KnownPattern) Cause() string {
	return p.Name + ": " + p.TypicalRootCause
}

type patternFile struct {
	Patterns []KnownPattern `yaml:"patterns"`
}

// LoadPatterns reads and validates a known-pattern YAML file.
func LoadPatterns(path string) ([]KnownPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rca: read patterns: %w", err)
	}
	patterns, err := ParsePatterns(data)
	if err != nil {
		return nil, fmt.Errorf("rca: %s: %w", path, err)
	}
	return patterns, nil
}

// ParsePatterns decodes a `patterns:` document and validates every entry.
// Pattern IDs must be unique.
func ParsePatterns(data []byte) ([]KnownPattern, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}
	seen := make(map[string]bool, len(f.Patterns))
	for i, p := range f.Patterns {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("pattern %d (%q): %w", i, p.ID, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("pattern %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return f.Patterns, nil
}

// DefaultPatterns returns the built-in pattern set.
func DefaultPatterns() []KnownPattern {
	patterns, err := ParsePatterns(defaultPatternsYAML)
	if err != nil {
		panic("rca: built-in patterns: " + err.Error())
	}
	return patterns
}
