package usecase

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultMaxPromptLength = 4000

// defaultBlockPatterns screen rule-bypass attempts, explicit
// illicit-activity requests, and privilege-escalation probing.
var defaultBlockPatterns = []string{
	`(ignore|bypass).*(rules|system)`,
	`(hack|crack|steal|ddos)`,
	`(admin|root|password)`,
}

// PolicyViolationError reports why a prompt was rejected. It unwraps to
// ErrPolicyViolation so callers can map it uniformly.
type PolicyViolationError struct {
	Reason string
}

var ErrPolicyViolation = errors.New("policy violation")

func (e *PolicyViolationError) Error() string { return e.Reason }
func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// PolicyConfig is the operator-editable filter configuration.
type PolicyConfig struct {
	MaxPromptLength int      `yaml:"max_prompt_length"`
	BlockPatterns   []string `yaml:"block_patterns"`
}

// PolicyFilter is a stateless lexical screen over request text. It is
// best-effort by construction: it matches configured patterns, it does
// not understand meaning, and text that evades the patterns will pass.
type PolicyFilter struct {
	maxLength int
	patterns  []*regexp.Regexp
}

// NewPolicyFilter compiles the configured patterns case-insensitively.
// Zero-value config fields fall back to the defaults.
func NewPolicyFilter(cfg PolicyConfig) (*PolicyFilter, error) {
	if cfg.MaxPromptLength <= 0 {
		cfg.MaxPromptLength = defaultMaxPromptLength
	}
	if len(cfg.BlockPatterns) == 0 {
		cfg.BlockPatterns = defaultBlockPatterns
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.BlockPatterns))
	for _, raw := range cfg.BlockPatterns {
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, fmt.Errorf("compile block pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}
	return &PolicyFilter{maxLength: cfg.MaxPromptLength, patterns: patterns}, nil
}

// LoadPolicyConfig reads a YAML policy file. An empty path yields the
// zero config, which NewPolicyFilter fills with defaults.
func LoadPolicyConfig(path string) (PolicyConfig, error) {
	var cfg PolicyConfig
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read policy config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse policy config: %w", err)
	}
	return cfg, nil
}

// Check rejects oversized or disallowed text.
func (f *PolicyFilter) Check(text string) error {
	if len(text) > f.maxLength {
		return &PolicyViolationError{Reason: "prompt too long"}
	}
	lowered := strings.ToLower(text)
	for _, re := range f.patterns {
		if re.MatchString(lowered) {
			return &PolicyViolationError{Reason: "prompt blocked by policy"}
		}
	}
	return nil
}
