// Package policy classifies free-text exit reasons into handoff reasons
// using an ordered, YAML-configurable rule table.
package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// Rule maps a case-insensitive pattern to a handoff reason.
type Rule struct {
	Pattern string               `yaml:"pattern"`
	Reason  models.HandoffReason `yaml:"reason"`
}

// Config is the top-level YAML structure.
type Config struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules are evaluated in order; the first match wins.
var DefaultRules = []Rule{
	{Pattern: `rate|limit|429`, Reason: models.HandoffRateLimit},
	{Pattern: `token|exhaust|budget`, Reason: models.HandoffTokenExhausted},
	{Pattern: `exit|quit|close`, Reason: models.HandoffManual},
}

// Fallback is returned when no rule matches.
const Fallback = models.HandoffManual

type compiled struct {
	re     *regexp.Regexp
	reason models.HandoffReason
}

// Table is a compiled, ordered rule list.
type Table struct {
	rules []compiled
}

// New compiles rules into a Table.
func New(rules []Rule) (*Table, error) {
	t := &Table{rules: make([]compiled, 0, len(rules))}
	for i, r := range rules {
		if !r.Reason.Valid() {
			return nil, fmt.Errorf("rule %d: invalid reason %q", i, r.Reason)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		t.rules = append(t.rules, compiled{re: re, reason: r.Reason})
	}
	return t, nil
}

// Default returns the built-in table.
func Default() *Table {
	t, err := New(DefaultRules)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads the YAML rule file at path. A missing file yields the default table;
// a present file replaces the defaults entirely.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(cfg.Rules)
}

// Classify returns the reason of the first rule matching exitReason.
func (t *Table) Classify(exitReason string) models.HandoffReason {
	if exitReason == "" {
		return Fallback
	}
	for _, r := range t.rules {
		if r.re.MatchString(exitReason) {
			return r.reason
		}
	}
	return Fallback
}
