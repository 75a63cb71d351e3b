// Package corrections rewrites child phrasing into the vocabulary guardians
// and the summary service expect, using rules loaded from a YAML file.
package corrections

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultIterationLimit = 30

// Rule is one entry of the corrections file. Exactly one of Match or Pattern
// is set.
type Rule struct {
	Match   string `yaml:"match"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
	// Global replaces every pattern match instead of the first one.
	Global bool `yaml:"global"`
	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool `yaml:"case_sensitive"`
}

type file struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule interface {
	apply(input string) (output string, changed bool)
}

// Engine applies substitutions until the text stops changing or the
// iteration limit is hit.
type Engine struct {
	rules []compiledRule
	limit int
}

// Load reads rules from path. A blank path or a missing file yields an engine
// that returns text unchanged.
func Load(path string, limit int) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil, limit)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil, limit)
		}
		return nil, fmt.Errorf("failed to read corrections file %q: %w", path, err)
	}

	var parsed file
	if err := yaml.Unmarshal(contents, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse corrections file %q: %w", path, err)
	}

	engine, err := New(parsed.Rules, limit)
	if err != nil {
		return nil, fmt.Errorf("corrections file %q: %w", path, err)
	}
	return engine, nil
}

// New compiles rules in order.
func New(rules []Rule, limit int) (*Engine, error) {
	if limit <= 0 {
		limit = defaultIterationLimit
	}

	compiled := make([]compiledRule, 0, len(rules))
	for index, rule := range rules {
		c, err := compile(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", index+1, err)
		}
		compiled = append(compiled, c)
	}
	return &Engine{rules: compiled, limit: limit}, nil
}

// Len reports how many rules are loaded.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply transforms text deterministically.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.limit; i++ {
		changed := false
		for _, rule := range e.rules {
			next, ruleChanged := rule.apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}
	return result, nil
}

func compile(rule Rule) (compiledRule, error) {
	match := strings.TrimSpace(rule.Match)
	pattern := strings.TrimSpace(rule.Pattern)

	switch {
	case match != "" && pattern != "":
		return nil, errors.New("match and pattern are mutually exclusive")
	case match != "":
		expr := regexp.QuoteMeta(match)
		if !rule.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid match: %w", err)
		}
		return literalRule{re: re, replacement: rule.Replace}, nil
	case pattern != "":
		if !rule.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return regexRule{re: re, replacement: rule.Replace, global: rule.Global}, nil
	default:
		return nil, errors.New("either match or pattern is required")
	}
}

type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func (r literalRule) apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r regexRule) apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}

	replaced := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(replaced) + input[loc[1]:]
	return output, output != input
}
