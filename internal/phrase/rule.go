// Package phrase holds the phrase-correction catalog: categorised rules that
// map a discouraged Hebrew phrase to one or more preferred replacements.
//
// A [Dictionary] is built once from a list of [Category] values and is
// read-only afterwards. Malformed rules are dropped while the dictionary is
// built so that the matcher never sees them; [Validate] reports the same
// problems as an error for catalog tests.
//
// All exported methods on [Dictionary] are safe for concurrent use.
package phrase

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation errors reported by [Rule.Check] and [Validate].
var (
	ErrEmptyBefore    = errors.New("phrase: empty before")
	ErrEmptyAfter     = errors.New("phrase: no replacement candidates")
	ErrEmptyCandidate = errors.New("phrase: empty preferred candidate")
	ErrNoOp           = errors.New("phrase: before equals one of its candidates")
	ErrInvalidUTF8    = errors.New("phrase: invalid utf-8")
)

// Rule maps a discouraged phrase to its replacement candidates.
type Rule struct {
	// Before is the phrase to look for. It is matched as a whole-word unit,
	// case-insensitively.
	Before string `yaml:"before" json:"before"`

	// After is the ordered list of replacement candidates. Only the first
	// entry is ever inserted; the rest document acceptable alternatives.
	After []string `yaml:"after" json:"after"`

	// Comment explains why the replacement reads better. May be empty.
	Comment string `yaml:"comment" json:"comment"`
}

// Preferred returns the candidate the matcher inserts: the first entry of
// After. It returns "" for a rule with no candidates.
func (r Rule) Preferred() string {
	if len(r.After) == 0 {
		return ""
	}
	return r.After[0]
}

// Check reports the first structural problem with r, or nil when the rule
// can be handed to the matcher. No-op rules pass Check; use [Rule.IsNoOp]
// to detect them.
func (r Rule) Check() error {
	if strings.TrimSpace(r.Before) == "" {
		return ErrEmptyBefore
	}
	if len(r.After) == 0 {
		return ErrEmptyAfter
	}
	if r.After[0] == "" {
		return ErrEmptyCandidate
	}
	if !utf8.ValidString(r.Before) || !utf8.ValidString(r.After[0]) {
		return ErrInvalidUTF8
	}
	return nil
}

// IsNoOp reports whether Before appears among its own candidates.
func (r Rule) IsNoOp() bool {
	for _, a := range r.After {
		if strings.EqualFold(a, r.Before) {
			return true
		}
	}
	return false
}

// Category is a named group of rules. Categories only affect ordering; the
// matcher sees one flat sequence.
type Category struct {
	Name  string `yaml:"name" json:"name"`
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Validate checks every rule in categories and returns a joined error that
// lists malformed and no-op rules together with their position. It returns
// nil when the catalog is clean.
func Validate(categories ...Category) error {
	var errs []error
	seen := make(map[string]string)
	for _, c := range categories {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("phrase: category without name"))
		}
		for i, r := range c.Rules {
			at := fmt.Sprintf("%s[%d]", c.Name, i)
			if err := r.Check(); err != nil {
				errs = append(errs, fmt.Errorf("%s %q: %w", at, r.Before, err))
				continue
			}
			if r.IsNoOp() {
				errs = append(errs, fmt.Errorf("%s %q: %w", at, r.Before, ErrNoOp))
			}
			key := strings.ToLower(normalize(r.Before))
			if prev, ok := seen[key]; ok {
				errs = append(errs, fmt.Errorf("%s %q: duplicate of %s", at, r.Before, prev))
			} else {
				seen[key] = at
			}
		}
	}
	return errors.Join(errs...)
}
