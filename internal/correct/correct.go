// Package correct implements the deterministic phrase replacer.
//
// [Correct] walks the rule sequence once, in order. For each rule it looks
// for the first whole-word, case-insensitive occurrence of the rule's Before
// phrase in the text as it stands at that moment and substitutes the rule's
// preferred candidate. Each rule fires at most once per call, and a later
// rule sees the text produced by the earlier ones.
//
// Correct is a pure function; it is safe for concurrent use.
package correct

import (
	"regexp"

	"github.com/tikunlabs/tikun/internal/phrase"
)

// Correction records one substitution made by [Correct].
type Correction struct {
	// Original is the span that was replaced, as it appeared in the text.
	Original string `json:"original"`

	// Corrected is the text inserted in its place.
	Corrected string `json:"corrected"`

	// Comment is copied from the rule that fired.
	Comment string `json:"comment"`
}

// Engine applies a fixed dictionary. It is read-only after construction.
type Engine struct {
	dict     *phrase.Dictionary
	matchers []matcher
}

// NewEngine returns an [Engine] bound to d. The rule matchers are compiled
// once here.
func NewEngine(d *phrase.Dictionary) *Engine {
	return &Engine{dict: d, matchers: compileRules(d.AllRules())}
}

// Dictionary returns the dictionary the engine was built with.
func (e *Engine) Dictionary() *phrase.Dictionary { return e.dict }

// Correct runs [Correct] with every rule of the engine's dictionary.
func (e *Engine) Correct(text string) (string, []Correction) {
	return apply(text, e.matchers)
}

// Correct applies rules to text and returns the corrected text together with
// the substitutions made, in rule order. The returned slice is never nil.
//
// Rules that fail [phrase.Rule.Check] are skipped. Callers applying the same
// rules repeatedly should use an [Engine].
func Correct(text string, rules []phrase.Rule) (string, []Correction) {
	return apply(text, compileRules(rules))
}

type matcher struct {
	rule phrase.Rule
	re   *regexp.Regexp
}

func compileRules(rules []phrase.Rule) []matcher {
	out := make([]matcher, 0, len(rules))
	for _, r := range rules {
		if r.Check() != nil {
			continue
		}
		re, err := compilePhrase(r.Before)
		if err != nil {
			continue
		}
		out = append(out, matcher{rule: r, re: re})
	}
	return out
}

func apply(text string, matchers []matcher) (string, []Correction) {
	corrections := []Correction{}
	for _, m := range matchers {
		start, end, ok := findWord(text, m.re)
		if !ok {
			continue
		}
		matched := text[start:end]
		replacement := m.rule.Preferred()
		text = text[:start] + replacement + text[end:]
		corrections = append(corrections, Correction{
			Original:  matched,
			Corrected: replacement,
			Comment:   m.rule.Comment,
		})
	}
	return text, corrections
}

// compilePhrase builds a case-insensitive literal matcher for p.
func compilePhrase(p string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)` + regexp.QuoteMeta(p))
}

// findWord returns the byte span of the first match of re in text that sits
// on word boundaries on both sides.
func findWord(text string, re *regexp.Regexp) (start, end int, ok bool) {
	pos := 0
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			return 0, 0, false
		}
		s, e := pos+loc[0], pos+loc[1]
		if e > s && IsBoundary(text, s, e) {
			return s, e, true
		}
		// Resume one rune after the rejected start so that an overlapping
		// candidate beginning inside the rejected span is still found.
		pos = s + runeLen(text, s)
	}
	return 0, 0, false
}
