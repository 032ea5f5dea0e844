// Package highlight renders texts with known phrases marked up for display.
//
// [Highlight] partitions a text into plain and matched spans, escapes each
// span for HTML and wraps matched spans in a <mark> element. Matching uses the
// same case-insensitive whole-word rule as package correct, and at any start
// position the longest phrase wins. Removing the markup and decoding entities
// always gives back the input text.
//
// All functions in this package are pure and safe for concurrent use.
package highlight

import (
	"html"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tikunlabs/tikun/internal/correct"
)

// Kind classifies a [Span].
type Kind string

const (
	// KindPlain is unmatched text.
	KindPlain Kind = "plain"

	// KindMatch is an occurrence of one of the phrases.
	KindMatch Kind = "match"

	// KindDelete is text present only in the "before" side of a [DiffSpans] result.
	KindDelete Kind = "delete"

	// KindInsert is text present only in the "after" side of a [DiffSpans] result.
	KindInsert Kind = "insert"
)

// Span is one contiguous piece of a partitioned text.
type Span struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Highlight returns text as HTML with every whole-word occurrence of any
// phrase wrapped in <mark class="styleTag">. Empty phrases are ignored. When
// text or phrases is empty the escaped text is returned without markup.
func Highlight(text string, phrases []string, styleTag string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)

	open := "<mark>"
	if styleTag != "" {
		open = `<mark class="` + html.EscapeString(styleTag) + `">`
	}

	for _, sp := range Spans(text, phrases) {
		if sp.Kind == KindMatch {
			b.WriteString(open)
			b.WriteString(html.EscapeString(sp.Value))
			b.WriteString("</mark>")
			continue
		}
		b.WriteString(html.EscapeString(sp.Value))
	}
	return b.String()
}

// Spans partitions text into plain and matched spans. Concatenating the
// values of the result yields text. An empty text yields nil.
func Spans(text string, phrases []string) []Span {
	if text == "" {
		return nil
	}
	m := newMatcher(phrases)
	if m == nil {
		return []Span{{Kind: KindPlain, Value: text}}
	}

	var spans []Span
	last, pos := 0, 0
	for pos < len(text) {
		loc := m.any.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		end, ok := m.longestAt(text, start)
		if !ok {
			_, n := utf8.DecodeRuneInString(text[start:])
			pos = start + max(n, 1)
			continue
		}
		if start > last {
			spans = append(spans, Span{Kind: KindPlain, Value: text[last:start]})
		}
		spans = append(spans, Span{Kind: KindMatch, Value: text[start:end]})
		last, pos = end, end
	}
	if last < len(text) {
		spans = append(spans, Span{Kind: KindPlain, Value: text[last:]})
	}
	return spans
}

// matcher holds the compiled phrase set.
type matcher struct {
	// any matches the leftmost occurrence of any phrase.
	any *regexp.Regexp

	// anchored holds one prefix-anchored pattern per phrase, longest first.
	anchored []*regexp.Regexp
}

// newMatcher compiles phrases, or returns nil when no usable phrase remains.
func newMatcher(phrases []string) *matcher {
	ps := preparePhrases(phrases)
	if len(ps) == 0 {
		return nil
	}

	// Every phrase is valid UTF-8 here, so the patterns always compile.
	quoted := make([]string, len(ps))
	anchored := make([]*regexp.Regexp, len(ps))
	for i, p := range ps {
		quoted[i] = regexp.QuoteMeta(p)
		anchored[i] = regexp.MustCompile(`(?i)\A(?:` + quoted[i] + `)`)
	}
	return &matcher{
		any:      regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`),
		anchored: anchored,
	}
}

// longestAt returns the end of the longest phrase that starts at start and
// sits on word boundaries.
func (m *matcher) longestAt(text string, start int) (int, bool) {
	rest := text[start:]
	for _, re := range m.anchored {
		loc := re.FindStringIndex(rest)
		if loc == nil || loc[1] == 0 {
			continue
		}
		end := start + loc[1]
		if correct.IsBoundary(text, start, end) {
			return end, true
		}
	}
	return 0, false
}

// preparePhrases drops blank entries and entries that are not valid UTF-8,
// removes duplicates and orders the rest by descending rune length, then
// lexicographically.
func preparePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if strings.TrimSpace(p) == "" || !utf8.ValidString(p) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b string) int {
		if la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b); la != lb {
			return lb - la
		}
		return strings.Compare(a, b)
	})
	return slices.Compact(out)
}

// BeforePhrases returns the original spans of corrs, suitable for
// highlighting the uncorrected text.
func BeforePhrases(corrs []correct.Correction) []string {
	out := make([]string, 0, len(corrs))
	for _, c := range corrs {
		out = append(out, c.Original)
	}
	return out
}

// AfterPhrases returns the replacement texts of corrs, suitable for
// highlighting the corrected text.
func AfterPhrases(corrs []correct.Correction) []string {
	out := make([]string, 0, len(corrs))
	for _, c := range corrs {
		out = append(out, c.Corrected)
	}
	return out
}
