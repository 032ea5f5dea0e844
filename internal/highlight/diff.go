package highlight

import (
	"html"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffSpans returns the character-level difference between before and after
// as plain, delete and insert spans, after semantic cleanup.
func DiffSpans(before, after string) []Span {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	spans := make([]Span, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		var k Kind
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			k = KindDelete
		case diffmatchpatch.DiffInsert:
			k = KindInsert
		default:
			k = KindPlain
		}
		spans = append(spans, Span{Kind: k, Value: d.Text})
	}
	return spans
}

// Diff renders [DiffSpans] as HTML, with removed text in <del> and added text
// in <ins>.
func Diff(before, after string) string {
	var b strings.Builder
	for _, sp := range DiffSpans(before, after) {
		switch sp.Kind {
		case KindDelete:
			b.WriteString("<del>")
			b.WriteString(html.EscapeString(sp.Value))
			b.WriteString("</del>")
		case KindInsert:
			b.WriteString("<ins>")
			b.WriteString(html.EscapeString(sp.Value))
			b.WriteString("</ins>")
		default:
			b.WriteString(html.EscapeString(sp.Value))
		}
	}
	return b.String()
}
