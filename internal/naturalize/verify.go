package naturalize

import (
	"slices"
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// tokenize splits s into words, each carrying the whitespace that follows
// it. Leading whitespace forms a token of its own. Concatenating the tokens
// gives back s.
func tokenize(s string) []string {
	var toks []string
	start, inSpace := 0, false
	for i, r := range s {
		sp := unicode.IsSpace(r)
		if inSpace && !sp && i > 0 {
			toks = append(toks, s[start:i])
			start = i
		}
		inSpace = sp
	}
	if start < len(s) {
		toks = append(toks, s[start:])
	}
	return toks
}

// tokenCodec maps each distinct token to a single rune so that the rune
// differ in diffmatchpatch works at token granularity.
type tokenCodec struct {
	ids  map[string]rune
	toks []string
}

func newTokenCodec() *tokenCodec {
	return &tokenCodec{ids: make(map[string]rune)}
}

// idRune maps a token index to a rune, stepping over the surrogate range.
func idRune(i int) rune {
	r := rune(i) + 1
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func runeID(r rune) int {
	if r >= 0xD800+0x800 {
		r -= 0x800
	}
	return int(r) - 1
}

func (c *tokenCodec) encode(toks []string) []rune {
	out := make([]rune, len(toks))
	for i, t := range toks {
		r, ok := c.ids[t]
		if !ok {
			r = idRune(len(c.toks))
			c.ids[t] = r
			c.toks = append(c.toks, t)
		}
		out[i] = r
	}
	return out
}

func (c *tokenCodec) decode(s string) []string {
	var out []string
	for _, r := range s {
		out = append(out, c.toks[runeID(r)])
	}
	return out
}

// keyFields normalises a span for comparison with a declared change: split
// into words, lower-cased, surrounding punctuation dropped from each word.
func keyFields(s string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(s)) {
		if f = strings.Trim(f, `.,;:!?"'()׳״`); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// indexRun returns the index of the first run of hay equal to needle, or -1.
func indexRun(hay, needle []string) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		if slices.Equal(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// replaceRun replaces the first run of hay equal to needle with repl.
func replaceRun(hay, needle, repl []string) ([]string, bool) {
	i := indexRun(hay, needle)
	if i < 0 {
		return hay, false
	}
	out := make([]string, 0, len(hay)-len(needle)+len(repl))
	out = append(out, hay[:i]...)
	out = append(out, repl...)
	return append(out, hay[i+len(needle):]...), true
}

// covers reports whether a change from co to cr accounts for a region that
// replaced ko with kr. A pure deletion or insertion must be exactly the
// difference between the two sides of the change.
func covers(co, cr, ko, kr []string) bool {
	switch {
	case slices.Equal(co, ko) && slices.Equal(cr, kr):
		return true
	case len(kr) == 0:
		rest, ok := replaceRun(co, ko, nil)
		return ok && slices.Equal(rest, cr)
	case len(ko) == 0:
		rest, ok := replaceRun(cr, kr, nil)
		return ok && slices.Equal(rest, co)
	default:
		return indexRun(co, ko) >= 0 && indexRun(cr, kr) >= 0
	}
}

// declared reports which changes account for replacing orig with repl. The
// region is accounted for when it is a whole-word part of one declared
// change, or when applying declared changes to orig in order yields repl. A
// region whose words are unchanged needs a change matching it exactly.
func declared(changes []Change, orig, repl string) ([]int, bool) {
	ko, kr := keyFields(orig), keyFields(repl)
	if slices.Equal(ko, kr) {
		o, r := strings.TrimSpace(orig), strings.TrimSpace(repl)
		for i, c := range changes {
			if o != r && strings.TrimSpace(c.Original) == o && strings.TrimSpace(c.Rewritten) == r {
				return []int{i}, true
			}
		}
		return nil, false
	}

	for i, c := range changes {
		if covers(keyFields(c.Original), keyFields(c.Rewritten), ko, kr) {
			return []int{i}, true
		}
	}

	var used []int
	cand := ko
	for i, c := range changes {
		next, ok := replaceRun(cand, keyFields(c.Original), keyFields(c.Rewritten))
		if !ok {
			continue
		}
		cand = next
		used = append(used, i)
	}
	if len(used) > 0 && slices.Equal(cand, kr) {
		return used, true
	}
	return nil, false
}

func isSpace(toks []string) bool {
	for _, t := range toks {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

// verifyRewrite compares original and rewritten token by token and reverts
// every changed region that the declared changes do not account for.
// Whitespace-only edits are always reverted. It returns the verified text,
// the confirmed changes, and the number of regions reverted.
func verifyRewrite(original, rewritten string, changes []Change) (string, []Change, int) {
	if original == rewritten {
		return original, nil, 0
	}

	codec := newTokenCodec()
	a := codec.encode(tokenize(original))
	b := codec.encode(tokenize(rewritten))

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(a, b, false)

	var (
		out      strings.Builder
		verified []Change
		seen     = make(map[int]bool)
		del, ins []string
		reverted int
	)
	flush := func() {
		if len(del) == 0 && len(ins) == 0 {
			return
		}
		orig, repl := strings.Join(del, ""), strings.Join(ins, "")
		if idx, ok := declared(changes, orig, repl); ok {
			out.WriteString(repl)
			for _, i := range idx {
				if !seen[i] {
					seen[i] = true
					verified = append(verified, changes[i])
				}
			}
		} else {
			out.WriteString(orig)
			reverted++
		}
		del, ins = nil, nil
	}

	for i, d := range diffs {
		toks := codec.decode(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			del = append(del, toks...)
		case diffmatchpatch.DiffInsert:
			ins = append(ins, toks...)
		default:
			// Whitespace between two edits joins them into one region.
			if (len(del) > 0 || len(ins) > 0) && i+1 < len(diffs) && isSpace(toks) {
				del = append(del, toks...)
				ins = append(ins, toks...)
				continue
			}
			flush()
			out.WriteString(strings.Join(toks, ""))
		}
	}
	flush()

	return out.String(), verified, reverted
}
