package correct

import (
	"unicode"
	"unicode/utf8"
)

// IsWordRune reports whether r counts as part of a word: any Unicode letter
// or number.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// IsBoundary reports whether the span text[start:end] is delimited by
// non-word runes (or the ends of text) on both sides.
func IsBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if IsWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if IsWordRune(r) {
			return false
		}
	}
	return true
}

// runeLen returns the byte length of the rune starting at text[i], or 1 at
// the end of text.
func runeLen(text string, i int) int {
	if i >= len(text) {
		return 1
	}
	_, n := utf8.DecodeRuneInString(text[i:])
	return n
}
