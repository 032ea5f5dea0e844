package correct_test

import (
	"reflect"
	"testing"

	"github.com/tikunlabs/tikun/internal/correct"
	"github.com/tikunlabs/tikun/internal/phrase"
)

func rule(before, after, comment string) phrase.Rule {
	return phrase.Rule{Before: before, After: []string{after}, Comment: comment}
}

func TestCorrect_ConcreteScenario(t *testing.T) {
	t.Parallel()

	got, corrs := correct.Correct("הצדדים אשר מגיעים מסכימים",
		[]phrase.Rule{rule("אשר", "ש", "קיצור")})

	if want := "הצדדים ש מגיעים מסכימים"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	want := []correct.Correction{{Original: "אשר", Corrected: "ש", Comment: "קיצור"}}
	if !reflect.DeepEqual(corrs, want) {
		t.Errorf("corrections = %+v, want %+v", corrs, want)
	}
}

func TestCorrect_NoMatchIsIdentity(t *testing.T) {
	t.Parallel()

	const text = "החוזה נחתם כדין בין הצדדים."
	got, corrs := correct.Correct(text, phrase.New(phrase.Builtin()...).AllRules())
	if got != text {
		t.Errorf("text = %q, want unchanged", got)
	}
	if corrs == nil || len(corrs) != 0 {
		t.Errorf("corrections = %#v, want empty non-nil slice", corrs)
	}
}

func TestCorrect_SingleOccurrencePerRule(t *testing.T) {
	t.Parallel()

	text := "יש לציין כי החוזה נחתם. יש לציין כי התמורה שולמה."
	got, corrs := correct.Correct(text, []phrase.Rule{rule("יש לציין כי", "יצוין", "")})

	want := "יצוין החוזה נחתם. יש לציין כי התמורה שולמה."
	if got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(corrs) != 1 {
		t.Errorf("len(corrections) = %d, want 1", len(corrs))
	}
}

func TestCorrect_WordBoundaries(t *testing.T) {
	t.Parallel()

	rules := []phrase.Rule{rule("דין", "משפט", "")}

	tests := []struct {
		name string
		text string
		want string
		hits int
	}{
		{"inside larger word", "עורכידין", "עורכידין", 0},
		{"prefix letter", "לדין", "לדין", 0},
		{"suffix letter", "דינים", "דינים", 0},
		{"adjacent digit", "דין2", "דין2", 0},
		{"spaces", "פסק דין סופי", "פסק משפט סופי", 1},
		{"punctuation", "(דין)", "(משפט)", 1},
		{"hyphen", "עורכי-דין", "עורכי-משפט", 1},
		{"whole text", "דין", "משפט", 1},
		{"start of text", "דין, ודברים", "משפט, ודברים", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, corrs := correct.Correct(tc.text, rules)
			if got != tc.want {
				t.Errorf("text = %q, want %q", got, tc.want)
			}
			if len(corrs) != tc.hits {
				t.Errorf("len(corrections) = %d, want %d", len(corrs), tc.hits)
			}
		})
	}
}

func TestCorrect_SkipsRejectedOccurrence(t *testing.T) {
	t.Parallel()

	// The first occurrence is glued to a letter; the second stands alone.
	got, corrs := correct.Correct("עורכידין ודין ועוד דין", []phrase.Rule{rule("דין", "משפט", "")})
	if want := "עורכידין ודין ועוד משפט"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(corrs) != 1 {
		t.Errorf("len(corrections) = %d, want 1", len(corrs))
	}
}

func TestCorrect_OverlappingCandidate(t *testing.T) {
	t.Parallel()

	// "a a" first matches at index 1 (preceded by "b"), which is rejected;
	// the valid overlapping match starts at index 3.
	got, _ := correct.Correct("ba a a", []phrase.Rule{rule("a a", "X", "")})
	if want := "ba X"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestCorrect_CaseInsensitive(t *testing.T) {
	t.Parallel()

	got, corrs := correct.Correct("Please Note That the fee is due.",
		[]phrase.Rule{rule("please note that", "note:", "wordy")})
	if want := "note: the fee is due."; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(corrs) != 1 || corrs[0].Original != "Please Note That" {
		t.Errorf("corrections = %+v, want original as it appeared", corrs)
	}
}

func TestCorrect_CascadingRules(t *testing.T) {
	t.Parallel()

	// The second rule matches text introduced by the first.
	rules := []phrase.Rule{
		rule("בסוף היום", "בסופו של דבר", ""),
		rule("בסופו של דבר", "לבסוף", ""),
	}
	got, corrs := correct.Correct("בסוף היום נחתם ההסכם", rules)
	if want := "לבסוף נחתם ההסכם"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	want := []correct.Correction{
		{Original: "בסוף היום", Corrected: "בסופו של דבר"},
		{Original: "בסופו של דבר", Corrected: "לבסוף"},
	}
	if !reflect.DeepEqual(corrs, want) {
		t.Errorf("corrections = %+v, want %+v", corrs, want)
	}
}

func TestCorrect_EarlierRuleDoesNotSeeLaterOutput(t *testing.T) {
	t.Parallel()

	rules := []phrase.Rule{
		rule("בסופו של דבר", "לבסוף", ""),
		rule("בסוף היום", "בסופו של דבר", ""),
	}
	got, corrs := correct.Correct("בסוף היום נחתם ההסכם", rules)
	if want := "בסופו של דבר נחתם ההסכם"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if len(corrs) != 1 {
		t.Errorf("len(corrections) = %d, want 1", len(corrs))
	}
}

func TestCorrect_OrderFollowsRulesNotText(t *testing.T) {
	t.Parallel()

	rules := []phrase.Rule{
		rule("הינם", "הם", "second in text"),
		rule("הינו", "הוא", "first in text"),
	}
	_, corrs := correct.Correct("הוא הינו שותף והם הינם שותפים", rules)
	if len(corrs) != 2 {
		t.Fatalf("len(corrections) = %d, want 2", len(corrs))
	}
	if corrs[0].Original != "הינם" || corrs[1].Original != "הינו" {
		t.Errorf("corrections order = %+v, want rule order", corrs)
	}
}

func TestCorrect_PreferredCandidateOnly(t *testing.T) {
	t.Parallel()

	r := phrase.Rule{Before: "בנוסף לכך", After: []string{"כמו כן", "בנוסף"}}
	got, _ := correct.Correct("בנוסף לכך, התמורה תשולם.", []phrase.Rule{r})
	if want := "כמו כן, התמורה תשולם."; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestCorrect_SkipsMalformedRules(t *testing.T) {
	t.Parallel()

	rules := []phrase.Rule{
		{Before: "", After: []string{"x"}},
		{Before: "דין", After: nil},
		rule("דין", "משפט", ""),
	}
	got, corrs := correct.Correct("פסק דין", rules)
	if got != "פסק משפט" || len(corrs) != 1 {
		t.Errorf("Correct = %q, %+v", got, corrs)
	}
}

func TestCorrect_InvalidUTF8(t *testing.T) {
	t.Parallel()

	rules := []phrase.Rule{
		{Before: "\xff", After: []string{"x"}},
		{Before: "דין\xfe", After: []string{"x"}},
		rule("דין", "משפט", ""),
	}
	got, corrs := correct.Correct("פסק \xff דין", rules)
	if got != "פסק \xff משפט" || len(corrs) != 1 {
		t.Errorf("Correct = %q, %+v", got, corrs)
	}
}

func TestEngine_MatchesUncachedCorrect(t *testing.T) {
	t.Parallel()

	d := phrase.New(phrase.Builtin()...)
	e := correct.NewEngine(d)
	for _, text := range []string{
		"יש לציין כי הצדדים מסכימים ביניהם על מנת לקבל החלטה.",
		"על מנת לבצע בדיקה",
		"",
	} {
		gotText, gotCorrs := e.Correct(text)
		wantText, wantCorrs := correct.Correct(text, d.AllRules())
		if gotText != wantText || !reflect.DeepEqual(gotCorrs, wantCorrs) {
			t.Errorf("Engine.Correct(%q) = %q %+v, want %q %+v", text, gotText, gotCorrs, wantText, wantCorrs)
		}
	}
}

func TestCorrect_RegexMetacharactersAreLiteral(t *testing.T) {
	t.Parallel()

	got, corrs := correct.Correct("סעיף (א) וסעיף אא", []phrase.Rule{rule("(א)", "[א]", "")})
	if got != "סעיף [א] וסעיף אא" || len(corrs) != 1 {
		t.Errorf("Correct = %q, %+v", got, corrs)
	}
}

func TestCorrect_Deterministic(t *testing.T) {
	t.Parallel()

	rules := phrase.New(phrase.Builtin()...).AllRules()
	const text = "יש לציין כי הצדדים מסכימים ביניהם על מנת לקבל החלטה בתקופה הקרובה. בעולם של היום, אל תהססו לפנות."

	t1, c1 := correct.Correct(text, rules)
	t2, c2 := correct.Correct(text, rules)
	if t1 != t2 || !reflect.DeepEqual(c1, c2) {
		t.Errorf("outputs differ:\n%q %+v\n%q %+v", t1, c1, t2, c2)
	}
	if len(c1) != 7 {
		t.Errorf("len(corrections) = %d, want 7: %+v", len(c1), c1)
	}
}

func TestEngine_UsesInjectedDictionary(t *testing.T) {
	t.Parallel()

	e := correct.NewEngine(phrase.New(phrase.Category{Name: "test", Rules: []phrase.Rule{
		rule("אשר", "ש", "קיצור"),
	}}))
	got, corrs := e.Correct("הצדדים אשר מגיעים")
	if got != "הצדדים ש מגיעים" || len(corrs) != 1 {
		t.Errorf("Engine.Correct = %q, %+v", got, corrs)
	}
	if e.Dictionary().Len() != 1 {
		t.Errorf("Dictionary().Len() = %d, want 1", e.Dictionary().Len())
	}
}

func TestIsBoundary(t *testing.T) {
	t.Parallel()

	text := "אב גד"
	// "אב" occupies bytes 0..4, space at 4, "גד" at 5..9.
	if !correct.IsBoundary(text, 0, 4) {
		t.Error("IsBoundary(אב) = false, want true")
	}
	if correct.IsBoundary(text, 0, 2) {
		t.Error("IsBoundary(א) = true, want false")
	}
	if !correct.IsBoundary(text, 5, 9) {
		t.Error("IsBoundary(גד) = false, want true")
	}
}
