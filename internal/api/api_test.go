package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tikunlabs/tikun/internal/api"
	"github.com/tikunlabs/tikun/internal/correct"
	"github.com/tikunlabs/tikun/internal/customrules"
	"github.com/tikunlabs/tikun/internal/history"
	"github.com/tikunlabs/tikun/internal/naturalize"
	"github.com/tikunlabs/tikun/internal/phrase"
	"github.com/tikunlabs/tikun/pkg/provider/llm"
	"github.com/tikunlabs/tikun/pkg/provider/llm/mock"
)

// fakeCustom is an in-memory api.CustomRules.
type fakeCustom struct {
	mu    sync.Mutex
	rules map[string]phrase.Rule
	err   error
}

func newFakeCustom() *fakeCustom { return &fakeCustom{rules: make(map[string]phrase.Rule)} }

func (f *fakeCustom) Put(_ context.Context, r phrase.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := r.Check(); err != nil {
		return errors.Join(customrules.ErrInvalidRule, err)
	}
	f.rules[r.Before] = r
	return nil
}

func (f *fakeCustom) Delete(_ context.Context, before string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[before]; !ok {
		return customrules.ErrNotFound
	}
	delete(f.rules, before)
	return nil
}

func (f *fakeCustom) All(context.Context) ([]phrase.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]phrase.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b phrase.Rule) int { return strings.Compare(a.Before, b.Before) })
	return out, nil
}

// fakeHistory is an in-memory api.History.
type fakeHistory struct {
	mu   sync.Mutex
	runs []history.Run
}

func (f *fakeHistory) Record(_ context.Context, r history.Run) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, r)
	return r.ID, nil
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]history.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.runs)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistory) all() []history.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.runs)
}

func testDictionary() *phrase.Dictionary {
	return phrase.New(phrase.Category{Name: "test", Rules: []phrase.Rule{
		{Before: "אשר", After: []string{"ש"}, Comment: "קיצור"},
		{Before: "על מנת", After: []string{"כדי"}, Comment: "תרגומית"},
	}})
}

type fixture struct {
	srv     *httptest.Server
	custom  *fakeCustom
	history *fakeHistory
	llm     *mock.Provider
	reloads atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		custom:  newFakeCustom(),
		history: &fakeHistory{},
		llm: &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: `{"rewritten_text": "כדי להחליט", "changes": [{"original": "לקבל החלטה", "rewritten": "להחליט", "reason": "פועל"}]}`,
		}},
	}
	dict := testDictionary()
	pipe := naturalize.NewPipeline(correct.NewEngine(dict), naturalize.WithNaturalizer(naturalize.New(f.llm)))
	s := api.New(dict, pipe,
		api.WithCustomRules(f.custom, func(context.Context) error {
			f.reloads.Add(1)
			return nil
		}),
		api.WithHistory(f.history),
		api.WithClasses(api.Classes{Before: "old", After: "new"}),
	)
	mux := http.NewServeMux()
	s.Register(mux)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

type correctBody struct {
	Original    string                  `json:"original"`
	Corrected   string                  `json:"corrected"`
	Corrections []naturalize.Correction `json:"corrections"`
	BeforeHTML  string                  `json:"before_html"`
	AfterHTML   string                  `json:"after_html"`
	DiffHTML    string                  `json:"diff_html"`
}

type errorBody struct {
	Error string `json:"error"`
}

func TestCorrect(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got correctBody
	code := do(t, "POST", f.srv.URL+"/api/v1/correct", `{"text": "הצדדים אשר מגיעים"}`, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Corrected != "הצדדים ש מגיעים" || len(got.Corrections) != 1 {
		t.Errorf("response = %+v", got)
	}
	if want := `הצדדים <mark class="old">אשר</mark> מגיעים`; got.BeforeHTML != want {
		t.Errorf("before_html = %q, want %q", got.BeforeHTML, want)
	}
	if want := `הצדדים <mark class="new">ש</mark> מגיעים`; got.AfterHTML != want {
		t.Errorf("after_html = %q, want %q", got.AfterHTML, want)
	}
	if !strings.Contains(got.DiffHTML, "<del>") {
		t.Errorf("diff_html = %q, want a deletion", got.DiffHTML)
	}
	if runs := f.history.all(); len(runs) != 1 || runs[0].Mode != naturalize.MethodPhrase {
		t.Errorf("history = %+v", runs)
	}
}

func TestCorrect_NoMatchReturnsEmptyList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var raw map[string]json.RawMessage
	if code := do(t, "POST", f.srv.URL+"/api/v1/correct", `{"text": "טקסט תקין"}`, &raw); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if string(raw["corrections"]) != "[]" {
		t.Errorf("corrections = %s, want []", raw["corrections"])
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed json", "POST", "/api/v1/correct", `{"text":`, http.StatusBadRequest},
		{"unknown field", "POST", "/api/v1/correct", `{"txt": "x"}`, http.StatusBadRequest},
		{"wrong method", "GET", "/api/v1/correct", ``, http.StatusMethodNotAllowed},
		{"unknown style", "POST", "/api/v1/naturalize", `{"text": "x", "style": "poetry", "use_llm": true}`, http.StatusBadRequest},
		{"bad limit", "GET", "/api/v1/history?limit=abc", ``, http.StatusBadRequest},
		{"bad heirs", "POST", "/api/v1/inheritance", `{"children": -1}`, http.StatusBadRequest},
		{"no heirs", "POST", "/api/v1/inheritance", `{}`, http.StatusBadRequest},
		{"invalid rule", "POST", "/api/v1/custom-rules", `{"before": "x", "after": []}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if code := do(t, tc.method, f.srv.URL+tc.path, tc.body, nil); code != tc.want {
				t.Errorf("status = %d, want %d", code, tc.want)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		HTML  string `json:"html"`
		Spans []struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		} `json:"spans"`
	}
	body := `{"text": "בנוסף לכך, <b>", "phrases": ["בנוסף", "בנוסף לכך"], "style": "hl"}`
	if code := do(t, "POST", f.srv.URL+"/api/v1/highlight", body, &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if want := `<mark class="hl">בנוסף לכך</mark>, &lt;b&gt;`; got.HTML != want {
		t.Errorf("html = %q, want %q", got.HTML, want)
	}
	if len(got.Spans) != 2 || got.Spans[0].Kind != "match" {
		t.Errorf("spans = %+v", got.Spans)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		HTML string `json:"html"`
	}
	if code := do(t, "POST", f.srv.URL+"/api/v1/diff", `{"before": "a & b", "after": "a & b"}`, &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.HTML != "a &amp; b" {
		t.Errorf("html = %q", got.HTML)
	}
}

func TestNaturalize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got correctBody
	code := do(t, "POST", f.srv.URL+"/api/v1/naturalize", `{"text": "על מנת לקבל החלטה", "style": "legal", "use_llm": true}`, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Corrected != "כדי להחליט" {
		t.Errorf("corrected = %q", got.Corrected)
	}
	if len(got.Corrections) != 2 || got.Corrections[1].Method != naturalize.MethodLLM {
		t.Errorf("corrections = %+v", got.Corrections)
	}
	if len(f.llm.Calls()) != 1 {
		t.Errorf("model calls = %d, want 1", len(f.llm.Calls()))
	}
	if runs := f.history.all(); len(runs) != 1 || runs[0].Mode != naturalize.MethodLLM || runs[0].Style != "legal" {
		t.Errorf("history = %+v", runs)
	}
}

func TestNaturalize_WithoutLLM(t *testing.T) {
	t.Parallel()

	dict := testDictionary()
	s := api.New(dict, naturalize.NewPipeline(correct.NewEngine(dict)))
	mux := http.NewServeMux()
	s.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var e errorBody
	if code := do(t, "POST", srv.URL+"/api/v1/naturalize", `{"text": "x", "use_llm": true}`, &e); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if e.Error == "" {
		t.Error("missing error message")
	}

	// Stores that are not configured answer 503 too.
	for _, path := range []string{"/api/v1/custom-rules", "/api/v1/history"} {
		if code := do(t, "GET", srv.URL+path, "", nil); code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, code)
		}
	}
}

func TestRules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var all struct {
		Count int           `json:"count"`
		Rules []phrase.Rule `json:"rules"`
	}
	if code := do(t, "GET", f.srv.URL+"/api/v1/rules", "", &all); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if all.Count != 2 || len(all.Rules) != 2 || all.Rules[0].Before != "אשר" {
		t.Errorf("rules = %+v", all)
	}

	var search struct {
		Count   int            `json:"count"`
		Matches []phrase.Match `json:"matches"`
	}
	q := url.QueryEscape("מנת")
	if code := do(t, "GET", f.srv.URL+"/api/v1/rules?q="+q+"&limit=1", "", &search); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if search.Count != 1 || search.Matches[0].Rule.Before != "על מנת" {
		t.Errorf("search = %+v", search)
	}
}

func TestCustomRules_Lifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var put struct {
		Rule    phrase.Rule    `json:"rule"`
		Similar []phrase.Match `json:"similar"`
	}
	code := do(t, "POST", f.srv.URL+"/api/v1/custom-rules", `{"before": "על מנת ש", "after": ["כדי ש"], "comment": "משרד"}`, &put)
	if code != http.StatusCreated {
		t.Fatalf("put status = %d", code)
	}
	if len(put.Similar) == 0 || put.Similar[0].Rule.Before != "על מנת" {
		t.Errorf("similar = %+v, want the builtin near-duplicate", put.Similar)
	}

	var list struct {
		Count int           `json:"count"`
		Rules []phrase.Rule `json:"rules"`
	}
	if code := do(t, "GET", f.srv.URL+"/api/v1/custom-rules", "", &list); code != http.StatusOK || list.Count != 1 {
		t.Fatalf("list = %d, %+v", code, list)
	}

	path := f.srv.URL + "/api/v1/custom-rules/" + url.PathEscape("על מנת ש")
	if code := do(t, "DELETE", path, "", nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", code)
	}
	if code := do(t, "DELETE", path, "", nil); code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", code)
	}
	if n := f.reloads.Load(); n != 2 {
		t.Errorf("reloads = %d, want 2", n)
	}
}

func TestCustomRules_StoreFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.custom.mu.Lock()
	f.custom.err = errors.New("redis down")
	f.custom.mu.Unlock()

	var e errorBody
	if code := do(t, "GET", f.srv.URL+"/api/v1/custom-rules", "", &e); code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
	if strings.Contains(e.Error, "redis down") {
		t.Errorf("error leaks internals: %q", e.Error)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, text := range []string{"אשר", "על מנת", "טקסט"} {
		do(t, "POST", f.srv.URL+"/api/v1/correct", `{"text": "`+text+`"}`, nil)
	}
	var got struct {
		Runs []history.Run `json:"runs"`
	}
	if code := do(t, "GET", f.srv.URL+"/api/v1/history?limit=2", "", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(got.Runs) != 2 || got.Runs[0].Original != "טקסט" {
		t.Errorf("runs = %+v", got.Runs)
	}
}

func TestValidateID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		id    string
		valid bool
	}{
		{"123456782", true},
		{"18", true},
		{"123456789", false},
		{"12a", false},
	}
	for _, tc := range tests {
		var got struct {
			Valid  bool   `json:"valid"`
			Padded string `json:"padded"`
			Error  string `json:"error"`
		}
		if code := do(t, "POST", f.srv.URL+"/api/v1/id/validate", `{"id": "`+tc.id+`"}`, &got); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if got.Valid != tc.valid {
			t.Errorf("id %q valid = %v, want %v (%s)", tc.id, got.Valid, tc.valid, got.Error)
		}
		if !tc.valid && got.Error == "" {
			t.Errorf("id %q: missing error", tc.id)
		}
	}
}

func TestInheritance(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Shares []struct {
			Class   string `json:"class"`
			Count   int    `json:"count"`
			Total   string `json:"total"`
			PerHead string `json:"per_head"`
		} `json:"shares"`
	}
	if code := do(t, "POST", f.srv.URL+"/api/v1/inheritance", `{"spouse": true, "children": 2}`, &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(got.Shares) != 2 {
		t.Fatalf("shares = %+v", got.Shares)
	}
	if got.Shares[0].Class != "spouse" || got.Shares[0].Total != "1/2" {
		t.Errorf("spouse share = %+v", got.Shares[0])
	}
	if got.Shares[1].Class != "children" || got.Shares[1].PerHead != "1/4" {
		t.Errorf("children share = %+v", got.Shares[1])
	}
}
