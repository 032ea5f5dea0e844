package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tikunlabs/tikun/internal/customrules"
	"github.com/tikunlabs/tikun/internal/highlight"
	"github.com/tikunlabs/tikun/internal/history"
	"github.com/tikunlabs/tikun/internal/idnumber"
	"github.com/tikunlabs/tikun/internal/inheritance"
	"github.com/tikunlabs/tikun/internal/naturalize"
	"github.com/tikunlabs/tikun/internal/phrase"
)

const (
	defaultRulesLimit   = 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type correctRequest struct {
	Text      string `json:"text"`
	Normalize bool   `json:"normalize"`
}

// correctionResponse is shared by the correct and naturalize routes.
type correctionResponse struct {
	Original    string                  `json:"original"`
	Corrected   string                  `json:"corrected"`
	Corrections []naturalize.Correction `json:"corrections"`
	BeforeHTML  string                  `json:"before_html"`
	AfterHTML   string                  `json:"after_html"`
	DiffHTML    string                  `json:"diff_html"`
}

func (s *Server) respond(w http.ResponseWriter, res *naturalize.Result) {
	before := make([]string, 0, len(res.Corrections))
	after := make([]string, 0, len(res.Corrections))
	for _, c := range res.Corrections {
		before = append(before, c.Original)
		after = append(after, c.Corrected)
	}
	cls := s.classes.Load()
	writeJSON(w, http.StatusOK, correctionResponse{
		Original:    res.Original,
		Corrected:   res.Corrected,
		Corrections: res.Corrections,
		BeforeHTML:  highlight.Highlight(res.Original, before, cls.Before),
		AfterHTML:   highlight.Highlight(res.Corrected, after, cls.After),
		DiffHTML:    highlight.Diff(res.Original, res.Corrected),
	})
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if !decode(w, r, &req) {
		return
	}
	text := req.Text
	if req.Normalize {
		text = norm.NFC.String(text)
	}

	res, err := s.pipeline.Run(r.Context(), text, naturalize.Request{})
	if err != nil {
		internalError(w, r, "correct", err)
		return
	}
	s.record(r.Context(), history.Run{
		Mode:        naturalize.MethodPhrase,
		Original:    res.Original,
		Corrected:   res.Corrected,
		Corrections: res.Corrections,
	})
	s.respond(w, res)
}

type naturalizeRequest struct {
	Text   string `json:"text"`
	Style  string `json:"style"`
	UseLLM bool   `json:"use_llm"`
}

func (s *Server) handleNaturalize(w http.ResponseWriter, r *http.Request) {
	var req naturalizeRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.pipeline.Run(r.Context(), req.Text, naturalize.Request{
		Style:  naturalize.Style(strings.ToLower(strings.TrimSpace(req.Style))),
		UseLLM: req.UseLLM,
	})
	switch {
	case errors.Is(err, naturalize.ErrUnknownStyle):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, naturalize.ErrTextTooLong):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, naturalize.ErrLLMUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		internalError(w, r, "naturalize", err)
		return
	}

	mode := naturalize.MethodPhrase
	if req.UseLLM {
		mode = naturalize.MethodLLM
	}
	s.record(r.Context(), history.Run{
		Mode:        mode,
		Style:       req.Style,
		Original:    res.Original,
		Corrected:   res.Corrected,
		Corrections: res.Corrections,
	})
	s.respond(w, res)
}

type highlightRequest struct {
	Text    string   `json:"text"`
	Phrases []string `json:"phrases"`
	Style   string   `json:"style"`
}

type highlightResponse struct {
	HTML  string           `json:"html"`
	Spans []highlight.Span `json:"spans"`
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if !decode(w, r, &req) {
		return
	}
	spans := highlight.Spans(req.Text, req.Phrases)
	if spans == nil {
		spans = []highlight.Span{}
	}
	writeJSON(w, http.StatusOK, highlightResponse{
		HTML:  highlight.Highlight(req.Text, req.Phrases, req.Style),
		Spans: spans,
	})
}

type diffRequest struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type diffResponse struct {
	HTML  string           `json:"html"`
	Spans []highlight.Span `json:"spans"`
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, diffResponse{
		HTML:  highlight.Diff(req.Before, req.After),
		Spans: highlight.DiffSpans(req.Before, req.After),
	})
}

type rulesResponse struct {
	Count   int            `json:"count"`
	Rules   []phrase.Rule  `json:"rules,omitempty"`
	Matches []phrase.Match `json:"matches,omitempty"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		rules := s.rules.AllRules()
		writeJSON(w, http.StatusOK, rulesResponse{Count: len(rules), Rules: rules})
		return
	}
	limit, ok := queryLimit(w, r, defaultRulesLimit, 0)
	if !ok {
		return
	}
	matches := s.rules.Search(q, limit)
	writeJSON(w, http.StatusOK, rulesResponse{Count: len(matches), Matches: matches})
}

func (s *Server) handleListCustom(w http.ResponseWriter, r *http.Request) {
	if s.custom == nil {
		writeError(w, http.StatusServiceUnavailable, "custom rule store not configured")
		return
	}
	rules, err := s.custom.All(r.Context())
	if err != nil {
		internalError(w, r, "list custom rules", err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Count: len(rules), Rules: rules})
}

type putCustomResponse struct {
	Rule phrase.Rule `json:"rule"`

	// Similar lists existing rules that look like near-duplicates.
	Similar []phrase.Match `json:"similar,omitempty"`
}

func (s *Server) handlePutCustom(w http.ResponseWriter, r *http.Request) {
	if s.custom == nil {
		writeError(w, http.StatusServiceUnavailable, "custom rule store not configured")
		return
	}
	var rule phrase.Rule
	if !decode(w, r, &rule) {
		return
	}

	// Look for near-duplicates before the new rule joins the dictionary.
	var similar []phrase.Match
	for _, m := range s.rules.Search(rule.Before, 5) {
		if !strings.EqualFold(m.Rule.Before, strings.TrimSpace(rule.Before)) {
			similar = append(similar, m)
		}
	}

	if err := s.custom.Put(r.Context(), rule); err != nil {
		if errors.Is(err, customrules.ErrInvalidRule) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		internalError(w, r, "put custom rule", err)
		return
	}
	s.customChanged(r)
	writeJSON(w, http.StatusCreated, putCustomResponse{Rule: rule, Similar: similar})
}

func (s *Server) handleDeleteCustom(w http.ResponseWriter, r *http.Request) {
	if s.custom == nil {
		writeError(w, http.StatusServiceUnavailable, "custom rule store not configured")
		return
	}
	before := r.PathValue("before")
	if strings.TrimSpace(before) == "" {
		writeError(w, http.StatusBadRequest, "before is required")
		return
	}
	if err := s.custom.Delete(r.Context(), before); err != nil {
		if errors.Is(err, customrules.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		internalError(w, r, "delete custom rule", err)
		return
	}
	s.customChanged(r)
	w.WriteHeader(http.StatusNoContent)
}

// customChanged lets the owner rebuild its dictionary. The write already
// succeeded, so a failed rebuild is only logged.
func (s *Server) customChanged(r *http.Request) {
	if s.onCustomChange == nil {
		return
	}
	if err := s.onCustomChange(r.Context()); err != nil {
		internalLog(r, "reload dictionary after custom rule change", err)
	}
}

type historyResponse struct {
	Runs []history.Run `json:"runs"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}
	limit, ok := queryLimit(w, r, defaultHistoryLimit, maxHistoryLimit)
	if !ok {
		return
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		internalError(w, r, "list history", err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Runs: runs})
}

type validateIDRequest struct {
	ID string `json:"id"`
}

type validateIDResponse struct {
	Valid  bool   `json:"valid"`
	Padded string `json:"padded,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleValidateID(w http.ResponseWriter, r *http.Request) {
	var req validateIDRequest
	if !decode(w, r, &req) {
		return
	}
	if err := idnumber.Validate(req.ID); err != nil {
		writeJSON(w, http.StatusOK, validateIDResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateIDResponse{Valid: true, Padded: idnumber.Pad(req.ID)})
}

func (s *Server) handleInheritance(w http.ResponseWriter, r *http.Request) {
	var heirs inheritance.Heirs
	if !decode(w, r, &heirs) {
		return
	}
	dist, err := inheritance.Calculate(heirs)
	switch {
	case errors.Is(err, inheritance.ErrInvalidHeirs), errors.Is(err, inheritance.ErrNoHeirs):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		internalError(w, r, "inheritance", err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

// queryLimit parses ?limit=, answering 400 for garbage. ceiling <= 0 means no
// upper bound.
func queryLimit(w http.ResponseWriter, r *http.Request, def, ceiling int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n, true
}
