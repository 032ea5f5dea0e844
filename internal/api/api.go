// Package api exposes the correction engine over a JSON HTTP API.
//
// Routes (all bodies are JSON):
//
//	POST   /api/v1/correct               phrase correction with highlights
//	POST   /api/v1/highlight             mark phrases in a text
//	POST   /api/v1/diff                  inline diff of two texts
//	POST   /api/v1/naturalize            phrase stage plus optional LLM rewrite
//	GET    /api/v1/rules                 active rules, or fuzzy search with ?q=
//	GET    /api/v1/custom-rules          list custom rules
//	POST   /api/v1/custom-rules          add or replace a custom rule
//	DELETE /api/v1/custom-rules/{before} remove a custom rule
//	GET    /api/v1/history               recent runs
//	POST   /api/v1/id/validate           Israeli ID checksum
//	POST   /api/v1/inheritance           intestate shares
//
// Errors are returned as {"error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/tikunlabs/tikun/internal/history"
	"github.com/tikunlabs/tikun/internal/naturalize"
	"github.com/tikunlabs/tikun/internal/observe"
	"github.com/tikunlabs/tikun/internal/phrase"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Rules is the active rule set.
type Rules interface {
	AllRules() []phrase.Rule
	Search(query string, limit int) []phrase.Match
}

// CustomRules is the store behind the custom-rules routes.
type CustomRules interface {
	Put(ctx context.Context, r phrase.Rule) error
	Delete(ctx context.Context, before string) error
	All(ctx context.Context) ([]phrase.Rule, error)
}

// History is the run log behind the history route.
type History interface {
	Record(ctx context.Context, r history.Run) (int64, error)
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Classes are the CSS classes used to mark the two sides of a correction.
type Classes struct {
	Before string
	After  string
}

// Option configures a [Server].
type Option func(*Server)

// WithCustomRules enables the custom-rules routes. onChange runs after every
// successful write so the caller can rebuild its dictionary.
func WithCustomRules(store CustomRules, onChange func(context.Context) error) Option {
	return func(s *Server) {
		s.custom = store
		s.onCustomChange = onChange
	}
}

// WithHistory enables run recording and the history route.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithClasses sets the initial highlight classes.
func WithClasses(c Classes) Option {
	return func(s *Server) { s.classes.Store(&c) }
}

// Server holds the handlers. It is safe for concurrent use.
type Server struct {
	rules    Rules
	pipeline *naturalize.Pipeline

	custom         CustomRules
	onCustomChange func(context.Context) error
	history        History

	classes atomic.Pointer[Classes]
}

// New returns a [Server] answering from rules and pipeline.
func New(rules Rules, pipeline *naturalize.Pipeline, opts ...Option) *Server {
	s := &Server{rules: rules, pipeline: pipeline}
	s.classes.Store(&Classes{Before: "before", After: "after"})
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetClasses replaces the highlight classes for subsequent requests.
func (s *Server) SetClasses(c Classes) {
	s.classes.Store(&c)
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/correct", s.handleCorrect)
	mux.HandleFunc("POST /api/v1/highlight", s.handleHighlight)
	mux.HandleFunc("POST /api/v1/diff", s.handleDiff)
	mux.HandleFunc("POST /api/v1/naturalize", s.handleNaturalize)
	mux.HandleFunc("GET /api/v1/rules", s.handleRules)
	mux.HandleFunc("GET /api/v1/custom-rules", s.handleListCustom)
	mux.HandleFunc("POST /api/v1/custom-rules", s.handlePutCustom)
	mux.HandleFunc("DELETE /api/v1/custom-rules/{before}", s.handleDeleteCustom)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("POST /api/v1/id/validate", s.handleValidateID)
	mux.HandleFunc("POST /api/v1/inheritance", s.handleInheritance)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// internalError logs err and answers 500 without leaking details.
func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	internalLog(r, op, err)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func internalLog(r *http.Request, op string, err error) {
	observe.Logger(r.Context()).Error("api: "+op+" failed", "err", err)
}

// record stores a run when history is enabled. Failures are logged only.
func (s *Server) record(ctx context.Context, run history.Run) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(ctx, run); err != nil {
		observe.Logger(ctx).Warn("api: failed to record run", "mode", run.Mode, "err", err)
	}
}
