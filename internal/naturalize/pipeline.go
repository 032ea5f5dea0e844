package naturalize

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/unicode/norm"

	"github.com/tikunlabs/tikun/internal/correct"
	"github.com/tikunlabs/tikun/internal/observe"
)

// Correction methods.
const (
	MethodPhrase = observe.MethodPhrase
	MethodLLM    = observe.MethodLLM
)

// ErrLLMUnavailable is returned by [Pipeline.Run] when the LLM stage is
// requested but the pipeline has no [Naturalizer].
var ErrLLMUnavailable = errors.New("naturalize: no language model configured")

// Corrector runs the deterministic phrase stage. It is called once per run,
// so implementations may swap the rule set between runs. [correct.Engine]
// is the usual implementation.
type Corrector interface {
	Correct(text string) (string, []correct.Correction)
}

// Correction is one change applied by the pipeline, tagged with the stage
// that made it.
type Correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Comment   string `json:"comment"`
	Method    string `json:"method"`
}

// Request selects how a text is processed.
type Request struct {
	// Style is the register for the LLM stage. Empty means the pipeline
	// default.
	Style Style

	// UseLLM runs the LLM stage after the phrase stage.
	UseLLM bool
}

// Result is the outcome of a pipeline run. Corrections is never nil.
type Result struct {
	Original    string       `json:"original"`
	Corrected   string       `json:"corrected"`
	Corrections []Correction `json:"corrections"`
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithNaturalizer enables the LLM stage.
func WithNaturalizer(n *Naturalizer) PipelineOption {
	return func(p *Pipeline) { p.llm = n }
}

// WithPipelineMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithPipelineMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithInputNormalization converts input to Unicode NFC before matching.
func WithInputNormalization(on bool) PipelineOption {
	return func(p *Pipeline) { p.normalize.Store(on) }
}

// WithDefaultStyle sets the style used when a request leaves it empty.
// Default: [StyleLegal].
func WithDefaultStyle(s Style) PipelineOption {
	return func(p *Pipeline) { p.defaultStyle = s }
}

// Pipeline runs the phrase stage and, on request, the LLM stage. It is safe
// for concurrent use.
type Pipeline struct {
	phrases      Corrector
	llm          *Naturalizer
	metrics      *observe.Metrics
	normalize    atomic.Bool
	defaultStyle Style
}

// NewPipeline returns a [Pipeline] whose phrase stage is phrases.
func NewPipeline(phrases Corrector, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		phrases:      phrases,
		defaultStyle: StyleLegal,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// SetInputNormalization switches NFC input normalization for subsequent runs.
func (p *Pipeline) SetInputNormalization(on bool) { p.normalize.Store(on) }

// HasLLM reports whether the LLM stage is available.
func (p *Pipeline) HasLLM() bool { return p.llm != nil }

// Run corrects text. The phrase stage always runs; the LLM stage runs when
// req.UseLLM is set and rewrites the output of the phrase stage.
func (p *Pipeline) Run(ctx context.Context, text string, req Request) (*Result, error) {
	style, err := ParseStyle(string(req.Style), p.defaultStyle)
	if err != nil {
		return nil, err
	}
	if req.UseLLM && p.llm == nil {
		return nil, ErrLLMUnavailable
	}
	if p.normalize.Load() {
		text = norm.NFC.String(text)
	}

	res := &Result{Original: text, Corrections: []Correction{}}

	phraseCtx, span := observe.StartSpan(ctx, "naturalize.phrase")
	start := time.Now()
	corrected, corrs := p.phrases.Correct(text)
	p.metrics.CorrectDuration.Record(phraseCtx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("method", MethodPhrase)))
	p.metrics.RecordCorrections(phraseCtx, MethodPhrase, len(corrs))
	span.End()

	for _, c := range corrs {
		res.Corrections = append(res.Corrections, Correction{
			Original:  c.Original,
			Corrected: c.Corrected,
			Comment:   c.Comment,
			Method:    MethodPhrase,
		})
	}
	res.Corrected = corrected

	if !req.UseLLM {
		return res, nil
	}

	llmCtx, llmSpan := observe.StartSpan(ctx, "naturalize.llm")
	defer llmSpan.End()
	start = time.Now()
	rewritten, changes, err := p.llm.Rewrite(llmCtx, corrected, style)
	p.metrics.CorrectDuration.Record(llmCtx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("method", MethodLLM)))
	if err != nil {
		observe.FailSpan(llmSpan, err)
		return nil, fmt.Errorf("naturalize: llm stage: %w", err)
	}
	p.metrics.RecordCorrections(llmCtx, MethodLLM, len(changes))

	for _, c := range changes {
		res.Corrections = append(res.Corrections, Correction{
			Original:  c.Original,
			Corrected: c.Rewritten,
			Comment:   c.Reason,
			Method:    MethodLLM,
		})
	}
	res.Corrected = rewritten
	return res, nil
}
