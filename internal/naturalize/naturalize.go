// Package naturalize rewrites machine-sounding Hebrew into idiomatic legal or
// marketing prose with a language model, and combines that rewrite with the
// deterministic phrase stage in a [Pipeline].
//
// The model is asked for a JSON object holding the rewritten text and an
// itemised list of changes. When the reply cannot be parsed the input text is
// returned unchanged and no error is reported; only transport failures and
// cancellation surface as errors. In strict mode every edit the model made but
// did not declare is reverted before the text is returned.
package naturalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tikunlabs/tikun/internal/observe"
	"github.com/tikunlabs/tikun/pkg/provider/llm"
)

const defaultTemperature = 0.2

// Style selects the target register.
type Style string

const (
	StyleLegal     Style = "legal"
	StyleMarketing Style = "marketing"
)

var (
	// ErrUnknownStyle is returned for a style other than legal or marketing.
	ErrUnknownStyle = errors.New("naturalize: unknown style")

	// ErrTextTooLong is returned when the prompt would not fit the model's
	// context window.
	ErrTextTooLong = errors.New("naturalize: text too long for model context")
)

// ParseStyle converts s to a [Style]. An empty string yields def.
func ParseStyle(s string, def Style) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case StyleLegal:
		return StyleLegal, nil
	case StyleMarketing:
		return StyleMarketing, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownStyle, s)
	}
}

// Change is one edit reported by the model.
type Change struct {
	Original  string `json:"original"`
	Rewritten string `json:"rewritten"`
	Reason    string `json:"reason"`
}

type llmResponse struct {
	RewrittenText string   `json:"rewritten_text"`
	Changes       []Change `json:"changes"`
}

const promptHeader = `You are a senior Hebrew copy editor. The user sends Hebrew text that was drafted by an AI system and reads like a translation.

Rewrite it so that it reads as if written by a native Hebrew professional.

Rules:
- Keep the meaning, facts, names, numbers and dates exactly as they are.
- Keep paragraph breaks and list structure.
- Prefer short, direct Hebrew phrasing over calques from English.
- Change only what needs changing; do not rewrite sentences that are already natural.
`

const legalRules = `- Register: Israeli legal drafting (contracts, pleadings, legal opinions).
- Use the accepted legal formulations ("מבלי לגרוע מכלליות האמור", "לרבות", "בכפוף ל").
- Never change defined terms, section numbers or cross references.
`

const marketingRules = `- Register: Israeli marketing copy for websites and brochures.
- Be warm and concrete; drop hollow superlatives and translated clichés.
- Address the reader consistently (plural "אתם" unless the text already uses singular).
`

const promptFooter = `
Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "rewritten_text": "<the full rewritten text>",
  "changes": [
    {"original": "<span from the input>", "rewritten": "<its replacement>", "reason": "<short reason in Hebrew>"}
  ]
}

List every change you made. If nothing needs changing, return the input unchanged and an empty changes array.`

func systemPrompt(style Style) string {
	rules := legalRules
	if style == StyleMarketing {
		rules = marketingRules
	}
	return promptHeader + rules + promptFooter
}

// Option configures a [Naturalizer].
type Option func(*Naturalizer)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(n *Naturalizer) { n.temperature = temp }
}

// WithStrict enables reverting edits the model did not declare.
func WithStrict(strict bool) Option {
	return func(n *Naturalizer) { n.strict = strict }
}

// WithMaxTokens caps the completion length. Zero means provider default.
func WithMaxTokens(n int) Option {
	return func(nz *Naturalizer) { nz.maxTokens = n }
}

// WithMetrics records latency, provider outcomes and reverted edits on m.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(n *Naturalizer) { n.metrics = m }
}

// WithProviderName sets the "provider" metric attribute. Default: "llm".
func WithProviderName(name string) Option {
	return func(n *Naturalizer) { n.providerName = name }
}

// Naturalizer rewrites text through an [llm.Provider]. It is safe for
// concurrent use.
type Naturalizer struct {
	llm          llm.Provider
	temperature  float64
	strict       bool
	maxTokens    int
	metrics      *observe.Metrics
	providerName string
}

// New returns a [Naturalizer] backed by provider.
func New(provider llm.Provider, opts ...Option) *Naturalizer {
	n := &Naturalizer{
		llm:          provider,
		temperature:  defaultTemperature,
		providerName: "llm",
	}
	for _, o := range opts {
		o(n)
	}
	if n.metrics == nil {
		n.metrics = observe.DefaultMetrics()
	}
	return n
}

// Strict reports whether undeclared edits are reverted.
func (n *Naturalizer) Strict() bool { return n.strict }

// Rewrite asks the model to rewrite text in style and returns the rewritten
// text with the declared changes. Blank text is returned as is without
// calling the model.
func (n *Naturalizer) Rewrite(ctx context.Context, text string, style Style) (string, []Change, error) {
	if style != StyleLegal && style != StyleMarketing {
		return text, nil, fmt.Errorf("%w %q", ErrUnknownStyle, style)
	}
	if strings.TrimSpace(text) == "" {
		return text, nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt(style),
		Temperature:  n.temperature,
		MaxTokens:    n.maxTokens,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
	}
	if err := n.checkBudget(req); err != nil {
		return text, nil, err
	}

	start := time.Now()
	resp, err := n.llm.Complete(ctx, req)
	n.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		n.metrics.RecordProviderRequest(ctx, n.providerName, "llm", "error")
		n.metrics.RecordProviderError(ctx, n.providerName, "llm")
		return text, nil, fmt.Errorf("naturalize: complete: %w", err)
	}
	n.metrics.RecordProviderRequest(ctx, n.providerName, "llm", "ok")
	if resp == nil {
		return text, nil, nil
	}

	rewritten, changes, err := parseResponse(resp.Content, text)
	if err != nil {
		observe.Logger(ctx).Warn("naturalize: unparseable model reply, keeping input",
			"err", err, "finish_reason", resp.FinishReason)
		return text, nil, nil //nolint:nilerr // unparseable replies degrade to the input
	}
	if n.strict {
		var reverted int
		rewritten, changes, reverted = verifyRewrite(text, rewritten, changes)
		if reverted > 0 {
			n.metrics.Reverted.Add(ctx, int64(reverted))
			observe.Logger(ctx).Debug("naturalize: reverted undeclared edits", "regions", reverted)
		}
	}
	return rewritten, changes, nil
}

// checkBudget rejects prompts that cannot fit the model. Providers reporting
// no context window are not checked.
func (n *Naturalizer) checkBudget(req llm.CompletionRequest) error {
	caps := n.llm.Capabilities()
	if caps.ContextWindow <= 0 {
		return nil
	}
	msgs := append([]llm.Message{{Role: llm.RoleSystem, Content: req.SystemPrompt}}, req.Messages...)
	tokens, err := n.llm.CountTokens(msgs)
	if err != nil {
		return nil //nolint:nilerr // a failed estimate leaves the decision to the backend
	}
	// The rewrite is roughly as long as the input.
	if tokens+tokens/2 > caps.ContextWindow {
		return fmt.Errorf("%w: about %d tokens, window %d", ErrTextTooLong, tokens, caps.ContextWindow)
	}
	return nil
}

func parseResponse(content, original string) (string, []Change, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return "", nil, fmt.Errorf("naturalize: parse response: %w", err)
	}
	if r.RewrittenText == "" {
		return original, nil, nil
	}

	changes := make([]Change, 0, len(r.Changes))
	for _, c := range r.Changes {
		if c.Original == "" || c.Original == c.Rewritten {
			continue
		}
		changes = append(changes, c)
	}
	return r.RewrittenText, changes, nil
}

// stripMarkdown removes the ```json fences some models wrap JSON in.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
