package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/tikunlabs/tikun/internal/observe"
	"github.com/tikunlabs/tikun/pkg/provider/llm"
)

// ErrAllFailed is returned when every backend of a [Chain] failed or was
// skipped by its breaker.
var ErrAllFailed = errors.New("resilience: all llm backends failed")

type link struct {
	name     string
	provider llm.Provider
	breaker  *Breaker
}

// Chain implements [llm.Provider] with ordered failover across backends.
type Chain struct {
	cfg   BreakerConfig
	links []link
}

var _ llm.Provider = (*Chain)(nil)

// NewChain returns a [Chain] with primary as the preferred backend.
func NewChain(primary llm.Provider, name string, cfg BreakerConfig) *Chain {
	c := &Chain{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a fallback backend. Backends are tried in the order added.
// Add is not safe to call once the chain is serving requests.
func (c *Chain) Add(name string, p llm.Provider) {
	c.links = append(c.links, link{name: name, provider: p, breaker: NewBreaker(name, c.cfg)})
}

// Names returns the backend names in failover order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.name
	}
	return names
}

// Breaker returns the breaker of the backend at index i.
func (c *Chain) Breaker(i int) *Breaker { return c.links[i].breaker }

// Complete sends req to the first backend that answers. A cancelled ctx
// stops the failover.
func (c *Chain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var errs []error
	for _, l := range c.links {
		var resp *llm.CompletionResponse
		err := l.breaker.Do(func() error {
			var err error
			resp, err = l.provider.Complete(ctx, req)
			return err
		})
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("resilience: %s: %w", l.name, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
		if errors.Is(err, ErrOpen) {
			observe.Logger(ctx).Debug("llm backend skipped, circuit open", "backend", l.name)
			continue
		}
		observe.Logger(ctx).Warn("llm backend failed, trying next", "backend", l.name, "err", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

// CountTokens returns the count of the first backend that can answer.
// Token counting does not touch the breakers.
func (c *Chain) CountTokens(messages []llm.Message) (int, error) {
	var errs []error
	for _, l := range c.links {
		n, err := l.provider.CountTokens(messages)
		if err == nil {
			return n, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
	}
	return 0, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

// Capabilities returns the tightest limits across all backends, so a request
// sized for the chain fits whichever backend ends up serving it. Zero limits
// are treated as unknown.
func (c *Chain) Capabilities() llm.ModelCapabilities {
	var out llm.ModelCapabilities
	for _, l := range c.links {
		caps := l.provider.Capabilities()
		out.ContextWindow = minKnown(out.ContextWindow, caps.ContextWindow)
		out.MaxOutputTokens = minKnown(out.MaxOutputTokens, caps.MaxOutputTokens)
	}
	return out
}

func minKnown(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}
