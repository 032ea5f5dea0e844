package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tikunlabs/tikun/internal/config"
	"github.com/tikunlabs/tikun/internal/correct"
	"github.com/tikunlabs/tikun/internal/observe"
	"github.com/tikunlabs/tikun/internal/phrase"
)

// CustomSource supplies the runtime-managed rule category.
type CustomSource interface {
	Category(ctx context.Context) (phrase.Category, error)
}

// Rulebook holds the active [phrase.Dictionary], compiled into a
// [correct.Engine], and swaps it atomically on reload, so requests in flight
// keep the dictionary they started with.
type Rulebook struct {
	current atomic.Pointer[correct.Engine]
	custom  CustomSource
	metrics *observe.Metrics

	// mu serialises reloads and guards sources.
	mu      sync.Mutex
	sources config.DictionaryConfig
}

// NewRulebook returns an empty [Rulebook]. custom may be nil.
func NewRulebook(custom CustomSource, metrics *observe.Metrics) *Rulebook {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	b := &Rulebook{custom: custom, metrics: metrics}
	b.current.Store(correct.NewEngine(phrase.New()))
	return b
}

// Load replaces the rule sources and rebuilds the dictionary.
func (b *Rulebook) Load(ctx context.Context, sources config.DictionaryConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.rebuild(ctx, sources); err != nil {
		return err
	}
	b.sources = sources
	return nil
}

// Reload rebuilds the dictionary from the current sources. A failed reload
// keeps the previous dictionary.
func (b *Rulebook) Reload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rebuild(ctx, b.sources)
}

// rebuild must be called with mu held.
func (b *Rulebook) rebuild(ctx context.Context, sources config.DictionaryConfig) error {
	var cats []phrase.Category
	if !sources.DisableBuiltin {
		cats = append(cats, phrase.Builtin()...)
	}
	for _, path := range sources.Files {
		loaded, err := phrase.LoadFile(path)
		if err != nil {
			return fmt.Errorf("app: load rule pack: %w", err)
		}
		if err := phrase.Validate(loaded...); err != nil {
			observe.Logger(ctx).Warn("rule pack has malformed rules", "path", path, "err", err)
		}
		cats = append(cats, loaded...)
	}
	if b.custom != nil {
		c, err := b.custom.Category(ctx)
		if err != nil {
			// The custom store is optional; serve the static rules without it.
			observe.Logger(ctx).Warn("custom rules unavailable", "err", err)
		} else {
			cats = append(cats, c)
		}
	}

	d := phrase.New(cats...)
	b.current.Store(correct.NewEngine(d))
	b.metrics.DictionaryRules.Record(ctx, int64(d.Len()))
	observe.Logger(ctx).Info("dictionary loaded", "rules", d.Len(), "categories", len(d.Categories()))
	return nil
}

// Dictionary returns the active dictionary.
func (b *Rulebook) Dictionary() *phrase.Dictionary { return b.current.Load().Dictionary() }

// Correct applies the active dictionary to text.
func (b *Rulebook) Correct(text string) (string, []correct.Correction) {
	return b.current.Load().Correct(text)
}

// AllRules returns the rules of the active dictionary.
func (b *Rulebook) AllRules() []phrase.Rule { return b.Dictionary().AllRules() }

// Search runs a fuzzy search over the active dictionary.
func (b *Rulebook) Search(query string, limit int) []phrase.Match {
	return b.Dictionary().Search(query, limit)
}

// Len returns the number of rules in the active dictionary.
func (b *Rulebook) Len() int { return b.Dictionary().Len() }

// check is the readiness probe: an empty dictionary means nothing gets
// corrected.
func (b *Rulebook) check(context.Context) error {
	if b.Len() == 0 {
		return errors.New("dictionary is empty")
	}
	return nil
}
