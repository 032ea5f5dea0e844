// Package customrules stores office-specific phrase rules in Redis.
//
// Rules live in a single hash: the field is the rule's Before phrase and the
// value is a JSON object holding the candidates and comment. The store hands
// its rules to the dictionary as one extra [phrase.Category].
package customrules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/unicode/norm"

	"github.com/tikunlabs/tikun/internal/observe"
	"github.com/tikunlabs/tikun/internal/phrase"
)

// DefaultKey is the Redis hash holding the rules.
const DefaultKey = "tikun:custom_rules"

// CategoryName names the category returned by [Store.Category].
const CategoryName = "custom"

var (
	// ErrNotFound is returned by [Store.Delete] when no rule has the given phrase.
	ErrNotFound = errors.New("customrules: rule not found")

	// ErrInvalidRule wraps the validation error of a rejected [Store.Put].
	ErrInvalidRule = errors.New("customrules: invalid rule")
)

type entry struct {
	After   []string `json:"after"`
	Comment string   `json:"comment,omitempty"`
}

// Option configures a [Store].
type Option func(*Store)

// WithKey overrides the Redis hash key. Default: [DefaultKey].
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store is a Redis-backed rule set. It is safe for concurrent use.
type Store struct {
	client  redis.Cmdable
	key     string
	metrics *observe.Metrics
}

// New returns a [Store] over client.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, key: DefaultKey}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Put validates r and stores it, replacing any rule with the same Before.
func (s *Store) Put(ctx context.Context, r phrase.Rule) (err error) {
	defer func() { s.metrics.RecordCustomRuleOp(ctx, "put", err) }()

	r = normalizeRule(r)
	if err := r.Check(); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidRule, r.Before, err)
	}
	if r.IsNoOp() {
		return fmt.Errorf("%w %q: %w", ErrInvalidRule, r.Before, phrase.ErrNoOp)
	}
	val, err := encodeEntry(r)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, r.Before, val).Err(); err != nil {
		return fmt.Errorf("customrules: put %q: %w", r.Before, err)
	}
	return nil
}

// Delete removes the rule for before.
func (s *Store) Delete(ctx context.Context, before string) (err error) {
	defer func() { s.metrics.RecordCustomRuleOp(ctx, "delete", err) }()

	n, err := s.client.HDel(ctx, s.key, phraseKey(before)).Result()
	if err != nil {
		return fmt.Errorf("customrules: delete %q: %w", before, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, before)
	}
	return nil
}

// All returns every stored rule ordered by Before. Entries that fail to
// decode are skipped.
func (s *Store) All(ctx context.Context) (rules []phrase.Rule, err error) {
	defer func() { s.metrics.RecordCustomRuleOp(ctx, "list", err) }()

	m, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("customrules: list: %w", err)
	}
	rules = make([]phrase.Rule, 0, len(m))
	for before, val := range m {
		r, err := decodeEntry(before, val)
		if err != nil {
			observe.Logger(ctx).Warn("customrules: skipping undecodable rule", "before", before, "err", err)
			continue
		}
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b phrase.Rule) int { return strings.Compare(a.Before, b.Before) })
	return rules, nil
}

// Category returns the stored rules as a dictionary category.
func (s *Store) Category(ctx context.Context) (phrase.Category, error) {
	rules, err := s.All(ctx)
	if err != nil {
		return phrase.Category{}, err
	}
	return phrase.Category{Name: CategoryName, Rules: rules}, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("customrules: ping: %w", err)
	}
	return nil
}

// phraseKey is the hash field for a Before phrase: trimmed and in NFC, the
// form the dictionary matches against.
func phraseKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeRule(r phrase.Rule) phrase.Rule {
	r.Before = phraseKey(r.Before)
	after := make([]string, 0, len(r.After))
	for _, a := range r.After {
		if a = phraseKey(a); a != "" {
			after = append(after, a)
		}
	}
	r.After = after
	r.Comment = strings.TrimSpace(r.Comment)
	return r
}

func encodeEntry(r phrase.Rule) (string, error) {
	b, err := json.Marshal(entry{After: r.After, Comment: r.Comment})
	if err != nil {
		return "", fmt.Errorf("customrules: encode %q: %w", r.Before, err)
	}
	return string(b), nil
}

func decodeEntry(before, val string) (phrase.Rule, error) {
	var e entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return phrase.Rule{}, fmt.Errorf("customrules: decode %q: %w", before, err)
	}
	r := phrase.Rule{Before: before, After: e.After, Comment: e.Comment}
	if err := r.Check(); err != nil {
		return phrase.Rule{}, err
	}
	return r, nil
}
