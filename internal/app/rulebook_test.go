package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tikunlabs/tikun/internal/config"
	"github.com/tikunlabs/tikun/internal/phrase"
)

type stubSource struct {
	cat phrase.Category
	err error
}

func (s *stubSource) Category(context.Context) (phrase.Category, error) { return s.cat, s.err }

func TestRulebook_CustomCategoryLast(t *testing.T) {
	t.Parallel()

	src := &stubSource{cat: phrase.Category{Name: "custom", Rules: []phrase.Rule{
		{Before: "הננו", After: []string{"אנו"}},
	}}}
	b := NewRulebook(src, nil)
	if err := b.Load(context.Background(), config.DictionaryConfig{}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	rules := b.AllRules()
	if len(rules) < 2 {
		t.Fatalf("rules = %d, want builtin plus custom", len(rules))
	}
	if last := rules[len(rules)-1]; last.Before != "הננו" {
		t.Errorf("last rule = %q, want the custom rule", last.Before)
	}
	cats := b.Dictionary().Categories()
	if cats[len(cats)-1] != "custom" {
		t.Errorf("categories = %v", cats)
	}
}

func TestRulebook_CustomSourceErrorIsTolerated(t *testing.T) {
	t.Parallel()

	b := NewRulebook(&stubSource{err: errors.New("redis down")}, nil)
	if err := b.Load(context.Background(), config.DictionaryConfig{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != phrase.New(phrase.Builtin()...).Len() {
		t.Errorf("rules = %d, want the builtin catalog", b.Len())
	}
}

func TestRulebook_ReloadPicksUpCustomChanges(t *testing.T) {
	t.Parallel()

	src := &stubSource{cat: phrase.Category{Name: "custom"}}
	b := NewRulebook(src, nil)
	if err := b.Load(context.Background(), config.DictionaryConfig{DisableBuiltin: true}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("rules = %d, want 0", b.Len())
	}

	src.cat.Rules = []phrase.Rule{{Before: "הננו", After: []string{"אנו"}}}
	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if b.Len() != 1 {
		t.Errorf("rules = %d, want 1", b.Len())
	}
	if got := b.Search("הננו", 1); len(got) != 1 || got[0].Category != "custom" {
		t.Errorf("Search = %+v", got)
	}
	if got, corrs := b.Correct("הננו מודיעים"); got != "אנו מודיעים" || len(corrs) != 1 {
		t.Errorf("Correct after reload = %q, %+v", got, corrs)
	}
}

func TestRulebook_FailedLoadKeepsPrevious(t *testing.T) {
	t.Parallel()

	b := NewRulebook(nil, nil)
	if err := b.Load(context.Background(), config.DictionaryConfig{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := b.Len()

	bad := config.DictionaryConfig{Files: []string{filepath.Join(t.TempDir(), "absent.yaml")}}
	if err := b.Load(context.Background(), bad); err == nil {
		t.Fatal("Load of a missing pack returned nil error")
	}
	if b.Len() != want {
		t.Errorf("rules = %d, want %d kept", b.Len(), want)
	}
	// The failed sources are not remembered.
	if err := b.Reload(context.Background()); err != nil {
		t.Errorf("Reload after failed Load: %v", err)
	}
}

func TestRulebook_Check(t *testing.T) {
	t.Parallel()

	b := NewRulebook(nil, nil)
	if err := b.check(context.Background()); err == nil {
		t.Error("check() on an empty rulebook returned nil")
	}
	if err := b.Load(context.Background(), config.DictionaryConfig{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := b.check(context.Background()); err != nil {
		t.Errorf("check() = %v", err)
	}
}
