package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields of cfg with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Highlight.BeforeClass == "" {
		cfg.Highlight.BeforeClass = DefaultBeforeClass
	}
	if cfg.Highlight.AfterClass == "" {
		cfg.Highlight.AfterClass = DefaultAfterClass
	}
	if cfg.Naturalize.DefaultStyle == "" {
		cfg.Naturalize.DefaultStyle = DefaultStyle
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if b := cfg.Providers.Breaker; b.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.max_failures %d must not be negative", b.MaxFailures))
	}
	if c := cfg.Providers.Breaker.Cooldown; c != "" {
		if d, err := time.ParseDuration(c); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("providers.breaker.cooldown %q is not a valid duration", c))
		}
	}

	// Dictionary
	for i, f := range cfg.Dictionary.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("dictionary.files[%d] is empty", i))
		}
	}
	if cfg.Dictionary.DisableBuiltin && len(cfg.Dictionary.Files) == 0 && cfg.Redis.Addr == "" {
		slog.Warn("dictionary.disable_builtin is set with no rule files or custom rule store; the phrase stage will change nothing")
	}

	// Naturalize
	switch cfg.Naturalize.DefaultStyle {
	case "", "legal", "marketing":
	default:
		errs = append(errs, fmt.Errorf("naturalize.default_style %q is invalid; valid values: legal, marketing", cfg.Naturalize.DefaultStyle))
	}
	if t := cfg.Naturalize.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("naturalize.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Naturalize.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("naturalize.max_tokens %d must not be negative", cfg.Naturalize.MaxTokens))
	}
	if cfg.Naturalize.Strict && cfg.Providers.LLM.Name == "" {
		slog.Warn("naturalize.strict is set but providers.llm is not configured; the naturalize stage is unavailable")
	}

	// Stores
	if cfg.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db %d must not be negative", cfg.Redis.DB))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
