// Package app wires all tikun subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in reverse order.
//
// For testing, inject doubles via functional options (WithCustomRules,
// WithHistory, etc.). When an option is not provided, New creates the real
// implementation from the config, or leaves the feature off when the config
// does not ask for it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tikunlabs/tikun/internal/api"
	"github.com/tikunlabs/tikun/internal/config"
	"github.com/tikunlabs/tikun/internal/customrules"
	"github.com/tikunlabs/tikun/internal/health"
	"github.com/tikunlabs/tikun/internal/history"
	"github.com/tikunlabs/tikun/internal/naturalize"
	"github.com/tikunlabs/tikun/internal/observe"
	"github.com/tikunlabs/tikun/pkg/provider/llm"
)

const (
	readHeaderTimeout = 10 * time.Second
	drainTimeout      = 10 * time.Second
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM backs the naturalize stage.
	LLM llm.Provider
}

// CustomRuleStore is the runtime rule store. [customrules.Store] implements it.
type CustomRuleStore interface {
	api.CustomRules
	CustomSource
	Ping(ctx context.Context) error
}

// HistoryStore is the run log. [history.Store] implements it.
type HistoryStore interface {
	api.History
	Ping(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics       *observe.Metrics
	telemetry     *observe.Telemetry
	logLevel      *slog.LevelVar
	configPath    string
	watchInterval time.Duration

	custom   CustomRuleStore
	history  HistoryStore
	rulebook *Rulebook
	pipeline *naturalize.Pipeline
	api      *api.Server
	handler  http.Handler
	server   *http.Server
	watcher  *config.Watcher

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCustomRules injects a custom rule store instead of connecting to Redis.
func WithCustomRules(s CustomRuleStore) Option {
	return func(a *App) { a.custom = s }
}

// WithHistory injects a history store instead of connecting to PostgreSQL.
func WithHistory(h HistoryStore) Option {
	return func(a *App) { a.history = h }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry exposes the Prometheus registry of t at GET /metrics.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithLogLevel lets config reloads change the verbosity of the logger built
// on v.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithConfigWatch polls the config file at path and applies hot-reloadable
// changes. interval <= 0 uses the watcher default.
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: store connections, history
// migration, dictionary loading, pipeline and HTTP handler assembly.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initCustomRules(ctx); err != nil {
		return nil, fmt.Errorf("app: init custom rules: %w", err)
	}
	if err := a.initHistory(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	var source CustomSource
	if a.custom != nil {
		source = a.custom
	}
	a.rulebook = NewRulebook(source, a.metrics)
	if err := a.rulebook.Load(ctx, cfg.Dictionary); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init dictionary: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.initHTTP()

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.ApplyConfig, config.WithInterval(a.watchInterval))
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: init config watcher: %w", err)
		}
		a.watcher = w
	}

	return a, nil
}

// initCustomRules connects the Redis rule store when configured.
func (a *App) initCustomRules(ctx context.Context) error {
	if a.custom != nil || a.cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	store := customrules.New(client, customrules.WithMetrics(a.metrics))
	if err := store.Ping(ctx); err != nil {
		// Redis may come up later; readiness reports it as degraded.
		slog.Warn("redis unreachable at startup", "addr", a.cfg.Redis.Addr, "err", err)
	}
	a.custom = store
	slog.Info("custom rule store enabled", "addr", a.cfg.Redis.Addr)
	return nil
}

// initHistory connects the PostgreSQL history store when configured.
func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil || a.cfg.History.PostgresDSN == "" {
		return nil
	}
	store, err := history.NewStore(ctx, a.cfg.History.PostgresDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	a.history = store
	slog.Info("correction history enabled")
	return nil
}

// initPipeline builds the naturalizer (when an LLM is configured) and the
// correction pipeline over the rulebook.
func (a *App) initPipeline() error {
	nc := a.cfg.Naturalize
	style, err := naturalize.ParseStyle(nc.DefaultStyle, naturalize.StyleLegal)
	if err != nil {
		return err
	}

	opts := []naturalize.PipelineOption{
		naturalize.WithPipelineMetrics(a.metrics),
		naturalize.WithInputNormalization(a.cfg.Dictionary.NormalizeInput),
		naturalize.WithDefaultStyle(style),
	}
	if a.providers.LLM != nil {
		n := naturalize.New(a.providers.LLM,
			naturalize.WithTemperature(nc.TemperatureOrDefault()),
			naturalize.WithStrict(nc.Strict),
			naturalize.WithMaxTokens(nc.MaxTokens),
			naturalize.WithMetrics(a.metrics),
			naturalize.WithProviderName(a.cfg.Providers.LLM.Name),
		)
		opts = append(opts, naturalize.WithNaturalizer(n))
	} else {
		slog.Info("no LLM provider configured; naturalize runs the phrase stage only")
	}
	a.pipeline = naturalize.NewPipeline(a.rulebook, opts...)
	return nil
}

// initHTTP assembles the API, health probes and metrics endpoint behind the
// observability middleware.
func (a *App) initHTTP() {
	apiOpts := []api.Option{api.WithClasses(classes(a.cfg.Highlight))}
	checkers := []health.Checker{{Name: "dictionary", Check: a.rulebook.check}}

	if a.custom != nil {
		apiOpts = append(apiOpts, api.WithCustomRules(a.custom, a.rulebook.Reload))
		checkers = append(checkers, health.Checker{Name: "redis", Check: a.custom.Ping, Optional: true})
	}
	if a.history != nil {
		apiOpts = append(apiOpts, api.WithHistory(a.history))
		checkers = append(checkers, health.Checker{Name: "history", Check: a.history.Ping, Optional: true})
	}
	a.api = api.New(a.rulebook, a.pipeline, apiOpts...)

	mux := http.NewServeMux()
	a.api.Register(mux)
	health.New(checkers...).Register(mux)
	if a.telemetry != nil {
		mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	}

	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Handler returns the root HTTP handler, middleware included.
func (a *App) Handler() http.Handler { return a.handler }

// Rulebook returns the active rule set.
func (a *App) Rulebook() *Rulebook { return a.rulebook }

// Run serves HTTP (and polls the config file when watching) until ctx is
// cancelled. It returns ctx.Err() after a clean stop, or the first serve
// error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	tls := a.cfg.Server.TLS
	g.Go(func() error {
		var err error
		if tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return a.server.Shutdown(drainCtx)
	})
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("app running",
		"addr", a.cfg.Server.ListenAddr,
		"tls", tls != nil,
		"rules", a.rulebook.Len(),
		"llm", a.pipeline.HasLLM(),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ApplyConfig applies the hot-reloadable differences between old and new.
// It is the [config.Watcher] callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	ctx := context.Background()

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DictionaryChanged {
		a.pipeline.SetInputNormalization(new.Dictionary.NormalizeInput)
		if err := a.rulebook.Load(ctx, new.Dictionary); err != nil {
			slog.Error("dictionary reload failed; keeping previous rules", "err", err)
		}
	}
	if d.HighlightChanged {
		a.api.SetClasses(classes(new.Highlight))
		slog.Info("highlight classes changed", "before", new.Highlight.BeforeClass, "after", new.Highlight.AfterClass)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after a restart", "sections", d.RestartRequired)
	}
}

// Shutdown stops the HTTP server and closes all subsystems in reverse-init
// order. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases what New opened before failing.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
}

// classes maps the highlight config to API classes, falling back to the
// defaults for empty fields.
func classes(h config.HighlightConfig) api.Classes {
	c := api.Classes{Before: h.BeforeClass, After: h.AfterClass}
	if c.Before == "" {
		c.Before = config.DefaultBeforeClass
	}
	if c.After == "" {
		c.After = config.DefaultAfterClass
	}
	return c
}
