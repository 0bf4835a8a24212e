package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/quire"
	"github.com/aretw0/quire/internal/config"
	"github.com/aretw0/quire/pkg/adapters/file"
	"github.com/aretw0/quire/pkg/adapters/memory"
	"github.com/aretw0/quire/pkg/adapters/process"
	"github.com/aretw0/quire/pkg/adapters/redis"
	"github.com/aretw0/quire/pkg/adapters/sqlite"
	"github.com/aretw0/quire/pkg/observability"
	"github.com/aretw0/quire/pkg/persistence/middleware"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
)

// EngineOptions tunes what NewEngine wires around the configured store.
type EngineOptions struct {
	Logger *slog.Logger
	// Registerer receives the engine metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// Interceptors guard custom actions backed by the actions file.
	Interceptors []runner.ActionInterceptor
}

// App bundles an engine with the resources it owns.
type App struct {
	Engine  *quire.Engine
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Policy bounds respondent answers on every surface.
	Policy runner.AnswerPolicy

	closers []io.Closer
}

// Close releases the store connections opened by NewEngine.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewEngine builds an engine from the configuration: the session store for
// the selected driver wrapped in the security middleware, the process
// backed action handler, logging and metrics hooks.
func NewEngine(ctx context.Context, cfg *config.Config, opts EngineOptions) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = newLogger(cfg)
	}
	app := &App{Logger: logger, Policy: AnswerPolicy(cfg)}

	store, locker, err := app.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store = secureStore(store, cfg)

	hooks := observability.LogHooks(logger)
	if opts.Registerer != nil {
		app.Metrics = observability.NewMetrics(opts.Registerer)
		hooks = hooks.Merge(app.Metrics.Hooks(filepath.Base(cfg.Definitions.Dir)))
	}

	engineOpts := []quire.Option{
		quire.WithLogger(logger),
		quire.WithStore(store),
		quire.WithLifecycleHooks(hooks),
	}
	if locker != nil {
		engineOpts = append(engineOpts, quire.WithLocker(locker, cfg.Redis.LockTTL))
	}

	actions, err := loadActions(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if len(actions) > 0 {
		procs := process.NewRunner(
			process.WithRegistry(actions),
			process.WithBaseDir(cfg.Definitions.Dir),
		)
		engineOpts = append(engineOpts, quire.WithActionHandler(runner.Guard(procs, opts.Interceptors...)))
		logger.Debug("custom actions registered", "count", len(actions))
	}

	engine, err := quire.New(cfg.Definitions.Dir, engineOpts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

// AnswerPolicy maps the input section of the configuration.
func AnswerPolicy(cfg *config.Config) runner.AnswerPolicy {
	return runner.AnswerPolicy{
		MaxTextSize:  cfg.Input.MaxTextSize,
		MaxOtherSize: cfg.Input.MaxOtherSize,
		MaxItems:     cfg.Input.MaxItems,
	}
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (ports.StateStore, ports.DistributedLocker, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil, nil
	case config.DriverFile:
		return file.New(cfg.Store.Path), nil, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil, nil
	case config.DriverRedis:
		s := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("redis unavailable at %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, s)
		return s, redis.NewLocker(s.Client(), cfg.Redis.Prefix+"lock:"), nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// secureStore applies PII masking inside encryption, so masked values are
// what gets sealed.
func secureStore(store ports.StateStore, cfg *config.Config) ports.StateStore {
	if active, fallback := cfg.EncryptionKeys(); active != nil {
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})(store)
	}
	if len(cfg.Security.PIIFields) > 0 {
		store = middleware.NewPIIMiddleware(cfg.Security.PIIFields)(store)
	}
	return store
}

// loadActions reads the actions file. A relative path missing from the
// working directory is looked up next to the definitions.
func loadActions(cfg *config.Config) (map[string]process.ProcessConfig, error) {
	path := cfg.Actions.File
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) && !fileExists(path) {
		path = filepath.Join(cfg.Definitions.Dir, path)
	}
	return process.LoadActions(path)
}
