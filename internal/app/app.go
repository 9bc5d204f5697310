// Package app assembles the session cache and comparison services shared by
// the commands.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/config"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/observability"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/provider/resilience"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session/openf1"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session/postgresstore"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session/sqlitestore"
)

// SQLiteFile is the name of the cache database inside CACHE_DIR.
const SQLiteFile = "sessions.db"

// Pinger is implemented by every cache store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the long-lived dependencies of a command.
type Services struct {
	Sessions *session.Service
	Compare  *analysis.Service
	Store    session.Store
	Registry *resilience.Registry

	closers []func()
}

// Build opens the configured cache store and wires the OpenF1 provider, the
// session cache and the comparison service over it.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Services, error) {
	s := &Services{Registry: resilience.NewRegistry()}

	store, err := s.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Store = store

	httpCfg := resilience.DefaultClientConfig(openf1.ProviderName)
	httpCfg.Timeout = cfg.ProviderTimeout
	httpCfg.Registry = s.Registry
	httpCfg.Logger = logger
	provider := openf1.NewClient(openf1.ClientConfig{
		BaseURL:    cfg.OpenF1BaseURL,
		HTTPClient: resilience.NewClient(httpCfg),
		Logger:     logger,
	})

	providerMetrics, err := observability.NewProviderMetrics()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating provider metrics: %w", err)
	}
	comparisonMetrics, err := observability.NewComparisonMetrics()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating comparison metrics: %w", err)
	}

	s.Sessions = session.NewService(session.ServiceConfig{
		Provider: provider,
		Store:    store,
		Logger:   logger,
		CacheTTL: cfg.CacheTTL,
		Metrics:  providerMetrics,
	})
	s.Compare = analysis.NewService(analysis.ServiceConfig{
		Source:      s.Sessions,
		Logger:      logger,
		Concurrency: cfg.CompareConcurrency,
		Metrics:     comparisonMetrics,
	})

	return s, nil
}

func (s *Services) openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (session.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendSQLite:
		store, err := sqlitestore.Open(ctx, filepath.Join(cfg.CacheDir, SQLiteFile), logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite cache: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := store.Close(); err != nil {
				logger.Error().Err(err).Msg("closing sqlite cache")
			}
		})
		return store, nil

	case config.CacheBackendPostgres:
		pool, err := postgresstore.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres cache: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		store := postgresstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("preparing postgres cache: %w", err)
		}
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("session cache connected")
		return store, nil

	case config.CacheBackendMemory:
		return session.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, cfg.CacheBackend)
	}
}

// Ping checks the cache store.
func (s *Services) Ping(ctx context.Context) error {
	if p, ok := s.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the cache store.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
