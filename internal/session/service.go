package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/observability"
)

// Provider fetches raw session data from an upstream timing source.
type Provider interface {
	// FetchSession returns every lap and the weather samples of a session.
	FetchSession(ctx context.Context, key Key) (*Session, error)

	// FetchLapTelemetry returns the car telemetry recorded during one lap.
	FetchLapTelemetry(ctx context.Context, key Key, lap Lap) (*LapSeries, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the session service.
type ServiceConfig struct {
	// Provider is the upstream timing source.
	Provider Provider

	// Store is the persistent cache tier. Defaults to a MemoryStore.
	Store Store

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long entries stay in the memory tier (default: 1 hour).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving expired memory entries when the provider
	// fails (default: 24 hours).
	StaleIfErrorTTL time.Duration

	// FetchTimeout bounds a provider fetch shared by concurrent callers
	// (default: 2 minutes). Fetches are detached from the cancellation of the
	// caller that started them.
	FetchTimeout time.Duration

	// Metrics records provider calls and cache hits. Optional.
	Metrics *observability.ProviderMetrics
}

// Service gives cached access to raw session data. Returned values are
// shared between callers and must be treated as read-only.
type Service struct {
	provider        Provider
	store           Store
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	fetchTimeout    time.Duration
	metrics         *observability.ProviderMetrics

	group singleflight.Group

	mu     sync.RWMutex
	memory map[string]*cachedEntry
}

type cachedEntry struct {
	value     any
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Hour
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 24 * time.Hour
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 2 * time.Minute
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	return &Service{
		provider:        cfg.Provider,
		store:           store,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		fetchTimeout:    fetchTimeout,
		metrics:         cfg.Metrics,
		memory:          make(map[string]*cachedEntry),
	}
}

// ProviderName returns the name of the upstream provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Session returns the laps and weather of a session.
func (s *Service) Session(ctx context.Context, key Key) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return load(ctx, s, key.String(), "session", func(ctx context.Context) (*Session, error) {
		sess, err := s.provider.FetchSession(ctx, key)
		if err != nil {
			return nil, err
		}
		sess.Key = key
		return sess, nil
	})
}

// LapTelemetry returns the telemetry of one lap with distance guaranteed to
// be present and non-decreasing.
func (s *Service) LapTelemetry(ctx context.Context, key Key, lap Lap) (*LapSeries, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return load(ctx, s, key.Lap(lap.Driver, lap.Number), "lap_telemetry", func(ctx context.Context) (*LapSeries, error) {
		series, err := s.provider.FetchLapTelemetry(ctx, key, lap)
		if err != nil {
			return nil, err
		}
		series.Driver = lap.Driver
		series.LapNumber = lap.Number
		EnsureDistance(series)
		if len(series.Samples) == 0 {
			return nil, fmt.Errorf("%w: %s lap %d", ErrNoTelemetry, lap.Driver, lap.Number)
		}
		return series, nil
	})
}

// load resolves a cache key through memory, then the store, then the
// provider. Concurrent loads of the same key share one provider call, which
// runs on a context detached from every caller so that one caller giving up
// does not fail the others. Each caller still returns as soon as its own
// context is done.
func load[T any](ctx context.Context, s *Service, cacheKey, operation string, fetch func(context.Context) (*T, error)) (*T, error) {
	if v, ok := s.fresh(cacheKey); ok {
		if typed, ok := v.(*T); ok {
			s.metrics.RecordCacheHit(ctx, "memory", operation)
			return typed, nil
		}
	}

	ch := s.group.DoChan(cacheKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		if raw, err := s.store.Get(ctx, cacheKey); err == nil {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				s.metrics.RecordCacheHit(ctx, "store", operation)
				s.remember(cacheKey, &out)
				return &out, nil
			}
			s.logger.Warn().Str("key", cacheKey).Msg("discarding undecodable cache entry")
		} else if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("cache store read failed")
		}

		s.metrics.RecordCacheMiss(ctx, operation)

		s.logger.Debug().
			Str("key", cacheKey).
			Str("provider", s.provider.Name()).
			Msg("fetching from provider")

		start := time.Now()
		out, err := fetch(ctx)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.metrics.RecordRequest(ctx, s.provider.Name(), operation, time.Since(start), err)
		if err != nil {
			if isNotFound(err) {
				return nil, err
			}
			s.logger.Error().Err(err).Str("key", cacheKey).Msg("provider fetch failed")

			if stale, fetchedAt, ok := s.staleEntry(cacheKey); ok {
				s.logger.Warn().
					Time("fetched_at", fetchedAt).
					Str("key", cacheKey).
					Msg("serving stale session data due to provider error")
				return stale, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}

		if raw, err := json.Marshal(out); err == nil {
			if err := s.store.Put(ctx, cacheKey, raw); err != nil {
				s.logger.Warn().Err(err).Str("key", cacheKey).Msg("cache store write failed")
			}
		}
		s.remember(cacheKey, out)
		return out, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	typed, ok := res.Val.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for %s", v, cacheKey)
	}
	return typed, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrDriverNotFound) ||
		errors.Is(err, ErrNoTelemetry) ||
		errors.Is(err, ErrNoLaps)
}

func (s *Service) fresh(cacheKey string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.memory[cacheKey]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (s *Service) staleEntry(cacheKey string) (any, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.memory[cacheKey]
	if !ok || time.Now().After(e.fetchedAt.Add(s.staleIfErrorTTL)) {
		return nil, time.Time{}, false
	}
	return e.value, e.fetchedAt, true
}

func (s *Service) remember(cacheKey string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.memory[cacheKey] = &cachedEntry{
		value:     value,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}

	s.cleanupLocked(now)
}

// cleanupLocked drops entries past their stale window. Callers hold s.mu.
func (s *Service) cleanupLocked(now time.Time) {
	for k, e := range s.memory {
		if now.After(e.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.memory, k)
		}
	}
}

// Invalidate drops a session and all its per-driver entries from both tiers.
func (s *Service) Invalidate(ctx context.Context, key Key) (int64, error) {
	prefix := key.String()

	s.mu.Lock()
	var dropped int64
	for k := range s.memory {
		if k == prefix || strings.HasPrefix(k, prefix+"/") {
			delete(s.memory, k)
			dropped++
		}
	}
	s.mu.Unlock()

	stored, err := s.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return dropped, fmt.Errorf("deleting stored entries: %w", err)
	}

	s.logger.Info().
		Str("session", prefix).
		Int64("memory_entries", dropped).
		Int64("stored_entries", stored).
		Msg("session cache invalidated")

	return dropped + stored, nil
}

// CacheStats contains memory-tier cache statistics.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}

// CacheStats returns memory-tier cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	for _, e := range s.memory {
		if now.Before(e.expiresAt) {
			fresh++
		}
	}

	return CacheStats{
		Entries:      len(s.memory),
		FreshEntries: fresh,
		Provider:     s.provider.Name(),
	}
}

// StoreStats returns statistics of the persistent tier when the store can
// report them.
func (s *Service) StoreStats(ctx context.Context) (StoreStats, bool, error) {
	r, ok := s.store.(StatsReporter)
	if !ok {
		return StoreStats{}, false, nil
	}
	stats, err := r.Stats(ctx)
	return stats, true, err
}
