package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// SessionWarmer loads sessions and lap telemetry through the cache.
type SessionWarmer interface {
	Session(ctx context.Context, key session.Key) (*session.Session, error)
	LapTelemetry(ctx context.Context, key session.Key, lap session.Lap) (*session.LapSeries, error)
}

// PrefetchJob loads a session and the fastest lap of each of its drivers so
// that later comparisons are served from cache.
type PrefetchJob struct {
	config   PrefetchConfig
	logger   zerolog.Logger
	sessions SessionWarmer
	metrics  *PrefetchMetrics
}

// PrefetchMetrics tracks prefetch job statistics.
type PrefetchMetrics struct {
	mu sync.RWMutex

	TotalRuns   int64
	FailedRuns  int64
	LapsWarmed  int64
	LapsFailed  int64
	LastRunAt   time.Time
	LastRunTime time.Duration
	TotalTime   time.Duration
}

// PrefetchJobConfig holds configuration for creating a PrefetchJob.
type PrefetchJobConfig struct {
	Config   PrefetchConfig
	Logger   zerolog.Logger
	Sessions SessionWarmer
}

// NewPrefetchJob creates a new prefetch job.
func NewPrefetchJob(cfg PrefetchJobConfig) *PrefetchJob {
	return &PrefetchJob{
		config:   cfg.Config.withDefaults(),
		logger:   cfg.Logger,
		sessions: cfg.Sessions,
		metrics:  &PrefetchMetrics{},
	}
}

// PrefetchResult contains the result of one prefetch run.
type PrefetchResult struct {
	Session    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalLaps  int
	Successful int
	Failed     int
	Errors     []PrefetchError
}

// PrefetchError records one lap that could not be warmed.
type PrefetchError struct {
	Driver string
	Lap    int
	Error  string
}

// Run warms req's session. It fails only when the session itself cannot be
// loaded; lap failures are reported in the result.
func (j *PrefetchJob) Run(ctx context.Context, req PrefetchRequest) (*PrefetchResult, error) {
	startTime := time.Now()
	result := &PrefetchResult{Session: req.Key.String(), StartTime: startTime}

	sess, err := j.sessions.Session(ctx, req.Key)
	if err != nil {
		j.recordFailedRun()
		return nil, fmt.Errorf("loading session %s: %w", req.Key, err)
	}

	laps := lapsToWarm(sess, req.Drivers)
	result.TotalLaps = len(laps)

	j.logger.Info().
		Str("session", result.Session).
		Int("total_laps", result.TotalLaps).
		Int("concurrency", j.config.Concurrency).
		Msg("starting session prefetch")

	lapsChan := make(chan session.Lap, len(laps))
	resultsChan := make(chan lapResult, len(laps))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.prefetchWorker(ctx, req.Key, lapsChan, resultsChan)
		}()
	}

	for _, lap := range laps {
		lapsChan <- lap
	}
	close(lapsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for lr := range resultsChan {
		if lr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, PrefetchError{
			Driver: lr.lap.Driver,
			Lap:    lr.lap.Number,
			Error:  lr.err.Error(),
		})
	}
	// Laps never picked up because ctx ended count as failed.
	if skipped := result.TotalLaps - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Str("session", result.Session).
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("session prefetch completed")

	return result, nil
}

type lapResult struct {
	lap session.Lap
	err error
}

func (j *PrefetchJob) prefetchWorker(ctx context.Context, key session.Key, laps <-chan session.Lap, results chan<- lapResult) {
	for lap := range laps {
		select {
		case <-ctx.Done():
			return
		default:
			results <- lapResult{lap: lap, err: j.prefetchLap(ctx, key, lap)}
		}
	}
}

func (j *PrefetchJob) prefetchLap(ctx context.Context, key session.Key, lap session.Lap) error {
	lapCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.sessions.LapTelemetry(lapCtx, key, lap)
	if err != nil && !errors.Is(err, session.ErrNoTelemetry) {
		j.logger.Warn().Err(err).
			Str("session", key.String()).
			Str("driver", lap.Driver).
			Int("lap", lap.Number).
			Msg("lap prefetch failed")
	}
	return err
}

// lapsToWarm returns the session's fastest lap followed by the fastest lap of
// each requested driver, without duplicates. Drivers without a timed lap are
// skipped.
func lapsToWarm(sess *session.Session, drivers []string) []session.Lap {
	if len(drivers) == 0 {
		seen := make(map[string]bool)
		for _, lap := range sess.Laps {
			if !seen[lap.Driver] {
				seen[lap.Driver] = true
				drivers = append(drivers, lap.Driver)
			}
		}
	}

	var laps []session.Lap
	warmed := make(map[string]bool)
	add := func(lap *session.Lap) {
		id := fmt.Sprintf("%s/%d", lap.Driver, lap.Number)
		if !warmed[id] {
			warmed[id] = true
			laps = append(laps, *lap)
		}
	}

	if ref, err := sess.FastestLap(); err == nil {
		add(ref)
	}
	for _, code := range drivers {
		if lap, err := sess.DriverFastestLap(strings.ToUpper(strings.TrimSpace(code))); err == nil {
			add(lap)
		}
	}
	return laps
}

func (j *PrefetchJob) recordFailedRun() {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	j.metrics.TotalRuns++
	j.metrics.FailedRuns++
}

func (j *PrefetchJob) updateMetrics(result *PrefetchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LapsWarmed += int64(result.Successful)
	j.metrics.LapsFailed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunTime = result.Duration
	j.metrics.TotalTime += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrefetchJob) GetMetrics() PrefetchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrefetchMetrics{
		TotalRuns:   j.metrics.TotalRuns,
		FailedRuns:  j.metrics.FailedRuns,
		LapsWarmed:  j.metrics.LapsWarmed,
		LapsFailed:  j.metrics.LapsFailed,
		LastRunAt:   j.metrics.LastRunAt,
		LastRunTime: j.metrics.LastRunTime,
		TotalTime:   j.metrics.TotalTime,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrefetchJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":    m.TotalRuns,
		"failed_runs":   m.FailedRuns,
		"laps_warmed":   m.LapsWarmed,
		"laps_failed":   m.LapsFailed,
		"last_run_at":   m.LastRunAt,
		"last_run_time": m.LastRunTime.String(),
		"total_time":    m.TotalTime.String(),
	}
}
