package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/observability"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// Source supplies raw session data. *session.Service implements it.
type Source interface {
	Session(ctx context.Context, key session.Key) (*session.Session, error)
	LapTelemetry(ctx context.Context, key session.Key, lap session.Lap) (*session.LapSeries, error)
}

// ServiceConfig holds configuration for the comparison service.
type ServiceConfig struct {
	// Source supplies sessions and lap telemetry.
	Source Source

	// Logger for service operations.
	Logger zerolog.Logger

	// Concurrency bounds parallel per-driver loads (default: 4).
	Concurrency int

	// Rules overrides DefaultRules.
	Rules []Rule

	// Metrics records comparison outcomes. Optional.
	Metrics *observability.ComparisonMetrics

	// Tracer for comparison spans. Defaults to the global tracer.
	Tracer trace.Tracer
}

// Service runs lap comparisons.
type Service struct {
	source      Source
	logger      zerolog.Logger
	concurrency int
	rules       []Rule
	metrics     *observability.ComparisonMetrics
	tracer      trace.Tracer
}

// NewService creates a new comparison service.
func NewService(cfg ServiceConfig) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}

	return &Service{
		source:      cfg.Source,
		logger:      cfg.Logger,
		concurrency: concurrency,
		rules:       rules,
		metrics:     cfg.Metrics,
		tracer:      tracer,
	}
}

// Request identifies the session and the drivers to compare.
type Request struct {
	Key     session.Key
	Drivers []string
}

// NormalizeDrivers trims and upper-cases driver codes, dropping empty and
// repeated entries while keeping the first occurrence order.
func NormalizeDrivers(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// loadedLap is one driver's fastest lap with its telemetry.
type loadedLap struct {
	lap    *session.Lap
	series *session.LapSeries
}

// Compare aligns the fastest laps of the requested drivers against the
// session's fastest lap. Drivers whose lap cannot be loaded are reported in
// Result.UnavailableDrivers; the comparison fails with ErrDataUnavailable only
// when no driver, or no reference lap, has usable telemetry.
func (s *Service) Compare(ctx context.Context, req Request) (result *Result, err error) {
	drivers := NormalizeDrivers(req.Drivers)

	ctx, span := s.tracer.Start(ctx, "analysis.Compare",
		trace.WithAttributes(
			attribute.String("session", req.Key.String()),
			attribute.StringSlice("drivers", drivers),
		),
	)
	start := time.Now()
	defer func() {
		unavailable, insights := 0, 0
		if result != nil {
			unavailable = len(result.UnavailableDrivers)
			insights = len(result.Insights)
		}
		s.metrics.RecordComparison(ctx, string(req.Key.Type), time.Since(start), unavailable, insights, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if len(drivers) == 0 {
		return nil, fmt.Errorf("%w: no drivers requested", ErrDataUnavailable)
	}

	sess, err := s.source.Session(ctx, req.Key)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrNoLaps) {
			return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	reference, err := s.loadReference(ctx, req.Key, sess)
	if err != nil {
		return nil, err
	}

	loaded, loadErrs, err := s.loadDrivers(ctx, req.Key, sess, drivers)
	if err != nil {
		return nil, err
	}

	maxDist := 0.0
	for _, l := range loaded {
		if l != nil {
			maxDist = max(maxDist, l.series.MaxDistance())
		}
	}
	if maxDist <= 0 {
		if allProviderFailures(loadErrs) {
			return nil, fmt.Errorf("loading drivers: %w", loadErrs[0])
		}
		return nil, fmt.Errorf("%w: no telemetry for %s", ErrDataUnavailable, strings.Join(drivers, ", "))
	}

	grid := Grid(maxDist, GridPoints)
	refTime := referenceTime(reference.series, grid)

	result = &Result{
		Drivers:            make(map[string]*DriverResult, len(drivers)),
		SessionBestSectors: sess.BestSectors(),
		PoleLapTime:        reference.lap.LapTime,
	}

	for i, code := range drivers {
		l := loaded[i]
		if l == nil {
			continue
		}
		aligned := Resample(l.series, grid)
		Derive(aligned, refTime)
		result.Drivers[code] = driverResult(aligned, l.lap)
		result.Order = append(result.Order, code)
	}

	for _, le := range loadErrs {
		result.UnavailableDrivers = append(result.UnavailableDrivers, le.Driver)
		result.LoadErrors = append(result.LoadErrors, le)
		s.logger.Warn().
			Err(le.Err).
			Str("driver", le.Driver).
			Str("session", req.Key.String()).
			Msg("driver excluded from comparison")
	}

	weather, werr := SummarizeWeather(sess.Weather)
	if werr != nil {
		s.logger.Warn().Err(werr).Str("session", req.Key.String()).Msg("weather summary degraded")
	}
	result.Weather = weather

	if len(drivers) >= 2 {
		a, b := drivers[0], drivers[1]
		result.Insights = Insights(a, b, telemetryOf(result, a), telemetryOf(result, b), s.rules)
	}

	span.SetAttributes(
		attribute.Int("drivers.loaded", len(result.Order)),
		attribute.Int("insights", len(result.Insights)),
	)

	return result, nil
}

func telemetryOf(r *Result, code string) *AlignedSeries {
	d, ok := r.Drivers[code]
	if !ok {
		return nil
	}
	return &d.Telemetry
}

func (s *Service) loadReference(ctx context.Context, key session.Key, sess *session.Session) (*loadedLap, error) {
	lap, err := sess.FastestLap()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoReferenceLap, err)
	}
	series, err := s.source.LapTelemetry(ctx, key, *lap)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, session.ErrProviderUnavailable) {
			return nil, fmt.Errorf("loading reference lap: %w", err)
		}
		return nil, fmt.Errorf("%w: %s lap %d: %w", ErrNoReferenceLap, lap.Driver, lap.Number, err)
	}
	if len(series.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s lap %d has no samples", ErrNoReferenceLap, lap.Driver, lap.Number)
	}
	return &loadedLap{lap: lap, series: series}, nil
}

// loadDrivers fetches every driver's fastest lap in parallel. The returned
// slice is indexed like drivers with nil for drivers that failed to load.
func (s *Service) loadDrivers(ctx context.Context, key session.Key, sess *session.Session, drivers []string) ([]*loadedLap, []*DriverLoadError, error) {
	loaded := make([]*loadedLap, len(drivers))
	failures := make([]*DriverLoadError, len(drivers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, code := range drivers {
		g.Go(func() error {
			lap, err := sess.DriverFastestLap(code)
			if err != nil {
				failures[i] = &DriverLoadError{Driver: code, Err: err}
				return nil
			}
			series, err := s.source.LapTelemetry(gctx, key, *lap)
			if err != nil {
				failures[i] = &DriverLoadError{Driver: code, Err: err}
				return nil
			}
			if len(series.Samples) == 0 || series.MaxDistance() <= 0 {
				failures[i] = &DriverLoadError{Driver: code, Err: session.ErrNoTelemetry}
				return nil
			}
			loaded[i] = &loadedLap{lap: lap, series: series}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var errs []*DriverLoadError
	for _, f := range failures {
		if f != nil {
			errs = append(errs, f)
		}
	}
	return loaded, errs, nil
}

// allProviderFailures reports whether every driver failed because the
// provider was down, as opposed to the data not existing.
func allProviderFailures(errs []*DriverLoadError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !errors.Is(e, session.ErrProviderUnavailable) {
			return false
		}
	}
	return true
}
