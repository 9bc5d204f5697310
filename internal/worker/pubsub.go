package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/provider/resilience"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// Job types.
const (
	JobSessionPrefetch = "session_prefetch"
	JobHealthCheck     = "health_check"
)

// ErrPermanent marks a message that will never succeed; it is acked rather
// than redelivered.
var ErrPermanent = errors.New("permanent job failure")

// JobMessage is the body of a worker Pub/Sub message.
type JobMessage struct {
	JobType string   `json:"job_type"`
	Year    int      `json:"year,omitempty"`
	Event   string   `json:"event,omitempty"`
	Session string   `json:"session,omitempty"`
	Drivers []string `json:"drivers,omitempty"`
}

// Dispatcher runs jobs described by JobMessage payloads.
type Dispatcher struct {
	prefetchJob *PrefetchJob
	registry    *resilience.Registry
	logger      zerolog.Logger
}

// DispatcherConfig holds configuration for a Dispatcher.
type DispatcherConfig struct {
	PrefetchJob *PrefetchJob
	Registry    *resilience.Registry
	Logger      zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		prefetchJob: cfg.PrefetchJob,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
	}
}

// Dispatch parses data and runs the job it names. Errors wrapping
// ErrPermanent must not be retried. Unknown job types are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: parsing message: %w", ErrPermanent, err)
	}

	logger := d.logger.With().
		Str("job_id", uuid.NewString()).
		Str("job_type", msg.JobType).
		Logger()
	startTime := time.Now()

	var err error
	switch msg.JobType {
	case JobSessionPrefetch:
		err = d.handlePrefetch(ctx, msg)
	case JobHealthCheck:
		d.handleHealthCheck(logger)
	default:
		logger.Warn().Msg("unknown job type")
		return nil
	}

	if err != nil {
		return err
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return nil
}

func (d *Dispatcher) handlePrefetch(ctx context.Context, msg JobMessage) error {
	sessionType, err := session.ParseSessionType(msg.Session)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	key := session.Key{Year: msg.Year, Event: msg.Event, Type: sessionType}
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	if d.prefetchJob == nil {
		return fmt.Errorf("%w: prefetch job not configured", ErrPermanent)
	}

	result, err := d.prefetchJob.Run(ctx, PrefetchRequest{Key: key, Drivers: msg.Drivers})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrNoLaps) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return err
	}

	// Consider it successful if at least half of the laps were warmed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many prefetch failures: %d/%d", result.Failed, result.TotalLaps)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck(logger zerolog.Logger) {
	if d.registry == nil {
		logger.Info().Msg("no providers registered")
		return
	}
	for _, h := range d.registry.Health() {
		event := logger.Info()
		if h.Status() != resilience.StatusHealthy {
			event = logger.Warn()
		}
		event.
			Str("provider", h.Name).
			Stringer("status", h.Status()).
			Str("circuit_state", h.CircuitState.String()).
			Uint32("consecutive_failures", h.Counts.ConsecutiveFailures).
			Str("last_error", h.LastError).
			Msg("provider health")
	}
}

// PubSubHandler feeds Pub/Sub messages to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages and blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, ErrPermanent):
		logger.Error().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}
