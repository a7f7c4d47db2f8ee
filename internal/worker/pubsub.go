package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
)

// Job types accepted in RefreshMessage.JobType.
const (
	JobRefresh     = "refresh"
	JobHealthCheck = "health_check"
)

var (
	// ErrUnknownJobType is returned for messages no handler understands.
	// Such messages are acked so they are not redelivered.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrTooManyFailures is returned when a triggered refresh left too many
	// entries without weather.
	ErrTooManyFailures = errors.New("too many refresh failures")

	// ErrUpstreamUnhealthy is returned by a health check with an open circuit.
	ErrUpstreamUnhealthy = errors.New("upstream unhealthy")
)

// RefreshMessage is the payload of a worker job message.
type RefreshMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher routes decoded job messages to the refresh job. It has no
// Pub/Sub dependency so it can be driven directly.
type Dispatcher struct {
	refreshJob *RefreshJob
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// DispatcherConfig holds configuration for a Dispatcher.
type DispatcherConfig struct {
	RefreshJob *RefreshJob
	// Registry backs health checks. Nil makes every health check pass.
	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		refreshJob: cfg.RefreshJob,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Handle decodes and runs one job.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decoding job message: %w", err)
	}

	switch msg.JobType {
	case JobRefresh:
		return d.handleRefresh(ctx)
	case JobHealthCheck:
		return d.handleHealthCheck()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) handleRefresh(ctx context.Context) error {
	result := d.refreshJob.Run(ctx)

	if result.FailureRatio() > d.refreshJob.config.MaxFailureRatio {
		return fmt.Errorf("%w: %d/%d", ErrTooManyFailures, result.Failed, result.Entries)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck() error {
	if d.registry == nil {
		return nil
	}

	var unhealthy []string
	for _, h := range d.registry.All() {
		if h.Status() == resilience.StatusUnhealthy {
			unhealthy = append(unhealthy, h.Name)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("%w: %s", ErrUpstreamUnhealthy, strings.Join(unhealthy, ", "))
	}

	d.logger.Debug().Int("upstreams", d.registry.Len()).Msg("health check passed")
	return nil
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

	// Refresh cycles are sequential per session; more outstanding messages
	// would only queue behind each other.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
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
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Handle(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Err(err).Msg("unknown job type")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}
