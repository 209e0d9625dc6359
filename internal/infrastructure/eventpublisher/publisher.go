package eventpublisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

// Relay delivers outbox events written by the transfer handler.
// Delivery is at-least-once: an event is marked DELIVERED only after its
// publisher returned, in the same transaction that claimed it.
type Relay struct {
	txManager   usecase.TransactionManager
	outboxRepo  usecase.OutboxRepository
	publisher   usecase.Publisher
	clock       usecase.Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
	retryDelay  func(attempt int) time.Duration
}

// Config for Relay.
type Config struct {
	TxManager   usecase.TransactionManager
	OutboxRepo  usecase.OutboxRepository
	Publisher   usecase.Publisher
	Clock       usecase.Clock
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	BatchSize   int           // Number of events to claim per batch
	MaxAttempts int           // Deliveries before an event is FAILED
	Interval    time.Duration // Polling interval
}

// NewRelay creates a new Relay.
func NewRelay(cfg Config) *Relay {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = usecase.DefaultOutboxBatchSize
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = usecase.DefaultOutboxMaxAttempts
	}
	if cfg.Interval == 0 {
		cfg.Interval = usecase.DefaultOutboxInterval
	}

	return &Relay{
		txManager:   cfg.TxManager,
		outboxRepo:  cfg.OutboxRepo,
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.Interval,
		retryDelay:  exponentialDelay(cfg.Interval),
	}
}

// exponentialDelay returns the redelivery delay after the n-th failed attempt.
func exponentialDelay(initial time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = 5 * time.Minute
		b.RandomizationFactor = 0
		b.Multiplier = 2
		b.MaxElapsedTime = 0
		b.Reset()

		delay := b.NextBackOff()
		for i := 1; i < attempt; i++ {
			delay = b.NextBackOff()
		}

		return delay
	}
}

// Start begins the relay worker.
// It runs continuously until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info().
		Int("batch_size", r.batchSize).
		Int("max_attempts", r.maxAttempts).
		Dur("interval", r.interval).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Process immediately on start
	if _, err := r.processEvents(ctx); err != nil {
		r.logger.Error().Err(err).Msg("error processing outbox on start")
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.processEvents(ctx); err != nil {
				r.logger.Error().Err(err).Msg("error processing outbox")
			}
		}
	}
}

// processEvents claims and delivers one batch. It returns the number of events claimed.
func (r *Relay) processEvents(ctx context.Context) (int, error) {
	start := time.Now()

	tx, err := r.txManager.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	now := r.clock.Now().UTC()

	events, err := r.outboxRepo.ClaimPending(ctx, tx, now, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim pending events: %w", err)
	}

	if len(events) == 0 {
		return 0, nil
	}

	r.logger.Debug().Int("count", len(events)).Msg("processing outbox events")

	for _, event := range events {
		if err := r.publishEvent(ctx, event); err != nil {
			if err := r.recordFailure(ctx, tx, event, now, err); err != nil {
				return 0, err
			}
			// Continue processing other events even if one fails
			continue
		}

		if err := r.outboxRepo.MarkDelivered(ctx, tx, event.ID, r.clock.Now().UTC()); err != nil {
			return 0, fmt.Errorf("mark event %s delivered: %w", event.ID, err)
		}

		if r.metrics != nil {
			r.metrics.OutboxDelivered.Inc()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}

	if r.metrics != nil {
		r.metrics.OutboxBatchDuration.Observe(time.Since(start).Seconds())
	}

	return len(events), nil
}

func (r *Relay) recordFailure(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent, now time.Time, cause error) error {
	attempt := event.Attempts + 1
	final := attempt >= r.maxAttempts

	log := r.logger.Warn()
	if final {
		log = r.logger.Error()
	}
	log.Err(cause).
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Int("attempt", attempt).
		Bool("final", final).
		Msg("failed to publish event")

	if r.metrics != nil {
		r.metrics.OutboxFailed.WithLabelValues(strconv.FormatBool(final)).Inc()
	}

	nextAttemptAt := now.Add(r.retryDelay(attempt))
	if err := r.outboxRepo.MarkFailed(ctx, tx, event.ID, cause.Error(), nextAttemptAt, r.maxAttempts); err != nil {
		return fmt.Errorf("mark event %s failed: %w", event.ID, err)
	}

	return nil
}

// publishEvent publishes a single event.
func (r *Relay) publishEvent(ctx context.Context, event *domain.OutboxEvent) error {
	r.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		Msg("publishing event")

	if err := r.publisher.Publish(ctx, event); err != nil {
		return err
	}

	r.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("command_id", event.CommandID).
		Msg("event published")

	return nil
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("EVENT PUBLISHED")

	return nil
}
