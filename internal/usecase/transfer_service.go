package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/logger"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// Error classes reported in logs and metrics.
const (
	ErrorClassValidation    = "validation"
	ErrorClassInsufficient  = "insufficient_funds"
	ErrorClassInconsistency = "inconsistency"
	ErrorClassStorage       = "storage"
)

// ClassifyError maps a transfer error to its error class.
func ClassifyError(err error) string {
	switch {
	case domain.IsValidation(err):
		return ErrorClassValidation
	case domain.IsPolicy(err):
		return ErrorClassInsufficient
	case errors.Is(err, domain.ErrIdempotencyInconsistency):
		return ErrorClassInconsistency
	default:
		return ErrorClassStorage
	}
}

// TransferService runs the transfer handler inside its own transaction.
// It owns begin, commit and rollback, and retries transient storage failures.
type TransferService struct {
	txManager TransactionManager
	handler   *TransferHandler
	retrier   Retrier
	cache     ResultCache
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	timeout   time.Duration
}

// TransferServiceOption customises a TransferService.
type TransferServiceOption func(*TransferService)

// WithResultCache enables the replay fast path.
func WithResultCache(cache ResultCache) TransferServiceOption {
	return func(s *TransferService) { s.cache = cache }
}

// WithMetrics records transfer metrics.
func WithMetrics(m *metrics.Metrics) TransferServiceOption {
	return func(s *TransferService) { s.metrics = m }
}

// WithTimeout bounds each transaction attempt.
func WithTimeout(timeout time.Duration) TransferServiceOption {
	return func(s *TransferService) { s.timeout = timeout }
}

// NewTransferService creates a new TransferService.
func NewTransferService(
	txManager TransactionManager,
	handler *TransferHandler,
	retrier Retrier,
	log zerolog.Logger,
	opts ...TransferServiceOption,
) *TransferService {
	s := &TransferService{
		txManager: txManager,
		handler:   handler,
		retrier:   retrier,
		logger:    log,
		timeout:   DefaultTransactionTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TransferOutcome is a TransferResult plus whether it was a replay.
type TransferOutcome struct {
	TransferResult
	Replayed bool
}

// Transfer applies cmd in a new transaction and commits it.
func (s *TransferService) Transfer(ctx context.Context, cmd TransferCommand) (TransferOutcome, error) {
	start := time.Now()
	log := logger.WithContext(ctx, s.logger).With().
		Str("command_id", cmd.CommandID).
		Str("correlation_id", cmd.CorrelationID).
		Logger()

	if err := cmd.Validate(); err != nil {
		s.recordError(log, err)
		return TransferOutcome{}, err
	}

	if outcome, ok := s.cached(ctx, log, cmd.CommandID); ok {
		s.recordSuccess(log, outcome, cmd, start)
		return outcome, nil
	}

	var outcome TransferOutcome

	err := s.retrier.Retry(ctx, func() error {
		var err error
		outcome, err = s.attempt(ctx, cmd)
		return err
	})
	if err != nil {
		s.recordError(log, err)
		return TransferOutcome{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, outcome.TransferResult); err != nil {
			log.Warn().Err(err).Msg("failed to cache transfer result")
		}
	}

	s.recordSuccess(log, outcome, cmd, start)

	return outcome, nil
}

func (s *TransferService) attempt(ctx context.Context, cmd TransferCommand) (TransferOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return TransferOutcome{}, err
	}
	defer tx.Rollback(ctx)

	result, replayed, err := s.handler.handle(ctx, tx, cmd)
	if err != nil {
		return TransferOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferOutcome{}, err
	}

	return TransferOutcome{TransferResult: result, Replayed: replayed}, nil
}

func (s *TransferService) cached(ctx context.Context, log zerolog.Logger, commandID string) (TransferOutcome, bool) {
	if s.cache == nil {
		return TransferOutcome{}, false
	}

	result, found, err := s.cache.Get(ctx, commandID)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("result cache lookup failed")
		s.countCache("error")
		return TransferOutcome{}, false
	case !found:
		s.countCache("miss")
		return TransferOutcome{}, false
	}

	s.countCache("hit")

	return TransferOutcome{TransferResult: result, Replayed: true}, true
}

func (s *TransferService) countCache(outcome string) {
	if s.metrics != nil {
		s.metrics.ResultCacheLookups.WithLabelValues(outcome).Inc()
	}
}

func (s *TransferService) recordSuccess(log zerolog.Logger, outcome TransferOutcome, cmd TransferCommand, start time.Time) {
	if s.metrics != nil {
		if outcome.Replayed {
			s.metrics.TransfersReplayed.Inc()
		} else {
			s.metrics.TransfersApplied.Inc()
			s.metrics.TransferAmount.Observe(float64(cmd.Money.Amount()))
		}
		s.metrics.TransferDuration.Observe(time.Since(start).Seconds())
	}

	log.Info().
		Str("transfer_id", outcome.TransferID).
		Bool("replayed", outcome.Replayed).
		Dur("duration", time.Since(start)).
		Msg("transfer command handled")
}

func (s *TransferService) recordError(log zerolog.Logger, err error) {
	class := ClassifyError(err)

	if s.metrics != nil {
		s.metrics.TransferErrors.WithLabelValues(class).Inc()
	}

	switch class {
	case ErrorClassInconsistency, ErrorClassStorage:
		log.Error().Err(err).Str("error_type", class).Msg("transfer command failed")
	default:
		log.Info().Err(err).Str("error_type", class).Msg("transfer command rejected")
	}
}
