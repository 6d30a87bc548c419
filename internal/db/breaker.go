package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"tickwise/internal/types"
)

// BreakerStoreConfig configures the circuit-breaking event log decorator.
type BreakerStoreConfig struct {
	Store types.EventLogStore
	// Name labels the breaker in logs; defaults to "event-log".
	Name   string
	Logger *slog.Logger
}

// BreakerStore wraps an event log store in a circuit breaker so a
// struggling database sheds sensor-evaluation load instead of queueing it.
// Open-circuit calls fail fast with an upstream error the daemon treats as
// retryable.
type BreakerStore struct {
	inner   types.EventLogStore
	breaker *gobreaker.CircuitBreaker[[]types.EventRecord]
	logger  *slog.Logger
}

// NewBreakerStore builds the decorator. The breaker opens after five
// consecutive failures and probes again after thirty seconds.
func NewBreakerStore(cfg BreakerStoreConfig) *BreakerStore {
	name := cfg.Name
	if name == "" {
		name = "event-log"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event log circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerStore{
		inner:   cfg.Store,
		breaker: gobreaker.NewCircuitBreaker[[]types.EventRecord](settings),
		logger:  logger,
	}
}

// EventRecords proxies to the wrapped store through the breaker.
func (s *BreakerStore) EventRecords(ctx context.Context, filter types.EventRecordsFilter, ascending bool, limit int) ([]types.EventRecord, error) {
	records, err := s.breaker.Execute(func() ([]types.EventRecord, error) {
		return s.inner.EventRecords(ctx, filter, ascending, limit)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, types.NewAppError(types.ErrCodeUpstreamEventLog,
			"event log temporarily unavailable", err)
	}
	return records, err
}
