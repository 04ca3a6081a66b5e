package alerts

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
	"pumpguard/internal/storage"
)

// ErrRateLimited is returned by sinks that refuse delivery to stay under a rate cap.
var ErrRateLimited = errors.New("rate limited")

// Sink delivers alerts to an external channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a domain.Alert) error
}

// StartSink subscribes sink to bus before returning and delivers every alert
// on its own goroutine until ctx is done. Delivery failures are logged and
// never stop the loop. The returned channel is closed once delivery stops.
func StartSink(ctx context.Context, bus *Bus, sink Sink, buffer int, logger zerolog.Logger) <-chan struct{} {
	ch, cancel := bus.SubscribeNamed(sink.Name(), buffer)
	logger = logger.With().Str("component", "alerts").Str("sink", sink.Name()).Logger()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		deliver(ctx, ch, sink, logger)
	}()
	return done
}

func deliver(ctx context.Context, ch <-chan domain.Alert, sink Sink, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-ch:
			if !ok {
				return
			}
			err := sink.Deliver(ctx, a)
			switch {
			case err == nil:
				observability.RecordAlertSent(string(a.Kind), sink.Name())
			case errors.Is(err, ErrRateLimited):
				observability.RecordAlertDropped(sink.Name())
				logger.Debug().Uint64("alert_id", a.ID).Msg("alert skipped by rate limit")
			default:
				logger.Error().Err(err).Uint64("alert_id", a.ID).Msg("deliver alert")
			}
		}
	}
}

// StoreSink persists alerts.
type StoreSink struct {
	store storage.AlertStore
}

// NewStoreSink creates a sink writing to store.
func NewStoreSink(store storage.AlertStore) *StoreSink {
	return &StoreSink{store: store}
}

// Name implements Sink.
func (s *StoreSink) Name() string { return "store" }

// Deliver implements Sink. Re-delivery of a stored id is not an error.
func (s *StoreSink) Deliver(ctx context.Context, a domain.Alert) error {
	err := s.store.SaveAlert(ctx, &a)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}
