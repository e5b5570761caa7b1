// Package worker runs releases outside the request path: a sweeper that
// finds rentals whose end date has passed and a Kafka handler that executes
// the resulting release requests.
package worker

import (
	"context"
	"errors"
	"time"

	"adspace/internal/events"
	"adspace/internal/reservations/repository"
	"adspace/pkg/logger"
)

type SweeperConfig struct {
	Interval time.Duration
	Batch    int
}

type Sweeper struct {
	reservations repository.ReservationRepository
	publisher    events.Publisher
	cfg          SweeperConfig
	log          *logger.Logger
	now          func() time.Time
}

func NewSweeper(reservations repository.ReservationRepository, publisher events.Publisher, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	return &Sweeper{
		reservations: reservations,
		publisher:    publisher,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("Release sweeper started", "interval", s.cfg.Interval, "batch", s.cfg.Batch)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("Release sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.log.Info("Release sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce requests a release for up to Batch releasable reservations and
// returns how many were requested. Requests are idempotent, so a reservation
// picked up twice is rejected as already released by the executor.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	due, err := s.reservations.FindReleasable(ctx, s.now().UTC(), s.cfg.Batch)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	requests := make([]events.Event, len(due))
	for i, r := range due {
		requests[i] = events.Event{
			Key:  r.ID,
			Type: events.ReleaseRequested,
			Payload: events.ReleasePayload{
				ReservationID: r.ID,
				OwnerAmount:   r.OwnerAmount,
			},
		}
	}
	if err := s.publisher.Publish(ctx, requests...); err != nil {
		return 0, err
	}

	s.log.Info("Release requests issued", "count", len(requests))
	return len(requests), nil
}
