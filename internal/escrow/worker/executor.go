package worker

import (
	"context"
	"fmt"

	"adspace/internal/escrow/service"
	"adspace/internal/events"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/kafka"
	"adspace/pkg/logger"
)

type releaseEnvelope struct {
	EventType events.Type           `json:"event_type"`
	Payload   events.ReleasePayload `json:"payload"`
}

type Executor struct {
	escrow service.EscrowService
	log    *logger.Logger
}

func NewExecutor(escrow service.EscrowService, log *logger.Logger) *Executor {
	return &Executor{escrow: escrow, log: log}
}

// Handle is the kafka.MessageHandler for the release topic.
func (e *Executor) Handle(ctx context.Context, msg kafka.Message) error {
	var env releaseEnvelope
	if err := msg.DecodeValue(&env); err != nil {
		return err
	}
	if env.EventType != events.ReleaseRequested {
		e.log.Debug("Ignoring non release event", "event_type", string(env.EventType))
		return nil
	}
	if env.Payload.ReservationID == "" {
		return kafka.NewPermanentError("release request without reservation id", nil)
	}
	return e.Release(ctx, env.Payload.ReservationID)
}

// Release runs one release and classifies the outcome for the consumer:
// outcomes that a retry cannot change are acknowledged, lock contention and
// gateway failures are retried, everything else is parked on the DLQ.
func (e *Executor) Release(ctx context.Context, reservationID string) error {
	result, err := e.escrow.ReleasePayment(ctx, reservationID)
	if err == nil {
		e.log.Info("Release executed", "reservation_id", reservationID, "transfer_id", result.TransferID, "warning", result.Warning)
		return nil
	}

	appErr := apperrors.AsAppError(err)
	switch appErr.Reason() {
	case apperrors.ReasonAlreadyReleased, apperrors.ReasonRentalNotEnded, apperrors.ReasonPaymentNotHeld:
		e.log.Info("Release request skipped", "reservation_id", reservationID, "reason", appErr.Reason())
		return nil
	case apperrors.ReasonLocked:
		return kafka.NewTransientError("reservation is locked", err)
	}

	switch appErr.Code {
	case apperrors.CodeUpstream, apperrors.CodeUnavailable, apperrors.CodeTimeout:
		return kafka.NewTransientError("gateway unavailable", err)
	case apperrors.CodeInternal:
		return kafka.NewTransientError("release failed", err)
	default:
		return kafka.NewPermanentError(fmt.Sprintf("release %s rejected", reservationID), err)
	}
}

// LocalPublisher executes release requests in-process. It stands in for the
// Kafka topic when Kafka is disabled.
type LocalPublisher struct {
	executor *Executor
	log      *logger.Logger
}

func NewLocalPublisher(executor *Executor, log *logger.Logger) *LocalPublisher {
	return &LocalPublisher{executor: executor, log: log}
}

func (p *LocalPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	for _, ev := range evts {
		if ev.Type != events.ReleaseRequested {
			continue
		}
		payload, ok := ev.Payload.(events.ReleasePayload)
		if !ok {
			p.log.Warn("Unexpected release payload", "type", fmt.Sprintf("%T", ev.Payload))
			continue
		}
		if err := p.executor.Release(ctx, payload.ReservationID); err != nil {
			p.log.Error("Release failed", "reservation_id", payload.ReservationID, "error", err)
		}
	}
	return nil
}
