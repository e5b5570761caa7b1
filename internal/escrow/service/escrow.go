// Package service releases escrowed payments to media owners once a rental
// has ended.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adspace/internal/events"
	"adspace/internal/locking"
	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/gateway"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeAutomatic      = "automatic"
	outcomeNoAccount      = "no_account"
	outcomeTransferred    = "transferred"
	outcomeTransferFailed = "transfer_failed"

	warnNoAccount      = "media owner has no payout account; funds remain on the platform account"
	warnTransferFailed = "transfer to the media owner failed; release recorded for manual reconciliation"
)

type Config struct {
	Currency string
}

// Result is returned to the dashboard after a release.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TransferID string `json:"transferId,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// CacheInvalidator drops cached occupied dates of a media whose booking closed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, mediaIDs ...string)
}

type EscrowService interface {
	ReleasePayment(ctx context.Context, reservationID string) (*Result, error)
}

type escrowService struct {
	repos     *repository.Repositories
	locker    locking.Locker
	gateway   gateway.Gateway
	publisher events.Publisher
	cache     CacheInvalidator
	cfg       Config
	log       *logger.Logger
	releases  *prometheus.CounterVec
	now       func() time.Time
}

// NewEscrowService registers its release counter on reg when reg is not nil.
func NewEscrowService(
	repos *repository.Repositories,
	locker locking.Locker,
	gw gateway.Gateway,
	publisher events.Publisher,
	cache CacheInvalidator,
	cfg Config,
	reg prometheus.Registerer,
	log *logger.Logger,
) EscrowService {
	if publisher == nil {
		publisher = events.Noop()
	}
	releases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adspace",
		Subsystem: "escrow",
		Name:      "releases_total",
		Help:      "Payment releases by outcome.",
	}, []string{"outcome"})
	if reg != nil {
		reg.MustRegister(releases)
	}
	return &escrowService{
		repos:     repos,
		locker:    locker,
		gateway:   gw,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		log:       log,
		releases:  releases,
		now:       time.Now,
	}
}

func (s *escrowService) ReleasePayment(ctx context.Context, reservationID string) (*Result, error) {
	now := s.now().UTC()

	res, err := s.loadReleasable(ctx, reservationID, now)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, locking.ReleaseKey(reservationID))
	if err != nil {
		return nil, err
	}
	defer release()

	// another release may have finished while we waited for the lock
	res, err = s.loadReleasable(ctx, reservationID, now)
	if err != nil {
		return nil, err
	}

	log := s.log.With("reservation_id", res.ID, "media_id", res.MediaID)

	automatic, err := s.gateway.PaymentIntentDestination(ctx, res.PaymentIntentID)
	if err != nil {
		log.Error("Failed to look up payment intent", "payment_intent_id", res.PaymentIntentID, "error", err)
		return nil, apperrors.Upstream(err)
	}

	outcome := model.ReleaseOutcome{ReleasedAt: now}
	result := &Result{Success: true}
	var kind string

	switch {
	case automatic != "":
		kind = outcomeAutomatic
		result.Message = "Payment released; funds were transferred to the owner at purchase"
	default:
		account, err := s.payoutAccount(ctx, res)
		if err != nil {
			return nil, err
		}
		if account == "" {
			kind = outcomeNoAccount
			result.Message = "Payment released"
			result.Warning = warnNoAccount
			break
		}

		transfer, err := s.gateway.Transfer(ctx, gateway.TransferRequest{
			Amount:         res.OwnerAmount,
			Currency:       s.cfg.Currency,
			Destination:    account,
			IdempotencyKey: "release-" + res.ID,
			Metadata:       map[string]string{gateway.MetaReservationID: res.ID},
		})
		if err != nil {
			log.Error("Transfer to media owner failed", "destination", account, "amount", res.OwnerAmount, "error", err)
			kind = outcomeTransferFailed
			outcome.TransferError = err.Error()
			result.Message = "Payment released"
			result.Warning = warnTransferFailed
			break
		}
		kind = outcomeTransferred
		outcome.TransferID = transfer.ID
		result.TransferID = transfer.ID
		result.Message = "Payment released and transferred to the media owner"
	}

	released, err := s.repos.Reservations.MarkReleased(ctx, res.ID, outcome)
	if err != nil {
		log.Error("Failed to record release", "outcome", kind, "transfer_id", outcome.TransferID, "error", err)
		return nil, apperrors.Internal("Failed to record release", err)
	}
	if !released {
		return nil, apperrors.ConflictWithReason(apperrors.ReasonAlreadyReleased, "payment has already been released")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, res.MediaID)
	}
	s.releases.WithLabelValues(kind).Inc()
	log.Info("Payment released",
		"outcome", kind,
		"owner_amount", res.OwnerAmount,
		"transfer_id", outcome.TransferID,
	)

	if err := s.publisher.Publish(ctx, events.Event{
		Key:  res.ID,
		Type: events.PaymentReleased,
		Payload: events.ReleasePayload{
			ReservationID: res.ID,
			OwnerAmount:   res.OwnerAmount,
			TransferID:    outcome.TransferID,
			TransferError: outcome.TransferError,
			Warning:       result.Warning,
		},
	}); err != nil {
		log.Warn("Failed to publish payment released event", "error", err)
	}

	return result, nil
}

// loadReleasable applies the release preconditions in order: the reservation
// exists, it is not released, the rental has ended and the payment is held.
func (s *escrowService) loadReleasable(ctx context.Context, id string, now time.Time) (*model.Reservation, error) {
	res, err := s.repos.Reservations.FindByID(ctx, id)
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		return nil, apperrors.NotFoundWithID("Reservation", id)
	case err != nil:
		return nil, apperrors.Internal("Failed to load reservation", err)
	}

	if res.IsReleased() {
		return nil, apperrors.ConflictWithReason(apperrors.ReasonAlreadyReleased, "payment has already been released")
	}
	if !res.RentalEnded(now) {
		return nil, apperrors.ConflictWithReason(apperrors.ReasonRentalNotEnded,
			fmt.Sprintf("rental period has not ended yet; release is possible from %s", model.FormatDate(res.ReleasableFrom())))
	}
	if res.Status != model.ReservationConfirmed || res.PaymentStatus != model.PaymentHeld {
		return nil, apperrors.ConflictWithReason(apperrors.ReasonPaymentNotHeld, "payment is not held for this reservation")
	}
	return res, nil
}

// payoutAccount resolves Media -> Company. A missing media or company counts
// as no account.
func (s *escrowService) payoutAccount(ctx context.Context, res *model.Reservation) (string, error) {
	media, err := s.repos.Media.FindByID(ctx, res.MediaID)
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		return "", nil
	case err != nil:
		return "", apperrors.Internal("Failed to load media", err)
	}
	if media.CompanyID == "" {
		return "", nil
	}

	company, err := s.repos.Companies.FindByID(ctx, media.CompanyID)
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		return "", nil
	case err != nil:
		return "", apperrors.Internal("Failed to load media owner", err)
	}
	if !company.CanReceiveTransfers() {
		return "", nil
	}
	return company.PayoutAccountID, nil
}
