package service

import (
	"context"
	"errors"
	"strings"

	"adspace/internal/events"
	"adspace/internal/locking"
	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	"adspace/internal/webhook/dedup"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/gateway"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type Config struct {
	CancelOnPaymentFailure bool
}

// CacheInvalidator drops cached occupied dates after a confirmation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, mediaIDs ...string)
}

type WebhookService interface {
	// Handle verifies and applies one gateway event. It is safe to call again
	// with the same payload.
	Handle(ctx context.Context, payload []byte, signature string) error
}

type webhookService struct {
	repos     *repository.Repositories
	locker    locking.Locker
	gateway   gateway.Gateway
	dedup     dedup.Store
	cache     CacheInvalidator
	publisher events.Publisher
	cfg       Config
	log       *logger.Logger
}

func NewWebhookService(
	repos *repository.Repositories,
	locker locking.Locker,
	gw gateway.Gateway,
	dedupStore dedup.Store,
	cache CacheInvalidator,
	publisher events.Publisher,
	cfg Config,
	log *logger.Logger,
) WebhookService {
	if dedupStore == nil {
		dedupStore = dedup.Nop{}
	}
	if publisher == nil {
		publisher = events.Noop()
	}
	return &webhookService{
		repos:     repos,
		locker:    locker,
		gateway:   gw,
		dedup:     dedupStore,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

func (s *webhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		s.log.Warn("Rejected webhook with invalid signature", "error", err)
		return apperrors.Signature(err)
	}

	log := s.log.With("event_id", event.ID, "event_type", string(event.Type))

	seen, err := s.dedup.Seen(ctx, event.ID)
	if err != nil {
		log.Warn("Webhook dedup lookup failed, processing anyway", "error", err)
	}
	if seen {
		log.Info("Webhook event already processed")
		return nil
	}

	switch event.Type {
	case gateway.EventCheckoutSessionCompleted:
		err = s.confirmSession(ctx, log, event)
	case gateway.EventPaymentIntentSucceeded:
		log.Info("Payment intent succeeded", "payment_intent_id", event.PaymentIntentID)
	case gateway.EventPaymentIntentFailed:
		err = s.paymentFailed(ctx, log, event)
	default:
		log.Debug("Ignoring webhook event type")
	}
	if err != nil {
		log.Error("Failed to process webhook event", "error", err)
		return err
	}

	if err := s.dedup.Mark(ctx, event.ID); err != nil {
		log.Warn("Failed to mark webhook event as processed", "error", err)
	}
	return nil
}

// ────────────────────────────────────────────────
// checkout.session.completed
// ────────────────────────────────────────────────

type confirmation struct {
	confirmed []*model.Reservation
	cancelled []*model.Reservation
}

func (s *webhookService) confirmSession(ctx context.Context, log *logger.Logger, event *gateway.Event) error {
	campaignID := event.Metadata[gateway.MetaCampaignID]
	ids := splitIDs(event.Metadata[gateway.MetaReservationIDs])

	switch {
	case campaignID != "" && len(ids) > 0:
		return s.confirmCampaign(ctx, log.With("campaign_id", campaignID), campaignID, ids, event.PaymentIntentID)
	case event.Metadata[gateway.MetaReservationID] != "":
		id := event.Metadata[gateway.MetaReservationID]
		var out confirmation
		if err := s.confirmReservation(ctx, log, id, event.PaymentIntentID, &out); err != nil {
			return err
		}
		s.publishOutcome(ctx, log, &out)
		return nil
	default:
		log.Warn("Checkout session carries no reservation metadata", "session_id", event.ObjectID)
		return nil
	}
}

func (s *webhookService) confirmCampaign(ctx context.Context, log *logger.Logger, campaignID string, ids []string, paymentIntentID string) error {
	var out confirmation
	for _, id := range ids {
		if err := s.confirmReservation(ctx, log, id, paymentIntentID, &out); err != nil {
			return err
		}
	}

	paid, err := s.repos.Campaigns.TransitionStatus(ctx, campaignID, model.CampaignPaid, paymentIntentID)
	if err != nil {
		return apperrors.Internal("Failed to mark campaign as paid", err)
	}

	s.publishOutcome(ctx, log, &out)

	if !paid {
		log.Info("Campaign already paid or missing")
		return nil
	}
	log.Info("Campaign paid", "confirmed", len(out.confirmed), "cancelled", len(out.cancelled))

	reservationIDs := make([]string, len(out.confirmed))
	userID := ""
	for i, r := range out.confirmed {
		reservationIDs[i] = r.ID
		userID = r.UserID
	}
	if err := s.publisher.Publish(ctx, events.Event{
		Key:  campaignID,
		Type: events.CampaignPaid,
		Payload: events.CampaignPayload{
			CampaignID:      campaignID,
			UserID:          userID,
			PaymentIntentID: paymentIntentID,
			ReservationIDs:  reservationIDs,
		},
	}); err != nil {
		log.Warn("Failed to publish campaign paid event", "error", err)
	}
	return nil
}

// confirmReservation promotes one pending reservation to confirmed/held under
// the media lock. A reservation cancelled by an earlier failed attempt is
// reinstated the same way. A missing reservation is skipped. A reservation that
// would now overlap a confirmed one is cancelled instead.
func (s *webhookService) confirmReservation(ctx context.Context, log *logger.Logger, id, paymentIntentID string, out *confirmation) error {
	log = log.With("reservation_id", id)

	res, err := s.repos.Reservations.FindByID(ctx, id)
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		log.Warn("Reservation referenced by payment no longer exists")
		return nil
	case err != nil:
		return apperrors.Internal("Failed to load reservation", err)
	}

	switch {
	case res.Status == model.ReservationConfirmed, res.Status == model.ReservationCompleted:
		log.Debug("Reservation already confirmed")
		return s.linkCampaignItem(ctx, log, res)
	case !res.Reinstatable():
		log.Warn("Paid reservation is not pending", "status", string(res.Status), "reason", res.CancellationReason)
		return nil
	case res.Status == model.ReservationCancelled:
		log.Info("Payment retry succeeded, reinstating reservation", "payment_intent_id", paymentIntentID)
	}

	release, err := s.locker.Acquire(ctx, locking.MediaKey(res.MediaID))
	if err != nil {
		return err
	}
	defer release()

	overlapping, err := s.repos.Reservations.FindConfirmedOverlapping(ctx, res.MediaID, res.StartDate, res.EndDate, res.ID)
	if err != nil {
		return apperrors.Internal("Failed to check availability", err)
	}
	if len(overlapping) > 0 {
		cancelled, err := s.repos.Reservations.Cancel(ctx, res.ID, model.CancelReasonOverlap)
		if err != nil {
			return apperrors.Internal("Failed to cancel overlapping reservation", err)
		}
		if cancelled {
			log.Error("Paid reservation overlaps a confirmed booking, cancelled for refund",
				"media_id", res.MediaID,
				"conflicting_id", overlapping[0].ID,
				"payment_intent_id", paymentIntentID,
			)
			res.Status = model.ReservationCancelled
			res.CancellationReason = model.CancelReasonOverlap
			out.cancelled = append(out.cancelled, res)
		}
		return nil
	}

	var confirmed bool
	err = s.repos.Reservations.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		confirmed, err = s.repos.Reservations.Confirm(sessCtx, res.ID, paymentIntentID)
		if err != nil {
			return apperrors.Internal("Failed to confirm reservation", err)
		}
		if confirmed && res.CampaignMediaID != "" {
			if _, err := s.repos.CampaignMedia.MarkReserved(sessCtx, res.CampaignMediaID, res.ID); err != nil {
				return apperrors.Internal("Failed to link campaign item", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !confirmed {
		log.Debug("Reservation confirmed concurrently")
		return nil
	}

	log.Info("Reservation confirmed", "media_id", res.MediaID, "payment_intent_id", paymentIntentID)
	res.Status = model.ReservationConfirmed
	res.PaymentStatus = model.PaymentHeld
	res.CancellationReason = ""
	if paymentIntentID != "" {
		res.PaymentIntentID = paymentIntentID
	}
	out.confirmed = append(out.confirmed, res)
	return nil
}

// linkCampaignItem repairs a confirmed reservation whose campaign item was not
// marked on an earlier delivery.
func (s *webhookService) linkCampaignItem(ctx context.Context, log *logger.Logger, res *model.Reservation) error {
	if res.CampaignMediaID == "" {
		return nil
	}
	linked, err := s.repos.CampaignMedia.MarkReserved(ctx, res.CampaignMediaID, res.ID)
	if err != nil {
		return apperrors.Internal("Failed to link campaign item", err)
	}
	if linked {
		log.Info("Linked campaign item on redelivery", "campaign_media_id", res.CampaignMediaID)
	}
	return nil
}

func (s *webhookService) publishOutcome(ctx context.Context, log *logger.Logger, out *confirmation) {
	mediaIDs := make([]string, 0, len(out.confirmed))
	batch := make([]events.Event, 0, len(out.confirmed)+len(out.cancelled))
	for _, r := range out.confirmed {
		mediaIDs = append(mediaIDs, r.MediaID)
		batch = append(batch, reservationEvent(events.ReservationConfirmed, r))
	}
	for _, r := range out.cancelled {
		batch = append(batch, reservationEvent(events.ReservationCancelled, r))
	}

	if len(mediaIDs) > 0 && s.cache != nil {
		s.cache.Invalidate(ctx, mediaIDs...)
	}
	if err := s.publisher.Publish(ctx, batch...); err != nil {
		log.Warn("Failed to publish reservation events", "count", len(batch), "error", err)
	}
}

// ────────────────────────────────────────────────
// payment_intent.payment_failed
// ────────────────────────────────────────────────

func (s *webhookService) paymentFailed(ctx context.Context, log *logger.Logger, event *gateway.Event) error {
	ids := splitIDs(event.Metadata[gateway.MetaReservationIDs])
	if id := event.Metadata[gateway.MetaReservationID]; id != "" {
		ids = append(ids, id)
	}

	log.Warn("Payment failed",
		"payment_intent_id", event.PaymentIntentID,
		"reservation_ids", ids,
		"failure", event.FailureMessage,
	)
	if !s.cfg.CancelOnPaymentFailure || len(ids) == 0 {
		return nil
	}

	pending, err := s.repos.Reservations.FindPendingByIDs(ctx, ids)
	if err != nil {
		return apperrors.Internal("Failed to load pending reservations", err)
	}

	var out confirmation
	for _, res := range pending {
		cancelled, err := s.repos.Reservations.Cancel(ctx, res.ID, model.CancelReasonPaymentFailed)
		if err != nil {
			return apperrors.Internal("Failed to cancel reservation", err)
		}
		if cancelled {
			res.Status = model.ReservationCancelled
			res.CancellationReason = model.CancelReasonPaymentFailed
			out.cancelled = append(out.cancelled, res)
		}
	}
	log.Info("Cancelled reservations after payment failure", "count", len(out.cancelled))
	s.publishOutcome(ctx, log, &out)
	return nil
}

func reservationEvent(t events.Type, r *model.Reservation) events.Event {
	return events.Event{
		Key:  r.MediaID,
		Type: t,
		Payload: events.ReservationPayload{
			ReservationID:   r.ID,
			MediaID:         r.MediaID,
			UserID:          r.UserID,
			StartDate:       r.StartDate,
			EndDate:         r.EndDate,
			TotalPrice:      r.TotalPrice,
			PaymentIntentID: r.PaymentIntentID,
			CampaignID:      r.CampaignID,
			Reason:          r.CancellationReason,
		},
	}
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
