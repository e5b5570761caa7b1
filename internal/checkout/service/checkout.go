package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adspace/internal/checkout/validator"
	"adspace/internal/locking"
	"adspace/internal/pricing"
	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/gateway"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Currency           string
	SuccessURL         string
	CancelURL          string
	SingleFee          pricing.FeeSchedule
	CampaignFee        pricing.FeeSchedule
	ResolveConcurrency int
}

// Result is what the client needs to redirect the buyer.
type Result struct {
	URL            string   `json:"url"`
	ReservationIDs []string `json:"reservationIds,omitempty"`
}

type CheckoutService interface {
	CheckoutSingle(ctx context.Context, req *validator.SingleCheckoutRequest) (*Result, error)
	CheckoutCampaign(ctx context.Context, req *validator.CampaignCheckoutRequest) (*Result, error)
}

type checkoutService struct {
	repos     *repository.Repositories
	locker    locking.Locker
	gateway   gateway.Gateway
	validator *validator.CheckoutValidator
	cfg       Config
	log       *logger.Logger
}

func NewCheckoutService(
	repos *repository.Repositories,
	locker locking.Locker,
	gw gateway.Gateway,
	validator *validator.CheckoutValidator,
	cfg Config,
	log *logger.Logger,
) CheckoutService {
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = 8
	}
	return &checkoutService{
		repos:     repos,
		locker:    locker,
		gateway:   gw,
		validator: validator,
		cfg:       cfg,
		log:       log,
	}
}

// ────────────────────────────────────────────────
// Single media
// ────────────────────────────────────────────────

func (s *checkoutService) CheckoutSingle(ctx context.Context, req *validator.SingleCheckoutRequest) (*Result, error) {
	rng, err := s.validator.ValidateSingle(req)
	if err != nil {
		return nil, validationError(err)
	}

	media, err := s.loadBookableMedia(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}
	destination, err := s.payoutAccount(ctx, media.CompanyID)
	if err != nil {
		return nil, err
	}

	split := s.cfg.SingleFee.Split(req.TotalPrice)
	reservation := &model.Reservation{
		MediaID:             media.ID,
		UserID:              req.UserID,
		StartDate:           rng.Start,
		EndDate:             rng.End,
		TotalPrice:          req.TotalPrice,
		PlatformFee:         split.PlatformFee,
		OwnerAmount:         split.OwnerAmount,
		Status:              model.ReservationPending,
		PaymentStatus:       model.PaymentPending,
		FeeSchedule:         s.cfg.SingleFee.Name,
		TransferDestination: destination,
	}

	if err := s.createGuarded(ctx, reservation); err != nil {
		return nil, err
	}

	sessionReq := gateway.CheckoutSessionRequest{
		LineItems: []gateway.LineItem{{
			Name:        media.Name,
			Description: describeRange(rng.Start, rng.End),
			Amount:      req.TotalPrice,
			Quantity:    1,
		}},
		Currency:      s.cfg.Currency,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		CustomerEmail: req.CustomerEmail,
		Metadata: map[string]string{
			gateway.MetaReservationID: reservation.ID,
			gateway.MetaUserID:        req.UserID,
		},
	}
	if destination != "" {
		sessionReq.ApplicationFee = split.PlatformFee
		sessionReq.Destination = destination
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		s.log.Error("Failed to create checkout session",
			"reservation_id", reservation.ID,
			"media_id", media.ID,
			"error", err,
		)
		return nil, apperrors.Upstream(err)
	}

	s.attachPayment(ctx, []string{reservation.ID}, session)

	s.log.Info("Single checkout created",
		"reservation_id", reservation.ID,
		"media_id", media.ID,
		"total_price", reservation.TotalPrice,
		"platform_fee", reservation.PlatformFee,
		"automatic_split", destination != "",
	)
	return &Result{URL: session.URL, ReservationIDs: []string{reservation.ID}}, nil
}

// createGuarded inserts the pending reservation while holding the media lock,
// after re-checking that no confirmed reservation claims the same days.
func (s *checkoutService) createGuarded(ctx context.Context, reservation *model.Reservation) error {
	release, err := s.locker.Acquire(ctx, locking.MediaKey(reservation.MediaID))
	if err != nil {
		return err
	}
	defer release()

	overlapping, err := s.repos.Reservations.FindConfirmedOverlapping(ctx, reservation.MediaID, reservation.StartDate, reservation.EndDate, "")
	if err != nil {
		return apperrors.Internal("Failed to check availability", err)
	}
	if len(overlapping) > 0 {
		return overlapConflict(reservation.MediaID, overlapping[0])
	}

	if err := s.repos.Reservations.Create(ctx, reservation); err != nil {
		return apperrors.Internal("Failed to create reservation", err)
	}
	return nil
}

// ────────────────────────────────────────────────
// Campaign
// ────────────────────────────────────────────────

type resolvedItem struct {
	item  *model.CampaignMedia
	media *model.Media
	total int64
}

func (s *checkoutService) CheckoutCampaign(ctx context.Context, req *validator.CampaignCheckoutRequest) (*Result, error) {
	if err := s.validator.ValidateCampaign(req); err != nil {
		return nil, validationError(err)
	}

	campaign, err := s.repos.Campaigns.FindByID(ctx, req.CampaignID)
	if err != nil {
		return nil, lookupError("Campaign", req.CampaignID, err)
	}
	if !campaign.OwnedBy(req.UserID) {
		return nil, apperrors.Forbidden("campaign does not belong to this user")
	}
	switch campaign.Status {
	case model.CampaignPaid, model.CampaignCompleted:
		return nil, apperrors.ConflictWithReason(apperrors.ReasonAlreadyPaid, "campaign has already been paid")
	case model.CampaignCancelled:
		return nil, apperrors.Conflict("campaign has been cancelled")
	}

	items, err := s.repos.CampaignMedia.FindPendingByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load campaign items", err)
	}
	if len(items) == 0 {
		return nil, noPendingItems(campaign.ID)
	}

	resolved, err := s.resolveItems(ctx, items)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return nil, noPendingItems(campaign.ID)
	}

	for _, r := range resolved {
		overlapping, err := s.repos.Reservations.FindConfirmedOverlapping(ctx, r.media.ID, r.item.StartDate, r.item.EndDate, "")
		if err != nil {
			return nil, apperrors.Internal("Failed to check availability", err)
		}
		if len(overlapping) > 0 {
			return nil, overlapConflict(r.media.ID, overlapping[0])
		}
	}

	// One destination for the whole session: the owner of the first item.
	destination, err := s.payoutAccount(ctx, resolved[0].media.CompanyID)
	if err != nil {
		return nil, err
	}

	totals := make([]int64, len(resolved))
	for i, r := range resolved {
		totals[i] = r.total
	}
	aggregate, splits := s.cfg.CampaignFee.SplitItems(totals)

	reservations := make([]*model.Reservation, len(resolved))
	for i, r := range resolved {
		reservations[i] = &model.Reservation{
			MediaID:             r.media.ID,
			UserID:              req.UserID,
			StartDate:           model.Day(r.item.StartDate),
			EndDate:             model.Day(r.item.EndDate),
			TotalPrice:          r.total,
			PlatformFee:         splits[i].PlatformFee,
			OwnerAmount:         splits[i].OwnerAmount,
			Status:              model.ReservationPending,
			PaymentStatus:       model.PaymentPending,
			FeeSchedule:         s.cfg.CampaignFee.Name,
			TransferDestination: destination,
			CampaignID:          campaign.ID,
			CampaignMediaID:     r.item.ID,
		}
	}

	err = s.repos.Reservations.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repos.Reservations.CreateMany(sessCtx, reservations); err != nil {
			return apperrors.Internal("Failed to create campaign reservations", err)
		}
		moved, err := s.repos.Campaigns.TransitionStatus(sessCtx, campaign.ID, model.CampaignPendingPayment, "")
		if err != nil {
			return apperrors.Internal("Failed to update campaign status", err)
		}
		if !moved {
			return apperrors.Conflict("campaign is no longer open for checkout")
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to persist campaign checkout", "campaign_id", campaign.ID, "error", err)
		return nil, err
	}

	reservationIDs := make([]string, len(reservations))
	itemIDs := make([]string, len(reservations))
	lineItems := make([]gateway.LineItem, len(reservations))
	for i, res := range reservations {
		reservationIDs[i] = res.ID
		itemIDs[i] = res.CampaignMediaID
		lineItems[i] = gateway.LineItem{
			Name:        resolved[i].media.Name,
			Description: describeRange(res.StartDate, res.EndDate),
			Amount:      res.TotalPrice,
			Quantity:    1,
		}
	}

	sessionReq := gateway.CheckoutSessionRequest{
		LineItems:     lineItems,
		Currency:      s.cfg.Currency,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		CustomerEmail: req.CustomerEmail,
		Metadata: map[string]string{
			gateway.MetaCampaignID:       campaign.ID,
			gateway.MetaReservationIDs:   strings.Join(reservationIDs, ","),
			gateway.MetaCampaignMediaIDs: strings.Join(itemIDs, ","),
			gateway.MetaUserID:           req.UserID,
		},
	}
	if destination != "" {
		sessionReq.ApplicationFee = aggregate.PlatformFee
		sessionReq.Destination = destination
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		s.log.Error("Failed to create campaign checkout session",
			"campaign_id", campaign.ID,
			"reservation_ids", reservationIDs,
			"error", err,
		)
		return nil, apperrors.Upstream(err)
	}

	s.attachPayment(ctx, reservationIDs, session)
	if session.PaymentIntentID != "" {
		if _, err := s.repos.Campaigns.TransitionStatus(ctx, campaign.ID, model.CampaignPendingPayment, session.PaymentIntentID); err != nil {
			s.log.Warn("Failed to store campaign payment intent", "campaign_id", campaign.ID, "error", err)
		}
	}

	s.log.Info("Campaign checkout created",
		"campaign_id", campaign.ID,
		"items", len(reservations),
		"skipped", len(items)-len(resolved),
		"total_price", aggregate.PlatformFee+aggregate.OwnerAmount,
		"platform_fee", aggregate.PlatformFee,
		"automatic_split", destination != "",
	)
	return &Result{URL: session.URL, ReservationIDs: reservationIDs}, nil
}

// resolveItems loads the media of every item concurrently and keeps the
// original item order. Items whose media vanished or was soft-deleted are
// dropped; any other failure aborts the batch.
func (s *checkoutService) resolveItems(ctx context.Context, items []*model.CampaignMedia) ([]resolvedItem, error) {
	slots := make([]*resolvedItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ResolveConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			media, err := s.repos.Media.FindByID(gctx, item.MediaID)
			switch {
			case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
				s.log.Warn("Skipping campaign item with missing media", "campaign_media_id", item.ID, "media_id", item.MediaID)
				return nil
			case err != nil:
				return fmt.Errorf("media %s: %w", item.MediaID, err)
			case !media.Bookable():
				s.log.Warn("Skipping campaign item with deleted media", "campaign_media_id", item.ID, "media_id", item.MediaID)
				return nil
			}

			total, err := itemTotal(item, media)
			if err != nil {
				s.log.Warn("Skipping campaign item that cannot be priced", "campaign_media_id", item.ID, "error", err)
				return nil
			}
			slots[i] = &resolvedItem{item: item, media: media, total: total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal("Failed to resolve campaign media", err)
	}

	resolved := make([]resolvedItem, 0, len(items))
	for _, r := range slots {
		if r != nil {
			resolved = append(resolved, *r)
		}
	}
	return resolved, nil
}

// itemTotal trusts the stored line total and falls back to pricing the item
// from its tier and quantity when the total was never filled in.
func itemTotal(item *model.CampaignMedia, media *model.Media) (int64, error) {
	if item.TotalPrice > 0 {
		return item.TotalPrice, nil
	}
	tier, err := pricing.ParseTier(item.PriceType)
	if err != nil {
		return 0, err
	}
	quantity := item.Quantity
	if quantity < 1 {
		quantity = pricing.InferQuantity(item.StartDate, item.EndDate, tier)
	}
	quote, err := pricing.ComputeTotal(media.BasePrice, tier, quantity, item.StartDate)
	if err != nil {
		return 0, err
	}
	return quote.Total, nil
}

// ────────────────────────────────────────────────
// Shared helpers
// ────────────────────────────────────────────────

func (s *checkoutService) loadBookableMedia(ctx context.Context, id string) (*model.Media, error) {
	media, err := s.repos.Media.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError("Media", id, err)
	}
	if !media.Bookable() {
		return nil, apperrors.Conflict("media is no longer available")
	}
	return media, nil
}

// payoutAccount returns the owner's connected account, or "" when the company
// is unknown or has none. Funds then stay on the platform until release.
func (s *checkoutService) payoutAccount(ctx context.Context, companyID string) (string, error) {
	if companyID == "" {
		return "", nil
	}
	company, err := s.repos.Companies.FindByID(ctx, companyID)
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		s.log.Warn("Media owner company not found", "company_id", companyID)
		return "", nil
	case err != nil:
		return "", apperrors.Internal("Failed to load media owner", err)
	}
	if !company.CanReceiveTransfers() {
		return "", nil
	}
	return company.PayoutAccountID, nil
}

// attachPayment stores the session and payment intent on the reservations.
// The webhook correlates by metadata, so a failure here is logged only.
func (s *checkoutService) attachPayment(ctx context.Context, ids []string, session *gateway.CheckoutSession) {
	if err := s.repos.Reservations.SetPaymentReference(ctx, ids, session.PaymentIntentID, session.ID); err != nil {
		s.log.Error("Failed to store payment reference",
			"reservation_ids", ids,
			"session_id", session.ID,
			"error", err,
		)
	}
}

func describeRange(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", model.FormatDate(start), model.FormatDate(end))
}

func overlapConflict(mediaID string, existing *model.Reservation) *apperrors.AppError {
	return apperrors.ConflictWithReason(apperrors.ReasonOverlap, "selected dates are no longer available").
		WithDetails(map[string]any{
			"mediaId":       mediaID,
			"occupiedStart": model.FormatDate(existing.StartDate),
			"occupiedEnd":   model.FormatDate(existing.EndDate),
		})
}

func noPendingItems(campaignID string) *apperrors.AppError {
	return apperrors.Validation("campaign has no pending items", map[string]any{
		"reason":     apperrors.ReasonNoPendingItems,
		"campaignId": campaignID,
	})
}

func lookupError(resource, id string, err error) error {
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		return apperrors.NotFoundWithID(resource, id)
	default:
		return apperrors.Internal(fmt.Sprintf("Failed to load %s", strings.ToLower(resource)), err)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(verrs.Error(), verrs.Fields())
	}
	return apperrors.Validation(err.Error(), nil)
}
