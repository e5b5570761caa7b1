package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"adspace/internal/checkout/validator"
	"adspace/internal/locking"
	"adspace/internal/pricing"
	"adspace/internal/reservations/repository/memory"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/gateway"
	"adspace/pkg/logger"
	"adspace/pkg/model"
)

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

type fixture struct {
	store   *memory.Store
	gateway *gateway.Fake
	svc     CheckoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	store := memory.NewStore()
	repos := store.Repositories()
	gw := &gateway.Fake{}

	svc := NewCheckoutService(
		repos,
		locking.NewLocker(repos.Locks, locking.Config{TTL: time.Minute, Wait: 5 * time.Second}, log),
		gw,
		validator.NewCheckoutValidator(log),
		Config{
			Currency:    "usd",
			SuccessURL:  "https://app.test/success",
			CancelURL:   "https://app.test/cancel",
			SingleFee:   pricing.FeeSchedule{Name: "single", BasisPoints: 1500},
			CampaignFee: pricing.FeeSchedule{Name: "campaign", BasisPoints: 1000},
		},
		log,
	)
	return &fixture{store: store, gateway: gw, svc: svc}
}

func (f *fixture) seedMedia(payout string, deleted bool) string {
	companyID := f.store.PutCompany(model.Company{Name: "Owner", PayoutAccountID: payout})
	return f.store.PutMedia(model.Media{
		CompanyID: companyID,
		Name:      "Billboard",
		BasePrice: 100000,
		Deleted:   deleted,
	})
}

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func singleRequest(mediaID string) *validator.SingleCheckoutRequest {
	return &validator.SingleCheckoutRequest{
		MediaID:    mediaID,
		StartDate:  "2030-05-01",
		EndDate:    "2030-05-28",
		TotalPrice: 200000,
		UserID:     "user-1",
	}
}

func assertAppError(t *testing.T, err error, status int, reason string) {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.StatusCode() != status {
		t.Errorf("expected status %d, got %d (%v)", status, appErr.StatusCode(), appErr)
	}
	if reason != "" && appErr.Reason() != reason {
		t.Errorf("expected reason %s, got %q", reason, appErr.Reason())
	}
}

// ────────────────────────────────────────────────
// Tests for CheckoutSingle()
// ────────────────────────────────────────────────

func TestCheckoutSingle_AutomaticSplit(t *testing.T) {
	f := newFixture(t)
	mediaID := f.seedMedia("acct_owner", false)

	result, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL != "https://checkout.test/cs_test_1" {
		t.Errorf("unexpected url %q", result.URL)
	}
	if len(result.ReservationIDs) != 1 {
		t.Fatalf("expected one reservation id, got %v", result.ReservationIDs)
	}

	res, ok := f.store.Reservation(result.ReservationIDs[0])
	if !ok {
		t.Fatal("reservation was not stored")
	}
	if res.Status != model.ReservationPending || res.PaymentStatus != model.PaymentPending {
		t.Errorf("expected pending/pending, got %s/%s", res.Status, res.PaymentStatus)
	}
	if res.PlatformFee != 30000 || res.OwnerAmount != 170000 {
		t.Errorf("expected 30000/170000 split, got %d/%d", res.PlatformFee, res.OwnerAmount)
	}
	if res.FeeSchedule != "single" {
		t.Errorf("expected fee schedule 'single', got %q", res.FeeSchedule)
	}
	if res.PaymentIntentID != "pi_test_1" || res.CheckoutSessionID != "cs_test_1" {
		t.Errorf("payment reference not stored: %+v", res)
	}
	if !res.StartDate.Equal(day("2030-05-01")) || !res.EndDate.Equal(day("2030-05-28")) {
		t.Errorf("unexpected dates %v - %v", res.StartDate, res.EndDate)
	}

	session := f.gateway.Sessions[0]
	if session.Destination != "acct_owner" || session.ApplicationFee != 30000 {
		t.Errorf("expected split to acct_owner with fee 30000, got %q/%d", session.Destination, session.ApplicationFee)
	}
	if session.Total() != 200000 {
		t.Errorf("expected session total 200000, got %d", session.Total())
	}
	if session.Metadata[gateway.MetaReservationID] != res.ID {
		t.Errorf("session metadata missing reservation id: %v", session.Metadata)
	}
	if f.store.LockCount() != 0 {
		t.Errorf("media lock was not released")
	}
}

func TestCheckoutSingle_NoPayoutAccountHoldsFunds(t *testing.T) {
	f := newFixture(t)
	mediaID := f.seedMedia("", false)

	if _, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session := f.gateway.Sessions[0]
	if session.Destination != "" || session.ApplicationFee != 0 {
		t.Errorf("expected no split, got %q/%d", session.Destination, session.ApplicationFee)
	}
	res := f.store.AllReservations()[0]
	if res.TransferDestination != "" {
		t.Errorf("expected empty transfer destination, got %q", res.TransferDestination)
	}
}

func TestCheckoutSingle_ConfirmedOverlapRejected(t *testing.T) {
	f := newFixture(t)
	mediaID := f.seedMedia("acct_owner", false)
	f.store.PutReservation(model.Reservation{
		MediaID:       mediaID,
		StartDate:     day("2030-05-28"),
		EndDate:       day("2030-06-10"),
		Status:        model.ReservationConfirmed,
		PaymentStatus: model.PaymentHeld,
	})

	_, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID))
	assertAppError(t, err, http.StatusConflict, apperrors.ReasonOverlap)

	if f.gateway.SessionCount() != 0 {
		t.Errorf("no session should be opened for overlapping dates")
	}
	if len(f.store.AllReservations()) != 1 {
		t.Errorf("no reservation should be created")
	}
	if f.store.LockCount() != 0 {
		t.Errorf("media lock was not released")
	}
}

func TestCheckoutSingle_PendingReservationsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	mediaID := f.seedMedia("", false)
	f.store.PutReservation(model.Reservation{
		MediaID:       mediaID,
		StartDate:     day("2030-05-01"),
		EndDate:       day("2030-05-28"),
		Status:        model.ReservationPending,
		PaymentStatus: model.PaymentPending,
	})

	if _, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID)); err != nil {
		t.Fatalf("pending reservations must not block checkout: %v", err)
	}
}

func TestCheckoutSingle_ConcurrentCheckoutsShareTheMediaLock(t *testing.T) {
	const n = 8
	f := newFixture(t)
	mediaID := f.seedMedia("acct_owner", false)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	pendingCount := 0
	for _, res := range f.store.AllReservations() {
		if res.MediaID == mediaID && res.Status == model.ReservationPending {
			pendingCount++
		}
	}
	if pendingCount != n {
		t.Errorf("expected %d pending reservations, got %d", n, pendingCount)
	}
	if len(f.gateway.Sessions) != n {
		t.Errorf("expected %d checkout sessions, got %d", n, len(f.gateway.Sessions))
	}
	if f.store.LockCount() != 0 {
		t.Errorf("media lock was not released")
	}
}

func TestCheckoutSingle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture) *validator.SingleCheckoutRequest
		status int
	}{
		{
			name: "unknown media",
			setup: func(f *fixture) *validator.SingleCheckoutRequest {
				return singleRequest("64b7f0c2a1b2c3d4e5f60718")
			},
			status: http.StatusNotFound,
		},
		{
			name: "deleted media",
			setup: func(f *fixture) *validator.SingleCheckoutRequest {
				return singleRequest(f.seedMedia("acct_owner", true))
			},
			status: http.StatusConflict,
		},
		{
			name: "end before start",
			setup: func(f *fixture) *validator.SingleCheckoutRequest {
				req := singleRequest(f.seedMedia("acct_owner", false))
				req.EndDate = "2030-04-01"
				return req
			},
			status: http.StatusBadRequest,
		},
		{
			name: "non-positive total",
			setup: func(f *fixture) *validator.SingleCheckoutRequest {
				req := singleRequest(f.seedMedia("acct_owner", false))
				req.TotalPrice = 0
				return req
			},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CheckoutSingle(context.Background(), tt.setup(f))
			assertAppError(t, err, tt.status, "")
			if f.gateway.SessionCount() != 0 {
				t.Errorf("no session expected")
			}
		})
	}
}

func TestCheckoutSingle_GatewayFailureKeepsPendingReservation(t *testing.T) {
	f := newFixture(t)
	mediaID := f.seedMedia("acct_owner", false)
	f.gateway.CreateCheckoutSessionFunc = func(ctx context.Context, req gateway.CheckoutSessionRequest) (*gateway.CheckoutSession, error) {
		return nil, errors.New("Your account cannot currently make live charges.")
	}

	_, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID))
	assertAppError(t, err, http.StatusInternalServerError, "")
	if !strings.Contains(err.Error(), "live charges") {
		t.Errorf("gateway message should be surfaced, got %v", err)
	}

	all := f.store.AllReservations()
	if len(all) != 1 || all[0].Status != model.ReservationPending {
		t.Errorf("expected the pending reservation to remain, got %+v", all)
	}
}

func TestCheckoutSingle_PaymentReferenceFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	mediaID := f.seedMedia("acct_owner", false)
	f.store.FailOn("reservations.SetPaymentReference", errors.New("write timeout"))

	result, err := f.svc.CheckoutSingle(context.Background(), singleRequest(mediaID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL == "" {
		t.Errorf("expected checkout url")
	}
}

// ────────────────────────────────────────────────
// Tests for CheckoutCampaign()
// ────────────────────────────────────────────────

func (f *fixture) seedCampaign(status model.CampaignStatus) string {
	return f.store.PutCampaign(model.Campaign{UserID: "user-1", Name: "Spring", Status: status})
}

func (f *fixture) seedItem(campaignID, mediaID string, total int64) string {
	return f.store.PutCampaignMedia(model.CampaignMedia{
		CampaignID: campaignID,
		MediaID:    mediaID,
		UserID:     "user-1",
		StartDate:  day("2030-05-01"),
		EndDate:    day("2030-05-14"),
		Quantity:   1,
		PriceType:  "biweek",
		TotalPrice: total,
	})
}

func TestCheckoutCampaign_CreatesReservationsPerItem(t *testing.T) {
	f := newFixture(t)
	campaignID := f.seedCampaign(model.CampaignDraft)
	first := f.seedMedia("acct_first", false)
	second := f.seedMedia("acct_second", false)
	deleted := f.seedMedia("acct_gone", true)
	item1 := f.seedItem(campaignID, first, 100000)
	item2 := f.seedItem(campaignID, second, 50000)
	f.seedItem(campaignID, deleted, 70000)

	result, err := f.svc.CheckoutCampaign(context.Background(), &validator.CampaignCheckoutRequest{
		CampaignID: campaignID,
		UserID:     "user-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ReservationIDs) != 2 {
		t.Fatalf("expected 2 reservations (deleted media skipped), got %d", len(result.ReservationIDs))
	}

	var feeSum int64
	for i, id := range result.ReservationIDs {
		res, ok := f.store.Reservation(id)
		if !ok {
			t.Fatalf("reservation %s missing", id)
		}
		if res.CampaignID != campaignID {
			t.Errorf("reservation %d not linked to campaign", i)
		}
		if res.TransferDestination != "acct_first" {
			t.Errorf("expected first owner's destination, got %q", res.TransferDestination)
		}
		if res.PlatformFee+res.OwnerAmount != res.TotalPrice {
			t.Errorf("split does not add up: %+v", res)
		}
		feeSum += res.PlatformFee
	}
	if feeSum != 15000 {
		t.Errorf("expected item fees to sum to 15000, got %d", feeSum)
	}

	session := f.gateway.Sessions[0]
	if len(session.LineItems) != 2 || session.Total() != 150000 {
		t.Errorf("unexpected line items %+v", session.LineItems)
	}
	if session.ApplicationFee != 15000 || session.Destination != "acct_first" {
		t.Errorf("unexpected split %q/%d", session.Destination, session.ApplicationFee)
	}
	if session.Metadata[gateway.MetaCampaignID] != campaignID {
		t.Errorf("campaign id missing from metadata")
	}
	if session.Metadata[gateway.MetaReservationIDs] != strings.Join(result.ReservationIDs, ",") {
		t.Errorf("unexpected reservation ids metadata %q", session.Metadata[gateway.MetaReservationIDs])
	}
	if session.Metadata[gateway.MetaCampaignMediaIDs] != item1+","+item2 {
		t.Errorf("unexpected campaign media metadata %q", session.Metadata[gateway.MetaCampaignMediaIDs])
	}

	campaign, _ := f.store.Campaign(campaignID)
	if campaign.Status != model.CampaignPendingPayment {
		t.Errorf("expected pending_payment, got %s", campaign.Status)
	}
	if campaign.PaymentIntentID != "pi_test_1" {
		t.Errorf("expected payment intent stored on campaign, got %q", campaign.PaymentIntentID)
	}

	// items stay pending until the payment is confirmed
	if cm, _ := f.store.CampaignMedia(item1); cm.Status != model.CampaignMediaPending {
		t.Errorf("campaign item should still be pending, got %s", cm.Status)
	}
}

func TestCheckoutCampaign_PricesItemsWithoutTotal(t *testing.T) {
	f := newFixture(t)
	campaignID := f.seedCampaign(model.CampaignDraft)
	mediaID := f.seedMedia("", false)
	f.store.PutCampaignMedia(model.CampaignMedia{
		CampaignID: campaignID,
		MediaID:    mediaID,
		StartDate:  day("2030-05-01"),
		EndDate:    day("2030-05-28"),
		Quantity:   2,
		PriceType:  "biweek",
	})

	result, err := f.svc.CheckoutCampaign(context.Background(), &validator.CampaignCheckoutRequest{
		CampaignID: campaignID,
		UserID:     "user-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, _ := f.store.Reservation(result.ReservationIDs[0])
	if res.TotalPrice != 200000 {
		t.Errorf("expected computed total 200000, got %d", res.TotalPrice)
	}
}

func TestCheckoutCampaign_RetryAfterAbandonedSession(t *testing.T) {
	f := newFixture(t)
	campaignID := f.seedCampaign(model.CampaignPendingPayment)
	f.seedItem(campaignID, f.seedMedia("acct_owner", false), 100000)

	if _, err := f.svc.CheckoutCampaign(context.Background(), &validator.CampaignCheckoutRequest{
		CampaignID: campaignID,
		UserID:     "user-1",
	}); err != nil {
		t.Fatalf("a pending_payment campaign must be retryable: %v", err)
	}
}

func TestCheckoutCampaign_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture) *validator.CampaignCheckoutRequest
		status int
		reason string
	}{
		{
			name: "unknown campaign",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				return &validator.CampaignCheckoutRequest{CampaignID: "64b7f0c2a1b2c3d4e5f60718", UserID: "user-1"}
			},
			status: http.StatusNotFound,
		},
		{
			name: "other user's campaign",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				id := f.seedCampaign(model.CampaignDraft)
				return &validator.CampaignCheckoutRequest{CampaignID: id, UserID: "intruder"}
			},
			status: http.StatusForbidden,
		},
		{
			name: "already paid",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				id := f.seedCampaign(model.CampaignPaid)
				return &validator.CampaignCheckoutRequest{CampaignID: id, UserID: "user-1"}
			},
			status: http.StatusConflict,
			reason: apperrors.ReasonAlreadyPaid,
		},
		{
			name: "cancelled",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				id := f.seedCampaign(model.CampaignCancelled)
				return &validator.CampaignCheckoutRequest{CampaignID: id, UserID: "user-1"}
			},
			status: http.StatusConflict,
		},
		{
			name: "no pending items",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				id := f.seedCampaign(model.CampaignDraft)
				return &validator.CampaignCheckoutRequest{CampaignID: id, UserID: "user-1"}
			},
			status: http.StatusBadRequest,
			reason: apperrors.ReasonNoPendingItems,
		},
		{
			name: "every item skipped",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				id := f.seedCampaign(model.CampaignDraft)
				f.seedItem(id, f.seedMedia("acct", true), 100000)
				f.seedItem(id, "64b7f0c2a1b2c3d4e5f60799", 100000)
				return &validator.CampaignCheckoutRequest{CampaignID: id, UserID: "user-1"}
			},
			status: http.StatusBadRequest,
			reason: apperrors.ReasonNoPendingItems,
		},
		{
			name: "item overlaps confirmed booking",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				id := f.seedCampaign(model.CampaignDraft)
				mediaID := f.seedMedia("acct", false)
				f.seedItem(id, mediaID, 100000)
				f.store.PutReservation(model.Reservation{
					MediaID:   mediaID,
					StartDate: day("2030-05-10"),
					EndDate:   day("2030-05-20"),
					Status:    model.ReservationConfirmed,
				})
				return &validator.CampaignCheckoutRequest{CampaignID: id, UserID: "user-1"}
			},
			status: http.StatusConflict,
			reason: apperrors.ReasonOverlap,
		},
		{
			name: "invalid campaign id",
			setup: func(f *fixture) *validator.CampaignCheckoutRequest {
				return &validator.CampaignCheckoutRequest{CampaignID: "nope", UserID: "user-1"}
			},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CheckoutCampaign(context.Background(), tt.setup(f))
			assertAppError(t, err, tt.status, tt.reason)
			if f.gateway.SessionCount() != 0 {
				t.Errorf("no session expected")
			}
		})
	}
}

func TestCheckoutCampaign_PersistFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	campaignID := f.seedCampaign(model.CampaignDraft)
	f.seedItem(campaignID, f.seedMedia("acct", false), 100000)
	f.store.FailOn("campaigns.TransitionStatus", errors.New("write conflict"))

	_, err := f.svc.CheckoutCampaign(context.Background(), &validator.CampaignCheckoutRequest{
		CampaignID: campaignID,
		UserID:     "user-1",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if n := len(f.store.AllReservations()); n != 0 {
		t.Errorf("expected reservations to be rolled back, found %d", n)
	}
	if f.gateway.SessionCount() != 0 {
		t.Errorf("no session expected")
	}
}
