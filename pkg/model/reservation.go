package model

import "time"

// Cancellation reasons recorded on Reservation.CancellationReason.
const (
	CancelReasonOverlap       = "overlap"
	CancelReasonPaymentFailed = "payment_failed"
)

// Reservation is a whole-day, inclusive [StartDate, EndDate] rental of one media.
// TotalPrice always equals PlatformFee + OwnerAmount.
type Reservation struct {
	ID                  string            `json:"id,omitempty" bson:"_id,omitempty"`
	MediaID             string            `json:"media_id" bson:"media_id"`
	UserID              string            `json:"user_id" bson:"user_id"`
	StartDate           time.Time         `json:"start_date" bson:"start_date"`
	EndDate             time.Time         `json:"end_date" bson:"end_date"`
	TotalPrice          int64             `json:"total_price" bson:"total_price"`
	PlatformFee         int64             `json:"platform_fee" bson:"platform_fee"`
	OwnerAmount         int64             `json:"owner_amount" bson:"owner_amount"`
	Status              ReservationStatus `json:"status" bson:"status"`
	PaymentStatus       PaymentStatus     `json:"payment_status" bson:"payment_status"`
	FeeSchedule         string            `json:"fee_schedule" bson:"fee_schedule"`
	TransferDestination string            `json:"transfer_destination,omitempty" bson:"transfer_destination,omitempty"`
	PaymentIntentID     string            `json:"payment_intent_id,omitempty" bson:"payment_intent_id,omitempty"`
	CheckoutSessionID   string            `json:"checkout_session_id,omitempty" bson:"checkout_session_id,omitempty"`
	CampaignID          string            `json:"campaign_id,omitempty" bson:"campaign_id,omitempty"`
	CampaignMediaID     string            `json:"campaign_media_id,omitempty" bson:"campaign_media_id,omitempty"`
	TransferID          string            `json:"transfer_id,omitempty" bson:"transfer_id,omitempty"`
	TransferError       string            `json:"transfer_error,omitempty" bson:"transfer_error,omitempty"`
	CancellationReason  string            `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	CreatedAt           time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" bson:"updated_at"`
	ConfirmedAt         *time.Time        `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	ReleasedAt          *time.Time        `json:"released_at,omitempty" bson:"released_at,omitempty"`
}

// Overlaps applies the closed-interval rule at day granularity.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return Overlaps(r.StartDate, r.EndDate, start, end)
}

func (r *Reservation) IsConfirmed() bool {
	return r.Status == ReservationConfirmed
}

func (r *Reservation) IsReleased() bool {
	return r.PaymentStatus == PaymentReleased
}

// ReleasableFrom is the first instant after the inclusive end date.
func (r *Reservation) ReleasableFrom() time.Time {
	return Day(r.EndDate).AddDate(0, 0, 1)
}

func (r *Reservation) RentalEnded(now time.Time) bool {
	return !now.Before(r.ReleasableFrom())
}

// Reinstatable reports whether a paid checkout may still confirm r: it is
// pending, or it was cancelled only because an earlier payment attempt failed.
func (r *Reservation) Reinstatable() bool {
	if r.PaymentStatus != PaymentPending {
		return false
	}
	return r.Status == ReservationPending ||
		(r.Status == ReservationCancelled && r.CancellationReason == CancelReasonPaymentFailed)
}

// ReleaseOutcome is what the escrow engine records when it closes a reservation.
type ReleaseOutcome struct {
	TransferID    string
	TransferError string
	ReleasedAt    time.Time
}
