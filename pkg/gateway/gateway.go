// Package gateway is the boundary to the card-processing provider: hosted
// checkout sessions, payment intent lookups, payouts to connected accounts and
// signed webhook events.
package gateway

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("payment gateway is not configured")
)

type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventPaymentIntentSucceeded   EventType = "payment_intent.succeeded"
	EventPaymentIntentFailed      EventType = "payment_intent.payment_failed"
)

// Metadata keys shared by checkout and webhook correlation.
const (
	MetaReservationID    = "reservationId"
	MetaReservationIDs   = "reservationIds"
	MetaCampaignID       = "campaignId"
	MetaCampaignMediaIDs = "campaignMediaIds"
	MetaUserID           = "userId"
)

// LineItem amounts are in currency minor units.
type LineItem struct {
	Name        string
	Description string
	Amount      int64
	Quantity    int64
}

// CheckoutSessionRequest describes one hosted payment page. When Destination is
// set the provider splits the charge on capture: ApplicationFee stays with the
// platform and the rest goes to Destination.
type CheckoutSessionRequest struct {
	LineItems      []LineItem
	Currency       string
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	Metadata       map[string]string
	ApplicationFee int64
	Destination    string
}

func (r CheckoutSessionRequest) Total() int64 {
	var total int64
	for _, li := range r.LineItems {
		total += li.Amount * max(li.Quantity, 1)
	}
	return total
}

type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
}

type TransferRequest struct {
	Amount         int64
	Currency       string
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID string
}

// Event is a verified webhook event reduced to what the engine correlates on.
type Event struct {
	ID              string
	Type            EventType
	ObjectID        string
	PaymentIntentID string
	Metadata        map[string]string
	FailureMessage  string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// PaymentIntentDestination returns the connected account the charge was
	// split to at capture time, or "" when no automatic transfer was set.
	PaymentIntentDestination(ctx context.Context, paymentIntentID string) (string, error)
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	// ParseEvent verifies signature over the raw payload before decoding.
	ParseEvent(payload []byte, signature string) (*Event, error)
}
