package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Gateway. Func fields override the default behaviour.
type Fake struct {
	mu sync.Mutex

	CreateCheckoutSessionFunc    func(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	PaymentIntentDestinationFunc func(ctx context.Context, paymentIntentID string) (string, error)
	TransferFunc                 func(ctx context.Context, req TransferRequest) (*Transfer, error)
	ParseEventFunc               func(payload []byte, signature string) (*Event, error)

	Sessions  []CheckoutSessionRequest
	Transfers []TransferRequest
	Lookups   []string
}

func (f *Fake) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	f.mu.Lock()
	f.Sessions = append(f.Sessions, req)
	n := len(f.Sessions)
	f.mu.Unlock()

	if f.CreateCheckoutSessionFunc != nil {
		return f.CreateCheckoutSessionFunc(ctx, req)
	}
	return &CheckoutSession{
		ID:              fmt.Sprintf("cs_test_%d", n),
		URL:             fmt.Sprintf("https://checkout.test/cs_test_%d", n),
		PaymentIntentID: fmt.Sprintf("pi_test_%d", n),
	}, nil
}

func (f *Fake) PaymentIntentDestination(ctx context.Context, paymentIntentID string) (string, error) {
	f.mu.Lock()
	f.Lookups = append(f.Lookups, paymentIntentID)
	f.mu.Unlock()

	if f.PaymentIntentDestinationFunc != nil {
		return f.PaymentIntentDestinationFunc(ctx, paymentIntentID)
	}
	return "", nil
}

func (f *Fake) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	f.mu.Lock()
	f.Transfers = append(f.Transfers, req)
	n := len(f.Transfers)
	f.mu.Unlock()

	if f.TransferFunc != nil {
		return f.TransferFunc(ctx, req)
	}
	return &Transfer{ID: fmt.Sprintf("tr_test_%d", n)}, nil
}

func (f *Fake) ParseEvent(payload []byte, signature string) (*Event, error) {
	if f.ParseEventFunc != nil {
		return f.ParseEventFunc(payload, signature)
	}
	return nil, ErrInvalidSignature
}

func (f *Fake) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sessions)
}

func (f *Fake) TransferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Transfers)
}
