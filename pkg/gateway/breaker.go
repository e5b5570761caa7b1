package gateway

import (
	"context"
	"errors"
	"time"

	"adspace/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	MaxFailures int
	Timeout     time.Duration
	CallTimeout time.Duration
}

// ErrCircuitOpen is returned while the provider is considered down.
var ErrCircuitOpen = errors.New("payment gateway temporarily unavailable")

type guardedGateway struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	calls   *prometheus.CounterVec
}

// WithBreaker wraps every outbound call in a circuit breaker and a per-call
// timeout and counts calls by operation and outcome. Webhook parsing is local
// and bypasses the breaker.
func WithBreaker(next Gateway, cfg BreakerConfig, reg prometheus.Registerer, log *logger.Logger) Gateway {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adspace",
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	if reg != nil {
		reg.MustRegister(calls)
	}

	return &guardedGateway{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: cfg.CallTimeout,
		calls:   calls,
	}
}

func (g *guardedGateway) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	res, err := g.cb.Execute(func() (any, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(ctx)
	})

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = ErrCircuitOpen
	case err != nil:
		outcome = "error"
	}
	g.calls.WithLabelValues(op, outcome).Inc()
	return res, err
}

func (g *guardedGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	res, err := g.call(ctx, "create_checkout_session", func(ctx context.Context) (any, error) {
		return g.next.CreateCheckoutSession(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*CheckoutSession), nil
}

func (g *guardedGateway) PaymentIntentDestination(ctx context.Context, paymentIntentID string) (string, error) {
	res, err := g.call(ctx, "payment_intent_destination", func(ctx context.Context) (any, error) {
		return g.next.PaymentIntentDestination(ctx, paymentIntentID)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (g *guardedGateway) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	res, err := g.call(ctx, "transfer", func(ctx context.Context) (any, error) {
		return g.next.Transfer(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Transfer), nil
}

func (g *guardedGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	evt, err := g.next.ParseEvent(payload, signature)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.calls.WithLabelValues("parse_event", outcome).Inc()
	return evt, err
}
