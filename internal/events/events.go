// Package events publishes domain events about reservations and payouts.
package events

import (
	"context"
	"sync"
	"time"

	"adspace/pkg/kafka"
	"adspace/pkg/logger"

	"github.com/google/uuid"
)

type Type string

const (
	ReservationConfirmed Type = "reservation.confirmed"
	ReservationCancelled Type = "reservation.cancelled"
	CampaignPaid         Type = "campaign.paid"
	PaymentReleased      Type = "payment.released"
	ReleaseRequested     Type = "release.requested"
)

const (
	schemaVersion = "1"
	source        = "adspace"
)

type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  Type      `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type ReservationPayload struct {
	ReservationID   string    `json:"reservation_id"`
	MediaID         string    `json:"media_id"`
	UserID          string    `json:"user_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	TotalPrice      int64     `json:"total_price"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	CampaignID      string    `json:"campaign_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

type CampaignPayload struct {
	CampaignID      string   `json:"campaign_id"`
	UserID          string   `json:"user_id,omitempty"`
	PaymentIntentID string   `json:"payment_intent_id,omitempty"`
	ReservationIDs  []string `json:"reservation_ids"`
}

type ReleasePayload struct {
	ReservationID string `json:"reservation_id"`
	OwnerAmount   int64  `json:"owner_amount,omitempty"`
	TransferID    string `json:"transfer_id,omitempty"`
	TransferError string `json:"transfer_error,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// Event is one message keyed by the aggregate it is about.
type Event struct {
	Key     string
	Type    Type
	Payload any
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// MessagePublisher is the part of kafka.Producer used here.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	PublishBatch(ctx context.Context, msgs []kafka.Message) error
}

type kafkaPublisher struct {
	producer MessagePublisher
	log      *logger.Logger
	now      func() time.Time
}

func NewKafkaPublisher(producer MessagePublisher, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: producer, log: log, now: time.Now}
}

func (p *kafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := p.build(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) > 0 {
		p.log.Debug("publishing domain events", "count", len(msgs), "first_type", events[0].Type)
	}

	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return p.producer.Publish(ctx, msgs[0])
	default:
		return p.producer.PublishBatch(ctx, msgs)
	}
}

func (p *kafkaPublisher) build(e Event) (kafka.Message, error) {
	id := uuid.NewString()
	return kafka.NewMessage().
		WithKey(e.Key).
		WithEventID(id).
		WithEventType(string(e.Type)).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithValue(Envelope{
			EventID:    id,
			EventType:  e.Type,
			OccurredAt: p.now().UTC(),
			Payload:    e.Payload,
		}).
		Build()
}

type noopPublisher struct{}

// Noop drops every event. Used when Kafka is disabled.
func Noop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, ...Event) error {
	return nil
}

// Recorder keeps published events in memory. It is safe for concurrent
// publishers; read Events only once they are done.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, events...)
	return nil
}

func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
