package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"adspace/pkg/kafka"
	"adspace/pkg/logger"
)

type capture struct {
	single []kafka.Message
	batch  [][]kafka.Message
}

func (c *capture) Publish(_ context.Context, msg kafka.Message) error {
	c.single = append(c.single, msg)
	return nil
}

func (c *capture) PublishBatch(_ context.Context, msgs []kafka.Message) error {
	c.batch = append(c.batch, msgs)
	return nil
}

func TestKafkaPublisher_Envelope(t *testing.T) {
	c := &capture{}
	p := NewKafkaPublisher(c, logger.Discard()).(*kafkaPublisher)
	p.now = func() time.Time { return time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC) }

	err := p.Publish(context.Background(), Event{
		Key:     "res-1",
		Type:    ReservationConfirmed,
		Payload: ReservationPayload{ReservationID: "res-1", MediaID: "m-1"},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(c.single) != 1 {
		t.Fatalf("expected 1 message, got %d", len(c.single))
	}

	msg := c.single[0]
	if msg.Key != "res-1" {
		t.Errorf("key = %q", msg.Key)
	}
	if msg.GetEventType() != string(ReservationConfirmed) {
		t.Errorf("event type header = %q", msg.GetEventType())
	}

	var env struct {
		EventID    string          `json:"event_id"`
		EventType  string          `json:"event_type"`
		OccurredAt time.Time       `json:"occurred_at"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.EventID != msg.GetEventID() {
		t.Errorf("envelope id %q does not match header %q", env.EventID, msg.GetEventID())
	}
	if env.EventType != "reservation.confirmed" {
		t.Errorf("event_type = %q", env.EventType)
	}
	if !env.OccurredAt.Equal(p.now()) {
		t.Errorf("occurred_at = %v", env.OccurredAt)
	}
}

func TestKafkaPublisher_Batches(t *testing.T) {
	c := &capture{}
	p := NewKafkaPublisher(c, logger.Discard())

	err := p.Publish(context.Background(),
		Event{Key: "a", Type: ReleaseRequested, Payload: ReleasePayload{ReservationID: "a"}},
		Event{Key: "b", Type: ReleaseRequested, Payload: ReleasePayload{ReservationID: "b"}},
	)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(c.batch) != 1 || len(c.batch[0]) != 2 {
		t.Fatalf("expected one batch of 2, got %v", c.batch)
	}
	if len(c.single) != 0 {
		t.Errorf("unexpected single publishes")
	}

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("empty Publish() error = %v", err)
	}
}

func TestRecorder_OfType(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(),
		Event{Key: "1", Type: CampaignPaid},
		Event{Key: "2", Type: ReservationConfirmed},
		Event{Key: "3", Type: ReservationConfirmed},
	)
	if got := len(r.OfType(ReservationConfirmed)); got != 2 {
		t.Errorf("OfType() = %d, want 2", got)
	}
}
