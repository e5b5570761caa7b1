package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "adspace/internal/reservations/errors"
	mongotx "adspace/pkg/db/mongo"
	"adspace/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReservationRepository is the interval store. Every state change is a
// conditional single-document update on the expected current status, so a
// transition from a non-adjacent state matches nothing and reports false.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	CreateMany(ctx context.Context, reservations []*model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindConfirmedByMedia(ctx context.Context, mediaID string) ([]*model.Reservation, error)
	FindConfirmedOverlapping(ctx context.Context, mediaID string, start, end time.Time, excludeID string) ([]*model.Reservation, error)
	FindReleasable(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	FindPendingByIDs(ctx context.Context, ids []string) ([]*model.Reservation, error)
	SetPaymentReference(ctx context.Context, ids []string, paymentIntentID, sessionID string) error
	Confirm(ctx context.Context, id, paymentIntentID string) (bool, error)
	Cancel(ctx context.Context, id, reason string) (bool, error)
	MarkReleased(ctx context.Context, id string, outcome model.ReleaseOutcome) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(db *mongo.Database, timeout time.Duration, txManager mongotx.TransactionManager) ReservationRepository {
	return &mongoReservationRepository{
		collection: db.Collection(ReservationCollection),
		timeout:    timeout,
		txManager:  txManager,
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	ts := now()
	reservation.CreatedAt, reservation.UpdatedAt = ts, ts
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	reservation.ID = insertedHex(result.InsertedID)
	return nil
}

func (r *mongoReservationRepository) CreateMany(ctx context.Context, reservations []*model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	ts := now()
	docs := make([]any, len(reservations))
	for i, res := range reservations {
		res.CreatedAt, res.UpdatedAt = ts, ts
		docs[i] = res
	}

	result, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("failed to create reservations: %w", err)
	}
	for i, id := range result.InsertedIDs {
		reservations[i].ID = insertedHex(id)
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var reservation model.Reservation
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&reservation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) FindConfirmedByMedia(ctx context.Context, mediaID string) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{
		"media_id": mediaID,
		"status":   model.ReservationConfirmed,
	}, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

// FindConfirmedOverlapping uses the closed-interval rule: start <= other.end and end >= other.start.
func (r *mongoReservationRepository) FindConfirmedOverlapping(ctx context.Context, mediaID string, start, end time.Time, excludeID string) ([]*model.Reservation, error) {
	filter := bson.M{
		"media_id":   mediaID,
		"status":     model.ReservationConfirmed,
		"start_date": bson.M{"$lte": model.Day(end)},
		"end_date":   bson.M{"$gte": model.Day(start)},
	}
	if excludeID != "" {
		oid, err := objectID(excludeID)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$ne": oid}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

func (r *mongoReservationRepository) FindReleasable(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{
		"status":         model.ReservationConfirmed,
		"payment_status": model.PaymentHeld,
		"end_date":       bson.M{"$lte": now.AddDate(0, 0, -1)},
	}, options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}}).SetLimit(int64(limit)))
}

// FindPendingByIDs ignores ids that are not ObjectIDs; they cannot name a reservation.
func (r *mongoReservationRepository) FindPendingByIDs(ctx context.Context, ids []string) ([]*model.Reservation, error) {
	oids := validObjectIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{
		"_id":    bson.M{"$in": oids},
		"status": model.ReservationPending,
	}, nil)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) SetPaymentReference(ctx context.Context, ids []string, paymentIntentID, sessionID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oids, err := objectIDs(ids)
	if err != nil {
		return err
	}

	set := bson.M{"checkout_session_id": sessionID, "updated_at": now()}
	if paymentIntentID != "" {
		set["payment_intent_id"] = paymentIntentID
	}

	_, err = r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}, "status": model.ReservationPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) Confirm(ctx context.Context, id, paymentIntentID string) (bool, error) {
	ts := now()
	set := bson.M{
		"status":         model.ReservationConfirmed,
		"payment_status": model.PaymentHeld,
		"confirmed_at":   ts,
		"updated_at":     ts,
	}
	if paymentIntentID != "" {
		set["payment_intent_id"] = paymentIntentID
	}
	// a reservation cancelled by a failed attempt is reinstated when a retry on
	// the same session succeeds
	return r.transition(ctx, id, bson.M{
		"payment_status": model.PaymentPending,
		"$or": bson.A{
			bson.M{"status": model.ReservationPending},
			bson.M{"status": model.ReservationCancelled, "cancellation_reason": model.CancelReasonPaymentFailed},
		},
	}, bson.M{"$set": set, "$unset": bson.M{"cancellation_reason": ""}})
}

// Cancel moves a pending reservation to cancelled. A reservation already
// cancelled after a failed payment may be cancelled again for another reason,
// which records why a later successful payment could not reinstate it.
func (r *mongoReservationRepository) Cancel(ctx context.Context, id, reason string) (bool, error) {
	expect := bson.M{"status": model.ReservationPending}
	if reason != model.CancelReasonPaymentFailed {
		expect = bson.M{"$or": bson.A{
			bson.M{"status": model.ReservationPending},
			bson.M{"status": model.ReservationCancelled, "cancellation_reason": model.CancelReasonPaymentFailed},
		}}
	}
	return r.transition(ctx, id, expect, bson.M{"$set": bson.M{
		"status":              model.ReservationCancelled,
		"cancellation_reason": reason,
		"updated_at":          now(),
	}})
}

func (r *mongoReservationRepository) MarkReleased(ctx context.Context, id string, outcome model.ReleaseOutcome) (bool, error) {
	set := bson.M{
		"status":         model.ReservationCompleted,
		"payment_status": model.PaymentReleased,
		"released_at":    outcome.ReleasedAt.UTC(),
		"updated_at":     now(),
	}
	if outcome.TransferID != "" {
		set["transfer_id"] = outcome.TransferID
	}
	if outcome.TransferError != "" {
		set["transfer_error"] = outcome.TransferError
	}
	return r.transition(ctx, id, bson.M{
		"status":         model.ReservationConfirmed,
		"payment_status": model.PaymentHeld,
	}, bson.M{"$set": set})
}

func (r *mongoReservationRepository) transition(ctx context.Context, id string, expect, update bson.M) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	filter := bson.M{"_id": oid}
	for k, v := range expect {
		filter[k] = v
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update reservation: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
