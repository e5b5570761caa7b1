package repository

import (
	"context"
	"fmt"
	"time"

	reservationserrors "adspace/internal/reservations/errors"
	"adspace/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// LockRepository stores advisory locks keyed by the protected resource.
type LockRepository interface {
	// Create returns ErrLockHeld when a lock with the same ID exists.
	Create(ctx context.Context, lock *model.Lock) error
	Delete(ctx context.Context, id, owner string) error
	DeleteExpired(ctx context.Context, id string, now time.Time) (bool, error)
}

type mongoLockRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoLockRepository(db *mongo.Database, timeout time.Duration) LockRepository {
	return &mongoLockRepository{collection: db.Collection(LockCollection), timeout: timeout}
}

func (r *mongoLockRepository) Create(ctx context.Context, lock *model.Lock) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	lock.CreatedAt = now()
	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to create lock: %w", err)
	}
	return nil
}

// Delete only removes the lock if it still belongs to owner.
func (r *mongoLockRepository) Delete(ctx context.Context, id, owner string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "owner": owner}); err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}
	return nil
}

func (r *mongoLockRepository) DeleteExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return false, fmt.Errorf("failed to delete expired lock: %w", err)
	}
	return result.DeletedCount == 1, nil
}
