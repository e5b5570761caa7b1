package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "adspace/internal/reservations/errors"
	"adspace/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MediaRepository interface {
	FindByID(ctx context.Context, id string) (*model.Media, error)
	Create(ctx context.Context, media *model.Media) error
}

type mongoMediaRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoMediaRepository(db *mongo.Database, timeout time.Duration) MediaRepository {
	return &mongoMediaRepository{collection: db.Collection(MediaCollection), timeout: timeout}
}

func (r *mongoMediaRepository) FindByID(ctx context.Context, id string) (*model.Media, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var media model.Media
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&media); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find media: %w", err)
	}
	return &media, nil
}

func (r *mongoMediaRepository) Create(ctx context.Context, media *model.Media) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	media.CreatedAt = now()
	result, err := r.collection.InsertOne(ctx, media)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	media.ID = insertedHex(result.InsertedID)
	return nil
}
