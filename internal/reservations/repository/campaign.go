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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CampaignRepository interface {
	FindByID(ctx context.Context, id string) (*model.Campaign, error)
	Create(ctx context.Context, campaign *model.Campaign) error
	// TransitionStatus moves the campaign to `to` only from a status allowed
	// to precede it and reports whether a document changed.
	TransitionStatus(ctx context.Context, id string, to model.CampaignStatus, paymentIntentID string) (bool, error)
}

type mongoCampaignRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoCampaignRepository(db *mongo.Database, timeout time.Duration) CampaignRepository {
	return &mongoCampaignRepository{collection: db.Collection(CampaignCollection), timeout: timeout}
}

func (r *mongoCampaignRepository) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var campaign model.Campaign
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&campaign); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find campaign: %w", err)
	}
	return &campaign, nil
}

func (r *mongoCampaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	ts := now()
	campaign.CreatedAt, campaign.UpdatedAt = ts, ts
	if campaign.Status == "" {
		campaign.Status = model.CampaignDraft
	}
	result, err := r.collection.InsertOne(ctx, campaign)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	campaign.ID = insertedHex(result.InsertedID)
	return nil
}

func (r *mongoCampaignRepository) TransitionStatus(ctx context.Context, id string, to model.CampaignStatus, paymentIntentID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	from := model.CampaignSourcesFor(to)
	if len(from) == 0 {
		return false, nil
	}

	ts := now()
	set := bson.M{"status": to, "updated_at": ts}
	if to == model.CampaignPaid {
		set["paid_at"] = ts
	}
	if paymentIntentID != "" {
		set["payment_intent_id"] = paymentIntentID
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update campaign status: %w", err)
	}
	return result.MatchedCount == 1, nil
}

type CampaignMediaRepository interface {
	Create(ctx context.Context, item *model.CampaignMedia) error
	FindPendingByCampaign(ctx context.Context, campaignID string) ([]*model.CampaignMedia, error)
	MarkReserved(ctx context.Context, id, reservationID string) (bool, error)
}

type mongoCampaignMediaRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoCampaignMediaRepository(db *mongo.Database, timeout time.Duration) CampaignMediaRepository {
	return &mongoCampaignMediaRepository{collection: db.Collection(CampaignMediaCollection), timeout: timeout}
}

func (r *mongoCampaignMediaRepository) Create(ctx context.Context, item *model.CampaignMedia) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	item.CreatedAt = now()
	if item.Status == "" {
		item.Status = model.CampaignMediaPending
	}
	result, err := r.collection.InsertOne(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to create campaign media: %w", err)
	}
	item.ID = insertedHex(result.InsertedID)
	return nil
}

// FindPendingByCampaign returns items in insertion order.
func (r *mongoCampaignMediaRepository) FindPendingByCampaign(ctx context.Context, campaignID string) ([]*model.CampaignMedia, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{
		"campaign_id": campaignID,
		"status":      model.CampaignMediaPending,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign media: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*model.CampaignMedia
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode campaign media: %w", err)
	}
	return items, nil
}

func (r *mongoCampaignMediaRepository) MarkReserved(ctx context.Context, id, reservationID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "status": model.CampaignMediaPending},
		bson.M{"$set": bson.M{"status": model.CampaignMediaReserved, "reservation_id": reservationID}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to reserve campaign media: %w", err)
	}
	return result.ModifiedCount == 1, nil
}
