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

type CompanyRepository interface {
	FindByID(ctx context.Context, id string) (*model.Company, error)
	Create(ctx context.Context, company *model.Company) error
}

type mongoCompanyRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoCompanyRepository(db *mongo.Database, timeout time.Duration) CompanyRepository {
	return &mongoCompanyRepository{collection: db.Collection(CompanyCollection), timeout: timeout}
}

func (r *mongoCompanyRepository) FindByID(ctx context.Context, id string) (*model.Company, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var company model.Company
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&company); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return &company, nil
}

func (r *mongoCompanyRepository) Create(ctx context.Context, company *model.Company) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	company.CreatedAt = now()
	result, err := r.collection.InsertOne(ctx, company)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	company.ID = insertedHex(result.InsertedID)
	return nil
}
