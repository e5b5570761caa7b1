package repository

import (
	"adspace/pkg/config"
	mongotx "adspace/pkg/db/mongo"
)

// Repositories groups the stores shared by the reservation services.
type Repositories struct {
	Media         MediaRepository
	Companies     CompanyRepository
	Reservations  ReservationRepository
	Campaigns     CampaignRepository
	CampaignMedia CampaignMediaRepository
	Locks         LockRepository
}

func NewMongoRepositories(cfg *config.Config) *Repositories {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	timeout := cfg.MongoOpTimeout
	return &Repositories{
		Media:         NewMongoMediaRepository(db, timeout),
		Companies:     NewMongoCompanyRepository(db, timeout),
		Reservations:  NewMongoReservationRepository(db, timeout, mongotx.NewTransactionManager(cfg.Client.Mongo)),
		Campaigns:     NewMongoCampaignRepository(db, timeout),
		CampaignMedia: NewMongoCampaignMediaRepository(db, timeout),
		Locks:         NewMongoLockRepository(db, timeout),
	}
}
