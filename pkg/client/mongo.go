package client

import (
	"context"
	"time"

	"adspace/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo dials and pings MongoDB, retrying with exponential backoff until connTimeout elapses.
func ConnectMongo(ctx context.Context, mongoURI string, connTimeout time.Duration, log *logger.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = connTimeout

	attempt := 0
	ping := func() error {
		attempt++
		err := client.Ping(ctx, nil)
		if err != nil {
			log.Warn("MongoDB ping failed", "attempt", attempt, "error", err)
		}
		return err
	}

	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info("Successfully connected to MongoDB", "attempts", attempt)
	return client, nil
}
