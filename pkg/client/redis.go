package client

import (
	"context"
	"time"

	"adspace/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

func ConnectRedis(ctx context.Context, addr, password string, db int, connTimeout time.Duration, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = connTimeout

	op := func() error {
		return rdb.Ping(ctx).Err()
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	log.Info("Successfully connected to Redis", "addr", addr)
	return rdb, nil
}
