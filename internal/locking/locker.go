// Package locking provides advisory locks stored alongside the reservations.
// A lock is a document keyed by the protected resource; inserting a second
// document with the same key fails, which serialises checkouts and
// confirmations for one media and releases for one reservation.
package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

func MediaKey(mediaID string) string {
	return "media:" + mediaID
}

func ReleaseKey(reservationID string) string {
	return "release:" + reservationID
}

type Locker interface {
	// Acquire blocks up to the configured wait for key and returns a release
	// func. A lock still held after the wait yields a Conflict AppError.
	Acquire(ctx context.Context, key string) (func(), error)
}

type Config struct {
	TTL  time.Duration
	Wait time.Duration
}

type mongoLocker struct {
	repo repository.LockRepository
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

func NewLocker(repo repository.LockRepository, cfg Config, log *logger.Logger) Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &mongoLocker{repo: repo, cfg: cfg, log: log, now: time.Now}
}

func (l *mongoLocker) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()

	attempt := func() error {
		err := l.tryCreate(ctx, key, owner)
		if err == nil || errors.Is(err, reservationserrors.ErrLockHeld) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = l.cfg.Wait

	var policy backoff.BackOff = b
	if l.cfg.Wait <= 0 {
		policy = &backoff.StopBackOff{}
	}

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, reservationserrors.ErrLockHeld) {
			return nil, apperrors.ConflictWithReason(apperrors.ReasonLocked, "resource is currently being processed, please retry")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.repo.Delete(releaseCtx, key, owner); err != nil {
			l.log.Warn("Failed to release lock", "key", key, "error", err)
		}
	}
	return release, nil
}

// tryCreate inserts the lock, reaping an expired holder once.
func (l *mongoLocker) tryCreate(ctx context.Context, key, owner string) error {
	now := l.now().UTC()
	lock := &model.Lock{ID: key, Owner: owner, ExpiresAt: now.Add(l.cfg.TTL)}

	err := l.repo.Create(ctx, lock)
	if !errors.Is(err, reservationserrors.ErrLockHeld) {
		return err
	}

	reaped, derr := l.repo.DeleteExpired(ctx, key, now)
	if derr != nil {
		return derr
	}
	if !reaped {
		return err
	}
	l.log.Warn("Reaped expired lock", "key", key)
	return l.repo.Create(ctx, lock)
}
