package locking

import (
	"context"
	"errors"
	"testing"
	"time"

	"adspace/internal/reservations/repository/memory"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/logger"
	"adspace/pkg/model"
)

func newTestLocker(store *memory.Store, wait time.Duration) *mongoLocker {
	return NewLocker(store.Repositories().Locks, Config{TTL: time.Minute, Wait: wait}, logger.Discard()).(*mongoLocker)
}

func TestAcquire_ReleaseAllowsReacquire(t *testing.T) {
	store := memory.NewStore()
	l := newTestLocker(store, 0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, MediaKey("m1"))
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if store.LockCount() != 1 {
		t.Fatalf("expected one lock document, got %d", store.LockCount())
	}
	release()
	if store.LockCount() != 0 {
		t.Fatalf("expected lock to be removed on release")
	}

	release, err = l.Acquire(ctx, MediaKey("m1"))
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release()
}

func TestAcquire_HeldLockConflicts(t *testing.T) {
	store := memory.NewStore()
	l := newTestLocker(store, 0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, MediaKey("m1"))
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = l.Acquire(ctx, MediaKey("m1"))
	if !apperrors.HasReason(err, apperrors.ReasonLocked) {
		t.Fatalf("expected locked conflict, got %v", err)
	}
	if apperrors.AsAppError(err).StatusCode() != 409 {
		t.Errorf("expected 409, got %d", apperrors.AsAppError(err).StatusCode())
	}

	other, err := l.Acquire(ctx, MediaKey("m2"))
	if err != nil {
		t.Fatalf("different key should not conflict: %v", err)
	}
	other()
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	store := memory.NewStore()
	l := newTestLocker(store, 2*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, ReleaseKey("r1"))
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(ctx, ReleaseKey("r1"))
	if err != nil {
		t.Fatalf("expected second acquire to succeed after release, got %v", err)
	}
	second()
}

func TestAcquire_ReapsExpiredLock(t *testing.T) {
	store := memory.NewStore()
	l := newTestLocker(store, 0)
	ctx := context.Background()

	stale := &model.Lock{ID: MediaKey("m1"), Owner: "crashed", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := store.Repositories().Locks.Create(ctx, stale); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}

	release, err := l.Acquire(ctx, MediaKey("m1"))
	if err != nil {
		t.Fatalf("expected expired lock to be reaped, got %v", err)
	}
	release()
}

func TestAcquire_StoreErrorIsNotConflict(t *testing.T) {
	store := memory.NewStore()
	store.FailOn("locks.Create", errors.New("connection reset"))
	l := newTestLocker(store, time.Second)

	_, err := l.Acquire(context.Background(), MediaKey("m1"))
	if err == nil {
		t.Fatal("expected error")
	}
	if apperrors.IsAppError(err) {
		t.Errorf("store failure should not be reported as an AppError conflict: %v", err)
	}
	if store.Calls("locks.Create") != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", store.Calls("locks.Create"))
	}
}
