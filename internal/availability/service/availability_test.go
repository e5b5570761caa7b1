package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adspace/internal/availability/cache"
	"adspace/internal/reservations/repository/memory"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/logger"
	"adspace/pkg/model"
)

// ────────────────────────────────────────────────
// Fake cache
// ────────────────────────────────────────────────

type fakeCache struct {
	mu          sync.Mutex
	data        map[string][]time.Time
	getErr      error
	sets        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]time.Time{}}
}

func (c *fakeCache) Get(_ context.Context, mediaID string) ([]time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	days, ok := c.data[mediaID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return days, nil
}

func (c *fakeCache) Set(_ context.Context, mediaID string, days []time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[mediaID] = days
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, mediaIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range mediaIDs {
		delete(c.data, id)
	}
	c.invalidated = append(c.invalidated, mediaIDs...)
	return nil
}

func d(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func seed(store *memory.Store, mediaID string, status model.ReservationStatus, start, end string) string {
	return store.PutReservation(model.Reservation{
		MediaID:   mediaID,
		StartDate: d(start),
		EndDate:   d(end),
		Status:    status,
	})
}

func newService(store *memory.Store, c cache.OccupiedDatesCache) AvailabilityService {
	return NewAvailabilityService(store.Repositories().Reservations, c, logger.Discard())
}

// ────────────────────────────────────────────────
// IsAvailable
// ────────────────────────────────────────────────

func TestIsAvailable(t *testing.T) {
	store := memory.NewStore()
	seed(store, "m1", model.ReservationConfirmed, "2025-01-01", "2025-01-14")
	seed(store, "m1", model.ReservationPending, "2025-02-01", "2025-02-14")
	seed(store, "m1", model.ReservationCancelled, "2025-03-01", "2025-03-14")
	seed(store, "m2", model.ReservationConfirmed, "2025-01-15", "2025-01-28")
	svc := newService(store, nil)

	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"overlapping tail", "2025-01-10", "2025-01-20", false},
		{"adjacent after", "2025-01-15", "2025-01-28", true},
		{"shares last day", "2025-01-14", "2025-01-20", false},
		{"shares first day", "2024-12-20", "2025-01-01", false},
		{"contained", "2025-01-05", "2025-01-06", false},
		{"pending does not block", "2025-02-05", "2025-02-06", true},
		{"cancelled does not block", "2025-03-05", "2025-03-06", true},
		{"single day before", "2024-12-31", "2024-12-31", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsAvailable(context.Background(), "m1", d(tt.start), d(tt.end))
			if err != nil {
				t.Fatalf("IsAvailable() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAvailable(%s..%s) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestIsAvailable_InvalidRange(t *testing.T) {
	svc := newService(memory.NewStore(), nil)

	_, err := svc.IsAvailable(context.Background(), "m1", d("2025-01-10"), d("2025-01-09"))
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.IsAvailable(context.Background(), "", d("2025-01-10"), d("2025-01-11"))
	if err == nil {
		t.Fatalf("expected error for empty media id")
	}
}

// ────────────────────────────────────────────────
// OccupiedDates / NextAvailableStart
// ────────────────────────────────────────────────

func TestOccupiedDates_UnionSortedAndCached(t *testing.T) {
	store := memory.NewStore()
	seed(store, "m1", model.ReservationConfirmed, "2025-01-05", "2025-01-06")
	seed(store, "m1", model.ReservationConfirmed, "2025-01-01", "2025-01-02")
	seed(store, "m1", model.ReservationPending, "2025-01-03", "2025-01-04")
	c := newFakeCache()
	svc := newService(store, c)

	days, err := svc.OccupiedDates(context.Background(), "m1")
	if err != nil {
		t.Fatalf("OccupiedDates() error = %v", err)
	}

	want := []string{"2025-01-01", "2025-01-02", "2025-01-05", "2025-01-06"}
	if len(days) != len(want) {
		t.Fatalf("got %d days, want %d", len(days), len(want))
	}
	for i, w := range want {
		if model.FormatDate(days[i]) != w {
			t.Errorf("day[%d] = %s, want %s", i, model.FormatDate(days[i]), w)
		}
	}

	if _, err := svc.OccupiedDates(context.Background(), "m1"); err != nil {
		t.Fatalf("second OccupiedDates() error = %v", err)
	}
	if got := store.Calls("reservations.FindConfirmedByMedia"); got != 1 {
		t.Errorf("expected one store read, got %d", got)
	}
	if c.sets != 1 {
		t.Errorf("expected one cache fill, got %d", c.sets)
	}
}

func TestOccupiedDates_CacheErrorFallsBackToStore(t *testing.T) {
	store := memory.NewStore()
	seed(store, "m1", model.ReservationConfirmed, "2025-01-01", "2025-01-01")
	c := newFakeCache()
	c.getErr = errors.New("redis down")
	svc := newService(store, c)

	days, err := svc.OccupiedDates(context.Background(), "m1")
	if err != nil {
		t.Fatalf("OccupiedDates() error = %v", err)
	}
	if len(days) != 1 {
		t.Errorf("expected 1 day, got %d", len(days))
	}
}

func TestInvalidate(t *testing.T) {
	store := memory.NewStore()
	c := newFakeCache()
	svc := newService(store, c)

	if _, err := svc.OccupiedDates(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}
	seed(store, "m1", model.ReservationConfirmed, "2025-01-01", "2025-01-03")
	svc.Invalidate(context.Background(), "m1")

	days, err := svc.OccupiedDates(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 3 {
		t.Errorf("expected fresh read after invalidation, got %d days", len(days))
	}
}

func TestNextAvailableStart(t *testing.T) {
	tests := []struct {
		name  string
		seed  [][2]string
		today string
		want  string
	}{
		{"no reservations", nil, "2025-01-10", "2025-01-10"},
		{"future occupancy", [][2]string{{"2025-01-01", "2025-01-14"}, {"2025-02-01", "2025-02-14"}}, "2025-01-10", "2025-02-15"},
		{"occupancy in the past", [][2]string{{"2024-01-01", "2024-01-14"}}, "2025-01-10", "2025-01-10"},
		{"ends today", [][2]string{{"2025-01-01", "2025-01-10"}}, "2025-01-10", "2025-01-11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			for _, r := range tt.seed {
				seed(store, "m1", model.ReservationConfirmed, r[0], r[1])
			}
			svc := newService(store, nil)

			got, err := svc.NextAvailableStart(context.Background(), "m1", d(tt.today))
			if err != nil {
				t.Fatalf("NextAvailableStart() error = %v", err)
			}
			if model.FormatDate(got) != tt.want {
				t.Errorf("NextAvailableStart() = %s, want %s", model.FormatDate(got), tt.want)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Hint
// ────────────────────────────────────────────────

func TestHint_DegradesOnStoreError(t *testing.T) {
	store := memory.NewStore()
	store.FailOn("reservations.FindConfirmedByMedia", errors.New("connection refused"))
	svc := newService(store, nil)

	hint := svc.Hint(context.Background(), "m1", d("2025-01-01"), d("2025-01-02"))
	if hint.Available {
		t.Errorf("expected unavailable on store error")
	}
	if hint.Warning == "" {
		t.Errorf("expected a warning")
	}
}

func TestHint_Available(t *testing.T) {
	svc := newService(memory.NewStore(), nil)

	hint := svc.Hint(context.Background(), "m1", d("2025-01-01"), d("2025-01-02"))
	if !hint.Available || hint.Warning != "" {
		t.Errorf("unexpected hint %+v", hint)
	}
}
