package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"adspace/internal/availability/cache"
	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	apperrors "adspace/pkg/errors"
	"adspace/pkg/logger"
	"adspace/pkg/model"

	"golang.org/x/sync/singleflight"
)

// Hint is the non-blocking answer given to interactive date pickers.
type Hint struct {
	Available bool   `json:"available"`
	Warning   string `json:"warning,omitempty"`
}

type AvailabilityService interface {
	IsAvailable(ctx context.Context, mediaID string, start, end time.Time) (bool, error)
	OccupiedDates(ctx context.Context, mediaID string) ([]time.Time, error)
	NextAvailableStart(ctx context.Context, mediaID string, today time.Time) (time.Time, error)
	Hint(ctx context.Context, mediaID string, start, end time.Time) Hint
	Invalidate(ctx context.Context, mediaIDs ...string)
}

type availabilityService struct {
	reservations repository.ReservationRepository
	cache        cache.OccupiedDatesCache
	log          *logger.Logger
	sfg          singleflight.Group
}

func NewAvailabilityService(reservations repository.ReservationRepository, c cache.OccupiedDatesCache, log *logger.Logger) AvailabilityService {
	if c == nil {
		c = cache.Nop{}
	}
	return &availabilityService{reservations: reservations, cache: c, log: log}
}

// IsAvailable reports whether no confirmed reservation of mediaID shares a day
// with [start,end]. Pending reservations never block.
func (s *availabilityService) IsAvailable(ctx context.Context, mediaID string, start, end time.Time) (bool, error) {
	if err := validateRange(mediaID, start, end); err != nil {
		return false, err
	}

	confirmed, err := s.reservations.FindConfirmedByMedia(ctx, mediaID)
	if err != nil {
		return false, translate(err)
	}
	for _, r := range confirmed {
		if r.Overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}

func (s *availabilityService) OccupiedDates(ctx context.Context, mediaID string) ([]time.Time, error) {
	if mediaID == "" {
		return nil, apperrors.Validation("mediaId is required", nil)
	}

	v, err, _ := s.sfg.Do(mediaID, func() (any, error) {
		days, err := s.cache.Get(ctx, mediaID)
		if err == nil {
			return days, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("occupied dates cache read failed", "media_id", mediaID, "error", err)
		}

		confirmed, err := s.reservations.FindConfirmedByMedia(ctx, mediaID)
		if err != nil {
			return nil, translate(err)
		}
		days = unionDays(confirmed)

		if err := s.cache.Set(ctx, mediaID, days); err != nil {
			s.log.Warn("occupied dates cache write failed", "media_id", mediaID, "error", err)
		}
		return days, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]time.Time), nil
}

// NextAvailableStart is the day after the latest occupied day, never earlier
// than today.
func (s *availabilityService) NextAvailableStart(ctx context.Context, mediaID string, today time.Time) (time.Time, error) {
	days, err := s.OccupiedDates(ctx, mediaID)
	if err != nil {
		return time.Time{}, err
	}
	return nextStart(days, model.Day(today)), nil
}

// Hint degrades data-source failures to "unavailable". Checkout revalidates
// on its own, so this answer never blocks a purchase.
func (s *availabilityService) Hint(ctx context.Context, mediaID string, start, end time.Time) Hint {
	ok, err := s.IsAvailable(ctx, mediaID, start, end)
	if err != nil {
		if appErr := apperrors.AsAppError(err); appErr.StatusCode() < 500 {
			return Hint{Available: false, Warning: appErr.Message}
		}
		s.log.Warn("availability hint degraded", "media_id", mediaID, "error", err)
		return Hint{Available: false, Warning: "availability could not be verified"}
	}
	return Hint{Available: ok}
}

func (s *availabilityService) Invalidate(ctx context.Context, mediaIDs ...string) {
	if err := s.cache.Invalidate(ctx, mediaIDs...); err != nil {
		s.log.Warn("occupied dates cache invalidation failed", "media_ids", mediaIDs, "error", err)
	}
}

func validateRange(mediaID string, start, end time.Time) error {
	if mediaID == "" {
		return apperrors.Validation("mediaId is required", nil)
	}
	if start.IsZero() || end.IsZero() {
		return apperrors.Validation("startDate and endDate are required", nil)
	}
	if model.Day(end).Before(model.Day(start)) {
		return apperrors.Validation("endDate must not be before startDate", map[string]any{
			"startDate": model.FormatDate(start),
			"endDate":   model.FormatDate(end),
		})
	}
	return nil
}

func unionDays(reservations []*model.Reservation) []time.Time {
	seen := make(map[time.Time]struct{})
	days := make([]time.Time, 0)
	for _, r := range reservations {
		model.EachDay(r.StartDate, r.EndDate, func(d time.Time) {
			if _, ok := seen[d]; ok {
				return
			}
			seen[d] = struct{}{}
			days = append(days, d)
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func nextStart(sortedDays []time.Time, today time.Time) time.Time {
	if len(sortedDays) == 0 {
		return today
	}
	next := sortedDays[len(sortedDays)-1].AddDate(0, 0, 1)
	if next.Before(today) {
		return today
	}
	return next
}

func translate(err error) error {
	switch {
	case errors.Is(err, reservationserrors.ErrInvalidID):
		return apperrors.InvalidInput("invalid media id")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("failed to load reservations", err)
	}
}
