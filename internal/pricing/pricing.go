// Package pricing converts date ranges and tier selections into prices and
// splits totals between the platform and the media owner.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"adspace/pkg/model"
)

type Tier string

const (
	TierBiweek Tier = "biweek"
	TierMonth  Tier = "month"
)

const (
	biweekDays = 14
	// one month is sold as two bi-week units
	monthUnits = 2

	maxQuantity = 120
)

var (
	ErrUnknownTier     = errors.New("unknown pricing tier")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidBase     = errors.New("base price must be positive")
)

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierBiweek, TierMonth:
		return Tier(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

type Quote struct {
	Tier     Tier
	Quantity int
	Start    time.Time
	End      time.Time
	Total    int64
}

// ComputeTotal prices quantity units of tier starting at start. base is the
// price of one bi-week unit in minor units. End is inclusive.
func ComputeTotal(base int64, tier Tier, quantity int, start time.Time) (Quote, error) {
	if base <= 0 {
		return Quote{}, ErrInvalidBase
	}
	if quantity < 1 || quantity > maxQuantity {
		return Quote{}, ErrInvalidQuantity
	}

	start = model.Day(start)
	end, err := EndDate(tier, quantity, start)
	if err != nil {
		return Quote{}, err
	}

	total := int64(quantity) * base
	if tier == TierMonth {
		total *= monthUnits
	}

	return Quote{Tier: tier, Quantity: quantity, Start: start, End: end, Total: total}, nil
}

// EndDate returns the inclusive last day covered by quantity units of tier.
func EndDate(tier Tier, quantity int, start time.Time) (time.Time, error) {
	start = model.Day(start)
	switch tier {
	case TierBiweek:
		return start.AddDate(0, 0, biweekDays*quantity-1), nil
	case TierMonth:
		return addMonthsClamped(start, quantity).AddDate(0, 0, -1), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
}

// MonthPickerQuote prices whole calendar months: the 1st of year/month through
// the last day of the month quantity-1 months later.
func MonthPickerQuote(base int64, year int, month time.Month, quantity int) (Quote, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return ComputeTotal(base, TierMonth, quantity, start)
}

// InferQuantity maps an inclusive [start,end] range back to a unit count. It is
// the left-inverse of ComputeTotal; ranges that are not whole units round down,
// and the result is never below 1.
func InferQuantity(start, end time.Time, tier Tier) int {
	start, end = model.Day(start), model.Day(end)

	q := 1
	switch tier {
	case TierBiweek:
		q = model.DaysInclusive(start, end) / biweekDays
	case TierMonth:
		q = 0
		for n := 1; n <= maxQuantity; n++ {
			if addMonthsClamped(start, n).AddDate(0, 0, -1).After(end) {
				break
			}
			q = n
		}
	}

	return max(q, 1)
}

// addMonthsClamped moves t forward n calendar months, clamping the day of
// month to the length of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(d, last), 0, 0, 0, 0, time.UTC)
}
