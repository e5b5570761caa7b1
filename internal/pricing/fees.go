package pricing

import "fmt"

const bpsDenominator = 10000

// FeeSchedule is a named platform fee in basis points (1500 = 15%).
type FeeSchedule struct {
	Name        string
	BasisPoints int64
}

func NewFeeSchedule(name string, bps int) (FeeSchedule, error) {
	if bps < 0 || bps > bpsDenominator {
		return FeeSchedule{}, fmt.Errorf("fee schedule %s: basis points out of range: %d", name, bps)
	}
	return FeeSchedule{Name: name, BasisPoints: int64(bps)}, nil
}

type Split struct {
	PlatformFee int64
	OwnerAmount int64
}

// Split rounds the fee half-up and derives the owner amount by subtraction so
// PlatformFee + OwnerAmount == total.
func (f FeeSchedule) Split(total int64) Split {
	fee := (total*f.BasisPoints + bpsDenominator/2) / bpsDenominator
	return Split{PlatformFee: fee, OwnerAmount: total - fee}
}

// Allocate spreads an aggregate fee over items in proportion to their totals
// using largest remainders. The returned fees sum to fee and each entry is at
// most its item total when fee does not exceed the sum of totals.
func Allocate(fee int64, totals []int64) []int64 {
	out := make([]int64, len(totals))
	var sum int64
	for _, t := range totals {
		sum += t
	}
	if sum <= 0 || fee <= 0 {
		return out
	}

	rems := make([]int64, len(totals))
	var allocated int64
	for i, t := range totals {
		out[i] = fee * t / sum
		rems[i] = fee * t % sum
		allocated += out[i]
	}

	for left := fee - allocated; left > 0; left-- {
		best := -1
		for i := range rems {
			if rems[i] < 0 {
				continue
			}
			if best == -1 || rems[i] > rems[best] {
				best = i
			}
		}
		if best == -1 {
			break
		}
		out[best]++
		rems[best] = -1
	}
	return out
}

// SplitItems applies the schedule to the aggregate of totals and returns one
// split per item whose fees add up to the aggregate fee.
func (f FeeSchedule) SplitItems(totals []int64) (Split, []Split) {
	var sum int64
	for _, t := range totals {
		sum += t
	}
	agg := f.Split(sum)
	fees := Allocate(agg.PlatformFee, totals)

	items := make([]Split, len(totals))
	for i, t := range totals {
		items[i] = Split{PlatformFee: fees[i], OwnerAmount: t - fees[i]}
	}
	return agg, items
}
