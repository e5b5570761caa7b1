package pricing

import "testing"

func TestSplit_Scenario(t *testing.T) {
	single := FeeSchedule{Name: "single", BasisPoints: 1500}

	s := single.Split(200000)
	if s.PlatformFee != 30000 || s.OwnerAmount != 170000 {
		t.Errorf("expected 30000/170000, got %d/%d", s.PlatformFee, s.OwnerAmount)
	}
}

func TestSplit_RoundHalfUp(t *testing.T) {
	tests := []struct {
		total int64
		bps   int64
		fee   int64
	}{
		{10, 1500, 2},  // 1.5 -> 2
		{30, 1500, 5},  // 4.5 -> 5
		{29, 1500, 4},  // 4.35 -> 4
		{50, 700, 4},   // 3.5 -> 4
		{49, 700, 3},   // 3.43 -> 3
		{1, 1500, 0},   // 0.15 -> 0
		{0, 1500, 0},
		{999, 10000, 999},
	}

	for _, tt := range tests {
		s := FeeSchedule{BasisPoints: tt.bps}.Split(tt.total)
		if s.PlatformFee != tt.fee {
			t.Errorf("Split(%d @ %d bps) fee = %d, want %d", tt.total, tt.bps, s.PlatformFee, tt.fee)
		}
	}
}

func TestSplit_Conservation(t *testing.T) {
	for _, bps := range []int64{0, 1, 700, 1500, 3333, 9999, 10000} {
		f := FeeSchedule{BasisPoints: bps}
		for total := int64(0); total < 5000; total += 7 {
			s := f.Split(total)
			if s.PlatformFee+s.OwnerAmount != total {
				t.Fatalf("bps=%d total=%d: %d + %d != total", bps, total, s.PlatformFee, s.OwnerAmount)
			}
			if s.PlatformFee < 0 || s.OwnerAmount < 0 {
				t.Fatalf("bps=%d total=%d: negative split %+v", bps, total, s)
			}
		}
	}
}

func TestNewFeeSchedule(t *testing.T) {
	if _, err := NewFeeSchedule("x", 10001); err == nil {
		t.Error("expected error for > 100%")
	}
	if _, err := NewFeeSchedule("x", -1); err == nil {
		t.Error("expected error for negative bps")
	}
	f, err := NewFeeSchedule("campaign", 700)
	if err != nil || f.BasisPoints != 700 || f.Name != "campaign" {
		t.Errorf("unexpected schedule %+v, %v", f, err)
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name   string
		fee    int64
		totals []int64
		want   []int64
	}{
		{"even", 300, []int64{1000, 1000, 1000}, []int64{100, 100, 100}},
		{"remainder to largest fraction", 10, []int64{1, 1, 1}, []int64{4, 3, 3}},
		{"proportional", 70, []int64{500, 300, 200}, []int64{35, 21, 14}},
		{"zero fee", 0, []int64{5, 5}, []int64{0, 0}},
		{"empty", 10, nil, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(tt.fee, tt.totals)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Allocate() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestSplitItems_Conservation(t *testing.T) {
	campaign := FeeSchedule{Name: "campaign", BasisPoints: 700}
	totals := []int64{133, 2999, 1, 45000, 777}

	agg, items := campaign.SplitItems(totals)

	var feeSum, sum int64
	for i, it := range items {
		if it.PlatformFee+it.OwnerAmount != totals[i] {
			t.Errorf("item %d: %d + %d != %d", i, it.PlatformFee, it.OwnerAmount, totals[i])
		}
		if it.PlatformFee > totals[i] {
			t.Errorf("item %d: fee larger than total", i)
		}
		feeSum += it.PlatformFee
		sum += totals[i]
	}
	if feeSum != agg.PlatformFee {
		t.Errorf("item fees %d do not add up to aggregate fee %d", feeSum, agg.PlatformFee)
	}
	if agg.PlatformFee+agg.OwnerAmount != sum {
		t.Errorf("aggregate split does not conserve total")
	}
}
