package validator

import (
	"errors"
	"testing"

	"adspace/pkg/logger"
	"adspace/pkg/model"
)

const mediaID = "64b7f0c2a1b2c3d4e5f60718"

func validSingle() *SingleCheckoutRequest {
	return &SingleCheckoutRequest{
		MediaID:    mediaID,
		StartDate:  "2025-01-01",
		EndDate:    "2025-01-28",
		TotalPrice: 200000,
		UserID:     "user-1",
	}
}

func TestValidateSingle(t *testing.T) {
	v := NewCheckoutValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(r *SingleCheckoutRequest)
		wantField string
	}{
		{"valid", func(r *SingleCheckoutRequest) {}, ""},
		{"rfc3339 dates", func(r *SingleCheckoutRequest) {
			r.StartDate = "2025-01-01T03:00:00Z"
			r.EndDate = "2025-01-28T23:59:59Z"
		}, ""},
		{"single day", func(r *SingleCheckoutRequest) { r.EndDate = r.StartDate }, ""},
		{"missing media", func(r *SingleCheckoutRequest) { r.MediaID = "" }, "mediaId"},
		{"bad media id", func(r *SingleCheckoutRequest) { r.MediaID = "billboard-7" }, "mediaId"},
		{"missing user", func(r *SingleCheckoutRequest) { r.UserID = "" }, "userId"},
		{"zero price", func(r *SingleCheckoutRequest) { r.TotalPrice = 0 }, "totalPrice"},
		{"negative price", func(r *SingleCheckoutRequest) { r.TotalPrice = -5 }, "totalPrice"},
		{"bad email", func(r *SingleCheckoutRequest) { r.CustomerEmail = "nope" }, "customerEmail"},
		{"unparsable start", func(r *SingleCheckoutRequest) { r.StartDate = "01/01/2025" }, "startDate"},
		{"end before start", func(r *SingleCheckoutRequest) { r.EndDate = "2024-12-31" }, "endDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSingle()
			tt.mutate(req)

			rng, err := v.ValidateSingle(req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rng.End.Before(rng.Start) {
					t.Errorf("range inverted: %v", rng)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if _, ok := verrs.Fields()[tt.wantField]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestValidateSingle_NormalisesToDays(t *testing.T) {
	v := NewCheckoutValidator(logger.Discard())
	req := validSingle()
	req.StartDate = "2025-01-01T22:30:00Z"

	rng, err := v.ValidateSingle(req)
	if err != nil {
		t.Fatal(err)
	}
	if model.FormatDate(rng.Start) != "2025-01-01" || rng.Start.Hour() != 0 {
		t.Errorf("start not truncated to day: %v", rng.Start)
	}
}

func TestValidateCampaign(t *testing.T) {
	v := NewCheckoutValidator(logger.Discard())

	if err := v.ValidateCampaign(&CampaignCheckoutRequest{CampaignID: mediaID, UserID: "u"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := v.ValidateCampaign(&CampaignCheckoutRequest{})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
}
