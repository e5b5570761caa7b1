package model

import "time"

type Campaign struct {
	ID              string         `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          string         `json:"user_id" bson:"user_id"`
	Name            string         `json:"name" bson:"name"`
	Status          CampaignStatus `json:"status" bson:"status"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty" bson:"payment_intent_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at"`
	PaidAt          *time.Time     `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
}

func (c *Campaign) OwnedBy(userID string) bool {
	return c.UserID != "" && c.UserID == userID
}

// CampaignMedia is one media line of a campaign. It is linked to its
// Reservation only when the payment is confirmed.
type CampaignMedia struct {
	ID            string              `json:"id,omitempty" bson:"_id,omitempty"`
	CampaignID    string              `json:"campaign_id" bson:"campaign_id"`
	MediaID       string              `json:"media_id" bson:"media_id"`
	UserID        string              `json:"user_id" bson:"user_id"`
	StartDate     time.Time           `json:"start_date" bson:"start_date"`
	EndDate       time.Time           `json:"end_date" bson:"end_date"`
	Quantity      int                 `json:"quantity" bson:"quantity"`
	PriceType     string              `json:"price_type" bson:"price_type"`
	TotalPrice    int64               `json:"total_price" bson:"total_price"`
	Status        CampaignMediaStatus `json:"status" bson:"status"`
	ReservationID string              `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
}
