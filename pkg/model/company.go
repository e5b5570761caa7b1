package model

import "time"

type Company struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name            string    `json:"name" bson:"name"`
	PayoutAccountID string    `json:"payout_account_id,omitempty" bson:"payout_account_id,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// CanReceiveTransfers reports whether the owner has a connected payout account.
func (c *Company) CanReceiveTransfers() bool {
	return c != nil && c.PayoutAccountID != ""
}
