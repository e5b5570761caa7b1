package model

import "time"

// Media is a rentable advertising placement. BasePrice is the price of one
// bi-week unit in currency minor units.
type Media struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	CompanyID   string    `json:"company_id" bson:"company_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Latitude    float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	BasePrice   int64     `json:"base_price" bson:"base_price"`
	Deleted     bool      `json:"deleted" bson:"deleted"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

func (m *Media) Bookable() bool {
	return m != nil && !m.Deleted
}
