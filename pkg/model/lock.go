package model

import "time"

// Lock is an advisory lock document keyed by the resource it protects.
type Lock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
