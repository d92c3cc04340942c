package domain

import "time"

// Favorite marks a catalog item saved by a buyer.
type Favorite struct {
	BuyerID   string    `json:"buyerId"`
	ItemID    string    `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is a newsletter sign-up.
type Subscriber struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
