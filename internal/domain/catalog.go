package domain

import "github.com/shopspring/decimal"

// CatalogItem is a product listed by an artisan.
type CatalogItem struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Price   decimal.Decimal `json:"price"`
	OwnerID string          `json:"ownerId"`
	Active  bool            `json:"active"`
}
