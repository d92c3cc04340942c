package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the set of line items held for one anonymous browsing session.
type Cart struct {
	SessionID string         `json:"sessionId"`
	Items     []CartLineItem `json:"items"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// CartLineItem is one catalog item in a cart. Title, seller and unit price
// are copied from the catalog when the line is first added and are never
// refreshed afterwards.
type CartLineItem struct {
	ItemID    string          `json:"itemId"`
	Title     string          `json:"title"`
	SellerID  string          `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	AddedAt   time.Time       `json:"addedAt"`
}

// NewCart returns an empty cart for sessionID.
func NewCart(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Items: []CartLineItem{}}
}

// Subtotal is UnitPrice × Quantity.
func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums every line's subtotal.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindLine returns the index of the line for itemID, or -1.
func (c *Cart) FindLine(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// Snapshot returns a deep copy whose lines are detached from c.
func (c *Cart) Snapshot() *Cart {
	cp := *c
	cp.Items = make([]CartLineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
