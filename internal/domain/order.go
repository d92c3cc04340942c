package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order status constants.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// Order is a durable purchase record. Items and Total are fixed at creation.
type Order struct {
	ID           string          `json:"id"`
	BuyerID      string          `json:"buyerId"`
	Items        []OrderItem     `json:"items"`
	ShippingInfo ShippingInfo    `json:"shippingInfo"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
	PaymentID    string          `json:"paymentId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// OrderItem is the snapshot of one cart line inside an order.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ItemID    string          `json:"itemId"`
	Title     string          `json:"title"`
	SellerID  string          `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ShippingInfo is the delivery contact and address for an order.
type ShippingInfo struct {
	FullName string `json:"fullName" validate:"required,notblank,max=200"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"required,notblank,max=40"`
	Address  string `json:"address" validate:"required,notblank,max=500"`
	City     string `json:"city" validate:"required,notblank,max=100"`
	State    string `json:"state" validate:"required,notblank,max=100"`
	Zip      string `json:"zip" validate:"required,notblank,max=20"`
	Country  string `json:"country" validate:"required,notblank,max=100"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s ShippingInfo) Trimmed() ShippingInfo {
	return ShippingInfo{
		FullName: strings.TrimSpace(s.FullName),
		Email:    strings.TrimSpace(s.Email),
		Phone:    strings.TrimSpace(s.Phone),
		Address:  strings.TrimSpace(s.Address),
		City:     strings.TrimSpace(s.City),
		State:    strings.TrimSpace(s.State),
		Zip:      strings.TrimSpace(s.Zip),
		Country:  strings.TrimSpace(s.Country),
	}
}

// SellerIDs returns the distinct sellers of the order's items in first-seen order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		ids = append(ids, it.SellerID)
	}
	return ids
}

// HasSeller reports whether sellerID sold any item in the order.
func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether requester is the buyer or one of the sellers.
func (o *Order) VisibleTo(requester string) bool {
	return requester != "" && (o.BuyerID == requester || o.HasSeller(requester))
}

// ItemsForSeller returns only the lines sold by sellerID.
func (o *Order) ItemsForSeller(sellerID string) []OrderItem {
	out := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			out = append(out, it)
		}
	}
	return out
}
