package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// CheckoutRepository implements repository.CheckoutRepository using PostgreSQL.
type CheckoutRepository struct {
	pool database.DBTX
}

// NewCheckoutRepository creates a new PostgreSQL-backed checkout repository.
func NewCheckoutRepository(pool database.DBTX) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

// Create inserts a new checkout session.
func (r *CheckoutRepository) Create(ctx context.Context, s *domain.CheckoutSession) (err error) {
	query := `
		INSERT INTO checkout_sessions (
			id, buyer_id, session_id, status, shipping_info,
			order_id, payment_id, failure_reason,
			created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	ctx, end := database.TraceQuery(ctx, "CreateCheckoutSession", query)
	defer func() { end(err) }()

	shippingJSON, err := marshalShipping(s.ShippingInfo)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.BuyerID, s.SessionID, s.Status, shippingJSON,
		nullableString(s.OrderID), nullableString(s.PaymentID), nullableString(s.FailureReason),
		s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

// GetByID retrieves a checkout session by its ID.
func (r *CheckoutRepository) GetByID(ctx context.Context, id string) (_ *domain.CheckoutSession, err error) {
	query := `
		SELECT id, buyer_id, session_id, status, shipping_info,
			order_id, payment_id, failure_reason,
			created_at, updated_at, completed_at
		FROM checkout_sessions
		WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetCheckoutSession", query)
	defer func() { end(err) }()

	var (
		s             domain.CheckoutSession
		shippingJSON  []byte
		orderID       *string
		paymentID     *string
		failureReason *string
		completedAt   *time.Time
	)
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.BuyerID, &s.SessionID, &s.Status, &shippingJSON,
		&orderID, &paymentID, &failureReason,
		&s.CreatedAt, &s.UpdatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout session", id)
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}

	if len(shippingJSON) > 0 && string(shippingJSON) != "null" {
		var info domain.ShippingInfo
		if err := json.Unmarshal(shippingJSON, &info); err != nil {
			return nil, fmt.Errorf("unmarshal shipping info: %w", err)
		}
		s.ShippingInfo = &info
	}
	s.OrderID = derefString(orderID)
	s.PaymentID = derefString(paymentID)
	s.FailureReason = derefString(failureReason)
	s.CompletedAt = completedAt

	return &s, nil
}

// UpdateIfStatus writes every mutable field of s, but only while the stored
// status is one of from. It reports false when no row matched.
func (r *CheckoutRepository) UpdateIfStatus(ctx context.Context, s *domain.CheckoutSession, from []string) (_ bool, err error) {
	query := `
		UPDATE checkout_sessions
		SET status = $2, shipping_info = $3, order_id = $4, payment_id = $5,
			failure_reason = $6, updated_at = $7, completed_at = $8
		WHERE id = $1 AND status = ANY($9)`
	ctx, end := database.TraceQuery(ctx, "UpdateCheckoutSession", query)
	defer func() { end(err) }()

	shippingJSON, err := marshalShipping(s.ShippingInfo)
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx, query,
		s.ID, s.Status, shippingJSON,
		nullableString(s.OrderID), nullableString(s.PaymentID), nullableString(s.FailureReason),
		s.UpdatedAt, s.CompletedAt, from,
	)
	if err != nil {
		return false, fmt.Errorf("update checkout session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func marshalShipping(info *domain.ShippingInfo) ([]byte, error) {
	if info == nil {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping info: %w", err)
	}
	return data, nil
}
