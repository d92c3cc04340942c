package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// CompletedPaymentConstraint is the partial unique index allowing one
// completed payment per order.
const CompletedPaymentConstraint = "payments_one_completed_per_order"

const paymentColumns = `p.id, p.order_id, p.buyer_id, p.amount, p.method, p.status, p.provider_ref, p.failure_reason, p.processed_at`

// PaymentRepository implements repository.PaymentRepository using PostgreSQL.
type PaymentRepository struct {
	pool database.DBTX
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(pool database.DBTX) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts a payment. A second completed payment for the same order
// violates the partial unique index and is returned as a Conflict.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) (err error) {
	query := `
		INSERT INTO payments (id, order_id, buyer_id, amount, method, status, provider_ref, failure_reason, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	ctx, end := database.TraceQuery(ctx, "CreatePayment", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		p.ID, p.OrderID, p.BuyerID, p.Amount, p.Method, p.Status,
		nullableString(p.ProviderRef), nullableString(p.FailureReason), p.ProcessedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, CompletedPaymentConstraint) {
			return apperrors.Conflict(fmt.Sprintf("order %s is already settled", p.OrderID))
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetCompletedByOrder returns the completed payment for orderID.
func (r *PaymentRepository) GetCompletedByOrder(ctx context.Context, orderID string) (_ *domain.Payment, err error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.order_id = $1 AND p.status = $2`
	ctx, end := database.TraceQuery(ctx, "GetCompletedPayment", query)
	defer func() { end(err) }()

	p, err := scanPayment(r.pool.QueryRow(ctx, query, orderID, domain.PaymentStatusCompleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("completed payment for order", orderID)
		}
		return nil, err
	}
	return p, nil
}

// ListOrphaned returns completed payments whose order is still pending,
// oldest first.
func (r *PaymentRepository) ListOrphaned(ctx context.Context, limit int) (_ []domain.Payment, err error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.status = $1 AND o.status = $2
		ORDER BY p.processed_at
		LIMIT $3`
	ctx, end := database.TraceQuery(ctx, "ListOrphanedPayments", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, domain.PaymentStatusCompleted, domain.OrderStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list orphaned payments: %w", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p             domain.Payment
		providerRef   *string
		failureReason *string
	)
	if err := row.Scan(
		&p.ID, &p.OrderID, &p.BuyerID, &p.Amount, &p.Method, &p.Status,
		&providerRef, &failureReason, &p.ProcessedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.ProviderRef = derefString(providerRef)
	p.FailureReason = derefString(failureReason)
	return &p, nil
}
