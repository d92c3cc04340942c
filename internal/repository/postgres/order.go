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

const orderColumns = `o.id, o.buyer_id, o.shipping_info, o.total, o.status, o.payment_id, o.created_at, o.updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order, its items and one order_sellers row per distinct
// seller inside a single transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", "INSERT INTO orders")
	defer func() { end(err) }()

	shippingJSON, err := json.Marshal(o.ShippingInfo)
	if err != nil {
		return fmt.Errorf("marshal shipping info: %w", err)
	}

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, buyer_id, shipping_info, total, status, payment_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, o.BuyerID, shippingJSON, o.Total, o.Status,
			nullableString(o.PaymentID), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range o.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, item_id, title, seller_id, quantity, unit_price, subtotal)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				item.ID, item.OrderID, item.ItemID, item.Title, item.SellerID,
				item.Quantity, item.UnitPrice, item.Subtotal,
			)
			if err != nil {
				return fmt.Errorf("insert order item %s: %w", item.ItemID, err)
			}
		}

		for _, sellerID := range o.SellerIDs() {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_sellers (order_id, seller_id, created_at)
				VALUES ($1, $2, $3)`,
				o.ID, sellerID, o.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert order seller %s: %w", sellerID, err)
			}
		}

		return nil
	})
}

// GetByID retrieves an order and its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	ctx, end := database.TraceQuery(ctx, "GetOrder", query)
	defer func() { end(err) }()

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, err
	}

	orders := []domain.Order{*o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, offset, limit int) (_ []domain.Order, _ int, err error) {
	query := `
		SELECT ` + orderColumns + `, count(*) OVER() AS total_count
		FROM orders o
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3`
	ctx, end := database.TraceQuery(ctx, "ListOrdersByBuyer", query)
	defer func() { end(err) }()

	return r.list(ctx, query, buyerID, limit, offset)
}

// ListBySeller returns orders containing at least one of the seller's items,
// newest first, using the order_sellers index.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string, offset, limit int) (_ []domain.Order, _ int, err error) {
	query := `
		SELECT ` + orderColumns + `, count(*) OVER() AS total_count
		FROM order_sellers s
		JOIN orders o ON o.id = s.order_id
		WHERE s.seller_id = $1
		ORDER BY s.created_at DESC
		LIMIT $2 OFFSET $3`
	ctx, end := database.TraceQuery(ctx, "ListOrdersBySeller", query)
	defer func() { end(err) }()

	return r.list(ctx, query, sellerID, limit, offset)
}

// MarkPaid moves a pending order to paid. It reports false when the order
// does not exist or is no longer pending.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, paymentID string) (_ bool, err error) {
	query := `
		UPDATE orders
		SET status = $2, payment_id = $3, updated_at = $4
		WHERE id = $1 AND status = $5`
	ctx, end := database.TraceQuery(ctx, "MarkOrderPaid", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query,
		orderID, domain.OrderStatusPaid, paymentID, time.Now().UTC(), domain.OrderStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) list(ctx context.Context, query, ownerID string, limit, offset int) ([]domain.Order, int, error) {
	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		total  int
	)
	for rows.Next() {
		var (
			o            domain.Order
			shippingJSON []byte
			paymentID    *string
		)
		if err := rows.Scan(
			&o.ID, &o.BuyerID, &shippingJSON, &o.Total, &o.Status, &paymentID,
			&o.CreatedAt, &o.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		if err := finishOrder(&o, shippingJSON, paymentID); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(orders) == 0 {
		return []domain.Order{}, total, nil
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachItems loads the items of every order in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []domain.OrderItem{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, item_id, title, seller_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ItemID, &it.Title, &it.SellerID,
			&it.Quantity, &it.UnitPrice, &it.Subtotal,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o            domain.Order
		shippingJSON []byte
		paymentID    *string
	)
	if err := row.Scan(
		&o.ID, &o.BuyerID, &shippingJSON, &o.Total, &o.Status, &paymentID,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := finishOrder(&o, shippingJSON, paymentID); err != nil {
		return nil, err
	}
	return &o, nil
}

func finishOrder(o *domain.Order, shippingJSON []byte, paymentID *string) error {
	if len(shippingJSON) > 0 {
		if err := json.Unmarshal(shippingJSON, &o.ShippingInfo); err != nil {
			return fmt.Errorf("unmarshal shipping info: %w", err)
		}
	}
	o.PaymentID = derefString(paymentID)
	return nil
}
