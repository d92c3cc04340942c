package postgres

import (
	"context"
	"fmt"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/database"
)

// SubscriberRepository implements repository.SubscriberRepository using PostgreSQL.
type SubscriberRepository struct {
	pool database.DBTX
}

// NewSubscriberRepository creates a new PostgreSQL-backed subscriber repository.
func NewSubscriberRepository(pool database.DBTX) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

// Upsert records a sign-up; a repeated email keeps its original timestamp.
func (r *SubscriberRepository) Upsert(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscribers (email, created_at)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`,
		s.Email, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}
