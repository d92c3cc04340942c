package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// defaultSweepBatch caps how many orphaned payments one sweep handles.
const defaultSweepBatch = 100

// Reconciler periodically repairs orders left pending after their payment
// was recorded.
type Reconciler struct {
	payments   repository.PaymentRepository
	settlement *SettlementService
	interval   time.Duration
	batch      int
	logger     *slog.Logger
}

// NewReconciler creates a reconciler that sweeps every interval.
func NewReconciler(payments repository.PaymentRepository, settlement *SettlementService, interval time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		payments:   payments,
		settlement: settlement,
		interval:   interval,
		batch:      defaultSweepBatch,
		logger:     logger,
	}
}

// Run sweeps on every tick until ctx is cancelled. Sweep errors are logged
// and the loop continues.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "reconciler started", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "reconcile sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep reconciles one batch of orphaned payments and returns how many
// orders it examined. A failure on one order does not stop the batch.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	orphans, err := r.payments.ListOrphaned(ctx, r.batch)
	if err != nil {
		return 0, apperrors.AsUpstream(fmt.Errorf("list orphaned payments: %w", err))
	}

	for _, p := range orphans {
		if err := r.settlement.reconcileOrder(ctx, p.OrderID, triggerSweep); err != nil {
			r.logger.WarnContext(ctx, "failed to reconcile order",
				slog.String("order_id", p.OrderID),
				slog.String("payment_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(orphans) > 0 {
		r.logger.InfoContext(ctx, "reconcile sweep finished", slog.Int("orders", len(orphans)))
	}
	return len(orphans), nil
}
