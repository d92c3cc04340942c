// Package service implements the marketplace's cart, order, payment and
// checkout operations on top of the repository interfaces.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// validateSessionID rejects identifiers that are not UUIDs.
func validateSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return apperrors.Validation("invalid session id", map[string]string{"sessionId": "must be a valid UUID"})
	}
	return nil
}

// logPublishError records a failed best-effort event publish.
func logPublishError(ctx context.Context, logger *slog.Logger, event string, err error) {
	if err == nil {
		return
	}
	logger.WarnContext(ctx, "failed to publish event",
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}
