package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
)

// SessionService hands out anonymous session identifiers.
type SessionService struct {
	repo   repository.SessionRepository
	logger *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(repo repository.SessionRepository, logger *slog.Logger) *SessionService {
	return &SessionService{repo: repo, logger: logger}
}

// GetOrCreate returns candidate unchanged when it is a known, well-formed
// session, refreshing its expiry. Otherwise it issues a fresh UUIDv4 and
// reports created.
func (s *SessionService) GetOrCreate(ctx context.Context, candidate string) (string, bool, error) {
	if candidate != "" {
		if _, err := uuid.Parse(candidate); err == nil {
			ok, err := s.repo.Refresh(ctx, candidate)
			if err != nil {
				return "", false, apperrors.Upstream(fmt.Errorf("refresh session: %w", err))
			}
			if ok {
				return candidate, false, nil
			}
		}
	}

	id := uuid.NewString()
	if err := s.repo.Create(ctx, id); err != nil {
		return "", false, apperrors.Upstream(fmt.Errorf("create session: %w", err))
	}

	s.logger.DebugContext(ctx, "session created", slog.String("session_id", id))
	return id, true, nil
}
