package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	"github.com/ddjsphere/craftsmen-marketplace/internal/repository"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/validator"
)

// SubscribeRequest is the newsletter sign-up payload.
type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// SubscriptionService records newsletter sign-ups.
type SubscriptionService struct {
	repo   repository.SubscriberRepository
	logger *slog.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(repo repository.SubscriberRepository, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, logger: logger}
}

// Subscribe stores the email. Subscribing an existing address succeeds.
func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (*domain.Subscriber, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.ToAppError(validator.Validate(req), "invalid email"); err != nil {
		return nil, err
	}

	sub := &domain.Subscriber{Email: req.Email, CreatedAt: time.Now().UTC()}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, apperrors.AsUpstream(fmt.Errorf("subscribe: %w", err))
	}

	s.logger.InfoContext(ctx, "newsletter subscription recorded")
	return sub, nil
}
