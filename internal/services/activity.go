package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"merchpos/internal/domain"
)

type activityService struct {
	repo           domain.ActivityLogRepository
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewActivityService(repo domain.ActivityLogRepository, logger *slog.Logger, timeout time.Duration) domain.ActivityService {
	return &activityService{repo: repo, logger: logger, contextTimeout: timeout}
}

// Record appends an entry. Failures are logged and swallowed.
func (s *activityService) Record(ctx context.Context, userID, action, entityType, entityID, details string) {
	if userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	entry := &domain.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "record activity", "user_id", userID, "action", action, "err", err)
	}
}

func (s *activityService) ListByUser(ctx context.Context, userID string, params domain.PaginationParams) ([]*domain.ActivityLog, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	logs, total, err := s.repo.ListByUser(ctx, userID, params.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	return logs, total, nil
}
