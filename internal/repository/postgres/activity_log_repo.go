package postgres

import (
	"context"
	"database/sql"

	"merchpos/internal/domain"
)

type activityLogRepository struct {
	DB *sql.DB
}

func NewActivityLogRepository(db *sql.DB) domain.ActivityLogRepository {
	return &activityLogRepository{DB: db}
}

func (r *activityLogRepository) Create(ctx context.Context, a *domain.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, a.UserID, a.Action, a.EntityType, a.EntityID, a.Details, a.CreatedAt).Scan(&a.ID)
}

func (r *activityLogRepository) ListByUser(ctx context.Context, userID string, params domain.PaginationParams) ([]*domain.ActivityLog, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `
		SELECT id, user_id, action, entity_type, entity_id, details, created_at
		FROM activity_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, userID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	logs := make([]*domain.ActivityLog, 0)
	for rows.Next() {
		a := &domain.ActivityLog{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.EntityType, &a.EntityID, &a.Details, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		logs = append(logs, a)
	}
	return logs, total, rows.Err()
}
