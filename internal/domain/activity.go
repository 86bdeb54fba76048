package domain

import (
	"context"
	"time"
)

// Activity actions recorded in the per-user log.
const (
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionApproveRole    = "approve_role"
	ActionRejectRole     = "reject_role"
	ActionDeleteUser     = "delete_user"
	ActionCreateProduct  = "create_product"
	ActionUpdateProduct  = "update_product"
	ActionDeleteProduct  = "delete_product"
	ActionRestock        = "restock"
	ActionSetStock       = "set_stock"
	ActionCreateEvent    = "create_event"
	ActionUpdateEvent    = "update_event"
	ActionDeleteEvent    = "delete_event"
	ActionRecordSale     = "record_sale"
	ActionUploadImage    = "upload_image"
	ActionReconcileStock = "reconcile_stock"
)

// ActivityLog is an append-only audit entry owned by one user.
type ActivityLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityLogRepository defines the interface for activity log storage.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *ActivityLog) error
	ListByUser(ctx context.Context, userID string, params PaginationParams) ([]*ActivityLog, int, error)
}

// ActivityService records and lists audit entries. Record never fails the caller.
type ActivityService interface {
	Record(ctx context.Context, userID, action, entityType, entityID, details string)
	ListByUser(ctx context.Context, userID string, params PaginationParams) ([]*ActivityLog, int, error)
}
