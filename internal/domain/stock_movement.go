package domain

import (
	"context"
	"time"
)

// Stock movement types.
const (
	MovementRestock = "restock"
	MovementSale    = "sale"
)

// StockMovement is an append-only ledger entry recording a stock change and its cause.
// DedupKey is unique; appending an entry whose key already exists is a no-op.
type StockMovement struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Type          string    `json:"type"`
	Qty           int       `json:"qty"`
	EventID       *string   `json:"event_id"`
	TransactionID *string   `json:"transaction_id"`
	Note          string    `json:"note"`
	CreatedBy     string    `json:"created_by"`
	DedupKey      string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// StockMovementRepository defines the interface for the movement ledger.
type StockMovementRepository interface {
	// Append stores m and reports whether it was new.
	Append(ctx context.Context, m *StockMovement) (bool, error)
	ListByProduct(ctx context.Context, productID string) ([]*StockMovement, error)
}
