package postgres

import (
	"context"
	"database/sql"
	"errors"

	"merchpos/internal/domain"
)

type stockMovementRepository struct {
	DB *sql.DB
}

func NewStockMovementRepository(db *sql.DB) domain.StockMovementRepository {
	return &stockMovementRepository{DB: db}
}

// Append inserts m unless a movement with the same dedup key exists.
func (r *stockMovementRepository) Append(ctx context.Context, m *domain.StockMovement) (bool, error) {
	query := `
		INSERT INTO stock_movements (product_id, type, qty, event_id, transaction_id, note, created_by, dedup_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, m.ProductID, m.Type, m.Qty, m.EventID, m.TransactionID, m.Note, m.CreatedBy, m.DedupKey, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *stockMovementRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.StockMovement, error) {
	query := `
		SELECT id, product_id, type, qty, event_id, transaction_id, note, created_by, dedup_key, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := make([]*domain.StockMovement, 0)
	for rows.Next() {
		m := &domain.StockMovement{}
		var eventNull, txNull sql.NullString
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Qty, &eventNull, &txNull, &m.Note, &m.CreatedBy, &m.DedupKey, &m.CreatedAt); err != nil {
			return nil, err
		}
		if eventNull.Valid {
			m.EventID = &eventNull.String
		}
		if txNull.Valid {
			m.TransactionID = &txNull.String
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
