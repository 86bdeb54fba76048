package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"merchpos/internal/domain"
)

const transactionColumns = `id, event_id, items, subtotal, discount, total, payment_method, cashier, created_by, created_at`

type transactionRepository struct {
	DB *sql.DB
}

func NewTransactionRepository(db *sql.DB) domain.TransactionRepository {
	return &transactionRepository{DB: db}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var eventNull sql.NullString
	var items []byte
	if err := row.Scan(&t.ID, &eventNull, &items, &t.Subtotal, &t.Discount, &t.Total, &t.PaymentMethod, &t.Cashier, &t.CreatedBy, &t.CreatedAt); err != nil {
		return nil, err
	}
	if eventNull.Valid {
		t.EventID = &eventNull.String
	}
	if err := json.Unmarshal(items, &t.Items); err != nil {
		return nil, fmt.Errorf("decode items of transaction %s: %w", t.ID, err)
	}
	return t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	query := `
		INSERT INTO transactions (event_id, items, subtotal, discount, total, payment_method, cashier, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, t.EventID, items, t.Subtotal, t.Discount, t.Total, t.PaymentMethod, t.Cashier, t.CreatedBy, t.CreatedAt).Scan(&t.ID)
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func buildTransactionWhere(filter domain.TransactionFilter) (string, []any) {
	var where []string
	var args []any
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		where = append(where, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.Cashier != "" {
		args = append(args, filter.Cashier)
		where = append(where, fmt.Sprintf("cashier = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter, params domain.PaginationParams) ([]*domain.Transaction, int, error) {
	where, args := buildTransactionWhere(filter)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, n+1, n+2)
	args = append(args, params.PageSize, params.Offset())
	txs, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *transactionRepository) ListAll(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where, args := buildTransactionWhere(filter)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY created_at`
	return r.query(ctx, query, args...)
}

func (r *transactionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
