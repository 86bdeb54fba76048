package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"merchpos/internal/domain"
)

const productColumns = `id, name, sku, category, description, price, cost, stock, reorder_level, max_stock, status, image_url, created_at, updated_at`

type productRepository struct {
	DB *sql.DB
}

func NewProductRepository(db *sql.DB) domain.ProductRepository {
	return &productRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{StockByEvent: map[string]int{}}
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Description, &p.Price, &p.Cost,
		&p.Stock, &p.ReorderLevel, &p.MaxStock, &p.Status, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (name, sku, category, description, price, cost, stock, reorder_level, max_stock, status, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, p.Name, p.SKU, p.Category, p.Description, p.Price, p.Cost,
		p.Stock, p.ReorderLevel, p.MaxStock, p.Status, p.ImageURL, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return err
	}
	if p.StockByEvent == nil {
		p.StockByEvent = map[string]int{}
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.attachEventStock(ctx, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetBySKU returns the first product carrying sku. SKUs are not unique in storage.
func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE LOWER(sku) = LOWER($1) ORDER BY created_at LIMIT 1`
	p, err := scanProduct(r.DB.QueryRowContext(ctx, query, strings.TrimSpace(sku)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.attachEventStock(ctx, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	var where []string
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name`
	return r.queryProducts(ctx, query, args...)
}

func (r *productRepository) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE status = 'active' AND stock <= reorder_level ORDER BY stock, name`
	return r.queryProducts(ctx, query)
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachEventStock(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// attachEventStock fills StockByEvent for the given products with one query.
func (r *productRepository) attachEventStock(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	query := `SELECT product_id, event_id, stock FROM product_event_stock WHERE product_id = ANY($1)`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var productID, eventID string
		var stock int
		if err := rows.Scan(&productID, &eventID, &stock); err != nil {
			return err
		}
		if p, ok := byID[productID]; ok {
			p.StockByEvent[eventID] = stock
		}
	}
	return rows.Err()
}

func (r *productRepository) Update(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.SKU != nil {
		add("sku", *upd.SKU)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.Cost != nil {
		add("cost", *upd.Cost)
	}
	if upd.ReorderLevel != nil {
		add("reorder_level", *upd.ReorderLevel)
	}
	if upd.MaxStock != nil {
		add("max_stock", *upd.MaxStock)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}
	if len(args) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE products SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), len(args), productColumns)
	p, err := scanProduct(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.attachEventStock(ctx, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the product and its per-event counters. Transactions and movements referencing it are kept.
func (r *productRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *productRepository) SetStock(ctx context.Context, id string, stock int) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2`, stock, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	query := `UPDATE products SET stock = GREATEST(stock + $1, 0), updated_at = NOW() WHERE id = $2 RETURNING stock`
	var stock int
	if err := r.DB.QueryRowContext(ctx, query, delta, id).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return stock, nil
}

// AdjustEventStock locks the product row, then upserts the per-event counter.
// Holding the product lock serializes writers on the same product.
func (r *productRepository) AdjustEventStock(ctx context.Context, id, eventID string, delta, fallback int) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockProduct(ctx, tx, id); err != nil {
		return 0, err
	}
	query := `
		INSERT INTO product_event_stock (product_id, event_id, stock)
		VALUES ($1, $2, GREATEST($4::int + $3::int, 0))
		ON CONFLICT (product_id, event_id) DO UPDATE
		SET stock = GREATEST(product_event_stock.stock + $3::int, 0)
		RETURNING stock
	`
	var stock int
	if err := tx.QueryRowContext(ctx, query, id, eventID, delta, fallback).Scan(&stock); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return stock, nil
}

// SyncStockTotal recomputes the global counter under the product row lock, so the
// sum is read after any concurrent per-event write has committed.
func (r *productRepository) SyncStockTotal(ctx context.Context, id string) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockProduct(ctx, tx, id); err != nil {
		return 0, err
	}
	query := `
		UPDATE products
		SET stock = (SELECT COALESCE(SUM(stock), 0) FROM product_event_stock WHERE product_id = $1), updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`
	var stock int
	if err := tx.QueryRowContext(ctx, query, id).Scan(&stock); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return stock, nil
}

func lockProduct(ctx context.Context, tx *sql.Tx, id string) error {
	var locked string
	err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (r *productRepository) ListStockDrift(ctx context.Context) ([]string, error) {
	query := `
		SELECT p.id
		FROM products p
		INNER JOIN (
			SELECT product_id, SUM(stock) AS total
			FROM product_event_stock
			GROUP BY product_id
		) s ON s.product_id = p.id
		WHERE p.stock <> s.total
		ORDER BY p.id
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
