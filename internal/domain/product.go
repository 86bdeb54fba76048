package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product status values.
const (
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"
)

// Stock level labels derived from a product's counters.
const (
	StockLevelInStock    = "in_stock"
	StockLevelLowStock   = "low_stock"
	StockLevelOutOfStock = "out_of_stock"
)

// Product is a merchandise item. Stock is the global counter; StockByEvent holds
// per-event sub-counts. When StockByEvent is non-empty, Stock is expected to equal
// the sum of its values.
// swagger:model Product
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	Stock        int             `json:"stock"`
	StockByEvent map[string]int  `json:"stock_by_event"`
	ReorderLevel int             `json:"reorder_level"`
	MaxStock     int             `json:"max_stock"`
	Status       string          `json:"status"`
	ImageURL     string          `json:"image_url"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StockLevel reports whether the product is out of stock, at or below its reorder level, or in stock.
func (p *Product) StockLevel() string {
	switch {
	case p.Stock <= 0:
		return StockLevelOutOfStock
	case p.Stock <= p.ReorderLevel:
		return StockLevelLowStock
	default:
		return StockLevelInStock
	}
}

// EventStockSum returns the sum of all per-event counts.
func (p *Product) EventStockSum() int {
	total := 0
	for _, n := range p.StockByEvent {
		total += n
	}
	return total
}

// ProductUpdate carries a partial update. Nil fields are left unchanged.
type ProductUpdate struct {
	Name         *string
	SKU          *string
	Category     *string
	Description  *string
	Price        *decimal.Decimal
	Cost         *decimal.Decimal
	ReorderLevel *int
	MaxStock     *int
	Status       *string
	ImageURL     *string
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category string
	Status   string
	Search   string
}

// RestockInput describes an explicit stock increase.
type RestockInput struct {
	ProductID string
	EventID   string
	Qty       int
	Note      string
	CreatedBy string
}

// ProductRepository defines the interface for product storage.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*Product, error)
	ListLowStock(ctx context.Context) ([]*Product, error)
	Update(ctx context.Context, id string, upd ProductUpdate) (*Product, error)
	Delete(ctx context.Context, id string) error
	// SetStock overwrites the global counter.
	SetStock(ctx context.Context, id string, stock int) error
	// AdjustStock adds delta to the global counter, clamping at zero, and returns the new value.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
	// AdjustEventStock adds delta to the per-event counter, clamping at zero. A missing
	// counter starts from fallback. Returns the new per-event value.
	AdjustEventStock(ctx context.Context, id, eventID string, delta, fallback int) (int, error)
	// SyncStockTotal sets the global counter to the sum of the per-event counters and returns it.
	SyncStockTotal(ctx context.Context, id string) (int, error)
	// ListStockDrift returns ids of products whose global counter differs from their per-event sum.
	ListStockDrift(ctx context.Context) ([]string, error)
}

// StockAdjuster is the subset of product operations used when recording sales.
type StockAdjuster interface {
	UpdateEventStock(ctx context.Context, productID, eventID string, delta int) (int, error)
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
}

// ProductService defines the business logic for products and stock.
type ProductService interface {
	StockAdjuster
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error)
	ListLowStock(ctx context.Context) ([]*Product, error)
	UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UpdateStock(ctx context.Context, productID string, stock int) error
	Restock(ctx context.Context, in RestockInput) (*Product, error)
	ListMovements(ctx context.Context, productID string) ([]*StockMovement, error)
	ReconcileStock(ctx context.Context) (int, error)
}
