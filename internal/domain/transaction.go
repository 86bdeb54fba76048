package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods accepted at the register.
const (
	PaymentCash  = "cash"
	PaymentGCash = "gcash"
	PaymentCard  = "card"
	PaymentOther = "other"
)

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentGCash, PaymentCard, PaymentOther:
		return true
	}
	return false
}

// TransactionItem is one cart line. Name, price and SKU are snapshots taken at sale time.
type TransactionItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns price × quantity.
func (i TransactionItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Transaction is a recorded sale. It is never mutated or voided after creation.
// swagger:model Transaction
type Transaction struct {
	ID            string            `json:"id"`
	EventID       *string           `json:"event_id"`
	Items         []TransactionItem `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Discount      decimal.Decimal   `json:"discount"`
	Total         decimal.Decimal   `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	Cashier       string            `json:"cashier"`
	CreatedBy     string            `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CreateTransactionInput is the checkout request handed to TransactionService.Create.
type CreateTransactionInput struct {
	EventID       string
	Items         []TransactionItem
	Discount      decimal.Decimal
	PaymentMethod string
	Cashier       string
	CreatedBy     string
}

// TransactionFilter narrows transaction listings. Zero values are ignored.
type TransactionFilter struct {
	EventID string
	Cashier string
	From    *time.Time
	To      *time.Time
}

// SalesSummary aggregates transactions, optionally scoped to one event.
type SalesSummary struct {
	EventID          string           `json:"event_id,omitempty"`
	TransactionCount int              `json:"transaction_count"`
	ItemsSold        int              `json:"items_sold"`
	GrossSales       decimal.Decimal  `json:"gross_sales"`
	Discounts        decimal.Decimal  `json:"discounts"`
	NetSales         decimal.Decimal  `json:"net_sales"`
	ByProduct        []ProductSales   `json:"by_product"`
	ByPaymentMethod  map[string]int64 `json:"by_payment_method"`
}

// ProductSales is the per-product line of a SalesSummary.
type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// TransactionRepository defines the interface for transaction storage.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, filter TransactionFilter, params PaginationParams) ([]*Transaction, int, error)
	ListAll(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
}

// TransactionService defines the business logic for recording and reading sales.
type TransactionService interface {
	Create(ctx context.Context, in CreateTransactionInput) (*Transaction, error)
	Get(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, filter TransactionFilter, params PaginationParams) ([]*Transaction, int, error)
	Summary(ctx context.Context, eventID string) (*SalesSummary, error)
}
