package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"merchpos/internal/domain"
	"merchpos/internal/metrics"
)

type transactionService struct {
	txRepo         domain.TransactionRepository
	eventRepo      domain.EventRepository
	movementRepo   domain.StockMovementRepository
	stock          domain.StockAdjuster
	metrics        *metrics.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewTransactionService(txRepo domain.TransactionRepository, eventRepo domain.EventRepository, movementRepo domain.StockMovementRepository, stock domain.StockAdjuster, m *metrics.Metrics, logger *slog.Logger, timeout time.Duration) domain.TransactionService {
	return &transactionService{
		txRepo:         txRepo,
		eventRepo:      eventRepo,
		movementRepo:   movementRepo,
		stock:          stock,
		metrics:        m,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func validateTransactionInput(in domain.CreateTransactionInput) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrInvalidInput)
	}
	for i, item := range in.Items {
		switch {
		case strings.TrimSpace(item.ProductID) == "":
			return fmt.Errorf("%w: item %d: product id is required", domain.ErrInvalidInput, i)
		case item.Quantity <= 0:
			return fmt.Errorf("%w: item %d: quantity must be positive", domain.ErrInvalidInput, i)
		case item.Price.IsNegative():
			return fmt.Errorf("%w: item %d: price must not be negative", domain.ErrInvalidInput, i)
		}
	}
	if !domain.ValidPaymentMethod(in.PaymentMethod) {
		return fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, in.PaymentMethod)
	}
	if in.Discount.IsNegative() {
		return fmt.Errorf("%w: discount must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// Create records a sale and then decrements stock item by item. The record and the
// stock updates are separate writes: if a stock update or its movement fails after the
// record exists, the recorded transaction is returned with a *domain.PartialTransactionError.
func (s *transactionService) Create(ctx context.Context, in domain.CreateTransactionInput) (*domain.Transaction, error) {
	if err := validateTransactionInput(in); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	units := 0
	for _, item := range in.Items {
		subtotal = subtotal.Add(item.LineTotal())
		units += item.Quantity
	}
	if in.Discount.GreaterThan(subtotal) {
		return nil, fmt.Errorf("%w: discount exceeds subtotal", domain.ErrInvalidInput)
	}

	tx := &domain.Transaction{
		Items:         in.Items,
		Subtotal:      subtotal,
		Discount:      in.Discount,
		Total:         subtotal.Sub(in.Discount),
		PaymentMethod: in.PaymentMethod,
		Cashier:       strings.TrimSpace(in.Cashier),
		CreatedBy:     in.CreatedBy,
		CreatedAt:     time.Now(),
	}
	if in.EventID != "" {
		eventID := in.EventID
		tx.EventID = &eventID
	}

	if err := s.record(ctx, tx); err != nil {
		return nil, err
	}

	for i, item := range tx.Items {
		if err := s.applyItem(ctx, tx, i, item); err != nil {
			s.metrics.PartialTransaction()
			s.logger.ErrorContext(ctx, "transaction stock update incomplete",
				"transaction_id", tx.ID, "item", i, "product_id", item.ProductID, "err", err)
			return tx, &domain.PartialTransactionError{TransactionID: tx.ID, Index: i, Err: err}
		}
	}
	s.metrics.TransactionRecorded(tx.PaymentMethod, units)
	return tx, nil
}

func (s *transactionService) record(ctx context.Context, tx *domain.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if tx.EventID != nil {
		if _, err := s.eventRepo.GetByID(ctx, *tx.EventID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: event %s does not exist", domain.ErrInvalidInput, *tx.EventID)
			}
			return fmt.Errorf("get event: %w", err)
		}
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *transactionService) applyItem(ctx context.Context, tx *domain.Transaction, index int, item domain.TransactionItem) error {
	if tx.EventID != nil {
		if _, err := s.stock.UpdateEventStock(ctx, item.ProductID, *tx.EventID, -item.Quantity); err != nil {
			return fmt.Errorf("update event stock: %w", err)
		}
	} else if _, err := s.stock.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	txID := tx.ID
	m := &domain.StockMovement{
		ProductID:     item.ProductID,
		Type:          domain.MovementSale,
		Qty:           item.Quantity,
		EventID:       tx.EventID,
		TransactionID: &txID,
		CreatedBy:     tx.CreatedBy,
		DedupKey:      fmt.Sprintf("sale:%s:%d", tx.ID, index),
		CreatedAt:     tx.CreatedAt,
	}
	if _, err := s.movementRepo.Append(ctx, m); err != nil {
		return fmt.Errorf("append sale movement: %w", err)
	}
	return nil
}

func (s *transactionService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *transactionService) List(ctx context.Context, filter domain.TransactionFilter, params domain.PaginationParams) ([]*domain.Transaction, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, fmt.Errorf("%w: to precedes from", domain.ErrInvalidInput)
	}
	txs, total, err := s.txRepo.List(ctx, filter, params.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txs, total, nil
}

// Summary aggregates every transaction, or only those of eventID when it is set.
// Transactions of deleted events are still counted under their event id.
func (s *transactionService) Summary(ctx context.Context, eventID string) (*domain.SalesSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	txs, err := s.txRepo.ListAll(ctx, domain.TransactionFilter{EventID: eventID})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return summarize(eventID, txs), nil
}

func summarize(eventID string, txs []*domain.Transaction) *domain.SalesSummary {
	sum := &domain.SalesSummary{
		EventID:         eventID,
		GrossSales:      decimal.Zero,
		Discounts:       decimal.Zero,
		NetSales:        decimal.Zero,
		ByProduct:       []domain.ProductSales{},
		ByPaymentMethod: map[string]int64{},
	}
	byProduct := map[string]*domain.ProductSales{}
	for _, tx := range txs {
		sum.TransactionCount++
		sum.GrossSales = sum.GrossSales.Add(tx.Subtotal)
		sum.Discounts = sum.Discounts.Add(tx.Discount)
		sum.NetSales = sum.NetSales.Add(tx.Total)
		sum.ByPaymentMethod[tx.PaymentMethod]++
		for _, item := range tx.Items {
			sum.ItemsSold += item.Quantity
			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &domain.ProductSales{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				byProduct[item.ProductID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.LineTotal())
		}
	}
	for _, ps := range byProduct {
		sum.ByProduct = append(sum.ByProduct, *ps)
	}
	sort.Slice(sum.ByProduct, func(i, j int) bool {
		a, b := sum.ByProduct[i], sum.ByProduct[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Name < b.Name
	})
	return sum
}
