package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"merchpos/internal/domain"
	"merchpos/internal/metrics"
)

const reconcileLockKey = "reconcile-stock"

type productService struct {
	productRepo    domain.ProductRepository
	movementRepo   domain.StockMovementRepository
	locker         domain.Locker
	metrics        *metrics.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewProductService creates a ProductService. locker may be nil, in which case
// ReconcileStock runs without cross-process exclusion.
func NewProductService(productRepo domain.ProductRepository, movementRepo domain.StockMovementRepository, locker domain.Locker, m *metrics.Metrics, logger *slog.Logger, timeout time.Duration) domain.ProductService {
	return &productService{
		productRepo:    productRepo,
		movementRepo:   movementRepo,
		locker:         locker,
		metrics:        m,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func validateProduct(p *domain.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case strings.TrimSpace(p.SKU) == "":
		return fmt.Errorf("%w: sku is required", domain.ErrInvalidInput)
	case p.Price.IsNegative() || p.Cost.IsNegative():
		return fmt.Errorf("%w: price and cost must not be negative", domain.ErrInvalidInput)
	case p.Stock < 0 || p.ReorderLevel < 0 || p.MaxStock < 0:
		return fmt.Errorf("%w: stock levels must not be negative", domain.ErrInvalidInput)
	}
	if p.Status != domain.ProductStatusActive && p.Status != domain.ProductStatusArchived {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, p.Status)
	}
	return nil
}

// CreateProduct stores p. SKU uniqueness is not checked here; see FindBySKU.
func (s *productService) CreateProduct(ctx context.Context, p *domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.StockByEvent == nil {
		p.StockByEvent = map[string]int{}
	}
	if err := s.productRepo.Create(ctx, p); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *productService) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.productRepo.GetBySKU(ctx, strings.TrimSpace(sku))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product by sku: %w", err)
	}
	return p, nil
}

func (s *productService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	products, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *productService) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	products, err := s.productRepo.ListLowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return products, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}
	if upd.SKU != nil && strings.TrimSpace(*upd.SKU) == "" {
		return nil, fmt.Errorf("%w: sku must not be empty", domain.ErrInvalidInput)
	}
	if (upd.Price != nil && upd.Price.IsNegative()) || (upd.Cost != nil && upd.Cost.IsNegative()) {
		return nil, fmt.Errorf("%w: price and cost must not be negative", domain.ErrInvalidInput)
	}
	if (upd.ReorderLevel != nil && *upd.ReorderLevel < 0) || (upd.MaxStock != nil && *upd.MaxStock < 0) {
		return nil, fmt.Errorf("%w: stock levels must not be negative", domain.ErrInvalidInput)
	}
	if upd.Status != nil && *upd.Status != domain.ProductStatusActive && *upd.Status != domain.ProductStatusArchived {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *upd.Status)
	}
	p, err := s.productRepo.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes the product and its per-event counters. Transactions and movements referencing it remain.
func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// UpdateEventStock adjusts one per-event counter by delta (clamped at zero) and then
// recomputes the global counter as the sum of all per-event counters. A product with
// no per-event counters yet seeds the first one from its global stock.
func (s *productService) UpdateEventStock(ctx context.Context, productID, eventID string, delta int) (int, error) {
	if productID == "" || eventID == "" {
		return 0, fmt.Errorf("%w: product and event are required", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("get product: %w", err)
	}
	fallback := 0
	if len(p.StockByEvent) == 0 {
		fallback = p.Stock
	}
	eventStock, err := s.productRepo.AdjustEventStock(ctx, productID, eventID, delta, fallback)
	if err != nil {
		return 0, fmt.Errorf("adjust event stock: %w", err)
	}
	if _, err := s.productRepo.SyncStockTotal(ctx, productID); err != nil {
		return 0, fmt.Errorf("sync stock total: %w", err)
	}
	s.metrics.StockAdjusted("event")
	return eventStock, nil
}

// AdjustStock adds delta to the global counter, clamped at zero. Used when no event is attached.
func (s *productService) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	stock, err := s.productRepo.AdjustStock(ctx, productID, delta)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("adjust stock: %w", err)
	}
	s.metrics.StockAdjusted("global")
	return stock, nil
}

// UpdateStock overwrites the global counter. Per-event counters are left untouched.
func (s *productService) UpdateStock(ctx context.Context, productID string, stock int) error {
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.productRepo.SetStock(ctx, productID, stock); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("set stock: %w", err)
	}
	s.metrics.StockAdjusted("set")
	return nil
}

// Restock increases stock and appends a restock movement.
func (s *productService) Restock(ctx context.Context, in domain.RestockInput) (*domain.Product, error) {
	if in.Qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	if in.EventID != "" {
		if _, err := s.UpdateEventStock(ctx, in.ProductID, in.EventID, in.Qty); err != nil {
			return nil, err
		}
	} else if _, err := s.AdjustStock(ctx, in.ProductID, in.Qty); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	m := &domain.StockMovement{
		ProductID: in.ProductID,
		Type:      domain.MovementRestock,
		Qty:       in.Qty,
		Note:      strings.TrimSpace(in.Note),
		CreatedBy: in.CreatedBy,
		DedupKey:  "restock:" + uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if in.EventID != "" {
		eventID := in.EventID
		m.EventID = &eventID
	}
	if _, err := s.movementRepo.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append restock movement: %w", err)
	}
	p, err := s.productRepo.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *productService) ListMovements(ctx context.Context, productID string) ([]*domain.StockMovement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	movements, err := s.movementRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

// ReconcileStock resets the global counter of every drifted product to its per-event sum
// and returns how many products were repaired.
func (s *productService) ReconcileStock(ctx context.Context) (int, error) {
	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, reconcileLockKey)
		if err != nil {
			return 0, err
		}
		defer release()
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ids, err := s.productRepo.ListStockDrift(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stock drift: %w", err)
	}
	repaired := 0
	for _, id := range ids {
		stock, err := s.productRepo.SyncStockTotal(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return repaired, fmt.Errorf("sync stock total of %s: %w", id, err)
		}
		s.logger.InfoContext(ctx, "reconciled product stock", "product_id", id, "stock", stock)
		s.metrics.StockAdjusted("reconcile")
		repaired++
	}
	return repaired, nil
}
