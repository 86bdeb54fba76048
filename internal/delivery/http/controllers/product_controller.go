package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

// CreateProductRequest is the request body for POST /api/products.
type CreateProductRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	SKU          string          `json:"sku" validate:"required,max=64"`
	Category     string          `json:"category" validate:"max=100"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	Stock        int             `json:"stock" validate:"gte=0"`
	ReorderLevel int             `json:"reorder_level" validate:"gte=0"`
	MaxStock     int             `json:"max_stock" validate:"gte=0"`
	Status       string          `json:"status" validate:"omitempty,oneof=active archived"`
	ImageURL     string          `json:"image_url" validate:"omitempty,url"`
}

// Validate implements Validator.
func (req CreateProductRequest) Validate() []string {
	var errs []string
	if req.Price.IsNegative() {
		errs = append(errs, "price must not be negative")
	}
	if req.Cost.IsNegative() {
		errs = append(errs, "cost must not be negative")
	}
	if req.MaxStock > 0 && req.ReorderLevel > req.MaxStock {
		errs = append(errs, "reorder_level must not exceed max_stock")
	}
	return errs
}

// UpdateProductRequest is the request body for PATCH /api/products/{id}. Omitted fields are unchanged.
type UpdateProductRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=200"`
	SKU          *string          `json:"sku" validate:"omitempty,min=1,max=64"`
	Category     *string          `json:"category" validate:"omitempty,max=100"`
	Description  *string          `json:"description"`
	Price        *decimal.Decimal `json:"price"`
	Cost         *decimal.Decimal `json:"cost"`
	ReorderLevel *int             `json:"reorder_level" validate:"omitempty,gte=0"`
	MaxStock     *int             `json:"max_stock" validate:"omitempty,gte=0"`
	Status       *string          `json:"status" validate:"omitempty,oneof=active archived"`
	ImageURL     *string          `json:"image_url"`
}

// Validate implements Validator.
func (req UpdateProductRequest) Validate() []string {
	var errs []string
	if req.Price != nil && req.Price.IsNegative() {
		errs = append(errs, "price must not be negative")
	}
	if req.Cost != nil && req.Cost.IsNegative() {
		errs = append(errs, "cost must not be negative")
	}
	return errs
}

// SetStockRequest is the request body for PUT /api/products/{id}/stock.
type SetStockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// RestockRequest is the request body for POST /api/products/{id}/restock.
type RestockRequest struct {
	Qty     int    `json:"qty" validate:"required,gt=0"`
	EventID string `json:"event_id" validate:"omitempty,uuid"`
	Note    string `json:"note" validate:"max=500"`
}

// ProductResponse is a product with its derived stock level.
type ProductResponse struct {
	*domain.Product
	StockLevel string `json:"stock_level"`
}

// ProductSuccessResponse is the success response envelope for endpoints returning one product.
type ProductSuccessResponse struct {
	Data  ProductResponse `json:"data"`
	Error *h.APIError     `json:"error"`
}

// ReconcileResponse is the data payload for POST /api/products/maintenance/reconcile-stock.
type ReconcileResponse struct {
	Repaired int `json:"repaired"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{Product: p, StockLevel: p.StockLevel()}
}

func newProductResponses(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	return out
}

type ProductController struct {
	Logger   *slog.Logger
	Service  domain.ProductService
	Activity domain.ActivityService
}

func NewProductController(logger *slog.Logger, svc domain.ProductService, activity domain.ActivityService) *ProductController {
	return &ProductController{
		Logger:   logger,
		Service:  svc,
		Activity: activity,
	}
}

// ListProducts godoc
// @Summary List products
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param category query string false "Exact category"
// @Param status query string false "active or archived"
// @Param search query string false "Case-insensitive match on name or SKU"
// @Success 200 {object} helpers.APIResponse "data is an array of products"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /api/products [get]
func (c *ProductController) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Status:   strings.TrimSpace(q.Get("status")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && filter.Status != domain.ProductStatusActive && filter.Status != domain.ProductStatusArchived {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "status must be active or archived")
		return
	}
	products, err := c.Service.ListProducts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, newProductResponses(products))
}

// ListLowStock godoc
// @Summary List products at or below their reorder level
// @Tags products
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is an array of products"
// @Router /api/products/low-stock [get]
func (c *ProductController) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := c.Service.ListLowStock(r.Context())
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, newProductResponses(products))
}

// GetProduct godoc
// @Summary Get a product
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Success 200 {object} controllers.ProductSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/products/{id} [get]
func (c *ProductController) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := c.Service.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, newProductResponse(p))
}

// ListMovements godoc
// @Summary List a product's stock movements, newest first
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is an array of stock movements"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/products/{id}/movements [get]
func (c *ProductController) ListMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	movements, err := c.Service.ListMovements(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	if movements == nil {
		movements = []*domain.StockMovement{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, movements)
}

// CreateProduct godoc
// @Summary Create a product
// @Description Rejects a SKU that is already in use. Officer or above.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateProductRequest true "Product data"
// @Success 201 {object} controllers.ProductSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (duplicate SKU)"
// @Router /api/products [post]
func (c *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	sku := strings.TrimSpace(req.SKU)
	if _, err := c.Service.FindBySKU(r.Context(), sku); err == nil {
		writeServiceError(w, r, c.Logger, fmt.Errorf("%w: %s", domain.ErrDuplicateSKU, sku), "product not found")
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	p := &domain.Product{
		Name:         req.Name,
		SKU:          sku,
		Category:     strings.TrimSpace(req.Category),
		Description:  req.Description,
		Price:        req.Price,
		Cost:         req.Cost,
		Stock:        req.Stock,
		ReorderLevel: req.ReorderLevel,
		MaxStock:     req.MaxStock,
		Status:       req.Status,
		ImageURL:     req.ImageURL,
	}
	if err := c.Service.CreateProduct(r.Context(), p); err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionCreateProduct, "product", p.ID, "sku="+p.SKU)
	h.WriteJSONSuccess(w, http.StatusCreated, newProductResponse(p))
}

// UpdateProduct godoc
// @Summary Update a product
// @Description Partial update; omitted fields are unchanged. Stock is changed through the stock and restock endpoints.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Param body body UpdateProductRequest true "Fields to change"
// @Success 200 {object} controllers.ProductSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/products/{id} [patch]
func (c *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateProductRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.Service.UpdateProduct(r.Context(), id, domain.ProductUpdate{
		Name:         req.Name,
		SKU:          req.SKU,
		Category:     req.Category,
		Description:  req.Description,
		Price:        req.Price,
		Cost:         req.Cost,
		ReorderLevel: req.ReorderLevel,
		MaxStock:     req.MaxStock,
		Status:       req.Status,
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionUpdateProduct, "product", id, "")
	h.WriteJSONSuccess(w, http.StatusOK, newProductResponse(p))
}

// SetStock godoc
// @Summary Overwrite a product's global stock counter
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Param body body SetStockRequest true "New stock"
// @Success 200 {object} controllers.ProductSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/products/{id}/stock [put]
func (c *ProductController) SetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SetStockRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Service.UpdateStock(r.Context(), id, *req.Stock); err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionSetStock, "product", id, "stock="+strconv.Itoa(*req.Stock))
	p, err := c.Service.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, newProductResponse(p))
}

// Restock godoc
// @Summary Add stock to a product
// @Description With event_id the per-event counter is increased and the global total recomputed; otherwise the global counter is increased. Honours Idempotency-Key.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Param Idempotency-Key header string false "Client key for safe retries"
// @Param body body RestockRequest true "Restock data"
// @Success 200 {object} controllers.ProductSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (idempotency key reuse)"
// @Router /api/products/{id}/restock [post]
func (c *ProductController) Restock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req RestockRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	p, err := c.Service.Restock(r.Context(), domain.RestockInput{
		ProductID: id,
		EventID:   req.EventID,
		Qty:       req.Qty,
		Note:      req.Note,
		CreatedBy: userID,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	c.Activity.Record(r.Context(), userID, domain.ActionRestock, "product", id, "qty="+strconv.Itoa(req.Qty))
	h.WriteJSONSuccess(w, http.StatusOK, newProductResponse(p))
}

// DeleteProduct godoc
// @Summary Delete a product
// @Description Hard delete. Transactions and movements referencing the product are kept. Admin or above.
// @Tags products
// @Security BearerAuth
// @Param id path string true "Product ID (UUID)"
// @Success 204 "No Content"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/products/{id} [delete]
func (c *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := c.Service.DeleteProduct(r.Context(), id); err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	c.Activity.Record(r.Context(), userID, domain.ActionDeleteProduct, "product", id, "")
	w.WriteHeader(http.StatusNoContent)
}

// ReconcileStock godoc
// @Summary Repair products whose global stock differs from their per-event sum
// @Tags maintenance
// @Produce json
// @Param X-Admin-Key header string true "Maintenance key"
// @Success 200 {object} helpers.APIResponse "data.repaired is the number of products fixed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 423 {object} helpers.APIResponse "error.code: locked (another run in progress)"
// @Router /api/products/maintenance/reconcile-stock [post]
func (c *ProductController) ReconcileStock(w http.ResponseWriter, r *http.Request) {
	repaired, err := c.Service.ReconcileStock(r.Context())
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "product not found")
		return
	}
	c.Logger.InfoContext(r.Context(), "stock reconciled", "repaired", repaired)
	h.WriteJSONSuccess(w, http.StatusOK, ReconcileResponse{Repaired: repaired})
}
