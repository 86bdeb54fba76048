package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

// TransactionItemRequest is one cart line in CreateTransactionRequest.
type TransactionItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Name      string          `json:"name" validate:"max=200"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
}

// CreateTransactionRequest is the request body for POST /api/transactions.
// Without event_id the sale draws from global stock.
type CreateTransactionRequest struct {
	EventID       string                   `json:"event_id" validate:"omitempty,uuid"`
	Items         []TransactionItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount      decimal.Decimal          `json:"discount"`
	PaymentMethod string                   `json:"payment_method" validate:"required,oneof=cash gcash card other"`
	Cashier       string                   `json:"cashier" validate:"max=100"`
}

// Validate implements Validator.
func (req CreateTransactionRequest) Validate() []string {
	var errs []string
	for _, item := range req.Items {
		if item.Price.IsNegative() {
			errs = append(errs, "items price must not be negative")
			break
		}
	}
	if req.Discount.IsNegative() {
		errs = append(errs, "discount must not be negative")
	}
	return errs
}

// TransactionSuccessResponse is the success response envelope for endpoints returning one transaction.
type TransactionSuccessResponse struct {
	Data  *domain.Transaction `json:"data"`
	Error *h.APIError         `json:"error"`
}

// TransactionListResponse is the data payload for GET /api/transactions.
type TransactionListResponse struct {
	Items      []*domain.Transaction `json:"items"`
	Pagination h.PaginationMeta      `json:"pagination"`
}

type TransactionController struct {
	Logger   *slog.Logger
	Service  domain.TransactionService
	Activity domain.ActivityService
}

func NewTransactionController(logger *slog.Logger, svc domain.TransactionService, activity domain.ActivityService) *TransactionController {
	return &TransactionController{
		Logger:   logger,
		Service:  svc,
		Activity: activity,
	}
}

// CreateTransaction godoc
// @Summary Record a sale
// @Description Records the sale and then decrements stock per item. If a stock update fails after the sale is recorded, responds 500 with the recorded transaction in data. Honours Idempotency-Key.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client key for safe retries"
// @Param body body CreateTransactionRequest true "Cart"
// @Success 201 {object} controllers.TransactionSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (idempotency key reuse)"
// @Failure 500 {object} controllers.TransactionSuccessResponse "error.code: internal_error; data holds the transaction when it was recorded"
// @Router /api/transactions [post]
func (c *TransactionController) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	cashier := strings.TrimSpace(req.Cashier)
	if cashier == "" {
		if user, ok := middleware.UserFromContext(r.Context()); ok {
			cashier = user.Name
		}
	}
	items := make([]domain.TransactionItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.TransactionItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	tx, err := c.Service.Create(r.Context(), domain.CreateTransactionInput{
		EventID:       req.EventID,
		Items:         items,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
		Cashier:       cashier,
		CreatedBy:     userID,
	})
	var partial *domain.PartialTransactionError
	if errors.As(err, &partial) {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method,
			"transaction_id", partial.TransactionID, "err", err)
		c.Activity.Record(r.Context(), userID, domain.ActionRecordSale, "transaction", partial.TransactionID, "partial")
		h.WriteJSONErrorWithData(w, http.StatusInternalServerError, h.ErrCodeInternalError,
			"transaction recorded but stock update incomplete", tx)
		return
	}
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "transaction not found")
		return
	}
	c.Activity.Record(r.Context(), userID, domain.ActionRecordSale, "transaction", tx.ID, "total="+tx.Total.StringFixed(2))
	h.WriteJSONSuccess(w, http.StatusCreated, tx)
}

// GetTransaction godoc
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID (UUID)"
// @Success 200 {object} controllers.TransactionSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/transactions/{id} [get]
func (c *TransactionController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tx, err := c.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "transaction not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, tx)
}

// ListTransactions godoc
// @Summary List transactions, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Event ID (UUID)"
// @Param cashier query string false "Exact cashier name"
// @Param from query string false "RFC3339 timestamp or YYYY-MM-DD, inclusive"
// @Param to query string false "RFC3339 timestamp or YYYY-MM-DD, inclusive"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /api/transactions [get]
func (c *TransactionController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseTransactionFilter(w, r)
	if !ok {
		return
	}
	params := h.ParsePagination(r)
	txs, total, err := c.Service.List(r.Context(), filter, params)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "transaction not found")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, TransactionListResponse{
		Items:      txs,
		Pagination: h.NewPaginationMeta(params, total),
	})
}

// GetSummary godoc
// @Summary Sales summary across all events, or one event with event_id
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param event_id query string false "Event ID (UUID)"
// @Success 200 {object} controllers.SummarySuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /api/transactions/summary [get]
func (c *TransactionController) GetSummary(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(r.URL.Query().Get("event_id"))
	if eventID != "" && !isUUID(eventID) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid event_id: must be a UUID")
		return
	}
	summary, err := c.Service.Summary(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err, "event not found")
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, summary)
}

func parseTransactionFilter(w http.ResponseWriter, r *http.Request) (domain.TransactionFilter, bool) {
	q := r.URL.Query()
	filter := domain.TransactionFilter{
		EventID: strings.TrimSpace(q.Get("event_id")),
		Cashier: strings.TrimSpace(q.Get("cashier")),
	}
	if filter.EventID != "" && !isUUID(filter.EventID) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid event_id: must be a UUID")
		return filter, false
	}
	for _, bound := range []struct {
		name   string
		dest   **time.Time
		endDay bool
	}{
		{name: "from", dest: &filter.From},
		{name: "to", dest: &filter.To, endDay: true},
	} {
		s := strings.TrimSpace(q.Get(bound.name))
		if s == "" {
			continue
		}
		t, err := parseTimeBound(s, bound.endDay)
		if err != nil {
			h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid "+bound.name+": use RFC3339 or YYYY-MM-DD")
			return filter, false
		}
		*bound.dest = &t
	}
	return filter, true
}

// parseTimeBound accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseTimeBound(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
