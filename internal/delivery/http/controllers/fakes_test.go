package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

const (
	testUserID    = "8f14e45f-ceea-467f-a8b8-3f1d2a6c9e01"
	testProductID = "c9f0f895-fb98-4b91-b1a6-7d5f2e3c4a10"
	testEventID   = "45c48cce-2e2d-4fbd-8ad1-3c5e7f9a1b20"
	testTxID      = "d3d94468-02a4-4e2b-9d2c-1f6b8a7e5c30"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newRequest builds a request whose context carries testUserID unless userID is empty.
func newRequest(method, target, body, userID string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req = req.WithContext(middleware.SetUserID(req.Context(), userID))
	}
	return req
}

// serve routes req through a mux with a single pattern so PathValue works.
func serve(pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
	if data != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.Error
}

type fakeAuthService struct {
	registerFn func(in domain.RegisterInput) (*domain.User, error)
	loginFn    func(email, password string) (string, *domain.User, error)
	meFn       func(userID string) (*domain.User, error)
	pending    []*domain.User
	approveFn  func(approverID, userID, role string) (*domain.User, error)
	rejectFn   func(approverID, userID string) (*domain.User, error)
	deleteErr  error
	lastDelete [2]string
}

func (f *fakeAuthService) Register(_ context.Context, in domain.RegisterInput) (*domain.User, error) {
	return f.registerFn(in)
}

func (f *fakeAuthService) Login(_ context.Context, email, password string) (string, *domain.User, error) {
	return f.loginFn(email, password)
}

func (f *fakeAuthService) Me(_ context.Context, userID string) (*domain.User, error) {
	return f.meFn(userID)
}

func (f *fakeAuthService) ListPending(_ context.Context) ([]*domain.User, error) {
	return f.pending, nil
}

func (f *fakeAuthService) Approve(_ context.Context, approverID, userID, role string) (*domain.User, error) {
	return f.approveFn(approverID, userID, role)
}

func (f *fakeAuthService) Reject(_ context.Context, approverID, userID string) (*domain.User, error) {
	return f.rejectFn(approverID, userID)
}

func (f *fakeAuthService) DeleteUser(_ context.Context, actorID, userID string) error {
	f.lastDelete = [2]string{actorID, userID}
	return f.deleteErr
}

type fakeActivityService struct {
	recorded []string
	logs     []*domain.ActivityLog
	total    int
	err      error
}

func (f *fakeActivityService) Record(_ context.Context, userID, action, entityType, entityID, details string) {
	f.recorded = append(f.recorded, action+":"+entityID)
}

func (f *fakeActivityService) ListByUser(_ context.Context, userID string, params domain.PaginationParams) ([]*domain.ActivityLog, int, error) {
	return f.logs, f.total, f.err
}

type fakeProductService struct {
	products   map[string]*domain.Product
	createErr  error
	created    *domain.Product
	listFilter domain.ProductFilter
	lowStock   []*domain.Product
	updateErr  error
	deleteErr  error
	stockErr   error
	setStock   int
	restockIn  domain.RestockInput
	restockErr error
	movements  []*domain.StockMovement
	repaired   int
	reconErr   error
}

func (f *fakeProductService) get(id string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductService) UpdateEventStock(_ context.Context, productID, eventID string, delta int) (int, error) {
	return 0, nil
}

func (f *fakeProductService) AdjustStock(_ context.Context, productID string, delta int) (int, error) {
	return 0, nil
}

func (f *fakeProductService) CreateProduct(_ context.Context, p *domain.Product) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = testProductID
	f.created = p
	return nil
}

func (f *fakeProductService) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	return f.get(id)
}

func (f *fakeProductService) FindBySKU(_ context.Context, sku string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeProductService) ListProducts(_ context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	f.listFilter = filter
	var out []*domain.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductService) ListLowStock(_ context.Context) ([]*domain.Product, error) {
	return f.lowStock, nil
}

func (f *fakeProductService) UpdateProduct(_ context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	p, err := f.get(id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	return p, nil
}

func (f *fakeProductService) DeleteProduct(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	_, err := f.get(id)
	return err
}

func (f *fakeProductService) UpdateStock(_ context.Context, productID string, stock int) error {
	if f.stockErr != nil {
		return f.stockErr
	}
	f.setStock = stock
	p, err := f.get(productID)
	if err != nil {
		return err
	}
	p.Stock = stock
	return nil
}

func (f *fakeProductService) Restock(_ context.Context, in domain.RestockInput) (*domain.Product, error) {
	f.restockIn = in
	if f.restockErr != nil {
		return nil, f.restockErr
	}
	p, err := f.get(in.ProductID)
	if err != nil {
		return nil, err
	}
	p.Stock += in.Qty
	return p, nil
}

func (f *fakeProductService) ListMovements(_ context.Context, productID string) ([]*domain.StockMovement, error) {
	if _, err := f.get(productID); err != nil {
		return nil, err
	}
	return f.movements, nil
}

func (f *fakeProductService) ReconcileStock(_ context.Context) (int, error) {
	return f.repaired, f.reconErr
}

type fakeEventService struct {
	events    map[string]*domain.Event
	createErr error
	listed    string
	updateErr error
	deleted   string
}

func (f *fakeEventService) CreateEvent(_ context.Context, e *domain.Event) error {
	if f.createErr != nil {
		return f.createErr
	}
	e.ID = testEventID
	if e.Status == "" {
		e.Status = domain.EventStatusPlanning
	}
	return nil
}

func (f *fakeEventService) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeEventService) ListEvents(_ context.Context, status string) ([]*domain.Event, error) {
	f.listed = status
	var out []*domain.Event
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventService) UpdateEvent(_ context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if upd.Name != nil {
		e.Name = *upd.Name
	}
	return e, nil
}

func (f *fakeEventService) DeleteEvent(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return domain.ErrNotFound
	}
	f.deleted = id
	return nil
}

type fakeTransactionService struct {
	createIn   domain.CreateTransactionInput
	createErr  error
	created    *domain.Transaction
	txs        map[string]*domain.Transaction
	listFilter domain.TransactionFilter
	listParams domain.PaginationParams
	listErr    error
	summary    *domain.SalesSummary
	summaryFor string
}

func (f *fakeTransactionService) Create(_ context.Context, in domain.CreateTransactionInput) (*domain.Transaction, error) {
	f.createIn = in
	return f.created, f.createErr
}

func (f *fakeTransactionService) Get(_ context.Context, id string) (*domain.Transaction, error) {
	tx, ok := f.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tx, nil
}

func (f *fakeTransactionService) List(_ context.Context, filter domain.TransactionFilter, params domain.PaginationParams) ([]*domain.Transaction, int, error) {
	f.listFilter = filter
	f.listParams = params
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []*domain.Transaction
	for _, tx := range f.txs {
		out = append(out, tx)
	}
	return out, len(out), nil
}

func (f *fakeTransactionService) Summary(_ context.Context, eventID string) (*domain.SalesSummary, error) {
	f.summaryFor = eventID
	return f.summary, nil
}

type fakeReportService struct {
	err error
}

func (f *fakeReportService) WriteEventSalesReport(_ context.Context, eventID string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "xlsx:"+eventID)
	return err
}

type fakeStorageService struct {
	uploadedFor string
	uploadSize  int
	uploadErr   error
	deleted     string
	deleteErr   error
}

func (f *fakeStorageService) UploadProductImage(_ context.Context, productID string, data []byte) (*domain.StoredObject, error) {
	f.uploadedFor = productID
	f.uploadSize = len(data)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	name := "products/" + productID + "/img.png"
	return &domain.StoredObject{Name: name, URL: "https://cdn.test/" + name, ContentType: "image/png", Size: int64(len(data))}, nil
}

func (f *fakeStorageService) DeleteObject(_ context.Context, name string) error {
	f.deleted = name
	return f.deleteErr
}
