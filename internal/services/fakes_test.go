package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"merchpos/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProductRepo is an in-memory ProductRepository with the same clamping rules as the SQL one.
type fakeProductRepo struct {
	mu         sync.Mutex
	products   map[string]*domain.Product
	eventStock map[string]map[string]int
	nextID     int
	adjustErr  map[string]error // per product, returned by AdjustEventStock and AdjustStock
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products:   map[string]*domain.Product{},
		eventStock: map[string]map[string]int{},
		nextID:     1,
		adjustErr:  map[string]error{},
	}
}

func (f *fakeProductRepo) copyOf(p *domain.Product) *domain.Product {
	out := *p
	out.StockByEvent = map[string]int{}
	for ev, n := range f.eventStock[p.ID] {
		out.StockByEvent[ev] = n
	}
	return &out
}

// seed stores p and its per-event counts without going through the service.
func (f *fakeProductRepo) seed(p *domain.Product) *domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("prod-%d", f.nextID)
		f.nextID++
	}
	if len(p.StockByEvent) > 0 {
		f.eventStock[p.ID] = map[string]int{}
		for ev, n := range p.StockByEvent {
			f.eventStock[p.ID][ev] = n
		}
	}
	stored := *p
	f.products[p.ID] = &stored
	return p
}

func (f *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	f.seed(p)
	return nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f.copyOf(p), nil
}

func (f *fakeProductRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.SKU == sku {
			return f.copyOf(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeProductRepo) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Product
	for _, p := range f.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.SKU), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, f.copyOf(p))
	}
	return out, nil
}

func (f *fakeProductRepo) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Product
	for _, p := range f.products {
		if p.Stock <= p.ReorderLevel {
			out = append(out, f.copyOf(p))
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.SKU != nil {
		p.SKU = *upd.SKU
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.ImageURL != nil {
		p.ImageURL = *upd.ImageURL
	}
	return f.copyOf(p), nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.products, id)
	delete(f.eventStock, id)
	return nil
}

func (f *fakeProductRepo) SetStock(ctx context.Context, id string, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Stock = stock
	return nil
}

func (f *fakeProductRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.adjustErr[id]; err != nil {
		return 0, err
	}
	p, ok := f.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	p.Stock = max(p.Stock+delta, 0)
	return p.Stock, nil
}

func (f *fakeProductRepo) AdjustEventStock(ctx context.Context, id, eventID string, delta, fallback int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.adjustErr[id]; err != nil {
		return 0, err
	}
	if _, ok := f.products[id]; !ok {
		return 0, domain.ErrNotFound
	}
	counts, ok := f.eventStock[id]
	if !ok {
		counts = map[string]int{}
		f.eventStock[id] = counts
	}
	cur, ok := counts[eventID]
	if !ok {
		cur = fallback
	}
	counts[eventID] = max(cur+delta, 0)
	return counts[eventID], nil
}

func (f *fakeProductRepo) SyncStockTotal(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	total := 0
	for _, n := range f.eventStock[id] {
		total += n
	}
	p.Stock = total
	return total, nil
}

func (f *fakeProductRepo) ListStockDrift(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, counts := range f.eventStock {
		p, ok := f.products[id]
		if !ok || len(counts) == 0 {
			continue
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		if total != p.Stock {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeMovementRepo struct {
	mu        sync.Mutex
	movements []*domain.StockMovement
	keys      map[string]bool
	err       error
}

func newFakeMovementRepo() *fakeMovementRepo {
	return &fakeMovementRepo{keys: map[string]bool{}}
}

func (f *fakeMovementRepo) Append(ctx context.Context, m *domain.StockMovement) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.keys[m.DedupKey] {
		return false, nil
	}
	f.keys[m.DedupKey] = true
	m.ID = fmt.Sprintf("mv-%d", len(f.movements)+1)
	f.movements = append(f.movements, m)
	return true, nil
}

func (f *fakeMovementRepo) ListByProduct(ctx context.Context, productID string) ([]*domain.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.StockMovement
	for _, m := range f.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	byID   map[string]*domain.Event
	nextID int
	err    error // if set, Create returns this error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: map[string]*domain.Event{}, nextID: 1}
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("ev-%d", f.nextID)
		f.nextID++
	}
	f.byID[e.ID] = e
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if e, ok := f.byID[id]; ok {
		out := *e
		return &out, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) List(ctx context.Context, status string) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range f.byID {
		if status == "" || e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Name != nil {
		e.Name = *upd.Name
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if upd.StartDate != nil {
		e.StartDate = upd.StartDate
	}
	if upd.EndDate != nil {
		e.EndDate = upd.EndDate
	}
	if upd.Location != nil {
		e.Location = *upd.Location
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	out := *e
	return &out, nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeTransactionRepo struct {
	txs []*domain.Transaction
	err error
}

func (f *fakeTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	if f.err != nil {
		return f.err
	}
	tx.ID = fmt.Sprintf("tx-%d", len(f.txs)+1)
	f.txs = append(f.txs, tx)
	return nil
}

func (f *fakeTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	for _, tx := range f.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTransactionRepo) matching(filter domain.TransactionFilter) []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range f.txs {
		if filter.EventID != "" && (tx.EventID == nil || *tx.EventID != filter.EventID) {
			continue
		}
		if filter.Cashier != "" && tx.Cashier != filter.Cashier {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (f *fakeTransactionRepo) List(ctx context.Context, filter domain.TransactionFilter, params domain.PaginationParams) ([]*domain.Transaction, int, error) {
	all := f.matching(filter)
	return all, len(all), nil
}

func (f *fakeTransactionRepo) ListAll(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return f.matching(filter), nil
}

type fakeUserRepo struct {
	byID      map[string]*domain.User
	nextID    int
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*domain.User{}, nextID: 1}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", f.nextID)
		f.nextID++
	}
	stored := *u
	f.byID[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.byID[id]; ok {
		out := *u
		return &out, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) ListByStatus(ctx context.Context, status string) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range f.byID {
		if u.Status == status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateRole(ctx context.Context, id, role, requestedRole, status string) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role, u.RequestedRole, u.Status = role, requestedRole, status
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeHasher struct{}

func (fakeHasher) GenerateSalt() (string, error) { return "salt", nil }

func (fakeHasher) Hash(salt, password string) (string, error) { return "hash:" + salt + password, nil }

func (fakeHasher) Compare(hash, salt, password string) error {
	if hash != "hash:"+salt+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type fakeIssuer struct {
	role string
}

func (f *fakeIssuer) Issue(userID, email, role string, expiry time.Duration) (string, error) {
	f.role = role
	return "token-" + userID, nil
}

type fakeEmailService struct {
	requests  []*domain.RoleRequestEmailData
	decisions []*domain.RoleDecisionEmailData
	err       error
}

func (f *fakeEmailService) SendRoleRequest(ctx context.Context, data *domain.RoleRequestEmailData) error {
	f.requests = append(f.requests, data)
	return f.err
}

func (f *fakeEmailService) SendRoleDecision(ctx context.Context, data *domain.RoleDecisionEmailData) error {
	f.decisions = append(f.decisions, data)
	return f.err
}

type fakeActivityRepo struct {
	entries []*domain.ActivityLog
	err     error
}

func (f *fakeActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	if f.err != nil {
		return f.err
	}
	entry.ID = fmt.Sprintf("log-%d", len(f.entries)+1)
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeActivityRepo) ListByUser(ctx context.Context, userID string, params domain.PaginationParams) ([]*domain.ActivityLog, int, error) {
	var out []*domain.ActivityLog
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (f *fakeActivityRepo) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeLocker struct {
	err      error
	obtained []string
	released int
}

func (f *fakeLocker) Obtain(ctx context.Context, key string) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.obtained = append(f.obtained, key)
	return func() { f.released++ }, nil
}

type fakeObjectStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[name] = data
	f.types[name] = contentType
	return "https://cdn.test/" + name, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.objects, name)
	return nil
}
