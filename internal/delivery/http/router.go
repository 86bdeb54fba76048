package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"merchpos/internal/delivery/http/controllers"
	h "merchpos/internal/delivery/http/helpers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
)

// Controllers groups the HTTP handlers. Storage may be nil, in which case its routes are not mounted.
type Controllers struct {
	Auth        *controllers.AuthController
	Product     *controllers.ProductController
	Event       *controllers.EventController
	Transaction *controllers.TransactionController
	Storage     *controllers.StorageController
}

// RouterDeps carries what the route guards need.
type RouterDeps struct {
	Logger   *slog.Logger
	Verifier domain.TokenVerifier
	Users    middleware.UserLoader
	// Idempotency may be nil; the middleware then passes requests through.
	Idempotency middleware.IdempotencyStore
	AdminKey    string
	Gatherer    prometheus.Gatherer
	// Ping reports database health for /healthz.
	Ping func(ctx context.Context) error
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(c Controllers, deps RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(deps.Verifier, deps.Logger)
	role := func(min string, next http.HandlerFunc) http.HandlerFunc {
		return authed(middleware.RequireRole(deps.Users, min, deps.Logger)(next))
	}
	active := func(next http.HandlerFunc) http.HandlerFunc { return role(domain.RoleMember, next) }
	officer := func(next http.HandlerFunc) http.HandlerFunc { return role(domain.RoleOfficer, next) }
	admin := func(next http.HandlerFunc) http.HandlerFunc { return role(domain.RoleAdmin, next) }
	president := func(next http.HandlerFunc) http.HandlerFunc { return role(domain.RolePresident, next) }
	idempotent := middleware.Idempotency(deps.Idempotency, deps.Logger)

	// Auth
	mux.HandleFunc("POST /api/auth/register", c.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", c.Auth.Login)
	mux.HandleFunc("GET /api/auth/me", authed(c.Auth.Me))
	mux.HandleFunc("GET /api/auth/activity", authed(c.Auth.ListActivity))
	mux.HandleFunc("GET /api/auth/pending", president(c.Auth.ListPending))
	mux.HandleFunc("POST /api/auth/approve", president(c.Auth.Approve))
	mux.HandleFunc("POST /api/auth/reject", president(c.Auth.Reject))
	mux.HandleFunc("DELETE /api/auth/users/{uid}", president(c.Auth.DeleteUser))

	// Products
	mux.HandleFunc("GET /api/products", active(c.Product.ListProducts))
	mux.HandleFunc("GET /api/products/low-stock", active(c.Product.ListLowStock))
	mux.HandleFunc("GET /api/products/{id}", active(c.Product.GetProduct))
	mux.HandleFunc("GET /api/products/{id}/movements", active(c.Product.ListMovements))
	mux.HandleFunc("POST /api/products", officer(c.Product.CreateProduct))
	mux.HandleFunc("PATCH /api/products/{id}", officer(c.Product.UpdateProduct))
	mux.HandleFunc("PUT /api/products/{id}/stock", officer(c.Product.SetStock))
	mux.HandleFunc("POST /api/products/{id}/restock", officer(idempotent(c.Product.Restock)))
	mux.HandleFunc("DELETE /api/products/{id}", admin(c.Product.DeleteProduct))
	mux.HandleFunc("POST /api/products/maintenance/reconcile-stock", middleware.RequireAdminKey(deps.AdminKey)(c.Product.ReconcileStock))

	// Events
	mux.HandleFunc("GET /api/events", active(c.Event.ListEvents))
	mux.HandleFunc("GET /api/events/{id}", active(c.Event.GetEvent))
	mux.HandleFunc("GET /api/events/{id}/summary", active(c.Event.GetSummary))
	mux.HandleFunc("GET /api/events/{id}/report.xlsx", active(c.Event.DownloadReport))
	mux.HandleFunc("POST /api/events", officer(c.Event.CreateEvent))
	mux.HandleFunc("PATCH /api/events/{id}", officer(c.Event.UpdateEvent))
	mux.HandleFunc("DELETE /api/events/{id}", admin(c.Event.DeleteEvent))

	// Transactions
	mux.HandleFunc("POST /api/transactions", active(idempotent(c.Transaction.CreateTransaction)))
	mux.HandleFunc("GET /api/transactions", active(c.Transaction.ListTransactions))
	mux.HandleFunc("GET /api/transactions/summary", active(c.Transaction.GetSummary))
	mux.HandleFunc("GET /api/transactions/{id}", active(c.Transaction.GetTransaction))

	// Storage
	if c.Storage != nil {
		mux.HandleFunc("POST /api/storage/products/{id}/image", officer(c.Storage.UploadProductImage))
		mux.HandleFunc("DELETE /api/storage/objects/{name...}", officer(c.Storage.DeleteObject))
	}

	// Operations
	mux.HandleFunc("GET /healthz", healthHandler(deps))
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

func healthHandler(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Ping != nil {
			if err := deps.Ping(r.Context()); err != nil {
				deps.Logger.WarnContext(r.Context(), "health check failed", "err", err)
				h.WriteJSONError(w, http.StatusServiceUnavailable, h.ErrCodeInternalError, "database unavailable")
				return
			}
		}
		h.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
