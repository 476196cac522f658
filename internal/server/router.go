package server

import (
	"net/http"
	"time"

	"github.com/diewo77/gescon/internal/auth"
	"github.com/diewo77/gescon/internal/gate"
	"github.com/diewo77/gescon/internal/handlers"
	"github.com/diewo77/gescon/internal/httpx"
	"github.com/diewo77/gescon/internal/logger"
	"github.com/diewo77/gescon/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	dashboardCacheTTL    = 30 * time.Second
	cacheCleanupInterval = 5 * time.Minute
	rateLimitPerInterval = 100 * time.Millisecond
	rateLimitBurst       = 30
)

// newGate registers the role profiles the engine consumes. Roles are
// pre-resolved upstream; admin carries everything, standard everything except
// wholesale payment replacement.
func newGate() *gate.Gate {
	g := gate.New()
	g.Register(auth.RoleAdmin, gate.NewProfile(auth.RoleAdmin, gate.PermissionSuperAdmin))
	g.Register(auth.RoleStandard, gate.NewProfile(auth.RoleStandard,
		gate.NewPermission("budget_line", gate.Action(gate.WildcardAll)),
		gate.NewPermission("convention", gate.ActionView),
		gate.NewPermission("convention", gate.ActionList),
		gate.NewPermission("convention", gate.ActionCreate),
		gate.NewPermission("convention", gate.ActionUpdate),
		gate.NewPermission("convention", gate.ActionDelete),
		gate.NewPermission("payment", gate.Action(gate.WildcardAll)),
		gate.NewPermission("mandate", gate.Action(gate.WildcardAll)),
		gate.NewPermission("partner", gate.Action(gate.WildcardAll)),
	))
	return g
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB) http.Handler {
	locks := services.NewConventionLocks()
	reportCache := cache.New(dashboardCacheTTL, cacheCleanupInterval)

	reports := services.NewReportingService(db)
	blHandler := handlers.NewBudgetLineHandler(services.NewBudgetLineService(db), reports, reportCache)
	convHandler := handlers.NewConventionHandler(services.NewConventionService(db, locks), newGate(), reportCache)
	payHandler := handlers.NewPaymentHandler(services.NewPaymentService(db, locks), reportCache)
	mandateHandler := handlers.NewMandateHandler(services.NewMandateService(db), reportCache)
	partnerHandler := handlers.NewPartnerHandler(services.NewPartnerService(db), reportCache)
	dashHandler := handlers.NewDashboardHandler(reports, reportCache)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(rateLimitMiddleware)
	r.Use(auth.Middleware)

	// --- Health endpoints ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/budget-lines", blHandler.List)
		r.Post("/budget-lines", blHandler.Create)
		r.Delete("/budget-lines/{id}", blHandler.Delete)

		r.Get("/conventions", convHandler.List)
		r.Post("/conventions", convHandler.Create)
		r.Get("/conventions/{id}", convHandler.Get)
		r.Put("/conventions/{id}", convHandler.Update)
		r.Patch("/conventions/{id}", convHandler.Update)
		r.Delete("/conventions/{id}", convHandler.Delete)
		r.Get("/conventions/{id}/balance", convHandler.Balance)

		r.Get("/payments", payHandler.List)
		r.Post("/payments", payHandler.Create)
		r.Post("/payments/{id}/cancel", payHandler.Cancel)

		r.Get("/mandates", mandateHandler.List)
		r.Post("/mandates", mandateHandler.Create)
		r.Put("/mandates/{id}", mandateHandler.Update)
		r.Delete("/mandates/{id}", mandateHandler.Delete)

		r.Get("/partners", partnerHandler.List)
		r.Post("/partners", partnerHandler.Create)
		r.Put("/partners/{id}", partnerHandler.Update)
		r.Delete("/partners/{id}", partnerHandler.Delete)

		r.Get("/dashboard-stats", dashHandler.Stats)
	})

	return r
}

var limiter = rate.NewLimiter(rate.Every(rateLimitPerInterval), rateLimitBurst)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.L.Warn("rate limit exceeded", "path", r.URL.Path)
			httpx.JSONError(w, http.StatusTooManyRequests, "rate_limited", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.L.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
