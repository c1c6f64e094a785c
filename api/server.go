/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     zap request logging (logger.Middleware)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /healthz              Liveness
  /metrics              Prometheus scrape (when a handler is given)
  /api/workers/*        Workers, salary profiles, attendance
  /api/products/*       Products and their slabs
  /api/slabs/*          Slab edits and quotes
  /api/production/*     Production ledger
  /api/payroll/*        Payroll periods
  /api/audit            Audit log query
  /api/scenarios/*      Demo data

SECURITY NOTE:
  No authentication middleware. The X-Actor-ID header is trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/logger"
)

// RouterOptions configures the parts of the router that depend on deployment.
type RouterOptions struct {
	CORSAllowOrigins []string
	// MetricsHandler is mounted at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Get("/{id}", h.GetWorker)
			r.Put("/{id}", h.UpdateWorker)
			r.Get("/{id}/salary-profile", h.GetSalaryProfile)
			r.Put("/{id}/salary-profile", h.PutSalaryProfile)
			r.Get("/{id}/attendance", h.ListAttendance)
			r.Post("/{id}/attendance", h.MarkAttendance)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}/slabs", h.ListSlabs)
			r.Post("/{id}/slabs", h.AddSlab)
		})

		r.Route("/slabs", func(r chi.Router) {
			r.Get("/quote", h.QuoteSlab)
			r.Put("/{id}", h.UpdateSlab)
			r.Delete("/{id}", h.DeleteSlab)
		})

		r.Route("/allowances", func(r chi.Router) {
			r.Get("/", h.ListAllowances)
			r.Post("/", h.CreateAllowance)
			r.Delete("/{id}", h.DeactivateAllowance)
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.ListCommissions)
			r.Post("/", h.CreateCommission)
			r.Post("/{id}/approve", h.ApproveCommission)
		})

		r.Route("/deductions", func(r chi.Router) {
			r.Get("/", h.ListDeductions)
			r.Post("/", h.CreateDeduction)
			r.Delete("/{id}", h.DeleteDeduction)
		})

		r.Route("/production", func(r chi.Router) {
			r.Get("/", h.GetProductionSheet)
			r.Get("/days", h.ListProductionDays)
			r.Post("/entries", h.AddEntry)
			r.Put("/entries/{id}", h.UpdateEntry)
			r.Delete("/entries/{id}", h.RemoveEntry)
			r.Post("/days/{date}/finalize", h.FinalizeDay)
			r.Post("/days/{date}/unlock", h.UnlockDay)
			r.Get("/days/{date}/summary", h.DaySummary)
			r.Get("/report", h.ProductionReport)
		})

		r.Route("/payroll/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.GeneratePayroll)
			r.Get("/{id}", h.GetPeriod)
			r.Post("/{id}/resume", h.ResumePayroll)
			r.Post("/{id}/finalize", h.FinalizePeriod)
			r.Get("/{id}/audit", h.PeriodAudit)
		})

		r.Get("/audit", h.QueryAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
