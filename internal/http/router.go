// Package httpapi assembles the HTTP surface. It is a thin layer: routes,
// middleware ordering, and health/metrics endpoints; all behavior lives in
// the domain services.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caseflow/internal/platform/middleware"
	priorityhandler "caseflow/internal/priority/handler"
	slahandler "caseflow/internal/sla/handler"
	workflowhandler "caseflow/internal/workflow/handler"
)

// Deps carries everything the router mounts.
type Deps struct {
	Workflow    *workflowhandler.Handler
	SLA         *slahandler.Handler
	Priority    *priorityhandler.Handler
	Tokens      middleware.TokenValidator
	SystemToken string
	Logger      *slog.Logger
}

// NewRouter wires all endpoints. Interactive routes sit behind bearer-token
// actor authentication; the sweep trigger sits behind the system gate only,
// so no interactive role can reach it.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor(deps.Tokens, deps.Logger))
		deps.Workflow.Register(r)
		deps.SLA.Register(r)
		deps.Priority.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSystem(deps.SystemToken, deps.Logger))
		deps.SLA.RegisterSystem(r)
	})

	return r
}
