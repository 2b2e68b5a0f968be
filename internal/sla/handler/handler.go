package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/platform/middleware"
	"caseflow/internal/sla"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Handler wires breach-detector endpoints.
type Handler struct {
	detector *sla.Detector
	logger   *slog.Logger
}

func New(detector *sla.Detector, logger *slog.Logger) *Handler {
	return &Handler{detector: detector, logger: logger}
}

// RegisterSystem mounts the sweep trigger. Mount behind the system gate:
// this route must never be reachable by interactive roles, including ADMIN.
func (h *Handler) RegisterSystem(r chi.Router) {
	r.Post("/system/sla/sweep", h.HandleSweep)
}

// Register mounts the escalation endpoints for interactive actors.
func (h *Handler) Register(r chi.Router) {
	r.Post("/escalations/{escalationID}/resolve", h.HandleResolve)
	r.Get("/cases/{caseID}/escalations", h.HandleEscalationHistory)
}

func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requestcontext.IsSystemCall(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "system callers only"))
		return
	}

	summary, err := h.detector.RunSweep(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "sweep failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorFrom(ctx)
	if actor == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	escalationID, err := id.ParseEscalationID(chi.URLParam(r, "escalationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resolved, err := h.detector.ResolveEscalation(ctx, actor, escalationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "escalation resolved",
		"request_id", requestcontext.RequestID(ctx),
		"escalation_id", escalationID.String(),
		"case_id", resolved.CaseID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, resolved)
}

func (h *Handler) HandleEscalationHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorFrom(ctx)
	if actor == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	escalations, err := h.detector.EscalationHistory(ctx, actor, caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"case_id":     caseID,
		"escalations": escalations,
	})
}
