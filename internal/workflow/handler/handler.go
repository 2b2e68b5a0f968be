package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/domain"
	"caseflow/internal/platform/middleware"
	"caseflow/internal/workflow"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Handler wires case lifecycle endpoints to the workflow service.
type Handler struct {
	service *workflow.Service
	logger  *slog.Logger
}

func New(service *workflow.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts case endpoints on the router. All routes assume the actor
// authentication middleware already ran.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases", h.HandleCreateCase)
	r.Get("/cases/{caseID}", h.HandleGetCase)
	r.Get("/cases/{caseID}/transitions", h.HandleHistory)
	r.Get("/cases/{caseID}/allowed-transitions", h.HandleAllowedTransitions)
	r.Post("/cases/{caseID}/transitions", h.HandleTransition)
	r.Post("/cases/transitions/batch", h.HandleTransitionBatch)
}

func (h *Handler) HandleCreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorFrom(ctx)
	if actor == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[CreateCaseRequest](w, r)
	if !ok {
		return
	}
	params, err := req.ToParams()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.CreateCase(ctx, actor, params)
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "case created",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", c.ID.String(),
		"priority", c.Priority.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
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

	c, err := h.service.GetCase(ctx, actor, caseID)
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
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

	req, ok := httputil.Decode[TransitionRequest](w, r)
	if !ok {
		return
	}
	to, err := domain.ParseCaseStatus(req.ToStatus)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Transition(ctx, actor, caseID, to, req.Notes)
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "case transitioned",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID.String(),
		"from", result.FromStatus.String(),
		"to", result.ToStatus.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleAllowedTransitions(w http.ResponseWriter, r *http.Request) {
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

	targets, err := h.service.AllowedTransitions(ctx, actor, caseID)
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AllowedTransitionsResponse{
		CaseID:             caseID,
		AllowedTransitions: targets,
	})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
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

	records, err := h.service.History(ctx, actor, caseID)
	if err != nil {
		h.writeWorkflowError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.TransitionRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{CaseID: caseID, Transitions: records})
}

func (h *Handler) HandleTransitionBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorFrom(ctx)
	if actor == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[BatchRequest](w, r)
	if !ok {
		return
	}
	requests, err := req.ToBatch()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	results := h.service.TransitionBatch(ctx, actor, requests)
	httputil.WriteJSON(w, http.StatusOK, BatchResponse{Results: results})
}

// writeWorkflowError surfaces the stable workflow reason alongside the HTTP
// status so the dashboard renders the precise rejection message.
func (h *Handler) writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	reason := workflow.ReasonOf(err)
	if reason == workflow.ReasonConflict {
		h.logger.InfoContext(ctx, "transition lost concurrent race",
			"request_id", requestcontext.RequestID(ctx), "path", r.URL.Path)
	} else if reason == "" {
		h.logger.ErrorContext(ctx, "case operation failed",
			"request_id", requestcontext.RequestID(ctx), "path", r.URL.Path, "error", err)
	}
	httputil.WriteErrorReason(w, err, string(reason))
}
