package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/platform/middleware"
	"caseflow/internal/priority"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
)

// Handler exposes priority scoring to the dashboard.
type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/priority/score", h.HandleScore)
	r.Post("/priority/score/batch", h.HandleScoreBatch)
}

func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	if middleware.ActorFrom(r.Context()) == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[priority.Request](w, r)
	if !ok {
		return
	}
	result, err := priority.Score(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleScoreBatch(w http.ResponseWriter, r *http.Request) {
	if middleware.ActorFrom(r.Context()) == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[[]priority.Request](w, r)
	if !ok {
		return
	}
	items := priority.ScoreBatch(req)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"results": items,
		"count":   len(items),
	})
}
