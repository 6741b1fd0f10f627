package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "secutoken/pkg/domain-errors"
	audit "secutoken/pkg/platform/audit"
	"secutoken/pkg/platform/httputil"
	request "secutoken/pkg/platform/middleware/request"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type eventsResponse struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/events", h.HandleListRecent)
		r.Get("/events/{subject}", h.HandleListBySubject)
	})
}

func (h *Handler) HandleListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = n
	}
	events, err := h.service.ListRecent(ctx, limit)
	if err != nil {
		h.logger.InfoContext(ctx, "audit query failed", "error", err, "request_id", request.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events, Total: len(events)})
}

func (h *Handler) HandleListBySubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.ListBySubject(ctx, chi.URLParam(r, "subject"))
	if err != nil {
		h.logger.InfoContext(ctx, "audit query failed", "error", err, "request_id", request.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events, Total: len(events)})
}
