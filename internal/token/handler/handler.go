// Package handler exposes the token facade over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/omnibus"
	compliance "secutoken/internal/compliance/service"
	"secutoken/internal/token/service"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/httputil"
	request "secutoken/pkg/platform/middleware/request"
)

type Service interface {
	Issue(ctx context.Context, req service.IssueRequest) (*models.Receipt, error)
	Transfer(ctx context.Context, from, to id.Address, amount uint64) (*models.Receipt, error)
	Burn(ctx context.Context, from id.Address, amount uint64, reason string) (*models.Receipt, error)
	Seize(ctx context.Context, from, to id.Address, amount uint64, reason string) (*models.Receipt, error)
	SetPaused(ctx context.Context, paused bool) error
	BulkIssue(ctx context.Context, req omnibus.BulkRequest) (*models.Receipt, error)
	BulkBurn(ctx context.Context, req omnibus.BulkRequest) (*models.Receipt, error)
	BulkTransfer(ctx context.Context, req omnibus.BulkRequest, to id.Address) (*models.Receipt, error)
	AdjustCounters(ctx context.Context, wallet id.Address, deltas map[string]int) (*models.Receipt, error)
	BalanceOf(ctx context.Context, wallet id.Address) (uint64, error)
	Info(ctx context.Context) (compliance.TokenInfo, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/token", func(r chi.Router) {
		r.Get("/", h.HandleInfo)
		r.Get("/balances/{wallet}", h.HandleBalance)
		r.Post("/issue", h.HandleIssue)
		r.Post("/transfer", h.HandleTransfer)
		r.Post("/burn", h.HandleBurn)
		r.Post("/seize", h.HandleSeize)
		r.Post("/pause", h.handlePause(true))
		r.Post("/unpause", h.handlePause(false))
		r.Post("/omnibus/issue", h.HandleBulkIssue)
		r.Post("/omnibus/burn", h.HandleBulkBurn)
		r.Post("/omnibus/transfer", h.HandleBulkTransfer)
		r.Post("/omnibus/adjust", h.HandleAdjust)
	})
}

func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Info(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "failed to read token info", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, err := id.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bal, err := h.service.BalanceOf(ctx, wallet)
	if err != nil {
		h.fail(ctx, w, "failed to read balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "balance": bal})
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.receipt(ctx, w, http.StatusCreated)(h.service.Issue(ctx, req.parsed))
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[MoveRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := req.requireTo(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.receipt(ctx, w, http.StatusOK)(h.service.Transfer(ctx, req.FromAddress, req.ToAddress, req.Amount))
}

func (h *Handler) HandleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[MoveRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.receipt(ctx, w, http.StatusOK)(h.service.Burn(ctx, req.FromAddress, req.Amount, req.Reason))
}

func (h *Handler) HandleSeize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[MoveRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := req.requireTo(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.receipt(ctx, w, http.StatusOK)(h.service.Seize(ctx, req.FromAddress, req.ToAddress, req.Amount, req.Reason))
}

func (h *Handler) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.service.SetPaused(ctx, paused); err != nil {
			h.fail(ctx, w, "failed to change pause state", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) HandleBulkIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.receipt(ctx, w, http.StatusCreated)(h.service.BulkIssue(ctx, req.parsed))
}

func (h *Handler) HandleBulkBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.receipt(ctx, w, http.StatusOK)(h.service.BulkBurn(ctx, req.parsed))
}

func (h *Handler) HandleBulkTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	if req.ToAddress.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "to is required"))
		return
	}
	h.receipt(ctx, w, http.StatusOK)(h.service.BulkTransfer(ctx, req.parsed, req.ToAddress))
}

func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AdjustRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	h.receipt(ctx, w, http.StatusOK)(h.service.AdjustCounters(ctx, req.Address, req.Deltas))
}

// receipt writes the outcome of a mutation.
func (h *Handler) receipt(ctx context.Context, w http.ResponseWriter, status int) func(*models.Receipt, error) {
	return func(rec *models.Receipt, err error) {
		if err != nil {
			h.fail(ctx, w, "token operation failed", err)
			return
		}
		httputil.WriteJSON(w, status, rec)
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelInfo
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, err)
}
