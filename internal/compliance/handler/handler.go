// Package handler exposes the compliance engine's advisory check and its
// administrative operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/service"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/httputil"
	request "secutoken/pkg/platform/middleware/request"
)

// Service is the compliance surface the handler drives.
type Service interface {
	PreTransferCheck(ctx context.Context, from, to id.Address, amount uint64) models.Result
	AddLock(ctx context.Context, wallet id.Address, spec service.LockSpec) (models.Lock, error)
	RemoveLock(ctx context.Context, wallet id.Address, index int) (models.Lock, error)
	Locks(ctx context.Context, wallet id.Address) (*service.LockView, error)
	SetFlags(ctx context.Context, investor id.InvestorID, flags models.InvestorFlags) error
	Flags(ctx context.Context, investor id.InvestorID) (models.InvestorFlags, error)
	Config(ctx context.Context) (models.Config, error)
	UpdateConfig(ctx context.Context, cfg models.Config) (models.Config, error)
	Counters(ctx context.Context) (map[counters.Category]int, error)
	SyncInvestor(ctx context.Context, investor id.InvestorID) error
	ReassignWallet(ctx context.Context, wallet id.Address, investor id.InvestorID) error
	Verify(ctx context.Context) error
}

// Omnibus is the read side of the omnibus reconciler.
type Omnibus interface {
	Population(ctx context.Context, wallet id.Address) (map[counters.Category]int, error)
	Partitions(ctx context.Context, wallet id.Address) ([]models.Partition, error)
}

type Handler struct {
	service Service
	omnibus Omnibus
	logger  *slog.Logger
}

func New(service Service, omnibus Omnibus, logger *slog.Logger) *Handler {
	return &Handler{service: service, omnibus: omnibus, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/compliance", func(r chi.Router) {
		r.Post("/check", h.HandleCheck)
		r.Get("/locks/{wallet}", h.HandleLocks)
		r.Post("/locks/{wallet}", h.HandleAddLock)
		r.Delete("/locks/{wallet}/{index}", h.HandleRemoveLock)
		r.Get("/investors/{investorID}/flags", h.HandleFlags)
		r.Put("/investors/{investorID}/flags", h.HandleSetFlags)
		r.Post("/investors/{investorID}/sync", h.HandleSync)
		r.Post("/wallets/{wallet}/reassign", h.HandleReassign)
		r.Get("/config", h.HandleConfig)
		r.Put("/config", h.HandleUpdateConfig)
		r.Get("/counters", h.HandleCounters)
		r.Get("/verify", h.HandleVerify)
		r.Get("/omnibus/{wallet}/population", h.HandlePopulation)
		r.Get("/omnibus/{wallet}/partitions", h.HandlePartitions)
	})
}

// HandleCheck always answers 200; a rejection is a result, not an error.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.PreTransferCheck(ctx, req.FromAddress, req.ToAddress, req.Amount))
}

func (h *Handler) HandleLocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	view, err := h.service.Locks(ctx, wallet)
	if err != nil {
		h.fail(ctx, w, "failed to list locks", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleAddLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[LockRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	lock, err := h.service.AddLock(ctx, wallet, req.Spec())
	if err != nil {
		h.fail(ctx, w, "failed to add lock", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lock)
}

func (h *Handler) HandleRemoveLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "lock index must be a non-negative integer"))
		return
	}
	lock, err := h.service.RemoveLock(ctx, wallet, index)
	if err != nil {
		h.fail(ctx, w, "failed to remove lock", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lock)
}

func (h *Handler) HandleFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investor, ok := investorParam(w, r)
	if !ok {
		return
	}
	flags, err := h.service.Flags(ctx, investor)
	if err != nil {
		h.fail(ctx, w, "failed to read flags", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, flags)
}

func (h *Handler) HandleSetFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investor, ok := investorParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FlagsRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	flags := models.InvestorFlags{LiquidateOnly: req.LiquidateOnly, FullyLocked: req.FullyLocked}
	if err := h.service.SetFlags(ctx, investor, flags); err != nil {
		h.fail(ctx, w, "failed to set flags", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, flags)
}

func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investor, ok := investorParam(w, r)
	if !ok {
		return
	}
	if err := h.service.SyncInvestor(ctx, investor); err != nil {
		h.fail(ctx, w, "failed to sync investor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleReassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReassignRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.ReassignWallet(ctx, wallet, req.Investor); err != nil {
		h.fail(ctx, w, "failed to reassign wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.service.Config(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to read config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[configRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	cfg, err := h.service.UpdateConfig(ctx, req.Config)
	if err != nil {
		h.fail(ctx, w, "failed to update config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// configRequest validates through models.Config.Validate.
type configRequest struct {
	models.Config
}

func (r *configRequest) Validate() error { return r.Config.Validate() }

func (h *Handler) HandleCounters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.service.Counters(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to read counters", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"counters": snap})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Verify(ctx); err != nil {
		h.logger.ErrorContext(ctx, "state verification failed",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"consistent": true})
}

func (h *Handler) HandlePopulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	pop, err := h.omnibus.Population(ctx, wallet)
	if err != nil {
		h.fail(ctx, w, "failed to read omnibus population", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "population": pop})
}

func (h *Handler) HandlePartitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	parts, err := h.omnibus.Partitions(ctx, wallet)
	if err != nil {
		h.fail(ctx, w, "failed to read omnibus partitions", err)
		return
	}
	if parts == nil {
		parts = []models.Partition{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "partitions": parts})
}

func walletParam(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	wallet, err := id.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return wallet, true
}

func investorParam(w http.ResponseWriter, r *http.Request) (id.InvestorID, bool) {
	investor, err := id.ParseInvestorID(chi.URLParam(r, "investorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return investor, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, err)
}
