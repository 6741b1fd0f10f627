// Package handler exposes the investor registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	compliance "secutoken/internal/compliance/models"
	"secutoken/internal/registry/models"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/httputil"
	request "secutoken/pkg/platform/middleware/request"
)

// Service is the registry surface the handler drives.
type Service interface {
	RegisterInvestor(ctx context.Context, req models.RegisterInvestorRequest) (*models.Investor, error)
	UpdateInvestor(ctx context.Context, investorID id.InvestorID, req models.UpdateInvestorRequest) (*models.Investor, error)
	GetInvestor(ctx context.Context, investorID id.InvestorID) (*models.Investor, error)
	ListInvestors(ctx context.Context) ([]*models.Investor, error)
	AddWallet(ctx context.Context, investorID id.InvestorID, wallet id.Address) error
	RemoveWallet(ctx context.Context, wallet id.Address) error
	SetSpecialWallet(ctx context.Context, wallet id.Address, kind compliance.SpecialKind) error
	InvestorOf(ctx context.Context, wallet id.Address) (id.InvestorID, error)
	SpecialKind(ctx context.Context, wallet id.Address) (compliance.SpecialKind, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry routes. Authentication is applied by the
// caller's router group.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registry", func(r chi.Router) {
		r.Post("/investors", h.HandleRegisterInvestor)
		r.Get("/investors", h.HandleListInvestors)
		r.Get("/investors/{investorID}", h.HandleGetInvestor)
		r.Patch("/investors/{investorID}", h.HandleUpdateInvestor)
		r.Post("/investors/{investorID}/wallets", h.HandleAddWallet)
		r.Get("/wallets/{wallet}", h.HandleGetWallet)
		r.Delete("/wallets/{wallet}", h.HandleRemoveWallet)
		r.Put("/special-wallets", h.HandleSetSpecialWallet)
	})
}

type investorResponse struct {
	ID         string                                            `json:"id"`
	Country    string                                            `json:"country"`
	Attributes map[compliance.AttributeType]compliance.Attribute `json:"attributes"`
	Wallets    []id.Address                                      `json:"wallets"`
	UpdatedAt  time.Time                                         `json:"updated_at"`
}

func toInvestorResponse(inv *models.Investor) investorResponse {
	wallets := inv.Wallets
	if wallets == nil {
		wallets = []id.Address{}
	}
	return investorResponse{
		ID:         inv.ID.String(),
		Country:    inv.Country,
		Attributes: inv.Attributes,
		Wallets:    wallets,
		UpdatedAt:  inv.UpdatedAt,
	}
}

type walletResponse struct {
	Wallet      string `json:"wallet"`
	InvestorID  string `json:"investor_id,omitempty"`
	SpecialKind string `json:"special_kind,omitempty"`
}

func (h *Handler) HandleRegisterInvestor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.RegisterInvestorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	inv, err := h.service.RegisterInvestor(ctx, *req)
	if err != nil {
		h.fail(ctx, w, "failed to register investor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInvestorResponse(inv))
}

func (h *Handler) HandleListInvestors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.ListInvestors(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list investors", err)
		return
	}
	out := make([]investorResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvestorResponse(inv))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"investors": out})
}

func (h *Handler) HandleGetInvestor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	investorID, err := id.ParseInvestorID(chi.URLParam(r, "investorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.service.GetInvestor(ctx, investorID)
	if err != nil {
		h.fail(ctx, w, "failed to load investor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvestorResponse(inv))
}

func (h *Handler) HandleUpdateInvestor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	investorID, err := id.ParseInvestorID(chi.URLParam(r, "investorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateInvestorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	inv, err := h.service.UpdateInvestor(ctx, investorID, *req)
	if err != nil {
		h.fail(ctx, w, "failed to update investor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvestorResponse(inv))
}

func (h *Handler) HandleAddWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	investorID, err := id.ParseInvestorID(chi.URLParam(r, "investorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.WalletRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.AddWallet(ctx, investorID, req.Address); err != nil {
		h.fail(ctx, w, "failed to add wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, err := id.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner, err := h.service.InvestorOf(ctx, wallet)
	if err != nil {
		h.fail(ctx, w, "failed to look up wallet", err)
		return
	}
	kind, err := h.service.SpecialKind(ctx, wallet)
	if err != nil {
		h.fail(ctx, w, "failed to classify wallet", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, walletResponse{
		Wallet:      wallet.String(),
		InvestorID:  owner.String(),
		SpecialKind: string(kind),
	})
}

func (h *Handler) HandleRemoveWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, err := id.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveWallet(ctx, wallet); err != nil {
		h.fail(ctx, w, "failed to remove wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSetSpecialWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.SpecialWalletRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetSpecialWallet(ctx, req.Address, req.SpecialKind); err != nil {
		h.fail(ctx, w, "failed to set special wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteError(w, err)
}
