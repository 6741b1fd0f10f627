// Package handler exposes role management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	compliance "secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/httputil"
	request "secutoken/pkg/platform/middleware/request"
)

type Service interface {
	Grant(ctx context.Context, addr id.Address, role compliance.Role) error
	Revoke(ctx context.Context, addr id.Address, role compliance.Role) error
	Roles(ctx context.Context, addr id.Address) ([]compliance.Role, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/trust/roles", func(r chi.Router) {
		r.Post("/", h.HandleGrant)
		r.Get("/{wallet}", h.HandleRoles)
		r.Delete("/{wallet}/{role}", h.HandleRevoke)
	})
}

// GrantRoleRequest assigns a role to a wallet.
type GrantRoleRequest struct {
	Wallet string `json:"wallet"`
	Role   string `json:"role"`

	Address    id.Address      `json:"-"`
	ParsedRole compliance.Role `json:"-"`
}

func (r *GrantRoleRequest) Validate() error {
	addr, err := id.ParseAddress(r.Wallet)
	if err != nil {
		return err
	}
	role, err := parseRole(r.Role)
	if err != nil {
		return err
	}
	r.Address = addr
	r.ParsedRole = role
	return nil
}

func parseRole(raw string) (compliance.Role, error) {
	role := compliance.Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown role: "+raw)
	}
	return role, nil
}

func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[GrantRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Grant(ctx, req.Address, req.ParsedRole); err != nil {
		h.logger.WarnContext(ctx, "failed to grant role", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	addr, err := id.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := parseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Revoke(ctx, addr, role); err != nil {
		h.logger.WarnContext(ctx, "failed to revoke role", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := id.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roles, err := h.service.Roles(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"wallet": addr, "roles": roles})
}
