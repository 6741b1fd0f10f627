// Package service answers role questions for administrative entry points and
// manages role assignments. Master implies every other role.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	compliance "secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/platform/sentinel"
	"secutoken/pkg/requestcontext"
)

type Store interface {
	Add(ctx context.Context, addr id.Address, role compliance.Role) error
	Remove(ctx context.Context, addr id.Address, role compliance.Role) error
	Has(ctx context.Context, addr id.Address, role compliance.Role) (bool, error)
	Roles(ctx context.Context, addr id.Address) ([]compliance.Role, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

var _ ports.TrustService = (*Service)(nil)

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("role store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

// HasRole reports whether addr holds role, or holds master.
func (s *Service) HasRole(ctx context.Context, addr id.Address, role compliance.Role) (bool, error) {
	if addr.IsNil() {
		return false, nil
	}
	ok, err := s.store.Has(ctx, addr, role)
	if err != nil || ok || role == compliance.RoleMaster {
		return ok, err
	}
	return s.store.Has(ctx, addr, compliance.RoleMaster)
}

// Roles lists the roles explicitly assigned to addr.
func (s *Service) Roles(ctx context.Context, addr id.Address) ([]compliance.Role, error) {
	roles, err := s.store.Roles(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
	}
	return roles, nil
}

// Seed assigns master without a caller check. Used once at startup to
// bootstrap the first administrator.
func (s *Service) Seed(ctx context.Context, addr id.Address) error {
	if addr.IsNil() {
		return errors.New("master address is required")
	}
	if err := s.store.Add(ctx, addr, compliance.RoleMaster); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed master")
	}
	s.logger.InfoContext(ctx, "master role seeded", "wallet", addr)
	return nil
}

// Grant assigns role to addr. Only master may grant.
func (s *Service) Grant(ctx context.Context, addr id.Address, role compliance.Role) error {
	if err := s.requireMaster(ctx, "grant_role"); err != nil {
		return err
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown role: "+string(role))
	}
	if err := s.store.Add(ctx, addr, role); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	s.emit(ctx, audit.EventRoleGranted, addr, string(role))
	return nil
}

// Revoke removes role from addr. Only master may revoke, and a master cannot
// drop their own master role.
func (s *Service) Revoke(ctx context.Context, addr id.Address, role compliance.Role) error {
	if err := s.requireMaster(ctx, "revoke_role"); err != nil {
		return err
	}
	if role == compliance.RoleMaster && addr == requestcontext.Caller(ctx) {
		return dErrors.New(dErrors.CodeValidation, "cannot revoke own master role")
	}
	if err := s.store.Remove(ctx, addr, role); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "role not assigned")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}
	s.emit(ctx, audit.EventRoleRevoked, addr, string(role))
	return nil
}

func (s *Service) requireMaster(ctx context.Context, action string) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	ok, err := s.store.Has(ctx, caller, compliance.RoleMaster)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
	}
	if !ok {
		s.logger.WarnContext(ctx, "privileged call denied",
			"caller", caller,
			"action", action,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.emit(ctx, audit.EventAccessDenied, caller, action)
		return dErrors.New(dErrors.CodeForbidden, "caller lacks the required role")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject id.Address, reason string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(action),
		Subject:   subject.String(),
		Reason:    reason,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.Caller(ctx).String(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
