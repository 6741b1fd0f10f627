// Package audit serves the audit trail to operators. Events are written by
// the publishers in pkg/platform/audit; this package only reads them.
package audit

import (
	"context"
	"errors"
	"log/slog"

	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	audit "secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Reader is the query side of an audit store.
type Reader interface {
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Authorizer interface {
	HasRole(ctx context.Context, addr id.Address, role models.Role) (bool, error)
}

// Service answers audit queries for masters and transfer agents.
type Service struct {
	reader     Reader
	authorizer Authorizer
	logger     *slog.Logger
}

func NewService(reader Reader, authorizer Authorizer, logger *slog.Logger) (*Service, error) {
	if reader == nil {
		return nil, errors.New("audit reader is required")
	}
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: reader, authorizer: authorizer, logger: logger}, nil
}

// ListBySubject returns events about a wallet or investor.
func (s *Service) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	events, err := s.reader.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

// ListRecent returns the latest events. limit is clamped to [1, 500].
func (s *Service) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	events, err := s.reader.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

func (s *Service) authorize(ctx context.Context) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	for _, role := range []models.Role{models.RoleMaster, models.RoleTransferAgent} {
		ok, err := s.authorizer.HasRole(ctx, caller, role)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
		}
		if ok {
			return nil
		}
	}
	s.logger.WarnContext(ctx, "audit read denied",
		"caller", caller,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeForbidden, "caller lacks the required role")
}
