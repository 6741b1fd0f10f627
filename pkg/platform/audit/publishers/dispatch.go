// Package publishers routes audit events to the publisher for their category.
package publishers

import (
	"context"

	audit "secutoken/pkg/platform/audit"
)

// Dispatcher implements audit.Emitter by category: compliance events go to a
// fail-closed publisher, security and ops events to best-effort ones.
type Dispatcher struct {
	Compliance audit.Emitter
	Security   audit.Emitter
	Ops        audit.Emitter
}

func (d *Dispatcher) Emit(ctx context.Context, event audit.Event) error {
	var target audit.Emitter
	switch audit.AuditEvent(event.Action).Category() {
	case audit.CategoryCompliance:
		target = d.Compliance
	case audit.CategorySecurity:
		target = d.Security
	default:
		target = d.Ops
	}
	if target == nil {
		return nil
	}
	return target.Emit(ctx, event)
}
