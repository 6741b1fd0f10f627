package publishers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "secutoken/pkg/platform/audit"
)

type recorder struct{ actions []string }

func (r *recorder) Emit(_ context.Context, e audit.Event) error {
	r.actions = append(r.actions, e.Action)
	return nil
}

func TestDispatcherRoutesByCategory(t *testing.T) {
	comp, sec, ops := &recorder{}, &recorder{}, &recorder{}
	d := &Dispatcher{Compliance: comp, Security: sec, Ops: ops}
	ctx := context.Background()

	require.NoError(t, d.Emit(ctx, audit.Event{Action: string(audit.EventTokenTransferred)}))
	require.NoError(t, d.Emit(ctx, audit.Event{Action: string(audit.EventRoleGranted)}))
	require.NoError(t, d.Emit(ctx, audit.Event{Action: string(audit.EventTransferChecked)}))
	require.NoError(t, d.Emit(ctx, audit.Event{Action: "something_new"}))

	assert.Equal(t, []string{"token_transferred"}, comp.actions)
	assert.Equal(t, []string{"role_granted"}, sec.actions)
	assert.Equal(t, []string{"transfer_checked", "something_new"}, ops.actions)
}

func TestDispatcherToleratesMissingTarget(t *testing.T) {
	d := &Dispatcher{}
	assert.NoError(t, d.Emit(context.Background(), audit.Event{Action: string(audit.EventTokenBurned)}))
}
