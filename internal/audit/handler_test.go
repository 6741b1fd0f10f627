package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secutoken/internal/compliance/models"
	trust "secutoken/internal/trust/service"
	truststore "secutoken/internal/trust/store"
	id "secutoken/pkg/domain"
	audit "secutoken/pkg/platform/audit"
	"secutoken/pkg/platform/audit/store/memory"
	"secutoken/pkg/requestcontext"
	"secutoken/pkg/testutil"
)

const (
	master   = "0x0000000000000000000000000000000000000b0b"
	agent    = "0x0000000000000000000000000000000000000a0a"
	stranger = "0x00000000000000000000000000000000000000b1"
	alice    = "0x00000000000000000000000000000000000000a1"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := requestcontext.WithCaller(context.Background(), id.Address(master))
	roles, err := trust.New(truststore.NewInMemoryStore())
	require.NoError(t, err)
	require.NoError(t, roles.Seed(ctx, master))
	require.NoError(t, roles.Grant(ctx, agent, models.RoleTransferAgent))

	store := memory.NewInMemoryStore()
	for _, ev := range []audit.Event{
		{Action: string(audit.EventTokenIssued), Subject: alice, Amount: 100},
		{Action: string(audit.EventTokenTransferred), Subject: stranger, Counterparty: alice, Amount: 5},
		{Action: string(audit.EventRoleGranted), Subject: agent},
	} {
		require.NoError(t, store.Append(context.Background(), ev))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(store, roles, logger)
	require.NoError(t, err)
	r := chi.NewRouter()
	NewHandler(svc, logger).Register(r)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) eventsResponse {
	t.Helper()
	var body eventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuditQueries(t *testing.T) {
	router := newRouter(t)

	testutil.Given(t, "an audit trail with three events", func(t *testing.T) {
		testutil.When(t, "a transfer agent lists a wallet", func(t *testing.T) {
			req := testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, "/audit/events/"+alice), agent)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "events naming the wallet either way are returned", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, 2, decode(t, rec).Total)
			})
		})

		testutil.When(t, "the master asks for the latest event", func(t *testing.T) {
			req := testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, "/audit/events?limit=1"), master)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "only the newest is returned", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				body := decode(t, rec)
				require.Len(t, body.Events, 1)
				assert.Equal(t, string(audit.EventRoleGranted), body.Events[0].Action)
			})
		})

		testutil.When(t, "a caller without a role asks", func(t *testing.T) {
			req := testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, "/audit/events"), stranger)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the request is forbidden", func(t *testing.T) {
				assert.Equal(t, http.StatusForbidden, rec.Code)
			})
		})

		testutil.When(t, "the limit is not a number", func(t *testing.T) {
			req := testutil.WithCaller(testutil.NewRequest(t, http.MethodGet, "/audit/events?limit=ten"), master)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the request is rejected", func(t *testing.T) {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		})
	})
}

func TestAnonymousCallerIsUnauthorized(t *testing.T) {
	rec := testutil.DoRequest(newRouter(t), testutil.NewRequest(t, http.MethodGet, "/audit/events"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
