package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/omnibus"
	"secutoken/internal/compliance/service"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
	registrymodels "secutoken/internal/registry/models"
	registry "secutoken/internal/registry/service"
	registrystore "secutoken/internal/registry/store"
	trust "secutoken/internal/trust/service"
	truststore "secutoken/internal/trust/store"
	id "secutoken/pkg/domain"
	"secutoken/pkg/requestcontext"
)

const (
	token  id.Address = "0x00000000000000000000000000000000000000f0"
	master id.Address = "0x0000000000000000000000000000000000000b0b"
	agent  id.Address = "0x0000000000000000000000000000000000000a0a"
	alice  id.Address = "0x00000000000000000000000000000000000000a1"
	stray  id.Address = "0x00000000000000000000000000000000000000dd"
)

type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	service *service.Service
	now     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithCaller(requestcontext.WithTime(context.Background(), s.now), master)

	roles, err := trust.New(truststore.NewInMemoryStore())
	s.Require().NoError(err)
	s.Require().NoError(roles.Seed(ctx, master))
	s.Require().NoError(roles.Grant(ctx, agent, models.RoleTransferAgent))

	reg, err := registry.New(registrystore.NewInMemoryStore(), roles)
	s.Require().NoError(err)
	req := registrymodels.RegisterInvestorRequest{ID: "inv-alice", Country: "US"}
	s.Require().NoError(req.Validate())
	_, err = reg.RegisterInvestor(ctx, req)
	s.Require().NoError(err)
	s.Require().NoError(reg.AddWallet(ctx, "inv-alice", alice))

	cfg := models.DefaultConfig()
	cfg.Countries = map[string]models.Region{"US": models.RegionUS}
	st := store.NewMemory(state.New(cfg))
	s.service, err = service.New(st, reg, reg, roles, service.WithTokenAddress(token))
	s.Require().NoError(err)
	reconciler, err := omnibus.New(st, reg, reg, omnibus.WithTokenAddress(token))
	s.Require().NoError(err)

	_, err = s.service.ValidateIssuance(ctx, token, service.IssuanceRequest{To: alice, Amount: 500})
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithTime(req.Context(), s.now)
			if caller := req.Header.Get("X-Test-Caller"); caller != "" {
				ctx = requestcontext.WithCaller(ctx, id.Address(caller))
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(s.service, reconciler, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any, caller id.Address) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller.String())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestCheckReportsResultCodes() {
	rec := s.do(http.MethodPost, "/compliance/check", map[string]any{"from": alice, "to": stray, "amount": 10}, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var res models.Result
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&res))
	s.Equal(models.CodeWalletNotInRegistry, res.Code)
	s.Equal("Wallet not in registry service", res.Reason)

	rec = s.do(http.MethodPost, "/compliance/check", map[string]any{"from": "nope", "to": stray, "amount": 10}, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestLockLifecycle() {
	rec := s.do(http.MethodPost, "/compliance/locks/"+alice.String(), map[string]any{"value": 200, "reason_text": "vesting"}, agent)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/compliance/locks/"+alice.String(), nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var view service.LockView
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&view))
	s.Len(view.Locks, 1)
	s.Equal(uint64(300), view.Transferable)

	rec = s.do(http.MethodDelete, "/compliance/locks/"+alice.String()+"/0", nil, agent)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/compliance/locks/"+alice.String()+"/x", nil, agent)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestConfigUpdateNeedsMaster() {
	cfg := models.DefaultConfig()
	cfg.Countries = map[string]models.Region{"US": models.RegionUS}
	cfg.Limits.Total = 10

	rec := s.do(http.MethodPut, "/compliance/config", cfg, agent)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/compliance/config", cfg, master)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var out models.Config
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&out))
	s.Equal(uint64(2), out.Version)
	s.Equal(10, out.Limits.Total)

	cfg.Service = "casino"
	rec = s.do(http.MethodPut, "/compliance/config", cfg, master)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestReadEndpoints() {
	rec := s.do(http.MethodGet, "/compliance/counters", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var counts struct {
		Counters map[string]int `json:"counters"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&counts))
	s.Equal(1, counts.Counters["total"])

	rec = s.do(http.MethodGet, "/compliance/verify", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/compliance/omnibus/"+stray.String()+"/partitions", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, "/compliance/investors/inv-alice/flags", map[string]bool{"liquidate_only": true}, agent)
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodGet, "/compliance/investors/inv-alice/flags", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var flags models.InvestorFlags
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&flags))
	s.True(flags.LiquidateOnly)
}
