package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	auditquery "secutoken/internal/audit"
	compliancehandler "secutoken/internal/compliance/handler"
	compliancemetrics "secutoken/internal/compliance/metrics"
	"secutoken/internal/compliance/omnibus"
	"secutoken/internal/compliance/ports"
	complianceservice "secutoken/internal/compliance/service"
	"secutoken/internal/compliance/state"
	compliancestore "secutoken/internal/compliance/store"
	pgstore "secutoken/internal/compliance/store/postgres"
	sqlitestore "secutoken/internal/compliance/store/sqlite"
	jwttoken "secutoken/internal/jwt_token"
	"secutoken/internal/platform/config"
	"secutoken/internal/platform/httpserver"
	"secutoken/internal/platform/kafka"
	kafkaconsumer "secutoken/internal/platform/kafka/consumer"
	"secutoken/internal/platform/kafka/producer"
	"secutoken/internal/platform/logger"
	"secutoken/internal/platform/metrics"
	"secutoken/internal/platform/postgres"
	platformredis "secutoken/internal/platform/redis"
	registryhandler "secutoken/internal/registry/handler"
	registryservice "secutoken/internal/registry/service"
	registrystore "secutoken/internal/registry/store"
	tokenhandler "secutoken/internal/token/handler"
	tokenservice "secutoken/internal/token/service"
	trusthandler "secutoken/internal/trust/handler"
	trustservice "secutoken/internal/trust/service"
	truststore "secutoken/internal/trust/store"
	audit "secutoken/pkg/platform/audit"
	auditconsumer "secutoken/pkg/platform/audit/consumer"
	"secutoken/pkg/platform/audit/publishers"
	compliancepub "secutoken/pkg/platform/audit/publishers/compliance"
	"secutoken/pkg/platform/audit/publishers/ops"
	"secutoken/pkg/platform/audit/publishers/security"
	auditmemory "secutoken/pkg/platform/audit/store/memory"
	auditpostgres "secutoken/pkg/platform/audit/store/postgres"
	"secutoken/pkg/platform/audit/worker"
	"secutoken/pkg/platform/httputil"
	adminmw "secutoken/pkg/platform/middleware/admin"
	authmw "secutoken/pkg/platform/middleware/auth"
	"secutoken/pkg/platform/middleware/metadata"
	request "secutoken/pkg/platform/middleware/request"
	"secutoken/pkg/platform/middleware/requesttime"
	"secutoken/pkg/requestcontext"
)

const shutdownGrace = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// resources holds connections that outlive a single component.
type resources struct {
	db     *sql.DB
	redis  *goredis.Client
	closes []func() error
}

func (i *resources) close(log *slog.Logger) {
	for j := len(i.closes) - 1; j >= 0; j-- {
		if err := i.closes[j](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()
	res := &resources{}
	defer res.close(log)

	if cfg.Redis.URL != "" {
		rc, err := platformredis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		res.redis = rc
		res.closes = append(res.closes, rc.Close)
	}
	if cfg.StorageDriver == config.StoragePostgres {
		db, err := postgres.Open(ctx, cfg.StorageDSN)
		if err != nil {
			return err
		}
		res.db = db
		res.closes = append(res.closes, db.Close)
	}

	complianceCfg, err := config.LoadCompliance(cfg.CompliancePath)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Audit.
	var (
		auditStore  audit.Store
		pgAudit     *auditpostgres.Store
		txStore     *compliancePostgresTx
		stage       *compliancestore.AuditStage
		stateStore  ports.StateStore
		auditReader auditquery.Reader
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgAudit = auditpostgres.New(res.db)
		if err := pgAudit.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := pgstore.EnsureSchema(ctx, res.db); err != nil {
			return err
		}
		initial, err := pgstore.Load(ctx, res.db, complianceCfg)
		if err != nil {
			return err
		}
		txStore = newCompliancePostgresTx(res.db, initial)
		stateStore = txStore
		auditStore = pgAudit
		auditReader = pgAudit
	case config.StorageSQLite:
		mem := auditmemory.NewInMemoryStore()
		auditStore, auditReader = mem, mem
		stage = compliancestore.NewAuditStage(mem)
		st, db, err := sqlitestore.Open(ctx, cfg.StorageDSN, complianceCfg, compliancestore.WithAuditStage(stage))
		if err != nil {
			return err
		}
		res.closes = append(res.closes, db.Close)
		stateStore = st
	default:
		mem := auditmemory.NewInMemoryStore()
		auditStore, auditReader = mem, mem
		stage = compliancestore.NewAuditStage(mem)
		stateStore = compliancestore.NewMemory(state.New(complianceCfg), compliancestore.WithAuditStage(stage))
	}

	var complianceAuditStore audit.Store = auditStore
	switch {
	case txStore != nil:
		complianceAuditStore = &txAuditStore{Store: auditStore, tx: txStore}
	case stage != nil:
		complianceAuditStore = stage
	}
	securityPublisher := security.New(auditStore, 1024, security.WithLogger(log))
	dispatcher := &publishers.Dispatcher{
		Compliance: compliancepub.New(complianceAuditStore,
			compliancepub.WithLogger(log),
			compliancepub.WithMetrics(compliancepub.NewMetrics(m.Registry)),
		),
		Security: securityPublisher,
		Ops: ops.New(auditStore,
			ops.WithSampler(ops.NewSampler(0.1)),
			ops.WithMetrics(ops.NewMetrics(m.Registry)),
			ops.WithLogger(log),
		),
	}
	g.Go(func() error { return securityPublisher.Run(gctx) })

	if cfg.Kafka.Enabled() {
		if err := startAuditPipeline(gctx, g, cfg.Kafka, pgAudit, log, res); err != nil {
			return err
		}
	}

	// Collaborators.
	var (
		roleStore     trustservice.Store
		investorStore registryservice.Store
		revocations   authmw.TokenRevocationChecker
	)
	if res.redis != nil {
		roleStore = truststore.NewRedis(res.redis)
		investorStore = registrystore.NewRedis(res.redis)
		revocations = jwttoken.NewRedisRevocationList(res.redis)
	} else {
		roleStore = truststore.NewInMemoryStore()
		investorStore = registrystore.NewInMemoryStore()
		revocations = jwttoken.NewInMemoryRevocationList()
	}

	trust, err := trustservice.New(roleStore,
		trustservice.WithLogger(log),
		trustservice.WithAuditPublisher(dispatcher),
	)
	if err != nil {
		return err
	}
	seedCtx := requestcontext.WithTime(ctx, time.Now().UTC())
	if err := trust.Seed(seedCtx, cfg.MasterAddress); err != nil {
		return fmt.Errorf("seed master role: %w", err)
	}

	registry, err := registryservice.New(investorStore, trust,
		registryservice.WithLogger(log),
		registryservice.WithAuditPublisher(dispatcher),
	)
	if err != nil {
		return err
	}

	// Compliance engine.
	cm := compliancemetrics.New(m.Registry)
	compliance, err := complianceservice.New(stateStore, registry, registry, trust,
		complianceservice.WithTokenAddress(cfg.TokenAddress),
		complianceservice.WithLogger(log),
		complianceservice.WithAuditPublisher(dispatcher),
		complianceservice.WithMetrics(cm),
	)
	if err != nil {
		return err
	}
	registry.SetListener(compliance)

	reconciler, err := omnibus.New(stateStore, registry, registry,
		omnibus.WithTokenAddress(cfg.TokenAddress),
		omnibus.WithLogger(log),
		omnibus.WithAuditPublisher(dispatcher),
		omnibus.WithMetrics(cm),
	)
	if err != nil {
		return err
	}

	token, err := tokenservice.New(compliance, reconciler, trust,
		tokenservice.WithLogger(log),
		tokenservice.WithAuditPublisher(dispatcher),
	)
	if err != nil {
		return err
	}

	auditSvc, err := auditquery.NewService(auditReader, trust, log)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(request.Recovery(log))
	router.Use(metadata.ClientMetadata)
	router.Use(request.Logger(log))
	router.Use(requestMetrics(m))
	router.Use(requesttime.Middleware)
	router.Use(request.Timeout(30 * time.Second))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.AdminToken, log))
		r.Handle("/metrics", m.Handler())
	})
	router.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(authmw.RequireAuth(jwtService.Validator(), revocations, log))
		tokenhandler.New(token, log).Register(r)
		compliancehandler.New(compliance, reconciler, log).Register(r)
		registryhandler.New(registry, log).Register(r)
		trusthandler.New(trust, log).Register(r)
		auditquery.NewHandler(auditSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.Info("starting secutoken",
			"addr", cfg.Addr,
			"storage", cfg.StorageDriver,
			"token", cfg.TokenAddress,
			"service", complianceCfg.Service,
			"config_version", complianceCfg.Version,
		)
		return httpserver.Run(gctx, srv, shutdownGrace)
	})

	err = g.Wait()
	if flushErr := securityPublisher.Flush(context.Background()); flushErr != nil {
		log.Warn("security audit flush failed", "error", flushErr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startAuditPipeline relays the outbox to Kafka and materializes the topic
// back into audit_events.
func startAuditPipeline(ctx context.Context, g *errgroup.Group, cfg config.KafkaConfig, outbox *auditpostgres.Store, log *slog.Logger, res *resources) error {
	prodClient, err := kafka.NewClient(ctx, kafka.Config{Brokers: cfg.Brokers, ClientID: "secutoken-relay"})
	if err != nil {
		return err
	}
	res.closes = append(res.closes, func() error { prodClient.Close(); return nil })
	if err := kafka.EnsureTopics(ctx, prodClient, 3, cfg.AuditTopic); err != nil {
		return err
	}

	consClient, err := kafka.NewClient(ctx,
		kafka.Config{Brokers: cfg.Brokers, ClientID: "secutoken-materializer"},
		append(kafkaconsumer.GroupOpts(cfg.ConsumerGroup, cfg.AuditTopic), kgo.FetchMaxWait(time.Second))...,
	)
	if err != nil {
		return err
	}
	res.closes = append(res.closes, func() error { consClient.Close(); return nil })

	relay := worker.NewRelay(outbox, producer.New(prodClient), cfg.AuditTopic, log)
	router := auditconsumer.NewRouter(log)
	router.Register(cfg.AuditTopic, auditconsumer.NewMaterializer(outbox, log))
	cons := kafkaconsumer.New(consClient, router, log)

	g.Go(func() error { return relay.Run(ctx) })
	g.Go(func() error { return cons.Run(ctx) })
	return nil
}

// requestMetrics records route level request counts after chi resolved the pattern.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveRequest(route, r.Method, fmt.Sprintf("%d", ww.status), time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
