package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"

	"juntas/internal/cases/access"
	caseshandler "juntas/internal/cases/handler"
	casesmetrics "juntas/internal/cases/metrics"
	casesservice "juntas/internal/cases/service"
	"juntas/internal/cases/store/casestore"
	"juntas/internal/cases/store/dictamenstore"
	"juntas/internal/cases/store/documentstore"
	"juntas/internal/directory/cache"
	dirhandler "juntas/internal/directory/handler"
	dirservice "juntas/internal/directory/service"
	dirstore "juntas/internal/directory/store"
	jwttoken "juntas/internal/jwt_token"
	"juntas/internal/notification"
	"juntas/internal/platform/config"
	"juntas/internal/platform/dynamo"
	"juntas/internal/platform/health"
	"juntas/internal/platform/kafka"
	"juntas/internal/platform/metrics"
	"juntas/internal/platform/middleware"
	"juntas/internal/platform/postgres"
	"juntas/internal/platform/redis"
	ratelimitmetrics "juntas/internal/ratelimit/metrics"
	ratelimitmw "juntas/internal/ratelimit/middleware"
	ratelimitmodels "juntas/internal/ratelimit/models"
	"juntas/internal/ratelimit/store/bucket"
	"juntas/pkg/platform/audit"
	"juntas/pkg/platform/audit/publisher"
	auditmemory "juntas/pkg/platform/audit/store/memory"
	auditpostgres "juntas/pkg/platform/audit/store/postgres"
	authmw "juntas/pkg/platform/middleware/auth"
	"juntas/pkg/platform/middleware/metadata"
	"juntas/pkg/platform/middleware/request"
	"juntas/pkg/platform/middleware/requesttime"
)

type application struct {
	router   http.Handler
	notifier *notification.Notifier
	closers  []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type caseStores struct {
	cases     casesservice.CaseStore
	documents casesservice.DocumentStore
	dictamens casesservice.DictamenStore
	directory dirservice.Store
	audit     audit.Store
	tx        casesservice.TxRunner
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*application, error) {
	app := &application{}
	checks := health.New(2 * time.Second)

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if db != nil {
		app.closers = append(app.closers, func() { _ = db.Close() })
		checks.Add("postgres", db.PingContext)
	}

	stores := newStores(db)
	if err := selectDictamenBackend(ctx, cfg.Dictamen, db, &stores, log); err != nil {
		app.Close()
		return nil, err
	}

	var (
		lookup  cache.Lookup            = stores.directory
		buckets ratelimitmw.BucketStore = bucket.NewInMemoryBucketStore()
	)
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		app.Close()
		return nil, err
	}
	if rc != nil {
		app.closers = append(app.closers, func() { _ = rc.Close() })
		checks.Add("redis", rc.Health)
		lookup = cache.NewRedisLookup(stores.directory, rc.Client, cfg.Redis.CacheTTL, log)
		buckets = bucket.NewRedisBucketStore(rc.Client)
		log.Info("directory cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	dispatcher, kc, err := newDispatcher(ctx, cfg.Kafka, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	if kc != nil {
		app.closers = append(app.closers, kc.Close)
		checks.Add("kafka", kc.Ping)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewWithRegistry(registry, registry)

	auditPublisher := publisher.New(stores.audit,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(registry)),
	)
	app.notifier = notification.NewNotifier(dispatcher,
		notification.WithLogger(log),
		notification.WithMetrics(notification.NewMetrics(registry)),
		notification.WithTimeout(cfg.Notification.Timeout),
	)

	guard := access.New()
	directory := dirservice.New(stores.directory, guard,
		dirservice.WithLogger(log),
		dirservice.WithLookup(lookup),
		dirservice.WithAuditPublisher(auditPublisher),
	)
	cases := casesservice.New(stores.cases, stores.documents, stores.dictamens, lookup, guard,
		casesservice.WithLogger(log),
		casesservice.WithMetrics(casesmetrics.NewWithRegistry(registry)),
		casesservice.WithAuditPublisher(auditPublisher),
		casesservice.WithNotifier(app.notifier),
		casesservice.WithTxRunner(stores.tx),
		casesservice.WithTracer(otel.Tracer("juntas/cases")),
		casesservice.WithRequiredCategories(cfg.Cases.RequiredDocumentCategories),
	)

	if cfg.Bootstrap.AdminEmail != "" {
		admin, created, err := directory.EnsureBootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminPassword)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.Info("bootstrap admin created", "user_id", admin.ID)
		}
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	limiter := ratelimitmw.New(buckets,
		map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit{
			ratelimitmodels.ClassRead:  {Requests: cfg.RateLimit.ReadPerMinute, Window: time.Minute},
			ratelimitmodels.ClassWrite: {Requests: cfg.RateLimit.WritePerMinute, Window: time.Minute},
		},
		log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(ratelimitmetrics.New(registry)),
	)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(httpMetrics))

	r.Method(http.MethodGet, "/health", checks)
	r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log))
		r.Use(limiter.RateLimitAuthenticated)
		caseshandler.New(cases, log, cfg.MaxUploadBytes).Register(r)
		dirhandler.New(directory, log).Register(r)
	})

	app.router = r
	return app, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return nil, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newStores(db *sql.DB) caseStores {
	if db == nil {
		return caseStores{
			cases:     casestore.NewInMemory(),
			documents: documentstore.NewInMemory(),
			dictamens: dictamenstore.NewInMemory(),
			directory: dirstore.NewInMemory(),
			audit:     auditmemory.NewInMemoryStore(),
		}
	}
	return caseStores{
		cases:     casestore.NewPostgres(db),
		documents: documentstore.NewPostgres(db),
		dictamens: dictamenstore.NewPostgres(db),
		directory: dirstore.NewPostgres(db),
		audit:     auditpostgres.New(db),
		tx:        postgres.NewTxRunner(db),
	}
}

func selectDictamenBackend(ctx context.Context, cfg config.DictamenConfig, db *sql.DB, stores *caseStores, log *slog.Logger) error {
	switch cfg.Backend {
	case config.DictamenBackendDynamoDB:
		client, err := dynamo.New(ctx, cfg)
		if err != nil {
			return err
		}
		if err := dynamo.EnsureTable(ctx, client, cfg.Table); err != nil {
			return err
		}
		stores.dictamens = dictamenstore.NewDynamo(client, cfg.Table)
	case config.DictamenBackendPostgres:
		if db == nil {
			return fmt.Errorf("dictamen backend %q requires DATABASE_URL", cfg.Backend)
		}
	case config.DictamenBackendMemory:
		stores.dictamens = dictamenstore.NewInMemory()
	default:
		return fmt.Errorf("unknown dictamen backend %q", cfg.Backend)
	}
	log.Info("dictamen backend selected", "backend", cfg.Backend)
	return nil
}

func newDispatcher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (notification.Dispatcher, *kgo.Client, error) {
	client, err := kafka.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Info("KAFKA_BROKERS not set, notifications are logged only")
		return notification.NewLogDispatcher(log), nil, nil
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Topic, 1, 1); err != nil {
		client.Close()
		return nil, nil, err
	}
	return notification.NewKafkaDispatcher(client, cfg.Topic, notification.WithKafkaLogger(log)), client, nil
}
