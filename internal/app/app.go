// Package app assembles the credential services from configuration. The
// server and the operator CLI share it so both talk to the same backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"identix/internal/credential/ledger"
	"identix/internal/credential/metrics"
	"identix/internal/credential/service"
	"identix/internal/credential/storage"
	"identix/internal/credential/store"
	"identix/internal/credential/token"
	"identix/internal/credential/workers/reconcile"
	"identix/internal/platform/config"
	"identix/internal/platform/database"
	"identix/internal/platform/health"
	"identix/internal/platform/kafka/producer"
	"identix/internal/platform/redis"
	"identix/migrations"
	"identix/pkg/platform/audit"
	auditmetrics "identix/pkg/platform/audit/metrics"
	"identix/pkg/platform/audit/publisher"
	kafkasink "identix/pkg/platform/audit/sink/kafka"
	auditmemory "identix/pkg/platform/audit/store/memory"
	auditpostgres "identix/pkg/platform/audit/store/postgres"
	"identix/pkg/platform/tracer"
)

// App holds the wired collaborators and everything that must be closed on
// shutdown.
type App struct {
	Config        config.Server
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	LedgerBackend ledger.Backend
	Ledger        *ledger.Client
	Store         store.Store
	Uploader      storage.Uploader
	Auditor       *audit.Logger
	Issuer        *service.Issuer
	Verifier      *service.Verifier
	Health        *health.Handler

	redis   *redis.Client
	closers []func() error
}

// New opens every configured backend. On error, whatever was already opened
// is closed before returning.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(reg),
		Health:  health.New(cfg.Environment),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	pool, err := a.openPostgres(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.openLedger(pool); err != nil {
		return nil, err
	}
	if err := a.openStore(ctx, pool, reg); err != nil {
		return nil, err
	}
	a.openUploader()
	if err := a.openAudit(pool, reg); err != nil {
		return nil, err
	}

	t := tracer.NewOTel()
	a.Ledger = ledger.NewClient(a.LedgerBackend,
		ledger.WithMaxScan(cfg.Ledger.MaxScan),
		ledger.WithScanMode(ledger.ScanMode(cfg.Ledger.ScanMode)),
		ledger.WithTimeout(cfg.Ledger.Timeout),
		ledger.WithMetrics(a.Metrics),
		ledger.WithTracer(t),
		ledger.WithLogger(logger),
	)
	a.Issuer = service.NewIssuer(a.Uploader, a.Ledger, a.Store,
		service.WithIssuerLogger(logger),
		service.WithIssuerAuditor(a.Auditor),
		service.WithIssuerMetrics(a.Metrics),
		service.WithIssuerTracer(t),
		service.WithTokenSource(token.NewGenerator()),
		service.WithMaxDocumentBytes(int(cfg.MaxDocumentBytes)),
		service.WithUploadTimeout(cfg.Storage.Timeout),
	)
	a.Verifier = service.NewVerifier(a.Store, a.Ledger,
		service.WithVerifierLogger(logger),
		service.WithVerifierAuditor(a.Auditor),
		service.WithVerifierMetrics(a.Metrics),
		service.WithVerifierTracer(t),
	)
	return a, nil
}

func (a *App) openPostgres(ctx context.Context) (*database.Pool, error) {
	if a.Config.DatabaseURL == "" {
		return nil, nil
	}
	dbCfg := database.DefaultConfig()
	dbCfg.URL = a.Config.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	a.Health.RegisterCheck("postgres", pool.Health)
	return pool, nil
}

func (a *App) openLedger(pool *database.Pool) error {
	switch a.Config.Ledger.Backend {
	case config.BackendPostgres:
		a.LedgerBackend = ledger.NewPostgresBackend(pool.DB())
	case config.BackendLevelDB:
		b, err := ledger.OpenLevelDB(a.Config.Ledger.LevelDBPath)
		if err != nil {
			return fmt.Errorf("open leveldb ledger: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		a.LedgerBackend = b
	default:
		a.LedgerBackend = ledger.NewMemoryBackend()
	}
	if p, ok := a.LedgerBackend.(ledger.Pinger); ok {
		a.Health.RegisterCheck("ledger", p.Ping)
	}
	return nil
}

func (a *App) openStore(ctx context.Context, pool *database.Pool, reg prometheus.Registerer) error {
	var s store.Store
	switch a.Config.Metadata.Backend {
	case config.BackendPostgres:
		s = store.NewPostgres(pool.DB())
	case config.BackendMySQL:
		g, err := store.OpenMySQL(a.Config.Metadata.MySQLDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, g.Close)
		if err := g.Migrate(ctx); err != nil {
			return err
		}
		a.Health.RegisterCheck("mysql", g.Ping)
		s = g
	case config.BackendRedis:
		client, err := redis.New(ctx, a.Config.Metadata.RedisURL, a.Config.Metadata.Timeout, reg)
		if err != nil {
			return err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		a.Health.RegisterCheck("redis", client.Health)
		s = store.NewRedis(client.Client)
	default:
		s = store.NewInMemoryStore()
	}
	a.Store = store.WithTimeout(s, a.Config.Metadata.Timeout)
	return nil
}

func (a *App) openUploader() {
	if a.Config.Storage.Backend == config.BackendIPFS {
		u := storage.NewIPFSUploader(a.Config.Storage.IPFSAPIURL, a.Config.Storage.Timeout)
		a.Health.RegisterCheck("ipfs", u.Ping)
		a.Uploader = u
		return
	}
	a.Uploader = storage.NewMemoryUploader()
}

func (a *App) openAudit(pool *database.Pool, reg prometheus.Registerer) error {
	var sink audit.Store = auditmemory.NewInMemoryStore()
	if pool != nil {
		sink = auditpostgres.New(pool.DB())
	}
	if brokers := a.Config.Audit.KafkaBrokers; len(brokers) > 0 {
		p, err := producer.New(producer.DefaultConfig(brokers), a.Logger)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		a.Health.RegisterCheck("kafka", p.Health)
		sink = kafkasink.New(sink, p, a.Config.Audit.Topic)
	}

	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(1024),
		publisher.WithPublisherLogger(a.Logger),
		publisher.WithMetrics(auditmetrics.New(reg)),
	)
	a.closers = append(a.closers, func() error { pub.Close(); return nil })
	a.Auditor = audit.NewLogger(a.Logger, pub)
	return nil
}

// Reconciler builds the orphan sweep. The configured ledger backend must be
// enumerable.
func (a *App) Reconciler(opts ...reconcile.Option) (*reconcile.Service, error) {
	enum, ok := a.LedgerBackend.(ledger.Enumerator)
	if !ok {
		return nil, fmt.Errorf("ledger backend %q cannot enumerate records", a.Config.Ledger.Backend)
	}
	base := []reconcile.Option{
		reconcile.WithInterval(a.Config.ReconcileInterval),
		reconcile.WithLogger(a.Logger),
		reconcile.WithAuditor(a.Auditor),
		reconcile.WithMetrics(a.Metrics),
	}
	return reconcile.New(enum, a.Store, append(base, opts...)...)
}

// RecordPoolStats refreshes connection pool gauges where a backend has them.
func (a *App) RecordPoolStats() {
	if a.redis != nil {
		a.redis.RecordPoolStats()
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
