package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"identix/internal/app"
	"identix/internal/credential/handler"
	jwttoken "identix/internal/jwt_token"
	"identix/internal/platform/config"
	"identix/internal/platform/logger"
	httptransport "identix/internal/transport/http"
	"identix/pkg/platform/middleware/auth"
	"identix/pkg/platform/middleware/request"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
	// multipart framing and form fields on top of the document itself
	uploadOverhead = 64 << 10
)

// main wires configuration, backends and the HTTP router, then runs the
// server and the orphan sweep until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.NewWithLevel(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing identix",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ledger_backend", cfg.Ledger.Backend,
		"metadata_backend", cfg.Metadata.Backend,
		"storage_backend", cfg.Storage.Backend,
		"scan_mode", cfg.Ledger.ScanMode,
		"max_scan", cfg.Ledger.MaxScan,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close backends", "error", err)
		}
	}()

	sweep, err := a.Reconciler()
	if err != nil {
		log.Warn("orphan sweep disabled", "error", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.Issuer.JWTSecret, cfg.Issuer.TokenIssuer, cfg.Issuer.TokenTTL)
	requireIssuer := auth.RequireIssuer(jwttoken.NewJWTServiceAdapter(jwtService), log)

	credentials := handler.New(a.Issuer, a.Verifier, log,
		handler.WithMaxUploadBytes(cfg.MaxDocumentBytes+uploadOverhead))
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        request.NewMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		RequireIssuer:  requireIssuer,
		MaxBodyBytes:   cfg.MaxDocumentBytes + uploadOverhead,
	}, a.Health, credentials)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if sweep != nil {
		g.Go(func() error {
			if err := sweep.Start(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.RecordPoolStats()
			case <-gctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}
