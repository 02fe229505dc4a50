package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentgate/internal/authority/handler"
	"consentgate/internal/authority/service"
	"consentgate/internal/authority/store"
	"consentgate/internal/authority/store/memory"
	"consentgate/internal/authority/store/postgres"
	"consentgate/internal/authority/token"
	"consentgate/internal/platform/config"
	"consentgate/internal/platform/httpserver"
	"consentgate/internal/platform/logger"
	"consentgate/internal/platform/metrics"
	audit "consentgate/pkg/platform/audit"
	auditkafka "consentgate/pkg/platform/audit/kafka"
	"consentgate/pkg/platform/audit/publisher"
	auditmemory "consentgate/pkg/platform/audit/store/memory"
)

// main wires the reference consent authority: store, audit sink, service,
// HTTP surface. Business logic lives in internal/authority.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sink, closeSink, err := openAuditSink(ctx, cfg)
	if err != nil {
		log.Error("audit sink init failed", "error", err)
		os.Exit(1)
	}
	defer closeSink()
	auditPublisher := publisher.New(sink,
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(256),
	)
	defer auditPublisher.Close()

	tokens := token.NewService(cfg.JWTSigningKey, "consentgate-authority")
	m := metrics.New()
	svcOpts := []service.Option{service.WithAudit(auditPublisher)}
	if cfg.DatabaseURL == "" {
		// Memory store means development; surface the codes somewhere.
		svcOpts = append(svcOpts, service.WithRevealCodes())
	}
	svc := service.New(st, tokens, log, m, cfg.OTPCodeTTL, cfg.AgeSessionTTL, svcOpts...)

	router := chi.NewRouter()
	handler.New(svc, log, m).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting consentgate authority", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Server) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

func openAuditSink(ctx context.Context, cfg config.Server) (audit.Appender, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return auditmemory.NewInMemoryStore(), func() {}, nil
	}
	sink, err := auditkafka.New(ctx, cfg.KafkaBrokers, auditkafka.WithTopic(cfg.AuditTopic))
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { sink.Close() }, nil
}
