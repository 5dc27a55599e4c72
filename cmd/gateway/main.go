// Command gateway is the composition root: it wires every component behind
// the transport gateway and starts the fiber app, mirroring the wiring order
// of the teacher's cmd/server/main.go (config -> services -> server -> listen).
package main

import (
	"context"
	"log"
	"os"

	"realtime-backend/internal/broadcast"
	"realtime-backend/internal/config"
	"realtime-backend/internal/connectionstore"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/orchestrator"
	"realtime-backend/internal/persistence/postgres"
	"realtime-backend/internal/persistence/redisadapt"
	"realtime-backend/internal/providers/awsadapt"
	"realtime-backend/internal/resilience"
	"realtime-backend/internal/sessionstore"
	"realtime-backend/internal/sweeper"
	"realtime-backend/internal/synthesize"
	"realtime-backend/internal/translate"
	"realtime-backend/internal/translationcache"
	"realtime-backend/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	development := os.Getenv("APP_ENV") != "production"
	lg, err := logging.New(development)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}

	m := metrics.NewRegistry()
	dm := resilience.NewDegradationManager()

	ctx := context.Background()
	pool, err := awsadapt.NewClientPool(ctx, cfg.AWS)
	if err != nil {
		logging.FatalExit(lg, "failed to initialize aws client pool", logging.Err(err))
	}
	defer pool.Close()

	translateBackend := awsadapt.NewTranslateAdapter(pool)
	pollyBackend := awsadapt.NewPollyAdapter(pool)
	transcriber := awsadapt.NewTranscribeService(pool)

	cache := translationcache.New(cfg.Session.TranslationCacheMaxEntries, cfg.Session.TranslationCacheTTL, m)
	translator := translate.New(translateBackend, cache, translate.DefaultPerTargetTimeout, dm, lg, m)
	synthesizer := synthesize.New(pollyBackend, synthesize.DefaultMaxConcurrency, dm, lg, m)

	sessions := sessionstore.New()
	connections := connectionstore.New()

	// audit and cross-instance dedup are both optional, enabled only when
	// their respective DSN/address is configured.
	auditStore, err := postgres.Open(cfg.Postgres.DSN)
	if err != nil {
		lg.Warn("session audit store disabled", logging.Err(err))
	}
	if auditStore != nil {
		lg.Info("session audit store enabled")
	}
	var sharedDedup *redisadapt.DedupCache
	if cfg.Redis.Addr != "" {
		sharedDedup = redisadapt.NewDedupCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Session.DedupCacheTTL)
		defer sharedDedup.Close()
		lg.Info("cross-instance dedup cache enabled", logging.String("addr", cfg.Redis.Addr))
	}

	gateway := transport.New(cfg, lg, m, sessions, connections, transcriber, nil)
	gateway.SetAuditStore(auditStore)
	gateway.SetDegradationManager(dm)
	if sharedDedup != nil {
		gateway.SetSharedDedup(sharedDedup)
	}

	fanout := broadcast.New(gateway.Transport(), connections, connections, sessions, cfg.Session.MaxConcurrentBroadcasts, lg, m)
	orch := orchestrator.New(sessions, connections, translator, cache, synthesizer, fanout, lg, m)
	gateway.SetOrchestrator(orch)

	sweep := sweeper.New(connections, sessions, gateway, cfg.Session.ConnectionIdleTimeout, cfg.Session.SweepInterval, lg, m)
	go sweep.Run(ctx)

	srv := transport.NewServer(cfg, gateway, m, dm, lg)
	if err := srv.Start(); err != nil {
		logging.FatalExit(lg, "server exited with error", logging.Err(err))
	}
}
