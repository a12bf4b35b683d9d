package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chain-audit/backend/internal/anchor"
	"chain-audit/backend/internal/anchor/producer"
	authservice "chain-audit/backend/internal/auth/service"
	challengerepo "chain-audit/backend/internal/challenge/repository"
	"chain-audit/backend/internal/config"
	"chain-audit/backend/internal/db"
	munirepo "chain-audit/backend/internal/municipality/repository"
	muniservice "chain-audit/backend/internal/municipality/service"
	recordrepo "chain-audit/backend/internal/record/repository"
	recordservice "chain-audit/backend/internal/record/service"
	"chain-audit/backend/internal/security"
	"chain-audit/backend/internal/server"
	"chain-audit/backend/internal/telemetry/otel"
	validatorrepo "chain-audit/backend/internal/validator/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "chain-audit-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL())

	// Anchor feed: Kafka when brokers are configured, otherwise the OTel
	// logger provider so events still land somewhere observable.
	var emitter anchor.EventEmitter
	if brokers := cfg.AnchorKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.AnchorKafkaTopic)
		if err != nil {
			log.Fatalf("anchor: %v", err)
		}
		if kafkaProducer != nil {
			defer kafkaProducer.Close()
			emitter = kafkaProducer
		}
	}
	if emitter == nil {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}

	challenges := challengerepo.NewPostgresRepository(conn)
	validators := validatorrepo.NewPostgresRepository(conn)
	municipalities := munirepo.NewPostgresRepository(conn)
	records := recordrepo.NewPostgresRepository(conn)

	auth := authservice.NewAuthService(challenges, validators, tokens, cfg.ChallengeTTL())
	ledger := recordservice.NewLedger(records, emitter)
	muniSvc := muniservice.NewMunicipalityService(municipalities, records)

	handler := server.NewHandler(server.Deps{
		Auth:           auth,
		Tokens:         tokens,
		Ledger:         ledger,
		Municipalities: muniSvc,
		Validators:     validators,
		HealthPinger:   conn,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	gcCtx, gcCancel := context.WithCancel(ctx)
	defer gcCancel()
	go runChallengeGC(gcCtx, logger, challenges, cfg.GCInterval(), cfg.GCRetention())

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	gcCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// runChallengeGC deletes challenges whose expiry is older than retention, on
// every interval tick, until ctx is cancelled. Consumed rows inside the
// retention window are kept for audit.
func runChallengeGC(ctx context.Context, logger *slog.Logger, challenges *challengerepo.PostgresRepository, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			deleted, err := challenges.DeleteExpiredBefore(ctx, cutoff)
			if err != nil {
				logger.Error("challenge_gc_failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("challenge_gc", "deleted", deleted, "cutoff", cutoff)
			}
		}
	}
}
