package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-checkin-agent/internal/config"
	"github.com/go-checkin-agent/internal/infrastructure/authority"
	"github.com/go-checkin-agent/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-checkin-agent/internal/infrastructure/jwt"
	s3infra "github.com/go-checkin-agent/internal/infrastructure/s3"
	"github.com/go-checkin-agent/internal/infrastructure/sqlite"
	transporthttp "github.com/go-checkin-agent/internal/transport/http"
	appmiddleware "github.com/go-checkin-agent/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if cfg.AgentKey == "" {
		log.Fatal("AGENT_API_KEY must be set: the local UI presents it as a bearer key")
	}
	ctx := context.Background()

	// AWS is only needed for the DynamoDB backend and the receipt archive.
	var awsCfg aws.Config
	if cfg.StoreBackend == config.StoreDynamo || cfg.ReceiptsBucket != "" {
		c, err := dynamo.LoadAWSConfig(ctx, cfg)
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		awsCfg = c
	}

	var (
		store transporthttp.KVStore
		db    *sql.DB
	)
	switch cfg.StoreBackend {
	case config.StoreDynamo:
		dynamoClient := dynamo.NewClient(awsCfg, cfg)
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
		store = dynamo.NewKVStore(dynamoClient, cfg.DynamoTables.Credentials)
	case config.StoreSQLite:
		var err error
		db, err = sqlite.InitDB(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		kv := sqlite.NewKVStore(db)
		if n, err := kv.PurgeExpired(ctx, time.Now()); err != nil {
			log.Printf("WARN: purge expired records: %v", err)
		} else if n > 0 {
			log.Printf("Purged %d expired records", n)
		}
		store = kv
	default:
		log.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// Receipt archive (optional).
	var receipts transporthttp.ReceiptArchive
	if cfg.ReceiptsBucket != "" {
		receipts = s3infra.NewReceiptArchive(s3infra.NewClient(awsCfg, cfg), cfg.ReceiptsBucket)
	}

	limiter := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.TrustProxyHeaders)
	defer limiter.Stop()

	deps := &transporthttp.Deps{
		Store:     store,
		Authority: authority.NewClient(cfg),
		Tokens:    jwtinfra.NewInspector(),
		Receipts:  receipts,
		Limiter:   limiter,
	}
	svcs := transporthttp.NewServices(cfg, deps)

	if n := svcs.Credentials.SweepExpired(ctx); n > 0 {
		log.Printf("Swept %d expired check-in tokens", n)
	}

	router, err := transporthttp.NewRouter(cfg, deps, svcs)
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.AppHost, cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AuthorityTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Check-in agent starting on %s (env=%s, store=%s)", srv.Addr, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agent...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if db != nil {
		if err := sqlite.CloseDB(db); err != nil {
			log.Printf("close sqlite: %v", err)
		}
	}
	log.Println("Agent stopped")
}
