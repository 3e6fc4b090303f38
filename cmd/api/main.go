package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gram-sevak/internal/application/auth"
	"github.com/gram-sevak/internal/config"
	"github.com/gram-sevak/internal/infrastructure/dynamo"
	jwtinfra "github.com/gram-sevak/internal/infrastructure/jwt"
	"github.com/gram-sevak/internal/infrastructure/memory"
	redisinfra "github.com/gram-sevak/internal/infrastructure/redis"
	s3infra "github.com/gram-sevak/internal/infrastructure/s3"
	"github.com/gram-sevak/internal/infrastructure/smtp"
	"github.com/gram-sevak/internal/pkg/clock"
	"github.com/gram-sevak/internal/pkg/otpcode"
	transporthttp "github.com/gram-sevak/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()
	clk := clock.New()

	store, closer, err := newCredentialStore(ctx, cfg, clk)
	if err != nil {
		log.Fatalf("credential store: %v", err)
	}
	defer closer.Close()
	log.Printf("Credential store: %s", cfg.CredentialStore)

	// JWT provider (optional, verification succeeds without a session token if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	deps := &transporthttp.Deps{
		Credentials: store,
		Mailer:      smtp.NewMailer(cfg),
		CodeGen:     otpcode.New(cfg.OTPCryptoRand),
		Clock:       clk,
		JWTProvider: jwtProvider,
	}

	// S3 attachment offload (optional).
	if cfg.S3BucketName != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		deps.Attachments = s3infra.NewStore(s3Client, cfg.S3BucketName)
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.SMTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newCredentialStore builds the backend named by CREDENTIAL_STORE.
func newCredentialStore(ctx context.Context, cfg *config.Config, clk clock.Clock) (auth.CredentialStore, io.Closer, error) {
	switch cfg.CredentialStore {
	case config.StoreMemory:
		s := memory.NewCredentialStore(clk)
		return s, s, nil
	case config.StoreRedis:
		client, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisinfra.NewCredentialStore(client, clk), client, nil
	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		// Creates the table if it doesn't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewCredentialStore(client, cfg.DynamoTables.OTPCodes), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown CREDENTIAL_STORE %q", cfg.CredentialStore)
	}
}
