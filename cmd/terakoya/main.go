package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terakoya-app/terakoya/internal/backup"
	"github.com/terakoya-app/terakoya/internal/database"
	"github.com/terakoya-app/terakoya/internal/email"
	"github.com/terakoya-app/terakoya/internal/logging"
	"github.com/terakoya-app/terakoya/internal/payment"
	"github.com/terakoya-app/terakoya/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("TERAKOYA_LOG_LEVEL"))

	port := os.Getenv("TERAKOYA_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("TERAKOYA_DB_PATH")
	if dbPath == "" {
		dbPath = "terakoya.db"
	}

	baseURL := os.Getenv("TERAKOYA_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	sessionSecret := os.Getenv("TERAKOYA_SESSION_SECRET")
	if sessionSecret == "" {
		slog.Error("TERAKOYA_SESSION_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("TERAKOYA_POSTMARK_TOKEN"),
		os.Getenv("TERAKOYA_FROM_EMAIL"),
	)

	cfg := server.Config{
		Stripe: payment.Config{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:     baseURL + "/pricing",
		},
		SessionSecret: []byte(sessionSecret),
		EmailClient:   emailClient,
	}

	srv := server.New(db, cfg, logger)

	snapshotInterval := 24 * time.Hour
	if v := os.Getenv("TERAKOYA_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			snapshotInterval = d
		} else {
			slog.Warn("invalid TERAKOYA_SNAPSHOT_INTERVAL, using default", "value", v)
		}
	}

	snapshots := backup.NewManager(backup.Config{
		Endpoint:   os.Getenv("TERAKOYA_S3_ENDPOINT"),
		Bucket:     os.Getenv("TERAKOYA_S3_BUCKET"),
		Region:     os.Getenv("TERAKOYA_S3_REGION"),
		AccessKey:  os.Getenv("TERAKOYA_S3_ACCESS_KEY"),
		SecretKey:  os.Getenv("TERAKOYA_S3_SECRET_KEY"),
		Passphrase: os.Getenv("TERAKOYA_SNAPSHOT_PASSPHRASE"),
		Interval:   snapshotInterval,
	}, db, logger.With("component", "backup"))
	snapshots.Start(context.Background())
	defer snapshots.Stop()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("terakoya starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
