package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/larderhq/larder/internal/backup"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/email"
	"github.com/larderhq/larder/internal/logging"
	"github.com/larderhq/larder/internal/push"
	"github.com/larderhq/larder/internal/server"
)

func main() {
	// `larder vapid-keys` prints a fresh key pair for the env and exits.
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		printVAPIDKeys()
		return
	}

	logger := logging.Setup(os.Getenv("LARDER_LOG_LEVEL"))

	port := os.Getenv("LARDER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("LARDER_DB_PATH")
	if dbPath == "" {
		dbPath = "larder.db"
	}

	baseURL := os.Getenv("LARDER_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	digestHour := 7
	if v := os.Getenv("LARDER_DIGEST_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 23 {
			slog.Error("LARDER_DIGEST_HOUR must be 0-23", "value", v)
			os.Exit(1)
		}
		digestHour = n
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Email config
	postmarkToken := os.Getenv("LARDER_POSTMARK_TOKEN")
	fromEmail := os.Getenv("LARDER_FROM_EMAIL")
	emailClient := email.NewClient(postmarkToken, fromEmail, baseURL)

	cfg := server.Config{
		TemplatesDir: os.Getenv("LARDER_TEMPLATES_DIR"),
		StaticDir:    os.Getenv("LARDER_STATIC_DIR"),
		DigestHour:   digestHour,
		Backup: backup.Config{
			DBPath: dbPath,
			S3: backup.S3Config{
				Endpoint:  os.Getenv("LARDER_S3_ENDPOINT"),
				Bucket:    os.Getenv("LARDER_S3_BUCKET"),
				Region:    os.Getenv("LARDER_S3_REGION"),
				AccessKey: os.Getenv("LARDER_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("LARDER_S3_SECRET_KEY"),
			},
		},
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("LARDER_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("LARDER_VAPID_PRIVATE_KEY"),
		},
	}

	srv := server.New(db, emailClient, cfg, logger)

	// Background schedulers
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	srv.BackupManager().Start(schedCtx)
	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(schedCtx)
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCleanup(srv)
			case <-schedCtx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("larder starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	schedCancel()
	srv.BackupManager().Stop()
	if sched := srv.PushScheduler(); sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func runCleanup(srv *server.Server) {
	if n, err := srv.SessionStore().DeleteExpired(); err != nil {
		slog.Error("cleanup expired sessions", "error", err)
	} else if n > 0 {
		slog.Info("cleaned up expired sessions", "count", n)
	}

	if n, err := srv.ResetCodeStore().DeleteExpired(); err != nil {
		slog.Error("cleanup expired reset codes", "error", err)
	} else if n > 0 {
		slog.Info("cleaned up expired reset codes", "count", n)
	}

	// Digest dedupe rows only matter for the current day; a month is plenty.
	if err := srv.PushStore().CleanupDigests(time.Now().UTC().AddDate(0, 0, -30)); err != nil {
		slog.Error("cleanup sent digests", "error", err)
	}

	srv.RateLimiter().Cleanup()
}

func printVAPIDKeys() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("LARDER_VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("LARDER_VAPID_PRIVATE_KEY=%s\n", priv)
}
