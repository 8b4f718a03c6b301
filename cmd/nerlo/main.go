package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nerloapp/nerlo/internal/database"
	"github.com/nerloapp/nerlo/internal/email"
	"github.com/nerloapp/nerlo/internal/logging"
	"github.com/nerloapp/nerlo/internal/photo"
	"github.com/nerloapp/nerlo/internal/server"
)

func main() {
	// Optional; real deployments set env vars directly.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("NERLO_LOG_LEVEL"))

	port := os.Getenv("NERLO_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("NERLO_DB_PATH")
	if dbPath == "" {
		dbPath = "nerlo.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("NERLO_POSTMARK_TOKEN"),
		os.Getenv("NERLO_POSTMARK_FROM"),
	)
	if !emailClient.Configured() {
		logger.Warn("email not configured; login codes will be logged instead of sent")
	}

	uploader := photo.NewUploader(photo.Config{
		Endpoint:      os.Getenv("NERLO_S3_ENDPOINT"),
		Bucket:        os.Getenv("NERLO_S3_BUCKET"),
		Region:        os.Getenv("NERLO_S3_REGION"),
		AccessKey:     os.Getenv("NERLO_S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("NERLO_S3_SECRET_KEY"),
		PublicBaseURL: os.Getenv("NERLO_S3_PUBLIC_URL"),
	})
	if uploader == nil {
		logger.Warn("photo storage not configured; uploads disabled")
	}

	minPhotos := 1
	if v := os.Getenv("NERLO_MIN_PHOTOS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			minPhotos = n
		}
	}

	srv := server.New(db, emailClient, uploader, server.Config{
		MinPhotos:     minPhotos,
		SecureCookies: os.Getenv("NERLO_INSECURE_COOKIES") != "1",
	}, logger)

	// Hourly cleanup of expired sessions and stale rate-limit entries.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Nerlo running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
