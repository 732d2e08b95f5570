package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"curator/api/internal/app"
	"curator/api/internal/config"
	"curator/api/internal/email"
	"curator/api/internal/media"
	"curator/api/internal/search"
	"curator/api/internal/session"
	"curator/api/internal/snapshot"
	"curator/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.SnapshotsDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshots dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	snapshots := snapshot.New(cfg.SnapshotsDir)
	service := app.New(cfg, dataStore, snapshots)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		log.Printf("Using Redis for refresh tokens and drafts")
		service.UseSessions(redisStore)
	} else {
		log.Printf("Redis not configured; drafts disabled, refresh tokens in PostgreSQL")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	service.UseSearch(search.NewService(meiliClient, pgfts))

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaStore, err := media.NewStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, mediaPublicURL(cfg), cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		service.UseMedia(mediaStore)
	} else {
		log.Printf("MinIO not configured; media uploads disabled")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	service.UseMailer(mailer)
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured; verification tokens returned in API responses")
	}

	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Curator API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func mediaPublicURL(cfg config.Config) string {
	if cfg.MinioPublicURL != "" {
		return strings.TrimRight(cfg.MinioPublicURL, "/")
	}
	scheme := "http"
	if cfg.MinioUseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.MinioEndpoint + "/" + cfg.MinioBucket
}
