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

	"fomcval/api/internal/app"
	"fomcval/api/internal/config"
	"fomcval/api/internal/provider"
	"fomcval/api/internal/results"
	"fomcval/api/internal/search"
	"fomcval/api/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	ctx := context.Background()

	var records provider.Provider
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := provider.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		records = provider.NewPostgres(db)
		log.Printf("Serving extraction records from PostgreSQL")
	} else {
		records = provider.NewFS(cfg.DataDir)
		log.Printf("Serving extraction records from %s", cfg.DataDir)
	}

	var resultStore results.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objectStore, err := results.NewObjectStore(ctx, results.ObjectStoreConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		resultStore = objectStore
		log.Printf("Saving results to MinIO bucket %s", cfg.MinioBucket)
	} else {
		if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
			log.Fatalf("failed to create results dir: %v", err)
		}
		resultStore = results.NewFS(cfg.ResultsDir)
		log.Printf("Saving results to %s", cfg.ResultsDir)
	}
	if cfg.ArchiveResults {
		resultStore = results.NewArchive(resultStore, cfg.ArchiveDir)
		log.Printf("Archiving saved results to %s", cfg.ArchiveDir)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, records)

	var registry session.Registry
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		registry = redisStore
		log.Printf("Using Redis for session storage")
	} else {
		registry = session.NewMemory()
		log.Printf("Using in-memory session storage")
	}

	service := app.New(records, resultStore, registry, searchService)
	service.Bootstrap(ctx)

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
		log.Printf("FOMC validation API listening on %s", cfg.Addr)
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
