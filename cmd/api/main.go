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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/app"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/config"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/engine"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/logger"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/search"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, zlog); err != nil {
		zlog.Fatal("migrations failed", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db, zlog)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zlog.Fatal("invalid redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The cache fails open; a dead Redis only costs performance.
		zlog.Warn("redis unreachable at startup", zap.Error(err))
	}

	cache := engine.NewContextCache(engine.NewRedisKV(redisClient), cfg.ContextTTL, zlog)
	assembler := engine.NewAssembler(dataStore, cache, cfg.RepoTimeout, zlog)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, zlog)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, zlog)
	searchService.ReindexAllFromPG(ctx)

	service := app.NewService(dataStore, assembler, searchService, zlog)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, zlog)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("shutdown error", zap.Error(err))
	}
}
