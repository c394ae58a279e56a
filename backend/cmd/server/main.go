package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"aleph/backend/internal/api"
	"aleph/backend/internal/authz"
	"aleph/backend/internal/graph"
	"aleph/backend/internal/search"
	"aleph/backend/internal/store"
	"aleph/backend/pkg/config"
	"aleph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	ctx := context.Background()

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// The API does not read the graph; it only makes sure the schema exists
	// before the loader writes into it.
	if cfg.GraphEnabled() {
		g, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			log.Warn("Neo4j unavailable, graph schema not ensured", zap.Error(err))
		} else {
			graph.NewLoader(g, st, cfg.GraphBatchSize).EnsureSchema(ctx)
			_ = g.Close(ctx)
		}
	}

	searcher, closeCache, err := newSearcher(ctx, cfg, st)
	if err != nil {
		log.Fatal("Failed to initialize search", zap.Error(err))
	}
	defer closeCache()

	server := api.NewServer(api.Options{
		AppURL:     cfg.AppURL,
		Production: cfg.IsProduction(),
		Limits:     search.Limits{Default: cfg.SearchDefaultLimit, Max: cfg.SearchMaxLimit},
	}, st, searcher, authz.New(st))

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// newSearcher returns the store-backed searcher, wrapped in a Redis cache
// when one is configured. The returned func releases the cache client.
func newSearcher(ctx context.Context, cfg *config.Config, st *store.Store) (search.Searcher, func(), error) {
	base := search.NewStoreSearcher(st)
	if !cfg.CacheEnabled() {
		return base, func() {}, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return search.NewCachedSearcher(base, rdb, cfg.SearchCacheTTL), func() { _ = rdb.Close() }, nil
}
