package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"aleph/backend/internal/graph"
	"aleph/backend/internal/store"
	"aleph/backend/pkg/config"
	"aleph/backend/pkg/logger"
)

func main() {
	entityID := flag.String("entity", "", "Sync a single entity instead of loading all active entities")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()

	if !cfg.GraphEnabled() {
		log.Info("NEO4J_URI not set, nothing to load")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer st.Close()

	g, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer g.Close(context.Background())

	loader := graph.NewLoader(g, st, cfg.GraphBatchSize)

	if *entityID != "" {
		if err := loader.SyncEntity(ctx, *entityID); err != nil {
			log.Fatal("Failed to sync entity", zap.String("entity_id", *entityID), zap.Error(err))
		}
		log.Info("Entity synced", zap.String("entity_id", *entityID))
		return
	}

	loader.EnsureSchema(ctx)
	stats, err := loader.LoadEntities(ctx)
	if err != nil {
		log.Fatal("Graph load failed",
			zap.Int("entities", stats.Entities),
			zap.Int("batches", stats.Batches),
			zap.Error(err),
		)
	}
	log.Info("Graph load complete",
		zap.Int("entities", stats.Entities),
		zap.Int("aliases", stats.Aliases),
		zap.Int("skipped", stats.Skipped),
		zap.Int("batches", stats.Batches),
	)
}
