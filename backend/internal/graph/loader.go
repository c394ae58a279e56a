package graph

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

// DefaultBatchSize is the number of entities written per transaction.
const DefaultBatchSize = 10000

// EntitySource provides the relational entities mirrored into the graph.
type EntitySource interface {
	EachActiveEntity(ctx context.Context, batchSize int, fn func(*model.Entity) error) error
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
}

// LoadStats summarises a load run.
type LoadStats struct {
	Entities int `json:"entities"`
	Aliases  int `json:"aliases"`
	Skipped  int `json:"skipped"`
	Removed  int `json:"removed"`
	Batches  int `json:"batches"`
}

// Batch is an open transaction plus the fingerprints already merged in it.
type Batch struct {
	tx    Tx
	nodes map[string]struct{}
}

// NewBatch starts tracking merged nodes for tx.
func NewBatch(tx Tx) *Batch {
	return &Batch{tx: tx, nodes: make(map[string]struct{})}
}

func (b *Batch) cached(fp string) bool {
	_, ok := b.nodes[fp]
	return ok
}

func (b *Batch) run(ctx context.Context, operation, cypher string, params map[string]any) error {
	if err := b.tx.Run(ctx, cypher, params); err != nil {
		return apperrors.NewGraphQueryFailed(operation, err)
	}
	return nil
}

func (b *Batch) commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return apperrors.NewGraphQueryFailed("commit", err)
	}
	return nil
}

func (b *Batch) rollback(ctx context.Context) {
	if b == nil {
		return
	}
	_ = b.tx.Rollback(ctx)
}

// Loader mirrors relational entities into the graph.
type Loader struct {
	graph     Graph
	entities  EntitySource
	batchSize int
	logger    *zap.Logger
}

// NewLoader creates a loader. A nil graph disables every operation.
func NewLoader(g Graph, entities EntitySource, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		graph:     g,
		entities:  entities,
		batchSize: batchSize,
		logger:    logger.For("graph-loader"),
	}
}

// Enabled reports whether a graph is configured.
func (l *Loader) Enabled() bool {
	return l != nil && l.graph != nil
}

// EnsureSchema creates uniqueness constraints and indexes. Failures are
// logged and skipped.
func (l *Loader) EnsureSchema(ctx context.Context) {
	if !l.Enabled() {
		return
	}
	for _, stmt := range schemaStatements {
		if err := l.graph.Exec(ctx, stmt, nil); err != nil {
			l.logger.Warn("Graph schema statement failed (continuing)",
				zap.String("statement", stmt),
				zap.Error(err),
			)
		}
	}
}

// LoadEntities writes every active entity to the graph, committing after each
// batchSize entities.
func (l *Loader) LoadEntities(ctx context.Context) (*LoadStats, error) {
	stats := &LoadStats{}
	if !l.Enabled() {
		return stats, nil
	}

	batch, err := l.begin(ctx)
	if err != nil {
		return stats, err
	}

	loaded := 0
	err = l.entities.EachActiveEntity(ctx, l.batchSize, func(entity *model.Entity) error {
		if err := ctx.Err(); err != nil {
			return apperrors.NewContextCancelled("load entities", err)
		}
		if err := l.loadEntity(ctx, batch, entity, stats); err != nil {
			return err
		}
		loaded++
		if loaded%l.batchSize != 0 {
			return nil
		}

		if err := batch.commit(ctx); err != nil {
			batch = nil
			return err
		}
		stats.Batches++
		l.logger.Info("Graph batch committed",
			zap.Int("loaded", loaded),
			zap.Int("batch", stats.Batches),
		)

		next, err := l.begin(ctx)
		batch = next
		return err
	})
	if err != nil {
		batch.rollback(ctx)
		return stats, err
	}

	if err := batch.commit(ctx); err != nil {
		return stats, err
	}
	stats.Batches++

	l.logger.Info("Graph load finished",
		zap.Int("entities", stats.Entities),
		zap.Int("aliases", stats.Aliases),
		zap.Int("skipped", stats.Skipped),
		zap.Int("batches", stats.Batches),
	)
	return stats, nil
}

// LoadEntity writes a single entity into batch: its name node, alias nodes
// joined by AKA edges, and PART_OF edges to its collections. Inactive entities
// are removed instead. A nil batch is a no-op.
func (l *Loader) LoadEntity(ctx context.Context, batch *Batch, entity *model.Entity) error {
	return l.loadEntity(ctx, batch, entity, &LoadStats{})
}

func (l *Loader) loadEntity(ctx context.Context, batch *Batch, entity *model.Entity, stats *LoadStats) error {
	if batch == nil || entity == nil {
		return nil
	}
	if !entity.IsActive() {
		stats.Removed++
		return l.removeEntity(ctx, batch, entity.ID)
	}

	l.logger.Debug("Graph node",
		zap.String("entity_id", entity.ID),
		zap.String("name", entity.Name),
	)

	fp := Fingerprint(entity.Name)
	if fp == "" || batch.cached(fp) {
		stats.Skipped++
		return nil
	}

	props := map[string]any{
		"name":        entity.Name,
		"fingerprint": fp,
		"alephSchema": entity.Type,
		"alephState":  entity.State,
		"alephEntity": entity.ID,
	}
	if entity.JurisdictionCode != nil {
		if code := strings.TrimSpace(*entity.JurisdictionCode); code != "" {
			props["countryCode"] = strings.ToUpper(code)
		}
	}
	if err := batch.run(ctx, "merge entity", mergeEntityCypher, map[string]any{
		"fingerprint": fp,
		"props":       props,
	}); err != nil {
		return err
	}
	batch.nodes[fp] = struct{}{}
	stats.Entities++

	if err := addToCollections(ctx, batch, fp, entity); err != nil {
		return err
	}

	seen := map[string]struct{}{fp: {}}
	for _, other := range entity.OtherNames {
		afp := Fingerprint(other.DisplayName)
		if afp == "" {
			continue
		}
		if _, ok := seen[afp]; ok {
			continue
		}
		seen[afp] = struct{}{}

		if err := batch.run(ctx, "merge alias", mergeEntityCypher, map[string]any{
			"fingerprint": afp,
			"props": map[string]any{
				"name":        other.DisplayName,
				"fingerprint": afp,
				"alephEntity": entity.ID,
				"alephSchema": entity.Type,
				"isAlias":     true,
			},
		}); err != nil {
			return err
		}
		if err := batch.run(ctx, "merge alias edge", mergeAKACypher, map[string]any{
			"source": fp,
			"alias":  afp,
			"entity": entity.ID,
		}); err != nil {
			return err
		}
		if err := addToCollections(ctx, batch, afp, entity); err != nil {
			return err
		}
		stats.Aliases++
	}

	return nil
}

func addToCollections(ctx context.Context, batch *Batch, fp string, entity *model.Entity) error {
	if len(entity.Collections) == 0 {
		return nil
	}
	collections := make([]map[string]any, 0, len(entity.Collections))
	for _, c := range entity.Collections {
		collections = append(collections, map[string]any{
			"id":         int64(c.ID),
			"label":      c.Label,
			"foreign_id": c.ForeignID,
		})
	}
	return batch.run(ctx, "merge collection membership", mergePartOfCypher, map[string]any{
		"collections": collections,
		"fingerprint": fp,
		"entity":      entity.ID,
	})
}

// RemoveEntity deletes every relationship contributed by the entity, then
// any node left without relationships. A nil batch is a no-op.
func (l *Loader) RemoveEntity(ctx context.Context, batch *Batch, entityID string) error {
	return l.removeEntity(ctx, batch, entityID)
}

func (l *Loader) removeEntity(ctx context.Context, batch *Batch, entityID string) error {
	if batch == nil {
		return nil
	}
	l.logger.Debug("Removing graph entity", zap.String("entity_id", entityID))
	if err := batch.run(ctx, "remove entity edges", removeEntityEdgesCypher, map[string]any{
		"entity": entityID,
	}); err != nil {
		return err
	}
	// Deleted nodes may still sit in the cache; forget them.
	batch.nodes = make(map[string]struct{})
	return batch.run(ctx, "delete orphan nodes", deleteOrphanNodesCypher, nil)
}

// SyncEntity refreshes one entity in its own transaction. Entities missing
// from the store are removed from the graph.
func (l *Loader) SyncEntity(ctx context.Context, entityID string) error {
	if !l.Enabled() {
		return nil
	}

	entity, err := l.entities.GetEntity(ctx, entityID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}

	batch, err := l.begin(ctx)
	if err != nil {
		return err
	}
	// Stale aliases and memberships go first, then the current state is
	// written back.
	err = l.removeEntity(ctx, batch, entityID)
	if err == nil && entity != nil && entity.IsActive() {
		err = l.LoadEntity(ctx, batch, entity)
	}
	if err != nil {
		batch.rollback(ctx)
		return err
	}
	return batch.commit(ctx)
}

func (l *Loader) begin(ctx context.Context) (*Batch, error) {
	tx, err := l.graph.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return NewBatch(tx), nil
}
