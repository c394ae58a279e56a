package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
)

type statement struct {
	cypher string
	params map[string]any
}

type fakeTx struct {
	statements []statement
	committed  bool
	rolledBack bool
	failOn     string
}

func (t *fakeTx) Run(ctx context.Context, cypher string, params map[string]any) error {
	if t.failOn != "" && strings.Contains(cypher, t.failOn) {
		return errors.New("neo4j unavailable")
	}
	t.statements = append(t.statements, statement{cypher: cypher, params: params})
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

// count returns how many statements contain fragment.
func (t *fakeTx) count(fragment string) int {
	n := 0
	for _, s := range t.statements {
		if strings.Contains(s.cypher, fragment) {
			n++
		}
	}
	return n
}

func (t *fakeTx) find(fragment string) []statement {
	var out []statement
	for _, s := range t.statements {
		if strings.Contains(s.cypher, fragment) {
			out = append(out, s)
		}
	}
	return out
}

type fakeGraph struct {
	txs    []*fakeTx
	execs  []string
	failOn string
}

func (g *fakeGraph) Begin(ctx context.Context) (Tx, error) {
	tx := &fakeTx{failOn: g.failOn}
	g.txs = append(g.txs, tx)
	return tx, nil
}

func (g *fakeGraph) Exec(ctx context.Context, cypher string, params map[string]any) error {
	g.execs = append(g.execs, cypher)
	return nil
}

type fakeSource struct {
	entities []*model.Entity
}

func (s *fakeSource) EachActiveEntity(ctx context.Context, batchSize int, fn func(*model.Entity) error) error {
	for _, e := range s.entities {
		if !e.IsActive() {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSource) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	for _, e := range s.entities {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, apperrors.NewNotFound("entity", id)
}

func entity(id, name string, others ...string) *model.Entity {
	e := &model.Entity{ID: id, Name: name, Type: "Company", State: model.StateActive}
	for _, o := range others {
		e.OtherNames = append(e.OtherNames, model.EntityOtherName{DisplayName: o})
	}
	return e
}

func TestLoadEntity_MergesNodeAliasesAndCollections(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(&fakeGraph{}, &fakeSource{}, 10)
	tx := &fakeTx{}

	code := "gb"
	e := entity("e1", "Acme Holdings Limited", "ACME HOLDINGS LTD.", "Acme Trading", "", "Acme Trading")
	e.JurisdictionCode = &code
	e.Collections = []model.Collection{{ID: 7, ForeignID: "leaks", Label: "Leaks"}}

	require.NoError(t, loader.LoadEntity(ctx, NewBatch(tx), e))

	merges := tx.find("MERGE (n:Entity")
	require.Len(t, merges, 2, "own name plus one distinct alias")

	props := merges[0].params["props"].(map[string]any)
	assert.Equal(t, "acme holding ltd", merges[0].params["fingerprint"])
	assert.Equal(t, "Acme Holdings Limited", props["name"])
	assert.Equal(t, "Company", props["alephSchema"])
	assert.Equal(t, model.StateActive, props["alephState"])
	assert.Equal(t, "e1", props["alephEntity"])
	assert.Equal(t, "GB", props["countryCode"])

	alias := merges[1].params["props"].(map[string]any)
	assert.Equal(t, "acme trading", merges[1].params["fingerprint"])
	assert.Equal(t, true, alias["isAlias"])
	assert.Equal(t, "e1", alias["alephEntity"])

	aka := tx.find(":AKA")
	require.Len(t, aka, 1)
	assert.Equal(t, "acme holding ltd", aka[0].params["source"])
	assert.Equal(t, "acme trading", aka[0].params["alias"])
	assert.Equal(t, "e1", aka[0].params["entity"])

	partOf := tx.find(":PART_OF")
	require.Len(t, partOf, 2, "node and alias both join the collection")
	colls := partOf[0].params["collections"].([]map[string]any)
	assert.Equal(t, int64(7), colls[0]["id"])
}

func TestLoadEntity_NilBatchIsNoop(t *testing.T) {
	loader := NewLoader(&fakeGraph{}, &fakeSource{}, 10)
	assert.NoError(t, loader.LoadEntity(context.Background(), nil, entity("e1", "Acme")))
	assert.NoError(t, loader.RemoveEntity(context.Background(), nil, "e1"))
}

func TestLoadEntity_SkipsUnfingerprintableAndCachedNames(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(&fakeGraph{}, &fakeSource{}, 10)
	tx := &fakeTx{}
	batch := NewBatch(tx)

	require.NoError(t, loader.LoadEntity(ctx, batch, entity("e1", "...")))
	assert.Empty(t, tx.statements)

	require.NoError(t, loader.LoadEntity(ctx, batch, entity("e2", "Acme Ltd")))

	// Same fingerprint later in the batch: nothing of e3 is written.
	dup := entity("e3", "ACME LIMITED", "Acme Group")
	dup.Collections = []model.Collection{{ID: 7, ForeignID: "leaks"}}
	require.NoError(t, loader.LoadEntity(ctx, batch, dup))
	assert.Equal(t, 1, tx.count("MERGE (n:Entity"))
	assert.Zero(t, tx.count("PART_OF"))
	assert.Zero(t, tx.count("AKA"))
}

func TestLoadEntity_InactiveIsRemoved(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(&fakeGraph{}, &fakeSource{}, 10)
	tx := &fakeTx{}

	e := entity("e9", "Gone Corp")
	e.State = model.StateDeleted
	require.NoError(t, loader.LoadEntity(ctx, NewBatch(tx), e))

	require.Len(t, tx.statements, 2)
	assert.Contains(t, tx.statements[0].cypher, "DELETE r")
	assert.Equal(t, "e9", tx.statements[0].params["entity"])
	assert.Contains(t, tx.statements[1].cypher, "NOT EXISTS")
	assert.Zero(t, tx.count("MERGE"))
}

func TestLoadEntities_CommitsInBatches(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{}
	for i := 0; i < 7; i++ {
		source.entities = append(source.entities, entity(fmt.Sprintf("e%d", i), fmt.Sprintf("Company %d", i)))
	}
	inactive := entity("gone", "Gone Corp")
	inactive.State = model.StateDeleted
	source.entities = append(source.entities, inactive)

	g := &fakeGraph{}
	loader := NewLoader(g, source, 3)

	stats, err := loader.LoadEntities(ctx)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.Entities)
	assert.Equal(t, 3, stats.Batches)
	require.Len(t, g.txs, 3)
	for _, tx := range g.txs {
		assert.True(t, tx.committed)
		assert.False(t, tx.rolledBack)
	}
	assert.Equal(t, 3, g.txs[0].count("MERGE (n:Entity"))
	assert.Equal(t, 3, g.txs[1].count("MERGE (n:Entity"))
	assert.Equal(t, 1, g.txs[2].count("MERGE (n:Entity"))
}

func TestLoadEntities_ExactMultipleLeavesEmptyFinalBatch(t *testing.T) {
	source := &fakeSource{entities: []*model.Entity{entity("a", "Alpha"), entity("b", "Beta")}}
	g := &fakeGraph{}

	stats, err := NewLoader(g, source, 2).LoadEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Batches)
	require.Len(t, g.txs, 2)
	assert.Empty(t, g.txs[1].statements)
	assert.True(t, g.txs[1].committed)
}

func TestLoadEntities_CacheResetsPerBatch(t *testing.T) {
	source := &fakeSource{entities: []*model.Entity{
		entity("a", "Acme Ltd"),
		entity("b", "Acme Limited"),
		entity("c", "Acme Ltd."),
	}}
	g := &fakeGraph{}

	stats, err := NewLoader(g, source, 2).LoadEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, g.txs[0].count("MERGE (n:Entity"))
	assert.Equal(t, 1, g.txs[1].count("MERGE (n:Entity"))
}

func TestLoadEntities_RollsBackOnFailure(t *testing.T) {
	source := &fakeSource{entities: []*model.Entity{entity("a", "Alpha", "Alfa")}}
	g := &fakeGraph{failOn: ":AKA"}

	_, err := NewLoader(g, source, 10).LoadEntities(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeGraph))
	require.Len(t, g.txs, 1)
	assert.True(t, g.txs[0].rolledBack)
	assert.False(t, g.txs[0].committed)
}

func TestLoadEntities_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := &fakeSource{entities: []*model.Entity{entity("a", "Alpha")}}
	g := &fakeGraph{}

	_, err := NewLoader(g, source, 10).LoadEntities(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
	assert.True(t, g.txs[0].rolledBack)
}

func TestLoader_DisabledGraph(t *testing.T) {
	loader := NewLoader(nil, &fakeSource{entities: []*model.Entity{entity("a", "Alpha")}}, 10)

	assert.False(t, loader.Enabled())
	stats, err := loader.LoadEntities(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
	assert.NoError(t, loader.SyncEntity(context.Background(), "a"))
	loader.EnsureSchema(context.Background())
}

func TestSyncEntity(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{entities: []*model.Entity{entity("a", "Alpha", "Alfa")}}
	g := &fakeGraph{}
	loader := NewLoader(g, source, 10)

	require.NoError(t, loader.SyncEntity(ctx, "a"))
	require.Len(t, g.txs, 1)
	tx := g.txs[0]
	assert.True(t, tx.committed)
	assert.Contains(t, tx.statements[0].cypher, "DELETE r")
	assert.Equal(t, 2, tx.count("MERGE (n:Entity"))

	require.NoError(t, loader.SyncEntity(ctx, "missing"))
	require.Len(t, g.txs, 2)
	assert.Equal(t, 2, len(g.txs[1].statements))
	assert.Zero(t, g.txs[1].count("MERGE"))
}

func TestEnsureSchema(t *testing.T) {
	g := &fakeGraph{}
	NewLoader(g, &fakeSource{}, 10).EnsureSchema(context.Background())
	assert.Len(t, g.execs, len(schemaStatements))
}
