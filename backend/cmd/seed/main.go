package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"aleph/backend/internal/graph"
	"aleph/backend/internal/model"
	"aleph/backend/internal/store"
	"aleph/backend/pkg/config"
	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

func main() {
	force := flag.Bool("force", false, "Seed even if the demo role already exists")
	loadGraph := flag.Bool("graph", false, "Load the seeded entities into Neo4j afterwards")
	flag.Parse()

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
	log.Info("Starting database seeding...")

	ctx := context.Background()

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	res, err := seed(ctx, st, *force)
	if err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}
	if res == nil {
		log.Info("Demo role already exists, skipping (use -force to seed again)",
			zap.String("role", demoRoleForeignID),
		)
		os.Exit(0)
	}

	log.Info("Seeding complete",
		zap.Int("collections", res.Collections),
		zap.Int("entities", res.Entities),
		zap.Int("documents", res.Documents),
		zap.String("api_key", res.APIKey),
	)

	if !*loadGraph {
		return
	}
	if !cfg.GraphEnabled() {
		log.Warn("NEO4J_URI not set, skipping graph load")
		return
	}
	g, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer g.Close(ctx)

	loader := graph.NewLoader(g, st, cfg.GraphBatchSize)
	loader.EnsureSchema(ctx)
	if _, err := loader.LoadEntities(ctx); err != nil {
		log.Fatal("Graph load failed", zap.Error(err))
	}
}

const demoRoleForeignID = "demo-analyst"

type seedResult struct {
	Collections int
	Entities    int
	Documents   int
	APIKey      string
}

type seedEntity struct {
	name         string
	kind         string
	jurisdiction string
	aliases      []string
	active       bool
}

type seedDocument struct {
	title    string
	fileName string
	summary  string
	text     string
}

var (
	publicEntities = []seedEntity{
		{name: "Blue Harbour Shipping Limited", kind: "Company", jurisdiction: "gb", aliases: []string{"Blue Harbour Shipping Ltd", "BHS"}, active: true},
		{name: "Marta Kovač", kind: "Person", jurisdiction: "hr", aliases: []string{"Marta Kovac"}, active: true},
		{name: "Dissolved Trading Co", kind: "Company", jurisdiction: "cy", active: false},
	}
	leakEntities = []seedEntity{
		{name: "Northwind Holdings Corporation", kind: "Company", jurisdiction: "vg", aliases: []string{"Northwind Holding Corp", "Blue Harbour Shipping Limited"}, active: true},
	}
	publicDocuments = []seedDocument{
		{title: "Company register extract: Blue Harbour Shipping", fileName: "bhs-register.txt", summary: "Directors and shareholders as filed.", text: "Director: Marta Kovač. Shareholder: Northwind Holdings Corporation."},
		{title: "Court filing 2019/114", fileName: "court-2019-114.txt", summary: "Insolvency petition.", text: "Petition against Dissolved Trading Co."},
	}
	leakDocuments = []seedDocument{
		{title: "Northwind board minutes", fileName: "minutes.txt", summary: "Minutes of the March board meeting.", text: "Transfer of vessels to Blue Harbour Shipping Limited approved."},
	}
)

// seed creates a public collection, a restricted leak collection, a demo role
// with read access to both, and a few entities and documents. It returns nil
// without writing anything when the demo role exists and force is unset.
func seed(ctx context.Context, st *store.Store, force bool) (*seedResult, error) {
	role, err := st.RoleByForeignID(ctx, demoRoleForeignID)
	switch {
	case err == nil && !force:
		return nil, nil
	case err != nil && !apperrors.IsNotFound(err):
		return nil, err
	case err != nil:
		role = &model.Role{ForeignID: demoRoleForeignID, Name: "Demo Analyst", Email: "analyst@example.org"}
		if err := st.CreateRole(ctx, role); err != nil {
			return nil, err
		}
	}

	res := &seedResult{APIKey: role.APIKey}

	public, err := ensureCollection(ctx, st, "public-records", "Public Records", true)
	if err != nil {
		return nil, err
	}
	leak, err := ensureCollection(ctx, st, "northwind-leak", "Northwind Leak", false)
	if err != nil {
		return nil, err
	}
	res.Collections = 2

	if err := st.GrantPermission(ctx, role.ID, leak.ID, true, false); err != nil {
		return nil, err
	}

	for _, group := range []struct {
		collection *model.Collection
		entities   []seedEntity
		documents  []seedDocument
	}{
		{public, publicEntities, publicDocuments},
		{leak, leakEntities, leakDocuments},
	} {
		for _, se := range group.entities {
			if err := createEntity(ctx, st, group.collection, se); err != nil {
				return nil, err
			}
			res.Entities++
		}
		for _, sd := range group.documents {
			doc := &model.Document{
				CollectionID: group.collection.ID,
				Title:        sd.title,
				FileName:     sd.fileName,
				MimeType:     "text/plain",
				Summary:      sd.summary,
				Text:         sd.text,
			}
			if err := st.CreateDocument(ctx, doc); err != nil {
				return nil, err
			}
			res.Documents++
		}
	}

	return res, nil
}

func ensureCollection(ctx context.Context, st *store.Store, foreignID, label string, public bool) (*model.Collection, error) {
	c, err := st.CollectionByForeignID(ctx, foreignID)
	if err == nil {
		return c, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}
	c = &model.Collection{ForeignID: foreignID, Label: label, Public: public}
	if err := st.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func createEntity(ctx context.Context, st *store.Store, collection *model.Collection, se seedEntity) error {
	entity := &model.Entity{
		Name:        se.name,
		Type:        se.kind,
		State:       model.StateActive,
		Collections: []model.Collection{*collection},
	}
	if !se.active {
		entity.State = model.StatePending
	}
	if se.jurisdiction != "" {
		code := se.jurisdiction
		entity.JurisdictionCode = &code
	}
	for _, alias := range se.aliases {
		entity.OtherNames = append(entity.OtherNames, model.EntityOtherName{DisplayName: alias})
	}
	return st.CreateEntity(ctx, entity)
}
