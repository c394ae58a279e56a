package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

// Runner executes one Cypher statement and discards its result.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// Tx is an explicit write transaction.
type Tx interface {
	Runner
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Graph opens transactions against the graph database. Exec runs a statement
// in its own auto-commit transaction, which schema statements require.
type Graph interface {
	Begin(ctx context.Context) (Tx, error)
	Exec(ctx context.Context, cypher string, params map[string]any) error
}

// Neo4jGraph is the Graph backed by a Neo4j driver.
type Neo4jGraph struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// Connect creates a driver and verifies that the server is reachable.
func Connect(ctx context.Context, uri, user, password, database string) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return NewNeo4jGraph(driver, database), nil
}

// NewNeo4jGraph wraps an existing driver.
func NewNeo4jGraph(driver neo4j.DriverWithContext, database string) *Neo4jGraph {
	return &Neo4jGraph{
		driver:   driver,
		database: database,
		logger:   logger.For("graph"),
	}
}

// Close closes the Neo4j driver connection
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Neo4jGraph) Begin(ctx context.Context) (Tx, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.database,
	})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, apperrors.NewGraphQueryFailed("begin transaction", err)
	}
	return &neo4jTx{session: session, tx: tx}, nil
}

func (g *Neo4jGraph) Exec(ctx context.Context, cypher string, params map[string]any) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

type neo4jTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *neo4jTx) Run(ctx context.Context, cypher string, params map[string]any) error {
	result, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func (t *neo4jTx) Commit(ctx context.Context) error {
	defer t.session.Close(ctx)
	return t.tx.Commit(ctx)
}

func (t *neo4jTx) Rollback(ctx context.Context) error {
	defer t.session.Close(ctx)
	return t.tx.Rollback(ctx)
}
