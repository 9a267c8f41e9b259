package test_seeder

import (
	"context"
	"fmt"

	"socialgraph/src/domain/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TestSeeder struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) TestSeeder {
	return TestSeeder{pool: pool}
}

func (ts TestSeeder) TruncateTables(ctx context.Context) {
	tables := []string{
		"edge_counts",
		"edges",
		"edge_type_associations",
		"edge_types",
	}

	for _, table := range tables {
		_, err := ts.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			panic(fmt.Sprintf("Failed to truncate %s: %v", table, err))
		}
	}
}

func (ts TestSeeder) InsertEdgeType(ctx context.Context, name, readAs string) int64 {
	var id int64
	err := ts.pool.QueryRow(ctx,
		`INSERT INTO edge_types (name, read_as) VALUES ($1, $2) RETURNING id`,
		name, readAs,
	).Scan(&id)
	if err != nil {
		panic(fmt.Sprintf("Failed to insert edge type %s: %v", name, err))
	}
	return id
}

func (ts TestSeeder) InsertAssociation(ctx context.Context, directTypeID, inverseTypeID int64) int64 {
	var id int64
	err := ts.pool.QueryRow(ctx,
		`INSERT INTO edge_type_associations (direct_type_id, inverse_type_id) VALUES ($1, $2) RETURNING id`,
		directTypeID, inverseTypeID,
	).Scan(&id)
	if err != nil {
		panic(fmt.Sprintf("Failed to insert association %d->%d: %v", directTypeID, inverseTypeID, err))
	}
	return id
}

func (ts TestSeeder) InsertEdge(ctx context.Context, edge entities.Edge) int64 {
	var id int64
	err := ts.pool.QueryRow(ctx,
		`INSERT INTO edges (from_kind, from_id, to_kind, to_id, type_id, attributes, auto, scope, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		edge.FromKind, edge.FromID, edge.ToKind, edge.ToID, edge.TypeID,
		edge.Attributes, edge.Auto, edge.Scope, edge.Time,
	).Scan(&id)
	if err != nil {
		panic(fmt.Sprintf("Failed to insert edge: %v", err))
	}
	return id
}

func (ts TestSeeder) CountEdges(ctx context.Context) int64 {
	var count int64
	if err := ts.pool.QueryRow(ctx, `SELECT COUNT(*) FROM edges`).Scan(&count); err != nil {
		panic(fmt.Sprintf("Failed to count edges: %v", err))
	}
	return count
}

func (ts TestSeeder) SelectCount(ctx context.Context, fromKind, fromID string, typeID int64, scope string) int64 {
	var count int64
	err := ts.pool.QueryRow(ctx,
		`SELECT count FROM edge_counts WHERE from_kind = $1 AND from_id = $2 AND type_id = $3 AND scope = $4`,
		fromKind, fromID, typeID, scope,
	).Scan(&count)
	if err != nil {
		panic(fmt.Sprintf("Failed to select count: %v", err))
	}
	return count
}
