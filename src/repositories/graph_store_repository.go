package repositories

import (
	"context"
	"fmt"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
	"socialgraph/src/infra/postgres"
	"socialgraph/src/services/graph"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbConn is the subset of pgx shared by the pool and an open transaction,
// so every query below runs against either transparently.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GraphStoreRepository is the durable graph store on Postgres. Edge rows,
// counter rows and the edge-type tables live here; the cache layers on top.
type GraphStoreRepository struct {
	pool *pgxpool.Pool
	conn dbConn
}

func NewGraphStoreRepository(pool *pgxpool.Pool) *GraphStoreRepository {
	return &GraphStoreRepository{pool: pool, conn: pool}
}

// WithinTransaction runs fn against a repository view bound to a single
// transaction. Any error from fn rolls everything back.
func (r *GraphStoreRepository) WithinTransaction(ctx context.Context, fn func(tx graph.StoreTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&GraphStoreRepository{pool: r.pool, conn: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *GraphStoreRepository) CreateEdge(ctx context.Context, edge *entities.Edge) error {
	query := `
		INSERT INTO edges (from_kind, from_id, to_kind, to_id, type_id, attributes, auto, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;`

	err := r.conn.QueryRow(ctx, query,
		edge.FromKind, edge.FromID, edge.ToKind, edge.ToID, edge.TypeID,
		edge.Attributes, edge.Auto, edge.Scope, edge.Time,
	).Scan(&edge.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("edge %s:%s-[%d]->%s:%s: %w",
				edge.FromKind, edge.FromID, edge.TypeID, edge.ToKind, edge.ToID, domain.ErrDuplicateEdge)
		}
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

func (r *GraphStoreRepository) GetEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (*entities.Edge, error) {
	query := `
		SELECT id, from_kind, from_id, to_kind, to_id, type_id, attributes, auto, scope, created_at
		FROM edges
		WHERE from_kind = $1 AND from_id = $2 AND type_id = $3 AND to_kind = $4 AND to_id = $5 AND scope = $6;`

	edge := &entities.Edge{}
	err := r.conn.QueryRow(ctx, query, from.Kind, from.ID, typeID, to.Kind, to.ID, scope).Scan(
		&edge.ID, &edge.FromKind, &edge.FromID, &edge.ToKind, &edge.ToID,
		&edge.TypeID, &edge.Attributes, &edge.Auto, &edge.Scope, &edge.Time,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("edge %s-[%d]->%s: %w", from, typeID, to, domain.ErrEdgeNotFound)
		}
		return nil, fmt.Errorf("failed to query edge: %w", err)
	}
	return edge, nil
}

func (r *GraphStoreRepository) DeleteEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (bool, error) {
	query := `
		DELETE FROM edges
		WHERE from_kind = $1 AND from_id = $2 AND type_id = $3 AND to_kind = $4 AND to_id = $5 AND scope = $6;`

	tag, err := r.conn.Exec(ctx, query, from.Kind, from.ID, typeID, to.Kind, to.ID, scope)
	if err != nil {
		return false, fmt.Errorf("failed to delete edge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *GraphStoreRepository) ListEdges(ctx context.Context, from domain.NodeRef, typeID int64, scope string) ([]entities.Edge, error) {
	query := `
		SELECT id, from_kind, from_id, to_kind, to_id, type_id, attributes, auto, scope, created_at
		FROM edges
		WHERE from_kind = $1 AND from_id = $2 AND type_id = $3 AND scope = $4
		ORDER BY created_at ASC, id ASC;`

	rows, err := r.conn.Query(ctx, query, from.Kind, from.ID, typeID, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []entities.Edge
	for rows.Next() {
		edge := entities.Edge{}
		if err := rows.Scan(
			&edge.ID, &edge.FromKind, &edge.FromID, &edge.ToKind, &edge.ToID,
			&edge.TypeID, &edge.Attributes, &edge.Auto, &edge.Scope, &edge.Time,
		); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edge rows: %w", err)
	}
	return edges, nil
}

func (r *GraphStoreRepository) EdgeScopes(ctx context.Context, from domain.NodeRef, typeID int64) ([]string, error) {
	query := `
		SELECT DISTINCT scope
		FROM edges
		WHERE from_kind = $1 AND from_id = $2 AND type_id = $3;`

	rows, err := r.conn.Query(ctx, query, from.Kind, from.ID, typeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("failed to scan scope row: %w", err)
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scope rows: %w", err)
	}
	return scopes, nil
}

func (r *GraphStoreRepository) GetCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string) (int64, error) {
	query := `
		SELECT count
		FROM edge_counts
		WHERE from_kind = $1 AND from_id = $2 AND type_id = $3 AND scope = $4;`

	var count int64
	err := r.conn.QueryRow(ctx, query, from.Kind, from.ID, typeID, scope).Scan(&count)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, fmt.Errorf("counter for %s type %d: %w", from, typeID, domain.ErrCountNotFound)
		}
		return 0, fmt.Errorf("failed to query counter: %w", err)
	}
	return count, nil
}

// AdjustCount applies a relative counter update in one round trip: an
// existing row moves by delta, a missing one is inserted holding init.
// xmax = 0 distinguishes a fresh insert from a conflicting update.
func (r *GraphStoreRepository) AdjustCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string, delta, init int64) (bool, error) {
	query := `
		INSERT INTO edge_counts (from_kind, from_id, type_id, scope, count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (from_kind, from_id, type_id, scope)
		DO UPDATE SET count = edge_counts.count + $6
		RETURNING (xmax = 0) AS created;`

	var created bool
	err := r.conn.QueryRow(ctx, query, from.Kind, from.ID, typeID, scope, init, delta).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to adjust counter: %w", err)
	}
	return created, nil
}

func (r *GraphStoreRepository) CreateEdgeType(ctx context.Context, edgeType *entities.EdgeType) error {
	query := `
		INSERT INTO edge_types (name, read_as)
		VALUES ($1, $2)
		RETURNING id;`

	readAs := postgres.NewNullString(&edgeType.ReadAs)
	if err := r.conn.QueryRow(ctx, query, edgeType.Name, readAs).Scan(&edgeType.ID); err != nil {
		return fmt.Errorf("failed to insert edge type %q: %w", edgeType.Name, err)
	}
	return nil
}

func (r *GraphStoreRepository) GetEdgeTypeByID(ctx context.Context, id int64) (*entities.EdgeType, error) {
	query := `SELECT id, name, COALESCE(read_as, '') FROM edge_types WHERE id = $1;`

	edgeType := &entities.EdgeType{}
	err := r.conn.QueryRow(ctx, query, id).Scan(&edgeType.ID, &edgeType.Name, &edgeType.ReadAs)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("edge type %d: %w", id, domain.ErrEdgeTypeNotFound)
		}
		return nil, fmt.Errorf("failed to query edge type: %w", err)
	}
	return edgeType, nil
}

func (r *GraphStoreRepository) GetEdgeTypeByName(ctx context.Context, name string) (*entities.EdgeType, error) {
	query := `SELECT id, name, COALESCE(read_as, '') FROM edge_types WHERE name = $1;`

	edgeType := &entities.EdgeType{}
	err := r.conn.QueryRow(ctx, query, name).Scan(&edgeType.ID, &edgeType.Name, &edgeType.ReadAs)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("edge type %q: %w", name, domain.ErrEdgeTypeNotFound)
		}
		return nil, fmt.Errorf("failed to query edge type: %w", err)
	}
	return edgeType, nil
}

func (r *GraphStoreRepository) DeleteEdgeType(ctx context.Context, id int64) (bool, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM edge_types WHERE id = $1;`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete edge type: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *GraphStoreRepository) ListEdgeTypes(ctx context.Context) ([]entities.EdgeType, error) {
	rows, err := r.conn.Query(ctx, `SELECT id, name, COALESCE(read_as, '') FROM edge_types ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge types: %w", err)
	}
	defer rows.Close()

	var edgeTypes []entities.EdgeType
	for rows.Next() {
		edgeType := entities.EdgeType{}
		if err := rows.Scan(&edgeType.ID, &edgeType.Name, &edgeType.ReadAs); err != nil {
			return nil, fmt.Errorf("failed to scan edge type row: %w", err)
		}
		edgeTypes = append(edgeTypes, edgeType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edge type rows: %w", err)
	}
	return edgeTypes, nil
}

func (r *GraphStoreRepository) CreateAssociation(ctx context.Context, association *entities.EdgeTypeAssociation) error {
	query := `
		INSERT INTO edge_type_associations (direct_type_id, inverse_type_id)
		VALUES ($1, $2)
		RETURNING id;`

	err := r.conn.QueryRow(ctx, query, association.DirectTypeID, association.InverseTypeID).Scan(&association.ID)
	if err != nil {
		return fmt.Errorf("failed to insert association %d->%d: %w",
			association.DirectTypeID, association.InverseTypeID, err)
	}
	return nil
}

func (r *GraphStoreRepository) GetAssociationByDirect(ctx context.Context, directTypeID int64) (*entities.EdgeTypeAssociation, error) {
	query := `SELECT id, direct_type_id, inverse_type_id FROM edge_type_associations WHERE direct_type_id = $1;`

	association := &entities.EdgeTypeAssociation{}
	err := r.conn.QueryRow(ctx, query, directTypeID).Scan(
		&association.ID, &association.DirectTypeID, &association.InverseTypeID,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("association for type %d: %w", directTypeID, domain.ErrAssociationNotFound)
		}
		return nil, fmt.Errorf("failed to query association: %w", err)
	}
	return association, nil
}

func (r *GraphStoreRepository) DeleteAssociation(ctx context.Context, id int64) (bool, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM edge_type_associations WHERE id = $1;`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete association: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
