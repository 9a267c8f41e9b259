package graph

import (
	"context"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

// StoreTx is the durable-store contract the engine needs: edge rows, counter
// rows and the edge-type tables, all addressable inside one transaction.
// Implementations report absence with the domain sentinel errors and map
// uniqueness violations on the edge triple to domain.ErrDuplicateEdge.
type StoreTx interface {
	CreateEdge(ctx context.Context, edge *entities.Edge) error
	GetEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (*entities.Edge, error)
	DeleteEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (bool, error)
	// ListEdges returns every edge with the given origin and type in a scope,
	// oldest first.
	ListEdges(ctx context.Context, from domain.NodeRef, typeID int64, scope string) ([]entities.Edge, error)
	// EdgeScopes returns the distinct scopes holding edges for (from, type).
	EdgeScopes(ctx context.Context, from domain.NodeRef, typeID int64) ([]string, error)

	GetCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string) (int64, error)
	// AdjustCount applies an atomic relative update: an existing counter row
	// moves by delta, a missing one is created holding init. Reports whether
	// the row was created.
	AdjustCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string, delta, init int64) (bool, error)

	CreateEdgeType(ctx context.Context, edgeType *entities.EdgeType) error
	GetEdgeTypeByID(ctx context.Context, id int64) (*entities.EdgeType, error)
	GetEdgeTypeByName(ctx context.Context, name string) (*entities.EdgeType, error)
	DeleteEdgeType(ctx context.Context, id int64) (bool, error)
	ListEdgeTypes(ctx context.Context) ([]entities.EdgeType, error)

	CreateAssociation(ctx context.Context, association *entities.EdgeTypeAssociation) error
	GetAssociationByDirect(ctx context.Context, directTypeID int64) (*entities.EdgeTypeAssociation, error)
	DeleteAssociation(ctx context.Context, id int64) (bool, error)
}

// Store is a StoreTx that can also open all-or-nothing transaction scopes.
// Calls made directly on the Store run outside any transaction.
type Store interface {
	StoreTx
	WithinTransaction(ctx context.Context, fn func(tx StoreTx) error) error
}

// CachePipeline queues cache mutations that apply together on Exec.
type CachePipeline interface {
	Set(key string, value []byte)
	Delete(key string)
	Incr(key string)
	Decr(key string)
	ZAdd(key string, member []byte, score float64)
	ZRem(key string, member []byte)
	Exec(ctx context.Context) error
}

// CacheClient is the cache-store contract: opaque values by key plus one
// sorted set per edge list. A missing key must be distinguishable from an
// empty value, the engine's read protocol depends on it.
type CacheClient interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	ZRevRange(ctx context.Context, key string, offset, limit int64) ([][]byte, error)
	ZRevRangeByScore(ctx context.Context, key string, max, min float64, offset, limit int64) ([][]byte, error)
	Pipeline() CachePipeline
	FlushByPrefix(ctx context.Context) error
}

// Publisher receives committed mutations for external subscribers. It runs
// after the transaction: failures are logged, never rolled back.
type Publisher interface {
	PublishEdgeMutations(ctx context.Context, mutations []domain.EdgeMutation) error
	PublishNodeEvents(ctx context.Context, events []domain.NodeEvent) error
}
