package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"socialgraph/src/domain"
)

// GraphService is the graph read/write engine. It keeps the durable edge
// store and the derived cache (edge snapshots, recency-ordered edge lists,
// counters) consistent under concurrent writes, repopulates the cache from
// the store on miss, and runs the consistency enforcers (symmetric edge
// mirroring, counter maintenance, cascade cleanup) inside the same
// transaction scope as the triggering write.
//
// Construct one per process/configuration and inject it; there is no hidden
// shared instance.
type GraphService struct {
	store     Store
	cache     CacheClient
	logger    *slog.Logger
	publisher Publisher
	types     *TypeDirectory

	scope string
	now   func() time.Time

	// enforcers run in-transaction, in order, for every edge mutation.
	enforcers []enforcerFunc

	mu        sync.RWMutex
	nodeKinds map[string]struct{}
	hooks     []MutationHook
	nodeHooks []NodeHook
}

// MutationHook is an externally registered subscriber invoked synchronously,
// inside the transaction, after the built-in enforcers. An error aborts and
// rolls back the triggering write.
type MutationHook func(ctx context.Context, mutation domain.EdgeMutation) error

// NodeHook reacts to lifecycle events of registered node kinds.
type NodeHook func(ctx context.Context, event domain.NodeEvent) error

type enforcerFunc func(ctx context.Context, tx StoreTx, fx *txEffects, mutation domain.EdgeMutation) error

type Option func(*GraphService)

// WithScope namespaces every edge, counter and cache entry under a partition
// tag. The default is the empty single-tenant scope.
func WithScope(scope string) Option {
	return func(s *GraphService) { s.scope = scope }
}

// WithClock overrides the edge-timestamp source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *GraphService) { s.now = now }
}

// WithPublisher attaches a post-commit publisher for mutation events.
func WithPublisher(publisher Publisher) Option {
	return func(s *GraphService) { s.publisher = publisher }
}

func NewGraphService(store Store, cache CacheClient, logger *slog.Logger, opts ...Option) (*GraphService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: durable store is required", domain.ErrInvalidConfiguration)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: cache client is required", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", domain.ErrInvalidConfiguration)
	}

	s := &GraphService{
		store:     store,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		nodeKinds: make(map[string]struct{}),
	}
	s.types = NewTypeDirectory(store)

	for _, opt := range opts {
		opt(s)
	}

	s.enforcers = []enforcerFunc{
		s.mirrorSymmetricEdge,
		s.maintainCount,
	}
	s.nodeHooks = []NodeHook{s.cleanNodeEdges}

	return s, nil
}

// Types exposes the edge-type directory backed by the same store.
func (s *GraphService) Types() *TypeDirectory {
	return s.types
}

// Node kind registry: only registered kinds participate as graph nodes, so
// lifecycle events for anything else (including the graph's own bookkeeping
// entities) never trigger cleanup.

func (s *GraphService) RegisterNodeKind(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeKinds[kind] = struct{}{}
}

func (s *GraphService) UnregisterNodeKind(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodeKinds, kind)
}

func (s *GraphService) IsRegisteredNodeKind(kind string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodeKinds[kind]
	return ok
}

// OnEdgeMutation registers a synchronous in-transaction subscriber.
func (s *GraphService) OnEdgeMutation(hook MutationHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// OnNodeEvent registers a subscriber for node lifecycle events.
func (s *GraphService) OnNodeEvent(hook NodeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeHooks = append(s.nodeHooks, hook)
}

// ClearCache drops every cache entry. Durable state is untouched; subsequent
// reads rebuild lazily.
func (s *GraphService) ClearCache(ctx context.Context) error {
	if err := s.cache.FlushByPrefix(ctx); err != nil {
		return fmt.Errorf("failed to clear graph cache: %w", err)
	}
	s.types.Clear()
	return nil
}

// txEffects accumulates, per logical write, the cache keys touched and the
// mutations fired, so a failed transaction can invalidate exactly what it
// dirtied and a committed one knows what to publish.
type txEffects struct {
	touched   []string
	mutations []domain.EdgeMutation
}

func (fx *txEffects) touch(keys ...string) {
	fx.touched = append(fx.touched, keys...)
}

// runWrite wraps a write in the durable transaction scope. On any error the
// durable transaction rolls back and every cache key the attempt touched is
// deleted: cache entries are rebuildable, so dropping them restores
// store/cache agreement no matter how far the pipeline got.
func (s *GraphService) runWrite(ctx context.Context, fn func(tx StoreTx, fx *txEffects) error) (*txEffects, error) {
	fx := &txEffects{}
	err := s.store.WithinTransaction(ctx, func(tx StoreTx) error {
		return fn(tx, fx)
	})
	if err != nil {
		if len(fx.touched) > 0 {
			if cacheErr := s.cache.Delete(ctx, fx.touched...); cacheErr != nil {
				s.logger.Error("failed to invalidate cache after rollback",
					"keys", fx.touched, "error", cacheErr)
			}
		}
		return nil, err
	}
	return fx, nil
}

// fireEdgeMutation runs the enforcers and the registered hooks synchronously
// within the transaction, then records the mutation for post-commit
// publishing. Enforcers may recurse through the engine's internal write
// helpers (mirror edges fire their own mutations).
func (s *GraphService) fireEdgeMutation(ctx context.Context, tx StoreTx, fx *txEffects, mutation domain.EdgeMutation) error {
	fx.mutations = append(fx.mutations, mutation)

	for _, enforce := range s.enforcers {
		if err := enforce(ctx, tx, fx, mutation); err != nil {
			return err
		}
	}

	s.mu.RLock()
	hooks := make([]MutationHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, mutation); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphService) publish(ctx context.Context, fx *txEffects) {
	if s.publisher == nil || len(fx.mutations) == 0 {
		return
	}
	if err := s.publisher.PublishEdgeMutations(ctx, fx.mutations); err != nil {
		s.logger.Error("failed to publish edge mutations", "count", len(fx.mutations), "error", err)
	}
}

// Node lifecycle passthrough. Events fire only for registered kinds.

func (s *GraphService) NodeCreated(ctx context.Context, node domain.NodeRef) error {
	return s.fireNodeEvent(ctx, domain.NodeEvent{Kind: domain.NodeCreated, Node: node})
}

func (s *GraphService) NodeUpdated(ctx context.Context, node domain.NodeRef) error {
	return s.fireNodeEvent(ctx, domain.NodeEvent{Kind: domain.NodeUpdated, Node: node})
}

// NodeDeleted triggers cascade cleanup of the node's outgoing edges.
func (s *GraphService) NodeDeleted(ctx context.Context, node domain.NodeRef) error {
	return s.fireNodeEvent(ctx, domain.NodeEvent{Kind: domain.NodeDeleted, Node: node})
}

func (s *GraphService) fireNodeEvent(ctx context.Context, event domain.NodeEvent) error {
	if !s.IsRegisteredNodeKind(event.Node.Kind) {
		return nil
	}

	s.mu.RLock()
	hooks := make([]NodeHook, len(s.nodeHooks))
	copy(hooks, s.nodeHooks)
	s.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNodeEvents(ctx, []domain.NodeEvent{event}); err != nil {
			s.logger.Error("failed to publish node event", "kind", event.Kind, "node", event.Node.String(), "error", err)
		}
	}
	return nil
}
