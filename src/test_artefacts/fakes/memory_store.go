package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
	"socialgraph/src/services/graph"
)

// MemoryStore is an in-memory durable store for engine tests. Transactions
// snapshot the whole state up front and restore it when the callback fails,
// giving the same all-or-nothing behavior as the real store.
type MemoryStore struct {
	mu    sync.Mutex
	state storeState
}

type storeState struct {
	seq int64

	edges  map[string]entities.Edge
	counts map[string]int64

	edgeTypes    map[int64]entities.EdgeType
	associations map[int64]entities.EdgeTypeAssociation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newStoreState()}
}

func newStoreState() storeState {
	return storeState{
		edges:        make(map[string]entities.Edge),
		counts:       make(map[string]int64),
		edgeTypes:    make(map[int64]entities.EdgeType),
		associations: make(map[int64]entities.EdgeTypeAssociation),
	}
}

func (st storeState) clone() storeState {
	clone := newStoreState()
	clone.seq = st.seq
	for k, v := range st.edges {
		clone.edges[k] = v
	}
	for k, v := range st.counts {
		clone.counts[k] = v
	}
	for k, v := range st.edgeTypes {
		clone.edgeTypes[k] = v
	}
	for k, v := range st.associations {
		clone.associations[k] = v
	}
	return clone
}

func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(tx graph.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memoryTx{state: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Direct calls run as single-operation transactions.

func (s *MemoryStore) CreateEdge(ctx context.Context, edge *entities.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).CreateEdge(ctx, edge)
}

func (s *MemoryStore) GetEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (*entities.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).GetEdge(ctx, from, to, typeID, scope)
}

func (s *MemoryStore) DeleteEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).DeleteEdge(ctx, from, to, typeID, scope)
}

func (s *MemoryStore) ListEdges(ctx context.Context, from domain.NodeRef, typeID int64, scope string) ([]entities.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).ListEdges(ctx, from, typeID, scope)
}

func (s *MemoryStore) EdgeScopes(ctx context.Context, from domain.NodeRef, typeID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).EdgeScopes(ctx, from, typeID)
}

func (s *MemoryStore) GetCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).GetCount(ctx, from, typeID, scope)
}

func (s *MemoryStore) AdjustCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string, delta, init int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).AdjustCount(ctx, from, typeID, scope, delta, init)
}

func (s *MemoryStore) CreateEdgeType(ctx context.Context, edgeType *entities.EdgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).CreateEdgeType(ctx, edgeType)
}

func (s *MemoryStore) GetEdgeTypeByID(ctx context.Context, id int64) (*entities.EdgeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).GetEdgeTypeByID(ctx, id)
}

func (s *MemoryStore) GetEdgeTypeByName(ctx context.Context, name string) (*entities.EdgeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).GetEdgeTypeByName(ctx, name)
}

func (s *MemoryStore) DeleteEdgeType(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).DeleteEdgeType(ctx, id)
}

func (s *MemoryStore) ListEdgeTypes(ctx context.Context) ([]entities.EdgeType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).ListEdgeTypes(ctx)
}

func (s *MemoryStore) CreateAssociation(ctx context.Context, association *entities.EdgeTypeAssociation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).CreateAssociation(ctx, association)
}

func (s *MemoryStore) GetAssociationByDirect(ctx context.Context, directTypeID int64) (*entities.EdgeTypeAssociation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).GetAssociationByDirect(ctx, directTypeID)
}

func (s *MemoryStore) DeleteAssociation(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryTx{state: &s.state}).DeleteAssociation(ctx, id)
}

// EdgeRowCount reports how many edge rows exist, for test assertions.
func (s *MemoryStore) EdgeRowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.edges)
}

// memoryTx operates on the live state with the store's lock already held.
type memoryTx struct {
	state *storeState
}

func edgeStateKey(fromKind, fromID string, typeID int64, toKind, toID, scope string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s", fromKind, fromID, typeID, toKind, toID, scope)
}

func countStateKey(from domain.NodeRef, typeID int64, scope string) string {
	return fmt.Sprintf("%s|%s|%d|%s", from.Kind, from.ID, typeID, scope)
}

func (t *memoryTx) CreateEdge(ctx context.Context, edge *entities.Edge) error {
	key := edgeStateKey(edge.FromKind, edge.FromID, edge.TypeID, edge.ToKind, edge.ToID, edge.Scope)
	if _, exists := t.state.edges[key]; exists {
		return fmt.Errorf("edge %s:%s-[%d]->%s:%s: %w",
			edge.FromKind, edge.FromID, edge.TypeID, edge.ToKind, edge.ToID, domain.ErrDuplicateEdge)
	}

	t.state.seq++
	edge.ID = t.state.seq
	t.state.edges[key] = *edge
	return nil
}

func (t *memoryTx) GetEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (*entities.Edge, error) {
	key := edgeStateKey(from.Kind, from.ID, typeID, to.Kind, to.ID, scope)
	edge, exists := t.state.edges[key]
	if !exists {
		return nil, fmt.Errorf("edge %s-[%d]->%s: %w", from, typeID, to, domain.ErrEdgeNotFound)
	}
	return &edge, nil
}

func (t *memoryTx) DeleteEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, scope string) (bool, error) {
	key := edgeStateKey(from.Kind, from.ID, typeID, to.Kind, to.ID, scope)
	if _, exists := t.state.edges[key]; !exists {
		return false, nil
	}
	delete(t.state.edges, key)
	return true, nil
}

func (t *memoryTx) ListEdges(ctx context.Context, from domain.NodeRef, typeID int64, scope string) ([]entities.Edge, error) {
	var edges []entities.Edge
	for _, edge := range t.state.edges {
		if edge.FromKind == from.Kind && edge.FromID == from.ID && edge.TypeID == typeID && edge.Scope == scope {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Time.Equal(edges[j].Time) {
			return edges[i].ID < edges[j].ID
		}
		return edges[i].Time.Before(edges[j].Time)
	})
	return edges, nil
}

func (t *memoryTx) EdgeScopes(ctx context.Context, from domain.NodeRef, typeID int64) ([]string, error) {
	seen := make(map[string]struct{})
	var scopes []string
	for _, edge := range t.state.edges {
		if edge.FromKind == from.Kind && edge.FromID == from.ID && edge.TypeID == typeID {
			if _, dup := seen[edge.Scope]; !dup {
				seen[edge.Scope] = struct{}{}
				scopes = append(scopes, edge.Scope)
			}
		}
	}
	sort.Strings(scopes)
	return scopes, nil
}

func (t *memoryTx) GetCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string) (int64, error) {
	count, exists := t.state.counts[countStateKey(from, typeID, scope)]
	if !exists {
		return 0, fmt.Errorf("counter for %s type %d: %w", from, typeID, domain.ErrCountNotFound)
	}
	return count, nil
}

func (t *memoryTx) AdjustCount(ctx context.Context, from domain.NodeRef, typeID int64, scope string, delta, init int64) (bool, error) {
	key := countStateKey(from, typeID, scope)
	if current, exists := t.state.counts[key]; exists {
		t.state.counts[key] = current + delta
		return false, nil
	}
	t.state.counts[key] = init
	return true, nil
}

func (t *memoryTx) CreateEdgeType(ctx context.Context, edgeType *entities.EdgeType) error {
	for _, existing := range t.state.edgeTypes {
		if existing.Name == edgeType.Name {
			return fmt.Errorf("edge type %q already exists", edgeType.Name)
		}
	}
	t.state.seq++
	edgeType.ID = t.state.seq
	t.state.edgeTypes[edgeType.ID] = *edgeType
	return nil
}

func (t *memoryTx) GetEdgeTypeByID(ctx context.Context, id int64) (*entities.EdgeType, error) {
	edgeType, exists := t.state.edgeTypes[id]
	if !exists {
		return nil, fmt.Errorf("edge type %d: %w", id, domain.ErrEdgeTypeNotFound)
	}
	return &edgeType, nil
}

func (t *memoryTx) GetEdgeTypeByName(ctx context.Context, name string) (*entities.EdgeType, error) {
	for _, edgeType := range t.state.edgeTypes {
		if edgeType.Name == name {
			found := edgeType
			return &found, nil
		}
	}
	return nil, fmt.Errorf("edge type %q: %w", name, domain.ErrEdgeTypeNotFound)
}

func (t *memoryTx) DeleteEdgeType(ctx context.Context, id int64) (bool, error) {
	if _, exists := t.state.edgeTypes[id]; !exists {
		return false, nil
	}
	delete(t.state.edgeTypes, id)
	for assocID, assoc := range t.state.associations {
		if assoc.DirectTypeID == id || assoc.InverseTypeID == id {
			delete(t.state.associations, assocID)
		}
	}
	return true, nil
}

func (t *memoryTx) ListEdgeTypes(ctx context.Context) ([]entities.EdgeType, error) {
	edgeTypes := make([]entities.EdgeType, 0, len(t.state.edgeTypes))
	for _, edgeType := range t.state.edgeTypes {
		edgeTypes = append(edgeTypes, edgeType)
	}
	sort.Slice(edgeTypes, func(i, j int) bool { return edgeTypes[i].ID < edgeTypes[j].ID })
	return edgeTypes, nil
}

func (t *memoryTx) CreateAssociation(ctx context.Context, association *entities.EdgeTypeAssociation) error {
	for _, existing := range t.state.associations {
		if existing.DirectTypeID == association.DirectTypeID {
			return fmt.Errorf("association for type %d already exists", association.DirectTypeID)
		}
	}
	t.state.seq++
	association.ID = t.state.seq
	t.state.associations[association.ID] = *association
	return nil
}

func (t *memoryTx) GetAssociationByDirect(ctx context.Context, directTypeID int64) (*entities.EdgeTypeAssociation, error) {
	for _, assoc := range t.state.associations {
		if assoc.DirectTypeID == directTypeID {
			found := assoc
			return &found, nil
		}
	}
	return nil, fmt.Errorf("association for type %d: %w", directTypeID, domain.ErrAssociationNotFound)
}

func (t *memoryTx) DeleteAssociation(ctx context.Context, id int64) (bool, error) {
	if _, exists := t.state.associations[id]; !exists {
		return false, nil
	}
	delete(t.state.associations, id)
	return true, nil
}
