package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

// EdgeCount returns how many edges leave the node with the given type. The
// counter cache is authoritative once warm; a miss falls through to the
// durable counter row, defaulting to zero, and warms the key.
func (s *GraphService) EdgeCount(ctx context.Context, from domain.NodeRef, typeID int64) (int64, error) {
	key := countKey(from, typeID, s.scope)

	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	if found {
		count, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
		}
		return count, nil
	}

	count, err := s.store.GetCount(ctx, from, typeID, s.scope)
	if errors.Is(err, domain.ErrCountNotFound) {
		count = 0
	} else if err != nil {
		return 0, fmt.Errorf("failed to load counter for %s type %d: %w", from, typeID, err)
	}

	if err := s.cache.Set(ctx, key, []byte(strconv.FormatInt(count, 10))); err != nil {
		return 0, fmt.Errorf("failed to warm counter %s: %w", key, err)
	}
	return count, nil
}

// HasEdge reports whether the edge exists, using the snapshot protocol.
func (s *GraphService) HasEdge(ctx context.Context, from, to domain.NodeRef, typeID int64) (bool, error) {
	edge, err := s.GetEdge(ctx, from, to, typeID)
	if err != nil {
		return false, err
	}
	return edge != nil, nil
}

// GetEdge returns the edge snapshot, or nil without error when the triple
// does not exist. Absence is never cached, only present edges warm the key.
func (s *GraphService) GetEdge(ctx context.Context, from, to domain.NodeRef, typeID int64) (*entities.Edge, error) {
	key := edgeKey(from, to, typeID, s.scope)

	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge snapshot %s: %w", key, err)
	}
	if found {
		edge := &entities.Edge{}
		if err := unmarshalEdge(raw, edge); err != nil {
			return nil, fmt.Errorf("corrupt edge snapshot %s: %w", key, err)
		}
		return edge, nil
	}

	edge, err := s.store.GetEdge(ctx, from, to, typeID, s.scope)
	if errors.Is(err, domain.ErrEdgeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load edge %s-[%d]->%s: %w", from, typeID, to, err)
	}

	if err := s.cache.Set(ctx, key, marshalEdge(edge)); err != nil {
		return nil, fmt.Errorf("failed to warm edge snapshot %s: %w", key, err)
	}
	return edge, nil
}

// GetEdges resolves many destinations of the same origin and type at once,
// preserving the requested order and skipping absent triples. A single cold
// snapshot triggers one durable list scan instead of per-edge queries.
func (s *GraphService) GetEdges(ctx context.Context, from domain.NodeRef, typeID int64, tos []domain.NodeRef) ([]entities.Edge, error) {
	edges := make([]entities.Edge, 0, len(tos))
	cold := false
	for _, to := range tos {
		raw, found, err := s.cache.Get(ctx, edgeKey(from, to, typeID, s.scope))
		if err != nil {
			return nil, fmt.Errorf("failed to read edge snapshot for %s: %w", to, err)
		}
		if !found {
			cold = true
			break
		}
		edge := entities.Edge{}
		if err := unmarshalEdge(raw, &edge); err != nil {
			return nil, fmt.Errorf("corrupt edge snapshot for %s: %w", to, err)
		}
		edges = append(edges, edge)
	}
	if !cold {
		return edges, nil
	}

	stored, err := s.store.ListEdges(ctx, from, typeID, s.scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges for %s type %d: %w", from, typeID, err)
	}

	byDest := make(map[domain.NodeRef]*entities.Edge, len(stored))
	pipe := s.cache.Pipeline()
	for i := range stored {
		edge := &stored[i]
		to := domain.NodeRef{Kind: edge.ToKind, ID: edge.ToID}
		byDest[to] = edge
		pipe.Set(edgeKey(from, to, typeID, s.scope), marshalEdge(edge))
	}
	if err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to warm edge snapshots for %s type %d: %w", from, typeID, err)
	}

	edges = edges[:0]
	for _, to := range tos {
		if edge, ok := byDest[to]; ok {
			edges = append(edges, *edge)
		}
	}
	return edges, nil
}

// EdgeRange returns a page of the node's edges, newest first. The cached
// list is consulted first and served as-is when warm; on a cold list a zero
// counter disambiguates an empty origin from an unwarmed one, and a positive
// counter triggers a full rebuild from the store before serving the page.
func (s *GraphService) EdgeRange(ctx context.Context, from domain.NodeRef, typeID int64, offset, limit int64) ([]domain.EdgeItem, error) {
	key := edgeListKey(from, typeID, s.scope)
	warm, err := s.ensureEdgeList(ctx, from, typeID, key)
	if err != nil {
		return nil, err
	}
	if !warm {
		return []domain.EdgeItem{}, nil
	}

	members, err := s.cache.ZRevRange(ctx, key, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge list %s: %w", key, err)
	}
	return unmarshalEdgeItems(members)
}

// EdgeTimeRange returns up to limit edges created in [low, high], newest
// first. The same list-first lookup and lazy rebuild as EdgeRange apply.
func (s *GraphService) EdgeTimeRange(ctx context.Context, from domain.NodeRef, typeID int64, high, low time.Time, limit int64) ([]domain.EdgeItem, error) {
	key := edgeListKey(from, typeID, s.scope)
	warm, err := s.ensureEdgeList(ctx, from, typeID, key)
	if err != nil {
		return nil, err
	}
	if !warm {
		return []domain.EdgeItem{}, nil
	}

	members, err := s.cache.ZRevRangeByScore(ctx, key, edgeScore(high), edgeScore(low), 0, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge list %s: %w", key, err)
	}
	return unmarshalEdgeItems(members)
}

// ensureEdgeList reports whether the sorted set is ready to serve. A warm key
// wins outright, even over a disagreeing counter; only a cold key falls back
// to the counter, where zero proves the origin empty and anything else is
// rebuilt from the durable rows.
func (s *GraphService) ensureEdgeList(ctx context.Context, from domain.NodeRef, typeID int64, key string) (bool, error) {
	warm, err := s.cache.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to probe edge list %s: %w", key, err)
	}
	if warm {
		return true, nil
	}

	count, err := s.EdgeCount(ctx, from, typeID)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}

	edges, err := s.store.ListEdges(ctx, from, typeID, s.scope)
	if err != nil {
		return false, fmt.Errorf("failed to load edges for %s type %d: %w", from, typeID, err)
	}
	if len(edges) == 0 {
		return false, nil
	}

	pipe := s.cache.Pipeline()
	for i := range edges {
		edge := &edges[i]
		pipe.ZAdd(key, marshalEdgeItem(edgeItemOf(edge)), edgeScore(edge.Time))
	}
	if err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to warm edge list %s: %w", key, err)
	}
	return true, nil
}
