package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

// AddEdge creates a directed edge from one node to another, stamped with the
// current time. The edge snapshot is always written to the cache; the edge
// list and counter entries are only updated when already warm, cold ones are
// rebuilt lazily on read. Returns domain.ErrDuplicateEdge when the triple
// already exists in the scope.
func (s *GraphService) AddEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, attributes map[string]any) (*entities.Edge, error) {
	attrs, err := domain.NormalizeAttributes(attributes)
	if err != nil {
		return nil, err
	}

	var created *entities.Edge
	fx, err := s.runWrite(ctx, func(tx StoreTx, fx *txEffects) error {
		edge, err := s.addEdgeTx(ctx, tx, fx, from, to, typeID, attrs, s.scope, false)
		if err != nil {
			return err
		}
		created = edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, fx)
	return created, nil
}

// ChangeEdge replaces the attributes of an existing edge and restamps its
// time, keeping the triple intact; when the triple does not exist it creates
// the edge instead, through the full create pipeline. A replace leaves the
// counter untouched and mirror edges keep their own attributes.
func (s *GraphService) ChangeEdge(ctx context.Context, from, to domain.NodeRef, typeID int64, attributes map[string]any) (*entities.Edge, error) {
	attrs, err := domain.NormalizeAttributes(attributes)
	if err != nil {
		return nil, err
	}

	var changed *entities.Edge
	fx, err := s.runWrite(ctx, func(tx StoreTx, fx *txEffects) error {
		existing, err := tx.GetEdge(ctx, from, to, typeID, s.scope)
		if errors.Is(err, domain.ErrEdgeNotFound) {
			changed, err = s.addEdgeTx(ctx, tx, fx, from, to, typeID, attrs, s.scope, false)
			return err
		}
		if err != nil {
			return err
		}

		if _, err := tx.DeleteEdge(ctx, from, to, typeID, s.scope); err != nil {
			return fmt.Errorf("failed to replace edge %s-[%d]->%s: %w", from, typeID, to, err)
		}
		edge := &entities.Edge{
			FromKind:   from.Kind,
			FromID:     from.ID,
			ToKind:     to.Kind,
			ToID:       to.ID,
			TypeID:     typeID,
			Attributes: attrs,
			Auto:       existing.Auto,
			Scope:      s.scope,
			Time:       s.timestamp(),
		}
		if err := tx.CreateEdge(ctx, edge); err != nil {
			return fmt.Errorf("failed to replace edge %s-[%d]->%s: %w", from, typeID, to, err)
		}

		if err := s.writeEdgeToCache(ctx, fx, edge, existing); err != nil {
			return err
		}

		changed = edge
		return s.fireEdgeMutation(ctx, tx, fx, domain.EdgeMutation{Kind: domain.EdgeUpdated, Edge: *edge})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, fx)
	return changed, nil
}

// DeleteEdge removes an edge. Reports false without error when the triple
// does not exist, matching the idempotent write surface.
func (s *GraphService) DeleteEdge(ctx context.Context, from, to domain.NodeRef, typeID int64) (bool, error) {
	deleted := false
	fx, err := s.runWrite(ctx, func(tx StoreTx, fx *txEffects) error {
		err := s.deleteEdgeTx(ctx, tx, fx, from, to, typeID, s.scope)
		if errors.Is(err, domain.ErrEdgeNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.publish(ctx, fx)
	return deleted, nil
}

// DeleteAllEdges removes every edge with the given origin and type across
// all scopes that hold one, firing the usual per-edge mutation pipeline so
// counters and mirror edges converge. The edge list and counter cache keys
// of each affected scope are dropped outright.
func (s *GraphService) DeleteAllEdges(ctx context.Context, from domain.NodeRef, typeID int64) (int, error) {
	removed := 0
	fx, err := s.runWrite(ctx, func(tx StoreTx, fx *txEffects) error {
		scopes, err := tx.EdgeScopes(ctx, from, typeID)
		if err != nil {
			return fmt.Errorf("failed to list scopes for %s type %d: %w", from, typeID, err)
		}

		for _, scope := range scopes {
			edges, err := tx.ListEdges(ctx, from, typeID, scope)
			if err != nil {
				return fmt.Errorf("failed to list edges for %s type %d: %w", from, typeID, err)
			}
			for i := range edges {
				edge := &edges[i]
				to := domain.NodeRef{Kind: edge.ToKind, ID: edge.ToID}
				if err := s.deleteEdgeTx(ctx, tx, fx, from, to, typeID, scope); err != nil {
					if errors.Is(err, domain.ErrEdgeNotFound) {
						continue
					}
					return err
				}
				removed++
			}

			listKey := edgeListKey(from, typeID, scope)
			cntKey := countKey(from, typeID, scope)
			fx.touch(listKey, cntKey)
			if err := s.cache.Delete(ctx, listKey, cntKey); err != nil {
				return fmt.Errorf("failed to drop cache keys for %s type %d: %w", from, typeID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, fx)
	return removed, nil
}

// addEdgeTx is the in-transaction create path, shared by AddEdge and the
// mirror enforcer. The auto flag marks edges created by mirroring.
func (s *GraphService) addEdgeTx(ctx context.Context, tx StoreTx, fx *txEffects, from, to domain.NodeRef, typeID int64, attrs json.RawMessage, scope string, auto bool) (*entities.Edge, error) {
	edge := &entities.Edge{
		FromKind:   from.Kind,
		FromID:     from.ID,
		ToKind:     to.Kind,
		ToID:       to.ID,
		TypeID:     typeID,
		Attributes: attrs,
		Auto:       auto,
		Scope:      scope,
		Time:       s.timestamp(),
	}
	if err := tx.CreateEdge(ctx, edge); err != nil {
		return nil, fmt.Errorf("failed to create edge %s-[%d]->%s: %w", from, typeID, to, err)
	}

	pipe := s.cache.Pipeline()

	snapKey := edgeKey(from, to, typeID, scope)
	fx.touch(snapKey)
	pipe.Set(snapKey, marshalEdge(edge))

	listKey := edgeListKey(from, typeID, scope)
	warm, err := s.cache.Exists(ctx, listKey)
	if err != nil {
		return nil, fmt.Errorf("failed to probe edge list %s: %w", listKey, err)
	}
	if warm {
		fx.touch(listKey)
		pipe.ZAdd(listKey, marshalEdgeItem(edgeItemOf(edge)), edgeScore(edge.Time))
	}

	cntKey := countKey(from, typeID, scope)
	warm, err = s.cache.Exists(ctx, cntKey)
	if err != nil {
		return nil, fmt.Errorf("failed to probe counter %s: %w", cntKey, err)
	}
	if warm {
		fx.touch(cntKey)
		pipe.Incr(cntKey)
	}

	if err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply cache updates for edge %s-[%d]->%s: %w", from, typeID, to, err)
	}

	if err := s.fireEdgeMutation(ctx, tx, fx, domain.EdgeMutation{Kind: domain.EdgeCreated, Edge: *edge}); err != nil {
		return nil, err
	}
	return edge, nil
}

// deleteEdgeTx is the in-transaction delete path, shared by DeleteEdge, the
// mirror enforcer and the cascade cleaner. Returns domain.ErrEdgeNotFound
// when the triple is absent.
func (s *GraphService) deleteEdgeTx(ctx context.Context, tx StoreTx, fx *txEffects, from, to domain.NodeRef, typeID int64, scope string) error {
	edge, err := tx.GetEdge(ctx, from, to, typeID, scope)
	if err != nil {
		return err
	}

	if _, err := tx.DeleteEdge(ctx, from, to, typeID, scope); err != nil {
		return fmt.Errorf("failed to delete edge %s-[%d]->%s: %w", from, typeID, to, err)
	}

	pipe := s.cache.Pipeline()

	snapKey := edgeKey(from, to, typeID, scope)
	fx.touch(snapKey)
	pipe.Delete(snapKey)

	listKey := edgeListKey(from, typeID, scope)
	warm, err := s.cache.Exists(ctx, listKey)
	if err != nil {
		return fmt.Errorf("failed to probe edge list %s: %w", listKey, err)
	}
	if warm {
		fx.touch(listKey)
		pipe.ZRem(listKey, marshalEdgeItem(edgeItemOf(edge)))
	}

	cntKey := countKey(from, typeID, scope)
	warm, err = s.cache.Exists(ctx, cntKey)
	if err != nil {
		return fmt.Errorf("failed to probe counter %s: %w", cntKey, err)
	}
	if warm {
		fx.touch(cntKey)
		pipe.Decr(cntKey)
	}

	if err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply cache updates for edge %s-[%d]->%s: %w", from, typeID, to, err)
	}

	return s.fireEdgeMutation(ctx, tx, fx, domain.EdgeMutation{Kind: domain.EdgeDeleted, Edge: *edge})
}

// writeEdgeToCache refreshes the snapshot and, when the edge list is warm,
// swaps the old list member for the rewritten one. Used by ChangeEdge, which
// leaves the counter alone.
func (s *GraphService) writeEdgeToCache(ctx context.Context, fx *txEffects, edge, previous *entities.Edge) error {
	from := domain.NodeRef{Kind: edge.FromKind, ID: edge.FromID}
	to := domain.NodeRef{Kind: edge.ToKind, ID: edge.ToID}

	pipe := s.cache.Pipeline()

	snapKey := edgeKey(from, to, edge.TypeID, edge.Scope)
	fx.touch(snapKey)
	pipe.Set(snapKey, marshalEdge(edge))

	listKey := edgeListKey(from, edge.TypeID, edge.Scope)
	warm, err := s.cache.Exists(ctx, listKey)
	if err != nil {
		return fmt.Errorf("failed to probe edge list %s: %w", listKey, err)
	}
	if warm {
		fx.touch(listKey)
		pipe.ZRem(listKey, marshalEdgeItem(edgeItemOf(previous)))
		pipe.ZAdd(listKey, marshalEdgeItem(edgeItemOf(edge)), edgeScore(edge.Time))
	}

	if err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply cache updates for edge %s-[%d]->%s: %w", from, edge.TypeID, to, err)
	}
	return nil
}

// timestamp stamps edges at millisecond precision so durable rows, cache
// scores and list members round trip to identical instants.
func (s *GraphService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
