package graph

import (
	"context"
	"errors"
	"fmt"

	"socialgraph/src/domain"
)

// mirrorSymmetricEdge keeps associated edge types paired: creating an edge of
// a type with a declared inverse creates the reverse edge of the inverse
// type, flagged auto; deleting either side deletes the other. Auto edges do
// not seed mirrors of their own, which terminates the recursion, and the
// delete path terminates because the reverse row is already gone inside the
// same transaction.
func (s *GraphService) mirrorSymmetricEdge(ctx context.Context, tx StoreTx, fx *txEffects, mutation domain.EdgeMutation) error {
	edge := mutation.Edge

	association, err := s.types.associationForDirectTx(ctx, tx, edge.TypeID)
	if errors.Is(err, domain.ErrAssociationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve association for type %d: %w", edge.TypeID, err)
	}

	from := domain.NodeRef{Kind: edge.FromKind, ID: edge.FromID}
	to := domain.NodeRef{Kind: edge.ToKind, ID: edge.ToID}

	switch mutation.Kind {
	case domain.EdgeCreated:
		if edge.Auto {
			return nil
		}
		_, err := tx.GetEdge(ctx, to, from, association.InverseTypeID, edge.Scope)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrEdgeNotFound) {
			return fmt.Errorf("failed to probe mirror of %s-[%d]->%s: %w", from, edge.TypeID, to, err)
		}
		_, err = s.addEdgeTx(ctx, tx, fx, to, from, association.InverseTypeID, edge.Attributes, edge.Scope, true)
		if errors.Is(err, domain.ErrDuplicateEdge) {
			return nil
		}
		return err

	case domain.EdgeDeleted:
		err := s.deleteEdgeTx(ctx, tx, fx, to, from, association.InverseTypeID, edge.Scope)
		if errors.Is(err, domain.ErrEdgeNotFound) {
			return nil
		}
		return err

	default:
		return nil
	}
}

// maintainCount keeps the durable per-(origin, type, scope) counter in step
// with edge creation and deletion. The warm counter cache entry moves inside
// the same write pipeline as the edge, this enforcer owns only the row.
func (s *GraphService) maintainCount(ctx context.Context, tx StoreTx, fx *txEffects, mutation domain.EdgeMutation) error {
	edge := mutation.Edge
	from := domain.NodeRef{Kind: edge.FromKind, ID: edge.FromID}

	switch mutation.Kind {
	case domain.EdgeCreated:
		_, err := tx.AdjustCount(ctx, from, edge.TypeID, edge.Scope, 1, 1)
		if err != nil {
			return fmt.Errorf("failed to increment counter for %s type %d: %w", from, edge.TypeID, err)
		}
		return nil

	case domain.EdgeDeleted:
		created, err := tx.AdjustCount(ctx, from, edge.TypeID, edge.Scope, -1, 0)
		if err != nil {
			return fmt.Errorf("failed to decrement counter for %s type %d: %w", from, edge.TypeID, err)
		}
		if created {
			// A delete observed before any create for this key. The row is
			// pinned at zero rather than going negative.
			s.logger.Warn("counter missing on edge delete",
				"from", from.String(), "type_id", edge.TypeID, "scope", edge.Scope,
				"error", domain.ErrInconsistentState)
		}
		return nil

	default:
		return nil
	}
}

// cleanNodeEdges cascades a node deletion into the removal of its outgoing
// edges of every known type. Each removal runs the full per-edge pipeline,
// so mirror edges pointing back at the deleted node fall with it.
func (s *GraphService) cleanNodeEdges(ctx context.Context, event domain.NodeEvent) error {
	if event.Kind != domain.NodeDeleted {
		return nil
	}

	edgeTypes, err := s.types.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list edge types for cleanup of %s: %w", event.Node, err)
	}

	for _, edgeType := range edgeTypes {
		if _, err := s.DeleteAllEdges(ctx, event.Node, edgeType.ID); err != nil {
			return fmt.Errorf("failed to clean edges of %s type %d: %w", event.Node, edgeType.ID, err)
		}
	}
	return nil
}
