package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

// Cache key shapes. The scope suffix is omitted for the empty scope so
// single-tenant deployments get the short form.

func countKey(from domain.NodeRef, typeID int64, scope string) string {
	return withScope(fmt.Sprintf("count:%s:%s:%d", from.Kind, from.ID, typeID), scope)
}

func edgeListKey(from domain.NodeRef, typeID int64, scope string) string {
	return withScope(fmt.Sprintf("elist:%s:%s:%d", from.Kind, from.ID, typeID), scope)
}

func edgeKey(from, to domain.NodeRef, typeID int64, scope string) string {
	return withScope(fmt.Sprintf("edge:%s:%s:%d:%s:%s", from.Kind, from.ID, typeID, to.Kind, to.ID), scope)
}

func withScope(key, scope string) string {
	if scope == "" {
		return key
	}
	return key + ":" + scope
}

// edgeScore orders edge lists by creation time, newest first on reverse reads.
func edgeScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func edgeItemOf(edge *entities.Edge) domain.EdgeItem {
	return domain.EdgeItem{
		To:         domain.NodeRef{Kind: edge.ToKind, ID: edge.ToID},
		Attributes: canonicalJSON(edge.Attributes),
		Time:       edge.Time,
	}
}

// canonicalJSON re-serializes a JSON document into Go's canonical form
// (compact, object keys sorted). Sorted-set members must be byte-identical
// between the write path and a later removal built from a store-loaded row,
// and jsonb round trips do not preserve formatting.
func canonicalJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return raw
	}
	canonical, err := json.Marshal(value)
	if err != nil {
		return raw
	}
	return canonical
}

func marshalEdge(edge *entities.Edge) []byte {
	raw, _ := json.Marshal(edge)
	return raw
}

func unmarshalEdge(raw []byte, edge *entities.Edge) error {
	return json.Unmarshal(raw, edge)
}

func marshalEdgeItem(item domain.EdgeItem) []byte {
	raw, _ := json.Marshal(item)
	return raw
}

func unmarshalEdgeItems(members [][]byte) ([]domain.EdgeItem, error) {
	items := make([]domain.EdgeItem, 0, len(members))
	for _, member := range members {
		var item domain.EdgeItem
		if err := json.Unmarshal(member, &item); err != nil {
			return nil, fmt.Errorf("corrupt edge list member: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}
