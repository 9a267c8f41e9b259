package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"socialgraph/src/domain/entities"
)

var (
	// ErrDuplicateEdge is returned by AddEdge when the (origin, type, target)
	// triple already exists in the given scope. Callers wanting upsert
	// semantics must use ChangeEdge.
	ErrDuplicateEdge = errors.New("edge already exists")

	ErrEdgeNotFound        = errors.New("edge not found")
	ErrEdgeTypeNotFound    = errors.New("edge type not found")
	ErrAssociationNotFound = errors.New("edge type association not found")
	ErrCountNotFound       = errors.New("edge count not found")

	// ErrInvalidConfiguration means a required collaborator was missing at
	// construction time. It is never returned from a call path.
	ErrInvalidConfiguration = errors.New("invalid graph configuration")

	// ErrInconsistentState flags a structurally impossible observation, e.g.
	// decrementing a counter that does not exist. It is reported, not raised.
	ErrInconsistentState = errors.New("inconsistent graph state")

	ErrUnavailableServer = errors.New("Oops, something unexpected happened. Please try again later.")
)

// NodeRef identifies a graph node: an instance of any registered entity kind.
type NodeRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (n NodeRef) String() string {
	return n.Kind + ":" + n.ID
}

func (n NodeRef) IsZero() bool {
	return n.Kind == "" && n.ID == ""
}

// EdgeItem is the edge-list representation returned by range reads and stored
// as the sorted-set member in the cache: who the edge points at, its payload
// and when it was created.
type EdgeItem struct {
	To         NodeRef         `json:"to"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
	Time       time.Time       `json:"time"`
}

// MutationKind is the closed set of graph mutation events.
type MutationKind string

const (
	EdgeCreated MutationKind = "edge.created"
	EdgeUpdated MutationKind = "edge.updated"
	EdgeDeleted MutationKind = "edge.deleted"

	NodeCreated MutationKind = "node.created"
	NodeUpdated MutationKind = "node.updated"
	NodeDeleted MutationKind = "node.deleted"
)

// EdgeMutation is handed to in-transaction hooks and, after commit, to the
// external publisher.
type EdgeMutation struct {
	Kind MutationKind  `json:"kind"`
	Edge entities.Edge `json:"edge"`
}

// NodeEvent is the passthrough lifecycle event for registered node kinds.
type NodeEvent struct {
	Kind MutationKind `json:"kind"`
	Node NodeRef      `json:"node"`
}

// NormalizeAttributes serializes a free-form attribute map into the canonical
// JSON stored on the edge row and inside cached edge items. Canonical bytes
// matter: removing a member from the cached edge list requires reproducing
// the exact representation that was added.
func NormalizeAttributes(attributes map[string]any) (json.RawMessage, error) {
	if len(attributes) == 0 {
		return json.RawMessage(`{}`), nil
	}
	raw, err := json.Marshal(attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize edge attributes: %w", err)
	}
	return raw, nil
}
