package entities

import (
	"encoding/json"
	"time"
)

// Edge is a directed, typed relationship between two graph nodes.
// At most one edge may exist per (from, type, to) triple within a scope.
type Edge struct {
	ID       int64  `json:"id"`
	FromKind string `json:"from_kind"`
	FromID   string `json:"from_id"`
	ToKind   string `json:"to_kind"`
	ToID     string `json:"to_id"`
	TypeID   int64  `json:"type_id"`
	// Free-form payload, kept as raw JSON so the stored bytes stay canonical.
	Attributes json.RawMessage `json:"attributes,omitempty"`
	// Auto marks edges created by the symmetric-mirroring enforcer rather
	// than directly by a caller.
	Auto  bool      `json:"auto"`
	Scope string    `json:"scope,omitempty"`
	Time  time.Time `json:"time"`
}
