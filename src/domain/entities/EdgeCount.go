package entities

// EdgeCount is the denormalized number of live edges with a given origin and
// type within a scope. Rows are never deleted when they reach zero; a
// zero-count row avoids a recreate race.
type EdgeCount struct {
	ID       int64  `json:"id"`
	FromKind string `json:"from_kind"`
	FromID   string `json:"from_id"`
	TypeID   int64  `json:"type_id"`
	Scope    string `json:"scope,omitempty"`
	Count    int64  `json:"count"`
}
