package entities

// EdgeType is a named, directed relationship category. ReadAs is the
// human-readable verb form ("likes"); it may be empty.
type EdgeType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	ReadAs string `json:"read_as,omitempty"`
}
