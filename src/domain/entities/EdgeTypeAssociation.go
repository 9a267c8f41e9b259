package entities

// EdgeTypeAssociation declares that edges of the direct type imply a mirror
// edge of the inverse type. For every (A→B) row a symmetric (B→A) row exists;
// a type participates as direct in at most one association.
type EdgeTypeAssociation struct {
	ID            int64 `json:"id"`
	DirectTypeID  int64 `json:"direct_type_id"`
	InverseTypeID int64 `json:"inverse_type_id"`
}

// SelfSymmetric reports whether the association mirrors a type onto itself.
func (a EdgeTypeAssociation) SelfSymmetric() bool {
	return a.DirectTypeID == a.InverseTypeID
}
