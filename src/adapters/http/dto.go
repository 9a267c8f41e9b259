package http

import (
	"encoding/json"
	"time"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

type EdgeRequestDTO struct {
	FromKind   string         `json:"from_kind"`
	FromID     string         `json:"from_id"`
	ToKind     string         `json:"to_kind"`
	ToID       string         `json:"to_id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type EdgeDTO struct {
	FromKind   string          `json:"from_kind"`
	FromID     string          `json:"from_id"`
	ToKind     string          `json:"to_kind"`
	ToID       string          `json:"to_id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
	Auto       bool            `json:"auto"`
	Time       time.Time       `json:"time"`
}

type EdgeItemDTO struct {
	ToKind     string          `json:"to_kind"`
	ToID       string          `json:"to_id"`
	Attributes json.RawMessage `json:"attributes"`
	Time       time.Time       `json:"time"`
}

type EdgeListDTO struct {
	Edges []EdgeItemDTO `json:"edges"`
}

type EdgeCountDTO struct {
	Count int64 `json:"count"`
}

type BatchGetRequestDTO struct {
	Targets []NodeRefDTO `json:"targets"`
}

type NodeRefDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type EdgeTypeRequestDTO struct {
	Name   string `json:"name"`
	ReadAs string `json:"read_as"`
}

type EdgeTypeDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	ReadAs string `json:"read_as"`
}

type AssociationRequestDTO struct {
	DirectType  string `json:"direct_type"`
	InverseType string `json:"inverse_type"`
}

func newEdgeDTO(edge *entities.Edge, typeName string) EdgeDTO {
	return EdgeDTO{
		FromKind:   edge.FromKind,
		FromID:     edge.FromID,
		ToKind:     edge.ToKind,
		ToID:       edge.ToID,
		Type:       typeName,
		Attributes: edge.Attributes,
		Auto:       edge.Auto,
		Time:       edge.Time,
	}
}

func newEdgeListDTO(items []domain.EdgeItem) EdgeListDTO {
	edges := make([]EdgeItemDTO, 0, len(items))
	for _, item := range items {
		edges = append(edges, EdgeItemDTO{
			ToKind:     item.To.Kind,
			ToID:       item.To.ID,
			Attributes: item.Attributes,
			Time:       item.Time,
		})
	}
	return EdgeListDTO{Edges: edges}
}
