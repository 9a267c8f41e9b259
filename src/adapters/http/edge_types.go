package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"socialgraph/src/domain"
)

func (s *Server) CreateEdgeType(w http.ResponseWriter, r *http.Request) {
	var request EdgeTypeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.Name == "" {
		http.Error(w, "edge type name is required", http.StatusBadRequest)
		return
	}

	edgeType, err := s.graphService.Types().CreateEdgeType(r.Context(), request.Name, request.ReadAs)
	if err != nil {
		s.logger.Error("Failed to create edge type", "name", request.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, EdgeTypeDTO{ID: edgeType.ID, Name: edgeType.Name, ReadAs: edgeType.ReadAs})
}

func (s *Server) ListEdgeTypes(w http.ResponseWriter, r *http.Request) {
	edgeTypes, err := s.graphService.Types().List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list edge types", "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]EdgeTypeDTO, 0, len(edgeTypes))
	for _, edgeType := range edgeTypes {
		dtos = append(dtos, EdgeTypeDTO{ID: edgeType.ID, Name: edgeType.Name, ReadAs: edgeType.ReadAs})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) AssociateEdgeTypes(w http.ResponseWriter, r *http.Request) {
	var request AssociationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	direct, ok := s.resolveTypeByName(w, r, request.DirectType)
	if !ok {
		return
	}
	inverse, ok := s.resolveTypeByName(w, r, request.InverseType)
	if !ok {
		return
	}

	if _, err := s.graphService.Types().Associate(r.Context(), direct.ID, inverse.ID); err != nil {
		s.logger.Error("Failed to associate edge types",
			"direct", request.DirectType, "inverse", request.InverseType, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) DissociateEdgeTypes(w http.ResponseWriter, r *http.Request) {
	direct, ok := s.resolveTypeByName(w, r, r.PathValue("type"))
	if !ok {
		return
	}

	err := s.graphService.Types().Dissociate(r.Context(), direct.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAssociationNotFound) {
			http.Error(w, "association not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to dissociate edge type", "type", direct.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
