package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
)

const (
	defaultRangeLimit = 100
	maxRangeLimit     = 1000
)

func (s *Server) AddEdge(w http.ResponseWriter, r *http.Request) {
	var request EdgeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	edgeType, ok := s.resolveTypeByName(w, r, request.Type)
	if !ok {
		return
	}

	from := domain.NodeRef{Kind: request.FromKind, ID: request.FromID}
	to := domain.NodeRef{Kind: request.ToKind, ID: request.ToID}

	edge, err := s.graphService.AddEdge(r.Context(), from, to, edgeType.ID, request.Attributes)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEdge) {
			http.Error(w, "edge already exists", http.StatusConflict)
			return
		}
		s.logger.Error("Failed to add edge", "from", from.String(), "to", to.String(), "type", request.Type, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, newEdgeDTO(edge, edgeType.Name))
}

func (s *Server) ChangeEdge(w http.ResponseWriter, r *http.Request) {
	var request EdgeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	edgeType, ok := s.resolveTypeByName(w, r, request.Type)
	if !ok {
		return
	}

	from := domain.NodeRef{Kind: request.FromKind, ID: request.FromID}
	to := domain.NodeRef{Kind: request.ToKind, ID: request.ToID}

	edge, err := s.graphService.ChangeEdge(r.Context(), from, to, edgeType.ID, request.Attributes)
	if err != nil {
		s.logger.Error("Failed to change edge", "from", from.String(), "to", to.String(), "type", request.Type, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newEdgeDTO(edge, edgeType.Name))
}

func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	var request EdgeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	edgeType, ok := s.resolveTypeByName(w, r, request.Type)
	if !ok {
		return
	}

	from := domain.NodeRef{Kind: request.FromKind, ID: request.FromID}
	to := domain.NodeRef{Kind: request.ToKind, ID: request.ToID}

	deleted, err := s.graphService.DeleteEdge(r.Context(), from, to, edgeType.ID)
	if err != nil {
		s.logger.Error("Failed to delete edge", "from", from.String(), "to", to.String(), "type", request.Type, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "edge not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) DeleteAllEdges(w http.ResponseWriter, r *http.Request) {
	from, edgeType, ok := s.resolveOrigin(w, r)
	if !ok {
		return
	}

	removed, err := s.graphService.DeleteAllEdges(r.Context(), from, edgeType.ID)
	if err != nil {
		s.logger.Error("Failed to delete edges", "from", from.String(), "type", edgeType.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) GetEdge(w http.ResponseWriter, r *http.Request) {
	from, edgeType, ok := s.resolveOrigin(w, r)
	if !ok {
		return
	}
	to := domain.NodeRef{Kind: r.PathValue("toKind"), ID: r.PathValue("toID")}

	edge, err := s.graphService.GetEdge(r.Context(), from, to, edgeType.ID)
	if err != nil {
		s.logger.Error("Failed to get edge", "from", from.String(), "to", to.String(), "type", edgeType.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}
	if edge == nil {
		http.Error(w, "edge not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, newEdgeDTO(edge, edgeType.Name))
}

func (s *Server) GetEdges(w http.ResponseWriter, r *http.Request) {
	from, edgeType, ok := s.resolveOrigin(w, r)
	if !ok {
		return
	}

	var request BatchGetRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	targets := make([]domain.NodeRef, 0, len(request.Targets))
	for _, target := range request.Targets {
		targets = append(targets, domain.NodeRef{Kind: target.Kind, ID: target.ID})
	}

	edges, err := s.graphService.GetEdges(r.Context(), from, edgeType.ID, targets)
	if err != nil {
		s.logger.Error("Failed to batch-get edges", "from", from.String(), "type", edgeType.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]EdgeDTO, 0, len(edges))
	for i := range edges {
		dtos = append(dtos, newEdgeDTO(&edges[i], edgeType.Name))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) EdgeCount(w http.ResponseWriter, r *http.Request) {
	from, edgeType, ok := s.resolveOrigin(w, r)
	if !ok {
		return
	}

	count, err := s.graphService.EdgeCount(r.Context(), from, edgeType.ID)
	if err != nil {
		s.logger.Error("Failed to count edges", "from", from.String(), "type", edgeType.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, EdgeCountDTO{Count: count})
}

func (s *Server) EdgeRange(w http.ResponseWriter, r *http.Request) {
	from, edgeType, ok := s.resolveOrigin(w, r)
	if !ok {
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultRangeLimit)
	if limit > maxRangeLimit {
		limit = maxRangeLimit
	}

	items, err := s.graphService.EdgeRange(r.Context(), from, edgeType.ID, offset, limit)
	if err != nil {
		s.logger.Error("Failed to range edges", "from", from.String(), "type", edgeType.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newEdgeListDTO(items))
}

func (s *Server) EdgeTimeRange(w http.ResponseWriter, r *http.Request) {
	from, edgeType, ok := s.resolveOrigin(w, r)
	if !ok {
		return
	}

	high, err := queryTime(r, "high", time.Now())
	if err != nil {
		http.Error(w, "Invalid high bound: "+err.Error(), http.StatusBadRequest)
		return
	}
	low, err := queryTime(r, "low", time.Time{})
	if err != nil {
		http.Error(w, "Invalid low bound: "+err.Error(), http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", defaultRangeLimit)
	if limit > maxRangeLimit {
		limit = maxRangeLimit
	}

	items, err := s.graphService.EdgeTimeRange(r.Context(), from, edgeType.ID, high, low, limit)
	if err != nil {
		s.logger.Error("Failed to time-range edges", "from", from.String(), "type", edgeType.Name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newEdgeListDTO(items))
}

func (s *Server) NodeDeleted(w http.ResponseWriter, r *http.Request) {
	node := domain.NodeRef{Kind: r.PathValue("kind"), ID: r.PathValue("id")}

	if err := s.graphService.NodeDeleted(r.Context(), node); err != nil {
		s.logger.Error("Failed to process node deletion", "node", node.String(), "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.graphService.ClearCache(r.Context()); err != nil {
		s.logger.Error("Failed to clear cache", "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resolveOrigin(w http.ResponseWriter, r *http.Request) (domain.NodeRef, *entities.EdgeType, bool) {
	from := domain.NodeRef{Kind: r.PathValue("fromKind"), ID: r.PathValue("fromID")}
	edgeType, ok := s.resolveTypeByName(w, r, r.PathValue("type"))
	if !ok {
		return domain.NodeRef{}, nil, false
	}
	return from, edgeType, true
}

func (s *Server) resolveTypeByName(w http.ResponseWriter, r *http.Request, name string) (*entities.EdgeType, bool) {
	if name == "" {
		http.Error(w, "edge type is required", http.StatusBadRequest)
		return nil, false
	}

	edgeType, err := s.graphService.Types().ByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrEdgeTypeNotFound) {
			http.Error(w, "unknown edge type: "+name, http.StatusNotFound)
			return nil, false
		}
		s.logger.Error("Failed to resolve edge type", "type", name, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return edgeType, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, name string, fallback int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func queryTime(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
