package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"socialgraph/src/services/graph"
)

// Server exposes the graph engine over HTTP.
type Server struct {
	logger       *slog.Logger
	server       *http.Server
	mux          *http.ServeMux
	port         int
	graphService *graph.GraphService
}

func NewServer(
	logger *slog.Logger,
	port int,
	graphService *graph.GraphService,
) *Server {
	server := &Server{
		mux:          http.NewServeMux(),
		port:         port,
		logger:       logger,
		graphService: graphService,
	}

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Edge reads
	server.mux.HandleFunc("GET /v1/edges/{fromKind}/{fromID}/{type}", server.EdgeRange)
	server.mux.HandleFunc("GET /v1/edges/{fromKind}/{fromID}/{type}/count", server.EdgeCount)
	server.mux.HandleFunc("GET /v1/edges/{fromKind}/{fromID}/{type}/time-range", server.EdgeTimeRange)
	server.mux.HandleFunc("GET /v1/edges/{fromKind}/{fromID}/{type}/to/{toKind}/{toID}", server.GetEdge)
	server.mux.HandleFunc("POST /v1/edges/{fromKind}/{fromID}/{type}/batch-get", server.GetEdges)

	// Edge writes
	server.mux.HandleFunc("POST /v1/edges", server.AddEdge)
	server.mux.HandleFunc("PATCH /v1/edges", server.ChangeEdge)
	server.mux.HandleFunc("DELETE /v1/edges", server.DeleteEdge)
	server.mux.HandleFunc("DELETE /v1/edges/{fromKind}/{fromID}/{type}", server.DeleteAllEdges)

	// Edge type administration
	server.mux.HandleFunc("POST /v1/edge-types", server.CreateEdgeType)
	server.mux.HandleFunc("GET /v1/edge-types", server.ListEdgeTypes)
	server.mux.HandleFunc("POST /v1/edge-types/associations", server.AssociateEdgeTypes)
	server.mux.HandleFunc("DELETE /v1/edge-types/associations/{type}", server.DissociateEdgeTypes)

	// Node lifecycle
	server.mux.HandleFunc("POST /v1/nodes/{kind}/{id}/events/deleted", server.NodeDeleted)

	// Operations
	server.mux.HandleFunc("POST /v1/cache/clear", server.ClearCache)
	server.mux.HandleFunc("GET /health", server.Health)

	return server
}

func (s *Server) Start() error {
	s.logger.Info("Server started", "port", s.port)

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status": "ok"}`)
}
