// Package api is the thin gin HTTP surface over the orchestration
// engine and Config Store (spec.md §6, SPEC_FULL.md §6): handlers
// deserialize requests, call into pkg/orchestrator / pkg/config, and
// serialize the result. No orchestration or validation logic lives
// here — that is the core's job.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstack/orchestrator/pkg/config"
	"github.com/fieldstack/orchestrator/pkg/events"
	"github.com/fieldstack/orchestrator/pkg/orchestrator"
	"github.com/fieldstack/orchestrator/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *orchestrator.Engine
	configStore *config.Store
	artifacts   orchestrator.ArtifactStore
	connManager *events.ConnectionManager
}

// NewServer constructs a Server and registers every route.
func NewServer(engine *orchestrator.Engine, configStore *config.Store, artifacts orchestrator.ArtifactStore, connManager *events.ConnectionManager) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s := &Server{
		router:      router,
		engine:      engine,
		configStore: configStore,
		artifacts:   artifacts,
		connManager: connManager,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	v1.Use(identity())

	v1.POST("/jobs/ingest", s.submitIngestHandler)
	v1.POST("/jobs/query", s.submitQueryHandler)
	v1.GET("/jobs/:id", s.getJobHandler)
	v1.POST("/jobs/:id/cancel", s.cancelJobHandler)
	v1.GET("/ws", s.wsHandler)

	v1.PUT("/config/agents", s.putAgentHandler)
	v1.GET("/config/agents/:id", s.getAgentHandler)
	v1.GET("/config/agents", s.listAgentsHandler)
	v1.PUT("/config/playbooks", s.putPlaybookHandler)
	v1.GET("/config/playbooks/:id", s.getPlaybookHandler)
	v1.PUT("/config/graphs", s.putGraphHandler)
	v1.GET("/config/graphs/:id", s.getGraphHandler)
	v1.GET("/config/templates/:id", s.getTemplateHandler)
	v1.POST("/config/templates/:id/instantiate", s.instantiateTemplateHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener, used
// by tests to bind a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version.Full(),
		Timestamp: time.Now().UTC(),
	})
}
