// Package httpserver exposes the REST surface: health, tool invocation,
// templates, workflow CRUD, runs, chat, and Prometheus metrics.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"axon/internal/chat"
	"axon/internal/engine"
	"axon/internal/logging"
	"axon/internal/registry"
	"axon/internal/templates"
	"axon/internal/workflow/store"
)

// Server owns the gin engine and the http.Server lifecycle.
type Server struct {
	registry   *registry.Registry
	engine     *engine.Engine
	store      *store.Store
	templates  *templates.Catalog
	dispatcher *chat.Dispatcher
	logger     logging.Logger

	router     *gin.Engine
	httpServer *http.Server

	// WSHandler, when set, serves the websocket control endpoint.
	WSHandler gin.HandlerFunc

	// OnWorkflowSaved runs after a workflow is created or updated over HTTP,
	// letting the core refresh the workflow-as-tool registration.
	OnWorkflowSaved func(saved *store.Saved)
}

// Config carries the listener settings.
type Config struct {
	Host  string
	Port  int
	Debug bool
}

// New builds the server and its routes.
func New(cfg Config, reg *registry.Registry, eng *engine.Engine, st *store.Store, catalog *templates.Catalog, dispatcher *chat.Dispatcher, logger logging.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowWebSockets = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		registry:   reg,
		engine:     eng,
		store:      st,
		templates:  catalog,
		dispatcher: dispatcher,
		logger:     logging.OrNop(logger),
		router:     router,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	return s
}

// Routes registers every endpoint. Called once after optional handler hooks
// (websocket, saved-workflow callback) are set.
func (s *Server) Routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/nodes", s.handleListNodes)
	s.router.GET("/tools", s.handleListTools)
	s.router.POST("/tools/:name", s.handleExecuteTool)

	s.router.GET("/templates", s.handleListTemplates)
	s.router.GET("/templates/:id", s.handleGetTemplate)

	s.router.POST("/run", s.handleRun)

	s.router.GET("/workflows", s.handleListWorkflows)
	s.router.POST("/workflows", s.handleSaveWorkflow)
	s.router.GET("/workflows/:id", s.handleGetWorkflow)
	s.router.PUT("/workflows/:id", s.handleUpdateWorkflow)
	s.router.DELETE("/workflows/:id", s.handleDeleteWorkflow)
	s.router.POST("/workflows/:id/duplicate", s.handleDuplicateWorkflow)

	s.router.POST("/chat", s.handleChat)
	s.router.GET("/chat/sessions", s.handleListSessions)
	s.router.POST("/chat/new", s.handleNewSession)
	s.router.GET("/chat/:id", s.handleGetSession)
	s.router.DELETE("/chat/:id", s.handleDeleteSession)
	s.router.GET("/chat/:id/workflow", s.handleSessionWorkflow)

	if s.WSHandler != nil {
		s.router.GET("/ws", s.WSHandler)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "axon"})
}

func abortError(c *gin.Context, code int, format string, args ...any) {
	c.JSON(code, gin.H{"error": fmt.Sprintf(format, args...)})
}
