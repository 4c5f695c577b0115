package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luispater/idleClickerBot/internal/runner"
	log "github.com/sirupsen/logrus"
)

// Server represents the status API server
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	handlers *APIHandlers
}

// ServerConfig contains configuration for the API server
type ServerConfig struct {
	Port      string
	Debug     bool
	Session   string
	StartedAt time.Time
	Scheduler *runner.Scheduler
}

// NewServer creates a new API server instance
func NewServer(config *ServerConfig) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if config.Debug {
		engine.Use(gin.Logger())
	}

	s := &Server{
		engine:   engine,
		handlers: NewAPIHandlers(config.Scheduler, config.Session, config.StartedAt),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              ":" + config.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.GET("/status", s.handlers.Status)
		v1.POST("/runners/:name/cancel", s.handlers.CancelRunner)
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Idle Clicker Bot",
			"version": "1.0.0",
			"endpoints": []string{
				"GET /v1/status",
				"POST /v1/runners/:name/cancel",
			},
		})
	})
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Debugf("Starting API server on %s", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	log.Debug("API server stopped")
	return nil
}
