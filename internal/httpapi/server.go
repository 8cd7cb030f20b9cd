// Package httpapi exposes the persistence core over a thin JSON API. It
// maps error kinds to status codes and performs no business logic of its
// own; authentication is delegated to an identity-aware proxy in front.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/casefile"
	"github.com/kanzleiwerk/aktenregister/internal/settings"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// Server wires the core components behind HTTP handlers.
type Server struct {
	cases    *casefile.Repository
	settings *settings.Store
	store    *store.Store
	logger   *zap.Logger
}

// NewServer creates a server over the given components.
func NewServer(st *store.Store, cases *casefile.Repository, set *settings.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cases:    cases,
		settings: set,
		store:    st,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/cases", s.createCase)
		api.GET("/cases", s.listCases)
		api.GET("/cases/:id", s.getCase)
		api.PATCH("/cases/:id", s.updateCase)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.updateSettings)

		api.POST("/admin/checkpoint", s.checkpoint)
		api.GET("/admin/integrity", s.integrity)
	}

	return r
}

// requestLogger logs one line per request with latency and status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
