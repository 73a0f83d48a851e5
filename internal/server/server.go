// Package server implements the mock agent HTTP surface: the streaming
// run endpoint, feedback intake, the legacy synchronous chat endpoint,
// and the knowledge base introspection routes.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/goland-group/aguimock/internal/config"
	"github.com/goland-group/aguimock/internal/feedback"
	"github.com/goland-group/aguimock/internal/metrics"
	"github.com/goland-group/aguimock/internal/qa"
	"github.com/goland-group/aguimock/internal/ratelimit"
)

// Server wires the handlers to their stores and settings.
type Server struct {
	cfg      *config.ServerConfig
	qa       *qa.Store
	feedback *feedback.Store
	limiter  *ratelimit.Limiter
	log      *slog.Logger
}

// New creates a server. The feedback store may be nil; feedback is then
// acknowledged without being persisted.
func New(cfg *config.ServerConfig, qaStore *qa.Store, fbStore *feedback.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		qa:       qaStore,
		feedback: fbStore,
		limiter:  ratelimit.New(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		log:      log,
	}
}

// Limiter exposes the per-client rate limiter so maintenance jobs can
// clear stale entries.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// Router builds the gin engine with all routes registered. Every /api
// route also answers at its bare alias for clients predating the /api
// prefix.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(metrics.Middleware())

	run := []gin.HandlerFunc{s.limiter.Middleware(), s.handleRun}
	r.POST("/api/ag-ui/run", run...)
	r.POST("/run", run...)

	r.POST("/api/ag-ui/feedback", s.handleFeedback)
	r.POST("/feedback", s.handleFeedback)

	r.GET("/api/health", s.handleHealth)
	r.GET("/health", s.handleHealth)

	r.POST("/api/chat", s.handleChat)
	r.POST("/chat", s.handleChat)

	r.GET("/api/qa", s.handleQAList)
	r.GET("/api/qa/search", s.handleQASearch)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}
	allowAll := len(s.cfg.AllowedOrigins) == 0
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	return cors.New(cfg)
}
