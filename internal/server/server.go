package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/metrics"
	"github.com/ogulcanaydogan/finalert/pkg/notify"
)

const (
	requestTimeout      = 10 * time.Second
	defaultCheckTimeout = 5 * time.Minute
)

// Server exposes the notification reader API, notification creation and
// on-demand alert checks over HTTP.
type Server struct {
	manager      *notify.Manager
	runner       *notify.Runner
	checkTimeout time.Duration
	metrics      *metrics.Metrics
	router       *gin.Engine
	logger       *zap.Logger
}

// NewServer creates an API server. runner may be nil to disable
// POST /api/v1/alerts/check; metrics may be nil to disable /metrics.
func NewServer(mgr *notify.Manager, runner *notify.Runner, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager:      mgr,
		runner:       runner,
		checkTimeout: defaultCheckTimeout,
		metrics:      m,
		router:       gin.New(),
		logger:       logger.Named("server"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger(), s.errorHandlingMiddleware())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)
	if reg := s.metrics.Registry(); reg != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api/v1")
	notifications := api.Group("/notifications", requireUser())
	notifications.GET("", s.handleList)
	notifications.GET("/unread-count", s.handleUnreadCount)
	notifications.POST("/:id/read", s.handleMarkRead)
	notifications.POST("/read-all", s.handleMarkAllRead)

	api.POST("/notifications", s.handleCreate)
	api.DELETE("/notifications/expired", s.handleCleanup)
	api.POST("/alerts/check", s.handleCheck)
}

// WithCheckTimeout bounds alert checks started through the API.
func (s *Server) WithCheckTimeout(d time.Duration) *Server {
	if d > 0 {
		s.checkTimeout = d
	}
	return s
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
		)
	}
}

func withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}
