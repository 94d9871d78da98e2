// Package statusapi serves a read-only HTTP view of a running simulation:
// health, Prometheus metrics, ledger state and the audit journal.
package statusapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/moneysim/internal/journal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config controls the status server.
type Config struct {
	Addr         string
	RateLimitRPS int
	CORSOrigins  []string
}

// Deps are the read-only sources the server exposes. Journal may be nil.
type Deps struct {
	Ledger   LedgerView
	Journal  journal.Reader
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the Gin engine with every status route mounted.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Accept"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitRPS*2))
	}
	router.Use(requestLogger(deps.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		h := promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/api/v1")
	NewLedgerHandler(deps.Ledger, deps.Logger).Register(v1)
	if deps.Journal != nil {
		NewJournalHandler(deps.Journal, deps.Logger).Register(v1)
	}
	return router
}

// Server is the status HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New creates a Server listening on cfg.Addr.
func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("status API listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status API serve error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
