// Package httpapi exposes the journal over a JSON HTTP API: password login
// with bearer tokens, trade CRUD with sub-document routes, tradebook
// imports, dashboard analytics and settings.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradejournal/internal/app"
	"tradejournal/internal/ports"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Password is the single-user login password.
	Password string
	// Secret signs the session tokens.
	Secret string
	// TokenTTL bounds the session token lifetime.
	TokenTTL time.Duration
}

// Server binds the journal service to HTTP handlers.
type Server struct {
	svc    *app.Service
	logger ports.Logger
	cfg    Config
}

// NewServer creates the HTTP server facade.
func NewServer(svc *app.Service, logger ports.Logger, cfg Config) (*Server, error) {
	if svc == nil || logger == nil {
		return nil, errors.New("service and logger are required")
	}
	if cfg.Password == "" || cfg.Secret == "" {
		return nil, ports.ErrConfigurationError
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	return &Server{svc: svc, logger: logger, cfg: cfg}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/api/auth")
	auth.POST("/login", s.login)
	auth.POST("/logout", s.logout)

	api := r.Group("/api", s.requireAuth())

	api.GET("/trades", s.listTrades)
	api.POST("/trades", s.createTrade)
	api.GET("/trades/:id", s.getTrade)
	api.PUT("/trades/:id", s.updateTrade)
	api.DELETE("/trades/:id", s.deleteTrade)
	api.GET("/trades/:id/quote", s.getTradeQuote)

	api.POST("/trades/:id/pyramids", s.addPyramid)
	api.PUT("/trades/:id/pyramids/:pid", s.updatePyramid)
	api.DELETE("/trades/:id/pyramids/:pid", s.deletePyramid)

	api.POST("/trades/:id/exits", s.addExit)
	api.PUT("/trades/:id/exits/:eid", s.updateExit)
	api.DELETE("/trades/:id/exits/:eid", s.deleteExit)

	api.POST("/trades/:id/stop-loss-adjustments", s.addStopLossAdjustment)
	api.DELETE("/trades/:id/stop-loss-adjustments/:aid", s.deleteStopLossAdjustment)

	api.POST("/imports/zerodha", s.importZerodha)
	api.POST("/imports/dhan", s.importDhan)
	api.GET("/imports", s.listImports)
	api.GET("/imports/:id", s.getImport)
	api.DELETE("/imports/:id", s.deleteImport)

	api.GET("/dashboard", s.getDashboard)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.saveSettings)

	return r
}

// respondError maps service errors onto HTTP statuses. Validation messages
// are safe to show verbatim; everything unexpected becomes an opaque 500.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case ports.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ports.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ports.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, ports.ErrQuoteUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live quote not available"})
	default:
		s.logger.Error(c.Request.Context(), err, "Request failed", map[string]interface{}{
			"method": c.Request.Method, "path": c.FullPath(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
