// Package httpapi exposes the authentication engine over HTTP. It owns
// status-code mapping, the api-token gate, per-source throttling and CORS;
// all authentication semantics live in the engine.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/boilerswap/backend/internal/auth"
	"github.com/boilerswap/backend/internal/limiters"
	"github.com/boilerswap/backend/internal/metrics"
)

// Config tunes the HTTP surface.
type Config struct {
	// AllowedOrigin is the single browser origin allowed to call the API.
	AllowedOrigin string

	// TokenSecret signs the api_token cookie; TokenTTL bounds it.
	TokenSecret []byte
	TokenTTL    time.Duration

	// ThrottleTTL is the per-source exclusion window on the three
	// credential endpoints. Zero disables throttling.
	ThrottleTTL time.Duration
}

// DefaultConfig returns the production HTTP defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:    time.Hour,
		ThrottleTTL: time.Second,
	}
}

// Server binds the engine to gin handlers.
type Server struct {
	config   Config
	engine   *auth.Engine
	throttle *limiters.Lock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewServer wires a Server. throttle may be nil when cfg.ThrottleTTL is 0.
func NewServer(cfg Config, engine *auth.Engine, throttle *limiters.Lock, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if len(cfg.TokenSecret) == 0 {
		return nil, errors.New("httpapi: token secret required")
	}
	if cfg.ThrottleTTL > 0 && throttle == nil {
		return nil, errors.New("httpapi: throttling enabled without a lock backend")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: cfg, engine: engine, throttle: throttle, metrics: m, logger: logger}, nil
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", s.handleMetrics)
	r.GET("/api-token", s.handleAPIToken)

	guarded := r.Group("/", s.requireAPIToken())
	guarded.POST("/authenticate", s.throttled(throttleAuth), s.handleAuthenticate)
	guarded.POST("/forgot", s.throttled(throttleForgot), s.handleForgot)
	guarded.POST("/verify", s.throttled(throttleVerify), s.handleVerify)
	guarded.POST("/logout", s.handleLogout)

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.AllowedOrigin != "" {
			c.Header("Access-Control-Allow-Origin", s.config.AllowedOrigin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

// writeError maps engine errors onto the response taxonomy. Validation
// messages are displayable; every authentication failure collapses to one
// generic body; everything else is an opaque 500 with the detail logged.
func (s *Server) writeError(c *gin.Context, err error) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func setCookies(c *gin.Context, cookies []*http.Cookie) {
	for _, ck := range cookies {
		http.SetCookie(c.Writer, ck)
	}
}
