// Package api is the HTTP surface of the PatentChain server: explorer,
// submission, export, notifications, admin snapshots and the live block feed.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tarlanskakov/patenr-ali-sh/internal/auth"
	"github.com/tarlanskakov/patenr-ali-sh/internal/events"
	"github.com/tarlanskakov/patenr-ali-sh/internal/health"
	"github.com/tarlanskakov/patenr-ali-sh/internal/patents"
	"github.com/tarlanskakov/patenr-ali-sh/internal/snapshot"
	"github.com/tarlanskakov/patenr-ali-sh/internal/webhooks"
	"go.uber.org/zap"
)

// Config tunes the router's middleware.
type Config struct {
	CORSOrigins  []string
	RateLimitRPS float64 // 0 = no rate limiting
	MaxBodyBytes int64   // 0 = 8 MiB
}

// Deps are the collaborators the handlers serve.
type Deps struct {
	Patents  *patents.Service
	Bus      *events.Bus
	Store    snapshot.Store // nil = in-memory store
	Tokens   *auth.Issuer
	Health   *health.Checker   // nil = /healthz reports liveness only
	Webhooks *webhooks.Service // nil = no /webhooks routes
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with all middleware and routes. Background
// work started for the router stops when ctx ends.
func NewRouter(ctx context.Context, cfg Config, d Deps) *gin.Engine {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	if d.Store == nil {
		d.Store = snapshot.NewMemoryStore()
	}
	ledger := d.Patents.Ledger()

	router := gin.New()
	router.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBodyBytes)
		c.Next()
	})

	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(ctx, cfg.RateLimitRPS, int(cfg.RateLimitRPS*2)+1))
	}
	router.Use(PrometheusMiddleware())
	router.Use(requestLogger(d.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		if d.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		st := d.Health.Status()
		code := http.StatusOK
		status := "ok"
		if !st.Healthy {
			code = http.StatusServiceUnavailable
			status = "degraded"
		}
		c.JSON(code, gin.H{"status": status, "integrity": st})
	})
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	v1.Use(auth.OptionalAdmin(d.Tokens))
	NewLedgerHandler(ledger, d.Logger).Register(v1)
	NewFeedHandler(d.Bus, ledger, originChecker(cfg.CORSOrigins), d.Logger).Register(v1)
	NewPatentHandler(d.Patents, d.Logger).Register(v1)
	NewAuthHandler(d.Tokens, d.Logger).Register(v1)
	NewSnapshotHandler(ledger, d.Store, d.Tokens, d.Logger).Register(v1)
	if d.Webhooks != nil {
		webhooks.NewHandler(d.Webhooks, d.Tokens, d.Logger).Register(v1)
	}

	return router
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

// originChecker allows websocket upgrades from the configured CORS origins,
// and from anywhere when none are configured or "*" is listed.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || containsWildcard(origins) {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
