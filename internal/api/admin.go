package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarlanskakov/patenr-ali-sh/internal/auth"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
	"github.com/tarlanskakov/patenr-ali-sh/internal/snapshot"
	"go.uber.org/zap"
)

// AuthHandler exchanges the admin secret for a Bearer token.
type AuthHandler struct {
	tokens *auth.Issuer
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokens *auth.Issuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.Token)
}

type tokenRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	if !h.tokens.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin access is not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}

	tok, exp, err := h.tokens.Exchange(req.Secret)
	if errors.Is(err, auth.ErrBadSecret) {
		h.logger.Warn("admin token exchange rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin secret"})
		return
	}
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      tok,
		"token_type": "Bearer",
		"expires_at": exp,
	})
}

// SnapshotHandler takes, lists and verifies ledger snapshots.
type SnapshotHandler struct {
	ledger *chain.Ledger
	store  snapshot.Store
	tokens *auth.Issuer
	logger *zap.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(ledger *chain.Ledger, store snapshot.Store, tokens *auth.Issuer, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{ledger: ledger, store: store, tokens: tokens, logger: logger}
}

// Register mounts the snapshot routes on the given router group. Taking and
// verifying snapshots requires an admin token.
func (h *SnapshotHandler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/snapshots")
	{
		s.GET("", h.List)
		s.GET("/latest", h.Latest)
		s.POST("", auth.RequireAdmin(h.tokens), h.Take)
		s.POST("/:id/verify", auth.RequireAdmin(h.tokens), h.Verify)
	}
}

// Take handles POST /snapshots.
func (h *SnapshotHandler) Take(c *gin.Context) {
	snap := snapshot.Take(h.ledger, time.Now())
	err := h.store.Save(c.Request.Context(), snap)
	recordSnapshot("take", err)
	if err != nil {
		h.logger.Error("save snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save snapshot"})
		return
	}
	c.JSON(http.StatusCreated, snap.Summary())
}

// List handles GET /snapshots?limit=.
func (h *SnapshotHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	list, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots"})
		return
	}
	if list == nil {
		list = []snapshot.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": list, "count": len(list)})
}

// Latest handles GET /snapshots/latest.
func (h *SnapshotHandler) Latest(c *gin.Context) {
	snap, err := h.store.Latest(c.Request.Context())
	if errors.Is(err, snapshot.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot taken yet"})
		return
	}
	if err != nil {
		h.logger.Error("load latest snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot"})
		return
	}
	c.JSON(http.StatusOK, snap.Summary())
}

// Verify handles POST /snapshots/:id/verify. The snapshot is rebuilt into a
// ledger, which re-checks every block, and then compared with the live
// ledger.
func (h *SnapshotHandler) Verify(c *gin.Context) {
	snap, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, snapshot.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	if err != nil {
		h.logger.Error("load snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot"})
		return
	}

	resp := gin.H{"id": snap.ID, "valid": true, "matches_live": true}
	if err := snapshot.Verify(snap); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
	}
	if err := snapshot.CompareWith(snap, h.ledger); err != nil {
		resp["matches_live"] = false
		resp["live_error"] = err.Error()
	}
	recordSnapshot("verify", nil)
	c.JSON(http.StatusOK, resp)
}
