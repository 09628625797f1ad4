package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
	"go.uber.org/zap"
)

const maxBlocksPage = 500

// LedgerHandler exposes read-only HTTP endpoints for the block explorer.
type LedgerHandler struct {
	ledger *chain.Ledger
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *chain.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Stats)
		l.GET("/verify", h.Verify)
		l.GET("/blocks", h.ListBlocks)
		l.GET("/blocks/:idx", h.GetBlock)
	}
}

// Stats handles GET /ledger and returns the explorer summary.
func (h *LedgerHandler) Stats(c *gin.Context) {
	stats := h.ledger.Stats()
	RecordVerification(stats.Valid, stats.BlockCount)
	c.JSON(http.StatusOK, stats)
}

// Verify handles GET /ledger/verify and walks the full chain.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.ledger.Verify()
	RecordVerification(err == nil, h.ledger.Len())
	if err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		resp := gin.H{"valid": false, "error": err.Error()}
		var ve *chain.ValidationError
		if errors.As(err, &ve) {
			resp["index"] = ve.Index
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ListBlocks handles GET /ledger/blocks?offset=&limit=&order=asc|desc.
func (h *LedgerHandler) ListBlocks(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxBlocksPage {
		limit = maxBlocksPage
	}

	blocks := h.ledger.Blocks()
	if c.Query("order") == "desc" {
		for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
			blocks[i], blocks[j] = blocks[j], blocks[i]
		}
	}
	total := len(blocks)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks": blocks[offset:end],
		"total":  total,
	})
}

// GetBlock handles GET /ledger/blocks/:idx and returns a single block.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	b, ok := h.ledger.Block(idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
