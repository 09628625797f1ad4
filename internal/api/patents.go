package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarlanskakov/patenr-ali-sh/internal/auth"
	"github.com/tarlanskakov/patenr-ali-sh/internal/patents"
	"go.uber.org/zap"
)

const anonymousSubmitter = "anonymous"

// PatentHandler exposes patent submission, search and reporting endpoints.
type PatentHandler struct {
	svc    *patents.Service
	logger *zap.Logger
}

// NewPatentHandler creates a new PatentHandler.
func NewPatentHandler(svc *patents.Service, logger *zap.Logger) *PatentHandler {
	return &PatentHandler{svc: svc, logger: logger}
}

// Register mounts the patent routes on the given router group.
func (h *PatentHandler) Register(rg *gin.RouterGroup) {
	p := rg.Group("/patents")
	{
		p.POST("", h.Submit)
		p.GET("", h.Search)
		p.GET("/counts", h.Counts)
		p.GET("/timeline", h.Timeline)
		p.GET("/:id", h.Get)
	}
	rg.GET("/export", h.Export)

	n := rg.Group("/notifications")
	{
		n.GET("", h.Notifications)
		n.DELETE("", h.ClearNotifications)
		n.POST("/:id/read", h.MarkRead)
	}
}

// Submit handles POST /patents.
func (h *PatentHandler) Submit(c *gin.Context) {
	var req patents.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	req.CreatedBy = anonymousSubmitter
	if claims := auth.ClaimsFromCtx(c); claims != nil {
		req.CreatedBy = claims.Subject
	}

	p, err := h.svc.Submit(c.Request.Context(), &req)
	if err != nil {
		var se *patents.SubmissionError
		if errors.As(err, &se) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": se.Error(), "problems": se.Problems})
			return
		}
		h.logger.Error("submit patent", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit patent"})
		return
	}

	recordSubmission(string(p.Storage()))
	if p.BlockIndex != nil {
		if b, ok := h.svc.Ledger().Block(*p.BlockIndex); ok {
			RecordBlock(b)
		}
	}
	c.JSON(http.StatusCreated, p)
}

// Search handles GET /patents?q=&type=&status=&priority=&storage=&from=&to=&sort=.
func (h *PatentHandler) Search(c *gin.Context) {
	var f patents.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter: " + err.Error()})
		return
	}
	if !f.Sort.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be one of newest, oldest, title, score"})
		return
	}
	results := h.svc.Search(f)
	c.JSON(http.StatusOK, gin.H{"patents": results, "count": len(results)})
}

// Get handles GET /patents/:id.
func (h *PatentHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Param("id"))
	if errors.Is(err, patents.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "patent not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Counts handles GET /patents/counts.
func (h *PatentHandler) Counts(c *gin.Context) {
	counts := h.svc.Counts()
	c.JSON(http.StatusOK, gin.H{
		"counts":    counts,
		"top_types": counts.TopTypes(),
	})
}

// Timeline handles GET /patents/timeline?days=30.
func (h *PatentHandler) Timeline(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil || days <= 0 || days > 366 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 366"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": h.svc.Timeline(days)})
}

// Export handles GET /export?format=csv|json&chain=true&offchain=true.
func (h *PatentHandler) Export(c *gin.Context) {
	includeChain, err := queryBool(c, "chain", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chain must be a boolean"})
		return
	}
	includeOff, err := queryBool(c, "offchain", true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offchain must be a boolean"})
		return
	}
	rows := h.svc.ExportRows(includeChain, includeOff)
	stamp := time.Now().UTC().Format("20060102_150405")

	switch format := c.DefaultQuery("format", "json"); format {
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="patents_`+stamp+`.csv"`)
		c.Status(http.StatusOK)
		if err := patents.WriteCSV(c.Writer, rows); err != nil {
			h.logger.Error("export csv", zap.Error(err))
		}
	case "json":
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="patents_`+stamp+`.json"`)
		c.Status(http.StatusOK)
		if err := patents.WriteJSON(c.Writer, rows); err != nil {
			h.logger.Error("export json", zap.Error(err))
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or json, got " + strconv.Quote(format)})
	}
}

// Notifications handles GET /notifications?limit=.
func (h *PatentHandler) Notifications(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.svc.Notifications(limit),
		"unread":        h.svc.UnreadNotifications(),
	})
}

// MarkRead handles POST /notifications/:id/read.
func (h *PatentHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearNotifications handles DELETE /notifications.
func (h *PatentHandler) ClearNotifications(c *gin.Context) {
	h.svc.ClearNotifications()
	c.Status(http.StatusNoContent)
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}
