package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xanchor-io/xanchor/internal/anchorlog"
	"go.uber.org/zap"
)

// LogHandler exposes read-only HTTP endpoints for the anchor audit log.
type LogHandler struct {
	log    anchorlog.Log
	logger *zap.Logger
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(log anchorlog.Log, logger *zap.Logger) *LogHandler {
	return &LogHandler{log: log, logger: logger}
}

// Register mounts the log routes on the given router group.
func (h *LogHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/log")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/entries/:idx", h.GetEntry)
	}
}

// Overview handles GET /log — returns the chain length and current root hash.
func (h *LogHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.log.Len(ctx)
	if err != nil {
		h.logger.Error("anchor log Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query anchor log"})
		return
	}

	root, err := h.log.Root(ctx)
	if err != nil {
		h.logger.Error("anchor log Root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query anchor log root"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": count,
		"root":    root,
	})
}

// Verify handles GET /log/verify — walks the full chain and reports integrity.
func (h *LogHandler) Verify(c *gin.Context) {
	if err := h.log.Verify(c.Request.Context()); err != nil {
		h.logger.Warn("anchor log integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// GetEntry handles GET /log/entries/:idx — returns a single log entry.
func (h *LogHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := h.log.Get(c.Request.Context(), idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
