// Package handler exposes the anchoring HTTP API over gin.
//
// The transport boundary is deliberately thin: it turns an uploaded file
// into a content buffer, hands it to the services, and serialises their
// outcome. Internal failure detail never reaches a response body.
package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xanchor-io/xanchor/internal/anchor/model"
	"go.uber.org/zap"
)

// Anchorer anchors a content buffer. *service.AnchorService satisfies this.
type Anchorer interface {
	Anchor(ctx context.Context, content []byte) (*model.AnchorOutcome, error)
}

// Verifier checks a content buffer against ledger state.
// *service.VerificationService satisfies this.
type Verifier interface {
	Verify(ctx context.Context, content []byte) (*model.VerificationResult, error)
}

// AnchorHandler handles content upload, anchoring and verification.
type AnchorHandler struct {
	anchors  Anchorer
	verifier Verifier
	logger   *zap.Logger
}

// NewAnchorHandler creates a new AnchorHandler.
func NewAnchorHandler(anchors Anchorer, verifier Verifier, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{anchors: anchors, verifier: verifier, logger: logger}
}

// Register mounts the anchoring routes on the given router group. auth
// gates the anchoring route only; verification stays public.
func (h *AnchorHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	a := rg.Group("/anchors")
	{
		a.POST("", auth, h.Create)
		a.POST("/verify", h.Verify)
	}
}

// readUpload extracts the multipart "file" part as a byte buffer. An empty
// file is valid content.
func (h *AnchorHandler) readUpload(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "multipart field 'file' is required",
		})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "cannot read uploaded file",
		})
		return nil, false
	}
	defer f.Close() //nolint:errcheck

	content, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("read uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "cannot read uploaded file",
		})
		return nil, false
	}
	return content, true
}

// Create handles POST /anchors — fingerprints the uploaded file and
// submits the anchor transaction. The ledger's engine result is passed
// through for the caller to inspect, including rejections.
func (h *AnchorHandler) Create(c *gin.Context) {
	content, ok := h.readUpload(c)
	if !ok {
		return
	}

	outcome, err := h.anchors.Anchor(c.Request.Context(), content)
	if err != nil {
		anchorsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to process transaction.",
		})
		return
	}

	anchorsTotal.WithLabelValues("submitted").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":            "success",
		"hash":              outcome.Fingerprint,
		"transactionResult": outcome.ResultCode,
		"resultMessage":     outcome.ResultMessage,
		"txHash":            outcome.TxHash,
	})
}

// Verify handles POST /anchors/verify — recomputes the fingerprint and
// reports whether a matching anchor memo exists in the account's ledger
// state. "not_found" is a clean verdict; "error" means the check could not
// be performed.
func (h *AnchorHandler) Verify(c *gin.Context) {
	content, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), content)
	if err != nil {
		verificationsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to check hash.",
		})
		return
	}

	if !result.Found {
		verificationsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusOK, gin.H{
			"status":  "not_found",
			"message": "Hash does not exist in ledger state.",
		})
		return
	}

	verificationsTotal.WithLabelValues("found").Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Hash exists in ledger state.",
		"timestamp": result.Timestamp.Format(time.RFC3339),
	})
}
