package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Extractor turns an input descriptor into text.
type Extractor interface {
	Extract(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error)
}

type ExtractHandler struct {
	log       *logger.Logger
	extractor Extractor
	limits    extraction.Limits
}

func NewExtractHandler(log *logger.Logger, extractor Extractor, limits extraction.Limits) *ExtractHandler {
	return &ExtractHandler{
		log:       log.With("handler", "ExtractHandler"),
		extractor: extractor,
		limits:    limits,
	}
}

type extractResponse struct {
	Success bool `json:"success"`
	*extraction.Result
}

// Route serves POST /api/extract/<kind>.
func (h *ExtractHandler) Route(kind extraction.SourceKind) gin.HandlerFunc {
	op := "extract_" + string(kind)
	return func(c *gin.Context) {
		d, req, err := resolveInput(c, kind, h.limits)
		if err != nil {
			respondErr(c, h.log, op, err)
			return
		}
		res, err := h.extractor.Extract(c.Request.Context(), d, extraction.Options{
			ForceOCR: bool(req.ForceOCR),
			Limits:   h.limits,
		})
		if err != nil {
			respondErr(c, h.log, op, err)
			return
		}
		c.JSON(http.StatusOK, extractResponse{Success: true, Result: res})
	}
}

type formatInfo struct {
	Type       string   `json:"type"`
	Extensions []string `json:"extensions"`
	MimeTypes  []string `json:"mimeTypes"`
	MaxBytes   int64    `json:"maxBytes"`
}

// GET /api/extract/formats
func (h *ExtractHandler) Formats(c *gin.Context) {
	doc := h.limits.For(extraction.SourceUploadedDocument)
	media := h.limits.For(extraction.SourceUploadedMedia)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"formats": []formatInfo{
			{Type: "pdf", Extensions: []string{".pdf"}, MimeTypes: []string{source.MimePDF}, MaxBytes: doc},
			{Type: "pptx", Extensions: []string{".pptx"}, MimeTypes: []string{source.MimePPTX}, MaxBytes: doc},
			{Type: "ppt", Extensions: []string{".ppt"}, MimeTypes: []string{source.MimePPT}, MaxBytes: doc},
			{Type: "audio", Extensions: []string{".mp3", ".wav", ".m4a", ".ogg"}, MimeTypes: []string{"audio/mpeg", "audio/wav", "audio/m4a", "audio/ogg", "audio/webm"}, MaxBytes: media},
			{Type: "video", Extensions: []string{".mp4", ".mpeg", ".mov", ".avi"}, MimeTypes: []string{"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo"}, MaxBytes: media},
		},
	})
}
