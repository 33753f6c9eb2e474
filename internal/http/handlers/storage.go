package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/http/response"
	"github.com/yungbote/assessgen-backend/internal/platform/apierr"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/platform/objectstore"
)

var uploadFields = []string{"file", "media", "document", "audio", "video", "pdf", "ppt", "pptx"}

type StorageHandler struct {
	log    *logger.Logger
	store  objectstore.Store
	maxLen int64
}

func NewStorageHandler(log *logger.Logger, store objectstore.Store, limits extraction.Limits) *StorageHandler {
	maxLen := limits.MediaBytes
	if limits.DocumentBytes > maxLen {
		maxLen = limits.DocumentBytes
	}
	return &StorageHandler{
		log:    log.With("handler", "StorageHandler"),
		store:  store,
		maxLen: maxLen,
	}
}

// POST /api/storage/upload
func (h *StorageHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxLen+multipartSlack)
	fh, ok := formFile(c, uploadFields)
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "missing_file", nil)
		return
	}
	if fh.Size > h.maxLen {
		respondErr(c, h.log, "storage_upload", extraction.InvalidInput(extraction.ReasonTooLarge, "file is %d bytes, limit %d", fh.Size, h.maxLen))
		return
	}

	ct := extraction.NormalizeMime(fh.Header.Get("Content-Type"))
	if ct == "" || ct == "application/octet-stream" {
		if m := source.MimeFromName(fh.Filename); m != "" {
			ct = m
		}
	}
	if !source.AllowedDocumentMime(ct) && !source.AllowedMediaMime(ct) {
		respondErr(c, h.log, "storage_upload", extraction.InvalidInput(extraction.ReasonUnsupportedType, "unsupported file type %q", ct))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer f.Close()

	res, err := h.store.UploadStream(c.Request.Context(), f, objectstore.UploadOptions{
		ResourceType: objectstore.ResourceTypeFor(ct),
		FileName:     fh.Filename,
		ContentType:  ct,
	})
	if err != nil {
		respondErr(c, h.log, "storage_upload", apierr.New(http.StatusBadGateway, "upload_failed", err))
		return
	}
	h.log.Info("stored upload", "public_id", res.PublicID, "resource_type", res.ResourceType, "provider", h.store.Provider())
	response.RespondOK(c, gin.H{"success": true, "file": res})
}

// DELETE /api/storage/:resourceType/*publicId
func (h *StorageHandler) Delete(c *gin.Context) {
	resourceType := strings.TrimSpace(c.Param("resourceType"))
	publicID := strings.Trim(c.Param("publicId"), "/")
	if publicID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_public_id", errors.New("public id is required"))
		return
	}
	switch resourceType {
	case objectstore.ResourceImage, objectstore.ResourceVideo, objectstore.ResourceRaw:
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_resource_type", errors.New("resource type must be image, video or raw"))
		return
	}
	if err := h.store.Destroy(c.Request.Context(), publicID, resourceType); err != nil {
		respondErr(c, h.log, "storage_delete", apierr.New(http.StatusBadGateway, "delete_failed", err))
		return
	}
	response.RespondOK(c, gin.H{"success": true, "publicId": publicID})
}
