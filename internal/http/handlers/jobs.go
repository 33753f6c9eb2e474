package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/http/response"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/temporalx/extractjob"
)

type JobService interface {
	Submit(ctx context.Context, in extractjob.Input) (string, error)
	Status(ctx context.Context, id string) (*extractjob.Status, error)
}

type JobHandler struct {
	log  *logger.Logger
	jobs JobService
}

func NewJobHandler(log *logger.Logger, jobs JobService) *JobHandler {
	return &JobHandler{log: log.With("handler", "JobHandler"), jobs: jobs}
}

type submitJobRequest struct {
	Kind     string   `json:"kind" binding:"required"`
	URL      string   `json:"url" binding:"required"`
	ForceOCR flexBool `json:"forceOcr"`
}

// POST /api/extract/jobs
func (h *JobHandler) Submit(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	kind, ok := extraction.ParseSourceKind(req.Kind)
	if !ok || !kind.IsRemote() {
		response.RespondError(c, http.StatusBadRequest, "invalid_kind", errors.New("kind must be youtube_url, remote_media_url or remote_document_url"))
		return
	}
	id, err := h.jobs.Submit(c.Request.Context(), extractjob.Input{
		Kind:     kind,
		URL:      strings.TrimSpace(req.URL),
		ForceOCR: bool(req.ForceOCR),
	})
	if err != nil {
		respondErr(c, h.log, "submit_job", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "jobId": id, "state": extractjob.StateRunning})
}

// GET /api/extract/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", nil)
		return
	}
	st, err := h.jobs.Status(c.Request.Context(), id)
	if err != nil {
		respondErr(c, h.log, "get_job", err)
		return
	}
	response.RespondOK(c, gin.H{"job": st})
}
