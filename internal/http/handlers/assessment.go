package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/assessgen-backend/internal/assessment"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/http/response"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/platform/objectstore"
	"github.com/yungbote/assessgen-backend/internal/types"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type AssessmentService interface {
	Generate(ctx context.Context, req assessment.Request) (*assessment.Outcome, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Assessment, error)
	List(ctx context.Context, limit int) ([]*types.Assessment, error)
}

type AssessmentHandler struct {
	log    *logger.Logger
	svc    AssessmentService
	limits extraction.Limits
}

func NewAssessmentHandler(log *logger.Logger, svc AssessmentService, limits extraction.Limits) *AssessmentHandler {
	return &AssessmentHandler{
		log:    log.With("handler", "AssessmentHandler"),
		svc:    svc,
		limits: limits,
	}
}

type assessmentMeta struct {
	Type          string `json:"type"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
}

type generateResponse struct {
	Success      bool                  `json:"success"`
	AssessmentID string                `json:"assessmentId"`
	Title        string                `json:"title"`
	Assessment   []assessment.Question `json:"assessment"`
	Metadata     assessmentMeta        `json:"metadata"`
	VideoID      string                `json:"videoId,omitempty"`
	Replayed     bool                  `json:"replayed,omitempty"`
}

// Generate serves POST /api/assessments/generate/<kind>.
func (h *AssessmentHandler) Generate(kind extraction.SourceKind) gin.HandlerFunc {
	op := "generate_" + string(kind)
	return func(c *gin.Context) {
		d, req, err := resolveInput(c, kind, h.limits)
		if err != nil {
			respondErr(c, h.log, op, err)
			return
		}
		out, err := h.svc.Generate(c.Request.Context(), assessment.Request{
			Input:          d,
			Extract:        extraction.Options{ForceOCR: bool(req.ForceOCR), Limits: h.limits},
			Options:        req.options(),
			IdempotencyKey: strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)),
			DeleteAfter:    req.storageRef(objectstore.ResourceTypeFor(d.MimeType())),
		})
		if err != nil {
			respondErr(c, h.log, op, err)
			return
		}

		a := out.Assessment
		status := http.StatusCreated
		if out.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, generateResponse{
			Success:      true,
			AssessmentID: a.ID.String(),
			Title:        a.Title,
			Assessment:   out.Questions,
			Metadata: assessmentMeta{
				Type:          a.Type,
				Difficulty:    a.Difficulty,
				QuestionCount: a.QuestionCount,
			},
			VideoID:  videoIDOf(a),
			Replayed: out.Replayed,
		})
	}
}

func videoIDOf(a *types.Assessment) string {
	if len(a.Metadata) == 0 {
		return ""
	}
	var meta struct {
		VideoID string `json:"videoId"`
	}
	_ = json.Unmarshal(a.Metadata, &meta)
	return meta.VideoID
}

// GET /api/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_assessment_id", err)
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, h.log, "get_assessment", err)
		return
	}
	response.RespondOK(c, gin.H{"assessment": a})
}

// GET /api/assessments?limit=n
func (h *AssessmentHandler) List(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	rows, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, h.log, "list_assessments", err)
		return
	}
	response.RespondOK(c, gin.H{"assessments": rows})
}
