package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	httpH "github.com/yungbote/assessgen-backend/internal/http/handlers"
	httpMW "github.com/yungbote/assessgen-backend/internal/http/middleware"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler     *httpH.HealthHandler
	ExtractHandler    *httpH.ExtractHandler
	AssessmentHandler *httpH.AssessmentHandler
	StorageHandler    *httpH.StorageHandler
	JobHandler        *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log.With("component", "http")))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Extraction
	if h := cfg.ExtractHandler; h != nil {
		ex := api.Group("/extract")
		ex.GET("/formats", h.Formats)
		ex.POST("/youtube", h.Route(extraction.SourceYouTubeURL))
		ex.POST("/media", h.Route(extraction.SourceUploadedMedia))
		ex.POST("/media-url", h.Route(extraction.SourceRemoteMediaURL))
		ex.POST("/document", h.Route(extraction.SourceUploadedDocument))
		ex.POST("/document-url", h.Route(extraction.SourceRemoteDocumentURL))
	}

	// Extraction jobs
	if h := cfg.JobHandler; h != nil {
		api.POST("/extract/jobs", h.Submit)
		api.GET("/extract/jobs/:id", h.Get)
	}

	// Assessments
	if h := cfg.AssessmentHandler; h != nil {
		as := api.Group("/assessments")
		as.GET("", h.List)
		as.GET("/:id", h.Get)
		gen := as.Group("/generate")
		gen.POST("/youtube", h.Generate(extraction.SourceYouTubeURL))
		gen.POST("/media", h.Generate(extraction.SourceUploadedMedia))
		gen.POST("/media-url", h.Generate(extraction.SourceRemoteMediaURL))
		gen.POST("/document", h.Generate(extraction.SourceUploadedDocument))
		gen.POST("/document-url", h.Generate(extraction.SourceRemoteDocumentURL))
	}

	// Storage
	if h := cfg.StorageHandler; h != nil {
		api.POST("/storage/upload", h.Upload)
		api.DELETE("/storage/:resourceType/*publicId", h.Delete)
	}

	return r
}
