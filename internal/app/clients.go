package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yungbote/assessgen-backend/internal/assessment"
	"github.com/yungbote/assessgen-backend/internal/extraction/audio"
	"github.com/yungbote/assessgen-backend/internal/extraction/document"
	"github.com/yungbote/assessgen-backend/internal/extraction/orchestrator"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/extraction/transcribe"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/gemini"
	"github.com/yungbote/assessgen-backend/internal/platform/localmedia"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/platform/openai"
	"github.com/yungbote/assessgen-backend/internal/platform/redisx"
)

// Clients holds every external handle the extraction pipeline uses. Nil
// members are disabled backends.
type Clients struct {
	Redis    *redisx.Cache
	Tools    localmedia.Tools
	Speech   gcp.Speech
	Video    gcp.Video
	Vision   gcp.Vision
	Document gcp.Document

	Providers orchestrator.ProviderClients
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{}

	// Redis
	var cache orchestrator.JSONCache
	if cfg.Redis.Addr != "" {
		r, err := redisx.New(ctx, log, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = r
		cache = r
	} else {
		log.Warn("REDIS_ADDR not set; transcript and result caching disabled")
	}

	// Local tools
	c.Tools = localmedia.New(log, cfg.Media)
	if err := c.Tools.AssertReady(ctx); err != nil {
		log.Warn("media tools not ready; video passthrough and pdftotext fallback only", "error", err)
	}

	transcriber, err := c.wireTranscriber(ctx, log, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	ocr, err := c.wireOCR(ctx, log, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var lookup orchestrator.TranscriptLookup
	if cfg.Transcripts.BaseURL != "" {
		svc, err := orchestrator.NewTranscriptService(log, cfg.Transcripts, &http.Client{}, cache)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init transcript lookup: %w", err)
		}
		lookup = svc
	} else {
		log.Warn("TRANSCRIPT_SERVICE_URL not set; YouTube inputs always transcribe")
	}

	c.Providers = orchestrator.ProviderClients{
		Fetcher:     source.NewHTTPFetcher(log, nil),
		YouTube:     source.NewYouTubeDownloader(log, nil),
		Transcripts: lookup,
		Audio:       audio.NewExtractor(log, c.Tools, localmedia.AudioExtractOptions{Format: "mp3"}),
		Transcriber: transcriber,
		Documents:   document.NewProvider(log, ocr, c.Tools),
		Results:     cache,
		Metrics:     metrics,
	}
	return c, nil
}

func (c *Clients) wireTranscriber(ctx context.Context, log *logger.Logger, cfg Config) (transcribe.Transcriber, error) {
	switch cfg.TranscriptionProvider {
	case transcribe.ProviderGCPSpeech:
		s, err := gcp.NewSpeech(ctx, log)
		if err != nil {
			return nil, fmt.Errorf("init speech client: %w", err)
		}
		c.Speech = s
		return transcribe.NewSpeechTranscriber(log, s), nil
	case transcribe.ProviderGCPVideo:
		v, err := gcp.NewVideo(ctx, log)
		if err != nil {
			return nil, fmt.Errorf("init video client: %w", err)
		}
		c.Video = v
		return transcribe.NewVideoTranscriber(log, v), nil
	default:
		if cfg.Assembly.APIKey == "" {
			log.Warn("ASSEMBLY_API_KEY not set; media transcription disabled")
			return nil, nil
		}
		a, err := transcribe.NewAssembly(log, cfg.Assembly)
		if err != nil {
			return nil, fmt.Errorf("init assemblyai: %w", err)
		}
		return a, nil
	}
}

func (c *Clients) wireOCR(ctx context.Context, log *logger.Logger, cfg Config) (document.OCR, error) {
	switch cfg.OCRProvider {
	case OCRProviderNone:
		return nil, nil
	case gcp.ProviderVision:
		v, err := gcp.NewVision(ctx, log)
		if err != nil {
			return nil, fmt.Errorf("init vision client: %w", err)
		}
		c.Vision = v
		return document.NewVisionOCR(v), nil
	case gcp.ProviderDocumentAI:
		d, err := gcp.NewDocument(ctx, log, cfg.DocumentAI)
		if err != nil {
			return nil, fmt.Errorf("init document ai client: %w", err)
		}
		c.Document = d
		return document.NewDocumentAIOCR(d), nil
	default:
		if cfg.OCRSpace.APIKey == "" {
			log.Warn("OCR_SPACE_API_KEY not set; scanned PDFs cannot be read")
			return nil, nil
		}
		o, err := document.NewOCRSpace(log, cfg.OCRSpace, nil)
		if err != nil {
			return nil, fmt.Errorf("init ocr.space: %w", err)
		}
		return o, nil
	}
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Speech != nil {
		_ = c.Speech.Close()
	}
	if c.Video != nil {
		_ = c.Video.Close()
	}
	if c.Vision != nil {
		_ = c.Vision.Close()
	}
	if c.Document != nil {
		_ = c.Document.Close()
	}
}

func wireGenerator(ctx context.Context, log *logger.Logger, cfg Config) (assessment.Generator, func(), error) {
	switch cfg.GeneratorProvider {
	case openai.ProviderName:
		oc, err := openai.NewClient(log, cfg.OpenAI, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai: %w", err)
		}
		return oc, func() {}, nil
	default:
		gc, err := gemini.NewClient(ctx, log, cfg.Gemini)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini: %w", err)
		}
		return gc, func() { _ = gc.Close() }, nil
	}
}
