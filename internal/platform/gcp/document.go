package gcp

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const ProviderDocumentAI = "gcp-documentai"

type Document interface {
	ProcessBytes(ctx context.Context, data []byte, mimeType string) (*OCRResult, error)
	Close() error
}

type DocumentConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

func DocumentConfigFromEnv() DocumentConfig {
	return DocumentConfig{
		ProjectID:        envutil.String("GCP_PROJECT_ID", ""),
		Location:         envutil.String("DOCAI_LOCATION", "us"),
		ProcessorID:      envutil.String("DOCAI_PROCESSOR_ID", ""),
		ProcessorVersion: envutil.String("DOCAI_PROCESSOR_VERSION", ""),
	}
}

type documentService struct {
	log        *logger.Logger
	client     *documentai.DocumentProcessorClient
	processor  string
	maxRetries int
}

func NewDocument(ctx context.Context, log *logger.Logger, cfg DocumentConfig) (Document, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("document ai requires GCP_PROJECT_ID, DOCAI_LOCATION and DOCAI_PROCESSOR_ID")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	slog := log.With("service", "gcp.Document")
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return &documentService{log: slog, client: c, processor: name, maxRetries: 3}, nil
}

func (s *documentService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *documentService) ProcessBytes(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	ctx = ctxutil.Default(ctx)
	if len(data) == 0 {
		return &OCRResult{Provider: ProviderDocumentAI}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	req := &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	}
	resp, err := retry(ctx, s.maxRetries, func() (*documentaipb.ProcessResponse, error) {
		return s.client.ProcessDocument(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return &OCRResult{Provider: ProviderDocumentAI}, nil
	}
	return pagesFromDocument(resp.Document), nil
}

func pagesFromDocument(doc *documentaipb.Document) *OCRResult {
	out := &OCRResult{Provider: ProviderDocumentAI}
	if len(doc.Pages) == 0 {
		if t := strings.TrimSpace(doc.Text); t != "" {
			out.Pages = append(out.Pages, OCRPage{Number: 1, Text: t})
		}
		return out
	}
	for i, pg := range doc.Pages {
		if pg == nil {
			continue
		}
		num := i + 1
		if pg.PageNumber > 0 {
			num = int(pg.PageNumber)
		}
		page := OCRPage{Number: num}
		if pg.Layout != nil {
			page.Text = strings.TrimSpace(textFromAnchor(doc.Text, pg.Layout.TextAnchor))
			page.Confidence = float64(pg.Layout.Confidence)
		}
		out.Pages = append(out.Pages, page)
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
