package gcp

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const ProviderVision = "gcp-vision"

// visionPagesPerRequest is the synchronous BatchAnnotateFiles page cap.
const visionPagesPerRequest = 5

type Vision interface {
	OCRPDFBytes(ctx context.Context, pdf []byte, maxPages int) (*OCRResult, error)
	Close() error
}

type visionAnnotator interface {
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
}

var _ visionAnnotator = (*vision.ImageAnnotatorClient)(nil)

type visionService struct {
	log        *logger.Logger
	client     visionAnnotator
	closer     func() error
	maxRetries int
}

func NewVision(ctx context.Context, log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{log: log.With("service", "gcp.Vision"), client: c, closer: c.Close, maxRetries: 4}, nil
}

func (s *visionService) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// OCRPDFBytes annotates an inline PDF in windows of five pages until the
// document (or maxPages, when positive) is exhausted.
func (s *visionService) OCRPDFBytes(ctx context.Context, pdf []byte, maxPages int) (*OCRResult, error) {
	ctx = ctxutil.Default(ctx)
	out := &OCRResult{Provider: ProviderVision}
	if len(pdf) == 0 {
		return out, nil
	}

	total := maxPages
	for first := 1; total <= 0 || first <= total; first += visionPagesPerRequest {
		pages := pageWindow(first, total)
		req := &visionpb.BatchAnnotateFilesRequest{
			Requests: []*visionpb.AnnotateFileRequest{{
				InputConfig: &visionpb.InputConfig{Content: pdf, MimeType: "application/pdf"},
				Features:    []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
				Pages:       pages,
			}},
		}
		resp, err := retry(ctx, s.maxRetries, func() (*visionpb.BatchAnnotateFilesResponse, error) {
			return s.client.BatchAnnotateFiles(ctx, req)
		})
		if err != nil {
			return nil, fmt.Errorf("vision BatchAnnotateFiles: %w", err)
		}
		if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
			break
		}
		fr := resp.Responses[0]
		if fr.Error != nil && fr.Error.Message != "" {
			return nil, fmt.Errorf("vision annotate error: %s", fr.Error.Message)
		}
		if total <= 0 {
			total = int(fr.TotalPages)
			if total <= 0 {
				total = len(pages)
			}
		}
		for i, ir := range fr.Responses {
			if ir == nil {
				continue
			}
			if ir.Error != nil && ir.Error.Message != "" {
				return nil, fmt.Errorf("vision page annotate error: %s", ir.Error.Message)
			}
			num := first + i
			if ir.Context != nil && ir.Context.PageNumber > 0 {
				num = int(ir.Context.PageNumber)
			}
			page := OCRPage{Number: num}
			if fta := ir.FullTextAnnotation; fta != nil {
				page.Text = strings.TrimSpace(fta.Text)
				for _, pg := range fta.Pages {
					if pg != nil {
						page.Confidence = avgBlockConfidence(pg.Blocks)
					}
				}
			}
			out.Pages = append(out.Pages, page)
		}
	}
	s.log.Debug("vision OCR complete", "pages", len(out.Pages))
	return out, nil
}

func pageWindow(first, total int) []int32 {
	last := first + visionPagesPerRequest - 1
	if total > 0 && last > total {
		last = total
	}
	pages := make([]int32, 0, visionPagesPerRequest)
	for p := first; p <= last; p++ {
		pages = append(pages, int32(p))
	}
	return pages
}

func avgBlockConfidence(blocks []*visionpb.Block) float64 {
	var sum float64
	n := 0
	for _, b := range blocks {
		if b != nil && b.Confidence > 0 {
			sum += float64(b.Confidence)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
