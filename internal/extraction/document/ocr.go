package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/pkg/httpx"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const (
	ProviderOCRSpace      = "ocr-space"
	DefaultOCRSpaceURL    = "https://api.ocr.space/parse/image"
	defaultOCRHTTPTimeout = 2 * time.Minute
)

type OCRPage struct {
	Number     int
	Text       string
	Confidence float64
}

type OCRResult struct {
	Provider string
	Pages    []OCRPage
}

func (r *OCRResult) MeanConfidence() (float64, bool) {
	var sum float64
	n := 0
	for _, p := range r.Pages {
		if p.Confidence > 0 {
			sum += p.Confidence
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// OCR recognizes text in a PDF. pageCount is a hint and may be zero.
type OCR interface {
	Name() string
	Recognize(ctx context.Context, pdf []byte, pageCount int) (*OCRResult, error)
}

type OCRSpaceConfig struct {
	APIKey string
	URL    string
}

func OCRSpaceConfigFromEnv() OCRSpaceConfig {
	key := envutil.String("OCR_SPACE_API_KEY", "")
	if key == "" {
		key = envutil.String("OCR_API_KEY", "")
	}
	return OCRSpaceConfig{APIKey: key, URL: envutil.String("OCR_SPACE_URL", DefaultOCRSpaceURL)}
}

type OCRSpace struct {
	log *logger.Logger
	cfg OCRSpaceConfig
	hc  *http.Client
}

func NewOCRSpace(log *logger.Logger, cfg OCRSpaceConfig, hc *http.Client) (*OCRSpace, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OCR_SPACE_API_KEY")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultOCRSpaceURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultOCRHTTPTimeout}
	}
	return &OCRSpace{log: log.With("service", "OCRSpace"), cfg: cfg, hc: hc}, nil
}

func (o *OCRSpace) Name() string { return ProviderOCRSpace }

type ocrSpaceResponse struct {
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
	ParsedResults         []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		TextOverlay       *struct {
			Lines []struct {
				Words []struct {
					Confidence float64 `json:"Confidence"`
				} `json:"Words"`
			} `json:"Lines"`
		} `json:"TextOverlay"`
	} `json:"ParsedResults"`
}

func (o *OCRSpace) Recognize(ctx context.Context, pdf []byte, _ int) (*OCRResult, error) {
	body, contentType, err := ocrSpaceForm(o.cfg.APIKey, pdf)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := o.hc.Do(req)
	if err != nil {
		return nil, extraction.OCRProviderError(ProviderOCRSpace, "request failed", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, extraction.OCRProviderError(ProviderOCRSpace, "unexpected status", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, extraction.OCRProviderError(ProviderOCRSpace, "read response", err)
	}
	var parsed ocrSpaceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, extraction.OCRProviderError(ProviderOCRSpace, "decode response", err)
	}
	if parsed.IsErroredOnProcessing {
		return nil, extraction.OCRProviderError(ProviderOCRSpace, ocrSpaceMessage(parsed.ErrorMessage), nil)
	}

	out := &OCRResult{Provider: ProviderOCRSpace}
	for i, pr := range parsed.ParsedResults {
		page := OCRPage{Number: i + 1, Text: strings.TrimSpace(pr.ParsedText)}
		if pr.TextOverlay != nil {
			var sum float64
			n := 0
			for _, l := range pr.TextOverlay.Lines {
				for _, w := range l.Words {
					sum += w.Confidence
					n++
				}
			}
			if n > 0 {
				page.Confidence = math.Round(sum / float64(n))
			}
		}
		out.Pages = append(out.Pages, page)
	}
	o.log.Debug("ocr.space recognized", "pages", len(out.Pages))
	return out, nil
}

func ocrSpaceForm(apiKey string, pdf []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "document.pdf")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(pdf); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"apikey", apiKey},
		{"language", "eng"},
		{"filetype", "PDF"},
		{"isCreateSearchablePdf", "false"},
		{"scale", "true"},
		{"detectOrientation", "true"},
		{"OCREngine", "2"},
		{"isTable", "true"},
		{"isOverlayRequired", "true"},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// ocrSpaceMessage accepts both the string and string-array forms of
// ErrorMessage.
func ocrSpaceMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "ocr processing error"
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return "ocr processing error"
}

// GCPOCR adapts the Cloud Vision and Document AI clients.
type GCPOCR struct {
	name     string
	vision   gcp.Vision
	document gcp.Document
}

func NewVisionOCR(v gcp.Vision) *GCPOCR { return &GCPOCR{name: gcp.ProviderVision, vision: v} }

func NewDocumentAIOCR(d gcp.Document) *GCPOCR {
	return &GCPOCR{name: gcp.ProviderDocumentAI, document: d}
}

func (g *GCPOCR) Name() string { return g.name }

func (g *GCPOCR) Recognize(ctx context.Context, pdf []byte, pageCount int) (*OCRResult, error) {
	var (
		res *gcp.OCRResult
		err error
	)
	switch {
	case g.vision != nil:
		res, err = g.vision.OCRPDFBytes(ctx, pdf, pageCount)
	case g.document != nil:
		res, err = g.document.ProcessBytes(ctx, pdf, "application/pdf")
	default:
		err = errors.New("no client configured")
	}
	if err != nil {
		return nil, extraction.OCRProviderError(g.name, "recognition failed", err)
	}
	out := &OCRResult{Provider: res.Provider}
	for _, p := range res.Pages {
		out.Pages = append(out.Pages, OCRPage{Number: p.Number, Text: p.Text, Confidence: p.Confidence})
	}
	return out, nil
}
