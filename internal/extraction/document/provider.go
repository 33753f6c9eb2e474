package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Strategy selects how PDFs are read.
type Strategy int

const (
	// PreferStructural reads the embedded text layer and only falls back to
	// OCR when it yields too little text.
	PreferStructural Strategy = iota
	// ForceOCR skips the text layer.
	ForceOCR
)

func (s Strategy) String() string {
	if s == ForceOCR {
		return "force-ocr"
	}
	return "prefer-structural"
}

func StrategyFor(forceOCR bool) Strategy {
	if forceOCR {
		return ForceOCR
	}
	return PreferStructural
}

// Input is a fetched document. Path, when set, is an on-disk copy that
// command-line fallbacks can read.
type Input struct {
	Data     []byte
	MimeType string
	Path     string
}

// PDFTextTool is the external text extractor used when the in-process parser
// fails.
type PDFTextTool interface {
	PDFToText(ctx context.Context, pdfPath string) ([]string, error)
}

type Provider struct {
	log   *logger.Logger
	ocr   OCR
	tools PDFTextTool
}

func NewProvider(log *logger.Logger, ocr OCR, tools PDFTextTool) *Provider {
	return &Provider{log: log.With("service", "DocumentTextProvider"), ocr: ocr, tools: tools}
}

// ExtractText dispatches on MIME type and rejects results below
// extraction.MinDocumentTextLength.
func (p *Provider) ExtractText(ctx context.Context, in Input, strategy Strategy) (*extraction.Result, error) {
	ctx = ctxutil.Default(ctx)
	mt := extraction.NormalizeMime(in.MimeType)
	if mt == source.MimePPT && source.SniffDocumentMime(in.Data) == source.MimePPTX {
		mt = source.MimePPTX
	}

	var (
		res *extraction.Result
		err error
	)
	switch mt {
	case source.MimePDF:
		res, err = p.extractPDF(ctx, in, strategy)
	case source.MimePPTX:
		res, err = p.extractPPTX(in.Data)
	case source.MimePPT:
		res, err = p.extractPPT(in.Data)
	default:
		return nil, extraction.UnsupportedDocumentType(in.MimeType)
	}
	if err != nil {
		return nil, extraction.WithDeadline(ctx, err)
	}
	if n := res.TextLength(); n < extraction.MinDocumentTextLength {
		return nil, extraction.InsufficientText(n)
	}
	p.log.Info("document text extracted",
		"provider", res.ProviderUsed,
		"segments", len(res.Breakdown),
		"chars", res.TextLength(),
		"strategy", strategy.String(),
	)
	return res, nil
}

func segmentsFromPages(pages []string) []extraction.Segment {
	segs := make([]extraction.Segment, len(pages))
	for i, t := range pages {
		segs[i] = extraction.Segment{Index: i + 1, Text: strings.TrimSpace(t)}
	}
	return segs
}

func contentLength(pages []string) int {
	n := 0
	for _, t := range pages {
		n += len([]rune(strings.TrimSpace(t)))
	}
	return n
}

func noOCRConfigured() error {
	return extraction.OCRProviderError("none", "no OCR backend configured", fmt.Errorf("ocr unavailable"))
}
