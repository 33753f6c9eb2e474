package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

func (p *Provider) extractPDF(ctx context.Context, in Input, strategy Strategy) (*extraction.Result, error) {
	pageCount := 0
	var warnings []string

	if strategy != ForceOCR {
		pages, err := p.structuralPages(ctx, in)
		if err == nil {
			pageCount = len(pages)
			if contentLength(pages) >= extraction.MinDocumentTextLength {
				return extraction.NewResult(extraction.ProviderPDFStructural, segmentsFromPages(pages), map[string]any{
					"pageCount":    len(pages),
					"documentType": "PDF",
					"ocrUsed":      false,
				}), nil
			}
			p.log.Info("structural extraction yielded little text, trying OCR", "pages", len(pages), "chars", contentLength(pages))
		} else {
			p.log.Warn("structural extraction failed, falling back to OCR", "error", err)
			warnings = append(warnings, "text layer unreadable: "+err.Error())
		}
	}

	if p.ocr == nil {
		return nil, noOCRConfigured()
	}
	ocr, err := p.ocr.Recognize(ctx, in.Data, pageCount)
	if err != nil {
		if ctx.Err() != nil {
			return nil, extraction.WithDeadline(ctx, err)
		}
		if _, ok := extraction.AsError(err); ok {
			return nil, err
		}
		return nil, extraction.OCRProviderError(p.ocr.Name(), "recognition failed", err)
	}

	pages := make([]string, len(ocr.Pages))
	for i, pg := range ocr.Pages {
		pages[i] = pg.Text
	}
	res := extraction.NewResult(extraction.ProviderPDFOCR, segmentsFromPages(pages), map[string]any{
		"pageCount":    len(pages),
		"documentType": "PDF",
		"ocrUsed":      true,
		"ocrProvider":  ocr.Provider,
	})
	if c, ok := ocr.MeanConfidence(); ok {
		res.SetMeta("ocrConfidence", c)
	}
	for _, w := range warnings {
		res.AddWarning(w)
	}
	return res, nil
}

// structuralPages reads the text layer in-process and retries with the
// external tool when the parser gives up.
func (p *Provider) structuralPages(ctx context.Context, in Input) ([]string, error) {
	pages, err := parsePDFPages(in.Data)
	if err == nil {
		return pages, nil
	}
	if p.tools == nil || strings.TrimSpace(in.Path) == "" {
		return nil, err
	}
	p.log.Warn("pdf parser failed, trying pdftotext", "error", err)
	toolPages, toolErr := p.tools.PDFToText(ctx, in.Path)
	if toolErr != nil {
		return nil, errors.Join(err, toolErr)
	}
	return toolPages, nil
}

func parsePDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	if n <= 0 {
		return nil, errors.New("pdf has no pages")
	}
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pg := r.Page(i)
		if pg.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, joinRuns(pg.Content().Text))
	}
	return pages, nil
}

// joinRuns concatenates text runs in content order, starting a new line
// whenever the baseline moves.
func joinRuns(runs []pdf.Text) string {
	var b strings.Builder
	for i, t := range runs {
		if i > 0 && t.Y != runs[i-1].Y {
			b.WriteByte('\n')
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(b.String())
}
