package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

var denseLines = []string{
	"Mitochondria are the site of cellular respiration in eukaryotes.",
	"They carry their own circular genome and divide by fission.",
}

func longOCRPage(n int) OCRPage {
	return OCRPage{Number: n, Text: strings.Repeat("scanned words recovered by optical recognition ", 3), Confidence: 88}
}

func TestPDFStructuralExtraction(t *testing.T) {
	pdf := buildPDF(t, [][]string{denseLines, denseLines})
	ocr := &fakeOCR{recognizeFunc: func(context.Context, []byte, int) (*OCRResult, error) {
		t.Fatalf("OCR must not run for a PDF with a text layer")
		return nil, nil
	}}
	p := NewProvider(logger.Nop(), ocr, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: pdf, MimeType: "application/pdf"}, PreferStructural)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPDFStructural, res.ProviderUsed)
	assert.Len(t, res.Breakdown, 2)
	assert.Equal(t, 2, res.SourceMetadata["pageCount"])
	assert.Equal(t, false, res.SourceMetadata["ocrUsed"])
	assert.True(t, res.Consistent())
	assert.Contains(t, res.Breakdown[0].Text, "Mitochondria")
	assert.Contains(t, res.Breakdown[0].Text, "\n", "baseline change should start a new line")
}

func TestBlankPDFFallsBackToOCR(t *testing.T) {
	pdf := buildPDF(t, [][]string{nil})
	ocr := &fakeOCR{recognizeFunc: func(context.Context, []byte, int) (*OCRResult, error) {
		return &OCRResult{Provider: "fake-ocr", Pages: []OCRPage{longOCRPage(1)}}, nil
	}}
	p := NewProvider(logger.Nop(), ocr, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: pdf, MimeType: "application/pdf"}, PreferStructural)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPDFOCR, res.ProviderUsed)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, true, res.SourceMetadata["ocrUsed"])
	assert.Equal(t, "fake-ocr", res.SourceMetadata["ocrProvider"])
	assert.Equal(t, 88.0, res.SourceMetadata["ocrConfidence"])
}

func TestForceOCRSkipsTextLayer(t *testing.T) {
	pdf := buildPDF(t, [][]string{denseLines})
	ocr := &fakeOCR{recognizeFunc: func(_ context.Context, _ []byte, pageCount int) (*OCRResult, error) {
		assert.Equal(t, 0, pageCount)
		return &OCRResult{Provider: "fake-ocr", Pages: []OCRPage{longOCRPage(1), longOCRPage(2)}}, nil
	}}
	p := NewProvider(logger.Nop(), ocr, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: pdf, MimeType: "application/pdf"}, ForceOCR)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPDFOCR, res.ProviderUsed)
	assert.Len(t, res.Breakdown, 2)
}

func TestParserFailureUsesPDFToText(t *testing.T) {
	tool := &fakePDFTool{pdfToTextFunc: func(_ context.Context, path string) ([]string, error) {
		assert.Equal(t, "/work/doc.pdf", path)
		return []string{strings.Join(denseLines, "\n"), strings.Join(denseLines, "\n")}, nil
	}}
	p := NewProvider(logger.Nop(), nil, tool)

	res, err := p.ExtractText(context.Background(), Input{Data: []byte("%PDF-1.4 truncated"), MimeType: "application/pdf", Path: "/work/doc.pdf"}, PreferStructural)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPDFStructural, res.ProviderUsed)
	assert.Len(t, res.Breakdown, 2)
}

func TestOCRFailureIsProviderError(t *testing.T) {
	ocr := &fakeOCR{recognizeFunc: func(context.Context, []byte, int) (*OCRResult, error) {
		return nil, errors.New("quota exceeded")
	}}
	p := NewProvider(logger.Nop(), ocr, nil)

	_, err := p.ExtractText(context.Background(), Input{Data: buildPDF(t, [][]string{nil}), MimeType: "application/pdf"}, PreferStructural)
	assert.True(t, errors.Is(err, extraction.ErrOCRProvider), "got %v", err)
}

func TestInsufficientTextAfterOCR(t *testing.T) {
	ocr := &fakeOCR{recognizeFunc: func(context.Context, []byte, int) (*OCRResult, error) {
		return &OCRResult{Provider: "fake-ocr", Pages: []OCRPage{{Number: 1, Text: "tiny"}}}, nil
	}}
	p := NewProvider(logger.Nop(), ocr, nil)

	_, err := p.ExtractText(context.Background(), Input{Data: buildPDF(t, [][]string{nil}), MimeType: "application/pdf"}, PreferStructural)
	e, ok := extraction.AsError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, extraction.KindInsufficientText, e.Kind)
	assert.Equal(t, 4, e.Length)
}

func TestPPTXSlidesOrderedByNumber(t *testing.T) {
	body := strings.Repeat("Ribosomes translate messenger RNA into protein chains. ", 2)
	deck := buildPPTX(t, map[string]string{
		"ppt/slides/slide10.xml":           slideXML("Ten", body),
		"ppt/slides/slide2.xml":            slideXML("Two|, continued", body),
		"ppt/slides/slide1.xml":            slideXML("One"),
		"ppt/notesSlides/notesSlide2.xml":  slideXML("Remember the diagram"),
		"ppt/slides/_rels/slide1.xml.rels": "<Relationships/>",
		"docProps/core.xml":                coreXML,
	})
	p := NewProvider(logger.Nop(), nil, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: deck, MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation"}, PreferStructural)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPPTXXML, res.ProviderUsed)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{res.Breakdown[0].Index, res.Breakdown[1].Index, res.Breakdown[2].Index})
	assert.Equal(t, "Two, continued\n"+strings.TrimSpace(body), res.Breakdown[1].Text)
	assert.Equal(t, 3, res.SourceMetadata["slideCount"])
	assert.Equal(t, "Cell Biology 101", res.SourceMetadata["title"])
	assert.Equal(t, "Lecture deck on organelles", res.SourceMetadata["description"])
	notes, _ := res.SourceMetadata["notes"].([]SlideNote)
	require.Len(t, notes, 1)
	assert.Equal(t, SlideNote{Slide: 2, Text: "Remember the diagram"}, notes[0])
	assert.True(t, res.Consistent())
}

func TestPPTXMalformedSlideSkipped(t *testing.T) {
	body := strings.Repeat("Photosynthesis converts light energy into chemical energy. ", 3)
	deck := buildPPTX(t, map[string]string{
		"ppt/slides/slide1.xml": slideXML(body),
		"ppt/slides/slide2.xml": "<p:sld><a:p><a:t>unterminated",
	})
	p := NewProvider(logger.Nop(), nil, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: deck, MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation"}, PreferStructural)
	require.NoError(t, err)
	assert.Len(t, res.Breakdown, 1)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "slide 2 skipped")
}

func TestPPTXNotZipIsMalformedArchive(t *testing.T) {
	p := NewProvider(logger.Nop(), nil, nil)
	_, err := p.ExtractText(context.Background(), Input{Data: []byte("definitely not a zip"), MimeType: "application/vnd.openxmlformats-officedocument.presentationml.presentation"}, PreferStructural)
	assert.True(t, errors.Is(err, extraction.ErrMalformedArchive), "got %v", err)
}

func TestDeclaredPPTWithZipMagicIsReadAsPPTX(t *testing.T) {
	body := strings.Repeat("Enzymes lower the activation energy of reactions. ", 3)
	deck := buildPPTX(t, map[string]string{"ppt/slides/slide1.xml": slideXML(body)})
	p := NewProvider(logger.Nop(), nil, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: deck, MimeType: "application/vnd.ms-powerpoint"}, PreferStructural)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPPTXXML, res.ProviderUsed)
}

func TestLegacyPPTHeuristic(t *testing.T) {
	var data []byte
	data = append(data, 0xD0, 0xCF, 0x11, 0xE0, 0x00, 0x01)
	data = append(data, []byte("The Krebs cycle oxidizes acetyl-CoA to carbon dioxide")...)
	data = append(data, 0x00, 0x02, 'a', 'b', 'c', 0x00)
	data = append(data, []byte("Glycolysis splits glucose into two pyruvate molecules")...)
	data = append(data, 0x00, 0x03)
	data = append(data, []byte("short")...)
	p := NewProvider(logger.Nop(), nil, nil)

	res, err := p.ExtractText(context.Background(), Input{Data: data, MimeType: "application/vnd.ms-powerpoint"}, PreferStructural)
	require.NoError(t, err)
	assert.Equal(t, extraction.ProviderPPTHeuristic, res.ProviderUsed)
	assert.Equal(t, "The Krebs cycle oxidizes acetyl-CoA to carbon dioxide\nGlycolysis splits glucose into two pyruvate molecules", res.Text)
	assert.Equal(t, "low", res.SourceMetadata["confidence"])
	assert.Len(t, res.Warnings, 1)
}

func TestUnsupportedDocumentType(t *testing.T) {
	p := NewProvider(logger.Nop(), nil, nil)
	_, err := p.ExtractText(context.Background(), Input{Data: []byte("hello"), MimeType: "text/plain"}, PreferStructural)
	assert.True(t, errors.Is(err, extraction.ErrUnsupportedDocumentType), "got %v", err)
}

func TestPrintableRunsKeepsLatin1(t *testing.T) {
	runs := printableRuns([]byte{'C', 'a', 'f', 0xE9, ' ', 'a', 'u', ' ', 'l', 'a', 'i', 't', 0x01})
	require.Len(t, runs, 1)
	assert.Equal(t, "Café au lait", runs[0])
}
