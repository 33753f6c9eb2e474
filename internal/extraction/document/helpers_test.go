package document

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeOCR struct {
	name          string
	recognizeFunc func(ctx context.Context, pdf []byte, pageCount int) (*OCRResult, error)
	calls         int
}

func (f *fakeOCR) Name() string {
	if f.name == "" {
		return "fake-ocr"
	}
	return f.name
}

func (f *fakeOCR) Recognize(ctx context.Context, pdf []byte, pageCount int) (*OCRResult, error) {
	f.calls++
	return f.recognizeFunc(ctx, pdf, pageCount)
}

type fakePDFTool struct {
	pdfToTextFunc func(ctx context.Context, path string) ([]string, error)
}

func (f *fakePDFTool) PDFToText(ctx context.Context, path string) ([]string, error) {
	return f.pdfToTextFunc(ctx, path)
}

// buildPDF writes a minimal PDF with one page per entry; each entry's lines
// are drawn on separate baselines. An empty entry yields a blank page.
func buildPDF(t *testing.T, pages [][]string) []byte {
	t.Helper()
	var objs []string
	objs = append(objs, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	objs = append(objs, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, lines := range pages {
		var content strings.Builder
		if len(lines) > 0 {
			content.WriteString("BT /F1 12 Tf 72 720 Td ")
			for j, l := range lines {
				if j > 0 {
					content.WriteString("0 -14 Td ")
				}
				fmt.Fprintf(&content, "(%s) Tj ", l)
			}
			content.WriteString("ET")
		}
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// buildPPTX zips the given parts; values are raw XML.
func buildPPTX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func slideXML(paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`)
	b.WriteString(`<p:cSld><p:spTree><p:sp><p:txBody>`)
	for _, para := range paragraphs {
		b.WriteString(`<a:p>`)
		for _, run := range strings.Split(para, "|") {
			fmt.Fprintf(&b, `<a:r><a:t>%s</a:t></a:r>`, run)
		}
		b.WriteString(`</a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return b.String()
}

const coreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Cell Biology 101</dc:title>
<dc:description>Lecture deck on organelles</dc:description>
</cp:coreProperties>`
