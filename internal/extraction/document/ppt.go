package document

import (
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

const (
	minPrintableRun = 4
	minKeptRun      = 11
)

// extractPPT scrapes printable Latin-1 runs out of a legacy binary
// presentation. Slide boundaries are not recoverable this way.
func (p *Provider) extractPPT(data []byte) (*extraction.Result, error) {
	chunks := printableRuns(data)
	text := strings.Join(chunks, "\n")
	res := extraction.NewResult(extraction.ProviderPPTHeuristic, extraction.SingleSegment(text), map[string]any{
		"slideCount":   1,
		"documentType": "PPT",
		"title":        "PPT Document",
		"confidence":   "low",
	})
	res.AddWarning("legacy PPT text recovered heuristically; slide order and layout are lost")
	return res, nil
}

func printableRuns(data []byte) []string {
	var out []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		if end-start >= minPrintableRun && end-start >= minKeptRun {
			run := latin1(data[start:end])
			if !strings.Contains(run, "PPTX") {
				out = append(out, run)
			}
		}
		start = -1
	}
	for i, b := range data {
		if isPrintableLatin1(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return out
}

func isPrintableLatin1(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b >= 0xA0
}

func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
