package extraction

import (
	"strings"
	"unicode/utf8"
)

type Provider string

const (
	ProviderTranscriptLookup      Provider = "transcript-lookup"
	ProviderTranscriptionFallback Provider = "transcription-fallback"
	ProviderTranscription         Provider = "transcription"
	ProviderPDFStructural         Provider = "pdf-structural"
	ProviderPDFOCR                Provider = "pdf-ocr"
	ProviderPPTXXML               Provider = "pptx-xml"
	ProviderPPTHeuristic          Provider = "ppt-heuristic"
)

// MinDocumentTextLength is the shortest document text handed to generation.
const MinDocumentTextLength = 100

// BreakdownSeparator joins breakdown entries into Result.Text.
const BreakdownSeparator = "\n\n"

type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type Result struct {
	Text           string         `json:"text"`
	Breakdown      []Segment      `json:"pageBreakdown"`
	SourceMetadata map[string]any `json:"metadata"`
	ProviderUsed   Provider       `json:"providerUsed"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// NewResult builds a result whose Text is always the joined breakdown.
func NewResult(provider Provider, segs []Segment, meta map[string]any) *Result {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Result{
		Text:           JoinBreakdown(segs),
		Breakdown:      segs,
		SourceMetadata: meta,
		ProviderUsed:   provider,
	}
}

// SingleSegment wraps a whole transcript as breakdown entry 1.
func SingleSegment(text string) []Segment {
	return []Segment{{Index: 1, Text: text}}
}

func JoinBreakdown(segs []Segment) string {
	if len(segs) == 0 {
		return ""
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Text
	}
	return strings.Join(parts, BreakdownSeparator)
}

// Consistent reports whether Text still equals the joined breakdown.
func (r *Result) Consistent() bool {
	if r == nil {
		return false
	}
	return r.Text == JoinBreakdown(r.Breakdown)
}

// TextLength counts characters of content, not bytes. Separators between
// breakdown entries and surrounding whitespace are not counted, so a run of
// blank pages measures zero.
func (r *Result) TextLength() int {
	if r == nil {
		return 0
	}
	if len(r.Breakdown) == 0 {
		return utf8.RuneCountInString(strings.TrimSpace(r.Text))
	}
	n := 0
	for _, s := range r.Breakdown {
		n += utf8.RuneCountInString(strings.TrimSpace(s.Text))
	}
	return n
}

func (r *Result) AddWarning(w string) {
	w = strings.TrimSpace(w)
	if r == nil || w == "" {
		return
	}
	r.Warnings = append(r.Warnings, w)
}

func (r *Result) SetMeta(key string, val any) {
	if r == nil {
		return
	}
	if r.SourceMetadata == nil {
		r.SourceMetadata = map[string]any{}
	}
	r.SourceMetadata[key] = val
}
