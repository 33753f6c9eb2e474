package transcribe

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Audio names the payload to transcribe. Path wins when both are set, unless
// the backend accepts remote URLs directly and Options.SourceURL is set.
type Audio struct {
	Path     string
	URL      string
	MimeType string
}

type Word struct {
	Text       string  `json:"text"`
	StartMs    int64   `json:"start"`
	EndMs      int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartMs    int64   `json:"start"`
	EndMs      int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

type Transcript struct {
	ID         string      `json:"id,omitempty"`
	Provider   string      `json:"provider"`
	Text       string      `json:"text"`
	Confidence *float64    `json:"confidence,omitempty"`
	Words      []Word      `json:"words,omitempty"`
	Utterances []Utterance `json:"utterances,omitempty"`
	Speakers   []string    `json:"speakers,omitempty"`
}

type Options struct {
	SpeakerLabels bool
	// DeleteFile removes Audio.Path once the call returns, whatever the outcome.
	DeleteFile bool
	// SourceURL submits Audio.URL to the provider without uploading bytes.
	SourceURL bool
	// Deadline bounds polling in the transcriber's clock. Zero means the
	// context deadline alone applies.
	Deadline time.Time
}

func DefaultOptions() Options {
	return Options{SpeakerLabels: true, DeleteFile: true}
}

// Transcriber turns an audio (or video) payload into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio Audio, opts Options) (*Transcript, error)
}

// Metadata flattens the transcript details kept alongside the extracted text.
func (t *Transcript) Metadata() map[string]any {
	meta := map[string]any{"transcriptionProvider": t.Provider}
	if t.ID != "" {
		meta["transcriptId"] = t.ID
	}
	if t.Confidence != nil {
		meta["confidence"] = *t.Confidence
	}
	if len(t.Words) > 0 {
		meta["wordCount"] = len(t.Words)
		last := t.Words[len(t.Words)-1]
		meta["durationMs"] = last.EndMs
	}
	if len(t.Speakers) > 0 {
		meta["speakers"] = t.Speakers
	}
	if len(t.Utterances) > 0 {
		meta["utterances"] = t.Utterances
	}
	return meta
}

func speakersOf(utts []Utterance, words []Word) []string {
	seen := map[string]bool{}
	for _, u := range utts {
		if s := strings.TrimSpace(u.Speaker); s != "" {
			seen[s] = true
		}
	}
	for _, w := range words {
		if s := strings.TrimSpace(w.Speaker); s != "" {
			seen[s] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func removeSource(log *logger.Logger, audio Audio, opts Options) {
	if !opts.DeleteFile || strings.TrimSpace(audio.Path) == "" {
		return
	}
	if err := os.Remove(audio.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to delete transcription source", "path", audio.Path, "error", err)
	}
}
