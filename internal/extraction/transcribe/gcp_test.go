package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type fakeSpeech struct {
	recognizeFunc func(ctx context.Context, audio []byte, mimeType string, cfg gcp.SpeechConfig) (*gcp.SpeechResult, error)
}

func (f *fakeSpeech) RecognizeBytes(ctx context.Context, audio []byte, mimeType string, cfg gcp.SpeechConfig) (*gcp.SpeechResult, error) {
	return f.recognizeFunc(ctx, audio, mimeType, cfg)
}

func (f *fakeSpeech) Close() error { return nil }

func TestSpeechTranscriberMapsWordsAndSpeakers(t *testing.T) {
	s := &fakeSpeech{recognizeFunc: func(_ context.Context, audio []byte, mimeType string, cfg gcp.SpeechConfig) (*gcp.SpeechResult, error) {
		if string(audio) != "RIFF" || mimeType != "audio/wav" {
			t.Fatalf("input: audio=%q mime=%q", audio, mimeType)
		}
		if !cfg.EnableSpeakerDiarization || cfg.SampleRateHertz != 16000 {
			t.Fatalf("config: got=%+v", cfg)
		}
		return &gcp.SpeechResult{
			Text:       "good morning class",
			Confidence: 0.8,
			Words: []gcp.SpeechWord{
				{Text: "good", Start: 0, End: 300 * time.Millisecond, SpeakerTag: 1, Confidence: 0.8},
				{Text: "morning", Start: 300 * time.Millisecond, End: 800 * time.Millisecond, SpeakerTag: 1, Confidence: 0.8},
				{Text: "class", Start: time.Second, End: 1500 * time.Millisecond, SpeakerTag: 2, Confidence: 0.8},
			},
		}, nil
	}}
	p := filepath.Join(t.TempDir(), "a.wav")
	_ = os.WriteFile(p, []byte("RIFF"), 0o644)

	tr, err := NewSpeechTranscriber(logger.Nop(), s).Transcribe(context.Background(), Audio{Path: p, MimeType: "audio/wav"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "good morning class" || tr.Provider != ProviderGCPSpeech {
		t.Fatalf("transcript: got=%+v", tr)
	}
	if len(tr.Utterances) != 2 || tr.Utterances[0].Text != "good morning" || tr.Utterances[1].Speaker != "B" {
		t.Fatalf("utterances: got=%+v", tr.Utterances)
	}
	if tr.Words[2].StartMs != 1000 {
		t.Fatalf("word offset: want=1000 got=%d", tr.Words[2].StartMs)
	}
}

func TestSpeechTranscriberWrapsRemoteError(t *testing.T) {
	s := &fakeSpeech{recognizeFunc: func(context.Context, []byte, string, gcp.SpeechConfig) (*gcp.SpeechResult, error) {
		return nil, errors.New("permission denied")
	}}
	p := filepath.Join(t.TempDir(), "a.wav")
	_ = os.WriteFile(p, []byte("RIFF"), 0o644)

	_, err := NewSpeechTranscriber(logger.Nop(), s).Transcribe(context.Background(), Audio{Path: p}, DefaultOptions())
	if !errors.Is(err, extraction.ErrTranscriptionFailure) {
		t.Fatalf("want transcription failure, got=%v", err)
	}
}

func TestSpeakerLabel(t *testing.T) {
	if got := speakerLabel(1); got != "A" {
		t.Fatalf("label: want=A got=%q", got)
	}
	if got := speakerLabel(30); got != "S30" {
		t.Fatalf("label: want=S30 got=%q", got)
	}
}
