package audio

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/yungbote/assessgen-backend/internal/extraction/artifacts"
	"github.com/yungbote/assessgen-backend/internal/platform/localmedia"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type fakeTranscoder struct {
	extractFunc func(ctx context.Context, in, out string, opts localmedia.AudioExtractOptions) (string, error)
	calls       int
}

func (f *fakeTranscoder) ExtractAudioFromVideo(ctx context.Context, in, out string, opts localmedia.AudioExtractOptions) (string, error) {
	f.calls++
	return f.extractFunc(ctx, in, out, opts)
}

func newScope(t *testing.T) *artifacts.Scope {
	t.Helper()
	s, err := artifacts.New(logger.Nop(), t.TempDir())
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	t.Cleanup(func() { _ = s.Cleanup() })
	return s
}

func TestExtractSuccess(t *testing.T) {
	scope := newScope(t)
	video, _ := scope.WriteFile("talk.mp4", []byte("video"))
	tc := &fakeTranscoder{extractFunc: func(_ context.Context, _, out string, opts localmedia.AudioExtractOptions) (string, error) {
		if opts.Format != "mp3" {
			t.Fatalf("format: want=mp3 got=%q", opts.Format)
		}
		return out, os.WriteFile(out, []byte("ID3audio"), 0o644)
	}}
	out, err := NewExtractor(logger.Nop(), tc, localmedia.AudioExtractOptions{}).Extract(context.Background(), video, "video/mp4", scope)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Degraded || out.MimeType != "audio/mpeg" || !strings.HasSuffix(out.Path, ".mp3") {
		t.Fatalf("output: got=%+v", out)
	}
}

func TestExtractFallsBackToPassThrough(t *testing.T) {
	scope := newScope(t)
	video, _ := scope.WriteFile("talk.mp4", []byte("original-video-bytes"))
	tc := &fakeTranscoder{extractFunc: func(context.Context, string, string, localmedia.AudioExtractOptions) (string, error) {
		return "", errors.New("ffmpeg: exit status 1")
	}}
	out, err := NewExtractor(logger.Nop(), tc, localmedia.AudioExtractOptions{}).Extract(context.Background(), video, "video/mp4", scope)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !out.Degraded || out.MimeType != "video/mp4" {
		t.Fatalf("output: want degraded video/mp4 got=%+v", out)
	}
	got, _ := os.ReadFile(out.Path)
	if string(got) != "original-video-bytes" {
		t.Fatalf("pass-through bytes: got=%q", got)
	}
	if !strings.Contains(out.Warning, "conversion_degraded") {
		t.Fatalf("warning: got=%q", out.Warning)
	}
}

func TestExtractEmptyOutputDegrades(t *testing.T) {
	scope := newScope(t)
	video, _ := scope.WriteFile("talk.mp4", []byte("v"))
	tc := &fakeTranscoder{extractFunc: func(_ context.Context, _, out string, _ localmedia.AudioExtractOptions) (string, error) {
		return out, os.WriteFile(out, nil, 0o644)
	}}
	out, err := NewExtractor(logger.Nop(), tc, localmedia.AudioExtractOptions{}).Extract(context.Background(), video, "video/mp4", scope)
	if err != nil || !out.Degraded {
		t.Fatalf("want degraded output, got=%+v err=%v", out, err)
	}
}

func TestExtractEmptyFallbackIsFatal(t *testing.T) {
	scope := newScope(t)
	video, _ := scope.WriteFile("talk.mp4", nil)
	_, err := NewExtractor(logger.Nop(), nil, localmedia.AudioExtractOptions{}).Extract(context.Background(), video, "video/mp4", scope)
	if err == nil {
		t.Fatalf("want error for empty pass-through payload")
	}
}
