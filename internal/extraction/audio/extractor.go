package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/artifacts"
	"github.com/yungbote/assessgen-backend/internal/platform/localmedia"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Transcoder is the subset of localmedia.Tools the extractor needs.
type Transcoder interface {
	ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts localmedia.AudioExtractOptions) (string, error)
}

type Output struct {
	Path     string
	MimeType string
	// Degraded is set when the transcoder failed and the original video bytes
	// are passed through as the audio payload.
	Degraded bool
	Warning  string
}

type Extractor struct {
	log  *logger.Logger
	tc   Transcoder
	opts localmedia.AudioExtractOptions
}

func NewExtractor(log *logger.Logger, tc Transcoder, opts localmedia.AudioExtractOptions) *Extractor {
	if strings.TrimSpace(opts.Format) == "" {
		opts.Format = "mp3"
	}
	return &Extractor{log: log.With("service", "AudioExtractor"), tc: tc, opts: opts}
}

// WithFormat returns a copy producing a different container, e.g. linear PCM
// for backends that cannot decode mp3.
func (e *Extractor) WithFormat(opts localmedia.AudioExtractOptions) *Extractor {
	if strings.TrimSpace(opts.Format) == "" {
		return e
	}
	cp := *e
	cp.opts = opts
	return &cp
}

// Extract demuxes the audio stream of videoPath into a new scope artifact.
// Transcoder failures are not fatal: the video itself is copied through.
func (e *Extractor) Extract(ctx context.Context, videoPath, videoMime string, scope *artifacts.Scope) (*Output, error) {
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outPath := scope.Path(stem + "." + e.opts.Format)

	var convErr error
	if e.tc == nil {
		convErr = errors.New("no transcoder configured")
	} else {
		_, convErr = e.tc.ExtractAudioFromVideo(ctx, videoPath, outPath, e.opts)
	}
	if convErr == nil {
		if err := nonEmpty(outPath); err == nil {
			return &Output{Path: outPath, MimeType: audioMime(e.opts.Format)}, nil
		} else {
			convErr = err
		}
	}
	if ctx.Err() != nil {
		return nil, extraction.WithDeadline(ctx, fmt.Errorf("audio extraction interrupted: %w", ctx.Err()))
	}

	warning := fmt.Sprintf("%s: audio conversion failed, passing original media through: %v", extraction.KindConversionDegraded, convErr)
	e.log.Warn("audio conversion degraded", "video", videoPath, "error", convErr)

	passPath, err := scope.Copy(videoPath, stem+"_passthrough"+filepath.Ext(videoPath))
	if err != nil {
		return nil, fmt.Errorf("pass-through copy failed: %w", err)
	}
	if err := nonEmpty(passPath); err != nil {
		return nil, fmt.Errorf("pass-through payload unusable: %w", err)
	}
	return &Output{Path: passPath, MimeType: videoMime, Degraded: true, Warning: warning}, nil
}

func nonEmpty(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", filepath.Base(p))
	}
	return nil
}

func audioMime(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
