package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/artifacts"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// DownloadedAudio is an audio artifact registered with the caller's scope.
type DownloadedAudio struct {
	Path     string
	MimeType string
	Title    string
	Bytes    int64
}

// AudioDownloader fetches the audio track of a YouTube video.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoID string, scope *artifacts.Scope, maxBytes int64) (*DownloadedAudio, error)
}

type youTubeDownloader struct {
	log    *logger.Logger
	client *youtube.Client
}

func NewYouTubeDownloader(log *logger.Logger, httpClient *http.Client) AudioDownloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &youTubeDownloader{
		log:    log.With("service", "YouTubeDownloader"),
		client: &youtube.Client{HTTPClient: httpClient},
	}
}

func (y *youTubeDownloader) DownloadAudio(ctx context.Context, videoID string, scope *artifacts.Scope, maxBytes int64) (*DownloadedAudio, error) {
	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, extraction.FetchFailure("resolve youtube video "+videoID, err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return nil, extraction.FetchFailure("no audio-only stream for video "+videoID, nil)
	}
	if format.ContentLength > 0 && maxBytes > 0 && format.ContentLength > maxBytes {
		return nil, extraction.InvalidInput(extraction.ReasonTooLarge, "audio stream of %d bytes exceeds limit of %d bytes", format.ContentLength, maxBytes)
	}

	stream, _, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, extraction.FetchFailure("open youtube audio stream", err)
	}
	defer stream.Close()

	mime := extraction.NormalizeMime(format.MimeType)
	name := SanitizeTitle(video.Title) + audioExt(mime)

	var r io.Reader = stream
	if maxBytes > 0 {
		r = io.LimitReader(stream, maxBytes+1)
	}
	path, n, err := scope.WriteFrom(name, r)
	if err != nil {
		return nil, extraction.FetchFailure("download youtube audio", err)
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, extraction.InvalidInput(extraction.ReasonTooLarge, "audio stream exceeds limit of %d bytes", maxBytes)
	}
	if n == 0 {
		return nil, extraction.FetchFailure("youtube audio stream was empty", nil)
	}

	y.log.Info("youtube audio downloaded", "video_id", videoID, "bytes", n, "format", formatSummary(format))
	return &DownloadedAudio{Path: path, MimeType: mime, Title: video.Title, Bytes: n}, nil
}

// bestAudioFormat picks the highest-bitrate audio-only format.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(strings.ToLower(f.MimeType), "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func audioExt(mime string) string {
	switch {
	case strings.Contains(mime, "webm"):
		return ".webm"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "m4a"):
		return ".m4a"
	case strings.Contains(mime, "mpeg"):
		return ".mp3"
	default:
		return ".audio"
	}
}

var unsafeTitleChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeTitle keeps only [A-Za-z0-9_], replacing everything else with "_".
func SanitizeTitle(title string) string {
	out := unsafeTitleChars.ReplaceAllString(strings.TrimSpace(title), "_")
	if out == "" {
		return "youtube_audio"
	}
	if len(out) > 60 {
		out = out[:60]
	}
	return out
}

func formatSummary(f *youtube.Format) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("itag=%d mime=%s bitrate=%d", f.ItagNo, f.MimeType, f.Bitrate)
}
