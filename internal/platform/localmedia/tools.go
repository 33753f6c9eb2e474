package localmedia

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Tools wraps the system binaries the extraction pipeline shells out to.
//
// Binaries:
// - ffmpeg for video -> audio
// - pdftotext / pdfinfo (poppler-utils) as the out-of-process PDF text path
type Tools interface {
	AssertReady(ctx context.Context) error
	WorkRoot() string

	ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error)

	CountPDFPages(ctx context.Context, pdfPath string) (int, error)
	// PDFToText returns one entry per page, in page order.
	PDFToText(ctx context.Context, pdfPath string) ([]string, error)
}

// ErrBinaryMissing is returned when a required binary is not on PATH.
var ErrBinaryMissing = errors.New("required binary missing")

type AudioExtractOptions struct {
	// Format is "mp3" (default), "wav" or "flac".
	Format       string
	SampleRateHz int
	Channels     int
}

type Config struct {
	FFmpegPath    string
	PDFToTextPath string
	PDFInfoPath   string
	WorkRoot      string

	DefaultTimeout time.Duration
	// MaxConcurrent bounds simultaneous ffmpeg processes.
	MaxConcurrent int64
}

func ConfigFromEnv() Config {
	return Config{
		FFmpegPath:     envutil.String("FFMPEG_PATH", "ffmpeg"),
		PDFToTextPath:  envutil.String("PDFTOTEXT_PATH", "pdftotext"),
		PDFInfoPath:    envutil.String("PDFINFO_PATH", "pdfinfo"),
		WorkRoot:       envutil.String("MEDIA_WORK_ROOT", filepath.Join(os.TempDir(), "assessgen-media")),
		DefaultTimeout: envutil.Duration("MEDIA_TOOL_TIMEOUT", 4*time.Minute),
		MaxConcurrent:  envutil.Int64("FFMPEG_MAX_CONCURRENCY", 4),
	}
}

type tools struct {
	log *logger.Logger

	ffmpegPath    string
	pdftotextPath string
	pdfinfoPath   string

	workRoot       string
	defaultTimeout time.Duration
	ffmpegSlots    *semaphore.Weighted
}

func New(log *logger.Logger, cfg Config) Tools {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.PDFToTextPath == "" {
		cfg.PDFToTextPath = "pdftotext"
	}
	if cfg.PDFInfoPath == "" {
		cfg.PDFInfoPath = "pdfinfo"
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = filepath.Join(os.TempDir(), "assessgen-media")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 4 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     cfg.FFmpegPath,
		pdftotextPath:  cfg.PDFToTextPath,
		pdfinfoPath:    cfg.PDFInfoPath,
		workRoot:       cfg.WorkRoot,
		defaultTimeout: cfg.DefaultTimeout,
		ffmpegSlots:    semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

func (m *tools) WorkRoot() string { return m.workRoot }

func (m *tools) AssertReady(ctx context.Context) error {
	if err := m.assertBinary(m.ffmpegPath); err != nil {
		return err
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *tools) assertBinary(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBinaryMissing, name, err)
	}
	return nil
}

func (m *tools) ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error) {
	ctx = ctxutil.Default(ctx)
	if err := m.assertBinary(m.ffmpegPath); err != nil {
		return "", err
	}
	if videoPath == "" {
		return "", fmt.Errorf("videoPath required")
	}
	if outPath == "" {
		return "", fmt.Errorf("outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	args, err := ffmpegAudioArgs(videoPath, outPath, opts)
	if err != nil {
		return "", err
	}

	if err := m.ffmpegSlots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer m.ffmpegSlots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg extract audio failed: %w; out=%s", err, tail(out, 800))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("audio output empty at %s", outPath)
	}
	return outPath, nil
}

func ffmpegAudioArgs(in, out string, opts AudioExtractOptions) ([]string, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "mp3"
	}
	args := []string{"-y", "-i", in, "-vn", "-map", "a"}
	switch format {
	case "mp3":
		args = append(args, "-q:a", "0")
		if opts.Channels > 0 {
			args = append(args, "-ac", strconv.Itoa(opts.Channels))
		}
		if opts.SampleRateHz > 0 {
			args = append(args, "-ar", strconv.Itoa(opts.SampleRateHz))
		}
		return append(args, "-f", "mp3", out), nil
	case "wav", "flac":
		sr := opts.SampleRateHz
		if sr <= 0 {
			sr = 16000
		}
		ch := opts.Channels
		if ch <= 0 {
			ch = 1
		}
		args = append(args, "-ac", strconv.Itoa(ch), "-ar", strconv.Itoa(sr))
		if format == "wav" {
			args = append(args, "-acodec", "pcm_s16le")
		}
		return append(args, "-f", format, out), nil
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", format)
	}
}

func (m *tools) CountPDFPages(ctx context.Context, pdfPath string) (int, error) {
	ctx = ctxutil.Default(ctx)
	if pdfPath == "" {
		return 0, fmt.Errorf("pdfPath required")
	}
	if err := m.assertBinary(m.pdfinfoPath); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, m.pdfinfoPath, pdfPath).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w; out=%s", err, tail(out, 400))
	}
	return parsePDFInfoPages(string(out))
}

func parsePDFInfoPages(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || n <= 0 {
			continue
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo output missing Pages field")
}

func (m *tools) PDFToText(ctx context.Context, pdfPath string) ([]string, error) {
	ctx = ctxutil.Default(ctx)
	if pdfPath == "" {
		return nil, fmt.Errorf("pdfPath required")
	}
	if err := m.assertBinary(m.pdftotextPath); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	outPath := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, m.pdftotextPath, "-enc", "UTF-8", "-q", pdfPath, outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w; out=%s", err, tail(out, 400))
	}
	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read pdftotext output: %w", err)
	}
	return SplitPages(string(raw)), nil
}

// SplitPages splits pdftotext output on form feeds. The trailing form feed
// pdftotext writes after the last page does not produce an extra page.
func SplitPages(raw string) []string {
	raw = strings.TrimSuffix(raw, "\f")
	if raw == "" {
		return nil
	}
	pages := strings.Split(raw, "\f")
	for i := range pages {
		pages[i] = strings.TrimSpace(pages[i])
	}
	return pages
}

func tail(b []byte, n int) string {
	s := string(b)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
