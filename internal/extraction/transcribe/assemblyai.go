package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/pkg/clock"
	"github.com/yungbote/assessgen-backend/internal/pkg/httpx"
	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const ProviderAssemblyAI = "assemblyai"

const (
	DefaultAssemblyBaseURL    = "https://api.assemblyai.com"
	DefaultProcessingInterval = 5 * time.Second
	DefaultQueuedInterval     = 10 * time.Second
	maxPollErrors             = 3
)

// JobState is the client-side view of a remote transcription job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

func jobStateOf(status string) JobState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return JobCompleted
	case "error", "failed":
		return JobFailed
	case "processing":
		return JobProcessing
	default:
		return JobQueued
	}
}

type AssemblyConfig struct {
	APIKey             string
	BaseURL            string
	ProcessingInterval time.Duration
	QueuedInterval     time.Duration
}

func AssemblyConfigFromEnv() AssemblyConfig {
	return AssemblyConfig{
		APIKey:             envutil.String("ASSEMBLY_API_KEY", ""),
		BaseURL:            envutil.String("ASSEMBLY_BASE_URL", DefaultAssemblyBaseURL),
		ProcessingInterval: envutil.Duration("ASSEMBLY_POLL_PROCESSING", DefaultProcessingInterval),
		QueuedInterval:     envutil.Duration("ASSEMBLY_POLL_QUEUED", DefaultQueuedInterval),
	}
}

type AssemblyOption func(*Assembly)

func WithHTTPClient(c *http.Client) AssemblyOption {
	return func(a *Assembly) {
		if c != nil {
			a.hc = c
		}
	}
}

func WithClock(c clock.Clock) AssemblyOption {
	return func(a *Assembly) {
		if c != nil {
			a.clock = c
		}
	}
}

// Assembly drives the upload, submit, poll cycle of the AssemblyAI v2 API.
type Assembly struct {
	log   *logger.Logger
	cfg   AssemblyConfig
	hc    *http.Client
	clock clock.Clock
}

func NewAssembly(log *logger.Logger, cfg AssemblyConfig, opts ...AssemblyOption) (*Assembly, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ASSEMBLY_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultAssemblyBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ProcessingInterval <= 0 {
		cfg.ProcessingInterval = DefaultProcessingInterval
	}
	if cfg.QueuedInterval <= 0 {
		cfg.QueuedInterval = DefaultQueuedInterval
	}
	a := &Assembly{
		log:   log.With("service", "AssemblyTranscriber"),
		cfg:   cfg,
		hc:    &http.Client{Timeout: 2 * time.Minute},
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Assembly) Name() string { return ProviderAssemblyAI }

func (a *Assembly) Transcribe(ctx context.Context, audio Audio, opts Options) (*Transcript, error) {
	ctx = ctxutil.Default(ctx)
	defer removeSource(a.log, audio, opts)

	audioURL := ""
	if opts.SourceURL && strings.TrimSpace(audio.URL) != "" {
		audioURL = audio.URL
	} else {
		if strings.TrimSpace(audio.Path) == "" {
			return nil, extraction.TranscriptionFailure(extraction.StageUpload, ProviderAssemblyAI, errors.New("no audio path"))
		}
		u, err := a.upload(ctx, audio.Path)
		if err != nil {
			return nil, extraction.WithDeadline(ctx, extraction.TranscriptionFailure(extraction.StageUpload, ProviderAssemblyAI, err))
		}
		audioURL = u
	}

	id, err := a.submit(ctx, audioURL, opts)
	if err != nil {
		return nil, extraction.WithDeadline(ctx, extraction.TranscriptionFailure(extraction.StageSubmit, ProviderAssemblyAI, err))
	}
	a.log.Info("transcription job submitted", "transcript_id", id)

	return a.poll(ctx, id, opts)
}

func (a *Assembly) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v2/upload", f)
	if err != nil {
		return "", err
	}
	if info, statErr := f.Stat(); statErr == nil {
		req.ContentLength = info.Size()
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.UploadURL) == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	Punctuate     bool   `json:"punctuate"`
	FormatText    bool   `json:"format_text"`
	DualChannel   bool   `json:"dual_channel"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

func (a *Assembly) submit(ctx context.Context, audioURL string, opts Options) (string, error) {
	body, err := json.Marshal(submitRequest{
		AudioURL:      audioURL,
		Punctuate:     true,
		FormatText:    true,
		DualChannel:   false,
		SpeakerLabels: opts.SpeakerLabels,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out transcriptResponse
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("submit response missing id")
	}
	return out.ID, nil
}

type transcriptResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Text       string      `json:"text"`
	Confidence *float64    `json:"confidence"`
	Words      []Word      `json:"words"`
	Utterances []Utterance `json:"utterances"`
	Error      string      `json:"error"`
}

func (a *Assembly) poll(ctx context.Context, id string, opts Options) (*Transcript, error) {
	pollErrors := 0
	for {
		if !opts.Deadline.IsZero() && !a.clock.Now().Before(opts.Deadline) {
			return nil, extraction.Timeout("transcription did not complete before the deadline", nil)
		}

		st, err := a.status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, extraction.WithDeadline(ctx, extraction.Timeout("transcription polling interrupted", ctx.Err()))
			}
			pollErrors++
			if !httpx.IsRetryableError(err) || pollErrors >= maxPollErrors {
				return nil, extraction.TranscriptionFailure(extraction.StageRemote, ProviderAssemblyAI, err)
			}
			a.log.Warn("transcription status check failed", "transcript_id", id, "attempt", pollErrors, "error", err)
			if err := a.wait(ctx, a.cfg.QueuedInterval); err != nil {
				return nil, err
			}
			continue
		}
		pollErrors = 0

		var wait time.Duration
		switch jobStateOf(st.Status) {
		case JobCompleted:
			return st.transcript(), nil
		case JobFailed:
			return nil, extraction.RemoteTranscriptionFailure(ProviderAssemblyAI, st.Error)
		case JobProcessing:
			wait = a.cfg.ProcessingInterval
		default:
			wait = a.cfg.QueuedInterval
		}
		a.log.Debug("transcription pending", "transcript_id", id, "status", st.Status, "wait", wait.String())
		if err := a.wait(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (a *Assembly) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return extraction.WithDeadline(ctx, extraction.Timeout("transcription polling interrupted", ctx.Err()))
	case <-a.clock.After(d):
		return nil
	}
}

func (a *Assembly) status(ctx context.Context, id string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, err
	}
	var out transcriptResponse
	if err := a.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Assembly) do(req *http.Request, out any) error {
	req.Header.Set("authorization", a.cfg.APIKey)
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (r *transcriptResponse) transcript() *Transcript {
	return &Transcript{
		ID:         r.ID,
		Provider:   ProviderAssemblyAI,
		Text:       strings.TrimSpace(r.Text),
		Confidence: r.Confidence,
		Words:      r.Words,
		Utterances: r.Utterances,
		Speakers:   speakersOf(r.Utterances, r.Words),
	}
}
