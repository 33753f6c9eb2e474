package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/assessgen-backend/internal/pkg/httpx"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// TranscriptLookup returns an existing transcript for a YouTube video id.
type TranscriptLookup interface {
	Lookup(ctx context.Context, videoID string) (string, error)
}

// JSONCache is the slice of redisx.Cache used for lookups and results.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

var ErrTranscriptNotFound = errors.New("transcript not found")

const (
	defaultLookupTimeout = 15 * time.Second
	defaultLookupTTL     = 24 * time.Hour
	maxLookupBody        = 8 << 20
)

type TranscriptServiceConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

func TranscriptServiceConfigFromEnv() TranscriptServiceConfig {
	return TranscriptServiceConfig{
		BaseURL:  envutil.String("TRANSCRIPT_SERVICE_URL", ""),
		Timeout:  envutil.Duration("TRANSCRIPT_SERVICE_TIMEOUT", defaultLookupTimeout),
		CacheTTL: envutil.Duration("TRANSCRIPT_CACHE_TTL", defaultLookupTTL),
	}
}

// TranscriptService calls the external transcript service. Concurrent lookups
// of the same video share one request, and hits are cached when a cache is set.
type TranscriptService struct {
	log    *logger.Logger
	cfg    TranscriptServiceConfig
	client *http.Client
	cache  JSONCache
	group  singleflight.Group
}

func NewTranscriptService(log *logger.Logger, cfg TranscriptServiceConfig, client *http.Client, cache JSONCache) (*TranscriptService, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing TRANSCRIPT_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLookupTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultLookupTTL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &TranscriptService{
		log:    log.With("service", "TranscriptLookup"),
		cfg:    cfg,
		client: client,
		cache:  cache,
	}, nil
}

type cachedTranscript struct {
	Text string `json:"text"`
}

func (s *TranscriptService) Lookup(ctx context.Context, videoID string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", fmt.Errorf("video id is required")
	}
	key := "transcript:" + videoID
	if s.cache != nil {
		var hit cachedTranscript
		if ok, err := s.cache.GetJSON(ctx, key, &hit); err != nil {
			s.log.Warn("transcript cache read failed", "video_id", videoID, "error", err)
		} else if ok && strings.TrimSpace(hit.Text) != "" {
			return hit.Text, nil
		}
	}

	ch := s.group.DoChan(videoID, func() (any, error) {
		return s.fetch(ctx, videoID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return "", res.Err
	}
	text := res.Val.(string)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, cachedTranscript{Text: text}, s.cfg.CacheTTL); err != nil {
			s.log.Warn("transcript cache write failed", "video_id", videoID, "error", err)
		}
	}
	return text, nil
}

func (s *TranscriptService) fetch(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	u := s.cfg.BaseURL + "/api/transcript/" + url.PathEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrTranscriptNotFound
	}
	if err := httpx.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("transcript service: %w", err)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	text, err := parseTranscript(raw)
	if err != nil {
		return "", err
	}
	s.log.Debug("transcript lookup hit", "video_id", videoID, "chars", len(text))
	return text, nil
}

// parseTranscript accepts {"transcript": "..."} or {"transcript": [{"text": "..."}]}.
func parseTranscript(raw []byte) (string, error) {
	var body struct {
		Transcript json.RawMessage `json:"transcript"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("malformed transcript response: %w", err)
	}
	if len(body.Transcript) == 0 || string(body.Transcript) == "null" {
		return "", ErrTranscriptNotFound
	}

	var text string
	if err := json.Unmarshal(body.Transcript, &text); err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrTranscriptNotFound
		}
		return text, nil
	}

	var segs []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body.Transcript, &segs); err != nil {
		return "", fmt.Errorf("malformed transcript field: %w", err)
	}
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrTranscriptNotFound
	}
	return strings.Join(parts, "\n"), nil
}
