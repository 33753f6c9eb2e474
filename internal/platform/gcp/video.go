package gcp

import (
	"context"
	"fmt"
	"strings"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Video transcribes speech in a video with the Video Intelligence API.
type Video interface {
	TranscribeVideoBytes(ctx context.Context, data []byte, cfg VideoConfig) (*SpeechResult, error)
	Close() error
}

type VideoConfig struct {
	LanguageCode             string
	EnableSpeakerDiarization bool
	SpeakerCount             int
}

type videoService struct {
	log        *logger.Logger
	client     *videointelligence.Client
	maxRetries int
}

func NewVideo(ctx context.Context, log *logger.Logger) (Video, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := videointelligence.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &videoService{log: log.With("service", "gcp.Video"), client: c, maxRetries: 4}, nil
}

func (s *videoService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *videoService) TranscribeVideoBytes(ctx context.Context, data []byte, cfg VideoConfig) (*SpeechResult, error) {
	ctx = ctxutil.Default(ctx)
	if len(data) == 0 {
		return &SpeechResult{}, nil
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	stc := &vipb.SpeechTranscriptionConfig{
		LanguageCode:               cfg.LanguageCode,
		EnableAutomaticPunctuation: true,
		EnableWordConfidence:       true,
	}
	if cfg.EnableSpeakerDiarization {
		stc.EnableSpeakerDiarization = true
		if cfg.SpeakerCount > 0 {
			stc.DiarizationSpeakerCount = int32(cfg.SpeakerCount)
		}
	}
	req := &vipb.AnnotateVideoRequest{
		InputContent: data,
		Features:     []vipb.Feature{vipb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &vipb.VideoContext{SpeechTranscriptionConfig: stc},
	}

	resp, err := retry(ctx, s.maxRetries, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := s.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}
	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		s.log.Warn("no annotation results")
		return &SpeechResult{}, nil
	}
	return parseVideoSpeech(resp.AnnotationResults[0].SpeechTranscriptions), nil
}

func parseVideoSpeech(st []*vipb.SpeechTranscription) *SpeechResult {
	out := &SpeechResult{}
	var full strings.Builder
	var confSum float64
	confN := 0
	for _, tr := range st {
		if tr == nil || len(tr.Alternatives) == 0 || tr.Alternatives[0] == nil {
			continue
		}
		alt := tr.Alternatives[0]
		t := strings.TrimSpace(alt.Transcript)
		if t == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(t)
		if alt.Confidence > 0 {
			confSum += float64(alt.Confidence)
			confN++
		}
		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			out.Words = append(out.Words, SpeechWord{
				Text:       w.Word,
				Start:      w.StartTime.AsDuration(),
				End:        w.EndTime.AsDuration(),
				SpeakerTag: int(w.SpeakerTag),
				Confidence: float64(w.Confidence),
			})
		}
	}
	out.Text = strings.TrimSpace(full.String())
	if confN > 0 {
		out.Confidence = confSum / float64(confN)
	}
	return out
}
