package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const (
	ProviderGCPSpeech = "gcp-speech"
	ProviderGCPVideo  = "gcp-video"
)

// InputSpec describes the payload a backend wants from the media pipeline.
type InputSpec struct {
	// RawVideo skips audio extraction entirely.
	RawVideo     bool
	Format       string
	SampleRateHz int
	Channels     int
}

// InputPreferrer is implemented by backends that cannot take compressed audio.
type InputPreferrer interface {
	PreferredInput() InputSpec
}

// SpeechTranscriber sends inline LINEAR16 audio to Cloud Speech.
type SpeechTranscriber struct {
	log    *logger.Logger
	speech gcp.Speech
}

func NewSpeechTranscriber(log *logger.Logger, s gcp.Speech) *SpeechTranscriber {
	return &SpeechTranscriber{log: log.With("service", "SpeechTranscriber"), speech: s}
}

func (t *SpeechTranscriber) Name() string { return ProviderGCPSpeech }

func (t *SpeechTranscriber) PreferredInput() InputSpec {
	return InputSpec{Format: "wav", SampleRateHz: 16000, Channels: 1}
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, audio Audio, opts Options) (*Transcript, error) {
	ctx = ctxutil.Default(ctx)
	defer removeSource(t.log, audio, opts)

	data, err := readAudio(audio)
	if err != nil {
		return nil, extraction.TranscriptionFailure(extraction.StageUpload, ProviderGCPSpeech, err)
	}
	res, err := t.speech.RecognizeBytes(ctx, data, audio.MimeType, gcp.SpeechConfig{
		EnableSpeakerDiarization: opts.SpeakerLabels,
		MinSpeakerCount:          1,
		MaxSpeakerCount:          6,
		SampleRateHertz:          16000,
		AudioChannelCount:        1,
	})
	if err != nil {
		return nil, extraction.WithDeadline(ctx, extraction.TranscriptionFailure(extraction.StageRemote, ProviderGCPSpeech, err))
	}
	return fromSpeechResult(ProviderGCPSpeech, res), nil
}

// VideoTranscriber runs Video Intelligence speech transcription on the
// original video bytes.
type VideoTranscriber struct {
	log   *logger.Logger
	video gcp.Video
}

func NewVideoTranscriber(log *logger.Logger, v gcp.Video) *VideoTranscriber {
	return &VideoTranscriber{log: log.With("service", "VideoTranscriber"), video: v}
}

func (t *VideoTranscriber) Name() string { return ProviderGCPVideo }

func (t *VideoTranscriber) PreferredInput() InputSpec { return InputSpec{RawVideo: true} }

func (t *VideoTranscriber) Transcribe(ctx context.Context, audio Audio, opts Options) (*Transcript, error) {
	ctx = ctxutil.Default(ctx)
	defer removeSource(t.log, audio, opts)

	data, err := readAudio(audio)
	if err != nil {
		return nil, extraction.TranscriptionFailure(extraction.StageUpload, ProviderGCPVideo, err)
	}
	res, err := t.video.TranscribeVideoBytes(ctx, data, gcp.VideoConfig{EnableSpeakerDiarization: opts.SpeakerLabels})
	if err != nil {
		return nil, extraction.WithDeadline(ctx, extraction.TranscriptionFailure(extraction.StageRemote, ProviderGCPVideo, err))
	}
	return fromSpeechResult(ProviderGCPVideo, res), nil
}

func readAudio(audio Audio) ([]byte, error) {
	if strings.TrimSpace(audio.Path) == "" {
		return nil, errors.New("no audio path")
	}
	data, err := os.ReadFile(audio.Path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("audio payload is empty")
	}
	return data, nil
}

func fromSpeechResult(provider string, res *gcp.SpeechResult) *Transcript {
	out := &Transcript{Provider: provider}
	if res == nil {
		return out
	}
	out.Text = res.Text
	if res.Confidence > 0 {
		c := res.Confidence
		out.Confidence = &c
	}
	for _, w := range res.Words {
		word := Word{
			Text:       w.Text,
			StartMs:    w.Start.Milliseconds(),
			EndMs:      w.End.Milliseconds(),
			Confidence: w.Confidence,
		}
		if w.SpeakerTag > 0 {
			word.Speaker = speakerLabel(w.SpeakerTag)
		}
		out.Words = append(out.Words, word)
	}
	out.Utterances = groupUtterances(out.Words)
	out.Speakers = speakersOf(out.Utterances, out.Words)
	return out
}

// speakerLabel maps numeric diarization tags to letters the way AssemblyAI
// labels speakers, so downstream consumers see one format.
func speakerLabel(tag int) string {
	if tag >= 1 && tag <= 26 {
		return string(rune('A' + tag - 1))
	}
	return "S" + strconv.Itoa(tag)
}

func groupUtterances(words []Word) []Utterance {
	var out []Utterance
	var cur *Utterance
	var confSum float64
	confN := 0
	flush := func() {
		if cur == nil {
			return
		}
		if confN > 0 {
			cur.Confidence = confSum / float64(confN)
		}
		out = append(out, *cur)
		cur = nil
		confSum = 0
		confN = 0
	}
	for _, w := range words {
		if w.Speaker == "" {
			continue
		}
		if cur != nil && cur.Speaker != w.Speaker {
			flush()
		}
		if cur == nil {
			cur = &Utterance{Speaker: w.Speaker, StartMs: w.StartMs}
		}
		if cur.Text != "" {
			cur.Text += " "
		}
		cur.Text += w.Text
		cur.EndMs = w.EndMs
		if w.Confidence > 0 {
			confSum += w.Confidence
			confN++
		}
	}
	flush()
	return out
}
