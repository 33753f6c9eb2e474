package orchestrator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/blake2b"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/artifacts"
	"github.com/yungbote/assessgen-backend/internal/extraction/audio"
	"github.com/yungbote/assessgen-backend/internal/extraction/document"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/extraction/transcribe"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/localmedia"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// DocumentExtractor is implemented by *document.Provider.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, in document.Input, strategy document.Strategy) (*extraction.Result, error)
}

// ProviderClients is built once at startup and handed to New. Nil optional
// members disable the path that needs them.
type ProviderClients struct {
	Fetcher     source.Fetcher
	YouTube     source.AudioDownloader
	Transcripts TranscriptLookup
	Audio       *audio.Extractor
	Transcriber transcribe.Transcriber
	Documents   DocumentExtractor
	// Results caches whole extraction results. Optional.
	Results JSONCache
	Metrics *observability.Metrics
}

type Config struct {
	WorkRoot string
	FS       artifacts.FS
	// DirectURLSubmit hands remote media URLs straight to the transcriber
	// when it accepts URLs, skipping the download.
	DirectURLSubmit bool
	ResultTTL       time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		WorkRoot:        envutil.String("MEDIA_WORK_ROOT", filepath.Join(os.TempDir(), "assessgen")),
		DirectURLSubmit: envutil.Bool("MEDIA_URL_DIRECT_SUBMIT", false),
		ResultTTL:       envutil.Duration("EXTRACTION_CACHE_TTL", 6*time.Hour),
	}
}

type Orchestrator struct {
	log     *logger.Logger
	cfg     Config
	clients ProviderClients
}

func New(log *logger.Logger, cfg Config, clients ProviderClients) (*Orchestrator, error) {
	if log == nil {
		log = logger.Nop()
	}
	if clients.Fetcher == nil {
		return nil, fmt.Errorf("orchestrator: Fetcher is required")
	}
	if strings.TrimSpace(cfg.WorkRoot) == "" {
		cfg.WorkRoot = filepath.Join(os.TempDir(), "assessgen")
	}
	if cfg.FS == nil {
		cfg.FS = artifacts.OS()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 6 * time.Hour
	}
	return &Orchestrator{log: log.With("service", "ExtractionOrchestrator"), cfg: cfg, clients: clients}, nil
}

// Extract normalizes one input into text. Every temp artifact created along
// the way is removed before it returns, whatever the outcome.
func (o *Orchestrator) Extract(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error) {
	ctx = ctxutil.Default(ctx)
	start := time.Now()
	kind := d.Kind()

	if err := source.Validate(d, opts.Limits); err != nil {
		o.clients.Metrics.ObserveExtraction(string(kind), "", outcomeOf(err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.TimeoutFor(kind))
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "extraction.Extract",
		attribute.String("extraction.kind", string(kind)),
		attribute.Bool("extraction.force_ocr", opts.ForceOCR),
	)
	defer span.End()

	key := resultKey(d, opts)
	if res := o.cachedResult(ctx, key); res != nil {
		o.clients.Metrics.ObserveExtraction(string(kind), string(res.ProviderUsed), "cached")
		return res, nil
	}

	res, err := o.run(ctx, d, opts)
	if err != nil {
		err = extraction.WithDeadline(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(extraction.KindOf(err)))
		o.clients.Metrics.ObserveExtraction(string(kind), "", outcomeOf(err))
		o.log.Warn("extraction failed", append(ctxutil.LogFields(ctx),
			"kind", kind,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)...)
		return nil, err
	}

	span.SetAttributes(attribute.String("extraction.provider", string(res.ProviderUsed)))
	o.clients.Metrics.ObserveExtraction(string(kind), string(res.ProviderUsed), "ok")
	o.log.Info("extraction complete", append(ctxutil.LogFields(ctx),
		"kind", kind,
		"provider", res.ProviderUsed,
		"chars", res.TextLength(),
		"segments", len(res.Breakdown),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	o.storeResult(ctx, key, res)
	return res, nil
}

// run owns the artifact scope so cleanup happens before Extract reports.
func (o *Orchestrator) run(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error) {
	scope, err := artifacts.New(o.log, o.cfg.WorkRoot,
		artifacts.WithFS(o.cfg.FS),
		artifacts.WithFailureHook(func(string, error) { o.clients.Metrics.IncCleanupFailure() }),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = scope.Cleanup() }()

	switch kind := d.Kind(); {
	case kind == extraction.SourceYouTubeURL:
		return o.extractYouTube(ctx, d, opts, scope)
	case kind.IsMedia():
		return o.extractMedia(ctx, d, opts, scope)
	case kind.IsDocument():
		return o.extractDocument(ctx, d, opts, scope)
	default:
		return nil, extraction.InvalidInput(extraction.ReasonUnsupportedType, "unknown source kind %q", kind)
	}
}

func (o *Orchestrator) extractYouTube(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options, scope *artifacts.Scope) (*extraction.Result, error) {
	id, err := source.VideoID(d.URL())
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"videoId": id, "sourceUrl": d.URL()}

	if o.clients.Transcripts != nil {
		t0 := time.Now()
		text, err := o.clients.Transcripts.Lookup(ctx, id)
		o.clients.Metrics.ObserveStage("transcript_lookup", time.Since(t0))
		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" {
				o.clients.Metrics.ObserveCache("transcript_lookup", true)
				return extraction.NewResult(extraction.ProviderTranscriptLookup, extraction.SingleSegment(text), meta), nil
			}
			err = ErrTranscriptNotFound
		}
		o.clients.Metrics.ObserveCache("transcript_lookup", false)
		if ctx.Err() != nil {
			return nil, extraction.WithDeadline(ctx, err)
		}
		o.log.Warn("transcript lookup failed, falling back to transcription", "video_id", id, "error", err)
	}

	if o.clients.YouTube == nil {
		return nil, extraction.FetchFailure("no transcript available and no youtube downloader configured", nil)
	}
	t0 := time.Now()
	dl, err := o.clients.YouTube.DownloadAudio(ctx, id, scope, opts.Limits.For(d.Kind()))
	o.clients.Metrics.ObserveStage("fetch", time.Since(t0))
	if err != nil {
		return nil, err
	}
	if dl.Title != "" {
		meta["title"] = dl.Title
	}

	tr, warnings, err := o.transcribeFile(ctx, dl.Path, dl.MimeType, scope)
	if err != nil {
		return nil, err
	}
	res := extraction.NewResult(extraction.ProviderTranscriptionFallback, extraction.SingleSegment(tr.Text), mergeMeta(meta, tr.Metadata()))
	for _, w := range warnings {
		res.AddWarning(w)
	}
	return res, nil
}

func (o *Orchestrator) extractMedia(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options, scope *artifacts.Scope) (*extraction.Result, error) {
	if o.clients.Transcriber == nil {
		return nil, extraction.TranscriptionFailure(extraction.StageSubmit, "none", errors.New("no transcription backend configured"))
	}

	if d.Kind() == extraction.SourceRemoteMediaURL && o.cfg.DirectURLSubmit && !prefersLocalInput(o.clients.Transcriber) {
		tr, err := o.transcribe(ctx, transcribe.Audio{URL: d.URL()}, true)
		if err != nil {
			return nil, err
		}
		meta := mergeMeta(map[string]any{"sourceUrl": d.URL(), "directSubmit": true}, tr.Metadata())
		return extraction.NewResult(extraction.ProviderTranscription, extraction.SingleSegment(tr.Text), meta), nil
	}

	t0 := time.Now()
	p, err := o.clients.Fetcher.Fetch(ctx, d, opts.Limits)
	o.clients.Metrics.ObserveStage("fetch", time.Since(t0))
	if err != nil {
		return nil, err
	}
	path, err := scope.WriteFile(artifactName(p, "media"), p.Bytes)
	if err != nil {
		return nil, err
	}

	tr, warnings, err := o.transcribeFile(ctx, path, p.MimeType, scope)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"mimeType": p.MimeType, "bytes": len(p.Bytes)}
	if p.Name != "" {
		meta["fileName"] = p.Name
	}
	if p.SourceURL != "" {
		meta["sourceUrl"] = p.SourceURL
	}
	res := extraction.NewResult(extraction.ProviderTranscription, extraction.SingleSegment(tr.Text), mergeMeta(meta, tr.Metadata()))
	for _, w := range warnings {
		res.AddWarning(w)
	}
	return res, nil
}

// transcribeFile converts path when the backend or the container needs it,
// then transcribes a scope-owned copy so the backend may delete its input.
func (o *Orchestrator) transcribeFile(ctx context.Context, path, mime string, scope *artifacts.Scope) (*transcribe.Transcript, []string, error) {
	var warnings []string
	spec := preferredInput(o.clients.Transcriber)

	needsConversion := source.IsVideo(mime) && !spec.RawVideo
	if spec.Format != "" && !spec.RawVideo {
		needsConversion = true
	}
	if needsConversion && o.clients.Audio != nil {
		ex := o.clients.Audio
		if spec.Format != "" {
			ex = ex.WithFormat(localmedia.AudioExtractOptions{
				Format:       spec.Format,
				SampleRateHz: spec.SampleRateHz,
				Channels:     spec.Channels,
			})
		}
		t0 := time.Now()
		out, err := ex.Extract(ctx, path, mime, scope)
		o.clients.Metrics.ObserveStage("audio_extract", time.Since(t0))
		if err != nil {
			return nil, nil, err
		}
		if out.Degraded {
			warnings = append(warnings, out.Warning)
		}
		path, mime = out.Path, out.MimeType
	}

	cp, err := scope.Copy(path, "transcribe_"+filepath.Base(path))
	if err != nil {
		return nil, nil, err
	}
	tr, err := o.transcribe(ctx, transcribe.Audio{Path: cp, MimeType: mime}, false)
	if err != nil {
		return nil, nil, err
	}
	return tr, warnings, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, a transcribe.Audio, sourceURL bool) (*transcribe.Transcript, error) {
	topts := transcribe.DefaultOptions()
	topts.SourceURL = sourceURL
	if dl, ok := ctx.Deadline(); ok {
		topts.Deadline = dl
	}
	ctx, span := observability.StartSpan(ctx, "extraction.Transcribe",
		attribute.String("transcription.provider", o.clients.Transcriber.Name()),
	)
	defer span.End()

	t0 := time.Now()
	tr, err := o.clients.Transcriber.Transcribe(ctx, a, topts)
	o.clients.Metrics.ObserveStage("transcribe", time.Since(t0))
	if err != nil {
		span.RecordError(err)
		if _, ok := extraction.AsError(err); ok {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, extraction.WithDeadline(ctx, err)
		}
		return nil, extraction.TranscriptionFailure(extraction.StageRemote, o.clients.Transcriber.Name(), err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		return nil, extraction.RemoteTranscriptionFailure(o.clients.Transcriber.Name(), "empty transcript")
	}
	tr.Text = strings.TrimSpace(tr.Text)
	return tr, nil
}

func (o *Orchestrator) extractDocument(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options, scope *artifacts.Scope) (*extraction.Result, error) {
	if o.clients.Documents == nil {
		return nil, extraction.UnsupportedDocumentType(d.MimeType())
	}
	t0 := time.Now()
	p, err := o.clients.Fetcher.Fetch(ctx, d, opts.Limits)
	o.clients.Metrics.ObserveStage("fetch", time.Since(t0))
	if err != nil {
		return nil, err
	}
	path, err := scope.WriteFile(artifactName(p, "document"), p.Bytes)
	if err != nil {
		return nil, err
	}

	strategy := document.StrategyFor(opts.ForceOCR)
	ctx, span := observability.StartSpan(ctx, "extraction.ExtractDocument",
		attribute.String("document.mime", p.MimeType),
		attribute.String("document.strategy", strategy.String()),
	)
	defer span.End()

	t0 = time.Now()
	res, err := o.clients.Documents.ExtractText(ctx, document.Input{Data: p.Bytes, MimeType: p.MimeType, Path: path}, strategy)
	o.clients.Metrics.ObserveStage("document_text", time.Since(t0))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if n := res.TextLength(); n < extraction.MinDocumentTextLength {
		return nil, extraction.InsufficientText(n)
	}
	if p.Name != "" {
		res.SetMeta("fileName", p.Name)
	}
	if p.SourceURL != "" {
		res.SetMeta("sourceUrl", p.SourceURL)
	}
	return res, nil
}

func (o *Orchestrator) cachedResult(ctx context.Context, key string) *extraction.Result {
	if o.clients.Results == nil || key == "" {
		return nil
	}
	var res extraction.Result
	ok, err := o.clients.Results.GetJSON(ctx, key, &res)
	if err != nil {
		o.log.Warn("result cache read failed", "error", err)
	}
	o.clients.Metrics.ObserveCache("extraction_result", ok && err == nil)
	if !ok || err != nil || !res.Consistent() {
		return nil
	}
	return &res
}

func (o *Orchestrator) storeResult(ctx context.Context, key string, res *extraction.Result) {
	if o.clients.Results == nil || key == "" {
		return
	}
	if err := o.clients.Results.SetJSON(ctx, key, res, o.cfg.ResultTTL); err != nil {
		o.log.Warn("result cache write failed", "error", err)
	}
}

// resultKey digests the payload (uploads) or the URL (remote kinds) together
// with the kind and the document strategy.
func resultKey(d extraction.InputDescriptor, opts extraction.Options) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		return ""
	}
	h.Write([]byte(d.Kind()))
	h.Write([]byte{0})
	h.Write([]byte(document.StrategyFor(opts.ForceOCR).String()))
	h.Write([]byte{0})
	if d.Kind().IsRemote() {
		h.Write([]byte(d.URL()))
	} else {
		h.Write([]byte(d.MimeType()))
		h.Write([]byte{0})
		h.Write(d.Bytes())
	}
	return "extraction:" + hex.EncodeToString(h.Sum(nil))
}

func preferredInput(t transcribe.Transcriber) transcribe.InputSpec {
	if p, ok := t.(transcribe.InputPreferrer); ok {
		return p.PreferredInput()
	}
	return transcribe.InputSpec{}
}

func prefersLocalInput(t transcribe.Transcriber) bool {
	_, ok := t.(transcribe.InputPreferrer)
	return ok
}

func artifactName(p *source.Payload, fallback string) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = fallback
	}
	if filepath.Ext(name) == "" {
		if ext := source.ExtForMime(p.MimeType); ext != "" {
			name += ext
		}
	}
	return name
}

func mergeMeta(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	return out
}

func outcomeOf(err error) string {
	if k := extraction.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
