package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/assessgen-backend/internal/db"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/ctxutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/platform/objectstore"
	"github.com/yungbote/assessgen-backend/internal/repos"
	"github.com/yungbote/assessgen-backend/internal/types"
)

// Generator is an LLM text completion backend.
type Generator interface {
	Name() string
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// Extractor turns an input into text.
type Extractor interface {
	Extract(ctx context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error)
}

// StorageRef names an uploaded object to remove once its content is extracted.
type StorageRef struct {
	PublicID     string
	ResourceType string
}

type Request struct {
	Input          extraction.InputDescriptor
	Extract        extraction.Options
	Options        Options
	IdempotencyKey string
	DeleteAfter    *StorageRef
}

type Outcome struct {
	Assessment *types.Assessment
	Questions  []Question
	Result     *extraction.Result
	// Replayed is set when an earlier request with the same key already
	// produced this assessment.
	Replayed bool
}

type Service struct {
	log       *logger.Logger
	extractor Extractor
	generator Generator
	repo      repos.AssessmentRepo
	store     objectstore.Store
	metrics   *observability.Metrics
}

func NewService(log *logger.Logger, extractor Extractor, generator Generator, repo repos.AssessmentRepo, store objectstore.Store, metrics *observability.Metrics) (*Service, error) {
	if extractor == nil {
		return nil, errors.New("assessment: extractor is required")
	}
	if generator == nil {
		return nil, errors.New("assessment: generator is required")
	}
	if repo == nil {
		return nil, errors.New("assessment: repo is required")
	}
	return &Service{
		log:       log.With("service", "AssessmentService"),
		extractor: extractor,
		generator: generator,
		repo:      repo,
		store:     store,
		metrics:   metrics,
	}, nil
}

func (s *Service) Generate(ctx context.Context, req Request) (*Outcome, error) {
	opts := req.Options.Normalize()
	if err := opts.Validate(); err != nil {
		s.metrics.ObserveAssessment("invalid")
		return nil, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	log := s.log.With(ctxutil.LogFields(ctx)...).With("kind", string(req.Input.Kind()))

	if key != "" {
		if prior, err := s.repo.GetByIdempotencyKey(ctx, nil, key); err == nil {
			s.metrics.ObserveAssessment("replayed")
			log.Info("idempotent replay", "assessment_id", prior.ID.String())
			return replay(prior), nil
		} else if !errors.Is(err, repos.ErrNotFound) {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	ctx, span := observability.StartSpan(ctx, "assessment.Generate",
		attribute.String("kind", string(req.Input.Kind())),
		attribute.String("type", string(opts.Type)),
	)
	defer span.End()

	res, err := s.extract(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAssessment("extraction_failed")
		return nil, err
	}

	questions, err := s.generate(ctx, res.Text, opts)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAssessment("generation_failed")
		return nil, err
	}

	row, err := s.buildRow(req, opts, res, questions, key)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.Create(ctx, nil, row)
	if err != nil {
		if key != "" && db.IsUniqueViolation(err) {
			// A concurrent request with the same key won the insert.
			prior, gerr := s.repo.GetByIdempotencyKey(ctx, nil, key)
			if gerr == nil {
				s.metrics.ObserveAssessment("replayed")
				return replay(prior), nil
			}
		}
		s.metrics.ObserveAssessment("persist_failed")
		return nil, fmt.Errorf("save assessment: %w", err)
	}

	s.metrics.ObserveAssessment("created")
	log.Info("assessment created",
		"assessment_id", saved.ID.String(),
		"provider", string(res.ProviderUsed),
		"questions", len(questions),
		"generator", s.generator.Name(),
	)
	return &Outcome{Assessment: saved, Questions: questions, Result: res}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*types.Assessment, error) {
	a, err := s.repo.GetByID(ctx, nil, id)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

// extract runs the extractor and then drops the stored upload, if asked,
// whatever the outcome.
func (s *Service) extract(ctx context.Context, req Request) (*extraction.Result, error) {
	if req.DeleteAfter != nil && strings.TrimSpace(req.DeleteAfter.PublicID) != "" {
		defer s.deleteStored(ctx, *req.DeleteAfter)
	}
	return s.extractor.Extract(ctx, req.Input, req.Extract)
}

func (s *Service) deleteStored(ctx context.Context, ref StorageRef) {
	if s.store == nil {
		s.log.Warn("deleteAfterProcessing requested but no object store is configured", "public_id", ref.PublicID)
		return
	}
	// The request context may already be cancelled by now.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.store.Destroy(dctx, ref.PublicID, ref.ResourceType); err != nil {
		s.log.Warn("delete after processing failed", "public_id", ref.PublicID, "resource_type", ref.ResourceType, "error", err)
		return
	}
	s.log.Debug("deleted stored upload", "public_id", ref.PublicID)
}

func (s *Service) generate(ctx context.Context, text string, opts Options) ([]Question, error) {
	ctx, span := observability.StartSpan(ctx, "assessment.generate",
		attribute.String("generator", s.generator.Name()),
	)
	defer span.End()

	system, user := BuildPrompt(text, opts)
	raw, err := s.generator.GenerateText(ctx, system, user)
	if err != nil {
		if ctx.Err() != nil {
			return nil, extraction.Timeout("generation", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	questions, err := ParseQuestions(raw, opts)
	if err != nil {
		s.log.Warn("unparseable generation output", "generator", s.generator.Name(), "chars", len(raw), "error", err)
		return nil, err
	}
	return questions, nil
}

func (s *Service) buildRow(req Request, opts Options, res *extraction.Result, questions []Question, key string) (*types.Assessment, error) {
	src := sourceInfoOf(req.Input, res)
	qJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}
	tags, _ := json.Marshal([]string{string(opts.Difficulty), string(opts.Type)})
	meta := map[string]any{
		"numberOfQuestions": opts.NumberOfQuestions,
		"warnings":          res.Warnings,
		"generator":         s.generator.Name(),
	}
	for k, v := range res.SourceMetadata {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	row := &types.Assessment{
		Title:         Title(src),
		Description:   Description(opts, len(questions)),
		Type:          string(opts.Type),
		Difficulty:    string(opts.Difficulty),
		SourceKind:    string(req.Input.Kind()),
		SourceURL:     req.Input.URL(),
		Provider:      string(res.ProviderUsed),
		Questions:     datatypes.JSON(qJSON),
		QuestionCount: len(questions),
		Tags:          datatypes.JSON(tags),
		Metadata:      datatypes.JSON(metaJSON),
		Transcript:    res.Text,
		IsPublic:      true,
	}
	if key != "" {
		row.IdempotencyKey = &key
	}
	return row, nil
}

func replay(a *types.Assessment) *Outcome {
	var qs []Question
	_ = json.Unmarshal(a.Questions, &qs)
	return &Outcome{Assessment: a, Questions: qs, Replayed: true}
}

func (s *Service) List(ctx context.Context, limit int) ([]*types.Assessment, error) {
	return s.repo.ListRecent(ctx, nil, limit)
}
