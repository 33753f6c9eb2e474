package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/assessgen-backend/internal/db"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/document"
	"github.com/yungbote/assessgen-backend/internal/extraction/orchestrator"
	"github.com/yungbote/assessgen-backend/internal/extraction/transcribe"
	"github.com/yungbote/assessgen-backend/internal/observability"
	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/gemini"
	"github.com/yungbote/assessgen-backend/internal/platform/localmedia"
	"github.com/yungbote/assessgen-backend/internal/platform/objectstore"
	"github.com/yungbote/assessgen-backend/internal/platform/openai"
	"github.com/yungbote/assessgen-backend/internal/platform/redisx"
	"github.com/yungbote/assessgen-backend/internal/temporalx"
)

const configFileEnv = "ASSESSGEN_CONFIG_FILE"

const OCRProviderNone = "none"

// Config is the process configuration. Top-level knobs come from the
// environment and may be overridden by the YAML file named in
// ASSESSGEN_CONFIG_FILE; provider sections are environment only.
type Config struct {
	LogMode     string   `yaml:"log_mode" validate:"required"`
	HTTPAddr    string   `yaml:"http_addr" validate:"required"`
	ServiceName string   `yaml:"service_name" validate:"required"`
	CORSOrigins []string `yaml:"cors_origins"`

	TranscriptionProvider string `yaml:"transcription_provider" validate:"oneof=assemblyai gcp-speech gcp-video"`
	OCRProvider           string `yaml:"ocr_provider" validate:"oneof=ocr-space gcp-vision gcp-documentai none"`
	GeneratorProvider     string `yaml:"generator_provider" validate:"oneof=gemini openai"`

	ExtractDocumentMaxBytes  int64         `yaml:"extract_document_max_bytes" validate:"gt=0"`
	GenerateDocumentMaxBytes int64         `yaml:"generate_document_max_bytes" validate:"gt=0"`
	MediaMaxBytes            int64         `yaml:"media_max_bytes" validate:"gt=0"`
	ExtractTimeout           time.Duration `yaml:"extract_timeout" validate:"gte=0"`
	SweepEnabled             bool          `yaml:"sweep_enabled"`

	DB           db.Config                            `yaml:"-"`
	Redis        redisx.Config                        `yaml:"-"`
	Storage      objectstore.Config                   `yaml:"-"`
	Temporal     temporalx.Config                     `yaml:"-"`
	Otel         observability.OtelConfig             `yaml:"-"`
	Orchestrator orchestrator.Config                  `yaml:"-"`
	Transcripts  orchestrator.TranscriptServiceConfig `yaml:"-"`
	Assembly     transcribe.AssemblyConfig            `yaml:"-"`
	OCRSpace     document.OCRSpaceConfig              `yaml:"-"`
	DocumentAI   gcp.DocumentConfig                   `yaml:"-"`
	Media        localmedia.Config                    `yaml:"-"`
	Gemini       gemini.Config                        `yaml:"-"`
	OpenAI       openai.Config                        `yaml:"-"`
}

// LoadConfig reads the environment, applies the optional YAML overlay and
// validates the result.
func LoadConfig() (Config, error) {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		HTTPAddr:    envutil.String("HTTP_ADDR", ":8080"),
		ServiceName: envutil.String("SERVICE_NAME", "assessgen-backend"),
		CORSOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		TranscriptionProvider: strings.ToLower(envutil.String("TRANSCRIPTION_PROVIDER", transcribe.ProviderAssemblyAI)),
		OCRProvider:           strings.ToLower(envutil.String("OCR_PROVIDER", document.ProviderOCRSpace)),
		GeneratorProvider:     strings.ToLower(envutil.String("GENERATOR_PROVIDER", gemini.ProviderName)),

		ExtractDocumentMaxBytes:  envutil.Bytes("EXTRACT_DOCUMENT_MAX_BYTES", extraction.ExtractRouteLimits().DocumentBytes),
		GenerateDocumentMaxBytes: envutil.Bytes("GENERATE_DOCUMENT_MAX_BYTES", extraction.DefaultLimits().DocumentBytes),
		MediaMaxBytes:            envutil.Bytes("MEDIA_MAX_BYTES", extraction.DefaultLimits().MediaBytes),
		ExtractTimeout:           envutil.Duration("EXTRACT_TIMEOUT", 0),
		SweepEnabled:             envutil.Bool("TEMP_SWEEP_ENABLED", true),

		DB:           db.ConfigFromEnv(),
		Redis:        redisx.ConfigFromEnv(),
		Storage:      objectstore.ConfigFromEnv(),
		Temporal:     temporalx.LoadConfig(),
		Otel:         observability.OtelConfigFromEnv(),
		Orchestrator: orchestrator.ConfigFromEnv(),
		Transcripts:  orchestrator.TranscriptServiceConfigFromEnv(),
		Assembly:     transcribe.AssemblyConfigFromEnv(),
		OCRSpace:     document.OCRSpaceConfigFromEnv(),
		DocumentAI:   gcp.DocumentConfigFromEnv(),
		Media:        localmedia.ConfigFromEnv(),
		Gemini:       gemini.ConfigFromEnv(),
		OpenAI:       openai.ConfigFromEnv(),
	}

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", configFileEnv, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	c.TranscriptionProvider = strings.ToLower(strings.TrimSpace(c.TranscriptionProvider))
	c.OCRProvider = strings.ToLower(strings.TrimSpace(c.OCRProvider))
	c.GeneratorProvider = strings.ToLower(strings.TrimSpace(c.GeneratorProvider))
	return nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExtractLimits are the ceilings of /api/extract routes.
func (c Config) ExtractLimits() extraction.Limits {
	return extraction.Limits{DocumentBytes: c.ExtractDocumentMaxBytes, MediaBytes: c.MediaMaxBytes}
}

// GenerateLimits are the ceilings of /api/assessments/generate routes.
func (c Config) GenerateLimits() extraction.Limits {
	return extraction.Limits{DocumentBytes: c.GenerateDocumentMaxBytes, MediaBytes: c.MediaMaxBytes}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
