package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(configFileEnv, "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("TRANSCRIPTION_PROVIDER", "GCP-Speech")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "gcp-speech", cfg.TranscriptionProvider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.EqualValues(t, 15*1024*1024, cfg.ExtractLimits().DocumentBytes)
	assert.EqualValues(t, 25*1024*1024, cfg.GenerateLimits().DocumentBytes)
	assert.EqualValues(t, 100*1024*1024, cfg.GenerateLimits().MediaBytes)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessgen.yaml")
	body := strings.Join([]string{
		"http_addr: \":9090\"",
		"ocr_provider: gcp-vision",
		"extract_timeout: 90s",
		"cors_origins:",
		"  - https://app.example",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(configFileEnv, path)
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "gcp-vision", cfg.OCRProvider)
	assert.Equal(t, 90*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, []string{"https://app.example"}, cfg.CORSOrigins)
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv(configFileEnv, "")
	t.Setenv("OCR_PROVIDER", "tesseract")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCRProvider")
}

func TestLoadConfigMissingOverlayFile(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestSweepMinAgeOutlastsExtractionDeadline(t *testing.T) {
	assert.Equal(t, 6*time.Minute, sweepMinAge(0, 0))
	assert.Equal(t, 6*time.Minute, sweepMinAge(2*time.Minute, 90*time.Second))
	assert.Equal(t, 21*time.Minute, sweepMinAge(10*time.Minute, 20*time.Minute))
	assert.Equal(t, 30*time.Minute, sweepMinAge(30*time.Minute, 0))
}
