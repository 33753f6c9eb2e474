package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const (
	ProviderCloudinary = "cloudinary"
	ProviderGCS        = "gcs"

	ResourceAuto  = "auto"
	ResourceImage = "image"
	ResourceVideo = "video"
	ResourceRaw   = "raw"
)

type UploadOptions struct {
	Folder       string
	ResourceType string
	PublicID     string
	// FileName and ContentType are hints; backends derive keys and delivery
	// flags from them.
	FileName    string
	ContentType string
}

type UploadResult struct {
	SecureURL    string `json:"secureUrl"`
	PublicID     string `json:"publicId"`
	ResourceType string `json:"resourceType"`
	Version      int64  `json:"version"`
	// DownloadURL forces attachment delivery; set for PDFs.
	DownloadURL string `json:"downloadUrl,omitempty"`
	Bytes       int64  `json:"bytes,omitempty"`
}

// Store holds user uploads that are later referenced by URL.
type Store interface {
	Provider() string
	UploadStream(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error)
	Destroy(ctx context.Context, publicID, resourceType string) error
}

type Config struct {
	Provider   string
	Cloudinary CloudinaryConfig
	GCS        gcp.BucketConfig
	Folder     string
}

func ConfigFromEnv() Config {
	return Config{
		Provider:   strings.ToLower(envutil.String("OBJECT_STORAGE_PROVIDER", ProviderCloudinary)),
		Cloudinary: CloudinaryConfigFromEnv(),
		GCS:        gcp.BucketConfigFromEnv(),
		Folder:     envutil.String("OBJECT_STORAGE_FOLDER", "assessgen"),
	}
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", ProviderCloudinary:
		return NewCloudinary(log, cfg.Cloudinary)
	case ProviderGCS:
		b, err := gcp.NewBucket(ctx, log, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return NewGCS(log, b), nil
	default:
		return nil, fmt.Errorf("invalid OBJECT_STORAGE_PROVIDER=%q (allowed: %q, %q)", cfg.Provider, ProviderCloudinary, ProviderGCS)
	}
}

// ResourceTypeFor picks the delivery type for a content type.
func ResourceTypeFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"):
		return ResourceVideo
	case strings.HasPrefix(ct, "image/"):
		return ResourceImage
	case ct == "":
		return ResourceAuto
	default:
		return ResourceRaw
	}
}

func isPDF(opts UploadOptions) bool {
	return strings.EqualFold(strings.TrimSpace(opts.ContentType), "application/pdf") ||
		strings.EqualFold(path.Ext(opts.FileName), ".pdf")
}
