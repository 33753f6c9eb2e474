package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (*gcp.ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// GCS stores objects under <folder>/<publicID>. The resource type is only
// echoed back; GCS has no notion of it.
type GCS struct {
	log    *logger.Logger
	bucket bucket
}

func NewGCS(log *logger.Logger, b bucket) *GCS {
	return &GCS{log: log.With("service", "GCSStore"), bucket: b}
}

func (g *GCS) Provider() string { return ProviderGCS }

func (g *GCS) UploadStream(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	id := strings.Trim(strings.TrimSpace(opts.PublicID), "/")
	if id == "" {
		id = uuid.NewString() + strings.ToLower(path.Ext(opts.FileName))
	}
	key := id
	if f := strings.Trim(strings.TrimSpace(opts.Folder), "/"); f != "" && !strings.HasPrefix(id, f+"/") {
		key = f + "/" + id
	}

	attrs, err := g.bucket.Upload(ctx, key, r, opts.ContentType)
	if err != nil {
		return nil, err
	}
	rt := opts.ResourceType
	if rt == "" || rt == ResourceAuto {
		rt = ResourceTypeFor(attrs.ContentType)
	}
	out := &UploadResult{
		SecureURL:    g.bucket.PublicURL(key),
		PublicID:     key,
		ResourceType: rt,
		Version:      attrs.Generation,
		Bytes:        attrs.Size,
	}
	if isPDF(opts) {
		out.DownloadURL = out.SecureURL
	}
	g.log.Info("uploaded to gcs", "key", key, "bytes", attrs.Size)
	return out, nil
}

func (g *GCS) Destroy(ctx context.Context, publicID, _ string) error {
	key := strings.Trim(strings.TrimSpace(publicID), "/")
	if key == "" {
		return errors.New("public id is required")
	}
	return g.bucket.Delete(ctx, key)
}
