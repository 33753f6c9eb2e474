package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

type BucketConfig struct {
	Name          string
	Mode          StorageMode
	EmulatorHost  string
	PublicBaseURL string
}

func BucketConfigFromEnv() BucketConfig {
	cfg := BucketConfig{
		Name:          envutil.String("GCS_BUCKET", ""),
		EmulatorHost:  strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
		PublicBaseURL: strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
	}
	cfg.Mode = StorageMode(strings.ToLower(envutil.String("GCS_STORAGE_MODE", "")))
	if cfg.Mode == "" {
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
		}
	}
	return cfg
}

func (c BucketConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("missing GCS_BUCKET")
	}
	switch c.Mode {
	case StorageModeGCS:
	case StorageModeGCSEmulator:
		u, err := url.Parse(c.EmulatorHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", c.EmulatorHost)
		}
	default:
		return fmt.Errorf("invalid GCS_STORAGE_MODE=%q (allowed: %q, %q)", c.Mode, StorageModeGCS, StorageModeGCSEmulator)
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q", c.PublicBaseURL)
		}
	}
	return nil
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Generation  int64
	Updated     time.Time
}

// Bucket is a single GCS bucket holding uploaded sources.
type Bucket struct {
	log    *logger.Logger
	cfg    BucketConfig
	client *storage.Client
}

func NewBucket(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []option.ClientOption
	if cfg.Mode == StorageModeGCSEmulator {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		opts = []option.ClientOption{option.WithoutAuthentication()}
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	slog := log.With("service", "gcp.Bucket")
	slog.Info("object storage initialized", "bucket", cfg.Name, "mode", cfg.Mode, "emulator_host", cfg.EmulatorHost)
	return &Bucket{log: slog, cfg: cfg, client: c}, nil
}

func (b *Bucket) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *Bucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) (*ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.cfg.Name).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	a := w.Attrs()
	if a == nil {
		return &ObjectAttrs{ContentType: contentType}, nil
	}
	return &ObjectAttrs{Size: a.Size, ContentType: a.ContentType, Generation: a.Generation, Updated: a.Updated}, nil
}

// Delete removes key; a missing object is not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := b.client.Bucket(b.cfg.Name).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, b.cfg.Name, err)
	}
	return nil
}

func (b *Bucket) PublicURL(key string) string {
	return publicObjectURL(b.cfg, key)
}

func publicObjectURL(cfg BucketConfig, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	switch {
	case cfg.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", cfg.PublicBaseURL, cfg.Name, key)
	case cfg.Mode == StorageModeGCSEmulator:
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", cfg.EmulatorHost, url.PathEscape(cfg.Name), url.PathEscape(key))
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.Name, key)
	}
}
