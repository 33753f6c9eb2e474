package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

func CloudinaryConfigFromEnv() CloudinaryConfig {
	return CloudinaryConfig{
		CloudName: envutil.String("CLOUDINARY_CLOUD_NAME", ""),
		APIKey:    envutil.String("CLOUDINARY_API_KEY", ""),
		APISecret: envutil.String("CLOUDINARY_API_SECRET", ""),
	}
}

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type Cloudinary struct {
	log *logger.Logger
	api cloudinaryAPI
}

func NewCloudinary(log *logger.Logger, cfg CloudinaryConfig) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("missing CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY or CLOUDINARY_API_SECRET")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return newCloudinary(log, &cld.Upload), nil
}

func newCloudinary(log *logger.Logger, api cloudinaryAPI) *Cloudinary {
	return &Cloudinary{log: log.With("service", "CloudinaryStore"), api: api}
}

func (c *Cloudinary) Provider() string { return ProviderCloudinary }

func (c *Cloudinary) UploadStream(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	rt := opts.ResourceType
	if rt == "" {
		rt = ResourceAuto
	}
	res, err := c.api.Upload(ctx, r, uploader.UploadParams{
		Folder:       opts.Folder,
		PublicID:     opts.PublicID,
		ResourceType: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res == nil {
		return nil, errors.New("cloudinary upload: empty response")
	}
	if msg := strings.TrimSpace(res.Error.Message); msg != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", msg)
	}

	out := &UploadResult{
		SecureURL:    res.SecureURL,
		PublicID:     res.PublicID,
		ResourceType: res.ResourceType,
		Version:      int64(res.Version),
		Bytes:        int64(res.Bytes),
	}
	if isPDF(opts) || strings.EqualFold(res.Format, "pdf") {
		out.DownloadURL = attachmentURL(res.SecureURL)
	}
	c.log.Info("uploaded to cloudinary", "public_id", out.PublicID, "resource_type", out.ResourceType, "bytes", out.Bytes)
	return out, nil
}

func (c *Cloudinary) Destroy(ctx context.Context, publicID, resourceType string) error {
	if strings.TrimSpace(publicID) == "" {
		return errors.New("public id is required")
	}
	if resourceType == "" || resourceType == ResourceAuto {
		resourceType = ResourceImage
	}
	res, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: resourceType})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res != nil {
		if msg := strings.TrimSpace(res.Error.Message); msg != "" {
			return fmt.Errorf("cloudinary destroy: %s", msg)
		}
		if res.Result != "" && res.Result != "ok" && res.Result != "not found" {
			return fmt.Errorf("cloudinary destroy: result %q", res.Result)
		}
	}
	return nil
}

func attachmentURL(u string) string {
	if u == "" || strings.Contains(u, "fl_attachment") {
		return u
	}
	return strings.Replace(u, "/upload/", "/upload/fl_attachment/", 1)
}
