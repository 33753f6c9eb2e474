package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/pkg/httpx"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

// Payload is fetched or uploaded content plus its declared type.
type Payload struct {
	Bytes     []byte
	MimeType  string
	Name      string
	SourceURL string
}

// Fetcher resolves a non-YouTube descriptor into bytes.
type Fetcher interface {
	Fetch(ctx context.Context, d extraction.InputDescriptor, limits extraction.Limits) (*Payload, error)
}

type HTTPFetcher struct {
	log    *logger.Logger
	client *http.Client
}

func NewHTTPFetcher(log *logger.Logger, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPFetcher{log: log.With("service", "SourceFetcher"), client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, d extraction.InputDescriptor, limits extraction.Limits) (*Payload, error) {
	if err := Validate(d, limits); err != nil {
		return nil, err
	}
	switch d.Kind() {
	case extraction.SourceUploadedDocument, extraction.SourceUploadedMedia:
		mime := d.MimeType()
		if d.Kind() == extraction.SourceUploadedDocument && mime == MimePPT {
			// Some clients label pptx uploads with the legacy type.
			if SniffDocumentMime(d.Bytes()) == MimePPTX {
				mime = MimePPTX
			}
		}
		return &Payload{Bytes: d.Bytes(), MimeType: mime, Name: d.OriginalName()}, nil
	case extraction.SourceRemoteDocumentURL:
		return f.fetchRemote(ctx, d.URL(), limits.For(d.Kind()), true)
	case extraction.SourceRemoteMediaURL:
		return f.fetchRemote(ctx, d.URL(), limits.For(d.Kind()), false)
	default:
		return nil, extraction.InvalidInput(extraction.ReasonUnsupportedType, "source kind %q has no byte fetch", d.Kind())
	}
}

func (f *HTTPFetcher) fetchRemote(ctx context.Context, rawURL string, maxBytes int64, document bool) (*Payload, error) {
	target := rawURL
	if document {
		target = RawDeliveryURL(rawURL)
	}

	body, contentType, err := f.get(ctx, target, maxBytes, document)
	if err != nil {
		if extraction.KindOf(err) == extraction.KindInvalidInput || ctx.Err() != nil {
			return nil, extraction.WithDeadline(ctx, err)
		}
		alt := AttachmentURL(target)
		f.log.Warn("remote fetch failed, retrying with attachment delivery", "url", target, "retry_url", alt, "error", err)
		var retryErr error
		body, contentType, retryErr = f.get(ctx, alt, maxBytes, document)
		if retryErr != nil {
			if extraction.KindOf(retryErr) == extraction.KindInvalidInput {
				return nil, retryErr
			}
			if ctx.Err() != nil {
				return nil, extraction.WithDeadline(ctx, retryErr)
			}
			return nil, extraction.FetchFailure(
				fmt.Sprintf("all attempts failed (url=%s retry_url=%s)", target, alt),
				errors.Join(err, retryErr),
			)
		}
		target = alt
	}

	var mime string
	if document {
		mime = resolveDocumentMime(rawURL, contentType, body)
		if mime == "" {
			return nil, extraction.UnsupportedDocumentType(extraction.NormalizeMime(contentType))
		}
	} else {
		mime = resolveMediaMime(rawURL, contentType, body)
		if mime == "" {
			return nil, extraction.UnsupportedMediaType(extraction.NormalizeMime(contentType))
		}
	}

	f.log.Debug("remote fetch ok", "url", target, "bytes", len(body), "mime", mime)
	return &Payload{Bytes: body, MimeType: mime, Name: nameFromURL(rawURL), SourceURL: rawURL}, nil
}

func (f *HTTPFetcher) get(ctx context.Context, u string, maxBytes int64, document bool) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", httpx.BrowserUserAgent)
	if document {
		req.Header.Set("Accept", "application/pdf,*/*")
	} else {
		req.Header.Set("Accept", "video/*,audio/*,*/*")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return nil, "", err
	}
	if resp.ContentLength > maxBytes {
		return nil, "", extraction.InvalidInput(extraction.ReasonTooLarge, "remote content of %d bytes exceeds limit of %d bytes", resp.ContentLength, maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, "", extraction.InvalidInput(extraction.ReasonTooLarge, "remote content exceeds limit of %d bytes", maxBytes)
	}
	if len(body) == 0 {
		return nil, "", errors.New("empty body")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// AttachmentURL forces attachment delivery on storage URLs of the form
// .../upload/...; URLs without that segment are returned unchanged.
func AttachmentURL(u string) string {
	if strings.Contains(u, "fl_attachment") {
		return u
	}
	return strings.Replace(u, "/upload/", "/upload/fl_attachment/", 1)
}

// RawDeliveryURL rewrites image-typed Cloudinary PDF URLs to the raw
// resource type, which serves the original bytes.
func RawDeliveryURL(u string) string {
	lower := strings.ToLower(u)
	if strings.Contains(lower, "cloudinary.com") && strings.Contains(u, "/image/upload/") && strings.HasSuffix(lower, ".pdf") {
		return strings.Replace(u, "/image/upload/", "/raw/upload/", 1)
	}
	return u
}

func nameFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	name := path.Base(u)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
