package extraction

import (
	"strings"
	"time"
)

type SourceKind string

const (
	SourceYouTubeURL        SourceKind = "youtube_url"
	SourceUploadedMedia     SourceKind = "uploaded_media"
	SourceRemoteMediaURL    SourceKind = "remote_media_url"
	SourceUploadedDocument  SourceKind = "uploaded_document"
	SourceRemoteDocumentURL SourceKind = "remote_document_url"
)

func (k SourceKind) IsDocument() bool {
	return k == SourceUploadedDocument || k == SourceRemoteDocumentURL
}

func (k SourceKind) IsMedia() bool {
	return k == SourceUploadedMedia || k == SourceRemoteMediaURL || k == SourceYouTubeURL
}

func (k SourceKind) IsRemote() bool {
	return k == SourceYouTubeURL || k == SourceRemoteMediaURL || k == SourceRemoteDocumentURL
}

func ParseSourceKind(raw string) (SourceKind, bool) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case SourceYouTubeURL, SourceUploadedMedia, SourceRemoteMediaURL, SourceUploadedDocument, SourceRemoteDocumentURL:
		return k, true
	default:
		return "", false
	}
}

// InputDescriptor is one user-supplied input. Fields are unexported so a
// descriptor cannot change after construction; Bytes must not be mutated by
// callers.
type InputDescriptor struct {
	kind         SourceKind
	url          string
	bytes        []byte
	mimeType     string
	originalName string
}

func NewYouTube(url string) InputDescriptor {
	return InputDescriptor{kind: SourceYouTubeURL, url: strings.TrimSpace(url)}
}

func NewRemoteMedia(url string) InputDescriptor {
	return InputDescriptor{kind: SourceRemoteMediaURL, url: strings.TrimSpace(url)}
}

func NewRemoteDocument(url string) InputDescriptor {
	return InputDescriptor{kind: SourceRemoteDocumentURL, url: strings.TrimSpace(url)}
}

func NewUploadedMedia(b []byte, mimeType, originalName string) InputDescriptor {
	return InputDescriptor{kind: SourceUploadedMedia, bytes: b, mimeType: normalizeMime(mimeType), originalName: originalName}
}

func NewUploadedDocument(b []byte, mimeType, originalName string) InputDescriptor {
	return InputDescriptor{kind: SourceUploadedDocument, bytes: b, mimeType: normalizeMime(mimeType), originalName: originalName}
}

// NewRemote builds a URL descriptor of the given kind; ok is false for
// uploaded kinds.
func NewRemote(kind SourceKind, url string) (InputDescriptor, bool) {
	switch kind {
	case SourceYouTubeURL:
		return NewYouTube(url), true
	case SourceRemoteMediaURL:
		return NewRemoteMedia(url), true
	case SourceRemoteDocumentURL:
		return NewRemoteDocument(url), true
	default:
		return InputDescriptor{}, false
	}
}

func (d InputDescriptor) Kind() SourceKind     { return d.kind }
func (d InputDescriptor) URL() string          { return d.url }
func (d InputDescriptor) Bytes() []byte        { return d.bytes }
func (d InputDescriptor) Size() int64          { return int64(len(d.bytes)) }
func (d InputDescriptor) MimeType() string     { return d.mimeType }
func (d InputDescriptor) OriginalName() string { return d.originalName }

func normalizeMime(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}

// NormalizeMime lowercases m and strips parameters.
func NormalizeMime(m string) string { return normalizeMime(m) }

const (
	MB = int64(1024 * 1024)

	DefaultDocumentTimeout = 3 * time.Minute
	DefaultMediaTimeout    = 5 * time.Minute
)

// Limits are the per-kind size ceilings applied to uploaded and fetched bytes.
type Limits struct {
	DocumentBytes int64
	MediaBytes    int64
}

// DefaultLimits are the generation-route ceilings.
func DefaultLimits() Limits {
	return Limits{DocumentBytes: 25 * MB, MediaBytes: 100 * MB}
}

// ExtractRouteLimits are the stricter ceilings of the plain extraction route.
func ExtractRouteLimits() Limits {
	return Limits{DocumentBytes: 15 * MB, MediaBytes: 100 * MB}
}

func (l Limits) For(kind SourceKind) int64 {
	if kind.IsDocument() {
		if l.DocumentBytes > 0 {
			return l.DocumentBytes
		}
		return DefaultLimits().DocumentBytes
	}
	if l.MediaBytes > 0 {
		return l.MediaBytes
	}
	return DefaultLimits().MediaBytes
}

type Options struct {
	ForceOCR bool
	// Timeout overrides the per-kind wall-clock budget when > 0.
	Timeout time.Duration
	Limits  Limits
}

func (o Options) TimeoutFor(kind SourceKind) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if kind.IsDocument() {
		return DefaultDocumentTimeout
	}
	return DefaultMediaTimeout
}
