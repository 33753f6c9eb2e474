package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

// Validate checks a descriptor without any I/O. It is called before any
// provider is contacted.
func Validate(d extraction.InputDescriptor, limits extraction.Limits) error {
	switch d.Kind() {
	case extraction.SourceYouTubeURL:
		if _, err := VideoID(d.URL()); err != nil {
			return err
		}
		return nil
	case extraction.SourceRemoteMediaURL, extraction.SourceRemoteDocumentURL:
		return validateRemoteURL(d.URL())
	case extraction.SourceUploadedDocument:
		return validateUpload(d, limits, AllowedDocumentMime)
	case extraction.SourceUploadedMedia:
		return validateUpload(d, limits, AllowedMediaMime)
	default:
		return extraction.InvalidInput(extraction.ReasonUnsupportedType, "unknown source kind %q", d.Kind())
	}
}

func validateUpload(d extraction.InputDescriptor, limits extraction.Limits, allowed func(string) bool) error {
	if d.Size() == 0 {
		return extraction.InvalidInput(extraction.ReasonUnsupportedType, "empty upload")
	}
	if max := limits.For(d.Kind()); d.Size() > max {
		return extraction.InvalidInput(extraction.ReasonTooLarge, "%d bytes exceeds limit of %d bytes", d.Size(), max)
	}
	if !allowed(d.MimeType()) {
		return extraction.InvalidInput(extraction.ReasonUnsupportedType, "mime type %q is not allowed", d.MimeType())
	}
	return nil
}

func validateRemoteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return extraction.InvalidInput(extraction.ReasonInvalidURL, "malformed url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return extraction.InvalidInput(extraction.ReasonInvalidURL, "url scheme must be http or https")
	}
	if u.Host == "" {
		return extraction.InvalidInput(extraction.ReasonInvalidURL, "url host missing")
	}
	return nil
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var youTubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

// VideoID resolves the stable video identifier of a YouTube URL.
func VideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", extraction.InvalidInput(extraction.ReasonInvalidURL, "youtube url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", extraction.InvalidInput(extraction.ReasonInvalidURL, "malformed youtube url")
	}
	host := strings.ToLower(u.Hostname())
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	var id string
	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		if len(segs) > 0 {
			id = segs[0]
		}
	case youTubeHosts[host]:
		switch {
		case len(segs) == 1 && segs[0] == "watch":
			id = u.Query().Get("v")
		case len(segs) >= 2 && (segs[0] == "embed" || segs[0] == "shorts" || segs[0] == "live" || segs[0] == "v"):
			id = segs[1]
		}
	default:
		return "", extraction.InvalidInput(extraction.ReasonInvalidURL, "not a youtube url")
	}
	if !videoIDPattern.MatchString(id) {
		return "", extraction.InvalidInput(extraction.ReasonInvalidURL, "could not resolve youtube video id")
	}
	return id, nil
}
