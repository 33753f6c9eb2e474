package source

import (
	"bytes"
	"net/http"
	"path"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

const (
	MimePDF  = "application/pdf"
	MimePPT  = "application/vnd.ms-powerpoint"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

var documentMimes = map[string]bool{
	MimePDF:  true,
	MimePPT:  true,
	MimePPTX: true,
}

var mediaMimes = map[string]bool{
	"video/mp4":       true,
	"video/mpeg":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"audio/mpeg":      true,
	"audio/mp3":       true,
	"audio/wav":       true,
	"audio/m4a":       true,
	"audio/ogg":       true,
	"audio/x-m4a":     true,
	"audio/webm":      true,
}

var extMimes = map[string]string{
	".pdf":  MimePDF,
	".ppt":  MimePPT,
	".pptx": MimePPTX,
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/m4a",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

func AllowedDocumentMime(m string) bool { return documentMimes[extraction.NormalizeMime(m)] }
func AllowedMediaMime(m string) bool    { return mediaMimes[extraction.NormalizeMime(m)] }

// IsVideo reports whether the payload needs audio demuxing first.
func IsVideo(m string) bool {
	return strings.HasPrefix(extraction.NormalizeMime(m), "video/")
}

// MimeFromName maps a file name or URL path extension to a MIME type.
func MimeFromName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return extMimes[strings.ToLower(path.Ext(name))]
}

var (
	magicPDF = []byte("%PDF-")
	magicZIP = []byte("PK")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// SniffDocumentMime classifies document bytes by their magic header.
func SniffDocumentMime(b []byte) string {
	switch {
	case bytes.HasPrefix(b, magicPDF):
		return MimePDF
	case bytes.HasPrefix(b, magicZIP):
		return MimePPTX
	case bytes.HasPrefix(b, magicOLE):
		return MimePPT
	default:
		return ""
	}
}

// resolveDocumentMime applies URL extension, then Content-Type, then magic.
func resolveDocumentMime(rawURL, contentType string, body []byte) string {
	if m := MimeFromName(rawURL); documentMimes[m] {
		return m
	}
	if ct := extraction.NormalizeMime(contentType); documentMimes[ct] {
		return ct
	}
	return SniffDocumentMime(body)
}

// resolveMediaMime applies Content-Type, then URL extension, then the
// net/http sniffer.
func resolveMediaMime(rawURL, contentType string, body []byte) string {
	ct := extraction.NormalizeMime(contentType)
	if strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "audio/") {
		return ct
	}
	if m := MimeFromName(rawURL); strings.HasPrefix(m, "video/") || strings.HasPrefix(m, "audio/") {
		return m
	}
	sniffed := extraction.NormalizeMime(http.DetectContentType(body))
	if strings.HasPrefix(sniffed, "video/") || strings.HasPrefix(sniffed, "audio/") {
		return sniffed
	}
	if ct == "" || ct == "application/octet-stream" || sniffed == "application/octet-stream" {
		// Containers the sniffer does not know are handed to ffmpeg as video.
		return "video/mp4"
	}
	return ""
}

// ExtForMime is the inverse of MimeFromName; it returns "" for unknown types.
func ExtForMime(m string) string {
	m = extraction.NormalizeMime(m)
	switch m {
	case "video/mpeg":
		return ".mpeg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/x-m4a":
		return ".m4a"
	}
	for ext, mt := range extMimes {
		if mt == m {
			return ext
		}
	}
	return ""
}
