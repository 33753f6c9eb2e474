package source

import (
	"bytes"
	"errors"
	"testing"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

func TestVideoID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://youtu.be/abc123", "abc123", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ", true},
		{"youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", "", false},
		{"https://www.youtube.com/watch", "", false},
		{"https://youtu.be/bad$id", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := VideoID(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("VideoID(%q): want=%q got=%q err=%v", tc.in, tc.want, got, err)
		}
		if !tc.ok {
			if !errors.Is(err, &extraction.Error{Kind: extraction.KindInvalidInput, Reason: extraction.ReasonInvalidURL}) {
				t.Fatalf("VideoID(%q): want InvalidInput{InvalidURL} got=%v", tc.in, err)
			}
		}
	}
}

func TestValidateUploadedDocument(t *testing.T) {
	pdf := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 64)...)
	limits := extraction.DefaultLimits()

	if err := Validate(extraction.NewUploadedDocument(pdf, "application/pdf", "a.pdf"), limits); err != nil {
		t.Fatalf("valid pdf: %v", err)
	}

	big := make([]byte, 26*extraction.MB)
	err := Validate(extraction.NewUploadedDocument(big, "application/pdf", "big.pdf"), limits)
	if !errors.Is(err, &extraction.Error{Kind: extraction.KindInvalidInput, Reason: extraction.ReasonTooLarge}) {
		t.Fatalf("26MB pdf: want TooLarge got=%v", err)
	}

	mid := make([]byte, 16*extraction.MB)
	err = Validate(extraction.NewUploadedDocument(mid, "application/pdf", "mid.pdf"), extraction.ExtractRouteLimits())
	if !errors.Is(err, &extraction.Error{Kind: extraction.KindInvalidInput, Reason: extraction.ReasonTooLarge}) {
		t.Fatalf("16MB pdf on extract route: want TooLarge got=%v", err)
	}

	err = Validate(extraction.NewUploadedDocument(pdf, "application/msword", "a.doc"), limits)
	if !errors.Is(err, &extraction.Error{Kind: extraction.KindInvalidInput, Reason: extraction.ReasonUnsupportedType}) {
		t.Fatalf("doc: want UnsupportedType got=%v", err)
	}
}

func TestValidateUploadedMedia(t *testing.T) {
	limits := extraction.DefaultLimits()
	if err := Validate(extraction.NewUploadedMedia([]byte("RIFF...."), "audio/wav; codecs=1", "a.wav"), limits); err != nil {
		t.Fatalf("wav: %v", err)
	}
	err := Validate(extraction.NewUploadedMedia([]byte("GIF89a"), "image/gif", "a.gif"), limits)
	if extraction.KindOf(err) != extraction.KindInvalidInput {
		t.Fatalf("gif: want InvalidInput got=%v", err)
	}
}

func TestValidateRemoteURL(t *testing.T) {
	if err := Validate(extraction.NewRemoteDocument("https://res.cloudinary.com/demo/raw/upload/v1/a.pdf"), extraction.Limits{}); err != nil {
		t.Fatalf("https url: %v", err)
	}
	for _, raw := range []string{"ftp://host/a.pdf", "not a url", "https:///nohost"} {
		err := Validate(extraction.NewRemoteMedia(raw), extraction.Limits{})
		if !errors.Is(err, &extraction.Error{Kind: extraction.KindInvalidInput, Reason: extraction.ReasonInvalidURL}) {
			t.Fatalf("%q: want InvalidURL got=%v", raw, err)
		}
	}
}

func TestSniffDocumentMime(t *testing.T) {
	cases := map[string][]byte{
		MimePDF:  []byte("%PDF-1.4"),
		MimePPTX: []byte("PK\x03\x04"),
		MimePPT:  {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00},
		"":       []byte("hello"),
	}
	for want, b := range cases {
		if got := SniffDocumentMime(b); got != want {
			t.Fatalf("SniffDocumentMime: want=%q got=%q", want, got)
		}
	}
}

func TestURLRewrites(t *testing.T) {
	if got, want := AttachmentURL("https://res.cloudinary.com/demo/raw/upload/v1/a.pdf"), "https://res.cloudinary.com/demo/raw/upload/fl_attachment/v1/a.pdf"; got != want {
		t.Fatalf("AttachmentURL: want=%q got=%q", want, got)
	}
	already := "https://res.cloudinary.com/demo/raw/upload/fl_attachment/v1/a.pdf"
	if got := AttachmentURL(already); got != already {
		t.Fatalf("AttachmentURL idempotent: got=%q", got)
	}
	if got, want := RawDeliveryURL("https://res.cloudinary.com/demo/image/upload/v1/a.PDF"), "https://res.cloudinary.com/demo/raw/upload/v1/a.PDF"; got != want {
		t.Fatalf("RawDeliveryURL: want=%q got=%q", want, got)
	}
}
