package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindInvalidInput            ErrorKind = "invalid_input"
	KindFetchFailure            ErrorKind = "fetch_failure"
	KindConversionDegraded      ErrorKind = "conversion_degraded"
	KindTranscriptionFailure    ErrorKind = "transcription_failure"
	KindInsufficientText        ErrorKind = "insufficient_text"
	KindTimeout                 ErrorKind = "timeout"
	KindUnsupportedDocumentType ErrorKind = "unsupported_document_type"
	KindUnsupportedMediaType    ErrorKind = "unsupported_media_type"
	KindOCRProviderError        ErrorKind = "ocr_provider_error"
	KindMalformedArchive        ErrorKind = "malformed_archive"
)

type Reason string

const (
	ReasonInvalidURL      Reason = "invalid_url"
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
)

type Stage string

const (
	StageUpload Stage = "upload"
	StageSubmit Stage = "submit"
	StageRemote Stage = "remote"
)

// Class groups error kinds by what the caller should tell the user.
type Class string

const (
	ClassInvalidInput    Class = "invalid_input"
	ClassProviderFailure Class = "provider_failure"
	ClassTimeout         Class = "timeout"
)

type Error struct {
	Kind     ErrorKind
	Reason   Reason
	Stage    Stage
	Provider string
	// Length is the measured text length for InsufficientText.
	Length int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString(" (" + string(e.Reason) + ")")
	}
	if e.Stage != "" {
		b.WriteString(" stage=" + string(e.Stage))
	}
	if e.Provider != "" {
		b.WriteString(" provider=" + e.Provider)
	}
	if e.Kind == KindInsufficientText {
		fmt.Fprintf(&b, " length=%d", e.Length)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Reason/Stage when the target sets them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	if t.Stage != "" && t.Stage != e.Stage {
		return false
	}
	return true
}

func (e *Error) Class() Class {
	if e == nil {
		return ClassProviderFailure
	}
	switch e.Kind {
	case KindInvalidInput, KindUnsupportedDocumentType, KindUnsupportedMediaType, KindInsufficientText, KindMalformedArchive:
		return ClassInvalidInput
	case KindTimeout:
		return ClassTimeout
	default:
		return ClassProviderFailure
	}
}

var (
	ErrInvalidInput            = &Error{Kind: KindInvalidInput}
	ErrFetchFailure            = &Error{Kind: KindFetchFailure}
	ErrTranscriptionFailure    = &Error{Kind: KindTranscriptionFailure}
	ErrInsufficientText        = &Error{Kind: KindInsufficientText}
	ErrTimeout                 = &Error{Kind: KindTimeout}
	ErrUnsupportedDocumentType = &Error{Kind: KindUnsupportedDocumentType}
	ErrUnsupportedMediaType    = &Error{Kind: KindUnsupportedMediaType}
	ErrOCRProvider             = &Error{Kind: KindOCRProviderError}
	ErrMalformedArchive        = &Error{Kind: KindMalformedArchive}
)

func InvalidInput(reason Reason, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func FetchFailure(detail string, err error) *Error {
	return &Error{Kind: KindFetchFailure, Detail: detail, Err: err}
}

func TranscriptionFailure(stage Stage, provider string, err error) *Error {
	return &Error{Kind: KindTranscriptionFailure, Stage: stage, Provider: provider, Err: err}
}

func RemoteTranscriptionFailure(provider, detail string) *Error {
	if strings.TrimSpace(detail) == "" {
		detail = "unknown error"
	}
	return &Error{Kind: KindTranscriptionFailure, Stage: StageRemote, Provider: provider, Detail: detail}
}

func InsufficientText(length int) *Error {
	return &Error{
		Kind:   KindInsufficientText,
		Length: length,
		Detail: fmt.Sprintf("minimum %d characters required", MinDocumentTextLength),
	}
}

func Timeout(detail string, err error) *Error {
	return &Error{Kind: KindTimeout, Detail: detail, Err: err}
}

func UnsupportedDocumentType(mimeType string) *Error {
	return &Error{Kind: KindUnsupportedDocumentType, Detail: fmt.Sprintf("mime type %q", mimeType)}
}

func UnsupportedMediaType(mimeType string) *Error {
	return &Error{Kind: KindUnsupportedMediaType, Detail: fmt.Sprintf("mime type %q", mimeType)}
}

func OCRProviderError(provider, detail string, err error) *Error {
	return &Error{Kind: KindOCRProviderError, Provider: provider, Detail: detail, Err: err}
}

func MalformedArchive(detail string, err error) *Error {
	return &Error{Kind: KindMalformedArchive, Detail: detail, Err: err}
}

// KindOf returns the ErrorKind in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return ""
}

// AsError returns the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// WithDeadline rewrites err as a Timeout when it stems from an expired
// deadline: it wraps context.DeadlineExceeded, or ctx's deadline has passed and
// err is either unclassified or wraps ctx's error. Classified errors with an
// unrelated cause are kept.
func WithDeadline(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindTimeout {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("processing took too long", err)
	}
	if ctx == nil || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if KindOf(err) == "" || errors.Is(err, ctx.Err()) || errors.Is(err, context.Canceled) {
		return Timeout("processing took too long", err)
	}
	return err
}

// IsRetryable reports whether repeating the same request could succeed.
// Invalid input and content-level failures never are; remote failures of a
// transcription job are final for that job.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindFetchFailure, KindTimeout, KindOCRProviderError:
		return true
	case KindTranscriptionFailure:
		return e.Stage != StageRemote
	default:
		return false
	}
}
