package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/assessgen-backend/internal/assessment"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/extraction/source"
	"github.com/yungbote/assessgen-backend/internal/platform/apierr"
)

// Multipart field names accepted for uploads.
var (
	mediaFields    = []string{"media", "file", "audio", "video", "audioFile", "videoFile"}
	documentFields = []string{"document", "file", "pdf", "ppt", "pptx"}
)

// flexInt accepts 5 and "5".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%w: numberOfQuestions must be an integer", assessment.ErrInvalidOptions)
	}
	*f = flexInt(n)
	return nil
}

func (f *flexInt) UnmarshalParam(param string) error {
	n, err := assessment.ParseCount(param)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexBool accepts true, "true", "1" and "yes".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	return f.UnmarshalParam(strings.Trim(string(b), `"`))
}

func (f *flexBool) UnmarshalParam(param string) error {
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}

// sourceRequest is the body of every extract and generate route. JSON,
// urlencoded and multipart bodies all bind to it.
type sourceRequest struct {
	URL         string   `json:"url" form:"url"`
	VideoURL    string   `json:"videoUrl" form:"videoUrl"`
	MediaURL    string   `json:"mediaUrl" form:"mediaUrl"`
	DocumentURL string   `json:"documentUrl" form:"documentUrl"`
	ForceOCR    flexBool `json:"forceOcr" form:"forceOcr"`

	NumberOfQuestions flexInt  `json:"numberOfQuestions" form:"numberOfQuestions"`
	Difficulty        string   `json:"difficulty" form:"difficulty"`
	Type              string   `json:"type" form:"type"`
	DeleteAfter       flexBool `json:"deleteAfterProcessing" form:"deleteAfterProcessing"`
	StoragePublicID   string   `json:"storagePublicId" form:"storagePublicId"`
	CloudinaryID      string   `json:"cloudinaryPublicId" form:"cloudinaryPublicId"`
	ResourceType      string   `json:"resourceType" form:"resourceType"`
}

func bindSource(c *gin.Context) (sourceRequest, error) {
	var req sourceRequest
	if err := c.ShouldBind(&req); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return req, extraction.InvalidInput(extraction.ReasonTooLarge, "request body exceeds %d bytes", mbe.Limit)
		case errors.Is(err, assessment.ErrInvalidOptions):
			return req, err
		case errors.Is(err, io.EOF):
			return req, nil
		}
		return req, apierr.BadRequest("invalid_body", err)
	}
	return req, nil
}

func (r sourceRequest) urlFor(kind extraction.SourceKind) string {
	var specific string
	switch kind {
	case extraction.SourceYouTubeURL:
		specific = r.VideoURL
	case extraction.SourceRemoteMediaURL:
		specific = r.MediaURL
	case extraction.SourceRemoteDocumentURL:
		specific = r.DocumentURL
	}
	if s := strings.TrimSpace(specific); s != "" {
		return s
	}
	return strings.TrimSpace(r.URL)
}

func (r sourceRequest) options() assessment.Options {
	return assessment.Options{
		NumberOfQuestions: int(r.NumberOfQuestions),
		Difficulty:        assessment.Difficulty(r.Difficulty),
		Type:              assessment.QuestionType(r.Type),
	}
}

func (r sourceRequest) storageRef(defaultResourceType string) *assessment.StorageRef {
	if !bool(r.DeleteAfter) {
		return nil
	}
	id := strings.TrimSpace(r.StoragePublicID)
	if id == "" {
		id = strings.TrimSpace(r.CloudinaryID)
	}
	if id == "" {
		return nil
	}
	rt := strings.TrimSpace(r.ResourceType)
	if rt == "" {
		rt = defaultResourceType
	}
	return &assessment.StorageRef{PublicID: id, ResourceType: rt}
}

func remoteDescriptor(req sourceRequest, kind extraction.SourceKind) (extraction.InputDescriptor, error) {
	u := req.urlFor(kind)
	if u == "" {
		return extraction.InputDescriptor{}, extraction.InvalidInput(extraction.ReasonInvalidURL, "a URL is required")
	}
	d, _ := extraction.NewRemote(kind, u)
	return d, nil
}

// formFile returns the first file present under any of names.
func formFile(c *gin.Context, names []string) (*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, false
	}
	for _, n := range names {
		if fhs := form.File[n]; len(fhs) > 0 {
			return fhs[0], true
		}
	}
	return nil, false
}

// readUpload reads at most limit+1 bytes so an oversized file fails
// validation without being held in memory whole.
func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func uploadMime(fh *multipart.FileHeader, data []byte, document bool) string {
	declared := extraction.NormalizeMime(fh.Header.Get("Content-Type"))
	allowed := source.AllowedMediaMime
	if document {
		allowed = source.AllowedDocumentMime
	}
	if allowed(declared) {
		return declared
	}
	if m := source.MimeFromName(fh.Filename); allowed(m) {
		return m
	}
	if document {
		if m := source.SniffDocumentMime(data); m != "" {
			return m
		}
	} else if m := extraction.NormalizeMime(http.DetectContentType(data)); allowed(m) {
		return m
	}
	return declared
}

func uploadDescriptor(c *gin.Context, kind extraction.SourceKind, limits extraction.Limits) (extraction.InputDescriptor, bool, error) {
	document := kind == extraction.SourceUploadedDocument
	names := mediaFields
	if document {
		names = documentFields
	}
	fh, ok := formFile(c, names)
	if !ok {
		return extraction.InputDescriptor{}, false, nil
	}
	data, err := readUpload(fh, limits.For(kind))
	if err != nil {
		return extraction.InputDescriptor{}, true, apierr.BadRequest("invalid_upload", err)
	}
	mt := uploadMime(fh, data, document)
	if document {
		return extraction.NewUploadedDocument(data, mt, fh.Filename), true, nil
	}
	return extraction.NewUploadedMedia(data, mt, fh.Filename), true, nil
}

// multipartSlack covers form fields and boundaries around the file part.
const multipartSlack = 1 << 20

// resolveInput binds the request and builds a validated descriptor for kind.
// An upload route that received a URL field instead of a file is served as
// the matching URL kind.
func resolveInput(c *gin.Context, kind extraction.SourceKind, limits extraction.Limits) (extraction.InputDescriptor, sourceRequest, error) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limits.For(kind)+multipartSlack)
	}
	req, err := bindSource(c)
	if err != nil {
		return extraction.InputDescriptor{}, req, err
	}

	var d extraction.InputDescriptor
	switch kind {
	case extraction.SourceUploadedMedia, extraction.SourceUploadedDocument:
		var found bool
		d, found, err = uploadDescriptor(c, kind, limits)
		if err != nil {
			return d, req, err
		}
		if !found {
			remote := extraction.SourceRemoteMediaURL
			if kind == extraction.SourceUploadedDocument {
				remote = extraction.SourceRemoteDocumentURL
			}
			if req.urlFor(remote) == "" {
				return d, req, apierr.BadRequest("missing_file", errors.New("no file uploaded"))
			}
			if d, err = remoteDescriptor(req, remote); err != nil {
				return d, req, err
			}
		}
	default:
		if d, err = remoteDescriptor(req, kind); err != nil {
			return d, req, err
		}
	}
	if err := source.Validate(d, limits); err != nil {
		return d, req, err
	}
	return d, req, nil
}
