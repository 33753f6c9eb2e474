package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/assessgen-backend/internal/assessment"
	"github.com/yungbote/assessgen-backend/internal/extraction"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/platform/objectstore"
	"github.com/yungbote/assessgen-backend/internal/temporalx/extractjob"
	"github.com/yungbote/assessgen-backend/internal/types"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeExtractor struct {
	calls int
	got   extraction.InputDescriptor
	opts  extraction.Options
	res   *extraction.Result
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, d extraction.InputDescriptor, opts extraction.Options) (*extraction.Result, error) {
	f.calls++
	f.got = d
	f.opts = opts
	return f.res, f.err
}

type fakeAssessments struct {
	generate func(ctx context.Context, req assessment.Request) (*assessment.Outcome, error)
	get      func(ctx context.Context, id uuid.UUID) (*types.Assessment, error)
	list     func(ctx context.Context, limit int) ([]*types.Assessment, error)
}

func (f *fakeAssessments) Generate(ctx context.Context, req assessment.Request) (*assessment.Outcome, error) {
	return f.generate(ctx, req)
}

func (f *fakeAssessments) Get(ctx context.Context, id uuid.UUID) (*types.Assessment, error) {
	return f.get(ctx, id)
}

func (f *fakeAssessments) List(ctx context.Context, limit int) ([]*types.Assessment, error) {
	return f.list(ctx, limit)
}

type fakeJobs struct {
	submitted []extractjob.Input
	status    map[string]*extractjob.Status
}

func (f *fakeJobs) Submit(_ context.Context, in extractjob.Input) (string, error) {
	f.submitted = append(f.submitted, in)
	return "extract-1", nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (*extractjob.Status, error) {
	if st, ok := f.status[id]; ok {
		return st, nil
	}
	return nil, extractjob.ErrJobNotFound
}

type fakeStore struct {
	uploaded  []objectstore.UploadOptions
	body      []byte
	destroyed []string
}

func (f *fakeStore) Provider() string { return "fake" }

func (f *fakeStore) UploadStream(_ context.Context, r io.Reader, opts objectstore.UploadOptions) (*objectstore.UploadResult, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.body = b
	f.uploaded = append(f.uploaded, opts)
	return &objectstore.UploadResult{PublicID: "up/1", ResourceType: opts.ResourceType, SecureURL: "https://cdn.example/up/1"}, nil
}

func (f *fakeStore) Destroy(_ context.Context, publicID, resourceType string) error {
	f.destroyed = append(f.destroyed, resourceType+":"+publicID)
	return nil
}

func sampleResult() *extraction.Result {
	return extraction.NewResult(extraction.ProviderTranscriptLookup, extraction.SingleSegment("hello world"), map[string]any{"videoId": "dQw4w9WgXcQ"})
}

func newTestRouter(ex Extractor, svc AssessmentService, jobs JobService, store objectstore.Store, limits extraction.Limits) *gin.Engine {
	log := logger.Nop()
	r := gin.New()
	eh := NewExtractHandler(log, ex, limits)
	r.GET("/api/extract/formats", eh.Formats)
	r.POST("/api/extract/youtube", eh.Route(extraction.SourceYouTubeURL))
	r.POST("/api/extract/media", eh.Route(extraction.SourceUploadedMedia))
	r.POST("/api/extract/document", eh.Route(extraction.SourceUploadedDocument))
	if svc != nil {
		ah := NewAssessmentHandler(log, svc, limits)
		r.POST("/api/assessments/generate/youtube", ah.Generate(extraction.SourceYouTubeURL))
		r.GET("/api/assessments/:id", ah.Get)
		r.GET("/api/assessments", ah.List)
	}
	if jobs != nil {
		jh := NewJobHandler(log, jobs)
		r.POST("/api/extract/jobs", jh.Submit)
		r.GET("/api/extract/jobs/:id", jh.Get)
	}
	if store != nil {
		sh := NewStorageHandler(log, store, limits)
		r.POST("/api/storage/upload", sh.Upload)
		r.DELETE("/api/storage/:resourceType/*publicId", sh.Delete)
	}
	return r
}

func doJSON(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doUpload(r http.Handler, path, field, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, _ := mw.CreatePart(h)
	_, _ = part.Write(data)
	_ = mw.WriteField("forceOcr", "true")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestExtractYouTube(t *testing.T) {
	ex := &fakeExtractor{res: sampleResult()}
	r := newTestRouter(ex, nil, nil, nil, extraction.ExtractRouteLimits())

	rec := doJSON(r, http.MethodPost, "/api/extract/youtube", `{"videoUrl":"https://youtu.be/dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success      bool   `json:"success"`
		Text         string `json:"text"`
		ProviderUsed string `json:"providerUsed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "hello world", body.Text)
	assert.Equal(t, "transcript-lookup", body.ProviderUsed)
	assert.Equal(t, extraction.SourceYouTubeURL, ex.got.Kind())
	assert.Equal(t, extraction.ExtractRouteLimits(), ex.opts.Limits)
}

func TestExtractRejectsInvalidURLWithoutCallingExtractor(t *testing.T) {
	ex := &fakeExtractor{res: sampleResult()}
	r := newTestRouter(ex, nil, nil, nil, extraction.ExtractRouteLimits())

	rec := doJSON(r, http.MethodPost, "/api/extract/youtube", `{"url":"https://vimeo.com/1234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_url", decodeError(t, rec).Error.Code)
	assert.Zero(t, ex.calls)

	rec = doJSON(r, http.MethodPost, "/api/extract/youtube", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ex.calls)
}

func TestExtractDocumentUploadAliases(t *testing.T) {
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 32)...)
	for _, field := range []string{"document", "file", "pdf"} {
		t.Run(field, func(t *testing.T) {
			ex := &fakeExtractor{res: sampleResult()}
			r := newTestRouter(ex, nil, nil, nil, extraction.ExtractRouteLimits())

			rec := doUpload(r, "/api/extract/document", field, "notes.pdf", "application/octet-stream", pdf)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, extraction.SourceUploadedDocument, ex.got.Kind())
			assert.Equal(t, "application/pdf", ex.got.MimeType())
			assert.Equal(t, "notes.pdf", ex.got.OriginalName())
			assert.Equal(t, pdf, ex.got.Bytes())
			assert.True(t, ex.opts.ForceOCR)
		})
	}
}

func TestExtractDocumentSniffsUnnamedUpload(t *testing.T) {
	ex := &fakeExtractor{res: sampleResult()}
	r := newTestRouter(ex, nil, nil, nil, extraction.ExtractRouteLimits())

	rec := doUpload(r, "/api/extract/document", "document", "blob", "", []byte("PK\x03\x04rest-of-archive"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.presentationml.presentation", ex.got.MimeType())
}

func TestExtractDocumentTooLarge(t *testing.T) {
	ex := &fakeExtractor{res: sampleResult()}
	r := newTestRouter(ex, nil, nil, nil, extraction.Limits{DocumentBytes: 16, MediaBytes: 16})

	rec := doUpload(r, "/api/extract/document", "document", "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 64))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "too_large", decodeError(t, rec).Error.Code)
	assert.Zero(t, ex.calls)
}

func TestExtractMediaRouteAcceptsURL(t *testing.T) {
	ex := &fakeExtractor{res: sampleResult()}
	r := newTestRouter(ex, nil, nil, nil, extraction.ExtractRouteLimits())

	rec := doJSON(r, http.MethodPost, "/api/extract/media", `{"mediaUrl":"https://cdn.example/talk.mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, extraction.SourceRemoteMediaURL, ex.got.Kind())
	assert.Equal(t, "https://cdn.example/talk.mp4", ex.got.URL())

	rec = doJSON(r, http.MethodPost, "/api/extract/media", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_file", decodeError(t, rec).Error.Code)
}

func TestExtractErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"timeout", extraction.Timeout("media", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"insufficient text", extraction.InsufficientText(12), http.StatusUnprocessableEntity, "insufficient_text"},
		{"fetch failure", extraction.FetchFailure("GET", errors.New("boom")), http.StatusBadGateway, "fetch_failure"},
		{"unknown", errors.New("kaput"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExtractor{err: tc.err}
			r := newTestRouter(ex, nil, nil, nil, extraction.ExtractRouteLimits())
			rec := doJSON(r, http.MethodPost, "/api/extract/youtube", `{"url":"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`)
			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.code, body.Error.Code)
			if tc.code == "internal_error" {
				assert.NotContains(t, body.Error.Message, "kaput")
			}
		})
	}
}

func TestFormats(t *testing.T) {
	r := newTestRouter(&fakeExtractor{}, nil, nil, nil, extraction.ExtractRouteLimits())
	rec := doJSON(r, http.MethodGet, "/api/extract/formats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maxBytes":15728640`)
}

func TestGenerateCreatesAndReplays(t *testing.T) {
	id := uuid.New()
	row := &types.Assessment{
		ID:            id,
		Title:         "YouTube Assessment (dQw4w9Wg)",
		Type:          "MCQ",
		Difficulty:    "hard",
		QuestionCount: 1,
		Metadata:      []byte(`{"videoId":"dQw4w9WgXcQ"}`),
	}
	questions := []assessment.Question{{ID: "q1", Type: "MCQ", Question: "?", Options: []string{"a", "b"}, CorrectAnswer: "a"}}

	var got assessment.Request
	seen := map[string]bool{}
	svc := &fakeAssessments{generate: func(_ context.Context, req assessment.Request) (*assessment.Outcome, error) {
		got = req
		replayed := seen[req.IdempotencyKey]
		seen[req.IdempotencyKey] = true
		return &assessment.Outcome{Assessment: row, Questions: questions, Replayed: replayed}, nil
	}}
	r := newTestRouter(&fakeExtractor{}, svc, nil, nil, extraction.DefaultLimits())

	body := `{"videoUrl":"https://youtu.be/dQw4w9WgXcQ","numberOfQuestions":"3","difficulty":"HARD","type":"mcq"}`
	rec := doJSON(r, http.MethodPost, "/api/assessments/generate/youtube", body, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, id.String(), resp.AssessmentID)
	assert.Equal(t, "dQw4w9WgXcQ", resp.VideoID)
	assert.Equal(t, 1, resp.Metadata.QuestionCount)
	assert.Len(t, resp.Assessment, 1)
	assert.False(t, resp.Replayed)

	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, 3, got.Options.NumberOfQuestions)
	assert.Equal(t, assessment.Difficulty("HARD"), got.Options.Difficulty)
	assert.Nil(t, got.DeleteAfter)

	rec = doJSON(r, http.MethodPost, "/api/assessments/generate/youtube", body, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Replayed)
}

func TestGenerateDeleteAfterProcessing(t *testing.T) {
	var got assessment.Request
	svc := &fakeAssessments{generate: func(_ context.Context, req assessment.Request) (*assessment.Outcome, error) {
		got = req
		return &assessment.Outcome{Assessment: &types.Assessment{ID: uuid.New()}}, nil
	}}
	r := newTestRouter(&fakeExtractor{}, svc, nil, nil, extraction.DefaultLimits())

	rec := doJSON(r, http.MethodPost, "/api/assessments/generate/youtube",
		`{"url":"https://youtu.be/dQw4w9WgXcQ","deleteAfterProcessing":"true","cloudinaryPublicId":"uploads/abc","resourceType":"video"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, got.DeleteAfter)
	assert.Equal(t, "uploads/abc", got.DeleteAfter.PublicID)
	assert.Equal(t, "video", got.DeleteAfter.ResourceType)
}

func TestGenerateRejectsBadCount(t *testing.T) {
	svc := &fakeAssessments{generate: func(context.Context, assessment.Request) (*assessment.Outcome, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	r := newTestRouter(&fakeExtractor{}, svc, nil, nil, extraction.DefaultLimits())

	rec := doJSON(r, http.MethodPost, "/api/assessments/generate/youtube", `{"url":"https://youtu.be/dQw4w9WgXcQ","numberOfQuestions":"many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_options", decodeError(t, rec).Error.Code)
}

func TestGenerateMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{assessment.ErrInvalidOptions, http.StatusBadRequest},
		{assessment.ErrMalformedOutput, http.StatusBadGateway},
		{extraction.Timeout("generation", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		svc := &fakeAssessments{generate: func(context.Context, assessment.Request) (*assessment.Outcome, error) {
			return nil, tc.err
		}}
		r := newTestRouter(&fakeExtractor{}, svc, nil, nil, extraction.DefaultLimits())
		rec := doJSON(r, http.MethodPost, "/api/assessments/generate/youtube", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestGetAndListAssessments(t *testing.T) {
	id := uuid.New()
	var gotLimit int
	svc := &fakeAssessments{
		get: func(_ context.Context, want uuid.UUID) (*types.Assessment, error) {
			if want == id {
				return &types.Assessment{ID: id, Title: "t"}, nil
			}
			return nil, assessment.ErrNotFound
		},
		list: func(_ context.Context, limit int) ([]*types.Assessment, error) {
			gotLimit = limit
			return []*types.Assessment{{ID: id}}, nil
		},
	}
	r := newTestRouter(&fakeExtractor{}, svc, nil, nil, extraction.DefaultLimits())

	rec := doJSON(r, http.MethodGet, "/api/assessments/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id.String())

	rec = doJSON(r, http.MethodGet, "/api/assessments/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/assessments/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/assessments?limit=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, gotLimit)

	rec = doJSON(r, http.MethodGet, "/api/assessments?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobsSubmitAndStatus(t *testing.T) {
	jobs := &fakeJobs{status: map[string]*extractjob.Status{
		"extract-1": {ID: "extract-1", State: extractjob.StateSucceeded, Result: sampleResult()},
	}}
	r := newTestRouter(&fakeExtractor{}, nil, jobs, nil, extraction.DefaultLimits())

	rec := doJSON(r, http.MethodPost, "/api/extract/jobs", `{"kind":"remote_document_url","url":" https://cdn.example/a.pdf ","forceOcr":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, jobs.submitted, 1)
	assert.Equal(t, extraction.SourceRemoteDocumentURL, jobs.submitted[0].Kind)
	assert.Equal(t, "https://cdn.example/a.pdf", jobs.submitted[0].URL)
	assert.True(t, jobs.submitted[0].ForceOCR)

	rec = doJSON(r, http.MethodPost, "/api/extract/jobs", `{"kind":"uploaded_document","url":"https://cdn.example/a.pdf"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, jobs.submitted, 1)

	rec = doJSON(r, http.MethodGet, "/api/extract/jobs/extract-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"succeeded"`)

	rec = doJSON(r, http.MethodGet, "/api/extract/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageUploadAndDelete(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(&fakeExtractor{}, nil, nil, store, extraction.DefaultLimits())

	rec := doUpload(r, "/api/storage/upload", "file", "talk.mp3", "", []byte("ID3-audio"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, store.uploaded, 1)
	assert.Equal(t, "audio/mpeg", store.uploaded[0].ContentType)
	assert.Equal(t, objectstore.ResourceVideo, store.uploaded[0].ResourceType)
	assert.Equal(t, []byte("ID3-audio"), store.body)
	assert.Contains(t, rec.Body.String(), `"publicId":"up/1"`)

	rec = doUpload(r, "/api/storage/upload", "file", "evil.exe", "application/x-msdownload", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, store.uploaded, 1)

	rec = doJSON(r, http.MethodDelete, "/api/storage/raw/folder/doc.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"raw:folder/doc.pdf"}, store.destroyed)

	rec = doJSON(r, http.MethodDelete, "/api/storage/bogus/x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadiness(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"db":    PingFunc(func(context.Context) error { return nil }),
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	r := gin.New()
	r.GET("/healthcheck", h.HealthCheck)
	r.GET("/readyz", h.Ready)

	rec := doJSON(r, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)
}
