package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/assessgen-backend/internal/platform/gcp"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

type fakeCloudinary struct {
	uploadParams  uploader.UploadParams
	uploaded      []byte
	uploadResult  *uploader.UploadResult
	destroyParams uploader.DestroyParams
	destroyResult *uploader.DestroyResult
}

func (f *fakeCloudinary) Upload(_ context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploadParams = params
	if r, ok := file.(io.Reader); ok {
		f.uploaded, _ = io.ReadAll(r)
	}
	return f.uploadResult, nil
}

func (f *fakeCloudinary) Destroy(_ context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyParams = params
	return f.destroyResult, nil
}

func TestCloudinaryUploadPDFAddsDownloadURL(t *testing.T) {
	fake := &fakeCloudinary{uploadResult: &uploader.UploadResult{
		PublicID:     "assessgen/notes",
		SecureURL:    "https://res.cloudinary.com/demo/image/upload/v17/assessgen/notes.pdf",
		ResourceType: "image",
		Version:      17,
		Format:       "pdf",
		Bytes:        2048,
	}}
	store := newCloudinary(logger.Nop(), fake)

	res, err := store.UploadStream(context.Background(), strings.NewReader("%PDF-1.4"), UploadOptions{Folder: "assessgen", FileName: "notes.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "auto", fake.uploadParams.ResourceType)
	assert.Equal(t, "assessgen", fake.uploadParams.Folder)
	assert.Equal(t, []byte("%PDF-1.4"), fake.uploaded)
	assert.Equal(t, int64(17), res.Version)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/fl_attachment/v17/assessgen/notes.pdf", res.DownloadURL)
}

func TestCloudinaryUploadSurfacesAPIError(t *testing.T) {
	fake := &fakeCloudinary{uploadResult: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid Signature"}}}
	_, err := newCloudinary(logger.Nop(), fake).UploadStream(context.Background(), strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Signature")
}

func TestCloudinaryDestroy(t *testing.T) {
	fake := &fakeCloudinary{destroyResult: &uploader.DestroyResult{Result: "not found"}}
	store := newCloudinary(logger.Nop(), fake)

	require.NoError(t, store.Destroy(context.Background(), "assessgen/clip", "video"))
	assert.Equal(t, "video", fake.destroyParams.ResourceType)

	require.NoError(t, store.Destroy(context.Background(), "assessgen/img", ""))
	assert.Equal(t, "image", fake.destroyParams.ResourceType)

	fake.destroyResult = &uploader.DestroyResult{Result: "error"}
	assert.Error(t, store.Destroy(context.Background(), "assessgen/img", "image"))
	assert.Error(t, store.Destroy(context.Background(), " ", "image"))
}

func TestNewCloudinaryRequiresCredentials(t *testing.T) {
	_, err := NewCloudinary(logger.Nop(), CloudinaryConfig{CloudName: "demo"})
	assert.Error(t, err)
}

type fakeBucket struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBucket) Upload(_ context.Context, key string, r io.Reader, contentType string) (*gcp.ObjectAttrs, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return nil, err
	}
	b.objects[key] = buf.Bytes()
	b.types[key] = contentType
	return &gcp.ObjectAttrs{Size: n, ContentType: contentType, Generation: 42}, nil
}

func (b *fakeBucket) Delete(_ context.Context, key string) error {
	if _, ok := b.objects[key]; !ok {
		return nil
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) PublicURL(key string) string {
	return "https://storage.googleapis.com/uploads/" + key
}

func TestGCSUploadAndDestroy(t *testing.T) {
	b := newFakeBucket()
	store := NewGCS(logger.Nop(), b)

	res, err := store.UploadStream(context.Background(), strings.NewReader("audio"), UploadOptions{
		Folder:      "assessgen",
		FileName:    "Talk.MP3",
		ContentType: "audio/mpeg",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.PublicID, "assessgen/"))
	assert.True(t, strings.HasSuffix(res.PublicID, ".mp3"))
	assert.Equal(t, ResourceVideo, res.ResourceType)
	assert.Equal(t, int64(42), res.Version)
	assert.Equal(t, int64(5), res.Bytes)
	assert.Empty(t, res.DownloadURL)
	assert.Equal(t, "https://storage.googleapis.com/uploads/"+res.PublicID, res.SecureURL)

	require.NoError(t, store.Destroy(context.Background(), res.PublicID, res.ResourceType))
	assert.Empty(t, b.objects)
}

func TestGCSKeepsExplicitPublicID(t *testing.T) {
	b := newFakeBucket()
	res, err := NewGCS(logger.Nop(), b).UploadStream(context.Background(), strings.NewReader("%PDF"), UploadOptions{
		Folder:      "docs",
		PublicID:    "docs/syllabus.pdf",
		ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "docs/syllabus.pdf", res.PublicID)
	assert.Equal(t, ResourceRaw, res.ResourceType)
	assert.Equal(t, res.SecureURL, res.DownloadURL)
}

func TestResourceTypeFor(t *testing.T) {
	assert.Equal(t, ResourceVideo, ResourceTypeFor("video/mp4"))
	assert.Equal(t, ResourceVideo, ResourceTypeFor("audio/wav"))
	assert.Equal(t, ResourceImage, ResourceTypeFor("image/png"))
	assert.Equal(t, ResourceRaw, ResourceTypeFor("application/pdf"))
	assert.Equal(t, ResourceAuto, ResourceTypeFor(""))
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), logger.Nop(), Config{Provider: "s3"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
