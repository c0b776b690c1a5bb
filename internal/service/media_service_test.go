package service

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
	"github.com/koyo-learn/koyo-api/pkg/storage"
)

func newMediaService(t *testing.T, maxBytes int64) *MediaService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewMediaService(store, MediaConfig{
		PublicBaseURL:    "http://localhost:8080/media",
		MaxFileSizeBytes: maxBytes,
	}, validator.New(), zap.NewNop())
}

func imageDataURI(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestMediaUploadImage(t *testing.T) {
	svc := newMediaService(t, 0)

	asset, err := svc.Upload(context.Background(), MediaKindImage, models.UploadRequest{
		File:   imageDataURI("fake png bytes"),
		Folder: "thumbnails",
	})
	require.NoError(t, err)
	assert.Equal(t, "png", asset.Format)
	assert.True(t, strings.HasPrefix(asset.URL, "http://localhost:8080/media/thumbnails/"))
	assert.True(t, strings.HasPrefix(asset.PublicID, "thumbnails/"))
}

func TestMediaUploadRejectsWrongKind(t *testing.T) {
	svc := newMediaService(t, 0)

	_, err := svc.Upload(context.Background(), MediaKindVideo, models.UploadRequest{File: imageDataURI("x")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadUserInput.Code, appErrors.FromError(err).Code)
}

func TestMediaUploadRejectsNonDataURI(t *testing.T) {
	svc := newMediaService(t, 0)

	_, err := svc.Upload(context.Background(), MediaKindImage, models.UploadRequest{File: "http://example.com/cat.png"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadUserInput.Code, appErrors.FromError(err).Code)
}

func TestMediaUploadRejectsOversizedFile(t *testing.T) {
	svc := newMediaService(t, 4)

	_, err := svc.Upload(context.Background(), MediaKindImage, models.UploadRequest{File: imageDataURI("more than four bytes")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadUserInput.Code, appErrors.FromError(err).Code)
}

func TestMediaUploadRejectsBadBase64(t *testing.T) {
	svc := newMediaService(t, 0)

	_, err := svc.Upload(context.Background(), MediaKindImage, models.UploadRequest{File: "data:image/png;base64,!!not-base64!!"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadUserInput.Code, appErrors.FromError(err).Code)
}

func TestMediaOpenRoundTrip(t *testing.T) {
	svc := newMediaService(t, 0)

	asset, err := svc.Upload(context.Background(), MediaKindImage, models.UploadRequest{
		File:   imageDataURI("round trip"),
		Folder: "thumbnails",
	})
	require.NoError(t, err)

	name := strings.TrimPrefix(asset.PublicID, "thumbnails/")
	file, contentType, err := svc.Open(context.Background(), "thumbnails", name)
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "round trip", string(data))
	assert.Equal(t, "image/png", contentType)
}

func TestMediaOpenUnknownFile(t *testing.T) {
	svc := newMediaService(t, 0)

	_, _, err := svc.Open(context.Background(), "thumbnails", "ghost.png")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
