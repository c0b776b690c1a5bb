package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

// MediaKind restricts an upload to a media class.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type mediaStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
}

// MediaConfig defines upload limits and URL construction.
type MediaConfig struct {
	PublicBaseURL    string
	MaxFileSizeBytes int64
	DefaultFolder    string
}

// MediaService stores data-URI encoded uploads on the configured storage
// backend and serves them back.
type MediaService struct {
	store     mediaStore
	config    MediaConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMediaService constructs a MediaService instance.
func NewMediaService(store mediaStore, config MediaConfig, validate *validator.Validate, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultFolder == "" {
		config.DefaultFolder = "uploads"
	}
	return &MediaService{store: store, config: config, validator: validate, logger: logger}
}

// Upload decodes a data-URI payload of the expected media kind and stores
// it. The payload must start with data:image/ or data:video/ to match the
// endpoint used.
func (s *MediaService) Upload(ctx context.Context, kind MediaKind, req models.UploadRequest) (*models.MediaAsset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	mediaType, data, err := parseDataURI(req.File)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadUserInput, err.Error())
	}
	if !strings.HasPrefix(mediaType, string(kind)+"/") {
		return nil, appErrors.Clone(appErrors.ErrBadUserInput, fmt.Sprintf("file must be a data URI of type %s/*", kind))
	}
	if s.config.MaxFileSizeBytes > 0 && int64(len(data)) > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrBadUserInput, "file exceeds the maximum upload size")
	}

	format := strings.TrimPrefix(mediaType, string(kind)+"/")
	ext := extensionFor(mediaType, format)

	folder := sanitizeFolder(req.Folder)
	if folder == "" {
		folder = s.config.DefaultFolder
	}
	name := path.Join(folder, uuid.NewString()+ext)

	stored, err := s.store.Save(name, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpload.Code, appErrors.ErrUpload.Status, "failed to store upload")
	}

	s.logger.Info("media stored", zap.String("path", stored), zap.String("type", mediaType), zap.Int("bytes", len(data)))
	return &models.MediaAsset{
		URL:      strings.TrimSuffix(s.config.PublicBaseURL, "/") + "/" + stored,
		PublicID: stored,
		Format:   format,
	}, nil
}

// Open returns a handle to a stored media file together with its content
// type, inferred from the file extension.
func (s *MediaService) Open(ctx context.Context, folder, name string) (*os.File, string, error) {
	rel := path.Join(sanitizeFolder(folder), path.Base(name))
	file, err := s.store.Open(rel)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		// resolve errors and missing files both land here via the store
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return file, contentType, nil
}

// parseDataURI splits a data:<mediatype>;base64,<payload> string into its
// media type and decoded bytes.
func parseDataURI(raw string) (string, []byte, error) {
	if !strings.HasPrefix(raw, "data:") {
		return "", nil, fmt.Errorf("file must be a data URI")
	}
	head, payload, found := strings.Cut(raw[len("data:"):], ",")
	if !found {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mediaType, _, _ := strings.Cut(head, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return "", nil, fmt.Errorf("data URI is missing a media type")
	}
	if !strings.Contains(head, ";base64") {
		return "", nil, fmt.Errorf("data URI must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload")
	}
	return mediaType, data, nil
}

func extensionFor(mediaType, format string) string {
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return "." + format
}

// sanitizeFolder keeps folder names to a single flat path segment.
func sanitizeFolder(folder string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" || strings.ContainsAny(folder, "./\\") {
		return ""
	}
	return folder
}
