package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/findcamp/backend/internal/storage"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileTooLarge      = errors.New("file exceeds the maximum allowed size")
)

// UploadRules constrain one upload call site.
type UploadRules struct {
	AllowedExtensions []string
	// MaxSize in bytes; zero means no per-file cap beyond the server body limit.
	MaxSize int64
}

var (
	RegionImageRules  = UploadRules{AllowedExtensions: []string{".jpeg", ".png", ".jpg"}, MaxSize: 2 << 20}
	CountryFlagRules  = UploadRules{AllowedExtensions: []string{".jpeg", ".png", ".jpg", ".gif"}, MaxSize: 2 << 20}
	ProfileImageRules = UploadRules{AllowedExtensions: []string{".jpeg", ".png", ".jpg"}}
)

// UploadService keeps stored blobs and the records referencing them
// consistent. Writers stage a blob first, link it from the record, and
// discard the staged blob if the record write fails, so a readable record
// never points at a missing blob.
type UploadService struct {
	Store storage.BlobStore
}

func NewUploadService(store storage.BlobStore) *UploadService {
	return &UploadService{Store: store}
}

// Stage validates the uploaded file against rules and stores it under a
// fresh collision-resistant key. The returned key is the pending-blob key:
// the caller must either persist a record referencing it or Discard it.
func (s *UploadService) Stage(ctx context.Context, bucket string, fileHeader *multipart.FileHeader, rules UploadRules) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !extensionAllowed(ext, rules.AllowedExtensions) {
		return "", ErrUnsupportedFormat
	}
	if rules.MaxSize > 0 && fileHeader.Size > rules.MaxSize {
		return "", ErrFileTooLarge
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed opening uploaded file: %w", err)
	}
	defer stream.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%d_%s%s", time.Now().Unix(), uuid.New().String(), ext)
	if err := s.Store.Put(ctx, bucket, key, stream, fileHeader.Size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Discard deletes a blob best-effort. Used both to compensate a failed
// record write and to drop a replaced blob after a successful one; a delete
// failure only leaves an orphaned blob, so it is logged and swallowed.
func (s *UploadService) Discard(ctx context.Context, bucket, key string) {
	if key == "" {
		return
	}
	if err := s.Store.Delete(ctx, bucket, key); err != nil {
		logger.Warn("blob_discard_failed", map[string]interface{}{
			"bucket": bucket,
			"key":    key,
			"error":  err.Error(),
		})
	}
}

func (s *UploadService) URL(bucket string, key *string) string {
	if key == nil || *key == "" {
		return ""
	}
	return s.Store.PublicURL(bucket, *key)
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, candidate := range allowed {
		if ext == candidate {
			return true
		}
	}
	return false
}
