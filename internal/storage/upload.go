package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

const timestampLayout = "2006-01-02.15-04-05"

// AvatarDir is the blob directory served as static avatar files
const AvatarDir = "avatars"

// AvatarPath maps an avatar reference (file name or public URL) to its blob path
func AvatarPath(ref string) string {
	return path.Join(AvatarDir, path.Base(ref))
}

// Uploader writes a blob and then the database row referencing it, undoing
// the write when the row cannot be saved.
type Uploader struct {
	store  BlobStore
	logger *zap.Logger
}

// NewUploader creates an uploader on top of store
func NewUploader(store BlobStore, logger *zap.Logger) *Uploader {
	return &Uploader{store: store, logger: logger}
}

// Upload saves data at path, then calls persist. If persist fails the blob is
// deleted again and persist's error is returned. If the save fails persist is
// never called.
func (u *Uploader) Upload(ctx context.Context, path string, data []byte, persist func(ctx context.Context) error) error {
	if err := u.store.Save(ctx, path, data); err != nil {
		return err
	}

	if err := persist(ctx); err != nil {
		u.Discard(ctx, path)
		return err
	}
	return nil
}

// Replace uploads a new blob and, once persist has succeeded, removes oldPath.
// Failing to remove the old blob is logged only.
func (u *Uploader) Replace(ctx context.Context, path, oldPath string, data []byte, persist func(ctx context.Context) error) error {
	if err := u.Upload(ctx, path, data, persist); err != nil {
		return err
	}
	if oldPath != "" && oldPath != path {
		u.Discard(ctx, oldPath)
	}
	return nil
}

// Discard removes path, logging any failure
func (u *Uploader) Discard(ctx context.Context, path string) {
	if err := u.store.Delete(ctx, path); err != nil {
		u.logger.Warn("failed to delete stored file", zap.String("path", path), zap.Error(err))
	}
}

// NewFilename builds "<prefix>.<uuid>.<timestamp>.jpg"
func NewFilename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s.%s.%s.jpg", prefix, uuid.NewString(), now.Format(timestampLayout))
}

// ValidateImage rejects empty uploads and uploads over limitKB
func ValidateImage(data []byte, limitKB int) error {
	if len(data) == 0 {
		return apperr.Invalid(map[string]string{"file": "file is empty"})
	}
	if limitKB > 0 && len(data) > limitKB*1024 {
		return apperr.Invalid(map[string]string{"file": fmt.Sprintf("image must be smaller than %d KB", limitKB)})
	}
	return nil
}
