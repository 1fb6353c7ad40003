package identityimage

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/internal/storage"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

const identityDir = "identity"

// Common errors
var (
	ErrUserNotFound  = apperr.New(apperr.NotFound, "user not found")
	ErrImageNotFound = apperr.New(apperr.NotFound, "identity image not found")
	ErrNotOwner      = apperr.New(apperr.Unauthorized, "this identity image belongs to another user")
)

// Store is the persistence the identity image service depends on
type Store interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, userID int64, path string) (*IdentityImage, error)
	GetByID(ctx context.Context, id int64) (*IdentityImage, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*IdentityImage, int, error)
	SetApprove(ctx context.Context, id int64, approve bool) (*IdentityImage, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Filter narrows identity image listings
type Filter struct {
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// Service handles identity image uploads and review
type Service struct {
	store    Store
	blobs    storage.BlobStore
	uploader *storage.Uploader
	limitKB  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new identity image service. uploader must write to
// blobs.
func NewService(store Store, blobs storage.BlobStore, uploader *storage.Uploader, limitKB int, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		blobs:    blobs,
		uploader: uploader,
		limitKB:  limitKB,
		logger:   logger,
		now:      time.Now,
	}
}

// Add stores a new identity image for userID
func (s *Service) Add(ctx context.Context, userID int64, data []byte) (*IdentityImage, error) {
	ok, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	if err := storage.ValidateImage(data, s.limitKB); err != nil {
		return nil, err
	}

	name := storage.NewFilename(fmt.Sprintf("student_%d", userID), s.now())
	blob := path.Join(identityDir, fmt.Sprint(userID), name)

	var img *IdentityImage
	err = s.uploader.Upload(ctx, blob, data, func(ctx context.Context) error {
		img, err = s.store.Create(ctx, userID, blob)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity image added", zap.Int64("image_id", img.ID), zap.Int64("user_id", userID))
	return img, nil
}

// List retrieves a paginated list of identity images
func (s *Service) List(ctx context.Context, filter Filter, page, perPage int) ([]*IdentityImage, int, error) {
	page, perPage = response.Normalize(page, perPage)
	return s.store.List(ctx, filter, perPage, (page-1)*perPage)
}

// get loads an image visible to p; students only see their own
func (s *Service) get(ctx context.Context, id int64, p middleware.Principal) (*IdentityImage, error) {
	img, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrImageNotFound
	}
	if !p.IsStaff() && img.UserID != p.ID {
		return nil, ErrNotOwner
	}
	return img, nil
}

// Read returns an image with its file contents
func (s *Service) Read(ctx context.Context, id int64, p middleware.Principal) (*IdentityImage, []byte, error) {
	img, err := s.get(ctx, id, p)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Read(ctx, img.Path)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

// Remove deletes the row, then the file. A file that cannot be deleted is
// only logged.
func (s *Service) Remove(ctx context.Context, id int64, p middleware.Principal) error {
	img, err := s.get(ctx, id, p)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrImageNotFound
	}
	s.uploader.Discard(ctx, img.Path)

	s.logger.Info("identity image removed", zap.Int64("image_id", id), zap.Int64("by", p.ID))
	return nil
}

// Approve marks an image as verified
func (s *Service) Approve(ctx context.Context, id int64) (*IdentityImage, error) {
	return s.setApprove(ctx, id, true)
}

// Reject clears the verified flag
func (s *Service) Reject(ctx context.Context, id int64) (*IdentityImage, error) {
	return s.setApprove(ctx, id, false)
}

func (s *Service) setApprove(ctx context.Context, id int64, approve bool) (*IdentityImage, error) {
	img, err := s.store.SetApprove(ctx, id, approve)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrImageNotFound
	}
	s.logger.Info("identity image reviewed", zap.Int64("image_id", id), zap.Bool("approve", approve))
	return img, nil
}
