package user

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/internal/auth"
	"github.com/fkhayef/eventcheckin/internal/storage"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/password"
	"github.com/fkhayef/eventcheckin/pkg/response"
	"github.com/fkhayef/eventcheckin/pkg/validate"
)

// Common errors
var (
	ErrUserNotFound     = apperr.New(apperr.NotFound, "user not found")
	ErrWrongOldPassword = apperr.New(apperr.Validation, "old password is incorrect")
)

// Store is the persistence the user service depends on
type Store interface {
	Create(ctx context.Context, req *CreateUserRequest, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Search(ctx context.Context, keyword string, limit, offset int) ([]*User, int, error)
	TakenFields(ctx context.Context, excludeID int64, values map[string]string) ([]string, error)
	Update(ctx context.Context, id int64, req *ManagerUpdateUserRequest) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateAvatar(ctx context.Context, id int64, avatar string) error
	Delete(ctx context.Context, id int64) error
}

// AvatarOptions configures avatar uploads
type AvatarOptions struct {
	BaseURL string
	LimitKB int
}

// Service handles student account business logic
type Service struct {
	store    Store
	hasher   password.Hasher
	uploader *storage.Uploader
	avatars  AvatarOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new user service
func NewService(store Store, hasher password.Hasher, uploader *storage.Uploader, avatars AvatarOptions, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		uploader: uploader,
		avatars:  avatars,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new student account
func (s *Service) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, 0, &req.StudentID, &req.Phone, &req.Username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.store.Create(ctx, req, hash)
	if err != nil {
		return nil, err
	}
	s.logger.Info("student created", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// GetByID retrieves a user by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Search retrieves a paginated list of users
func (s *Service) Search(ctx context.Context, keyword string, page, perPage int) ([]*User, int, error) {
	page, perPage = response.Normalize(page, perPage)
	offset := (page - 1) * perPage
	return s.store.Search(ctx, keyword, perPage, offset)
}

// Update changes profile fields. Staff requests may also change verification
// flags, block and note.
func (s *Service) Update(ctx context.Context, id int64, req *ManagerUpdateUserRequest) (*User, error) {
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, id, req.StudentID, req.Phone, req.Username); err != nil {
		return nil, err
	}

	u, err := s.store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ChangePassword replaces the password after verifying the old one
func (s *Service) ChangePassword(ctx context.Context, id int64, req *ChangePasswordRequest) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(u.PasswordHash, req.OldPassword) {
		return ErrWrongOldPassword
	}
	return s.setPassword(ctx, id, req.NewPassword)
}

// SetPassword replaces the password without verifying the old one
func (s *Service) SetPassword(ctx context.Context, id int64, newPassword string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.setPassword(ctx, id, newPassword)
}

func (s *Service) setPassword(ctx context.Context, id int64, newPassword string) error {
	if msg := validate.Password(newPassword); msg != "" {
		return apperr.Invalid(map[string]string{"new_password": msg})
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.UpdatePassword(ctx, id, hash)
}

// UpdateAvatar stores a new avatar and returns its public URL. The previous
// avatar file is removed only after the new reference is saved.
func (s *Service) UpdateAvatar(ctx context.Context, id int64, data []byte) (string, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := storage.ValidateImage(data, s.avatars.LimitKB); err != nil {
		return "", err
	}

	filename := storage.NewFilename(fmt.Sprintf("student_%d", id), s.now())
	url := s.avatars.BaseURL + "/" + filename

	var old string
	if u.AvatarImage != nil && *u.AvatarImage != "" {
		old = storage.AvatarPath(*u.AvatarImage)
	}

	err = s.uploader.Replace(ctx, storage.AvatarPath(filename), old, data, func(ctx context.Context) error {
		return s.store.UpdateAvatar(ctx, id, url)
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// Delete removes a student together with everything that references them
func (s *Service) Delete(ctx context.Context, id int64) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if u.AvatarImage != nil && *u.AvatarImage != "" {
		s.uploader.Discard(ctx, storage.AvatarPath(*u.AvatarImage))
	}
	s.logger.Info("student deleted", zap.Int64("user_id", id))
	return nil
}

// Credentials implements auth.CredentialSource for the student pool
func (s *Service) Credentials(ctx context.Context, username string) (*auth.Credentials, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil || u == nil {
		return nil, err
	}
	return &auth.Credentials{
		ID:           u.ID,
		Fullname:     u.Fullname,
		Role:         middleware.RoleStudent,
		PasswordHash: u.PasswordHash,
		Blocked:      u.Block,
	}, nil
}

func (s *Service) checkUnique(ctx context.Context, excludeID int64, studentID, phone, username *string) error {
	values := map[string]string{}
	if studentID != nil {
		values["student_id"] = *studentID
	}
	if phone != nil {
		values["phone"] = *phone
	}
	if username != nil {
		values["username"] = *username
	}

	taken, err := s.store.TakenFields(ctx, excludeID, values)
	if err != nil {
		return err
	}
	if len(taken) == 0 {
		return nil
	}
	errs := validate.Errors{}
	for _, field := range taken {
		errs.Check(field, field+" is already in use")
	}
	return errs.Err()
}

func takenError(field string) error {
	if field == "" {
		return apperr.New(apperr.Validation, "account details are already in use")
	}
	return apperr.Invalid(map[string]string{field: field + " is already in use"})
}
