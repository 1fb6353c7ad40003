package manager

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

var (
	ErrManagerNotFound  = apperr.New(apperr.NotFound, "manager not found")
	ErrWrongOldPassword = apperr.New(apperr.Validation, "old password is incorrect")
)

type Store interface {
	Create(ctx context.Context, req *CreateManagerRequest, passwordHash string) (*Manager, error)
	GetByID(ctx context.Context, id int64) (*Manager, error)
	GetByUsername(ctx context.Context, username string) (*Manager, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, keyword string, limit, offset int) ([]*Manager, int, error)
	Update(ctx context.Context, id int64, req *UpdateManagerRequest) (*Manager, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateAvatar(ctx context.Context, id int64, avatar string) error
}

type AvatarOptions struct {
	BaseURL string
	LimitKB int
}

type Service struct {
	store    Store
	hasher   password.Hasher
	uploader *storage.Uploader
	avatars  AvatarOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new manager service
func NewService(store Store, hasher password.Hasher, uploader *storage.Uploader, avatars AvatarOptions, logger *zap.Logger) *Service {
	return &Service{store: store, hasher: hasher, uploader: uploader, avatars: avatars, logger: logger, now: time.Now}
}

// Create adds a manager account
func (s *Service) Create(ctx context.Context, req *CreateManagerRequest) (*Manager, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	m, err := s.store.Create(ctx, req, hash)
	if err != nil {
		return nil, err
	}
	s.logger.Info("manager created", zap.Int64("manager_id", m.ID), zap.Bool("is_admin", m.IsAdmin))
	return m, nil
}

// EnsureAdmin creates an admin account when no manager exists yet
func (s *Service) EnsureAdmin(ctx context.Context, username, plain string) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = s.Create(ctx, &CreateManagerRequest{
		Fullname: "Administrator",
		IsAdmin:  true,
		Username: username,
		Password: plain,
	})
	return err
}

// GetByID retrieves a manager by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Manager, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrManagerNotFound
	}
	return m, nil
}

// Search retrieves a paginated list of managers
func (s *Service) Search(ctx context.Context, keyword string, page, perPage int) ([]*Manager, int, error) {
	page, perPage = response.Normalize(page, perPage)
	return s.store.Search(ctx, keyword, perPage, (page-1)*perPage)
}

// Update changes a manager's profile. Only admins may toggle is_admin.
func (s *Service) Update(ctx context.Context, actor middleware.Principal, id int64, req *UpdateManagerRequest) (*Manager, error) {
	if actor.Role != middleware.RoleAdmin {
		req.IsAdmin = nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m, err := s.store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrManagerNotFound
	}
	return m, nil
}

// ChangePassword replaces the password after verifying the old one
func (s *Service) ChangePassword(ctx context.Context, id int64, req *ChangePasswordRequest) error {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(m.PasswordHash, req.OldPassword) {
		return ErrWrongOldPassword
	}
	return s.setPassword(ctx, id, req.NewPassword)
}

// SetPassword is the admin override; the old password is not required
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

// UpdateAvatar stores a new avatar and returns its public URL
func (s *Service) UpdateAvatar(ctx context.Context, id int64, data []byte) (string, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := storage.ValidateImage(data, s.avatars.LimitKB); err != nil {
		return "", err
	}

	filename := storage.NewFilename(fmt.Sprintf("manager_%d", id), s.now())
	url := s.avatars.BaseURL + "/" + filename

	var old string
	if m.AvatarImage != nil && *m.AvatarImage != "" {
		old = storage.AvatarPath(*m.AvatarImage)
	}

	err = s.uploader.Replace(ctx, storage.AvatarPath(filename), old, data, func(ctx context.Context) error {
		return s.store.UpdateAvatar(ctx, id, url)
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// Credentials implements auth.CredentialSource for the manager pool
func (s *Service) Credentials(ctx context.Context, username string) (*auth.Credentials, error) {
	m, err := s.store.GetByUsername(ctx, username)
	if err != nil || m == nil {
		return nil, err
	}
	role := middleware.RoleManager
	if m.IsAdmin {
		role = middleware.RoleAdmin
	}
	return &auth.Credentials{ID: m.ID, Fullname: m.Fullname, Role: role, PasswordHash: m.PasswordHash}, nil
}
