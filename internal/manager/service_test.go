package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkhayef/eventcheckin/internal/storage"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/password"
)

type fakeStore struct {
	managers map[int64]*Manager
	nextID   int64
}

func (f *fakeStore) Create(ctx context.Context, req *CreateManagerRequest, hash string) (*Manager, error) {
	f.nextID++
	m := &Manager{ID: f.nextID, Fullname: req.Fullname, IsAdmin: req.IsAdmin, Username: req.Username, PasswordHash: hash, CreatedAt: time.Now()}
	f.managers[m.ID] = m
	return m, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*Manager, error) { return f.managers[id], nil }

func (f *fakeStore) GetByUsername(ctx context.Context, username string) (*Manager, error) {
	for _, m := range f.managers {
		if m.Username == username {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) { return len(f.managers), nil }

func (f *fakeStore) Search(ctx context.Context, keyword string, limit, offset int) ([]*Manager, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, req *UpdateManagerRequest) (*Manager, error) {
	m, ok := f.managers[id]
	if !ok {
		return nil, nil
	}
	if req.Fullname != nil {
		m.Fullname = *req.Fullname
	}
	if req.IsAdmin != nil {
		m.IsAdmin = *req.IsAdmin
	}
	return m, nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	f.managers[id].PasswordHash = hash
	return nil
}

func (f *fakeStore) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	f.managers[id].AvatarImage = &avatar
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	store := &fakeStore{managers: map[int64]*Manager{}}
	svc := NewService(store, password.NewBcryptHasher(bcrypt.MinCost), storage.NewUploader(blobs, zap.NewNop()),
		AvatarOptions{BaseURL: "/static/avatars", LimitKB: 64}, zap.NewNop())
	return svc, store
}

func TestEnsureAdmin_OnlyWhenEmpty(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "rootadmin", "secret1"))
	require.Len(t, store.managers, 1)
	assert.True(t, store.managers[1].IsAdmin)

	require.NoError(t, svc.EnsureAdmin(ctx, "another", "secret1"))
	assert.Len(t, store.managers, 1)

	creds, err := svc.Credentials(ctx, "rootadmin")
	require.NoError(t, err)
	assert.Equal(t, middleware.RoleAdmin, creds.Role)
}

func TestUpdate_OnlyAdminsToggleAdminFlag(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &CreateManagerRequest{Fullname: "Pham Van D", Username: "phamvand", Password: "secret1"})
	require.NoError(t, err)

	yes := true
	updated, err := svc.Update(ctx, middleware.Principal{ID: m.ID, Role: middleware.RoleManager}, m.ID, &UpdateManagerRequest{IsAdmin: &yes})
	require.NoError(t, err)
	assert.False(t, updated.IsAdmin)

	updated, err = svc.Update(ctx, middleware.Principal{ID: 99, Role: middleware.RoleAdmin}, m.ID, &UpdateManagerRequest{IsAdmin: &yes})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)

	_, err = svc.Update(ctx, middleware.Principal{Role: middleware.RoleAdmin}, 404, &UpdateManagerRequest{})
	assert.ErrorIs(t, err, ErrManagerNotFound)
}

func TestPasswords(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &CreateManagerRequest{Fullname: "Pham Van D", Username: "phamvand", Password: "secret1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, m.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "secret2"}), ErrWrongOldPassword)
	require.NoError(t, svc.SetPassword(ctx, m.ID, "forced1"))
	assert.True(t, svc.hasher.Compare(store.managers[m.ID].PasswordHash, "forced1"))
	assert.ErrorIs(t, svc.SetPassword(ctx, 404, "forced1"), ErrManagerNotFound)
}

func TestUpdateAvatar(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &CreateManagerRequest{Fullname: "Pham Van D", Username: "phamvand", Password: "secret1"})
	require.NoError(t, err)

	url, err := svc.UpdateAvatar(ctx, m.ID, []byte("img"))
	require.NoError(t, err)
	assert.Contains(t, url, "/static/avatars/manager_1.")
	assert.Equal(t, url, *store.managers[m.ID].AvatarImage)

	_, err = svc.UpdateAvatar(ctx, m.ID, nil)
	assert.Error(t, err)
}
