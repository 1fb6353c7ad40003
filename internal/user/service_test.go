package user

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkhayef/eventcheckin/internal/storage"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/password"
)

type fakeStore struct {
	users     map[int64]*User
	nextID    int64
	avatarErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int64]*User{}}
}

func (f *fakeStore) Create(ctx context.Context, req *CreateUserRequest, hash string) (*User, error) {
	f.nextID++
	u := &User{
		ID:           f.nextID,
		Fullname:     req.Fullname,
		DateOfBirth:  req.birth,
		StudentID:    req.StudentID,
		Email:        req.Email,
		Phone:        req.Phone,
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return f.users[id], nil
}

func (f *fakeStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Search(ctx context.Context, keyword string, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (f *fakeStore) TakenFields(ctx context.Context, excludeID int64, values map[string]string) ([]string, error) {
	var taken []string
	for _, u := range f.users {
		if u.ID == excludeID {
			continue
		}
		if v, ok := values["student_id"]; ok && u.StudentID == v {
			taken = append(taken, "student_id")
		}
		if v, ok := values["phone"]; ok && u.Phone == v {
			taken = append(taken, "phone")
		}
		if v, ok := values["username"]; ok && u.Username == v {
			taken = append(taken, "username")
		}
	}
	return taken, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, req *ManagerUpdateUserRequest) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	if req.Fullname != nil {
		u.Fullname = *req.Fullname
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Block != nil {
		u.Block = *req.Block
	}
	return u, nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	f.users[id].PasswordHash = hash
	return nil
}

func (f *fakeStore) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	if f.avatarErr != nil {
		return f.avatarErr
	}
	f.users[id].AvatarImage = &avatar
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id int64) error {
	delete(f.users, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *storage.LocalStore) {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	store := newFakeStore()
	svc := NewService(store, password.NewBcryptHasher(bcrypt.MinCost), storage.NewUploader(blobs, zap.NewNop()),
		AvatarOptions{BaseURL: "/static/avatars", LimitKB: 64}, zap.NewNop())
	return svc, store, blobs
}

func validCreate() *CreateUserRequest {
	return &CreateUserRequest{
		Fullname:    "Tran Thi Binh",
		DateOfBirth: "2002-05-17",
		StudentID:   "102190001",
		Phone:       "0905123456",
		Username:    "binhtran",
		Password:    "secret1",
	}
}

func TestCreate_ValidatesAndHashes(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", store.users[u.ID].PasswordHash)

	bad := validCreate()
	bad.Phone = "abc"
	bad.DateOfBirth = "2999-01-01"
	_, err = svc.Create(ctx, bad)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "phone")
	assert.Contains(t, appErr.Fields, "date_of_birth")
}

func TestCreate_RejectsTakenFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	dup := validCreate()
	dup.StudentID = "102190002"
	_, err = svc.Create(ctx, dup)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.Validation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "phone")
	assert.Contains(t, appErr.Fields, "username")
	assert.NotContains(t, appErr.Fields, "student_id")
}

func TestUpdate_OwnValuesAreNotConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	phone := u.Phone
	name := "Tran Thi Binh Minh"
	updated, err := svc.Update(ctx, u.ID, &ManagerUpdateUserRequest{UpdateUserRequest: UpdateUserRequest{Phone: &phone, Fullname: &name}})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Fullname)

	_, err = svc.Update(ctx, 999, &ManagerUpdateUserRequest{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newsecret"})
	assert.ErrorIs(t, err, ErrWrongOldPassword)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, &ChangePasswordRequest{OldPassword: "secret1", NewPassword: "newsecret"}))

	creds, err := svc.Credentials(ctx, "binhtran")
	require.NoError(t, err)
	assert.Equal(t, middleware.RoleStudent, creds.Role)
	assert.True(t, svc.hasher.Compare(creds.PasswordHash, "newsecret"))

	assert.Error(t, svc.SetPassword(ctx, u.ID, "1"))
}

func TestUpdateAvatar_ReplacesOldFile(t *testing.T) {
	svc, store, blobs := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	first, err := svc.UpdateAvatar(ctx, u.ID, []byte("first"))
	require.NoError(t, err)
	assert.Contains(t, first, "/static/avatars/student_1.")

	second, err := svc.UpdateAvatar(ctx, u.ID, []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, second, *store.users[u.ID].AvatarImage)

	entries, err := os.ReadDir(filepath.Join(blobs.Root(), storage.AvatarDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(second), entries[0].Name())
}

func TestUpdateAvatar_DatabaseFailureKeepsOldAvatar(t *testing.T) {
	svc, store, blobs := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	first, err := svc.UpdateAvatar(ctx, u.ID, []byte("first"))
	require.NoError(t, err)

	store.avatarErr = assert.AnError
	_, err = svc.UpdateAvatar(ctx, u.ID, []byte("second"))
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(blobs.Root(), storage.AvatarDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(first), entries[0].Name())
}

func TestDelete_RemovesAvatar(t *testing.T) {
	svc, store, blobs := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	_, err = svc.UpdateAvatar(ctx, u.ID, []byte("img"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, u.ID))
	assert.Empty(t, store.users)

	entries, err := os.ReadDir(filepath.Join(blobs.Root(), storage.AvatarDir))
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, svc.Delete(ctx, u.ID), ErrUserNotFound)
}
