package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/password"
)

type memorySource map[string]*Credentials

func (m memorySource) Credentials(ctx context.Context, username string) (*Credentials, error) {
	return m[username], nil
}

type failingSource struct{}

func (failingSource) Credentials(ctx context.Context, username string) (*Credentials, error) {
	return nil, errors.New("connection reset")
}

func mustHash(t *testing.T, h password.Hasher, plain string) string {
	t.Helper()
	hash, err := h.Hash(plain)
	require.NoError(t, err)
	return hash
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	token, expiresAt, err := tm.Issue(middleware.Principal{ID: 42, Fullname: "Nguyen Van A", Role: middleware.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	p, err := tm.ParsePrincipal(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, middleware.RoleAdmin, p.Role)
	assert.Equal(t, "Nguyen Van A", p.Fullname)
}

func TestTokenManager_RejectsExpiredAndForeign(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, _, err := tm.Issue(middleware.Principal{ID: 1, Role: middleware.RoleStudent})
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParsePrincipal(token)
	assert.Error(t, err)

	other := NewTokenManager("other-secret", time.Minute)
	_, err = other.ParsePrincipal(token)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ID: 1, Role: middleware.RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewTokenManager("secret", time.Minute).ParsePrincipal(none)
	assert.Error(t, err)
}

func TestLogin_ManagersBeforeStudents(t *testing.T) {
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	managers := memorySource{"shared": {ID: 1, Role: middleware.RoleManager, PasswordHash: mustHash(t, hasher, "manager-pw")}}
	students := memorySource{
		"shared":  {ID: 9, Role: middleware.RoleStudent, PasswordHash: mustHash(t, hasher, "student-pw")},
		"student": {ID: 10, Role: middleware.RoleStudent, PasswordHash: mustHash(t, hasher, "student-pw")},
		"blocked": {ID: 11, Role: middleware.RoleStudent, PasswordHash: mustHash(t, hasher, "student-pw"), Blocked: true},
	}
	tm := NewTokenManager("secret", time.Hour)
	svc := NewService(tm, hasher, zap.NewNop(), managers, students)
	ctx := context.Background()

	resp, err := svc.Login(ctx, "shared", "manager-pw")
	require.NoError(t, err)
	assert.Equal(t, middleware.RoleManager, resp.Role)

	_, err = svc.Login(ctx, "shared", "student-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err = svc.Login(ctx, "student", "student-pw")
	require.NoError(t, err)
	p, err := tm.ParsePrincipal(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ID)

	_, err = svc.Login(ctx, "blocked", "student-pw")
	assert.ErrorIs(t, err, ErrAccountBlocked)

	_, err = svc.Login(ctx, "nobody", "x")
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestLogin_SourceErrorPropagates(t *testing.T) {
	svc := NewService(NewTokenManager("s", time.Hour), password.NewBcryptHasher(bcrypt.MinCost), zap.NewNop(), failingSource{})

	_, err := svc.Login(context.Background(), "x", "y")
	assert.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}
