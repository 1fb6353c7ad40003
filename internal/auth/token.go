package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fkhayef/eventcheckin/pkg/middleware"
)

// Claims carried by an access token
type Claims struct {
	ID       int64           `json:"id"`
	Fullname string          `json:"fullname"`
	Role     middleware.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the given principal
func (m *TokenManager) Issue(p middleware.Principal) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	claims := &Claims{
		ID:       p.ID,
		Fullname: p.Fullname,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%s:%d", p.Role, p.ID),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParsePrincipal verifies a token and returns the principal it names
func (m *TokenManager) ParsePrincipal(token string) (middleware.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return middleware.Principal{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return middleware.Principal{}, fmt.Errorf("invalid token")
	}

	switch claims.Role {
	case middleware.RoleStudent, middleware.RoleManager, middleware.RoleAdmin:
	default:
		return middleware.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return middleware.Principal{ID: claims.ID, Fullname: claims.Fullname, Role: claims.Role}, nil
}
