package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/password"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.Unauthenticated, "incorrect username or password")
	ErrAccountBlocked     = apperr.New(apperr.Unauthorized, "account is blocked")
)

// Credentials is what an account pool exposes for login
type Credentials struct {
	ID           int64
	Fullname     string
	Role         middleware.Role
	PasswordHash string
	Blocked      bool
}

// CredentialSource looks up credentials by username; (nil, nil) when absent
type CredentialSource interface {
	Credentials(ctx context.Context, username string) (*Credentials, error)
}

// Service authenticates accounts against one or more pools
type Service struct {
	sources []CredentialSource
	hasher  password.Hasher
	tokens  *TokenManager
	logger  *zap.Logger
}

// NewService creates an auth service. Sources are tried in order and the
// first pool holding the username decides the outcome.
func NewService(tokens *TokenManager, hasher password.Hasher, logger *zap.Logger, sources ...CredentialSource) *Service {
	return &Service{sources: sources, hasher: hasher, tokens: tokens, logger: logger}
}

// Login verifies username/password and issues an access token
func (s *Service) Login(ctx context.Context, username, plain string) (*TokenResponse, error) {
	for _, source := range s.sources {
		creds, err := source.Credentials(ctx, username)
		if err != nil {
			return nil, err
		}
		if creds == nil {
			continue
		}

		if !s.hasher.Compare(creds.PasswordHash, plain) {
			return nil, ErrInvalidCredentials
		}
		if creds.Blocked {
			return nil, ErrAccountBlocked
		}

		token, expiresAt, err := s.tokens.Issue(middleware.Principal{
			ID:       creds.ID,
			Fullname: creds.Fullname,
			Role:     creds.Role,
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("login", zap.Int64("id", creds.ID), zap.String("role", string(creds.Role)))
		return &TokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
			Role:        creds.Role,
			ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		}, nil
	}

	return nil, ErrInvalidCredentials
}
