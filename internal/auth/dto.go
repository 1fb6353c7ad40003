package auth

import "github.com/fkhayef/eventcheckin/pkg/middleware"

// LoginRequest is accepted as JSON or as an OAuth2 password form
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned on successful login
type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	Role        middleware.Role `json:"role"`
	ExpiresAt   string          `json:"expires_at"`
}
