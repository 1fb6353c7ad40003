package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubParser map[string]Principal

func (s stubParser) ParsePrincipal(token string) (Principal, error) {
	p, ok := s[token]
	if !ok {
		return Principal{}, errors.New("invalid token")
	}
	return p, nil
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuthenticate(t *testing.T) {
	parser := stubParser{"good": {ID: 7, Role: RoleStudent}}

	var seen Principal
	h := Authenticate(parser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	assert.Equal(t, int64(7), seen.ID)
}

func TestRoleGates(t *testing.T) {
	cases := []struct {
		name   string
		gate   func(http.Handler) http.Handler
		role   Role
		status int
	}{
		{"student on student route", AllowStudent, RoleStudent, http.StatusOK},
		{"manager on student route", AllowStudent, RoleManager, http.StatusForbidden},
		{"admin on manager route", AllowManager, RoleAdmin, http.StatusOK},
		{"student on manager route", AllowManager, RoleStudent, http.StatusForbidden},
		{"manager on admin route", AllowAdmin, RoleManager, http.StatusForbidden},
		{"student on any route", AllowAnyRole, RoleStudent, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithPrincipal(req.Context(), Principal{ID: 1, Role: tc.role}))
			rec := httptest.NewRecorder()
			tc.gate(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireRoles_NoPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	AllowAnyRole(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
