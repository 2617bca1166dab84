package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarcheh/auth-service/internal/auth"
	"github.com/bazarcheh/auth-service/internal/model"
)

type stubAuthenticator struct {
	user *model.User
	err  error
}

func (s *stubAuthenticator) AuthenticateAccessToken(context.Context, string) (*model.User, *auth.Claims, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.user, &auth.Claims{}, nil
}

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		require.True(t, ok, "handler behind Auth must see the user")
		require.NotNil(t, user)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingAndMalformedHeader(t *testing.T) {
	mw := Auth(&stubAuthenticator{user: &model.User{ID: uuid.New(), Role: model.RoleUser}})
	handler := mw(okHandler(t))

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc123",
		"empty token":  "Bearer ",
		"lone keyword": "Bearer",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	mw := Auth(&stubAuthenticator{err: auth.ErrInvalidToken})
	handler := mw(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAttachesUser(t *testing.T) {
	user := &model.User{ID: uuid.New(), PhoneNumber: "09120000000", Role: model.RoleUser}
	mw := Auth(&stubAuthenticator{user: user})
	handler := mw(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		role     model.Role
		required model.Role
		want     int
	}{
		{name: "user blocked from admin", role: model.RoleUser, required: model.RoleSubAdmin, want: http.StatusForbidden},
		{name: "sub-admin allowed", role: model.RoleSubAdmin, required: model.RoleSubAdmin, want: http.StatusOK},
		{name: "super-admin outranks", role: model.RoleSuperAdmin, required: model.RoleSubAdmin, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &model.User{ID: uuid.New(), Role: tc.role}
			handler := Auth(&stubAuthenticator{user: user})(RequireRole(tc.required)(okHandler(t)))

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	handler := RequireRole(model.RoleSubAdmin)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
