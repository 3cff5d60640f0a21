package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohandler/repohandler/internal/api/middleware"
	"github.com/repohandler/repohandler/internal/auth"
)

func serveWithAuth(mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, *auth.Identity) {
	var captured *auth.Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, captured
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env["error"].(map[string]interface{})["message"].(string)
}

var issuer = auth.NewPlainIssuer(auth.AdminCredentials{Password: "admin123"})

func TestTeamAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"bearer token", "Bearer TEAM-1:a@x.com", http.StatusOK, ""},
		{"bare token", "TEAM-1:a@x.com", http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Missing authorization header"},
		{"admin token", "Bearer admin_token", http.StatusUnauthorized, "Invalid or expired token"},
		{"garbage", "Bearer a:b:c", http.StatusUnauthorized, "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, id := serveWithAuth(middleware.TeamAuth(issuer), tt.header)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, id)
				assert.Equal(t, "TEAM-1", id.TeamID)
				assert.Equal(t, "a@x.com", id.Email)
				return
			}
			assert.Nil(t, id)
			assert.Equal(t, tt.wantMsg, errorMessage(t, w))
		})
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"admin token", "Bearer admin_token", http.StatusOK},
		{"bare admin token", "admin_token", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"team token", "Bearer TEAM-1:a@x.com", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, id := serveWithAuth(middleware.AdminAuth(issuer), tt.header)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, id.IsAdmin())
			} else {
				assert.Nil(t, id)
			}
		})
	}
}

func TestGetIdentity_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, middleware.GetIdentity(req.Context()))

	ctx := middleware.WithIdentity(req.Context(), &auth.Identity{TeamID: "T"})
	assert.Equal(t, "T", middleware.GetIdentity(ctx).TeamID)
}
