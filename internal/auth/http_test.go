// ABOUTME: Tests for the HTTP bearer-token middleware
// ABOUTME: Verifies rejection reasons, JSON error bodies and subject propagation

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subjectHandler writes the subject it sees
var subjectHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(SubjectFromContext(r.Context())))
})

func TestHTTPAuthMiddleware(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	valid, err := verifier.Generate("agencia-centro", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Generate("agencia-centro", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
		wantError  string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "agencia-centro", ""},
		{"missing header", "", http.StatusUnauthorized, "", "missing authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "", "invalid authorization header format"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "", "empty token"},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized, "", "invalid token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "", "token expired"},
	}

	handler := HTTPAuthMiddleware(verifier)(subjectHandler)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sessions/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError == "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}

			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestNoAuthMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	NoAuthMiddleware()(subjectHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestExtractBearerToken(t *testing.T) {
	token, msg := extractBearerToken("Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", token)
	assert.Empty(t, msg)

	_, msg = extractBearerToken("bearer abc")
	assert.Equal(t, "invalid authorization header format", msg)
}
