package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator map[string]*model.Identity

func (s stubValidator) ValidateToken(ctx context.Context, token string) (*model.Identity, error) {
	if identity, ok := s[token]; ok {
		return identity, nil
	}
	return nil, fmt.Errorf("unknown token: %w", failure.ErrUnauthorized)
}

func identityEcho(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.Write([]byte(identity.Subject + ":" + identity.Role))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := stubValidator{
		"good":   {Subject: "ana", Role: model.RoleAdmin},
		"editor": {Subject: "ben", Role: model.RoleEditor},
	}
	h := NewAuthMiddleware(tokens)(http.HandlerFunc(identityEcho))

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
		wantBody string
	}{
		{"bearer", "Authorization", "Bearer good", http.StatusOK, "ana:admin"},
		{"lowercase scheme", "Authorization", "bearer editor", http.StatusOK, "ben:editor"},
		{"x-token", "X-Token", "good", http.StatusOK, "ana:admin"},
		{"missing", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown", "Authorization", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthMiddleware_NoValidator(t *testing.T) {
	h := NewAuthMiddleware(nil)(http.HandlerFunc(identityEcho))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleAdmin)(http.HandlerFunc(identityEcho))

	serve := func(identity *model.Identity) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if identity != nil {
			req = req.WithContext(WithIdentity(req.Context(), identity))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(&model.Identity{Subject: "ana", Role: model.RoleAdmin}))
	assert.Equal(t, http.StatusForbidden, serve(&model.Identity{Subject: "ben", Role: model.RoleEditor}))
	assert.Equal(t, http.StatusUnauthorized, serve(nil))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("oversized is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", 100))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLogging_CapturesStatusAndSize(t *testing.T) {
	var captured *responseWriter
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", nil))

	require.NotNil(t, captured)
	assert.Equal(t, http.StatusCreated, captured.statusCode)
	assert.Equal(t, int64(5), captured.written)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
