// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/middleware"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/throttle"
)

// # Test Doubles

type stubVerifier struct {
	claims *sec.AuthClaims
	err    error
}

func (verifier stubVerifier) VerifyToken(string) (*sec.AuthClaims, error) {
	return verifier.claims, verifier.err
}

type stubThrottler struct {
	decision throttle.Decision
	err      error
	keys     []string
}

func (throttler *stubThrottler) Allow(_ context.Context, key string) (throttle.Decision, error) {
	throttler.keys = append(throttler.keys, key)
	return throttler.decision, throttler.err
}

func claimsFor(roles ...string) *sec.AuthClaims {
	return &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Email:            "a@x.com",
		Roles:            roles,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
}

func decodeCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

// # Authentication

/*
TestAuthenticate verifies header parsing and claims injection.
*/
func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   stubVerifier
		wantStatus int
		wantUser   bool
	}{
		{"anonymous", "", stubVerifier{}, http.StatusOK, false},
		{"valid_bearer", "Bearer good", stubVerifier{claims: claimsFor("user")}, http.StatusOK, true},
		{"lowercase_scheme", "bearer good", stubVerifier{claims: claimsFor("user")}, http.StatusOK, true},
		{"wrong_scheme", "Basic abc", stubVerifier{}, http.StatusUnauthorized, false},
		{"missing_token", "Bearer ", stubVerifier{}, http.StatusUnauthorized, false},
		{"rejected_token", "Bearer bad", stubVerifier{err: sec.ErrInvalidToken}, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawUser bool
			handler := middleware.Authenticate(tt.verifier)(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				sawUser = ctxutil.GetAuthUser(request.Context()) != nil
				writer.WriteHeader(http.StatusOK)
			}))

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantUser, sawUser)
		})
	}
}

/*
TestRequireRole verifies the 401/403 split and the hierarchy.
*/
func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		claims     *sec.AuthClaims
		wantStatus int
		wantCode   string
	}{
		{"anonymous", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"plain_user", claimsFor("user"), http.StatusForbidden, "FORBIDDEN"},
		{"admin", claimsFor("user", "admin"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.RequireRole(sec.RoleAdmin)(okHandler())

			request := httptest.NewRequest(http.MethodDelete, "/users/1", nil)
			if tt.claims != nil {
				request = request.WithContext(ctxutil.WithAuthUser(request.Context(), tt.claims))
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeCode(t, recorder))
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	handler := middleware.RequireAuth(okHandler())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	request := httptest.NewRequest(http.MethodGet, "/profile", nil)
	request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claimsFor("user")))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

// # Throttling

/*
TestThrottle verifies rejection, the Retry-After hint and fail-open behaviour.
*/
func TestThrottle(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		throttler := &stubThrottler{decision: throttle.Decision{Allowed: true, Remaining: 4}}
		handler := middleware.Throttle(throttler, "login")(okHandler())

		request := httptest.NewRequest(http.MethodPost, "/login", nil)
		request.Header.Set("X-Real-IP", "10.0.0.7")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, []string{"login:10.0.0.7"}, throttler.keys)
	})

	t.Run("rejected", func(t *testing.T) {
		throttler := &stubThrottler{decision: throttle.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
		handler := middleware.Throttle(throttler, "login")(okHandler())

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/login", nil))

		assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
		assert.Equal(t, "2", recorder.Header().Get("Retry-After"))
		assert.Equal(t, "RATE_LIMITED", decodeCode(t, recorder))
	})

	t.Run("limiter_down_fails_open", func(t *testing.T) {
		throttler := &stubThrottler{err: errors.New("redis: connection refused")}
		handler := middleware.Throttle(throttler, "login")(okHandler())

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/login", nil))

		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}

// # Tracing, Safety and CORS

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, recorder.Header().Get("X-Request-ID"))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-ID", "client-supplied")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, "client-supplied", seen)
}

func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeCode(t, recorder))
}

func TestCORS(t *testing.T) {
	handler := middleware.CORS(middleware.CORSPolicy{Origins: []string{"https://app.example.com/"}})(okHandler())

	allowed := httptest.NewRequest(http.MethodGet, "/", nil)
	allowed.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, allowed)
	assert.Equal(t, "https://app.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))

	foreign := httptest.NewRequest(http.MethodGet, "/", nil)
	foreign.Header.Set("Origin", "https://evil.example.net")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, foreign)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, preflight)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", middleware.RealIP(request))

	request.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", middleware.RealIP(request))

	request.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", middleware.RealIP(request))
}
