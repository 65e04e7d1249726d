// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package requestutil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/yomira-identity/internal/platform/request"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
)

type payload struct {
	Email string `json:"email"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@x.com"}`, false},
		{"malformed", `{"email":`, true},
		{"trailing_data", `{"email":"a@x.com"}{"email":"b@x.com"}`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var target payload

			err := requestutil.DecodeJSON(httptest.NewRecorder(), request, &target)
			if tt.wantErr {
				assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", target.Email)
		})
	}
}

func TestQueryBool(t *testing.T) {
	value, err := requestutil.QueryBool(httptest.NewRequest(http.MethodGet, "/?is_active=false", nil), "is_active")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.False(t, *value)

	value, err = requestutil.QueryBool(httptest.NewRequest(http.MethodGet, "/", nil), "is_active")
	require.NoError(t, err)
	assert.Nil(t, value)

	_, err = requestutil.QueryBool(httptest.NewRequest(http.MethodGet, "/?is_active=maybe", nil), "is_active")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestRequiredUserID(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := requestutil.RequiredUserID(request)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	claims := &sec.AuthClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9"}}
	request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claims))

	userID, err := requestutil.RequiredUserID(request)
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)
	assert.Same(t, claims, requestutil.Claims(request))
}
