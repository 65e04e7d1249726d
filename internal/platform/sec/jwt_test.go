// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "yomira-identity"
)

func newCodec(t *testing.T) (*sec.TokenCodec, *clock.Manual) {
	t.Helper()
	manual := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	codec, err := sec.NewTokenCodec(testSecret, testIssuer, manual)
	require.NoError(t, err)
	return codec, manual
}

var alice = sec.Principal{Subject: "user-1", Email: "a@x.com", Roles: []string{"user"}}

/*
TestTokenCodec_SignVerify verifies that the claims survive a round trip.
*/
func TestTokenCodec_SignVerify(t *testing.T) {
	codec, _ := newCodec(t)

	token, err := codec.Sign(alice, time.Hour)
	require.NoError(t, err)

	claims, err := codec.VerifyToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, []string{"user"}, claims.Roles)
	assert.Equal(t, sec.RoleUser, claims.Role())
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

/*
TestTokenCodec_Expiry verifies there is no leeway around the expiry instant.
*/
func TestTokenCodec_Expiry(t *testing.T) {
	codec, manual := newCodec(t)

	token, err := codec.Sign(alice, time.Hour)
	require.NoError(t, err)

	manual.Advance(59 * time.Minute)
	_, err = codec.VerifyToken(token)
	require.NoError(t, err)

	manual.Advance(time.Minute)
	_, err = codec.VerifyToken(token)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

/*
TestTokenCodec_Rejections covers tampering, foreign secrets and foreign algorithms.
*/
func TestTokenCodec_Rejections(t *testing.T) {
	codec, manual := newCodec(t)

	token, err := codec.Sign(alice, time.Hour)
	require.NoError(t, err)

	other, err := sec.NewTokenCodec("ffffffffffffffffffffffffffffffff", testIssuer, manual)
	require.NoError(t, err)
	foreign, err := other.Sign(alice, time.Hour)
	require.NoError(t, err)

	wrongIssuerCodec, err := sec.NewTokenCodec(testSecret, "someone-else", manual)
	require.NoError(t, err)
	wrongIssuer, err := wrongIssuerCodec.Sign(alice, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"iss": testIssuer,
		"exp": manual.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"tampered", token[:len(token)-2] + "xx"},
		{"foreign_secret", foreign},
		{"wrong_issuer", wrongIssuer},
		{"alg_none", unsigned},
		{"garbage", "not.a.jwt"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.VerifyToken(tt.token)
			assert.ErrorIs(t, err, sec.ErrInvalidToken)
		})
	}
}

func TestNewTokenCodec_ShortSecret(t *testing.T) {
	_, err := sec.NewTokenCodec("short", testIssuer, clock.System{})
	assert.Error(t, err)
}

/*
TestTokenCodec_UniquePerIssue verifies two tokens signed in the same second differ.
*/
func TestTokenCodec_UniquePerIssue(t *testing.T) {
	codec, _ := newCodec(t)

	first, err := codec.Sign(alice, time.Hour)
	require.NoError(t, err)
	second, err := codec.Sign(alice, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
