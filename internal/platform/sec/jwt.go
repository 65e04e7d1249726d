// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, random
// tokens) from the domain logic. The auth service consumes it through narrow
// interfaces so tests can substitute deterministic fakes.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// ErrInvalidToken is returned for any access token that fails verification.
var ErrInvalidToken = errors.New("sec: invalid token")

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// Principal is the identity encoded into an access token.
type Principal struct {
	Subject string
	Email   string
	Roles   []string
}

// AuthClaims represents the payload embedded inside a JWT access token.
//
// The subject, email and roles travel with the token so [middleware.Authenticate]
// can rebuild the caller's identity without a storage lookup.
type AuthClaims struct {
	jwt.RegisteredClaims

	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// UserID returns the subject claim.
func (claims *AuthClaims) UserID() string { return claims.Subject }

// Role returns the most privileged role carried by the token.
func (claims *AuthClaims) Role() UserRole { return HighestRole(claims.Roles) }

// TokenCodec signs and verifies HS256 access tokens with a single static secret.
type TokenCodec struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

// NewTokenCodec creates a new [TokenCodec].
func NewTokenCodec(secret, issuer string, source clock.Clock) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("sec: signing secret must be at least %d bytes", MinSecretLength)
	}

	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		clock:  source,
	}, nil
}

// Sign creates a signed access token for principal that expires after timeToLive.
func (codec *TokenCodec) Sign(principal Principal, timeToLive time.Duration) (string, error) {
	currentTime := codec.clock.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Subject:   principal.Subject,
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		Email: principal.Email,
		Roles: principal.Roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(codec.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature, issuer and expiry of a JWT string.
//
// No leeway is applied: a token is rejected from the second its expiry is reached.
func (codec *TokenCodec) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		return codec.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(codec.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(codec.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
