// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "github.com/taibuivan/yomira-identity/internal/platform/sec"

// # Token Entropy

const (
	// RefreshTokenBytes is the number of random bytes behind a refresh token (80 hex chars).
	RefreshTokenBytes = 40

	// EphemeralTokenBytes is the number of random bytes behind verification and reset tokens.
	EphemeralTokenBytes = 32

	// TokenTypeBearer is the tokenType advertised with every access token.
	TokenTypeBearer = "bearer"
)

// # Password Rules

const (
	// MinPasswordLength is the minimum number of characters for a new password.
	MinPasswordLength = 8

	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = sec.MaxPasswordBytes
)

// # Client Messages

const (
	MessageForgotPassword     = "If this email is registered, a reset link has been sent."
	MessageResendVerification = "If this email is registered and unverified, a verification link has been sent."
	MessageEmailVerified      = "Email verified successfully"
	MessagePasswordReset      = "Password updated successfully"
	MessagePasswordChanged    = "Password changed successfully"
	MessageLoggedOut          = "Logged out successfully"
	MessageLoggedOutAll       = "All sessions have been revoked"
)
