// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
)

// Consume failures. Wrong and expired tokens are deliberately indistinguishable.
var (
	ErrInvalidVerificationToken = apperr.InvalidToken("Invalid or expired verification token")
	ErrInvalidResetToken        = apperr.InvalidToken("Invalid or expired reset token")
)

// EphemeralTokenIssuer manages the single-use verification and reset tokens kept on the user record.
//
// Issuing a token overwrites any previous one of the same kind, so a user holds
// at most one active token per kind.
type EphemeralTokenIssuer struct {
	users           UserDirectory
	clock           clock.Clock
	resetTTL        time.Duration
	verificationTTL time.Duration // zero means verification tokens never expire
}

// NewEphemeralTokenIssuer creates a new [EphemeralTokenIssuer].
func NewEphemeralTokenIssuer(users UserDirectory, source clock.Clock, resetTTL, verificationTTL time.Duration) *EphemeralTokenIssuer {
	return &EphemeralTokenIssuer{
		users:           users,
		clock:           source,
		resetTTL:        resetTTL,
		verificationTTL: verificationTTL,
	}
}

/*
IssueVerificationToken stores a fresh verification digest on user.

Parameters:
  - context: context.Context
  - user: *User (token fields mirrored in place; only they are persisted)

Returns:
  - string: The raw token to deliver to the user
  - error: Entropy or persistence failures
*/
func (issuer *EphemeralTokenIssuer) IssueVerificationToken(context context.Context, user *User) (string, error) {
	rawToken, err := sec.GenerateSecureToken(EphemeralTokenBytes)
	if err != nil {
		return "", fmt.Errorf("ephemeral_issuer_generate_failed: %w", err)
	}

	currentTime := issuer.clock.Now()
	user.VerificationTokenHash = sec.HashToken(rawToken)
	user.VerificationExpiresAt = nil
	if issuer.verificationTTL > 0 {
		expiresAt := currentTime.Add(issuer.verificationTTL)
		user.VerificationExpiresAt = &expiresAt
	}
	user.UpdatedAt = currentTime

	if err := issuer.users.SetVerificationToken(context, user.ID, user.VerificationTokenHash, user.VerificationExpiresAt, currentTime); err != nil {
		return "", fmt.Errorf("ephemeral_issuer_store_verification_failed: %w", err)
	}

	return rawToken, nil
}

/*
IssueResetToken stores a fresh, time-boxed reset digest on user.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - string: The raw token
  - error: Entropy or persistence failures
*/
func (issuer *EphemeralTokenIssuer) IssueResetToken(context context.Context, user *User) (string, error) {
	rawToken, err := sec.GenerateSecureToken(EphemeralTokenBytes)
	if err != nil {
		return "", fmt.Errorf("ephemeral_issuer_generate_failed: %w", err)
	}

	currentTime := issuer.clock.Now()
	expiresAt := currentTime.Add(issuer.resetTTL)
	user.ResetTokenHash = sec.HashToken(rawToken)
	user.ResetExpiresAt = &expiresAt
	user.UpdatedAt = currentTime

	if err := issuer.users.SetResetToken(context, user.ID, user.ResetTokenHash, expiresAt, currentTime); err != nil {
		return "", fmt.Errorf("ephemeral_issuer_store_reset_failed: %w", err)
	}

	return rawToken, nil
}

/*
ConsumeVerificationToken marks the owning account verified and clears the token.

Parameters:
  - context: context.Context
  - rawToken: string

Returns:
  - *User: The now verified account
  - error: ErrInvalidVerificationToken or storage failures
*/
func (issuer *EphemeralTokenIssuer) ConsumeVerificationToken(context context.Context, rawToken string) (*User, error) {
	currentTime := issuer.clock.Now()

	user, err := issuer.users.FindByVerificationToken(context, sec.HashToken(rawToken), currentTime)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("ephemeral_issuer_verification_lookup_failed: %w", err)
	}

	user.IsVerified = true
	user.VerificationTokenHash = ""
	user.VerificationExpiresAt = nil
	user.UpdatedAt = currentTime

	if err := issuer.users.MarkVerified(context, user.ID, currentTime); err != nil {
		return nil, fmt.Errorf("ephemeral_issuer_consume_verification_failed: %w", err)
	}

	return user, nil
}

/*
ConsumeResetToken swaps in newPasswordHash and clears the reset token in one write.

Parameters:
  - context: context.Context
  - rawToken: string
  - newPasswordHash: string (already hashed by the caller)

Returns:
  - *User: The updated account
  - error: ErrInvalidResetToken or storage failures
*/
func (issuer *EphemeralTokenIssuer) ConsumeResetToken(context context.Context, rawToken, newPasswordHash string) (*User, error) {
	currentTime := issuer.clock.Now()

	user, err := issuer.users.FindByResetToken(context, sec.HashToken(rawToken), currentTime)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("ephemeral_issuer_reset_lookup_failed: %w", err)
	}

	user.PasswordHash = newPasswordHash
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	user.UpdatedAt = currentTime

	if err := issuer.users.SetPassword(context, user.ID, newPasswordHash, currentTime); err != nil {
		return nil, fmt.Errorf("ephemeral_issuer_consume_reset_failed: %w", err)
	}

	return user, nil
}
