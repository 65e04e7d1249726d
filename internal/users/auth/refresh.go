// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// Redeem failures. Both are [apperr.AppError] values so callers can match them with errors.Is.
var (
	ErrRefreshTokenNotFound = apperr.NotFound("Refresh token")
	ErrRefreshTokenExpired  = apperr.Expired("Refresh token has expired")
)

// RefreshTokenStore issues and redeems opaque refresh tokens.
//
// Raw tokens are returned to the caller exactly once; storage only ever sees
// their SHA-256 digest.
type RefreshTokenStore struct {
	tokens     RefreshTokenRepository
	users      UserDirectory
	clock      clock.Clock
	timeToLive time.Duration
}

// NewRefreshTokenStore creates a new [RefreshTokenStore].
func NewRefreshTokenStore(tokens RefreshTokenRepository, users UserDirectory, source clock.Clock, timeToLive time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{
		tokens:     tokens,
		users:      users,
		clock:      source,
		timeToLive: timeToLive,
	}
}

/*
Issue creates and persists a new refresh token for userID.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - string: The raw token (80 hex characters)
  - time.Time: Expiry of the token
  - error: Entropy or persistence failures
*/
func (store *RefreshTokenStore) Issue(context context.Context, userID string) (string, time.Time, error) {
	rawToken, err := sec.GenerateSecureToken(RefreshTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh_store_generate_failed: %w", err)
	}

	issuedAt := store.clock.Now()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: sec.HashToken(rawToken),
		ExpiresAt: issuedAt.Add(store.timeToLive),
		CreatedAt: issuedAt,
	}

	if err := store.tokens.Create(context, record); err != nil {
		return "", time.Time{}, fmt.Errorf("refresh_store_issue_failed: %w", err)
	}

	return rawToken, record.ExpiresAt, nil
}

/*
Redeem resolves a raw refresh token to its owner's current account state.

Description: An expired record is deleted before [ErrRefreshTokenExpired] is
returned, so the next lookup of the same token finds nothing. The owner is
always re-read from the directory; claims are never cached in the token.

Parameters:
  - context: context.Context
  - rawToken: string

Returns:
  - *User: The owning account, fetched fresh
  - error: ErrRefreshTokenNotFound, ErrRefreshTokenExpired or storage failures
*/
func (store *RefreshTokenStore) Redeem(context context.Context, rawToken string) (*User, error) {
	tokenHash := sec.HashToken(rawToken)

	record, err := store.tokens.FindByHash(context, tokenHash)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("refresh_store_lookup_failed: %w", err)
	}

	// ── Lazy expiry cleanup ──
	if !record.ExpiresAt.After(store.clock.Now()) {
		if _, err := store.tokens.DeleteByHash(context, tokenHash); err != nil {
			return nil, fmt.Errorf("refresh_store_expire_failed: %w", err)
		}
		return nil, ErrRefreshTokenExpired
	}

	user, err := store.users.FindByID(context, record.UserID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("refresh_store_owner_lookup_failed: %w", err)
	}

	return user, nil
}

/*
Rotate redeems rawToken and deletes it in the same step.

Description: Intended to run inside a transaction. If a concurrent rotation
already removed the record, the delete reports zero rows and the call fails
with [ErrRefreshTokenNotFound], so one token can only ever be rotated once.

Parameters:
  - context: context.Context
  - rawToken: string

Returns:
  - *User: The owning account
  - error: Same failures as [RefreshTokenStore.Redeem]
*/
func (store *RefreshTokenStore) Rotate(context context.Context, rawToken string) (*User, error) {
	user, err := store.Redeem(context, rawToken)
	if err != nil {
		return nil, err
	}

	removed, err := store.tokens.DeleteByHash(context, sec.HashToken(rawToken))
	if err != nil {
		return nil, fmt.Errorf("refresh_store_rotate_failed: %w", err)
	}
	if !removed {
		return nil, ErrRefreshTokenNotFound
	}

	return user, nil
}

// Revoke deletes the record for rawToken. Unknown tokens are not an error.
func (store *RefreshTokenStore) Revoke(context context.Context, rawToken string) error {
	if _, err := store.tokens.DeleteByHash(context, sec.HashToken(rawToken)); err != nil {
		return fmt.Errorf("refresh_store_revoke_failed: %w", err)
	}
	return nil
}

// RevokeAllForUser deletes every refresh token owned by userID.
func (store *RefreshTokenStore) RevokeAllForUser(context context.Context, userID string) (int64, error) {
	removed, err := store.tokens.DeleteByUser(context, userID)
	if err != nil {
		return 0, fmt.Errorf("refresh_store_revoke_all_failed: %w", err)
	}
	return removed, nil
}

// SweepExpired bulk-deletes expired records. Safe to run from several instances at once.
func (store *RefreshTokenStore) SweepExpired(context context.Context) (int64, error) {
	removed, err := store.tokens.DeleteExpired(context, store.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("refresh_store_sweep_failed: %w", err)
	}
	return removed, nil
}

// isRefreshFailure reports whether err means the presented token cannot be used.
func isRefreshFailure(err error) bool {
	return errors.Is(err, ErrRefreshTokenNotFound) || errors.Is(err, ErrRefreshTokenExpired)
}
