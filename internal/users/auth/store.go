// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserDirectory defines the data access contract for user accounts.
//
// Lookups return an [apperr.AppError] with code NOT_FOUND when no row matches.
type UserDirectory interface {
	FindByID(context context.Context, id string) (*User, error)

	// FindByEmail matches case-insensitively on [EmailKey].
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByVerificationToken returns the account holding the given verification digest.

		Inside a transaction the row is locked, so two concurrent consumers of the
		same token cannot both succeed.

		Parameters:
		  - context: context.Context
		  - tokenHash: string (SHA-256 hex of the presented token)
		  - now: time.Time (tokens with an expiry at or before now never match)

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByVerificationToken(context context.Context, tokenHash string, now time.Time) (*User, error)

	/*
		FindByResetToken returns the account holding an unexpired reset digest.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - now: time.Time

		Returns:
		  - *User: Hydrated, row-locked entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByResetToken(context context.Context, tokenHash string, now time.Time) (*User, error)

	// Create persists a brand-new account. A duplicate email yields a CONFLICT error.
	Create(context context.Context, user *User) error

	// FindByIDForUpdate is [UserDirectory.FindByID] with the row locked until
	// the surrounding transaction ends.
	FindByIDForUpdate(context context.Context, id string) (*User, error)

	// Writes below touch only the columns they name plus the update stamp, so
	// two requests changing different facets of one account cannot undo each
	// other. Each returns NOT_FOUND when the account is gone.

	// SetVerificationToken replaces the verification digest. A nil expiry never lapses.
	SetVerificationToken(context context.Context, userID, tokenHash string, expiresAt *time.Time, at time.Time) error

	// SetResetToken replaces the reset digest and its expiry.
	SetResetToken(context context.Context, userID, tokenHash string, expiresAt time.Time, at time.Time) error

	// MarkVerified flags the address as verified and clears the verification digest.
	MarkVerified(context context.Context, userID string, at time.Time) error

	// SetPassword replaces the password digest and clears any pending reset digest.
	SetPassword(context context.Context, userID, passwordHash string, at time.Time) error

	// UpdateProfile writes the administrable columns: names, roles and the active flag.
	UpdateProfile(context context.Context, user *User) error

	UpdateLastLogin(context context.Context, userID string, at time.Time) error

	// Delete removes the account. Refresh tokens go with it (ON DELETE CASCADE).
	Delete(context context.Context, id string) error

	// ClearExpiredResetTokens nulls reset digests whose expiry has passed.
	ClearExpiredResetTokens(context context.Context, now time.Time) (int64, error)

	// ClearExpiredVerificationTokens nulls verification digests whose expiry has passed.
	ClearExpiredVerificationTokens(context context.Context, now time.Time) (int64, error)

	/*
		List returns one page of accounts matching filter, plus the total match count.

		Parameters:
		  - context: context.Context
		  - filter: UserFilter

		Returns:
		  - []*User: The requested page
		  - int: Total rows matching the filter, ignoring paging
		  - error: Storage failures
	*/
	List(context context.Context, filter UserFilter) ([]*User, int, error)
}

// # Listing

// Sortable columns exposed to the user listing.
const (
	SortByEmail     = "email"
	SortByFirstName = "first_name"
	SortByLastName  = "last_name"
	SortByCreatedAt = "created_at"
)

// SortKeys lists every accepted sort_by value.
var SortKeys = []string{SortByEmail, SortByFirstName, SortByLastName, SortByCreatedAt}

// UserFilter narrows a [UserDirectory.List] call.
type UserFilter struct {
	Search   string // Case-insensitive match on email, first or last name.
	Role     string
	IsActive *bool
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// # Refresh Token Data Access

// RefreshTokenRepository defines the persistence contract behind [RefreshTokenStore].
type RefreshTokenRepository interface {
	Create(context context.Context, token *RefreshToken) error

	// FindByHash returns NOT_FOUND when no record carries the digest.
	FindByHash(context context.Context, tokenHash string) (*RefreshToken, error)

	// DeleteByHash reports whether a record was actually removed.
	DeleteByHash(context context.Context, tokenHash string) (bool, error)

	DeleteByUser(context context.Context, userID string) (int64, error)

	// DeleteExpired removes every record whose expiry is at or before now.
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// # Units of Work

// Transactor runs work inside a single storage transaction.
//
// Repository calls made with the context handed to work join that transaction.
type Transactor interface {
	WithinTx(context context.Context, work func(context context.Context) error) error
}
