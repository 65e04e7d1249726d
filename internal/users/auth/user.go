// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the user identity and session management layer.

It defines the identity entities (User, RefreshToken), the storage contracts they
travel through, and the orchestrator that drives an account from registration to
verification, login, refresh and recovery.

# Architecture

Entities defined here never leave the package with their secrets attached: every
outward-facing representation goes through [User.ToPublic], which builds a
[PublicUser] that has no password or token fields at all.
*/
package auth

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/pkg/slice"
)

// # Domain Entities

// User represents a registered identity.
type User struct {
	ID           string
	Email        string
	PasswordHash string // Empty for accounts created through a social provider.
	FirstName    string
	LastName     string
	Roles        []string
	IsActive     bool
	IsVerified   bool

	// Ephemeral tokens are stored as SHA-256 digests.
	VerificationTokenHash string
	VerificationExpiresAt *time.Time
	ResetTokenHash        string
	ResetExpiresAt        *time.Time

	AuthProvider string
	ProviderID   string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the only shape of a [User] that is ever serialized.
type PublicUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Roles        []string   `json:"roles"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	AuthProvider string     `json:"auth_provider,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToPublic projects the user onto its client-safe view.
func (user *User) ToPublic() *PublicUser {
	roles := make([]string, len(user.Roles))
	copy(roles, user.Roles)

	return &PublicUser{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Roles:        roles,
		IsActive:     user.IsActive,
		IsVerified:   user.IsVerified,
		AuthProvider: user.AuthProvider,
		LastLoginAt:  user.LastLoginAt,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

// Principal returns the claims carried by this user's access tokens.
func (user *User) Principal() sec.Principal {
	return sec.Principal{
		Subject: user.ID,
		Email:   user.Email,
		Roles:   user.Roles,
	}
}

// HasLocalPassword reports whether credential login is possible for the account.
func (user *User) HasLocalPassword() bool {
	return user.PasswordHash != ""
}

// FullName joins first and last name for notification greetings.
func (user *User) FullName() string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// ToPublicList projects a slice of users. The result is never nil.
func ToPublicList(users []*User) []*PublicUser {
	if len(users) == 0 {
		return []*PublicUser{}
	}
	return slice.Map(users, (*User).ToPublic)
}

// RefreshToken is a persisted refresh credential. Only the digest is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// # Normalisation

// NormalizeEmail trims and NFC-normalises an address. The result is stored
// and mailed as is, so the case the user typed survives.
func NormalizeEmail(email string) string {
	return norm.NFC.String(strings.TrimSpace(email))
}

// EmailKey returns the case-insensitive identity of an address, used for
// uniqueness and lookups.
//
// It lower-cases rather than case-folds: folding maps "ß" to "ss" and would
// merge two distinct mailboxes. A Caser is stateful, so one is built per call.
func EmailKey(email string) string {
	return cases.Lower(language.Und).String(NormalizeEmail(email))
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
)
