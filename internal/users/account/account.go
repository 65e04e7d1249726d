// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles administrative management of the user directory.

It lets operators browse accounts, create pre-verified users, adjust roles,
and disable or remove accounts.

# Architecture

  - Domain: This package depends on the auth package for the User entity and
    its storage contract ([auth.UserDirectory]).
  - Security: Disabling or deleting an account revokes every refresh token it
    holds, so existing sessions end at their next refresh.
*/
package account

import (
	"context"
	"strings"
)

// # Collaborator Contracts

// SessionRevoker ends every session of a user.
//
// Satisfied by [auth.RefreshTokenStore].
type SessionRevoker interface {
	RevokeAllForUser(context context.Context, userID string) (int64, error)
}

// # Inputs

// ListInput describes one page of the user directory.
type ListInput struct {
	Search    string
	Role      string
	IsActive  *bool
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Sort orders accepted by [ListInput].
const (
	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

// CreateInput carries an administratively created account.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Roles     []string
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Roles     []string
	IsActive  *bool
}

// dedupeRoles trims, drops blanks and removes repeats while keeping order.
func dedupeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	result := make([]string, 0, len(roles))

	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}
	return result
}
