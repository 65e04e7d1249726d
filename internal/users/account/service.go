// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/pkg/pagination"
	"github.com/taibuivan/yomira-identity/pkg/pointer"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// # Service Layer

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Users      auth.UserDirectory
	Sessions   SessionRevoker
	Hasher     auth.PasswordHasher
	Transactor auth.Transactor
	Clock      clock.Clock
}

// Service orchestrates administrative operations on user accounts.
type Service struct {
	users      auth.UserDirectory
	sessions   SessionRevoker
	hasher     auth.PasswordHasher
	transactor auth.Transactor
	clock      clock.Clock
}

// NewService constructs a new [Service] with its dependencies.
func NewService(deps Dependencies) *Service {
	return &Service{
		users:      deps.Users,
		sessions:   deps.Sessions,
		hasher:     deps.Hasher,
		transactor: deps.Transactor,
		clock:      deps.Clock,
	}
}

// # Queries

/*
List returns one page of accounts matching the filters.

Parameters:
  - ctx: context.Context
  - input: ListInput (missing paging falls back to the defaults, limit capped at 100)

Returns:
  - []*auth.PublicUser: Page of public views
  - pagination.Meta: Page metadata with the total match count
  - error: Storage failures
*/
func (service *Service) List(ctx context.Context, input ListInput) ([]*auth.PublicUser, pagination.Meta, error) {
	params := pagination.Params{Page: input.Page, Limit: input.Limit}.Normalize()

	sortBy := input.SortBy
	if sortBy == "" {
		sortBy = auth.SortByCreatedAt
	}

	users, total, err := service.users.List(ctx, auth.UserFilter{
		Search:   input.Search,
		Role:     input.Role,
		IsActive: input.IsActive,
		SortBy:   sortBy,
		SortDesc: input.SortOrder != SortOrderAsc,
		Limit:    params.Limit,
		Offset:   params.Offset(),
	})
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("account_service_list_failed: %w", err)
	}

	return auth.ToPublicList(users), params.Meta(total), nil
}

// Get returns the public view of one account.
func (service *Service) Get(ctx context.Context, id string) (*auth.PublicUser, error) {
	user, err := service.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_failed: %w", err)
	}
	return user.ToPublic(), nil
}

// # Commands

/*
Create provisions an account on behalf of an administrator.

Description: The address is vouched for by the operator, so the account starts
verified and can log in immediately. Roles default to the base role.

Parameters:
  - ctx: context.Context
  - input: CreateInput (validated by the handler)

Returns:
  - *auth.PublicUser: The created account
  - error: apperr.Conflict if the email is taken, or storage failures
*/
func (service *Service) Create(ctx context.Context, input CreateInput) (*auth.PublicUser, error) {
	roles := dedupeRoles(input.Roles)
	if len(roles) == 0 {
		roles = []string{string(sec.RoleUser)}
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	currentTime := service.clock.Now()
	user := &auth.User{
		ID:           uuid.New(),
		Email:        auth.NormalizeEmail(input.Email),
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Roles:        roles,
		IsActive:     true,
		IsVerified:   true,
		AuthProvider: auth.ProviderLocal,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
	}

	if err := service.users.Create(ctx, user); err != nil {
		if apperr.HasCode(err, apperr.CodeConflict) {
			return nil, apperr.Conflict("Email is already registered")
		}
		return nil, fmt.Errorf("account_service_create_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).Info("admin_user_created",
		slog.String("target_user_id", user.ID),
		slog.Any("roles", user.Roles),
	)

	return user.ToPublic(), nil
}

/*
Update applies a partial change to an account.

Description: Turning an active account off revokes all of its refresh tokens
in the same transaction as the flag change.

Parameters:
  - ctx: context.Context
  - id: string
  - input: UpdateInput

Returns:
  - *auth.PublicUser: The updated account
  - error: apperr.NotFound, apperr.BadRequest for an empty role set, or storage failures
*/
func (service *Service) Update(ctx context.Context, id string, input UpdateInput) (*auth.PublicUser, error) {
	var updated *auth.User

	err := service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		user, err := service.users.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		wasActive := user.IsActive

		user.FirstName = pointer.Fallback(input.FirstName, user.FirstName)
		user.LastName = pointer.Fallback(input.LastName, user.LastName)
		user.IsActive = pointer.Fallback(input.IsActive, user.IsActive)

		if input.Roles != nil {
			roles := dedupeRoles(input.Roles)
			if len(roles) == 0 {
				return apperr.BadRequest("A user must keep at least one role")
			}
			user.Roles = roles
		}

		if err := service.save(ctx, user, wasActive); err != nil {
			return err
		}

		updated = user
		return nil
	})
	if err != nil {
		return nil, service.wrap("account_service_update_failed", err)
	}

	ctxutil.GetLogger(ctx).Info("admin_user_updated", slog.String("target_user_id", id))
	return updated.ToPublic(), nil
}

// ToggleStatus flips the active flag of an account.
func (service *Service) ToggleStatus(ctx context.Context, id string) (*auth.PublicUser, error) {
	var updated *auth.User

	err := service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		user, err := service.users.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		wasActive := user.IsActive
		user.IsActive = !user.IsActive

		if err := service.save(ctx, user, wasActive); err != nil {
			return err
		}

		updated = user
		return nil
	})
	if err != nil {
		return nil, service.wrap("account_service_toggle_failed", err)
	}

	ctxutil.GetLogger(ctx).Info("admin_user_status_toggled",
		slog.String("target_user_id", id),
		slog.Bool("is_active", updated.IsActive),
	)
	return updated.ToPublic(), nil
}

/*
Delete permanently removes an account.

Description: Refresh tokens are revoked explicitly before the row goes, so
the outcome does not depend on the foreign key cascade.

Parameters:
  - ctx: context.Context
  - id: string

Returns:
  - error: apperr.NotFound or storage failures
*/
func (service *Service) Delete(ctx context.Context, id string) error {
	err := service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := service.sessions.RevokeAllForUser(ctx, id); err != nil {
			return err
		}
		return service.users.Delete(ctx, id)
	})
	if err != nil {
		return service.wrap("account_service_delete_failed", err)
	}

	ctxutil.GetLogger(ctx).Warn("admin_user_deleted", slog.String("target_user_id", id))
	return nil
}

// save persists the administrable fields of a row locked by the caller and,
// if the account has just been disabled, ends its sessions.
func (service *Service) save(ctx context.Context, user *auth.User, wasActive bool) error {
	user.UpdatedAt = service.clock.Now()
	if err := service.users.UpdateProfile(ctx, user); err != nil {
		return err
	}

	if wasActive && !user.IsActive {
		if _, err := service.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
			return err
		}
	}
	return nil
}

// wrap passes domain errors through and annotates the rest.
func (service *Service) wrap(action string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", action, err)
}
