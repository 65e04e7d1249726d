// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth (Postgres) implements the storage layer for accounts and refresh tokens.

# Schema Table Mapping
  - users.account: Identity, credentials and ephemeral token digests.
  - users.refreshtoken: One row per live refresh token, cascading on account delete.

# Error Mapping

Storage-specific errors (pgx.ErrNoRows, unique violations) are mapped to
[apperr.AppError] values through [dberr.Wrap] so no pgx type leaks upward.

Every statement runs on [postgres.Conn], so calls made inside
[postgres.Transactor.WithinTx] join the caller's transaction.
*/
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/database/schema"
	"github.com/taibuivan/yomira-identity/internal/platform/dberr"
	"github.com/taibuivan/yomira-identity/internal/platform/postgres"
)

const resourceUser = "User"

// accountColumns is the SELECT list matching [scanUser]. Token digests are
// nullable so the partial unique indexes ignore accounts without a token.
var accountColumns = fmt.Sprintf(
	"%s, %s, %s, %s, %s, %s, %s, %s, COALESCE(%s, ''), %s, COALESCE(%s, ''), %s, %s, %s, %s, %s, %s",
	schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.Password,
	schema.UserAccount.FirstName, schema.UserAccount.LastName, schema.UserAccount.Roles,
	schema.UserAccount.IsActive, schema.UserAccount.IsVerified,
	schema.UserAccount.VerificationTokenHash, schema.UserAccount.VerificationExpiresAt,
	schema.UserAccount.ResetTokenHash, schema.UserAccount.ResetExpiresAt,
	schema.UserAccount.AuthProvider, schema.UserAccount.ProviderID,
	schema.UserAccount.LastLoginAt, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
)

// sortColumns maps public sort keys onto columns.
var sortColumns = map[string]string{
	SortByEmail:     schema.UserAccount.Email,
	SortByFirstName: schema.UserAccount.FirstName,
	SortByLastName:  schema.UserAccount.LastName,
	SortByCreatedAt: schema.UserAccount.CreatedAt,
}

// scanUser reads one account row in [accountColumns] order, followed by extra destinations.
func scanUser(row pgx.Row, extra ...any) (*User, error) {
	user := &User{}
	destinations := append([]any{
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Roles,
		&user.IsActive,
		&user.IsVerified,
		&user.VerificationTokenHash,
		&user.VerificationExpiresAt,
		&user.ResetTokenHash,
		&user.ResetExpiresAt,
		&user.AuthProvider,
		&user.ProviderID,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	}, extra...)

	if err := row.Scan(destinations...); err != nil {
		return nil, err
	}
	return user, nil
}

// # User Repository

// PostgresUserRepository implements [UserDirectory] using pgx.
type PostgresUserRepository struct {
	db postgres.DB
}

// NewUserRepository creates a new PostgreSQL implementation of the [UserDirectory].
func NewUserRepository(db postgres.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (repository *PostgresUserRepository) findOne(context context.Context, action, condition string, args ...any) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, accountColumns, schema.UserAccount.Table, condition)

	user, err := scanUser(postgres.Conn(context, repository.db).QueryRow(context, query, args...))
	if err != nil {
		return nil, dberr.Wrap(err, resourceUser, action)
	}
	return user, nil
}

// FindByID retrieves a user record by primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, "postgres_user_repo_find_by_id_failed",
		fmt.Sprintf("%s = $1", schema.UserAccount.ID), id)
}

// FindByIDForUpdate retrieves and locks a user record for the rest of the transaction.
func (repository *PostgresUserRepository) FindByIDForUpdate(context context.Context, id string) (*User, error) {
	return repository.findOne(context, "postgres_user_repo_find_by_id_failed",
		fmt.Sprintf("%s = $1 FOR UPDATE", schema.UserAccount.ID), id)
}

/*
FindByEmail retrieves a user record by their unique email address.

Parameters:
  - context: context.Context
  - email: string (matched through [EmailKey], so case is irrelevant)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, "postgres_user_repo_find_by_email_failed",
		fmt.Sprintf("%s = $1", schema.UserAccount.EmailKey), EmailKey(email))
}

// FindByVerificationToken locks and returns the account holding a live verification digest.
func (repository *PostgresUserRepository) FindByVerificationToken(context context.Context, tokenHash string, now time.Time) (*User, error) {
	condition := fmt.Sprintf("%s = $1 AND (%s IS NULL OR %s > $2) FOR UPDATE",
		schema.UserAccount.VerificationTokenHash,
		schema.UserAccount.VerificationExpiresAt, schema.UserAccount.VerificationExpiresAt,
	)
	return repository.findOne(context, "postgres_user_repo_find_by_verification_failed", condition, tokenHash, now)
}

// FindByResetToken locks and returns the account holding an unexpired reset digest.
func (repository *PostgresUserRepository) FindByResetToken(context context.Context, tokenHash string, now time.Time) (*User, error) {
	condition := fmt.Sprintf("%s = $1 AND %s > $2 FOR UPDATE",
		schema.UserAccount.ResetTokenHash, schema.UserAccount.ResetExpiresAt,
	)
	return repository.findOne(context, "postgres_user_repo_find_by_reset_failed", condition, tokenHash, now)
}

/*
Create persists a new user record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist, timestamps set by the caller)

Returns:
  - error: apperr.Conflict on a duplicate email, or database errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12, $13, $14, $15, $16, $17, $18)`,
		schema.UserAccount.Table, strings.Join(schema.UserAccount.Columns(), ", "), schema.UserAccount.EmailKey,
	)

	_, err := postgres.Conn(context, repository.db).Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Roles,
		user.IsActive,
		user.IsVerified,
		user.VerificationTokenHash,
		user.VerificationExpiresAt,
		user.ResetTokenHash,
		user.ResetExpiresAt,
		user.AuthProvider,
		user.ProviderID,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
		EmailKey(user.Email),
	)

	return dberr.Wrap(err, resourceUser, "postgres_user_repo_create_failed")
}

// exec runs a single-row write and maps a missing row to NOT_FOUND.
func (repository *PostgresUserRepository) exec(context context.Context, action, query string, args ...any) error {
	tag, err := postgres.Conn(context, repository.db).Exec(context, query, args...)
	if err != nil {
		return dberr.Wrap(err, resourceUser, action)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceUser)
	}
	return nil
}

// SetVerificationToken replaces the verification digest and its optional expiry.
func (repository *PostgresUserRepository) SetVerificationToken(context context.Context, userID, tokenHash string, expiresAt *time.Time, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NULLIF($2, ''), %s = $3, %s = $4 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.VerificationTokenHash, schema.UserAccount.VerificationExpiresAt,
		schema.UserAccount.UpdatedAt, schema.UserAccount.ID,
	)
	return repository.exec(context, "postgres_user_repo_set_verification_failed", query, userID, tokenHash, expiresAt, at)
}

// SetResetToken replaces the reset digest and its expiry.
func (repository *PostgresUserRepository) SetResetToken(context context.Context, userID, tokenHash string, expiresAt time.Time, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NULLIF($2, ''), %s = $3, %s = $4 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.ResetTokenHash, schema.UserAccount.ResetExpiresAt,
		schema.UserAccount.UpdatedAt, schema.UserAccount.ID,
	)
	return repository.exec(context, "postgres_user_repo_set_reset_failed", query, userID, tokenHash, expiresAt, at)
}

// MarkVerified sets the verified flag and drops the verification digest.
func (repository *PostgresUserRepository) MarkVerified(context context.Context, userID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = NULL, %s = NULL, %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.IsVerified,
		schema.UserAccount.VerificationTokenHash, schema.UserAccount.VerificationExpiresAt,
		schema.UserAccount.UpdatedAt, schema.UserAccount.ID,
	)
	return repository.exec(context, "postgres_user_repo_mark_verified_failed", query, userID, at)
}

/*
SetPassword replaces the password digest and clears any pending reset digest.

Parameters:
  - context: context.Context
  - userID: string
  - passwordHash: string (bcrypt digest)
  - at: time.Time (update stamp)

Returns:
  - error: apperr.NotFound if the row vanished, or database errors
*/
func (repository *PostgresUserRepository) SetPassword(context context.Context, userID, passwordHash string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = NULL, %s = NULL, %s = $3 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.Password,
		schema.UserAccount.ResetTokenHash, schema.UserAccount.ResetExpiresAt,
		schema.UserAccount.UpdatedAt, schema.UserAccount.ID,
	)
	return repository.exec(context, "postgres_user_repo_set_password_failed", query, userID, passwordHash, at)
}

// UpdateProfile writes names, roles and the active flag of an account.
func (repository *PostgresUserRepository) UpdateProfile(context context.Context, user *User) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6 WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.FirstName, schema.UserAccount.LastName, schema.UserAccount.Roles,
		schema.UserAccount.IsActive, schema.UserAccount.UpdatedAt, schema.UserAccount.ID,
	)
	return repository.exec(context, "postgres_user_repo_update_profile_failed", query,
		user.ID, user.FirstName, user.LastName, user.Roles, user.IsActive, user.UpdatedAt)
}

// UpdateLastLogin stamps the last successful login.
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, userID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.LastLoginAt, schema.UserAccount.ID)

	if _, err := postgres.Conn(context, repository.db).Exec(context, query, userID, at); err != nil {
		return fmt.Errorf("postgres_user_repo_last_login_failed: %w", err)
	}
	return nil
}

// Delete removes an account row; its refresh tokens cascade.
func (repository *PostgresUserRepository) Delete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.UserAccount.Table, schema.UserAccount.ID)

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceUser)
	}
	return nil
}

// ClearExpiredResetTokens nulls every reset digest whose expiry has passed.
func (repository *PostgresUserRepository) ClearExpiredResetTokens(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = NULL, %s = NULL
		WHERE %s IS NOT NULL AND %s <= $1`,
		schema.UserAccount.Table,
		schema.UserAccount.ResetTokenHash, schema.UserAccount.ResetExpiresAt,
		schema.UserAccount.ResetExpiresAt, schema.UserAccount.ResetExpiresAt,
	)

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_user_repo_clear_reset_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClearExpiredVerificationTokens nulls every verification digest whose expiry has passed.
// Digests without an expiry are left alone.
func (repository *PostgresUserRepository) ClearExpiredVerificationTokens(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = NULL, %s = NULL
		WHERE %s IS NOT NULL AND %s <= $1`,
		schema.UserAccount.Table,
		schema.UserAccount.VerificationTokenHash, schema.UserAccount.VerificationExpiresAt,
		schema.UserAccount.VerificationExpiresAt, schema.UserAccount.VerificationExpiresAt,
	)

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_user_repo_clear_verification_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
List returns a filtered, paginated slice of accounts and the total count.

Description: Uses COUNT(*) OVER() to retrieve the total match count without
a second query.

Parameters:
  - context: context.Context
  - filter: UserFilter (Search, role, active flag, sorting, paging)

Returns:
  - []*User: Slice of hydrated accounts
  - int: Total count matching filters
  - error: Database execution errors
*/
func (repository *PostgresUserRepository) List(context context.Context, filter UserFilter) ([]*User, int, error) {

	// Query build initialization
	var queryBuilder strings.Builder
	var args []any
	argID := 1

	queryBuilder.WriteString(fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count FROM %s WHERE TRUE`,
		accountColumns, schema.UserAccount.Table))

	// Free-text search over email and names
	if filter.Search != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND (%s ILIKE $%d OR %s ILIKE $%d OR %s ILIKE $%d)",
			schema.UserAccount.Email, argID,
			schema.UserAccount.FirstName, argID,
			schema.UserAccount.LastName, argID,
		))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argID++
	}

	// Role membership
	if filter.Role != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND $%d = ANY(%s)", argID, schema.UserAccount.Roles))
		args = append(args, filter.Role)
		argID++
	}

	// Activation state
	if filter.IsActive != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", schema.UserAccount.IsActive, argID))
		args = append(args, *filter.IsActive)
		argID++
	}

	sortColumn, ok := sortColumns[filter.SortBy]
	if !ok {
		sortColumn = schema.UserAccount.CreatedAt
	}

	sortDir := "ASC"
	if filter.SortDesc {
		sortDir = "DESC"
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY %s %s, %s ASC", sortColumn, sortDir, schema.UserAccount.ID))
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, filter.Limit, filter.Offset)

	rows, err := postgres.Conn(context, repository.db).Query(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_failed: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0, filter.Limit)
	var totalCount int

	for rows.Next() {
		user, err := scanUser(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_list_scan_failed: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_rows_failed: %w", err)
	}

	return users, totalCount, nil
}

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// # Refresh Token Repository

// PostgresRefreshTokenRepository implements [RefreshTokenRepository] using pgx.
type PostgresRefreshTokenRepository struct {
	db postgres.DB
}

// NewRefreshTokenRepository creates a new PostgreSQL implementation of the [RefreshTokenRepository].
func NewRefreshTokenRepository(db postgres.DB) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db}
}

// Create inserts a refresh token row.
func (repository *PostgresRefreshTokenRepository) Create(context context.Context, token *RefreshToken) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)`,
		schema.UserRefreshToken.Table, strings.Join(schema.UserRefreshToken.Columns(), ", "))

	_, err := postgres.Conn(context, repository.db).Exec(context, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)

	return dberr.Wrap(err, "Refresh token", "postgres_refresh_repo_create_failed")
}

// FindByHash looks a token up by its digest.
func (repository *PostgresRefreshTokenRepository) FindByHash(context context.Context, tokenHash string) (*RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		strings.Join(schema.UserRefreshToken.Columns(), ", "),
		schema.UserRefreshToken.Table, schema.UserRefreshToken.TokenHash)

	token := &RefreshToken{}
	err := postgres.Conn(context, repository.db).QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "Refresh token", "postgres_refresh_repo_find_failed")
	}

	return token, nil
}

// DeleteByHash removes the token with the given digest.
func (repository *PostgresRefreshTokenRepository) DeleteByHash(context context.Context, tokenHash string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.TokenHash)

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, tokenHash)
	if err != nil {
		return false, fmt.Errorf("postgres_refresh_repo_delete_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByUser removes every token of a user.
func (repository *PostgresRefreshTokenRepository) DeleteByUser(context context.Context, userID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.UserID)

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_delete_by_user_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes every token whose expiry is at or before now.
func (repository *PostgresRefreshTokenRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s <= $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.ExpiresAt)

	tag, err := postgres.Conn(context, repository.db).Exec(context, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
