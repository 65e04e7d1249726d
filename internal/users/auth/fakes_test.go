// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testIssuer   = "yomira-identity"
	testPassword = "Password123!"
)

var testEpoch = time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)

// # In-memory UserDirectory

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]auth.User

	// afterEmailLookup, when set, runs between a FindByEmail read and its return.
	afterEmailLookup func()
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]auth.User{}}
}

func cloneUser(user auth.User) *auth.User {
	user.Roles = append([]string(nil), user.Roles...)
	return &user
}

func (store *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return cloneUser(user), nil
}

func (store *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	key := auth.EmailKey(email)
	user, err := store.findFirst(func(user auth.User) bool { return auth.EmailKey(user.Email) == key })
	if hook := store.afterEmailLookup; hook != nil {
		hook()
	}
	return user, err
}

func (store *memoryUsers) FindByIDForUpdate(ctx context.Context, id string) (*auth.User, error) {
	return store.FindByID(ctx, id)
}

func (store *memoryUsers) FindByVerificationToken(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	return store.findFirst(func(user auth.User) bool {
		return user.VerificationTokenHash != "" && user.VerificationTokenHash == tokenHash &&
			(user.VerificationExpiresAt == nil || user.VerificationExpiresAt.After(now))
	})
}

func (store *memoryUsers) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	return store.findFirst(func(user auth.User) bool {
		return user.ResetTokenHash != "" && user.ResetTokenHash == tokenHash &&
			user.ResetExpiresAt != nil && user.ResetExpiresAt.After(now)
	})
}

func (store *memoryUsers) findFirst(match func(user auth.User) bool) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, user := range store.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryUsers) Create(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, existing := range store.users {
		if auth.EmailKey(existing.Email) == auth.EmailKey(user.Email) {
			return apperr.Conflict("User already exists")
		}
	}
	store.users[user.ID] = *cloneUser(*user)
	return nil
}

// modify applies change to the stored row, touching nothing else.
func (store *memoryUsers) modify(id string, change func(user *auth.User)) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[id]
	if !ok {
		return apperr.NotFound("User")
	}
	change(&user)
	store.users[id] = user
	return nil
}

func (store *memoryUsers) SetVerificationToken(_ context.Context, userID, tokenHash string, expiresAt *time.Time, at time.Time) error {
	return store.modify(userID, func(user *auth.User) {
		user.VerificationTokenHash = tokenHash
		user.VerificationExpiresAt = expiresAt
		user.UpdatedAt = at
	})
}

func (store *memoryUsers) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time, at time.Time) error {
	return store.modify(userID, func(user *auth.User) {
		user.ResetTokenHash = tokenHash
		user.ResetExpiresAt = &expiresAt
		user.UpdatedAt = at
	})
}

func (store *memoryUsers) MarkVerified(_ context.Context, userID string, at time.Time) error {
	return store.modify(userID, func(user *auth.User) {
		user.IsVerified = true
		user.VerificationTokenHash = ""
		user.VerificationExpiresAt = nil
		user.UpdatedAt = at
	})
}

func (store *memoryUsers) SetPassword(_ context.Context, userID, passwordHash string, at time.Time) error {
	return store.modify(userID, func(user *auth.User) {
		user.PasswordHash = passwordHash
		user.ResetTokenHash = ""
		user.ResetExpiresAt = nil
		user.UpdatedAt = at
	})
}

func (store *memoryUsers) UpdateProfile(_ context.Context, profile *auth.User) error {
	return store.modify(profile.ID, func(user *auth.User) {
		user.FirstName = profile.FirstName
		user.LastName = profile.LastName
		user.Roles = append([]string(nil), profile.Roles...)
		user.IsActive = profile.IsActive
		user.UpdatedAt = profile.UpdatedAt
	})
}

func (store *memoryUsers) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user := store.users[userID]
	user.LastLoginAt = &at
	store.users[userID] = user
	return nil
}

func (store *memoryUsers) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.users[id]; !ok {
		return apperr.NotFound("User")
	}
	delete(store.users, id)
	return nil
}

func (store *memoryUsers) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var cleared int64
	for id, user := range store.users {
		if user.ResetExpiresAt != nil && !user.ResetExpiresAt.After(now) {
			user.ResetTokenHash = ""
			user.ResetExpiresAt = nil
			store.users[id] = user
			cleared++
		}
	}
	return cleared, nil
}

func (store *memoryUsers) ClearExpiredVerificationTokens(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var cleared int64
	for id, user := range store.users {
		if user.VerificationExpiresAt != nil && !user.VerificationExpiresAt.After(now) {
			user.VerificationTokenHash = ""
			user.VerificationExpiresAt = nil
			store.users[id] = user
			cleared++
		}
	}
	return cleared, nil
}

func (store *memoryUsers) List(_ context.Context, filter auth.UserFilter) ([]*auth.User, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var matched []*auth.User
	for _, user := range store.users {
		if filter.Search != "" && !strings.Contains(auth.EmailKey(user.Email), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.IsActive != nil && user.IsActive != *filter.IsActive {
			continue
		}
		matched = append(matched, cloneUser(user))
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })

	total := len(matched)
	if filter.Offset >= total {
		return []*auth.User{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

// stored returns the persisted copy of a user by email.
func (store *memoryUsers) stored(t *testing.T, email string) *auth.User {
	t.Helper()
	user, err := store.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return user
}

// # In-memory RefreshTokenRepository

type memoryRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]auth.RefreshToken
}

func newMemoryRefreshTokens() *memoryRefreshTokens {
	return &memoryRefreshTokens{tokens: map[string]auth.RefreshToken{}}
}

func (store *memoryRefreshTokens) Create(_ context.Context, token *auth.RefreshToken) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.tokens[token.TokenHash] = *token
	return nil
}

func (store *memoryRefreshTokens) FindByHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	token, ok := store.tokens[tokenHash]
	if !ok {
		return nil, apperr.NotFound("Refresh token")
	}
	return &token, nil
}

func (store *memoryRefreshTokens) DeleteByHash(_ context.Context, tokenHash string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	_, ok := store.tokens[tokenHash]
	delete(store.tokens, tokenHash)
	return ok, nil
}

func (store *memoryRefreshTokens) DeleteByUser(_ context.Context, userID string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var removed int64
	for hash, token := range store.tokens {
		if token.UserID == userID {
			delete(store.tokens, hash)
			removed++
		}
	}
	return removed, nil
}

func (store *memoryRefreshTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var removed int64
	for hash, token := range store.tokens {
		if !token.ExpiresAt.After(now) {
			delete(store.tokens, hash)
			removed++
		}
	}
	return removed, nil
}

func (store *memoryRefreshTokens) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.tokens)
}

// # Transactor & Notifier

// passthroughTransactor runs work directly; the fakes have no rollback.
type passthroughTransactor struct{}

func (passthroughTransactor) WithinTx(ctx context.Context, work func(ctx context.Context) error) error {
	return work(ctx)
}

type sentNotification struct {
	Kind  string
	Email string
	Token string
	Name  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (notifier *recordingNotifier) record(kind, email, token, name string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.sent = append(notifier.sent, sentNotification{Kind: kind, Email: email, Token: token, Name: name})
	return notifier.err
}

func (notifier *recordingNotifier) SendVerification(_ context.Context, email, token, name string) error {
	return notifier.record("verification", email, token, name)
}

func (notifier *recordingNotifier) SendPasswordReset(_ context.Context, email, token, name string) error {
	return notifier.record("password_reset", email, token, name)
}

func (notifier *recordingNotifier) SendWelcome(_ context.Context, email, name string) error {
	return notifier.record("welcome", email, "", name)
}

func (notifier *recordingNotifier) SendPasswordChanged(_ context.Context, email, name string) error {
	return notifier.record("password_changed", email, "", name)
}

// last returns the most recent notification of kind, or fails the test.
func (notifier *recordingNotifier) last(t *testing.T, kind string) sentNotification {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	for i := len(notifier.sent) - 1; i >= 0; i-- {
		if notifier.sent[i].Kind == kind {
			return notifier.sent[i]
		}
	}
	t.Fatalf("no %q notification sent", kind)
	return sentNotification{}
}

func (notifier *recordingNotifier) count(kind string) int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	total := 0
	for _, sent := range notifier.sent {
		if sent.Kind == kind {
			total++
		}
	}
	return total
}

// # Harness

type harness struct {
	users    *memoryUsers
	tokens   *memoryRefreshTokens
	notifier *recordingNotifier
	clock    *clock.Manual
	codec    *sec.TokenCodec
	hasher   *sec.PasswordHasher
	refresh  *auth.RefreshTokenStore
	service  *auth.Service
}

type harnessOption func(options *auth.Options)

func withRotation() harnessOption {
	return func(options *auth.Options) { options.RotateRefreshTokens = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	manual := clock.NewManual(testEpoch)
	users := newMemoryUsers()
	tokens := newMemoryRefreshTokens()
	notifier := &recordingNotifier{}

	hasher, err := sec.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	codec, err := sec.NewTokenCodec(testSecret, testIssuer, manual)
	require.NoError(t, err)

	refreshStore := auth.NewRefreshTokenStore(tokens, users, manual, 7*24*time.Hour)
	ephemeral := auth.NewEphemeralTokenIssuer(users, manual, time.Hour, 24*time.Hour)

	options := auth.Options{AccessTokenTTL: time.Hour}
	for _, opt := range opts {
		opt(&options)
	}

	service := auth.NewService(auth.Dependencies{
		Users:         users,
		RefreshTokens: refreshStore,
		Ephemeral:     ephemeral,
		Hasher:        hasher,
		Tokens:        codec,
		Notifier:      notifier,
		Transactor:    passthroughTransactor{},
		Clock:         manual,
	}, options)

	return &harness{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		clock:    manual,
		codec:    codec,
		hasher:   hasher,
		refresh:  refreshStore,
		service:  service,
	}
}

// registerVerified creates an account and confirms its email.
func (h *harness) registerVerified(t *testing.T, email string) *auth.PublicUser {
	t.Helper()
	ctx := context.Background()

	user, err := h.service.Register(ctx, auth.RegisterInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)

	token := h.notifier.last(t, "verification").Token
	require.NoError(t, h.service.VerifyEmail(ctx, token))
	return user
}

// requireCode asserts that err carries the given apperr code.
func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)

	var appError *apperr.AppError
	require.True(t, errors.As(err, &appError), "expected an AppError, got %v", err)
	require.Equal(t, code, appError.Code)
}
