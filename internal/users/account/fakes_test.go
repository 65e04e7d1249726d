// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/users/account"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

var testEpoch = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

// # Fakes

// directory is a map-backed auth.UserDirectory that records the last filter.
type directory struct {
	mu         sync.Mutex
	users      map[string]auth.User
	lastFilter auth.UserFilter
}

func newDirectory() *directory {
	return &directory{users: map[string]auth.User{}}
}

func (store *directory) seed(user auth.User) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.users[user.ID] = user
}

func (store *directory) get(t *testing.T, id string) auth.User {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[id]
	require.True(t, ok, "user %s not stored", id)
	return user
}

func (store *directory) FindByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	user.Roles = append([]string(nil), user.Roles...)
	return &user, nil
}

func (store *directory) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, user := range store.users {
		if auth.EmailKey(user.Email) == auth.EmailKey(email) {
			return &user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *directory) FindByVerificationToken(context.Context, string, time.Time) (*auth.User, error) {
	return nil, apperr.NotFound("User")
}

func (store *directory) FindByResetToken(context.Context, string, time.Time) (*auth.User, error) {
	return nil, apperr.NotFound("User")
}

func (store *directory) Create(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, existing := range store.users {
		if auth.EmailKey(existing.Email) == auth.EmailKey(user.Email) {
			return apperr.Conflict("User already exists")
		}
	}
	store.users[user.ID] = *user
	return nil
}

func (store *directory) FindByIDForUpdate(ctx context.Context, id string) (*auth.User, error) {
	return store.FindByID(ctx, id)
}

func (store *directory) UpdateProfile(_ context.Context, profile *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	user, ok := store.users[profile.ID]
	if !ok {
		return apperr.NotFound("User")
	}
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Roles = append([]string(nil), profile.Roles...)
	user.IsActive = profile.IsActive
	user.UpdatedAt = profile.UpdatedAt
	store.users[profile.ID] = user
	return nil
}

func (store *directory) SetVerificationToken(context.Context, string, string, *time.Time, time.Time) error {
	return nil
}

func (store *directory) SetResetToken(context.Context, string, string, time.Time, time.Time) error {
	return nil
}

func (store *directory) MarkVerified(context.Context, string, time.Time) error { return nil }

func (store *directory) SetPassword(context.Context, string, string, time.Time) error { return nil }

func (store *directory) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (store *directory) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.users[id]; !ok {
		return apperr.NotFound("User")
	}
	delete(store.users, id)
	return nil
}

func (store *directory) ClearExpiredResetTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (store *directory) ClearExpiredVerificationTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (store *directory) List(_ context.Context, filter auth.UserFilter) ([]*auth.User, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.lastFilter = filter

	all := make([]*auth.User, 0, len(store.users))
	for _, user := range store.users {
		user := user
		all = append(all, &user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })

	total := len(all)
	if filter.Offset >= total {
		return []*auth.User{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return all[filter.Offset:end], total, nil
}

// revoker counts session revocations per user.
type revoker struct {
	mu      sync.Mutex
	revoked map[string]int
}

func (r *revoker) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = map[string]int{}
	}
	r.revoked[userID]++
	return 1, nil
}

func (r *revoker) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[userID]
}

type passthroughTransactor struct{}

func (passthroughTransactor) WithinTx(ctx context.Context, work func(ctx context.Context) error) error {
	return work(ctx)
}

// # Fixture

type fixture struct {
	users    *directory
	sessions *revoker
	hasher   *sec.PasswordHasher
	service  *account.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := sec.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	users := newDirectory()
	sessions := &revoker{}

	return &fixture{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		service: account.NewService(account.Dependencies{
			Users:      users,
			Sessions:   sessions,
			Hasher:     hasher,
			Transactor: passthroughTransactor{},
			Clock:      clock.NewManual(testEpoch),
		}),
	}
}

// seedUser stores an active, verified account with the base role.
func (f *fixture) seedUser(id, email string) auth.User {
	user := auth.User{
		ID:           id,
		Email:        email,
		PasswordHash: "digest",
		FirstName:    "Grace",
		LastName:     "Hopper",
		Roles:        []string{"user"},
		IsActive:     true,
		IsVerified:   true,
		AuthProvider: auth.ProviderLocal,
		CreatedAt:    testEpoch.Add(-time.Hour),
		UpdatedAt:    testEpoch.Add(-time.Hour),
	}
	f.users.seed(user)
	return user
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperr.HasCode(err, code), "expected %s, got %v", code, err)
}
