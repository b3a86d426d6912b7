package account_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/expensetest"
	"github.com/splax/expensetracker/internal/service/account"
	"github.com/splax/expensetracker/internal/service/auth"
)

type fixture struct {
	ctx     context.Context
	auth    auth.Service
	account account.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := expensetest.NewSQLiteStore(t)
	hasher := expensetest.NewHasher(t)
	log := expensetest.DiscardLogger()
	return fixture{
		ctx:     context.Background(),
		auth:    auth.New(store, hasher, expensetest.NewTokens(t), log, auth.Config{}),
		account: account.New(store, hasher, log),
	}
}

func (f fixture) register(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	u, err := f.auth.Register(f.ctx, username, email, password)
	require.NoError(t, err)
	return u
}

func TestProfileReloadsActor(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "alice@x.com", "pw1")

	stale := *alice
	stale.Email = "stale@x.com"
	got, err := f.account.Profile(f.ctx, &stale)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", got.Email)

	_, err = f.account.Profile(f.ctx, nil)
	assert.ErrorIs(t, err, account.ErrNoActor)
}

func TestUpdateProfileEmail(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "alice@x.com", "pw1")
	f.register(t, "bob", "bob@x.com", "pw2")

	_, err := f.account.UpdateProfile(f.ctx, alice, account.ProfileInput{Email: expensetest.Ptr("bob@x.com")})
	assert.ErrorIs(t, err, account.ErrDuplicateEmail)

	_, err = f.account.UpdateProfile(f.ctx, alice, account.ProfileInput{Email: expensetest.Ptr(" ")})
	assert.ErrorIs(t, err, account.ErrInvalidInput)

	unchanged, err := f.account.UpdateProfile(f.ctx, alice, account.ProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", unchanged.Email)

	updated, err := f.account.UpdateProfile(f.ctx, alice, account.ProfileInput{Email: expensetest.Ptr("alice@y.com")})
	require.NoError(t, err)
	assert.Equal(t, "alice@y.com", updated.Email)
	assert.Equal(t, "alice", updated.Username)

	// login by username still works and the password is untouched
	_, err = f.auth.Authenticate(f.ctx, "alice", "pw1")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "alice@x.com", "pw1")

	assert.ErrorIs(t, f.account.ChangePassword(f.ctx, alice, "wrong", "pw2"), account.ErrWrongCurrentPassword)
	assert.ErrorIs(t, f.account.ChangePassword(f.ctx, alice, "pw1", ""), account.ErrInvalidInput)
	tooLong := f.account.ChangePassword(f.ctx, alice, "pw1", strings.Repeat("p", 73))
	assert.ErrorIs(t, tooLong, account.ErrInvalidInput)
	assert.ErrorIs(t, tooLong, account.ErrPasswordTooLong)

	_, err := f.auth.Authenticate(f.ctx, "alice", "pw1")
	require.NoError(t, err, "failed changes must leave the old password valid")

	require.NoError(t, f.account.ChangePassword(f.ctx, alice, "pw1", "pw2"))

	_, err = f.auth.Authenticate(f.ctx, "alice", "pw1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.auth.Authenticate(f.ctx, "alice", "pw2")
	assert.NoError(t, err)
}
