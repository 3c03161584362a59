// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/auth"
	"github.com/credentia/credentia/internal/auth/memory"
	"github.com/credentia/credentia/pkg/errutil"
)

func TestNewAccountService_Validation(t *testing.T) {
	db := memory.NewDB()

	t.Run("nil user directory", func(t *testing.T) {
		svc, err := auth.NewAccountService(nil, auth.NewArgon2idHasher())
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "user directory is required")
		errutil.AssertErrorCode(t, err, "ACCOUNT_SERVICE_INVALID")
	})

	t.Run("nil hasher", func(t *testing.T) {
		svc, err := auth.NewAccountService(db.Users(), nil)
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "password hasher is required")
	})
}

func TestAccountService_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates confirmed user", func(t *testing.T) {
		env := newTestEnv(t)

		user := env.createUser(t, "alice", "a@x.com", "secret")

		stored := env.findUser(t, user.ID)
		assert.True(t, stored.EmailConfirmed)
		ok, err := env.hasher.Verify("secret", stored.PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)

		entry := env.findLog(t, "user created")
		require.NotNil(t, entry)
		assert.Equal(t, user.ID.String(), entry["user_id"])
	})

	t.Run("rejects duplicate login", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "alice", "a@x.com", "secret")

		_, err := env.accounts.CreateUser(ctx, "alice", "other@x.com", "secret")
		require.Error(t, err)
		assert.Equal(t, []auth.FieldError{{Field: "login", Message: "login already exists"}}, auth.ConflictFields(err))
	})

	t.Run("login colliding with an email counts as taken", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "alice", "a@x.com", "secret")

		_, err := env.accounts.CreateUser(ctx, "bob", "alice", "secret")
		require.Error(t, err)
		assert.True(t, auth.IsAlreadyExists(err))
	})

	t.Run("rejects empty password", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.accounts.CreateUser(ctx, "alice", "a@x.com", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})

	t.Run("infrastructure failure during availability check", func(t *testing.T) {
		db := memory.NewDB()
		users := &failingUsers{UserDirectory: db.Users(), findErr: errors.New("connection reset")}
		svc, err := auth.NewAccountService(users, auth.NewArgon2idHasher())
		require.NoError(t, err)

		_, err = svc.CreateUser(ctx, "alice", "a@x.com", "secret")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AVAILABILITY_CHECK_FAILED")
	})
}

func TestAccountService_DeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("soft delete frees login and email", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t, "alice", "a@x.com", "secret")

		require.NoError(t, env.accounts.DeleteUser(ctx, user.ID))

		_, err := env.users.FindByID(ctx, user.ID)
		assert.ErrorIs(t, err, auth.ErrNotFound)

		again := env.createUser(t, "alice", "a@x.com", "secret")
		assert.NotEqual(t, user.ID, again.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.accounts.DeleteUser(ctx, ulid.Make())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeNotFound)
	})

	t.Run("deleting twice", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.createUser(t, "alice", "a@x.com", "secret")
		require.NoError(t, env.accounts.DeleteUser(ctx, user.ID))

		err := env.accounts.DeleteUser(ctx, user.ID)
		assert.True(t, auth.IsNotFound(err))
	})
}
