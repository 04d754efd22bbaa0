package services

import (
	"context"
	"testing"
	"time"

	"ironup-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerAlice(t *testing.T, env *testEnv) *models.User {
	t.Helper()
	user, err := env.userSvc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	env := newTestEnv(time.Now)
	user := registerAlice(t, env)

	assert.Equal(t, models.DefaultAvatar, user.Avatar)
	assert.Equal(t, 0, user.Coin)
	assert.Nil(t, user.CurrentGroup)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	stored := env.users.get("alice")
	require.NotNil(t, stored)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(time.Now)
	registerAlice(t, env)
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.userSvc.Register(ctx, RegisterRequest{Username: "bob", Email: "not-an-email", Password: "pw"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.userSvc.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.userSvc.Register(ctx, RegisterRequest{Username: "bob", Email: "alice@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(time.Now)
	registerAlice(t, env)
	ctx := context.Background()

	for _, identifier := range []string{"alice", "alice@example.com"} {
		session, err := env.userSvc.Login(ctx, identifier, "correct horse")
		require.NoError(t, err, identifier)
		assert.Equal(t, "alice", session.Username)

		username, err := env.userSvc.ValidateJWT(session.Token)
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
	}

	_, err := env.userSvc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.userSvc.Login(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.userSvc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateJWT_Rejects(t *testing.T) {
	env := newTestEnv(time.Now)
	user := &models.User{Username: "alice"}

	t.Run("garbage", func(t *testing.T) {
		_, err := env.userSvc.ValidateJWT("not.a.token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewUserService(newMemUserStore(), nil, "another-secret", time.Hour)
		token, err := other.GenerateJWT(user)
		require.NoError(t, err)

		_, err = env.userSvc.ValidateJWT(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewUserService(newMemUserStore(), nil, "test-secret", time.Hour)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.GenerateJWT(user)
		require.NoError(t, err)

		_, err = env.userSvc.ValidateJWT(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "alice"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = env.userSvc.ValidateJWT(signed)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestProfile_ReadsStoreNotToken(t *testing.T) {
	env := newTestEnv(time.Now)
	registerAlice(t, env)
	ctx := context.Background()

	session, err := env.userSvc.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	alice := env.users.get("alice")
	alice.Coin = 2500
	alice.Avatar = "https://example.com/new.png"
	env.users.put(alice)

	username, err := env.userSvc.ValidateJWT(session.Token)
	require.NoError(t, err)

	profile, err := env.userSvc.Profile(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, &models.Profile{Username: "alice", Avatar: "https://example.com/new.png", Coin: 2500}, profile)

	_, err = env.userSvc.Profile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPushToken(t *testing.T) {
	env := newTestEnv(time.Now)
	registerAlice(t, env)
	ctx := context.Background()

	require.NoError(t, env.userSvc.SetPushToken(ctx, "alice", "device-1"))
	require.NotNil(t, env.users.get("alice").PushToken)
	assert.Equal(t, "device-1", *env.users.get("alice").PushToken)

	require.NoError(t, env.userSvc.SetPushToken(ctx, "alice", " "))
	assert.Nil(t, env.users.get("alice").PushToken)

	assert.ErrorIs(t, env.userSvc.SetPushToken(ctx, "ghost", "x"), ErrNotFound)
}

func TestDeleteAccount_LeavesGroupFirst(t *testing.T) {
	env := newTestEnv(time.Now)
	registerAlice(t, env)
	ctx := context.Background()

	group, err := env.groupSvc.CreateGroup(ctx, "alice", validGroupRequest(30))
	require.NoError(t, err)

	require.NoError(t, env.userSvc.DeleteAccount(ctx, "alice"))
	assert.Nil(t, env.users.get("alice"))
	assert.Nil(t, env.groups.get(group.ID), "sole member's group is deleted")

	assert.ErrorIs(t, env.userSvc.DeleteAccount(ctx, "alice"), ErrNotFound)
}
