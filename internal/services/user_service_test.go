package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/syncroom-dev/syncroom/pkg/errors"
)

func TestUserRegisterAndGet(t *testing.T) {
	svc, err := NewUserService(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.DisplayName)

	fetched, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, fetched.Username)

	byName, err := svc.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserRegisterValidation(t *testing.T) {
	svc, err := NewUserService(newTestDB(t))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterParams{Email: "x@example.com"})
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), RegisterParams{Username: "x"})
	assert.Error(t, err)
}

func TestUserRegisterDuplicateUsername(t *testing.T) {
	svc, err := NewUserService(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Register(ctx, RegisterParams{Username: "alice", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterParams{Username: "alice", Email: "b@example.com"})
	assert.Error(t, err)
}
