package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom-dev/syncroom/internal/collab"
	"github.com/syncroom-dev/syncroom/internal/database"
	"github.com/syncroom-dev/syncroom/internal/services"
)

func sweeperFixture(t *testing.T) (*collab.Engine, *services.SessionStoreService) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := services.NewSessionStoreService(db)
	require.NoError(t, err)
	return collab.NewEngine(collab.WithSessionStore(store)), store
}

func TestRunOncePurgesExpiredSessions(t *testing.T) {
	engine, store := sweeperFixture(t)
	ctx := context.Background()

	sessionID, err := engine.CreateSession(ctx, collab.CreateSessionParams{
		ResourceID: "conv-1",
		CreatorID:  "alice",
	})
	require.NoError(t, err)
	require.NoError(t, engine.CloseSession(ctx, sessionID, "alice"))

	// Clock far in the future so the closed session falls outside retention.
	future := time.Now().Add(60 * 24 * time.Hour)
	sweeper := NewSweeper(engine, store,
		WithNow(func() time.Time { return future }),
		WithSessionRetention(30*24*time.Hour),
	)

	require.NoError(t, sweeper.RunOnce(ctx))

	_, err = store.Get(ctx, sessionID)
	assert.Error(t, err)
}

func TestRunOnceKeepsRecentSessions(t *testing.T) {
	engine, store := sweeperFixture(t)
	ctx := context.Background()

	sessionID, err := engine.CreateSession(ctx, collab.CreateSessionParams{
		ResourceID: "conv-1",
		CreatorID:  "alice",
	})
	require.NoError(t, err)
	require.NoError(t, engine.CloseSession(ctx, sessionID, "alice"))

	sweeper := NewSweeper(engine, store)
	require.NoError(t, sweeper.RunOnce(ctx))

	_, err = store.Get(ctx, sessionID)
	assert.NoError(t, err)
}

func TestStartRegistersJobs(t *testing.T) {
	engine, store := sweeperFixture(t)

	sweeper := NewSweeper(engine, store,
		WithSweepSchedule("@every 1h"),
		WithPurgeSchedule("@every 1h"),
	)
	require.NoError(t, sweeper.Start())

	stopCtx := sweeper.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
