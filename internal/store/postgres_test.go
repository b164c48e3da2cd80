package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/debatearena/server/internal/debate"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("debates"),
		postgres.WithUsername("debate"),
		postgres.WithPassword("debate"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))

	t.Run("Record", func(t *testing.T) {
		require.NoError(t, s.Record(ctx, finishedSnapshot(debate.ReasonJudged, true)))
	})

	t.Run("Latest", func(t *testing.T) {
		rec, err := s.Latest(ctx, "ABC234")
		require.NoError(t, err)
		assert.Equal(t, "AI ethics", rec.Topic)
		assert.Equal(t, "bob", rec.WinnerUserID)
		require.Len(t, rec.Messages, 2)
		assert.Equal(t, "AI helps society", rec.Messages[0].Text)
	})

	t.Run("Latest_NotFound", func(t *testing.T) {
		_, err := s.Latest(ctx, "NOPE00")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("History", func(t *testing.T) {
		recs, err := s.History(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Empty(t, recs[0].Messages)
	})
}
