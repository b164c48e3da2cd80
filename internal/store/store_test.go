package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debatearena/server/internal/debate"
)

func TestHypeDelta(t *testing.T) {
	tests := []struct {
		winner, loser, want int64
	}{
		{0, 0, 30},
		{100, 300, 40},
		{300, 100, 20},
		{0, 5000, 50},
		{5000, 0, 10},
		{10, 0, 29},
		{0, 19, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HypeDelta(tt.winner, tt.loser), "winner %d loser %d", tt.winner, tt.loser)
	}
}

func finishedSnapshot(reason string, ranked bool) debate.Snapshot {
	done := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	return debate.Snapshot{
		ID:        "ABC234",
		Status:    debate.StatusFinished,
		Topic:     "AI ethics",
		Ranked:    ranked,
		CreatedAt: done.Add(-30 * time.Minute),
		Players: []debate.Player{
			{UserID: "alice", Username: "Alice", Side: debate.SideFor},
			{UserID: "bob", Username: "Bob", Side: debate.SideAgainst},
		},
		Transcript: []debate.Message{
			{ID: "00000000-0000-0000-0000-000000000001", AuthorUserID: "alice", Author: "Alice", Side: debate.SideFor, Text: "AI helps society", Timestamp: done.Add(-20 * time.Minute)},
			{ID: "00000000-0000-0000-0000-000000000002", AuthorUserID: "bob", Author: "Bob", Side: debate.SideAgainst, PhaseIndex: 1, Text: "At what cost?", Timestamp: done.Add(-10 * time.Minute)},
		},
		Result: &debate.Result{
			WinnerUserID: "bob",
			LoserUserID:  "alice",
			Reason:       reason,
			Scores:       &debate.SideScores{For: 55, Against: 70},
			Feedback:     &debate.SideFeedback{For: "vague", Against: "precise"},
		},
		FinishedAt: &done,
	}
}

func TestRated(t *testing.T) {
	assert.True(t, rated(finishedSnapshot(debate.ReasonJudged, true)))
	assert.True(t, rated(finishedSnapshot(debate.ReasonForfeit, true)))
	assert.False(t, rated(finishedSnapshot(debate.ReasonJudged, false)))

	draw := finishedSnapshot(debate.ReasonDraw, true)
	draw.Result.WinnerUserID, draw.Result.LoserUserID = "", ""
	assert.False(t, rated(draw))
	assert.False(t, rated(finishedSnapshot(debate.ReasonBothAbandoned, true)))
}

func TestToRecord(t *testing.T) {
	rec := toRecord(finishedSnapshot(debate.ReasonJudged, true))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "ABC234", rec.RoomID)
	assert.Equal(t, "alice", rec.ForUserID)
	assert.Equal(t, "Bob", rec.AgainstUsername)
	assert.Equal(t, 70, *rec.AgainstScore)
	assert.Equal(t, "precise", rec.AgainstFeedback)
	require.Len(t, rec.Messages, 2)
	assert.Equal(t, rec.ID, rec.Messages[1].DebateID)
	assert.Equal(t, 1, rec.Messages[1].Seq)
	assert.Equal(t, "against", rec.Messages[1].Side)
}

type recorderFunc func(ctx context.Context, s debate.Snapshot) error

func (f recorderFunc) Record(ctx context.Context, s debate.Snapshot) error { return f(ctx, s) }

func TestChainRunsEveryRecorder(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	c := Chain().
		Add("first", recorderFunc(func(context.Context, debate.Snapshot) error {
			calls = append(calls, "first")
			return boom
		})).
		Add("skipped", nil).
		Add("second", recorderFunc(func(context.Context, debate.Snapshot) error {
			calls = append(calls, "second")
			return nil
		}))

	err := c.Record(context.Background(), finishedSnapshot(debate.ReasonJudged, true))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "first: boom")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, c.Len())
}

func TestHypeLedger(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	h, err := NewRedisLedger(ctx, url)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.client.Del(ctx, hypeKey).Err())

	change, err := h.Apply(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, HypeChange{Gained: 30, WinnerHype: 30, Lost: 0, LoserHype: 0}, change)

	change, err = h.Apply(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, HypeChange{Gained: 31, WinnerHype: 31, Lost: 30, LoserHype: 0}, change)

	require.NoError(t, h.Record(ctx, finishedSnapshot(debate.ReasonDraw, true)))
	top, err := h.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].UserID)
}
