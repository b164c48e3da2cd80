package debate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/debatearena/server/internal/clock"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, s Snapshot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func newTestService(rec Recorder) (*Service, *clock.Fake, *recordingEmitter) {
	clk := clock.NewFake(epoch)
	em := &recordingEmitter{}
	svc := NewService(Config{
		Room:     RoomOptions{Clock: clk},
		Topics:   []string{"AI ethics"},
		Recorder: rec,
	})
	svc.SetEmitter(em)
	return svc, clk, em
}

func TestServiceCustomRoomFlow(t *testing.T) {
	svc, _, em := newTestService(nil)

	snap, err := svc.CreateRoom("alice", "Alice", "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "AI ethics", snap.Topic)
	assert.Equal(t, StatusWaiting, snap.Status)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, SideFor, snap.Players[0].Side)

	_, err = svc.CreateRoom("alice", "Alice", "c1", "another")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	side, err := svc.JoinRoom(snap.ID, "bob", "Bob", "c2")
	require.NoError(t, err)
	assert.Equal(t, SideAgainst, side)

	_, err = svc.JoinRoom("MISSING", "bob", "Bob", "c2")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.SendMessage(snap.ID, "bob", "not yet")
	assert.ErrorIs(t, err, ErrNotYourTurn)
	msg, err := svc.SendMessage(snap.ID, "alice", "opening")
	require.NoError(t, err)
	assert.Equal(t, "opening", msg.Text)

	state, err := svc.GetState(snap.ID, "bob")
	require.NoError(t, err)
	assert.Len(t, state.Transcript, 1)
	ev, ok := em.last(EventDebateState)
	require.True(t, ok)
	assert.Equal(t, []string{"bob"}, ev.To)
}

func TestServiceCreateRoomUsesGivenTopic(t *testing.T) {
	svc, _, _ := newTestService(nil)
	snap, err := svc.CreateRoom("alice", "Alice", "c1", "  Cats vs dogs ")
	require.NoError(t, err)
	assert.Equal(t, "Cats vs dogs", snap.Topic)
}

func TestServiceJoinRoomRefusesSecondSeat(t *testing.T) {
	svc, _, _ := newTestService(nil)
	first, err := svc.CreateRoom("alice", "Alice", "c1", "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(first.ID, "bob", "Bob", "c2")
	require.NoError(t, err)
	other, err := svc.CreateRoom("carol", "Carol", "c3", "")
	require.NoError(t, err)

	_, err = svc.JoinRoom(other.ID, "bob", "Bob", "c2")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
	state, err := svc.GetState(other.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, state.Status)
	assert.Len(t, state.Players, 1)

	side, err := svc.JoinRoom(first.ID, "bob", "Bob", "c2")
	require.NoError(t, err)
	assert.Equal(t, SideAgainst, side)
}

func TestServiceRankedPairing(t *testing.T) {
	svc, _, em := newTestService(nil)

	require.NoError(t, svc.JoinRanked("u1", "One", "c-u1"))
	ev, ok := em.last(EventQueueWaiting)
	require.True(t, ok)
	assert.Equal(t, QueueWaitingPayload{V: 1, Position: 1, Queued: 1}, ev.Payload)

	assert.ErrorIs(t, svc.JoinRanked("u1", "One", "c-u1"), ErrAlreadyQueued)

	require.NoError(t, svc.JoinRanked("u2", "Two", "c-u2"))
	assert.Zero(t, svc.Queue().Len())

	rooms := svc.Rooms().FindByUser("u1")
	require.Len(t, rooms, 1)
	assert.Equal(t, StatusOngoing, rooms[0].Status())
	assert.Contains(t, em.namesFor("u2"), EventMatchFound)

	assert.ErrorIs(t, svc.JoinRanked("u1", "One", "c-u1"), ErrAlreadyInRoom)

	side, err := svc.JoinRoom(rooms[0].ID(), "u2", "Two", "c-u2")
	require.NoError(t, err)
	assert.Equal(t, SideAgainst, side)
}

func TestServiceRankedDisconnectForfeits(t *testing.T) {
	svc, clk, em := newTestService(nil)
	require.NoError(t, svc.JoinRanked("u1", "One", "c-u1"))
	require.NoError(t, svc.JoinRanked("u2", "Two", "c-u2"))
	rooms := svc.Rooms().FindByUser("u2")
	require.Len(t, rooms, 1)

	svc.Disconnect("u2", "c-u2")
	assert.Contains(t, em.namesFor("u1"), EventOpponentLeft)

	clk.Advance(DefaultForfeitGrace)
	snap := rooms[0].Snapshot()
	assert.Equal(t, StatusFinished, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, ReasonForfeit, snap.Result.Reason)
	assert.Equal(t, "u1", snap.Result.WinnerUserID)
}

func TestServiceCancelRankedIsNoopWhenNotQueued(t *testing.T) {
	svc, _, em := newTestService(nil)

	svc.CancelRanked("ghost")
	assert.Equal(t, []string{EventQueueCancelled}, em.namesFor("ghost"))

	require.NoError(t, svc.JoinRanked("u1", "One", "c-u1"))
	svc.CancelRanked("u1")
	assert.Zero(t, svc.Queue().Len())
}

func TestServiceDisconnect(t *testing.T) {
	svc, clk, _ := newTestService(nil)
	snap, err := svc.CreateRoom("alice", "Alice", "c1", "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(snap.ID, "bob", "Bob", "c2")
	require.NoError(t, err)
	require.NoError(t, svc.JoinRanked("carol", "Carol", "c-carol"))

	svc.Disconnect("carol", "c3")
	assert.Zero(t, svc.Queue().Len())

	svc.Disconnect("bob", "stale")
	state, err := svc.GetState(snap.ID, "")
	require.NoError(t, err)
	assert.Nil(t, state.Disconnect)

	svc.Disconnect("bob", "c2")
	state, err = svc.GetState(snap.ID, "")
	require.NoError(t, err)
	require.NotNil(t, state.Disconnect)
	assert.Equal(t, "bob", state.Disconnect.UserID)

	clk.Advance(DefaultForfeitGrace)
	state, err = svc.GetState(snap.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ReasonForfeit, state.Result.Reason)
	assert.Equal(t, "alice", state.Result.WinnerUserID)
}

func TestServiceRecordsFinishedDebates(t *testing.T) {
	rec := &MockRecorder{}
	rec.On("Record", mock.Anything, mock.MatchedBy(func(s Snapshot) bool {
		return s.Result != nil && s.Result.Reason == ReasonBothAbandoned
	})).Return(nil).Once()

	svc, _, _ := newTestService(rec)
	snap, err := svc.CreateRoom("alice", "Alice", "c1", "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(snap.ID, "bob", "Bob", "c2")
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(snap.ID, "alice"))
	require.NoError(t, svc.LeaveRoom(snap.ID, "bob"))
	svc.Wait()

	rec.AssertExpectations(t)
}

func TestServiceSweeperStopsWithContext(t *testing.T) {
	svc := NewService(Config{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
