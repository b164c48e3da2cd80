package debate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/debatearena/server/internal/clock"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// --- Emitter ---

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (e *recordingEmitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) all() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

// namesFor lists the event names delivered to userID, in order.
func (e *recordingEmitter) namesFor(userID string) []string {
	var out []string
	for _, ev := range e.all() {
		for _, to := range ev.To {
			if to == userID {
				out = append(out, ev.Name)
			}
		}
	}
	return out
}

func (e *recordingEmitter) last(name string) (Event, bool) {
	evs := e.all()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Name == name {
			return evs[i], true
		}
	}
	return Event{}, false
}

func (e *recordingEmitter) count(name string) int {
	n := 0
	for _, ev := range e.all() {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// --- Judge ---

type MockJudge struct {
	mock.Mock
}

func (m *MockJudge) Judge(ctx context.Context, in JudgeInput) (Verdict, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(Verdict), args.Error(1)
}

// blockingJudge never answers until its context is cancelled.
var blockingJudge = JudgeFunc(func(ctx context.Context, _ JudgeInput) (Verdict, error) {
	<-ctx.Done()
	return Verdict{}, ctx.Err()
})

type fixture struct {
	clk      *clock.Fake
	emitter  *recordingEmitter
	finished chan Snapshot
	opts     RoomOptions
}

func newFixture(judge Judge) *fixture {
	f := &fixture{
		clk:      clock.NewFake(epoch),
		emitter:  &recordingEmitter{},
		finished: make(chan Snapshot, 4),
	}
	f.opts = RoomOptions{
		Clock:   f.clk,
		Emitter: f.emitter,
		Judge:   judge,
		OnFinished: func(s Snapshot) {
			f.finished <- s
		},
	}.withDefaults()
	return f
}

func (f *fixture) room(topic string) *Room {
	return newRoom("R1", topic, f.opts)
}

// startedRoom returns an ongoing room with alice on "for" and bob on
// "against".
func (f *fixture) startedRoom(t *testing.T) *Room {
	t.Helper()
	r := f.room("AI ethics")
	_, err := r.Join("alice", "Alice", "c-alice")
	require.NoError(t, err)
	_, err = r.Join("bob", "Bob", "c-bob")
	require.NoError(t, err)
	require.Equal(t, StatusOngoing, r.Status())
	return r
}

func (f *fixture) waitFinished(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-f.finished:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("room did not finish")
		return Snapshot{}
	}
}

// playScript sends exactly the scripted number of messages for every phase.
func playScript(t *testing.T, r *Room, forUser, againstUser string) {
	t.Helper()
	for i, phase := range DefaultScript {
		user := forUser
		if phase.Side == SideAgainst {
			user = againstUser
		}
		for n := 0; n < phase.MessageLimit; n++ {
			_, err := r.SendMessage(user, "argument")
			require.NoError(t, err, "phase %d message %d", i, n)
		}
	}
}
