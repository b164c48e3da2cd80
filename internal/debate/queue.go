package debate

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/metrics"
)

// Queue is the ranked matchmaking queue. Entries are paired strictly in
// arrival order and a user appears at most once.
type Queue struct {
	mu      sync.Mutex
	entries []QueueEntry
	queued  map[string]bool
	rooms   *Registry
	topic   func() string
}

// NewQueue creates a queue pairing into rooms of rg. topic picks the motion
// for every new pairing.
func NewQueue(rg *Registry, topic func() string) *Queue {
	return &Queue{
		queued: make(map[string]bool),
		rooms:  rg,
		topic:  topic,
	}
}

// Enqueue appends a user to the tail of the queue and returns its 1-based
// position. connID is the connection the user will be seated with once
// paired.
func (q *Queue) Enqueue(userID, username, connID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queued[userID] {
		return 0, ErrAlreadyQueued
	}
	q.entries = append(q.entries, QueueEntry{
		UserID:       userID,
		Username:     username,
		ConnectionID: connID,
		EnqueuedAt:   q.rooms.opts.Clock.Now(),
	})
	q.queued[userID] = true
	metrics.QueueSize.Set(float64(len(q.entries)))
	return len(q.entries), nil
}

// Dequeue removes a user. It reports whether the user was queued.
func (q *Queue) Dequeue(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.queued[userID] {
		return false
	}
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.queued, userID)
	metrics.QueueSize.Set(float64(len(q.entries)))
	return true
}

// TryPair pops the two oldest entries and starts a ranked room for them.
// It returns a nil room when fewer than two users are waiting. On failure
// both entries are put back in front.
func (q *Queue) TryPair() (*Room, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < 2 {
		return nil, nil
	}
	a, b := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	delete(q.queued, a.UserID)
	delete(q.queued, b.UserID)

	room, err := q.rooms.createMatched(q.topic(), a, b)
	if err != nil {
		q.entries = append([]QueueEntry{a, b}, q.entries...)
		q.queued[a.UserID] = true
		q.queued[b.UserID] = true
		log.Warn().Err(err).Msg("ranked pairing failed, entries restored")
		return nil, err
	}
	metrics.QueueSize.Set(float64(len(q.entries)))
	metrics.MatchesMade.Inc()
	log.Info().Str("room", room.ID()).Str("for", a.UserID).Str("against", b.UserID).Msg("ranked match made")
	return room, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Position returns the 1-based position of userID, or 0 if not queued.
func (q *Queue) Position(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Entries returns a copy of the waiting users in queue order.
func (q *Queue) Entries() []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueueEntry(nil), q.entries...)
}
