package debate

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/metrics"
)

const roomCodeLength = 6

// Registry is the authoritative map of live rooms. Its lock guards the map
// only. Lock order is registry then room, never the reverse.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	maxRooms int
	opts     RoomOptions
	newCode  func() string
}

// NewRegistry creates an empty registry. maxRooms <= 0 means unlimited.
func NewRegistry(maxRooms int, opts RoomOptions) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
		opts:     opts.withDefaults(),
		newCode:  func() string { return randomCode(roomCodeLength) },
	}
}

// Create registers a new waiting room.
func (rg *Registry) Create(topic string) (*Room, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.full() {
		return nil, ErrCapacityExceeded
	}
	r := newRoom(rg.freeCode(), topic, rg.opts)
	rg.rooms[r.id] = r
	rg.added("custom")
	log.Info().Str("room", r.id).Str("topic", topic).Msg("room created")
	return r, nil
}

// createMatched registers a ranked room already seating both entries and
// starts it. a takes the "for" side.
func (rg *Registry) createMatched(topic string, a, b QueueEntry) (*Room, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.full() {
		return nil, ErrCapacityExceeded
	}
	r := newRoom(rg.freeCode(), topic, rg.opts)
	r.ranked = true
	rg.rooms[r.id] = r
	rg.added("ranked")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = []*Player{
		{UserID: a.UserID, Username: a.Username, Side: SideFor, ConnectionID: a.ConnectionID},
		{UserID: b.UserID, Username: b.Username, Side: SideAgainst, ConnectionID: b.ConnectionID},
	}
	for _, p := range r.players {
		r.emit(EventMatchFound, []string{p.UserID}, MatchFoundPayload{
			V: PayloadVersion, RoomID: r.id, Topic: topic, Side: p.Side,
		})
	}
	r.startLocked()
	return r, nil
}

func (rg *Registry) Get(id string) (*Room, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	r, ok := rg.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove evicts a room and releases its timers. Removing an unknown room is
// a no-op; removing an ongoing room is refused.
func (rg *Registry) Remove(id string) error {
	rg.mu.Lock()
	r, ok := rg.rooms[id]
	if !ok {
		rg.mu.Unlock()
		return nil
	}
	if r.Status() == StatusOngoing {
		rg.mu.Unlock()
		return ErrInvalidState
	}
	delete(rg.rooms, id)
	metrics.RoomsActive.Set(float64(len(rg.rooms)))
	rg.mu.Unlock()

	r.Close()
	return nil
}

func (rg *Registry) Len() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return len(rg.rooms)
}

func (rg *Registry) Rooms() []*Room {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	out := make([]*Room, 0, len(rg.rooms))
	for _, r := range rg.rooms {
		out = append(out, r)
	}
	return out
}

// FindByUser returns every room seating userID.
func (rg *Registry) FindByUser(userID string) []*Room {
	var out []*Room
	for _, r := range rg.Rooms() {
		if r.hasUser(userID) {
			out = append(out, r)
		}
	}
	return out
}

// Sweep evicts finished rooms older than retention and empty waiting rooms
// idle for longer than abandon. It returns the evicted ids.
func (rg *Registry) Sweep(retention, abandon time.Duration) []string {
	now := rg.opts.Clock.Now()
	var evicted []string
	for _, r := range rg.Rooms() {
		if !r.evictable(now, retention, abandon) {
			continue
		}
		if err := rg.Remove(r.id); err != nil {
			continue
		}
		evicted = append(evicted, r.id)
		metrics.RoomsEvicted.Inc()
	}
	if len(evicted) > 0 {
		log.Debug().Strs("rooms", evicted).Msg("swept rooms")
	}
	return evicted
}

func (rg *Registry) full() bool {
	return rg.maxRooms > 0 && len(rg.rooms) >= rg.maxRooms
}

func (rg *Registry) added(kind string) {
	metrics.RoomsCreated.WithLabelValues(kind).Inc()
	metrics.RoomsActive.Set(float64(len(rg.rooms)))
}

func (rg *Registry) freeCode() string {
	code := rg.newCode()
	for rg.rooms[code] != nil {
		code = rg.newCode()
	}
	return code
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
