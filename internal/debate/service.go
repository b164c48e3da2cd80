package debate

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/metrics"
)

// DefaultTopics is used when no topic list is configured.
var DefaultTopics = []string{
	"AI ethics",
	"Social media does more harm than good",
	"Remote work should be the default",
	"Nuclear power is essential to fighting climate change",
	"Standardized testing should be abolished",
	"Space exploration is worth the cost",
	"Universal basic income should be introduced",
	"Homework should be banned in primary schools",
}

type Config struct {
	MaxRooms          int
	Room              RoomOptions
	Topics            []string
	Recorder          Recorder
	RecordTimeout     time.Duration
	FinishedRetention time.Duration
	AbandonTimeout    time.Duration
	SweepInterval     time.Duration
}

// Service is the entry point the gateway talks to. It owns the registry and
// the ranked queue and routes every event through a swappable emitter.
type Service struct {
	rooms *Registry
	queue *Queue
	cfg   Config

	emitMu  sync.RWMutex
	emitter Emitter

	recordWG sync.WaitGroup
}

func NewService(cfg Config) *Service {
	if len(cfg.Topics) == 0 {
		cfg.Topics = DefaultTopics
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 10 * time.Second
	}
	if cfg.FinishedRetention <= 0 {
		cfg.FinishedRetention = 10 * time.Minute
	}
	if cfg.AbandonTimeout <= 0 {
		cfg.AbandonTimeout = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	s := &Service{cfg: cfg, emitter: nopEmitter{}}

	opts := cfg.Room
	opts.Emitter = EmitterFunc(s.emit)
	opts.OnFinished = s.onFinished
	s.rooms = NewRegistry(cfg.MaxRooms, opts)
	s.queue = NewQueue(s.rooms, s.pickTopic)
	return s
}

// SetEmitter installs the transport. Events emitted before it is set are
// dropped.
func (s *Service) SetEmitter(e Emitter) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if e == nil {
		e = nopEmitter{}
	}
	s.emitter = e
}

func (s *Service) emit(ev Event) {
	s.emitMu.RLock()
	e := s.emitter
	s.emitMu.RUnlock()
	e.Emit(ev)
}

func (s *Service) Rooms() *Registry { return s.rooms }
func (s *Service) Queue() *Queue    { return s.queue }

// CreateRoom opens a custom room with the caller seated on the "for" side.
// An empty topic picks one from the configured list.
func (s *Service) CreateRoom(userID, username, connID, topic string) (Snapshot, error) {
	if s.hasOpenRoom(userID) {
		return Snapshot{}, ErrAlreadyInRoom
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = s.pickTopic()
	}
	r, err := s.rooms.Create(topic)
	if err != nil {
		return Snapshot{}, err
	}
	s.queue.Dequeue(userID)
	if _, err := r.Join(userID, username, connID); err != nil {
		_ = s.rooms.Remove(r.ID())
		return Snapshot{}, err
	}
	return r.Snapshot(), nil
}

// JoinRoom seats the user in roomID, or reattaches a player already seated
// there. Taking a new seat is refused while the user has another open room.
func (s *Service) JoinRoom(roomID, userID, username, connID string) (Side, error) {
	r, err := s.rooms.Get(roomID)
	if err != nil {
		return "", err
	}
	if !r.hasUser(userID) && s.hasOpenRoom(userID) {
		return "", ErrAlreadyInRoom
	}
	side, err := r.Join(userID, username, connID)
	if err != nil {
		return "", err
	}
	s.queue.Dequeue(userID)
	return side, nil
}

// JoinRanked queues the user and attempts a pairing straight away. The
// user is seated with connID, so dropping that connection after the match
// starts is a leave.
func (s *Service) JoinRanked(userID, username, connID string) error {
	if s.hasOpenRoom(userID) {
		return ErrAlreadyInRoom
	}
	pos, err := s.queue.Enqueue(userID, username, connID)
	if err != nil {
		return err
	}
	log.Info().Str("user", userID).Int("position", pos).Msg("joined ranked queue")
	s.emit(Event{Name: EventQueueWaiting, To: []string{userID}, Payload: QueueWaitingPayload{
		V: PayloadVersion, Position: pos, Queued: s.queue.Len(),
	}})
	if _, err := s.queue.TryPair(); err != nil {
		log.Warn().Err(err).Msg("ranked pairing deferred")
	}
	return nil
}

// CancelRanked removes the user from the queue. It never fails.
func (s *Service) CancelRanked(userID string) {
	if s.queue.Dequeue(userID) {
		log.Info().Str("user", userID).Msg("left ranked queue")
	}
	s.emit(Event{Name: EventQueueCancelled, To: []string{userID}, Payload: QueueWaitingPayload{
		V: PayloadVersion, Queued: s.queue.Len(),
	}})
}

func (s *Service) SendMessage(roomID, userID, text string) (Message, error) {
	r, err := s.rooms.Get(roomID)
	if err != nil {
		return Message{}, err
	}
	msg, err := r.SendMessage(userID, text)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues(Code(err)).Inc()
		log.Debug().Err(err).Str("room", roomID).Str("user", userID).Msg("message rejected")
	}
	return msg, err
}

func (s *Service) LeaveRoom(roomID, userID string) error {
	r, err := s.rooms.Get(roomID)
	if err != nil {
		return err
	}
	return r.Leave(userID)
}

// GetState returns the room snapshot and emits it to the caller as
// debate-state.
func (s *Service) GetState(roomID, userID string) (Snapshot, error) {
	r, err := s.rooms.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := r.Snapshot()
	if userID != "" {
		s.emit(Event{Name: EventDebateState, RoomID: roomID, To: []string{userID}, Payload: DebateStatePayload{
			V: PayloadVersion, Debate: snap,
		}})
	}
	return snap, nil
}

// Disconnect handles a closed transport connection: the user leaves the
// ranked queue and every room where connID is still its connection.
func (s *Service) Disconnect(userID, connID string) {
	if userID == "" {
		return
	}
	s.queue.Dequeue(userID)
	for _, r := range s.rooms.FindByUser(userID) {
		if err := r.LeaveConn(userID, connID); err != nil {
			log.Debug().Err(err).Str("room", r.ID()).Str("user", userID).Msg("disconnect ignored")
		}
	}
}

// RunSweeper evicts stale rooms until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rooms.Sweep(s.cfg.FinishedRetention, s.cfg.AbandonTimeout)
		}
	}
}

// Wait blocks until in-flight result recordings are done.
func (s *Service) Wait() { s.recordWG.Wait() }

func (s *Service) onFinished(snap Snapshot) {
	metrics.Results.WithLabelValues(snap.Result.Reason).Inc()
	if s.cfg.Recorder == nil {
		return
	}
	s.recordWG.Add(1)
	go func() {
		defer s.recordWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecordTimeout)
		defer cancel()
		if err := s.cfg.Recorder.Record(ctx, snap); err != nil {
			log.Error().Err(err).Str("room", snap.ID).Msg("failed to record result")
		}
	}()
}

func (s *Service) hasOpenRoom(userID string) bool {
	for _, r := range s.rooms.FindByUser(userID) {
		if r.isOpenFor(userID) {
			return true
		}
	}
	return false
}

func (s *Service) pickTopic() string {
	return s.cfg.Topics[rand.Intn(len(s.cfg.Topics))]
}
