package debate

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/clock"
	"github.com/debatearena/server/internal/metrics"
)

const (
	DefaultForfeitGrace     = 20 * time.Second
	DefaultJudgeTimeout     = 45 * time.Second
	DefaultMaxMessageLength = 500
)

// RoomOptions is shared by every room of a registry.
type RoomOptions struct {
	Script           Script
	Clock            clock.Clock
	Emitter          Emitter
	Judge            Judge
	ForfeitGrace     time.Duration
	JudgeTimeout     time.Duration
	MaxMessageLength int
	// OnFinished runs with the room locked, once the result is set. It must
	// not block and must not call back into the room.
	OnFinished func(Snapshot)
}

func (o RoomOptions) withDefaults() RoomOptions {
	if o.Script == nil {
		o.Script = DefaultScript
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Emitter == nil {
		o.Emitter = nopEmitter{}
	}
	if o.ForfeitGrace <= 0 {
		o.ForfeitGrace = DefaultForfeitGrace
	}
	if o.JudgeTimeout <= 0 {
		o.JudgeTimeout = DefaultJudgeTimeout
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = DefaultMaxMessageLength
	}
	return o
}

// Room is one debate session. Every exported method takes the room lock, so
// all mutations of a room are serialized while different rooms proceed in
// parallel.
type Room struct {
	mu sync.Mutex

	id        string
	topic     string
	ranked    bool
	creatorID string

	status          Status
	players         []*Player
	phaseIndex      int // -1 until the match starts
	messagesInPhase int
	transcript      []Message
	phaseDeadline   time.Time
	disconnect      *Disconnect
	result          *Result
	awaitingVerdict bool

	createdAt    time.Time
	lastActivity time.Time
	finishedAt   time.Time

	// Each scheduled callback captures the sequence value current at
	// scheduling time and is a no-op if it changed since.
	phaseTimer   clock.Timer
	phaseSeq     uint64
	forfeitTimer clock.Timer
	forfeitSeq   uint64
	judgeTimer   clock.Timer
	stopVerdict  context.CancelFunc
	closed       bool

	opts RoomOptions
	log  zerolog.Logger
}

func newRoom(id, topic string, opts RoomOptions) *Room {
	now := opts.Clock.Now()
	return &Room{
		id:           id,
		topic:        topic,
		status:       StatusWaiting,
		phaseIndex:   -1,
		createdAt:    now,
		lastActivity: now,
		opts:         opts,
		log:          log.With().Str("room", id).Logger(),
	}
}

func (r *Room) ID() string    { return r.id }
func (r *Room) Topic() string { return r.topic }

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Join seats a player, rejoins a player whose forfeit countdown is running,
// or binds a new connection to an already seated player.
func (r *Room) Join(userID, username, connID string) (Side, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRoomNotFound
	}
	if p := r.player(userID); p != nil {
		return r.rejoinLocked(p, connID)
	}
	if len(r.players) >= 2 {
		return "", ErrRoomFull
	}
	if r.status != StatusWaiting {
		return "", ErrInvalidState
	}

	side := SideFor
	if len(r.players) == 1 {
		side = r.players[0].Side.Opposite()
	}
	p := &Player{UserID: userID, Username: username, Side: side, ConnectionID: connID}
	r.players = append(r.players, p)
	r.lastActivity = r.opts.Clock.Now()
	r.log.Info().Str("user", userID).Str("side", string(side)).Msg("player joined")

	if len(r.players) == 1 {
		r.emit(EventRoomCreated, []string{userID}, RoomCreatedPayload{
			V: PayloadVersion, RoomID: r.id, Topic: r.topic, Side: side, Player: *p,
		})
		return side, nil
	}
	r.emit(EventPlayerJoined, r.everyone(), PlayerJoinedPayload{
		V: PayloadVersion, RoomID: r.id, Player: *p, Players: r.playersCopy(),
	})
	r.startLocked()
	return side, nil
}

func (r *Room) rejoinLocked(p *Player, connID string) (Side, error) {
	if r.disconnect != nil && r.disconnect.UserID == p.UserID {
		r.disconnect = nil
		r.forfeitSeq++
		stopTimer(&r.forfeitTimer)
		p.ConnectionID = connID
		r.log.Info().Str("user", p.UserID).Msg("player rejoined")
		r.emit(EventOpponentRejoined, r.others(p.UserID), OpponentRejoinedPayload{
			V: PayloadVersion, RoomID: r.id, UserID: p.UserID, Username: p.Username,
		})
		return p.Side, nil
	}
	if p.ConnectionID != "" && connID != "" && p.ConnectionID != connID {
		return "", ErrAlreadyInRoom
	}
	if connID != "" {
		p.ConnectionID = connID
	}
	return p.Side, nil
}

// SendMessage appends text to the transcript for the active phase. Reaching
// the phase's message limit advances the phase immediately.
func (r *Room) SendMessage(userID, text string) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Message{}, ErrRoomNotFound
	}
	if r.status != StatusOngoing {
		return Message{}, ErrInvalidState
	}
	p := r.player(userID)
	if p == nil {
		return Message{}, ErrNotInRoom
	}
	phase, _ := r.opts.Script.Phase(r.phaseIndex)
	if p.Side != phase.Side {
		return Message{}, ErrNotYourTurn
	}
	if r.messagesInPhase >= phase.MessageLimit {
		return Message{}, ErrPhaseMessageLimitExceeded
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	text = truncate(text, r.opts.MaxMessageLength)

	msg := Message{
		ID:           uuid.NewString(),
		AuthorUserID: p.UserID,
		Author:       p.Username,
		Side:         p.Side,
		PhaseIndex:   r.phaseIndex,
		Text:         text,
		Timestamp:    r.opts.Clock.Now(),
	}
	r.transcript = append(r.transcript, msg)
	r.messagesInPhase++
	r.lastActivity = msg.Timestamp
	metrics.MessagesSent.Inc()

	r.emit(EventReceiveMessage, r.everyone(), MessagePayload{
		V: PayloadVersion, RoomID: r.id, MessagesInPhase: r.messagesInPhase, Message: msg,
	})
	if r.messagesInPhase == phase.MessageLimit {
		r.advanceLocked("limit")
	}
	return msg, nil
}

// Leave removes a player from a waiting room, or starts the forfeit
// countdown of an ongoing one.
func (r *Room) Leave(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	p := r.player(userID)
	if p == nil {
		return ErrNotInRoom
	}
	r.leaveLocked(p)
	return nil
}

// LeaveConn is Leave triggered by a transport disconnect. It is ignored when
// connID is no longer the player's current connection.
func (r *Room) LeaveConn(userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	p := r.player(userID)
	if p == nil {
		return ErrNotInRoom
	}
	if p.ConnectionID != connID {
		return nil
	}
	r.leaveLocked(p)
	return nil
}

func (r *Room) leaveLocked(p *Player) {
	now := r.opts.Clock.Now()
	switch r.status {
	case StatusWaiting:
		recipients := r.everyone()
		for i, q := range r.players {
			if q == p {
				r.players = append(r.players[:i], r.players[i+1:]...)
				break
			}
		}
		r.lastActivity = now
		r.log.Info().Str("user", p.UserID).Int("players", len(r.players)).Msg("player left waiting room")
		r.emit(EventLeftRoom, recipients, LeftRoomPayload{V: PayloadVersion, RoomID: r.id, UserID: p.UserID})

	case StatusOngoing:
		if r.disconnect != nil {
			if r.disconnect.UserID == p.UserID {
				return
			}
			r.log.Info().Msg("both players left")
			r.endLocked(&Result{Reason: ReasonBothAbandoned})
			return
		}
		p.ConnectionID = ""
		r.disconnect = &Disconnect{UserID: p.UserID, Deadline: now.Add(r.opts.ForfeitGrace)}
		r.forfeitSeq++
		seq := r.forfeitSeq
		stopTimer(&r.forfeitTimer)
		r.forfeitTimer = r.opts.Clock.AfterFunc(r.opts.ForfeitGrace, func() { r.onForfeitDeadline(seq) })
		r.log.Info().Str("user", p.UserID).Dur("grace", r.opts.ForfeitGrace).Msg("player left, forfeit countdown started")
		r.emit(EventOpponentLeft, r.others(p.UserID), OpponentLeftPayload{
			V:            PayloadVersion,
			RoomID:       r.id,
			UserID:       p.UserID,
			Username:     p.Username,
			GraceSeconds: int(r.opts.ForfeitGrace / time.Second),
			Deadline:     r.disconnect.Deadline,
		})

	case StatusFinished:
		p.ConnectionID = ""
		r.emit(EventLeftRoom, []string{p.UserID}, LeftRoomPayload{V: PayloadVersion, RoomID: r.id, UserID: p.UserID})
	}
}

// Snapshot returns a copy of the room's state for resynchronizing clients.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:              r.id,
		Status:          r.status,
		Topic:           r.topic,
		Ranked:          r.ranked,
		Players:         r.playersCopy(),
		MessagesInPhase: r.messagesInPhase,
		Transcript:      append([]Message(nil), r.transcript...),
		TotalRounds:     r.opts.Script.Len(),
		AwaitingVerdict: r.awaitingVerdict,
		CreatedAt:       r.createdAt,
	}
	if r.phaseIndex >= 0 {
		idx := r.phaseIndex
		s.PhaseIndex = &idx
		s.CurrentRound = idx + 1
		if s.CurrentRound > s.TotalRounds {
			s.CurrentRound = s.TotalRounds
		}
		if phase, ok := r.opts.Script.Phase(idx); ok && r.status == StatusOngoing {
			s.Phase = &phase
			deadline := r.phaseDeadline
			s.PhaseDeadline = &deadline
		}
	}
	if r.disconnect != nil {
		d := *r.disconnect
		s.Disconnect = &d
	}
	if r.result != nil {
		res := *r.result
		s.Result = &res
	}
	if !r.finishedAt.IsZero() {
		t := r.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// Close stops every timer and makes the room inert. Late timer callbacks and
// judge answers are ignored afterwards.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.phaseSeq++
	r.forfeitSeq++
	stopTimer(&r.phaseTimer)
	stopTimer(&r.forfeitTimer)
	stopTimer(&r.judgeTimer)
	if r.stopVerdict != nil {
		r.stopVerdict()
		r.stopVerdict = nil
	}
}

func (r *Room) startLocked() {
	r.status = StatusOngoing
	r.enterPhaseLocked(0)
	phase, _ := r.opts.Script.Phase(0)
	r.log.Info().Str("topic", r.topic).Msg("match started")
	r.emit(EventStartMatch, r.everyone(), StartMatchPayload{
		V:            PayloadVersion,
		RoomID:       r.id,
		Topic:        r.topic,
		Status:       r.status,
		Players:      r.playersCopy(),
		Round:        1,
		TotalRounds:  r.opts.Script.Len(),
		Phase:        phaseInfo(0, phase),
		CurrentPhase: phase.Key,
		Description:  phase.Description,
		MessageLimit: phase.MessageLimit,
		Deadline:     r.phaseDeadline,
	})
}

func (r *Room) enterPhaseLocked(i int) {
	phase, _ := r.opts.Script.Phase(i)
	r.phaseIndex = i
	r.messagesInPhase = 0
	r.phaseDeadline = r.opts.Clock.Now().Add(phase.Duration)
	r.phaseSeq++
	seq := r.phaseSeq
	stopTimer(&r.phaseTimer)
	r.phaseTimer = r.opts.Clock.AfterFunc(phase.Duration, func() { r.onPhaseDeadline(seq) })
}

func (r *Room) onPhaseDeadline(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.status != StatusOngoing || seq != r.phaseSeq {
		return
	}
	r.advanceLocked("deadline")
}

// advanceLocked is the only place a phase ends. Message-limit and deadline
// triggers both go through it under the room lock, and bumping phaseSeq in
// enterPhaseLocked invalidates whichever trigger lost the race.
func (r *Room) advanceLocked(trigger string) {
	metrics.PhaseAdvances.WithLabelValues(trigger).Inc()
	next, ok := r.opts.Script.Next(r.phaseIndex)
	if !ok {
		r.completeLocked()
		return
	}
	r.enterPhaseLocked(next)
	phase, _ := r.opts.Script.Phase(next)
	r.log.Info().Int("phase", next).Str("trigger", trigger).Msg("phase advanced")
	r.emit(EventPhaseChange, r.everyone(), PhaseChangePayload{
		V:            PayloadVersion,
		RoomID:       r.id,
		Round:        next + 1,
		TotalRounds:  r.opts.Script.Len(),
		Phase:        phase.Key,
		Side:         phase.Side,
		Action:       phase.Action,
		Description:  phase.Description,
		MessageLimit: phase.MessageLimit,
		Deadline:     r.phaseDeadline,
		Trigger:      trigger,
	})
}

// completeLocked ends the scripted debate and hands the transcript to the
// judge. The result arrives later through resolveVerdict.
func (r *Room) completeLocked() {
	r.phaseIndex = r.opts.Script.Len()
	r.messagesInPhase = 0
	r.stopClocksLocked()
	r.status = StatusFinished
	r.finishedAt = r.opts.Clock.Now()
	r.log.Info().Int("messages", len(r.transcript)).Msg("debate complete")
	r.emit(EventDebateComplete, r.everyone(), DebateCompletePayload{
		V: PayloadVersion, RoomID: r.id, Messages: len(r.transcript), FinishedAt: r.finishedAt,
	})

	if r.opts.Judge == nil {
		r.finishLocked(&Result{Reason: ReasonJudgeUnavailable})
		return
	}
	r.awaitingVerdict = true
	ctx, cancel := context.WithCancel(context.Background())
	r.stopVerdict = cancel
	r.judgeTimer = r.opts.Clock.AfterFunc(r.opts.JudgeTimeout, func() {
		r.resolveVerdict(Verdict{}, ErrJudgeTimeout)
	})
	in := r.judgeInputLocked()
	judge := r.opts.Judge
	go func() {
		v, err := judge.Judge(ctx, in)
		r.resolveVerdict(v, err)
	}()
}

func (r *Room) resolveVerdict(v Verdict, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.awaitingVerdict {
		return
	}
	r.awaitingVerdict = false
	stopTimer(&r.judgeTimer)
	if r.stopVerdict != nil {
		r.stopVerdict()
		r.stopVerdict = nil
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("judge unavailable, recording neutral result")
		r.finishLocked(&Result{Reason: ReasonJudgeUnavailable})
		return
	}
	r.finishLocked(resultFromVerdict(v, r.players))
}

func (r *Room) onForfeitDeadline(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.status != StatusOngoing || r.disconnect == nil || seq != r.forfeitSeq {
		return
	}
	loser := r.disconnect.UserID
	res := &Result{LoserUserID: loser, Reason: ReasonForfeit}
	if others := r.others(loser); len(others) > 0 {
		res.WinnerUserID = others[0]
	}
	r.log.Info().Str("loser", loser).Msg("forfeit")
	r.endLocked(res)
}

// endLocked finishes an ongoing room without consulting the judge.
func (r *Room) endLocked(res *Result) {
	r.stopClocksLocked()
	r.status = StatusFinished
	r.finishedAt = r.opts.Clock.Now()
	r.finishLocked(res)
}

func (r *Room) stopClocksLocked() {
	r.phaseSeq++
	r.forfeitSeq++
	r.disconnect = nil
	stopTimer(&r.phaseTimer)
	stopTimer(&r.forfeitTimer)
}

func (r *Room) finishLocked(res *Result) {
	if r.result != nil {
		return
	}
	r.result = res
	r.status = StatusFinished
	r.log.Info().Str("reason", res.Reason).Str("winner", res.WinnerUserID).Msg("game over")
	r.emit(EventGameOver, r.everyone(), gameOverPayload(r.id, r.players, res))
	if r.opts.OnFinished != nil {
		r.opts.OnFinished(r.snapshotLocked())
	}
}

func (r *Room) judgeInputLocked() JudgeInput {
	in := JudgeInput{RoomID: r.id, Topic: r.topic, Transcript: make([]TranscriptEntry, 0, len(r.transcript))}
	for _, m := range r.transcript {
		phase, _ := r.opts.Script.Phase(m.PhaseIndex)
		in.Transcript = append(in.Transcript, TranscriptEntry{
			Side: m.Side, PhaseIndex: m.PhaseIndex, Phase: phase.Key, Text: m.Text,
		})
	}
	return in
}

// evictable reports whether the sweeper may drop the room. Ongoing rooms and
// rooms still waiting for the judge are never evictable.
func (r *Room) evictable(now time.Time, retention, abandon time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusFinished:
		return !r.awaitingVerdict && r.result != nil && now.Sub(r.finishedAt) >= retention
	case StatusWaiting:
		return len(r.players) == 0 && now.Sub(r.lastActivity) >= abandon
	}
	return false
}

func (r *Room) hasUser(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.player(userID) != nil
}

func (r *Room) isOpenFor(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != StatusFinished && r.player(userID) != nil
}

func (r *Room) player(userID string) *Player {
	for _, p := range r.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *Room) playersCopy() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *Room) everyone() []string {
	out := make([]string, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.UserID)
	}
	return out
}

func (r *Room) others(userID string) []string {
	out := make([]string, 0, 1)
	for _, p := range r.players {
		if p.UserID != userID {
			out = append(out, p.UserID)
		}
	}
	return out
}

func (r *Room) emit(name string, to []string, payload any) {
	r.opts.Emitter.Emit(Event{Name: name, RoomID: r.id, To: to, Payload: payload})
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
