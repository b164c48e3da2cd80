package debate

import "time"

// PayloadVersion is stamped on every outbound payload as "v".
const PayloadVersion = 1

// Outbound event names. Exactly one name per transition.
const (
	EventRoomCreated      = "room-created"
	EventPlayerJoined     = "player-joined"
	EventStartMatch       = "start-match"
	EventPhaseChange      = "phase-change"
	EventReceiveMessage   = "receive-message"
	EventOpponentLeft     = "opponent-left"
	EventOpponentRejoined = "opponent-rejoined"
	EventLeftRoom         = "left-room"
	EventDebateComplete   = "debate-complete"
	EventGameOver         = "game-over"
	EventDebateState      = "debate-state"
	EventQueueWaiting     = "queue-waiting"
	EventQueueCancelled   = "queue-cancelled"
	EventMatchFound       = "match-found"
	EventRoomNotFound     = "room-not-found"
	EventRoomFull         = "room-full"
	EventError            = "error"
)

// Event is addressed to users, not connections; the gateway resolves each
// user to its live connection.
type Event struct {
	Name    string
	RoomID  string
	To      []string
	Payload any
}

// Emitter delivers events to clients. Rooms call Emit while holding their
// lock, so implementations must not block and must not call back into the
// room.
type Emitter interface {
	Emit(ev Event)
}

type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

type PhaseInfo struct {
	Index           int    `json:"index"`
	Phase           string `json:"phase"`
	Side            Side   `json:"side"`
	Action          string `json:"action"`
	Description     string `json:"description"`
	MessageLimit    int    `json:"messageLimit"`
	DurationSeconds int    `json:"durationSeconds"`
}

func phaseInfo(i int, p Phase) PhaseInfo {
	return PhaseInfo{
		Index:           i,
		Phase:           p.Key,
		Side:            p.Side,
		Action:          p.Action,
		Description:     p.Description,
		MessageLimit:    p.MessageLimit,
		DurationSeconds: p.DurationSeconds(),
	}
}

type RoomCreatedPayload struct {
	V      int    `json:"v"`
	RoomID string `json:"roomId"`
	Topic  string `json:"topic"`
	Side   Side   `json:"side"`
	Player Player `json:"player"`
}

type PlayerJoinedPayload struct {
	V       int      `json:"v"`
	RoomID  string   `json:"roomId"`
	Player  Player   `json:"player"`
	Players []Player `json:"players"`
}

type StartMatchPayload struct {
	V            int       `json:"v"`
	RoomID       string    `json:"roomId"`
	Topic        string    `json:"topic"`
	Status       Status    `json:"status"`
	Players      []Player  `json:"players"`
	Round        int       `json:"round"`
	TotalRounds  int       `json:"totalRounds"`
	Phase        PhaseInfo `json:"phase"`
	CurrentPhase string    `json:"currentPhase"`
	Description  string    `json:"phaseDescription"`
	MessageLimit int       `json:"messageLimit"`
	Deadline     time.Time `json:"deadline"`
}

type PhaseChangePayload struct {
	V            int       `json:"v"`
	RoomID       string    `json:"roomId"`
	Round        int       `json:"round"`
	TotalRounds  int       `json:"totalRounds"`
	Phase        string    `json:"phase"`
	Side         Side      `json:"side"`
	Action       string    `json:"action"`
	Description  string    `json:"description"`
	MessageLimit int       `json:"messageLimit"`
	Deadline     time.Time `json:"deadline"`
	Trigger      string    `json:"trigger"`
}

type MessagePayload struct {
	V               int    `json:"v"`
	RoomID          string `json:"roomId"`
	MessagesInPhase int    `json:"messagesInPhase"`
	Message
}

type OpponentLeftPayload struct {
	V            int       `json:"v"`
	RoomID       string    `json:"roomId"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	GraceSeconds int       `json:"graceSeconds"`
	Deadline     time.Time `json:"deadline"`
}

type OpponentRejoinedPayload struct {
	V        int    `json:"v"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type LeftRoomPayload struct {
	V      int    `json:"v"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type DebateCompletePayload struct {
	V          int       `json:"v"`
	RoomID     string    `json:"roomId"`
	Messages   int       `json:"messages"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Standing struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Side     Side   `json:"side"`
	Score    *int   `json:"score,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

type GameOverPayload struct {
	V        int           `json:"v"`
	RoomID   string        `json:"roomId"`
	Reason   string        `json:"reason"`
	Winner   *Standing     `json:"winner,omitempty"`
	Loser    *Standing     `json:"loser,omitempty"`
	Scores   *SideScores   `json:"scores,omitempty"`
	Feedback *SideFeedback `json:"feedback,omitempty"`
}

type DebateStatePayload struct {
	V      int      `json:"v"`
	Debate Snapshot `json:"debate"`
}

type QueueWaitingPayload struct {
	V        int `json:"v"`
	Position int `json:"position"`
	Queued   int `json:"queued"`
}

type MatchFoundPayload struct {
	V      int    `json:"v"`
	RoomID string `json:"roomId"`
	Topic  string `json:"topic"`
	Side   Side   `json:"side"`
}

type ErrorPayload struct {
	V       int    `json:"v"`
	Code    string `json:"code"`
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

func gameOverPayload(roomID string, players []*Player, res *Result) GameOverPayload {
	out := GameOverPayload{
		V:        PayloadVersion,
		RoomID:   roomID,
		Reason:   res.Reason,
		Scores:   res.Scores,
		Feedback: res.Feedback,
	}
	for _, p := range players {
		switch p.UserID {
		case res.WinnerUserID:
			out.Winner = standing(p, res)
		case res.LoserUserID:
			out.Loser = standing(p, res)
		}
	}
	return out
}

func standing(p *Player, res *Result) *Standing {
	s := &Standing{UserID: p.UserID, Username: p.Username, Side: p.Side}
	if res.Scores != nil {
		score := res.Scores.For
		if p.Side == SideAgainst {
			score = res.Scores.Against
		}
		s.Score = &score
	}
	if res.Feedback != nil {
		s.Feedback = res.Feedback.For
		if p.Side == SideAgainst {
			s.Feedback = res.Feedback.Against
		}
	}
	return s
}
