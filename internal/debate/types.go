package debate

import (
	"time"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

type Side string

const (
	SideFor     Side = "for"
	SideAgainst Side = "against"
)

func (s Side) Valid() bool { return s == SideFor || s == SideAgainst }

func (s Side) Opposite() Side {
	if s == SideFor {
		return SideAgainst
	}
	return SideFor
}

// Reasons recorded on a Result.
const (
	ReasonJudged           = "judged"
	ReasonDraw             = "draw"
	ReasonForfeit          = "opponent_forfeit"
	ReasonBothAbandoned    = "both_abandoned"
	ReasonJudgeUnavailable = "judge_unavailable"
)

// Player is a debater seated in a room. ConnectionID names the transport
// connection currently speaking for the player; it is empty while the
// player is away.
type Player struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Side         Side   `json:"side"`
	ConnectionID string `json:"-"`
}

type Message struct {
	ID           string    `json:"id"`
	AuthorUserID string    `json:"authorUserId"`
	Author       string    `json:"author"`
	Side         Side      `json:"side"`
	PhaseIndex   int       `json:"phaseIndex"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
}

type Disconnect struct {
	UserID   string    `json:"userId"`
	Deadline time.Time `json:"deadline"`
}

type SideScores struct {
	For     int `json:"for"`
	Against int `json:"against"`
}

type SideFeedback struct {
	For     string `json:"for"`
	Against string `json:"against"`
}

type Result struct {
	WinnerUserID string        `json:"winnerUserId,omitempty"`
	LoserUserID  string        `json:"loserUserId,omitempty"`
	Reason       string        `json:"reason"`
	Scores       *SideScores   `json:"scores,omitempty"`
	Feedback     *SideFeedback `json:"feedback,omitempty"`
}

type QueueEntry struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	ConnectionID string    `json:"-"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}

// Snapshot is a read-only copy of a room, safe to hand to other goroutines.
type Snapshot struct {
	ID              string      `json:"roomId"`
	Status          Status      `json:"status"`
	Topic           string      `json:"topic"`
	Ranked          bool        `json:"ranked"`
	Players         []Player    `json:"players"`
	PhaseIndex      *int        `json:"phaseIndex"`
	Phase           *Phase      `json:"phase,omitempty"`
	CurrentRound    int         `json:"currentRound"`
	TotalRounds     int         `json:"totalRounds"`
	MessagesInPhase int         `json:"messagesInPhase"`
	PhaseDeadline   *time.Time  `json:"phaseDeadline,omitempty"`
	Transcript      []Message   `json:"messages"`
	Disconnect      *Disconnect `json:"disconnect,omitempty"`
	Result          *Result     `json:"result,omitempty"`
	AwaitingVerdict bool        `json:"awaitingVerdict"`
	CreatedAt       time.Time   `json:"createdAt"`
	FinishedAt      *time.Time  `json:"finishedAt,omitempty"`
}

// Player returns the seated player with the given user id.
func (s Snapshot) Player(userID string) (Player, bool) {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

// PlayerBySide returns the player holding side.
func (s Snapshot) PlayerBySide(side Side) (Player, bool) {
	for _, p := range s.Players {
		if p.Side == side {
			return p, true
		}
	}
	return Player{}, false
}
