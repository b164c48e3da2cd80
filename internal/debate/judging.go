package debate

import "context"

type TranscriptEntry struct {
	Side       Side   `json:"side"`
	PhaseIndex int    `json:"phaseIndex"`
	Phase      string `json:"phase"`
	Text       string `json:"text"`
}

// JudgeInput is everything the judge sees: no user identities, only sides.
type JudgeInput struct {
	RoomID     string            `json:"roomId"`
	Topic      string            `json:"topic"`
	Transcript []TranscriptEntry `json:"transcript"`
}

type Verdict struct {
	WinnerSide Side         `json:"winnerSide"`
	Scores     SideScores   `json:"scores"`
	Feedback   SideFeedback `json:"feedback"`
}

// Judge scores a completed debate. It may be slow or fail; the room bounds
// its own wait and never trusts the latency.
type Judge interface {
	Judge(ctx context.Context, in JudgeInput) (Verdict, error)
}

type JudgeFunc func(ctx context.Context, in JudgeInput) (Verdict, error)

func (f JudgeFunc) Judge(ctx context.Context, in JudgeInput) (Verdict, error) { return f(ctx, in) }

// Recorder receives the final snapshot of every finished room.
type Recorder interface {
	Record(ctx context.Context, s Snapshot) error
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// resultFromVerdict resolves sides into user ids. A verdict without a valid
// winner side is a draw.
func resultFromVerdict(v Verdict, players []*Player) *Result {
	scores := SideScores{For: clampScore(v.Scores.For), Against: clampScore(v.Scores.Against)}
	feedback := v.Feedback
	res := &Result{Reason: ReasonDraw, Scores: &scores, Feedback: &feedback}
	if !v.WinnerSide.Valid() {
		return res
	}
	for _, p := range players {
		if p.Side == v.WinnerSide {
			res.WinnerUserID = p.UserID
		} else {
			res.LoserUserID = p.UserID
		}
	}
	res.Reason = ReasonJudged
	return res
}
