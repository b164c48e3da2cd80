package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/ai"
	"github.com/debatearena/server/internal/debate"
	"github.com/debatearena/server/internal/metrics"
)

const systemPrompt = `You are an impartial debate judge. You receive a debate motion and a
transcript in which each message is labelled with the side that wrote it
(FOR or AGAINST). Judge only the quality of reasoning, evidence, rebuttal and
clarity. Ignore message length and writing style beyond clarity.

Answer with a single JSON object and nothing else:
{"winnerSide": "for" | "against" | "draw",
 "scores": {"for": 0-100, "against": 0-100},
 "feedback": {"for": "<one or two sentences>", "against": "<one or two sentences>"}}`

var ErrMalformedVerdict = errors.New("malformed verdict")

// Judge scores debates with an LLM.
type Judge struct {
	provider ai.Provider
	model    string
}

func New(provider ai.Provider, model string) *Judge {
	return &Judge{provider: provider, model: model}
}

func (j *Judge) Judge(ctx context.Context, in debate.JudgeInput) (debate.Verdict, error) {
	start := time.Now()
	out, err := j.provider.Complete(ctx, ai.Request{
		Model:       j.model,
		System:      systemPrompt,
		Prompt:      Prompt(in),
		JSON:        true,
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		metrics.JudgeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return debate.Verdict{}, fmt.Errorf("judge %s: %w", in.RoomID, err)
	}
	v, err := Parse(out)
	if err != nil {
		metrics.JudgeDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Warn().Err(err).Str("room", in.RoomID).Str("raw", out).Msg("unusable judge answer")
		return debate.Verdict{}, err
	}
	metrics.JudgeDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	log.Info().Str("room", in.RoomID).Str("winner", string(v.WinnerSide)).Msg("judge verdict")
	return v, nil
}

// Prompt renders the motion and transcript as the user message.
func Prompt(in debate.JudgeInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Motion: %s\n\nTranscript:\n", in.Topic)
	for _, e := range in.Transcript {
		fmt.Fprintf(&sb, "[%d %s] %s: %s\n", e.PhaseIndex+1, e.Phase, strings.ToUpper(string(e.Side)), e.Text)
	}
	if len(in.Transcript) == 0 {
		sb.WriteString("(no messages were sent)\n")
	}
	return sb.String()
}

// Parse reads a verdict object, tolerating markdown code fences around it.
// Any winnerSide other than "for" or "against" yields an empty side, which
// the room records as a draw.
func Parse(raw string) (debate.Verdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return debate.Verdict{}, ErrMalformedVerdict
	}

	var out struct {
		WinnerSide string `json:"winnerSide"`
		Scores     *struct {
			For     float64 `json:"for"`
			Against float64 `json:"against"`
		} `json:"scores"`
		Feedback debate.SideFeedback `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return debate.Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if out.Scores == nil {
		return debate.Verdict{}, fmt.Errorf("%w: scores missing", ErrMalformedVerdict)
	}
	v := debate.Verdict{
		Scores:   debate.SideScores{For: int(out.Scores.For + 0.5), Against: int(out.Scores.Against + 0.5)},
		Feedback: out.Feedback,
	}
	if side := debate.Side(strings.ToLower(strings.TrimSpace(out.WinnerSide))); side.Valid() {
		v.WinnerSide = side
	}
	return v, nil
}
