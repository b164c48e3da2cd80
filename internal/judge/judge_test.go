package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/debatearena/server/internal/ai"
	"github.com/debatearena/server/internal/debate"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Complete(ctx context.Context, req ai.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

var input = debate.JudgeInput{
	RoomID: "R1",
	Topic:  "AI ethics",
	Transcript: []debate.TranscriptEntry{
		{Side: debate.SideFor, PhaseIndex: 0, Phase: "for_opening", Text: "AI helps society"},
		{Side: debate.SideAgainst, PhaseIndex: 1, Phase: "against_response", Text: "At what cost?"},
	},
}

func TestJudge(t *testing.T) {
	p := &MockProvider{}
	p.On("Complete", mock.Anything, mock.MatchedBy(func(r ai.Request) bool {
		return r.Model == "gpt-4o-mini" && r.JSON && r.Prompt == Prompt(input)
	})).Return(`{"winnerSide":"against","scores":{"for":64,"against":81.6},"feedback":{"for":"thin evidence","against":"clear rebuttal"}}`, nil)

	v, err := New(p, "gpt-4o-mini").Judge(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, debate.SideAgainst, v.WinnerSide)
	assert.Equal(t, debate.SideScores{For: 64, Against: 82}, v.Scores)
	assert.Equal(t, "clear rebuttal", v.Feedback.Against)
	p.AssertExpectations(t)
}

func TestJudgeProviderError(t *testing.T) {
	p := &MockProvider{}
	p.On("Complete", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)

	_, err := New(p, "m").Judge(context.Background(), input)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJudgeGarbage(t *testing.T) {
	p := &MockProvider{}
	p.On("Complete", mock.Anything, mock.Anything).Return("I think FOR won.", nil)

	_, err := New(p, "m").Judge(context.Background(), input)
	assert.True(t, errors.Is(err, ErrMalformedVerdict))
}

func TestPrompt(t *testing.T) {
	out := Prompt(input)
	assert.Contains(t, out, "Motion: AI ethics\n")
	assert.Contains(t, out, "[1 for_opening] FOR: AI helps society\n")
	assert.Contains(t, out, "[2 against_response] AGAINST: At what cost?\n")
	assert.NotContains(t, out, "alice")

	assert.Contains(t, Prompt(debate.JudgeInput{Topic: "x"}), "(no messages were sent)")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		winner  debate.Side
		wantErr bool
	}{
		{"plain", `{"winnerSide":"for","scores":{"for":70,"against":60}}`, debate.SideFor, false},
		{"fenced", "```json\n{\"winnerSide\":\"Against\",\"scores\":{\"for\":1,\"against\":2}}\n```", debate.SideAgainst, false},
		{"draw", `{"winnerSide":"draw","scores":{"for":50,"against":50}}`, "", false},
		{"no scores", `{"winnerSide":"for"}`, "", true},
		{"not json", `for wins`, "", true},
		{"broken", `{"winnerSide": }`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedVerdict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.winner, v.WinnerSide)
		})
	}
}

func TestParseKeepsFeedback(t *testing.T) {
	raw := "Here is my verdict:\n{\"winnerSide\":\" FOR \",\"scores\":{\"for\":77.4,\"against\":70},\"feedback\":{\"for\":\"strong opening\",\"against\":\"ran out of steam\"}}\nThanks."
	got, err := Parse(raw)
	require.NoError(t, err)

	want := debate.Verdict{
		WinnerSide: debate.SideFor,
		Scores:     debate.SideScores{For: 77, Against: 70},
		Feedback:   debate.SideFeedback{For: "strong opening", Against: "ran out of steam"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}
