package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/debatearena/server/internal/debate"
)

const hypeKey = "debate:hype"

// Hype adjustment bounds. The base delta moves by one point for every 20
// points the loser is ahead of the winner.
const (
	hypeBase    = 30
	hypeMin     = 10
	hypeMax     = 50
	hypeDivisor = 20
)

// HypeDelta is the amount the winner gains and the loser loses before the
// loser's floor of 0 is applied.
func HypeDelta(winnerHype, loserHype int64) int64 {
	diff := loserHype - winnerHype
	q := diff / hypeDivisor
	if diff%hypeDivisor != 0 && diff < 0 {
		q--
	}
	d := hypeBase + q
	if d < hypeMin {
		return hypeMin
	}
	if d > hypeMax {
		return hypeMax
	}
	return d
}

// rated reports whether a result moves hype: only a decided ranked debate
// does.
func rated(snap debate.Snapshot) bool {
	res := snap.Result
	if !snap.Ranked || res == nil || res.WinnerUserID == "" || res.LoserUserID == "" {
		return false
	}
	return res.Reason == debate.ReasonJudged || res.Reason == debate.ReasonForfeit
}

// Both scores are read and written in one script so concurrent results for
// the same user cannot interleave.
var adjustHype = redis.NewScript(`
local w = tonumber(redis.call('ZSCORE', KEYS[1], ARGV[1]) or '0')
local l = tonumber(redis.call('ZSCORE', KEYS[1], ARGV[2]) or '0')
local d = tonumber(ARGV[3]) + math.floor((l - w) / tonumber(ARGV[6]))
if d < tonumber(ARGV[4]) then d = tonumber(ARGV[4]) end
if d > tonumber(ARGV[5]) then d = tonumber(ARGV[5]) end
local nl = l - d
if nl < 0 then nl = 0 end
redis.call('ZADD', KEYS[1], w + d, ARGV[1])
redis.call('ZADD', KEYS[1], nl, ARGV[2])
return {d, w + d, l - nl, nl}
`)

type HypeChange struct {
	Gained     int64 `json:"hypeGained"`
	WinnerHype int64 `json:"winnerHype"`
	Lost       int64 `json:"hypeLost"`
	LoserHype  int64 `json:"loserHype"`
}

type Standing struct {
	UserID string `json:"userId"`
	Hype   int64  `json:"hype"`
}

// HypeLedger keeps every user's hype in a Redis sorted set.
type HypeLedger struct {
	client *redis.Client
}

func NewRedisLedger(ctx context.Context, redisURL string) (*HypeLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &HypeLedger{client: client}, nil
}

func (h *HypeLedger) Close() error { return h.client.Close() }

func (h *HypeLedger) Ping(ctx context.Context) error { return h.client.Ping(ctx).Err() }

func (h *HypeLedger) Record(ctx context.Context, snap debate.Snapshot) error {
	if !rated(snap) {
		return nil
	}
	_, err := h.Apply(ctx, snap.Result.WinnerUserID, snap.Result.LoserUserID)
	return err
}

// Apply moves hype from loser to winner.
func (h *HypeLedger) Apply(ctx context.Context, winnerID, loserID string) (HypeChange, error) {
	vals, err := adjustHype.Run(ctx, h.client, []string{hypeKey},
		winnerID, loserID, hypeBase, hypeMin, hypeMax, hypeDivisor).Int64Slice()
	if err != nil {
		return HypeChange{}, fmt.Errorf("adjust hype: %w", err)
	}
	if len(vals) != 4 {
		return HypeChange{}, fmt.Errorf("adjust hype: unexpected reply %v", vals)
	}
	return HypeChange{Gained: vals[0], WinnerHype: vals[1], Lost: vals[2], LoserHype: vals[3]}, nil
}

func (h *HypeLedger) Hype(ctx context.Context, userID string) (int64, error) {
	v, err := h.client.ZScore(ctx, hypeKey, userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	return int64(v), err
}

// Top returns the n users with the most hype.
func (h *HypeLedger) Top(ctx context.Context, n int64) ([]Standing, error) {
	zs, err := h.client.ZRevRangeWithScores(ctx, hypeKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Standing{UserID: id, Hype: int64(z.Score)})
	}
	return out, nil
}
