package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Room lifecycle
	RoomsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_rooms_created_total",
			Help: "Total rooms created",
		},
		[]string{"kind"}, // "custom" or "ranked"
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debate_rooms_active",
			Help: "Rooms currently held by the registry",
		},
	)

	RoomsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debate_rooms_evicted_total",
			Help: "Total rooms evicted by the sweeper",
		},
	)

	// Debate progress
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debate_messages_total",
			Help: "Total transcript messages accepted",
		},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_messages_rejected_total",
			Help: "Total send-message intents rejected",
		},
		[]string{"code"},
	)

	PhaseAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_phase_advances_total",
			Help: "Total phase transitions",
		},
		[]string{"trigger"}, // "limit" or "deadline"
	)

	Results = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_results_total",
			Help: "Finished debates by result reason",
		},
		[]string{"reason"},
	)

	// Matchmaking
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debate_queue_size",
			Help: "Players waiting in the ranked queue",
		},
	)

	MatchesMade = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debate_matches_total",
			Help: "Total ranked pairings",
		},
	)

	// Judge
	JudgeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "debate_judge_duration_seconds",
			Help:    "Judge call latency",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// Gateway
	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_socket_events_total",
			Help: "Inbound socket intents",
		},
		[]string{"event"},
	)

	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debate_socket_connections",
			Help: "Open socket connections",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_rate_limit_hits_total",
			Help: "Intents dropped by the per-connection rate limiter",
		},
		[]string{"event"},
	)

	// Recorders
	RecorderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debate_recorder_errors_total",
			Help: "Failed result recordings",
		},
		[]string{"recorder"},
	)
)
