// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of sessions currently held by the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "corridors",
		Name:      "active_sessions",
		Help:      "Number of game sessions currently in the registry.",
	})

	// MovesTotal counts successfully applied moves, labelled by action kind
	// (pawn move or wall orientation).
	MovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corridors",
		Name:      "moves_total",
		Help:      "Total moves applied, by action kind.",
	}, []string{"kind"})

	// SimulationsTotal counts simulations completed by all search adapters.
	SimulationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corridors",
		Name:      "simulations_total",
		Help:      "Total MCTS simulations completed.",
	})

	// AIQueueDepth tracks the number of games waiting for a machine move.
	AIQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "corridors",
		Name:      "ai_queue_depth",
		Help:      "Games currently queued for an AI move.",
	})

	// BroadcastsTotal counts room broadcasts, labelled by message type.
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corridors",
		Name:      "broadcasts_total",
		Help:      "Total room broadcasts, by message type.",
	}, []string{"type"})

	// ConnectionsActive tracks live websocket subscribers.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "corridors",
		Name:      "ws_connections_active",
		Help:      "Currently connected websocket clients.",
	})

	// SessionsReaped counts sessions cancelled by the stale-session reaper.
	SessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corridors",
		Name:      "sessions_reaped_total",
		Help:      "Sessions cancelled for staleness.",
	})
)
