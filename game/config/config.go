// Package config loads the server configuration from the environment.
// Every value has a default; a .env file is honoured when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/corridors/gameserver/game/engine"
)

// Config is the full server configuration.
type Config struct {
	// Host and Port for the HTTP listener.
	Host string
	Port int

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string

	// AIWorkers is the machine-turn worker pool size.
	AIWorkers int
	// AIQueueSize bounds the machine-turn queue.
	AIQueueSize int
	// AIEnqueueTimeout is the backpressure window before QueueFull.
	AIEnqueueTimeout time.Duration
	// AITimeout bounds one machine turn's search.
	AITimeout time.Duration
	// MoveTimeout bounds caller-facing engine work.
	MoveTimeout time.Duration
	// Epsilon is the machine's exploration noise.
	Epsilon float64

	// ReapInterval is the sweep period for idle sessions.
	ReapInterval time.Duration
	// SessionTTL is the inactivity threshold before a session is reaped.
	SessionTTL time.Duration

	// WSHeartbeat is the websocket ping period.
	WSHeartbeat time.Duration
	// WSMissLimit is how many heartbeats a client may miss before it is
	// disconnected.
	WSMissLimit int

	// Engine is the default per-game search configuration.
	Engine engine.Config

	// NgrokEnabled exposes the server through an ngrok tunnel.
	NgrokEnabled bool
	// NgrokDomain is an optional reserved tunnel domain.
	NgrokDomain string
}

// Load reads the configuration from the environment. When testMode is set,
// the reaper runs on a tight schedule so idle-session behaviour is observable
// in seconds rather than hours.
func Load(testMode bool) Config {
	cfg := Config{
		Host:             envString("CORRIDORS_HOST", ""),
		Port:             envInt("CORRIDORS_PORT", 8080),
		LogLevel:         envString("CORRIDORS_LOG_LEVEL", "info"),
		AIWorkers:        envInt("CORRIDORS_AI_WORKERS", 2),
		AIQueueSize:      envInt("CORRIDORS_AI_QUEUE_SIZE", 64),
		AIEnqueueTimeout: envDuration("CORRIDORS_AI_ENQUEUE_TIMEOUT", 2*time.Second),
		AITimeout:        envDuration("CORRIDORS_AI_TIMEOUT", 60*time.Second),
		MoveTimeout:      envDuration("CORRIDORS_MOVE_TIMEOUT", 30*time.Second),
		Epsilon:          envFloat("CORRIDORS_EPSILON", 0),
		ReapInterval:     envDuration("CORRIDORS_REAP_INTERVAL", time.Minute),
		SessionTTL:       envDuration("CORRIDORS_SESSION_TTL", time.Hour),
		WSHeartbeat:      envDuration("CORRIDORS_WS_HEARTBEAT", 20*time.Second),
		WSMissLimit:      envInt("CORRIDORS_WS_MISS_LIMIT", 3),
		NgrokEnabled:     envBool("CORRIDORS_NGROK", false),
		NgrokDomain:      envString("CORRIDORS_NGROK_DOMAIN", ""),
	}

	cfg.Engine = engine.DefaultConfig()
	cfg.Engine.Exploration = envFloat("CORRIDORS_EXPLORATION", cfg.Engine.Exploration)
	cfg.Engine.Seed = int64(envInt("CORRIDORS_SEED", int(cfg.Engine.Seed)))
	cfg.Engine.MinSimulations = envInt("CORRIDORS_MIN_SIMULATIONS", cfg.Engine.MinSimulations)
	cfg.Engine.MaxSimulations = envInt("CORRIDORS_MAX_SIMULATIONS", cfg.Engine.MaxSimulations)

	if testMode {
		cfg.ReapInterval = envDuration("CORRIDORS_REAP_INTERVAL", 10*time.Second)
		cfg.SessionTTL = envDuration("CORRIDORS_SESSION_TTL", 60*time.Second)
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
