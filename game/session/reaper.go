package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/corridors/gameserver/game/service"
	"github.com/corridors/gameserver/metrics"
)

// ReaperConfig controls the background sweep.
type ReaperConfig struct {
	// Interval between sweeps.
	Interval time.Duration
	// MaxIdle is the inactivity threshold after which a session is reaped.
	MaxIdle time.Duration
}

// Reaper periodically removes sessions whose last activity is older than the
// idle threshold. In-progress games are cancelled first so subscribers get a
// terminal event before the room disappears.
type Reaper struct {
	registry *Registry
	cfg      ReaperConfig
	onReaped func(snap service.Snapshot)
	log      zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewReaper builds a reaper over the registry. onReaped is invoked once per
// reaped session, after removal, with the final snapshot; it may be nil.
func NewReaper(registry *Registry, cfg ReaperConfig, onReaped func(service.Snapshot), log zerolog.Logger) *Reaper {
	return &Reaper{
		registry: registry,
		cfg:      cfg,
		onReaped: onReaped,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}

// Sweep performs one pass, returning how many sessions were reaped.
func (r *Reaper) Sweep() int {
	cutoff := time.Now().Add(-r.cfg.MaxIdle)
	var reaped []service.Snapshot

	for _, s := range r.registry.List(service.ListFilter{}) {
		guard := s.Guard()
		guard.Lock()
		if s.LastActivity.After(cutoff) {
			guard.Unlock()
			continue
		}
		if s.Status == service.StatusPending || s.Status == service.StatusInProgress {
			s.Status = service.StatusCancelled
			s.EndReason = service.EndReasonStale
		}
		snap := s.Snapshot()
		guard.Unlock()

		if err := r.registry.Remove(s.GameID); err != nil {
			// Lost a race with an explicit delete; nothing to announce.
			continue
		}
		reaped = append(reaped, snap)
	}

	for _, snap := range reaped {
		metrics.SessionsReaped.Inc()
		r.log.Info().
			Str("game_id", snap.GameID).
			Time("last_activity", snap.LastActivity).
			Msg("reaped idle session")
		if r.onReaped != nil {
			r.onReaped(snap)
		}
	}
	return len(reaped)
}
