package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/corridors/gameserver/game/service"
	"github.com/corridors/gameserver/metrics"
)

// Registry is the in-memory session store. A plain map under a read-write
// mutex; sessions carry their own guard for game-state mutation, the registry
// lock only covers membership.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*service.Session
	log      zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*service.Session),
		log:      log,
	}
}

// Add registers a session under its game ID. Duplicate IDs are rejected.
func (r *Registry) Add(s *service.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.GameID]; ok {
		return service.ErrInternal
	}
	r.sessions[s.GameID] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.log.Debug().Str("game_id", s.GameID).Str("mode", string(s.Mode)).Msg("session registered")
	return nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*service.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return s, nil
}

// List returns the sessions matching f, in no particular order.
func (r *Registry) List(f service.ListFilter) []*service.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*service.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.PlayerID != "" {
			if _, ok := s.SeatOf(f.PlayerID); !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Remove drops the session and closes its adapter. The adapter close happens
// outside the registry lock; it may block briefly while an in-flight
// simulation run winds down.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()
	if !ok {
		return service.ErrNotFound
	}
	if s.Adapter != nil {
		if err := s.Adapter.Close(); err != nil {
			r.log.Warn().Err(err).Str("game_id", id).Msg("adapter close failed")
		}
	}
	r.log.Debug().Str("game_id", id).Msg("session removed")
	return nil
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
