package service

import (
	"sync"
	"time"
)

type ticket struct {
	playerID string
	name     string
	joinedAt time.Time
}

// Matchmaker is a FIFO queue of players waiting for a human opponent. The
// first waiter is paired with the next joiner.
type Matchmaker struct {
	mu    sync.Mutex
	queue []ticket
}

// NewMatchmaker returns an empty queue.
func NewMatchmaker() *Matchmaker {
	return &Matchmaker{}
}

// join enqueues a player, or pops the longest waiter as the opponent. The
// returned position is 1-based when the player is left waiting.
func (m *Matchmaker) join(playerID, name string) (opponent *ticket, position int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.queue {
		if t.playerID == playerID {
			return nil, 0, ErrAlreadyQueued
		}
	}
	if len(m.queue) > 0 {
		head := m.queue[0]
		m.queue = m.queue[1:]
		return &head, 0, nil
	}
	m.queue = append(m.queue, ticket{playerID: playerID, name: name, joinedAt: time.Now()})
	return nil, len(m.queue), nil
}

// leave withdraws a waiting ticket. It reports whether a ticket was removed;
// leaving without one is a no-op.
func (m *Matchmaker) leave(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.queue {
		if t.playerID == playerID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Depth returns the number of waiting players.
func (m *Matchmaker) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
