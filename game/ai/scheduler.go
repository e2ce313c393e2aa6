package ai

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corridors/gameserver/metrics"
)

// Mover performs one machine move for a game. The game service implements it.
type Mover interface {
	PlayMachineTurn(gameID string) error
}

// ErrQueueFull is returned when an enqueue cannot be accepted within the
// backpressure window.
var ErrQueueFull = errors.New("ai scheduler queue is full")

// ErrStopped is returned when enqueueing after Stop.
var ErrStopped = errors.New("ai scheduler is stopped")

// Config sizes the scheduler.
type Config struct {
	// Workers is the number of concurrent machine-turn executors.
	Workers int
	// QueueSize bounds the pending turn queue.
	QueueSize int
	// EnqueueTimeout is how long Enqueue blocks on a full queue before
	// failing with ErrQueueFull.
	EnqueueTimeout time.Duration
}

// DefaultConfig returns the stock scheduler sizing.
func DefaultConfig() Config {
	return Config{
		Workers:        2,
		QueueSize:      64,
		EnqueueTimeout: 2 * time.Second,
	}
}

// Scheduler runs machine turns on a fixed worker pool fed by a bounded queue.
// Requests for a game already waiting in the queue are coalesced: the queue
// holds at most one entry per game, so a burst of triggers produces a single
// turn computation.
type Scheduler struct {
	cfg   Config
	mover Mover
	log   zerolog.Logger

	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool
}

// NewScheduler builds a scheduler; Start attaches the mover and launches the
// workers.
func NewScheduler(cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &Scheduler{
		cfg:     cfg,
		log:     log,
		queue:   make(chan string, cfg.QueueSize),
		stop:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}
}

// Start launches the worker pool executing turns through mover.
func (s *Scheduler) Start(mover Mover) {
	s.mover = mover
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop halts the workers. Queued turns that have not started are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.stop)
	s.wg.Wait()
}

// Enqueue requests a machine turn for gameID. A game already waiting in the
// queue is not enqueued again. When the queue stays full past the
// backpressure window the request fails with ErrQueueFull.
func (s *Scheduler) Enqueue(gameID string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if _, dup := s.pending[gameID]; dup {
		s.mu.Unlock()
		return nil
	}
	s.pending[gameID] = struct{}{}
	s.mu.Unlock()

	timer := time.NewTimer(s.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case s.queue <- gameID:
		metrics.AIQueueDepth.Set(float64(len(s.queue)))
		return nil
	case <-timer.C:
		s.forget(gameID)
		return ErrQueueFull
	case <-s.stop:
		s.forget(gameID)
		return ErrStopped
	}
}

// Depth reports the number of queued turns.
func (s *Scheduler) Depth() int {
	return len(s.queue)
}

func (s *Scheduler) forget(gameID string) {
	s.mu.Lock()
	delete(s.pending, gameID)
	s.mu.Unlock()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	log := s.log.With().Int("worker", id).Logger()
	for {
		select {
		case <-s.stop:
			return
		case gameID := <-s.queue:
			metrics.AIQueueDepth.Set(float64(len(s.queue)))
			// Forget before executing so a trigger arriving mid-turn
			// schedules a fresh computation for the new position.
			s.forget(gameID)
			if err := s.mover.PlayMachineTurn(gameID); err != nil {
				log.Warn().Err(err).Str("game_id", gameID).Msg("machine turn failed")
			}
		}
	}
}
