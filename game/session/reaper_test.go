package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corridors/gameserver/game/search"
	"github.com/corridors/gameserver/game/service"
)

func TestSweepReapsIdleSession(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	stale := newSession("stale", service.StatusInProgress, humanSeats("alice", "bob"))
	stale.LastActivity = time.Now().Add(-time.Hour)
	require.NoError(t, r.Add(stale))

	fresh := newSession("fresh", service.StatusInProgress, humanSeats("carol", "dave"))
	require.NoError(t, r.Add(fresh))

	var reaped []service.Snapshot
	reaper := NewReaper(r, ReaperConfig{Interval: time.Minute, MaxIdle: 10 * time.Minute}, func(snap service.Snapshot) {
		reaped = append(reaped, snap)
	}, zerolog.Nop())

	assert.Equal(t, 1, reaper.Sweep())

	require.Len(t, reaped, 1)
	assert.Equal(t, "stale", reaped[0].GameID)
	assert.Equal(t, service.StatusCancelled, reaped[0].Status)
	assert.Equal(t, service.EndReasonStale, reaped[0].EndReason)

	// The stale session is gone and its adapter closed; the fresh one remains.
	_, err := r.Get("stale")
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = stale.Adapter.VisitCount()
	assert.ErrorIs(t, err, search.ErrClosed)
	_, err = r.Get("fresh")
	assert.NoError(t, err)
}

func TestSweepKeepsFinishedStatus(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	done := newSession("done", service.StatusCompleted, humanSeats("alice", "bob"))
	done.Winner = "alice"
	done.EndReason = service.EndReasonGoalReached
	done.LastActivity = time.Now().Add(-time.Hour)
	require.NoError(t, r.Add(done))

	var reaped []service.Snapshot
	reaper := NewReaper(r, ReaperConfig{Interval: time.Minute, MaxIdle: 10 * time.Minute}, func(snap service.Snapshot) {
		reaped = append(reaped, snap)
	}, zerolog.Nop())

	assert.Equal(t, 1, reaper.Sweep())
	require.Len(t, reaped, 1)
	// A completed game keeps its result; reaping only evicts it.
	assert.Equal(t, service.StatusCompleted, reaped[0].Status)
	assert.Equal(t, "alice", reaped[0].Winner)
}

func TestSweepNothingToDo(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Add(newSession("g1", service.StatusInProgress, humanSeats("alice", "bob"))))

	reaper := NewReaper(r, ReaperConfig{Interval: time.Minute, MaxIdle: 10 * time.Minute}, nil, zerolog.Nop())
	assert.Equal(t, 0, reaper.Sweep())
	assert.Equal(t, 1, r.Count())
}

func TestReaperStartStop(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	stale := newSession("stale", service.StatusInProgress, humanSeats("alice", "bob"))
	stale.LastActivity = time.Now().Add(-time.Hour)
	require.NoError(t, r.Add(stale))

	reaped := make(chan service.Snapshot, 1)
	reaper := NewReaper(r, ReaperConfig{Interval: 10 * time.Millisecond, MaxIdle: time.Minute}, func(snap service.Snapshot) {
		select {
		case reaped <- snap:
		default:
		}
	}, zerolog.Nop())

	reaper.Start()
	select {
	case snap := <-reaped:
		assert.Equal(t, "stale", snap.GameID)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper never swept")
	}
	reaper.Stop()
}
