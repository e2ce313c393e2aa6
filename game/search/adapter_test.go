package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corridors/gameserver/game/engine"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := NewAdapter(engine.DefaultConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRunSimulationsCompletesRequestedCount(t *testing.T) {
	a := newTestAdapter(t)

	completed, err := a.RunSimulations(context.Background(), 250)
	require.NoError(t, err)
	assert.Equal(t, 250, completed)

	visits, err := a.VisitCount()
	require.NoError(t, err)
	assert.Equal(t, 250, visits)
}

func TestRunSimulationsZeroIsNoop(t *testing.T) {
	a := newTestAdapter(t)

	completed, err := a.RunSimulations(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
}

func TestRunSimulationsDeadline(t *testing.T) {
	a := newTestAdapter(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	completed, err := a.RunSimulations(ctx, 5_000_000)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, completed, 5_000_000)

	// The adapter stays usable after a timeout.
	visits, err := a.VisitCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, visits, completed)
}

func TestEnsureBudgetTopsUp(t *testing.T) {
	a := newTestAdapter(t)

	visits, err := a.EnsureBudget(context.Background(), 300)
	require.NoError(t, err)
	assert.Equal(t, 300, visits)

	// A target at or below the current count does no extra work.
	visits, err = a.EnsureBudget(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, 300, visits)

	visits, err = a.EnsureBudget(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, 500, visits)
}

func TestApplyMoveRejectsInvalidAction(t *testing.T) {
	a := newTestAdapter(t)

	err := a.ApplyMove("*(0,8)", false)
	require.ErrorIs(t, err, ErrInvalidAction)

	err = a.ApplyMove("nonsense", false)
	require.ErrorIs(t, err, ErrInvalidAction)

	require.NoError(t, a.ApplyMove("*(4,1)", false))
}

func TestApplyMoveCancelsRunningSearch(t *testing.T) {
	a := newTestAdapter(t)

	type runResult struct {
		completed int
		err       error
	}
	done := make(chan runResult, 1)
	go func() {
		completed, err := a.RunSimulations(context.Background(), 5_000_000)
		done <- runResult{completed, err}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.ApplyMove("*(4,1)", false))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Less(t, r.completed, 5_000_000)
	case <-time.After(5 * time.Second):
		t.Fatal("simulation run did not stop after move commit")
	}
}

func TestResetClearsTree(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.RunSimulations(context.Background(), 100)
	require.NoError(t, err)
	require.NoError(t, a.ApplyMove("*(4,1)", false))
	require.NoError(t, a.Reset())

	visits, err := a.VisitCount()
	require.NoError(t, err)
	assert.Equal(t, 0, visits)

	legal, err := a.LegalActions()
	require.NoError(t, err)
	assert.Contains(t, legal, "*(4,1)")
}

func TestBestActionAfterSearch(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.RunSimulations(context.Background(), 200)
	require.NoError(t, err)

	best, err := a.BestAction(0)
	require.NoError(t, err)
	require.NotEmpty(t, best)

	legal, err := a.LegalActions()
	require.NoError(t, err)
	assert.Contains(t, legal, best)

	value, ok, err := a.Evaluation()
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, value, -1.0)
	assert.LessOrEqual(t, value, 1.0)
}

func TestSortedActionsFlipped(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.RunSimulations(context.Background(), 100)
	require.NoError(t, err)

	plain, err := a.SortedActions(false)
	require.NoError(t, err)
	flipped, err := a.SortedActions(true)
	require.NoError(t, err)
	require.Equal(t, len(plain), len(flipped))

	want, err := engine.FlipAction(plain[0].Action)
	require.NoError(t, err)
	assert.Equal(t, want, flipped[0].Action)
}

func TestRenderAndTerminal(t *testing.T) {
	a := newTestAdapter(t)

	board, err := a.Render(false)
	require.NoError(t, err)
	assert.NotEmpty(t, board)

	terminal, err := a.IsTerminal()
	require.NoError(t, err)
	assert.False(t, terminal)
}

func TestCloseIsIdempotentAndFinal(t *testing.T) {
	a := NewAdapter(engine.DefaultConfig(), zerolog.Nop())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.RunSimulations(context.Background(), 10)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.ApplyMove("*(4,1)", false), ErrClosed)
	assert.ErrorIs(t, a.Reset(), ErrClosed)
	_, err = a.BestAction(0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.VisitCount()
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = a.Evaluation()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.LegalActions()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseInterruptsRunningSearch(t *testing.T) {
	a := NewAdapter(engine.DefaultConfig(), zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := a.RunSimulations(context.Background(), 5_000_000)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-done:
		// The run either finished its last batch cleanly or observed the
		// closed flag.
		if err != nil {
			assert.True(t, errors.Is(err, ErrClosed))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("simulation run did not stop after close")
	}
}
