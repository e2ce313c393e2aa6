package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinSimulations = 100
	cfg.MaxSimulations = 500
	return cfg
}

func TestSearchIsDeterministicPerSeed(t *testing.T) {
	a := NewMCTS(testConfig())
	b := NewMCTS(testConfig())

	a.RunSimulations(200)
	b.RunSimulations(200)

	assert.Equal(t, a.SortedActions(false), b.SortedActions(false))
	assert.Equal(t, a.BestAction(0), b.BestAction(0))
}

func TestVisitCountAccumulates(t *testing.T) {
	m := NewMCTS(testConfig())
	assert.Equal(t, 0, m.VisitCount())

	m.RunSimulations(150)
	assert.Equal(t, 150, m.VisitCount())

	m.RunSimulations(50)
	assert.Equal(t, 200, m.VisitCount())
}

func TestBestActionIsLegal(t *testing.T) {
	m := NewMCTS(testConfig())
	m.RunSimulations(200)

	best := m.BestAction(0)
	assert.Contains(t, m.LegalActions(), best)
}

func TestSortedActionsOrderedByVisits(t *testing.T) {
	m := NewMCTS(testConfig())
	m.RunSimulations(300)

	actions := m.SortedActions(false)
	require.NotEmpty(t, actions)
	for i := 1; i < len(actions); i++ {
		assert.GreaterOrEqual(t, actions[i-1].Visits, actions[i].Visits)
	}
	for _, a := range actions {
		if a.Visits > 0 {
			assert.GreaterOrEqual(t, a.Equity, -1.0)
			assert.LessOrEqual(t, a.Equity, 1.0)
		}
	}
}

func TestSortedActionsFlipRewritesFrame(t *testing.T) {
	m := NewMCTS(testConfig())
	m.RunSimulations(100)

	plain := m.SortedActions(false)
	flipped := m.SortedActions(true)
	require.Equal(t, len(plain), len(flipped))
	for i := range plain {
		want, err := FlipAction(plain[i].Action)
		require.NoError(t, err)
		assert.Equal(t, want, flipped[i].Action)
		assert.Equal(t, plain[i].Visits, flipped[i].Visits)
	}
}

func TestApplyMoveKeepsSubtree(t *testing.T) {
	m := NewMCTS(testConfig())
	m.RunSimulations(400)

	actions := m.SortedActions(false)
	require.NotEmpty(t, actions)
	top := actions[0]
	require.Positive(t, top.Visits)

	require.NoError(t, m.ApplyMove(top.Action, false))
	assert.Equal(t, top.Visits, m.VisitCount())
}

func TestApplyMoveFlipTranslatesFrame(t *testing.T) {
	m := NewMCTS(testConfig())
	require.NoError(t, m.ApplyMove("*(4,1)", false))

	// Villain advances, submitting in its own frame: *(4,1) means *(4,7).
	require.NoError(t, m.ApplyMove("*(4,1)", true))
	assert.Equal(t, Cell{4, 7}, m.board.Pawn(Villain))
}

func TestApplyMoveRejectsIllegal(t *testing.T) {
	m := NewMCTS(testConfig())

	assert.Error(t, m.ApplyMove("*(0,8)", false))
	assert.Error(t, m.ApplyMove("garbage", false))
	assert.Equal(t, Cell{4, 0}, m.board.Pawn(Hero))
	assert.Equal(t, Hero, m.board.Turn())
}

func TestEvaluationKeepsHeroPerspectiveAcrossReroot(t *testing.T) {
	m := NewMCTS(testConfig())
	require.NoError(t, m.ApplyMove("*(4,1)", false))
	m.RunSimulations(500)

	actions := m.SortedActions(false)
	require.NotEmpty(t, actions)
	top := actions[0]
	require.Positive(t, top.Visits)

	// Equity of the villain's reply is villain-relative; once that child
	// becomes the root, the evaluation must still read from the hero's side.
	require.NoError(t, m.ApplyMove(top.Action, false))
	value, ok := m.Evaluation()
	require.True(t, ok)
	assert.InDelta(t, -top.Equity, value, 1e-9)

	// A hero reply reroots onto a hero-moved child; its equity already is
	// hero-relative.
	m.RunSimulations(500)
	actions = m.SortedActions(false)
	require.NotEmpty(t, actions)
	top = actions[0]
	require.Positive(t, top.Visits)
	require.NoError(t, m.ApplyMove(top.Action, false))
	value, ok = m.Evaluation()
	require.True(t, ok)
	assert.InDelta(t, top.Equity, value, 1e-9)
}

func TestEvaluationBounds(t *testing.T) {
	m := NewMCTS(testConfig())

	_, ok := m.Evaluation()
	assert.False(t, ok)

	m.RunSimulations(200)
	value, ok := m.Evaluation()
	require.True(t, ok)
	assert.GreaterOrEqual(t, value, -1.0)
	assert.LessOrEqual(t, value, 1.0)
}

func TestSelfPlayReachesTerminal(t *testing.T) {
	m := NewMCTS(testConfig())

	for ply := 0; ply < 300; ply++ {
		if m.IsTerminal() {
			break
		}
		m.RunSimulations(100)
		best := m.BestAction(0)
		require.NotEmpty(t, best)
		require.NoError(t, m.ApplyMove(best, false))
	}
	assert.True(t, m.IsTerminal())
	assert.Empty(t, m.BestAction(0))
	assert.Error(t, m.ApplyMove("*(4,1)", false))
}

func TestResetDiscardsTree(t *testing.T) {
	m := NewMCTS(testConfig())
	m.RunSimulations(100)
	require.NoError(t, m.ApplyMove(m.BestAction(0), false))

	m.Reset()
	assert.Equal(t, 0, m.VisitCount())
	assert.False(t, m.IsTerminal())
	assert.Equal(t, Cell{4, 0}, m.board.Pawn(Hero))
}
