package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchmakerPairsFIFO(t *testing.T) {
	m := NewMatchmaker()

	opponent, position, err := m.join("alice", "Alice")
	require.NoError(t, err)
	assert.Nil(t, opponent)
	assert.Equal(t, 1, position)

	opponent, position, err = m.join("bob", "Bob")
	require.NoError(t, err)
	require.NotNil(t, opponent)
	assert.Equal(t, "alice", opponent.playerID)
	assert.Equal(t, 0, position)
	assert.Equal(t, 0, m.Depth())
}

func TestMatchmakerRejectsDuplicate(t *testing.T) {
	m := NewMatchmaker()

	_, _, err := m.join("alice", "Alice")
	require.NoError(t, err)

	_, _, err = m.join("alice", "Alice")
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, m.Depth())
}

func TestMatchmakerLeave(t *testing.T) {
	m := NewMatchmaker()

	// No ticket, nothing to do.
	assert.False(t, m.leave("alice"))

	_, _, err := m.join("alice", "Alice")
	require.NoError(t, err)
	assert.True(t, m.leave("alice"))
	assert.Equal(t, 0, m.Depth())

	// A withdrawn player can rejoin as a fresh waiter.
	opponent, position, err := m.join("alice", "Alice")
	require.NoError(t, err)
	assert.Nil(t, opponent)
	assert.Equal(t, 1, position)
}
