package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreEnsure(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.Ensure(ctx, "u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u1", Name: "Alice"}, u)

	// Re-ensuring refreshes the name without touching counters.
	require.NoError(t, s.RecordWin(ctx, "u1"))
	u, err = s.Ensure(ctx, "u1", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", u.Name)
	assert.Equal(t, 1, u.Wins)
}

func TestMemoryStoreGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Ensure(ctx, "u1", "Alice")
	require.NoError(t, err)

	u, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	u.Wins = 99 // returned value is a copy

	again, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Wins)
}

func TestMemoryStoreCounters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, s.RecordWin(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.RecordLoss(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.SetPremium(ctx, "missing", true), ErrNotFound)

	_, err := s.Ensure(ctx, "u1", "Alice")
	require.NoError(t, err)

	require.NoError(t, s.RecordWin(ctx, "u1"))
	require.NoError(t, s.RecordWin(ctx, "u1"))
	require.NoError(t, s.RecordLoss(ctx, "u1"))
	require.NoError(t, s.SetPremium(ctx, "u1", true))

	u, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Wins)
	assert.Equal(t, 1, u.Losses)
	assert.True(t, u.Premium)
}
