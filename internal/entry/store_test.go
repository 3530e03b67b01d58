package entry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(time.Hour)
	sess := s.Create(FlowService)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, 1, s.Len())

	err := s.With(sess.ID, func(got *Session) error {
		require.Equal(t, FlowService, got.Flow)
		require.Equal(t, 0, got.Ledger.Len())
		return nil
	})
	require.NoError(t, err)

	s.Delete(sess.ID)
	require.Equal(t, 0, s.Len())
	require.ErrorIs(t, s.With(sess.ID, func(*Session) error { return nil }), ErrNotFound)
}

func TestStoreExpiry(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(time.Hour)
	s.now = func() time.Time { return current }

	sess := s.Create(FlowPurchase)

	// access inside the TTL slides the expiry forward
	current = current.Add(50 * time.Minute)
	require.NoError(t, s.With(sess.ID, func(*Session) error { return nil }))

	current = current.Add(50 * time.Minute)
	require.NoError(t, s.With(sess.ID, func(*Session) error { return nil }))

	current = current.Add(2 * time.Hour)
	require.ErrorIs(t, s.With(sess.ID, func(*Session) error { return nil }), ErrNotFound)
	require.Equal(t, 0, s.Len())
}

func TestStoreSweep(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(time.Hour)
	s.now = func() time.Time { return current }

	s.Create(FlowService)
	s.Create(FlowService)
	current = current.Add(30 * time.Minute)
	kept := s.Create(FlowPurchase)

	current = current.Add(45 * time.Minute)
	require.Equal(t, 2, s.Sweep())
	require.Equal(t, 1, s.Len())
	require.NoError(t, s.With(kept.ID, func(*Session) error { return nil }))
}
