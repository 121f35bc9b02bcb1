package deadline

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocker struct {
	deadline time.Time
	locked   bool
	calls    int
	err      error
}

func (s *stubLocker) LockExpired(_ context.Context, now time.Time) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if s.locked || now.Before(s.deadline) {
		return 0, nil
	}
	s.locked = true
	return 1, nil
}

func TestSweepLocksOnlyAfterDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	locker := &stubLocker{deadline: deadline}
	m := NewMonitor(slog.Default(), locker)

	m.now = func() time.Time { return deadline.Add(-time.Millisecond) }
	locked, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, locked)

	m.now = func() time.Time { return deadline }
	locked, err = m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locked)
}

func TestSweepIsIdempotent(t *testing.T) {
	deadline := time.Now().Add(-time.Minute)
	locker := &stubLocker{deadline: deadline}
	m := NewMonitor(slog.Default(), locker)

	locked, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	locked, err = m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, locked)
	assert.Equal(t, 2, locker.calls)
}

func TestSweepPropagatesErrors(t *testing.T) {
	locker := &stubLocker{err: fmt.Errorf("pool exhausted")}
	m := NewMonitor(slog.Default(), locker)

	_, err := m.Sweep(context.Background())
	assert.Error(t, err)
}
