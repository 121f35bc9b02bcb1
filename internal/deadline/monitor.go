package deadline

import (
	"context"
	"log/slog"
	"time"
)

// Locker is the engine-side sweep: lock every draft whose window elapsed as of
// now, returning how many were locked.
type Locker interface {
	LockExpired(ctx context.Context, now time.Time) (int, error)
}

// Monitor drives deadline enforcement. The engine already sweeps lazily before
// reads; the monitor adds a scheduled sweep so drafts nobody reads still lock
// close to their deadline. Both paths share the same idempotent compare-and-set,
// so overlapping sweeps cannot double-lock or duplicate timeline entries.
type Monitor struct {
	logger *slog.Logger
	locker Locker
	now    func() time.Time
}

// NewMonitor constructs the deadline monitor.
func NewMonitor(logger *slog.Logger, locker Locker) *Monitor {
	return &Monitor{logger: logger, locker: locker, now: time.Now}
}

// Sweep locks all expired drafts and reports the count.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	start := m.now()
	locked, err := m.locker.LockExpired(ctx, start)
	if err != nil {
		return 0, err
	}
	if locked > 0 {
		m.logger.Info("deadline sweep",
			slog.Int("locked", locked),
			slog.Duration("took", m.now().Sub(start)))
	}
	return locked, nil
}
