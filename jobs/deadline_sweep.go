package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/solarlink-crm/solarlink/internal/deadline"
)

// SweepObserver counts locked drafts for metrics. Optional.
type SweepObserver interface {
	ObserveSweep(locked int)
}

// DeadlineSweepJob wraps the deadline monitor for scheduled execution. The
// sweep is idempotent, so the cron cadence and the engine's lazy sweep can
// overlap freely.
type DeadlineSweepJob struct {
	monitor  *deadline.Monitor
	logger   *slog.Logger
	observer SweepObserver
}

// NewDeadlineSweepJob constructs the scheduled sweep job.
func NewDeadlineSweepJob(monitor *deadline.Monitor, logger *slog.Logger, observer SweepObserver) *DeadlineSweepJob {
	return &DeadlineSweepJob{monitor: monitor, logger: logger, observer: observer}
}

// Handle processes TaskTypeDeadlineSweep tasks.
func (j *DeadlineSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	locked, err := j.monitor.Sweep(ctx)
	if err != nil {
		j.logger.Error("deadline sweep job", slog.Any("error", err))
		return err
	}
	if j.observer != nil {
		j.observer.ObserveSweep(locked)
	}
	return nil
}
