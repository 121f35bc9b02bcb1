package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// LifecycleNotifyJob turns queued lifecycle events into outbound mail. The
// current routing is a single shared inbox; per-user routing needs a watcher
// table first.
type LifecycleNotifyJob struct {
	client *Client
	inbox  string
	logger *slog.Logger
}

// NewLifecycleNotifyJob constructs the fan-out handler.
func NewLifecycleNotifyJob(client *Client, inbox string, logger *slog.Logger) *LifecycleNotifyJob {
	return &LifecycleNotifyJob{client: client, inbox: inbox, logger: logger}
}

// Handle processes TaskTypeLifecycleNotify tasks.
func (j *LifecycleNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LifecycleNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.inbox == "" {
		j.logger.Debug("lifecycle notify dropped, no inbox configured",
			slog.String("project", payload.ProjectID), slog.String("action", payload.Action))
		return nil
	}
	_, err := j.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      j.inbox,
		Subject: fmt.Sprintf("[solarlink] project %s: %s", payload.ProjectID, payload.Action),
		Body:    fmt.Sprintf("%s by %s at %s\n\n%s", payload.Action, payload.ActorName, payload.At.Format("2006-01-02 15:04:05 MST"), payload.Remarks),
	})
	return err
}
