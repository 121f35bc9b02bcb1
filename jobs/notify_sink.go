package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/solarlink-crm/solarlink/internal/notify"
)

// AsynqSink bridges the in-process event bus to the queue, so notification
// fan-out happens on the worker instead of the request path.
type AsynqSink struct {
	client *Client
	logger *slog.Logger
}

// NewAsynqSink constructs the queue-backed sink.
func NewAsynqSink(client *Client, logger *slog.Logger) *AsynqSink {
	return &AsynqSink{client: client, logger: logger}
}

// Publish implements notify.Sink. Enqueue failures are logged and dropped;
// notifications are best-effort by contract.
func (s *AsynqSink) Publish(event notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.client.EnqueueLifecycleNotify(ctx, LifecycleNotifyPayload{
		ProjectID: event.ProjectID.String(),
		Action:    event.Action,
		ActorName: event.ActorName,
		Remarks:   event.Remarks,
		At:        event.At,
	})
	if err != nil {
		s.logger.Warn("enqueue lifecycle notify", slog.Any("error", err))
	}
}
