package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeDeadlineSweep locks drafts whose conversion window elapsed.
	TaskTypeDeadlineSweep = "projects:deadline_sweep"
	// TaskTypeLifecycleNotify fans a committed lifecycle event out to the
	// parties watching the project.
	TaskTypeLifecycleNotify = "projects:notify"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit once the mail relay lands.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// LifecycleNotifyPayload mirrors a committed lifecycle event.
type LifecycleNotifyPayload struct {
	ProjectID string    `json:"project_id"`
	Action    string    `json:"action"`
	ActorName string    `json:"actor_name"`
	Remarks   string    `json:"remarks"`
	At        time.Time `json:"at"`
}

// NewLifecycleNotifyTask constructs a notification fan-out task.
func NewLifecycleNotifyTask(payload LifecycleNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLifecycleNotify, data), nil
}

// NewDeadlineSweepTask constructs a deadline sweep task.
func NewDeadlineSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDeadlineSweep, nil)
}
