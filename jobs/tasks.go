package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReminderFanOut triggers one charge reminder per debtor.
	TaskReminderFanOut = "reminder:fanout"
	// TaskReminderCharge composes the charge message for a single debtor.
	TaskReminderCharge = "reminder:charge"
)

// ChargeReminderPayload identifies the debtor to remind.
type ChargeReminderPayload struct {
	UserID int64 `json:"user_id"`
}

// NewReminderFanOutTask constructs the cron-triggered fan-out task.
func NewReminderFanOutTask() *asynq.Task {
	return asynq.NewTask(TaskReminderFanOut, nil)
}

// NewChargeReminderTask constructs a charge reminder for one debtor.
func NewChargeReminderTask(payload ChargeReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderCharge, data), nil
}
