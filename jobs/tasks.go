package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMarkOverdue flags past-due installments and receivables.
	TaskMarkOverdue = "receivables:mark_overdue"
)

// MarkOverduePayload configures a sweep run. A zero AsOf means "now".
type MarkOverduePayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewMarkOverdueTask builds the sweep task.
func NewMarkOverdueTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(MarkOverduePayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMarkOverdue, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
