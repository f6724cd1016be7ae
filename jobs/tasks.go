package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMatrixWarmup rebuilds the cached permission matrix.
	TaskMatrixWarmup = "rbac:matrix_warmup"
)

// MatrixWarmupPayload parameterizes a warmup run.
type MatrixWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewMatrixWarmupTask constructs an Asynq task.
func NewMatrixWarmupTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(MatrixWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatrixWarmup, data), nil
}
