package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/castellan/castellan/internal/rbac"
)

// MatrixWarmupJob keeps the cross-process permission matrix warm so the
// first authenticated request after a deploy or cache flush does not pay
// for the full rebuild.
type MatrixWarmupJob struct {
	Builder *rbac.MatrixBuilder
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewMatrixWarmupJob wires dependencies for the warmup handler.
func NewMatrixWarmupJob(builder *rbac.MatrixBuilder, logger *slog.Logger) *MatrixWarmupJob {
	return &MatrixWarmupJob{
		Builder: builder,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes matrix warmup tasks.
func (j *MatrixWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Builder == nil {
		return errors.New("matrix warmup: handler not configured")
	}
	var payload MatrixWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	logger := j.logger().With(slog.String("reason", payload.Reason))
	started := j.clock()

	matrix, err := j.Builder.Permissions(ctx, true)
	if err != nil {
		logger.Error("rebuild permission matrix", slog.Any("error", err))
		return err
	}

	roleCount := 0
	for _, byRole := range matrix {
		roleCount += len(byRole)
	}
	logger.Info("permission matrix warmed",
		slog.Int("roles", roleCount),
		slog.Duration("took", j.clock().Sub(started)))
	return nil
}

func (j *MatrixWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
