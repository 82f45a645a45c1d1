package worker

import (
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypePresenceSweep = "presence:sweep"

	queuePresence = "presence"
)

// NewPresenceSweepTask задача без payload: очистка всегда смотрит на текущее время.
// Unique не дает нескольким экземплярам поставить одну и ту же очистку дважды за интервал.
func NewPresenceSweepTask(interval time.Duration) *asynq.Task {
	return asynq.NewTask(
		TypePresenceSweep,
		nil,
		asynq.Queue(queuePresence),
		asynq.MaxRetry(0),
		asynq.Timeout(interval),
		asynq.Unique(interval),
	)
}
