package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Sweeper закрывает сессии, которые перестали присылать heartbeat
type Sweeper interface {
	SweepIdleSessions(ctx context.Context) (int, error)
}

// SweepHandler обрабатывает задачу presence:sweep
type SweepHandler struct {
	sweeper Sweeper
	log     *logrus.Entry
}

func NewSweepHandler(sweeper Sweeper) *SweepHandler {
	return &SweepHandler{
		sweeper: sweeper,
		log:     logrus.WithField("component", "sweep"),
	}
}

// ProcessTask реализует asynq.Handler
func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := h.log.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})

	n, err := h.sweeper.SweepIdleSessions(ctx)
	if err != nil {
		logCtx.WithError(err).Error("idle session sweep failed")
		return fmt.Errorf("sweep idle sessions: %w", err)
	}
	if n > 0 {
		logCtx.WithField("sessions", n).Info("idle session sweep finished")
	}
	return nil
}
