package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// WorkerServer asynq worker и планировщик периодической очистки сессий
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	handler   *SweepHandler
	interval  time.Duration
	log       *logrus.Entry
}

// NewWorkerServer redisURL в формате redis://[:password@]host:port[/db]
func NewWorkerServer(redisURL string, sweeper Sweeper, interval time.Duration) (*WorkerServer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url for worker: %w", err)
	}

	logEntry := logrus.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				queuePresence: 1,
			},
			Logger:   logEntry,
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logEntry.WithField("task_type", task.Type()).WithError(err).Error("task failed")
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   logEntry,
		LogLevel: asynq.WarnLevel,
		Location: time.UTC,
	})

	return &WorkerServer{
		server:    server,
		scheduler: scheduler,
		handler:   NewSweepHandler(sweeper),
		interval:  interval,
		log:       logEntry,
	}, nil
}

// Start регистрирует периодическую задачу и запускает worker; не блокирует
func (ws *WorkerServer) Start() error {
	schedule := fmt.Sprintf("@every %s", ws.interval)
	entryID, err := ws.scheduler.Register(schedule, NewPresenceSweepTask(ws.interval))
	if err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.Handle(TypePresenceSweep, ws.handler)

	if err := ws.server.Start(mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	if err := ws.scheduler.Start(); err != nil {
		ws.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	ws.log.WithFields(logrus.Fields{
		"entry_id": entryID,
		"schedule": schedule,
	}).Info("worker server started")
	return nil
}

// Shutdown останавливает планировщик и дожидается текущей задачи
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("shutting down worker server")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
}
