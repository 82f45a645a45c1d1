package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunTicker очистка внутри процесса, когда Redis не настроен; блокирует до отмены ctx
func RunTicker(ctx context.Context, sweeper Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logrus.WithField("component", "sweep")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.SweepIdleSessions(ctx)
			if err != nil {
				log.WithError(err).Error("idle session sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("sessions", n).Info("idle session sweep finished")
			}
		}
	}
}
