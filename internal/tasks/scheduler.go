package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler runs periodic jobs until its context is cancelled.
type Scheduler struct {
	logger logrus.FieldLogger
	wg     sync.WaitGroup
}

func NewScheduler(logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{logger: logger}
}

// Every runs fn once immediately and then on each tick of interval.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := run(ctx, fn); err != nil {
				s.logger.WithError(err).WithField("job", name).Error("scheduled job failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}
