package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTaskTimeout = 10 * time.Second

// Runner executes detached, best-effort tasks. A task never sees the caller's
// context, so request cancellation cannot abort it, and its outcome is only logged.
type Runner struct {
	base    context.Context
	timeout time.Duration
	logger  logrus.FieldLogger
	wg      sync.WaitGroup
}

func NewRunner(base context.Context, timeout time.Duration, logger logrus.FieldLogger) *Runner {
	if base == nil {
		base = context.Background()
	}
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{base: base, timeout: timeout, logger: logger}
}

// Go starts fn and returns immediately.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	if r == nil || fn == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.base), r.timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			r.logger.WithError(err).WithField("task", name).Warn("detached task failed")
		}
	}()
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}
