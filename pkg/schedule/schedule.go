// Package schedule runs recurring tasks. It replaces ad-hoc ticker loops so the
// poller can be driven by a real clock in production and by hand in tests.
package schedule

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Handle cancels a scheduled task.
type Handle interface {
	// Cancel stops future runs. A run already in progress is not interrupted.
	Cancel()
}

// Scheduler runs task every interval until the returned handle is cancelled.
type Scheduler interface {
	Every(interval time.Duration, task func()) (Handle, error)
}

// Cron is a Scheduler backed by robfig/cron. Each task gets its own cron
// runner so cancelling one never affects another. Overlapping runs are
// skipped and panics are recovered and logged.
type Cron struct {
	Logger cron.Logger
}

// NewCron creates a cron-backed scheduler logging through the standard logger.
func NewCron() *Cron {
	return &Cron{Logger: cron.PrintfLogger(log.Default())}
}

// Every schedules task. robfig/cron has one-second granularity, so intervals
// below a second are rounded up by cron.Every.
func (c *Cron) Every(interval time.Duration, task func()) (Handle, error) {
	if interval <= 0 {
		return nil, errInterval(interval)
	}
	logger := c.Logger
	if logger == nil {
		logger = cron.DiscardLogger
	}

	runner := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	runner.Schedule(cron.Every(interval), cron.FuncJob(task))
	runner.Start()

	return &cronHandle{runner: runner}, nil
}

type cronHandle struct {
	once   sync.Once
	runner *cron.Cron
}

func (h *cronHandle) Cancel() {
	h.once.Do(func() {
		h.runner.Stop()
	})
}

type intervalError time.Duration

func (e intervalError) Error() string {
	return "schedule: interval must be positive, got " + time.Duration(e).String()
}

func errInterval(d time.Duration) error {
	return intervalError(d)
}
