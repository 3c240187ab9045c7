package notify

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "evcal/internal/log"
)

// DefaultSchedule runs a scan once a minute.
const DefaultSchedule = "@every 60s"

// Scheduler runs Notifier.Scan on a cron schedule. A scan that is still
// running when the next one is due causes that run to be skipped.
type Scheduler struct {
	cron *cron.Cron
	n    *Notifier
}

// NewScheduler validates schedule (empty means DefaultSchedule) and
// registers the scan job. Nothing runs until Start.
func NewScheduler(n *Notifier, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, n: n}
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("notify: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	events, err := s.n.Scan(context.Background())
	if err != nil {
		appLog.Error("notify: scan failed", err)
		return
	}
	if len(events) > 0 {
		appLog.Debug("notify: scan delivered reminders", "count", len(events))
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running scan to finish or ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
