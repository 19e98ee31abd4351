// Package refresh keeps the events cache warm on a cron schedule and,
// optionally, re-captures the page preview after each refresh.
package refresh

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "eventstoday/internal/log"
)

// Refresher is the part of the today pipeline the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Job runs one refresh cycle.
type Job struct {
	Events Refresher
	// Capture, if set, runs after every refresh (successful or not) so the
	// preview always matches what visitors see.
	Capture func(ctx context.Context) error

	mu sync.Mutex
}

// Run executes a single cycle. Overlapping calls are serialized.
func (j *Job) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.Events.Refresh(ctx)
	if err != nil {
		appLog.Error("scheduled refresh failed", err)
	}

	if j.Capture != nil {
		if cerr := j.Capture(ctx); cerr != nil {
			appLog.Error("preview capture failed", cerr)
		}
	}
	return err
}

// Warm refreshes the events cache without capturing. It suits startup,
// when the HTTP server the capture would load may not be listening yet.
func (j *Job) Warm(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.Events.Refresh(ctx)
	if err != nil {
		appLog.Error("startup refresh failed", err)
	}
	return err
}

// Start schedules j on spec (standard 5-field cron syntax) until ctx is done.
// The returned cron is already running.
func Start(ctx context.Context, spec string, j *Job) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		_ = j.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return c, nil
}
