// Package reload owns the published snapshot: it performs the initial
// synchronous build, schedules periodic rebuilds, and atomically swaps the
// current snapshot reference on success. Readers take one reference per
// request and never see a half-built directory; a failed rebuild leaves the
// previous snapshot in force.
package reload

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"f0oster/oktaldap/directory"
)

// BuildFunc fetches the upstream directory and renders a fresh snapshot.
type BuildFunc func(ctx context.Context) (*directory.Snapshot, error)

// RunRecord describes one completed rebuild attempt.
type RunRecord struct {
	ID        uuid.UUID
	StartedAt time.Time
	Duration  time.Duration

	Users      int
	Groups     int
	Entries    int
	Collisions int

	Status string // "ok" or "failed"
	Error  string
}

// RunRecorder persists rebuild records. Recording failures are logged and
// otherwise ignored: history is an observer, never a gate on publication.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Coordinator holds the single published snapshot reference.
type Coordinator struct {
	build    BuildFunc
	interval time.Duration
	logger   *slog.Logger
	recorder RunRecorder

	current atomic.Pointer[directory.Snapshot]
}

// New creates a coordinator. A zero or negative interval disables periodic
// reloads; recorder may be nil.
func New(build BuildFunc, interval time.Duration, logger *slog.Logger, recorder RunRecorder) *Coordinator {
	return &Coordinator{
		build:    build,
		interval: interval,
		logger:   logger.With(slog.String("component", "reload")),
		recorder: recorder,
	}
}

// Start performs the initial synchronous build. An error here must abort
// process startup: the service never serves without a snapshot.
func (c *Coordinator) Start(ctx context.Context) error {
	c.logger.Info("loading in-memory directory")
	return c.rebuild(ctx)
}

// Run triggers rebuilds on the configured interval until ctx is cancelled.
// Rebuild failures are logged; the previous snapshot stays published.
func (c *Coordinator) Run(ctx context.Context) {
	if c.interval <= 0 {
		c.logger.Info("periodic reload disabled")
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.rebuild(ctx); err != nil {
				c.logger.Error("directory reload failed, keeping previous snapshot", slog.String("error", err.Error()))
			}
		}
	}
}

// Current returns the latest published snapshot. Callers use the returned
// reference for the whole request, never this accessor twice.
func (c *Coordinator) Current() *directory.Snapshot {
	return c.current.Load()
}

func (c *Coordinator) rebuild(ctx context.Context) error {
	run := RunRecord{ID: uuid.New(), StartedAt: time.Now()}

	snap, err := c.build(ctx)
	run.Duration = time.Since(run.StartedAt)

	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		rebuildsTotal.WithLabelValues("failed").Inc()
		c.record(ctx, run)
		return err
	}

	c.current.Store(snap)

	run.Status = "ok"
	run.Users = snap.Stats.Users
	run.Groups = snap.Stats.Groups
	run.Entries = snap.Len()
	run.Collisions = snap.Stats.Collisions

	rebuildsTotal.WithLabelValues("ok").Inc()
	lastRebuildDuration.Set(run.Duration.Seconds())
	directoryEntries.Set(float64(snap.Len()))

	c.logger.Info("directory snapshot published",
		slog.Int("entries", snap.Len()),
		slog.Duration("duration", run.Duration),
	)
	c.record(ctx, run)
	return nil
}

func (c *Coordinator) record(ctx context.Context, run RunRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRun(ctx, run); err != nil {
		c.logger.Warn("failed to record sync run", slog.String("error", err.Error()))
	}
}
