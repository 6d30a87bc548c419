// Package daemon runs registered schedules and sensors: schedule ticks are
// fired from the cron tick stream, sensors are evaluated at their minimum
// interval, cursors are persisted after every successful tick, and run
// requests are handed to the launcher. The daemon is deliberately
// single-replica; it does no distributed locking.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tickwise/internal/schedule"
	"tickwise/internal/sensor"
	"tickwise/internal/types"
)

// ScheduleEntry is a cron-driven job registration: the union of its cron
// expressions fires runs of the target job.
type ScheduleEntry struct {
	Name         string            `json:"name"`
	CronSchedule []string          `json:"cron_schedule"`
	Timezone     string            `json:"timezone"`
	JobName      string            `json:"job_name"`
	Tags         map[string]string `json:"tags"`
}

// Config wires the daemon's collaborators.
type Config struct {
	Instance       types.Instance
	Launcher       types.RunLauncher
	Cursors        types.CursorStore
	RepositoryName string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Sleep overrides timed waits, for tests. It must return ctx.Err()
	// when the context ends before the duration elapses.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Daemon evaluates registered sensors and fires registered schedules until
// its context is canceled.
type Daemon struct {
	instance       types.Instance
	launcher       types.RunLauncher
	cursors        types.CursorStore
	repositoryName string
	logger         *slog.Logger
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error

	sensors   []*sensor.Definition
	schedules []ScheduleEntry
}

// New builds a daemon from its collaborators.
func New(cfg Config) *Daemon {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepUntil
	}
	return &Daemon{
		instance:       cfg.Instance,
		launcher:       cfg.Launcher,
		cursors:        cfg.Cursors,
		repositoryName: cfg.RepositoryName,
		logger:         logger,
		now:            now,
		sleep:          sleep,
	}
}

// AddSensor registers a sensor definition. Not safe to call once Run has
// started.
func (d *Daemon) AddSensor(def *sensor.Definition) {
	d.sensors = append(d.sensors, def)
}

// AddSchedule registers a cron schedule after validating its expressions
// and timezone.
func (d *Daemon) AddSchedule(entry ScheduleEntry) error {
	if entry.Name == "" || entry.JobName == "" {
		return types.NewAppError(types.ErrCodeScheduleInvalidCron,
			"schedule entries require a name and a job name", nil)
	}
	if !schedule.IsValidCronSchedule(entry.CronSchedule) {
		return types.NewAppError(types.ErrCodeScheduleInvalidCron,
			fmt.Sprintf("schedule %q has an invalid cron schedule", entry.Name), nil)
	}
	if _, err := schedule.ScheduleTicks(d.now(), entry.CronSchedule, entry.Timezone, true); err != nil {
		return err
	}
	d.schedules = append(d.schedules, entry)
	return nil
}

// Run drives all registered schedules and sensors until ctx is canceled.
// It returns nil on clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, entry := range d.schedules {
		entry := entry
		g.Go(func() error { return d.runSchedule(ctx, entry) })
	}
	for _, def := range d.sensors {
		def := def
		g.Go(func() error { return d.runSensor(ctx, def) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runSchedule waits for each tick of the entry's cron union and launches
// one run per tick, keyed so a restart cannot double-fire an instant.
func (d *Daemon) runSchedule(ctx context.Context, entry ScheduleEntry) error {
	stream, err := schedule.ScheduleTicks(d.now(), entry.CronSchedule, entry.Timezone, true)
	if err != nil {
		return err
	}
	for {
		tick, ok := stream.Next()
		if !ok {
			d.logger.Warn("schedule produced no further ticks", "schedule", entry.Name)
			return nil
		}
		if err := d.sleep(ctx, tick.Sub(d.now())); err != nil {
			return err
		}
		req := types.RunRequest{
			RunKey:  fmt.Sprintf("%s:%d", entry.Name, tick.Unix()),
			JobName: entry.JobName,
			Tags:    entry.Tags,
		}
		runID, err := d.launcher.LaunchRun(ctx, entry.Name, req)
		if err != nil {
			d.logger.Error("failed to launch scheduled run",
				"schedule", entry.Name, "tick", tick, "error", err)
			continue
		}
		d.logger.Info("launched scheduled run",
			"schedule", entry.Name, "tick", tick, "run_id", runID)
	}
}

// runSensor evaluates one sensor at its minimum interval.
func (d *Daemon) runSensor(ctx context.Context, def *sensor.Definition) error {
	for {
		if err := d.EvaluateSensorOnce(ctx, def); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.IsConfiguration() {
				// Misconfigured definitions never succeed on retry.
				return err
			}
			d.logger.Error("sensor evaluation failed",
				"sensor", def.Name(), "error", err)
		}
		if err := d.sleep(ctx, def.MinInterval()); err != nil {
			return err
		}
	}
}

// EvaluateSensorOnce runs a single tick of the sensor: load the persisted
// cursor, evaluate, persist the new cursor, launch the resulting requests.
// The cursor write happens before launching so a crash mid-launch is
// deduplicated by run keys rather than replayed wholesale.
func (d *Daemon) EvaluateSensorOnce(ctx context.Context, def *sensor.Definition) error {
	cursor, err := d.cursors.LoadCursor(ctx, def.Name())
	if err != nil {
		return err
	}

	base := sensor.NewContext(sensor.ContextConfig{
		Instance:       d.instance,
		Cursor:         cursor,
		RepositoryName: d.repositoryName,
		Now:            d.now,
	})
	ec := def.NewEvalContext(base)
	defer base.Close()

	data, err := def.EvaluateTick(ctx, ec)
	if err != nil {
		return err
	}

	if data.Cursor != cursor {
		if err := d.cursors.SaveCursor(ctx, def.Name(), data.Cursor); err != nil {
			return err
		}
	}

	if data.SkipMessage != "" {
		d.logger.Info("sensor skipped", "sensor", def.Name(), "reason", data.SkipMessage)
		return nil
	}
	for _, req := range data.RunRequests {
		runID, err := d.launcher.LaunchRun(ctx, def.Name(), req)
		if err != nil {
			return fmt.Errorf("launching run for sensor %q: %w", def.Name(), err)
		}
		d.logger.Info("launched sensor run",
			"sensor", def.Name(), "run_id", runID, "run_key", req.RunKey)
	}
	for _, reaction := range data.RunReactions {
		d.logger.Info("sensor reaction",
			"sensor", def.Name(), "run_id", reaction.RunID, "error", reaction.Err)
	}
	return nil
}

// sleepUntil blocks for d or until ctx ends. Non-positive durations return
// immediately.
func sleepUntil(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
