// Package jobs runs the practice's periodic maintenance sweeps: flipping
// reminders to due, expiring prescriptions, and clearing stale staff
// sessions. Domain services register their sweep functions in main; this
// package only owns the schedule.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// SweepFunc runs one maintenance pass and reports how many rows it touched.
type SweepFunc func(ctx context.Context) (int64, error)

type sweep struct {
	name  string
	every time.Duration
	run   SweepFunc
}

type Worker struct {
	logger    zerolog.Logger
	scheduler *gocron.Scheduler
	sweeps    []sweep
}

func NewWorker(logger zerolog.Logger) *Worker {
	return &Worker{
		logger:    logger.With().Str("component", "jobs").Logger(),
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Register adds a named sweep to the schedule. Call before Start.
func (w *Worker) Register(name string, every time.Duration, fn SweepFunc) {
	w.sweeps = append(w.sweeps, sweep{name: name, every: every, run: fn})
}

// Start runs every registered sweep once immediately and then on its
// interval, asynchronously. Stop shuts the schedule down.
func (w *Worker) Start() error {
	for _, s := range w.sweeps {
		s := s
		if _, err := w.scheduler.Every(s.every).Do(func() {
			w.runSweep(s)
		}); err != nil {
			return err
		}
	}
	w.scheduler.StartAsync()
	w.logger.Info().Int("sweeps", len(w.sweeps)).Msg("background worker started")
	return nil
}

func (w *Worker) Stop() {
	w.scheduler.Stop()
	w.logger.Info().Msg("background worker stopped")
}

func (w *Worker) runSweep(s sweep) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.run(ctx)
	if err != nil {
		w.logger.Error().Err(err).Str("sweep", s.name).Msg("sweep failed")
		return
	}
	if n > 0 {
		w.logger.Info().Str("sweep", s.name).Int64("rows", n).Msg("sweep completed")
	}
}
