// Package scheduler runs the engine's periodic maintenance jobs on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/logging"
)

// jobTimeout bounds a single snapshot run.
const jobTimeout = 30 * time.Second

// Maintainer is the part of the engine the jobs drive.
type Maintainer interface {
	Snapshot(ctx context.Context) (int, error)
	PruneIdle() []string
}

// Scheduler manages the snapshot and idle-prune cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	target Maintainer
	log    zerolog.Logger
}

// New registers the jobs. An empty expression disables that job.
func New(target Maintainer, snapshotExpr, pruneExpr string) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		target: target,
		log:    logging.Component("scheduler"),
	}
	if snapshotExpr != "" {
		if _, err := s.cron.AddFunc(snapshotExpr, s.snapshot); err != nil {
			return nil, fmt.Errorf("schedule snapshot %q: %w", snapshotExpr, err)
		}
	}
	if pruneExpr != "" {
		if _, err := s.cron.AddFunc(pruneExpr, s.prune); err != nil {
			return nil, fmt.Errorf("schedule prune %q: %w", pruneExpr, err)
		}
	}
	return s, nil
}

// WithLogger replaces the scheduler logger. Call before Start.
func (s *Scheduler) WithLogger(l zerolog.Logger) *Scheduler {
	s.log = l
	return s
}

// Jobs reports the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.target.Snapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled snapshot failed")
		return
	}
	s.log.Debug().Int("sessions", n).Msg("scheduled snapshot done")
}

func (s *Scheduler) prune() {
	if ids := s.target.PruneIdle(); len(ids) > 0 {
		s.log.Info().Int("sessions", len(ids)).Msg("pruned idle conversations")
	}
}
