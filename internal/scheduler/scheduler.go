package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reloader refreshes a cached value from its store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Scheduler runs the periodic credential refresh so every instance picks up
// credentials saved through another one.
type Scheduler struct {
	cron *cron.Cron
	log  logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:  log.WithField("component", "scheduler"),
	}
}

// AddReload registers r on schedule. An empty schedule disables the job.
func (s *Scheduler) AddReload(schedule, name string, r Reloader) error {
	if schedule == "" {
		s.log.WithField("job", name).Info("job disabled")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		if err := r.Reload(context.Background()); err != nil {
			s.log.WithError(err).WithField("job", name).Warn("scheduled reload failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs or ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
