// Package scheduling runs validations periodically on a crontab.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// JobName represents the name of a periodic job.
type JobName string

// ValidationJob is the periodic device validation.
const ValidationJob JobName = "validation"

// Scheduler represents a background job scheduler.
type Scheduler struct {
	jobs      map[JobName]uuid.UUID
	scheduler gocron.Scheduler
}

// JobFunc represents the type of function that executes a scheduled job.
type JobFunc func(context.Context) error

// ErrInvalidCronTab is returned when an invalid crontab expression is provided.
var ErrInvalidCronTab = errors.New("invalid crontab expression")

// ErrUnknownJob is returned when referring to a job that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// NewScheduler creates a new Scheduler.
func NewScheduler(options ...gocron.SchedulerOption) (Scheduler, error) {
	scheduler, err := gocron.NewScheduler(options...)
	if err != nil {
		return Scheduler{}, err
	}

	return Scheduler{
		jobs:      map[JobName]uuid.UUID{},
		scheduler: scheduler,
	}, nil
}

// ValidateCronTab checks a standard five field crontab expression.
func ValidateCronTab(crontab string) error {
	cron := gocron.NewDefaultCron(false)

	err := cron.IsValid(crontab, time.UTC, time.Now())
	if err != nil {
		return fmt.Errorf("%w %q", ErrInvalidCronTab, crontab)
	}

	return nil
}

// RegisterJob registers a job in the Scheduler.
//
// If the job does not exist, it is created. If it already exists, it is updated. A run that is
// still going when the next one is due causes that next one to be skipped.
func (s *Scheduler) RegisterJob(name JobName, crontab string, jobFunc JobFunc) error {
	err := ValidateCronTab(crontab)
	if err != nil {
		return err
	}

	id, ok := s.jobs[name]
	if ok {
		_, err := s.scheduler.Update(id,
			gocron.CronJob(crontab, false),
			gocron.NewTask(wrapJob(name, jobFunc)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
	} else {
		job, err := s.scheduler.NewJob(
			gocron.CronJob(crontab, false),
			gocron.NewTask(wrapJob(name, jobFunc)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName(string(name)),
		)
		if err != nil {
			return err
		}

		s.jobs[name] = job.ID()
	}

	return nil
}

// RunNow triggers a registered job immediately, outside of its schedule.
func (s *Scheduler) RunNow(name JobName) error {
	job, err := s.job(name)
	if err != nil {
		return err
	}

	return job.RunNow()
}

// NextRun returns when a registered job is due next.
func (s *Scheduler) NextRun(name JobName) (time.Time, error) {
	job, err := s.job(name)
	if err != nil {
		return time.Time{}, err
	}

	return job.NextRun()
}

func (s *Scheduler) job(name JobName) (gocron.Job, error) {
	id, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownJob, name)
	}

	for _, job := range s.scheduler.Jobs() {
		if job.ID() == id {
			return job, nil
		}
	}

	return nil, fmt.Errorf("%w %q", ErrUnknownJob, name)
}

// Start starts the scheduler and its registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown shuts down the scheduler and its registered jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func wrapJob(name JobName, jobFunc JobFunc) func(context.Context) {
	return func(ctx context.Context) {
		select {
		// If the context is already cancelled, don't start the job.
		case <-ctx.Done():
			return

		default:
			slog.InfoContext(ctx, "Executing periodic job", slog.String("job", string(name)))

			err := jobFunc(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Error running periodic job", slog.String("job", string(name)), slog.Any("error", err))
			}
		}
	}
}
