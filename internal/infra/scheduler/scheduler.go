package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ramadan_companion_bot/internal/app"
)

// Specs holds the cron expressions of the scheduled jobs. All of them use
// the six-field format with a leading seconds field.
type Specs struct {
	Tick        string
	Refresh     string
	Rollover    string
	DailyDigest string
}

// CachePruner drops cached entries that belong to days before today.
type CachePruner interface {
	Prune(today time.Time) int
}

// Digest sends the morning message to every subscriber.
type Digest interface {
	SendDailyDigest(ctx context.Context, now time.Time) (int, error)
}

type NotificationScheduler struct {
	cronEngine    *cron.Cron
	notifications app.NotificationService
	pruners       []CachePruner
	digest        Digest
	specs         Specs
	zone          *time.Location
	logger        *logrus.Entry
	now           func() time.Time
}

func NewNotificationScheduler(
	notifications app.NotificationService,
	digest Digest,
	specs Specs,
	zone *time.Location,
	logger *logrus.Entry,
	pruners ...CachePruner,
) *NotificationScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(zone),
			cron.WithLogger(cronLogger),
			// a slow job is skipped rather than run twice in parallel
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		notifications: notifications,
		pruners:       pruners,
		digest:        digest,
		specs:         specs,
		zone:          zone,
		logger:        logger,
		now:           time.Now,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *NotificationScheduler) Start() error {
	s.logger.Info("Starting notification scheduler...")

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"tick", s.specs.Tick, s.runTick},
		{"refresh", s.specs.Refresh, s.runRefresh},
		{"rollover", s.specs.Rollover, s.runRollover},
		{"daily digest", s.specs.DailyDigest, s.runDigest},
	}
	for _, job := range jobs {
		if _, err := s.cronEngine.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("could not add %s cron job %q: %w", job.name, job.spec, err)
		}
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(jobs)).Info("Notification scheduler started")
	return nil
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped")
}

func (s *NotificationScheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.notifications.Tick(ctx, s.now().In(s.zone))
}

// runRefresh is the hourly safety re-check of every boundary.
func (s *NotificationScheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.notifications.Refresh(ctx, s.now().In(s.zone), true); err != nil {
		s.logger.WithError(err).Error("Hourly boundary refresh failed")
	}
}

// runRollover moves trackers whose location has reached a new calendar day.
// It runs hourly since every location has its own midnight; trackers still
// on their current day are left alone.
func (s *NotificationScheduler) runRollover() {
	now := s.now().In(s.zone)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.notifications.Refresh(ctx, now, false); err != nil {
		s.logger.WithError(err).Error("Day rollover refresh failed")
	}

	// locations west of the server may still be on yesterday
	cutoff := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, s.zone)
	removed := 0
	for _, p := range s.pruners {
		removed += p.Prune(cutoff)
	}
	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff.Format("2006-01-02"),
		"removed": removed,
	}).Info("Day rollover done")
}

func (s *NotificationScheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute) // Longer timeout for potentially more items
	defer cancel()
	if _, err := s.digest.SendDailyDigest(ctx, s.now().In(s.zone)); err != nil {
		s.logger.WithError(err).Error("Daily digest failed")
	}
}
