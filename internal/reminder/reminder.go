// Package reminder periodically tells learners how many vocabulary lists
// they have due for review.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultInterval is how often reminders run when no interval is configured.
const DefaultInterval = time.Hour

// Notifier delivers a reminder to one user.
type Notifier interface {
	SendReminder(ctx context.Context, userID int64, dueCount int) error
}

// DueCounter reports due record counts grouped by user.
// store.ReviewRecordStore satisfies it.
type DueCounter interface {
	CountDueByUser(ctx context.Context, asOf time.Time) (map[int64]int, error)
}

// DueGauge receives the total number of due records after each run.
// metrics.Recorder satisfies it.
type DueGauge interface {
	SetDueRecords(n int)
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Clock    func() time.Time
	Gauge    DueGauge
	// RunTimeout bounds a single run. Zero means no bound beyond the interval.
	RunTimeout time.Duration
}

// Scheduler runs the reminder check on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	counter   DueCounter
	notifier  Notifier
	gauge     DueGauge
	clock     func() time.Time
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a reminder scheduler. It does nothing until Start is called.
func New(counter DueCounter, notifier Notifier, logger *slog.Logger, opts Options) *Scheduler {
	if counter == nil {
		panic("counter cannot be nil")
	}
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = opts.Interval
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		counter:   counter,
		notifier:  notifier,
		gauge:     opts.Gauge,
		clock:     opts.Clock,
		interval:  opts.Interval,
		timeout:   opts.RunTimeout,
		logger:    logger.With(slog.String("component", "reminder_scheduler")),
	}
}

// Start schedules the reminder job and starts the scheduler without blocking.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("reminder run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("reminder scheduler started", slog.Duration("interval", s.interval))
	return nil
}

// Stop terminates the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("reminder scheduler stopped")
}

// RunOnce performs one reminder pass and returns the number of users notified.
// A failure to notify one user does not stop the others; the failures are
// joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	asOf := s.clock()
	counts, err := s.counter.CountDueByUser(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to count due records: %w", err)
	}

	userIDs := make([]int64, 0, len(counts))
	total := 0
	for userID, n := range counts {
		total += n
		if n > 0 {
			userIDs = append(userIDs, userID)
		}
	}
	slices.Sort(userIDs)

	if s.gauge != nil {
		s.gauge.SetDueRecords(total)
	}

	var errs []error
	notified := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.notifier.SendReminder(ctx, userID, counts[userID]); err != nil {
			s.logger.Warn("failed to send reminder",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			continue
		}
		notified++
	}

	s.logger.Debug("reminder run finished",
		slog.Time("as_of", asOf),
		slog.Int("users_due", len(userIDs)),
		slog.Int("users_notified", notified),
		slog.Int("records_due", total))

	return notified, errors.Join(errs...)
}

// LogNotifier writes reminders to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

// SendReminder implements Notifier.
func (n LogNotifier) SendReminder(_ context.Context, userID int64, dueCount int) error {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("vocabulary lists due for review",
		slog.Int64("user_id", userID),
		slog.Int("due_count", dueCount))
	return nil
}
