// Package scheduler periodically computes and delivers every user's
// notifications.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/deliver"
	"github.com/AlisiaBaielli/TirAImisu/notify"
)

// DefaultSpec polls every five minutes
const DefaultSpec = "@every 5m"

// Users lists everyone to notify
type Users interface {
	ListUsers() ([]*db.User, error)
}

// Engine computes a user's notifications
type Engine interface {
	Compute(ctx context.Context, user *db.User, now time.Time) (*notify.Payload, error)
}

// Dispatcher delivers notifications not yet sent
type Dispatcher interface {
	Dispatch(ctx context.Context, user *db.User, notifications []notify.Notification, now time.Time) deliver.Report
}

// Scheduler runs the notification job on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	timeout    time.Duration
	users      Users
	engine     Engine
	dispatcher Dispatcher
	now        func() time.Time
	log        *zap.SugaredLogger
}

// New creates a scheduler firing on spec in loc. Each run is bounded by
// timeout when it is positive.
func New(users Users, engine Engine, dispatcher Dispatcher, spec string, loc *time.Location, timeout time.Duration, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if loc == nil {
		loc = time.Local
	}

	if spec == "" {
		spec = DefaultSpec
	}

	logger := cronLogger{log: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		spec:       spec,
		timeout:    timeout,
		users:      users,
		engine:     engine,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log,
	}
}

// Start registers the job and begins firing it
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.job); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Infow("scheduler started", "schedule", s.spec)

	return nil
}

// Stop waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) job() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Errorw("notification run failed", "error", err)
		return
	}

	s.log.Infow("notification run finished", "sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed)
}

// RunOnce computes and dispatches notifications for every user. A user whose
// notifications cannot be computed is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (deliver.Report, error) {
	var total deliver.Report

	users, err := s.users.ListUsers()
	if err != nil {
		return total, fmt.Errorf("failed to list users: %w", err)
	}

	now := s.now()
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		payload, err := s.engine.Compute(ctx, user, now)
		if err != nil {
			s.log.Errorw("failed to compute notifications", "user", user.Name, "error", err)
			continue
		}

		report := s.dispatcher.Dispatch(ctx, user, payload.Notifications, now)
		total.Sent += report.Sent
		total.Skipped += report.Skipped
		total.Failed += report.Failed
	}

	return total, nil
}

// cronLogger routes cron's internal logging through zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
