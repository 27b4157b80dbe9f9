/*
scheduler.go - Automated integrity scheduler

PURPOSE:
  Periodically audits every user's recent sessions and aggregates and
  keeps the latest report per user for the admin endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on Start, then on every tick
  - Only reads; findings are reported, never fixed
  - A failing user is logged and skipped, the others are still checked

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour, 0 disables)
  - WindowDays:    Days audited, ending today (default: 30)

USAGE:
  scheduler := NewIntegrityScheduler(store, rules, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ListIntegrityReports, TriggerIntegrityCheck
  - worktime/integrity.go: IntegrityValidator
*/
package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/worktime"
)

// IntegrityScheduler runs the integrity check for all users on a timer.
type IntegrityScheduler struct {
	Store         generic.Store
	Validator     *worktime.IntegrityValidator
	Legal         *legal.Config
	CheckInterval time.Duration
	WindowDays    int

	logger *zap.Logger
	now    func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	reportsMu sync.RWMutex
	latest    map[generic.UserID]worktime.Report
	lastRun   time.Time
}

// NewIntegrityScheduler creates a new scheduler.
func NewIntegrityScheduler(store generic.Store, rules *legal.Config, logger *zap.Logger) *IntegrityScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityScheduler{
		Store:         store,
		Validator:     worktime.NewIntegrityValidator(store, rules),
		Legal:         rules,
		CheckInterval: time.Hour,
		WindowDays:    30,
		logger:        logger.Named("integrity"),
		now:           time.Now,
		latest:        make(map[generic.UserID]worktime.Report),
	}
}

// Start begins the scheduler. It is a no-op when already running or when
// CheckInterval is not positive.
func (s *IntegrityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CheckInterval <= 0 {
		s.logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run(ctx, s.ticker, s.stop)

	s.logger.Info("scheduler started", zap.Duration("interval", s.CheckInterval), zap.Int("window_days", s.WindowDays))
}

// Stop stops the scheduler and waits for an in-flight check to return.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("scheduler stopped")
}

func (s *IntegrityScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAll(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkAll(ctx)
		case <-stop:
			return
		}
	}
}

func (s *IntegrityScheduler) checkAll(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("integrity check failed", zap.Error(err))
	}
}

// RunNow checks every known user over the last WindowDays and returns the
// reports ordered by user.
func (s *IntegrityScheduler) RunNow(ctx context.Context) ([]worktime.Report, error) {
	now := s.now()
	period := generic.LastDays(s.Legal.DayOf(now), s.WindowDays)

	users, err := s.Store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	reports := make([]worktime.Report, 0, len(users))
	withErrors := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.Validator.Check(ctx, u, period, now)
		if err != nil {
			s.logger.Warn("integrity check skipped user", zap.String("user_id", string(u)), zap.Error(err))
			continue
		}
		if report.Status == worktime.StatusWithErrors {
			withErrors++
			s.logger.Warn("integrity findings",
				zap.String("user_id", string(u)),
				zap.Int("errors", report.Errors),
				zap.Int("warnings", report.Warnings))
		}
		reports = append(reports, report)
	}

	s.reportsMu.Lock()
	for _, r := range reports {
		s.latest[r.UserID] = r
	}
	s.lastRun = now
	s.reportsMu.Unlock()

	s.logger.Info("integrity check completed",
		zap.Int("users", len(reports)),
		zap.Int("with_errors", withErrors),
		zap.String("period", period.String()))
	return reports, nil
}

// Latest returns the most recent report of every user, ordered by user.
func (s *IntegrityScheduler) Latest() []worktime.Report {
	s.reportsMu.RLock()
	defer s.reportsMu.RUnlock()

	out := make([]worktime.Report, 0, len(s.latest))
	for _, r := range s.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// LastRun returns when the last check finished, zero if none has.
func (s *IntegrityScheduler) LastRun() time.Time {
	s.reportsMu.RLock()
	defer s.reportsMu.RUnlock()
	return s.lastRun
}

// Forget drops every stored report, used when the database is reset.
func (s *IntegrityScheduler) Forget() {
	s.reportsMu.Lock()
	defer s.reportsMu.Unlock()
	s.latest = make(map[generic.UserID]worktime.Report)
}
