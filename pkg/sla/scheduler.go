package sla

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/periodic"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// SchedulerOptions define the sweep intervals and reporting times.
type SchedulerOptions struct {
	// CheckInterval is the full violation sweep interval.
	CheckInterval time.Duration
	// WarningInterval is the early-warning sweep interval.
	WarningInterval time.Duration
	// WarningHorizon is how far ahead of a deadline the early-warning sweep looks.
	WarningHorizon time.Duration
	// DailySummaryAt is the time of day, in Location, the daily summary runs.
	DailySummaryAt DayTime
	// Location is the engine's configured timezone.
	Location *time.Location
	// SweepConcurrency bounds how many orders a sweep checks in parallel.
	SweepConcurrency int
}

// withDefaults fills unset options with the engine defaults.
func (o SchedulerOptions) withDefaults() SchedulerOptions {
	if o.CheckInterval <= 0 {
		o.CheckInterval = 15 * time.Minute
	}
	if o.WarningInterval <= 0 {
		o.WarningInterval = 5 * time.Minute
	}
	if o.WarningHorizon <= 0 {
		o.WarningHorizon = 30 * time.Minute
	}
	if o.DailySummaryAt == (DayTime{}) {
		o.DailySummaryAt = DayTime{Hour: 8}
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.SweepConcurrency < 1 {
		o.SweepConcurrency = 1
	}

	return o
}

// SchedulerOption configures NewScheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerNotifier installs the outbound notifier for early warnings and
// daily summaries.
func WithSchedulerNotifier(n Notifier) SchedulerOption {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithDealerDirectory installs the dealer-directory lookup used to decorate
// daily summaries with dealer names.
func WithDealerDirectory(d DealerDirectory) SchedulerOption {
	return func(s *Scheduler) {
		s.dealers = d
	}
}

// WithSchedulerClock overrides the time source, for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// Scheduler owns the periodic SLA jobs: the full violation sweep, the
// early-warning sweep and the daily summary. It is explicitly constructed and
// injectable, there is no process-global instance.
type Scheduler struct {
	detector   *Detector
	orders     OrderStore
	configs    ConfigStore
	violations ViolationStore
	notifier   Notifier
	dealers    DealerDirectory
	logger     *logging.Logger
	options    SchedulerOptions
	now        func() time.Time

	mu      sync.Mutex
	running bool
	jobs    []job
}

type job struct {
	name    string
	stopper periodic.Stopper
}

// NewScheduler returns a new, stopped Scheduler.
func NewScheduler(
	detector *Detector, orders OrderStore, configs ConfigStore, violations ViolationStore,
	options SchedulerOptions, logger *logging.Logger, extra ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		detector:   detector,
		orders:     orders,
		configs:    configs,
		violations: violations,
		logger:     logger,
		options:    options.withDefaults(),
		now:        time.Now,
	}

	for _, option := range extra {
		option(s)
	}

	return s
}

// Start registers and starts all periodic jobs.
// Starting a running scheduler is a no-op with a warning.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("SLA scheduler already running")
		return
	}

	s.jobs = []job{
		{"violation-sweep", periodic.Start(ctx, s.options.CheckInterval, func(periodic.Tick) {
			s.guard("violation-sweep", func() { s.runSweep(ctx) })
		})},
		{"early-warning-sweep", periodic.Start(ctx, s.options.WarningInterval, func(periodic.Tick) {
			s.guard("early-warning-sweep", func() { s.runWarnings(ctx) })
		})},
		{"daily-summary", s.startDaily(ctx, func() {
			s.guard("daily-summary", func() { s.runDailySummary(ctx) })
		})},
	}
	s.running = true

	s.logger.Infow("Started SLA monitoring",
		"check_interval", s.options.CheckInterval,
		"warning_interval", s.options.WarningInterval,
		"daily_summary_at", s.options.DailySummaryAt)
}

// Stop cancels all periodic jobs. An in-flight sweep is allowed to finish,
// but no further runs are scheduled until Start is called again.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	for _, j := range s.jobs {
		j.stopper.Stop()
	}
	s.jobs = nil
	s.running = false

	s.logger.Info("Stopped SLA monitoring")
}

// Status describes the scheduler state without side effects.
type Status struct {
	IsRunning     bool     `json:"isRunning"`
	ScheduledJobs []string `json:"scheduledJobs"`
	JobCount      int      `json:"jobCount"`
}

// GetStatus returns the scheduler state and the registered job names.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}

	return Status{
		IsRunning:     s.running,
		ScheduledJobs: names,
		JobCount:      len(names),
	}
}

// CheckAllActiveOrders runs one full violation sweep synchronously: every
// active order with a dealer mapping is checked by the detector. Failures of
// a single order are logged, counted as not processed and never abort the
// sweep.
func (s *Scheduler) CheckAllActiveOrders(ctx context.Context) (SweepStats, error) {
	orders, err := s.orders.ActiveWithDealers(ctx)
	if err != nil {
		return SweepStats{}, errors.Wrap(err, "can't load active orders")
	}

	var processed, created atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.SweepConcurrency)

	for _, o := range orders {
		o := o

		g.Go(func() error {
			ok, err := s.detector.CheckOrder(gctx, o)
			if err != nil {
				s.logger.Warnw("Can't check order for SLA violation", "order", o.Id, "error", err)
				return nil
			}

			processed.Add(1)
			if ok {
				created.Add(1)
			}

			return nil
		})
	}

	_ = g.Wait()

	return SweepStats{
		Processed:  int(processed.Load()),
		Violations: int(created.Load()),
	}, nil
}

// OrdersApproachingViolation returns the active orders whose fulfillment
// deadline lies within the given horizon and has not passed yet. Read-only,
// it records nothing.
func (s *Scheduler) OrdersApproachingViolation(ctx context.Context, horizon time.Duration) ([]Warning, error) {
	if horizon <= 0 {
		horizon = s.options.WarningHorizon
	}

	orders, err := s.orders.ActiveWithDealers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't load active orders")
	}

	now := s.now()
	warnings := []Warning{}

	for _, o := range orders {
		placedAt, ok := o.PlacedAt()
		if !ok {
			continue
		}

		for _, mapping := range o.DealerMapping {
			cfg, err := s.configs.ActiveByDealer(ctx, mapping.DealerId)
			if errors.Is(err, database.ErrNotFound) {
				continue
			} else if err != nil {
				s.logger.Warnw("Can't load dealer SLA",
					"order", o.Id, "dealer", mapping.DealerId, "error", err)
				continue
			}

			expected := ExpectedFulfillmentTime(placedAt, cfg, s.options.Location)
			if !expected.After(now) || expected.Sub(now) > horizon {
				continue
			}

			warnings = append(warnings, Warning{
				OrderId:                 o.Id,
				DealerId:                mapping.DealerId,
				ExpectedFulfillmentTime: expected,
				MinutesUntilViolation:   int64(math.Round(expected.Sub(now).Minutes())),
				OrderStatus:             o.Status,
			})
		}
	}

	return warnings, nil
}

// runSweep is the periodic full violation sweep.
func (s *Scheduler) runSweep(ctx context.Context) {
	start := s.now()

	stats, err := s.CheckAllActiveOrders(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Errorw("Violation sweep failed", "error", err)
		}
		return
	}

	s.logger.Infow("Violation sweep finished",
		"processed", stats.Processed,
		"violations", stats.Violations,
		"took", time.Since(start))
}

// runWarnings is the periodic early-warning sweep.
func (s *Scheduler) runWarnings(ctx context.Context) {
	warnings, err := s.OrdersApproachingViolation(ctx, s.options.WarningHorizon)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Errorw("Early-warning sweep failed", "error", err)
		}
		return
	}

	if len(warnings) == 0 {
		return
	}

	s.logger.Infow("Orders approaching SLA violation", "count", len(warnings))

	if s.notifier != nil {
		s.notifier.EarlyWarning(ctx, warnings)
	}
}

// runDailySummary aggregates the previous calendar day's violations per dealer.
func (s *Scheduler) runDailySummary(ctx context.Context) {
	now := s.now().In(s.options.Location)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.options.Location)
	from := to.AddDate(0, 0, -1)

	dealers, err := s.violations.SummarizeByDealer(ctx, from, to)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Errorw("Daily summary failed", "error", err)
		}
		return
	}

	if s.dealers != nil {
		for i := range dealers {
			name, err := s.dealers.DealerName(ctx, dealers[i].DealerId)
			if err != nil {
				continue
			}
			dealers[i].DealerName = name
		}
	}

	report := &DailyReport{Date: from, Dealers: dealers}

	s.logger.Infow("Daily SLA summary", "date", from.Format(time.DateOnly), "dealers", len(dealers))

	if s.notifier != nil {
		s.notifier.DailySummary(ctx, report)
	}
}

// startDaily runs fn once per day at the configured time of day.
func (s *Scheduler) startDaily(ctx context.Context, fn func()) periodic.Stopper {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			timer := time.NewTimer(time.Until(s.nextDailyRun()))

			select {
			case <-timer.C:
				fn()
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()

	return stopFunc(cancel)
}

// nextDailyRun returns the next occurrence of the daily summary time.
func (s *Scheduler) nextDailyRun() time.Time {
	now := s.now().In(s.options.Location)
	at := s.options.DailySummaryAt

	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, s.options.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// guard runs fn and turns a panic into a logged error,
// so that one failing job execution never takes down the scheduler.
func (s *Scheduler) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Scheduled job panicked", "job", name, "panic", r)
		}
	}()

	fn()
}

type stopFunc func()

func (f stopFunc) Stop() {
	f()
}
