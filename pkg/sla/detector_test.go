package sla

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fulfillhq/slaengine/pkg/database"
	"github.com/fulfillhq/slaengine/pkg/logging"
	"github.com/fulfillhq/slaengine/pkg/order"
	"github.com/fulfillhq/slaengine/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func testLogger(t *testing.T) *logging.Logger {
	logs, err := logging.NewLogging("test", zapcore.DebugLevel, logging.CONSOLE, nil, time.Second)
	require.NoError(t, err)

	return logs.GetLogger()
}

type fakeConfigs struct {
	byDealer map[string]*DealerSLAView
	err      error
}

func (f *fakeConfigs) ActiveByDealer(_ context.Context, dealerID string) (*DealerSLAView, error) {
	if f.err != nil {
		return nil, f.err
	}

	cfg, ok := f.byDealer[dealerID]
	if !ok {
		return nil, errors.Wrapf(database.ErrNotFound, "no active SLA for dealer %q", dealerID)
	}

	return cfg, nil
}

type fakeOrders struct {
	mu      sync.Mutex
	active  []*order.Order
	slaInfo map[string]order.SLAInfo
	err     error
}

func (f *fakeOrders) ActiveWithDealers(context.Context) ([]*order.Order, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.active, nil
}

func (f *fakeOrders) UpdateSLAInfo(_ context.Context, orderID string, info order.SLAInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.slaInfo == nil {
		f.slaInfo = map[string]order.SLAInfo{}
	}
	f.slaInfo[orderID] = info

	return nil
}

func (f *fakeOrders) info(orderID string) (order.SLAInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.slaInfo[orderID]

	return info, ok
}

type fakeViolations struct {
	mu        sync.Mutex
	rows      []SLAViolation
	summaries []DealerSummary
	err       error
}

func (f *fakeViolations) InsertIfAbsent(_ context.Context, v *SLAViolation) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, row := range f.rows {
		if row.OrderId == v.OrderId && row.DealerId == v.DealerId && row.Resolved != types.Yes {
			return false, nil
		}
	}

	f.rows = append(f.rows, *v)

	return true, nil
}

func (f *fakeViolations) SummarizeByDealer(context.Context, time.Time, time.Time) ([]DealerSummary, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.summaries, nil
}

func (f *fakeViolations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.rows)
}

type fakeNotifier struct {
	mu         sync.Mutex
	violations []*SLAViolation
	warnings   [][]Warning
	reports    []*DailyReport
}

func (f *fakeNotifier) ViolationDetected(_ context.Context, v *SLAViolation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.violations = append(f.violations, v)
}

func (f *fakeNotifier) EarlyWarning(_ context.Context, warnings []Warning) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, warnings)
}

func (f *fakeNotifier) DailySummary(_ context.Context, report *DailyReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
}

type fakeDealers struct {
	names map[string]string
}

func (f *fakeDealers) DealerName(_ context.Context, dealerID string) (string, error) {
	name, ok := f.names[dealerID]
	if !ok {
		return "", errors.Wrapf(database.ErrNotFound, "dealer %q", dealerID)
	}

	return name, nil
}

// fourHourConfig is a 4h SLA inside a 9-18 dispatch window.
func fourHourConfig(dealerID string) *DealerSLAView {
	return &DealerSLAView{
		DealerId:       dealerID,
		SLAName:        "standard",
		ExpectedHours:  4,
		DispatchWindow: DispatchWindow{Start: 9, End: 18},
	}
}

func placedOrder(id, dealerID string, placedAt time.Time) *order.Order {
	return &order.Order{
		Id:        id,
		OrderDate: types.UnixMilli(placedAt),
		Status:    order.StatusConfirmed,
		DealerMapping: order.DealerMappings{
			{SKU: "SKU-1", DealerId: dealerID},
		},
	}
}

func TestDetectorCheckOrder(t *testing.T) {
	// Monday noon. The order was placed five hours ago with a 4h SLA, so the
	// deadline passed one hour ago.
	now := time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)
	placedAt := now.Add(-5 * time.Hour)

	orders := &fakeOrders{}
	configs := &fakeConfigs{byDealer: map[string]*DealerSLAView{"dealer-1": fourHourConfig("dealer-1")}}
	violations := &fakeViolations{}
	notifier := &fakeNotifier{}

	d := NewDetector(orders, configs, violations, time.UTC, testLogger(t),
		WithNotifier(notifier), WithDetectorClock(func() time.Time { return now }))

	o := placedOrder("order-1", "dealer-1", placedAt)

	created, err := d.CheckOrder(context.Background(), o)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, violations.count())

	v := violations.rows[0]
	require.Equal(t, "order-1", v.OrderId)
	require.Equal(t, "dealer-1", v.DealerId)
	require.Equal(t, int64(60), v.ViolationMinutes)
	require.Equal(t, types.No, v.Resolved)
	require.Equal(t, placedAt.Add(4*time.Hour), v.ExpectedFulfillmentTime.Time())

	info, ok := orders.info("order-1")
	require.True(t, ok)
	require.Equal(t, types.No, info.IsSLAMet)
	require.Equal(t, int64(60), info.ViolationMinutes)

	require.Len(t, notifier.violations, 1)
}

func TestDetectorCheckOrderIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)

	orders := &fakeOrders{}
	configs := &fakeConfigs{byDealer: map[string]*DealerSLAView{"dealer-1": fourHourConfig("dealer-1")}}
	violations := &fakeViolations{}

	d := NewDetector(orders, configs, violations, time.UTC, testLogger(t),
		WithDetectorClock(func() time.Time { return now }))

	o := placedOrder("order-1", "dealer-1", now.Add(-5*time.Hour))

	created, err := d.CheckOrder(context.Background(), o)
	require.NoError(t, err)
	require.True(t, created)

	// The deadline is still breached, but a second check must not produce a
	// second violation while the first is unresolved.
	created, err = d.CheckOrder(context.Background(), o)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, violations.count())
}

func TestDetectorCheckOrderNoConfig(t *testing.T) {
	now := time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)

	orders := &fakeOrders{}
	violations := &fakeViolations{}

	d := NewDetector(orders, &fakeConfigs{}, violations, time.UTC, testLogger(t),
		WithDetectorClock(func() time.Time { return now }))

	created, err := d.CheckOrder(context.Background(), placedOrder("order-1", "dealer-1", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	require.False(t, created)
	require.Zero(t, violations.count())
}

func TestDetectorCheckOrderWithinDeadline(t *testing.T) {
	now := time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)

	orders := &fakeOrders{}
	configs := &fakeConfigs{byDealer: map[string]*DealerSLAView{"dealer-1": fourHourConfig("dealer-1")}}
	violations := &fakeViolations{}

	d := NewDetector(orders, configs, violations, time.UTC, testLogger(t),
		WithDetectorClock(func() time.Time { return now }))

	created, err := d.CheckOrder(context.Background(), placedOrder("order-1", "dealer-1", now.Add(-time.Hour)))
	require.NoError(t, err)
	require.False(t, created)
	require.Zero(t, violations.count())
}

func TestDetectorCheckOrderNoMapping(t *testing.T) {
	d := NewDetector(&fakeOrders{}, &fakeConfigs{}, &fakeViolations{}, time.UTC, testLogger(t))

	created, err := d.CheckOrder(context.Background(), &order.Order{Id: "order-1"})
	require.NoError(t, err)
	require.False(t, created)
}

func TestDetectorCheckOnPacking(t *testing.T) {
	configs := &fakeConfigs{byDealer: map[string]*DealerSLAView{"dealer-1": fourHourConfig("dealer-1")}}
	d := NewDetector(&fakeOrders{}, configs, &fakeViolations{}, time.UTC, testLogger(t))

	placedAt := time.Date(2024, 3, 18, 7, 0, 0, 0, time.UTC)
	o := placedOrder("order-1", "dealer-1", placedAt)

	t.Run("late", func(t *testing.T) {
		check, err := d.CheckOnPacking(context.Background(), o, placedAt.Add(6*time.Hour))
		require.NoError(t, err)
		require.True(t, check.HasViolation)
		require.Equal(t, int64(120), check.Violation.ViolationMinutes)
	})

	t.Run("on-time", func(t *testing.T) {
		check, err := d.CheckOnPacking(context.Background(), o, placedAt.Add(2*time.Hour))
		require.NoError(t, err)
		require.False(t, check.HasViolation)
		require.Nil(t, check.Violation)
	})

	t.Run("no-config", func(t *testing.T) {
		other := placedOrder("order-2", "dealer-unknown", placedAt)
		check, err := d.CheckOnPacking(context.Background(), other, placedAt.Add(48*time.Hour))
		require.NoError(t, err)
		require.False(t, check.HasViolation)
	})
}

func TestDetectorHandleOrderPacked(t *testing.T) {
	orders := &fakeOrders{}
	configs := &fakeConfigs{byDealer: map[string]*DealerSLAView{"dealer-1": fourHourConfig("dealer-1")}}
	violations := &fakeViolations{}
	notifier := &fakeNotifier{}

	d := NewDetector(orders, configs, violations, time.UTC, testLogger(t), WithNotifier(notifier))

	placedAt := time.Date(2024, 3, 18, 7, 0, 0, 0, time.UTC)
	o := placedOrder("order-1", "dealer-1", placedAt)

	require.NoError(t, d.HandleOrderPacked(context.Background(), o, placedAt.Add(6*time.Hour)))
	require.Equal(t, 1, violations.count())
	require.Len(t, notifier.violations, 1)

	info, ok := orders.info("order-1")
	require.True(t, ok)
	require.Equal(t, types.No, info.IsSLAMet)
	require.Equal(t, int64(120), info.ViolationMinutes)

	// Packing again while the violation is unresolved must not duplicate it.
	require.NoError(t, d.HandleOrderPacked(context.Background(), o, placedAt.Add(7*time.Hour)))
	require.Equal(t, 1, violations.count())
	require.Len(t, notifier.violations, 1)
}

func TestDetectorMultipleDealers(t *testing.T) {
	now := time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)

	orders := &fakeOrders{}
	configs := &fakeConfigs{byDealer: map[string]*DealerSLAView{
		"dealer-1": fourHourConfig("dealer-1"),
		"dealer-2": {
			DealerId:       "dealer-2",
			SLAName:        "express",
			ExpectedHours:  1,
			DispatchWindow: DispatchWindow{Start: 9, End: 18},
		},
	}}
	violations := &fakeViolations{}

	d := NewDetector(orders, configs, violations, time.UTC, testLogger(t),
		WithDetectorClock(func() time.Time { return now }))

	o := &order.Order{
		Id:        "order-1",
		OrderDate: types.UnixMilli(now.Add(-5 * time.Hour)),
		Status:    order.StatusConfirmed,
		DealerMapping: order.DealerMappings{
			{SKU: "SKU-1", DealerId: "dealer-1"},
			{SKU: "SKU-2", DealerId: "dealer-2"},
			{SKU: "SKU-3", DealerId: "dealer-without-sla"},
		},
	}

	created, err := d.CheckOrder(context.Background(), o)
	require.NoError(t, err)
	require.True(t, created)

	// One violation per breached dealer, the unconfigured one is skipped.
	require.Equal(t, 2, violations.count())
}
