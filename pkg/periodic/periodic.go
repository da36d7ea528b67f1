package periodic

import (
	"context"
	"sync"
	"time"
)

// Tick is passed to periodic task callbacks and carries the time of the
// current tick plus the time elapsed since the task was started.
type Tick struct {
	Elapsed time.Duration
	Time    time.Time
}

// Stopper stops a periodic task started with Start.
type Stopper interface {
	Stop()
}

// Option configures Start.
type Option interface {
	apply(*task)
}

// Immediate runs the callback right away instead of waiting for the first tick.
func Immediate() Option {
	return optionFunc(func(t *task) {
		t.immediate = true
	})
}

// OnStop configures a callback that runs once the task is stopped or its context canceled.
func OnStop(f func(Tick)) Option {
	return optionFunc(func(t *task) {
		t.onStop = f
	})
}

// Start runs callback at the given interval until the returned Stopper is
// stopped or ctx is canceled. Executions never overlap: if a callback takes
// longer than the interval, the next one starts as soon as it returns.
// The interval must be greater than zero.
func Start(ctx context.Context, interval time.Duration, callback func(Tick), options ...Option) Stopper {
	t := &task{
		interval: interval,
		callback: callback,
	}

	for _, option := range options {
		option.apply(t)
	}

	ctx, cancel := context.WithCancel(ctx)
	go t.run(ctx)

	return stopperFunc(func() {
		t.stopOnce.Do(cancel)
	})
}

type task struct {
	interval  time.Duration
	callback  func(Tick)
	immediate bool
	onStop    func(Tick)
	stopOnce  sync.Once
}

func (t *task) run(ctx context.Context) {
	start := time.Now()

	defer func() {
		if t.onStop != nil {
			now := time.Now()
			t.onStop(Tick{Elapsed: now.Sub(start), Time: now})
		}
	}()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	if t.immediate {
		t.callback(Tick{Time: start})
	}

	for {
		select {
		case tickTime := <-ticker.C:
			t.callback(Tick{Elapsed: tickTime.Sub(start), Time: tickTime})
		case <-ctx.Done():
			return
		}
	}
}

type optionFunc func(*task)

func (f optionFunc) apply(t *task) {
	f(t)
}

type stopperFunc func()

func (f stopperFunc) Stop() {
	f()
}
