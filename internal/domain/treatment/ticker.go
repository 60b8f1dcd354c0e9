package treatment

import (
	"context"
	"sync/atomic"
	"time"
)

// displayTicker republishes the board view while any item is running. It
// only reads state; stored timer fields are never written by a tick.
type displayTicker struct {
	interval time.Duration
	running  func() int
	publish  func()
	wakeCh   chan struct{}
	active   atomic.Bool
	ticks    atomic.Int64
}

func newDisplayTicker(interval time.Duration, running func() int, publish func()) *displayTicker {
	return &displayTicker{
		interval: interval,
		running:  running,
		publish:  publish,
		wakeCh:   make(chan struct{}, 1),
	}
}

func (t *displayTicker) wake() {
	select {
	case t.wakeCh <- struct{}{}:
	default:
	}
}

// run sleeps until woken, then ticks until nothing is running.
func (t *displayTicker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.wakeCh:
		}
		if t.running() == 0 {
			continue
		}
		t.tickWhileRunning(ctx)
	}
}

func (t *displayTicker) tickWhileRunning(ctx context.Context) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	t.active.Store(true)
	defer t.active.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if t.running() == 0 {
				return
			}
			t.ticks.Add(1)
			t.publish()
		}
	}
}
