package syncer

import (
	"sync"
	"time"

	"github.com/stellar/go/support/log"
)

// DefaultSyncInterval is how often an idle account re-syncs.
const DefaultSyncInterval = 30 * time.Second

// TimerState tells the delegate whether periodic sync is running. Err is set
// only for the not-ready state.
type TimerState struct {
	Ready bool
	Err   error
}

// TimerDelegate receives timer state changes and the periodic sync ticks.
type TimerDelegate interface {
	TimerUpdated(state TimerState)
	SyncTick()
}

// Timer fires SyncTick on a fixed interval while the network is reachable.
// It fires immediately on Start and again immediately whenever reachability
// comes back, so a freshly woken wallet does not wait a full interval.
type Timer struct {
	interval     time.Duration
	reachability Reachability
	delegate     TimerDelegate
	log          *log.Entry

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewTimer(interval time.Duration, reachability Reachability, delegate TimerDelegate, logger *log.Entry) *Timer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Timer{
		interval:     interval,
		reachability: reachability,
		delegate:     delegate,
		log:          logger.WithField("subservice", "timer"),
	}
}

func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go t.loop(done)
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.done)
}

func (t *Timer) loop(done chan struct{}) {
	changes, cancel := t.reachability.Subscribe()
	defer cancel()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	ready := t.reachability.Reachable()
	t.publish(ready)
	if ready {
		t.delegate.SyncTick()
	}

	for {
		select {
		case <-done:
			return
		case reachable, ok := <-changes:
			if !ok {
				return
			}
			if reachable == ready {
				continue
			}
			ready = reachable
			t.publish(ready)
			if ready {
				ticker.Reset(t.interval)
				t.delegate.SyncTick()
			}
		case <-ticker.C:
			if ready {
				t.delegate.SyncTick()
			}
		}
	}
}

func (t *Timer) publish(ready bool) {
	if ready {
		t.delegate.TimerUpdated(TimerState{Ready: true})
	} else {
		t.delegate.TimerUpdated(TimerState{Err: ErrNoNetworkConnection})
	}
}
