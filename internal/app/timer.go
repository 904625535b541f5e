package app

import (
	"sync"
	"time"
)

// Clock returns the current time; injected so tests control it.
type Clock func() time.Time

// Timer is a cancellable countdown against an absolute deadline. Remaining
// time is always derived from the deadline, never decremented in place, so
// missed or late ticks cannot drift it. Stop is idempotent and must be called
// on every exit path of the owning session.
type Timer struct {
	clock    Clock
	interval time.Duration

	lock     sync.Mutex
	deadline time.Time
	timed    bool
	stop     chan struct{}
	once     *sync.Once
}

// NewTimer builds a timer that fires onTick roughly every interval once
// started. The clock defaults to time.Now.
func NewTimer(clock Clock, interval time.Duration) *Timer {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{clock: clock, interval: interval}
}

// Start arms the countdown and begins ticking. Calling Start on an armed
// timer is a no-op; one session arms its timer at most once.
func (t *Timer) Start(deadline time.Time, onTick func()) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.timed {
		return
	}
	t.deadline = deadline
	t.timed = true
	t.stop = make(chan struct{})
	t.once = &sync.Once{}

	stop := t.stop
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onTick()
			}
		}
	}()
}

// Remaining returns the time left and whether a deadline is armed. Never
// negative: an overdue deadline reports zero.
func (t *Timer) Remaining() (time.Duration, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.timed {
		return 0, false
	}
	left := t.deadline.Sub(t.clock())
	if left < 0 {
		left = 0
	}
	return left, true
}

// Deadline returns the armed deadline, if any.
func (t *Timer) Deadline() (time.Time, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.deadline, t.timed
}

// Stop cancels ticking. Safe to call any number of times, from any exit path.
func (t *Timer) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.once == nil {
		return
	}
	stop := t.stop
	t.once.Do(func() { close(stop) })
}
