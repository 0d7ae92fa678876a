package ledger

import (
	"sync"
	"time"
)

// DefaultDebounceDelay bounds write volume while a user is actively editing:
// persistence fires only after the edits pause.
const DefaultDebounceDelay = 400 * time.Millisecond

// Debouncer defers a flush callback until a quiet period after the last
// Touch. Each Touch resets the timer; Stop cancels any pending flush so a
// torn-down view never writes.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	flush   func()
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer invoking flush after delay of
// inactivity. A non-positive delay uses DefaultDebounceDelay.
func NewDebouncer(delay time.Duration, flush func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{delay: delay, flush: flush}
}

// Touch schedules (or reschedules) the flush after the configured delay.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Flush cancels any pending timer and invokes the callback immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.flush()
}

// Stop cancels any pending flush permanently. Safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.flush()
}
