package feed

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period before a filter change reloads the feed.
const DefaultDebounceWindow = 300 * time.Millisecond

// Debouncer coalesces bursts of Schedule calls into one trailing call.
// It owns a single timer; a new Schedule replaces the pending function.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window}
}

// Schedule cancels any pending call and arms fn to run once the window
// elapses without another Schedule. It reports whether a pending call was
// replaced.
func (d *Debouncer) Schedule(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	replaced := d.pending != nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = fn
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
	return replaced
}

// fire runs the pending function if it is still the one armed under seq.
// A timer that lost the race with Schedule or Cancel sees a newer seq and
// does nothing.
func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || d.seq != seq || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

// Flush runs the pending call now, on the caller's goroutine.
// It reports whether there was anything to run.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.stopped || d.pending == nil {
		d.mu.Unlock()
		return false
	}
	fn := d.pending
	d.clearLocked()
	d.mu.Unlock()

	fn()
	return true
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

// Stop cancels the pending call and rejects further Schedule calls.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
	d.stopped = true
}

// Pending reports whether a call is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) clearLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.seq++
}
