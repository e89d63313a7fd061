// Package debounce provides a trailing-edge debouncer for coalescing bursts
// of calls (e.g. search keystrokes) into a single callback invocation.
package debounce

import (
	"sync"
	"time"
)

// Debouncer invokes its callback once per burst of Call invocations: each
// Call resets the timer, and the callback fires with the most recent argument
// after the configured delay of inactivity. The callback runs on a timer
// goroutine; it must be safe to invoke from there.
type Debouncer struct {
	delay time.Duration
	fn    func(string)

	mu    sync.Mutex
	timer *time.Timer
}

// New returns a Debouncer that calls fn with the latest argument after delay
// of inactivity. A delay <= 0 makes Call invoke fn synchronously, which keeps
// tests and non-interactive callers deterministic.
func New(delay time.Duration, fn func(string)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Call schedules fn(arg), cancelling any previously scheduled invocation.
func (d *Debouncer) Call(arg string) {
	if d.delay <= 0 {
		d.fn(arg)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fn(arg) })
}

// Stop cancels any pending invocation. It does not wait for a callback that
// has already started.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
