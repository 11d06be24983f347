package orch

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of file events into one firing. The
// external job (or a manual download) replaces the artifact with a
// temp-file rename, which shows up as several events in quick
// succession.
type debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	count  int
	onFire func()
}

func newDebouncer(delay time.Duration, onFire func()) *debouncer {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &debouncer{delay: delay, onFire: onFire}
}

func (d *debouncer) Push() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.count++
	if d.timer != nil {
		_ = d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
	d.mu.Unlock()
}

func (d *debouncer) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.timer != nil {
		_ = d.timer.Stop()
		d.timer = nil
	}
	d.count = 0
	d.mu.Unlock()
}

func (d *debouncer) fire() {
	d.mu.Lock()
	count := d.count
	d.count = 0
	fn := d.onFire
	d.mu.Unlock()

	if fn == nil || count == 0 {
		return
	}
	fn()
}
