package client

import (
	"sync"
	"time"
)

// debouncedFlag collapses repeated "still true" signals into one rising
// edge, then one falling edge after quiet time. Setting it again before
// the window elapses only resets the timer.
type debouncedFlag struct {
	window time.Duration
	emit   func(active bool)

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func newDebouncedFlag(window time.Duration, emit func(active bool)) *debouncedFlag {
	return &debouncedFlag{window: window, emit: emit}
}

func (f *debouncedFlag) Set() {
	f.mu.Lock()
	rising := !f.active
	f.active = true
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.window, f.expire)
	f.mu.Unlock()

	if rising {
		f.emit(true)
	}
}

// Clear emits the falling edge immediately if the flag is up.
func (f *debouncedFlag) Clear() {
	f.mu.Lock()
	falling := f.active
	f.active = false
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	if falling {
		f.emit(false)
	}
}

func (f *debouncedFlag) expire() {
	f.mu.Lock()
	falling := f.active
	f.active = false
	f.timer = nil
	f.mu.Unlock()

	if falling {
		f.emit(false)
	}
}
