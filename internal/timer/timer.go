// Package timer pools the timers used to bound per-call waits.
package timer

import (
	"sync"
	"time"
)

var pool sync.Pool

// Get returns a timer that fires after d, reusing a pooled timer when one is available.
//
// Hand the timer back with Put once the wait is over.
func Get(d time.Duration) *time.Timer {
	if v := pool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		t.Reset(d)
		return t
	}
	return time.NewTimer(d)
}

// Put stops t and returns it to the pool. t must not be used afterwards.
func Put(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	pool.Put(t)
}
