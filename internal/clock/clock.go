// Package clock provides a cancellable timer abstraction so timer-driven
// code (reconnect backoff, poll scheduling) can be tested by advancing a
// virtual clock instead of sleeping.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is an armed callback that can be cancelled before it fires.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// Clock abstracts time for components that arm timers.
type Clock interface {
	Now() time.Time
	// AfterFunc arms f to run once after d. The callback runs on its own
	// goroutine for the real clock and synchronously during Advance for
	// the fake clock.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall-clock implementation.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool { return rt.t.Stop() }

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	id    int
	when  time.Time
	fn    func()
}

func (ft *fakeTimer) Stop() bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	if _, ok := ft.clock.timers[ft.id]; !ok {
		return false
	}
	delete(ft.clock.timers, ft.id)
	return true
}

// NewFake returns a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[int]*fakeTimer)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ft := &fakeTimer{clock: f, id: f.nextID, when: f.now.Add(d), fn: fn}
	f.timers[ft.id] = ft
	return ft
}

// Advance moves the clock forward by d and fires every due timer in
// deadline order. Callbacks run synchronously and may arm new timers;
// a new timer due within the advanced window also fires.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		ft := f.nextDueLocked(target)
		if ft == nil {
			break
		}
		if ft.when.After(f.now) {
			f.now = ft.when
		}
		delete(f.timers, ft.id)
		f.mu.Unlock()
		ft.fn()
		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

// Pending reports how many timers are armed.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDueLocked(limit time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(f.timers))
	for _, ft := range f.timers {
		if !ft.when.After(limit) {
			due = append(due, ft)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].when.Equal(due[j].when) {
			return due[i].id < due[j].id
		}
		return due[i].when.Before(due[j].when)
	})
	return due[0]
}
