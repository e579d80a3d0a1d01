package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	var fired []string
	f.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	f.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	f.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	f.Advance(3 * time.Second)

	if len(fired) != 2 {
		t.Fatalf("fired %d timers, want 2", len(fired))
	}
	if fired[0] != "a" || fired[1] != "b" {
		t.Errorf("fired order = %v, want [a b]", fired)
	}
	if f.Pending() != 1 {
		t.Errorf("pending = %d, want 1", f.Pending())
	}
}

func TestFakeStopPreventsFire(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop returned false on armed timer")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}

	f.Advance(5 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeCallbackMayRearm(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			f.AfterFunc(time.Second, tick)
		}
	}
	f.AfterFunc(time.Second, tick)

	// One advance covers the whole chain of re-armed timers.
	f.Advance(10 * time.Second)

	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if f.Pending() != 0 {
		t.Errorf("pending = %d, want 0", f.Pending())
	}
}

func TestFakeNowTracksAdvance(t *testing.T) {
	start := time.Unix(100, 0)
	f := NewFake(start)
	f.Advance(42 * time.Second)
	if got := f.Now(); !got.Equal(start.Add(42 * time.Second)) {
		t.Errorf("Now = %v, want %v", got, start.Add(42*time.Second))
	}
}
