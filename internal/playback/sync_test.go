package playback

import (
	"testing"

	"github.com/malu-zinha/compass-live/internal/transcript"
)

func msUtterances() []transcript.Utterance {
	return []transcript.Utterance{
		{ID: "u1", Speaker: "A", Text: "first", Start: 0, End: 1000},
		{ID: "u2", Speaker: "B", Text: "second", Start: 1000, End: 2500},
		{ID: "u3", Speaker: "A", Text: "third", Start: 3000, End: 4200},
	}
}

func TestUpdateFindsContainingUtterance(t *testing.T) {
	c := NewCursor(msUtterances(), nil)

	if got := c.Update(0.5); got != 0 {
		t.Errorf("Update(0.5) = %d, want 0", got)
	}
	if got := c.Update(1.2); got != 1 {
		t.Errorf("Update(1.2) = %d, want 1", got)
	}
	if got := c.Update(3.1); got != 2 {
		t.Errorf("Update(3.1) = %d, want 2", got)
	}
}

func TestUpdatePastEndPinsToLast(t *testing.T) {
	c := NewCursor(msUtterances(), nil)
	if got := c.Update(60.0); got != 2 {
		t.Errorf("Update(60) = %d, want last index 2", got)
	}
}

func TestUpdateInGapKeepsPreviousIndex(t *testing.T) {
	c := NewCursor(msUtterances(), nil)
	c.Update(1.2)
	// 2.7s falls between u2 and u3.
	if got := c.Update(2.7); got != 1 {
		t.Errorf("Update(2.7) = %d, want previous index 1", got)
	}
}

func TestUpdateBeforeFirstUtterance(t *testing.T) {
	utts := []transcript.Utterance{
		{ID: "u1", Speaker: "A", Text: "late start", Start: 5000, End: 7000},
	}
	c := NewCursor(utts, nil)
	if got := c.Update(1.0); got != -1 {
		t.Errorf("Update(1.0) = %d, want -1", got)
	}
}

func TestSecondsTimestampsScaled(t *testing.T) {
	// Timestamps under 1000 are seconds, not milliseconds.
	utts := []transcript.Utterance{
		{ID: "u1", Speaker: "A", Text: "first", Start: 0, End: 2},
		{ID: "u2", Speaker: "B", Text: "second", Start: 2, End: 5},
	}
	c := NewCursor(utts, nil)

	if got := c.Update(1.0); got != 0 {
		t.Errorf("Update(1.0) = %d, want 0", got)
	}
	if got := c.Update(3.5); got != 1 {
		t.Errorf("Update(3.5) = %d, want 1", got)
	}
}

func TestOnChangeFiresOnlyOnIndexMove(t *testing.T) {
	var fired []int
	c := NewCursor(msUtterances(), func(idx int) {
		fired = append(fired, idx)
	})

	// A steady position feed inside u1, then a move into u2.
	c.Update(0.1)
	c.Update(0.3)
	c.Update(0.6)
	c.Update(0.9)
	c.Update(1.5)
	c.Update(1.8)

	want := []int{0, 1}
	if len(fired) != len(want) {
		t.Fatalf("onChange fired %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("onChange fired %v, want %v", fired, want)
		}
	}
}

func TestEmptyTranscript(t *testing.T) {
	c := NewCursor(nil, nil)
	if got := c.Update(1.0); got != -1 {
		t.Errorf("Update on empty transcript = %d, want -1", got)
	}
}
