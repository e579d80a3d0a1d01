// Package playback maps an audio playback position onto the finished
// transcript so a viewer can highlight, and scroll to, the utterance
// being spoken.
package playback

import (
	"sync"

	"github.com/malu-zinha/compass-live/internal/transcript"
)

// window is one utterance's time span, normalized to milliseconds.
type window struct {
	start int64
	end   int64
}

// Cursor tracks which utterance contains the current playback position.
// The OnChange callback fires only when the active index actually moves,
// so a per-frame position feed does not cause per-frame scrolling.
type Cursor struct {
	mu       sync.Mutex
	windows  []window
	idx      int
	onChange func(idx int)
}

// NewCursor builds a cursor over the given utterances. Transcripts written
// by different processing stages disagree on units: some carry timestamps
// in seconds, some in milliseconds. A transcript whose largest end value
// is under 1000 is taken to be in seconds and scaled up; anything longer
// than a thousand seconds of audio carries millisecond values already.
func NewCursor(utts []transcript.Utterance, onChange func(idx int)) *Cursor {
	windows := make([]window, len(utts))
	var maxEnd int64
	for i, u := range utts {
		windows[i] = window{start: u.Start, end: u.End}
		if u.End > maxEnd {
			maxEnd = u.End
		}
	}
	if maxEnd > 0 && maxEnd < 1000 {
		for i := range windows {
			windows[i].start *= 1000
			windows[i].end *= 1000
		}
	}
	return &Cursor{windows: windows, idx: -1, onChange: onChange}
}

// Update takes the playback position in seconds and returns the index of
// the active utterance, or -1 when the position precedes the transcript.
// A position inside a silence gap keeps the previous index; a position
// past the last utterance pins to the last index.
func (c *Cursor) Update(positionSec float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.windows) == 0 {
		return -1
	}

	posMS := int64(positionSec * 1000)

	next := -1
	for i, w := range c.windows {
		if posMS >= w.start && posMS < w.end {
			next = i
			break
		}
	}
	if next == -1 && posMS >= c.windows[len(c.windows)-1].end {
		next = len(c.windows) - 1
	}
	if next == -1 {
		return c.idx
	}

	if next != c.idx {
		c.idx = next
		if c.onChange != nil {
			c.onChange(next)
		}
	}
	return c.idx
}

// Index returns the current active utterance index without moving it.
func (c *Cursor) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx
}
