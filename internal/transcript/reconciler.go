// Package transcript folds the stream of transcript-delta events from the
// live channel into a single ordered utterance list, and guards that list
// against being overwritten by lower-quality data after diarization has
// arrived.
package transcript

import (
	"sync"

	"github.com/rs/zerolog"
)

// Utterance is one contiguous span of speech attributed to a speaker.
// Utterances with an ID are merged incrementally; ID-less utterances are
// insertion-only.
type Utterance struct {
	ID      string `json:"id,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	Start   int64  `json:"start"` // milliseconds
	End     int64  `json:"end"`   // milliseconds
	IsFinal bool   `json:"is_final"`
}

// Fragment is one entry of an inbound transcript-delta event. NewWords nil
// with Text set means the fragment is a full replacement; NewWords non-nil
// means incremental append.
type Fragment struct {
	ID       string  `json:"id,omitempty"`
	Speaker  string  `json:"speaker,omitempty"`
	Text     string  `json:"text,omitempty"`
	NewWords *string `json:"new_words,omitempty"`
	Start    *int64  `json:"start,omitempty"`
	End      *int64  `json:"end,omitempty"`
	IsFinal  bool    `json:"is_final,omitempty"`
}

// Reconciler owns the utterance list for one session. It is only mutated
// from the channel's event goroutine; everyone else reads snapshots.
type Reconciler struct {
	mu         sync.Mutex
	utterances []Utterance
	byID       map[string]int // id → index into utterances
	log        zerolog.Logger
}

func NewReconciler(log zerolog.Logger) *Reconciler {
	return &Reconciler{
		byID: make(map[string]int),
		log:  log.With().Str("component", "transcript").Logger(),
	}
}

// Apply folds a batch of fragments into the list. Merges never reorder
// existing entries; each id occurs at most once; fragments without an id
// are always appended as new entries.
func (r *Reconciler) Apply(frags []Fragment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range frags {
		if f.ID == "" {
			r.appendLocked(f)
			continue
		}

		idx, ok := r.byID[f.ID]
		if !ok {
			r.appendLocked(f)
			continue
		}

		u := &r.utterances[idx]
		switch {
		case f.NewWords != nil:
			u.Text += *f.NewWords
		case f.Text != "":
			u.Text = f.Text
		}
		if f.Speaker != "" {
			u.Speaker = f.Speaker
		}
		if f.Start != nil {
			u.Start = *f.Start
		}
		if f.End != nil {
			u.End = *f.End
		}
		if f.IsFinal {
			u.IsFinal = true
		}
	}
}

func (r *Reconciler) appendLocked(f Fragment) {
	text := f.Text
	if text == "" && f.NewWords != nil {
		text = *f.NewWords
	}
	u := Utterance{
		ID:      f.ID,
		Speaker: f.Speaker,
		Text:    text,
		IsFinal: f.IsFinal,
	}
	if f.Start != nil {
		u.Start = *f.Start
	}
	if f.End != nil {
		u.End = *f.End
	}
	r.utterances = append(r.utterances, u)
	if f.ID != "" {
		r.byID[f.ID] = len(r.utterances) - 1
	}
}

// Finalize flips IsFinal for the utterance with the given id, leaving its
// text untouched. Unknown ids are a no-op; repeated finalizes are idempotent.
func (r *Reconciler) Finalize(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		r.log.Debug().Str("id", id).Msg("finalize for unknown utterance, ignoring")
		return
	}
	r.utterances[idx].IsFinal = true
}

// Snapshot returns a copy of the current utterance list in first-seen order.
func (r *Reconciler) Snapshot() []Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Utterance, len(r.utterances))
	copy(out, r.utterances)
	return out
}

// Len reports the number of utterances held.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.utterances)
}

// HasSpeakerLabels reports whether the list already holds diarized
// (A/B-labeled) utterances. Once true, lower-quality replacements are
// rejected by ReplaceAll.
func (r *Reconciler) HasSpeakerLabels() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return hasLabels(r.utterances)
}

// LabeledCount reports how many utterances carry an A/B speaker label.
func (r *Reconciler) LabeledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.utterances {
		if isSpeakerLabel(u.Speaker) {
			n++
		}
	}
	return n
}

// ReplaceAll swaps the whole list for a backend-confirmed transcript.
// The regression guard applies: if the current list is already diarized
// and the replacement is not, the replacement is refused and the method
// reports false.
func (r *Reconciler) ReplaceAll(utts []Utterance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hasLabels(r.utterances) && !hasLabels(utts) {
		r.log.Debug().
			Int("held", len(r.utterances)).
			Int("offered", len(utts)).
			Msg("refusing to replace diarized transcript with unlabeled one")
		return false
	}

	r.utterances = make([]Utterance, len(utts))
	copy(r.utterances, utts)
	r.byID = make(map[string]int, len(utts))
	for i, u := range r.utterances {
		if u.ID != "" {
			r.byID[u.ID] = i
		}
	}
	return true
}

func hasLabels(utts []Utterance) bool {
	for _, u := range utts {
		if isSpeakerLabel(u.Speaker) {
			return true
		}
	}
	return false
}

func isSpeakerLabel(s string) bool {
	return s == "A" || s == "B"
}
