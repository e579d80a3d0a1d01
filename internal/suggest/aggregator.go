// Package suggest maintains the deduplicated list of AI-proposed follow-up
// questions received alongside the live transcript.
package suggest

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status of a suggested question. Reactions only move it between these;
// entries are never removed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Question is one AI-proposed follow-up question.
type Question struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Status Status `json:"status"`
	Origin string `json:"origin"`
}

// Aggregator deduplicates inbound question proposals by exact text match.
// Like the transcript list, it is mutated only from the channel's event
// goroutine; readers take snapshots.
type Aggregator struct {
	mu        sync.Mutex
	questions []Question
	seen      map[string]struct{} // exact text, case-sensitive
	byID      map[string]int
	log       zerolog.Logger
}

func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		seen: make(map[string]struct{}),
		byID: make(map[string]int),
		log:  log.With().Str("component", "suggest").Logger(),
	}
}

// Add appends each candidate question that is not already present. Returns
// the number of entries actually added.
func (a *Aggregator) Add(texts []string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, text := range texts {
		if text == "" {
			continue
		}
		if _, dup := a.seen[text]; dup {
			continue
		}
		q := Question{
			ID:     uuid.NewString(),
			Text:   text,
			Status: StatusPending,
			Origin: "ai",
		}
		a.questions = append(a.questions, q)
		a.seen[text] = struct{}{}
		a.byID[q.ID] = len(a.questions) - 1
		added++
	}
	if added > 0 {
		a.log.Debug().Int("added", added).Int("total", len(a.questions)).Msg("suggestions added")
	}
	return added
}

// Accept marks the question with the given id as accepted.
func (a *Aggregator) Accept(id string) bool { return a.react(id, StatusAccepted) }

// Reject marks the question with the given id as rejected.
func (a *Aggregator) Reject(id string) bool { return a.react(id, StatusRejected) }

func (a *Aggregator) react(id string, s Status) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, ok := a.byID[id]
	if !ok {
		return false
	}
	a.questions[idx].Status = s
	return true
}

// Snapshot returns a copy of the question list in arrival order.
func (a *Aggregator) Snapshot() []Question {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Question, len(a.questions))
	copy(out, a.questions)
	return out
}

// Len reports the number of questions held.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.questions)
}
