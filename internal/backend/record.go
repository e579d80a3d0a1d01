// Package backend is the REST client for the interview service: the
// durable recording upload at session end and the record fetches the
// completion poller re-runs until post-processing converges.
package backend

import (
	"encoding/json"

	"github.com/malu-zinha/compass-live/internal/transcript"
)

// Analysis is the structured result of the backend's post-session LLM
// pass. Any recognized field, or any field at all in the raw object,
// counts as populated.
type Analysis struct {
	Summary   string   `json:"summary,omitempty"`
	Positives []string `json:"positives,omitempty"`
	Negatives []string `json:"negatives,omitempty"`
	Score     *float64 `json:"score,omitempty"`

	// raw holds every field of the analysis object, recognized or not.
	raw map[string]json.RawMessage
}

// IsPopulated reports whether the analysis carries anything at all.
func (a Analysis) IsPopulated() bool {
	return a.Summary != "" || len(a.Positives) > 0 || len(a.Negatives) > 0 ||
		a.Score != nil || len(a.raw) > 0
}

// InterviewRecord is the backend's eventually-consistent projection of one
// interview. Read-only to this client; the poller re-fetches it whole.
type InterviewRecord struct {
	ID         int64
	Transcript []transcript.Utterance
	Analysis   Analysis
	HasAudio   bool
	Notes      string
}

// HasDiarization reports whether the record's transcript carries at least
// one speaker-labeled (A/B) utterance.
func (r *InterviewRecord) HasDiarization() bool {
	for _, u := range r.Transcript {
		if u.Speaker == "A" || u.Speaker == "B" {
			return true
		}
	}
	return false
}

// recordWire is the raw shape of the backend response. transcript and
// analysis arrive either as JSON values or as JSON re-encoded into a
// string, depending on which processing stage wrote them; audio_file is
// a path string, a bool, or absent.
type recordWire struct {
	ID        int64           `json:"id"`
	Trans     json.RawMessage `json:"transcript"`
	Analysis  json.RawMessage `json:"analysis"`
	AudioFile json.RawMessage `json:"audio_file"`
	Notes     string          `json:"notes"`
}

// ParseRecord decodes a record response defensively: unparseable
// transcript or analysis fields collapse to empty values rather than
// failing the poll.
func ParseRecord(data []byte) (*InterviewRecord, error) {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	return &InterviewRecord{
		ID:         w.ID,
		Transcript: decodeTranscript(w.Trans),
		Analysis:   decodeAnalysis(w.Analysis),
		HasAudio:   decodePresence(w.AudioFile),
		Notes:      w.Notes,
	}, nil
}

func decodeTranscript(raw json.RawMessage) []transcript.Utterance {
	raw = unwrapString(raw)
	if len(raw) == 0 {
		return nil
	}
	var utts []transcript.Utterance
	if err := json.Unmarshal(raw, &utts); err != nil {
		// Some stages store {"utterances": [...]} instead of a bare array.
		var wrapped struct {
			Utterances []transcript.Utterance `json:"utterances"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		return wrapped.Utterances
	}
	return utts
}

func decodeAnalysis(raw json.RawMessage) Analysis {
	raw = unwrapString(raw)
	if len(raw) == 0 {
		return Analysis{}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return Analysis{}
	}

	var a Analysis
	_ = json.Unmarshal(raw, &a)
	a.raw = fields
	return a
}

// decodePresence interprets audio_file as a presence flag whatever its
// wire type: non-empty string, true, or any other non-null value.
func decodePresence(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s != ""
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return string(raw) != "null"
}

// unwrapString peels one level of JSON-in-a-string encoding, returning the
// inner bytes when raw is a string and raw itself otherwise. Empty strings
// and nulls collapse to nil.
func unwrapString(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil || inner == "" {
		return nil
	}
	return json.RawMessage(inner)
}
