package channel

import (
	"encoding/json"
	"fmt"

	"github.com/malu-zinha/compass-live/internal/transcript"
)

// Kind tags the recognized shapes of inbound channel events. Anything the
// decoder does not recognize collapses into KindUnknown and is ignored by
// the channel instead of crashing it.
type Kind int

const (
	KindUnknown Kind = iota
	KindTranscriptDelta
	KindFinalize
	KindSuggestion
)

func (k Kind) String() string {
	switch k {
	case KindTranscriptDelta:
		return "transcript_delta"
	case KindFinalize:
		return "finalize"
	case KindSuggestion:
		return "suggestion"
	default:
		return "unknown"
	}
}

// Event is one decoded inbound message. Exactly the fields for its Kind
// are populated.
type Event struct {
	Kind       Kind
	Fragments  []transcript.Fragment // KindTranscriptDelta
	FinalizeID string                // KindFinalize
	Questions  []string              // KindSuggestion
}

// envelope mirrors the wire shapes. RawMessage fields so presence can be
// distinguished from emptiness.
type envelope struct {
	TranscriptUpdate   json.RawMessage `json:"transcript_update"`
	TranscriptFinalize json.RawMessage `json:"transcript_finalize"`
	GPTResponse        json.RawMessage `json:"gpt_response"`
}

type finalizeBody struct {
	ID string `json:"id"`
}

type suggestionBody struct {
	Questions []string `json:"questions"`
}

// DecodeEvent parses one inbound message defensively. A message that is not
// JSON at all, or whose recognized field fails to parse, returns an error;
// the caller logs it and drops the single event. A JSON message with no
// recognized field decodes to KindUnknown with a nil error.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}

	switch {
	case env.TranscriptUpdate != nil:
		var frags []transcript.Fragment
		if err := json.Unmarshal(env.TranscriptUpdate, &frags); err != nil {
			return Event{}, fmt.Errorf("decode transcript_update: %w", err)
		}
		return Event{Kind: KindTranscriptDelta, Fragments: frags}, nil

	case env.TranscriptFinalize != nil:
		var fin finalizeBody
		if err := json.Unmarshal(env.TranscriptFinalize, &fin); err != nil {
			return Event{}, fmt.Errorf("decode transcript_finalize: %w", err)
		}
		return Event{Kind: KindFinalize, FinalizeID: fin.ID}, nil

	case env.GPTResponse != nil:
		// gpt_response carries nested JSON as a string.
		var inner string
		if err := json.Unmarshal(env.GPTResponse, &inner); err != nil {
			return Event{}, fmt.Errorf("decode gpt_response wrapper: %w", err)
		}
		var body suggestionBody
		if err := json.Unmarshal([]byte(inner), &body); err != nil {
			return Event{}, fmt.Errorf("decode gpt_response body: %w", err)
		}
		return Event{Kind: KindSuggestion, Questions: body.Questions}, nil

	default:
		return Event{Kind: KindUnknown}, nil
	}
}
