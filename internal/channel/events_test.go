package channel

import (
	"testing"
)

func TestDecodeTranscriptDelta(t *testing.T) {
	data := []byte(`{"transcript_update":[{"id":"A_1","speaker":"A","text":"Hello","new_words":"Hel","start":0,"end":0,"is_final":false}]}`)

	ev, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindTranscriptDelta {
		t.Fatalf("kind = %v, want transcript_delta", ev.Kind)
	}
	if len(ev.Fragments) != 1 {
		t.Fatalf("got %d fragments, want 1", len(ev.Fragments))
	}
	f := ev.Fragments[0]
	if f.ID != "A_1" || f.Speaker != "A" {
		t.Errorf("fragment = %+v", f)
	}
	if f.NewWords == nil || *f.NewWords != "Hel" {
		t.Errorf("new_words = %v, want Hel", f.NewWords)
	}
}

func TestDecodeDeltaNullNewWords(t *testing.T) {
	// new_words:null must decode as absent (full-replace semantics).
	data := []byte(`{"transcript_update":[{"id":"1","text":"Hello world","new_words":null}]}`)

	ev, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Fragments[0].NewWords != nil {
		t.Errorf("new_words = %q, want nil", *ev.Fragments[0].NewWords)
	}
	if ev.Fragments[0].Text != "Hello world" {
		t.Errorf("text = %q", ev.Fragments[0].Text)
	}
}

func TestDecodeEmptyDelta(t *testing.T) {
	// Zero fragments is still a valid delta event.
	ev, err := DecodeEvent([]byte(`{"transcript_update":[]}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindTranscriptDelta {
		t.Errorf("kind = %v, want transcript_delta", ev.Kind)
	}
	if len(ev.Fragments) != 0 {
		t.Errorf("got %d fragments, want 0", len(ev.Fragments))
	}
}

func TestDecodeFinalize(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"transcript_finalize":{"id":"B_2","speaker":"B"}}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindFinalize {
		t.Fatalf("kind = %v, want finalize", ev.Kind)
	}
	if ev.FinalizeID != "B_2" {
		t.Errorf("finalize id = %q, want B_2", ev.FinalizeID)
	}
}

func TestDecodeSuggestion(t *testing.T) {
	// gpt_response carries the question list as nested JSON in a string.
	ev, err := DecodeEvent([]byte(`{"gpt_response":"{\"questions\":[\"Why Go?\",\"Why now?\"]}"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindSuggestion {
		t.Fatalf("kind = %v, want suggestion", ev.Kind)
	}
	if len(ev.Questions) != 2 || ev.Questions[0] != "Why Go?" {
		t.Errorf("questions = %v", ev.Questions)
	}
}

func TestDecodeMalformedSuggestionBody(t *testing.T) {
	// Outer JSON is fine; the nested payload is garbage. The decoder must
	// report an error so the channel can drop just this event.
	_, err := DecodeEvent([]byte(`{"gpt_response":"not json at all"}`))
	if err == nil {
		t.Error("expected error for malformed nested suggestion payload")
	}
}

func TestDecodeUnknownShapeIgnored(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"heartbeat":{"seq":42}}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind != KindUnknown {
		t.Errorf("kind = %v, want unknown", ev.Kind)
	}
}

func TestDecodeNotJSON(t *testing.T) {
	if _, err := DecodeEvent([]byte(`garbage`)); err == nil {
		t.Error("expected error for non-JSON payload")
	}
}
