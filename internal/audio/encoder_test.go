package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeFrameScalesSamples(t *testing.T) {
	frame := EncodeFrame([]float32{0, 0.5, -0.5, 1, -1})

	if len(frame) != 10 {
		t.Fatalf("frame length = %d, want 10", len(frame))
	}

	got := make([]int16, 5)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(frame[i*2:]))
	}

	want := []int16{0, 16383, -16383, 32767, -32767}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEncodeFrameClampsOutOfRange(t *testing.T) {
	// Samples outside [-1, 1] must clamp, never wrap.
	frame := EncodeFrame([]float32{2.5, -3.0})

	hi := int16(binary.LittleEndian.Uint16(frame[0:]))
	lo := int16(binary.LittleEndian.Uint16(frame[2:]))

	if hi != 32767 {
		t.Errorf("over-range sample = %d, want 32767", hi)
	}
	if lo != -32767 {
		t.Errorf("under-range sample = %d, want -32767", lo)
	}
}

func TestEncodeFrameEmpty(t *testing.T) {
	if got := EncodeFrame(nil); len(got) != 0 {
		t.Errorf("EncodeFrame(nil) length = %d, want 0", len(got))
	}
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.9}
	out := DecodeFrame(EncodeFrame(in))

	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		diff := out[i] - in[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0/32768 {
			t.Errorf("sample %d = %f, want ~%f", i, out[i], in[i])
		}
	}
}
