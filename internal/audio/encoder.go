// Package audio converts captured sample blocks into the two outputs one
// recording session needs: fixed-format PCM frames for the live stream and
// a durable WAV container for upload after the session ends.
package audio

import "encoding/binary"

// Live stream wire format: mono 16 kHz signed 16-bit little-endian PCM.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
	BitDepth       = 16
)

// EncodeFrame converts a block of float32 samples in [-1, 1] into s16le PCM.
// Out-of-range samples are clamped before scaling so they never wrap.
// The transform is pure and allocates only the output buffer; frame order
// on the wire is whatever order the caller invokes it in.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(v))
	}
	return out
}

// DecodeFrame converts s16le PCM bytes back into float32 samples in [-1, 1].
// Used by file-backed capture devices and tests; the live path only encodes.
func DecodeFrame(b []byte) []float32 {
	out := make([]float32, len(b)/BytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}
