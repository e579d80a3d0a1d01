package audio

import (
	"fmt"
	"io"
	"sync"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultChunkSeconds is how much audio a sealed chunk holds. The durable
// container is accumulated at a much coarser grain than the live frames.
const DefaultChunkSeconds = 1

// Recorder accumulates PCM for the durable recording, independently of the
// live channel. Frames are grouped into ~1 s chunks purely so the session
// can report accumulation progress; the sealed container is one WAV blob.
// Nothing in here is ever sent over the live channel.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	chunkBytes int
	chunks     int
	cur        int
	pcm        []byte
}

// NewRecorder creates a recorder for mono PCM at the given sample rate.
func NewRecorder(sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &Recorder{
		sampleRate: sampleRate,
		chunkBytes: sampleRate * Channels * BytesPerSample * DefaultChunkSeconds,
	}
}

// Append buffers one encoded PCM frame.
func (r *Recorder) Append(frame []byte) {
	if len(frame) == 0 {
		return
	}
	r.mu.Lock()
	r.pcm = append(r.pcm, frame...)
	r.cur += len(frame)
	for r.cur >= r.chunkBytes {
		r.cur -= r.chunkBytes
		r.chunks++
	}
	r.mu.Unlock()
}

// DurationSeconds reports the accumulated audio length in whole seconds,
// derived from data size over byte rate. This is the duration hint sent
// with the upload.
func (r *Recorder) DurationSeconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pcm) / (r.sampleRate * Channels * BytesPerSample)
}

// ChunkCount reports how many full chunks have been sealed so far.
func (r *Recorder) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.chunks
	if r.cur > 0 {
		n++
	}
	return n
}

// Len reports the accumulated PCM size in bytes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pcm)
}

// Container seals the accumulated PCM into a WAV blob suitable for the
// durable upload and later playback.
func (r *Recorder) Container() ([]byte, error) {
	r.mu.Lock()
	pcm := make([]byte, len(r.pcm))
	copy(pcm, r.pcm)
	sampleRate := r.sampleRate
	r.mu.Unlock()

	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio accumulated")
	}

	data := make([]int, len(pcm)/BytesPerSample)
	for i := range data {
		data[i] = int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}

	var buf seekBuffer
	enc := wav.NewEncoder(&buf, sampleRate, BitDepth, Channels, 1)
	err := enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: Channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder seeks back to
// patch chunk sizes into the header after the data is written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }

var _ io.WriteSeeker = (*seekBuffer)(nil)
