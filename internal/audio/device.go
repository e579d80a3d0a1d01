package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// ErrDeviceUnavailable means the capture source could not be opened
// (missing file, permission denied). Fatal to session start; callers
// surface it instead of retrying.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// CaptureDevice delivers mono float32 sample blocks from an audio source.
// Start returns a channel that closes when the source is exhausted, the
// context is cancelled, or Stop is called.
type CaptureDevice interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop()
}

// FileDevice replays a WAV file as a capture source, in blocks sized like
// a real capture callback would deliver them.
type FileDevice struct {
	path      string
	blockSize int
	cancel    context.CancelFunc
}

// NewFileDevice creates a device reading from the given WAV file. blockSize
// is samples per delivered block; 0 picks 200 ms worth.
func NewFileDevice(path string, blockSize int) *FileDevice {
	if blockSize <= 0 {
		blockSize = SampleRate / 5
	}
	return &FileDevice{path: path, blockSize: blockSize}
}

func (d *FileDevice) Start(ctx context.Context) (<-chan []float32, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a valid wav file", ErrDeviceUnavailable, d.path)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	out := make(chan []float32, 4)
	go func() {
		defer close(out)
		defer f.Close()

		buf, err := dec.FullPCMBuffer()
		if err != nil && err != io.EOF {
			return
		}
		if buf == nil {
			return
		}

		bitDepth := buf.SourceBitDepth
		if bitDepth <= 0 {
			bitDepth = 16
		}
		scale := float32(int(1) << (bitDepth - 1))

		samples := make([]float32, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = float32(v) / scale
		}

		for len(samples) > 0 {
			n := d.blockSize
			if n > len(samples) {
				n = len(samples)
			}
			block := samples[:n]
			samples = samples[n:]
			select {
			case out <- block:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (d *FileDevice) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}
