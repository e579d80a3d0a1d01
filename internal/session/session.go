// Package session orchestrates one live interview: microphone frames go
// out over the transcription channel while events coming back feed the
// transcript and suggestion state, and teardown seals the recording,
// uploads it, and hands off to the completion poller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/audio"
	"github.com/malu-zinha/compass-live/internal/backend"
	"github.com/malu-zinha/compass-live/internal/channel"
	"github.com/malu-zinha/compass-live/internal/clock"
	"github.com/malu-zinha/compass-live/internal/poller"
	"github.com/malu-zinha/compass-live/internal/suggest"
	"github.com/malu-zinha/compass-live/internal/transcript"
)

var (
	ErrAlreadyLive    = errors.New("session already live")
	ErrNotLive        = errors.New("no live session")
	ErrNothingToRetry = errors.New("no failed upload to retry")
)

// Backend is the slice of the REST client the session needs.
type Backend interface {
	UploadRecording(ctx context.Context, interviewID int64, container []byte, durationSec int) error
	SaveNotes(ctx context.Context, interviewID int64, notes string) error
	GetInterview(ctx context.Context, interviewID int64) (*backend.InterviewRecord, error)
}

// Options configures a Session.
type Options struct {
	Device       audio.CaptureDevice
	Backend      Backend
	StreamURL    string
	Backoff      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
	Clock        clock.Clock
	Log          zerolog.Logger
}

// Session owns the live-interview state machine. All mutable state is
// scoped to one interview; Start for the next interview begins from a
// fresh Session.
type Session struct {
	device audio.CaptureDevice
	api    Backend
	log    zerolog.Logger

	ch         *channel.Channel
	transcript *transcript.Reconciler
	suggest    *suggest.Aggregator
	recorder   *audio.Recorder
	poll       *poller.Poller

	// live gates the frame pump and is the first thing teardown flips, so
	// frames racing with Stop are dropped instead of sent on a closing
	// channel.
	live atomic.Bool
	wg   sync.WaitGroup

	mu          sync.Mutex
	interviewID int64
	sessionID   string
	notes       string
	pending     []byte // sealed recording retained after a failed upload
	uploaded    bool
}

func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	log := opts.Log.With().Str("component", "session").Logger()

	s := &Session{
		device:     opts.Device,
		api:        opts.Backend,
		log:        log,
		transcript: transcript.NewReconciler(opts.Log),
		suggest:    suggest.NewAggregator(opts.Log),
		recorder:   audio.NewRecorder(audio.SampleRate),
	}
	s.ch = channel.New(channel.Options{
		StreamURL: opts.StreamURL,
		Backoff:   opts.Backoff,
		OnEvent:   s.handleEvent,
		Clock:     opts.Clock,
		Log:       opts.Log,
	})
	s.poll = poller.New(poller.Options{
		Fetch:      opts.Backend,
		Transcript: s.transcript,
		Interval:   opts.PollInterval,
		Timeout:    opts.PollTimeout,
		Clock:      opts.Clock,
		Log:        opts.Log,
		OnDone:     s.handlePollDone,
	})
	return s
}

// Start opens the capture device and the transcription channel, then runs
// the frame pump until Stop. A device failure aborts before any network
// activity; audio.ErrDeviceUnavailable is left in the chain for the
// caller to match on.
func (s *Session) Start(ctx context.Context, interviewID int64) error {
	s.mu.Lock()
	if s.live.Load() {
		s.mu.Unlock()
		return ErrAlreadyLive
	}
	s.interviewID = interviewID
	s.sessionID = uuid.NewString()
	sessionID := s.sessionID
	s.mu.Unlock()

	frames, err := s.device.Start(ctx)
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	if err := s.ch.Connect(sessionID); err != nil {
		s.device.Stop()
		return err
	}

	s.live.Store(true)
	s.wg.Add(1)
	go s.pump(frames)

	s.log.Info().
		Int64("interview_id", interviewID).
		Str("session_id", sessionID).
		Msg("session started")
	return nil
}

// pump encodes each captured block and feeds it to both the channel and
// the local recorder. The channel handles its own not-open drops; the
// recorder always gets the frame so the uploaded audio has no holes from
// reconnect windows.
func (s *Session) pump(frames <-chan []float32) {
	defer s.wg.Done()
	for block := range frames {
		pcm := audio.EncodeFrame(block)
		s.recorder.Append(pcm)
		s.ch.Send(pcm)
	}
}

func (s *Session) handleEvent(ev channel.Event) {
	switch ev.Kind {
	case channel.KindTranscriptDelta:
		s.transcript.Apply(ev.Fragments)
	case channel.KindFinalize:
		s.transcript.Finalize(ev.FinalizeID)
	case channel.KindSuggestion:
		s.suggest.Add(ev.Questions)
	}
}

func (s *Session) handlePollDone(interviewID int64, st poller.State, rec *backend.InterviewRecord) {
	ev := s.log.Info().Int64("interview_id", interviewID).Stringer("result", st)
	if rec != nil {
		ev = ev.Bool("has_audio", rec.HasAudio).Int("utterances", len(rec.Transcript))
	}
	ev.Msg("post-processing finished")
}

// Stop tears the session down: capture first, then the channel, then the
// durable upload and the completion poller. Safe to call more than once.
// An upload failure keeps the sealed recording for RetryUpload and wraps
// backend.ErrUpload.
func (s *Session) Stop(ctx context.Context) error {
	if !s.live.CompareAndSwap(true, false) {
		return nil
	}

	s.device.Stop()
	s.wg.Wait()
	s.ch.Close()

	container, err := s.recorder.Container()
	if err != nil {
		return fmt.Errorf("seal recording: %w", err)
	}

	s.mu.Lock()
	s.pending = container
	s.mu.Unlock()

	s.log.Info().
		Int("bytes", len(container)).
		Int("duration_sec", s.recorder.DurationSeconds()).
		Msg("session stopped, uploading recording")

	return s.finishUpload(ctx)
}

// RetryUpload re-attempts the upload after a Stop that failed on the
// network leg. The recording is still in memory; nothing is re-captured.
func (s *Session) RetryUpload(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return ErrNothingToRetry
	}
	return s.finishUpload(ctx)
}

func (s *Session) finishUpload(ctx context.Context) error {
	s.mu.Lock()
	id := s.interviewID
	container := s.pending
	notes := s.notes
	s.mu.Unlock()

	if err := s.api.UploadRecording(ctx, id, container, s.recorder.DurationSeconds()); err != nil {
		s.log.Error().Err(err).Int64("interview_id", id).Msg("upload failed, recording retained")
		return err
	}

	s.mu.Lock()
	s.pending = nil
	s.uploaded = true
	s.mu.Unlock()

	if notes != "" {
		if err := s.api.SaveNotes(ctx, id, notes); err != nil {
			s.log.Warn().Err(err).Int64("interview_id", id).Msg("saving notes failed")
		}
	}

	// The poller outlives the Stop call's request context.
	s.poll.Start(context.WithoutCancel(ctx), id)
	return nil
}

// SetNotes stores the interviewer's notes; they are persisted with the
// upload at teardown.
func (s *Session) SetNotes(notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = notes
}

func (s *Session) Notes() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes
}

// Live reports whether the frame pump is running.
func (s *Session) Live() bool { return s.live.Load() }

// Uploaded reports whether the recording reached the backend.
func (s *Session) Uploaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded
}

func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) InterviewID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interviewID
}

// Transcript returns the current reconciled utterance list.
func (s *Session) Transcript() []transcript.Utterance { return s.transcript.Snapshot() }

// Suggestions returns the current question list.
func (s *Session) Suggestions() []suggest.Question { return s.suggest.Snapshot() }

// AcceptSuggestion and RejectSuggestion record the interviewer's reaction.
func (s *Session) AcceptSuggestion(id string) bool { return s.suggest.Accept(id) }
func (s *Session) RejectSuggestion(id string) bool { return s.suggest.Reject(id) }

// RecordingSeconds reports how much audio the local recorder holds.
func (s *Session) RecordingSeconds() int { return s.recorder.DurationSeconds() }

// RecordingBytes reports the raw PCM byte count held so far.
func (s *Session) RecordingBytes() int { return s.recorder.Len() }

// ChannelState exposes the transport state for the status API.
func (s *Session) ChannelState() channel.State { return s.ch.State() }

// PollState exposes the completion poller's state for the status API.
func (s *Session) PollState() poller.State { return s.poll.State() }

// PollRecord returns the latest backend record the poller fetched, or nil.
func (s *Session) PollRecord() *backend.InterviewRecord { return s.poll.Record() }
