// Package poller watches an uploaded interview until the backend's
// post-processing pipeline has produced both an analysis and a diarized
// transcript, then hands the confirmed record back to the session.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/backend"
	"github.com/malu-zinha/compass-live/internal/clock"
	"github.com/malu-zinha/compass-live/internal/metrics"
	"github.com/malu-zinha/compass-live/internal/transcript"
)

// State is the poller's lifecycle position for the current interview.
type State int

const (
	StateIdle State = iota
	StatePolling
	// StateConverged means the record carries a populated analysis and a
	// speaker-labeled transcript.
	StateConverged
	// StateTimedOut means the deadline passed first. The backend may still
	// finish later; this is "still processing", not a failure.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateConverged:
		return "converged"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Fetcher is the slice of the backend client the poller needs.
type Fetcher interface {
	GetInterview(ctx context.Context, interviewID int64) (*backend.InterviewRecord, error)
}

const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 300 * time.Second
)

// Options configures a Poller.
type Options struct {
	Fetch      Fetcher
	Transcript *transcript.Reconciler
	Interval   time.Duration
	Timeout    time.Duration
	Clock      clock.Clock
	Log        zerolog.Logger
	// OnDone fires once per Start, from the timer goroutine, when the
	// poller reaches Converged or TimedOut. rec is nil on timeout if no
	// fetch ever succeeded.
	OnDone func(interviewID int64, st State, rec *backend.InterviewRecord)
}

// Poller re-fetches one interview record on a fixed interval until it
// converges or the deadline passes. A second Start for the same interview
// while one is in flight is a no-op.
type Poller struct {
	fetch    Fetcher
	rec      *transcript.Reconciler
	interval time.Duration
	timeout  time.Duration
	clk      clock.Clock
	onDone   func(int64, State, *backend.InterviewRecord)
	log      zerolog.Logger

	mu          sync.Mutex
	state       State
	interviewID int64
	deadline    time.Time
	timer       clock.Timer
	ctx         context.Context
	last        *backend.InterviewRecord
}

func New(opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Poller{
		fetch:    opts.Fetch,
		rec:      opts.Transcript,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		clk:      opts.Clock,
		onDone:   opts.OnDone,
		log:      opts.Log.With().Str("component", "poller").Logger(),
	}
}

// Start begins polling for interviewID. Repeated calls for the interview
// already being polled, or already converged, are ignored; Start for a
// different interview replaces the previous run.
func (p *Poller) Start(ctx context.Context, interviewID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// One run per interview: a poll already in flight is left alone, and a
	// converged interview is never polled again.
	if p.interviewID == interviewID && (p.state == StatePolling || p.state == StateConverged) {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}

	p.state = StatePolling
	p.interviewID = interviewID
	p.deadline = p.clk.Now().Add(p.timeout)
	p.ctx = ctx
	p.last = nil
	p.timer = p.clk.AfterFunc(p.interval, p.tick)

	p.log.Info().
		Int64("interview_id", interviewID).
		Dur("interval", p.interval).
		Dur("timeout", p.timeout).
		Msg("polling for processing results")
}

// Stop cancels the current run without firing OnDone.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.state = StateIdle
}

// State returns the poller's current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Record returns the most recently fetched record, or nil.
func (p *Poller) Record() *backend.InterviewRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) tick() {
	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	id := p.interviewID
	p.mu.Unlock()

	metrics.PollsTotal.Inc()

	rec, err := p.fetch.GetInterview(ctx, id)
	if err != nil {
		p.log.Warn().Err(err).Int64("interview_id", id).Msg("poll failed")
	}

	p.mu.Lock()
	if p.state != StatePolling || p.interviewID != id {
		p.mu.Unlock()
		return
	}

	if rec != nil {
		p.last = rec
		if p.rec != nil && len(rec.Transcript) > 0 {
			// ReplaceAll refuses an unlabeled transcript when the live one
			// is already diarized, so an intermediate processing pass never
			// degrades what the user sees.
			p.rec.ReplaceAll(rec.Transcript)
		}
		// Diarization counts as done when either the fetched record or the
		// guarded local transcript carries speaker labels: the guard may
		// have refused an unlabeled intermediate pass while the analysis
		// landed, leaving only the analysis outstanding.
		diarized := rec.HasDiarization() || (p.rec != nil && p.rec.HasSpeakerLabels())
		if rec.Analysis.IsPopulated() && diarized {
			p.finishLocked(StateConverged, rec)
			return
		}
	}

	if !p.clk.Now().Before(p.deadline) {
		p.finishLocked(StateTimedOut, p.last)
		return
	}

	p.timer = p.clk.AfterFunc(p.interval, p.tick)
	p.mu.Unlock()
}

// finishLocked is called with p.mu held and releases it.
func (p *Poller) finishLocked(st State, rec *backend.InterviewRecord) {
	p.state = st
	p.timer = nil
	id := p.interviewID
	done := p.onDone
	p.mu.Unlock()

	p.log.Info().Int64("interview_id", id).Stringer("state", st).Msg("polling finished")
	if done != nil {
		done(id, st, rec)
	}
}
