package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// ErrUpload marks a failed recording upload. The recording stays in memory
// on this path so the caller can offer a retry.
var ErrUpload = errors.New("recording upload failed")

const defaultTimeout = 60 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
	Client    *http.Client
	Log       zerolog.Logger
}

// Client talks to the interview backend over REST.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	hc := opts.Client
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL: opts.BaseURL,
		token:   opts.AuthToken,
		http:    hc,
		log:     opts.Log.With().Str("component", "backend").Logger(),
	}
}

// UploadRecording posts the sealed WAV container for an interview as a
// multipart form, with the client-side duration in whole seconds as a
// hint for the transcription stage. Failures wrap ErrUpload.
func (c *Client) UploadRecording(ctx context.Context, interviewID int64, container []byte, durationSec int) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := part.Write(container); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := mw.WriteField("duration", strconv.Itoa(durationSec)); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}

	url := fmt.Sprintf("%s/positions/interviews/%d/upload-audio", c.baseURL, interviewID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, snippet)
	}

	c.log.Info().
		Int64("interview_id", interviewID).
		Int("bytes", len(container)).
		Int("duration_sec", durationSec).
		Msg("recording uploaded")
	return nil
}

// GetInterview fetches the current server-side record for one interview.
func (c *Client) GetInterview(ctx context.Context, interviewID int64) (*InterviewRecord, error) {
	url := fmt.Sprintf("%s/positions/interviews/%d", c.baseURL, interviewID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get interview %d: status %d", interviewID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	rec, err := ParseRecord(data)
	if err != nil {
		return nil, fmt.Errorf("get interview %d: %w", interviewID, err)
	}
	return rec, nil
}

// SaveNotes persists the interviewer's free-text notes for an interview.
func (c *Client) SaveNotes(ctx context.Context, interviewID int64, notes string) error {
	payload, err := json.Marshal(map[string]string{"notes": notes})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/positions/interviews/%d/notes", c.baseURL, interviewID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("save notes for interview %d: status %d", interviewID, resp.StatusCode)
	}
	return nil
}

// PlaybackURL returns the streaming URL for an interview's stored audio.
func (c *Client) PlaybackURL(interviewID int64) string {
	return fmt.Sprintf("%s/positions/interviews/%d/audio", c.baseURL, interviewID)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
