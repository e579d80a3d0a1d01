package statusapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/audio"
	"github.com/malu-zinha/compass-live/internal/backend"
	"github.com/malu-zinha/compass-live/internal/session"
	"github.com/malu-zinha/compass-live/internal/suggest"
	"github.com/malu-zinha/compass-live/internal/transcript"
)

// SessionHandler serves the per-session endpoints.
type SessionHandler struct {
	sess *session.Session
	log  zerolog.Logger
}

// StatusResponse is the session snapshot for the viewer page.
type StatusResponse struct {
	Live             bool   `json:"live"`
	SessionID        string `json:"session_id,omitempty"`
	InterviewID      int64  `json:"interview_id,omitempty"`
	Channel          string `json:"channel"`
	Poll             string `json:"poll"`
	Uploaded         bool   `json:"uploaded"`
	RecordingSeconds int    `json:"recording_seconds"`
	Utterances       int    `json:"utterances"`
	Suggestions      int    `json:"suggestions"`
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, StatusResponse{
		Live:             h.sess.Live(),
		SessionID:        h.sess.SessionID(),
		InterviewID:      h.sess.InterviewID(),
		Channel:          h.sess.ChannelState().String(),
		Poll:             h.sess.PollState().String(),
		Uploaded:         h.sess.Uploaded(),
		RecordingSeconds: h.sess.RecordingSeconds(),
		Utterances:       len(h.sess.Transcript()),
		Suggestions:      len(h.sess.Suggestions()),
	})
}

type startRequest struct {
	InterviewID int64 `json:"interview_id"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InterviewID <= 0 {
		WriteError(w, http.StatusBadRequest, "interview_id required")
		return
	}

	err := h.sess.Start(r.Context(), req.InterviewID)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"session_id": h.sess.SessionID()})
	case errors.Is(err, session.ErrAlreadyLive):
		WriteError(w, http.StatusConflict, "session already live")
	case errors.Is(err, audio.ErrDeviceUnavailable):
		WriteErrorDetail(w, http.StatusServiceUnavailable, "capture device unavailable", err.Error())
	default:
		WriteErrorDetail(w, http.StatusInternalServerError, "start failed", err.Error())
	}
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	err := h.sess.Stop(r.Context())
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]any{"uploaded": h.sess.Uploaded()})
	case errors.Is(err, backend.ErrUpload):
		// The recording is retained; the viewer offers a retry.
		WriteErrorDetail(w, http.StatusBadGateway, "upload failed", err.Error())
	default:
		WriteErrorDetail(w, http.StatusInternalServerError, "stop failed", err.Error())
	}
}

func (h *SessionHandler) RetryUpload(w http.ResponseWriter, r *http.Request) {
	err := h.sess.RetryUpload(r.Context())
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]any{"uploaded": true})
	case errors.Is(err, session.ErrNothingToRetry):
		WriteError(w, http.StatusConflict, "no failed upload to retry")
	case errors.Is(err, backend.ErrUpload):
		WriteErrorDetail(w, http.StatusBadGateway, "upload failed", err.Error())
	default:
		WriteErrorDetail(w, http.StatusInternalServerError, "retry failed", err.Error())
	}
}

type transcriptResponse struct {
	Utterances []transcript.Utterance `json:"utterances"`
}

func (h *SessionHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	utts := h.sess.Transcript()
	if utts == nil {
		utts = []transcript.Utterance{}
	}
	WriteJSON(w, http.StatusOK, transcriptResponse{Utterances: utts})
}

type suggestionsResponse struct {
	Questions []suggest.Question `json:"questions"`
}

func (h *SessionHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	qs := h.sess.Suggestions()
	if qs == nil {
		qs = []suggest.Question{}
	}
	WriteJSON(w, http.StatusOK, suggestionsResponse{Questions: qs})
}

func (h *SessionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.sess.AcceptSuggestion)
}

func (h *SessionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.sess.RejectSuggestion)
}

func (h *SessionHandler) react(w http.ResponseWriter, r *http.Request, fn func(string) bool) {
	id := chi.URLParam(r, "id")
	if !fn(id) {
		WriteError(w, http.StatusNotFound, "unknown suggestion")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *SessionHandler) Notes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.sess.SetNotes(req.Notes)
	w.WriteHeader(http.StatusNoContent)
}
