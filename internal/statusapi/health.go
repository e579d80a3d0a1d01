package statusapi

import (
	"net/http"
	"time"

	"github.com/malu-zinha/compass-live/internal/channel"
	"github.com/malu-zinha/compass-live/internal/session"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	sess      *session.Session
	version   string
	startTime time.Time
}

func NewHealthHandler(sess *session.Session, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{sess: sess, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	// Channel check: a live session stuck reconnecting is degraded, not down.
	chState := h.sess.ChannelState()
	checks["channel"] = chState.String()
	if h.sess.Live() && chState == channel.StateReconnecting {
		status = "degraded"
	}

	checks["session"] = "idle"
	if h.sess.Live() {
		checks["session"] = "live"
	}
	checks["poll"] = h.sess.PollState().String()

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
