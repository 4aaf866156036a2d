package intake

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for watch-event intake.
type Handlers struct {
	processor *Processor
	pollers   *SessionPollers
	poller    *Poller
}

// NewHandlers creates a new intake handlers instance. pollers and
// poller may be nil when no session provider is configured.
func NewHandlers(processor *Processor, pollers *SessionPollers, poller *Poller) *Handlers {
	return &Handlers{processor: processor, pollers: pollers, poller: poller}
}

// RegisterRoutes registers intake routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/webhook", h.Webhook)
	g.POST("/webhook/playback-start", h.PlaybackStart)
	g.GET("/polling/status", h.PollingStatus)
}

// webhookRequest accepts the canonical field names plus the legacy
// aliases some notification agents send.
type webhookRequest struct {
	Series      string `json:"series"`
	ServerTitle string `json:"server_title"`
	PlexTitle   string `json:"plex_title"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
}

func (r webhookRequest) title() string {
	switch {
	case r.Series != "":
		return r.Series
	case r.ServerTitle != "":
		return r.ServerTitle
	default:
		return r.PlexTitle
	}
}

// Webhook receives a completed-watch notification.
// POST /api/v1/webhook
func (h *Handlers) Webhook(c echo.Context) error {
	var req webhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	title := req.title()
	if title == "" || req.Season < 1 || req.Episode < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "series title, season, and episode are required")
	}

	if err := h.processor.HandleWatch(c.Request().Context(), title, req.Season, req.Episode); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

type playbackStartRequest struct {
	SessionID string `json:"session_id"`
	Series    string `json:"series"`
	Season    int    `json:"season"`
	Episode   int    `json:"episode"`
}

// PlaybackStart starts a per-session poller for a new playback session.
// POST /api/v1/webhook/playback-start
func (h *Handlers) PlaybackStart(c echo.Context) error {
	if h.pollers == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no session provider configured")
	}

	var req playbackStartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid playback-start payload")
	}
	if req.SessionID == "" || req.Series == "" || req.Season < 1 || req.Episode < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "session id, series title, season, and episode are required")
	}

	h.pollers.Start(req.SessionID, req.Series, req.Season, req.Episode)
	return c.JSON(http.StatusOK, map[string]string{"status": "polling"})
}

// pollingStatusResponse describes the intake's polling state.
type pollingStatusResponse struct {
	IntervalPollerRunning bool     `json:"interval_poller_running"`
	ActiveSessionPollers  []string `json:"active_session_pollers"`
}

// PollingStatus reports the state of the interval and session pollers.
// GET /api/v1/polling/status
func (h *Handlers) PollingStatus(c echo.Context) error {
	resp := pollingStatusResponse{ActiveSessionPollers: []string{}}
	if h.poller != nil {
		resp.IntervalPollerRunning = h.poller.Running()
	}
	if h.pollers != nil {
		resp.ActiveSessionPollers = h.pollers.Active()
	}
	return c.JSON(http.StatusOK, resp)
}
