package intake

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/activity"
)

// sessionPollInterval is how often a per-session poller re-checks its
// session's progress. Much tighter than the interval poller, since the
// session is known to be actively playing.
const sessionPollInterval = time.Minute

// SessionPollers tracks short-lived pollers started by playback-start
// webhooks: one per session id, each watching a single session until it
// crosses the trigger, changes episode, or ends.
type SessionPollers struct {
	source    activity.SessionSource
	processor *Processor
	trigger   float64
	logger    zerolog.Logger

	mu     sync.Mutex
	active map[string]chan struct{}
}

// NewSessionPollers creates the per-session poller registry.
func NewSessionPollers(source activity.SessionSource, processor *Processor, triggerPercent float64, logger zerolog.Logger) *SessionPollers {
	if triggerPercent <= 0 {
		triggerPercent = 50
	}
	return &SessionPollers{
		source:    source,
		processor: processor,
		trigger:   triggerPercent,
		logger:    logger.With().Str("component", "session-poller").Logger(),
		active:    make(map[string]chan struct{}),
	}
}

// Start begins watching a session. At most one poller runs per session
// id; repeated playback-start events for the same session are no-ops.
func (sp *SessionPollers) Start(sessionID, series string, season, episode int) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if _, ok := sp.active[sessionID]; ok {
		return
	}
	stop := make(chan struct{})
	sp.active[sessionID] = stop

	go sp.watch(sessionID, series, season, episode, stop)
	sp.logger.Info().
		Str("session_id", sessionID).
		Str("series", series).
		Int("season", season).
		Int("episode", episode).
		Msg("started session poller")
}

// Active returns the session ids currently being watched.
func (sp *SessionPollers) Active() []string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	ids := make([]string, 0, len(sp.active))
	for id := range sp.active {
		ids = append(ids, id)
	}
	return ids
}

// StopAll terminates every active poller.
func (sp *SessionPollers) StopAll() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for id, stop := range sp.active {
		close(stop)
		delete(sp.active, id)
	}
}

// remove drops the session's entry only while it still belongs to this
// poller. After StopAll a new poller may have re-registered the same
// session id; its entry must survive the old goroutine's cleanup.
func (sp *SessionPollers) remove(sessionID string, own chan struct{}) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.active[sessionID] == own {
		delete(sp.active, sessionID)
	}
}

func (sp *SessionPollers) watch(sessionID, series string, season, episode int, stop chan struct{}) {
	defer sp.remove(sessionID, stop)

	log := sp.logger.With().Str("session_id", sessionID).Str("series", series).Logger()
	ticker := time.NewTicker(sessionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx := context.Background()
		sessions, err := sp.source.ActiveSessions(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to list sessions, keeping poller alive")
			continue
		}

		current := findSession(sessions, sessionID)
		if current == nil {
			log.Debug().Msg("session ended, stopping poller")
			return
		}
		if current.Season != season || current.Episode != episode {
			log.Debug().
				Int("season", current.Season).
				Int("episode", current.Episode).
				Msg("session moved to a different episode, stopping poller")
			return
		}
		if current.Paused {
			continue
		}
		if current.ProgressPercent < sp.trigger {
			continue
		}

		if err := sp.processor.HandleWatch(ctx, current.Series, current.Season, current.Episode); err != nil {
			log.Error().Err(err).Msg("failed to process session watch event")
		}
		return
	}
}

func findSession(sessions []activity.Session, id string) *activity.Session {
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i]
		}
	}
	return nil
}
