// Package activity resolves "last watched position" for a series across
// a hierarchy of data sources: the primary store, external
// playback-history providers, and library file-added dates.
package activity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no source could produce an activity date.
// Callers must treat this as "skip grace/dormant evaluation for this
// series", never as fatal.
var ErrNotFound = errors.New("activity not found")

// Record is a watch record produced by any source. Season and Episode
// are zero when the source only knows a timestamp.
type Record struct {
	Timestamp time.Time
	Season    int
	Episode   int
}

// Complete reports whether the record carries a watch position.
func (r Record) Complete() bool {
	return r.Season > 0 && r.Episode > 0
}

// Result is a resolved activity record plus the source that produced it.
type Result struct {
	Record
	Source string
}

// Source is a playback-history provider. A provider that fails or times
// out must be treated by callers as "no result", not as an error worth
// aborting over.
type Source interface {
	// Name identifies the provider in logs.
	Name() string
	// LastWatched returns the most recent watch record matching the
	// series title, or nil when the provider has none. When complete is
	// true the provider fills Season/Episode, defaulting to (1,1) if its
	// data carries no position.
	LastWatched(ctx context.Context, seriesTitle string, complete bool) (*Record, error)
}

// Session is a live playback session reported by a provider that
// supports session introspection.
type Session struct {
	ID              string
	User            string
	Series          string
	Season          int
	Episode         int
	EpisodeTitle    string
	ProgressPercent float64
	Paused          bool
}

// SessionSource lists live playback sessions for the active poller.
type SessionSource interface {
	// ActiveSessions returns every session currently playing an episode.
	ActiveSessions(ctx context.Context) ([]Session, error)
}
