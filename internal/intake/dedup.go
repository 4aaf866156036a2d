// Package intake receives watch events from webhooks and session
// polling, resolves them to library series, and hands them to retention
// processing exactly once per episode per suppression window.
package intake

import (
	"fmt"
	"sync"
	"time"

	"github.com/showkeeper/showkeeper/internal/titles"
)

const (
	// suppressionWindow is how long a (series, season, episode) event
	// suppresses repeats, regardless of which producer saw it first.
	suppressionWindow = 5 * time.Minute
	// evictionAge bounds deduper memory; entries this old are dropped
	// during Evict.
	evictionAge = 24 * time.Hour
)

// Deduper suppresses duplicate watch events for the same episode.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time

	// now is overridable in tests.
	now func() time.Time
}

// NewDeduper creates an empty deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func dedupKey(series string, season, episode int) string {
	return fmt.Sprintf("%s|%d|%d", titles.Normalize(series), season, episode)
}

// ShouldProcess reports whether the event is outside the suppression
// window, and records it as processed when it is.
func (d *Deduper) ShouldProcess(series string, season, episode int) bool {
	key := dedupKey(series, season, episode)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < suppressionWindow {
		return false
	}
	d.seen[key] = now
	return true
}

// Evict drops entries old enough to be irrelevant and returns how many
// were removed. Called once per poll iteration to bound memory.
func (d *Deduper) Evict() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0
	for key, last := range d.seen {
		if now.Sub(last) > evictionAge {
			delete(d.seen, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
