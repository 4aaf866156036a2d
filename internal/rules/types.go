// Package rules defines per-series retention rules and their storage.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SelectorType describes how a selector counts episodes.
type SelectorType string

const (
	SelectorEpisodes SelectorType = "episodes"
	SelectorSeasons  SelectorType = "seasons"
	SelectorAll      SelectorType = "all"
)

// Action controls what happens to newly selected upcoming episodes.
type Action string

const (
	// ActionMonitor marks upcoming episodes monitored without searching.
	ActionMonitor Action = "monitor"
	// ActionSearch marks upcoming episodes monitored and triggers a search.
	ActionSearch Action = "search"
)

// Selector is a typed episode count: N episodes, N seasons, or everything.
type Selector struct {
	Type  SelectorType `json:"type"`
	Count int          `json:"count"`
}

// All reports whether the selector covers the entire series.
func (s Selector) All() bool { return s.Type == SelectorAll }

func (s Selector) String() string {
	if s.Type == SelectorAll {
		return "all"
	}
	return fmt.Sprintf("%d %s", s.Count, s.Type)
}

// Validate checks that the selector is well formed.
func (s Selector) Validate() error {
	switch s.Type {
	case SelectorAll:
		return nil
	case SelectorEpisodes, SelectorSeasons:
		if s.Count < 1 {
			return fmt.Errorf("selector count must be at least 1, got %d", s.Count)
		}
		return nil
	default:
		return fmt.Errorf("unknown selector type %q", s.Type)
	}
}

// ParseSelector accepts both the current typed form ("episodes"/"seasons"/
// "all" plus a count) and the legacy single-value form where the value
// was "all", "season", or a bare episode count.
func ParseSelector(selType string, count int) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(selType)) {
	case "all":
		return Selector{Type: SelectorAll}, nil
	case "season":
		// Legacy keyword meaning the current season.
		return Selector{Type: SelectorSeasons, Count: 1}, nil
	case "seasons":
		return Selector{Type: SelectorSeasons, Count: count}, nil
	case "episodes", "":
		return Selector{Type: SelectorEpisodes, Count: count}, nil
	default:
		// Legacy rules stored a bare number as the type field.
		if n, err := strconv.Atoi(selType); err == nil && n > 0 {
			return Selector{Type: SelectorEpisodes, Count: n}, nil
		}
		return Selector{}, fmt.Errorf("unknown selector type %q", selType)
	}
}

// Rule describes the retention policy applied to its assigned series.
type Rule struct {
	Name string `json:"name"`

	// Get selects which upcoming episodes to prepare after a watch.
	Get Selector `json:"get"`
	// Keep selects which already-downloaded episodes to retain.
	Keep Selector `json:"keep"`

	// Grace and dormancy timers, in days. Nil disables the phase.
	GraceWatchedDays   *int `json:"grace_watched_days"`
	GraceUnwatchedDays *int `json:"grace_unwatched_days"`
	DormantDays        *int `json:"dormant_days"`

	// MonitorWatched keeps watched episodes monitored after processing.
	MonitorWatched bool   `json:"monitor_watched"`
	Action         Action `json:"action"`
	DryRun         bool   `json:"dry_run"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the rule for internal consistency.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if err := r.Get.Validate(); err != nil {
		return fmt.Errorf("get selector: %w", err)
	}
	if err := r.Keep.Validate(); err != nil {
		return fmt.Errorf("keep selector: %w", err)
	}
	switch r.Action {
	case ActionMonitor, ActionSearch:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	for _, d := range []struct {
		name string
		val  *int
	}{
		{"grace_watched_days", r.GraceWatchedDays},
		{"grace_unwatched_days", r.GraceUnwatchedDays},
		{"dormant_days", r.DormantDays},
	} {
		if d.val != nil && *d.val < 1 {
			return fmt.Errorf("%s must be at least 1 day, got %d", d.name, *d.val)
		}
	}
	return nil
}
